package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"contractapi/internal/service"
)

// UploadArtifact stores a master document (multipart/form-data, field name: file).
//
// @Summary Upload a master document
// @Tags artifacts
// @Success 201 {object} model.Artifact
// @Router /artifacts [post]
func UploadArtifact(svc service.ArtifactService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if _, ok := requireActor(c); !ok {
			return nil
		}
		fh, err := c.FormFile("file")
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "FILE_REQUIRED", "file is required")
		}

		f, err := fh.Open()
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "FILE_OPEN_ERROR", "cannot open uploaded file")
		}
		defer f.Close()

		ct := fh.Header.Get("Content-Type")
		if ct == "" {
			ct = "application/octet-stream"
		}

		a, err := svc.Save(c.UserContext(), f, fh.Filename, ct, fh.Size)
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(a)
	}
}

// @Summary Get artifact metadata
// @Tags artifacts
// @Success 200 {object} model.Artifact
// @Router /artifacts/{id} [get]
func GetArtifact(svc service.ArtifactService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")
		if _, err := uuid.Parse(id); err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid id format")
		}
		a, err := svc.Get(c.UserContext(), id)
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.JSON(a)
	}
}
