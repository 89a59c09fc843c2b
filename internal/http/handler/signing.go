package handler

import (
	"github.com/gofiber/fiber/v2"

	"contractapi/internal/service"
)

type verifyRequest struct {
	Code string `json:"code"`
}

// ResolveShortLink redirects a short link to its signing page.
//
// @Summary Resolve a short signing link
// @Tags signing
// @Success 302
// @Router /s/{code} [get]
func ResolveShortLink(svc service.SigningService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token, err := svc.ResolveShortCode(c.UserContext(), c.Params("code"))
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.Redirect("/sign/"+token, fiber.StatusFound)
	}
}

// SigningPage returns the document as the current session may see it.
//
// @Summary Signing page content
// @Tags signing
// @Success 200 {object} service.SigningView
// @Router /sign/{token} [get]
func SigningPage(svc service.SigningService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		v, err := svc.View(c.UserContext(), verificationContext(c))
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.JSON(v)
	}
}

// @Summary Verify the one-time code
// @Tags signing
// @Success 200 {object} service.SigningView
// @Router /sign/{token}/verify [post]
func VerifySigning(svc service.SigningService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req verifyRequest
		if err := c.BodyParser(&req); err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_BODY", "invalid request body")
		}
		v, err := svc.Verify(c.UserContext(), verificationContext(c), req.Code)
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.JSON(v)
	}
}

// VerifyInPerson is called by staff on the customer's device.
//
// @Summary Verify the customer in person
// @Tags signing
// @Success 200 {object} service.SigningView
// @Router /sign/{token}/in-person [post]
func VerifyInPerson(svc service.SigningService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		actor, ok := requireActor(c)
		if !ok {
			return nil
		}
		v, err := svc.VerifyInPerson(c.UserContext(), actor, verificationContext(c))
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.JSON(v)
	}
}

// @Summary Submit the signature
// @Tags signing
// @Success 200 {object} model.Contract
// @Router /sign/{token}/submit [post]
func SubmitSignature(svc service.SigningService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var in service.SubmitInput
		if err := c.BodyParser(&in); err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_BODY", "invalid request body")
		}
		out, err := svc.Submit(c.UserContext(), verificationContext(c), in)
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.JSON(out)
	}
}

// SignedDocument redirects to a short-lived download URL of the signed PDF.
//
// @Summary Download the signed PDF
// @Tags signing
// @Success 302
// @Router /sign/{token}/document [get]
func SignedDocument(svc service.SigningService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		u, err := svc.DocumentURL(c.UserContext(), c.Params("token"))
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.Redirect(u, fiber.StatusFound)
	}
}
