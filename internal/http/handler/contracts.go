package handler

import (
	"github.com/gofiber/fiber/v2"

	"contractapi/internal/model"
	"contractapi/internal/service"
)

type valuesRequest struct {
	Values map[string]any `json:"variable_values"`
}

type rejectRequest struct {
	Reason string `json:"reason"`
}

// @Summary List active contract templates
// @Tags templates
// @Success 200 {object} map[string][]model.Template
// @Router /templates [get]
func ListTemplates(svc service.ContractService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		items, err := svc.ListTemplates(c.UserContext())
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.JSON(fiber.Map{"data": items})
	}
}

// CreateContract answers 201 with the contract and, when it was issued
// directly, the one-time verification code.
//
// @Summary Create a contract from a template
// @Tags contracts
// @Success 201 {object} service.IssuedContract
// @Router /contracts [post]
func CreateContract(svc service.ContractService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		actor, ok := requireActor(c)
		if !ok {
			return nil
		}
		var in service.CreateContractInput
		if err := c.BodyParser(&in); err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_BODY", "invalid request body")
		}
		out, err := svc.Create(c.UserContext(), actor, in)
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(out)
	}
}

// ListContracts pages through contracts; mine=true restricts to the caller's own.
//
// @Summary List contracts
// @Tags contracts
// @Success 200 {object} service.ContractListResult
// @Router /contracts [get]
func ListContracts(svc service.ContractService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		limit, offset, ok := pageParams(c)
		if !ok {
			return nil
		}
		f := service.ContractListFilter{
			Status: model.ContractStatus(c.Query("status")),
			Limit:  limit,
			Offset: offset,
		}
		if c.QueryBool("mine") {
			actor, ok := requireActor(c)
			if !ok {
				return nil
			}
			f.CreatorID = actor.ID
		}
		res, err := svc.List(c.UserContext(), f)
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.JSON(res)
	}
}

// @Summary Get a contract
// @Tags contracts
// @Success 200 {object} model.Contract
// @Router /contracts/{id} [get]
func GetContract(svc service.ContractService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, ok := contractID(c)
		if !ok {
			return nil
		}
		out, err := svc.Get(c.UserContext(), id)
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.JSON(out)
	}
}

// PreviewContract returns the rendered document as HTML.
//
// @Summary Render the contract as HTML
// @Tags contracts
// @Success 200 {string} string
// @Router /contracts/{id}/preview [get]
func PreviewContract(svc service.ContractService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, ok := contractID(c)
		if !ok {
			return nil
		}
		html, err := svc.Preview(c.UserContext(), id)
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.Type("html").SendString(html)
	}
}

// @Summary Edit variable values before signing
// @Tags contracts
// @Success 200 {object} model.Contract
// @Router /contracts/{id}/fields [patch]
func UpdateContractFields(svc service.ContractService) fiber.Handler {
	return withValues(func(c *fiber.Ctx, actor service.Actor, id string, values map[string]any) (any, error) {
		return svc.UpdateFields(c.UserContext(), actor, id, values)
	})
}

// @Summary Resubmit a rejected contract
// @Tags contracts
// @Success 200 {object} model.Contract
// @Router /contracts/{id}/resubmit [post]
func ResubmitContract(svc service.ContractService) fiber.Handler {
	return withValues(func(c *fiber.Ctx, actor service.Actor, id string, values map[string]any) (any, error) {
		return svc.Resubmit(c.UserContext(), actor, id, values)
	})
}

// @Summary Issue a draft for signing
// @Tags contracts
// @Success 200 {object} service.IssuedContract
// @Router /contracts/{id}/issue [post]
func IssueContract(svc service.ContractService) fiber.Handler {
	return action(func(c *fiber.Ctx, actor service.Actor, id string) (any, error) {
		return svc.Issue(c.UserContext(), actor, id)
	})
}

// @Summary Approve a contract
// @Tags contracts
// @Success 200 {object} service.IssuedContract
// @Router /contracts/{id}/approve [post]
func ApproveContract(svc service.ContractService) fiber.Handler {
	return action(func(c *fiber.Ctx, actor service.Actor, id string) (any, error) {
		return svc.Approve(c.UserContext(), actor, id)
	})
}

// @Summary Cancel a contract
// @Tags contracts
// @Success 200 {object} model.Contract
// @Router /contracts/{id}/cancel [post]
func CancelContract(svc service.ContractService) fiber.Handler {
	return action(func(c *fiber.Ctx, actor service.Actor, id string) (any, error) {
		return svc.Cancel(c.UserContext(), actor, id)
	})
}

// @Summary Reject a contract
// @Tags contracts
// @Success 200 {object} model.Contract
// @Router /contracts/{id}/reject [post]
func RejectContract(svc service.ContractService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, ok := contractID(c)
		if !ok {
			return nil
		}
		actor, ok := requireActor(c)
		if !ok {
			return nil
		}
		var req rejectRequest
		if err := c.BodyParser(&req); err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_BODY", "invalid request body")
		}
		out, err := svc.Reject(c.UserContext(), actor, id, req.Reason)
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.JSON(out)
	}
}

// action adapts an id-only staff transition.
func action(fn func(c *fiber.Ctx, actor service.Actor, id string) (any, error)) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, ok := contractID(c)
		if !ok {
			return nil
		}
		actor, ok := requireActor(c)
		if !ok {
			return nil
		}
		out, err := fn(c, actor, id)
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.JSON(out)
	}
}

func withValues(fn func(c *fiber.Ctx, actor service.Actor, id string, values map[string]any) (any, error)) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, ok := contractID(c)
		if !ok {
			return nil
		}
		actor, ok := requireActor(c)
		if !ok {
			return nil
		}
		var req valuesRequest
		if err := c.BodyParser(&req); err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_BODY", "invalid request body")
		}
		out, err := fn(c, actor, id, req.Values)
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.JSON(out)
	}
}
