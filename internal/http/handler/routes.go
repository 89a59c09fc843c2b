package handler

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"contractapi/internal/service"
)

// Pinger is satisfied by *sql.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Deps are the collaborators of the HTTP layer. Gatherer may be nil to skip /metrics.
type Deps struct {
	DB        Pinger
	Contracts service.ContractService
	Signing   service.SigningService
	Artifacts service.ArtifactService
	Gatherer  prometheus.Gatherer
}

// RegisterRoutes attaches HTTP routes to the provided Fiber app.
// Handlers translate HTTP to service calls and carry no business rules.
func RegisterRoutes(app *fiber.App, d Deps) {
	app.Get("/health", HealthCheck(d.DB))
	app.Get("/healthz", LivenessProbe())
	if d.Gatherer != nil {
		app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{})))
	}

	// Staff API. The caller is identified by X-Actor-ID.
	app.Get("/templates", ListTemplates(d.Contracts))

	contracts := app.Group("/contracts")
	contracts.Post("/", CreateContract(d.Contracts))
	contracts.Get("/", ListContracts(d.Contracts))
	contracts.Get("/:id", GetContract(d.Contracts))
	contracts.Get("/:id/preview", PreviewContract(d.Contracts))
	contracts.Patch("/:id/fields", UpdateContractFields(d.Contracts))
	contracts.Post("/:id/issue", IssueContract(d.Contracts))
	contracts.Post("/:id/approve", ApproveContract(d.Contracts))
	contracts.Post("/:id/reject", RejectContract(d.Contracts))
	contracts.Post("/:id/resubmit", ResubmitContract(d.Contracts))
	contracts.Post("/:id/cancel", CancelContract(d.Contracts))

	app.Post("/artifacts", UploadArtifact(d.Artifacts))
	app.Get("/artifacts/:id", GetArtifact(d.Artifacts))

	// Customer signing. Access is by token; verified state is per session.
	app.Get("/s/:code", ResolveShortLink(d.Signing))
	sign := app.Group("/sign/:token")
	sign.Get("/", SigningPage(d.Signing))
	sign.Post("/verify", VerifySigning(d.Signing))
	sign.Post("/in-person", VerifyInPerson(d.Signing))
	sign.Post("/submit", SubmitSignature(d.Signing))
	sign.Get("/document", SignedDocument(d.Signing))
}

// HealthCheck reports readiness; it checks DB connectivity only.
//
// @Summary Readiness probe
// @Tags health
// @Success 200 {object} map[string]string
// @Router /health [get]
func HealthCheck(db Pinger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
		defer cancel()
		if db == nil || db.PingContext(ctx) != nil {
			return writeError(c, fiber.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "dependency unavailable")
		}
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"status": "healthy"})
	}
}

// LivenessProbe always answers 200 while the process serves requests.
//
// @Summary Liveness probe
// @Tags health
// @Success 200
// @Router /healthz [get]
func LivenessProbe() fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	}
}
