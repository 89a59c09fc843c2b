package handler

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"contractapi/internal/service"
	"contractapi/internal/verification"
)

const (
	// ActorHeader carries the authenticated staff id set by the gateway in front of the API.
	ActorHeader = "X-Actor-ID"
	// SessionHeader lets API clients that do not keep cookies pin a signing session.
	SessionHeader = "X-Session-ID"
	// SessionCookie holds the signing session of browser clients.
	SessionCookie = "sign_session"
)

func actorFrom(c *fiber.Ctx) service.Actor {
	return service.Actor{
		ID:        c.Get(ActorHeader),
		Origin:    c.IP(),
		UserAgent: c.Get(fiber.HeaderUserAgent),
	}
}

// requireActor returns false after writing 401 when no actor is present.
func requireActor(c *fiber.Ctx) (service.Actor, bool) {
	a := actorFrom(c)
	if a.ID == "" {
		_ = writeError(c, fiber.StatusUnauthorized, "UNAUTHORIZED", "missing "+ActorHeader+" header")
		return a, false
	}
	return a, true
}

// sessionID returns the caller's signing session, issuing a cookie on first contact.
func sessionID(c *fiber.Ctx) string {
	if id := c.Get(SessionHeader); id != "" {
		return id
	}
	if id := c.Cookies(SessionCookie); id != "" {
		return id
	}
	id := uuid.NewString()
	c.Cookie(&fiber.Cookie{
		Name:     SessionCookie,
		Value:    id,
		Path:     "/",
		HTTPOnly: true,
		Secure:   c.Protocol() == "https",
		SameSite: fiber.CookieSameSiteLaxMode,
		Expires:  time.Now().Add(24 * time.Hour),
	})
	return id
}

func verificationContext(c *fiber.Ctx) verification.Context {
	return verification.Context{
		SessionID: sessionID(c),
		Token:     c.Params("token"),
		Origin:    c.IP(),
		UserAgent: c.Get(fiber.HeaderUserAgent),
	}
}

// contractID validates the :id param; it writes 400 and returns false on a malformed id.
func contractID(c *fiber.Ctx) (string, bool) {
	id := c.Params("id")
	if _, err := uuid.Parse(id); err != nil {
		_ = writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid id format")
		return "", false
	}
	return id, true
}

func pageParams(c *fiber.Ctx) (limit, offset int, ok bool) {
	limit, err := strconv.Atoi(c.Query("limit", "10"))
	if err != nil {
		_ = writeError(c, fiber.StatusBadRequest, "INVALID_LIMIT", "invalid limit")
		return 0, 0, false
	}
	offset, err = strconv.Atoi(c.Query("offset", "0"))
	if err != nil {
		_ = writeError(c, fiber.StatusBadRequest, "INVALID_OFFSET", "invalid offset")
		return 0, 0, false
	}
	return limit, offset, true
}
