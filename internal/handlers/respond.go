package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/gigbridge/gigbridge-backend/internal/apperr"
)

// fail translates a service error into the API envelope. Internal errors are
// logged with their cause but never leak it to the client.
func fail(c *fiber.Ctx, err error) error {
	var e *apperr.Error
	if errors.As(err, &e) {
		body := fiber.Map{"success": false, "message": e.Message}
		if e.Fields != nil {
			body["errors"] = e.Fields
		}
		if e.Kind == apperr.KindInternal {
			logrus.WithError(e.Err).Error(e.Message)
			body["message"] = "Internal server error"
		}
		return c.Status(apperr.HTTPStatus(err)).JSON(body)
	}

	logrus.WithError(err).Error("unhandled error")
	return c.Status(500).JSON(fiber.Map{"success": false, "message": "Internal server error"})
}

func ok(c *fiber.Ctx, data interface{}) error {
	return c.JSON(fiber.Map{"success": true, "data": data})
}

func created(c *fiber.Ctx, data interface{}) error {
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true, "data": data})
}

// actorID reads the authenticated user id the JWT middleware stored in
// Locals.
func actorID(c *fiber.Ctx) (uuid.UUID, error) {
	raw, _ := c.Locals("userId").(string)
	if raw == "" {
		return uuid.Nil, fiber.ErrUnauthorized
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fiber.ErrUnauthorized
	}
	return id, nil
}

func actorRole(c *fiber.Ctx) string {
	role, _ := c.Locals("role").(string)
	return role
}
