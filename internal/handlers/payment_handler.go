package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/gigbridge/gigbridge-backend/internal/models"
	"github.com/gigbridge/gigbridge-backend/internal/services/payments"
)

type PaymentHandler struct {
	Payments *payments.PaymentService
}

func NewPaymentHandler(paymentService *payments.PaymentService) *PaymentHandler {
	return &PaymentHandler{Payments: paymentService}
}

type CreateIntentRequest struct {
	JobID  string `json:"job_id" validate:"required,uuid"`
	Amount int64  `json:"amount" validate:"required"`
}

func (h *PaymentHandler) CreateIntent(c *fiber.Ctx) error {
	ownerID, err := actorID(c)
	if err != nil {
		return err
	}

	var req CreateIntentRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"success": false, "message": "Invalid request body"})
	}
	if err := validate.Struct(req); err != nil {
		return c.Status(400).JSON(fiber.Map{"success": false, "message": err.Error()})
	}

	jobID, err := uuid.Parse(req.JobID)
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"success": false, "message": "Invalid job ID"})
	}

	payment, err := h.Payments.CreateIntent(ownerID, jobID, req.Amount)
	if err != nil {
		return fail(c, err)
	}
	return created(c, fiber.Map{
		"payment_id": payment.ID,
		"order_id":   payment.OrderID,
		"amount":     payment.Amount,
		"currency":   payment.Currency,
	})
}

type VerifyPaymentRequest struct {
	OrderID       string `json:"order_id" validate:"required"`
	TransactionID string `json:"transaction_id" validate:"required"`
	Signature     string `json:"signature" validate:"required"`
}

func (h *PaymentHandler) VerifyPayment(c *fiber.Ctx) error {
	if _, err := actorID(c); err != nil {
		return err
	}

	var req VerifyPaymentRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"success": false, "message": "Invalid request body"})
	}
	if err := validate.Struct(req); err != nil {
		return c.Status(400).JSON(fiber.Map{"success": false, "message": err.Error()})
	}

	payment, err := h.Payments.Verify(req.OrderID, req.TransactionID, req.Signature)
	if err != nil {
		return fail(c, err)
	}
	return ok(c, payment)
}

// HandleWebhook is the gateway's asynchronous callback. It is unauthenticated
// at the HTTP layer; trust comes from the signature over the raw body.
func (h *PaymentHandler) HandleWebhook(c *fiber.Ctx) error {
	signature := c.Get("X-Razorpay-Signature")
	if err := h.Payments.HandleWebhook(c.Body(), signature); err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"success": true})
}

func (h *PaymentHandler) GetHistory(c *fiber.Ctx) error {
	userID, err := actorID(c)
	if err != nil {
		return err
	}

	out, err := h.Payments.History(userID, models.Role(actorRole(c)))
	if err != nil {
		return fail(c, err)
	}
	return ok(c, out)
}
