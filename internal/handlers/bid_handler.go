package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/gigbridge/gigbridge-backend/internal/services/bids"
)

type BidHandler struct {
	Bids *bids.BidService
}

func NewBidHandler(bidService *bids.BidService) *BidHandler {
	return &BidHandler{Bids: bidService}
}

type PlaceBidRequest struct {
	BidAmount    int64  `json:"bid_amount" validate:"required,min=1"`
	Message      string `json:"message" validate:"required,min=10"`
	DeliveryTime int    `json:"delivery_time" validate:"required,min=1"`
}

func (h *BidHandler) PlaceBid(c *fiber.Ctx) error {
	freelancerID, err := actorID(c)
	if err != nil {
		return err
	}
	jobID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"success": false, "message": "Invalid job ID"})
	}

	var req PlaceBidRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"success": false, "message": "Invalid request body"})
	}
	if err := validate.Struct(req); err != nil {
		return c.Status(400).JSON(fiber.Map{"success": false, "message": err.Error()})
	}

	bid, err := h.Bids.Place(freelancerID, jobID, bids.PlaceBidInput{
		BidAmount:    req.BidAmount,
		Message:      req.Message,
		DeliveryTime: req.DeliveryTime,
	})
	if err != nil {
		return fail(c, err)
	}
	return created(c, bid)
}

func (h *BidHandler) GetJobBids(c *fiber.Ctx) error {
	jobID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"success": false, "message": "Invalid job ID"})
	}

	out, err := h.Bids.ListForJob(jobID)
	if err != nil {
		return fail(c, err)
	}
	return ok(c, out)
}

func (h *BidHandler) GetMyBids(c *fiber.Ctx) error {
	freelancerID, err := actorID(c)
	if err != nil {
		return err
	}
	out, err := h.Bids.ListMine(freelancerID)
	if err != nil {
		return fail(c, err)
	}
	return ok(c, out)
}

func (h *BidHandler) AcceptBid(c *fiber.Ctx) error {
	ownerID, err := actorID(c)
	if err != nil {
		return err
	}
	bidID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"success": false, "message": "Invalid bid ID"})
	}

	bid, err := h.Bids.Accept(ownerID, bidID)
	if err != nil {
		return fail(c, err)
	}
	return ok(c, bid)
}

func (h *BidHandler) RejectBid(c *fiber.Ctx) error {
	ownerID, err := actorID(c)
	if err != nil {
		return err
	}
	bidID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"success": false, "message": "Invalid bid ID"})
	}

	bid, err := h.Bids.Reject(ownerID, bidID)
	if err != nil {
		return fail(c, err)
	}
	return ok(c, bid)
}

func (h *BidHandler) DeleteBid(c *fiber.Ctx) error {
	freelancerID, err := actorID(c)
	if err != nil {
		return err
	}
	bidID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"success": false, "message": "Invalid bid ID"})
	}

	if err := h.Bids.Delete(freelancerID, bidID); err != nil {
		return fail(c, err)
	}
	return ok(c, fiber.Map{"deleted": true})
}
