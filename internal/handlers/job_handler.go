package handlers

import (
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/gigbridge/gigbridge-backend/internal/services/jobs"
)

var validate = validator.New()

type JobHandler struct {
	Jobs *jobs.JobService
}

func NewJobHandler(jobService *jobs.JobService) *JobHandler {
	return &JobHandler{Jobs: jobService}
}

type CreateJobRequest struct {
	Title       string   `json:"title" validate:"required"`
	Description string   `json:"description"`
	Category    string   `json:"category" validate:"required"`
	Budget      int64    `json:"budget" validate:"required"`
	BudgetType  string   `json:"budget_type" validate:"omitempty,oneof=fixed hourly"`
	Skills      []string `json:"skills"`
}

func (h *JobHandler) CreateJob(c *fiber.Ctx) error {
	ownerID, err := actorID(c)
	if err != nil {
		return err
	}

	var req CreateJobRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"success": false, "message": "Invalid request body"})
	}
	if err := validate.Struct(req); err != nil {
		return c.Status(400).JSON(fiber.Map{"success": false, "message": err.Error()})
	}

	job, err := h.Jobs.Create(ownerID, jobs.CreateJobInput{
		Title:       req.Title,
		Description: req.Description,
		Category:    req.Category,
		Budget:      req.Budget,
		BudgetType:  req.BudgetType,
		Skills:      req.Skills,
	})
	if err != nil {
		return fail(c, err)
	}
	return created(c, job)
}

func (h *JobHandler) ListJobs(c *fiber.Ctx) error {
	status := c.Query("status")
	category := c.Query("category")

	out, err := h.Jobs.List(status, category, nil)
	if err != nil {
		return fail(c, err)
	}
	return ok(c, out)
}

func (h *JobHandler) ListMine(c *fiber.Ctx) error {
	ownerID, err := actorID(c)
	if err != nil {
		return err
	}
	out, err := h.Jobs.List(c.Query("status"), "", &ownerID)
	if err != nil {
		return fail(c, err)
	}
	return ok(c, out)
}

func (h *JobHandler) GetJob(c *fiber.Ctx) error {
	jobID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"success": false, "message": "Invalid job ID"})
	}

	job, err := h.Jobs.Get(jobID)
	if err != nil {
		return fail(c, err)
	}
	return ok(c, job)
}

type UpdateJobRequest struct {
	Title       *string  `json:"title"`
	Description *string  `json:"description"`
	Budget      *int64   `json:"budget"`
	Skills      []string `json:"skills"`
	Status      *string  `json:"status"`
}

func (h *JobHandler) UpdateJob(c *fiber.Ctx) error {
	userID, err := actorID(c)
	if err != nil {
		return err
	}
	jobID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"success": false, "message": "Invalid job ID"})
	}

	var req UpdateJobRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"success": false, "message": "Invalid request body"})
	}

	job, err := h.Jobs.Update(jobID, userID, jobs.UpdateJobInput{
		Title:       req.Title,
		Description: req.Description,
		Budget:      req.Budget,
		Skills:      req.Skills,
		Status:      req.Status,
	})
	if err != nil {
		return fail(c, err)
	}
	return ok(c, job)
}

func (h *JobHandler) DeleteJob(c *fiber.Ctx) error {
	userID, err := actorID(c)
	if err != nil {
		return err
	}
	jobID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"success": false, "message": "Invalid job ID"})
	}

	if err := h.Jobs.Delete(jobID, userID); err != nil {
		return fail(c, err)
	}
	return ok(c, fiber.Map{"deleted": true})
}
