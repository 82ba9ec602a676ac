package jobs

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/gigbridge/gigbridge-backend/internal/apperr"
	"github.com/gigbridge/gigbridge-backend/internal/models"
)

type JobService struct {
	DB *gorm.DB
}

func NewJobService(db *gorm.DB) *JobService {
	return &JobService{DB: db}
}

type CreateJobInput struct {
	Title       string
	Description string
	Category    string
	Budget      int64
	BudgetType  string
	Skills      []string
}

type FieldErrors map[string][]string

func (e FieldErrors) Add(field, msg string) {
	e[field] = append(e[field], msg)
}

func validateCreate(in CreateJobInput) FieldErrors {
	errs := FieldErrors{}

	title := strings.TrimSpace(in.Title)
	if len(title) < 5 || len(title) > 120 {
		errs.Add("title", "Title must be between 5 and 120 characters")
	}
	if !models.ValidJobCategory(in.Category) {
		errs.Add("category", "Unknown category")
	}
	if in.Budget <= 0 {
		errs.Add("budget", "Budget must be positive")
	}
	if in.BudgetType != "" &&
		in.BudgetType != string(models.BudgetFixed) &&
		in.BudgetType != string(models.BudgetHourly) {
		errs.Add("budget_type", "Budget type must be fixed or hourly")
	}
	return errs
}

func (s *JobService) Create(ownerID uuid.UUID, in CreateJobInput) (*models.Job, error) {
	if errs := validateCreate(in); len(errs) > 0 {
		return nil, apperr.ValidationFields(errs)
	}

	budgetType := models.BudgetType(in.BudgetType)
	if budgetType == "" {
		budgetType = models.BudgetFixed
	}

	skills := in.Skills
	if skills == nil {
		skills = []string{}
	}
	skillsJSON, err := json.Marshal(skills)
	if err != nil {
		return nil, apperr.Internal("failed to encode skills", err)
	}

	job := models.Job{
		Title:       strings.TrimSpace(in.Title),
		Description: strings.TrimSpace(in.Description),
		Category:    models.JobCategory(in.Category),
		Budget:      in.Budget,
		BudgetType:  budgetType,
		Skills:      datatypes.JSON(skillsJSON),
		Status:      models.JobStatusOpen,
		CreatedBy:   ownerID,
		BidsCount:   0,
	}

	if err := s.DB.Create(&job).Error; err != nil {
		return nil, apperr.Internal("failed to create job", err)
	}
	return &job, nil
}

func (s *JobService) Get(jobID uuid.UUID) (*models.Job, error) {
	var job models.Job
	if err := s.DB.First(&job, "id = ?", jobID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("job not found")
		}
		return nil, apperr.Internal("failed to load job", err)
	}
	return &job, nil
}

// List returns jobs newest first, optionally filtered by status, category
// or owner.
func (s *JobService) List(status, category string, ownerID *uuid.UUID) ([]models.Job, error) {
	q := s.DB.Model(&models.Job{}).Order("created_at DESC")
	if status != "" {
		q = q.Where("status = ?", status)
	}
	if category != "" {
		q = q.Where("category = ?", category)
	}
	if ownerID != nil {
		q = q.Where("created_by = ?", *ownerID)
	}

	var out []models.Job
	if err := q.Find(&out).Error; err != nil {
		return nil, apperr.Internal("failed to list jobs", err)
	}
	return out, nil
}

type UpdateJobInput struct {
	Title       *string
	Description *string
	Budget      *int64
	Skills      []string
	Status      *string
}

// Update applies owner-issued edits from a restricted allowlist. A status
// value here is an administrative override, still constrained to known
// states and to the assignedTo invariant.
func (s *JobService) Update(jobID, actorID uuid.UUID, in UpdateJobInput) (*models.Job, error) {
	job, err := s.Get(jobID)
	if err != nil {
		return nil, err
	}
	if job.CreatedBy != actorID {
		return nil, apperr.Authorization("only the job owner can update this job")
	}

	errs := FieldErrors{}
	updates := map[string]interface{}{}

	if in.Title != nil {
		title := strings.TrimSpace(*in.Title)
		if len(title) < 5 || len(title) > 120 {
			errs.Add("title", "Title must be between 5 and 120 characters")
		} else {
			updates["title"] = title
		}
	}
	if in.Description != nil {
		updates["description"] = strings.TrimSpace(*in.Description)
	}
	if in.Budget != nil {
		if *in.Budget <= 0 {
			errs.Add("budget", "Budget must be positive")
		} else {
			updates["budget"] = *in.Budget
		}
	}
	if in.Skills != nil {
		skillsJSON, err := json.Marshal(in.Skills)
		if err != nil {
			return nil, apperr.Internal("failed to encode skills", err)
		}
		updates["skills"] = datatypes.JSON(skillsJSON)
	}
	if in.Status != nil {
		next := models.JobStatus(*in.Status)
		if !models.ValidJobStatus(*in.Status) {
			errs.Add("status", "Unknown status")
		} else if (next == models.JobStatusInProgress || next == models.JobStatusCompleted) && job.AssignedTo == nil {
			errs.Add("status", "Job has no assigned freelancer")
		} else {
			updates["status"] = next
			// assignedTo is non-null iff the job is in_progress or
			// completed; an override out of those states drops it.
			if next == models.JobStatusOpen || next == models.JobStatusCancelled {
				updates["assigned_to"] = nil
			}
		}
	}

	if len(errs) > 0 {
		return nil, apperr.ValidationFields(errs)
	}
	if len(updates) == 0 {
		return job, nil
	}

	if err := s.DB.Model(job).Updates(updates).Error; err != nil {
		return nil, apperr.Internal("failed to update job", err)
	}
	return s.Get(jobID)
}

// Delete removes a job and cascades to its bids so no orphaned bids survive.
func (s *JobService) Delete(jobID, actorID uuid.UUID) error {
	job, err := s.Get(jobID)
	if err != nil {
		return err
	}
	if job.CreatedBy != actorID {
		return apperr.Authorization("only the job owner can delete this job")
	}

	err = s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("job_id = ?", jobID).Delete(&models.Bid{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Job{}, "id = ?", jobID).Error
	})
	if err != nil {
		return apperr.Internal("failed to delete job", err)
	}
	return nil
}

// TransitionOnAccept moves an open job to in_progress and pins the
// freelancer, as a single conditional update. Two racing acceptances cannot
// both match the status guard; the loser sees ConflictError.
func (s *JobService) TransitionOnAccept(tx *gorm.DB, jobID, freelancerID uuid.UUID) error {
	res := tx.Model(&models.Job{}).
		Where("id = ? AND status = ?", jobID, models.JobStatusOpen).
		Updates(map[string]interface{}{
			"status":      models.JobStatusInProgress,
			"assigned_to": freelancerID,
		})
	if res.Error != nil {
		return apperr.Internal("failed to assign job", res.Error)
	}
	if res.RowsAffected == 0 {
		var job models.Job
		if err := tx.First(&job, "id = ?", jobID).Error; err != nil {
			return apperr.NotFound("job not found")
		}
		return apperr.Conflict("job is no longer open")
	}
	return nil
}

// TransitionOnSettlement marks a job completed. Idempotent: a job that is
// already completed is left untouched and no error is returned, so the
// synchronous verify path and the webhook can both replay it safely.
func (s *JobService) TransitionOnSettlement(tx *gorm.DB, jobID uuid.UUID) error {
	res := tx.Model(&models.Job{}).
		Where("id = ? AND status = ?", jobID, models.JobStatusInProgress).
		Update("status", models.JobStatusCompleted)
	if res.Error != nil {
		return apperr.Internal("failed to complete job", res.Error)
	}
	if res.RowsAffected == 0 {
		var job models.Job
		if err := tx.First(&job, "id = ?", jobID).Error; err != nil {
			return apperr.NotFound("job not found")
		}
		if job.Status == models.JobStatusCompleted {
			return nil
		}
		return apperr.Conflict("job is not in progress")
	}
	return nil
}
