package bids

import (
	"errors"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/gigbridge/gigbridge-backend/internal/apperr"
	"github.com/gigbridge/gigbridge-backend/internal/models"
	"github.com/gigbridge/gigbridge-backend/internal/services/jobs"
)

type BidService struct {
	DB   *gorm.DB
	Jobs *jobs.JobService
}

func NewBidService(db *gorm.DB, jobService *jobs.JobService) *BidService {
	return &BidService{DB: db, Jobs: jobService}
}

type PlaceBidInput struct {
	BidAmount    int64
	Message      string
	DeliveryTime int
}

func validatePlace(in PlaceBidInput) jobs.FieldErrors {
	errs := jobs.FieldErrors{}
	if in.BidAmount < 1 {
		errs.Add("bid_amount", "Bid amount must be at least 1")
	}
	if len(strings.TrimSpace(in.Message)) < 10 {
		errs.Add("message", "Message must be at least 10 characters")
	}
	if in.DeliveryTime < 1 {
		errs.Add("delivery_time", "Delivery time must be at least 1 day")
	}
	return errs
}

// Place creates a pending bid and bumps the job's bid counter in one
// transaction. The counter update doubles as the open-status guard: if the
// job closed between the lookup and the commit, the whole transaction rolls
// back and the bid never lands.
func (s *BidService) Place(freelancerID, jobID uuid.UUID, in PlaceBidInput) (*models.Bid, error) {
	if errs := validatePlace(in); len(errs) > 0 {
		return nil, apperr.ValidationFields(errs)
	}

	job, err := s.Jobs.Get(jobID)
	if err != nil {
		return nil, err
	}
	if job.Status != models.JobStatusOpen {
		return nil, apperr.Conflict("job is not open for bidding")
	}
	if job.CreatedBy == freelancerID {
		return nil, apperr.Authorization("cannot bid on your own job")
	}

	bid := models.Bid{
		FreelancerID: freelancerID,
		JobID:        jobID,
		BidAmount:    in.BidAmount,
		Message:      strings.TrimSpace(in.Message),
		DeliveryTime: in.DeliveryTime,
		Status:       models.BidStatusPending,
	}

	err = s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&bid).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return apperr.Conflict("you have already bid on this job")
			}
			return apperr.Internal("failed to create bid", err)
		}

		res := tx.Model(&models.Job{}).
			Where("id = ? AND status = ?", jobID, models.JobStatusOpen).
			UpdateColumn("bids_count", gorm.Expr("bids_count + ?", 1))
		if res.Error != nil {
			return apperr.Internal("failed to update bid counter", res.Error)
		}
		if res.RowsAffected == 0 {
			return apperr.Conflict("job is not open for bidding")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &bid, nil
}

func (s *BidService) Get(bidID uuid.UUID) (*models.Bid, error) {
	var bid models.Bid
	if err := s.DB.First(&bid, "id = ?", bidID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("bid not found")
		}
		return nil, apperr.Internal("failed to load bid", err)
	}
	return &bid, nil
}

// ListForJob returns a job's bids newest first.
func (s *BidService) ListForJob(jobID uuid.UUID) ([]models.Bid, error) {
	if _, err := s.Jobs.Get(jobID); err != nil {
		return nil, err
	}
	var out []models.Bid
	if err := s.DB.Preload("Freelancer").
		Where("job_id = ?", jobID).
		Order("created_at DESC").
		Find(&out).Error; err != nil {
		return nil, apperr.Internal("failed to list bids", err)
	}
	return out, nil
}

func (s *BidService) ListMine(freelancerID uuid.UUID) ([]models.Bid, error) {
	var out []models.Bid
	if err := s.DB.Preload("Job").
		Where("freelancer_id = ?", freelancerID).
		Order("created_at DESC").
		Find(&out).Error; err != nil {
		return nil, apperr.Internal("failed to list bids", err)
	}
	return out, nil
}

// Accept marks one bid accepted, assigns the job and bulk-rejects every
// sibling bid, all in one transaction. The job-side conditional update is
// the race gate: of two concurrent acceptances only one finds the job open.
func (s *BidService) Accept(ownerID, bidID uuid.UUID) (*models.Bid, error) {
	bid, err := s.Get(bidID)
	if err != nil {
		return nil, err
	}

	job, err := s.Jobs.Get(bid.JobID)
	if err != nil {
		return nil, err
	}
	if job.CreatedBy != ownerID {
		return nil, apperr.Authorization("only the job owner can accept bids")
	}

	err = s.DB.Transaction(func(tx *gorm.DB) error {
		if err := s.Jobs.TransitionOnAccept(tx, bid.JobID, bid.FreelancerID); err != nil {
			return err
		}

		res := tx.Model(&models.Bid{}).
			Where("id = ? AND status = ?", bidID, models.BidStatusPending).
			Update("status", models.BidStatusAccepted)
		if res.Error != nil {
			return apperr.Internal("failed to accept bid", res.Error)
		}
		if res.RowsAffected == 0 {
			return apperr.Conflict("bid has already been decided")
		}

		if err := tx.Model(&models.Bid{}).
			Where("job_id = ? AND id <> ? AND status = ?", bid.JobID, bidID, models.BidStatusPending).
			Update("status", models.BidStatusRejected).Error; err != nil {
			return apperr.Internal("failed to reject sibling bids", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return s.Get(bidID)
}

// Reject turns a single pending bid down. No job-side effect.
func (s *BidService) Reject(ownerID, bidID uuid.UUID) (*models.Bid, error) {
	bid, err := s.Get(bidID)
	if err != nil {
		return nil, err
	}

	job, err := s.Jobs.Get(bid.JobID)
	if err != nil {
		return nil, err
	}
	if job.CreatedBy != ownerID {
		return nil, apperr.Authorization("only the job owner can reject bids")
	}

	res := s.DB.Model(&models.Bid{}).
		Where("id = ? AND status = ?", bidID, models.BidStatusPending).
		Update("status", models.BidStatusRejected)
	if res.Error != nil {
		return nil, apperr.Internal("failed to reject bid", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, apperr.Conflict("bid has already been decided")
	}

	return s.Get(bidID)
}

// Delete withdraws a pending bid. Decided bids are immutable, so the delete
// is conditional on pending status and on ownership.
func (s *BidService) Delete(freelancerID, bidID uuid.UUID) error {
	bid, err := s.Get(bidID)
	if err != nil {
		return err
	}
	if bid.FreelancerID != freelancerID {
		return apperr.Authorization("only the bidding freelancer can withdraw this bid")
	}

	return s.DB.Transaction(func(tx *gorm.DB) error {
		res := tx.Where("id = ? AND freelancer_id = ? AND status = ?",
			bidID, freelancerID, models.BidStatusPending).
			Delete(&models.Bid{})
		if res.Error != nil {
			return apperr.Internal("failed to delete bid", res.Error)
		}
		if res.RowsAffected == 0 {
			return apperr.Conflict("only pending bids can be withdrawn")
		}

		if err := tx.Model(&models.Job{}).
			Where("id = ? AND bids_count > 0", bid.JobID).
			UpdateColumn("bids_count", gorm.Expr("bids_count - ?", 1)).Error; err != nil {
			return apperr.Internal("failed to update bid counter", err)
		}
		return nil
	})
}
