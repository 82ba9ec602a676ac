package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type BidStatus string

const (
	BidStatusPending  BidStatus = "pending"
	BidStatusAccepted BidStatus = "accepted"
	BidStatusRejected BidStatus = "rejected"
)

// Accepted and rejected are terminal. Decided bids are immutable so the
// bid history of a job stays auditable.
var bidTransitions = map[BidStatus][]BidStatus{
	BidStatusPending:  {BidStatusAccepted, BidStatusRejected},
	BidStatusAccepted: {},
	BidStatusRejected: {},
}

func (s BidStatus) CanTransition(to BidStatus) bool {
	for _, next := range bidTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

type Bid struct {
	ID uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`

	// One bid per freelancer per job, enforced by the store so two
	// concurrent placements cannot both slip past a pre-check.
	FreelancerID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_bids_freelancer_job" json:"freelancer_id"`
	JobID        uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_bids_freelancer_job;index" json:"job_id"`

	BidAmount    int64  `json:"bid_amount"`
	Message      string `gorm:"type:text" json:"message"`
	DeliveryTime int    `json:"delivery_time"` // days

	Status BidStatus `gorm:"type:varchar(20);default:'pending';index" json:"status"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Freelancer *User `gorm:"foreignKey:FreelancerID" json:"freelancer,omitempty"`
	Job        *Job  `gorm:"foreignKey:JobID" json:"job,omitempty"`
}

func (b *Bid) BeforeCreate(tx *gorm.DB) (err error) {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	return
}
