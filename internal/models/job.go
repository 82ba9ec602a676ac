package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type JobStatus string

const (
	JobStatusOpen       JobStatus = "open"
	JobStatusInProgress JobStatus = "in_progress"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusCancelled  JobStatus = "cancelled"
)

// jobTransitions is the single source of truth for legal job status moves.
// Every entry point goes through CanTransition instead of comparing strings
// inline.
var jobTransitions = map[JobStatus][]JobStatus{
	JobStatusOpen:       {JobStatusInProgress, JobStatusCancelled},
	JobStatusInProgress: {JobStatusCompleted, JobStatusCancelled},
	JobStatusCompleted:  {},
	JobStatusCancelled:  {},
}

func (s JobStatus) CanTransition(to JobStatus) bool {
	for _, next := range jobTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

func ValidJobStatus(s string) bool {
	_, ok := jobTransitions[JobStatus(s)]
	return ok
}

type JobCategory string

const (
	CategoryWebDevelopment    JobCategory = "web_development"
	CategoryMobileDevelopment JobCategory = "mobile_development"
	CategoryDesign            JobCategory = "design"
	CategoryWriting           JobCategory = "writing"
	CategoryMarketing         JobCategory = "marketing"
	CategoryDataEntry         JobCategory = "data_entry"
	CategoryVideoEditing      JobCategory = "video_editing"
	CategoryOther             JobCategory = "other"
)

var jobCategories = map[JobCategory]bool{
	CategoryWebDevelopment:    true,
	CategoryMobileDevelopment: true,
	CategoryDesign:            true,
	CategoryWriting:           true,
	CategoryMarketing:         true,
	CategoryDataEntry:         true,
	CategoryVideoEditing:      true,
	CategoryOther:             true,
}

func ValidJobCategory(c string) bool {
	return jobCategories[JobCategory(c)]
}

type BudgetType string

const (
	BudgetFixed  BudgetType = "fixed"
	BudgetHourly BudgetType = "hourly"
)

type Job struct {
	ID          uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	Title       string         `gorm:"not null" json:"title"`
	Description string         `gorm:"type:text" json:"description"`
	Category    JobCategory    `gorm:"type:varchar(40);not null;index" json:"category"`
	Budget      int64          `json:"budget"`
	BudgetType  BudgetType     `gorm:"type:varchar(10);default:'fixed'" json:"budget_type"`
	Skills      datatypes.JSON `json:"skills"`

	Status JobStatus `gorm:"type:varchar(20);default:'open';index" json:"status"`

	// CreatedBy is immutable after creation. AssignedTo is set exactly
	// once, by bid acceptance; it is non-null iff status is in_progress
	// or completed.
	CreatedBy  uuid.UUID  `gorm:"type:uuid;not null;index" json:"created_by"`
	AssignedTo *uuid.UUID `gorm:"type:uuid;index" json:"assigned_to,omitempty"`

	BidsCount int `gorm:"default:0" json:"bids_count"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Owner      *User `gorm:"foreignKey:CreatedBy" json:"owner,omitempty"`
	Freelancer *User `gorm:"foreignKey:AssignedTo" json:"freelancer,omitempty"`
}

func (j *Job) BeforeCreate(tx *gorm.DB) (err error) {
	if j.ID == uuid.Nil {
		j.ID = uuid.New()
	}
	return
}
