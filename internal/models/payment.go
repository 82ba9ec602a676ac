package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type PaymentStatus string

const (
	PaymentStatusCreated  PaymentStatus = "created"
	PaymentStatusPaid     PaymentStatus = "paid"
	PaymentStatusFailed   PaymentStatus = "failed"
	PaymentStatusRefunded PaymentStatus = "refunded"
)

var paymentTransitions = map[PaymentStatus][]PaymentStatus{
	PaymentStatusCreated:  {PaymentStatusPaid, PaymentStatusFailed},
	PaymentStatusPaid:     {PaymentStatusRefunded},
	PaymentStatusFailed:   {},
	PaymentStatusRefunded: {},
}

func (s PaymentStatus) CanTransition(to PaymentStatus) bool {
	for _, next := range paymentTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// Payment is one settlement attempt for a job. A job may accumulate several
// rows across retries; only a paid row is authoritative for completion.
type Payment struct {
	ID    uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	JobID uuid.UUID `gorm:"type:uuid;not null;index" json:"job_id"`

	PayerID uuid.UUID `gorm:"type:uuid;not null;index" json:"payer_id"`
	PayeeID uuid.UUID `gorm:"type:uuid;not null;index" json:"payee_id"`

	Amount   int64  `json:"amount"`
	Currency string `gorm:"type:varchar(8);default:'INR'" json:"currency"`

	// OrderID is the gateway order identifier; both the synchronous verify
	// path and the webhook locate the record through it.
	OrderID       string `gorm:"type:varchar(64);uniqueIndex" json:"order_id"`
	TransactionID string `gorm:"type:varchar(64)" json:"transaction_id"`
	Signature     string `gorm:"type:varchar(128)" json:"-"`

	Status      PaymentStatus `gorm:"type:varchar(20);default:'created';index" json:"status"`
	Description string        `gorm:"type:text" json:"description"`

	PaidAt    *time.Time `json:"paid_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`

	Job   *Job  `gorm:"foreignKey:JobID" json:"job,omitempty"`
	Payer *User `gorm:"foreignKey:PayerID" json:"payer,omitempty"`
	Payee *User `gorm:"foreignKey:PayeeID" json:"payee,omitempty"`
}

func (p *Payment) BeforeCreate(tx *gorm.DB) (err error) {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return
}
