package payments

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/gigbridge/gigbridge-backend/internal/apperr"
	"github.com/gigbridge/gigbridge-backend/internal/models"
	"github.com/gigbridge/gigbridge-backend/internal/services/jobs"
	"github.com/gigbridge/gigbridge-backend/internal/services/notify"
	"github.com/gigbridge/gigbridge-backend/internal/services/razorpay"
)

// PaymentService bridges a settlement decision to the external gateway and
// reconciles the outcome exactly once. The synchronous verify path and the
// asynchronous webhook are two producers converging on the same idempotent
// transition.
type PaymentService struct {
	DB       *gorm.DB
	Gateway  *razorpay.RazorpayService
	Jobs     *jobs.JobService
	Notifier notify.Sender
}

func NewPaymentService(db *gorm.DB, gateway *razorpay.RazorpayService, jobService *jobs.JobService, notifier notify.Sender) *PaymentService {
	return &PaymentService{DB: db, Gateway: gateway, Jobs: jobService, Notifier: notifier}
}

// CreateIntent requests an order from the gateway and records a created
// payment keyed by the gateway's order id. A job can accumulate several
// attempts; only a paid one ever drives completion.
func (s *PaymentService) CreateIntent(ownerID, jobID uuid.UUID, amount int64) (*models.Payment, error) {
	if amount <= 0 {
		return nil, apperr.Validation("amount must be positive")
	}

	job, err := s.Jobs.Get(jobID)
	if err != nil {
		return nil, err
	}
	if job.CreatedBy != ownerID {
		return nil, apperr.Authorization("only the job owner can pay for this job")
	}
	if job.AssignedTo == nil {
		return nil, apperr.Conflict("job has no assigned freelancer")
	}

	receipt := "job_" + jobID.String()[:8]
	order, err := s.Gateway.CreateOrder(amount*100, "INR", receipt)
	if err != nil {
		return nil, err
	}

	payment := models.Payment{
		JobID:       jobID,
		PayerID:     ownerID,
		PayeeID:     *job.AssignedTo,
		Amount:      amount,
		Currency:    "INR",
		OrderID:     order.ID,
		Status:      models.PaymentStatusCreated,
		Description: fmt.Sprintf("Payment for job: %s", job.Title),
	}
	if err := s.DB.Create(&payment).Error; err != nil {
		return nil, apperr.Internal("failed to record payment", err)
	}
	return &payment, nil
}

func (s *PaymentService) getByOrderID(orderID string) (*models.Payment, error) {
	var payment models.Payment
	if err := s.DB.First(&payment, "order_id = ?", orderID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("payment not found")
		}
		return nil, apperr.Internal("failed to load payment", err)
	}
	return &payment, nil
}

// Verify reconciles the synchronous checkout return. A signature mismatch
// fails the payment and the caller; a match settles it. Replays of an
// already-paid order are a no-op success.
func (s *PaymentService) Verify(orderID, transactionID, signature string) (*models.Payment, error) {
	payment, err := s.getByOrderID(orderID)
	if err != nil {
		return nil, err
	}

	if !s.Gateway.VerifyPaymentSignature(orderID, transactionID, signature) {
		// Only a created payment is failed; a bad replay must not
		// downgrade a settled one.
		if err := s.DB.Model(&models.Payment{}).
			Where("order_id = ? AND status = ?", orderID, models.PaymentStatusCreated).
			Update("status", models.PaymentStatusFailed).Error; err != nil {
			logrus.WithError(err).WithField("order_id", orderID).Error("failed to mark payment failed")
		}
		return nil, apperr.Authentication("invalid signature")
	}

	settled, err := s.markPaid(orderID, transactionID, signature, payment.JobID)
	if err != nil {
		return nil, err
	}
	if settled {
		s.notifySettled(payment)
	}
	return s.getByOrderID(orderID)
}

// markPaid applies the settlement side effect exactly once: the payment row
// moves created→paid under a status guard and the job completes through the
// idempotent lifecycle transition. Both paths, verify and webhook, end here.
// The boolean reports whether this call performed the transition; a replay of
// an already-paid order returns false so callers skip one-shot side effects
// like notifications.
func (s *PaymentService) markPaid(orderID, transactionID, signature string, jobID uuid.UUID) (bool, error) {
	settled := false
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		now := time.Now()
		res := tx.Model(&models.Payment{}).
			Where("order_id = ? AND status = ?", orderID, models.PaymentStatusCreated).
			Updates(map[string]interface{}{
				"status":         models.PaymentStatusPaid,
				"transaction_id": transactionID,
				"signature":      signature,
				"paid_at":        &now,
			})
		if res.Error != nil {
			return apperr.Internal("failed to mark payment paid", res.Error)
		}
		if res.RowsAffected == 0 {
			var current models.Payment
			if err := tx.First(&current, "order_id = ?", orderID).Error; err != nil {
				return apperr.NotFound("payment not found")
			}
			if current.Status == models.PaymentStatusPaid {
				// Replay; make sure the job-side effect still holds.
				return s.Jobs.TransitionOnSettlement(tx, jobID)
			}
			return apperr.Conflict("payment is not in a settleable state")
		}
		settled = true
		return s.Jobs.TransitionOnSettlement(tx, jobID)
	})
	return settled, err
}

// webhookEvent mirrors the gateway's event envelope.
type webhookEvent struct {
	Event   string `json:"event"`
	Payload struct {
		Payment struct {
			Entity struct {
				ID      string `json:"id"`
				OrderID string `json:"order_id"`
				Status  string `json:"status"`
			} `json:"entity"`
		} `json:"payment"`
	} `json:"payload"`
}

// HandleWebhook is the asynchronous confirmation path. Its signature is
// computed over the raw body with the webhook secret, independently of the
// checkout signature. Unrecognized events are logged and ignored.
func (s *PaymentService) HandleWebhook(rawBody []byte, signature string) error {
	if signature == "" || !s.Gateway.VerifyWebhookSignature(rawBody, signature) {
		return apperr.Authentication("invalid webhook signature")
	}

	var event webhookEvent
	if err := json.Unmarshal(rawBody, &event); err != nil {
		return apperr.Validation("malformed webhook payload")
	}

	entity := event.Payload.Payment.Entity
	log := logrus.WithFields(logrus.Fields{
		"event":    event.Event,
		"order_id": entity.OrderID,
	})

	switch event.Event {
	case "payment.captured":
		payment, err := s.getByOrderID(entity.OrderID)
		if err != nil {
			// The gateway retries on its own schedule; an unknown
			// order is logged, not bounced.
			log.Warn("webhook for unknown order")
			return nil
		}
		settled, err := s.markPaid(entity.OrderID, entity.ID, signature, payment.JobID)
		if err != nil {
			if apperr.KindOf(err) == apperr.KindConflict {
				log.Warn("webhook capture for non-settleable payment")
				return nil
			}
			return err
		}
		if settled {
			s.notifySettled(payment)
		}
		return nil

	case "payment.failed":
		res := s.DB.Model(&models.Payment{}).
			Where("order_id = ? AND status = ?", entity.OrderID, models.PaymentStatusCreated).
			Update("status", models.PaymentStatusFailed)
		if res.Error != nil {
			return apperr.Internal("failed to mark payment failed", res.Error)
		}
		if res.RowsAffected == 0 {
			log.Warn("webhook failure for unknown or settled order")
		}
		return nil

	default:
		log.Info("ignoring unhandled webhook event")
		return nil
	}
}

// History returns the actor's side of the ledger: payments made for a
// job_provider, payments received for a freelancer.
func (s *PaymentService) History(actorID uuid.UUID, role models.Role) ([]models.Payment, error) {
	q := s.DB.Preload("Job").Order("created_at DESC")
	switch role {
	case models.RoleJobProvider:
		q = q.Where("payer_id = ?", actorID)
	case models.RoleFreelancer:
		q = q.Where("payee_id = ?", actorID)
	default:
		return nil, apperr.Authorization("unknown role")
	}

	var out []models.Payment
	if err := q.Find(&out).Error; err != nil {
		return nil, apperr.Internal("failed to list payments", err)
	}
	return out, nil
}

func (s *PaymentService) notifySettled(payment *models.Payment) {
	if s.Notifier == nil {
		return
	}
	var payee models.User
	if err := s.DB.First(&payee, "id = ?", payment.PayeeID).Error; err != nil {
		return
	}
	subject := "Payment received"
	body := fmt.Sprintf("A payment of %d %s for your job has been confirmed.", payment.Amount, payment.Currency)
	if err := s.Notifier.Send(payee.Email, subject, body); err != nil {
		logrus.WithError(err).WithField("payment_id", payment.ID).Warn("failed to send settlement notification")
	}
}
