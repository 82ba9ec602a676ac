package payments

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/gigbridge/gigbridge-backend/internal/apperr"
	"github.com/gigbridge/gigbridge-backend/internal/models"
	"github.com/gigbridge/gigbridge-backend/internal/services/jobs"
	"github.com/gigbridge/gigbridge-backend/internal/services/razorpay"
)

const (
	testKeySecret     = "secret_test"
	testWebhookSecret = "webhook_secret_test"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(&models.User{}, &models.Job{}, &models.Bid{}, &models.Payment{}))
	return db
}

func createUser(t *testing.T, db *gorm.DB, role models.Role) *models.User {
	t.Helper()
	u := models.User{
		Name:     "Test User",
		Email:    uuid.New().String() + "@example.com",
		Password: "x",
		Role:     role,
		IsActive: true,
	}
	require.NoError(t, db.Create(&u).Error)
	return &u
}

func signWith(secret, data string) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write([]byte(data))
	return hex.EncodeToString(h.Sum(nil))
}

type recordingSender struct {
	sent []string
}

func (r *recordingSender) Send(recipient, subject, body string) error {
	r.sent = append(r.sent, recipient)
	return nil
}

type fixture struct {
	db         *gorm.DB
	jobs       *jobs.JobService
	payments   *PaymentService
	notifier   *recordingSender
	owner      *models.User
	freelancer *models.User
	job        *models.Job
}

// newFixture builds an assigned job fronted by a fake gateway that hands out
// sequential order ids.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := newTestDB(t)
	jobService := jobs.NewJobService(db)

	orderSeq := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		orderSeq++
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"id":"order_%d","amount":50000,"currency":"INR","status":"created"}`, orderSeq)
	}))
	t.Cleanup(srv.Close)

	gateway := razorpay.NewRazorpayService("key_test", testKeySecret, testWebhookSecret)
	gateway.BaseURL = srv.URL

	notifier := &recordingSender{}
	svc := NewPaymentService(db, gateway, jobService, notifier)

	owner := createUser(t, db, models.RoleJobProvider)
	freelancer := createUser(t, db, models.RoleFreelancer)

	job, err := jobService.Create(owner.ID, jobs.CreateJobInput{
		Title:    "Write product descriptions",
		Category: "writing",
		Budget:   500,
	})
	require.NoError(t, err)
	require.NoError(t, jobService.TransitionOnAccept(db, job.ID, freelancer.ID))

	return &fixture{db: db, jobs: jobService, payments: svc, notifier: notifier, owner: owner, freelancer: freelancer, job: job}
}

func (f *fixture) jobStatus(t *testing.T) models.JobStatus {
	t.Helper()
	job, err := f.jobs.Get(f.job.ID)
	require.NoError(t, err)
	return job.Status
}

func TestCreateIntent(t *testing.T) {
	f := newFixture(t)

	payment, err := f.payments.CreateIntent(f.owner.ID, f.job.ID, 500)
	require.NoError(t, err)

	assert.Equal(t, models.PaymentStatusCreated, payment.Status)
	assert.Equal(t, "order_1", payment.OrderID)
	assert.Equal(t, f.owner.ID, payment.PayerID)
	assert.Equal(t, f.freelancer.ID, payment.PayeeID, "payee must be the assigned freelancer")
	assert.EqualValues(t, 500, payment.Amount)
}

func TestCreateIntentPreconditions(t *testing.T) {
	f := newFixture(t)

	_, err := f.payments.CreateIntent(f.owner.ID, f.job.ID, 0)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	_, err = f.payments.CreateIntent(f.owner.ID, uuid.New(), 500)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))

	_, err = f.payments.CreateIntent(f.freelancer.ID, f.job.ID, 500)
	assert.Equal(t, apperr.KindAuthorization, apperr.KindOf(err))

	// unassigned job
	open, err := f.jobs.Create(f.owner.ID, jobs.CreateJobInput{
		Title:    "Another open job here",
		Category: "writing",
		Budget:   100,
	})
	require.NoError(t, err)
	_, err = f.payments.CreateIntent(f.owner.ID, open.ID, 100)
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))
}

func TestVerifyPayment(t *testing.T) {
	f := newFixture(t)

	payment, err := f.payments.CreateIntent(f.owner.ID, f.job.ID, 500)
	require.NoError(t, err)

	sig := signWith(testKeySecret, payment.OrderID+"|txn_1")
	verified, err := f.payments.Verify(payment.OrderID, "txn_1", sig)
	require.NoError(t, err)

	assert.Equal(t, models.PaymentStatusPaid, verified.Status)
	assert.Equal(t, "txn_1", verified.TransactionID)
	assert.NotNil(t, verified.PaidAt)
	assert.Equal(t, models.JobStatusCompleted, f.jobStatus(t))
}

func TestVerifyPaymentBadSignature(t *testing.T) {
	f := newFixture(t)

	payment, err := f.payments.CreateIntent(f.owner.ID, f.job.ID, 500)
	require.NoError(t, err)

	_, err = f.payments.Verify(payment.OrderID, "txn_1", "deadbeef")
	assert.Equal(t, apperr.KindAuthentication, apperr.KindOf(err))

	var current models.Payment
	require.NoError(t, f.db.First(&current, "order_id = ?", payment.OrderID).Error)
	assert.Equal(t, models.PaymentStatusFailed, current.Status)

	// the job must not complete off a bad signature
	assert.Equal(t, models.JobStatusInProgress, f.jobStatus(t))
}

func TestVerifyPaymentReplay(t *testing.T) {
	f := newFixture(t)

	payment, err := f.payments.CreateIntent(f.owner.ID, f.job.ID, 500)
	require.NoError(t, err)

	sig := signWith(testKeySecret, payment.OrderID+"|txn_1")
	_, err = f.payments.Verify(payment.OrderID, "txn_1", sig)
	require.NoError(t, err)

	// replaying an already-settled verification is a no-op success
	again, err := f.payments.Verify(payment.OrderID, "txn_1", sig)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusPaid, again.Status)
	assert.Equal(t, models.JobStatusCompleted, f.jobStatus(t))
}

func TestSettlementNotifiesOnce(t *testing.T) {
	f := newFixture(t)

	payment, err := f.payments.CreateIntent(f.owner.ID, f.job.ID, 500)
	require.NoError(t, err)

	sig := signWith(testKeySecret, payment.OrderID+"|txn_1")
	_, err = f.payments.Verify(payment.OrderID, "txn_1", sig)
	require.NoError(t, err)
	require.Len(t, f.notifier.sent, 1)
	assert.Equal(t, f.freelancer.Email, f.notifier.sent[0])

	// neither a verify replay nor a webhook redelivery sends again
	_, err = f.payments.Verify(payment.OrderID, "txn_1", sig)
	require.NoError(t, err)

	body := webhookBody(payment.OrderID, "txn_1", "payment.captured")
	require.NoError(t, f.payments.HandleWebhook(body, signWith(testWebhookSecret, string(body))))

	assert.Len(t, f.notifier.sent, 1, "a settlement notification fires exactly once")
}

func TestVerifyPaymentBadReplayDoesNotDowngrade(t *testing.T) {
	f := newFixture(t)

	payment, err := f.payments.CreateIntent(f.owner.ID, f.job.ID, 500)
	require.NoError(t, err)

	sig := signWith(testKeySecret, payment.OrderID+"|txn_1")
	_, err = f.payments.Verify(payment.OrderID, "txn_1", sig)
	require.NoError(t, err)

	_, err = f.payments.Verify(payment.OrderID, "txn_1", "deadbeef")
	assert.Equal(t, apperr.KindAuthentication, apperr.KindOf(err))

	var current models.Payment
	require.NoError(t, f.db.First(&current, "order_id = ?", payment.OrderID).Error)
	assert.Equal(t, models.PaymentStatusPaid, current.Status)
}

func TestVerifyPaymentUnknownOrder(t *testing.T) {
	f := newFixture(t)

	_, err := f.payments.Verify("order_nope", "txn_1", "deadbeef")
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func webhookBody(orderID, paymentID, event string) []byte {
	return []byte(fmt.Sprintf(
		`{"event":%q,"payload":{"payment":{"entity":{"id":%q,"order_id":%q,"status":"captured"}}}}`,
		event, paymentID, orderID))
}

func TestHandleWebhookCaptured(t *testing.T) {
	f := newFixture(t)

	payment, err := f.payments.CreateIntent(f.owner.ID, f.job.ID, 500)
	require.NoError(t, err)

	body := webhookBody(payment.OrderID, "pay_77", "payment.captured")
	sig := signWith(testWebhookSecret, string(body))

	require.NoError(t, f.payments.HandleWebhook(body, sig))

	var current models.Payment
	require.NoError(t, f.db.First(&current, "order_id = ?", payment.OrderID).Error)
	assert.Equal(t, models.PaymentStatusPaid, current.Status)
	assert.Equal(t, "pay_77", current.TransactionID)
	assert.Equal(t, models.JobStatusCompleted, f.jobStatus(t))

	// redelivery is a no-op, not an error
	require.NoError(t, f.payments.HandleWebhook(body, sig))
	assert.Equal(t, models.JobStatusCompleted, f.jobStatus(t))
}

func TestHandleWebhookAfterVerify(t *testing.T) {
	f := newFixture(t)

	payment, err := f.payments.CreateIntent(f.owner.ID, f.job.ID, 500)
	require.NoError(t, err)

	sig := signWith(testKeySecret, payment.OrderID+"|txn_1")
	_, err = f.payments.Verify(payment.OrderID, "txn_1", sig)
	require.NoError(t, err)

	// both settlement routes converge on the same idempotent effect
	body := webhookBody(payment.OrderID, "txn_1", "payment.captured")
	require.NoError(t, f.payments.HandleWebhook(body, signWith(testWebhookSecret, string(body))))
	assert.Equal(t, models.JobStatusCompleted, f.jobStatus(t))
}

func TestHandleWebhookBadSignature(t *testing.T) {
	f := newFixture(t)

	payment, err := f.payments.CreateIntent(f.owner.ID, f.job.ID, 500)
	require.NoError(t, err)

	body := webhookBody(payment.OrderID, "pay_77", "payment.captured")
	err = f.payments.HandleWebhook(body, "deadbeef")
	assert.Equal(t, apperr.KindAuthentication, apperr.KindOf(err))

	err = f.payments.HandleWebhook(body, "")
	assert.Equal(t, apperr.KindAuthentication, apperr.KindOf(err))

	var current models.Payment
	require.NoError(t, f.db.First(&current, "order_id = ?", payment.OrderID).Error)
	assert.Equal(t, models.PaymentStatusCreated, current.Status)
	assert.Equal(t, models.JobStatusInProgress, f.jobStatus(t))
}

func TestHandleWebhookFailed(t *testing.T) {
	f := newFixture(t)

	payment, err := f.payments.CreateIntent(f.owner.ID, f.job.ID, 500)
	require.NoError(t, err)

	body := webhookBody(payment.OrderID, "pay_77", "payment.failed")
	require.NoError(t, f.payments.HandleWebhook(body, signWith(testWebhookSecret, string(body))))

	var current models.Payment
	require.NoError(t, f.db.First(&current, "order_id = ?", payment.OrderID).Error)
	assert.Equal(t, models.PaymentStatusFailed, current.Status)
	assert.Equal(t, models.JobStatusInProgress, f.jobStatus(t))
}

func TestHandleWebhookUnknownEvent(t *testing.T) {
	f := newFixture(t)

	body := []byte(`{"event":"refund.created","payload":{"payment":{"entity":{"id":"x","order_id":"y"}}}}`)
	require.NoError(t, f.payments.HandleWebhook(body, signWith(testWebhookSecret, string(body))),
		"unrecognized events are ignored, never fatal")
}

func TestHandleWebhookUnknownOrder(t *testing.T) {
	f := newFixture(t)

	body := webhookBody("order_unknown", "pay_77", "payment.captured")
	require.NoError(t, f.payments.HandleWebhook(body, signWith(testWebhookSecret, string(body))))
}

func TestHistoryByRole(t *testing.T) {
	f := newFixture(t)

	payment, err := f.payments.CreateIntent(f.owner.ID, f.job.ID, 500)
	require.NoError(t, err)

	asPayer, err := f.payments.History(f.owner.ID, models.RoleJobProvider)
	require.NoError(t, err)
	require.Len(t, asPayer, 1)
	assert.Equal(t, payment.ID, asPayer[0].ID)

	asPayee, err := f.payments.History(f.freelancer.ID, models.RoleFreelancer)
	require.NoError(t, err)
	require.Len(t, asPayee, 1)

	// the opposite side sees nothing
	crossed, err := f.payments.History(f.owner.ID, models.RoleFreelancer)
	require.NoError(t, err)
	assert.Empty(t, crossed)

	_, err = f.payments.History(f.owner.ID, models.Role("admin"))
	assert.Equal(t, apperr.KindAuthorization, apperr.KindOf(err))
}

func TestMultipleIntentsPerJob(t *testing.T) {
	f := newFixture(t)

	first, err := f.payments.CreateIntent(f.owner.ID, f.job.ID, 500)
	require.NoError(t, err)

	// first attempt dies on a bad signature; a retry opens a fresh record
	_, err = f.payments.Verify(first.OrderID, "txn_1", "deadbeef")
	require.Equal(t, apperr.KindAuthentication, apperr.KindOf(err))

	second, err := f.payments.CreateIntent(f.owner.ID, f.job.ID, 500)
	require.NoError(t, err)
	assert.NotEqual(t, first.OrderID, second.OrderID)

	sig := signWith(testKeySecret, second.OrderID+"|txn_2")
	_, err = f.payments.Verify(second.OrderID, "txn_2", sig)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusCompleted, f.jobStatus(t))

	var count int64
	f.db.Model(&models.Payment{}).Where("job_id = ?", f.job.ID).Count(&count)
	assert.EqualValues(t, 2, count)
}
