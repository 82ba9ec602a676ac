package bids

import (
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

type fixture struct {
	db         *gorm.DB
	jobs       *jobs.JobService
	bids       *BidService
	owner      *models.User
	freelancer *models.User
	job        *models.Job
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := newTestDB(t)
	jobService := jobs.NewJobService(db)
	bidService := NewBidService(db, jobService)

	owner := createUser(t, db, models.RoleJobProvider)
	freelancer := createUser(t, db, models.RoleFreelancer)

	job, err := jobService.Create(owner.ID, jobs.CreateJobInput{
		Title:    "Design a logo for a coffee shop",
		Category: "design",
		Budget:   500,
	})
	require.NoError(t, err)

	return &fixture{db: db, jobs: jobService, bids: bidService, owner: owner, freelancer: freelancer, job: job}
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

func validBid() PlaceBidInput {
	return PlaceBidInput{BidAmount: 400, Message: "I can deliver this in three days", DeliveryTime: 3}
}

func (f *fixture) jobStatus(t *testing.T) *models.Job {
	t.Helper()
	job, err := f.jobs.Get(f.job.ID)
	require.NoError(t, err)
	return job
}

func TestPlaceBid(t *testing.T) {
	f := newFixture(t)

	bid, err := f.bids.Place(f.freelancer.ID, f.job.ID, validBid())
	require.NoError(t, err)
	assert.Equal(t, models.BidStatusPending, bid.Status)

	assert.Equal(t, 1, f.jobStatus(t).BidsCount)
}

func TestPlaceBidValidation(t *testing.T) {
	f := newFixture(t)

	cases := []struct {
		name   string
		mutate func(*PlaceBidInput)
		field  string
	}{
		{"zero amount", func(in *PlaceBidInput) { in.BidAmount = 0 }, "bid_amount"},
		{"short message", func(in *PlaceBidInput) { in.Message = "too short" }, "message"},
		{"zero delivery", func(in *PlaceBidInput) { in.DeliveryTime = 0 }, "delivery_time"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			in := validBid()
			tc.mutate(&in)

			_, err := f.bids.Place(f.freelancer.ID, f.job.ID, in)
			require.Error(t, err)
			assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

			var e *apperr.Error
			require.ErrorAs(t, err, &e)
			assert.Contains(t, e.Fields, tc.field)
		})
	}
}

func TestPlaceBidMissingJob(t *testing.T) {
	f := newFixture(t)

	_, err := f.bids.Place(f.freelancer.ID, uuid.New(), validBid())
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func TestPlaceBidDuplicate(t *testing.T) {
	f := newFixture(t)

	_, err := f.bids.Place(f.freelancer.ID, f.job.ID, validBid())
	require.NoError(t, err)

	_, err = f.bids.Place(f.freelancer.ID, f.job.ID, validBid())
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))

	assert.Equal(t, 1, f.jobStatus(t).BidsCount, "duplicate must not bump the counter")
}

func TestPlaceBidClosedJob(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.jobs.TransitionOnAccept(f.db, f.job.ID, f.freelancer.ID))

	other := createUser(t, f.db, models.RoleFreelancer)
	_, err := f.bids.Place(other.ID, f.job.ID, validBid())
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))
}

func TestPlaceBidOnOwnJob(t *testing.T) {
	f := newFixture(t)

	_, err := f.bids.Place(f.owner.ID, f.job.ID, validBid())
	assert.Equal(t, apperr.KindAuthorization, apperr.KindOf(err))
}

// Two freelancers bid, the owner accepts one: the job is assigned and the
// sibling bid is rejected.
func TestAcceptBid(t *testing.T) {
	f := newFixture(t)
	freelancerB := createUser(t, f.db, models.RoleFreelancer)

	bidA, err := f.bids.Place(f.freelancer.ID, f.job.ID, PlaceBidInput{BidAmount: 400, Message: "First bidder, fast turnaround", DeliveryTime: 3})
	require.NoError(t, err)
	bidB, err := f.bids.Place(freelancerB.ID, f.job.ID, PlaceBidInput{BidAmount: 450, Message: "Second bidder, more thorough", DeliveryTime: 5})
	require.NoError(t, err)

	accepted, err := f.bids.Accept(f.owner.ID, bidA.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BidStatusAccepted, accepted.Status)

	job := f.jobStatus(t)
	assert.Equal(t, models.JobStatusInProgress, job.Status)
	require.NotNil(t, job.AssignedTo)
	assert.Equal(t, f.freelancer.ID, *job.AssignedTo)

	other, err := f.bids.Get(bidB.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BidStatusRejected, other.Status)
}

func TestAcceptBidTwice(t *testing.T) {
	f := newFixture(t)
	freelancerB := createUser(t, f.db, models.RoleFreelancer)

	bidA, err := f.bids.Place(f.freelancer.ID, f.job.ID, validBid())
	require.NoError(t, err)
	bidB, err := f.bids.Place(freelancerB.ID, f.job.ID, PlaceBidInput{BidAmount: 450, Message: "Second bidder, more thorough", DeliveryTime: 5})
	require.NoError(t, err)

	_, err = f.bids.Accept(f.owner.ID, bidA.ID)
	require.NoError(t, err)

	// the job is no longer open; the second acceptance must lose
	_, err = f.bids.Accept(f.owner.ID, bidB.ID)
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))

	job := f.jobStatus(t)
	assert.Equal(t, f.freelancer.ID, *job.AssignedTo)

	var acceptedCount int64
	f.db.Model(&models.Bid{}).
		Where("job_id = ? AND status = ?", f.job.ID, models.BidStatusAccepted).
		Count(&acceptedCount)
	assert.EqualValues(t, 1, acceptedCount, "at most one bid per job reaches accepted")
}

func TestAcceptBidAuthorization(t *testing.T) {
	f := newFixture(t)

	bid, err := f.bids.Place(f.freelancer.ID, f.job.ID, validBid())
	require.NoError(t, err)

	stranger := createUser(t, f.db, models.RoleJobProvider)
	_, err = f.bids.Accept(stranger.ID, bid.ID)
	assert.Equal(t, apperr.KindAuthorization, apperr.KindOf(err))
}

func TestRejectBid(t *testing.T) {
	f := newFixture(t)

	bid, err := f.bids.Place(f.freelancer.ID, f.job.ID, validBid())
	require.NoError(t, err)

	rejected, err := f.bids.Reject(f.owner.ID, bid.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BidStatusRejected, rejected.Status)

	// no job-side effect
	job := f.jobStatus(t)
	assert.Equal(t, models.JobStatusOpen, job.Status)
	assert.Nil(t, job.AssignedTo)

	// already decided
	_, err = f.bids.Reject(f.owner.ID, bid.ID)
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))
}

func TestDeleteBid(t *testing.T) {
	f := newFixture(t)

	bid, err := f.bids.Place(f.freelancer.ID, f.job.ID, validBid())
	require.NoError(t, err)
	require.Equal(t, 1, f.jobStatus(t).BidsCount)

	require.NoError(t, f.bids.Delete(f.freelancer.ID, bid.ID))
	assert.Equal(t, 0, f.jobStatus(t).BidsCount)

	_, err = f.bids.Get(bid.ID)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func TestDeleteBidAfterAccept(t *testing.T) {
	f := newFixture(t)

	bid, err := f.bids.Place(f.freelancer.ID, f.job.ID, validBid())
	require.NoError(t, err)
	_, err = f.bids.Accept(f.owner.ID, bid.ID)
	require.NoError(t, err)

	err = f.bids.Delete(f.freelancer.ID, bid.ID)
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err), "decided bids are immutable")

	assert.Equal(t, 1, f.jobStatus(t).BidsCount)
}

func TestDeleteBidAuthorization(t *testing.T) {
	f := newFixture(t)

	bid, err := f.bids.Place(f.freelancer.ID, f.job.ID, validBid())
	require.NoError(t, err)

	other := createUser(t, f.db, models.RoleFreelancer)
	err = f.bids.Delete(other.ID, bid.ID)
	assert.Equal(t, apperr.KindAuthorization, apperr.KindOf(err))
}

func TestListForJobNewestFirst(t *testing.T) {
	f := newFixture(t)
	freelancerB := createUser(t, f.db, models.RoleFreelancer)

	_, err := f.bids.Place(f.freelancer.ID, f.job.ID, validBid())
	require.NoError(t, err)
	_, err = f.bids.Place(freelancerB.ID, f.job.ID, PlaceBidInput{BidAmount: 450, Message: "Second bidder, more thorough", DeliveryTime: 5})
	require.NoError(t, err)

	out, err := f.bids.ListForJob(f.job.ID)
	require.NoError(t, err)
	require.Len(t, out, 2)
}
