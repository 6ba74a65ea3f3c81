package reports

import (
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/sujalbistaa/payboard/internal/apperr"
	"github.com/sujalbistaa/payboard/internal/db/dbtest"
	"github.com/sujalbistaa/payboard/internal/models"
	"github.com/sujalbistaa/payboard/internal/voting"
)

type recordingPublisher struct {
	mu       sync.Mutex
	messages []string
}

func (p *recordingPublisher) Publish(msgType string, _ any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.messages = append(p.messages, msgType)
}

func newSubmission(t *testing.T, gdb *gorm.DB, mutate ...func(*models.Submission)) *models.Submission {
	t.Helper()
	sub := &models.Submission{
		Status:       models.StatusPending,
		Country:      "Nepal",
		Company:      "Acme",
		Role:         "Data Engineer",
		SalaryAmount: 90000,
		Currency:     "USD",
		Period:       models.PeriodYearly,
		IsAnonymous:  true,
		SubmittedAt:  time.Now().UTC(),
	}
	for _, m := range mutate {
		m(sub)
	}
	require.NoError(t, gdb.Create(sub).Error)
	return sub
}

func newReport(t *testing.T, gdb *gorm.DB, submissionID uuid.UUID, reason string, createdAt time.Time) *models.Report {
	t.Helper()
	r := &models.Report{
		SubmissionID: submissionID,
		UserID:       uuid.New(),
		Reason:       reason,
		CreatedAt:    createdAt,
		Status:       models.ReportNew,
	}
	require.NoError(t, gdb.Create(r).Error)
	return r
}

func addVotes(t *testing.T, gdb *gorm.DB, submissionID uuid.UUID, voteType string, n int) {
	t.Helper()
	for range n {
		require.NoError(t, gdb.Create(&models.Vote{
			SubmissionID: submissionID,
			UserID:       uuid.New(),
			VoteType:     voteType,
			CreatedAt:    time.Now().UTC(),
		}).Error)
	}
}

func TestCreate(t *testing.T) {
	gdb := dbtest.Open(t)
	svc := NewService(gdb, voting.StaticThreshold(3))
	sub := newSubmission(t, gdb)
	reporter := uuid.New()

	report, err := svc.Create(t.Context(), sub.ID, reporter, "  looks fake  ")
	require.NoError(t, err)
	assert.Equal(t, "looks fake", report.Reason)
	assert.Equal(t, models.ReportNew, report.Status)
	assert.Equal(t, reporter, report.UserID)
	assert.False(t, report.CreatedAt.IsZero())
}

func TestCreateRejections(t *testing.T) {
	gdb := dbtest.Open(t)
	svc := NewService(gdb, nil)
	open := newSubmission(t, gdb)
	locked := newSubmission(t, gdb, func(s *models.Submission) { s.IsLocked = true })

	tests := []struct {
		name         string
		submissionID uuid.UUID
		reporterID   uuid.UUID
		reason       string
		want         error
	}{
		{"blank reason", open.ID, uuid.New(), "   ", apperr.ErrInvalidInput},
		{"reason too long", open.ID, uuid.New(), strings.Repeat("x", models.MaxReasonLength+1), apperr.ErrInvalidInput},
		{"no reporter", open.ID, uuid.Nil, "spam", apperr.ErrUnauthenticated},
		{"missing submission", uuid.New(), uuid.New(), "spam", apperr.ErrNotFound},
		{"locked submission", locked.ID, uuid.New(), "spam", apperr.ErrInvalidState},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Create(t.Context(), tt.submissionID, tt.reporterID, tt.reason)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	var count int64
	require.NoError(t, gdb.Model(&models.Report{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestCreateAcceptsMaxLengthReason(t *testing.T) {
	gdb := dbtest.Open(t)
	svc := NewService(gdb, nil)
	sub := newSubmission(t, gdb)

	_, err := svc.Create(t.Context(), sub.ID, uuid.New(), strings.Repeat("é", models.MaxReasonLength))
	assert.NoError(t, err)
}

func TestDelete(t *testing.T) {
	gdb := dbtest.Open(t)
	svc := NewService(gdb, nil)
	sub := newSubmission(t, gdb)
	report := newReport(t, gdb, sub.ID, "spam", time.Now().UTC())

	require.NoError(t, svc.Delete(t.Context(), report.ID))
	assert.ErrorIs(t, svc.Delete(t.Context(), report.ID), apperr.ErrNotFound)

	_, err := models.FindSubmission(gdb, sub.ID)
	assert.NoError(t, err, "deleting a report leaves its submission alone")
}

func TestDetail(t *testing.T) {
	gdb := dbtest.Open(t)
	svc := NewService(gdb, voting.StaticThreshold(4))
	sub := newSubmission(t, gdb)
	base := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	older := newReport(t, gdb, sub.ID, "duplicate", base)
	newer := newReport(t, gdb, sub.ID, "fake numbers", base.Add(time.Hour))
	other := newSubmission(t, gdb)
	newReport(t, gdb, other.ID, "unrelated", base.Add(2*time.Hour))
	addVotes(t, gdb, sub.ID, models.VoteUp, 1)
	addVotes(t, gdb, sub.ID, models.VoteDown, 3)

	detail, err := svc.Detail(t.Context(), older.ID)
	require.NoError(t, err)

	assert.Equal(t, older.ID, detail.ID)
	assert.Equal(t, "Anonymous", detail.Submission.Company)
	assert.Equal(t, VoteSummary{Upvotes: 1, Downvotes: 3, Score: -2, Threshold: 4, ThresholdProgress: 0}, detail.Votes)
	require.Len(t, detail.History, 2)
	assert.Equal(t, newer.ID, detail.History[0].ID)
	assert.Equal(t, older.ID, detail.History[1].ID)

	_, err = svc.Detail(t.Context(), uuid.New())
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestDetailOfDeletedSubmission(t *testing.T) {
	gdb := dbtest.Open(t)
	svc := NewService(gdb, nil)
	sub := newSubmission(t, gdb)
	report := newReport(t, gdb, sub.ID, "spam", time.Now().UTC())
	require.NoError(t, gdb.Delete(&models.Submission{}, "id = ?", sub.ID).Error)

	_, err := svc.Detail(t.Context(), report.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestReviewActions(t *testing.T) {
	tests := []struct {
		name   string
		before func(*models.Submission)
		action string
		check  func(t *testing.T, sub *models.Submission)
	}{
		{
			name:   "hide",
			action: "hide",
			check:  func(t *testing.T, sub *models.Submission) { assert.True(t, sub.IsHidden) },
		},
		{
			name:   "unhide",
			before: func(s *models.Submission) { s.IsHidden = true },
			action: models.ActionUnhide,
			check:  func(t *testing.T, sub *models.Submission) { assert.False(t, sub.IsHidden) },
		},
		{
			name:   "lock",
			action: models.ActionLock,
			check:  func(t *testing.T, sub *models.Submission) { assert.True(t, sub.IsLocked) },
		},
		{
			name:   "unlock",
			before: func(s *models.Submission) { s.IsLocked = true },
			action: models.ActionUnlock,
			check:  func(t *testing.T, sub *models.Submission) { assert.False(t, sub.IsLocked) },
		},
		{
			name:   "revert approval of pending is a no-op",
			action: models.ActionRevertApproval,
			check: func(t *testing.T, sub *models.Submission) {
				assert.Equal(t, models.StatusPending, sub.Status)
			},
		},
		{
			name:   "none leaves the submission untouched",
			action: "",
			check: func(t *testing.T, sub *models.Submission) {
				assert.False(t, sub.IsHidden)
				assert.False(t, sub.IsLocked)
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gdb := dbtest.Open(t)
			svc := NewService(gdb, nil)
			var mutate []func(*models.Submission)
			if tt.before != nil {
				mutate = append(mutate, tt.before)
			}
			sub := newSubmission(t, gdb, mutate...)
			report := newReport(t, gdb, sub.ID, "spam", time.Now().UTC())

			_, err := svc.Review(t.Context(), report.ID, uuid.New(), ReviewInput{
				Status:           models.ReportActionTaken,
				ModerationAction: tt.action,
			})
			require.NoError(t, err)

			after, err := models.FindSubmission(gdb, sub.ID)
			require.NoError(t, err)
			tt.check(t, after)
		})
	}
}

func TestReviewRecordsDecision(t *testing.T) {
	gdb := dbtest.Open(t)
	pub := &recordingPublisher{}
	fixed := time.Date(2026, 6, 1, 9, 30, 0, 0, time.UTC)
	svc := NewService(gdb, nil, WithPublisher(pub), WithClock(func() time.Time { return fixed }))
	sub := newSubmission(t, gdb)
	report := newReport(t, gdb, sub.ID, "spam", fixed.Add(-time.Hour))
	reviewer := uuid.New()
	note := "  confirmed with HR data  "

	result, err := svc.Review(t.Context(), report.ID, reviewer, ReviewInput{
		Status:           "action_taken",
		ModerationAction: " hide ",
		InternalNote:     &note,
	})
	require.NoError(t, err)
	assert.Equal(t, "Report updated", result.Message)
	assert.Equal(t, report.ID, result.ReportID)
	assert.Equal(t, models.ReportActionTaken, result.Status)
	require.NotNil(t, result.ModerationAction)
	assert.Equal(t, models.ActionHide, *result.ModerationAction)

	var stored models.Report
	require.NoError(t, gdb.First(&stored, "id = ?", report.ID).Error)
	assert.Equal(t, models.ReportActionTaken, stored.Status)
	require.NotNil(t, stored.InternalNote)
	assert.Equal(t, "confirmed with HR data", *stored.InternalNote)
	require.NotNil(t, stored.ResolutionAction)
	assert.Equal(t, models.ActionHide, *stored.ResolutionAction)
	require.NotNil(t, stored.ReviewedByUserID)
	assert.Equal(t, reviewer, *stored.ReviewedByUserID)
	require.NotNil(t, stored.ReviewedAt)
	assert.True(t, stored.ReviewedAt.Equal(fixed))
	assert.Equal(t, []string{EventModeration}, pub.messages)

	blank := "   "
	result, err = svc.Review(t.Context(), report.ID, reviewer, ReviewInput{
		Status:       models.ReportDismissed,
		InternalNote: &blank,
	})
	require.NoError(t, err)
	assert.Nil(t, result.ModerationAction)

	require.NoError(t, gdb.First(&stored, "id = ?", report.ID).Error)
	assert.Equal(t, models.ReportDismissed, stored.Status)
	assert.Nil(t, stored.InternalNote, "a blank note clears the stored note")
	assert.Nil(t, stored.ResolutionAction, "NONE is stored as no action")
	assert.Len(t, pub.messages, 1, "NONE publishes nothing")
}

func TestReviewValidation(t *testing.T) {
	gdb := dbtest.Open(t)
	svc := NewService(gdb, nil)
	sub := newSubmission(t, gdb)
	report := newReport(t, gdb, sub.ID, "spam", time.Now().UTC())
	longNote := strings.Repeat("n", models.MaxInternalNoteLength+1)

	tests := []struct {
		name     string
		reportID uuid.UUID
		reviewer uuid.UUID
		in       ReviewInput
		want     error
		message  string
	}{
		{"missing status", report.ID, uuid.New(), ReviewInput{}, apperr.ErrInvalidInput, "Status is required"},
		{"unknown status", report.ID, uuid.New(), ReviewInput{Status: "CLOSED"}, apperr.ErrInvalidInput, ""},
		{"unknown action", report.ID, uuid.New(), ReviewInput{Status: "NEW", ModerationAction: "BAN"}, apperr.ErrInvalidInput, ""},
		{"note too long", report.ID, uuid.New(), ReviewInput{Status: "NEW", InternalNote: &longNote}, apperr.ErrInvalidInput, ""},
		{"no reviewer", report.ID, uuid.Nil, ReviewInput{Status: "NEW"}, apperr.ErrUnauthenticated, ""},
		{"missing report", uuid.New(), uuid.New(), ReviewInput{Status: "NEW"}, apperr.ErrNotFound, "Report not found"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Review(t.Context(), tt.reportID, tt.reviewer, tt.in)
			require.ErrorIs(t, err, tt.want)
			if tt.message != "" {
				assert.Equal(t, tt.message, apperr.Message(err))
			}
		})
	}

	var stored models.Report
	require.NoError(t, gdb.First(&stored, "id = ?", report.ID).Error)
	assert.Equal(t, models.ReportNew, stored.Status)
	assert.Nil(t, stored.ReviewedAt)
}

func TestReviewDeleteSubmission(t *testing.T) {
	gdb := dbtest.Open(t)
	svc := NewService(gdb, nil)
	sub := newSubmission(t, gdb)
	report := newReport(t, gdb, sub.ID, "spam", time.Now().UTC())
	addVotes(t, gdb, sub.ID, models.VoteUp, 2)

	_, err := svc.Review(t.Context(), report.ID, uuid.New(), ReviewInput{
		Status:           models.ReportActionTaken,
		ModerationAction: models.ActionDeleteSubmission,
	})
	require.NoError(t, err)

	_, err = models.FindSubmission(gdb, sub.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	var votes int64
	require.NoError(t, gdb.Model(&models.Vote{}).Where("submission_id = ?", sub.ID).Count(&votes).Error)
	assert.Zero(t, votes)

	var stored models.Report
	require.NoError(t, gdb.First(&stored, "id = ?", report.ID).Error)
	assert.Equal(t, models.ReportActionTaken, stored.Status)
	require.NotNil(t, stored.ResolutionAction)
	assert.Equal(t, models.ActionDeleteSubmission, *stored.ResolutionAction)

	page, err := svc.List(t.Context(), ListQuery{PageSize: DefaultPageSize})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, SubmissionStatusUnknown, page.Items[0].SubmissionStatus)
}

func TestRevertApprovalThenNextVoteReapproves(t *testing.T) {
	gdb := dbtest.Open(t)
	pub := &recordingPublisher{}
	ledger := voting.NewLedger(gdb, voting.StaticThreshold(3))
	svc := NewService(gdb, voting.StaticThreshold(3), WithPublisher(pub))
	sub := newSubmission(t, gdb)

	for range 3 {
		_, err := ledger.Cast(t.Context(), sub.ID, uuid.New(), models.VoteUp)
		require.NoError(t, err)
	}
	approved, err := models.FindSubmission(gdb, sub.ID)
	require.NoError(t, err)
	require.Equal(t, models.StatusApproved, approved.Status)

	report := newReport(t, gdb, sub.ID, "inflated", time.Now().UTC())
	_, err = svc.Review(t.Context(), report.ID, uuid.New(), ReviewInput{
		Status:           models.ReportActionTaken,
		ModerationAction: models.ActionRevertApproval,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{EventModeration, voting.EventStatus}, pub.messages)

	reverted, err := models.FindSubmission(gdb, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, reverted.Status)

	var votes int64
	require.NoError(t, gdb.Model(&models.Vote{}).Where("submission_id = ?", sub.ID).Count(&votes).Error)
	assert.EqualValues(t, 3, votes, "reverting approval keeps the votes")

	summary, err := ledger.Cast(t.Context(), sub.ID, uuid.New(), models.VoteUp)
	require.NoError(t, err)
	assert.Equal(t, models.StatusApproved, summary.SubmissionStatus)
}
