// Package voting implements the vote ledger and the rule that derives a
// submission's approval status from its net vote score.
package voting

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/sujalbistaa/payboard/internal/apperr"
	"github.com/sujalbistaa/payboard/internal/metrics"
	"github.com/sujalbistaa/payboard/internal/models"
)

const tracerName = "github.com/sujalbistaa/payboard/internal/voting"

// Live feed message types.
const (
	EventVote   = "vote"
	EventStatus = "status"
)

// ThresholdSource supplies the approval threshold at call time.
type ThresholdSource interface {
	ApprovalThreshold() int
}

// StaticThreshold is a fixed ThresholdSource.
type StaticThreshold int

func (t StaticThreshold) ApprovalThreshold() int { return int(t) }

// Publisher receives live updates. *ws.Hub implements it.
type Publisher interface {
	Publish(msgType string, data any)
}

// Summary is the vote tally view returned after every ledger operation.
type Summary struct {
	SubmissionID      uuid.UUID `json:"submissionId"`
	Upvotes           int       `json:"upvotes"`
	Downvotes         int       `json:"downvotes"`
	Score             int       `json:"score"`
	SubmissionStatus  string    `json:"submissionStatus"`
	CurrentUserVote   *string   `json:"currentUserVote"`
	Threshold         int       `json:"threshold"`
	ThresholdProgress int       `json:"thresholdProgress"`
	IsHidden          bool      `json:"isHidden"`
	IsLocked          bool      `json:"isLocked"`
}

// StatusChange is published when recomputation flips a submission's status.
type StatusChange struct {
	SubmissionID uuid.UUID `json:"submissionId"`
	Status       string    `json:"status"`
}

type Option func(*Ledger)

func WithMetrics(m *metrics.Metrics) Option {
	return func(l *Ledger) { l.metrics = m }
}

func WithPublisher(p Publisher) Option {
	return func(l *Ledger) { l.publisher = p }
}

func WithLogger(logger *slog.Logger) Option {
	return func(l *Ledger) { l.logger = logger }
}

// WithClock overrides the time source used for vote timestamps.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

// Ledger records at most one vote per (submission, user) and keeps the
// submission status in line with the vote tally.
//
// Writing the vote and recomputing the status are two separate statements.
// Concurrent voters on one submission may therefore recompute from a stale
// tally; the next vote change corrects it.
type Ledger struct {
	db        *gorm.DB
	threshold ThresholdSource
	metrics   *metrics.Metrics
	publisher Publisher
	logger    *slog.Logger
	tracer    trace.Tracer
	now       func() time.Time
}

func NewLedger(db *gorm.DB, threshold ThresholdSource, opts ...Option) *Ledger {
	l := &Ledger{
		db:        db,
		threshold: threshold,
		tracer:    otel.Tracer(tracerName),
		now:       func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.logger == nil {
		l.logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	if l.threshold == nil {
		l.threshold = StaticThreshold(3)
	}
	return l
}

// NormalizeVoteType accepts "up"/"down" in any case and surrounding whitespace.
func NormalizeVoteType(raw string) (string, error) {
	vt := strings.ToUpper(strings.TrimSpace(raw))
	if vt != models.VoteUp && vt != models.VoteDown {
		return "", apperr.InvalidInput("VoteType must be UP or DOWN")
	}
	return vt, nil
}

// TargetStatus is the status a submission with the given score should have.
func TargetStatus(score, threshold int) string {
	if score >= threshold {
		return models.StatusApproved
	}
	return models.StatusPending
}

// Cast inserts the voter's vote or overwrites the type of their existing one,
// then recomputes the submission status.
func (l *Ledger) Cast(ctx context.Context, submissionID, voterID uuid.UUID, rawVoteType string) (*Summary, error) {
	ctx, span := l.tracer.Start(ctx, "voting.Cast", trace.WithAttributes(
		attribute.String("submission.id", submissionID.String()),
	))
	defer span.End()

	voteType, err := NormalizeVoteType(rawVoteType)
	if err != nil {
		return nil, err
	}
	if voterID == uuid.Nil {
		return nil, apperr.Unauthenticated("Invalid token: missing user id claim")
	}
	db := l.db.WithContext(ctx)
	sub, err := models.FindSubmission(db, submissionID)
	if err != nil {
		return nil, err
	}
	if sub.IsLocked {
		return nil, apperr.InvalidState("Submission is locked for moderation")
	}

	now := l.now()
	vote := models.Vote{
		SubmissionID: submissionID,
		UserID:       voterID,
		VoteType:     voteType,
		CreatedAt:    now,
	}
	err = db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "submission_id"}, {Name: "user_id"}},
		DoUpdates: clause.Assignments(map[string]any{
			"vote_type":  voteType,
			"updated_at": now,
		}),
	}).Create(&vote).Error
	if err != nil {
		return nil, fmt.Errorf("failed to record vote: %w", err)
	}
	l.metrics.VoteCast(voteType)

	summary, _, err := l.RecomputeStatus(ctx, submissionID)
	if err != nil {
		return nil, err
	}
	l.publishVote(summary)
	summary.CurrentUserVote = &voteType
	return summary, nil
}

// Remove deletes the voter's vote and recomputes the submission status.
func (l *Ledger) Remove(ctx context.Context, submissionID, voterID uuid.UUID) (*Summary, error) {
	ctx, span := l.tracer.Start(ctx, "voting.Remove", trace.WithAttributes(
		attribute.String("submission.id", submissionID.String()),
	))
	defer span.End()

	if voterID == uuid.Nil {
		return nil, apperr.Unauthenticated("Invalid token: missing user id claim")
	}
	db := l.db.WithContext(ctx)
	sub, err := models.FindSubmission(db, submissionID)
	if err != nil {
		return nil, err
	}
	if sub.IsLocked {
		return nil, apperr.InvalidState("Submission is locked for moderation")
	}

	vote, err := findVote(db, submissionID, voterID)
	if err != nil {
		return nil, err
	}
	if vote == nil {
		return nil, apperr.NotFound("Vote not found")
	}
	if err := db.Delete(&models.Vote{}, "id = ?", vote.ID).Error; err != nil {
		return nil, fmt.Errorf("failed to delete vote: %w", err)
	}
	l.metrics.VoteRemoved(vote.VoteType)

	summary, _, err := l.RecomputeStatus(ctx, submissionID)
	if err != nil {
		return nil, err
	}
	l.publishVote(summary)
	return summary, nil
}

// Summary reports the current tally without touching the status. viewerID
// may be uuid.Nil for anonymous callers. Locked submissions can still be read.
func (l *Ledger) Summary(ctx context.Context, submissionID, viewerID uuid.UUID) (*Summary, error) {
	db := l.db.WithContext(ctx)
	sub, err := models.FindSubmission(db, submissionID)
	if err != nil {
		return nil, err
	}
	tally, err := CountVotes(db, submissionID)
	if err != nil {
		return nil, err
	}
	summary := l.buildSummary(sub, tally)
	if viewerID != uuid.Nil {
		vote, err := findVote(db, submissionID, viewerID)
		if err != nil {
			return nil, err
		}
		if vote != nil {
			vt := vote.VoteType
			summary.CurrentUserVote = &vt
		}
	}
	return summary, nil
}

// RecomputeStatus recounts the votes and persists the derived status if it
// differs from the stored one. It reports whether a write happened; calling
// it again with no vote change never writes.
func (l *Ledger) RecomputeStatus(ctx context.Context, submissionID uuid.UUID) (*Summary, bool, error) {
	db := l.db.WithContext(ctx)
	sub, err := models.FindSubmission(db, submissionID)
	if err != nil {
		return nil, false, err
	}
	tally, err := CountVotes(db, submissionID)
	if err != nil {
		return nil, false, err
	}
	next := TargetStatus(tally.Score(), l.threshold.ApprovalThreshold())
	changed := false
	if !strings.EqualFold(sub.Status, next) {
		err := db.Model(&models.Submission{}).
			Where("id = ?", submissionID).
			Update("status", next).Error
		if err != nil {
			return nil, false, fmt.Errorf("failed to update submission status: %w", err)
		}
		l.logger.Info(
			"submission status changed",
			"component", "voting",
			"submission_id", submissionID.String(),
			"from", sub.Status,
			"to", next,
			"score", tally.Score(),
		)
		sub.Status = next
		changed = true
		l.metrics.StatusChanged(next)
		if l.publisher != nil {
			l.publisher.Publish(EventStatus, StatusChange{SubmissionID: submissionID, Status: next})
		}
	}
	return l.buildSummary(sub, tally), changed, nil
}

func (l *Ledger) buildSummary(sub *models.Submission, tally Tally) *Summary {
	return &Summary{
		SubmissionID:      sub.ID,
		Upvotes:           tally.Upvotes,
		Downvotes:         tally.Downvotes,
		Score:             tally.Score(),
		SubmissionStatus:  sub.Status,
		Threshold:         l.threshold.ApprovalThreshold(),
		ThresholdProgress: tally.Progress(),
		IsHidden:          sub.IsHidden,
		IsLocked:          sub.IsLocked,
	}
}

// publishVote broadcasts the tally; the caller's own vote is never included.
func (l *Ledger) publishVote(summary *Summary) {
	if l.publisher == nil {
		return
	}
	public := *summary
	public.CurrentUserVote = nil
	l.publisher.Publish(EventVote, public)
}

func findVote(db *gorm.DB, submissionID, userID uuid.UUID) (*models.Vote, error) {
	var votes []models.Vote
	err := db.Where("submission_id = ? AND user_id = ?", submissionID, userID).
		Limit(1).
		Find(&votes).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load vote: %w", err)
	}
	if len(votes) == 0 {
		return nil, nil
	}
	return &votes[0], nil
}
