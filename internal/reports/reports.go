// Package reports implements the abuse report queue and the moderation
// actions a reviewer can apply while resolving a report.
package reports

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/sujalbistaa/payboard/internal/apperr"
	"github.com/sujalbistaa/payboard/internal/metrics"
	"github.com/sujalbistaa/payboard/internal/models"
	"github.com/sujalbistaa/payboard/internal/salaries"
	"github.com/sujalbistaa/payboard/internal/voting"
)

const tracerName = "github.com/sujalbistaa/payboard/internal/reports"

// EventModeration is the live feed message type for applied moderation actions.
const EventModeration = "moderation"

// Moderation is published after a review applied an action other than NONE.
type Moderation struct {
	SubmissionID uuid.UUID `json:"submissionId"`
	ReportID     uuid.UUID `json:"reportId"`
	Action       string    `json:"action"`
}

type Option func(*Service)

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithPublisher(p voting.Publisher) Option {
	return func(s *Service) { s.publisher = p }
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// Service files reports and runs the moderator review workflow. Callers are
// responsible for checking that reviewers hold a moderator role.
type Service struct {
	db        *gorm.DB
	threshold voting.ThresholdSource
	metrics   *metrics.Metrics
	publisher voting.Publisher
	logger    *slog.Logger
	tracer    trace.Tracer
	now       func() time.Time
}

func NewService(db *gorm.DB, threshold voting.ThresholdSource, opts ...Option) *Service {
	s := &Service{
		db:        db,
		threshold: threshold,
		tracer:    otel.Tracer(tracerName),
		now:       func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	if s.threshold == nil {
		s.threshold = voting.StaticThreshold(3)
	}
	return s
}

// Create files a report against a submission. The reason is trimmed and must
// be non-empty and at most MaxReasonLength characters.
func (s *Service) Create(ctx context.Context, submissionID, reporterID uuid.UUID, reason string) (*models.Report, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, apperr.InvalidInput("Reason is required")
	}
	if utf8.RuneCountInString(reason) > models.MaxReasonLength {
		return nil, apperr.InvalidInput("Reason must be at most %d characters", models.MaxReasonLength)
	}
	if reporterID == uuid.Nil {
		return nil, apperr.Unauthenticated("Invalid token: missing user id claim")
	}
	db := s.db.WithContext(ctx)
	sub, err := models.FindSubmission(db, submissionID)
	if err != nil {
		return nil, err
	}
	if sub.IsLocked {
		return nil, apperr.InvalidState("Submission is locked for moderation")
	}
	report := &models.Report{
		SubmissionID: submissionID,
		UserID:       reporterID,
		Reason:       reason,
		CreatedAt:    s.now(),
		Status:       models.ReportNew,
	}
	if err := db.Create(report).Error; err != nil {
		return nil, fmt.Errorf("failed to create report: %w", err)
	}
	s.metrics.ReportCreated()
	s.logger.Info(
		"report created",
		"component", "reports",
		"report_id", report.ID.String(),
		"submission_id", submissionID.String(),
	)
	return report, nil
}

// Delete removes a report without touching its submission.
func (s *Service) Delete(ctx context.Context, reportID uuid.UUID) error {
	res := s.db.WithContext(ctx).Delete(&models.Report{}, "id = ?", reportID)
	if res.Error != nil {
		return fmt.Errorf("failed to delete report: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("Report not found")
	}
	return nil
}

func findReport(db *gorm.DB, id uuid.UUID) (*models.Report, error) {
	var report models.Report
	if err := db.First(&report, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("Report not found")
		}
		return nil, fmt.Errorf("failed to load report %s: %w", id, err)
	}
	return &report, nil
}

// normalizeEnum trims and upper-cases raw, returning it if it is in allowed.
func normalizeEnum(raw string, allowed []string) (string, bool) {
	v := strings.ToUpper(strings.TrimSpace(raw))
	return v, slices.Contains(allowed, v)
}

// ReportCounts counts every report filed per submission.
func ReportCounts(reports []models.Report) map[uuid.UUID]int {
	counts := make(map[uuid.UUID]int)
	for _, r := range reports {
		counts[r.SubmissionID]++
	}
	return counts
}

// VoteSummary is the tally block of a report detail.
type VoteSummary struct {
	Upvotes           int `json:"upvotes"`
	Downvotes         int `json:"downvotes"`
	Score             int `json:"score"`
	Threshold         int `json:"threshold"`
	ThresholdProgress int `json:"thresholdProgress"`
}

// HistoryEntry is one report in a submission's report history.
type HistoryEntry struct {
	ID        uuid.UUID `json:"reportId"`
	UserID    uuid.UUID `json:"userId"`
	Reason    string    `json:"reason"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
}

// Detail is the moderator view of one report.
type Detail struct {
	ID               uuid.UUID      `json:"reportId"`
	SubmissionID     uuid.UUID      `json:"submissionId"`
	UserID           uuid.UUID      `json:"userId"`
	Reason           string         `json:"reason"`
	CreatedAt        time.Time      `json:"createdAt"`
	Status           string         `json:"reportStatus"`
	InternalNote     *string        `json:"internalNote"`
	ResolutionAction *string        `json:"resolutionAction"`
	ReviewedByUserID *uuid.UUID     `json:"reviewedByUserId"`
	ReviewedAt       *time.Time     `json:"reviewedAt"`
	Submission       salaries.View  `json:"submission"`
	Votes            VoteSummary    `json:"voteSummary"`
	History          []HistoryEntry `json:"reportHistory"`
}

// Detail loads a report with its submission, tally and the submission's full
// report history, newest first. A report whose submission was deleted is NotFound.
func (s *Service) Detail(ctx context.Context, reportID uuid.UUID) (*Detail, error) {
	db := s.db.WithContext(ctx)
	report, err := findReport(db, reportID)
	if err != nil {
		return nil, err
	}
	sub, err := models.FindSubmission(db, report.SubmissionID)
	if err != nil {
		return nil, err
	}
	tally, err := voting.CountVotes(db, sub.ID)
	if err != nil {
		return nil, err
	}
	var history []models.Report
	err = db.Where("submission_id = ?", sub.ID).
		Order("created_at desc").
		Find(&history).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load report history: %w", err)
	}

	detail := &Detail{
		ID:               report.ID,
		SubmissionID:     report.SubmissionID,
		UserID:           report.UserID,
		Reason:           report.Reason,
		CreatedAt:        report.CreatedAt,
		Status:           report.Status,
		InternalNote:     report.InternalNote,
		ResolutionAction: report.ResolutionAction,
		ReviewedByUserID: report.ReviewedByUserID,
		ReviewedAt:       report.ReviewedAt,
		Submission:       salaries.NewView(sub),
		Votes: VoteSummary{
			Upvotes:           tally.Upvotes,
			Downvotes:         tally.Downvotes,
			Score:             tally.Score(),
			Threshold:         s.threshold.ApprovalThreshold(),
			ThresholdProgress: tally.Progress(),
		},
		History: make([]HistoryEntry, 0, len(history)),
	}
	for _, h := range history {
		detail.History = append(detail.History, HistoryEntry{
			ID:        h.ID,
			UserID:    h.UserID,
			Reason:    h.Reason,
			Status:    h.Status,
			CreatedAt: h.CreatedAt,
		})
	}
	return detail, nil
}

func (s *Service) span(ctx context.Context, name string, id uuid.UUID) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, name, trace.WithAttributes(attribute.String("report.id", id.String())))
}
