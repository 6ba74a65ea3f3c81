// Package salaries stores salary submissions and serves their public views.
package salaries

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sujalbistaa/payboard/internal/apperr"
	"github.com/sujalbistaa/payboard/internal/metrics"
	"github.com/sujalbistaa/payboard/internal/models"
)

// CreateInput is the client payload for a new submission. Status, timestamps
// and moderation flags are not accepted from clients.
type CreateInput struct {
	Country         string  `json:"country"         binding:"required,max=100"`
	Company         string  `json:"company"         binding:"required,max=200"`
	Role            string  `json:"role"            binding:"required,max=100"`
	ExperienceYears int     `json:"experienceYears" binding:"min=0,max=60"`
	Level           string  `json:"level"           binding:"required,max=50"`
	SalaryAmount    float64 `json:"salaryAmount"    binding:"required,gt=0"`
	Currency        string  `json:"currency"        binding:"required,len=3,alpha"`
	Period          string  `json:"period"          binding:"required"`
	IsAnonymous     *bool   `json:"isAnonymous"`
}

// View is the public shape of a submission; the company is masked for
// anonymous submissions.
type View struct {
	ID              uuid.UUID `json:"id"`
	Country         string    `json:"country"`
	Company         string    `json:"company"`
	Role            string    `json:"role"`
	Level           string    `json:"level"`
	ExperienceYears int       `json:"experienceYears"`
	SalaryAmount    float64   `json:"salaryAmount"`
	Currency        string    `json:"currency"`
	Period          string    `json:"period"`
	IsAnonymous     bool      `json:"isAnonymous"`
	Status          string    `json:"status"`
	SubmittedAt     time.Time `json:"submittedAt"`
	IsHidden        bool      `json:"isHidden"`
	IsLocked        bool      `json:"isLocked"`
}

func NewView(sub *models.Submission) View {
	return View{
		ID:              sub.ID,
		Country:         sub.Country,
		Company:         sub.DisplayCompany(),
		Role:            sub.Role,
		Level:           sub.Level,
		ExperienceYears: sub.ExperienceYears,
		SalaryAmount:    sub.SalaryAmount,
		Currency:        sub.Currency,
		Period:          sub.Period,
		IsAnonymous:     sub.IsAnonymous,
		Status:          sub.Status,
		SubmittedAt:     sub.SubmittedAt,
		IsHidden:        sub.IsHidden,
		IsLocked:        sub.IsLocked,
	}
}

type Store struct {
	db      *gorm.DB
	metrics *metrics.Metrics
	now     func() time.Time
}

func NewStore(db *gorm.DB, m *metrics.Metrics) *Store {
	return &Store{
		db:      db,
		metrics: m,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func normalizePeriod(raw string) (string, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "yearly":
		return models.PeriodYearly, true
	case "monthly":
		return models.PeriodMonthly, true
	default:
		return "", false
	}
}

func (in CreateInput) validate() error {
	required := map[string]string{
		"country":  in.Country,
		"company":  in.Company,
		"role":     in.Role,
		"level":    in.Level,
		"currency": in.Currency,
	}
	for _, field := range []string{"country", "company", "role", "level", "currency"} {
		if strings.TrimSpace(required[field]) == "" {
			return apperr.InvalidInput("%s is required", field)
		}
	}
	if in.SalaryAmount <= 0 {
		return apperr.InvalidInput("salaryAmount must be greater than zero")
	}
	if in.ExperienceYears < 0 || in.ExperienceYears > 60 {
		return apperr.InvalidInput("experienceYears must be between 0 and 60")
	}
	if _, ok := normalizePeriod(in.Period); !ok {
		return apperr.InvalidInput("period must be Yearly or Monthly")
	}
	return nil
}

// Create stores a new submission. The status is always PENDING and the
// submission time is always the server clock.
func (s *Store) Create(ctx context.Context, in CreateInput) (*models.Submission, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	period, _ := normalizePeriod(in.Period)
	anonymous := true
	if in.IsAnonymous != nil {
		anonymous = *in.IsAnonymous
	}
	sub := &models.Submission{
		Status:          models.StatusPending,
		Country:         strings.TrimSpace(in.Country),
		Company:         strings.TrimSpace(in.Company),
		Role:            strings.TrimSpace(in.Role),
		ExperienceYears: in.ExperienceYears,
		Level:           strings.TrimSpace(in.Level),
		SalaryAmount:    in.SalaryAmount,
		Currency:        strings.ToUpper(strings.TrimSpace(in.Currency)),
		Period:          period,
		IsAnonymous:     anonymous,
		SubmittedAt:     s.now(),
	}
	if err := s.db.WithContext(ctx).Create(sub).Error; err != nil {
		return nil, fmt.Errorf("failed to create submission: %w", err)
	}
	s.metrics.SubmissionCreated()
	return sub, nil
}

// List returns submissions newest first. Hidden submissions are only
// included when includeHidden is set.
func (s *Store) List(ctx context.Context, includeHidden bool) ([]View, error) {
	var subs []models.Submission
	query := s.db.WithContext(ctx).Order("submitted_at desc")
	if !includeHidden {
		query = query.Where("is_hidden = ?", false)
	}
	if err := query.Find(&subs).Error; err != nil {
		return nil, fmt.Errorf("failed to list submissions: %w", err)
	}
	views := make([]View, 0, len(subs))
	for i := range subs {
		views = append(views, NewView(&subs[i]))
	}
	return views, nil
}

// Get returns one submission. Hidden submissions are NotFound unless includeHidden is set.
func (s *Store) Get(ctx context.Context, id uuid.UUID, includeHidden bool) (*View, error) {
	sub, err := models.FindSubmission(s.db.WithContext(ctx), id)
	if err != nil {
		return nil, err
	}
	if sub.IsHidden && !includeHidden {
		return nil, apperr.NotFound("Submission not found")
	}
	view := NewView(sub)
	return &view, nil
}
