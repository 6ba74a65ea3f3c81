package models

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sujalbistaa/payboard/internal/apperr"
)

// Submission status values. Stored statuses are compared case-insensitively.
const (
	StatusPending  = "PENDING"
	StatusApproved = "APPROVED"
)

// Vote types.
const (
	VoteUp   = "UP"
	VoteDown = "DOWN"
)

// Report review statuses.
const (
	ReportNew         = "NEW"
	ReportInReview    = "IN_REVIEW"
	ReportActionTaken = "ACTION_TAKEN"
	ReportDismissed   = "DISMISSED"
)

// Moderation actions a reviewer can attach to a report.
const (
	ActionNone             = "NONE"
	ActionHide             = "HIDE"
	ActionUnhide           = "UNHIDE"
	ActionLock             = "LOCK"
	ActionUnlock           = "UNLOCK"
	ActionDeleteSubmission = "DELETE_SUBMISSION"
	ActionRevertApproval   = "REVERT_APPROVAL"
)

// Salary periods accepted on submission.
const (
	PeriodYearly  = "Yearly"
	PeriodMonthly = "Monthly"
)

// MaxReasonLength bounds the free-text reason of a report.
const MaxReasonLength = 500

// MaxInternalNoteLength bounds a moderator's internal note.
const MaxInternalNoteLength = 1000

// ReportStatuses lists every valid report status.
var ReportStatuses = []string{ReportNew, ReportInReview, ReportActionTaken, ReportDismissed}

// ModerationActions lists every valid moderation action.
var ModerationActions = []string{
	ActionNone,
	ActionHide,
	ActionUnhide,
	ActionLock,
	ActionUnlock,
	ActionDeleteSubmission,
	ActionRevertApproval,
}

// Submission is a user-contributed salary record.
type Submission struct {
	ID              uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Status          string    `gorm:"size:16;not null;default:PENDING;index" json:"status"`
	Country         string    `gorm:"size:100;index" json:"country"`
	Company         string    `gorm:"size:200" json:"company"`
	Role            string    `gorm:"size:100" json:"role"`
	ExperienceYears int       `gorm:"not null;default:0" json:"experienceYears"`
	Level           string    `gorm:"size:50" json:"level"`
	SalaryAmount    float64   `gorm:"not null" json:"salaryAmount"`
	Currency        string    `gorm:"size:3" json:"currency"`
	Period          string    `gorm:"size:16" json:"period"`
	IsAnonymous     bool      `gorm:"not null" json:"isAnonymous"`
	SubmittedAt     time.Time `gorm:"not null;index" json:"submittedAt"`
	IsHidden        bool      `gorm:"not null;default:false" json:"isHidden"`
	IsLocked        bool      `gorm:"not null;default:false" json:"isLocked"`
}

// BeforeCreate assigns a random id to new submissions.
func (s *Submission) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}

// DisplayCompany masks the company for anonymous submissions.
func (s *Submission) DisplayCompany() string {
	if s.IsAnonymous {
		return "Anonymous"
	}
	return s.Company
}

// Vote is one user's up or down vote on a submission. The unique index on
// (submission_id, user_id) backs the one-vote-per-user rule.
type Vote struct {
	ID           uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	SubmissionID uuid.UUID  `gorm:"type:uuid;not null;index;uniqueIndex:idx_votes_submission_user" json:"submissionId"`
	UserID       uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:idx_votes_submission_user" json:"userId"`
	VoteType     string     `gorm:"size:8;not null" json:"voteType"`
	CreatedAt    time.Time  `gorm:"not null" json:"createdAt"`
	UpdatedAt    *time.Time `gorm:"autoUpdateTime:false" json:"updatedAt,omitempty"`
}

func (v *Vote) BeforeCreate(tx *gorm.DB) error {
	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}
	return nil
}

// Report is a user-filed flag against a submission.
type Report struct {
	ID               uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	SubmissionID     uuid.UUID  `gorm:"type:uuid;not null;index" json:"submissionId"`
	UserID           uuid.UUID  `gorm:"type:uuid;not null" json:"userId"`
	Reason           string     `gorm:"size:500;not null" json:"reason"`
	CreatedAt        time.Time  `gorm:"not null;index" json:"createdAt"`
	Status           string     `gorm:"size:32;not null;default:NEW" json:"status"`
	InternalNote     *string    `gorm:"size:1000" json:"internalNote"`
	ResolutionAction *string    `gorm:"size:64" json:"resolutionAction"`
	ReviewedByUserID *uuid.UUID `gorm:"type:uuid" json:"reviewedByUserId"`
	ReviewedAt       *time.Time `json:"reviewedAt"`
}

func (r *Report) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}

// All returns every model for migration, in dependency order.
func All() []any {
	return []any{&Submission{}, &Vote{}, &Report{}}
}

// FindSubmission loads a submission by id, returning an apperr NotFound when absent.
func FindSubmission(tx *gorm.DB, id uuid.UUID) (*Submission, error) {
	var sub Submission
	if err := tx.First(&sub, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("Submission not found")
		}
		return nil, fmt.Errorf("failed to load submission: %w", err)
	}
	return &sub, nil
}
