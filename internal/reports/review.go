package reports

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sujalbistaa/payboard/internal/apperr"
	"github.com/sujalbistaa/payboard/internal/models"
	"github.com/sujalbistaa/payboard/internal/voting"
)

// ReviewInput is a moderator's decision on a report. A blank action means NONE.
type ReviewInput struct {
	Status           string  `json:"status"`
	ModerationAction string  `json:"moderationAction"`
	InternalNote     *string `json:"internalNote"`
}

// ReviewResult acknowledges an applied review.
type ReviewResult struct {
	Message          string    `json:"message"`
	ReportID         uuid.UUID `json:"reportId"`
	Status           string    `json:"status"`
	ModerationAction *string   `json:"moderationAction"`
}

type review struct {
	status string
	action string
	note   *string
}

func (in ReviewInput) validate() (review, error) {
	if strings.TrimSpace(in.Status) == "" {
		return review{}, apperr.InvalidInput("Status is required")
	}
	status, ok := normalizeEnum(in.Status, models.ReportStatuses)
	if !ok {
		return review{}, apperr.InvalidInput("Invalid report status %q", in.Status)
	}
	action := models.ActionNone
	if strings.TrimSpace(in.ModerationAction) != "" {
		action, ok = normalizeEnum(in.ModerationAction, models.ModerationActions)
		if !ok {
			return review{}, apperr.InvalidInput("Invalid moderation action %q", in.ModerationAction)
		}
	}
	var note *string
	if in.InternalNote != nil {
		if trimmed := strings.TrimSpace(*in.InternalNote); trimmed != "" {
			if utf8.RuneCountInString(trimmed) > models.MaxInternalNoteLength {
				return review{}, apperr.InvalidInput("Internal note must be at most %d characters", models.MaxInternalNoteLength)
			}
			note = &trimmed
		}
	}
	return review{status: status, action: action, note: note}, nil
}

// Review applies the moderation action to the report's submission and records
// the decision on the report, in one transaction. The report is updated even
// when the action deleted its submission.
func (s *Service) Review(ctx context.Context, reportID, reviewerID uuid.UUID, in ReviewInput) (*ReviewResult, error) {
	ctx, span := s.span(ctx, "reports.Review", reportID)
	defer span.End()

	rv, err := in.validate()
	if err != nil {
		return nil, err
	}
	if reviewerID == uuid.Nil {
		return nil, apperr.Unauthenticated("Invalid token: missing user id claim")
	}

	var (
		submissionID uuid.UUID
		reverted     bool
	)
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		report, err := findReport(tx, reportID)
		if err != nil {
			return err
		}
		sub, err := models.FindSubmission(tx, report.SubmissionID)
		if err != nil {
			return err
		}
		submissionID = sub.ID
		if reverted, err = applyAction(tx, sub, rv.action); err != nil {
			return err
		}

		now := s.now()
		report.Status = rv.status
		report.InternalNote = rv.note
		report.ResolutionAction = nil
		if rv.action != models.ActionNone {
			action := rv.action
			report.ResolutionAction = &action
		}
		report.ReviewedByUserID = &reviewerID
		report.ReviewedAt = &now
		if err := tx.Save(report).Error; err != nil {
			return fmt.Errorf("failed to update report: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.ReportReviewed(rv.status, rv.action)
	s.logger.Info(
		"report reviewed",
		"component", "reports",
		"report_id", reportID.String(),
		"submission_id", submissionID.String(),
		"status", rv.status,
		"action", rv.action,
	)
	if reverted {
		s.metrics.StatusChanged(models.StatusPending)
	}
	if s.publisher != nil && rv.action != models.ActionNone {
		s.publisher.Publish(EventModeration, Moderation{
			SubmissionID: submissionID,
			ReportID:     reportID,
			Action:       rv.action,
		})
		if reverted {
			s.publisher.Publish(voting.EventStatus, voting.StatusChange{
				SubmissionID: submissionID,
				Status:       models.StatusPending,
			})
		}
	}

	result := &ReviewResult{
		Message:  "Report updated",
		ReportID: reportID,
		Status:   rv.status,
	}
	if rv.action != models.ActionNone {
		action := rv.action
		result.ModerationAction = &action
	}
	return result, nil
}

// applyAction performs the submission side effect of a moderation action. It
// reports whether an approval was reverted.
func applyAction(tx *gorm.DB, sub *models.Submission, action string) (bool, error) {
	setFlag := func(column string, value bool) error {
		err := tx.Model(&models.Submission{}).Where("id = ?", sub.ID).Update(column, value).Error
		if err != nil {
			return fmt.Errorf("failed to update submission %s: %w", column, err)
		}
		return nil
	}

	switch action {
	case models.ActionHide:
		return false, setFlag("is_hidden", true)
	case models.ActionUnhide:
		return false, setFlag("is_hidden", false)
	case models.ActionLock:
		return false, setFlag("is_locked", true)
	case models.ActionUnlock:
		return false, setFlag("is_locked", false)
	case models.ActionRevertApproval:
		if !strings.EqualFold(sub.Status, models.StatusApproved) {
			return false, nil
		}
		err := tx.Model(&models.Submission{}).
			Where("id = ?", sub.ID).
			Update("status", models.StatusPending).Error
		if err != nil {
			return false, fmt.Errorf("failed to revert approval: %w", err)
		}
		return true, nil
	case models.ActionDeleteSubmission:
		if err := tx.Where("submission_id = ?", sub.ID).Delete(&models.Vote{}).Error; err != nil {
			return false, fmt.Errorf("failed to delete votes: %w", err)
		}
		if err := tx.Delete(&models.Submission{}, "id = ?", sub.ID).Error; err != nil {
			return false, fmt.Errorf("failed to delete submission: %w", err)
		}
		return false, nil
	default:
		return false, nil
	}
}
