package reports

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sujalbistaa/payboard/internal/models"
	"github.com/sujalbistaa/payboard/internal/voting"
)

// Report list sort orders. Unknown values fall back to SortLatest.
const (
	SortLatest        = "latest"
	SortMostReported  = "most_reported"
	SortMostDownvoted = "most_downvoted"
)

const (
	DefaultPageSize = 10
	MaxPageSize     = 100
)

// SubmissionStatusUnknown is listed for reports whose submission is gone.
const SubmissionStatusUnknown = "UNKNOWN"

// ListQuery filters, sorts and pages the report queue. Zero values do not
// filter. Status matches exactly and Reason as a substring, both ignoring case.
type ListQuery struct {
	Status   string
	Reason   string
	Q        string
	From     *time.Time
	To       *time.Time
	Sort     string
	Page     int
	PageSize int
}

// Normalize clamps the page to at least 1 and the page size to [1, MaxPageSize].
func (q ListQuery) Normalize() ListQuery {
	q.Page = max(q.Page, 1)
	q.PageSize = min(max(q.PageSize, 1), MaxPageSize)
	return q
}

// Item is one row of the report queue.
type Item struct {
	ID                     uuid.UUID `json:"id"`
	SubmissionID           uuid.UUID `json:"submissionId"`
	UserID                 uuid.UUID `json:"userId"`
	Reason                 string    `json:"reason"`
	CreatedAt              time.Time `json:"createdAt"`
	SubmissionStatus       string    `json:"submissionStatus"`
	ReportStatus           string    `json:"reportStatus"`
	ReportsForSubmission   int       `json:"reportsForSubmission"`
	DownvotesForSubmission int       `json:"downvotesForSubmission"`
}

// Page is one page of the report queue with the total match count.
type Page struct {
	Items    []Item `json:"items"`
	Total    int    `json:"total"`
	Page     int    `json:"page"`
	PageSize int    `json:"pageSize"`
}

// List returns a page of the report queue.
func (s *Service) List(ctx context.Context, q ListQuery) (*Page, error) {
	db := s.db.WithContext(ctx)
	var all []models.Report
	if err := db.Order("created_at desc").Find(&all).Error; err != nil {
		return nil, fmt.Errorf("failed to load reports: %w", err)
	}

	ids := make([]uuid.UUID, 0, len(all))
	seen := make(map[uuid.UUID]struct{}, len(all))
	for _, r := range all {
		if _, ok := seen[r.SubmissionID]; !ok {
			seen[r.SubmissionID] = struct{}{}
			ids = append(ids, r.SubmissionID)
		}
	}
	subs := make(map[uuid.UUID]*models.Submission, len(ids))
	if len(ids) > 0 {
		var rows []models.Submission
		if err := db.Where("id IN ?", ids).Find(&rows).Error; err != nil {
			return nil, fmt.Errorf("failed to load reported submissions: %w", err)
		}
		for i := range rows {
			subs[rows[i].ID] = &rows[i]
		}
	}
	tallies, err := voting.CountVotesFor(db, ids)
	if err != nil {
		return nil, err
	}
	downvotes := make(map[uuid.UUID]int, len(tallies))
	for id, t := range tallies {
		downvotes[id] = t.Downvotes
	}

	return Query(all, subs, ReportCounts(all), downvotes, q), nil
}

// Query filters, sorts and pages reports in memory. reportCounts and
// downvotes are keyed by submission id.
func Query(
	reports []models.Report,
	subs map[uuid.UUID]*models.Submission,
	reportCounts map[uuid.UUID]int,
	downvotes map[uuid.UUID]int,
	q ListQuery,
) *Page {
	q = q.Normalize()
	items := make([]Item, 0, len(reports))
	for _, r := range reports {
		sub := subs[r.SubmissionID]
		if !matches(r, sub, q) {
			continue
		}
		status := SubmissionStatusUnknown
		if sub != nil {
			status = sub.Status
		}
		items = append(items, Item{
			ID:                     r.ID,
			SubmissionID:           r.SubmissionID,
			UserID:                 r.UserID,
			Reason:                 r.Reason,
			CreatedAt:              r.CreatedAt,
			SubmissionStatus:       status,
			ReportStatus:           r.Status,
			ReportsForSubmission:   reportCounts[r.SubmissionID],
			DownvotesForSubmission: downvotes[r.SubmissionID],
		})
	}

	newestFirst := func(a, b Item) int { return b.CreatedAt.Compare(a.CreatedAt) }
	switch strings.ToLower(strings.TrimSpace(q.Sort)) {
	case SortMostReported:
		slices.SortStableFunc(items, func(a, b Item) int {
			return cmp.Or(cmp.Compare(b.ReportsForSubmission, a.ReportsForSubmission), newestFirst(a, b))
		})
	case SortMostDownvoted:
		slices.SortStableFunc(items, func(a, b Item) int {
			return cmp.Or(cmp.Compare(b.DownvotesForSubmission, a.DownvotesForSubmission), newestFirst(a, b))
		})
	default:
		slices.SortStableFunc(items, newestFirst)
	}

	page := &Page{Total: len(items), Page: q.Page, PageSize: q.PageSize}
	start := (q.Page - 1) * q.PageSize
	if start >= len(items) {
		page.Items = []Item{}
		return page
	}
	page.Items = items[start:min(start+q.PageSize, len(items))]
	return page
}

func matches(r models.Report, sub *models.Submission, q ListQuery) bool {
	if status := strings.TrimSpace(q.Status); status != "" && !strings.EqualFold(r.Status, status) {
		return false
	}
	reason := strings.ToLower(strings.TrimSpace(q.Reason))
	if reason != "" && !strings.Contains(strings.ToLower(r.Reason), reason) {
		return false
	}
	if q.From != nil && r.CreatedAt.Before(*q.From) {
		return false
	}
	// the upper bound covers the whole "to" day
	if q.To != nil && r.CreatedAt.After(q.To.AddDate(0, 0, 1).Add(-time.Nanosecond)) {
		return false
	}
	term := strings.ToLower(strings.TrimSpace(q.Q))
	if term == "" {
		return true
	}
	fields := []string{r.SubmissionID.String(), r.Reason}
	if sub != nil {
		fields = append(fields, sub.Company, sub.Role, sub.Country)
	}
	for _, f := range fields {
		if strings.Contains(strings.ToLower(f), term) {
			return true
		}
	}
	return false
}
