package salaries

import (
	"context"
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/sujalbistaa/payboard/internal/models"
)

// StatsFilter narrows statistics by exact, case-insensitive field matches.
// Empty fields do not filter.
type StatsFilter struct {
	Country  string `form:"country"`
	Role     string `form:"role"`
	Level    string `form:"level"`
	Currency string `form:"currency"`
}

// Stats summarizes annualized salaries.
type Stats struct {
	Count   int     `json:"count"`
	Average float64 `json:"average"`
	Median  float64 `json:"median"`
	P25     float64 `json:"p25"`
	P75     float64 `json:"p75"`
}

// Stats aggregates approved, visible submissions. Monthly amounts are
// annualized before aggregation.
func (s *Store) Stats(ctx context.Context, filter StatsFilter) (*Stats, error) {
	query := s.db.WithContext(ctx).
		Model(&models.Submission{}).
		Where("UPPER(status) = ?", models.StatusApproved).
		Where("is_hidden = ?", false)
	for column, value := range map[string]string{
		"country":  filter.Country,
		"role":     filter.Role,
		"level":    filter.Level,
		"currency": filter.Currency,
	} {
		if value = strings.TrimSpace(value); value != "" {
			query = query.Where(fmt.Sprintf("LOWER(%s) = ?", column), strings.ToLower(value))
		}
	}
	var rows []models.Submission
	if err := query.Select("salary_amount", "period").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to load salary statistics: %w", err)
	}
	amounts := make([]float64, 0, len(rows))
	for _, row := range rows {
		amounts = append(amounts, annualize(row.SalaryAmount, row.Period))
	}
	return computeStats(amounts), nil
}

func annualize(amount float64, period string) float64 {
	if strings.EqualFold(period, models.PeriodMonthly) {
		return amount * 12
	}
	return amount
}

func computeStats(amounts []float64) *Stats {
	if len(amounts) == 0 {
		return &Stats{}
	}
	sorted := slices.Clone(amounts)
	slices.Sort(sorted)
	var sum float64
	for _, a := range sorted {
		sum += a
	}
	return &Stats{
		Count:   len(sorted),
		Average: sum / float64(len(sorted)),
		Median:  percentile(sorted, 0.5),
		P25:     percentile(sorted, 0.25),
		P75:     percentile(sorted, 0.75),
	}
}

// percentile interpolates linearly between the closest ranks of sorted.
func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 1 {
		return sorted[0]
	}
	rank := p * float64(len(sorted)-1)
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))
	return sorted[lo] + (sorted[hi]-sorted[lo])*(rank-float64(lo))
}
