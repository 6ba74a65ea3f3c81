package voting

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sujalbistaa/payboard/internal/models"
)

// Tally is the vote count of one submission.
type Tally struct {
	Upvotes   int `json:"upvotes"`
	Downvotes int `json:"downvotes"`
}

func (t Tally) Score() int {
	return t.Upvotes - t.Downvotes
}

// Progress is the score clamped at zero, as shown against the threshold.
func (t Tally) Progress() int {
	return max(t.Score(), 0)
}

type typeCount struct {
	SubmissionID uuid.UUID
	VoteType     string
	Count        int
}

// CountVotes tallies the votes of a single submission.
func CountVotes(db *gorm.DB, submissionID uuid.UUID) (Tally, error) {
	tallies, err := CountVotesFor(db, []uuid.UUID{submissionID})
	if err != nil {
		return Tally{}, err
	}
	return tallies[submissionID], nil
}

// CountVotesFor tallies the votes of several submissions in one query.
// Submissions without votes are absent from the result.
func CountVotesFor(db *gorm.DB, submissionIDs []uuid.UUID) (map[uuid.UUID]Tally, error) {
	tallies := make(map[uuid.UUID]Tally, len(submissionIDs))
	if len(submissionIDs) == 0 {
		return tallies, nil
	}
	var rows []typeCount
	err := db.Model(&models.Vote{}).
		Select("submission_id, vote_type, count(*) AS count").
		Where("submission_id IN ?", submissionIDs).
		Group("submission_id, vote_type").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to count votes: %w", err)
	}
	for _, row := range rows {
		t := tallies[row.SubmissionID]
		switch strings.ToUpper(row.VoteType) {
		case models.VoteUp:
			t.Upvotes += row.Count
		case models.VoteDown:
			t.Downvotes += row.Count
		}
		tallies[row.SubmissionID] = t
	}
	return tallies, nil
}
