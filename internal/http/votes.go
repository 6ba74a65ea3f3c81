package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type VoteInput struct {
	SubmissionID uuid.UUID `json:"submissionId"`
	VoteType     string    `json:"voteType"`
}

func (e *Env) CastVote(c *gin.Context) {
	var input VoteInput
	if !bindJSON(c, &input) {
		return
	}
	summary, err := e.Ledger.Cast(c.Request.Context(), input.SubmissionID, callerID(c), input.VoteType)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

func (e *Env) RemoveVote(c *gin.Context) {
	submissionID, ok := pathID(c, "submissionId")
	if !ok {
		return
	}
	summary, err := e.Ledger.Remove(c.Request.Context(), submissionID, callerID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

// VoteSummary is public; an authenticated caller also sees their own vote.
func (e *Env) VoteSummary(c *gin.Context) {
	submissionID, ok := pathID(c, "submissionId")
	if !ok {
		return
	}
	summary, err := e.Ledger.Summary(c.Request.Context(), submissionID, callerID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}
