package http

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/sujalbistaa/payboard/internal/apperr"
	"github.com/sujalbistaa/payboard/internal/reports"
)

type CreateReportInput struct {
	SubmissionID uuid.UUID `json:"submissionId"`
	Reason       string    `json:"reason"`
}

func (e *Env) CreateReport(c *gin.Context) {
	var input CreateReportInput
	if !bindJSON(c, &input) {
		return
	}
	report, err := e.Reports.Create(c.Request.Context(), input.SubmissionID, callerID(c), input.Reason)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Report created", "reportId": report.ID})
}

func (e *Env) ListReports(c *gin.Context) {
	q, err := parseListQuery(c)
	if err != nil {
		respondError(c, err)
		return
	}
	page, err := e.Reports.List(c.Request.Context(), q)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

func (e *Env) GetReport(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	detail, err := e.Reports.Detail(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, detail)
}

func (e *Env) ReviewReport(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var input reports.ReviewInput
	if !bindJSON(c, &input) {
		return
	}
	result, err := e.Reports.Review(c.Request.Context(), id, callerID(c), input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (e *Env) DeleteReport(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := e.Reports.Delete(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Report deleted"})
}

func parseListQuery(c *gin.Context) (reports.ListQuery, error) {
	q := reports.ListQuery{
		Status:   c.Query("status"),
		Reason:   c.Query("reason"),
		Q:        c.Query("q"),
		Sort:     c.DefaultQuery("sort", reports.SortLatest),
		Page:     1,
		PageSize: reports.DefaultPageSize,
	}
	var err error
	if q.Page, err = intQuery(c, "page", 1); err != nil {
		return q, err
	}
	if q.PageSize, err = intQuery(c, "pageSize", reports.DefaultPageSize); err != nil {
		return q, err
	}
	if q.From, err = dateQuery(c, "from"); err != nil {
		return q, err
	}
	if q.To, err = dateQuery(c, "to"); err != nil {
		return q, err
	}
	return q, nil
}

func intQuery(c *gin.Context, name string, fallback int) (int, error) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apperr.InvalidInput("Invalid %s", name)
	}
	return v, nil
}

// dateQuery accepts a plain date or an RFC 3339 timestamp.
func dateQuery(c *gin.Context, name string) (*time.Time, error) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return nil, nil
	}
	for _, layout := range []string{time.DateOnly, time.RFC3339} {
		if t, err := time.Parse(layout, raw); err == nil {
			t = t.UTC()
			return &t, nil
		}
	}
	return nil, apperr.InvalidInput("Invalid %s date", name)
}
