package http

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sujalbistaa/payboard/internal/apperr"
	"github.com/sujalbistaa/payboard/internal/db"
	"github.com/sujalbistaa/payboard/internal/reports"
	"github.com/sujalbistaa/payboard/internal/salaries"
	"github.com/sujalbistaa/payboard/internal/voting"
	"github.com/sujalbistaa/payboard/internal/ws"
)

// Env carries the services the handlers call into.
type Env struct {
	DB       *gorm.DB
	Hub      *ws.Hub
	Salaries *salaries.Store
	Ledger   *voting.Ledger
	Reports  *reports.Service
	Logger   *slog.Logger
}

// respondError writes {"error", "code"} with the status matching err's kind.
func respondError(c *gin.Context, err error) {
	status := apperr.HTTPStatus(err)
	if status == http.StatusInternalServerError {
		// surfaced by RequestLogger
		_ = c.Error(err)
	}
	c.AbortWithStatusJSON(status, gin.H{
		"error": apperr.Message(err),
		"code":  apperr.KindOf(err),
	})
}

func invalidBody(c *gin.Context, err error) {
	respondError(c, apperr.InvalidInput("Invalid input: %s", err.Error()))
}

// pathID parses a uuid path parameter.
func pathID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		respondError(c, apperr.InvalidInput("Invalid %s", name))
		return uuid.Nil, false
	}
	return id, true
}

// callerID is the authenticated user's id, or uuid.Nil when the token has
// no usable id claim.
func callerID(c *gin.Context) uuid.UUID {
	id, _ := identityFrom(c).User()
	return id
}

func (e *Env) Health(c *gin.Context) {
	if err := db.Ping(c.Request.Context(), e.DB); err != nil {
		e.Logger.Warn("health check failed", "component", "http", "error", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (e *Env) ListSalaries(c *gin.Context) {
	views, err := e.Salaries.List(c.Request.Context(), identityFrom(c).IsModerator())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, views)
}

func (e *Env) CreateSalary(c *gin.Context) {
	var input salaries.CreateInput
	if !bindJSON(c, &input) {
		return
	}
	sub, err := e.Salaries.Create(c.Request.Context(), input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "Submitted (PENDING)", "id": sub.ID})
}

func (e *Env) GetSalary(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	view, err := e.Salaries.Get(c.Request.Context(), id, identityFrom(c).IsModerator())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (e *Env) SalaryStats(c *gin.Context) {
	var filter salaries.StatsFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		invalidBody(c, err)
		return
	}
	stats, err := e.Salaries.Stats(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// bindJSON decodes the body, reporting a syntax or type error as InvalidInput.
func bindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		invalidBody(c, err)
		return false
	}
	return true
}
