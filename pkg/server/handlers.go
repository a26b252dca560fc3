package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/AliciaSchep/posdash/pkg/dashboard"
	"github.com/AliciaSchep/posdash/pkg/db"
	usererrors "github.com/AliciaSchep/posdash/pkg/errors"
)

// Summarizer builds dashboard summaries
type Summarizer interface {
	Summarize(ctx context.Context, userID, deviceID int64) (*dashboard.Summary, error)
	SummarizeStrict(ctx context.Context, userID, deviceID int64) (*dashboard.Summary, error)
}

// HealthChecker probes the database
type HealthChecker interface {
	Health(ctx context.Context) db.HealthStatus
}

// ErrorResponse is returned for requests that never reached the aggregator or that
// failed in strict mode
type ErrorResponse struct {
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	Code      string `json:"code"`
	RequestID string `json:"requestId"`
}

type Handlers struct {
	summarizer Summarizer
	health     HealthChecker
	log        logrus.FieldLogger
}

func NewHandlers(summarizer Summarizer, health HealthChecker, log logrus.FieldLogger) *Handlers {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Handlers{summarizer: summarizer, health: health, log: log}
}

// HandleHealth handles GET /health. It answers 503 when the database is unreachable
// or not configured.
func (h *Handlers) HandleHealth(c *gin.Context) {
	status := h.health.Health(c.Request.Context())
	code := http.StatusOK
	if !status.IsHealthy {
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, status)
}

// HandleDashboard handles GET /api/v1/dashboard.
//
// Query parameters userId and deviceId are required positive integers. strict=true
// selects the retried, error-propagating path.
//
//	200 OK: dashboard.Summary
//	400 Bad Request: missing or invalid parameter
//	503 Service Unavailable: database unreachable
func (h *Handlers) HandleDashboard(c *gin.Context) {
	userID, err := positiveID(c, "userId")
	if err != nil {
		h.badRequest(c, err)
		return
	}
	deviceID, err := positiveID(c, "deviceId")
	if err != nil {
		h.badRequest(c, err)
		return
	}
	strict, _ := strconv.ParseBool(c.DefaultQuery("strict", "false"))

	var summary *dashboard.Summary
	if strict {
		summary, err = h.summarizer.SummarizeStrict(c.Request.Context(), userID, deviceID)
	} else {
		summary, err = h.summarizer.Summarize(c.Request.Context(), userID, deviceID)
	}
	if err != nil {
		if errors.Is(err, dashboard.ErrMissingParameter) {
			h.badRequest(c, err)
			return
		}
		requestID := requestIDFor(c)
		h.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"user_id":    userID,
			"strict":     strict,
		}).WithError(err).Warn("dashboard request failed")
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{
			Message:   usererrors.UserMessage(err),
			Code:      "DATABASE_UNAVAILABLE",
			RequestID: requestID,
		})
		return
	}

	c.Header(requestIDHeader, summary.RequestID)
	code := http.StatusOK
	if !summary.Success {
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, summary)
}

func (h *Handlers) badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, ErrorResponse{
		Message:   usererrors.UserMessage(err),
		Code:      "MISSING_PARAMETER",
		RequestID: requestIDFor(c),
	})
}

func positiveID(c *gin.Context, name string) (int64, error) {
	raw := c.Query(name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, &paramError{name: name}
	}
	return id, nil
}

type paramError struct {
	name string
}

func (e *paramError) Error() string {
	return dashboard.ErrMissingParameter.Error() + ": " + e.name + " must be a positive integer"
}

func (e *paramError) Unwrap() error {
	return dashboard.ErrMissingParameter
}

const requestIDHeader = "X-Request-ID"

func requestIDFor(c *gin.Context) string {
	requestID := c.GetHeader(requestIDHeader)
	if requestID == "" {
		requestID = uuid.NewString()
	}
	c.Header(requestIDHeader, requestID)
	return requestID
}
