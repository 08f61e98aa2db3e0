package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/alibaba/higress/plugins/golang-filter/mcp-server/servers/policyqa"
	"github.com/alibaba/higress/plugins/golang-filter/mcp-server/servers/policyqa/common/logger"
	"github.com/alibaba/higress/plugins/golang-filter/mcp-server/servers/policyqa/registry"
)

// AskRequest is the body of POST /ask.
type AskRequest struct {
	Question string `json:"question" binding:"required"`
}

// AskResponse carries the final answer.
type AskResponse struct {
	Answer    string `json:"answer"`
	RequestID string `json:"request_id,omitempty"`
	Path      string `json:"path,omitempty"`
}

// SourcesResponse lists the registered sources.
type SourcesResponse struct {
	Sources []registry.SourceInfo `json:"sources"`
}

// HealthResponse is returned by GET /healthz.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Sources int    `json:"sources"`
}

// ErrorResponse is returned for rejected requests.
type ErrorResponse struct {
	Error string `json:"error"`
}

// Handlers serves the HTTP surface of the pipeline.
type Handlers struct {
	svc policyqa.Service
}

func NewHandlers(svc policyqa.Service) *Handlers {
	return &Handlers{svc: svc}
}

// HandleAsk answers one question.
//
// A missing, malformed or blank question is rejected with 400. Every other
// outcome, including degraded ones, is a 200 carrying the answer.
func (h *Handlers) HandleAsk(c *gin.Context) {
	var req AskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request: " + err.Error()})
		return
	}

	outcome, err := h.svc.Ask(c.Request.Context(), req.Question)
	if err != nil {
		if errors.Is(err, policyqa.ErrEmptyQuestion) {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
			return
		}
		logger.Errorf("api: ask failed: %v", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal error"})
		return
	}
	c.JSON(http.StatusOK, AskResponse{
		Answer:    outcome.Answer,
		RequestID: outcome.RequestID,
		Path:      string(outcome.Path),
	})
}

func (h *Handlers) HandleSources(c *gin.Context) {
	c.JSON(http.StatusOK, SourcesResponse{Sources: h.svc.Sources()})
}

func (h *Handlers) HandleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status:  "healthy",
		Version: policyqa.Version,
		Sources: len(h.svc.Sources()),
	})
}

// requestLogger logs one line per request through the shared logger.
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Infof("api: %s %s status=%d latency=%s",
			c.Request.Method, c.FullPath(), c.Writer.Status(), time.Since(start))
	}
}
