package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/tutorgate/tutorgate/internal/gateway"
	"github.com/tutorgate/tutorgate/internal/middleware"
	"github.com/tutorgate/tutorgate/internal/retry"
	"github.com/tutorgate/tutorgate/internal/stream"
	"github.com/tutorgate/tutorgate/internal/tutor"
)

type TutorHandler struct {
	service *tutor.Service
}

func NewTutorHandler(service *tutor.Service) *TutorHandler {
	return &TutorHandler{service: service}
}

type topicRequest struct {
	Subject string `json:"subject" binding:"required"`
}

type questionRequest struct {
	Topic string `json:"topic" binding:"required"`
}

type explainRequest struct {
	Topic string `json:"topic" binding:"required"`
}

// Handles POST /v1/explain
func (h *TutorHandler) Explain(c *gin.Context) {
	var req explainRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "topic is required"})
		return
	}

	result, err := h.service.Explain(c.Request.Context(), middleware.Identity(c), req.Topic)
	if err != nil {
		writeGatewayError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// Handles POST /v1/topics/stream
func (h *TutorHandler) SuggestTopics(c *gin.Context) {
	var req topicRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "subject is required"})
		return
	}

	h.streamResponse(c, func(sink stream.Sink) error {
		return h.service.SuggestTopics(c.Request.Context(), middleware.Identity(c), req.Subject, sink)
	})
}

// Handles POST /v1/questions/stream
func (h *TutorHandler) GenerateQuestions(c *gin.Context) {
	var req questionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "topic is required"})
		return
	}

	h.streamResponse(c, func(sink stream.Sink) error {
		return h.service.GenerateQuestions(c.Request.Context(), middleware.Identity(c), req.Topic, sink)
	})
}

// Handles GET /v1/limits
func (h *TutorHandler) Limits(c *gin.Context) {
	usage, err := h.service.Limits(c.Request.Context(), middleware.Identity(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read limits"})
		return
	}

	c.JSON(http.StatusOK, usage)
}

// streamResponse relays decoder snapshots as server-sent events. Rate
// limiting is checked before any event is written, so a denial still
// comes back as a plain 429.
func (h *TutorHandler) streamResponse(c *gin.Context, run func(stream.Sink) error) {
	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "streaming unsupported"})
		return
	}

	started := false
	sink := func(snapshot stream.Snapshot) {
		if !started {
			c.Header("Content-Type", "text/event-stream")
			c.Header("Cache-Control", "no-cache")
			c.Header("Connection", "keep-alive")
			c.Writer.WriteHeader(http.StatusOK)
			started = true
		}
		writeEvent(c, "snapshot", snapshot)
		flusher.Flush()
	}

	err := run(sink)
	if err != nil {
		if !started {
			writeGatewayError(c, err)
			return
		}
		// Too late for a status code; report the failure in-band.
		writeEvent(c, "error", gin.H{"error": publicError(err)})
		flusher.Flush()
		return
	}

	if started {
		writeEvent(c, "done", gin.H{})
		flusher.Flush()
	} else {
		// Stream ended without a single fragment
		c.JSON(http.StatusOK, stream.Snapshot{})
	}
}

func writeEvent(c *gin.Context, event string, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	c.Writer.WriteString("event: " + event + "\n")
	c.Writer.WriteString("data: " + string(data) + "\n\n")
}

// Maps the gateway error taxonomy onto HTTP statuses
func writeGatewayError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, gateway.ErrRateLimited):
		c.Header("Retry-After", "60")
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "Rate limit exceeded"})
	case errors.Is(err, gateway.ErrMalformedResponse):
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
	case retry.IsExhausted(err):
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal Server Error"})
	}
}

func publicError(err error) string {
	if errors.Is(err, gateway.ErrMalformedResponse) || retry.IsExhausted(err) {
		return err.Error()
	}
	return "Internal Server Error"
}
