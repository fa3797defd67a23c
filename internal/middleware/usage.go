package middleware

import (
	"context"
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/tutorgate/tutorgate/internal/models"
	"github.com/tutorgate/tutorgate/internal/repository"
)

const (
	usageBatchSize    = 100
	usageFlushEvery   = 5 * time.Second
	usageChannelDepth = 1000
)

// UsageRecorder batches usage rows through a buffered channel so the
// request path never blocks on the database. Explicit object rather
// than package state so the server owns its lifecycle.
type UsageRecorder struct {
	repo    *repository.UsageLogRepository
	entries chan models.UsageLog
	done    chan struct{}
}

func NewUsageRecorder(repo *repository.UsageLogRepository) *UsageRecorder {
	r := &UsageRecorder{
		repo:    repo,
		entries: make(chan models.UsageLog, usageChannelDepth),
		done:    make(chan struct{}),
	}
	go r.run()
	return r
}

func (r *UsageRecorder) run() {
	batch := make([]models.UsageLog, 0, usageBatchSize)
	ticker := time.NewTicker(usageFlushEvery)
	defer ticker.Stop()

	flush := func() {
		if len(batch) == 0 {
			return
		}
		if err := r.repo.CreateBatch(context.Background(), batch); err != nil {
			slog.Error("failed to insert usage logs", "error", err, "count", len(batch))
		}
		batch = batch[:0]
	}

	for {
		select {
		case entry := <-r.entries:
			batch = append(batch, entry)
			if len(batch) >= usageBatchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		case <-r.done:
			flush()
			return
		}
	}
}

// Stop flushes what is buffered and shuts the worker down.
func (r *UsageRecorder) Stop() {
	close(r.done)
}

// Middleware records one usage row per request.
func (r *UsageRecorder) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		entry := models.UsageLog{
			Timestamp:  start,
			SessionID:  Identity(c),
			Operation:  c.FullPath(),
			StatusCode: c.Writer.Status(),
			DurationMs: int(time.Since(start).Milliseconds()),
			IPAddress:  c.ClientIP(),
			UserAgent:  c.Request.UserAgent(),
		}

		select {
		case r.entries <- entry:
		default:
			// Channel full: drop rather than block the request
			slog.Warn("usage log channel full, dropping entry")
		}
	}
}
