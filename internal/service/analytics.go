package service

import (
	"context"
	"time"

	"github.com/tutorgate/tutorgate/internal/repository"
)

type AnalyticsService struct {
	repository *repository.UsageLogRepository
}

func NewAnalyticsService(repo *repository.UsageLogRepository) *AnalyticsService {
	return &AnalyticsService{repository: repo}
}

// Holds usage summary data
type UsageSummary struct {
	TotalRequests int64                    `json:"total_requests"`
	AvgDurationMs float64                  `json:"avg_duration_ms"`
	SuccessRate   float64                  `json:"success_rate"`
	ErrorRate     float64                  `json:"error_rate"`
	RateLimited   int64                    `json:"rate_limited"`
	TopSessions   []map[string]interface{} `json:"top_sessions"`
}

// Retrieves a usage summary for a time range
func (s *AnalyticsService) GetSummary(ctx context.Context, from, to time.Time) (*UsageSummary, error) {
	summary := &UsageSummary{}

	total, err := s.repository.CountByTimeRange(ctx, from, to)
	if err != nil {
		return nil, err
	}
	summary.TotalRequests = total

	if total == 0 {
		return summary, nil
	}

	avg, err := s.repository.GetAverageDuration(ctx, from, to)
	if err != nil {
		return nil, err
	}
	summary.AvgDurationMs = avg

	clientErrors, err := s.repository.CountByStatusCodeRange(ctx, 400, 499, from, to)
	if err != nil {
		return nil, err
	}
	serverErrors, err := s.repository.CountByStatusCodeRange(ctx, 500, 599, from, to)
	if err != nil {
		return nil, err
	}
	rateLimited, err := s.repository.CountByStatusCodeRange(ctx, 429, 429, from, to)
	if err != nil {
		return nil, err
	}
	summary.RateLimited = rateLimited

	totalErrors := clientErrors + serverErrors
	summary.ErrorRate = float64(totalErrors) / float64(total) * 100
	summary.SuccessRate = 100 - summary.ErrorRate

	topSessions, err := s.repository.GetTopSessions(ctx, from, to, 10)
	if err != nil {
		return nil, err
	}
	summary.TopSessions = topSessions

	return summary, nil
}

// Deletes logs older than the retention period
func (s *AnalyticsService) CleanupOldLogs(ctx context.Context, retentionDays int) (int64, error) {
	cutoff := time.Now().AddDate(0, 0, -retentionDays)
	return s.repository.DeleteOldLogs(ctx, cutoff)
}
