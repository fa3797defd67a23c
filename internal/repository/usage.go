package repository

import (
	"context"
	"time"

	"github.com/tutorgate/tutorgate/internal/models"
	"github.com/tutorgate/tutorgate/internal/storage"
)

type UsageLogRepository struct {
	db *storage.Postgres
}

func NewUsageLogRepository(db *storage.Postgres) *UsageLogRepository {
	return &UsageLogRepository{db: db}
}

func (r *UsageLogRepository) CreateBatch(ctx context.Context, logs []models.UsageLog) error {
	if len(logs) == 0 {
		return nil
	}
	return r.db.DB.WithContext(ctx).Create(&logs).Error
}

// Counts requests in a time range
func (r *UsageLogRepository) CountByTimeRange(ctx context.Context, from, to time.Time) (int64, error) {
	var count int64
	err := r.db.DB.WithContext(ctx).
		Model(&models.UsageLog{}).
		Where("timestamp BETWEEN ? AND ?", from, to).
		Count(&count).Error
	return count, err
}

func (r *UsageLogRepository) CountByStatusCodeRange(ctx context.Context, minStatus, maxStatus int, from, to time.Time) (int64, error) {
	var count int64
	err := r.db.DB.WithContext(ctx).
		Model(&models.UsageLog{}).
		Where("status_code BETWEEN ? AND ? AND timestamp BETWEEN ? AND ?", minStatus, maxStatus, from, to).
		Count(&count).Error
	return count, err
}

func (r *UsageLogRepository) GetAverageDuration(ctx context.Context, from, to time.Time) (float64, error) {
	var avg float64
	err := r.db.DB.WithContext(ctx).
		Model(&models.UsageLog{}).
		Where("timestamp BETWEEN ? AND ?", from, to).
		Select("COALESCE(AVG(duration_ms), 0)").
		Scan(&avg).Error
	return avg, err
}

// Returns the sessions issuing the most requests
func (r *UsageLogRepository) GetTopSessions(ctx context.Context, from, to time.Time, limit int) ([]map[string]interface{}, error) {
	var results []map[string]interface{}

	rows, err := r.db.DB.WithContext(ctx).
		Model(&models.UsageLog{}).
		Select("session_id, COUNT(*) as count").
		Where("timestamp BETWEEN ? AND ?", from, to).
		Group("session_id").
		Order("count DESC").
		Limit(limit).
		Rows()
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var sessionID string
		var count int64
		if err := rows.Scan(&sessionID, &count); err != nil {
			return nil, err
		}
		results = append(results, map[string]interface{}{
			"session_id": sessionID,
			"count":      count,
		})
	}

	return results, nil
}

// Deletes logs older than the specified time
func (r *UsageLogRepository) DeleteOldLogs(ctx context.Context, before time.Time) (int64, error) {
	result := r.db.DB.WithContext(ctx).
		Where("timestamp < ?", before).
		Delete(&models.UsageLog{})
	return result.RowsAffected, result.Error
}
