package models

import "time"

// Represents one logged tutoring request
type UsageLog struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	Timestamp  time.Time `gorm:"index" json:"timestamp"`
	SessionID  string    `gorm:"index" json:"session_id"`
	Operation  string    `gorm:"index" json:"operation"` // route path, e.g. /v1/explain
	StatusCode int       `gorm:"index" json:"status_code"`
	DurationMs int       `json:"duration_ms"`
	IPAddress  string    `json:"ip_address"`
	UserAgent  string    `json:"user_agent"`
}

func (UsageLog) TableName() string {
	return "usage_logs"
}
