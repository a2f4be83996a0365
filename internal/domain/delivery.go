package domain

import (
	"encoding/json"
	"time"
)

// LogStatus is the outcome recorded in the delivery log.
type LogStatus string

const (
	LogSuccess LogStatus = "success"
	LogError   LogStatus = "error"
)

// Delivery log actions.
const (
	ActionSendEmail        = "send_email"
	ActionSendCampaign     = "send_campaign"
	ActionCampaignBatch    = "campaign_batch"
	ActionScheduleCampaign = "schedule_campaign"
)

// DeliveryLogEntry is one append-only audit record of a dispatch attempt.
type DeliveryLogEntry struct {
	ID        string          `json:"id" db:"id"`
	UserID    string          `json:"user_id" db:"user_id"`
	Action    string          `json:"action" db:"action"`
	Status    LogStatus       `json:"status" db:"status"`
	Details   json.RawMessage `json:"details" db:"details"`
	CreatedAt time.Time       `json:"created_at" db:"created_at"`
}

// DailyCount is one point of the dashboard's daily send series.
type DailyCount struct {
	Day     string `json:"day"`
	Success int    `json:"success"`
	Error   int    `json:"error"`
}

// DeliveryStats is the dashboard summary for one user.
type DeliveryStats struct {
	TotalSuccess        int            `json:"total_success"`
	TotalError          int            `json:"total_error"`
	TodaySuccess        int            `json:"today_success"`
	ByAction            map[string]int `json:"by_action"`
	Daily               []DailyCount   `json:"daily"`
	CampaignsByStatus   map[string]int `json:"campaigns_by_status"`
	ContactCount        int            `json:"contact_count"`
	SuppressionCount    int            `json:"suppression_count"`
	DailyQuota          int            `json:"daily_quota"`
	DailyQuotaRemaining int            `json:"daily_quota_remaining"`
}
