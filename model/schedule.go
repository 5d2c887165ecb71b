/*
Copyright 2024 Phantom Vision Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package model

import "time"

// TimingSample records the weekday and hour of one successful payment.
// Samples are only ever used in aggregate to compute a merchant's golden
// hour; individual rows carry no customer data.
type TimingSample struct {
	ID         int64     `json:"id"`
	MerchantID string    `json:"merchant_id"`
	DayOfWeek  int       `json:"day_of_week"` // 0-6, Sunday first
	HourOfDay  int       `json:"hour_of_day"` // 0-23
	CreatedAt  time.Time `json:"created_at"`
}

// GoldenHour is the modal day-of-week/hour-of-day combination of a
// merchant's timing samples.
type GoldenHour struct {
	DayOfWeek int `json:"day_of_week"`
	HourOfDay int `json:"hour_of_day"`
	Samples   int `json:"samples"`
}

// InWindow reports whether the given hour falls inside the ±2h dispatch
// window around the golden hour, wrapping across midnight.
func (g GoldenHour) InWindow(hour int) bool {
	diff := hour - g.HourOfDay
	if diff < 0 {
		diff = -diff
	}
	if diff > 12 {
		diff = 24 - diff
	}
	return diff <= 2
}

// JobLock is the singleton ownership row for a named scheduler job.
// Ownership is proven by holder equality, never by row existence alone.
type JobLock struct {
	JobName   string    `json:"job_name"`
	HolderID  string    `json:"holder_id"`
	CreatedAt time.Time `json:"created_at"`
}

// LockResult is the outcome of an acquisition attempt. WasStolen signals
// that a stale holder's lock was overwritten, which usually means a prior
// process crashed mid-run.
type LockResult struct {
	Acquired  bool   `json:"acquired"`
	HolderID  string `json:"holder_id"`
	WasStolen bool   `json:"was_stolen"`
}

// Scan job statuses.
const (
	JobStatusPending    = "pending"
	JobStatusProcessing = "processing"
	JobStatusCompleted  = "completed"
	JobStatusFailed     = "failed"
)

// ScanJob is one queued scan request. It lets a caller get an immediate
// acknowledgement and poll progress while the scan runs in the background.
type ScanJob struct {
	JobID      string     `json:"job_id"`
	MerchantID string     `json:"merchant_id"`
	Status     string     `json:"status"`
	Progress   int        `json:"progress"`
	ForceFull  bool       `json:"force_full"`
	Error      *string    `json:"error,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	StartedAt  *time.Time `json:"started_at,omitempty"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// SystemLog is one operator-facing audit row. Every scheduled run, scan and
// dispatch pass writes exactly one summary row; component errors are
// recorded here instead of being thrown past the scheduler boundary.
type SystemLog struct {
	LogID      string                 `json:"log_id"`
	MerchantID string                 `json:"merchant_id,omitempty"`
	Component  string                 `json:"component"`
	Level      string                 `json:"level"`
	Message    string                 `json:"message"`
	Payload    map[string]interface{} `json:"payload,omitempty"`
	CreatedAt  time.Time              `json:"created_at"`
}

// ScanResult summarizes one scan run.
type ScanResult struct {
	MerchantID        string   `json:"merchant_id"`
	TargetsFound      int      `json:"targets_found"`
	TargetsUpdated    int      `json:"targets_updated"`
	TotalAtRisk       int64    `json:"total_at_risk"`
	GrossInvoiced     int64    `json:"gross_invoiced"`
	TimingSamples     int      `json:"timing_samples"`
	ImpendingFound    int      `json:"impending_found"`
	OrganicRecoveries int      `json:"organic_recoveries"`
	RemainingCapacity int      `json:"remaining_capacity"`
	CapacitySkipped   int      `json:"capacity_skipped"`
	Skipped           bool     `json:"skipped"`
	Notes             []string `json:"notes,omitempty"`
	Errors            []string `json:"errors,omitempty"`
}

// DispatchResult summarizes one dispatcher pass over the outreach queue.
type DispatchResult struct {
	Sent                int      `json:"sent"`
	Failed              int      `json:"failed"`
	RateLimited         int      `json:"rate_limited"`
	OutsideWindow       int      `json:"outside_window"`
	PendingManualReview int      `json:"pending_manual_review"`
	Exhausted           int      `json:"exhausted"`
	Errors              []string `json:"errors,omitempty"`
}
