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

package database

import (
	"context"
	"time"

	"github.com/bencullen0123-byte/Phantom-Vision-sub000/model"
)

// IDataSource defines the interface for data source operations, grouping related functionalities.
type IDataSource interface {
	merchant  // Interface for merchant-related operations
	target    // Interface for recovery-target operations
	timing    // Interface for payment-timing sample operations
	jobLock   // Interface for distributed scheduler locks
	scanJob   // Interface for the async scan-job queue
	systemLog // Interface for operator audit logs
}

// merchant defines methods for handling merchants.
type merchant interface {
	CreateMerchant(ctx context.Context, merchant model.Merchant) (model.Merchant, error)            // Creates a new merchant
	GetMerchant(ctx context.Context, id string) (*model.Merchant, error)                            // Retrieves a merchant by ID
	GetAllMerchants(ctx context.Context, limit, offset int) ([]model.Merchant, error)               // Retrieves all merchants
	UpdateMerchant(ctx context.Context, merchant *model.Merchant) error                             // Updates merchant settings
	UpdateMerchantAudit(ctx context.Context, id string, status string, auditAt time.Time) error     // Records the outcome of a scan attempt
	AccumulateMerchantTotals(ctx context.Context, id string, gross, recovered, protected int64) error // Adds to the merchant's running revenue totals
}

// target defines methods for handling recovery targets.
type target interface {
	UpsertTargetByNaturalKey(ctx context.Context, tgt *model.Target) (bool, error)                      // Creates or refreshes a target; true when a new row was created
	BatchUpsertTargets(ctx context.Context, targets []*model.Target) (int, int, error)                  // Upserts a batch atomically; returns created and updated counts
	GetTarget(ctx context.Context, id string) (*model.Target, error)                                    // Retrieves a target by ID
	GetTargetByNaturalKey(ctx context.Context, naturalKey string) (*model.Target, error)                // Retrieves a target by its provider natural key
	CountActiveTargets(ctx context.Context, merchantID string) (int, error)                             // Counts live (pending/impending) targets for a merchant
	GetContactableTargets(ctx context.Context, merchantID string, limit int) ([]*model.Target, error)   // Retrieves targets still eligible for outreach
	UpdateTargetStatus(ctx context.Context, targetID, status, recoveryType string) error                // Moves a target to a new status
	UpdateTargetOutreach(ctx context.Context, tgt *model.Target) error                                  // Persists post-send counters and status
	RegisterTargetClick(ctx context.Context, targetID string, expiresAt time.Time) error                // Opens the attribution window after an email click
}

// timing defines methods for handling payment-timing samples.
type timing interface {
	RecordTimingSamples(ctx context.Context, merchantID string, samples []model.TimingSample) error // Records a batch of successful-payment timestamps
	GetGoldenHour(ctx context.Context, merchantID string) (*model.GoldenHour, error)                // Computes the modal payment window; nil when no samples exist
}

// jobLock defines methods for the scheduler's distributed locks.
type jobLock interface {
	AcquireJobLock(ctx context.Context, jobName, holderID string, ttl time.Duration) (model.LockResult, error) // Claims a named lock, stealing it when stale
	ReleaseJobLock(ctx context.Context, jobName, holderID string) (bool, error)                                // Releases a lock only when still held by the caller
}

// scanJob defines methods for the async scan-job queue.
type scanJob interface {
	EnqueueScanJob(ctx context.Context, merchantID string, forceFull bool) (*model.ScanJob, error) // Queues a scan; rejects when one is already outstanding
	ClaimNextScanJob(ctx context.Context) (*model.ScanJob, error)                                  // Claims the oldest pending job; nil when the queue is empty
	GetScanJob(ctx context.Context, jobID string) (*model.ScanJob, error)                          // Retrieves a job by ID
	UpdateScanJobProgress(ctx context.Context, jobID string, progress int) error                   // Updates the progress counter of a running job
	CompleteScanJob(ctx context.Context, jobID string) error                                       // Marks a job completed
	FailScanJob(ctx context.Context, jobID string, errMsg string) error                            // Marks a job failed with its error text
}

// systemLog defines methods for operator audit logs.
type systemLog interface {
	CreateSystemLog(ctx context.Context, entry *model.SystemLog) error                                 // Records one audit row
	GetSystemLogs(ctx context.Context, merchantID string, limit, offset int) ([]model.SystemLog, error) // Retrieves audit rows, newest first
}
