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
	"database/sql"
	"fmt"

	"github.com/wacul/ptr"

	"github.com/bencullen0123-byte/Phantom-Vision-sub000/internal/syserror"
	"github.com/bencullen0123-byte/Phantom-Vision-sub000/model"
)

const scanJobColumns = `job_id, merchant_id, status, progress, force_full, error, created_at, started_at, finished_at`

func scanScanJob(scanner interface{ Scan(...interface{}) error }) (*model.ScanJob, error) {
	job := &model.ScanJob{}
	var errMsg sql.NullString
	var startedAt, finishedAt sql.NullTime

	err := scanner.Scan(
		&job.JobID,
		&job.MerchantID,
		&job.Status,
		&job.Progress,
		&job.ForceFull,
		&errMsg,
		&job.CreatedAt,
		&startedAt,
		&finishedAt,
	)
	if err != nil {
		return nil, err
	}

	if errMsg.Valid {
		job.Error = ptr.String(errMsg.String)
	}
	if startedAt.Valid {
		job.StartedAt = &startedAt.Time
	}
	if finishedAt.Valid {
		job.FinishedAt = &finishedAt.Time
	}

	return job, nil
}

// EnqueueScanJob queues a scan for a merchant. At most one job per merchant
// may be outstanding; the guard and the insert run as one statement so two
// concurrent callers cannot both slip past the check.
func (d Datasource) EnqueueScanJob(ctx context.Context, merchantID string, forceFull bool) (*model.ScanJob, error) {
	jobID := model.GenerateUUIDWithSuffix("job")

	row := d.Conn.QueryRowContext(ctx, `
		INSERT INTO scan_jobs (job_id, merchant_id, status, progress, force_full, created_at)
		SELECT $1, $2, 'pending', 0, $3, NOW()
		WHERE NOT EXISTS (
			SELECT 1 FROM scan_jobs
			WHERE merchant_id = $2 AND status IN ('pending', 'processing')
		)
		RETURNING `+scanJobColumns+`
	`, jobID, merchantID, forceFull)

	job, err := scanScanJob(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, syserror.New(syserror.ErrConflict, syserror.SeverityExpected,
				fmt.Sprintf("A scan is already outstanding for merchant '%s'", merchantID), nil)
		}
		return nil, syserror.Internal("Failed to enqueue scan job", err)
	}

	return job, nil
}

// ClaimNextScanJob claims the oldest pending job and marks it processing.
// SKIP LOCKED lets concurrent pollers claim different jobs without blocking
// each other. Returns nil when the queue is empty.
func (d Datasource) ClaimNextScanJob(ctx context.Context) (*model.ScanJob, error) {
	row := d.Conn.QueryRowContext(ctx, `
		UPDATE scan_jobs
		SET status = 'processing', started_at = NOW()
		WHERE job_id = (
			SELECT job_id FROM scan_jobs
			WHERE status = 'pending'
			ORDER BY created_at ASC
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING ` + scanJobColumns)

	job, err := scanScanJob(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, syserror.Internal("Failed to claim scan job", err)
	}

	return job, nil
}

// GetScanJob retrieves a job by ID.
func (d Datasource) GetScanJob(ctx context.Context, jobID string) (*model.ScanJob, error) {
	row := d.Conn.QueryRowContext(ctx, `
		SELECT `+scanJobColumns+`
		FROM scan_jobs
		WHERE job_id = $1
	`, jobID)

	job, err := scanScanJob(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, syserror.New(syserror.ErrNotFound, syserror.SeverityExpected, fmt.Sprintf("Scan job with ID '%s' not found", jobID), err)
		}
		return nil, syserror.Internal("Failed to retrieve scan job", err)
	}

	return job, nil
}

// UpdateScanJobProgress updates the progress counter of a running job.
// Progress only ever moves forward; a stale writer cannot drag it back.
func (d Datasource) UpdateScanJobProgress(ctx context.Context, jobID string, progress int) error {
	_, err := d.Conn.ExecContext(ctx, `
		UPDATE scan_jobs
		SET progress = GREATEST(progress, $2)
		WHERE job_id = $1 AND status = 'processing'
	`, jobID, progress)
	if err != nil {
		return syserror.Internal("Failed to update scan job progress", err)
	}
	return nil
}

// CompleteScanJob marks a job completed with full progress.
func (d Datasource) CompleteScanJob(ctx context.Context, jobID string) error {
	result, err := d.Conn.ExecContext(ctx, `
		UPDATE scan_jobs
		SET status = 'completed', progress = 100, finished_at = NOW()
		WHERE job_id = $1
	`, jobID)
	if err != nil {
		return syserror.Internal("Failed to complete scan job", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return syserror.Internal("Failed to get rows affected", err)
	}
	if rowsAffected == 0 {
		return syserror.New(syserror.ErrNotFound, syserror.SeverityExpected, "Scan job not found", nil)
	}

	return nil
}

// FailScanJob marks a job failed and records the error text for the poller.
func (d Datasource) FailScanJob(ctx context.Context, jobID string, errMsg string) error {
	result, err := d.Conn.ExecContext(ctx, `
		UPDATE scan_jobs
		SET status = 'failed', error = $2, finished_at = NOW()
		WHERE job_id = $1
	`, jobID, errMsg)
	if err != nil {
		return syserror.Internal("Failed to mark scan job failed", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return syserror.Internal("Failed to get rows affected", err)
	}
	if rowsAffected == 0 {
		return syserror.New(syserror.ErrNotFound, syserror.SeverityExpected, "Scan job not found", nil)
	}

	return nil
}
