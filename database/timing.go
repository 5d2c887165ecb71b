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
	"time"

	"github.com/lib/pq"

	"github.com/bencullen0123-byte/Phantom-Vision-sub000/internal/syserror"
	"github.com/bencullen0123-byte/Phantom-Vision-sub000/model"
)

// RecordTimingSamples stores a batch of successful-payment timestamps using
// a bulk copy. Samples carry only the weekday and hour, never the customer.
func (d Datasource) RecordTimingSamples(ctx context.Context, merchantID string, samples []model.TimingSample) error {
	if len(samples) == 0 {
		return nil
	}

	tx, err := d.Conn.BeginTx(ctx, nil)
	if err != nil {
		return syserror.Internal("Failed to begin transaction", err)
	}

	stmt, err := tx.PrepareContext(ctx, pq.CopyIn("timing_samples", "merchant_id", "day_of_week", "hour_of_day", "created_at"))
	if err != nil {
		_ = tx.Rollback()
		return syserror.Internal("Failed to prepare timing sample copy", err)
	}

	now := time.Now()
	for _, sample := range samples {
		if _, err := stmt.ExecContext(ctx, merchantID, sample.DayOfWeek, sample.HourOfDay, now); err != nil {
			_ = tx.Rollback()
			return syserror.Internal("Failed to buffer timing sample", err)
		}
	}

	if _, err := stmt.ExecContext(ctx); err != nil {
		_ = tx.Rollback()
		return syserror.Internal("Failed to flush timing samples", err)
	}
	if err := stmt.Close(); err != nil {
		_ = tx.Rollback()
		return syserror.Internal("Failed to close timing sample copy", err)
	}

	if err := tx.Commit(); err != nil {
		return syserror.Internal("Failed to commit timing samples", err)
	}
	return nil
}

// GetGoldenHour computes the merchant's modal payment window: the
// day-of-week/hour-of-day pair with the most samples. Ties break toward the
// earlier slot so the result is stable. Returns nil when no samples exist,
// which callers treat as "no window restriction".
func (d Datasource) GetGoldenHour(ctx context.Context, merchantID string) (*model.GoldenHour, error) {
	row := d.Conn.QueryRowContext(ctx, `
		SELECT day_of_week, hour_of_day, COUNT(*) AS samples
		FROM timing_samples
		WHERE merchant_id = $1
		GROUP BY day_of_week, hour_of_day
		ORDER BY samples DESC, day_of_week ASC, hour_of_day ASC
		LIMIT 1
	`, merchantID)

	var golden model.GoldenHour
	err := row.Scan(&golden.DayOfWeek, &golden.HourOfDay, &golden.Samples)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, syserror.Internal("Failed to compute golden hour", err)
	}

	return &golden, nil
}
