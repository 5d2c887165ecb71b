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

	"github.com/bencullen0123-byte/Phantom-Vision-sub000/internal/syserror"
	"github.com/bencullen0123-byte/Phantom-Vision-sub000/model"
)

// acquireJobLockQuery claims the named lock in a single atomic statement.
// The insert wins when no row exists; the conditional update steals the row
// when the current holder's lease has outlived the TTL. A live lock matches
// neither branch and returns no row. xmax distinguishes a fresh claim from
// a steal.
const acquireJobLockQuery = `
	INSERT INTO job_locks (job_name, holder_id, created_at)
	VALUES ($1, $2, NOW())
	ON CONFLICT (job_name) DO UPDATE
	SET holder_id = EXCLUDED.holder_id, created_at = NOW()
	WHERE job_locks.created_at < NOW() - make_interval(secs => $3)
	RETURNING (xmax <> 0) AS stolen
`

// AcquireJobLock attempts to claim a named scheduler lock. A lock whose
// lease is older than the TTL is treated as abandoned and stolen; the result
// records the steal so the caller can log the takeover.
func (d Datasource) AcquireJobLock(ctx context.Context, jobName, holderID string, ttl time.Duration) (model.LockResult, error) {
	var stolen bool
	err := d.Conn.QueryRowContext(ctx, acquireJobLockQuery, jobName, holderID, ttl.Seconds()).Scan(&stolen)
	if err != nil {
		if err == sql.ErrNoRows {
			// Another holder owns a live lease.
			return model.LockResult{Acquired: false, HolderID: holderID}, nil
		}
		return model.LockResult{}, syserror.Internal("Failed to acquire job lock", err)
	}

	return model.LockResult{Acquired: true, HolderID: holderID, WasStolen: stolen}, nil
}

// ReleaseJobLock releases the lock only when the caller still holds it.
// A holder whose lease was stolen mid-run gets false back and must not
// touch the lock; the thief owns it now.
func (d Datasource) ReleaseJobLock(ctx context.Context, jobName, holderID string) (bool, error) {
	result, err := d.Conn.ExecContext(ctx, `
		DELETE FROM job_locks
		WHERE job_name = $1 AND holder_id = $2
	`, jobName, holderID)
	if err != nil {
		return false, syserror.Internal("Failed to release job lock", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, syserror.Internal("Failed to get rows affected", err)
	}

	return rowsAffected > 0, nil
}
