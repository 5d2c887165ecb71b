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
	"encoding/json"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"

	"github.com/bencullen0123-byte/Phantom-Vision-sub000/internal/syserror"
	"github.com/bencullen0123-byte/Phantom-Vision-sub000/model"
)

const targetColumns = `target_id, merchant_id, email_cipher, email_iv, email_tag, name_cipher, name_iv, name_tag,
	amount, currency, natural_key, status, COALESCE(decline_type, '') as decline_type,
	COALESCE(strategy, '') as strategy, COALESCE(recovery_type, '') as recovery_type,
	email_count, last_emailed_at, click_count, attribution_expires_at, discovered_at, purge_at, meta_data`

// upsertTargetQuery creates a target or refreshes the volatile fields of an
// existing one. Terminal rows (recovered, protected, exhausted) are never
// reverted, and outreach counters survive the refresh. The RETURNING clause
// uses xmax to tell an insert from an update; a conflict with a terminal row
// returns no row at all.
const upsertTargetQuery = `
	INSERT INTO targets (target_id, merchant_id, email_cipher, email_iv, email_tag, name_cipher, name_iv, name_tag,
		amount, currency, natural_key, status, decline_type, strategy, email_count, click_count, discovered_at, purge_at, meta_data)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, 0, 0, $15, $16, $17)
	ON CONFLICT (natural_key) DO UPDATE SET
		email_cipher = EXCLUDED.email_cipher,
		email_iv = EXCLUDED.email_iv,
		email_tag = EXCLUDED.email_tag,
		name_cipher = EXCLUDED.name_cipher,
		name_iv = EXCLUDED.name_iv,
		name_tag = EXCLUDED.name_tag,
		amount = EXCLUDED.amount,
		currency = EXCLUDED.currency,
		decline_type = EXCLUDED.decline_type,
		strategy = EXCLUDED.strategy,
		meta_data = EXCLUDED.meta_data
	WHERE targets.status IN ('pending', 'impending')
	RETURNING (xmax = 0) AS inserted
`

func scanTarget(scanner interface{ Scan(...interface{}) error }) (*model.Target, error) {
	tgt := &model.Target{}
	var declineType string
	var lastEmailedAt, attributionExpiresAt sql.NullTime
	var metaDataJSON []byte

	err := scanner.Scan(
		&tgt.TargetID,
		&tgt.MerchantID,
		&tgt.EmailCipher,
		&tgt.EmailIV,
		&tgt.EmailTag,
		&tgt.NameCipher,
		&tgt.NameIV,
		&tgt.NameTag,
		&tgt.Amount,
		&tgt.Currency,
		&tgt.NaturalKey,
		&tgt.Status,
		&declineType,
		&tgt.Strategy,
		&tgt.RecoveryType,
		&tgt.EmailCount,
		&lastEmailedAt,
		&tgt.ClickCount,
		&attributionExpiresAt,
		&tgt.DiscoveredAt,
		&tgt.PurgeAt,
		&metaDataJSON,
	)
	if err != nil {
		return nil, err
	}

	tgt.DeclineType = model.DeclineType(declineType)
	if lastEmailedAt.Valid {
		tgt.LastEmailedAt = &lastEmailedAt.Time
	}
	if attributionExpiresAt.Valid {
		tgt.AttributionExpiresAt = &attributionExpiresAt.Time
	}
	if len(metaDataJSON) > 0 {
		if err := json.Unmarshal(metaDataJSON, &tgt.Metadata); err != nil {
			return nil, err
		}
	}

	return tgt, nil
}

func upsertTargetInTx(ctx context.Context, tx *sql.Tx, tgt *model.Target) (bool, bool, error) {
	if tgt.TargetID == "" {
		tgt.TargetID = model.GenerateUUIDWithSuffix("tgt")
	}
	if tgt.DiscoveredAt.IsZero() {
		tgt.DiscoveredAt = time.Now()
	}
	if tgt.PurgeAt.IsZero() {
		tgt.PurgeAt = tgt.DiscoveredAt.Add(model.PurgeWindow)
	}

	if err := tgt.Validate(); err != nil {
		return false, false, syserror.New(syserror.ErrInvalidInput, syserror.SeverityExpected, "Target validation failed", err)
	}

	metaDataJSON, err := json.Marshal(tgt.Metadata)
	if err != nil {
		return false, false, syserror.Internal("Failed to marshal metadata", err)
	}

	var inserted bool
	err = tx.QueryRowContext(ctx, upsertTargetQuery,
		tgt.TargetID, tgt.MerchantID, tgt.EmailCipher, tgt.EmailIV, tgt.EmailTag,
		tgt.NameCipher, tgt.NameIV, tgt.NameTag, tgt.Amount, tgt.Currency,
		tgt.NaturalKey, tgt.Status, string(tgt.DeclineType), tgt.Strategy,
		tgt.DiscoveredAt, tgt.PurgeAt, metaDataJSON,
	).Scan(&inserted)
	if err != nil {
		if err == sql.ErrNoRows {
			// Conflict with a terminal row; nothing to refresh.
			return false, false, nil
		}
		return false, false, syserror.Internal("Failed to upsert target", err)
	}

	return inserted, !inserted, nil
}

// UpsertTargetByNaturalKey creates a target or refreshes an existing one
// keyed on the provider natural key. Returns true when a new row was created.
func (d Datasource) UpsertTargetByNaturalKey(ctx context.Context, tgt *model.Target) (bool, error) {
	ctx, span := otel.Tracer("target.database").Start(ctx, "Upserting target")
	defer span.End()

	tx, err := d.Conn.BeginTx(ctx, nil)
	if err != nil {
		return false, syserror.Internal("Failed to begin transaction", err)
	}

	created, _, err := upsertTargetInTx(ctx, tx, tgt)
	if err != nil {
		_ = tx.Rollback()
		return false, err
	}

	if err := tx.Commit(); err != nil {
		return false, syserror.Internal("Failed to commit target upsert", err)
	}
	return created, nil
}

// BatchUpsertTargets upserts a scan batch in one transaction. A failure on
// any row rolls back the whole batch so a partial page is never persisted.
// Returns the number of rows created and refreshed.
func (d Datasource) BatchUpsertTargets(ctx context.Context, targets []*model.Target) (int, int, error) {
	ctx, span := otel.Tracer("target.database").Start(ctx, "Upserting target batch")
	defer span.End()

	if len(targets) == 0 {
		return 0, 0, nil
	}

	tx, err := d.Conn.BeginTx(ctx, nil)
	if err != nil {
		return 0, 0, syserror.Internal("Failed to begin transaction", err)
	}

	var created, updated int
	for _, tgt := range targets {
		wasCreated, wasUpdated, err := upsertTargetInTx(ctx, tx, tgt)
		if err != nil {
			_ = tx.Rollback()
			return 0, 0, syserror.New(syserror.ErrBatchAborted, syserror.SeverityCritical,
				fmt.Sprintf("Target batch aborted at natural key '%s'", tgt.NaturalKey), err)
		}
		if wasCreated {
			created++
		}
		if wasUpdated {
			updated++
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, 0, syserror.Internal("Failed to commit target batch", err)
	}

	return created, updated, nil
}

// GetTarget retrieves a target by ID.
func (d Datasource) GetTarget(ctx context.Context, id string) (*model.Target, error) {
	row := d.Conn.QueryRowContext(ctx, `
		SELECT `+targetColumns+`
		FROM targets
		WHERE target_id = $1
	`, id)

	tgt, err := scanTarget(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, syserror.New(syserror.ErrNotFound, syserror.SeverityExpected, fmt.Sprintf("Target with ID '%s' not found", id), err)
		}
		return nil, syserror.Internal("Failed to retrieve target", err)
	}
	return tgt, nil
}

// GetTargetByNaturalKey retrieves a target by its provider natural key.
// Returns nil when no row exists; absence is an ordinary outcome here.
func (d Datasource) GetTargetByNaturalKey(ctx context.Context, naturalKey string) (*model.Target, error) {
	row := d.Conn.QueryRowContext(ctx, `
		SELECT `+targetColumns+`
		FROM targets
		WHERE natural_key = $1
	`, naturalKey)

	tgt, err := scanTarget(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, syserror.Internal("Failed to retrieve target", err)
	}
	return tgt, nil
}

// CountActiveTargets counts the live targets charged against the merchant's
// tier capacity.
func (d Datasource) CountActiveTargets(ctx context.Context, merchantID string) (int, error) {
	var count int
	err := d.Conn.QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM targets
		WHERE merchant_id = $1 AND status IN ('pending', 'impending')
	`, merchantID).Scan(&count)
	if err != nil {
		return 0, syserror.Internal("Failed to count active targets", err)
	}
	return count, nil
}

// GetContactableTargets retrieves targets still eligible for outreach,
// oldest first. The discovery grace period is enforced by the caller since
// it is a dispatch policy, not a storage one.
func (d Datasource) GetContactableTargets(ctx context.Context, merchantID string, limit int) ([]*model.Target, error) {
	rows, err := d.Conn.QueryContext(ctx, `
		SELECT `+targetColumns+`
		FROM targets
		WHERE merchant_id = $1
		  AND status IN ('pending', 'impending')
		  AND email_count < $2
		  AND purge_at > NOW()
		ORDER BY discovered_at ASC
		LIMIT $3
	`, merchantID, model.MaxEmailContacts, limit)
	if err != nil {
		return nil, syserror.Internal("Failed to retrieve contactable targets", err)
	}
	defer func() { _ = rows.Close() }()

	var targets []*model.Target
	for rows.Next() {
		tgt, err := scanTarget(rows)
		if err != nil {
			return nil, syserror.Internal("Failed to scan target", err)
		}
		targets = append(targets, tgt)
	}

	if err = rows.Err(); err != nil {
		return nil, syserror.Internal("Error iterating over targets", err)
	}

	return targets, nil
}

// UpdateTargetStatus moves a target to a new status, stamping the recovery
// type when the move is a recovery.
func (d Datasource) UpdateTargetStatus(ctx context.Context, targetID, status, recoveryType string) error {
	var recovery interface{} = recoveryType
	if recoveryType == "" {
		recovery = nil
	}

	result, err := d.Conn.ExecContext(ctx, `
		UPDATE targets
		SET status = $2, recovery_type = COALESCE($3, recovery_type)
		WHERE target_id = $1
	`, targetID, status, recovery)
	if err != nil {
		return syserror.Internal("Failed to update target status", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return syserror.Internal("Failed to get rows affected", err)
	}
	if rowsAffected == 0 {
		return syserror.New(syserror.ErrNotFound, syserror.SeverityExpected, "Target not found", nil)
	}

	return nil
}

// UpdateTargetOutreach persists the post-send counters and any status
// transition the send caused.
func (d Datasource) UpdateTargetOutreach(ctx context.Context, tgt *model.Target) error {
	result, err := d.Conn.ExecContext(ctx, `
		UPDATE targets
		SET email_count = $2, last_emailed_at = $3, status = $4
		WHERE target_id = $1
	`, tgt.TargetID, tgt.EmailCount, tgt.LastEmailedAt, tgt.Status)
	if err != nil {
		return syserror.Internal("Failed to update target outreach", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return syserror.Internal("Failed to get rows affected", err)
	}
	if rowsAffected == 0 {
		return syserror.New(syserror.ErrNotFound, syserror.SeverityExpected, "Target not found", nil)
	}

	return nil
}

// RegisterTargetClick opens (or refreshes) the attribution window after an
// outreach email click.
func (d Datasource) RegisterTargetClick(ctx context.Context, targetID string, expiresAt time.Time) error {
	result, err := d.Conn.ExecContext(ctx, `
		UPDATE targets
		SET click_count = click_count + 1, attribution_expires_at = $2
		WHERE target_id = $1
	`, targetID, expiresAt)
	if err != nil {
		return syserror.Internal("Failed to register target click", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return syserror.Internal("Failed to get rows affected", err)
	}
	if rowsAffected == 0 {
		return syserror.New(syserror.ErrNotFound, syserror.SeverityExpected, "Target not found", nil)
	}

	return nil
}
