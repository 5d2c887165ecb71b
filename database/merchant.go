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
	"time"

	"github.com/lib/pq"
	"go.opentelemetry.io/otel"

	"github.com/bencullen0123-byte/Phantom-Vision-sub000/internal/syserror"
	"github.com/bencullen0123-byte/Phantom-Vision-sub000/model"
)

const merchantColumns = `merchant_id, name, credential_cipher, credential_iv, credential_tag, tier_limit,
	COALESCE(default_currency, '') as default_currency, gross_invoiced, recovered_total, protected_total,
	last_audit_at, COALESCE(last_audit_status, '') as last_audit_status, auto_pilot, send_strategy,
	COALESCE(support_email, '') as support_email, COALESCE(brand_color, '') as brand_color, created_at`

func scanMerchant(scanner interface{ Scan(...interface{}) error }) (*model.Merchant, error) {
	merchant := &model.Merchant{}
	var lastAuditAt sql.NullTime

	err := scanner.Scan(
		&merchant.MerchantID,
		&merchant.Name,
		&merchant.CredentialCipher,
		&merchant.CredentialIV,
		&merchant.CredentialTag,
		&merchant.TierLimit,
		&merchant.DefaultCurrency,
		&merchant.GrossInvoiced,
		&merchant.RecoveredTotal,
		&merchant.ProtectedTotal,
		&lastAuditAt,
		&merchant.LastAuditStatus,
		&merchant.AutoPilot,
		&merchant.SendStrategy,
		&merchant.SupportEmail,
		&merchant.BrandColor,
		&merchant.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if lastAuditAt.Valid {
		merchant.LastAuditAt = &lastAuditAt.Time
	}
	return merchant, nil
}

// CreateMerchant inserts a new merchant record. The access credential must
// already be sealed by the vault; this layer never sees plaintext.
func (d Datasource) CreateMerchant(ctx context.Context, merchant model.Merchant) (model.Merchant, error) {
	ctx, span := otel.Tracer("merchant.database").Start(ctx, "Saving merchant to db")
	defer span.End()

	merchant.MerchantID = model.GenerateUUIDWithSuffix("mer")
	merchant.CreatedAt = time.Now()
	if merchant.SendStrategy == "" {
		merchant.SendStrategy = model.SendStrategyImmediate
	}

	if err := merchant.Validate(); err != nil {
		return model.Merchant{}, syserror.New(syserror.ErrInvalidInput, syserror.SeverityExpected, "Merchant validation failed", err)
	}

	_, err := d.Conn.ExecContext(ctx, `
		INSERT INTO merchants (merchant_id, name, credential_cipher, credential_iv, credential_tag, tier_limit, default_currency, auto_pilot, send_strategy, support_email, brand_color, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`, merchant.MerchantID, merchant.Name, merchant.CredentialCipher, merchant.CredentialIV, merchant.CredentialTag,
		merchant.TierLimit, merchant.DefaultCurrency, merchant.AutoPilot, merchant.SendStrategy,
		merchant.SupportEmail, merchant.BrandColor, merchant.CreatedAt)
	if err != nil {
		pqErr, ok := err.(*pq.Error)
		if ok && pqErr.Code.Name() == "unique_violation" {
			return model.Merchant{}, syserror.New(syserror.ErrConflict, syserror.SeverityExpected, "Merchant already exists", err)
		}
		return model.Merchant{}, syserror.Internal("Failed to create merchant", err)
	}

	return merchant, nil
}

// GetMerchant retrieves a merchant by ID.
func (d Datasource) GetMerchant(ctx context.Context, id string) (*model.Merchant, error) {
	row := d.Conn.QueryRowContext(ctx, `
		SELECT `+merchantColumns+`
		FROM merchants
		WHERE merchant_id = $1
	`, id)

	merchant, err := scanMerchant(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, syserror.New(syserror.ErrNotFound, syserror.SeverityExpected, fmt.Sprintf("Merchant with ID '%s' not found", id), err)
		}
		return nil, syserror.Internal("Failed to retrieve merchant", err)
	}
	return merchant, nil
}

// GetAllMerchants retrieves merchants ordered by creation time, newest first.
func (d Datasource) GetAllMerchants(ctx context.Context, limit, offset int) ([]model.Merchant, error) {
	rows, err := d.Conn.QueryContext(ctx, `
		SELECT `+merchantColumns+`
		FROM merchants
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, syserror.Internal("Failed to retrieve merchants", err)
	}
	defer func() { _ = rows.Close() }()

	var merchants []model.Merchant
	for rows.Next() {
		merchant, err := scanMerchant(rows)
		if err != nil {
			return nil, syserror.Internal("Failed to scan merchant", err)
		}
		merchants = append(merchants, *merchant)
	}

	if err = rows.Err(); err != nil {
		return nil, syserror.Internal("Error iterating over merchants", err)
	}

	return merchants, nil
}

// UpdateMerchant updates the mutable merchant settings. Revenue totals and
// audit fields have dedicated update paths and are not touched here.
func (d Datasource) UpdateMerchant(ctx context.Context, merchant *model.Merchant) error {
	if err := merchant.Validate(); err != nil {
		return syserror.New(syserror.ErrInvalidInput, syserror.SeverityExpected, "Merchant validation failed", err)
	}

	result, err := d.Conn.ExecContext(ctx, `
		UPDATE merchants
		SET name = $2, credential_cipher = $3, credential_iv = $4, credential_tag = $5,
			tier_limit = $6, default_currency = $7, auto_pilot = $8, send_strategy = $9,
			support_email = $10, brand_color = $11
		WHERE merchant_id = $1
	`, merchant.MerchantID, merchant.Name, merchant.CredentialCipher, merchant.CredentialIV, merchant.CredentialTag,
		merchant.TierLimit, merchant.DefaultCurrency, merchant.AutoPilot, merchant.SendStrategy,
		merchant.SupportEmail, merchant.BrandColor)
	if err != nil {
		return syserror.Internal("Failed to update merchant", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return syserror.Internal("Failed to get rows affected", err)
	}
	if rowsAffected == 0 {
		return syserror.New(syserror.ErrNotFound, syserror.SeverityExpected, "Merchant not found", nil)
	}

	return nil
}

// UpdateMerchantAudit records the outcome of a scan attempt. Every scan
// attempt writes one audit mark, including skipped and failed ones, but
// only a completed scan advances the audit time: the delta window must
// keep covering everything an unfinished scan left behind.
func (d Datasource) UpdateMerchantAudit(ctx context.Context, id string, status string, auditAt time.Time) error {
	result, err := d.Conn.ExecContext(ctx, `
		UPDATE merchants
		SET last_audit_status = $3,
		    last_audit_at = CASE WHEN $3 = 'completed' THEN $2 ELSE last_audit_at END
		WHERE merchant_id = $1
	`, id, auditAt, status)
	if err != nil {
		return syserror.Internal("Failed to update merchant audit", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return syserror.Internal("Failed to get rows affected", err)
	}
	if rowsAffected == 0 {
		return syserror.New(syserror.ErrNotFound, syserror.SeverityExpected, "Merchant not found", nil)
	}

	return nil
}

// AccumulateMerchantTotals adds to the merchant's running revenue counters.
// Deltas are minor units and accumulate atomically in the database so that
// concurrent scans never lose an update.
func (d Datasource) AccumulateMerchantTotals(ctx context.Context, id string, gross, recovered, protected int64) error {
	ctx, span := otel.Tracer("merchant.database").Start(ctx, "Accumulating merchant totals")
	defer span.End()

	result, err := d.Conn.ExecContext(ctx, `
		UPDATE merchants
		SET gross_invoiced = gross_invoiced + $2,
			recovered_total = recovered_total + $3,
			protected_total = protected_total + $4
		WHERE merchant_id = $1
	`, id, gross, recovered, protected)
	if err != nil {
		return syserror.Internal("Failed to accumulate merchant totals", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return syserror.Internal("Failed to get rows affected", err)
	}
	if rowsAffected == 0 {
		return syserror.New(syserror.ErrNotFound, syserror.SeverityExpected, "Merchant not found", nil)
	}

	return nil
}
