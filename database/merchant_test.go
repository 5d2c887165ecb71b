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
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/brianvoe/gofakeit/v6"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"

	"github.com/bencullen0123-byte/Phantom-Vision-sub000/internal/syserror"
	"github.com/bencullen0123-byte/Phantom-Vision-sub000/model"
)

func TestCreateMerchant_Success(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}

	merchant := model.Merchant{
		Name:             gofakeit.Company(),
		CredentialCipher: "cipher",
		CredentialIV:     "iv",
		CredentialTag:    "tag",
		TierLimit:        250,
		DefaultCurrency:  "USD",
	}

	mock.ExpectExec("INSERT INTO merchants").
		WillReturnResult(sqlmock.NewResult(1, 1))

	created, err := ds.CreateMerchant(context.Background(), merchant)
	assert.NoError(t, err)
	assert.NotEmpty(t, created.MerchantID)
	assert.Equal(t, model.SendStrategyImmediate, created.SendStrategy)
	assert.WithinDuration(t, time.Now(), created.CreatedAt, time.Second)
}

func TestCreateMerchant_UniqueViolation(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}

	merchant := model.Merchant{
		Name:      gofakeit.Company(),
		TierLimit: 100,
	}

	mock.ExpectExec("INSERT INTO merchants").
		WillReturnError(&pq.Error{Code: "23505", Message: "unique_violation"})

	_, err = ds.CreateMerchant(context.Background(), merchant)
	assert.Error(t, err)
	sysErr, ok := err.(syserror.SysError)
	assert.True(t, ok)
	assert.Equal(t, syserror.ErrConflict, sysErr.Code)
}

func TestGetMerchant_NotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}

	mock.ExpectQuery("SELECT").
		WithArgs("mer_missing").
		WillReturnRows(sqlmock.NewRows([]string{"merchant_id"}))

	_, err = ds.GetMerchant(context.Background(), "mer_missing")
	assert.Error(t, err)
	sysErr, ok := err.(syserror.SysError)
	assert.True(t, ok)
	assert.Equal(t, syserror.ErrNotFound, sysErr.Code)
	assert.Equal(t, syserror.SeverityExpected, sysErr.Severity)
}

func TestAccumulateMerchantTotals(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}

	mock.ExpectExec("UPDATE merchants").
		WithArgs("mer_1", int64(120000), int64(2999), int64(999)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err = ds.AccumulateMerchantTotals(context.Background(), "mer_1", 120000, 2999, 999)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateMerchantAudit(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}
	auditAt := time.Now()

	mock.ExpectExec("UPDATE merchants").
		WithArgs("mer_1", auditAt, model.AuditStatusCompleted).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err = ds.UpdateMerchantAudit(context.Background(), "mer_1", model.AuditStatusCompleted, auditAt)
	assert.NoError(t, err)
}

func TestUpdateMerchantAuditKeepsWindowOnSkip(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}
	auditAt := time.Now()

	// The update only moves last_audit_at for a completed scan; skipped and
	// failed marks must leave the delta window in place.
	mock.ExpectExec(`CASE WHEN \$3 = 'completed' THEN \$2 ELSE last_audit_at END`).
		WithArgs("mer_1", auditAt, model.AuditStatusSkipped).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err = ds.UpdateMerchantAudit(context.Background(), "mer_1", model.AuditStatusSkipped, auditAt)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
