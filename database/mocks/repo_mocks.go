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
package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/bencullen0123-byte/Phantom-Vision-sub000/model"
)

// MockDataSource is a mock implementation of the IDataSource interface
type MockDataSource struct {
	mock.Mock
}

// Merchant methods

func (m *MockDataSource) CreateMerchant(ctx context.Context, merchant model.Merchant) (model.Merchant, error) {
	args := m.Called(ctx, merchant)
	return args.Get(0).(model.Merchant), args.Error(1)
}

func (m *MockDataSource) GetMerchant(ctx context.Context, id string) (*model.Merchant, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Merchant), args.Error(1)
}

func (m *MockDataSource) GetAllMerchants(ctx context.Context, limit, offset int) ([]model.Merchant, error) {
	args := m.Called(ctx, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Merchant), args.Error(1)
}

func (m *MockDataSource) UpdateMerchant(ctx context.Context, merchant *model.Merchant) error {
	args := m.Called(ctx, merchant)
	return args.Error(0)
}

func (m *MockDataSource) UpdateMerchantAudit(ctx context.Context, id string, status string, auditAt time.Time) error {
	args := m.Called(ctx, id, status, auditAt)
	return args.Error(0)
}

func (m *MockDataSource) AccumulateMerchantTotals(ctx context.Context, id string, gross, recovered, protected int64) error {
	args := m.Called(ctx, id, gross, recovered, protected)
	return args.Error(0)
}

// Target methods

func (m *MockDataSource) UpsertTargetByNaturalKey(ctx context.Context, tgt *model.Target) (bool, error) {
	args := m.Called(ctx, tgt)
	return args.Bool(0), args.Error(1)
}

func (m *MockDataSource) BatchUpsertTargets(ctx context.Context, targets []*model.Target) (int, int, error) {
	args := m.Called(ctx, targets)
	return args.Int(0), args.Int(1), args.Error(2)
}

func (m *MockDataSource) GetTarget(ctx context.Context, id string) (*model.Target, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Target), args.Error(1)
}

func (m *MockDataSource) GetTargetByNaturalKey(ctx context.Context, naturalKey string) (*model.Target, error) {
	args := m.Called(ctx, naturalKey)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Target), args.Error(1)
}

func (m *MockDataSource) CountActiveTargets(ctx context.Context, merchantID string) (int, error) {
	args := m.Called(ctx, merchantID)
	return args.Int(0), args.Error(1)
}

func (m *MockDataSource) GetContactableTargets(ctx context.Context, merchantID string, limit int) ([]*model.Target, error) {
	args := m.Called(ctx, merchantID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.Target), args.Error(1)
}

func (m *MockDataSource) UpdateTargetStatus(ctx context.Context, targetID, status, recoveryType string) error {
	args := m.Called(ctx, targetID, status, recoveryType)
	return args.Error(0)
}

func (m *MockDataSource) UpdateTargetOutreach(ctx context.Context, tgt *model.Target) error {
	args := m.Called(ctx, tgt)
	return args.Error(0)
}

func (m *MockDataSource) RegisterTargetClick(ctx context.Context, targetID string, expiresAt time.Time) error {
	args := m.Called(ctx, targetID, expiresAt)
	return args.Error(0)
}

// Timing methods

func (m *MockDataSource) RecordTimingSamples(ctx context.Context, merchantID string, samples []model.TimingSample) error {
	args := m.Called(ctx, merchantID, samples)
	return args.Error(0)
}

func (m *MockDataSource) GetGoldenHour(ctx context.Context, merchantID string) (*model.GoldenHour, error) {
	args := m.Called(ctx, merchantID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.GoldenHour), args.Error(1)
}

// Job lock methods

func (m *MockDataSource) AcquireJobLock(ctx context.Context, jobName, holderID string, ttl time.Duration) (model.LockResult, error) {
	args := m.Called(ctx, jobName, holderID, ttl)
	return args.Get(0).(model.LockResult), args.Error(1)
}

func (m *MockDataSource) ReleaseJobLock(ctx context.Context, jobName, holderID string) (bool, error) {
	args := m.Called(ctx, jobName, holderID)
	return args.Bool(0), args.Error(1)
}

// Scan job methods

func (m *MockDataSource) EnqueueScanJob(ctx context.Context, merchantID string, forceFull bool) (*model.ScanJob, error) {
	args := m.Called(ctx, merchantID, forceFull)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.ScanJob), args.Error(1)
}

func (m *MockDataSource) ClaimNextScanJob(ctx context.Context) (*model.ScanJob, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.ScanJob), args.Error(1)
}

func (m *MockDataSource) GetScanJob(ctx context.Context, jobID string) (*model.ScanJob, error) {
	args := m.Called(ctx, jobID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.ScanJob), args.Error(1)
}

func (m *MockDataSource) UpdateScanJobProgress(ctx context.Context, jobID string, progress int) error {
	args := m.Called(ctx, jobID, progress)
	return args.Error(0)
}

func (m *MockDataSource) CompleteScanJob(ctx context.Context, jobID string) error {
	args := m.Called(ctx, jobID)
	return args.Error(0)
}

func (m *MockDataSource) FailScanJob(ctx context.Context, jobID string, errMsg string) error {
	args := m.Called(ctx, jobID, errMsg)
	return args.Error(0)
}

// System log methods

func (m *MockDataSource) CreateSystemLog(ctx context.Context, entry *model.SystemLog) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *MockDataSource) GetSystemLogs(ctx context.Context, merchantID string, limit, offset int) ([]model.SystemLog, error) {
	args := m.Called(ctx, merchantID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.SystemLog), args.Error(1)
}
