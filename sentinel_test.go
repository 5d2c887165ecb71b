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

package phantomvision

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/bencullen0123-byte/Phantom-Vision-sub000/database/mocks"
	"github.com/bencullen0123-byte/Phantom-Vision-sub000/internal/syserror"
	"github.com/bencullen0123-byte/Phantom-Vision-sub000/model"
)

func TestRunExclusive_SkipsWhenLockHeldByLivePeer(t *testing.T) {
	ds := new(mocks.MockDataSource)
	p, _ := newTestPhantom(t, ds, nil)
	sentinel := NewSentinel(p)

	ds.On("AcquireJobLock", mock.Anything, "dispatch", mock.Anything, 15*time.Minute).
		Return(model.LockResult{Acquired: false}, nil)

	ran := false
	sentinel.runExclusive(context.Background(), "dispatch", 15*time.Minute, func(context.Context) error {
		ran = true
		return nil
	})

	assert.False(t, ran)
	ds.AssertNotCalled(t, "ReleaseJobLock", mock.Anything, mock.Anything, mock.Anything)
}

func TestRunExclusive_RunsAndReleasesAfterSteal(t *testing.T) {
	ds := new(mocks.MockDataSource)
	p, _ := newTestPhantom(t, ds, nil)
	sentinel := NewSentinel(p)

	var holderID string
	ds.On("AcquireJobLock", mock.Anything, "scan_fanout", mock.Anything, 30*time.Minute).
		Run(func(args mock.Arguments) {
			holderID = args.String(2)
		}).
		Return(model.LockResult{Acquired: true, WasStolen: true}, nil)
	ds.On("ReleaseJobLock", mock.Anything, "scan_fanout", mock.MatchedBy(func(id string) bool {
		return id == holderID
	})).Return(true, nil)

	ran := false
	sentinel.runExclusive(context.Background(), "scan_fanout", 30*time.Minute, func(context.Context) error {
		ran = true
		return nil
	})

	assert.True(t, ran)
	ds.AssertExpectations(t)
}

func TestRunExclusive_ReleasesWithOwnHolderEvenOnJobError(t *testing.T) {
	ds := new(mocks.MockDataSource)
	p, _ := newTestPhantom(t, ds, nil)
	sentinel := NewSentinel(p)

	ds.On("AcquireJobLock", mock.Anything, "dispatch", mock.Anything, time.Minute).
		Return(model.LockResult{Acquired: true}, nil)
	ds.On("ReleaseJobLock", mock.Anything, "dispatch", mock.Anything).Return(true, nil)

	sentinel.runExclusive(context.Background(), "dispatch", time.Minute, func(context.Context) error {
		return assert.AnError
	})

	ds.AssertExpectations(t)
}

func TestScanFanout_SkipsMerchantsWithOutstandingJobs(t *testing.T) {
	ds := new(mocks.MockDataSource)
	p, _ := newTestPhantom(t, ds, nil)
	sentinel := NewSentinel(p)

	merchants := []model.Merchant{
		{MerchantID: "mer_a"},
		{MerchantID: "mer_b"},
	}

	ds.On("GetAllMerchants", mock.Anything, merchantPageSize, 0).Return(merchants, nil)
	ds.On("EnqueueScanJob", mock.Anything, "mer_a", false).
		Return(&model.ScanJob{JobID: "job_a", MerchantID: "mer_a", Status: model.JobStatusPending}, nil)
	ds.On("EnqueueScanJob", mock.Anything, "mer_b", false).
		Return(nil, syserror.New(syserror.ErrConflict, syserror.SeverityExpected,
			"A scan is already outstanding for merchant 'mer_b'", nil))
	ds.On("CreateSystemLog", mock.Anything, mock.MatchedBy(func(entry *model.SystemLog) bool {
		return entry.Component == "sentinel" &&
			entry.Payload["queued"] == 1 &&
			entry.Payload["outstanding_skipped"] == 1
	})).Return(nil)

	err := sentinel.scanFanout(context.Background())
	require.NoError(t, err)
	ds.AssertExpectations(t)
}

func TestSentinel_StartStop(t *testing.T) {
	ds := new(mocks.MockDataSource)
	p, _ := newTestPhantom(t, ds, nil)
	sentinel := NewSentinel(p)

	require.NoError(t, sentinel.Start(context.Background()))
	assert.True(t, sentinel.IsRunning())

	// Starting twice is a no-op.
	require.NoError(t, sentinel.Start(context.Background()))

	sentinel.Stop()
	assert.False(t, sentinel.IsRunning())
}
