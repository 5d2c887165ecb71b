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

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/bencullen0123-byte/Phantom-Vision-sub000/database/mocks"
	"github.com/bencullen0123-byte/Phantom-Vision-sub000/model"
)

func TestRequestScan_ReturnsJobImmediately(t *testing.T) {
	ds := new(mocks.MockDataSource)
	p, _ := newTestPhantom(t, ds, nil)

	queued := &model.ScanJob{JobID: "job_1", MerchantID: "mer_1", Status: model.JobStatusPending}
	ds.On("EnqueueScanJob", mock.Anything, "mer_1", true).Return(queued, nil)

	job, err := p.RequestScan(context.Background(), "mer_1", true)
	require.NoError(t, err)
	assert.Equal(t, "job_1", job.JobID)
	assert.Equal(t, model.JobStatusPending, job.Status)
}

func TestJobPoller_StartStop(t *testing.T) {
	ds := new(mocks.MockDataSource)
	p, _ := newTestPhantom(t, ds, nil)

	poller, err := NewJobPoller(p)
	require.NoError(t, err)

	poller.Start(context.Background())
	assert.True(t, poller.IsRunning())

	poller.Stop()
	assert.False(t, poller.IsRunning())
}

func TestProcessNext_EmptyQueueIsQuiet(t *testing.T) {
	ds := new(mocks.MockDataSource)
	p, _ := newTestPhantom(t, ds, nil)

	poller, err := NewJobPoller(p)
	require.NoError(t, err)

	ds.On("ClaimNextScanJob", mock.Anything).Return(nil, nil)

	poller.processNext(context.Background())

	ds.AssertNotCalled(t, "UpdateScanJobProgress", mock.Anything, mock.Anything, mock.Anything)
	ds.AssertNotCalled(t, "CompleteScanJob", mock.Anything, mock.Anything)
	ds.AssertNotCalled(t, "FailScanJob", mock.Anything, mock.Anything, mock.Anything)
}

func TestProcessNext_FailedScanMarksJobFailed(t *testing.T) {
	ds := new(mocks.MockDataSource)
	p, _ := newTestPhantom(t, ds, nil)

	poller, err := NewJobPoller(p)
	require.NoError(t, err)

	job := &model.ScanJob{JobID: "job_fail", MerchantID: "mer_gone", Status: model.JobStatusProcessing}
	ds.On("ClaimNextScanJob", mock.Anything).Return(job, nil)
	ds.On("GetMerchant", mock.Anything, "mer_gone").Return(nil, assert.AnError)
	ds.On("FailScanJob", mock.Anything, "job_fail", mock.Anything).Return(nil)

	poller.processNext(context.Background())

	ds.AssertExpectations(t)
	ds.AssertNotCalled(t, "CompleteScanJob", mock.Anything, mock.Anything)
}

func TestProcessNext_CompletedScanMarksJobDone(t *testing.T) {
	ds := new(mocks.MockDataSource)
	p, _ := newTestPhantom(t, ds, nil)

	poller, err := NewJobPoller(p)
	require.NoError(t, err)

	merchant := newTestMerchant(t, p)
	merchant.TierLimit = 1

	job := &model.ScanJob{JobID: "job_ok", MerchantID: merchant.MerchantID, Status: model.JobStatusProcessing}
	ds.On("ClaimNextScanJob", mock.Anything).Return(job, nil)
	ds.On("GetMerchant", mock.Anything, merchant.MerchantID).Return(merchant, nil)
	// Capacity already exhausted: the scan is a clean skip, the job still
	// completes.
	ds.On("CountActiveTargets", mock.Anything, merchant.MerchantID).Return(1, nil)
	ds.On("UpdateMerchantAudit", mock.Anything, merchant.MerchantID, model.AuditStatusSkipped, mock.Anything).Return(nil)
	ds.On("CreateSystemLog", mock.Anything, mock.Anything).Return(nil)
	ds.On("CompleteScanJob", mock.Anything, "job_ok").Return(nil)

	poller.processNext(context.Background())

	ds.AssertExpectations(t)
}
