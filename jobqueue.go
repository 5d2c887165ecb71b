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
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/trace"

	"github.com/bencullen0123-byte/Phantom-Vision-sub000/config"
	"github.com/bencullen0123-byte/Phantom-Vision-sub000/model"
)

// RequestScan queues a scan for the merchant and returns the job row
// immediately, letting callers poll progress while the scan runs in the
// background. At most one job may be outstanding per merchant.
func (p *Phantom) RequestScan(ctx context.Context, merchantID string, forceFull bool) (*model.ScanJob, error) {
	return p.datasource.EnqueueScanJob(ctx, merchantID, forceFull)
}

// GetScanJob retrieves a queued or finished scan job by id.
func (p *Phantom) GetScanJob(ctx context.Context, jobID string) (*model.ScanJob, error) {
	return p.datasource.GetScanJob(ctx, jobID)
}

// JobPoller claims pending scan jobs at a fixed interval and runs the
// scanner against them, streaming progress updates into the job row.
type JobPoller struct {
	phantom  *Phantom
	interval time.Duration
	stopChan chan struct{}
	wg       sync.WaitGroup
	mu       sync.Mutex
	running  bool
}

// NewJobPoller creates a poller with the configured claim interval.
func NewJobPoller(phantom *Phantom) (*JobPoller, error) {
	cfg, err := config.Fetch()
	if err != nil {
		return nil, err
	}
	return &JobPoller{
		phantom:  phantom,
		interval: time.Duration(cfg.Scheduler.JobPollIntervalSec) * time.Second,
		stopChan: make(chan struct{}),
	}, nil
}

// Start begins the polling loop in a background goroutine.
func (w *JobPoller) Start(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		return
	}

	w.running = true
	w.wg.Add(1)
	go w.run(ctx)
	logrus.WithFields(logrus.Fields{"interval": w.interval}).Info("scan job poller started")
}

// Stop halts the polling loop and waits for the current job to finish.
func (w *JobPoller) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.running {
		return
	}

	close(w.stopChan)
	w.wg.Wait()
	w.running = false
	logrus.Info("scan job poller stopped")
}

// IsRunning returns whether the poller is currently active.
func (w *JobPoller) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

func (w *JobPoller) run(ctx context.Context) {
	defer w.wg.Done()

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopChan:
			return
		case <-ticker.C:
			w.processNext(ctx)
		}
	}
}

// processNext claims at most one pending job and runs it to a terminal
// state. The claim is atomic, so concurrent pollers never double-run a job.
func (w *JobPoller) processNext(ctx context.Context) {
	job, err := w.phantom.datasource.ClaimNextScanJob(ctx)
	if err != nil {
		logrus.Error(err)
		return
	}
	if job == nil {
		return
	}

	logrus.WithFields(logrus.Fields{
		"job_id":      job.JobID,
		"merchant_id": job.MerchantID,
		"force_full":  job.ForceFull,
	}).Info("claimed scan job")

	// Detach the context so a poller shutdown cannot strand a claimed job
	// in the running state; the job always reaches completed or failed.
	jobCtx := trace.ContextWithSpan(context.Background(), trace.SpanFromContext(ctx))

	progress := func(pct int) {
		if err := w.phantom.datasource.UpdateScanJobProgress(jobCtx, job.JobID, pct); err != nil {
			logrus.WithFields(logrus.Fields{"job_id": job.JobID}).Error(err)
		}
	}

	if _, err := w.phantom.scanWithProgress(jobCtx, job.MerchantID, job.ForceFull, progress); err != nil {
		if failErr := w.phantom.datasource.FailScanJob(jobCtx, job.JobID, err.Error()); failErr != nil {
			logrus.WithFields(logrus.Fields{"job_id": job.JobID}).Error(failErr)
		}
		return
	}
	if err := w.phantom.datasource.CompleteScanJob(jobCtx, job.JobID); err != nil {
		logrus.WithFields(logrus.Fields{"job_id": job.JobID}).Error(err)
	}
}
