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
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/bencullen0123-byte/Phantom-Vision-sub000/config"
	"github.com/bencullen0123-byte/Phantom-Vision-sub000/internal/syserror"
	"github.com/bencullen0123-byte/Phantom-Vision-sub000/model"
)

// Job names keying the distributed lock rows. Two deployed replicas racing
// on the same name resolve to exactly one winner per trigger.
const (
	jobNameScan     = "scan_fanout"
	jobNameDispatch = "dispatch"
)

// Sentinel owns the periodic triggers: a low-frequency scan fan-out and an
// hourly dispatch pass. The handle is explicit; there is no ambient global
// scheduler state.
type Sentinel struct {
	phantom *Phantom
	cron    *cron.Cron

	mu      sync.Mutex
	running bool
}

// NewSentinel creates a scheduler bound to the given engine instance.
func NewSentinel(phantom *Phantom) *Sentinel {
	return &Sentinel{
		phantom: phantom,
		cron:    cron.New(),
	}
}

// Start registers both triggers from configuration and starts the cron
// runner. Starting an already-running sentinel is a no-op.
func (s *Sentinel) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return nil
	}

	cfg, err := config.Fetch()
	if err != nil {
		return err
	}

	scanTTL := time.Duration(cfg.Scheduler.ScanLockTTLSec) * time.Second
	dispatchTTL := time.Duration(cfg.Scheduler.DispatchLockTTLSec) * time.Second

	if _, err := s.cron.AddFunc(cfg.Scheduler.ScanSpec, func() {
		s.runExclusive(ctx, jobNameScan, scanTTL, s.scanFanout)
	}); err != nil {
		return fmt.Errorf("registering scan trigger: %w", err)
	}
	if _, err := s.cron.AddFunc(cfg.Scheduler.DispatchSpec, func() {
		s.runExclusive(ctx, jobNameDispatch, dispatchTTL, s.dispatchPass)
	}); err != nil {
		return fmt.Errorf("registering dispatch trigger: %w", err)
	}

	s.cron.Start()
	s.running = true
	logrus.WithFields(logrus.Fields{
		"scan_spec":     cfg.Scheduler.ScanSpec,
		"dispatch_spec": cfg.Scheduler.DispatchSpec,
	}).Info("sentinel started")
	return nil
}

// Stop halts the cron runner and waits for any in-flight trigger to finish,
// bounded by a 30 second grace period.
func (s *Sentinel) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}

	stopCtx := s.cron.Stop()
	select {
	case <-stopCtx.Done():
	case <-time.After(30 * time.Second):
		logrus.Warn("sentinel stop timed out waiting for running jobs")
	}
	s.running = false
	logrus.Info("sentinel stopped")
}

// IsRunning reports whether the scheduler is active.
func (s *Sentinel) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// runExclusive wraps one trigger invocation in the lock protocol. A lock
// held by a healthy peer is a benign skip; a stolen lock is logged distinctly
// since it signals a prior crash. Release is identity-safe, so a lock stolen
// mid-run is never deleted out from under its new holder.
func (s *Sentinel) runExclusive(ctx context.Context, jobName string, ttl time.Duration, fn func(context.Context) error) {
	holderID := model.GenerateUUIDWithSuffix("hold")

	lock, err := s.phantom.datasource.AcquireJobLock(ctx, jobName, holderID, ttl)
	if err != nil {
		logrus.WithFields(logrus.Fields{"job": jobName}).Error(err)
		return
	}
	if !lock.Acquired {
		logrus.WithFields(logrus.Fields{"job": jobName}).Info("lock held by a live peer, skipping run")
		return
	}
	if lock.WasStolen {
		logrus.WithFields(logrus.Fields{"job": jobName, "holder_id": holderID}).
			Warn("stole a stale lock, the previous holder likely crashed mid-run")
	}
	defer func() {
		released, err := s.phantom.datasource.ReleaseJobLock(ctx, jobName, holderID)
		if err != nil {
			logrus.WithFields(logrus.Fields{"job": jobName}).Error(err)
			return
		}
		if !released {
			logrus.WithFields(logrus.Fields{"job": jobName}).Warn("lock was stolen before release, nothing to do")
		}
	}()

	if err := fn(ctx); err != nil {
		logrus.WithFields(logrus.Fields{"job": jobName, "severity": syserror.SeverityOf(err)}).Error(err)
	}
}

// scanFanout queues one scan job per merchant. Merchants with an
// outstanding job are skipped; the queue enforces at most one per merchant.
func (s *Sentinel) scanFanout(ctx context.Context) error {
	queued, skipped := 0, 0
	for offset := 0; ; offset += merchantPageSize {
		merchants, err := s.phantom.datasource.GetAllMerchants(ctx, merchantPageSize, offset)
		if err != nil {
			return err
		}
		for i := range merchants {
			_, err := s.phantom.datasource.EnqueueScanJob(ctx, merchants[i].MerchantID, false)
			if err != nil {
				if sysErr, ok := err.(syserror.SysError); ok && sysErr.Code == syserror.ErrConflict {
					skipped++
					continue
				}
				return err
			}
			queued++
		}
		if len(merchants) < merchantPageSize {
			break
		}
	}

	entry := &model.SystemLog{
		Component: "sentinel",
		Level:     "info",
		Message:   "Scan fan-out completed",
		Payload:   map[string]interface{}{"queued": queued, "outstanding_skipped": skipped},
	}
	if err := s.phantom.datasource.CreateSystemLog(ctx, entry); err != nil {
		logrus.WithFields(logrus.Fields{"component": "sentinel"}).Error(err)
	}
	return nil
}

func (s *Sentinel) dispatchPass(ctx context.Context) error {
	_, err := s.phantom.ProcessQueue(ctx)
	return err
}
