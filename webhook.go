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
	"time"

	"github.com/sirupsen/logrus"

	"github.com/bencullen0123-byte/Phantom-Vision-sub000/model"
)

// ProcessPaymentWebhook is the authoritative recovery path: when the
// platform notifies a successful payment for a known natural key, the
// matching live target resolves immediately. A payment inside an open
// attribution window is credited to the campaign; otherwise it is organic.
// The scanner's paid-invoice pass acts as a reconciliation net for payments
// this path never saw.
func (p *Phantom) ProcessPaymentWebhook(ctx context.Context, naturalKey string, paidAt time.Time) error {
	target, err := p.datasource.GetTargetByNaturalKey(ctx, naturalKey)
	if err != nil {
		return err
	}
	if target == nil || target.Terminal() {
		return nil
	}

	newStatus := model.StatusRecovered
	recoveryType := model.RecoveryTypeOrganic
	if target.AttributionActive(paidAt) {
		recoveryType = model.RecoveryTypeCampaign
	}
	if target.Status == model.StatusImpending {
		// A payment on an expiry-risk subscription means the revenue was
		// protected rather than recovered.
		newStatus = model.StatusProtected
	}

	if err := p.datasource.UpdateTargetStatus(ctx, target.TargetID, newStatus, recoveryType); err != nil {
		return err
	}

	var recovered, protected int64
	if newStatus == model.StatusProtected {
		protected = target.Amount
	} else {
		recovered = target.Amount
	}
	if err := p.datasource.AccumulateMerchantTotals(ctx, target.MerchantID, 0, recovered, protected); err != nil {
		return err
	}

	sample := []model.TimingSample{{
		MerchantID: target.MerchantID,
		DayOfWeek:  int(paidAt.UTC().Weekday()),
		HourOfDay:  paidAt.UTC().Hour(),
	}}
	if err := p.datasource.RecordTimingSamples(ctx, target.MerchantID, sample); err != nil {
		logrus.WithFields(logrus.Fields{"target_id": target.TargetID}).Error(err)
	}

	entry := &model.SystemLog{
		MerchantID: target.MerchantID,
		Component:  "webhook",
		Level:      "info",
		Message:    "Payment webhook resolved a target",
		Payload: map[string]interface{}{
			"target_id":     target.TargetID,
			"status":        newStatus,
			"recovery_type": recoveryType,
			"amount":        target.Amount,
		},
	}
	if err := p.datasource.CreateSystemLog(ctx, entry); err != nil {
		logrus.WithFields(logrus.Fields{"component": "webhook"}).Error(err)
	}

	if err := p.queue.queueIndexData(target.TargetID, "targets", target); err != nil {
		logrus.Error(err)
	}
	return nil
}

// ProcessClickWebhook opens the attribution window for a target after its
// tracking link was followed. A payment within the window is credited to
// the campaign.
func (p *Phantom) ProcessClickWebhook(ctx context.Context, targetID string, clickedAt time.Time) error {
	expiresAt := clickedAt.Add(model.AttributionWindow)
	return p.datasource.RegisterTargetClick(ctx, targetID, expiresAt)
}
