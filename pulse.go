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
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"

	"github.com/bencullen0123-byte/Phantom-Vision-sub000/config"
	"github.com/bencullen0123-byte/Phantom-Vision-sub000/internal/vault"
	"github.com/bencullen0123-byte/Phantom-Vision-sub000/model"
)

const merchantPageSize = 100

// ProcessQueue runs one dispatcher pass over every merchant's contactable
// targets. A single merchant's failure never aborts another merchant's
// sends; errors are collected into the result and the pass keeps going.
func (p *Phantom) ProcessQueue(ctx context.Context) (*model.DispatchResult, error) {
	ctx, span := otel.Tracer("phantom.pulse").Start(ctx, "ProcessQueue")
	defer span.End()

	cfg, err := config.Fetch()
	if err != nil {
		return nil, err
	}

	result := &model.DispatchResult{}
	now := time.Now().UTC()
	grace := time.Duration(cfg.Dispatch.GraceHours) * time.Hour

	for offset := 0; ; offset += merchantPageSize {
		merchants, err := p.datasource.GetAllMerchants(ctx, merchantPageSize, offset)
		if err != nil {
			return nil, err
		}
		for i := range merchants {
			p.dispatchMerchant(ctx, &merchants[i], cfg, now, grace, result)
		}
		if len(merchants) < merchantPageSize {
			break
		}
	}

	p.logDispatchOutcome(ctx, result)
	return result, nil
}

func (p *Phantom) dispatchMerchant(ctx context.Context, merchant *model.Merchant, cfg *config.Configuration, now time.Time, grace time.Duration, result *model.DispatchResult) {
	// Fetch past the hourly ceiling; targets beyond it must still reach the
	// rate counter so the result reports them as deferred.
	targets, err := p.datasource.GetContactableTargets(ctx, merchant.MerchantID, cfg.Dispatch.HourlySendLimit*2)
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("merchant %s: %v", merchant.MerchantID, err))
		return
	}

	var goldenHour *model.GoldenHour
	goldenLoaded := false

	for _, target := range targets {
		if !target.Contactable(now, grace) {
			continue
		}

		// Outreach requires an explicit opt-in; without auto-pilot the
		// target waits for a human.
		if !merchant.AutoPilot {
			result.PendingManualReview++
			continue
		}

		sent, err := p.cache.Count(ctx, rateKey(merchant.MerchantID, now))
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("merchant %s: rate counter: %v", merchant.MerchantID, err))
			continue
		}
		if sent >= int64(cfg.Dispatch.HourlySendLimit) {
			result.RateLimited++
			continue
		}

		// Protection emails and hard-decline emails are time-critical and
		// always send; everything else honors the merchant's golden hour.
		bypassWindow := target.Status == model.StatusImpending || target.DeclineType == model.DeclineHard
		if !bypassWindow && merchant.TimingOptimized() {
			if !goldenLoaded {
				goldenLoaded = true
				goldenHour, err = p.datasource.GetGoldenHour(ctx, merchant.MerchantID)
				if err != nil {
					result.Errors = append(result.Errors, fmt.Sprintf("merchant %s: golden hour: %v", merchant.MerchantID, err))
					goldenHour = nil
				}
			}
			if goldenHour != nil && !goldenHour.InWindow(now.Hour()) {
				result.OutsideWindow++
				continue
			}
		}

		p.sendOutreach(ctx, merchant, target, cfg, now, result)
	}
}

func (p *Phantom) sendOutreach(ctx context.Context, merchant *model.Merchant, target *model.Target, cfg *config.Configuration, now time.Time, result *model.DispatchResult) {
	strategy := target.Strategy
	if target.Status == model.StatusImpending && strategy == "" {
		strategy = model.StrategyCardRefresh
	}

	email := p.openContactField(target.EmailCipher, target.EmailIV, target.EmailTag, target.TargetID)
	name := p.openContactField(target.NameCipher, target.NameIV, target.NameTag, target.TargetID)
	if email == "" || email == vault.Placeholder {
		result.Failed++
		result.Errors = append(result.Errors, fmt.Sprintf("target %s: no usable contact address", target.TargetID))
		p.logSendAttempt(ctx, merchant.MerchantID, target, strategy, "***", "error", "Outreach failed: no usable contact address", false)
		return
	}

	outreach := OutreachEmail{
		TargetID:     target.TargetID,
		To:           email,
		Name:         name,
		MerchantName: merchant.Name,
		SupportEmail: merchant.SupportEmail,
		BrandColor:   merchant.BrandColor,
		Strategy:     strategy,
		Amount:       target.Amount,
		Currency:     target.Currency,
		TrackingURL:  trackingURL(cfg.Mailer.TrackingUrl, target.TargetID),
	}

	sendResult, err := p.mailer.Send(ctx, outreach)
	if err != nil || !sendResult.Success {
		// The target stays untouched so the next pass retries it.
		result.Failed++
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("target %s: %v", target.TargetID, err))
		}
		p.logSendAttempt(ctx, merchant.MerchantID, target, strategy, model.MaskEmail(email), "error",
			fmt.Sprintf("Outreach failed for target '%s'", target.TargetID), sendResult.DryRun)
		return
	}

	exhausted := target.RegisterSend(now)
	if err := p.datasource.UpdateTargetOutreach(ctx, target); err != nil {
		result.Failed++
		result.Errors = append(result.Errors, fmt.Sprintf("target %s: %v", target.TargetID, err))
		return
	}
	if _, err := p.cache.Incr(ctx, rateKey(merchant.MerchantID, now), time.Hour); err != nil {
		logrus.WithFields(logrus.Fields{"merchant_id": merchant.MerchantID}).Error(err)
	}

	result.Sent++
	if exhausted {
		result.Exhausted++
	}
	p.logSendAttempt(ctx, merchant.MerchantID, target, strategy, model.MaskEmail(email), "info",
		fmt.Sprintf("Outreach sent for target '%s'", target.TargetID), sendResult.DryRun)

	if err := p.queue.queueIndexData(target.TargetID, "targets", target); err != nil {
		logrus.Error(err)
	}
}

// openContactField decrypts one stored contact field. A failed decrypt on a
// stored record degrades to the visible placeholder instead of failing the
// pass; the rest of the record stays usable.
func (p *Phantom) openContactField(cipher, iv, tag, targetID string) string {
	if cipher == "" {
		return ""
	}
	plain, err := p.vault.Decrypt(vault.Sealed{Ciphertext: cipher, IV: iv, AuthTag: tag})
	if err != nil {
		logrus.WithFields(logrus.Fields{"target_id": targetID}).Warn("contact field decryption failed, substituting placeholder")
		return vault.Placeholder
	}
	return plain
}

func rateKey(merchantID string, now time.Time) string {
	return fmt.Sprintf("rate:%s:%s", merchantID, now.Format("2006-01-02-15"))
}

func trackingURL(base, targetID string) string {
	if base == "" {
		return ""
	}
	return fmt.Sprintf("%s/%s", strings.TrimRight(base, "/"), targetID)
}

// logSendAttempt records one audit row per send attempt, success or failure,
// with the resolved strategy and the masked contact identity only.
func (p *Phantom) logSendAttempt(ctx context.Context, merchantID string, target *model.Target, strategy, maskedEmail, level, message string, dryRun bool) {
	entry := &model.SystemLog{
		MerchantID: merchantID,
		Component:  "pulse",
		Level:      level,
		Message:    message,
		Payload: map[string]interface{}{
			"target_id":    target.TargetID,
			"strategy":     strategy,
			"masked_email": maskedEmail,
			"email_count":  target.EmailCount,
			"status":       target.Status,
			"dry_run":      dryRun,
		},
	}
	if err := p.datasource.CreateSystemLog(ctx, entry); err != nil {
		logrus.WithFields(logrus.Fields{"merchant_id": merchantID, "component": "pulse"}).Error(err)
	}
}

func (p *Phantom) logDispatchOutcome(ctx context.Context, result *model.DispatchResult) {
	entry := &model.SystemLog{
		Component: "pulse",
		Level:     "info",
		Message:   "Dispatch pass completed",
		Payload: map[string]interface{}{
			"sent":                  result.Sent,
			"failed":                result.Failed,
			"rate_limited":          result.RateLimited,
			"outside_window":        result.OutsideWindow,
			"pending_manual_review": result.PendingManualReview,
			"exhausted":             result.Exhausted,
			"errors":                result.Errors,
		},
	}
	if err := p.datasource.CreateSystemLog(ctx, entry); err != nil {
		logrus.WithFields(logrus.Fields{"component": "pulse"}).Error(err)
	}
}
