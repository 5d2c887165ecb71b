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
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/bencullen0123-byte/Phantom-Vision-sub000/config"
	"github.com/bencullen0123-byte/Phantom-Vision-sub000/internal/notification"
	"github.com/bencullen0123-byte/Phantom-Vision-sub000/internal/syserror"
	"github.com/bencullen0123-byte/Phantom-Vision-sub000/internal/vault"
	"github.com/bencullen0123-byte/Phantom-Vision-sub000/model"
	"github.com/bencullen0123-byte/Phantom-Vision-sub000/platform"
)

const tierLimitNote = "tier limit reached mid-scan"

// Scan audits a merchant's invoice history against the external payment
// platform and upserts recovery targets into the ledger. When forceFull is
// false and a prior successful audit exists, only records created after that
// audit are requested; the audit timestamp advances only when the whole run
// succeeds, so a failed run retries the same window.
func (p *Phantom) Scan(ctx context.Context, merchantID string, forceFull bool) (*model.ScanResult, error) {
	return p.scanWithProgress(ctx, merchantID, forceFull, nil)
}

// scanWithProgress is the scan implementation shared by the direct entry
// point and the background job poller. The progress callback, when non-nil,
// receives a percentage derived from records processed over records seen so
// far; it never reports 100, terminal state is the caller's to record.
func (p *Phantom) scanWithProgress(ctx context.Context, merchantID string, forceFull bool, progress func(int)) (*model.ScanResult, error) {
	ctx, span := otel.Tracer("phantom.hunter").Start(ctx, "ScanMerchant")
	defer span.End()
	span.SetAttributes(
		attribute.String("merchant.id", merchantID),
		attribute.Bool("scan.force_full", forceFull),
	)

	cfg, err := config.Fetch()
	if err != nil {
		return nil, err
	}

	result := &model.ScanResult{MerchantID: merchantID}

	// Pre-flight: a broken vault means every credential decrypt and every
	// contact-field encrypt would fail. Abort before any write happens.
	if _, err := p.vault.Check(); err != nil {
		sysErr := syserror.New(syserror.ErrVaultCritical, syserror.SeverityCritical,
			fmt.Sprintf("Vault health check failed before scanning merchant '%s'", merchantID), err)
		go func() {
			if notifyErr := notification.NotifyError(sysErr); notifyErr != nil {
				logrus.Error(notifyErr)
			}
		}()
		return nil, sysErr
	}

	merchant, err := p.datasource.GetMerchant(ctx, merchantID)
	if err != nil {
		return nil, err
	}

	active, err := p.datasource.CountActiveTargets(ctx, merchantID)
	if err != nil {
		return nil, err
	}
	remaining := merchant.TierLimit - active
	if remaining <= 0 {
		result.Skipped = true
		result.RemainingCapacity = 0
		p.stampAudit(ctx, merchantID, model.AuditStatusSkipped)
		p.logScanOutcome(ctx, merchantID, "info",
			fmt.Sprintf("Scan skipped: merchant '%s' has no remaining tier capacity", merchantID), result)
		return result, nil
	}

	credential, err := p.vault.Decrypt(vault.Sealed{
		Ciphertext: merchant.CredentialCipher,
		IV:         merchant.CredentialIV,
		AuthTag:    merchant.CredentialTag,
	})
	if err != nil {
		return nil, syserror.New(syserror.ErrVaultCritical, syserror.SeverityCritical,
			fmt.Sprintf("Could not decrypt the stored credential for merchant '%s'", merchantID), err)
	}
	client := p.clients(credential)

	var createdAfter *time.Time
	if !forceFull && merchant.LastAuditAt != nil {
		createdAfter = merchant.LastAuditAt
	}

	run := &scanRun{
		phantom:   p,
		merchant:  merchant,
		client:    client,
		result:    result,
		batchSize: cfg.Scanner.BatchSize,
		remaining: remaining,
		forceFull: forceFull,
		progress:  progress,
		linked:    make(map[string]bool),
	}

	if err := run.invoicePass(ctx, createdAfter, cfg.Scanner.PageSize); err != nil {
		p.stampAudit(ctx, merchantID, model.AuditStatusFailed)
		p.logScanOutcome(ctx, merchantID, "error",
			fmt.Sprintf("Scan aborted for merchant '%s': %v", merchantID, err), result)
		return result, err
	}

	if err := run.impendingPass(ctx, cfg.Scanner.PageSize); err != nil {
		p.stampAudit(ctx, merchantID, model.AuditStatusFailed)
		p.logScanOutcome(ctx, merchantID, "error",
			fmt.Sprintf("Scan aborted for merchant '%s': %v", merchantID, err), result)
		return result, err
	}

	if err := run.flush(ctx); err != nil {
		p.stampAudit(ctx, merchantID, model.AuditStatusFailed)
		p.logScanOutcome(ctx, merchantID, "error",
			fmt.Sprintf("Scan aborted for merchant '%s': %v", merchantID, err), result)
		return result, err
	}

	if err := run.finalize(ctx); err != nil {
		return result, err
	}

	p.logScanOutcome(ctx, merchantID, "info",
		fmt.Sprintf("Scan completed for merchant '%s'", merchantID), result)
	return result, nil
}

// scanRun carries the working state of one scan so the invoice pass, the
// impending pass and the batch flusher share a single buffer and capacity
// counter.
type scanRun struct {
	phantom   *Phantom
	merchant  *model.Merchant
	client    platform.Client
	result    *model.ScanResult
	batchSize int
	remaining int
	forceFull bool
	progress  func(int)

	buffer    []*model.Target
	samples   []model.TimingSample
	linked    map[string]bool // customer id -> has a live subscription
	gross     int64
	recovered int64
	currency  string
	seen      int
	processed int
}

// invoicePass pages through the merchant's invoices in cursor order,
// classifying each one and buffering target upserts. Every record on a page
// is processed before the next page is requested so memory stays bounded
// regardless of history size.
func (r *scanRun) invoicePass(ctx context.Context, createdAfter *time.Time, pageSize int) error {
	cursor := ""
	for {
		page, err := r.client.ListInvoices(ctx, platform.ListParams{
			CreatedAfter:  createdAfter,
			StartingAfter: cursor,
			Limit:         pageSize,
		})
		if err != nil {
			return err
		}

		r.seen += len(page.Invoices)
		for i := range page.Invoices {
			if err := r.processInvoice(ctx, &page.Invoices[i]); err != nil {
				return err
			}
			r.processed++
		}
		r.reportProgress()

		if !page.HasMore {
			return nil
		}
		cursor = page.NextCursor
	}
}

func (r *scanRun) processInvoice(ctx context.Context, invoice *platform.Invoice) error {
	// Gross invoiced accumulates across every invoice regardless of status;
	// it feeds the merchant's leakage-rate reporting.
	r.gross += invoice.AmountDue
	if r.currency == "" && invoice.Currency != "" {
		r.currency = invoice.Currency
	}

	switch invoice.Status {
	case platform.InvoiceStatusOpen, platform.InvoiceStatusUncollectible,
		platform.InvoiceStatusDraft, platform.InvoiceStatusIncomplete:
		return r.processFailedInvoice(ctx, invoice)
	case platform.InvoiceStatusPaid:
		return r.processPaidInvoice(ctx, invoice)
	default:
		// Void and anything unrecognized carry no at-risk revenue.
		return nil
	}
}

func (r *scanRun) processFailedInvoice(ctx context.Context, invoice *platform.Invoice) error {
	// A failing invoice only matters while its customer still has a live
	// subscription. Full re-scans skip the check so recovery-focused runs
	// can resurrect history for churned customers too.
	if !r.forceFull {
		live, err := r.customerHasLiveSubscription(ctx, invoice.CustomerID)
		if err != nil {
			return err
		}
		if !live {
			return nil
		}
	}

	existing, err := r.phantom.datasource.GetTargetByNaturalKey(ctx, invoice.ID)
	if err != nil {
		return err
	}
	if existing == nil {
		// Only brand-new natural keys consume tier capacity; refreshing a
		// known target is always free.
		if r.remaining <= 0 {
			r.result.CapacitySkipped++
			r.noteOnce(tierLimitNote)
			return nil
		}
		r.remaining--
	}

	var intent *platform.PaymentIntent
	if invoice.PaymentIntentID != "" {
		intent, err = r.client.GetPaymentIntent(ctx, invoice.PaymentIntentID)
		if err != nil {
			return err
		}
	}

	declineType := model.DeclineSoft
	requires3DS := false
	metadata := model.MLMetadata{InvoiceDate: &invoice.CreatedAt}
	if intent != nil {
		declineType = model.ClassifyDecline(intent.DeclineCode)
		requires3DS = intent.Requires3DS
		metadata.ProviderCode = intent.DeclineCode
		metadata.Requires3DS = intent.Requires3DS
		if intent.Card != nil {
			metadata.CardBrand = intent.Card.Brand
			metadata.CardFunding = intent.Card.Funding
			metadata.CardCountry = intent.Card.Country
		}
	}

	strategy := model.SelectStrategy(model.StrategySignals{
		Requires3DS: requires3DS,
		DeclineType: declineType,
		Amount:      invoice.AmountDue,
	})

	target := &model.Target{
		MerchantID:  r.merchant.MerchantID,
		Amount:      invoice.AmountDue,
		Currency:    invoice.Currency,
		NaturalKey:  invoice.ID,
		Status:      model.StatusPending,
		DeclineType: declineType,
		Strategy:    strategy,
		Metadata:    metadata,
	}
	if invoice.Customer != nil {
		if err := r.sealContact(target, invoice.Customer.Email, invoice.Customer.Name); err != nil {
			return err
		}
	}

	r.result.TotalAtRisk += invoice.AmountDue
	return r.bufferTarget(ctx, target)
}

// processPaidInvoice is the polling-side recovery safety net. The webhook
// path is authoritative for attribution; a payment first observed here is
// credited as campaign only when it landed inside an already-open
// attribution window, and organic otherwise.
func (r *scanRun) processPaidInvoice(ctx context.Context, invoice *platform.Invoice) error {
	if invoice.PaidAt == nil {
		return nil
	}
	paidAt := invoice.PaidAt.UTC()
	r.samples = append(r.samples, model.TimingSample{
		MerchantID: r.merchant.MerchantID,
		DayOfWeek:  int(paidAt.Weekday()),
		HourOfDay:  paidAt.Hour(),
	})

	existing, err := r.phantom.datasource.GetTargetByNaturalKey(ctx, invoice.ID)
	if err != nil {
		return err
	}
	if existing == nil || existing.Status != model.StatusPending {
		return nil
	}

	recoveryType := model.RecoveryTypeOrganic
	if existing.AttributionActive(paidAt) {
		recoveryType = model.RecoveryTypeCampaign
	}
	if err := r.phantom.datasource.UpdateTargetStatus(ctx, existing.TargetID, model.StatusRecovered, recoveryType); err != nil {
		return err
	}
	r.recovered += existing.Amount
	r.result.OrganicRecoveries++
	return nil
}

// impendingPass walks the merchant's live subscriptions looking for payment
// methods expiring within the current or next calendar month. Each match
// becomes an impending target priced at the subscription's monthly-normalized
// recurring value.
func (r *scanRun) impendingPass(ctx context.Context, pageSize int) error {
	now := time.Now().UTC()
	next := now.AddDate(0, 1, 0)

	cursor := ""
	for {
		page, err := r.client.ListSubscriptions(ctx, platform.ListParams{
			StartingAfter: cursor,
			Limit:         pageSize,
		})
		if err != nil {
			return err
		}

		r.seen += len(page.Subscriptions)
		for i := range page.Subscriptions {
			sub := &page.Subscriptions[i]
			if sub.Live() && cardExpiring(sub.PaymentMethod, now, next) {
				if err := r.bufferImpending(ctx, sub); err != nil {
					return err
				}
			}
			r.processed++
		}
		r.reportProgress()

		if !page.HasMore {
			return nil
		}
		cursor = page.NextCursor
	}
}

func cardExpiring(card *platform.Card, now, next time.Time) bool {
	if card == nil {
		return false
	}
	if card.ExpYear == now.Year() && card.ExpMonth == int(now.Month()) {
		return true
	}
	return card.ExpYear == next.Year() && card.ExpMonth == int(next.Month())
}

func (r *scanRun) bufferImpending(ctx context.Context, sub *platform.Subscription) error {
	items := make([]model.RecurringItem, 0, len(sub.Items))
	for _, item := range sub.Items {
		items = append(items, model.RecurringItem{
			Amount:        item.Amount,
			Interval:      item.Interval,
			IntervalCount: int64(item.IntervalCount),
		})
	}

	naturalKey := model.ImpendingKey(sub.ID)
	existing, err := r.phantom.datasource.GetTargetByNaturalKey(ctx, naturalKey)
	if err != nil {
		return err
	}
	if existing == nil {
		if r.remaining <= 0 {
			r.result.CapacitySkipped++
			r.noteOnce(tierLimitNote)
			return nil
		}
		r.remaining--
	}

	metadata := model.MLMetadata{}
	if sub.PaymentMethod != nil {
		metadata.CardBrand = sub.PaymentMethod.Brand
		metadata.CardFunding = sub.PaymentMethod.Funding
		metadata.CardCountry = sub.PaymentMethod.Country
	}

	target := &model.Target{
		MerchantID: r.merchant.MerchantID,
		Amount:     model.SumMonthly(items),
		Currency:   r.merchant.DefaultCurrency,
		NaturalKey: naturalKey,
		Status:     model.StatusImpending,
		Metadata:   metadata,
	}
	if r.currency != "" {
		target.Currency = r.currency
	}
	if sub.Customer != nil {
		if err := r.sealContact(target, sub.Customer.Email, sub.Customer.Name); err != nil {
			return err
		}
	}

	r.result.ImpendingFound++
	return r.bufferTarget(ctx, target)
}

func (r *scanRun) sealContact(target *model.Target, email, name string) error {
	if email != "" {
		sealed, err := r.phantom.vault.Encrypt(email)
		if err != nil {
			return syserror.New(syserror.ErrVaultCritical, syserror.SeverityCritical,
				"Could not encrypt a contact field during scan", err)
		}
		target.EmailCipher, target.EmailIV, target.EmailTag = sealed.Ciphertext, sealed.IV, sealed.AuthTag
	}
	if name != "" {
		sealed, err := r.phantom.vault.Encrypt(name)
		if err != nil {
			return syserror.New(syserror.ErrVaultCritical, syserror.SeverityCritical,
				"Could not encrypt a contact field during scan", err)
		}
		target.NameCipher, target.NameIV, target.NameTag = sealed.Ciphertext, sealed.IV, sealed.AuthTag
	}
	return nil
}

func (r *scanRun) bufferTarget(ctx context.Context, target *model.Target) error {
	r.buffer = append(r.buffer, target)
	if len(r.buffer) >= r.batchSize {
		return r.flush(ctx)
	}
	return nil
}

// flush commits the buffered upserts in one transaction. A failed batch
// aborts the scan; batches already committed stay committed, the batch is
// the unit of atomicity rather than the whole run.
func (r *scanRun) flush(ctx context.Context) error {
	if len(r.buffer) == 0 {
		return nil
	}
	created, updated, err := r.phantom.datasource.BatchUpsertTargets(ctx, r.buffer)
	if err != nil {
		return err
	}
	r.result.TargetsFound += created
	r.result.TargetsUpdated += updated
	r.buffer = r.buffer[:0]
	return nil
}

func (r *scanRun) finalize(ctx context.Context) error {
	now := time.Now().UTC()
	merchantID := r.merchant.MerchantID

	if err := r.phantom.datasource.UpdateMerchantAudit(ctx, merchantID, model.AuditStatusCompleted, now); err != nil {
		return err
	}
	if r.gross != 0 || r.recovered != 0 {
		if err := r.phantom.datasource.AccumulateMerchantTotals(ctx, merchantID, r.gross, r.recovered, 0); err != nil {
			return err
		}
	}
	if len(r.samples) > 0 {
		if err := r.phantom.datasource.RecordTimingSamples(ctx, merchantID, r.samples); err != nil {
			return err
		}
	}
	if r.currency != "" && r.merchant.DefaultCurrency == "" {
		r.merchant.DefaultCurrency = r.currency
		if err := r.phantom.datasource.UpdateMerchant(ctx, r.merchant); err != nil {
			return err
		}
	}

	r.result.GrossInvoiced = r.gross
	r.result.TimingSamples = len(r.samples)
	r.result.RemainingCapacity = r.remaining

	if err := r.phantom.queue.queueIndexData(merchantID, "merchants", r.merchant); err != nil {
		logrus.Error(err)
	}
	return nil
}

func (r *scanRun) customerHasLiveSubscription(ctx context.Context, customerID string) (bool, error) {
	if customerID == "" {
		return false, nil
	}
	if live, ok := r.linked[customerID]; ok {
		return live, nil
	}
	subscriptions, err := r.client.ListSubscriptionsByCustomer(ctx, customerID)
	if err != nil {
		return false, err
	}
	live := false
	for i := range subscriptions {
		if subscriptions[i].Live() {
			live = true
			break
		}
	}
	r.linked[customerID] = live
	return live, nil
}

func (r *scanRun) reportProgress() {
	if r.progress == nil || r.seen == 0 {
		return
	}
	pct := r.processed * 100 / r.seen
	if pct > 99 {
		pct = 99
	}
	r.progress(pct)
}

func (r *scanRun) noteOnce(note string) {
	for _, existing := range r.result.Notes {
		if existing == note {
			return
		}
	}
	r.result.Notes = append(r.result.Notes, note)
}

// stampAudit marks a skipped or failed scan attempt on the merchant row. The
// store leaves last_audit_at alone for these statuses, so the next delta
// window is unaffected.
func (p *Phantom) stampAudit(ctx context.Context, merchantID, status string) {
	if err := p.datasource.UpdateMerchantAudit(ctx, merchantID, status, time.Now().UTC()); err != nil {
		logrus.WithFields(logrus.Fields{"merchant_id": merchantID, "audit_status": status}).Error(err)
	}
}

// logScanOutcome writes the single operator-facing audit row every scan run
// produces, success or not.
func (p *Phantom) logScanOutcome(ctx context.Context, merchantID, level, message string, result *model.ScanResult) {
	entry := &model.SystemLog{
		MerchantID: merchantID,
		Component:  "hunter",
		Level:      level,
		Message:    message,
		Payload: map[string]interface{}{
			"targets_found":      result.TargetsFound,
			"targets_updated":    result.TargetsUpdated,
			"total_at_risk":      result.TotalAtRisk,
			"gross_invoiced":     result.GrossInvoiced,
			"timing_samples":     result.TimingSamples,
			"impending_found":    result.ImpendingFound,
			"organic_recoveries": result.OrganicRecoveries,
			"remaining_capacity": result.RemainingCapacity,
			"capacity_skipped":   result.CapacitySkipped,
			"skipped":            result.Skipped,
			"notes":              result.Notes,
		},
	}
	if err := p.datasource.CreateSystemLog(ctx, entry); err != nil {
		logrus.WithFields(logrus.Fields{"merchant_id": merchantID, "component": "hunter"}).Error(err)
	}
}
