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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/bencullen0123-byte/Phantom-Vision-sub000/database/mocks"
	"github.com/bencullen0123-byte/Phantom-Vision-sub000/model"
	"github.com/bencullen0123-byte/Phantom-Vision-sub000/platform"
	platformmocks "github.com/bencullen0123-byte/Phantom-Vision-sub000/platform/mocks"
)

func TestScan_SkipsWhenCapacityExhausted(t *testing.T) {
	ds := new(mocks.MockDataSource)
	pc := new(platformmocks.MockClient)
	p, _ := newTestPhantom(t, ds, pc)
	merchant := newTestMerchant(t, p)
	merchant.TierLimit = 3

	ds.On("GetMerchant", mock.Anything, merchant.MerchantID).Return(merchant, nil)
	ds.On("CountActiveTargets", mock.Anything, merchant.MerchantID).Return(3, nil)
	ds.On("UpdateMerchantAudit", mock.Anything, merchant.MerchantID, model.AuditStatusSkipped, mock.Anything).Return(nil)
	ds.On("CreateSystemLog", mock.Anything, mock.Anything).Return(nil)

	result, err := p.Scan(context.Background(), merchant.MerchantID, false)
	require.NoError(t, err)

	assert.True(t, result.Skipped)
	assert.Equal(t, 0, result.RemainingCapacity)
	pc.AssertNotCalled(t, "ListInvoices", mock.Anything, mock.Anything)
	// The skip stamps a status mark but never a completed one, so the delta
	// window stays where it was.
	ds.AssertCalled(t, "UpdateMerchantAudit", mock.Anything, merchant.MerchantID, model.AuditStatusSkipped, mock.Anything)
	ds.AssertNotCalled(t, "UpdateMerchantAudit", mock.Anything, merchant.MerchantID, model.AuditStatusCompleted, mock.Anything)
}

func TestScan_CapacityCeilingMidScan(t *testing.T) {
	ds := new(mocks.MockDataSource)
	pc := new(platformmocks.MockClient)
	p, _ := newTestPhantom(t, ds, pc)
	merchant := newTestMerchant(t, p)
	merchant.TierLimit = 5

	invoices := make([]platform.Invoice, 4)
	for i := range invoices {
		invoices[i] = platform.Invoice{
			ID:              fmt.Sprintf("in_%d", i+1),
			CustomerID:      fmt.Sprintf("cus_%d", i+1),
			PaymentIntentID: fmt.Sprintf("pi_%d", i+1),
			Status:          platform.InvoiceStatusOpen,
			AmountDue:       1000,
			Currency:        "usd",
			CreatedAt:       time.Now().UTC(),
			Customer:        &platform.Customer{ID: fmt.Sprintf("cus_%d", i+1), Email: "c@example.com", Name: "C"},
		}
	}

	ds.On("GetMerchant", mock.Anything, merchant.MerchantID).Return(merchant, nil)
	ds.On("CountActiveTargets", mock.Anything, merchant.MerchantID).Return(3, nil)
	pc.On("ListInvoices", mock.Anything, mock.Anything).Return(&platform.InvoicePage{Invoices: invoices}, nil)
	pc.On("ListSubscriptionsByCustomer", mock.Anything, mock.Anything).
		Return([]platform.Subscription{{Status: platform.SubscriptionStatusActive}}, nil)
	pc.On("GetPaymentIntent", mock.Anything, mock.Anything).
		Return(&platform.PaymentIntent{DeclineCode: "insufficient_funds"}, nil)
	pc.On("ListSubscriptions", mock.Anything, mock.Anything).Return(&platform.SubscriptionPage{}, nil)
	ds.On("GetTargetByNaturalKey", mock.Anything, mock.Anything).Return(nil, nil)
	ds.On("BatchUpsertTargets", mock.Anything, mock.MatchedBy(func(targets []*model.Target) bool {
		return len(targets) == 2
	})).Return(2, 0, nil)
	ds.On("UpdateMerchantAudit", mock.Anything, merchant.MerchantID, model.AuditStatusCompleted, mock.Anything).Return(nil)
	ds.On("AccumulateMerchantTotals", mock.Anything, merchant.MerchantID, int64(4000), int64(0), int64(0)).Return(nil)
	ds.On("CreateSystemLog", mock.Anything, mock.Anything).Return(nil)

	result, err := p.Scan(context.Background(), merchant.MerchantID, false)
	require.NoError(t, err)

	assert.Equal(t, 2, result.TargetsFound)
	assert.Equal(t, 2, result.CapacitySkipped)
	assert.Equal(t, 0, result.RemainingCapacity)
	assert.Equal(t, int64(2000), result.TotalAtRisk)
	assert.Equal(t, int64(4000), result.GrossInvoiced)
	assert.Contains(t, result.Notes, "tier limit reached mid-scan")
	ds.AssertExpectations(t)
}

func TestScan_DeltaWindowAndOrganicRecovery(t *testing.T) {
	ds := new(mocks.MockDataSource)
	pc := new(platformmocks.MockClient)
	p, _ := newTestPhantom(t, ds, pc)
	merchant := newTestMerchant(t, p)
	lastAudit := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	merchant.LastAuditAt = &lastAudit

	paidAt := time.Date(2024, 6, 3, 14, 30, 0, 0, time.UTC)
	invoices := []platform.Invoice{{
		ID:        "in_paid",
		Status:    platform.InvoiceStatusPaid,
		AmountDue: 2000,
		Currency:  "usd",
		PaidAt:    &paidAt,
	}}

	existing := &model.Target{
		TargetID:   "tgt_existing",
		MerchantID: merchant.MerchantID,
		NaturalKey: "in_paid",
		Status:     model.StatusPending,
		Amount:     1500,
	}

	ds.On("GetMerchant", mock.Anything, merchant.MerchantID).Return(merchant, nil)
	ds.On("CountActiveTargets", mock.Anything, merchant.MerchantID).Return(0, nil)
	pc.On("ListInvoices", mock.Anything, mock.MatchedBy(func(params platform.ListParams) bool {
		return params.CreatedAfter != nil && params.CreatedAfter.Equal(lastAudit)
	})).Return(&platform.InvoicePage{Invoices: invoices}, nil)
	pc.On("ListSubscriptions", mock.Anything, mock.Anything).Return(&platform.SubscriptionPage{}, nil)
	ds.On("GetTargetByNaturalKey", mock.Anything, "in_paid").Return(existing, nil)
	ds.On("UpdateTargetStatus", mock.Anything, "tgt_existing", model.StatusRecovered, model.RecoveryTypeOrganic).Return(nil)
	ds.On("UpdateMerchantAudit", mock.Anything, merchant.MerchantID, model.AuditStatusCompleted, mock.Anything).Return(nil)
	ds.On("AccumulateMerchantTotals", mock.Anything, merchant.MerchantID, int64(2000), int64(1500), int64(0)).Return(nil)
	ds.On("RecordTimingSamples", mock.Anything, merchant.MerchantID, mock.MatchedBy(func(samples []model.TimingSample) bool {
		return len(samples) == 1 && samples[0].DayOfWeek == int(paidAt.Weekday()) && samples[0].HourOfDay == 14
	})).Return(nil)
	ds.On("CreateSystemLog", mock.Anything, mock.Anything).Return(nil)

	result, err := p.Scan(context.Background(), merchant.MerchantID, false)
	require.NoError(t, err)

	assert.Equal(t, 1, result.OrganicRecoveries)
	assert.Equal(t, 1, result.TimingSamples)
	assert.Equal(t, 0, result.TargetsFound)
	ds.AssertExpectations(t)
}

func TestScan_SecondScanUpdatesInPlace(t *testing.T) {
	ds := new(mocks.MockDataSource)
	pc := new(platformmocks.MockClient)
	p, _ := newTestPhantom(t, ds, pc)
	merchant := newTestMerchant(t, p)
	merchant.TierLimit = 1

	invoices := []platform.Invoice{{
		ID:         "in_known",
		CustomerID: "cus_1",
		Status:     platform.InvoiceStatusOpen,
		AmountDue:  1200,
		Currency:   "usd",
		CreatedAt:  time.Now().UTC(),
	}}
	known := &model.Target{
		TargetID:   "tgt_known",
		MerchantID: merchant.MerchantID,
		NaturalKey: "in_known",
		Status:     model.StatusPending,
		Amount:     1000,
	}

	ds.On("GetMerchant", mock.Anything, merchant.MerchantID).Return(merchant, nil)
	ds.On("CountActiveTargets", mock.Anything, merchant.MerchantID).Return(0, nil)
	pc.On("ListInvoices", mock.Anything, mock.Anything).Return(&platform.InvoicePage{Invoices: invoices}, nil)
	pc.On("ListSubscriptionsByCustomer", mock.Anything, "cus_1").
		Return([]platform.Subscription{{Status: platform.SubscriptionStatusPastDue}}, nil)
	pc.On("ListSubscriptions", mock.Anything, mock.Anything).Return(&platform.SubscriptionPage{}, nil)
	ds.On("GetTargetByNaturalKey", mock.Anything, "in_known").Return(known, nil)
	ds.On("BatchUpsertTargets", mock.Anything, mock.Anything).Return(0, 1, nil)
	ds.On("UpdateMerchantAudit", mock.Anything, merchant.MerchantID, model.AuditStatusCompleted, mock.Anything).Return(nil)
	ds.On("AccumulateMerchantTotals", mock.Anything, merchant.MerchantID, int64(1200), int64(0), int64(0)).Return(nil)
	ds.On("CreateSystemLog", mock.Anything, mock.Anything).Return(nil)

	result, err := p.Scan(context.Background(), merchant.MerchantID, false)
	require.NoError(t, err)

	// A known natural key never consumes capacity.
	assert.Equal(t, 1, result.RemainingCapacity)
	assert.Equal(t, 0, result.TargetsFound)
	assert.Equal(t, 1, result.TargetsUpdated)
}

func TestScan_DetectsImpendingExpiry(t *testing.T) {
	ds := new(mocks.MockDataSource)
	pc := new(platformmocks.MockClient)
	p, _ := newTestPhantom(t, ds, pc)
	merchant := newTestMerchant(t, p)

	now := time.Now().UTC()
	subscriptions := []platform.Subscription{{
		ID:     "sub_001",
		Status: platform.SubscriptionStatusActive,
		Items:  []platform.RecurringItem{{Amount: 1000, Interval: "week", IntervalCount: 1}},
		PaymentMethod: &platform.Card{
			Brand:    "visa",
			ExpMonth: int(now.Month()),
			ExpYear:  now.Year(),
		},
		Customer: &platform.Customer{Email: "owner@example.com", Name: "Owner"},
	}}

	ds.On("GetMerchant", mock.Anything, merchant.MerchantID).Return(merchant, nil)
	ds.On("CountActiveTargets", mock.Anything, merchant.MerchantID).Return(0, nil)
	pc.On("ListInvoices", mock.Anything, mock.Anything).Return(&platform.InvoicePage{}, nil)
	pc.On("ListSubscriptions", mock.Anything, mock.Anything).Return(&platform.SubscriptionPage{Subscriptions: subscriptions}, nil)
	ds.On("GetTargetByNaturalKey", mock.Anything, "impending_sub_001").Return(nil, nil)
	ds.On("BatchUpsertTargets", mock.Anything, mock.MatchedBy(func(targets []*model.Target) bool {
		return len(targets) == 1 &&
			targets[0].Status == model.StatusImpending &&
			targets[0].NaturalKey == "impending_sub_001" &&
			targets[0].Amount == 4330
	})).Return(1, 0, nil)
	ds.On("UpdateMerchantAudit", mock.Anything, merchant.MerchantID, model.AuditStatusCompleted, mock.Anything).Return(nil)
	ds.On("CreateSystemLog", mock.Anything, mock.Anything).Return(nil)

	result, err := p.Scan(context.Background(), merchant.MerchantID, false)
	require.NoError(t, err)

	assert.Equal(t, 1, result.ImpendingFound)
	assert.Equal(t, 1, result.TargetsFound)
	ds.AssertExpectations(t)
}

func TestScan_BatchFailureDoesNotAdvanceAudit(t *testing.T) {
	ds := new(mocks.MockDataSource)
	pc := new(platformmocks.MockClient)
	p, _ := newTestPhantom(t, ds, pc)
	merchant := newTestMerchant(t, p)

	invoices := []platform.Invoice{{
		ID:         "in_1",
		CustomerID: "cus_1",
		Status:     platform.InvoiceStatusOpen,
		AmountDue:  1000,
		Currency:   "usd",
		CreatedAt:  time.Now().UTC(),
	}}

	ds.On("GetMerchant", mock.Anything, merchant.MerchantID).Return(merchant, nil)
	ds.On("CountActiveTargets", mock.Anything, merchant.MerchantID).Return(0, nil)
	pc.On("ListInvoices", mock.Anything, mock.Anything).Return(&platform.InvoicePage{Invoices: invoices}, nil)
	pc.On("ListSubscriptionsByCustomer", mock.Anything, "cus_1").
		Return([]platform.Subscription{{Status: platform.SubscriptionStatusActive}}, nil)
	pc.On("ListSubscriptions", mock.Anything, mock.Anything).Return(&platform.SubscriptionPage{}, nil)
	ds.On("GetTargetByNaturalKey", mock.Anything, "in_1").Return(nil, nil)
	ds.On("BatchUpsertTargets", mock.Anything, mock.Anything).Return(0, 0, assert.AnError)
	ds.On("UpdateMerchantAudit", mock.Anything, merchant.MerchantID, model.AuditStatusFailed, mock.Anything).Return(nil)
	ds.On("CreateSystemLog", mock.Anything, mock.Anything).Return(nil)

	_, err := p.Scan(context.Background(), merchant.MerchantID, false)
	require.Error(t, err)

	// The failure stamps a failed mark; only a completed scan may advance
	// the audit time.
	ds.AssertCalled(t, "UpdateMerchantAudit", mock.Anything, merchant.MerchantID, model.AuditStatusFailed, mock.Anything)
	ds.AssertNotCalled(t, "UpdateMerchantAudit", mock.Anything, merchant.MerchantID, model.AuditStatusCompleted, mock.Anything)
}

func TestScan_ForceFullSkipsSubscriptionLinkCheck(t *testing.T) {
	ds := new(mocks.MockDataSource)
	pc := new(platformmocks.MockClient)
	p, _ := newTestPhantom(t, ds, pc)
	merchant := newTestMerchant(t, p)
	lastAudit := time.Now().UTC().Add(-time.Hour)
	merchant.LastAuditAt = &lastAudit

	invoices := []platform.Invoice{{
		ID:         "in_churned",
		CustomerID: "cus_churned",
		Status:     platform.InvoiceStatusUncollectible,
		AmountDue:  3000,
		Currency:   "usd",
		CreatedAt:  time.Now().UTC(),
	}}

	ds.On("GetMerchant", mock.Anything, merchant.MerchantID).Return(merchant, nil)
	ds.On("CountActiveTargets", mock.Anything, merchant.MerchantID).Return(0, nil)
	// forceFull requests full history: no created_after filter.
	pc.On("ListInvoices", mock.Anything, mock.MatchedBy(func(params platform.ListParams) bool {
		return params.CreatedAfter == nil
	})).Return(&platform.InvoicePage{Invoices: invoices}, nil)
	pc.On("ListSubscriptions", mock.Anything, mock.Anything).Return(&platform.SubscriptionPage{}, nil)
	ds.On("GetTargetByNaturalKey", mock.Anything, "in_churned").Return(nil, nil)
	ds.On("BatchUpsertTargets", mock.Anything, mock.Anything).Return(1, 0, nil)
	ds.On("UpdateMerchantAudit", mock.Anything, merchant.MerchantID, model.AuditStatusCompleted, mock.Anything).Return(nil)
	ds.On("AccumulateMerchantTotals", mock.Anything, merchant.MerchantID, int64(3000), int64(0), int64(0)).Return(nil)
	ds.On("CreateSystemLog", mock.Anything, mock.Anything).Return(nil)

	result, err := p.Scan(context.Background(), merchant.MerchantID, true)
	require.NoError(t, err)

	assert.Equal(t, 1, result.TargetsFound)
	pc.AssertNotCalled(t, "ListSubscriptionsByCustomer", mock.Anything, mock.Anything)
}
