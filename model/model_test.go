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

package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestClassifyDecline(t *testing.T) {
	tests := []struct {
		code string
		want DeclineType
	}{
		{"card_declined", DeclineHard},
		{"expired_card", DeclineHard},
		{"stolen_card", DeclineHard},
		{"insufficient_funds", DeclineSoft},
		{"processing_error", DeclineSoft},
		{"some_future_provider_code", DeclineSoft},
		{"", DeclineSoft},
		{"  CARD_DECLINED  ", DeclineHard},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ClassifyDecline(tt.code), "code %q", tt.code)
	}
}

func TestSelectStrategyPriority(t *testing.T) {
	// 3DS beats both high value and hard decline.
	assert.Equal(t, StrategyTechnicalBridge, SelectStrategy(StrategySignals{
		Requires3DS: true,
		DeclineType: DeclineHard,
		Amount:      100000,
	}))

	// High value beats hard decline.
	assert.Equal(t, StrategyHighValueManual, SelectStrategy(StrategySignals{
		DeclineType: DeclineHard,
		Amount:      100000,
	}))

	// Exactly at the threshold is not high value.
	assert.Equal(t, StrategyCardRefresh, SelectStrategy(StrategySignals{
		DeclineType: DeclineHard,
		Amount:      50000,
	}))

	assert.Equal(t, StrategySmartRetry, SelectStrategy(StrategySignals{
		DeclineType: DeclineSoft,
		Amount:      1200,
	}))
}

func TestSelectStrategyIsPure(t *testing.T) {
	s := StrategySignals{Requires3DS: false, DeclineType: DeclineSoft, Amount: 999}
	first := SelectStrategy(s)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, SelectStrategy(s))
	}
}

func TestTargetContactable(t *testing.T) {
	now := time.Now()
	grace := 4 * time.Hour

	tgt := &Target{
		Status:       StatusPending,
		EmailCount:   0,
		DiscoveredAt: now.Add(-5 * time.Hour),
		PurgeAt:      now.Add(PurgeWindow),
	}
	assert.True(t, tgt.Contactable(now, grace))

	// Inside the grace period.
	tgt.DiscoveredAt = now.Add(-1 * time.Hour)
	assert.False(t, tgt.Contactable(now, grace))
	tgt.DiscoveredAt = now.Add(-5 * time.Hour)

	// At the contact ceiling.
	tgt.EmailCount = MaxEmailContacts
	assert.False(t, tgt.Contactable(now, grace))
	tgt.EmailCount = 2

	// Purged.
	tgt.PurgeAt = now.Add(-time.Minute)
	assert.False(t, tgt.Contactable(now, grace))
	tgt.PurgeAt = now.Add(time.Hour)

	// Terminal states.
	for _, st := range []string{StatusRecovered, StatusProtected, StatusExhausted} {
		tgt.Status = st
		assert.False(t, tgt.Contactable(now, grace), "status %s", st)
	}

	tgt.Status = StatusImpending
	assert.True(t, tgt.Contactable(now, grace))
}

func TestRegisterSendExhaustion(t *testing.T) {
	now := time.Now()
	tgt := &Target{Status: StatusPending, EmailCount: 2}

	exhausted := tgt.RegisterSend(now)
	assert.True(t, exhausted)
	assert.Equal(t, StatusExhausted, tgt.Status)
	assert.Equal(t, 3, tgt.EmailCount)
	assert.NotNil(t, tgt.LastEmailedAt)

	fresh := &Target{Status: StatusPending, EmailCount: 0}
	assert.False(t, fresh.RegisterSend(now))
	assert.Equal(t, StatusPending, fresh.Status)
	assert.Equal(t, 1, fresh.EmailCount)
}

func TestAttributionWindow(t *testing.T) {
	now := time.Now()
	tgt := &Target{Status: StatusPending}

	assert.False(t, tgt.AttributionActive(now))

	tgt.RegisterClick(now)
	assert.Equal(t, 1, tgt.ClickCount)
	assert.True(t, tgt.AttributionActive(now.Add(24*time.Hour)))
	assert.False(t, tgt.AttributionActive(now.Add(AttributionWindow+time.Minute)))
}

func TestGoldenHourWindow(t *testing.T) {
	g := GoldenHour{DayOfWeek: 2, HourOfDay: 14}
	assert.True(t, g.InWindow(14))
	assert.True(t, g.InWindow(12))
	assert.True(t, g.InWindow(16))
	assert.False(t, g.InWindow(11))
	assert.False(t, g.InWindow(17))

	// Wraps across midnight.
	late := GoldenHour{HourOfDay: 23}
	assert.True(t, late.InWindow(1))
	assert.False(t, late.InWindow(2))
}

func TestImpendingKey(t *testing.T) {
	assert.Equal(t, "impending_sub_123", ImpendingKey("sub_123"))
}

func TestMaskEmail(t *testing.T) {
	assert.Equal(t, "j***e@example.com", MaskEmail("jane.doe@example.com"))
	assert.Equal(t, "***@example.com", MaskEmail("jd@example.com"))
	assert.Equal(t, "***", MaskEmail("not-an-email"))
}

func TestTargetValidate(t *testing.T) {
	tgt := &Target{
		MerchantID: "mer_1",
		NaturalKey: "in_123",
		Status:     StatusPending,
		Amount:     4200,
	}
	assert.NoError(t, tgt.Validate())

	tgt.Status = "bogus"
	assert.Error(t, tgt.Validate())

	tgt.Status = StatusPending
	tgt.NaturalKey = ""
	assert.Error(t, tgt.Validate())
}

func TestMerchantValidate(t *testing.T) {
	m := &Merchant{
		MerchantID:   "mer_1",
		TierLimit:    50,
		SendStrategy: SendStrategyImmediate,
	}
	assert.NoError(t, m.Validate())

	// SupportEmail is optional, but when present it must be an address.
	m.SupportEmail = "help@example.com"
	assert.NoError(t, m.Validate())

	m.SupportEmail = "not-an-address"
	assert.Error(t, m.Validate())

	m.SupportEmail = ""
	m.SendStrategy = "bogus"
	assert.Error(t, m.Validate())
}

func TestGenerateUUIDWithSuffix(t *testing.T) {
	id := GenerateUUIDWithSuffix("tgt")
	assert.Contains(t, id, "tgt_")
	assert.NotEqual(t, id, GenerateUUIDWithSuffix("tgt"))
}
