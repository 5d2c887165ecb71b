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
	"fmt"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Target statuses. Pending and impending are the only states eligible for
// outreach; recovered, protected and exhausted are terminal.
const (
	StatusPending   = "pending"
	StatusImpending = "impending"
	StatusRecovered = "recovered"
	StatusProtected = "protected"
	StatusExhausted = "exhausted"
)

// Recovery types recorded when a target reaches a terminal success state.
const (
	RecoveryTypeOrganic  = "organic"  // payment observed during a scan, no outreach credit
	RecoveryTypeCampaign = "campaign" // payment inside an outreach attribution window
)

const (
	// MaxEmailContacts is the outreach ceiling; the send that reaches it
	// transitions the target to exhausted.
	MaxEmailContacts = 3

	// PurgeWindow is how long a target stays processable after discovery.
	PurgeWindow = 90 * 24 * time.Hour

	// AttributionWindow is how long after an outreach click a payment is
	// credited to the campaign rather than treated as incidental.
	AttributionWindow = 7 * 24 * time.Hour
)

// ImpendingKey builds the synthetic natural key for an expiry-risk target.
func ImpendingKey(subscriptionID string) string {
	return fmt.Sprintf("impending_%s", subscriptionID)
}

// MLMetadata is optional provider metadata captured per failing invoice,
// used downstream for strategy analytics.
type MLMetadata struct {
	CardBrand    string     `json:"card_brand,omitempty"`
	CardFunding  string     `json:"card_funding,omitempty"`
	CardCountry  string     `json:"card_country,omitempty"`
	Requires3DS  bool       `json:"requires_3ds"`
	ProviderCode string     `json:"provider_code,omitempty"`
	InvoiceDate  *time.Time `json:"invoice_date,omitempty"`
}

// Target is one ledger entry for a failing or soon-to-fail recurring
// payment. Email and customer name are stored encrypted; the natural key is
// the provider invoice id, or ImpendingKey(subscriptionID) for expiry-risk
// rows, and is unique per merchant history.
type Target struct {
	TargetID             string      `json:"target_id"`
	MerchantID           string      `json:"merchant_id"`
	EmailCipher          string      `json:"-"`
	EmailIV              string      `json:"-"`
	EmailTag             string      `json:"-"`
	NameCipher           string      `json:"-"`
	NameIV               string      `json:"-"`
	NameTag              string      `json:"-"`
	Amount               int64       `json:"amount"`
	Currency             string      `json:"currency"`
	NaturalKey           string      `json:"natural_key"`
	Status               string      `json:"status"`
	DeclineType          DeclineType `json:"decline_type,omitempty"`
	Strategy             string      `json:"strategy,omitempty"`
	RecoveryType         string      `json:"recovery_type,omitempty"`
	EmailCount           int         `json:"email_count"`
	LastEmailedAt        *time.Time  `json:"last_emailed_at,omitempty"`
	ClickCount           int         `json:"click_count"`
	AttributionExpiresAt *time.Time  `json:"attribution_expires_at,omitempty"`
	DiscoveredAt         time.Time   `json:"discovered_at"`
	PurgeAt              time.Time   `json:"purge_at"`
	Metadata             MLMetadata  `json:"metadata"`
}

func (t *Target) Validate() error {
	return validation.ValidateStruct(t,
		validation.Field(&t.MerchantID, validation.Required),
		validation.Field(&t.NaturalKey, validation.Required),
		validation.Field(&t.Amount, validation.Min(0)),
		validation.Field(&t.Status, validation.Required, validation.In(
			StatusPending, StatusImpending, StatusRecovered, StatusProtected, StatusExhausted)),
	)
}

// Terminal reports whether the target is out of outreach scope for good.
func (t *Target) Terminal() bool {
	switch t.Status {
	case StatusRecovered, StatusProtected, StatusExhausted:
		return true
	}
	return false
}

// Purged reports whether the purge timestamp has elapsed. Purged targets are
// excluded from all further processing but never deleted.
func (t *Target) Purged(now time.Time) bool {
	return !t.PurgeAt.IsZero() && now.After(t.PurgeAt)
}

// Contactable reports whether the target is still eligible for outreach:
// a live status, under the contact ceiling, past the discovery grace period
// and not yet purged.
func (t *Target) Contactable(now time.Time, grace time.Duration) bool {
	if t.Status != StatusPending && t.Status != StatusImpending {
		return false
	}
	if t.EmailCount >= MaxEmailContacts {
		return false
	}
	if now.Sub(t.DiscoveredAt) < grace {
		return false
	}
	return !t.Purged(now)
}

// RegisterSend records one successful outreach email. The send that reaches
// the contact ceiling moves the target to exhausted; the caller persists the
// mutation. Returns true when the exhaustion transition happened.
func (t *Target) RegisterSend(now time.Time) bool {
	t.EmailCount++
	t.LastEmailedAt = &now
	if t.EmailCount >= MaxEmailContacts {
		t.Status = StatusExhausted
		return true
	}
	return false
}

// RegisterClick opens (or refreshes) the attribution window for this target.
func (t *Target) RegisterClick(now time.Time) {
	t.ClickCount++
	expires := now.Add(AttributionWindow)
	t.AttributionExpiresAt = &expires
}

// AttributionActive reports whether a payment at the given instant falls
// inside an open attribution window.
func (t *Target) AttributionActive(at time.Time) bool {
	return t.AttributionExpiresAt != nil && at.Before(*t.AttributionExpiresAt)
}
