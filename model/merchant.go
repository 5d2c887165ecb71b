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
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
)

// Send strategies a merchant can configure for pending-target outreach.
const (
	SendStrategyImmediate       = "immediate"
	SendStrategyTimingOptimized = "timing_optimized"
)

// Audit statuses recorded against a merchant after each scan attempt.
const (
	AuditStatusCompleted = "completed"
	AuditStatusSkipped   = "skipped"
	AuditStatusFailed    = "failed"
)

// Merchant is one connected external payment-platform account. The access
// credential is stored encrypted; CredentialCipher/IV/Tag hold the vault
// output and are only ever decrypted in memory for the duration of a scan.
type Merchant struct {
	MerchantID       string     `json:"merchant_id"`
	Name             string     `json:"name"`
	CredentialCipher string     `json:"-"`
	CredentialIV     string     `json:"-"`
	CredentialTag    string     `json:"-"`
	TierLimit        int        `json:"tier_limit"`
	DefaultCurrency  string     `json:"default_currency"`
	GrossInvoiced    int64      `json:"gross_invoiced"`
	RecoveredTotal   int64      `json:"recovered_total"`
	ProtectedTotal   int64      `json:"protected_total"`
	LastAuditAt      *time.Time `json:"last_audit_at,omitempty"`
	LastAuditStatus  string     `json:"last_audit_status,omitempty"`
	AutoPilot        bool       `json:"auto_pilot"`
	SendStrategy     string     `json:"send_strategy"`
	SupportEmail     string     `json:"support_email,omitempty"`
	BrandColor       string     `json:"brand_color,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
}

func (m *Merchant) Validate() error {
	return validation.ValidateStruct(m,
		validation.Field(&m.MerchantID, validation.Required),
		validation.Field(&m.TierLimit, validation.Min(0)),
		validation.Field(&m.SendStrategy, validation.In(SendStrategyImmediate, SendStrategyTimingOptimized)),
		validation.Field(&m.SupportEmail, validation.When(m.SupportEmail != "", is.EmailFormat)),
	)
}

// TimingOptimized reports whether pending sends for this merchant must wait
// for the golden-hour window.
func (m *Merchant) TimingOptimized() bool {
	return m.SendStrategy == SendStrategyTimingOptimized
}
