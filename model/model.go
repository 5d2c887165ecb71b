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
	"strings"

	"github.com/google/uuid"
)

// GenerateUUIDWithSuffix generates a UUID with a given module name as a suffix.
// This is useful for creating unique identifiers with context-specific prefixes.
func GenerateUUIDWithSuffix(module string) string {
	id := uuid.New()
	uuidStr := id.String()
	idWithSuffix := fmt.Sprintf("%s_%s", module, uuidStr)
	return idWithSuffix
}

// DeclineType classifies a provider decline code as retryable or permanent.
type DeclineType string

const (
	DeclineSoft DeclineType = "soft" // retryable, worth another attempt
	DeclineHard DeclineType = "hard" // permanent, the card itself is the problem
)

// hardDeclineCodes is the fixed classification table for provider decline
// codes that indicate the payment method is permanently unusable. Codes not
// listed here (including unknown codes) classify as soft.
var hardDeclineCodes = map[string]struct{}{
	"card_declined":      {},
	"expired_card":       {},
	"stolen_card":        {},
	"lost_card":          {},
	"pickup_card":        {},
	"fraudulent":         {},
	"invalid_account":    {},
	"card_not_supported": {},
	"do_not_honor":       {},
}

// ClassifyDecline maps a raw provider decline code to a DeclineType.
// Unknown codes default to soft so that a new provider code never silently
// exhausts a recoverable customer.
func ClassifyDecline(code string) DeclineType {
	if _, ok := hardDeclineCodes[strings.ToLower(strings.TrimSpace(code))]; ok {
		return DeclineHard
	}
	return DeclineSoft
}

// Recovery strategies, in the order the selector resolves them.
const (
	StrategyTechnicalBridge = "technical_bridge"
	StrategyHighValueManual = "high_value_manual"
	StrategyCardRefresh     = "card_refresh"
	StrategySmartRetry      = "smart_retry"
)

// highValueThreshold is the minor-unit amount above which a failed payment
// is routed to manual handling.
const highValueThreshold int64 = 50000

// StrategySignals are the inputs to strategy selection, extracted from the
// provider's payment-intent metadata during a scan.
type StrategySignals struct {
	Requires3DS bool
	DeclineType DeclineType
	Amount      int64
}

// SelectStrategy resolves the recovery strategy for a target. The priority
// order is fixed: a 3-D-Secure requirement beats amount, amount beats a hard
// decline, and everything else falls through to smart retry. The function is
// pure: the same signals always yield the same strategy.
func SelectStrategy(s StrategySignals) string {
	switch {
	case s.Requires3DS:
		return StrategyTechnicalBridge
	case s.Amount > highValueThreshold:
		return StrategyHighValueManual
	case s.DeclineType == DeclineHard:
		return StrategyCardRefresh
	default:
		return StrategySmartRetry
	}
}

// MaskEmail obscures the local part of an address for audit logs, keeping
// the first and last character visible.
func MaskEmail(email string) string {
	at := strings.Index(email, "@")
	if at <= 0 {
		return "***"
	}
	local, domain := email[:at], email[at:]
	if len(local) <= 2 {
		return "***" + domain
	}
	return fmt.Sprintf("%c***%c%s", local[0], local[len(local)-1], domain)
}
