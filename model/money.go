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
	"github.com/shopspring/decimal"
)

// Billing intervals reported by the payment platform for recurring prices.
const (
	IntervalDay   = "day"
	IntervalWeek  = "week"
	IntervalMonth = "month"
	IntervalYear  = "year"
)

// Normalization factors. Weeks per month uses the 4.33 convention; the
// arithmetic stays in decimal until the final floor so no binary float ever
// touches a monetary value.
var (
	weeksPerMonth = decimal.RequireFromString("4.33")
	daysPerMonth  = decimal.NewFromInt(30)
	monthsPerYear = decimal.NewFromInt(12)
)

// NormalizeMonthly converts a recurring price in integer minor units to its
// monthly-equivalent value, rounding down to the integer minor unit. The
// result is exact decimal arithmetic: weekly 1000 yields 4330, never a
// float-drifted neighbor. Unknown intervals are treated as monthly.
func NormalizeMonthly(amount int64, interval string, intervalCount int64) int64 {
	if amount <= 0 {
		return 0
	}
	if intervalCount <= 0 {
		intervalCount = 1
	}

	// Per-single-interval price first, floored to minor units.
	per := decimal.NewFromInt(amount).DivRound(decimal.NewFromInt(intervalCount), 12).Floor()

	var monthly decimal.Decimal
	switch interval {
	case IntervalWeek:
		monthly = per.Mul(weeksPerMonth)
	case IntervalYear:
		monthly = per.DivRound(monthsPerYear, 12)
	case IntervalDay:
		monthly = per.Mul(daysPerMonth)
	default:
		monthly = per
	}

	return monthly.Floor().IntPart()
}

// SumMonthly folds a set of recurring line items into one monthly-equivalent
// total, flooring each item before summing so rounding never compounds.
func SumMonthly(items []RecurringItem) int64 {
	var total int64
	for _, it := range items {
		total += NormalizeMonthly(it.Amount, it.Interval, it.IntervalCount)
	}
	return total
}

// RecurringItem is one recurring price line on a subscription.
type RecurringItem struct {
	Amount        int64  `json:"amount"`
	Interval      string `json:"interval"`
	IntervalCount int64  `json:"interval_count"`
}
