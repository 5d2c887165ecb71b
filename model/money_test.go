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

	"github.com/stretchr/testify/assert"
)

func TestNormalizeMonthly(t *testing.T) {
	// Weekly 1000 must be exactly floor(1000 * 4.33) = 4330.
	assert.Equal(t, int64(4330), NormalizeMonthly(1000, IntervalWeek, 1))

	// Yearly divides by 12, floored.
	assert.Equal(t, int64(1000), NormalizeMonthly(12000, IntervalYear, 1))
	assert.Equal(t, int64(833), NormalizeMonthly(10000, IntervalYear, 1))

	// Daily multiplies by 30.
	assert.Equal(t, int64(30000), NormalizeMonthly(1000, IntervalDay, 1))

	// Monthly passes through.
	assert.Equal(t, int64(2500), NormalizeMonthly(2500, IntervalMonth, 1))

	// Unknown intervals are treated as monthly.
	assert.Equal(t, int64(2500), NormalizeMonthly(2500, "fortnight", 1))
}

func TestNormalizeMonthlyIntervalCount(t *testing.T) {
	// Every 2 weeks at 2000 minor units -> 1000 per week -> 4330 monthly.
	assert.Equal(t, int64(4330), NormalizeMonthly(2000, IntervalWeek, 2))

	// Zero or negative counts behave as 1.
	assert.Equal(t, int64(4330), NormalizeMonthly(1000, IntervalWeek, 0))
}

func TestNormalizeMonthlyEdgeValues(t *testing.T) {
	assert.Equal(t, int64(0), NormalizeMonthly(0, IntervalWeek, 1))
	assert.Equal(t, int64(0), NormalizeMonthly(-500, IntervalMonth, 1))

	// 1 minor unit weekly floors to 4, not 4.33.
	assert.Equal(t, int64(4), NormalizeMonthly(1, IntervalWeek, 1))
}

func TestSumMonthlyFloorsPerItem(t *testing.T) {
	items := []RecurringItem{
		{Amount: 1000, Interval: IntervalWeek, IntervalCount: 1},  // 4330
		{Amount: 10000, Interval: IntervalYear, IntervalCount: 1}, // 833
		{Amount: 99, Interval: IntervalMonth, IntervalCount: 1},   // 99
	}
	assert.Equal(t, int64(4330+833+99), SumMonthly(items))
}
