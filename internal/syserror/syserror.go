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

package syserror

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

// Severity classes. They drive propagation: fatal stops startup, critical
// aborts the current operation, retryable is retried within bounds, and
// expected outcomes are counted in results rather than surfaced as errors.
type Severity string

const (
	SeverityFatal     Severity = "fatal"
	SeverityCritical  Severity = "critical"
	SeverityRetryable Severity = "retryable"
	SeverityExpected  Severity = "expected"
)

type ErrorCode string

const (
	ErrNotFound      ErrorCode = "NOT_FOUND"
	ErrConflict      ErrorCode = "CONFLICT"
	ErrInvalidInput  ErrorCode = "INVALID_INPUT"
	ErrInternal      ErrorCode = "INTERNAL"
	ErrVaultCritical ErrorCode = "VAULT_CRITICAL"
	ErrRateLimited   ErrorCode = "RATE_LIMITED"
	ErrBatchAborted  ErrorCode = "BATCH_ABORTED"
)

type SysError struct {
	Code     ErrorCode   `json:"code"`
	Severity Severity    `json:"severity"`
	Message  string      `json:"message"`
	Details  interface{} `json:"details,omitempty"`
}

func (e SysError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func New(code ErrorCode, severity Severity, message string, details interface{}) SysError {
	if details != nil {
		logrus.Error(details)
	}
	return SysError{
		Code:     code,
		Severity: severity,
		Message:  message,
		Details:  details,
	}
}

// Internal wraps an unexpected failure as a critical internal error.
func Internal(message string, details interface{}) SysError {
	return New(ErrInternal, SeverityCritical, message, details)
}

// SeverityOf classifies any error. Unknown errors are treated as critical
// so a missed classification never silently downgrades a failure.
func SeverityOf(err error) Severity {
	if se, ok := err.(SysError); ok {
		return se.Severity
	}
	return SeverityCritical
}
