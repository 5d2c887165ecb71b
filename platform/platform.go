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

// Package platform is the read-side client for the external payment
// platform. It exposes paginated invoice and subscription listings against a
// merchant's decrypted access credential; all pagination is cursor-based and
// pages are consumed one at a time so a full history is never held in memory.
package platform

import (
	"context"
	"fmt"
	"time"
)

// Invoice statuses as reported by the provider.
const (
	InvoiceStatusOpen          = "open"
	InvoiceStatusPaid          = "paid"
	InvoiceStatusVoid          = "void"
	InvoiceStatusDraft         = "draft"
	InvoiceStatusUncollectible = "uncollectible"
	InvoiceStatusIncomplete    = "incomplete"
)

// Subscription statuses that count as a live billing relationship.
const (
	SubscriptionStatusActive  = "active"
	SubscriptionStatusPastDue = "past_due"
)

// Customer is the invoice owner as expanded by the provider.
type Customer struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

// Card is the payment-method detail attached to a payment intent or
// subscription payment method.
type Card struct {
	Brand    string `json:"brand"`
	Funding  string `json:"funding"`
	Country  string `json:"country"`
	ExpMonth int    `json:"exp_month"`
	ExpYear  int    `json:"exp_year"`
}

// PaymentIntent carries the decline detail for a failed charge.
type PaymentIntent struct {
	ID          string `json:"id"`
	DeclineCode string `json:"decline_code"`
	Requires3DS bool   `json:"requires_3ds"`
	Card        *Card  `json:"card,omitempty"`
}

// Invoice is one billing document in the merchant's history. AmountDue is in
// integer minor units.
type Invoice struct {
	ID              string     `json:"id"`
	CustomerID      string     `json:"customer_id"`
	SubscriptionID  string     `json:"subscription_id"`
	PaymentIntentID string     `json:"payment_intent_id"`
	Status          string     `json:"status"`
	AmountDue       int64      `json:"amount_due"`
	Currency        string     `json:"currency"`
	CreatedAt       time.Time  `json:"created_at"`
	PaidAt          *time.Time `json:"paid_at,omitempty"`
	Customer        *Customer  `json:"customer,omitempty"`
}

// RecurringItem is one line of a subscription's recurring price. Amount is
// per interval in integer minor units.
type RecurringItem struct {
	Amount        int64  `json:"amount"`
	Interval      string `json:"interval"`
	IntervalCount int    `json:"interval_count"`
}

// Subscription is one recurring billing agreement with payment method and
// customer expanded.
type Subscription struct {
	ID            string          `json:"id"`
	CustomerID    string          `json:"customer_id"`
	Status        string          `json:"status"`
	Items         []RecurringItem `json:"items"`
	PaymentMethod *Card           `json:"payment_method,omitempty"`
	Customer      *Customer       `json:"customer,omitempty"`
}

// Live reports whether the subscription still represents a billing
// relationship worth recovering.
func (s *Subscription) Live() bool {
	return s.Status == SubscriptionStatusActive || s.Status == SubscriptionStatusPastDue
}

// ListParams are the cursor-pagination inputs shared by both listings.
// CreatedAfter narrows a delta scan to records newer than the last audit.
type ListParams struct {
	CreatedAfter  *time.Time
	StartingAfter string
	Limit         int
}

// InvoicePage is one page of invoices. NextCursor is the id to resume from
// when HasMore is set.
type InvoicePage struct {
	Invoices   []Invoice `json:"invoices"`
	HasMore    bool      `json:"has_more"`
	NextCursor string    `json:"next_cursor"`
}

// SubscriptionPage is one page of subscriptions.
type SubscriptionPage struct {
	Subscriptions []Subscription `json:"subscriptions"`
	HasMore       bool           `json:"has_more"`
	NextCursor    string         `json:"next_cursor"`
}

// RateLimitError is the provider's throttle signal. It is the only error
// class the client retries.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("provider rate limit hit, retry after %s", e.RetryAfter)
}

// Client reads a merchant's billing history. Implementations are constructed
// per scan from the merchant's decrypted credential and must never be cached
// across merchants.
type Client interface {
	ListInvoices(ctx context.Context, params ListParams) (*InvoicePage, error)
	ListSubscriptions(ctx context.Context, params ListParams) (*SubscriptionPage, error)
	ListSubscriptionsByCustomer(ctx context.Context, customerID string) ([]Subscription, error)
	GetInvoice(ctx context.Context, id string) (*Invoice, error)
	GetPaymentIntent(ctx context.Context, id string) (*PaymentIntent, error)
}
