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

package platform

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"
)

const defaultBaseURL = "https://api.paymentplatform.com/v1"

// HTTPClient talks to the provider's REST API with bearer authentication.
// Rate-limit responses are retried with exponential backoff up to maxRetries;
// every other failure propagates immediately.
type HTTPClient struct {
	baseURL    string
	credential string
	maxRetries int
	httpClient *http.Client
}

// Option configures an HTTPClient.
type Option func(*HTTPClient)

// WithBaseURL points the client at a non-default API host. Used by tests and
// proxy deployments.
func WithBaseURL(baseURL string) Option {
	return func(c *HTTPClient) { c.baseURL = baseURL }
}

// WithMaxRetries bounds the rate-limit retry loop.
func WithMaxRetries(n int) Option {
	return func(c *HTTPClient) { c.maxRetries = n }
}

// WithHTTPClient swaps the underlying transport. Used by tests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *HTTPClient) { c.httpClient = hc }
}

// NewClient builds a provider client from a merchant's decrypted credential.
func NewClient(credential string, opts ...Option) *HTTPClient {
	c := &HTTPClient{
		baseURL:    defaultBaseURL,
		credential: credential,
		maxRetries: 5,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// get performs one authenticated GET and decodes the JSON body. A 429 maps
// to RateLimitError so the caller's retry loop can distinguish it.
func (c *HTTPClient) get(ctx context.Context, path string, query url.Values, out interface{}) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.credential)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusTooManyRequests {
		retryAfter := time.Second
		if header := resp.Header.Get("Retry-After"); header != "" {
			if secs, err := strconv.Atoi(header); err == nil {
				retryAfter = time.Duration(secs) * time.Second
			}
		}
		return &RateLimitError{RetryAfter: retryAfter}
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("provider returned status %d for %s", resp.StatusCode, path)
	}

	return json.NewDecoder(resp.Body).Decode(out)
}

// getWithRetry wraps get in a bounded explicit retry loop. Only rate-limit
// errors are retried; the wait is the larger of the provider's Retry-After
// hint and the backoff schedule.
func (c *HTTPClient) getWithRetry(ctx context.Context, path string, query url.Values, out interface{}) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = time.Second
	bo.MaxInterval = 30 * time.Second

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		lastErr = c.get(ctx, path, query, out)
		if lastErr == nil {
			return nil
		}

		rateErr, ok := lastErr.(*RateLimitError)
		if !ok {
			return lastErr
		}

		wait := bo.NextBackOff()
		if rateErr.RetryAfter > wait {
			wait = rateErr.RetryAfter
		}
		logrus.WithFields(logrus.Fields{
			"path":    path,
			"attempt": attempt + 1,
			"wait":    wait.String(),
		}).Warn("provider rate limit hit, backing off")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}

	return lastErr
}

func (p ListParams) query() url.Values {
	query := url.Values{}
	if p.Limit > 0 {
		query.Set("limit", strconv.Itoa(p.Limit))
	}
	if p.StartingAfter != "" {
		query.Set("starting_after", p.StartingAfter)
	}
	if p.CreatedAfter != nil {
		query.Set("created_after", strconv.FormatInt(p.CreatedAfter.Unix(), 10))
	}
	return query
}

// ListInvoices retrieves one page of the merchant's invoice history.
func (c *HTTPClient) ListInvoices(ctx context.Context, params ListParams) (*InvoicePage, error) {
	var page InvoicePage
	if err := c.getWithRetry(ctx, "/invoices", params.query(), &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// ListSubscriptions retrieves one page of subscriptions with payment method
// and customer expanded.
func (c *HTTPClient) ListSubscriptions(ctx context.Context, params ListParams) (*SubscriptionPage, error) {
	query := params.query()
	query.Set("expand", "payment_method,customer")
	var page SubscriptionPage
	if err := c.getWithRetry(ctx, "/subscriptions", query, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// ListSubscriptionsByCustomer retrieves every subscription belonging to one
// customer. The listing is small enough to drain in a single call loop.
func (c *HTTPClient) ListSubscriptionsByCustomer(ctx context.Context, customerID string) ([]Subscription, error) {
	var all []Subscription
	cursor := ""
	for {
		query := url.Values{}
		query.Set("customer", customerID)
		if cursor != "" {
			query.Set("starting_after", cursor)
		}

		var page SubscriptionPage
		if err := c.getWithRetry(ctx, "/subscriptions", query, &page); err != nil {
			return nil, err
		}
		all = append(all, page.Subscriptions...)
		if !page.HasMore || page.NextCursor == "" {
			return all, nil
		}
		cursor = page.NextCursor
	}
}

// GetInvoice retrieves a single invoice.
func (c *HTTPClient) GetInvoice(ctx context.Context, id string) (*Invoice, error) {
	var invoice Invoice
	if err := c.getWithRetry(ctx, "/invoices/"+id, nil, &invoice); err != nil {
		return nil, err
	}
	return &invoice, nil
}

// GetPaymentIntent retrieves the decline detail for a failed charge.
func (c *HTTPClient) GetPaymentIntent(ctx context.Context, id string) (*PaymentIntent, error) {
	var intent PaymentIntent
	if err := c.getWithRetry(ctx, "/payment_intents/"+id, nil, &intent); err != nil {
		return nil, err
	}
	return &intent, nil
}
