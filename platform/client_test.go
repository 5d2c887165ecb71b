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
	"net/http"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
)

func newTestClient(maxRetries int) (*HTTPClient, *http.Client) {
	hc := &http.Client{}
	client := NewClient("sk_test_123",
		WithBaseURL("https://provider.test/v1"),
		WithMaxRetries(maxRetries),
		WithHTTPClient(hc))
	return client, hc
}

func TestListInvoices_Pagination(t *testing.T) {
	client, hc := newTestClient(0)
	httpmock.ActivateNonDefault(hc)
	defer httpmock.DeactivateAndReset()

	httpmock.RegisterResponder("GET", "https://provider.test/v1/invoices",
		func(req *http.Request) (*http.Response, error) {
			assert.Equal(t, "Bearer sk_test_123", req.Header.Get("Authorization"))
			if req.URL.Query().Get("starting_after") == "" {
				return httpmock.NewJsonResponse(http.StatusOK, InvoicePage{
					Invoices:   []Invoice{{ID: "in_001", Status: InvoiceStatusOpen, AmountDue: 2999}},
					HasMore:    true,
					NextCursor: "in_001",
				})
			}
			return httpmock.NewJsonResponse(http.StatusOK, InvoicePage{
				Invoices: []Invoice{{ID: "in_002", Status: InvoiceStatusPaid, AmountDue: 999}},
				HasMore:  false,
			})
		})

	first, err := client.ListInvoices(context.Background(), ListParams{Limit: 1})
	assert.NoError(t, err)
	assert.True(t, first.HasMore)
	assert.Equal(t, "in_001", first.NextCursor)

	second, err := client.ListInvoices(context.Background(), ListParams{Limit: 1, StartingAfter: first.NextCursor})
	assert.NoError(t, err)
	assert.False(t, second.HasMore)
	assert.Equal(t, "in_002", second.Invoices[0].ID)
}

func TestListInvoices_DeltaWindowFilter(t *testing.T) {
	client, hc := newTestClient(0)
	httpmock.ActivateNonDefault(hc)
	defer httpmock.DeactivateAndReset()

	lastAudit := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	httpmock.RegisterResponder("GET", "https://provider.test/v1/invoices",
		func(req *http.Request) (*http.Response, error) {
			assert.Equal(t, "1717243200", req.URL.Query().Get("created_after"))
			return httpmock.NewJsonResponse(http.StatusOK, InvoicePage{})
		})

	_, err := client.ListInvoices(context.Background(), ListParams{CreatedAfter: &lastAudit})
	assert.NoError(t, err)
}

func TestGetWithRetry_RateLimitThenSuccess(t *testing.T) {
	client, hc := newTestClient(3)
	httpmock.ActivateNonDefault(hc)
	defer httpmock.DeactivateAndReset()

	calls := 0
	httpmock.RegisterResponder("GET", "https://provider.test/v1/invoices/in_001",
		func(req *http.Request) (*http.Response, error) {
			calls++
			if calls == 1 {
				resp := httpmock.NewStringResponse(http.StatusTooManyRequests, "")
				resp.Header.Set("Retry-After", "0")
				return resp, nil
			}
			return httpmock.NewJsonResponse(http.StatusOK, Invoice{ID: "in_001"})
		})

	invoice, err := client.GetInvoice(context.Background(), "in_001")
	assert.NoError(t, err)
	assert.Equal(t, "in_001", invoice.ID)
	assert.Equal(t, 2, calls)
}

func TestGetWithRetry_NonRateLimitNotRetried(t *testing.T) {
	client, hc := newTestClient(3)
	httpmock.ActivateNonDefault(hc)
	defer httpmock.DeactivateAndReset()

	calls := 0
	httpmock.RegisterResponder("GET", "https://provider.test/v1/invoices/in_500",
		func(req *http.Request) (*http.Response, error) {
			calls++
			return httpmock.NewStringResponse(http.StatusInternalServerError, ""), nil
		})

	_, err := client.GetInvoice(context.Background(), "in_500")
	assert.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestGetWithRetry_RetriesAreBounded(t *testing.T) {
	client, hc := newTestClient(1)
	httpmock.ActivateNonDefault(hc)
	defer httpmock.DeactivateAndReset()

	calls := 0
	httpmock.RegisterResponder("GET", "https://provider.test/v1/invoices/in_429",
		func(req *http.Request) (*http.Response, error) {
			calls++
			resp := httpmock.NewStringResponse(http.StatusTooManyRequests, "")
			resp.Header.Set("Retry-After", "0")
			return resp, nil
		})

	_, err := client.GetInvoice(context.Background(), "in_429")
	assert.Error(t, err)
	var rateErr *RateLimitError
	assert.ErrorAs(t, err, &rateErr)
	assert.Equal(t, 2, calls)
}

func TestSubscriptionLive(t *testing.T) {
	assert.True(t, (&Subscription{Status: SubscriptionStatusActive}).Live())
	assert.True(t, (&Subscription{Status: SubscriptionStatusPastDue}).Live())
	assert.False(t, (&Subscription{Status: "canceled"}).Live())
}
