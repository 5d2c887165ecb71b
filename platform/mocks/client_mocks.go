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
package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/bencullen0123-byte/Phantom-Vision-sub000/platform"
)

// MockClient is a mock implementation of the platform.Client interface
type MockClient struct {
	mock.Mock
}

func (m *MockClient) ListInvoices(ctx context.Context, params platform.ListParams) (*platform.InvoicePage, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*platform.InvoicePage), args.Error(1)
}

func (m *MockClient) ListSubscriptions(ctx context.Context, params platform.ListParams) (*platform.SubscriptionPage, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*platform.SubscriptionPage), args.Error(1)
}

func (m *MockClient) ListSubscriptionsByCustomer(ctx context.Context, customerID string) ([]platform.Subscription, error) {
	args := m.Called(ctx, customerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]platform.Subscription), args.Error(1)
}

func (m *MockClient) GetInvoice(ctx context.Context, id string) (*platform.Invoice, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*platform.Invoice), args.Error(1)
}

func (m *MockClient) GetPaymentIntent(ctx context.Context, id string) (*platform.PaymentIntent, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*platform.PaymentIntent), args.Error(1)
}
