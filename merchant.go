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

package phantomvision

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/bencullen0123-byte/Phantom-Vision-sub000/internal/syserror"
	"github.com/bencullen0123-byte/Phantom-Vision-sub000/model"
)

// ConnectMerchant onboards a payment-platform account. The access credential
// is sealed by the vault before it ever reaches the datasource; plaintext
// credentials are never persisted.
func (p *Phantom) ConnectMerchant(ctx context.Context, merchant model.Merchant, credential string) (model.Merchant, error) {
	if credential == "" {
		return model.Merchant{}, syserror.New(syserror.ErrInvalidInput, syserror.SeverityExpected,
			"A platform credential is required to connect a merchant", nil)
	}

	sealed, err := p.vault.Encrypt(credential)
	if err != nil {
		return model.Merchant{}, syserror.New(syserror.ErrVaultCritical, syserror.SeverityCritical,
			"Could not encrypt the platform credential", err)
	}
	merchant.CredentialCipher = sealed.Ciphertext
	merchant.CredentialIV = sealed.IV
	merchant.CredentialTag = sealed.AuthTag

	created, err := p.datasource.CreateMerchant(ctx, merchant)
	if err != nil {
		return model.Merchant{}, err
	}

	if err := p.queue.queueIndexData(created.MerchantID, "merchants", created); err != nil {
		logrus.Error(err)
	}
	return created, nil
}

// GetMerchant retrieves a merchant by id.
func (p *Phantom) GetMerchant(ctx context.Context, id string) (*model.Merchant, error) {
	return p.datasource.GetMerchant(ctx, id)
}

// GetAllMerchants retrieves a page of merchants, newest first.
func (p *Phantom) GetAllMerchants(ctx context.Context, limit, offset int) ([]model.Merchant, error) {
	return p.datasource.GetAllMerchants(ctx, limit, offset)
}

// UpdateMerchantSettings persists operator-editable settings. Revenue totals
// and audit state are owned by the scanner and cannot be changed here.
func (p *Phantom) UpdateMerchantSettings(ctx context.Context, merchant *model.Merchant) error {
	if err := p.datasource.UpdateMerchant(ctx, merchant); err != nil {
		return err
	}
	if err := p.queue.queueIndexData(merchant.MerchantID, "merchants", merchant); err != nil {
		logrus.Error(err)
	}
	return nil
}

// GetSystemLogs retrieves operator audit rows, optionally scoped to one
// merchant.
func (p *Phantom) GetSystemLogs(ctx context.Context, merchantID string, limit, offset int) ([]model.SystemLog, error) {
	return p.datasource.GetSystemLogs(ctx, merchantID, limit, offset)
}
