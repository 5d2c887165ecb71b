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
	"fmt"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/bencullen0123-byte/Phantom-Vision-sub000/config"
	"github.com/bencullen0123-byte/Phantom-Vision-sub000/internal/request"
	"github.com/bencullen0123-byte/Phantom-Vision-sub000/model"
)

// OutreachEmail carries everything the mail provider needs for a single
// recovery email. Recipient fields hold decrypted plaintext and must never
// be persisted or logged; callers log only the masked form.
type OutreachEmail struct {
	TargetID     string
	To           string
	Name         string
	MerchantName string
	SupportEmail string
	BrandColor   string
	Strategy     string
	Amount       int64
	Currency     string
	TrackingURL  string
}

// SendResult reports the outcome of a single send attempt.
type SendResult struct {
	Success bool
	DryRun  bool
}

// Mailer delivers recovery emails.
type Mailer interface {
	Send(ctx context.Context, email OutreachEmail) (SendResult, error)
}

// NewMailer returns the HTTP mailer when an API key is configured, and a
// dry-run mailer otherwise. The dry-run mailer logs what would have been
// sent and always succeeds, so an unconfigured provider degrades the
// dispatcher instead of failing it.
func NewMailer(conf *config.MailerConfig) Mailer {
	if conf.ApiKey == "" {
		return &dryRunMailer{}
	}
	return &httpMailer{
		apiKey:      conf.ApiKey,
		fromAddress: conf.FromAddress,
	}
}

type dryRunMailer struct{}

func (d *dryRunMailer) Send(_ context.Context, email OutreachEmail) (SendResult, error) {
	logrus.WithFields(logrus.Fields{
		"target_id": email.TargetID,
		"to":        model.MaskEmail(email.To),
		"strategy":  email.Strategy,
	}).Info("mailer not configured, dry-run send")
	return SendResult{Success: true, DryRun: true}, nil
}

type httpMailer struct {
	apiKey      string
	fromAddress string
}

const mailProviderURL = "https://api.mailprovider.com/v1/send"

func (h *httpMailer) Send(ctx context.Context, email OutreachEmail) (SendResult, error) {
	payload := map[string]interface{}{
		"from":    h.fromAddress,
		"to":      email.To,
		"subject": fmt.Sprintf("%s: complete your payment", email.MerchantName),
		"template_data": map[string]interface{}{
			"name":          email.Name,
			"merchant_name": email.MerchantName,
			"support_email": email.SupportEmail,
			"brand_color":   email.BrandColor,
			"strategy":      email.Strategy,
			"amount":        email.Amount,
			"currency":      email.Currency,
			"tracking_url":  email.TrackingURL,
		},
	}

	body, err := request.ToJsonReq(payload)
	if err != nil {
		return SendResult{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, mailProviderURL, body)
	if err != nil {
		return SendResult{}, err
	}
	req.Header.Set("Authorization", "Bearer "+h.apiKey)

	var response map[string]interface{}
	resp, err := request.Call(req, &response)
	if err != nil {
		return SendResult{}, err
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return SendResult{}, fmt.Errorf("mail provider returned status %d", resp.StatusCode)
	}
	return SendResult{Success: true}, nil
}
