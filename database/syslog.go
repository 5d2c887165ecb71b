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

package database

import (
	"context"
	"encoding/json"
	"time"

	"github.com/bencullen0123-byte/Phantom-Vision-sub000/internal/syserror"
	"github.com/bencullen0123-byte/Phantom-Vision-sub000/model"
)

// CreateSystemLog records one operator audit row.
func (d Datasource) CreateSystemLog(ctx context.Context, entry *model.SystemLog) error {
	if entry.LogID == "" {
		entry.LogID = model.GenerateUUIDWithSuffix("log")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}

	payloadJSON, err := json.Marshal(entry.Payload)
	if err != nil {
		return syserror.Internal("Failed to marshal log payload", err)
	}

	var merchantID interface{} = entry.MerchantID
	if entry.MerchantID == "" {
		merchantID = nil
	}

	_, err = d.Conn.ExecContext(ctx, `
		INSERT INTO system_logs (log_id, merchant_id, component, level, message, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, entry.LogID, merchantID, entry.Component, entry.Level, entry.Message, payloadJSON, entry.CreatedAt)
	if err != nil {
		return syserror.Internal("Failed to create system log", err)
	}

	return nil
}

// GetSystemLogs retrieves audit rows, newest first. An empty merchant ID
// returns logs across all merchants.
func (d Datasource) GetSystemLogs(ctx context.Context, merchantID string, limit, offset int) ([]model.SystemLog, error) {
	rows, err := d.Conn.QueryContext(ctx, `
		SELECT log_id, COALESCE(merchant_id, '') as merchant_id, component, level, message, payload, created_at
		FROM system_logs
		WHERE ($1 = '' OR merchant_id = $1)
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, merchantID, limit, offset)
	if err != nil {
		return nil, syserror.Internal("Failed to retrieve system logs", err)
	}
	defer func() { _ = rows.Close() }()

	var logs []model.SystemLog
	for rows.Next() {
		var entry model.SystemLog
		var payloadJSON []byte
		err := rows.Scan(&entry.LogID, &entry.MerchantID, &entry.Component, &entry.Level, &entry.Message, &payloadJSON, &entry.CreatedAt)
		if err != nil {
			return nil, syserror.Internal("Failed to scan system log", err)
		}
		if len(payloadJSON) > 0 {
			if err := json.Unmarshal(payloadJSON, &entry.Payload); err != nil {
				return nil, syserror.Internal("Failed to unmarshal log payload", err)
			}
		}
		logs = append(logs, entry)
	}

	if err = rows.Err(); err != nil {
		return nil, syserror.Internal("Error iterating over system logs", err)
	}

	return logs, nil
}
