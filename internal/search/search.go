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

package search

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/typesense/typesense-go/typesense"
	"github.com/typesense/typesense-go/typesense/api"
)

const (
	CollectionMerchants  = "merchants"
	CollectionTargets    = "targets"
	CollectionSystemLogs = "system_logs"
)

// CollectionConfig holds configuration for a specific collection.
type CollectionConfig struct {
	Schema     *api.CollectionSchema
	IDField    string
	TimeFields []string
}

var collectionConfigs map[string]CollectionConfig

func init() {
	collectionConfigs = map[string]CollectionConfig{
		CollectionMerchants: {
			Schema:     getMerchantSchema(),
			IDField:    "merchant_id",
			TimeFields: []string{"created_at", "last_audit_at"},
		},
		CollectionTargets: {
			Schema:     getTargetSchema(),
			IDField:    "target_id",
			TimeFields: []string{"discovered_at", "purge_at", "last_emailed_at"},
		},
		CollectionSystemLogs: {
			Schema:     getSystemLogSchema(),
			IDField:    "log_id",
			TimeFields: []string{"created_at"},
		},
	}
}

// TypesenseClient wraps the Typesense client and provides methods to interact with it.
type TypesenseClient struct {
	Client *typesense.Client
}

// NotificationPayload represents the payload structure for index notifications.
type NotificationPayload struct {
	Collection string                 `json:"collection"`
	Data       map[string]interface{} `json:"data"`
}

// NewTypesenseClient initializes and returns a new Typesense client instance.
func NewTypesenseClient(apiKey string, hosts []string) *TypesenseClient {
	client := typesense.NewClient(
		typesense.WithServer(hosts[0]),
		typesense.WithAPIKey(apiKey),
		typesense.WithConnectionTimeout(5*time.Second),
		typesense.WithCircuitBreakerMaxRequests(50),
		typesense.WithCircuitBreakerInterval(2*time.Minute),
		typesense.WithCircuitBreakerTimeout(1*time.Minute),
	)
	return &TypesenseClient{Client: client}
}

// EnsureCollectionsExist ensures that all the necessary collections exist in
// the Typesense schema, creating any that are missing.
func (t *TypesenseClient) EnsureCollectionsExist(ctx context.Context) error {
	for name, config := range collectionConfigs {
		if _, err := t.CreateCollection(ctx, config.Schema); err != nil {
			return fmt.Errorf("failed to create collection %s: %w", name, err)
		}
	}
	return nil
}

// CreateCollection creates a collection in Typesense based on the provided schema.
// If the collection already exists, it will return without error.
func (t *TypesenseClient) CreateCollection(ctx context.Context, schema *api.CollectionSchema) (*api.CollectionResponse, error) {
	resp, err := t.Client.Collections().Create(ctx, schema)
	if err != nil {
		if strings.Contains(err.Error(), "already exists") {
			return nil, nil
		}
		return nil, err
	}
	return resp, nil
}

// Search performs a search query on a specific collection with the provided search parameters.
func (t *TypesenseClient) Search(ctx context.Context, collection string, searchParams *api.SearchCollectionParams) (*api.SearchResult, error) {
	return t.Client.Collection(collection).Documents().Search(ctx, searchParams)
}

// MultiSearch performs a multi-search operation across collections.
func (t *TypesenseClient) MultiSearch(ctx context.Context, searchRequests api.MultiSearchSearchesParameter) (*api.MultiSearchResult, error) {
	return t.Client.MultiSearch.Perform(ctx, &api.MultiSearchParams{}, searchRequests)
}

// HandleNotification processes an index notification and upserts the data
// into the named collection. Encrypted contact fields never reach this path;
// the producer strips them before queueing.
func (t *TypesenseClient) HandleNotification(ctx context.Context, collection string, data map[string]interface{}) error {
	config, ok := collectionConfigs[collection]
	if !ok {
		return fmt.Errorf("unknown collection: %s", collection)
	}

	if err := t.processMetadata(data); err != nil {
		return err
	}
	t.ensureSchemaFields(config, data)
	t.normalizeTimeFields(config, data)

	return t.upsertDocument(ctx, collection, data)
}

// processMetadata handles metadata field normalization for object schemas
func (t *TypesenseClient) processMetadata(data map[string]interface{}) error {
	if metaData, ok := data["meta_data"]; ok {
		if metaData == nil {
			data["meta_data"] = make(map[string]interface{})
		} else if metaDataMap, ok := metaData.(map[string]interface{}); ok {
			data["meta_data"] = metaDataMap
		} else {
			jsonString, err := json.Marshal(metaData)
			if err != nil {
				return fmt.Errorf("failed to marshal meta_data: %w", err)
			}
			data["meta_data"] = string(jsonString)
		}
	}
	return nil
}

// ensureSchemaFields ensures all required schema fields are present with default values
func (t *TypesenseClient) ensureSchemaFields(config CollectionConfig, data map[string]interface{}) {
	latestSchema := config.Schema

	optionalFieldMap := make(map[string]bool)
	for _, field := range latestSchema.Fields {
		if field.Optional != nil && *field.Optional {
			optionalFieldMap[field.Name] = true
		}
	}

	for _, field := range latestSchema.Fields {
		if _, ok := data[field.Name]; !ok {
			isOptional := field.Optional != nil && *field.Optional
			if !isOptional {
				data[field.Name] = getDefaultValue(field.Type)
			}
		}
	}

	for key, value := range data {
		if optionalFieldMap[key] {
			if strVal, ok := value.(string); ok && strVal == "" {
				delete(data, key)
			}
		}
	}
}

// normalizeTimeFields converts time fields to Unix timestamps
func (t *TypesenseClient) normalizeTimeFields(config CollectionConfig, data map[string]interface{}) {
	for _, field := range config.TimeFields {
		if fieldValue, ok := data[field]; ok {
			switch v := fieldValue.(type) {
			case time.Time:
				data[field] = v.Unix()
			case *time.Time:
				if v == nil {
					delete(data, field)
				} else {
					data[field] = v.Unix()
				}
			case int64:
				// Time already in Unix format, no action needed
			default:
				data[field] = time.Now().Unix()
			}
		}
	}
}

// getIDField returns the primary ID field name for a given collection
func (t *TypesenseClient) getIDField(collection string) string {
	if config, ok := collectionConfigs[collection]; ok {
		return config.IDField
	}
	return ""
}

// upsertDocument handles the final upsert operation to Typesense
func (t *TypesenseClient) upsertDocument(ctx context.Context, collection string, data map[string]interface{}) error {
	idField := t.getIDField(collection)

	if idField != "" {
		if id, ok := data[idField].(string); ok && id != "" {
			data["id"] = id
			_, err := t.Client.Collection(collection).Documents().Upsert(ctx, data)
			if err != nil {
				return fmt.Errorf("failed to upsert document in Typesense: %w", err)
			}
			return nil
		}
	}

	_, err := t.Client.Collection(collection).Documents().Upsert(ctx, data)
	if err != nil {
		return fmt.Errorf("failed to index document in Typesense: %w", err)
	}

	return nil
}

// getDefaultValue returns the default value for a given field type in Typesense.
func getDefaultValue(fieldType string) interface{} {
	switch fieldType {
	case "string":
		return ""
	case "int32", "int64":
		return int64(0)
	case "float":
		return float64(0)
	case "bool":
		return false
	case "string[]":
		return []string{}
	default:
		return nil
	}
}

// getMerchantSchema returns the schema for the "merchants" collection.
func getMerchantSchema() *api.CollectionSchema {
	facet := true
	sortBy := "created_at"
	optional := true
	return &api.CollectionSchema{
		Name: CollectionMerchants,
		Fields: []api.Field{
			{Name: "merchant_id", Type: "string", Facet: &facet},
			{Name: "name", Type: "string", Facet: &facet},
			{Name: "tier_limit", Type: "int32", Facet: &facet},
			{Name: "default_currency", Type: "string", Facet: &facet},
			{Name: "gross_invoiced", Type: "int64", Facet: &facet},
			{Name: "recovered_total", Type: "int64", Facet: &facet},
			{Name: "protected_total", Type: "int64", Facet: &facet},
			{Name: "auto_pilot", Type: "bool", Facet: &facet},
			{Name: "send_strategy", Type: "string", Facet: &facet},
			{Name: "last_audit_status", Type: "string", Facet: &facet, Optional: &optional},
			{Name: "last_audit_at", Type: "int64", Facet: &facet, Optional: &optional},
			{Name: "created_at", Type: "int64", Facet: &facet},
		},
		DefaultSortingField: &sortBy,
	}
}

// getTargetSchema returns the schema for the "targets" collection. Contact
// identity is indexed only in masked form.
func getTargetSchema() *api.CollectionSchema {
	facet := true
	sortBy := "discovered_at"
	optional := true
	enableNested := true
	return &api.CollectionSchema{
		Name: CollectionTargets,
		Fields: []api.Field{
			{Name: "target_id", Type: "string", Facet: &facet},
			{Name: "merchant_id", Type: "string", Facet: &facet},
			{Name: "masked_email", Type: "string", Facet: &facet, Optional: &optional},
			{Name: "amount", Type: "int64", Facet: &facet},
			{Name: "currency", Type: "string", Facet: &facet},
			{Name: "natural_key", Type: "string", Facet: &facet},
			{Name: "status", Type: "string", Facet: &facet},
			{Name: "decline_type", Type: "string", Facet: &facet, Optional: &optional},
			{Name: "strategy", Type: "string", Facet: &facet, Optional: &optional},
			{Name: "recovery_type", Type: "string", Facet: &facet, Optional: &optional},
			{Name: "email_count", Type: "int32", Facet: &facet},
			{Name: "discovered_at", Type: "int64", Facet: &facet},
			{Name: "purge_at", Type: "int64", Facet: &facet, Optional: &optional},
			{Name: "last_emailed_at", Type: "int64", Facet: &facet, Optional: &optional},
			{Name: "meta_data", Type: "object", Facet: &facet, Optional: &enableNested},
		},
		DefaultSortingField: &sortBy,
		EnableNestedFields:  &enableNested,
	}
}

// getSystemLogSchema returns the schema for the "system_logs" collection.
func getSystemLogSchema() *api.CollectionSchema {
	facet := true
	sortBy := "created_at"
	optional := true
	enableNested := true
	return &api.CollectionSchema{
		Name: CollectionSystemLogs,
		Fields: []api.Field{
			{Name: "log_id", Type: "string", Facet: &facet},
			{Name: "merchant_id", Type: "string", Facet: &facet, Optional: &optional},
			{Name: "component", Type: "string", Facet: &facet},
			{Name: "level", Type: "string", Facet: &facet},
			{Name: "message", Type: "string", Facet: &facet},
			{Name: "payload", Type: "object", Facet: &facet, Optional: &enableNested},
			{Name: "created_at", Type: "int64", Facet: &facet},
		},
		DefaultSortingField: &sortBy,
		EnableNestedFields:  &enableNested,
	}
}
