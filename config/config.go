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

package config

import (
	"encoding/json"
	"errors"
	"log"
	"os"
	"strings"
	"sync/atomic"

	"github.com/kelseyhightower/envconfig"

	"github.com/sirupsen/logrus"
)

var ConfigStore atomic.Value

type DataSourceConfig struct {
	Dns string `json:"dns" envconfig:"PHANTOM_DATA_SOURCE_DNS"`
}

type RedisConfig struct {
	Dns           string `json:"dns" envconfig:"PHANTOM_REDIS_DNS"`
	SkipTLSVerify bool   `json:"skip_tls_verify" envconfig:"PHANTOM_REDIS_SKIP_TLS_VERIFY"`
}

type TypeSenseConfig struct {
	Dns string `json:"dns" envconfig:"PHANTOM_TYPESENSE_DNS"`
}

type VaultConfig struct {
	// EncryptionKey must be at least 32 bytes; only the first 32 are used.
	EncryptionKey string `json:"encryption_key" envconfig:"PHANTOM_VAULT_KEY"`
}

type ScannerConfig struct {
	PageSize      int `json:"page_size" envconfig:"PHANTOM_SCANNER_PAGE_SIZE"`
	BatchSize     int `json:"batch_size" envconfig:"PHANTOM_SCANNER_BATCH_SIZE"`
	MaxAPIRetries int `json:"max_api_retries" envconfig:"PHANTOM_SCANNER_MAX_API_RETRIES"`
}

type DispatchConfig struct {
	HourlySendLimit int `json:"hourly_send_limit" envconfig:"PHANTOM_DISPATCH_HOURLY_SEND_LIMIT"`
	GraceHours      int `json:"grace_hours" envconfig:"PHANTOM_DISPATCH_GRACE_HOURS"`
}

type SchedulerConfig struct {
	ScanSpec           string `json:"scan_spec" envconfig:"PHANTOM_SCHEDULER_SCAN_SPEC"`
	DispatchSpec       string `json:"dispatch_spec" envconfig:"PHANTOM_SCHEDULER_DISPATCH_SPEC"`
	ScanLockTTLSec     int    `json:"scan_lock_ttl_sec" envconfig:"PHANTOM_SCHEDULER_SCAN_LOCK_TTL_SEC"`
	DispatchLockTTLSec int    `json:"dispatch_lock_ttl_sec" envconfig:"PHANTOM_SCHEDULER_DISPATCH_LOCK_TTL_SEC"`
	JobPollIntervalSec int    `json:"job_poll_interval_sec" envconfig:"PHANTOM_SCHEDULER_JOB_POLL_INTERVAL_SEC"`
}

type QueueConfig struct {
	IndexQueue     string `json:"index_queue" envconfig:"PHANTOM_QUEUE_INDEX_QUEUE"`
	MonitoringPort string `json:"monitoring_port" envconfig:"PHANTOM_QUEUE_MONITORING_PORT"`
}

type MailerConfig struct {
	ApiKey      string `json:"api_key" envconfig:"PHANTOM_MAILER_API_KEY"`
	FromAddress string `json:"from_address" envconfig:"PHANTOM_MAILER_FROM_ADDRESS"`
	TrackingUrl string `json:"tracking_url" envconfig:"PHANTOM_MAILER_TRACKING_URL"`
}

type SlackWebhook struct {
	WebhookUrl string `json:"webhook_url"`
}

type Notification struct {
	Slack SlackWebhook `json:"slack"`
}

type BackupConfig struct {
	Dir                string `json:"dir" envconfig:"PHANTOM_BACKUP_DIR"`
	AwsAccessKeyId     string `json:"aws_access_key_id"`
	AwsSecretAccessKey string `json:"aws_secret_access_key"`
	S3Endpoint         string `json:"s3_endpoint"`
	S3BucketName       string `json:"s3_bucket_name"`
	S3Region           string `json:"s3_region"`
}

type Configuration struct {
	ProjectName     string           `json:"project_name" envconfig:"PHANTOM_PROJECT_NAME"`
	EnableTelemetry bool             `json:"enable_telemetry" envconfig:"PHANTOM_ENABLE_TELEMETRY"`
	DataSource      DataSourceConfig `json:"data_source"`
	Redis           RedisConfig      `json:"redis"`
	TypeSense       TypeSenseConfig  `json:"typesense"`
	TypeSenseKey    string           `json:"type_sense_key" envconfig:"PHANTOM_TYPESENSE_KEY"`
	Vault           VaultConfig      `json:"vault"`
	Scanner         ScannerConfig    `json:"scanner"`
	Dispatch        DispatchConfig   `json:"dispatch"`
	Scheduler       SchedulerConfig  `json:"scheduler"`
	Queue           QueueConfig      `json:"queue"`
	Mailer          MailerConfig     `json:"mailer"`
	Notification    Notification     `json:"notification"`
	Backup          BackupConfig     `json:"backup"`
}

func loadConfigFromFile(file string) error {
	var cnf Configuration
	_, err := os.Stat(file)
	if err == nil {
		f, err := os.Open(file)
		if err != nil {
			return err
		}
		err = json.NewDecoder(f).Decode(&cnf)
		if err != nil {
			return err
		}

	} else if errors.Is(err, os.ErrNotExist) {
		log.Println("config json not passed, will use env variables")
	}

	// override config from environment variables
	err = envconfig.Process("phantom", &cnf)
	if err != nil {
		return err
	}

	err = cnf.validateAndAddDefaults()
	if err != nil {
		return err
	}

	ConfigStore.Store(&cnf)
	return err
}

func InitConfig(configFile string) error {
	logger()
	return loadConfigFromFile(configFile)
}

func Fetch() (*Configuration, error) {
	config := ConfigStore.Load()
	c, ok := config.(*Configuration)
	if !ok {
		return nil, errors.New("config not loaded from file. Create a json file called phantom.json with your config ❌")
	}
	return c, nil
}

func (cnf *Configuration) validateAndAddDefaults() error {
	if cnf.ProjectName == "" {
		log.Println("Warning: Project name is empty. Setting a default name.")
		cnf.ProjectName = "Phantom Vision"
	}

	if cnf.DataSource.Dns == "" {
		log.Println("Error: Data source DNS is empty. It's a required field.")
		return errors.New("data source DNS is required")
	}

	if cnf.Redis.Dns == "" {
		log.Println("Error: Redis DNS is empty. It's a required field.")
		return errors.New("redis DNS is required")
	}

	if len(cnf.Vault.EncryptionKey) < 32 {
		log.Println("Error: Vault encryption key is shorter than 32 bytes.")
		return errors.New("vault encryption key must be at least 32 bytes")
	}

	if cnf.TypeSense.Dns == "" {
		cnf.TypeSense.Dns = "http://typesense:8108"
	}

	// Trim white spaces from fields
	cnf.ProjectName = strings.TrimSpace(cnf.ProjectName)
	cnf.DataSource.Dns = strings.TrimSpace(cnf.DataSource.Dns)
	cnf.Redis.Dns = strings.TrimSpace(cnf.Redis.Dns)

	if cnf.Scanner.PageSize <= 0 {
		cnf.Scanner.PageSize = 100
	}
	if cnf.Scanner.BatchSize <= 0 {
		cnf.Scanner.BatchSize = 50
	}
	if cnf.Scanner.MaxAPIRetries <= 0 {
		cnf.Scanner.MaxAPIRetries = 5
	}

	if cnf.Dispatch.HourlySendLimit <= 0 {
		cnf.Dispatch.HourlySendLimit = 50
	}
	if cnf.Dispatch.GraceHours <= 0 {
		cnf.Dispatch.GraceHours = 4
	}

	if cnf.Scheduler.ScanSpec == "" {
		cnf.Scheduler.ScanSpec = "0 */12 * * *"
	}
	if cnf.Scheduler.DispatchSpec == "" {
		cnf.Scheduler.DispatchSpec = "0 * * * *"
	}
	if cnf.Scheduler.ScanLockTTLSec <= 0 {
		cnf.Scheduler.ScanLockTTLSec = 1800
	}
	if cnf.Scheduler.DispatchLockTTLSec <= 0 {
		cnf.Scheduler.DispatchLockTTLSec = 900
	}
	if cnf.Scheduler.JobPollIntervalSec <= 0 {
		cnf.Scheduler.JobPollIntervalSec = 5
	}

	if cnf.Queue.IndexQueue == "" {
		cnf.Queue.IndexQueue = "new:index"
	}
	if cnf.Queue.MonitoringPort == "" {
		cnf.Queue.MonitoringPort = "5003"
	}

	return nil
}

// MockConfig sets a mock configuration for testing purposes.
func MockConfig(mockConfig *Configuration) {
	ConfigStore.Store(mockConfig)
}

func logger() {
	logger := logrus.New()
	log.SetOutput(logger.Writer())
}
