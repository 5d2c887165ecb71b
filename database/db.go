package database

import (
	"database/sql"
	"log"
	"sync"

	_ "github.com/lib/pq"

	"github.com/bencullen0123-byte/Phantom-Vision-sub000/config"
	"github.com/bencullen0123-byte/Phantom-Vision-sub000/internal/cache"
)

// Declare a package-level variable to hold the singleton instance.
// Ensure the instance is not accessible outside the package.
var instance *Datasource
var once sync.Once

type Datasource struct {
	Conn  *sql.DB
	Cache cache.Cache
}

func NewDataSource(configuration *config.Configuration) (IDataSource, error) {
	con, err := GetDBConnection(configuration)
	if err != nil {
		return nil, err
	}
	return con, nil
}

// GetDBConnection provides a global access point to the instance and initializes it if it's not already.
func GetDBConnection(configuration *config.Configuration) (*Datasource, error) {
	var err error
	once.Do(func() {
		con, errConn := ConnectDB(configuration.DataSource.Dns)
		if errConn != nil {
			err = errConn
			return
		}
		instance = &Datasource{Conn: con, Cache: nil}
	})
	if err != nil {
		return nil, err
	}
	return instance, nil
}

func ConnectDB(dns string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dns)
	if err != nil {
		return nil, err
	}
	err = db.Ping()
	if err != nil {
		log.Printf("database Connection error ❌: %v", err)
		return nil, err
	}
	err = createMerchantTable(db)
	if err != nil {
		return nil, err
	}
	err = createTargetTable(db)
	if err != nil {
		return nil, err
	}
	err = createTimingSampleTable(db)
	if err != nil {
		return nil, err
	}
	err = createJobLockTable(db)
	if err != nil {
		return nil, err
	}
	err = createScanJobTable(db)
	if err != nil {
		return nil, err
	}
	err = createSystemLogTable(db)
	if err != nil {
		return nil, err
	}
	return db, nil
}

// createMerchantTable creates a PostgreSQL table for the Merchant struct
func createMerchantTable(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS merchants (
			id SERIAL PRIMARY KEY,
			merchant_id TEXT NOT NULL UNIQUE,
			name TEXT,
			credential_cipher TEXT,
			credential_iv TEXT,
			credential_tag TEXT,
			tier_limit INT NOT NULL DEFAULT 0,
			default_currency TEXT,
			gross_invoiced BIGINT NOT NULL DEFAULT 0,
			recovered_total BIGINT NOT NULL DEFAULT 0,
			protected_total BIGINT NOT NULL DEFAULT 0,
			last_audit_at TIMESTAMP,
			last_audit_status TEXT,
			auto_pilot BOOLEAN NOT NULL DEFAULT FALSE,
			send_strategy TEXT NOT NULL DEFAULT 'immediate',
			support_email TEXT,
			brand_color TEXT,
			created_at TIMESTAMP NOT NULL DEFAULT NOW()
		)
	`)
	log.Println(err)
	return err
}

// createTargetTable creates a PostgreSQL table for the Target struct
func createTargetTable(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS targets (
			id SERIAL PRIMARY KEY,
			target_id TEXT NOT NULL UNIQUE,
			merchant_id TEXT NOT NULL REFERENCES merchants(merchant_id),
			email_cipher TEXT,
			email_iv TEXT,
			email_tag TEXT,
			name_cipher TEXT,
			name_iv TEXT,
			name_tag TEXT,
			amount BIGINT NOT NULL DEFAULT 0,
			currency TEXT,
			natural_key TEXT NOT NULL UNIQUE,
			status TEXT NOT NULL,
			decline_type TEXT,
			strategy TEXT,
			recovery_type TEXT,
			email_count INT NOT NULL DEFAULT 0,
			last_emailed_at TIMESTAMP,
			click_count INT NOT NULL DEFAULT 0,
			attribution_expires_at TIMESTAMP,
			discovered_at TIMESTAMP NOT NULL DEFAULT NOW(),
			purge_at TIMESTAMP,
			meta_data JSONB
		)
	`)
	log.Println(err)
	return err
}

// createTimingSampleTable creates a PostgreSQL table for the TimingSample struct
func createTimingSampleTable(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS timing_samples (
			id SERIAL PRIMARY KEY,
			merchant_id TEXT NOT NULL REFERENCES merchants(merchant_id),
			day_of_week INT NOT NULL CHECK (day_of_week BETWEEN 0 AND 6),
			hour_of_day INT NOT NULL CHECK (hour_of_day BETWEEN 0 AND 23),
			created_at TIMESTAMP NOT NULL DEFAULT NOW()
		)
	`)
	log.Println(err)
	return err
}

// createJobLockTable creates a PostgreSQL table for the JobLock struct
func createJobLockTable(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS job_locks (
			job_name TEXT PRIMARY KEY,
			holder_id TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL DEFAULT NOW()
		)
	`)
	log.Println(err)
	return err
}

// createScanJobTable creates a PostgreSQL table for the ScanJob struct
func createScanJobTable(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS scan_jobs (
			id SERIAL PRIMARY KEY,
			job_id TEXT NOT NULL UNIQUE,
			merchant_id TEXT NOT NULL REFERENCES merchants(merchant_id),
			status TEXT NOT NULL DEFAULT 'pending',
			progress INT NOT NULL DEFAULT 0,
			force_full BOOLEAN NOT NULL DEFAULT FALSE,
			error TEXT,
			created_at TIMESTAMP NOT NULL DEFAULT NOW(),
			started_at TIMESTAMP,
			finished_at TIMESTAMP
		)
	`)
	log.Println(err)
	return err
}

// createSystemLogTable creates a PostgreSQL table for the SystemLog struct
func createSystemLogTable(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS system_logs (
			id SERIAL PRIMARY KEY,
			log_id TEXT NOT NULL UNIQUE,
			merchant_id TEXT,
			component TEXT NOT NULL,
			level TEXT NOT NULL,
			message TEXT,
			payload JSONB,
			created_at TIMESTAMP NOT NULL DEFAULT NOW()
		)
	`)
	log.Println(err)
	return err
}
