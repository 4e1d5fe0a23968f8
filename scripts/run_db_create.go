package main

// Example usage on Terminal.
// go run run_db_create.go --env=development --db_host=localhost --db_port=5432 --db_user=pitchmetrics --db_name=pitchmetrics --db_pass=pitchmetrics

import (
	"flag"

	_ "github.com/jinzhu/gorm"
	log "github.com/sirupsen/logrus"

	C "pitchmetrics/config"
	M "pitchmetrics/model"
)

func main() {
	env := flag.String("env", "development", "")

	dbHost := flag.String("db_host", "localhost", "")
	dbPort := flag.Int("db_port", 5432, "")
	dbUser := flag.String("db_user", "pitchmetrics", "")
	dbName := flag.String("db_name", "pitchmetrics", "")
	dbPass := flag.String("db_pass", "pitchmetrics", "")
	flag.Parse()

	config := &C.Configuration{
		Env: *env,
		DBInfo: C.DBConf{
			Host:     *dbHost,
			Port:     *dbPort,
			User:     *dbUser,
			Name:     *dbName,
			Password: *dbPass,
		},
		RedisHost: "localhost",
		RedisPort: 6379,
	}

	// Initialize configs and connections.
	err := C.Init(config)
	if err != nil {
		log.Error("Failed to initialize.")
		return
	}

	if C.GetConfig().Env != C.DEVELOPMENT {
		log.Error("Not Development Environment. Aborting")
		return
	}

	db := C.GetServices().Db
	defer db.Close()

	if err := db.Exec("CREATE EXTENSION IF NOT EXISTS \"uuid-ossp\";").Error; err != nil {
		log.WithFields(log.Fields{"err": err}).Error("uuid extension creation failed.")
	}

	// Create events table.
	if err := db.CreateTable(&M.Event{}).Error; err != nil {
		log.WithFields(log.Fields{"err": err}).Error("events table creation failed.")
	} else {
		log.Info("Created events table")
	}
	// Replay queries scan by type and time.
	if err := db.Exec("CREATE INDEX events_type_timestamp_idx ON events(event_type, timestamp);").Error; err != nil {
		log.WithFields(log.Fields{"err": err}).Error("events table type timestamp indexing failed.")
	} else {
		log.Info("events table type timestamp index created.")
	}
	if err := db.Exec("CREATE INDEX events_timestamp_idx ON events(timestamp);").Error; err != nil {
		log.WithFields(log.Fields{"err": err}).Error("events table timestamp indexing failed.")
	} else {
		log.Info("events table timestamp index created.")
	}

	// Create funnel_definitions table.
	if err := db.CreateTable(&M.FunnelDefinition{}).Error; err != nil {
		log.WithFields(log.Fields{"err": err}).Error("funnel_definitions table creation failed.")
	} else {
		log.Info("Created funnel_definitions table")
	}

	// Create funnel_progress_records table.
	if err := db.CreateTable(&M.FunnelProgressRecord{}).Error; err != nil {
		log.WithFields(log.Fields{"err": err}).Error("funnel_progress_records table creation failed.")
	} else {
		log.Info("Created funnel_progress_records table")
	}
	// One row per stage reached per attempt.
	if err := db.Exec("CREATE UNIQUE INDEX funnel_progress_attempt_stage_unique_idx ON funnel_progress_records(funnel_id, funnel_session_id, stage_order);").Error; err != nil {
		log.WithFields(log.Fields{"err": err}).Error("funnel_progress_records table unique indexing failed.")
	} else {
		log.Info("funnel_progress_records table unique index created.")
	}

	// Create cohorts table.
	if err := db.CreateTable(&M.Cohort{}).Error; err != nil {
		log.WithFields(log.Fields{"err": err}).Error("cohorts table creation failed.")
	} else {
		log.Info("Created cohorts table")
	}

	// Create cohort_memberships table.
	if err := db.CreateTable(&M.CohortMembership{}).Error; err != nil {
		log.WithFields(log.Fields{"err": err}).Error("cohort_memberships table creation failed.")
	} else {
		log.Info("Created cohort_memberships table")
	}
	if err := db.Exec("CREATE UNIQUE INDEX cohort_memberships_cohort_identity_unique_idx ON cohort_memberships(cohort_id, identity_key);").Error; err != nil {
		log.WithFields(log.Fields{"err": err}).Error("cohort_memberships table unique indexing failed.")
	} else {
		log.Info("cohort_memberships table unique index created.")
	}

	// Create cache_entries table.
	if err := db.CreateTable(&M.CacheEntry{}).Error; err != nil {
		log.WithFields(log.Fields{"err": err}).Error("cache_entries table creation failed.")
	} else {
		log.Info("Created cache_entries table")
	}
}
