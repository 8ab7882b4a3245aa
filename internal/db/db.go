// Package db defines the persistent model and opens the backing database.
//
// Postgres is used in production; any DSN that does not look like a
// postgres URL is treated as a sqlite file path, which keeps local runs
// and tests dependency free.
package db

import (
	"fmt"
	"strings"

	"github.com/glebarez/sqlite"
	log "github.com/inconshreveable/log15"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

var logger = log.New("module", "db")

// Open connects to the database named by dsn and migrates the schema.
func Open(dsn string) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch {
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"), strings.Contains(dsn, "host="):
		dialector = postgres.Open(dsn)
	default:
		// sqlite:///jobs.db (three slashes) is a relative path.
		path := strings.TrimPrefix(dsn, "sqlite:///")
		path = strings.TrimPrefix(path, "sqlite://")
		dialector = sqlite.Open(path)
	}

	gdb, err := gorm.Open(dialector, &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("Open: failed to connect to database: %w", err)
	}

	if err := gdb.AutoMigrate(&Application{}, &Stage{}, &Reminder{}, &UserPreference{}); err != nil {
		return nil, fmt.Errorf("Open: failed to migrate schema: %w", err)
	}

	logger.Info("database ready", "dialect", gdb.Dialector.Name())
	return gdb, nil
}
