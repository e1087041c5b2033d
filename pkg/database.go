package pkg

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/eduolymp/olympiad-service/internal/config"
)

// Database bundles the writer pool with an optional reader pool. Writes
// always go to the writer; read paths may route to the reader and fall back
// to the writer once on failure.
type Database struct {
	Writer *gorm.DB
	Reader *gorm.DB
}

// InitDatabase opens the writer (and optional reader) connection pools.
func InitDatabase(cfg *config.Config) (*Database, error) {
	writer, err := openPool(cfg.DatabaseURL, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open writer pool: %w", err)
	}

	db := &Database{Writer: writer}

	if cfg.ReadDatabaseURL != "" {
		reader, err := openPool(cfg.ReadDatabaseURL, cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to open reader pool: %w", err)
		}
		db.Reader = reader
	}

	return db, nil
}

func openPool(dsn string, cfg *config.Config) (*gorm.DB, error) {
	level := gormlogger.Warn
	if cfg.Environment == "development" {
		level = gormlogger.Info
	}

	// The timeout rides the DSN so every connection the pool opens, now or
	// later, starts with it.
	dsn = dsnWithStatementTimeout(dsn, cfg.DBStmtTimeout)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:  gormlogger.Default.LogMode(level),
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(cfg.DBMaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.DBMaxIdleConns)
	sqlDB.SetConnMaxLifetime(time.Hour)

	return db, nil
}

// dsnWithStatementTimeout appends statement_timeout to the DSN, handling
// both URL and keyword/value forms. pgx forwards unknown DSN parameters to
// the server as runtime settings.
func dsnWithStatementTimeout(dsn string, timeout time.Duration) string {
	if timeout <= 0 {
		return dsn
	}
	ms := strconv.FormatInt(timeout.Milliseconds(), 10)

	if u, err := url.Parse(dsn); err == nil && u.Scheme != "" {
		q := u.Query()
		q.Set("statement_timeout", ms)
		u.RawQuery = q.Encode()
		return u.String()
	}
	return strings.TrimSpace(dsn) + " statement_timeout=" + ms
}

// Close closes both pools.
func (d *Database) Close() {
	for _, g := range []*gorm.DB{d.Writer, d.Reader} {
		if g == nil {
			continue
		}
		if sqlDB, err := g.DB(); err == nil {
			sqlDB.Close()
		}
	}
}
