package repository

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"study-planner/internal/model"
)

// NewDB opens the SQLite database and runs migrations. A file-backed
// database that cannot be opened or migrated is preserved as
// "<file>.bak" and recreated empty, so a corrupt file never blocks
// startup.
func NewDB(dsn string) (*gorm.DB, error) {
	if dsn == "" {
		dsn = "study_planner.db"
	}

	if err := ensureDirForSQLite(dsn); err != nil {
		return nil, err
	}

	db, err := open(dsn)
	if err == nil {
		return db, nil
	}

	path, ok := sqliteFilePath(dsn)
	if !ok {
		return nil, err
	}
	if _, statErr := os.Stat(path); statErr != nil {
		return nil, err
	}
	if renameErr := os.Rename(path, path+".bak"); renameErr != nil {
		return nil, fmt.Errorf("backup corrupt db: %v (open error: %w)", renameErr, err)
	}
	log.Printf("[warn] database %s unusable (%v); preserved as %s.bak and recreated", path, err, path)
	return open(dsn)
}

func open(dsn string) (*gorm.DB, error) {
	dbLogger := logger.New(
		log.New(os.Stdout, "", log.LstdFlags),
		logger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: dbLogger,
	})
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	if err := db.AutoMigrate(
		&model.User{},
		&model.Subject{},
		&model.Task{},
		&model.Event{},
		&model.Settings{},
	); err != nil {
		return nil, fmt.Errorf("migrate db: %w", err)
	}

	return db, nil
}

// sqliteFilePath extracts the backing file path from a DSN, reporting
// false for in-memory databases.
func sqliteFilePath(dsn string) (string, bool) {
	if strings.Contains(dsn, ":memory:") || strings.Contains(dsn, "mode=memory") {
		return "", false
	}
	clean := strings.TrimPrefix(dsn, "file:")
	clean = strings.Split(clean, "?")[0]
	if clean == "" {
		return "", false
	}
	return clean, true
}

// ensureDirForSQLite creates the parent dir for a SQLite file if needed.
func ensureDirForSQLite(dsn string) error {
	path, ok := sqliteFilePath(dsn)
	if !ok {
		return nil
	}
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create db dir %q: %w", dir, err)
	}
	return nil
}
