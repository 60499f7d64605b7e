package database

import (
	"fmt"
	"time"

	"github.com/sjperalta/obrafin-api/internal/models"
	pkgLogger "github.com/sjperalta/obrafin-api/pkg/logger"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Options controls how Connect opens the database.
type Options struct {
	Driver     string // postgres or sqlite
	URL        string
	Production bool
}

// Connect establishes a connection to the configured database
func Connect(opts Options) (*gorm.DB, error) {
	// Configure GORM logger
	logLevel := logger.Silent
	if !opts.Production {
		logLevel = logger.Warn
	}

	gormLogger := pkgLogger.NewGormLogger(
		logLevel,
		200*time.Millisecond,
	)

	gormCfg := &gorm.Config{
		Logger:                 gormLogger,
		SkipDefaultTransaction: true,
		TranslateError:         true,
	}

	var dialector gorm.Dialector
	switch opts.Driver {
	case "sqlite":
		dialector = sqlite.Open(opts.URL)
	case "postgres", "":
		dialector = postgres.Open(opts.URL)
		gormCfg.PrepareStmt = true
	default:
		return nil, fmt.Errorf("unsupported database driver %q", opts.Driver)
	}

	db, err := gorm.Open(dialector, gormCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Get underlying SQL database
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}

	if opts.Driver == "sqlite" {
		// A single connection serializes writers and keeps in-memory databases alive.
		sqlDB.SetMaxOpenConns(1)
		sqlDB.SetMaxIdleConns(1)
		sqlDB.SetConnMaxLifetime(0)
		sqlDB.SetConnMaxIdleTime(0)
	} else {
		sqlDB.SetMaxIdleConns(5)
		sqlDB.SetMaxOpenConns(50)
		sqlDB.SetConnMaxLifetime(time.Hour)
		sqlDB.SetConnMaxIdleTime(5 * time.Minute)
	}

	// Verify connection
	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}

// Migrate creates or updates the finance schema.
func Migrate(db *gorm.DB) error {
	if err := db.SetupJoinTable(&models.Payment{}, "Invoices", &models.PaymentInvoice{}); err != nil {
		return fmt.Errorf("failed to set up payment invoices: %w", err)
	}
	if err := db.AutoMigrate(
		&models.Supplier{},
		&models.Budget{},
		&models.BudgetItem{},
		&models.CostEntry{},
		&models.Invoice{},
		&models.Payment{},
		&models.ApprovalRecord{},
		&models.AuditLog{},
	); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	return nil
}
