package Models

import (
	"fmt"
	"strings"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Connect opens the database selected by driver ("sqlite", "postgres" or
// "mysql") and migrates every table the service owns.
func Connect(driver, dsn string) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch strings.ToLower(driver) {
	case "", "sqlite":
		if dsn == "" {
			dsn = "database.db"
		}
		dialector = sqlite.Open(dsn)
	case "postgres":
		dialector = postgres.Open(dsn)
	case "mysql":
		dialector = mysql.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", driver, err)
	}

	if db.Dialector.Name() == "sqlite" {
		// SQLite has one writer; a single pooled connection serializes
		// transactions instead of failing them with SQLITE_BUSY.
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(1)
	}

	if err := Migrate(db); err != nil {
		return nil, err
	}
	return db, nil
}

func Migrate(db *gorm.DB) error {
	// Reference tables first, then the tables pointing at them
	if err := db.AutoMigrate(
		&User{},
		&Truck{},
		&Trailer{},
		&Client{},
	); err != nil {
		return fmt.Errorf("migrate reference tables: %w", err)
	}
	if err := db.AutoMigrate(
		&Trip{},
		&CreditNote{},
		&FuelStock{},
		&FuelEntry{},
		&Notification{},
	); err != nil {
		return fmt.Errorf("migrate core tables: %w", err)
	}
	return nil
}
