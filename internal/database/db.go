package database

import (
	"fmt"
	"log"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"resto-pos/internal/database/models"
)

// Config is shared by every dialector. Orders and tables point at each other,
// so relationships are kept at the model level without DB foreign keys.
// Dialect errors are translated so unique violations surface as
// gorm.ErrDuplicatedKey on every driver.
func Config() *gorm.Config {
	return &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
		TranslateError:                           true,
	}
}

func NewConnection(dsn string) (*gorm.DB, error) {
	if dsn == "" {
		return nil, fmt.Errorf("DSN is required")
	}

	db, err := gorm.Open(postgres.Open(dsn), Config())
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}

	sqlDB.SetMaxOpenConns(20)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping DB: %w", err)
	}

	return db, nil
}

func MigratePOSDB(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&models.InventoryCategory{},
		&models.InventoryItem{},
		&models.InventoryWastage{},
		&models.Product{},
		&models.ProductIngredient{},
		&models.DiningTable{},
		&models.Order{},
		&models.OrderItem{},
	); err != nil {
		return fmt.Errorf("failed to migrate POS database: %w", err)
	}
	log.Println("POS database migrated")
	return nil
}

// ForUpdate locks the selected rows until the surrounding transaction ends.
func ForUpdate(tx *gorm.DB) *gorm.DB {
	return tx.Clauses(clause.Locking{Strength: "UPDATE"})
}
