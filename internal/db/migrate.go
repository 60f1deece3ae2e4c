package db

import (
	"errors"
	"fmt"

	"github.com/blogforge/blogforge/internal/models"
	"gorm.io/gorm"
)

// Migrate runs database migrations for the current dialect.
func Migrate(conn *gorm.DB) error {
	if conn == nil {
		return fmt.Errorf("db: nil connection")
	}
	switch DialectName(conn) {
	case DialectSQLite, DialectPostgres, "":
		// Schema is shared; only the supplemental indexes differ.
	default:
		return fmt.Errorf("db: unsupported dialect: %s", DialectName(conn))
	}

	if errAutoMigrate := conn.AutoMigrate(
		&models.User{},
		&models.APIKey{},
		&models.Generation{},
		&models.CreditEntry{},
		&models.PaymentEvent{},
		&models.Product{},
	); errAutoMigrate != nil {
		return fmt.Errorf("db: migrate: %w", errAutoMigrate)
	}

	// ddl defines an index or DDL statement to apply.
	type ddl struct {
		name string // Human-readable name for error reporting.
		sql  string // SQL to execute.
	}
	ddls := []ddl{
		{
			name: "idx_generations_user_id_created_at",
			sql: `
				CREATE INDEX IF NOT EXISTS idx_generations_user_id_created_at
				ON generations (user_id, created_at DESC)
			`,
		},
		{
			name: "idx_credit_entries_user_id_created_at",
			sql: `
				CREATE INDEX IF NOT EXISTS idx_credit_entries_user_id_created_at
				ON credit_entries (user_id, created_at DESC)
			`,
		},
		{
			name: "idx_credit_entries_reference_kind",
			sql: `
				CREATE INDEX IF NOT EXISTS idx_credit_entries_reference_kind
				ON credit_entries (reference, kind)
			`,
		},
		{
			name: "idx_api_keys_user_id_created_at",
			sql: `
				CREATE INDEX IF NOT EXISTS idx_api_keys_user_id_created_at
				ON api_keys (user_id, created_at DESC)
			`,
		},
		{
			name: "idx_products_enabled_price",
			sql: `
				CREATE INDEX IF NOT EXISTS idx_products_enabled_price
				ON products (is_enabled, price_cents ASC)
			`,
		},
	}
	for _, item := range ddls {
		if errDDL := conn.Exec(item.sql).Error; errDDL != nil {
			return fmt.Errorf("db: create index %s: %w", item.name, errDDL)
		}
	}

	if errSeed := ensureDefaultProduct(conn); errSeed != nil {
		return errSeed
	}
	return nil
}

// defaultProduct is the credit pack seeded on first boot.
var defaultProduct = models.Product{
	Name:        "100 Credits",
	Description: "Get 100 credits for your account",
	PriceCents:  1000,
	Currency:    "usd",
	Credits:     100,
	IsEnabled:   true,
}

// ensureDefaultProduct seeds the default credit pack when the catalog is empty.
func ensureDefaultProduct(conn *gorm.DB) error {
	var existing models.Product
	errFind := conn.Where("name = ?", defaultProduct.Name).First(&existing).Error
	if errFind == nil {
		return nil
	}
	if !errors.Is(errFind, gorm.ErrRecordNotFound) {
		return fmt.Errorf("db: query default product: %w", errFind)
	}

	product := defaultProduct
	if errCreate := conn.Create(&product).Error; errCreate != nil {
		return fmt.Errorf("db: create default product: %w", errCreate)
	}
	return nil
}
