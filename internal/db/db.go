package db

import (
	"fmt"
	"log"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"sat-dispatch-backend/config"
	"sat-dispatch-backend/internal/model"
)

// Init initializes the database connection and runs migrations.
func Init(cfg *config.DatabaseConfig) (*gorm.DB, error) {
	// technicians.current_order_id and emergency_orders.claimed_by_id
	// reference each other; letting AutoMigrate emit those constraints
	// would deadlock table creation. The claim DDL below covers integrity.
	db, err := gorm.Open(postgres.Open(cfg.DSN), &gorm.Config{
		Logger:                                   logger.Default.LogMode(logger.Info),
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}

	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetimeMinutes) * time.Minute)

	log.Println("Running database migrations...")
	if err := db.AutoMigrate(
		&model.Client{},
		&model.Technician{},
		&model.EmergencyOrder{},
		&model.PushToken{},
	); err != nil {
		return nil, fmt.Errorf("automigrate failed: %w", err)
	}

	if cfg.EnableClaimConstraints {
		log.Println("Applying claim-serialization DDL...")
		if err := applyClaimDDL(db); err != nil {
			return nil, err
		}
	}

	log.Println("Database initialization complete.")
	return db, nil
}

func applyClaimDDL(db *gorm.DB) error {
	ddls := []string{
		// A technician can hold at most one open emergency order.
		"CREATE UNIQUE INDEX IF NOT EXISTS idx_emergency_orders_single_claim " +
			"ON emergency_orders (claimed_by_id) WHERE claimed_by_id IS NOT NULL AND NOT closed;",

		// Fast lookup of unclaimed alerting orders during fan-out and check-emergency.
		"CREATE INDEX IF NOT EXISTS idx_emergency_orders_notify_pending " +
			"ON emergency_orders (client_id) WHERE notify_pending AND NOT closed;",
	}

	for _, ddl := range ddls {
		if err := db.Exec(ddl).Error; err != nil {
			return fmt.Errorf("DDL failed on %q: %w", ddl, err)
		}
	}
	return nil
}
