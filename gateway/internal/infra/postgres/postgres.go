package postgres

import (
	"fmt"
	"time"

	"chainpay/gateway/internal/config"
	"chainpay/gateway/internal/domain"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var models = []any{
	&domain.ChainStates{},
	&domain.Tokens{},
	&domain.Payments{},
	&domain.Transactions{},
	&domain.Addresses{},
	&domain.AddressCounters{},
	&domain.WebhookDeliveries{},
	&domain.Jobs{},
}

func gormConfig() *gorm.Config {
	return &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	}
}

func Init(config *config.Config) *gorm.DB {
	dbConfig := config.Postgres
	dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%d sslmode=%s", dbConfig.Host, dbConfig.User, dbConfig.Password, dbConfig.Db_name, dbConfig.Port, dbConfig.Ssl_mode)
	db, err := gorm.Open(postgres.Open(dsn), gormConfig())
	if err != nil {
		panic("Gorm error: " + err.Error())
	}

	if err := Migrate(db); err != nil {
		panic("Auto migrate error: " + err.Error())
	}

	return db
}

func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(models...)
}

// in-memory sqlite with a single connection. sqlite has no row locks,
// the single connection serializes transactions instead
func InitTest() *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), gormConfig())
	if err != nil {
		panic("Gorm error: " + err.Error())
	}

	sqlDB, err := db.DB()
	if err != nil {
		panic("Gorm error: " + err.Error())
	}
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	sqlDB.SetConnMaxLifetime(0)

	if err := Migrate(db); err != nil {
		panic("Auto migrate error: " + err.Error())
	}

	return db
}

func DropTables(db *gorm.DB) error {
	return db.Migrator().DropTable(models...)
}
