package db

import (
	"time"

	"github.com/smallbiznis/gavel/internal/config"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

// Open builds the gorm connection with pool settings from Config.
func Open(cfg config.Config) (*gorm.DB, error) {
	dialector, err := Dialect(cfg)
	if err != nil {
		return nil, err
	}

	conn, err := gorm.Open(dialector, &gorm.Config{})
	if err != nil {
		return nil, err
	}

	sqlDB, err := conn.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxIdleConns(cfg.DBMaxIdleConn)
	sqlDB.SetMaxOpenConns(cfg.DBMaxOpenConn)
	sqlDB.SetConnMaxLifetime(time.Duration(cfg.DBConnMaxLifetime) * time.Second)

	return conn, nil
}

// Module wires the database connection.
var Module = fx.Module("db",
	fx.Provide(Open),
)
