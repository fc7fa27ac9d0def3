package main

import (
	"fmt"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/pcarivbts/CommunityCellularManager/internal/models"
)

type databaseConfig struct {
	Driver     string `yaml:"driver" toml:"driver"`
	DSN        string `yaml:"dsn" toml:"dsn"`
	Host       string `yaml:"host" toml:"host"`
	Port       int    `yaml:"port" toml:"port"`
	User       string `yaml:"user" toml:"user"`
	Pass       string `yaml:"pass" toml:"pass"`
	DBName     string `yaml:"dbname" toml:"dbname"`
	SQLitePath string `yaml:"sqlite_path" toml:"sqlite_path"`
}

func (c databaseConfig) dialector() gorm.Dialector {
	if c.Driver == "sqlite" {
		dsn := c.DSN
		if dsn == "" {
			dsn = c.SQLitePath
		}
		return sqlite.Open(dsn)
	}

	dsn := c.DSN
	if dsn == "" {
		dsn = fmt.Sprintf(
			"%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
			c.User,
			c.Pass,
			c.Host,
			c.Port,
			c.DBName,
		)
	}
	return mysql.Open(dsn)
}

func openDB(cfg databaseConfig) (*gorm.DB, error) {
	db, err := gorm.Open(cfg.dialector(), &gorm.Config{
		TranslateError:                           true,
		DisableForeignKeyConstraintWhenMigrating: true,
		Logger:                                   logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	if cfg.Driver == "sqlite" {
		// sqlite serializes writers; one connection avoids "database is locked".
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxIdleConns(10)
		sqlDB.SetMaxOpenConns(50)
		sqlDB.SetConnMaxLifetime(30 * time.Minute)
	}

	if err := sqlDB.Ping(); err != nil {
		return nil, err
	}

	return db, nil
}

func migrate(db *gorm.DB) error {
	return db.AutoMigrate(models.All()...)
}
