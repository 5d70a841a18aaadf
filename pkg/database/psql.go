package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v4/pgxpool"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// NewDatabaseConnection create a new postgresSQL pool, d.RetryCount bounds the connect attempts
func NewDatabaseConnection(ctx context.Context, d Connection) (*pgxpool.Pool, error) {
	dbConfig, err := pgxpool.ParseConfig(d.ConnectStr)
	if err != nil {
		return nil, fmt.Errorf("parse postgres config: %w", err)
	}

	var pool *pgxpool.Pool
	err = WithRetry(ctx, d, "postgreSQL", func() error {
		var err error
		pool, err = pgxpool.ConnectConfig(ctx, dbConfig)
		if err != nil {
			return err
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return pool, nil
}

// NewPGConnection create a gorm handle on postgres, d.RetryCount bounds the connect attempts
func NewPGConnection(ctx context.Context, d Connection) (*gorm.DB, error) {
	var db *gorm.DB
	err := WithRetry(ctx, d, "postgreSQL(gorm)", func() error {
		var err error
		db, err = gorm.Open(postgres.Open(d.ConnectStr), &gorm.Config{
			Logger: gormlogger.Default.LogMode(gormlogger.Silent),
		})
		if err != nil {
			return err
		}
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		if err := sqlDB.PingContext(ctx); err != nil {
			sqlDB.Close()
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return db, nil
}

// ClosePG close the pool under a gorm handle
func ClosePG(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
