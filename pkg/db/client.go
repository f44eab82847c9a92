package db

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log"

	"github.com/norberto-e-888/pos-app/pkg/config"
	"github.com/norberto-e-888/pos-app/pkg/logger"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Client is the shared GORM connection. It satisfies the TxRunner interfaces the
// services and the relay depend on.
type Client struct {
	conn    *gorm.DB
	dialect string
}

const (
	DialectPostgres = "postgres"
	DialectSQLite   = "sqlite"
)

// New boots a GORM client using the provided configuration. SQLite is used when the
// feature flag asks for it, Postgres otherwise.
func New(ctx context.Context, cfg config.DBConfig, useSQLite bool, logg *logger.Logger) (*Client, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("database DSN is required")
	}

	var dialector gorm.Dialector
	dialect := DialectPostgres
	if useSQLite {
		dialect = DialectSQLite
		dialector = sqlite.Open(cfg.DSN)
	} else {
		dialector = postgres.New(postgres.Config{
			DSN:                  cfg.DSN,
			PreferSimpleProtocol: true,
		})
	}

	gormLogger := gormlogger.New(
		log.New(io.Discard, "", log.LstdFlags),
		gormlogger.Config{LogLevel: gormlogger.Silent},
	)

	gormCfg := &gorm.Config{
		Logger:                 gormLogger,
		SkipDefaultTransaction: true,
	}

	conn, err := gorm.Open(dialector, gormCfg)
	if err != nil {
		return nil, fmt.Errorf("opening db connection: %w", err)
	}

	sqlDB, err := conn.DB()
	if err != nil {
		return nil, fmt.Errorf("getting sql db handle: %w", err)
	}

	if dialect == DialectSQLite {
		// sqlite serialises writers; a single connection avoids SQLITE_BUSY churn.
		sqlDB.SetMaxOpenConns(1)
	} else {
		applyPoolSettings(sqlDB, cfg)
	}

	if cfg.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}
	if cfg.ConnMaxIdleTime > 0 {
		sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)
	}

	if logg != nil {
		logg.Info(logg.WithField(ctx, "dialect", dialect), "database connection established")
	}

	return &Client{conn: conn, dialect: dialect}, nil
}

// NewFromGorm wraps an already opened connection. Tests use it with in-memory sqlite.
func NewFromGorm(conn *gorm.DB) *Client {
	dialect := DialectPostgres
	if conn != nil && conn.Dialector != nil && conn.Dialector.Name() == DialectSQLite {
		dialect = DialectSQLite
	}
	return &Client{conn: conn, dialect: dialect}
}

func applyPoolSettings(sqlDB *sql.DB, cfg config.DBConfig) {
	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
}

// DB returns the underlying GORM connection.
func (c *Client) DB() *gorm.DB {
	return c.conn
}

// Dialect reports which SQL dialect the connection speaks.
func (c *Client) Dialect() string {
	return c.dialect
}

// Ping verifies the datasource is reachable.
func (c *Client) Ping(ctx context.Context) error {
	sqlDB, err := c.conn.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close shuts down the pooled connections.
func (c *Client) Close() error {
	sqlDB, err := c.conn.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// WithTx runs fn in one transaction. An error or panic from fn rolls it back.
// Every domain write and its outbox rows go through here.
func (c *Client) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	tx := c.conn.WithContext(ctx).Begin()
	if tx.Error != nil {
		return tx.Error
	}

	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
			panic(r)
		}
	}()

	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}

	return tx.Commit().Error
}
