package config

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	gomysql "github.com/go-sql-driver/mysql"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/gorm/schema"
)

const (
	DriverMySQL    = "mysql"
	DriverPostgres = "postgres"
)

func init() {
	// Load env from .env
	godotenv.Load()
}

// DatabaseDriver returns DB_DRIVER, defaulting to mysql.
func DatabaseDriver() string {
	v := strings.ToLower(strings.TrimSpace(os.Getenv("DB_DRIVER")))
	if v == "" {
		return DriverMySQL
	}
	return v
}

// ConnectDatabaseWithRetry opens the configured database, tunes the pool and installs the otelgorm plugin.
// Call this from main() AFTER the HTTP server is listening.
//
// DB_CONNECT_MAX_ATTEMPTS bounds the retries (0 retries forever).
func ConnectDatabaseWithRetry(ctx context.Context) (*gorm.DB, error) {
	dialector, err := openDialector()
	if err != nil {
		return nil, err
	}
	maxAttempts := envInt("DB_CONNECT_MAX_ATTEMPTS", 0)

	var attempt int
	for {
		attempt++
		db, err := gorm.Open(dialector, NewGormConfig())
		if err == nil {
			if err = tunePool(db); err == nil {
				if pluginErr := db.Use(otelgorm.NewPlugin()); pluginErr != nil {
					logg.WithError(pluginErr).Warn("db connected but failed to install otelgorm plugin")
				}
				logg.WithFields(logrus.Fields{"driver": dialector.Name(), "attempt": attempt}).Info("connected to database")
				return db, nil
			}
		}
		if maxAttempts > 0 && attempt >= maxAttempts {
			return nil, fmt.Errorf("connect database after %d attempts: %w", attempt, err)
		}

		sleep := retryDelay(attempt)
		logg.WithFields(logrus.Fields{"attempt": attempt, "retry_in": sleep.String()}).WithError(err).Warn("failed to connect database")
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(sleep):
		}
	}
}

func openDialector() (gorm.Dialector, error) {
	host := envString("DB_HOST", "localhost")
	user := os.Getenv("DB_USER")
	password := os.Getenv("DB_PASSWORD")
	name := envString("DB_NAME", "almacen")

	switch driver := DatabaseDriver(); driver {
	case DriverMySQL:
		cfg := gomysql.NewConfig()
		cfg.User = user
		cfg.Passwd = password
		cfg.DBName = name
		cfg.ParseTime = true
		cfg.Net = "tcp"
		cfg.Addr = fmt.Sprintf("%s:%s", host, envString("DB_PORT", "3306"))
		// Cloud SQL: DB_HOST=/cloudsql/<CONNECTION_NAME> connects through the proxy's unix socket.
		if strings.HasPrefix(host, "/cloudsql/") {
			cfg.Net = "unix"
			cfg.Addr = host
		}
		return mysql.New(mysql.Config{DSN: cfg.FormatDSN()}), nil
	case DriverPostgres:
		dsn := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s TimeZone=UTC",
			host,
			envString("DB_PORT", "5432"),
			user,
			password,
			name,
			envString("DB_SSLMODE", "disable"),
		)
		return postgres.Open(dsn), nil
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", driver)
	}
}

// tunePool applies env overrides to the database/sql pool.
//   - DB_MAX_OPEN_CONNS (default 50)
//   - DB_MAX_IDLE_CONNS (default 25)
//   - DB_CONN_MAX_LIFETIME_SECONDS (default 300)
//   - DB_CONN_MAX_IDLE_TIME_SECONDS (default 60)
func tunePool(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	maxOpen := envInt("DB_MAX_OPEN_CONNS", 50)
	maxIdle := envInt("DB_MAX_IDLE_CONNS", 25)
	connMaxLife := time.Duration(envInt("DB_CONN_MAX_LIFETIME_SECONDS", 300)) * time.Second
	connMaxIdle := time.Duration(envInt("DB_CONN_MAX_IDLE_TIME_SECONDS", 60)) * time.Second

	if maxOpen > 0 {
		sqlDB.SetMaxOpenConns(maxOpen)
	}
	if maxIdle >= 0 {
		sqlDB.SetMaxIdleConns(maxIdle)
	}
	if connMaxLife > 0 {
		sqlDB.SetConnMaxLifetime(connMaxLife)
	}
	if connMaxIdle > 0 {
		sqlDB.SetConnMaxIdleTime(connMaxIdle)
	}
	return sqlDB.Ping()
}

func retryDelay(attempt int) time.Duration {
	sleep := time.Second * time.Duration(1<<min(attempt, 5))
	if sleep > 30*time.Second {
		sleep = 30 * time.Second
	}
	return sleep
}

// NewGormConfig is shared by the server, the cmd tools and the tests.
func NewGormConfig() *gorm.Config {
	return &gorm.Config{
		Logger:         initLog(),
		NamingStrategy: initNamingStrategy(),
		TranslateError: true,
	}
}

// InitLog Connection Log Configuration
func initLog() logger.Interface {
	return logger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		logger.Config{
			Colorful:                  false,
			LogLevel:                  logger.Error,
			SlowThreshold:             time.Second,
			IgnoreRecordNotFoundError: true,
		},
	)
}

// InitNamingStrategy Init NamingStrategy
func initNamingStrategy() *schema.NamingStrategy {
	return &schema.NamingStrategy{
		SingularTable: false,
		TablePrefix:   "",
	}
}
