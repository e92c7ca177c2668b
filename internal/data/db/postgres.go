package db

import (
	"fmt"
	"log"
	"os"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	"github.com/ngm9/Utkrusht-task-sub000/internal/platform/logger"
)

type PostgresService struct {
	db  *gorm.DB
	log *logger.Logger
	env string
}

// NewPostgresService connects to the environment's database. env is only used for log context.
func NewPostgresService(logg *logger.Logger, env, dsn string) (*PostgresService, error) {
	serviceLog := logg.With("service", "PostgresService", "env", env)
	if dsn == "" {
		return nil, fmt.Errorf("no database url configured for env %q", env)
	}

	gormLog := gormLogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormLogger.Config{
			SlowThreshold:             1 * time.Second,
			LogLevel:                  gormLogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	db, err := gorm.Open(postgres.New(postgres.Config{
		DSN: dsn,
		// Supabase poolers run in transaction mode and reject named prepared statements.
		PreferSimpleProtocol: true,
	}), &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
		Logger:                                   gormLog,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Postgres (%s): %w", env, err)
	}

	serviceLog.Debug("connected")
	return &PostgresService{db: db, log: serviceLog, env: env}, nil
}

func (s *PostgresService) DB() *gorm.DB { return s.db }

func (s *PostgresService) Env() string { return s.env }

func (s *PostgresService) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
