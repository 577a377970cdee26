package repository

import (
	"context"
	"fmt"
	"time"

	"fitstake_miniapp/pkg/logger"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
)

var (
	ErrNotFound = errors.New("not found")

	ErrAlreadyParticipant  = errors.New("user already participates in challenge")
	ErrNotParticipant      = errors.New("user does not participate in challenge")
	ErrChallengeNotActive  = errors.New("challenge is not active")
	ErrChallengeFull       = errors.New("challenge is full")
	ErrInsufficientBalance = errors.New("insufficient token balance")

	ErrIntentExists = errors.New("settlement intent already exists")
)

const (
	challengesTable     = "challenges"
	userChallengesTable = "user_challenges"
	usersTable          = "users"
	healthMetricsTable  = "health_metrics"
	intentsTable        = "settlement_intents"
)

type Repository struct {
	db    *sqlx.DB
	clock func() time.Time
}

type Option func(*Repository)

// WithClock replaces the time source used for created_at, updated_at and
// day boundaries.
func WithClock(now func() time.Time) Option {
	return func(r *Repository) {
		r.clock = now
	}
}

func (r *Repository) now() time.Time {
	return r.clock().UTC()
}

func (r *Repository) Close() error {
	return r.db.Close()
}

func (r *Repository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *Repository) Transaction(ctx context.Context, t func(tx *sqlx.Tx) error) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	err = t(tx)
	if err != nil {
		txErr := tx.Rollback()
		if txErr != nil {
			return errors.Wrapf(err, "rollback error: %v", txErr)
		}
		return err
	}
	return tx.Commit()
}

type Config struct {
	Host            string        `json:"host"`
	Port            string        `json:"port"`
	User            string        `json:"user"`
	Password        string        `json:"password"`
	Name            string        `json:"name"`
	SSLMode         string        `json:"sslmode"`
	MaxOpenConns    int           `json:"maxOpenConns"`
	MaxIdleConns    int           `json:"maxIdleConns"`
	ConnMaxLifetime time.Duration `json:"connMaxLifetime"`
}

func New(cfg Config, opts ...Option) (*Repository, error) {
	url := cfg.GetDatabaseURL()
	db, err := sqlx.Connect("pgx", url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	err = db.Ping()
	if err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Logger().Info("Connected to database successfully")

	return NewWithDB(db, opts...), nil
}

// NewWithDB wraps an already opened connection pool.
func NewWithDB(db *sqlx.DB, opts ...Option) *Repository {
	r := &Repository{db: db, clock: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (c *Config) GetDatabaseURL() string {
	sslMode := c.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}

	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.User,
		c.Password,
		c.Host,
		c.Port,
		c.Name,
		sslMode,
	)
}
