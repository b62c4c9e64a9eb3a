// Package daaudit is the Postgres-backed audit log for DA publication
// attempts (the da_jobs table), separate from the KV-resident pending-diff
// bookkeeping in dastore. Modeled with gorm the way this codebase's own
// Postgres-backed services define their tables.
package daaudit

import (
	"context"
	"database/sql"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pkg/errors"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// Status is the lifecycle state of one publication attempt.
type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusFailed    Status = "failed"
)

// DaJob is one row of the da_jobs table.
type DaJob struct {
	ID              uuid.UUID `gorm:"type:uuid;primaryKey"`
	BlockHash       string    `gorm:"index;not null"`
	L2BlockNumber   int64     `gorm:"not null"`
	SubmittedHeight uint64
	TxHash          string
	Status          Status `gorm:"not null"`
	SubmittedAt     time.Time
	UpdatedAt       time.Time
}

func (DaJob) TableName() string { return "da_jobs" }

// Log wraps a gorm handle scoped to the da_jobs table.
type Log struct {
	db *gorm.DB
}

// Open connects to dsn via pgx's database/sql driver and runs the da_jobs
// migration. Using pgx's stdlib adapter directly (rather than letting gorm
// dial its own pgx connection internally) lets this process share one
// connection pool's lifecycle and stats with the rest of the binary.
func Open(dsn string) (*Log, error) {
	sqlDB, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "open pgx connection")
	}
	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{})
	if err != nil {
		return nil, errors.Wrap(err, "open gorm session")
	}
	if err := db.AutoMigrate(&DaJob{}); err != nil {
		return nil, errors.Wrap(err, "migrate da_jobs table")
	}
	return &Log{db: db}, nil
}

// RecordPending inserts a new job row with status pending, called before
// the transaction is submitted.
func (l *Log) RecordPending(ctx context.Context, id uuid.UUID, blockHash common.Hash, l2BlockNumber int64) error {
	return l.db.WithContext(ctx).Create(&DaJob{
		ID:            id,
		BlockHash:     blockHash.Hex(),
		L2BlockNumber: l2BlockNumber,
		Status:        StatusPending,
		SubmittedAt:   time.Now(),
	}).Error
}

// MarkConfirmed marks a job row confirmed with its height and tx hash.
// dapublish calls it as soon as SendTransaction accepts the transaction;
// it does not wait for the transaction to be mined.
func (l *Log) MarkConfirmed(ctx context.Context, id uuid.UUID, submittedHeight uint64, txHash common.Hash) error {
	return l.db.WithContext(ctx).Model(&DaJob{}).Where("id = ?", id).Updates(map[string]any{
		"status":           StatusConfirmed,
		"submitted_height": submittedHeight,
		"tx_hash":          txHash.Hex(),
		"updated_at":       time.Now(),
	}).Error
}

// MarkFailed marks a job row failed. dapublish calls it when signing or
// submitting the transaction fails; reverted or dropped transactions are
// not detected.
func (l *Log) MarkFailed(ctx context.Context, id uuid.UUID) error {
	return l.db.WithContext(ctx).Model(&DaJob{}).Where("id = ?", id).Updates(map[string]any{
		"status":     StatusFailed,
		"updated_at": time.Now(),
	}).Error
}
