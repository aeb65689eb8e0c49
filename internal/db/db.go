package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/extra/bundebug"

	"github.com/prashantji77/youtube-video-summarizer/internal/config"
)

const (
	DefaultHistoryLimit = 20
	MaxHistoryLimit     = 100
)

// QARecord is one answered question. Transcripts and embeddings are never
// stored.
type QARecord struct {
	bun.BaseModel  `bun:"table:qa_history,alias:q"`
	ID             int64     `bun:"id,pk,autoincrement" json:"id"`
	RequestID      string    `bun:"request_id" json:"request_id"`
	VideoID        string    `bun:"video_id,notnull" json:"video_id"`
	Question       string    `bun:"question,notnull" json:"question"`
	Answer         string    `bun:"answer,notnull" json:"answer"`
	ChunkCount     int       `bun:"chunk_count" json:"chunk_count"`
	RetrievedCount int       `bun:"retrieved_count" json:"retrieved_count"`
	DurationMs     int64     `bun:"duration_ms" json:"duration_ms"`
	CreatedAt      time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp" json:"created_at"`
}

func NewDB(sqldb *sql.DB, debug bool) *bun.DB {
	db := bun.NewDB(sqldb, pgdialect.New())
	if debug {
		db.AddQueryHook(bundebug.NewQueryHook(bundebug.WithVerbose(true)))
	}
	return db
}

// ConnectDB opens the connection pool. The "pgdriver" driver is bun's own
// Postgres driver; "postgres" goes through lib/pq.
func ConnectDB(cfg *config.DatabaseConfig) (*sql.DB, error) {
	switch cfg.Driver {
	case "postgres":
		return sql.Open("postgres", cfg.DSN)
	case "pgdriver", "":
		opts := []pgdriver.Option{pgdriver.WithDSN(cfg.DSN)}
		if cfg.Password != "" {
			opts = append(opts, pgdriver.WithPassword(cfg.Password))
		}
		return sql.OpenDB(pgdriver.NewConnector(opts...)), nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

func InitDB(ctx context.Context, db *bun.DB) error {
	if _, err := db.NewCreateTable().Model((*QARecord)(nil)).IfNotExists().Exec(ctx); err != nil {
		return fmt.Errorf("create qa_history: %w", err)
	}
	_, err := db.NewCreateIndex().
		Model((*QARecord)(nil)).
		Index("qa_history_video_id_idx").
		Column("video_id", "created_at").
		IfNotExists().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("create qa_history index: %w", err)
	}
	return nil
}

// History records answered questions and lists them back per video.
type History struct {
	db *bun.DB
}

func NewHistory(db *bun.DB) *History {
	return &History{db: db}
}

func (h *History) Record(ctx context.Context, rec *QARecord) error {
	if _, err := insertQuery(h.db, rec).Exec(ctx); err != nil {
		return fmt.Errorf("store qa record: %w", err)
	}
	return nil
}

// Recent returns the newest records first. An empty videoID lists across
// all videos.
func (h *History) Recent(ctx context.Context, videoID string, limit int) ([]QARecord, error) {
	records := make([]QARecord, 0)
	if err := recentQuery(h.db, &records, videoID, limit).Scan(ctx); err != nil {
		return nil, fmt.Errorf("load qa history: %w", err)
	}
	return records, nil
}

func (h *History) Close() error {
	return h.db.Close()
}

func insertQuery(db bun.IDB, rec *QARecord) *bun.InsertQuery {
	return db.NewInsert().Model(rec).Returning("id, created_at")
}

func recentQuery(db bun.IDB, dest *[]QARecord, videoID string, limit int) *bun.SelectQuery {
	q := db.NewSelect().
		Model(dest).
		OrderExpr("q.created_at DESC, q.id DESC").
		Limit(ClampLimit(limit))
	if videoID != "" {
		q = q.Where("? = ?", bun.Ident("q.video_id"), videoID)
	}
	return q
}

// ClampLimit maps non-positive limits to the default and caps the rest.
func ClampLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultHistoryLimit
	case limit > MaxHistoryLimit:
		return MaxHistoryLimit
	default:
		return limit
	}
}
