// cmd/historian/main.go is an asynchronous archiver that pops frame records
// from the engine's Redis journal queue and persists them to PostgreSQL.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/joho/godotenv/autoload"
	"github.com/redis/go-redis/v9"

	"github.com/chainwars-gg/roomsync/internal/config"
	"github.com/chainwars-gg/roomsync/internal/journal"
)

// Historian encapsulates the Redis + DB logic for archiving room frames and
// marking sessions abandoned after an inactivity threshold.
type Historian struct {
	redisClient *redis.Client
	pool        *pgxpool.Pool
	queueName   string
	batchSize   int
	flushDelay  time.Duration
	inactivity  time.Duration

	// lastActivity maps session id -> last frame time, for the sweep.
	lastActivity sync.Map

	batchMu  sync.Mutex
	batch    []journal.FrameRecord
	ctx      context.Context
	cancelFn context.CancelFunc
}

// NewHistorian constructs a Historian from environment variables or defaults.
func NewHistorian() (*Historian, error) {
	cfg := config.Load()
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})

	pool, err := pgxpool.New(context.Background(), cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	batchSize := config.GetEnvInt("HISTORIAN_BATCH_SIZE", 20)
	flushMs := config.GetEnvInt("HISTORIAN_FLUSH_MS", 500)
	inactivitySec := config.GetEnvInt("SESSION_INACTIVITY_TIMEOUT_SEC", 600)

	ctx, cancel := context.WithCancel(context.Background())
	return &Historian{
		redisClient: rdb,
		pool:        pool,
		queueName:   cfg.QueueName,
		batchSize:   batchSize,
		flushDelay:  time.Duration(flushMs) * time.Millisecond,
		inactivity:  time.Duration(inactivitySec) * time.Second,
		batch:       make([]journal.FrameRecord, 0, batchSize),
		ctx:         ctx,
		cancelFn:    cancel,
	}, nil
}

// Run starts the queue drain loop and the inactivity sweep, then blocks
// until Stop.
func (h *Historian) Run() {
	go h.readRedisLoop()
	go h.inactivityLoop()

	log.Println("roomsync-historian started.")
	<-h.ctx.Done()
	log.Println("roomsync-historian shutting down.")
}

// Stop gracefully stops the historian.
func (h *Historian) Stop() {
	h.cancelFn()
	h.pool.Close()
}

// readRedisLoop continuously BLPops frame records off the journal queue,
// batching inserts and flushing on a timer.
func (h *Historian) readRedisLoop() {
	ticker := time.NewTicker(h.flushDelay)
	defer ticker.Stop()

	for {
		select {
		case <-h.ctx.Done():
			return

		case <-ticker.C:
			h.flushBatchToDB()

		default:
			// BLPop with a short timeout so context cancellation is handled.
			res, err := h.redisClient.BLPop(h.ctx, 3*time.Second, h.queueName).Result()
			if err != nil && !errors.Is(err, redis.Nil) {
				if h.ctx.Err() != nil {
					return
				}
				log.Printf("[ERROR] BLPop: %v\n", err)
				continue
			}
			if len(res) < 2 {
				continue
			}

			var rec journal.FrameRecord
			if err := json.Unmarshal([]byte(res[1]), &rec); err != nil {
				log.Printf("invalid frame record: %v\n", err)
				continue
			}

			h.lastActivity.Store(rec.SessionID, time.Now())
			h.appendToBatch(rec)
		}
	}
}

// appendToBatch adds a record and flushes when the threshold is reached.
func (h *Historian) appendToBatch(rec journal.FrameRecord) {
	h.batchMu.Lock()
	defer h.batchMu.Unlock()

	h.batch = append(h.batch, rec)
	if len(h.batch) >= h.batchSize {
		h.flushLocked()
	}
}

func (h *Historian) flushBatchToDB() {
	h.batchMu.Lock()
	defer h.batchMu.Unlock()
	h.flushLocked()
}

// flushLocked writes the current batch in one transaction. Caller holds
// batchMu.
func (h *Historian) flushLocked() {
	if len(h.batch) == 0 {
		return
	}
	batchCopy := make([]journal.FrameRecord, len(h.batch))
	copy(batchCopy, h.batch)
	h.batch = h.batch[:0]

	ctx := context.Background()
	err := beginTxFunc(ctx, h.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		for _, rec := range batchCopy {
			if err := insertFrameTx(ctx, tx, rec); err != nil {
				return fmt.Errorf("insertFrameTx: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		log.Printf("[ERROR] flush: %v\n", err)
	} else {
		log.Printf("Flushed %d frames to DB.\n", len(batchCopy))
	}
}

// inactivityLoop marks sessions with no frames past the threshold abandoned.
func (h *Historian) inactivityLoop() {
	ticker := time.NewTicker(1 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-h.ctx.Done():
			return

		case <-ticker.C:
			now := time.Now()
			h.lastActivity.Range(func(key, val interface{}) bool {
				sessionID, ok1 := key.(uuid.UUID)
				last, ok2 := val.(time.Time)
				if ok1 && ok2 && now.Sub(last) > h.inactivity {
					h.markSessionAbandoned(sessionID)
					h.lastActivity.Delete(sessionID)
				}
				return true
			})
		}
	}
}

func (h *Historian) markSessionAbandoned(sessionID uuid.UUID) {
	ctx := context.Background()
	err := beginTxFunc(ctx, h.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		q := `
			UPDATE room_sessions
			SET status = 'abandoned', ended_at = NOW()
			WHERE id = $1 AND status = 'active'
		`
		_, e := tx.Exec(ctx, q, sessionID)
		return e
	})
	if err != nil {
		log.Printf("failed to mark session %v abandoned: %v", sessionID, err)
	} else {
		log.Printf("Marked session %v as 'abandoned' due to inactivity.", sessionID)
	}
}

// insertFrameTx upserts the session row and inserts one frame record.
func insertFrameTx(ctx context.Context, tx pgx.Tx, rec journal.FrameRecord) error {
	upsertSessionQ := `
		INSERT INTO room_sessions (id, room_path, status, started_at)
		VALUES ($1, $2, 'active', NOW())
		ON CONFLICT (id)
		DO UPDATE SET status = 'active'
	`
	if _, err := tx.Exec(ctx, upsertSessionQ, rec.SessionID, rec.RoomPath); err != nil {
		return err
	}

	frameInsertQ := `
		INSERT INTO room_frames (
			session_id, direction, frame_type, payload, recorded_at
		) VALUES ($1, $2, $3, $4, to_timestamp($5::double precision / 1000))
	`
	_, err := tx.Exec(ctx, frameInsertQ,
		rec.SessionID, string(rec.Direction), rec.FrameType, []byte(rec.Payload), rec.Timestamp,
	)
	return err
}

// beginTxFunc starts a transaction, runs f, and commits or rolls back.
func beginTxFunc(ctx context.Context, pool *pgxpool.Pool, txOptions pgx.TxOptions, f func(tx pgx.Tx) error) error {
	tx, err := pool.BeginTx(ctx, txOptions)
	if err != nil {
		return err
	}
	if err := f(tx); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			return fmt.Errorf("tx rollback error: %v; original error: %w", rbErr, err)
		}
		return err
	}
	return tx.Commit(ctx)
}

func main() {
	h, err := NewHistorian()
	if err != nil {
		log.Fatalf("historian init: %v", err)
	}
	go h.Run()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan
	h.Stop()
	log.Println("Historian shutdown complete.")
}
