// internal/journal/journal.go
package journal

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// DefaultQueueName is the Redis list the historian drains.
const DefaultQueueName = "roomsync_frames"

// Direction tags a frame record as inbound or outbound relative to the client.
type Direction string

const (
	DirInbound  Direction = "in"
	DirOutbound Direction = "out"
)

// FrameRecord holds the minimal info the historian needs to archive one
// frame. Payload stays raw; the historian never interprets game semantics.
type FrameRecord struct {
	SessionID uuid.UUID       `json:"session_id"`
	RoomPath  string          `json:"room_path"`
	Direction Direction       `json:"direction"`
	FrameType string          `json:"frame_type"`
	Payload   json.RawMessage `json:"payload"`
	Timestamp int64           `json:"timestamp"`
}

// Journal pushes frame records onto a Redis queue. It is an optional
// observability tap: a nil *Journal is valid and every method no-ops, and a
// push failure is logged, never surfaced to the engine's callers.
type Journal struct {
	rdb       *redis.Client
	queueName string
	sessionID uuid.UUID
	roomPath  string
	logger    *logrus.Logger
}

// New connects a journal for one room session. Each engine mount gets a
// fresh session id so the historian can group frames per mount.
func New(rdb *redis.Client, queueName, roomPath string, logger *logrus.Logger) *Journal {
	if queueName == "" {
		queueName = DefaultQueueName
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &Journal{
		rdb:       rdb,
		queueName: queueName,
		sessionID: uuid.New(),
		roomPath:  roomPath,
		logger:    logger,
	}
}

// Record pushes one frame onto the queue. Fire and forget: a short timeout
// bounds the network send and errors are only logged.
func (j *Journal) Record(dir Direction, frameType string, payload []byte) {
	if j == nil || j.rdb == nil {
		return
	}
	rec := FrameRecord{
		SessionID: j.sessionID,
		RoomPath:  j.roomPath,
		Direction: dir,
		FrameType: frameType,
		Payload:   append(json.RawMessage(nil), payload...),
		Timestamp: time.Now().UnixMilli(),
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := j.push(ctx, rec); err != nil {
			j.logger.Warnf("journal: %v", err)
		}
	}()
}

func (j *Journal) push(ctx context.Context, rec FrameRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal frame record: %w", err)
	}
	if err := j.rdb.RPush(ctx, j.queueName, data).Err(); err != nil {
		return fmt.Errorf("rpush to %q: %w", j.queueName, err)
	}
	return nil
}
