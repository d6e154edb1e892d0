package archiver

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/kicklab/kickchat/internal/model"
)

// Config configures the chat archiver.
type Config struct {
	BatchSize     int           // Rows per insert batch
	FlushInterval time.Duration // Max time a row waits before insert
	BufferSize    int           // Inbound message buffer
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		BatchSize:     500,
		FlushInterval: 1 * time.Second,
		BufferSize:    10000,
	}
}

// Metrics contains runtime counters.
type Metrics struct {
	Inserts   int64
	Conflicts int64
	Flushes   int64
	Errors    int64
	Dropped   int64
}

// DB is the batch-send surface of pgxpool.Pool the archiver writes through.
type DB interface {
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

// messageRow is the flattened database row for one chat message.
type messageRow struct {
	ID         uuid.UUID
	ChatroomID int64
	SenderID   int64
	Username   string
	Content    string
	MsgType    string
	CreatedAt  string
	ReceivedAt int64 // Local receive timestamp (µs since epoch)
}

// Archiver batches chat messages into the chat_messages table. Messages
// enter through Enqueue; inserts are deduplicated on message id so replays
// after a reconnect do not double-write.
type Archiver struct {
	cfg    Config
	logger *slog.Logger

	db    DB
	input chan *model.ChatMessage

	batch       []messageRow
	batchMu     sync.Mutex
	flushTicker *time.Ticker

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	metrics Metrics
}

// New creates an Archiver writing through db, typically a pgxpool.Pool.
func New(cfg Config, db DB, logger *slog.Logger) *Archiver {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.BatchSize == 0 {
		cfg.BatchSize = DefaultConfig().BatchSize
	}
	if cfg.FlushInterval == 0 {
		cfg.FlushInterval = DefaultConfig().FlushInterval
	}
	if cfg.BufferSize == 0 {
		cfg.BufferSize = DefaultConfig().BufferSize
	}

	return &Archiver{
		cfg:    cfg,
		logger: logger,
		db:     db,
		input:  make(chan *model.ChatMessage, cfg.BufferSize),
		batch:  make([]messageRow, 0, cfg.BatchSize),
	}
}

// Start begins consuming messages and writing to the database.
func (a *Archiver) Start(ctx context.Context) error {
	a.ctx, a.cancel = context.WithCancel(ctx)
	a.flushTicker = time.NewTicker(a.cfg.FlushInterval)

	a.wg.Add(1)
	go a.consumeLoop()

	a.wg.Add(1)
	go a.flushLoop()

	a.logger.Info("chat archiver started",
		"batch_size", a.cfg.BatchSize,
		"flush_interval", a.cfg.FlushInterval,
	)
	return nil
}

// Stop gracefully shuts down the archiver, flushing the final batch.
func (a *Archiver) Stop(ctx context.Context) error {
	a.logger.Info("stopping chat archiver")

	if a.cancel != nil {
		a.cancel()
	}
	if a.flushTicker != nil {
		a.flushTicker.Stop()
	}

	done := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		a.logger.Warn("archiver stop timed out")
	}

	// The final flush runs on the caller's context; a.ctx is already
	// canceled by this point.
	a.flush(ctx)

	a.logger.Info("chat archiver stopped")
	return nil
}

// Enqueue hands a message to the archiver without blocking the dispatch
// path; when the buffer is full the message is dropped with a warning.
func (a *Archiver) Enqueue(msg *model.ChatMessage) {
	select {
	case a.input <- msg:
	default:
		a.batchMu.Lock()
		a.metrics.Dropped++
		a.batchMu.Unlock()
		a.logger.Warn("archive buffer full, dropping message", "id", msg.ID)
	}
}

// Stats returns current metrics.
func (a *Archiver) Stats() Metrics {
	a.batchMu.Lock()
	defer a.batchMu.Unlock()
	return a.metrics
}

// consumeLoop reads from the input channel and accumulates batches.
func (a *Archiver) consumeLoop() {
	defer a.wg.Done()

	for {
		select {
		case <-a.ctx.Done():
			return
		case msg := <-a.input:
			a.handleMessage(msg)
		}
	}
}

// flushLoop periodically flushes the batch.
func (a *Archiver) flushLoop() {
	defer a.wg.Done()

	for {
		select {
		case <-a.ctx.Done():
			return
		case <-a.flushTicker.C:
			a.flush(a.ctx)
		}
	}
}

// handleMessage transforms and adds a message to the batch.
func (a *Archiver) handleMessage(msg *model.ChatMessage) {
	row := a.transform(msg, time.Now())

	a.batchMu.Lock()
	a.batch = append(a.batch, row)
	shouldFlush := len(a.batch) >= a.cfg.BatchSize
	a.batchMu.Unlock()

	if shouldFlush {
		a.flush(a.ctx)
	}
}

// transform converts a chat message to a messageRow.
func (a *Archiver) transform(msg *model.ChatMessage, receivedAt time.Time) messageRow {
	return messageRow{
		ID:         msg.ID,
		ChatroomID: msg.ChatroomID,
		SenderID:   msg.Sender.ID,
		Username:   msg.Sender.Username,
		Content:    msg.Content,
		MsgType:    msg.Type,
		CreatedAt:  msg.CreatedAt,
		ReceivedAt: receivedAt.UnixMicro(),
	}
}

// flush writes the current batch to the database.
func (a *Archiver) flush(ctx context.Context) {
	a.batchMu.Lock()
	if len(a.batch) == 0 {
		a.batchMu.Unlock()
		return
	}

	// Take ownership of current batch
	batch := a.batch
	a.batch = make([]messageRow, 0, a.cfg.BatchSize)
	a.batchMu.Unlock()

	start := time.Now()

	conflicts, err := a.batchInsert(ctx, batch)
	if err != nil {
		a.logger.Error("batch insert failed", "error", err, "count", len(batch))
		a.batchMu.Lock()
		a.metrics.Errors++
		a.batchMu.Unlock()
		return
	}

	a.batchMu.Lock()
	a.metrics.Inserts += int64(len(batch) - conflicts)
	a.metrics.Conflicts += int64(conflicts)
	a.metrics.Flushes++
	a.batchMu.Unlock()

	a.logger.Debug("flushed messages",
		"count", len(batch),
		"conflicts", conflicts,
		"duration", time.Since(start),
	)
}

// batchInsert inserts rows using pgx.Batch with ON CONFLICT DO NOTHING.
func (a *Archiver) batchInsert(ctx context.Context, rows []messageRow) (conflicts int, err error) {
	batch := &pgx.Batch{}
	for _, r := range rows {
		batch.Queue(`
			INSERT INTO chat_messages (id, chatroom_id, sender_id, username, content, msg_type, created_at, received_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			ON CONFLICT (id) DO NOTHING
		`, r.ID, r.ChatroomID, r.SenderID, r.Username, r.Content, r.MsgType, r.CreatedAt, r.ReceivedAt)
	}

	results := a.db.SendBatch(ctx, batch)
	defer results.Close()

	for range rows {
		ct, err := results.Exec()
		if err != nil {
			return 0, err
		}
		if ct.RowsAffected() == 0 {
			conflicts++
		}
	}

	return conflicts, nil
}
