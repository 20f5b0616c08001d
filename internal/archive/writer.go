package archive

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/rednet-io/rednet-go/internal/channel"
)

// Batcher sends a batch of statements. *pgxpool.Pool satisfies it.
type Batcher interface {
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

// WriterConfig holds batching settings.
type WriterConfig struct {
	BatchSize     int           // Flush when this many frames are pending
	FlushInterval time.Duration // Flush at least this often
	BufferSize    int           // Frames held before new ones are dropped
}

// DefaultWriterConfig returns sensible defaults.
func DefaultWriterConfig() WriterConfig {
	return WriterConfig{
		BatchSize:     500,
		FlushInterval: time.Second,
		BufferSize:    10000,
	}
}

// WriterStats tracks writer activity.
type WriterStats struct {
	Received  int64
	Inserts   int64
	Conflicts int64 // duplicate ids skipped by ON CONFLICT
	Flushes   int64
	Errors    int64
	Dropped   int64 // buffer full
}

// Frame is one archived envelope.
type Frame struct {
	ID         string
	Source     string
	Type       string
	Action     string
	Data       json.RawMessage
	ReceivedAt time.Time
}

// Writer batches received frames into channel_frames.
type Writer struct {
	cfg    WriterConfig
	logger *slog.Logger
	db     Batcher
	now    func() time.Time

	input *channel.Queue[Frame]

	// Batching
	batch       []Frame
	batchMu     sync.Mutex
	flushTicker *time.Ticker

	// Lifecycle
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	statsMu sync.Mutex
	stats   WriterStats
}

// NewWriter creates a writer. Call Start before handing out Handlers.
func NewWriter(cfg WriterConfig, db Batcher, logger *slog.Logger) *Writer {
	if logger == nil {
		logger = slog.Default()
	}
	def := DefaultWriterConfig()
	if cfg.BatchSize < 1 {
		cfg.BatchSize = def.BatchSize
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = def.FlushInterval
	}
	if cfg.BufferSize < 1 {
		cfg.BufferSize = def.BufferSize
	}

	return &Writer{
		cfg:    cfg,
		db:     db,
		logger: logger,
		now:    time.Now,
		input:  channel.NewQueue[Frame](64),
		batch:  make([]Frame, 0, cfg.BatchSize),
	}
}

// Start begins consuming frames and writing to the database.
func (w *Writer) Start(ctx context.Context) error {
	w.ctx, w.cancel = context.WithCancel(ctx)
	w.flushTicker = time.NewTicker(w.cfg.FlushInterval)

	// Consumer goroutine
	w.wg.Add(1)
	go w.consumeLoop()

	// Flush ticker goroutine
	w.wg.Add(1)
	go w.flushLoop()

	w.logger.Info("archive writer started",
		"batch_size", w.cfg.BatchSize,
		"flush_interval", w.cfg.FlushInterval,
	)
	return nil
}

// Stop shuts the writer down and flushes whatever is pending using ctx.
func (w *Writer) Stop(ctx context.Context) error {
	w.logger.Info("stopping archive writer")

	if w.cancel != nil {
		w.cancel()
	}
	if w.flushTicker != nil {
		w.flushTicker.Stop()
	}

	// Wait for goroutines
	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		w.logger.Warn("archive writer stop timed out")
	}

	// Final flush
	for _, f := range w.input.Close() {
		w.add(f)
	}
	w.flush(ctx)

	w.logger.Info("archive writer stopped")
	return nil
}

// Handler returns a channel callback that archives every frame under
// source (e.g. "/listener").
func (w *Writer) Handler(source string) channel.Handler {
	return func(env channel.Envelope) error {
		w.Handle(source, env)
		return nil
	}
}

// Handle queues one envelope. It never blocks; when the buffer is full the
// frame is dropped and counted.
func (w *Writer) Handle(source string, env channel.Envelope) {
	f := Frame{
		ID:         env.ID,
		Source:     source,
		Type:       env.Type,
		Action:     env.Action,
		Data:       env.Data,
		ReceivedAt: w.now(),
	}
	if f.ID == "" {
		f.ID = uuid.NewString()
	}

	w.statsMu.Lock()
	w.stats.Received++
	full := w.input.Len() >= w.cfg.BufferSize
	if full {
		w.stats.Dropped++
	}
	w.statsMu.Unlock()

	if full {
		w.logger.Warn("archive buffer full, dropping frame", "type", f.Type, "id", f.ID)
		return
	}
	w.input.Push(f)
}

// Stats returns current counters.
func (w *Writer) Stats() WriterStats {
	w.statsMu.Lock()
	defer w.statsMu.Unlock()
	return w.stats
}

// consumeLoop moves frames from the input queue into the batch.
func (w *Writer) consumeLoop() {
	defer w.wg.Done()

	for w.ctx.Err() == nil {
		f, ok := w.input.Pop(w.ctx, 100*time.Millisecond)
		if !ok {
			continue
		}
		if w.add(f) {
			w.flush(w.ctx)
		}
	}
}

// flushLoop periodically flushes the batch.
func (w *Writer) flushLoop() {
	defer w.wg.Done()

	for {
		select {
		case <-w.ctx.Done():
			return
		case <-w.flushTicker.C:
			w.flush(w.ctx)
		}
	}
}

// add appends f to the batch and reports whether the batch is full.
func (w *Writer) add(f Frame) bool {
	w.batchMu.Lock()
	defer w.batchMu.Unlock()
	w.batch = append(w.batch, f)
	return len(w.batch) >= w.cfg.BatchSize
}

// flush writes the current batch to the database.
func (w *Writer) flush(ctx context.Context) {
	w.batchMu.Lock()
	if len(w.batch) == 0 {
		w.batchMu.Unlock()
		return
	}

	// Take ownership of current batch
	batch := w.batch
	w.batch = make([]Frame, 0, w.cfg.BatchSize)
	w.batchMu.Unlock()

	start := time.Now()

	conflicts, err := w.batchInsert(ctx, batch)
	if err != nil {
		w.logger.Error("batch insert failed", "error", err, "count", len(batch))
		w.statsMu.Lock()
		w.stats.Errors++
		w.statsMu.Unlock()
		return
	}

	w.statsMu.Lock()
	w.stats.Inserts += int64(len(batch) - conflicts)
	w.stats.Conflicts += int64(conflicts)
	w.stats.Flushes++
	w.statsMu.Unlock()

	w.logger.Debug("flushed frames",
		"count", len(batch),
		"conflicts", conflicts,
		"duration", time.Since(start),
	)
}

const insertFrame = `
	INSERT INTO channel_frames (id, source, type, action, data, received_at)
	VALUES ($1, $2, $3, $4, $5, $6)
	ON CONFLICT (id) DO NOTHING
`

// batchInsert inserts rows using pgx.Batch with ON CONFLICT DO NOTHING.
func (w *Writer) batchInsert(ctx context.Context, rows []Frame) (conflicts int, err error) {
	batch := &pgx.Batch{}
	for _, r := range rows {
		var data any
		if len(r.Data) > 0 {
			data = string(r.Data)
		}
		batch.Queue(insertFrame, r.ID, r.Source, r.Type, r.Action, data, r.ReceivedAt)
	}

	results := w.db.SendBatch(ctx, batch)
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
