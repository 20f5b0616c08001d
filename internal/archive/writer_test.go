package archive

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rednet-io/rednet-go/internal/channel"
)

// fakeDB emulates channel_frames with a primary key on id.
type fakeDB struct {
	mu      sync.Mutex
	rows    map[string][]any
	batches int
	err     error
}

func newFakeDB() *fakeDB {
	return &fakeDB{rows: make(map[string][]any)}
}

func (db *fakeDB) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults {
	db.mu.Lock()
	defer db.mu.Unlock()

	db.batches++
	res := &fakeResults{err: db.err}
	if db.err != nil {
		return res
	}
	for _, q := range b.QueuedQueries {
		id := q.Arguments[0].(string)
		if _, dup := db.rows[id]; dup {
			res.tags = append(res.tags, pgconn.NewCommandTag("INSERT 0 0"))
			continue
		}
		db.rows[id] = q.Arguments
		res.tags = append(res.tags, pgconn.NewCommandTag("INSERT 0 1"))
	}
	return res
}

func (db *fakeDB) row(id string) []any {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.rows[id]
}

func (db *fakeDB) count() int {
	db.mu.Lock()
	defer db.mu.Unlock()
	return len(db.rows)
}

type fakeResults struct {
	tags []pgconn.CommandTag
	err  error
}

func (r *fakeResults) Exec() (pgconn.CommandTag, error) {
	if r.err != nil {
		return pgconn.CommandTag{}, r.err
	}
	tag := r.tags[0]
	r.tags = r.tags[1:]
	return tag, nil
}

func (r *fakeResults) Query() (pgx.Rows, error) { return nil, errors.New("not implemented") }
func (r *fakeResults) QueryRow() pgx.Row { return nil }
func (r *fakeResults) Close() error { return nil }

func envelope(id, typ string) channel.Envelope {
	return channel.Envelope{ID: id, Type: typ, Action: "response", Data: json.RawMessage(`{"magick":"x"}`)}
}

func stopWriter(t *testing.T, w *Writer) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, w.Stop(ctx))
}

func TestWriter_FlushOnBatchSize(t *testing.T) {
	db := newFakeDB()
	w := NewWriter(WriterConfig{BatchSize: 3, FlushInterval: time.Hour, BufferSize: 100}, db, nil)
	require.NoError(t, w.Start(context.Background()))
	defer stopWriter(t, w)

	for _, id := range []string{"a", "b", "c"} {
		w.Handle("/listener", envelope(id, "listener"))
	}

	require.Eventually(t, func() bool {
		return w.Stats().Flushes == 1
	}, 2*time.Second, 5*time.Millisecond)

	stats := w.Stats()
	assert.Equal(t, int64(3), stats.Received)
	assert.Equal(t, int64(3), stats.Inserts)
	assert.Equal(t, 3, db.count())
}

func TestWriter_FlushOnInterval(t *testing.T) {
	db := newFakeDB()
	w := NewWriter(WriterConfig{BatchSize: 100, FlushInterval: 20 * time.Millisecond, BufferSize: 100}, db, nil)
	require.NoError(t, w.Start(context.Background()))
	defer stopWriter(t, w)

	w.Handle("/handler", envelope("only", "handler"))

	require.Eventually(t, func() bool {
		return db.count() == 1
	}, 2*time.Second, 5*time.Millisecond)
}

func TestWriter_DuplicateDeliveryStoredOnce(t *testing.T) {
	db := newFakeDB()
	w := NewWriter(WriterConfig{BatchSize: 100, FlushInterval: time.Hour, BufferSize: 100}, db, nil)
	require.NoError(t, w.Start(context.Background()))

	w.Handle("/listener", envelope("dup", "listener"))
	w.Handle("/listener", envelope("dup", "listener"))
	w.Handle("/listener", envelope("other", "listener"))
	stopWriter(t, w)

	stats := w.Stats()
	assert.Equal(t, int64(2), stats.Inserts)
	assert.Equal(t, int64(1), stats.Conflicts)
	assert.Equal(t, 2, db.count())
}

func TestWriter_RowContents(t *testing.T) {
	db := newFakeDB()
	w := NewWriter(DefaultWriterConfig(), db, nil)
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	w.now = func() time.Time { return fixed }

	require.NoError(t, w.Start(context.Background()))
	require.NoError(t, w.Handler("/listener")(envelope("row-1", "listener")))
	w.Handle("/handler", channel.Envelope{Type: "handler"})
	stopWriter(t, w)

	row := db.row("row-1")
	require.NotNil(t, row)
	assert.Equal(t, []any{"row-1", "/listener", "listener", "response", `{"magick":"x"}`, fixed}, row)

	require.Equal(t, 2, db.count())
	db.mu.Lock()
	defer db.mu.Unlock()
	for id, r := range db.rows {
		if id == "row-1" {
			continue
		}
		_, err := uuid.Parse(id)
		assert.NoError(t, err, "generated id should be a uuid")
		assert.Nil(t, r[4], "empty data should be stored as NULL")
	}
}

func TestWriter_BufferFull(t *testing.T) {
	w := NewWriter(WriterConfig{BatchSize: 10, FlushInterval: time.Hour, BufferSize: 2}, newFakeDB(), nil)

	for i := 0; i < 3; i++ {
		w.Handle("/listener", envelope(uuid.NewString(), "listener"))
	}

	stats := w.Stats()
	assert.Equal(t, int64(3), stats.Received)
	assert.Equal(t, int64(1), stats.Dropped)
}

func TestWriter_InsertError(t *testing.T) {
	db := newFakeDB()
	db.err = errors.New("connection reset")

	w := NewWriter(WriterConfig{BatchSize: 1, FlushInterval: time.Hour, BufferSize: 10}, db, nil)
	require.NoError(t, w.Start(context.Background()))
	defer stopWriter(t, w)

	w.Handle("/listener", envelope("x", "listener"))

	require.Eventually(t, func() bool {
		return w.Stats().Errors == 1
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, int64(0), w.Stats().Inserts)
}
