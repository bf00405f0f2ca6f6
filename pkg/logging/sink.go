package logging

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"
)

// LogEntry is one log record handed to a sink.
type LogEntry struct {
	Timestamp time.Time         `json:"ts"`
	Level     string            `json:"level"`
	Component string            `json:"component"`
	Message   string            `json:"msg"`
	Fields    map[string]string `json:"fields,omitempty"`
	TraceID   string            `json:"trace_id,omitempty"`
	Caller    string            `json:"caller,omitempty"`
}

// LogWriter persists batches of entries.
type LogWriter interface {
	WriteBatch(ctx context.Context, entries []LogEntry) error
}

// Sink is an interface for components that receive log entries.
type Sink interface {
	// Write queues a log entry for async processing.
	Write(entry LogEntry)
	// Flush blocks until all queued entries are written.
	Flush(ctx context.Context) error
	// Close shuts down the sink gracefully.
	Close() error
}

// JSONLinesWriter writes entries as one JSON object per line.
type JSONLinesWriter struct {
	mu  sync.Mutex
	out io.Writer
}

// NewJSONLinesWriter wraps out.
func NewJSONLinesWriter(out io.Writer) *JSONLinesWriter {
	return &JSONLinesWriter{out: out}
}

// WriteBatch encodes entries in order.
func (w *JSONLinesWriter) WriteBatch(_ context.Context, entries []LogEntry) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	enc := json.NewEncoder(w.out)
	for _, e := range entries {
		if err := enc.Encode(e); err != nil {
			return fmt.Errorf("failed to write log entry: %w", err)
		}
	}
	return nil
}

// AsyncSink buffers entries and writes them in batches from a background
// goroutine so logging never blocks an import.
type AsyncSink struct {
	writer        LogWriter
	entries       chan LogEntry
	flushRequests chan chan error
	batchSize     int
	flushInterval time.Duration
	flushTimeout  time.Duration

	mu     sync.Mutex
	closed bool
	done   chan struct{}
	wg     sync.WaitGroup

	closer io.Closer
}

// AsyncSinkConfig configures an AsyncSink.
type AsyncSinkConfig struct {
	// Writer is the backend for persisting log entries.
	Writer LogWriter
	// BufferSize is the channel capacity (default: 1000).
	BufferSize int
	// BatchSize is the max entries per batch write (default: 100).
	BatchSize int
	// FlushInterval is how often to flush buffered entries (default: 2s).
	FlushInterval time.Duration
}

// NewAsyncSink starts a sink writing to cfg.Writer.
func NewAsyncSink(cfg AsyncSinkConfig) *AsyncSink {
	if cfg.Writer == nil {
		panic("AsyncSink requires a non-nil Writer")
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 1000
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = 2 * time.Second
	}

	s := &AsyncSink{
		writer:        cfg.Writer,
		entries:       make(chan LogEntry, cfg.BufferSize),
		flushRequests: make(chan chan error),
		batchSize:     cfg.BatchSize,
		flushInterval: cfg.FlushInterval,
		flushTimeout:  5 * time.Second,
		done:          make(chan struct{}),
	}

	s.wg.Add(1)
	go s.run()

	return s
}

// OpenJournal appends JSON log lines to the file at path, creating parent
// directories as needed. Closing the sink closes the file.
func OpenJournal(path string) (*AsyncSink, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create journal directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}
	s := NewAsyncSink(AsyncSinkConfig{Writer: NewJSONLinesWriter(f)})
	s.closer = f
	return s, nil
}

// Write queues an entry. When the buffer is full the entry is dropped.
func (s *AsyncSink) Write(entry LogEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}

	select {
	case s.entries <- entry:
	default:
		fmt.Fprintf(os.Stderr, "[journal] buffer full, dropping log entry: %s\n", entry.Message)
	}
}

// Flush waits until everything queued so far has been written.
func (s *AsyncSink) Flush(ctx context.Context) error {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return nil
	}

	result := make(chan error, 1)
	select {
	case s.flushRequests <- result:
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(s.flushTimeout):
		return fmt.Errorf("flush timeout after %v", s.flushTimeout)
	}
}

// Close drains queued entries, stops the background goroutine and closes
// the underlying file, if any.
func (s *AsyncSink) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	close(s.done)
	s.wg.Wait()

	if s.closer != nil {
		return s.closer.Close()
	}
	return nil
}

func (s *AsyncSink) run() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.flushInterval)
	defer ticker.Stop()

	batch := make([]LogEntry, 0, s.batchSize)

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		ctx, cancel := context.WithTimeout(context.Background(), s.flushTimeout)
		defer cancel()

		err := s.writer.WriteBatch(ctx, batch)
		if err != nil {
			fmt.Fprintf(os.Stderr, "[journal] failed to write %d entries: %v\n", len(batch), err)
		}
		batch = batch[:0]
		return err
	}

	// drain moves everything currently buffered into batches.
	drain := func() {
		for {
			select {
			case e := <-s.entries:
				batch = append(batch, e)
				if len(batch) >= s.batchSize {
					flush()
				}
			default:
				return
			}
		}
	}

	for {
		select {
		case e := <-s.entries:
			batch = append(batch, e)
			if len(batch) >= s.batchSize {
				flush()
			}

		case <-ticker.C:
			flush()

		case result := <-s.flushRequests:
			drain()
			result <- flush()

		case <-s.done:
			drain()
			flush()
			return
		}
	}
}

// getCaller returns the caller information (file:line) for logging.
func getCaller(skip int) string {
	_, file, line, ok := runtime.Caller(skip)
	if !ok {
		return ""
	}
	return fmt.Sprintf("%s:%d", filepath.Base(file), line)
}
