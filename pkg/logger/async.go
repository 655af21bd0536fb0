package logger

import (
	"io"
	"sync"
	"time"
)

// AsyncConfig configures buffered writes to slow sinks such as log files.
type AsyncConfig struct {
	Enabled bool

	// BufferSize is the number of pending writes (default 4096).
	BufferSize int

	// DropOnFull drops writes instead of blocking when the buffer is full.
	DropOnFull bool

	// OnDrop is called with the number of dropped writes.
	OnDrop func(count int)
}

const defaultAsyncBufferSize = 4096

// AsyncWriter moves writes to a background goroutine.
type AsyncWriter struct {
	writer io.Writer
	buffer chan []byte
	done   chan struct{}
	wg     sync.WaitGroup
	once   sync.Once
	config AsyncConfig
}

// NewAsyncWriter wraps w. A disabled config writes through synchronously.
func NewAsyncWriter(w io.Writer, cfg AsyncConfig) *AsyncWriter {
	if !cfg.Enabled {
		return &AsyncWriter{writer: w, config: cfg}
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = defaultAsyncBufferSize
	}

	aw := &AsyncWriter{
		writer: w,
		buffer: make(chan []byte, cfg.BufferSize),
		done:   make(chan struct{}),
		config: cfg,
	}
	aw.wg.Add(1)
	go aw.worker()
	return aw
}

// Write queues a copy of p.
func (w *AsyncWriter) Write(p []byte) (int, error) {
	if !w.config.Enabled {
		return w.writer.Write(p)
	}

	// slog reuses its buffer after Write returns.
	data := make([]byte, len(p))
	copy(data, p)

	if w.config.DropOnFull {
		select {
		case w.buffer <- data:
		default:
			if w.config.OnDrop != nil {
				w.config.OnDrop(1)
			}
		}
		return len(p), nil
	}

	select {
	case w.buffer <- data:
	case <-w.done:
		return 0, io.ErrClosedPipe
	}
	return len(p), nil
}

func (w *AsyncWriter) worker() {
	defer w.wg.Done()
	for {
		select {
		case <-w.done:
			w.drain()
			return
		case data := <-w.buffer:
			_, _ = w.writer.Write(data)
		}
	}
}

func (w *AsyncWriter) drain() {
	for {
		select {
		case data := <-w.buffer:
			_, _ = w.writer.Write(data)
		default:
			return
		}
	}
}

// Flush waits until the queue is empty or the timeout passes.
func (w *AsyncWriter) Flush(timeout time.Duration) bool {
	if !w.config.Enabled {
		return true
	}
	deadline := time.Now().Add(timeout)
	for len(w.buffer) > 0 {
		if time.Now().After(deadline) {
			return false
		}
		time.Sleep(time.Millisecond)
	}
	return true
}

// Close stops the worker after writing everything queued. Safe to call twice.
func (w *AsyncWriter) Close() error {
	if !w.config.Enabled {
		return nil
	}
	w.once.Do(func() {
		close(w.done)
		w.wg.Wait()
	})
	return nil
}
