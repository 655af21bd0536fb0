package logger

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// SamplingConfig configures log sampling for noisy, repeated messages.
type SamplingConfig struct {
	Enabled bool

	// Tick is the window after which counters reset (default 1s).
	Tick time.Duration

	// Threshold identical records per tick are always written (default 100).
	Threshold uint64

	// Rate applies past the threshold for info and debug records.
	Rate float64

	// ErrorRate applies past the threshold for warn and error records.
	ErrorRate float64

	// MaxKeys bounds the number of tracked messages (default 10000).
	MaxKeys int

	// NeverSample lists message prefixes that are always written.
	NeverSample []string

	// EnableMetrics counts sampled and dropped records in Prometheus.
	EnableMetrics bool
}

const (
	defaultSamplingTick      = time.Second
	defaultSamplingThreshold = 100
	defaultSamplingMaxKeys   = 10000
)

type samplingState struct {
	counters  sync.Map // level:message -> *atomic.Uint64
	keys      atomic.Int64
	lastReset atomic.Int64
}

type samplingHandler struct {
	handler slog.Handler
	config  SamplingConfig
	state   *samplingState
}

// NewSamplingHandler wraps h. With sampling disabled h is returned unchanged.
func NewSamplingHandler(h slog.Handler, cfg SamplingConfig) slog.Handler {
	if !cfg.Enabled {
		return h
	}
	if cfg.Tick <= 0 {
		cfg.Tick = defaultSamplingTick
	}
	if cfg.Threshold == 0 {
		cfg.Threshold = defaultSamplingThreshold
	}
	if cfg.MaxKeys <= 0 {
		cfg.MaxKeys = defaultSamplingMaxKeys
	}
	state := &samplingState{}
	state.lastReset.Store(time.Now().UnixNano())
	return &samplingHandler{handler: h, config: cfg, state: state}
}

func (h *samplingHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.handler.Enabled(ctx, level)
}

func (h *samplingHandler) Handle(ctx context.Context, r slog.Record) error {
	for _, prefix := range h.config.NeverSample {
		if strings.HasPrefix(r.Message, prefix) {
			return h.handler.Handle(ctx, r)
		}
	}

	h.maybeReset()

	key := r.Level.String() + ":" + r.Message
	val, ok := h.state.counters.Load(key)
	if !ok {
		if h.state.keys.Load() >= int64(h.config.MaxKeys) {
			return h.handler.Handle(ctx, r)
		}
		var loaded bool
		val, loaded = h.state.counters.LoadOrStore(key, new(atomic.Uint64))
		if !loaded {
			h.state.keys.Add(1)
		}
	}
	count := val.(*atomic.Uint64).Add(1)
	if count <= h.config.Threshold {
		return h.handler.Handle(ctx, r)
	}

	rate := h.config.Rate
	if r.Level >= slog.LevelWarn {
		rate = h.config.ErrorRate
	}
	if keep(count, rate) {
		if h.config.EnableMetrics {
			logsSampledTotal.WithLabelValues(levelLabel(r.Level)).Inc()
		}
		return h.handler.Handle(ctx, r)
	}
	if h.config.EnableMetrics {
		logsDroppedTotal.WithLabelValues(levelLabel(r.Level)).Inc()
	}
	return nil
}

func (h *samplingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &samplingHandler{handler: h.handler.WithAttrs(attrs), config: h.config, state: h.state}
}

func (h *samplingHandler) WithGroup(name string) slog.Handler {
	return &samplingHandler{handler: h.handler.WithGroup(name), config: h.config, state: h.state}
}

func (h *samplingHandler) maybeReset() {
	now := time.Now().UnixNano()
	last := h.state.lastReset.Load()
	if now-last < h.config.Tick.Nanoseconds() {
		return
	}
	if !h.state.lastReset.CompareAndSwap(last, now) {
		return
	}
	h.state.counters.Range(func(key, _ any) bool {
		h.state.counters.Delete(key)
		return true
	})
	h.state.keys.Store(0)
}

// keep is deterministic so that replicas sample the same records.
func keep(count uint64, rate float64) bool {
	if rate >= 1.0 {
		return true
	}
	if rate <= 0.0 {
		return false
	}
	return count%uint64(1.0/rate) == 0
}
