package logger

import (
	"log/slog"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	logsSampledTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "toolstudio",
			Subsystem: "logger",
			Name:      "logs_sampled_total",
			Help:      "Records written after passing the sampling threshold",
		},
		[]string{"level"},
	)

	logsDroppedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "toolstudio",
			Subsystem: "logger",
			Name:      "logs_dropped_total",
			Help:      "Records dropped by sampling",
		},
		[]string{"level"},
	)

	registerOnce sync.Once
)

// RegisterMetrics registers logger metrics once. A nil registry means the
// default Prometheus registerer.
func RegisterMetrics(registry prometheus.Registerer) {
	registerOnce.Do(func() {
		if registry == nil {
			registry = prometheus.DefaultRegisterer
		}
		_ = registry.Register(logsSampledTotal)
		_ = registry.Register(logsDroppedTotal)
	})
}

func levelLabel(level slog.Level) string {
	switch {
	case level >= slog.LevelError:
		return "error"
	case level >= slog.LevelWarn:
		return "warn"
	case level >= slog.LevelInfo:
		return "info"
	default:
		return "debug"
	}
}
