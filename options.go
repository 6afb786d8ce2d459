package geotile

import (
	"maps"

	"github.com/hupe1980/geotile/blobstore"
	"github.com/hupe1980/geotile/layer"
)

const (
	// DefaultMaxTiles bounds the resident non-root tiles.
	DefaultMaxTiles = 4096
	// DefaultMaxLayerBytes bounds resident layer payload across all kinds.
	DefaultMaxLayerBytes = 256 << 20
	// DefaultLineSetBudget caps one line-set payload per tile.
	DefaultLineSetBudget = 256 << 10
	// DefaultMaxLevel is the deepest level a root is split to.
	DefaultMaxLevel = 16
)

type options struct {
	dir              string
	store            blobstore.Store
	maxTiles         int
	maxLayerBytes    int64
	budgets          map[layer.Kind]int64
	maxLevel         int
	compression      layer.Compression
	ioLimit          int64
	persistWorkers   int64
	memoryLimit      int64
	logger           *Logger
	metricsCollector MetricsCollector
}

func defaultOptions() options {
	return options{
		maxTiles:         DefaultMaxTiles,
		maxLayerBytes:    DefaultMaxLayerBytes,
		budgets:          map[layer.Kind]int64{layer.KindLineSet: DefaultLineSetBudget},
		maxLevel:         DefaultMaxLevel,
		compression:      layer.CompressionLZ4,
		persistWorkers:   4,
		logger:           NoopLogger(),
		metricsCollector: NoopMetricsCollector{},
	}
}

// Option configures Open.
type Option func(*options)

// WithDir stores tiles below dir on the local file system.
func WithDir(dir string) Option {
	return func(o *options) {
		o.dir = dir
	}
}

// WithBlobStore stores tiles in s, for example an S3, MinIO or Redis
// backend. It takes precedence over WithDir.
func WithBlobStore(s blobstore.Store) Option {
	return func(o *options) {
		o.store = s
	}
}

// WithMaxTiles bounds the resident non-root tiles. Roots always stay
// resident.
func WithMaxTiles(n int) Option {
	return func(o *options) {
		o.maxTiles = n
	}
}

// WithMaxLayerBytes bounds the resident layer payload across all kinds.
// If 0, only WithMemoryLimit bounds it.
func WithMaxLayerBytes(n int64) Option {
	return func(o *options) {
		o.maxLayerBytes = n
	}
}

// WithLayerBudget caps the payload of one tile layer of kind k. A tile
// whose layer would exceed it splits, and its summary is reduced to fit.
// A budget of 0 removes the cap.
func WithLayerBudget(k layer.Kind, bytes int64) Option {
	return func(o *options) {
		o.budgets = maps.Clone(o.budgets)
		o.budgets[k] = bytes
	}
}

// WithMaxLevel sets the deepest level a root is split to.
func WithMaxLevel(level int) Option {
	return func(o *options) {
		o.maxLevel = level
	}
}

// WithCompression selects the compression of line-set payloads.
//
//   - layer.CompressionLZ4: default, fast reads.
//   - layer.CompressionZSTD: smaller payloads for cold storage.
//   - layer.CompressionNone: raw.
func WithCompression(c layer.Compression) Option {
	return func(o *options) {
		o.compression = c
	}
}

// WithIOLimit caps persistence writes at bytesPerSec. If 0, unlimited.
func WithIOLimit(bytesPerSec int64) Option {
	return func(o *options) {
		o.ioLimit = bytesPerSec
	}
}

// WithPersistConcurrency sets how many roots PersistAll writes in
// parallel.
func WithPersistConcurrency(n int) Option {
	return func(o *options) {
		o.persistWorkers = int64(n)
	}
}

// WithMemoryLimit evicts layer payloads whenever the resident payload
// exceeds bytes, including before new payloads are loaded.
func WithMemoryLimit(bytes int64) Option {
	return func(o *options) {
		o.memoryLimit = bytes
	}
}

// WithMetricsCollector configures a metrics collector for monitoring operations.
// Pass nil to disable metrics collection.
//
// Example with BasicMetricsCollector:
//
//	metrics := &geotile.BasicMetricsCollector{}
//	st, _ := geotile.Open(ctx, geotile.WithDir("./tiles"), geotile.WithMetricsCollector(metrics))
//	// ... use st ...
//	stats := metrics.GetStats()
//	fmt.Printf("Queries: %d, Avg latency: %dns\n", stats.QueryCount, stats.QueryAvgNanos)
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		if mc == nil {
			mc = NoopMetricsCollector{}
		}
		o.metricsCollector = mc
	}
}

// WithLogger configures structured logging for operations.
// Pass nil to disable logging.
//
// Example with JSON logging:
//
//	logger := geotile.NewJSONLogger(slog.LevelInfo)
//	st, _ := geotile.Open(ctx, geotile.WithDir("./tiles"), geotile.WithLogger(logger))
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		if logger == nil {
			logger = NoopLogger()
		}
		o.logger = logger
	}
}
