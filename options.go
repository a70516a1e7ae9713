package imcs

import (
	"log/slog"

	"github.com/hupe1980/imcs/internal/fs"
)

type options struct {
	cfg              Config
	metricsCollector MetricsCollector
	logger           *Logger
	dictionary       Dictionary
	loader           Loader
	fs               fs.FileSystem
}

// Option configures Open.
//
// Options are applied in order on top of DefaultConfig, so WithConfig
// should come first when combined with single-field options.
type Option func(*options)

// WithConfig replaces the whole configuration, e.g. one read by LoadConfig.
func WithConfig(cfg Config) Option {
	return func(o *options) {
		o.cfg = cfg
	}
}

// WithPageSize sets the page size in bytes.
func WithPageSize(size int) Option {
	return func(o *options) {
		o.cfg.PageSize = size
	}
}

// WithTileSize sets the number of elements per operator tile.
func WithTileSize(n int) Option {
	return func(o *options) {
		o.cfg.TileSize = n
	}
}

// WithWorkers sizes the parallel worker pool.
func WithWorkers(n int) Option {
	return func(o *options) {
		o.cfg.Workers = n
	}
}

// WithMemoryBudget caps page and query arena memory in bytes.
func WithMemoryBudget(bytes int64) Option {
	return func(o *options) {
		o.cfg.MemoryBudget = bytes
	}
}

// WithDiskPath keeps pages in the file at path behind a cache of
// cacheSize frames.
//
// Example:
//
//	s, _ := imcs.Open(imcs.WithDiskPath("./data/pages", 4096), imcs.WithDurable(true))
func WithDiskPath(path string, cacheSize int) Option {
	return func(o *options) {
		o.cfg.DiskPath = path
		if cacheSize > 0 {
			o.cfg.CacheSize = cacheSize
		}
	}
}

// WithPageCompression selects disk frame compression: none, lz4 or zstd.
func WithPageCompression(name string) Option {
	return func(o *options) {
		o.cfg.PageCompression = name
	}
}

// WithDurable flushes pages and the catalog when an Update commits.
func WithDurable(durable bool) Option {
	return func(o *options) {
		o.cfg.Durable = durable
	}
}

// WithIORateLimit throttles disk pager IO.
func WithIORateLimit(bytesPerSec int64) Option {
	return func(o *options) {
		o.cfg.IOBytesPerSec = bytesPerSec
	}
}

// WithIsolation selects the lock-hold policy.
func WithIsolation(i Isolation) Option {
	return func(o *options) {
		o.cfg.Isolation = i
	}
}

// WithNullSubstitution lets Append replace nil values instead of failing.
func WithNullSubstitution(enabled bool) Option {
	return func(o *options) {
		o.cfg.SubstituteNulls = enabled
	}
}

// WithDictionary sets the dictionary varchar codes are checked against
// and resolved through. capacity and codeWidth bound the code space.
func WithDictionary(d Dictionary, capacity int64, codeWidth int) Option {
	return func(o *options) {
		o.dictionary = d
		o.cfg.DictionaryCapacity = capacity
		o.cfg.CodeWidth = codeWidth
	}
}

// WithLoader installs the autoload hook and enables autoload.
func WithLoader(l Loader) Option {
	return func(o *options) {
		o.loader = l
		o.cfg.Autoload = l != nil
	}
}

// WithMetricsCollector configures a metrics collector for monitoring operations.
// Pass nil to disable metrics collection.
//
// Example with BasicMetricsCollector:
//
//	metrics := &imcs.BasicMetricsCollector{}
//	s, _ := imcs.Open(imcs.WithMetricsCollector(metrics))
//	// ... use s ...
//	stats := metrics.GetStats()
//	fmt.Printf("Appends: %d, values: %d\n", stats.AppendCount, stats.AppendValues)
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		o.metricsCollector = mc
	}
}

// WithLogger configures structured logging for operations.
// Pass nil to disable logging.
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithLogLevel creates a text logger with the specified level and sets it.
// Convenience wrapper for WithLogger(NewTextLogger(level)).
func WithLogLevel(level slog.Level) Option {
	return func(o *options) {
		o.logger = NewTextLogger(level)
	}
}

// withFileSystem swaps the file system under the disk pager and catalog.
func withFileSystem(fsys fs.FileSystem) Option {
	return func(o *options) {
		o.fs = fsys
	}
}

func applyOptions(optFns []Option) options {
	o := options{
		cfg:              DefaultConfig(),
		metricsCollector: NoopMetricsCollector{},
		logger:           NoopLogger(),
		fs:               fs.Default,
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	if o.metricsCollector == nil {
		o.metricsCollector = NoopMetricsCollector{}
	}
	if o.logger == nil {
		o.logger = NoopLogger()
	}
	return o
}
