package imcs

import (
	"fmt"
	"os"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/hupe1980/imcs/internal/errs"
	"github.com/hupe1980/imcs/internal/page"
	"github.com/hupe1980/imcs/internal/wire"
	"github.com/hupe1980/imcs/iterator"
)

// Isolation controls how long the store lock is held.
type Isolation uint8

const (
	// PerOperation takes the lock around every transaction call.
	PerOperation Isolation = iota
	// PerTransaction holds the lock from Begin until Commit or Rollback.
	PerTransaction
)

func (i Isolation) String() string {
	switch i {
	case PerOperation:
		return "operation"
	case PerTransaction:
		return "transaction"
	}
	return fmt.Sprintf("isolation(%d)", uint8(i))
}

// ParseIsolation returns the policy named by s.
func ParseIsolation(s string) (Isolation, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "operation", "per_operation":
		return PerOperation, nil
	case "transaction", "per_transaction":
		return PerTransaction, nil
	}
	return 0, errs.New(errs.CodeSyntaxError, "unknown isolation %q", s)
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (i *Isolation) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	v, err := ParseIsolation(s)
	if err != nil {
		return err
	}
	*i = v
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (i Isolation) MarshalYAML() (any, error) { return i.String(), nil }

// Config holds the settings fixed when a Store is opened.
type Config struct {
	// PageSize is the size of a column page in bytes.
	PageSize int `yaml:"page_size"`
	// TileSize is the number of elements an operator produces per Next.
	TileSize int `yaml:"tile_size"`
	// Workers sizes the parallel worker pool. 0 uses GOMAXPROCS.
	Workers int `yaml:"workers"`
	// MemoryBudget caps page and query arena memory in bytes. 0 is unlimited.
	MemoryBudget int64 `yaml:"memory_budget"`

	// DiskPath enables disk-backed pages stored in this file. The column
	// catalog is kept next to it.
	DiskPath string `yaml:"disk_path"`
	// CacheSize is the number of page frames the disk cache keeps resident.
	CacheSize int `yaml:"cache_size"`
	// PageCompression compresses disk page frames: none, lz4 or zstd.
	PageCompression string `yaml:"page_compression"`
	// IOBytesPerSec throttles disk reads and writes. 0 is unlimited.
	IOBytesPerSec int64 `yaml:"io_bytes_per_sec"`
	// Durable flushes dirty pages and the catalog on every Update commit.
	Durable bool `yaml:"durable"`

	// DictionaryCapacity bounds the varchar code space. 0 only applies the
	// code width limit.
	DictionaryCapacity int64 `yaml:"dictionary_capacity"`
	// CodeWidth is the varchar code width in bytes, 2 or 4.
	CodeWidth int `yaml:"code_width"`

	// SubstituteNulls replaces a nil value with the previous element of the
	// column (or the zero value) instead of failing.
	SubstituteNulls bool `yaml:"substitute_nulls"`
	// Isolation selects the lock-hold policy.
	Isolation Isolation `yaml:"isolation"`
	// Autoload invokes the Loader when a read misses.
	Autoload bool `yaml:"autoload"`
}

// DefaultConfig returns the configuration used when no option overrides it.
func DefaultConfig() Config {
	return Config{
		PageSize:        page.DefaultSize,
		TileSize:        iterator.DefaultTileSize,
		Workers:         runtime.GOMAXPROCS(0),
		CacheSize:       1024,
		PageCompression: "none",
		CodeWidth:       4,
		Isolation:       PerOperation,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if err := page.ValidateSize(c.PageSize); err != nil {
		return err
	}
	if c.TileSize <= 0 {
		return errs.Invalid("tile size %d", c.TileSize)
	}
	if c.Workers < 0 {
		return errs.Invalid("workers %d", c.Workers)
	}
	if c.MemoryBudget < 0 || c.IOBytesPerSec < 0 || c.DictionaryCapacity < 0 {
		return errs.Invalid("negative limit")
	}
	if c.CodeWidth != 2 && c.CodeWidth != 4 {
		return errs.Invalid("code width %d, want 2 or 4", c.CodeWidth)
	}
	if _, err := wire.ParseCompression(c.PageCompression); err != nil {
		return err
	}
	if c.Isolation > PerTransaction {
		return errs.Invalid("isolation %d", c.Isolation)
	}
	return nil
}

// LoadConfig reads a YAML configuration file. ${VAR} references are
// replaced with environment variables before parsing; unset keys keep their
// DefaultConfig value.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path is chosen by the operator
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	return ParseConfig(data)
}

// ParseConfig parses YAML configuration data.
func ParseConfig(data []byte) (Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal([]byte(substituteEnv(string(data))), &cfg); err != nil {
		return Config{}, errs.Wrap(err, errs.CodeSyntaxError, "parse config")
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// substituteEnv replaces ${NAME} with the value of the environment variable
// NAME. A bare $ is left alone.
func substituteEnv(content string) string {
	var b strings.Builder
	for {
		start := strings.Index(content, "${")
		if start == -1 {
			break
		}
		end := strings.IndexByte(content[start:], '}')
		if end == -1 {
			break
		}
		end += start
		b.WriteString(content[:start])
		b.WriteString(os.Getenv(content[start+2 : end]))
		content = content[end+1:]
	}
	b.WriteString(content)
	return b.String()
}
