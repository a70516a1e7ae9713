package imcs

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	json "github.com/goccy/go-json"

	"github.com/hupe1980/imcs/internal/btree"
	"github.com/hupe1980/imcs/internal/errs"
	"github.com/hupe1980/imcs/internal/fs"
	"github.com/hupe1980/imcs/internal/page"
	"github.com/hupe1980/imcs/internal/parallel"
	"github.com/hupe1980/imcs/internal/resource"
	"github.com/hupe1980/imcs/internal/wire"
)

// catalogVersion is bumped on incompatible catalog changes.
const catalogVersion = 1

// catalog is the JSON document persisted next to a page file.
type catalog struct {
	Version int          `json:"version"`
	Pages   page.Meta    `json:"pages"`
	Columns []btree.Meta `json:"columns"`
}

// Store is the context object owning the page arena, the free list, the
// store-wide lock and the worker pool. All access goes through
// transactions started with View, Update or Begin.
type Store struct {
	mu sync.RWMutex // the store lock

	cfg     Config
	opts    options
	logger  *Logger
	metrics MetricsCollector

	res     *resource.Controller
	pager   page.Pager
	disk    *page.Disk // nil for memory stores
	columns map[string]*btree.Column

	poolMu sync.Mutex
	pool   *parallel.Pool

	closed atomic.Bool
}

// Open creates a store. With a disk path, an existing page file and its
// catalog are reopened.
func Open(optFns ...Option) (*Store, error) {
	o := applyOptions(optFns)
	if err := o.cfg.Validate(); err != nil {
		return nil, err
	}

	s := &Store{
		cfg:     o.cfg,
		opts:    o,
		logger:  o.logger,
		metrics: o.metricsCollector,
		columns: make(map[string]*btree.Column),
		res: resource.NewController(resource.Config{
			MemoryBudget:  o.cfg.MemoryBudget,
			WorkerSlots:   1,
			IOBytesPerSec: o.cfg.IOBytesPerSec,
		}),
	}

	if s.cfg.DiskPath == "" {
		p, err := page.NewMemory(s.cfg.PageSize, s.res)
		if err != nil {
			return nil, err
		}
		s.pager = p
		return s, nil
	}

	if err := s.openDisk(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) catalogPath() string { return s.cfg.DiskPath + ".catalog" }

func (s *Store) openDisk() error {
	comp, err := wire.ParseCompression(s.cfg.PageCompression)
	if err != nil {
		return err
	}
	opts := page.DiskOptions{
		FS:          s.opts.fs,
		PageSize:    s.cfg.PageSize,
		CacheSize:   s.cfg.CacheSize,
		Compression: comp,
		Resources:   s.res,
	}

	var cat *catalog
	data, err := fs.ReadFile(s.opts.fs, s.catalogPath())
	switch {
	case err == nil:
		cat = &catalog{}
		if err := json.Unmarshal(data, cat); err != nil {
			return fmt.Errorf("%w: catalog: %w", ErrCorrupt, err)
		}
		if cat.Version != catalogVersion {
			return errs.Invalid("catalog version %d, want %d", cat.Version, catalogVersion)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return fmt.Errorf("read catalog: %w", err)
	}

	var meta *page.Meta
	if cat != nil {
		meta = &cat.Pages
	}
	d, err := page.OpenDisk(s.cfg.DiskPath, opts, meta)
	if err != nil {
		return translateError(err)
	}
	s.disk, s.pager = d, d
	s.cfg.PageSize = d.PageSize()

	if cat == nil {
		return nil
	}
	for _, m := range cat.Columns {
		c, err := btree.Open(d, m)
		if err != nil {
			_ = d.Close()
			return err
		}
		s.columns[m.Key] = c
	}
	return nil
}

// Config returns the effective configuration.
func (s *Store) Config() Config { return s.cfg }

// Logger returns the store logger.
func (s *Store) Logger() *Logger { return s.logger }

// Close flushes a disk store, stops the worker pool and releases every page.
// Transactions must not be running.
func (s *Store) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var errList []error
	if s.disk != nil {
		if err := s.flushLocked(context.Background()); err != nil {
			errList = append(errList, err)
		}
	}

	s.poolMu.Lock()
	if s.pool != nil {
		s.pool.Close()
		s.pool = nil
	}
	s.poolMu.Unlock()

	if err := s.pager.Close(); err != nil {
		errList = append(errList, err)
	}
	s.columns = nil
	return errors.Join(errList...)
}

func (s *Store) checkOpen() error {
	if s.closed.Load() {
		return errs.New(errs.CodeStoreNotInitialized, "store is closed")
	}
	return nil
}

// workerPool returns the pool, starting it on first use.
func (s *Store) workerPool() (*parallel.Pool, error) {
	s.poolMu.Lock()
	defer s.poolMu.Unlock()
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	if s.pool == nil {
		s.pool = parallel.NewPool(s.cfg.Workers)
	}
	return s.pool, nil
}

// View runs fn in a read-only transaction.
func (s *Store) View(ctx context.Context, fn func(tx *Tx) error) error {
	return s.run(ctx, false, fn)
}

// Update runs fn in a read-write transaction and commits it if fn returns
// nil.
func (s *Store) Update(ctx context.Context, fn func(tx *Tx) error) error {
	return s.run(ctx, true, fn)
}

func (s *Store) run(ctx context.Context, writable bool, fn func(tx *Tx) error) error {
	tx, err := s.Begin(writable)
	if err != nil {
		return err
	}
	defer func() {
		if !tx.done {
			_ = tx.Rollback()
		}
	}()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// flushLocked writes dirty pages and the catalog. The caller holds the
// lock exclusively, or shared while no writer can run.
func (s *Store) flushLocked(ctx context.Context) error {
	if s.disk == nil {
		return nil
	}
	start := time.Now()
	dirty := int64(s.disk.CacheStats().Dirty)

	err := s.disk.Flush(ctx)
	if err == nil {
		err = s.writeCatalog()
	}
	err = translateError(err)

	s.metrics.RecordFlush(time.Since(start), err)
	s.logger.LogFlush(ctx, dirty, time.Since(start), err)
	return err
}

func (s *Store) writeCatalog() error {
	cat := catalog{Version: catalogVersion, Pages: s.disk.Meta()}
	for _, key := range s.keys() {
		cat.Columns = append(cat.Columns, s.columns[key].Meta())
	}
	data, err := json.Marshal(cat)
	if err != nil {
		return err
	}
	return fs.WriteFile(s.opts.fs, s.catalogPath(), data, 0o644)
}

// keys returns the column keys in sorted order.
func (s *Store) keys() []string {
	keys := make([]string, 0, len(s.columns))
	for k := range s.columns {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// column returns the column stored under key.
func (s *Store) column(key string) (*btree.Column, error) {
	c, ok := s.columns[key]
	if !ok {
		return nil, errs.New(errs.CodeColumnNotFound, "%q", key)
	}
	return c, nil
}

// Stats describes store usage.
type Stats struct {
	Columns  int
	Elements int64

	PageSize    int
	PagesUsed   int64
	PagesFree   int64
	PagesCarved int64

	CacheHits      int64
	CacheMisses    int64
	CacheEvictions int64
	CacheResident  int
	CacheDirty     int

	MemoryUsage  int64
	MemoryPeak   int64
	MemoryBudget int64

	Workers int
}

// Stats returns current usage counters.
func (s *Store) Stats() (Stats, error) {
	if err := s.checkOpen(); err != nil {
		return Stats{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	ps := s.pager.Stats()
	st := Stats{
		Columns:      len(s.columns),
		PageSize:     ps.PageSize,
		PagesUsed:    ps.Used,
		PagesFree:    ps.Free,
		PagesCarved:  ps.Carved,
		MemoryUsage:  s.res.Usage(),
		MemoryPeak:   s.res.Peak(),
		MemoryBudget: s.res.Budget(),
		Workers:      s.cfg.Workers,
	}
	for _, c := range s.columns {
		st.Elements += c.Count()
	}
	if s.disk != nil {
		cs := s.disk.CacheStats()
		st.CacheHits, st.CacheMisses, st.CacheEvictions = cs.Hits, cs.Misses, cs.Evictions
		st.CacheResident, st.CacheDirty = cs.Resident, cs.Dirty
	}
	return st, nil
}
