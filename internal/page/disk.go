package page

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/hupe1980/imcs/internal/cache"
	"github.com/hupe1980/imcs/internal/conv"
	"github.com/hupe1980/imcs/internal/fs"
	"github.com/hupe1980/imcs/internal/hash"
	"github.com/hupe1980/imcs/internal/resource"
	"github.com/hupe1980/imcs/internal/wire"
)

// FrameHeaderSize precedes every page on disk:
//
//	[u32 crc32c(payload)][u8 compression][3 pad][u32 payload len][u32 page id]
const FrameHeaderSize = 16

// MinCacheSize is the smallest number of cached frames a Disk pager keeps.
const MinCacheSize = 16

// ErrChecksum is returned when a frame read from disk is corrupt.
var ErrChecksum = errors.New("page: frame checksum mismatch")

// Meta is the allocation state persisted alongside a page file.
type Meta struct {
	PageSize int   `json:"page_size"`
	Carved   int64 `json:"carved"`
	Free     int64 `json:"free"`
	FreeHead ID    `json:"free_head"`
}

// DiskOptions configures a Disk pager.
type DiskOptions struct {
	FS          fs.FileSystem
	PageSize    int
	CacheSize   int // frames
	Compression wire.Compression
	Resources   *resource.Controller
	// FlushParallelism bounds concurrent frame writes during Flush.
	FlushParallelism int
}

// Disk is a pager backed by a file of fixed-size slots.
type Disk struct {
	mu    sync.Mutex
	opts  DiskOptions
	file  fs.File
	slot  int64
	cache *cache.PageCache
	fl    freeList
}

// OpenDisk opens or creates the page file at path. meta restores the
// allocation state of an existing file and must be nil for a new one.
func OpenDisk(path string, opts DiskOptions, meta *Meta) (*Disk, error) {
	if opts.FS == nil {
		opts.FS = fs.Default
	}
	if meta != nil {
		opts.PageSize = meta.PageSize
	}
	if err := ValidateSize(opts.PageSize); err != nil {
		return nil, err
	}
	opts.CacheSize = max(opts.CacheSize, MinCacheSize)
	if opts.FlushParallelism <= 0 {
		opts.FlushParallelism = 4
	}

	flag := os.O_RDWR | os.O_CREATE
	if meta == nil {
		flag |= os.O_TRUNC
	}
	f, err := opts.FS.OpenFile(path, flag, 0o644)
	if err != nil {
		return nil, err
	}

	d := &Disk{
		opts: opts,
		file: f,
		slot: int64(opts.PageSize + FrameHeaderSize),
		fl:   newFreeList(),
	}
	d.cache = cache.NewPageCache(opts.CacheSize, d.writeFrame, opts.Resources)

	if meta != nil {
		if err := d.restore(meta); err != nil {
			f.Close()
			return nil, err
		}
	}
	return d, nil
}

func (d *Disk) restore(meta *Meta) error {
	d.fl.carved = meta.Carved
	for id := ID(1); int64(id) <= meta.Carved; id++ {
		d.fl.live.Set(uint(id))
	}
	// walk the free list to rebuild the live set
	for id, n := meta.FreeHead, int64(0); id != Nil; n++ {
		if n >= meta.Free || int64(id) > meta.Carved {
			return fmt.Errorf("page: free list inconsistent at page %d", id)
		}
		frame, err := d.fetch(id, false)
		if err != nil {
			return err
		}
		d.fl.live.Clear(uint(id))
		id = ID(binary.LittleEndian.Uint32(frame))
	}
	d.fl.head = meta.FreeHead
	d.fl.free = meta.Free
	return nil
}

// Meta returns the state to persist for a later OpenDisk.
func (d *Disk) Meta() Meta {
	d.mu.Lock()
	defer d.mu.Unlock()
	return Meta{PageSize: d.opts.PageSize, Carved: d.fl.carved, Free: d.fl.free, FreeHead: d.fl.head}
}

func (d *Disk) PageSize() int { return d.opts.PageSize }

func (d *Disk) Alloc() (ID, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.fl.head != Nil {
		frame, err := d.fetch(d.fl.head, true)
		if err != nil {
			return Nil, err
		}
		return d.fl.pop(frame), nil
	}
	id := ID(d.fl.carved + 1)
	if _, err := d.cache.Put(uint32(id), make([]byte, d.opts.PageSize), true); err != nil {
		return Nil, err
	}
	return d.fl.carve(), nil
}

func (d *Disk) Free(id ID) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.fl.check(id); err != nil {
		return err
	}
	frame, err := d.fetch(id, true)
	if err != nil {
		return err
	}
	d.fl.push(id, frame)
	return nil
}

func (d *Disk) Read(id ID) ([]byte, error) { return d.get(id, false) }

func (d *Disk) Write(id ID) ([]byte, error) { return d.get(id, true) }

func (d *Disk) get(id ID, dirty bool) ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.fl.check(id); err != nil {
		return nil, err
	}
	return d.fetch(id, dirty)
}

func (d *Disk) fetch(id ID, dirty bool) ([]byte, error) {
	if frame, ok := d.cache.Get(uint32(id)); ok {
		if !dirty || d.cache.MarkDirty(uint32(id)) {
			return frame, nil
		}
	}
	frame, err := d.readFrame(id)
	if err != nil {
		return nil, err
	}
	return d.cache.Put(uint32(id), frame, dirty)
}

func (d *Disk) readFrame(id ID) ([]byte, error) {
	buf := make([]byte, d.slot)
	if err := d.opts.Resources.WaitIO(context.Background(), len(buf)); err != nil {
		return nil, err
	}
	n, err := d.file.ReadAt(buf, int64(id-1)*d.slot)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	if n < FrameHeaderSize {
		return nil, fmt.Errorf("page %d: short frame (%d bytes)", id, n)
	}
	sum := binary.LittleEndian.Uint32(buf[0:])
	codec := wire.Compression(buf[4])
	size := int(binary.LittleEndian.Uint32(buf[8:]))
	if owner := ID(binary.LittleEndian.Uint32(buf[12:])); owner != id {
		return nil, fmt.Errorf("page %d: slot holds page %d: %w", id, owner, ErrChecksum)
	}
	if size > d.opts.PageSize || FrameHeaderSize+size > n {
		return nil, fmt.Errorf("page %d: payload of %d bytes: %w", id, size, ErrChecksum)
	}
	payload := buf[FrameHeaderSize : FrameHeaderSize+size]
	if hash.CRC32C(payload) != sum {
		return nil, fmt.Errorf("page %d: %w", id, ErrChecksum)
	}

	frame := make([]byte, d.opts.PageSize)
	if err := wire.Decompress(codec, payload, frame); err != nil {
		return nil, fmt.Errorf("page %d: %w", id, err)
	}
	return frame, nil
}

// writeFrame is the cache's write-back hook. It may run concurrently for
// different pages during Flush.
func (d *Disk) writeFrame(id uint32, frame []byte) error {
	codec, payload, err := wire.Compress(d.opts.Compression, frame, len(frame))
	if err != nil {
		return err
	}
	buf := make([]byte, FrameHeaderSize+len(payload))
	binary.LittleEndian.PutUint32(buf[0:], hash.CRC32C(payload))
	buf[4] = byte(codec)
	binary.LittleEndian.PutUint32(buf[8:], conv.Must[uint32](len(payload)))
	binary.LittleEndian.PutUint32(buf[12:], id)
	copy(buf[FrameHeaderSize:], payload)

	if err := d.opts.Resources.WaitIO(context.Background(), len(buf)); err != nil {
		return err
	}
	_, err = d.file.WriteAt(buf, int64(id-1)*d.slot)
	return err
}

func (d *Disk) Stats() Stats {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.fl.stats(d.opts.PageSize)
}

// CacheStats returns the frame cache counters.
func (d *Disk) CacheStats() cache.Stats { return d.cache.Stats() }

// Flush writes every dirty frame and syncs the file.
func (d *Disk) Flush(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.opts.Resources.AcquireSlot(ctx); err != nil {
		return err
	}
	defer d.opts.Resources.ReleaseSlot()

	if err := d.cache.Flush(ctx, d.opts.FlushParallelism); err != nil {
		return fmt.Errorf("flush pages: %w", err)
	}
	if err := d.file.Sync(); err != nil {
		return fmt.Errorf("sync pages: %w", err)
	}
	return nil
}

// Close drops the cache and closes the file without flushing.
func (d *Disk) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cache.Reset()
	return d.file.Close()
}
