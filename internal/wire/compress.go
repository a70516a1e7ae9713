package wire

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"

	"github.com/hupe1980/imcs/internal/errs"
)

// Compression selects a block compression algorithm.
type Compression uint8

const (
	CompressionNone Compression = 0
	// CompressionLZ4 is fast; used for hot page frames.
	CompressionLZ4 Compression = 1
	// CompressionZSTD compresses better; used for snapshots.
	CompressionZSTD Compression = 2
)

func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionLZ4:
		return "lz4"
	case CompressionZSTD:
		return "zstd"
	}
	return fmt.Sprintf("compression(%d)", uint8(c))
}

// ParseCompression parses "none", "lz4" or "zstd".
func ParseCompression(s string) (Compression, error) {
	switch strings.ToLower(s) {
	case "", "none":
		return CompressionNone, nil
	case "lz4":
		return CompressionLZ4, nil
	case "zstd":
		return CompressionZSTD, nil
	}
	return CompressionNone, errs.New(errs.CodeSyntaxError, "unknown compression %q", s)
}

// ErrCorrupt is returned when a compressed block does not decode.
var ErrCorrupt = errors.New("wire: corrupt block")

var (
	zstdEncoders sync.Pool
	zstdDecoders sync.Pool
)

func getEncoder() *zstd.Encoder {
	if v := zstdEncoders.Get(); v != nil {
		return v.(*zstd.Encoder)
	}
	enc, _ := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	return enc
}

func getDecoder() *zstd.Decoder {
	if v := zstdDecoders.Get(); v != nil {
		return v.(*zstd.Decoder)
	}
	dec, _ := zstd.NewReader(nil)
	return dec
}

// Compress compresses src with c and returns the encoded bytes. If c is
// CompressionNone or compression does not shrink src below limit bytes, it
// returns src unchanged and CompressionNone.
func Compress(c Compression, src []byte, limit int) (Compression, []byte, error) {
	if len(src) == 0 {
		return CompressionNone, src, nil
	}
	var out []byte
	switch c {
	case CompressionNone:
		return CompressionNone, src, nil
	case CompressionLZ4:
		buf := make([]byte, lz4.CompressBlockBound(len(src)))
		n, err := lz4.CompressBlock(src, buf, nil)
		if err != nil {
			return CompressionNone, nil, err
		}
		// n == 0 means incompressible
		out = buf[:n]
	case CompressionZSTD:
		enc := getEncoder()
		out = enc.EncodeAll(src, nil)
		zstdEncoders.Put(enc)
	default:
		return CompressionNone, nil, errs.Invalid("unknown compression %d", c)
	}
	if len(out) == 0 || len(out) >= limit {
		return CompressionNone, src, nil
	}
	return c, out, nil
}

// Decompress decodes src into dst, which must have the exact uncompressed size.
func Decompress(c Compression, src, dst []byte) error {
	switch c {
	case CompressionNone:
		if len(src) != len(dst) {
			return ErrCorrupt
		}
		copy(dst, src)
		return nil
	case CompressionLZ4:
		n, err := lz4.UncompressBlock(src, dst)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrCorrupt, err)
		}
		if n != len(dst) {
			return ErrCorrupt
		}
		return nil
	case CompressionZSTD:
		dec := getDecoder()
		defer zstdDecoders.Put(dec)
		out, err := dec.DecodeAll(src, dst[:0])
		if err != nil {
			return fmt.Errorf("%w: %v", ErrCorrupt, err)
		}
		if len(out) != len(dst) {
			return ErrCorrupt
		}
		return nil
	}
	return errs.Invalid("unknown compression %d", c)
}
