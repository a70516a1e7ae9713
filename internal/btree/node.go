package btree

import (
	"encoding/binary"

	"github.com/hupe1980/imcs/internal/page"
)

// Node layout. Every page starts with a header:
//
//	[u8 type][u8 pad][u16 n][12 reserved]
//
// A leaf stores n elements of the column's element width after the header.
// An internal node stores n entries of [u32 child][u64 subtree count].
const (
	headerSize = 16
	entrySize  = 12

	typeLeaf     = 1
	typeInternal = 2
)

type entry struct {
	child page.ID
	count int64
}

func nodeType(frame []byte) byte { return frame[0] }

func nodeLen(frame []byte) int { return int(binary.LittleEndian.Uint16(frame[2:])) }

func setNodeLen(frame []byte, n int) { binary.LittleEndian.PutUint16(frame[2:], uint16(n)) }

func initNode(frame []byte, typ byte) {
	clear(frame[:headerSize])
	frame[0] = typ
}

func readEntry(frame []byte, i int) entry {
	off := headerSize + i*entrySize
	return entry{
		child: page.ID(binary.LittleEndian.Uint32(frame[off:])),
		count: int64(binary.LittleEndian.Uint64(frame[off+4:])),
	}
}

func writeEntry(frame []byte, i int, e entry) {
	off := headerSize + i*entrySize
	binary.LittleEndian.PutUint32(frame[off:], uint32(e.child))
	binary.LittleEndian.PutUint64(frame[off+4:], uint64(e.count))
}

// readEntries copies the entries of an internal node.
func readEntries(frame []byte) []entry {
	n := nodeLen(frame)
	out := make([]entry, n)
	for i := range out {
		out[i] = readEntry(frame, i)
	}
	return out
}

func writeEntries(frame []byte, ents []entry) {
	setNodeLen(frame, len(ents))
	for i, e := range ents {
		writeEntry(frame, i, e)
	}
}

func leafElems(frame []byte, w int) []byte {
	return frame[headerSize : headerSize+nodeLen(frame)*w]
}
