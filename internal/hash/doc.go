// Package hash provides the CRC32-Castagnoli checksums that guard disk page
// frames and snapshot streams.
//
//	sum := hash.CRC32C(frame)
//
//	h := hash.NewCRC32C()
//	h.Write(block1)
//	h.Write(block2)
//	sum = h.Sum32()
//
// Go's crc32 package uses SSE4.2 or the ARM CRC extension when available.
package hash
