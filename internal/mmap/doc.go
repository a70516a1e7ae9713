// Package mmap maps memory outside the Go heap.
//
// The page arena carves column pages out of anonymous chunks from MapAnon
// and hands their memory back to the kernel with Discard when it is reset.
// The local blob store serves snapshot reads from MapFile.
package mmap
