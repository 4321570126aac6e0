// Package bufchunk implements the scatter/gather byte buffer used by every
// layer of the stack to prepend headers in place without moving payload
// (spec.md §4.A, design note §9 "Buffer chunking").
//
// The chunking style here is grounded on the teacher's raw-byte-view
// idiom: parse/parse.go's RawInetDiagMsg and netlink/netlink.go's
// RawNlMsgHdr are both "a []byte treated as a typed view, sliced rather
// than copied." Buffer generalizes that into a chain of such slices so
// that IP/TCP/Ethernet headers can each own a chunk while payload stays in
// place.
package bufchunk

// Chunk is a single contiguous region within a Buffer.
type Chunk struct {
	data []byte
}

// Len returns the chunk's length.
func (c *Chunk) Len() int { return len(c.data) }

// Buffer is an ordered sequence of Chunks forming one logical byte range.
// It is not safe for concurrent use; callers serialize access the same way
// the rest of the stack does, under netMutex.
type Buffer struct {
	chunks []Chunk
	size   int
}

// Alloc returns a new Buffer with a single zeroed chunk of the given size.
func Alloc(size int) *Buffer {
	b := &Buffer{}
	if size > 0 {
		b.chunks = append(b.chunks, Chunk{data: make([]byte, size)})
		b.size = size
	}
	return b
}

// FromBytes wraps an existing slice as a single-chunk Buffer without
// copying.
func FromBytes(p []byte) *Buffer {
	return &Buffer{chunks: []Chunk{{data: p}}, size: len(p)}
}

// TotalLength returns the number of bytes spanned by all chunks.
func (b *Buffer) TotalLength() int { return b.size }

// Append adds bytes as a new chunk at the end of the buffer (zero-copy:
// the slice is referenced, not duplicated).
func (b *Buffer) Append(p []byte) {
	if len(p) == 0 {
		return
	}
	b.chunks = append(b.chunks, Chunk{data: p})
	b.size += len(p)
}

// Concat appends length bytes of other, starting at offset, as new chunks
// referencing other's storage (zero-copy chain per spec.md §4.A).
func (b *Buffer) Concat(other *Buffer, offset, length int) {
	if length <= 0 {
		return
	}
	remainingOffset := offset
	remainingLength := length
	for i := range other.chunks {
		c := &other.chunks[i]
		if remainingOffset >= c.Len() {
			remainingOffset -= c.Len()
			continue
		}
		start := remainingOffset
		end := c.Len()
		if end-start > remainingLength {
			end = start + remainingLength
		}
		b.Append(c.data[start:end])
		remainingLength -= end - start
		remainingOffset = 0
		if remainingLength <= 0 {
			break
		}
	}
}

// locate finds the chunk index and in-chunk offset holding a given global
// offset. ok is false if offset is out of range.
func (b *Buffer) locate(offset int) (idx, inChunk int, ok bool) {
	if offset < 0 || offset >= b.size {
		return 0, 0, false
	}
	remaining := offset
	for i := range b.chunks {
		if remaining < b.chunks[i].Len() {
			return i, remaining, true
		}
		remaining -= b.chunks[i].Len()
	}
	return 0, 0, false
}

// At returns a slice into a single chunk starting at offset, truncated to
// that chunk's boundary. Returns nil if offset lies within a chunk
// boundary gap (never happens for a well-formed Buffer) or out of range.
func (b *Buffer) At(offset int) []byte {
	idx, inChunk, ok := b.locate(offset)
	if !ok {
		return nil
	}
	return b.chunks[idx].data[inChunk:]
}

// ReadAt copies length bytes starting at offset into a freshly allocated
// slice, walking chunk boundaries transparently.
func (b *Buffer) ReadAt(offset, length int) []byte {
	out := make([]byte, 0, length)
	remaining := length
	cur := offset
	for remaining > 0 {
		chunk := b.At(cur)
		if chunk == nil {
			break
		}
		n := len(chunk)
		if n > remaining {
			n = remaining
		}
		out = append(out, chunk[:n]...)
		cur += n
		remaining -= n
	}
	return out
}

// WriteAt copies data into the buffer starting at offset, walking chunk
// boundaries transparently. It never grows the buffer; writes past the end
// are silently truncated (callers are expected to have sized the buffer
// correctly, as the TCP TX/RX rings always do).
func (b *Buffer) WriteAt(offset int, data []byte) int {
	written := 0
	cur := offset
	remaining := data
	for len(remaining) > 0 {
		idx, inChunk, ok := b.locate(cur)
		if !ok {
			break
		}
		dst := b.chunks[idx].data[inChunk:]
		n := copy(dst, remaining)
		written += n
		cur += n
		remaining = remaining[n:]
	}
	return written
}

// CopyRange copies length bytes from src starting at srcOff into b starting
// at dstOff.
func CopyRange(dst *Buffer, dstOff int, src *Buffer, srcOff, length int) int {
	return dst.WriteAt(dstOff, src.ReadAt(srcOff, length))
}
