// Package bencode implements the canonical bencode wire format used to
// carry router contacts and routing messages: integers as "i<dec>e",
// byte-strings as "<len>:<bytes>", lists as "l...e" and dictionaries as
// "d<key><value>...e" with keys in ascending lexicographic order.
//
// Encoding and decoding operate over a single contiguous buffer rather
// than an io.Reader/Writer, so the hot inbound-message path never
// allocates beyond the caller-supplied backing array.
package bencode

import (
	"sort"
	"strconv"
)

// Buffer is a fixed backing array with a read/write cursor, the Go
// analogue of llarp_buffer_t: writers advance Cur as they append,
// readers advance Cur as they consume.
type Buffer struct {
	Base []byte
	Cur  int
}

// NewBuffer wraps backing for writing from its start.
func NewBuffer(backing []byte) *Buffer {
	return &Buffer{Base: backing}
}

// NewReader wraps data for reading; Cur starts at 0 and Base's length is
// the amount of readable data (as opposed to a writer's fixed capacity).
func NewReader(data []byte) *Buffer {
	return &Buffer{Base: data}
}

// Copy returns a Buffer over a fresh copy of the whole backing array,
// with the same cursor position, so the copy can be read or written
// without touching the caller's backing array.
func (b *Buffer) Copy() *Buffer {
	cp := make([]byte, len(b.Base))
	copy(cp, b.Base)
	return &Buffer{Base: cp, Cur: b.Cur}
}

// Remaining returns the unwritten/unread tail.
func (b *Buffer) Remaining() []byte {
	if b.Cur >= len(b.Base) {
		return nil
	}
	return b.Base[b.Cur:]
}

func (b *Buffer) space() int {
	return len(b.Base) - b.Cur
}

func (b *Buffer) writeBytes(p []byte) bool {
	if b.space() < len(p) {
		return false
	}
	copy(b.Base[b.Cur:], p)
	b.Cur += len(p)
	return true
}

// PutInt encodes n as "i<n>e".
func (b *Buffer) PutInt(n int64) bool {
	return b.writeBytes([]byte("i" + strconv.FormatInt(n, 10) + "e"))
}

// PutUint encodes n as "i<n>e".
func (b *Buffer) PutUint(n uint64) bool {
	return b.writeBytes([]byte("i" + strconv.FormatUint(n, 10) + "e"))
}

// PutString encodes s as "<len>:<bytes>".
func (b *Buffer) PutString(s []byte) bool {
	prefix := strconv.Itoa(len(s)) + ":"
	if b.space() < len(prefix)+len(s) {
		return false
	}
	b.writeBytes([]byte(prefix))
	return b.writeBytes(s)
}

// ListEncoder writes one list element; returns false to abort.
type ListEncoder func(buf *Buffer) bool

// PutList encodes "l" + each element in order + "e".
func (b *Buffer) PutList(elems []ListEncoder) bool {
	if !b.writeBytes([]byte("l")) {
		return false
	}
	for _, enc := range elems {
		if !enc(b) {
			return false
		}
	}
	return b.writeBytes([]byte("e"))
}

// DictField is one key/value pair of a dictionary being encoded.
type DictField struct {
	Key   string
	Value ListEncoder
}

// PutDict encodes "d" + fields sorted by key + "e". Fields need not be
// pre-sorted by the caller; PutDict sorts a copy before writing so the
// output is always canonical regardless of field construction order.
func (b *Buffer) PutDict(fields []DictField) bool {
	sorted := make([]DictField, len(fields))
	copy(sorted, fields)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Key < sorted[j].Key })

	if !b.writeBytes([]byte("d")) {
		return false
	}
	for _, f := range sorted {
		if !b.PutString([]byte(f.Key)) {
			return false
		}
		if !f.Value(b) {
			return false
		}
	}
	return b.writeBytes([]byte("e"))
}

// --- decoding ---

func (b *Buffer) peek() (byte, bool) {
	if b.Cur >= len(b.Base) {
		return 0, false
	}
	return b.Base[b.Cur], true
}

// ReadInt decodes an "i<dec>e" token.
func (b *Buffer) ReadInt() (int64, bool) {
	c, ok := b.peek()
	if !ok || c != 'i' {
		return 0, false
	}
	start := b.Cur + 1
	end := start
	for end < len(b.Base) && b.Base[end] != 'e' {
		end++
	}
	if end >= len(b.Base) {
		return 0, false
	}
	n, err := strconv.ParseInt(string(b.Base[start:end]), 10, 64)
	if err != nil {
		return 0, false
	}
	b.Cur = end + 1
	return n, true
}

// ReadString decodes a "<len>:<bytes>" token, returning a slice that
// views into the buffer's backing array.
func (b *Buffer) ReadString() ([]byte, bool) {
	lenStart := b.Cur
	lenEnd := lenStart
	for lenEnd < len(b.Base) && b.Base[lenEnd] != ':' {
		if b.Base[lenEnd] < '0' || b.Base[lenEnd] > '9' {
			return nil, false
		}
		lenEnd++
	}
	if lenEnd >= len(b.Base) || lenEnd == lenStart {
		return nil, false
	}
	n, err := strconv.Atoi(string(b.Base[lenStart:lenEnd]))
	if err != nil || n < 0 {
		return nil, false
	}
	dataStart := lenEnd + 1
	if n > len(b.Base)-dataStart {
		return nil, false
	}
	dataEnd := dataStart + n
	b.Cur = dataEnd
	return b.Base[dataStart:dataEnd], true
}

// ListVisitor is called for each element of a list being decoded. It
// must consume exactly one value from buf and return false to abort.
type ListVisitor func(buf *Buffer) bool

// ReadList decodes "l...e", calling visit once per element.
func (b *Buffer) ReadList(visit ListVisitor) bool {
	c, ok := b.peek()
	if !ok || c != 'l' {
		return false
	}
	b.Cur++
	for {
		c, ok := b.peek()
		if !ok {
			return false
		}
		if c == 'e' {
			b.Cur++
			return true
		}
		if !visit(b) {
			return false
		}
	}
}

// DictVisitor is called once per key/value pair of a dictionary being
// decoded, in encounter order, and once more with key == nil when the
// dictionary is exhausted. It must consume exactly one value from buf
// per non-nil call (or skip it) and returns false to abort the read.
type DictVisitor func(key []byte, buf *Buffer) bool

// ReadDict decodes "d...e", calling visit per key and once with a nil
// key at the end. If the 'd' token itself is missing, ReadDict returns
// false without ever invoking visit.
func (b *Buffer) ReadDict(visit DictVisitor) bool {
	c, ok := b.peek()
	if !ok || c != 'd' {
		return false
	}
	b.Cur++
	for {
		c, ok := b.peek()
		if !ok {
			return false
		}
		if c == 'e' {
			b.Cur++
			return visit(nil, b)
		}
		key, ok := b.ReadString()
		if !ok {
			return false
		}
		if !visit(key, b) {
			return false
		}
	}
}

// Skip consumes and discards the next well-formed value of any type,
// used by dictionary decoders to skip unknown keys.
func Skip(buf *Buffer) bool {
	c, ok := buf.peek()
	if !ok {
		return false
	}
	switch {
	case c == 'i':
		_, ok := buf.ReadInt()
		return ok
	case c == 'l':
		return buf.ReadList(Skip)
	case c == 'd':
		return buf.ReadDict(func(key []byte, b *Buffer) bool {
			if key == nil {
				return true
			}
			return Skip(b)
		})
	case c >= '0' && c <= '9':
		_, ok := buf.ReadString()
		return ok
	default:
		return false
	}
}

// StringEncoder is a convenience ListEncoder for a byte-string value.
func StringEncoder(s []byte) ListEncoder {
	return func(buf *Buffer) bool { return buf.PutString(s) }
}

// IntEncoder is a convenience ListEncoder for an integer value.
func IntEncoder(n int64) ListEncoder {
	return func(buf *Buffer) bool { return buf.PutInt(n) }
}
