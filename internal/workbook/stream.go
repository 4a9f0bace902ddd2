package workbook

// stream.go provides the reader wrappers applied to CSV input before parsing:
//
//   - utf8Sanitizer: replaces invalid UTF-8 bytes with '?'
//   - bomSkippingReader: drops a leading UTF-8 BOM (0xEF 0xBB 0xBF)
//   - countingReader: tracks bytes consumed
//
// wrapCSVSource applies them in the right order.

import (
	"io"
	"unicode/utf8"
)

// utf8Sanitizer replaces invalid UTF-8 sequences on the fly so the CSV
// parser never sees them. Memory use is bounded by the caller's buffer.
type utf8Sanitizer struct {
	reader io.Reader

	// Leftover bytes from the previous read that may start a multi-byte rune
	pending []byte
}

func newUTF8Sanitizer(r io.Reader) *utf8Sanitizer {
	return &utf8Sanitizer{
		reader:  r,
		pending: make([]byte, 0, utf8.UTFMax),
	}
}

func (s *utf8Sanitizer) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}

	offset := 0
	if len(s.pending) > 0 {
		offset = copy(p, s.pending)
		s.pending = s.pending[:0]
	}

	n, err := s.reader.Read(p[offset:])
	n += offset
	if n == 0 {
		return 0, err
	}

	if isASCII(p[:n]) {
		return n, err
	}
	return s.sanitize(p[:n], err == io.EOF), err
}

func isASCII(data []byte) bool {
	for _, b := range data {
		if b >= utf8.RuneSelf {
			return false
		}
	}
	return true
}

// sanitize rewrites data in place and returns the number of bytes to hand
// out. Unless atEOF, a truncated rune at the end is held back in pending.
func (s *utf8Sanitizer) sanitize(data []byte, atEOF bool) int {
	if utf8.Valid(data) {
		return len(data)
	}

	write := 0
	for read := 0; read < len(data); {
		r, size := utf8.DecodeRune(data[read:])

		if r == utf8.RuneError && size == 1 {
			if !atEOF && !utf8.FullRune(data[read:]) {
				s.pending = append(s.pending, data[read:]...)
				return write
			}
			// '?' keeps the rewrite in place; U+FFFD would need 3 bytes.
			data[write] = '?'
			write++
			read++
			continue
		}
		copy(data[write:], data[read:read+size])
		write += size
		read += size
	}
	return write
}

// bomSkippingReader drops the UTF-8 byte order mark Windows tools put in
// front of CSV exports.
type bomSkippingReader struct {
	reader  io.Reader
	checked bool
	buf     [3]byte
	held    []byte // bytes read during the BOM check that are not a BOM
}

func newBOMSkippingReader(r io.Reader) *bomSkippingReader {
	return &bomSkippingReader{reader: r}
}

func (r *bomSkippingReader) Read(p []byte) (int, error) {
	if !r.checked {
		r.checked = true

		n, err := io.ReadFull(r.reader, r.buf[:])
		if err == io.ErrUnexpectedEOF {
			err = io.EOF
		}
		if err != nil && err != io.EOF {
			return 0, err
		}
		if n == 3 && r.buf[0] == 0xEF && r.buf[1] == 0xBB && r.buf[2] == 0xBF {
			if err == io.EOF {
				return 0, io.EOF
			}
		} else {
			r.held = r.buf[:n]
		}
		if err == io.EOF && len(r.held) == 0 {
			return 0, io.EOF
		}
	}

	if len(r.held) > 0 {
		n := copy(p, r.held)
		r.held = r.held[n:]
		return n, nil
	}
	return r.reader.Read(p)
}

// countingReader tracks bytes consumed from the wrapped reader.
type countingReader struct {
	reader io.Reader
	n      int64
}

func (r *countingReader) Read(p []byte) (int, error) {
	n, err := r.reader.Read(p)
	r.n += int64(n)
	return n, err
}

// wrapCSVSource strips the BOM first, then sanitises UTF-8. Counting sits
// outermost so it reports what the parser consumed.
func wrapCSVSource(r io.Reader) *countingReader {
	return &countingReader{reader: newUTF8Sanitizer(newBOMSkippingReader(r))}
}
