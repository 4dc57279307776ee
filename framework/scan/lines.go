package scan

import (
	"bytes"
	"errors"
	"io"
	"sync"
)

// ErrBinary marks files whose leading bytes contain a NUL.
var ErrBinary = errors.New("binary content")

const sniffLen = 8 << 10

var bufPool = sync.Pool{
	New: func() any {
		b := make([]byte, 32<<10)
		return &b
	},
}

// CountLines returns the number of lines and bytes read from r. A line is
// terminated by '\n'; a non-empty trailing line without a terminator counts
// as one more. Input with a NUL byte in its first 8 KiB returns ErrBinary.
func CountLines(r io.Reader) (int64, int64, error) {
	bp := bufPool.Get().(*[]byte)
	defer bufPool.Put(bp)
	buf := *bp

	var lines, total int64
	var last byte
	for {
		n, err := r.Read(buf)
		if n > 0 {
			chunk := buf[:n]
			if total < sniffLen {
				end := int64(n)
				if rest := sniffLen - total; rest < end {
					end = rest
				}
				if bytes.IndexByte(chunk[:end], 0) >= 0 {
					return 0, 0, ErrBinary
				}
			}
			lines += int64(bytes.Count(chunk, []byte{'\n'}))
			last = chunk[n-1]
			total += int64(n)
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return 0, 0, err
		}
	}
	if total > 0 && last != '\n' {
		lines++
	}
	return lines, total, nil
}
