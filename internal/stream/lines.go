package stream

import (
	"strings"
)

// LineBuffer splits a chunked byte stream on LF, holding back the trailing
// partial line until the chunk that completes it arrives.
type LineBuffer struct {
	tail strings.Builder
}

// Write appends chunk and returns every line it completed, without the line
// terminator. A CR before the LF is trimmed.
func (b *LineBuffer) Write(chunk []byte) []string {
	b.tail.Write(chunk)
	buf := b.tail.String()

	idx := strings.LastIndexByte(buf, '\n')
	if idx < 0 {
		return nil
	}

	complete, rest := buf[:idx], buf[idx+1:]
	b.tail.Reset()
	b.tail.WriteString(rest)

	lines := strings.Split(complete, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSuffix(l, "\r")
	}
	return lines
}

// Pending returns the buffered partial line.
func (b *LineBuffer) Pending() string {
	return b.tail.String()
}

// Reset drops the partial line.
func (b *LineBuffer) Reset() {
	b.tail.Reset()
}
