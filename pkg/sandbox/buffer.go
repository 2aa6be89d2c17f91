package sandbox

import (
	"bytes"
	"fmt"
)

// cappedBuffer keeps at most limit bytes of a stream and counts the rest.
// Writes always report success so the child never sees a broken pipe.
// Each buffer has a single writer; reads happen after the process is waited.
type cappedBuffer struct {
	buf     bytes.Buffer
	limit   int
	dropped int
}

func newCappedBuffer(limit int) *cappedBuffer {
	return &cappedBuffer{limit: limit}
}

func (b *cappedBuffer) Write(p []byte) (int, error) {
	if b.limit <= 0 {
		return b.buf.Write(p)
	}
	room := b.limit - b.buf.Len()
	if room >= len(p) {
		return b.buf.Write(p)
	}
	if room > 0 {
		b.buf.Write(p[:room])
	} else {
		room = 0
	}
	b.dropped += len(p) - room
	return len(p), nil
}

func (b *cappedBuffer) truncated() bool {
	return b.dropped > 0
}

func (b *cappedBuffer) String() string {
	if b.dropped == 0 {
		return b.buf.String()
	}
	return b.buf.String() + fmt.Sprintf("\n[output truncated: %d bytes dropped]", b.dropped)
}
