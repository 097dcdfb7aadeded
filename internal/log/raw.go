package log

import (
	"encoding/hex"
	"fmt"
	"io"
	"sync"
	"time"
)

// RawLogger records raw USB control traffic (setup packets and data stages)
// for offline inspection. A RawLogger built on a nil writer discards
// everything.
type RawLogger interface {
	Log(dir string, data []byte)
}

type rawLogger struct {
	mu sync.Mutex
	w  io.Writer
}

// NewRaw returns a RawLogger writing one hex line per transfer to w.
func NewRaw(w io.Writer) RawLogger {
	return &rawLogger{w: w}
}

func (r *rawLogger) Log(dir string, data []byte) {
	if r.w == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	_, _ = fmt.Fprintf(r.w, "%s %-5s %4d %s\n", time.Now().Format("15:04:05.000000"), dir, len(data), hex.EncodeToString(data))
}
