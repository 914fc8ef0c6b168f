// Package outputlog buffers recent debuggee output for a session so a late
// UI reconnect (or a scrollback request) is not limited to the client
// sink's own retention. Older entries are batched and compressed to keep a
// long-running session's backlog cheap.
package outputlog

import (
	"strings"
	"sync"

	"github.com/klauspost/compress/zstd"
)

// entry is one buffered output line before it has been folded into a
// compressed batch.
type entry struct {
	category string
	text     string
}

// defaultHotLines is how many most-recent lines are kept uncompressed for
// cheap, allocation-free reads.
const defaultHotLines = 256

// Backlog is a session-scoped history of debuggee output. Recent lines are
// kept as-is; once the hot window holds twice hotLimit lines, its oldest
// half is flushed into a zstd-compressed batch. No line is ever dropped, so
// the backlog grows for the life of the session.
type Backlog struct {
	mu       sync.Mutex
	hotLimit int
	hot      []entry
	batches  [][]byte // each a zstd frame of newline-joined "category\ttext" records
	total    int

	encoder *zstd.Encoder
	decoder *zstd.Decoder
}

// New returns an empty Backlog. hotLimit <= 0 uses defaultHotLines.
func New(hotLimit int) (*Backlog, error) {
	if hotLimit <= 0 {
		hotLimit = defaultHotLines
	}
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, err
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, err
	}
	return &Backlog{hotLimit: hotLimit, encoder: enc, decoder: dec}, nil
}

// Append records one output line.
func (b *Backlog) Append(category, text string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.hot = append(b.hot, entry{category: category, text: text})
	b.total++
	if len(b.hot) >= b.hotLimit*2 {
		b.flushOldestHalfLocked()
	}
}

func (b *Backlog) flushOldestHalfLocked() {
	cut := len(b.hot) / 2
	var sb strings.Builder
	for _, e := range b.hot[:cut] {
		sb.WriteString(e.category)
		sb.WriteByte('\t')
		sb.WriteString(e.text)
		sb.WriteByte('\n')
	}
	compressed := b.encoder.EncodeAll([]byte(sb.String()), nil)
	b.batches = append(b.batches, compressed)
	b.hot = append([]entry(nil), b.hot[cut:]...)
}

// Len reports the total number of lines ever appended.
func (b *Backlog) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.total
}

// Lines materializes the full backlog in append order. Decompresses every
// batch; intended for occasional scrollback requests, not the hot path.
func (b *Backlog) Lines() ([]string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	var out []string
	for _, batch := range b.batches {
		raw, err := b.decoder.DecodeAll(batch, nil)
		if err != nil {
			return nil, err
		}
		for _, line := range strings.Split(strings.TrimSuffix(string(raw), "\n"), "\n") {
			if line != "" {
				out = append(out, line)
			}
		}
	}
	for _, e := range b.hot {
		out = append(out, e.category+"\t"+e.text)
	}
	return out, nil
}

// Close releases the encoder and decoder's background goroutines.
func (b *Backlog) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.encoder.Close()
	b.decoder.Close()
}
