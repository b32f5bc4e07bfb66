package proto

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

var (
	ErrChunkIndex    = errors.New("chunk index out of range")
	ErrChunkTotal    = errors.New("chunk total changed mid-sequence")
	ErrChunkRepeated = errors.New("chunk received twice")
)

// SplitData cuts s into ordered slices of at most size bytes.
// Slices never split a UTF-8 sequence, so concatenating them restores s exactly.
func SplitData(s string, size int) []string {
	if size <= 0 || len(s) <= size {
		return []string{s}
	}

	parts := make([]string, 0, len(s)/size+1)
	for start := 0; start < len(s); {
		end := start + size
		if end >= len(s) {
			parts = append(parts, s[start:])
			break
		}
		cut := end
		for cut > start && !utf8.RuneStart(s[cut]) {
			cut--
		}
		if cut == start {
			// size is smaller than a single rune; take the whole rune.
			for cut = end; cut < len(s) && !utf8.RuneStart(s[cut]); cut++ {
			}
		}
		parts = append(parts, s[start:cut])
		start = cut
	}
	return parts
}

// Reassembler collects the chunks of one artifact, in any arrival order.
type Reassembler struct {
	total    int
	received int
	parts    []string
	seen     []bool
}

// Add stores a chunk. It returns the full payload once every chunk has arrived,
// after which the reassembler is ready for the next artifact.
func (r *Reassembler) Add(c Chunk) (string, bool, error) {
	if c.TotalChunks <= 0 || c.Chunk < 0 || c.Chunk >= c.TotalChunks {
		return "", false, fmt.Errorf("%w: %d of %d", ErrChunkIndex, c.Chunk, c.TotalChunks)
	}
	if r.total == 0 {
		r.total = c.TotalChunks
		r.parts = make([]string, c.TotalChunks)
		r.seen = make([]bool, c.TotalChunks)
	}
	if c.TotalChunks != r.total {
		return "", false, fmt.Errorf("%w: %d != %d", ErrChunkTotal, c.TotalChunks, r.total)
	}
	if r.seen[c.Chunk] {
		return "", false, fmt.Errorf("%w: %d", ErrChunkRepeated, c.Chunk)
	}

	r.parts[c.Chunk] = c.Data
	r.seen[c.Chunk] = true
	r.received++
	if r.received < r.total {
		return "", false, nil
	}

	payload := strings.Join(r.parts, "")
	r.Reset()
	return payload, true, nil
}

// Pending reports how many chunks of the current artifact are still missing.
func (r *Reassembler) Pending() int {
	return r.total - r.received
}

// Reset drops any partially collected artifact.
func (r *Reassembler) Reset() {
	*r = Reassembler{}
}
