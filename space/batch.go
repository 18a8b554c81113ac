package space

import "fmt"

// Batch is an ordered group of candidates dispatched as one unit of work.
type Batch struct {
	Index      uint64 // sequence number within the run
	Offset     uint64 // position of Candidates[0] in the space
	Candidates []Candidate
}

func (b Batch) Len() int {
	return len(b.Candidates)
}

// End is the position just past the last candidate of the batch.
func (b Batch) End() uint64 {
	return b.Offset + uint64(len(b.Candidates))
}

// Source produces candidates one at a time.
type Source interface {
	Next() (Candidate, bool)
	Position() uint64
}

// Batcher groups a Source into batches of up to Size candidates. Order is
// preserved within and across batches and only the final batch may be short.
type Batcher struct {
	src   Source
	size  int
	index uint64
}

func NewBatcher(src Source, size int) (*Batcher, error) {
	if size < 1 {
		return nil, fmt.Errorf("batch size must be at least 1, got %d", size)
	}
	return &Batcher{src: src, size: size}, nil
}

// Next returns the next batch, or false when the source is exhausted.
func (b *Batcher) Next() (Batch, bool) {
	batch := Batch{Index: b.index, Offset: b.src.Position()}
	for len(batch.Candidates) < b.size {
		c, ok := b.src.Next()
		if !ok {
			break
		}
		if batch.Candidates == nil {
			batch.Candidates = make([]Candidate, 0, b.size)
		}
		batch.Candidates = append(batch.Candidates, c)
	}
	if len(batch.Candidates) == 0 {
		return Batch{}, false
	}
	b.index++
	return batch, true
}
