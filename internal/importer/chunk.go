package importer

// Accumulator buffers rows into capacity-bounded chunks in source order.
// The final chunk may be shorter than the capacity; an empty chunk is never
// emitted.
type Accumulator struct {
	capacity int
	index    int
	rows     []Row
}

// NewAccumulator creates an accumulator for chunks of the given capacity.
// The caller validates capacity > 0.
func NewAccumulator(capacity int) *Accumulator {
	return &Accumulator{
		capacity: capacity,
		rows:     make([]Row, 0, capacity),
	}
}

// Push buffers a row. When the buffer reaches capacity the completed chunk
// is returned and a fresh buffer started.
func (a *Accumulator) Push(row Row) (Chunk, bool) {
	a.rows = append(a.rows, row)
	if len(a.rows) < a.capacity {
		return Chunk{}, false
	}
	return a.emit(), true
}

// Flush returns the partial final chunk, if any. Call once the source is
// exhausted.
func (a *Accumulator) Flush() (Chunk, bool) {
	if len(a.rows) == 0 {
		return Chunk{}, false
	}
	return a.emit(), true
}

func (a *Accumulator) emit() Chunk {
	chunk := Chunk{Index: a.index, Rows: a.rows}
	a.index++
	a.rows = make([]Row, 0, a.capacity)
	return chunk
}
