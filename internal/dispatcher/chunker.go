package dispatcher

// DefaultChunkSize is the number of characters synthesised per request.
const DefaultChunkSize = 125

// Chunk is a contiguous slice of reply text. Indexes start at 1.
type Chunk struct {
	Index int    `json:"index"`
	Text  string `json:"text"`
}

// Chunker slices a text stream into fixed-size chunks counted in runes.
// Concatenating every chunk in index order gives back the exact input.
type Chunker struct {
	size int
	buf  []rune
	next int
}

func NewChunker(size int) *Chunker {
	if size < 1 {
		size = DefaultChunkSize
	}
	return &Chunker{size: size, next: 1}
}

// Push appends delta and returns every chunk that is now complete.
func (c *Chunker) Push(delta string) []Chunk {
	c.buf = append(c.buf, []rune(delta)...)

	var out []Chunk
	for len(c.buf) >= c.size {
		out = append(out, Chunk{Index: c.next, Text: string(c.buf[:c.size])})
		c.buf = c.buf[c.size:]
		c.next++
	}
	return out
}

// Flush returns the buffered remainder as a final chunk, or nil when empty.
func (c *Chunker) Flush() *Chunk {
	if len(c.buf) == 0 {
		return nil
	}
	ch := &Chunk{Index: c.next, Text: string(c.buf)}
	c.buf = nil
	c.next++
	return ch
}
