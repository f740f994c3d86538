package content

// Computed memoises a value derived from a record. The zero value is ready
// to use; the function passed to the first Get call computes the value and
// later calls return it unchanged. A record holding a Computed field should
// be read from one goroutine until the value has been computed once.
//
//	type Post struct {
//		Body  string
//		words content.Computed[int]
//	}
//
//	func (p *Post) WordCount() int {
//		return p.words.Get(func() int { return len(strings.Fields(p.Body)) })
//	}
type Computed[T any] struct {
	done  bool
	value T
}

// Get returns the memoised value, calling fn on first access.
func (c *Computed[T]) Get(fn func() T) T {
	if !c.done {
		c.value = fn()
		c.done = true
	}
	return c.value
}

// Reset forgets the memoised value.
func (c *Computed[T]) Reset() {
	var zero T
	c.value, c.done = zero, false
}
