package wire

import "fmt"

// tagModulus is the point at which the tag number wraps back to 0000. The
// connection is strictly serial, so two in-flight commands never share a
// tag even though the numeric space repeats every 10000 commands.
const tagModulus = 10000

// TagGenerator produces the deterministic, infinite sequence of command
// tags A0001, A0002, ..., A9999, A0000, A0001, ...
type TagGenerator struct {
	n uint64
}

// NewTagGenerator returns a generator whose first call to Next yields "A0001".
func NewTagGenerator() *TagGenerator {
	return &TagGenerator{n: 0}
}

// Next returns the next tag in the sequence.
func (g *TagGenerator) Next() string {
	g.n++
	return fmt.Sprintf("A%04d", g.n%tagModulus)
}
