// Package continuity chains named steps, short-circuiting on the first
// error. It is used by shard.Codec.EncodePartial to assemble a shard
// entirely in memory before ever touching the store (spec §5 "a cancelled
// encode_partial must leave the store object untouched").
package continuity

// Chain runs a sequence of named steps in order, stopping at the first one
// that returns an error.
type Chain struct {
	err  error
	step string
}

// New starts an empty chain.
func New() *Chain {
	return &Chain{}
}

// Thenf runs fn if no prior step has failed, recording the step name for
// Err's error message.
func (c *Chain) Thenf(step string, fn func() error) *Chain {
	if c.err != nil {
		return c
	}
	if err := fn(); err != nil {
		c.err = err
		c.step = step
	}
	return c
}

// Err returns the first error encountered, or nil if every step succeeded.
func (c *Chain) Err() error {
	return c.err
}

// FailedStep returns the name of the step that failed, or "" if none did.
func (c *Chain) FailedStep() string {
	return c.step
}
