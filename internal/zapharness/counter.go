package zapharness

import "sync/atomic"

// RequestCounter counts fully processed ZAP request cycles. One instance
// belongs to one ServerSide and is shared with its handler by pointer.
type RequestCounter struct {
	n atomic.Int64
}

// Inc records one processed request.
func (c *RequestCounter) Inc() { c.n.Add(1) }

// Load returns the number of processed requests.
func (c *RequestCounter) Load() int64 { return c.n.Load() }
