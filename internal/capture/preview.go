package capture

import (
	"context"
	"sync"
)

// Preview holds the most recent encoded frame of the live loop.
// Readers wait for frames newer than the one they last saw.
type Preview struct {
	mu      sync.Mutex
	frame   []byte
	seq     uint64
	updated chan struct{}
}

// NewPreview creates an empty Preview.
func NewPreview() *Preview {
	return &Preview{updated: make(chan struct{})}
}

// Publish replaces the current frame and wakes waiting readers.
func (p *Preview) Publish(jpeg []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.frame = jpeg
	p.seq++
	close(p.updated)
	p.updated = make(chan struct{})
}

// Latest returns the current frame and its sequence number (0 before the first frame).
func (p *Preview) Latest() ([]byte, uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.frame, p.seq
}

// Next blocks until a frame newer than after is published or ctx is done.
func (p *Preview) Next(ctx context.Context, after uint64) ([]byte, uint64, error) {
	for {
		p.mu.Lock()
		if p.seq > after {
			frame, seq := p.frame, p.seq
			p.mu.Unlock()
			return frame, seq, nil
		}
		wait := p.updated
		p.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil, after, ctx.Err()
		case <-wait:
		}
	}
}
