package stream

import (
	eng "github.com/reoring/goserde/internal/engine"
)

// ReplaySource serves a slice of previously recorded tokens and then continues
// with the underlying source. It lets a consumer that had to look ahead (for
// example to find a union discriminator) hand the prefix back unchanged.
type ReplaySource struct {
	inner  eng.TokenSource
	buffer []eng.Token
	pos    int
}

// NewReplaySource returns a source that yields buffered before reading inner.
func NewReplaySource(inner eng.TokenSource, buffered []eng.Token) *ReplaySource {
	return &ReplaySource{inner: inner, buffer: buffered}
}

func (r *ReplaySource) NextToken() (eng.Token, error) {
	if r.pos < len(r.buffer) {
		t := r.buffer[r.pos]
		r.pos++
		return t, nil
	}
	return r.inner.NextToken()
}

// Location reports the offset of the next buffered token while replaying,
// and the underlying location afterwards.
func (r *ReplaySource) Location() int64 {
	if r.pos < len(r.buffer) {
		return r.buffer[r.pos].Offset
	}
	return r.inner.Location()
}

