package domain

import (
	"context"
	"time"
)

// RawEvent is one unprocessed collision record from a source.
// Stream sources set Value to a flat JSON object; file sources set Row directly.
type RawEvent struct {
	Key       []byte
	Value     []byte
	Row       *Collision
	Headers   map[string]string
	Topic     string
	Partition int
	Offset    int64
	Timestamp time.Time
	Commit    func(ctx context.Context) error
}

// OutputEvent is the serialized form destined for the sink topic.
type OutputEvent struct {
	Key     []byte
	Value   []byte
	Headers map[string]string
}
