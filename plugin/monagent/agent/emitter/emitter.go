// SPDX-License-Identifier: GPL-3.0-or-later

package emitter

import (
	"context"
	"encoding/json"
	"io"
	"sync"

	"github.com/monagent/monagent/pkg/aggregator"
)

// Emitter ships a flush batch to its destination.
type Emitter interface {
	Emit(ctx context.Context, batch []aggregator.Envelope) error
}

// Payload is the wire document wrapping a batch.
type Payload struct {
	Series []aggregator.Envelope `json:"series"`
}

// NewWriter returns an emitter writing one indented JSON document per batch.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

type Writer struct {
	mu sync.Mutex
	w  io.Writer
}

func (e *Writer) Emit(_ context.Context, batch []aggregator.Envelope) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	enc := json.NewEncoder(e.w)
	enc.SetIndent("", "  ")
	return enc.Encode(Payload{Series: batch})
}
