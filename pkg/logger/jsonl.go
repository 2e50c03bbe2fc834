package logger

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"dronebridge/pkg/telemetry"
)

// JSONLWriter records broadcast events, one JSON object per line.
type JSONLWriter struct {
	enc     *json.Encoder
	now     func() time.Time
	written uint64
}

type jsonRecord struct {
	TS    string          `json:"ts"`
	Type  telemetry.Kind  `json:"type"`
	Event telemetry.Event `json:"event"`
}

func NewJSONLWriter(w io.Writer) *JSONLWriter {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	return &JSONLWriter{
		enc: enc,
		now: time.Now,
	}
}

// Write appends a single record.
func (j *JSONLWriter) Write(ev telemetry.Event) error {
	rec := jsonRecord{
		TS:    j.now().UTC().Format(time.RFC3339Nano),
		Type:  ev.Kind(),
		Event: ev,
	}
	if err := j.enc.Encode(rec); err != nil {
		return fmt.Errorf("record %s: %w", ev.Kind(), err)
	}
	j.written++
	return nil
}

// Consume records events from in until ctx is cancelled or in is closed.
// It stops at the first write error.
func (j *JSONLWriter) Consume(ctx context.Context, in <-chan telemetry.Event) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-in:
			if !ok {
				return nil
			}
			if err := j.Write(ev); err != nil {
				return err
			}
		}
	}
}

// Written is the number of records written so far. Read it after Consume
// returns.
func (j *JSONLWriter) Written() uint64 { return j.written }
