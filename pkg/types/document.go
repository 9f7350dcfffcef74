package types

import (
	"encoding/json"
	"fmt"
	"time"
)

// Document is one record in a store collection: an opaque ID plus a flat
// field map. Field values survive a JSON round trip, so times are RFC3339
// strings on the wire and numbers arrive as float64.
type Document struct {
	ID     string         `json:"id"`
	Fields map[string]any `json:"fields"`
}

// Filter is one equality constraint of a query. Queries never run without at
// least the roomCode filter; cross-room leakage is a contract violation.
type Filter struct {
	Field string `json:"field"`
	Value any    `json:"value"`
}

// Disposer permanently stops a live query's future deliveries. Invoking it
// more than once is safe; the second call is a no-op.
type Disposer func()

// serverTimestamp is the sentinel type behind ServerTimestamp.
type serverTimestamp struct{}

// ServerTimestamp marks a field whose value the store assigns at write time.
// Clients request it on every create so cross-client ordering compares
// store clocks, never client clocks.
var ServerTimestamp serverTimestamp

// ResolveServerTimestamps returns a copy of fields with every
// ServerTimestamp sentinel replaced by now. Store implementations call this
// on the write path before persisting.
func ResolveServerTimestamps(fields map[string]any, now time.Time) map[string]any {
	resolved := make(map[string]any, len(fields))
	for k, v := range fields {
		if _, ok := v.(serverTimestamp); ok {
			resolved[k] = now
			continue
		}
		resolved[k] = v
	}
	return resolved
}

// Decode unmarshals the document's fields into v via a JSON round trip.
// The document ID is not part of the field map; typed decode helpers below
// attach it after decoding.
func (d Document) Decode(v any) error {
	data, err := json.Marshal(d.Fields)
	if err != nil {
		return fmt.Errorf("failed to marshal document %s: %w", d.ID, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to decode document %s: %w", d.ID, err)
	}
	return nil
}

func DecodeRoom(d Document) (*Room, error) {
	var r Room
	if err := d.Decode(&r); err != nil {
		return nil, err
	}
	r.ID = d.ID
	return &r, nil
}

func DecodeParticipant(d Document) (*Participant, error) {
	var p Participant
	if err := d.Decode(&p); err != nil {
		return nil, err
	}
	p.ID = d.ID
	return &p, nil
}

func DecodeQuestion(d Document) (*Question, error) {
	var q Question
	if err := d.Decode(&q); err != nil {
		return nil, err
	}
	q.ID = d.ID
	return &q, nil
}

func DecodeQuiz(d Document) (*Quiz, error) {
	var q Quiz
	if err := d.Decode(&q); err != nil {
		return nil, err
	}
	q.ID = d.ID
	return &q, nil
}

func DecodeQuizResponse(d Document) (*QuizResponse, error) {
	var r QuizResponse
	if err := d.Decode(&r); err != nil {
		return nil, err
	}
	r.ID = d.ID
	return &r, nil
}

func DecodeMaterial(d Document) (*Material, error) {
	var m Material
	if err := d.Decode(&m); err != nil {
		return nil, err
	}
	m.ID = d.ID
	return &m, nil
}

func DecodeActivity(d Document) (*Activity, error) {
	var a Activity
	if err := d.Decode(&a); err != nil {
		return nil, err
	}
	a.ID = d.ID
	return &a, nil
}

func DecodeActivityResponse(d Document) (*ActivityResponse, error) {
	var r ActivityResponse
	if err := d.Decode(&r); err != nil {
		return nil, err
	}
	r.ID = d.ID
	return &r, nil
}
