// Package codec serializes the simulation's base state as a compact flat
// JSON document: the snapshot's base parameters plus an array of body base
// records.
package codec

import (
	"github.com/goccy/go-json"
	"github.com/rotisserie/eris"
)

// SimParams are the exported snapshot base parameters. Derived fields (tick,
// body count, region locations) are intentionally absent: they are rebuilt
// on import.
type SimParams struct {
	Gravity   float64 `json:"gravity"`
	TimeScale float64 `json:"timeScale"`
	Softening float64 `json:"softening"`
	Dt        float64 `json:"dt"`
	Elapsed   float64 `json:"elapsed"`
	Paused    bool    `json:"paused"`
}

// BodyParams is one exported body base record.
type BodyParams struct {
	ID         int64   `json:"id"`
	Mass       float64 `json:"mass"`
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	VX         float64 `json:"vx"`
	VY         float64 `json:"vy"`
	Radius     float64 `json:"radius"`
	Frozen     bool    `json:"frozen"`
	Collisions int64   `json:"collisions"`
}

// State is the full exported document.
type State struct {
	Sim    SimParams    `json:"sim"`
	Bodies []BodyParams `json:"bodies"`
}

// Encode renders the state as JSON.
func Encode(s *State) (string, error) {
	bz, err := json.Marshal(s)
	if err != nil {
		return "", eris.Wrap(err, "encode state")
	}
	return string(bz), nil
}

// Decode parses an exported document. Malformed JSON is a parse error; the
// JSON literal null decodes to a nil state with no error.
func Decode(raw string) (*State, error) {
	var s *State
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		return nil, eris.Wrap(err, "decode state")
	}
	return s, nil
}
