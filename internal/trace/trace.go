package trace

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
)

// RunTrace is the canonical record of what one reconciliation run decided
// for each output.
//
// Invariants:
//   - Captures decisions, not runtime details: no timestamps, durations or
//     process output.
//   - Canonicalize yields a total order independent of walk order.
//
// Treat a RunTrace as immutable once Canonicalize has been called.
type RunTrace struct {
	InputDir  string
	OutputDir string
	Events    []Event
}

// EventKind is the stable discriminator for Event. The string values are
// part of the canonical bytes; do not rename.
type EventKind string

const (
	EventFileGenerated EventKind = "FileGenerated"
	EventFileUpdated   EventKind = "FileUpdated"
	EventFileUntouched EventKind = "FileUntouched"
	EventFileFailed    EventKind = "FileFailed"
	EventFileDeleted   EventKind = "FileDeleted"
	EventDeleteFailed  EventKind = "DeleteFailed"
)

// Event is a single per-output decision.
type Event struct {
	Kind EventKind

	// Output is the generated file path the event refers to. Required.
	Output string

	// Input is the source file. Empty for deletions.
	Input string

	// Tool is the generator kind that owns Output. Empty for deletions.
	Tool string

	// Reason is a stable reason code (e.g. "LaunchFailure", "Orphan").
	Reason string
}

// Validate checks basic invariants and returns a descriptive error.
func (t *RunTrace) Validate() error {
	if t == nil {
		return errors.New("trace is nil")
	}
	if t.OutputDir == "" {
		return errors.New("outputDir is required")
	}
	for i, e := range t.Events {
		if e.Kind == "" {
			return fmt.Errorf("events[%d].kind is required", i)
		}
		if e.Output == "" {
			return fmt.Errorf("events[%d].output is required for kind %q", i, e.Kind)
		}
	}
	return nil
}

// Canonicalize sorts events by (output, kindOrder, input, tool, reason).
func (t *RunTrace) Canonicalize() {
	if t == nil {
		return
	}
	sort.SliceStable(t.Events, func(i, j int) bool {
		a := t.Events[i]
		b := t.Events[j]

		if a.Output != b.Output {
			return a.Output < b.Output
		}
		if kindOrder(a.Kind) != kindOrder(b.Kind) {
			return kindOrder(a.Kind) < kindOrder(b.Kind)
		}
		if a.Input != b.Input {
			return a.Input < b.Input
		}
		if a.Tool != b.Tool {
			return a.Tool < b.Tool
		}
		return a.Reason < b.Reason
	})
}

func kindOrder(k EventKind) int {
	switch k {
	case EventFileGenerated:
		return 10
	case EventFileUpdated:
		return 20
	case EventFileUntouched:
		return 30
	case EventFileFailed:
		return 40
	case EventFileDeleted:
		return 50
	case EventDeleteFailed:
		return 60
	default:
		return 1000
	}
}

// CanonicalJSON returns the canonical JSON encoding of the trace.
// It canonicalizes a copy to avoid mutating the caller's slice.
func (t RunTrace) CanonicalJSON() ([]byte, error) {
	c := RunTrace{InputDir: t.InputDir, OutputDir: t.OutputDir}
	c.Events = make([]Event, len(t.Events))
	copy(c.Events, t.Events)
	c.Canonicalize()
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return json.Marshal(&c)
}

// Hash returns the sha256 hex digest of the canonical JSON bytes.
func (t RunTrace) Hash() (string, error) {
	b, err := t.CanonicalJSON()
	if err != nil {
		return "", err
	}
	return ComputeTraceHash(b), nil
}

// MarshalJSON fixes field order and omits empty optional fields.
func (t RunTrace) MarshalJSON() ([]byte, error) {
	if t.OutputDir == "" {
		return nil, errors.New("outputDir is required")
	}
	var buf bytes.Buffer
	buf.WriteByte('{')

	writeField(&buf, "inputDir", t.InputDir, true)
	writeField(&buf, "outputDir", t.OutputDir, false)

	buf.WriteString(",\"events\":[")
	for i := range t.Events {
		if i > 0 {
			buf.WriteByte(',')
		}
		eb, err := json.Marshal(t.Events[i])
		if err != nil {
			return nil, err
		}
		buf.Write(eb)
	}
	buf.WriteByte(']')

	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// MarshalJSON fixes field order and omits empty optional fields.
func (e Event) MarshalJSON() ([]byte, error) {
	if e.Kind == "" {
		return nil, errors.New("kind is required")
	}
	var buf bytes.Buffer
	buf.WriteByte('{')

	// kind is always first.
	writeField(&buf, "kind", string(e.Kind), true)
	writeField(&buf, "output", e.Output, false)
	if e.Input != "" {
		writeField(&buf, "input", e.Input, false)
	}
	if e.Tool != "" {
		writeField(&buf, "tool", e.Tool, false)
	}
	if e.Reason != "" {
		writeField(&buf, "reason", e.Reason, false)
	}

	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func writeField(buf *bytes.Buffer, key, value string, first bool) {
	if !first {
		buf.WriteByte(',')
	}
	kb, _ := json.Marshal(key)
	buf.Write(kb)
	buf.WriteByte(':')
	vb, _ := json.Marshal(value)
	buf.Write(vb)
}
