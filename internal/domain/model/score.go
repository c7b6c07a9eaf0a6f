// Package model contains domain models passed between layers.
package model

import (
	"bytes"
	"encoding/json"
	"strconv"
)

// ScoreKind tags the shape a Score arrived in.
type ScoreKind uint8

const (
	// ScoreInvalid is anything that is neither a number nor an object with a mark.
	ScoreInvalid ScoreKind = iota
	// ScoreNumeric is a plain number of points.
	ScoreNumeric
	// ScoreStructured is an object carrying a mark and an optional justification.
	ScoreStructured
)

func (k ScoreKind) String() string {
	switch k {
	case ScoreNumeric:
		return "numeric"
	case ScoreStructured:
		return "structured"
	default:
		return "invalid"
	}
}

// MarkKind tags the JSON type of a mark.
type MarkKind uint8

const (
	MarkText MarkKind = iota
	MarkNumber
	MarkOther
)

// Mark is the free-form grade the backend assigned to one criterion.
type Mark struct {
	Kind   MarkKind
	Text   string
	Number float64
	// Raw keeps marks that are neither text nor number so they round-trip.
	Raw json.RawMessage
}

// TextMark builds a textual mark.
func TextMark(s string) Mark { return Mark{Kind: MarkText, Text: s} }

// NumberMark builds a numeric mark.
func NumberMark(v float64) Mark { return Mark{Kind: MarkNumber, Number: v} }

// IsText reports whether the mark is a string.
func (m Mark) IsText() bool { return m.Kind == MarkText }

// String renders the mark for display.
func (m Mark) String() string {
	switch m.Kind {
	case MarkText:
		return m.Text
	case MarkNumber:
		return strconv.FormatFloat(m.Number, 'f', -1, 64)
	default:
		return string(m.Raw)
	}
}

func (m Mark) MarshalJSON() ([]byte, error) {
	switch m.Kind {
	case MarkText:
		return json.Marshal(m.Text)
	case MarkNumber:
		return json.Marshal(m.Number)
	default:
		if len(m.Raw) == 0 {
			return []byte("null"), nil
		}
		return m.Raw, nil
	}
}

// Score is one criterion's evaluation for one student.
type Score struct {
	Kind          ScoreKind
	Points        float64
	Mark          Mark
	Justification string

	raw json.RawMessage
}

// Numeric builds a plain numeric score.
func Numeric(points float64) Score {
	return Score{Kind: ScoreNumeric, Points: points}
}

// Structured builds a score with a mark and justification.
func Structured(mark Mark, justification string) Score {
	return Score{Kind: ScoreStructured, Mark: mark, Justification: justification}
}

// IsNumeric reports whether s is a plain number.
func (s Score) IsNumeric() bool { return s.Kind == ScoreNumeric }

// IsStructured reports whether s carries a mark.
func (s Score) IsStructured() bool { return s.Kind == ScoreStructured }

type structuredWire struct {
	Mark          json.RawMessage `json:"mark"`
	Justification json.RawMessage `json:"justification"`
}

// UnmarshalJSON accepts any JSON value. Shapes other than a number or an
// object with a non-null mark decode to ScoreInvalid instead of failing.
func (s *Score) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	*s = Score{raw: append(json.RawMessage(nil), data...)}
	if len(data) == 0 {
		return nil
	}

	switch data[0] {
	case '{':
		var w structuredWire
		if err := json.Unmarshal(data, &w); err != nil {
			return nil
		}
		mark, ok := decodeMark(w.Mark)
		if !ok {
			return nil
		}
		var just string
		_ = json.Unmarshal(w.Justification, &just)
		*s = Score{Kind: ScoreStructured, Mark: mark, Justification: just}
	case '"', 't', 'f', 'n', '[':
		// not a score shape
	default:
		var v float64
		if err := json.Unmarshal(data, &v); err == nil {
			*s = Score{Kind: ScoreNumeric, Points: v}
		}
	}
	return nil
}

func decodeMark(raw json.RawMessage) (Mark, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return Mark{}, false
	}
	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		return TextMark(text), true
	}
	var num float64
	if err := json.Unmarshal(raw, &num); err == nil {
		return NumberMark(num), true
	}
	return Mark{Kind: MarkOther, Raw: append(json.RawMessage(nil), raw...)}, true
}

// MarshalJSON writes the score back in the shape it was received in.
func (s Score) MarshalJSON() ([]byte, error) {
	switch s.Kind {
	case ScoreNumeric:
		return json.Marshal(s.Points)
	case ScoreStructured:
		type wire struct {
			Mark          Mark   `json:"mark"`
			Justification string `json:"justification,omitempty"`
		}
		return json.Marshal(wire{Mark: s.Mark, Justification: s.Justification})
	default:
		if len(s.raw) == 0 {
			return []byte("null"), nil
		}
		return s.raw, nil
	}
}
