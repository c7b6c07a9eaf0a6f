package model

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrNotObject is returned when criterion scores are not a JSON object.
var ErrNotObject = errors.New("criterion scores must be a JSON object")

// CriterionScore pairs a rubric criterion with its score.
type CriterionScore struct {
	Name  string
	Score Score
}

// CriterionScores maps criterion names to scores, keeping document order.
type CriterionScores []CriterionScore

// Get returns the score stored under name.
func (c CriterionScores) Get(name string) (Score, bool) {
	for _, cs := range c {
		if cs.Name == name {
			return cs.Score, true
		}
	}
	return Score{}, false
}

// Set stores s under name. An existing name keeps its position.
func (c *CriterionScores) Set(name string, s Score) {
	for i := range *c {
		if (*c)[i].Name == name {
			(*c)[i].Score = s
			return
		}
	}
	*c = append(*c, CriterionScore{Name: name, Score: s})
}

// Names returns the criterion names in order.
func (c CriterionScores) Names() []string {
	out := make([]string, len(c))
	for i, cs := range c {
		out[i] = cs.Name
	}
	return out
}

// UnmarshalJSON decodes an object, preserving key order.
func (c *CriterionScores) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("decode criterion scores: %w", err)
	}
	if tok == nil {
		*c = nil
		return nil
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return ErrNotObject
	}

	out := CriterionScores{}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return fmt.Errorf("decode criterion name: %w", err)
		}
		name, _ := keyTok.(string)
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return fmt.Errorf("decode score for %q: %w", name, err)
		}
		var s Score
		if err := s.UnmarshalJSON(raw); err != nil {
			return err
		}
		out.Set(name, s)
	}
	if _, err := dec.Token(); err != nil {
		return fmt.Errorf("decode criterion scores: %w", err)
	}
	*c = out
	return nil
}

// MarshalJSON writes an object in stored order.
func (c CriterionScores) MarshalJSON() ([]byte, error) {
	if c == nil {
		return []byte("{}"), nil
	}
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, cs := range c {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(cs.Name)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(cs.Score)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
