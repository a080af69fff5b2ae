// Package extract turns the model's free-form text response into a
// validated SignalPlan. The upstream text is not a real API: it can carry
// markdown fences, commentary before or after the JSON, or a payload that
// does not match the expected schema, so extraction is tolerant of
// formatting noise but strict about the resulting shape.
package extract

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/tradesight/tradesight/internal/models"
)

var (
	// ErrNoStructuredData means the response contains no JSON object at all.
	ErrNoStructuredData = errors.New("no structured data in model response")
	// ErrMalformedData means a JSON object was found but could not be parsed.
	ErrMalformedData = errors.New("malformed data in model response")
)

// SchemaError reports a parsed payload that does not satisfy the signal
// plan schema. Field names the offending field.
type SchemaError struct {
	Field  string
	Reason string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("schema violation: field %q %s", e.Field, e.Reason)
}

// flexString accepts either a JSON string or a JSON number. Models
// occasionally emit prices as bare numbers despite the prompt asking for
// strings.
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = flexString(n.String())
	return nil
}

type rawPlan struct {
	Signal     string       `json:"signal"`
	Confidence json.Number  `json:"confidence"`
	Entry      flexString   `json:"entry"`
	StopLoss   flexString   `json:"stopLoss"`
	Targets    []flexString `json:"targets"`
	Reasoning  []string     `json:"reasoning"`
}

// Extract parses raw model output into a validated SignalPlan.
func Extract(raw string) (*models.SignalPlan, error) {
	payload, ok := firstJSONObject(raw)
	if !ok {
		return nil, ErrNoStructuredData
	}

	var rp rawPlan
	if err := json.Unmarshal([]byte(payload), &rp); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedData, err)
	}

	signal := strings.ToUpper(strings.TrimSpace(rp.Signal))
	// HOLD is a legacy alias the demo generator used for WAIT.
	if signal == "HOLD" {
		signal = models.SignalWait
	}
	if !models.ValidSignal(signal) {
		return nil, &SchemaError{Field: "signal", Reason: fmt.Sprintf("must be BUY, SELL or WAIT, got %q", rp.Signal)}
	}

	confidence, err := parseConfidence(rp.Confidence)
	if err != nil {
		return nil, &SchemaError{Field: "confidence", Reason: err.Error()}
	}

	if strings.TrimSpace(string(rp.Entry)) == "" {
		return nil, &SchemaError{Field: "entry", Reason: "is missing or empty"}
	}
	if strings.TrimSpace(string(rp.StopLoss)) == "" {
		return nil, &SchemaError{Field: "stopLoss", Reason: "is missing or empty"}
	}
	if len(rp.Targets) == 0 {
		return nil, &SchemaError{Field: "targets", Reason: "must be a non-empty list"}
	}

	targets := make([]string, len(rp.Targets))
	for i, t := range rp.Targets {
		if strings.TrimSpace(string(t)) == "" {
			return nil, &SchemaError{Field: "targets", Reason: fmt.Sprintf("entry %d is empty", i)}
		}
		targets[i] = string(t)
	}

	return &models.SignalPlan{
		Signal:     signal,
		Confidence: confidence,
		Entry:      string(rp.Entry),
		StopLoss:   string(rp.StopLoss),
		Targets:    targets,
		Reasoning:  rp.Reasoning,
	}, nil
}

// parseConfidence coerces the confidence value to an integer in [0,100].
// Out-of-range values are rejected rather than clamped so that model errors
// are surfaced instead of masked.
func parseConfidence(n json.Number) (int, error) {
	s := n.String()
	if s == "" {
		return 0, errors.New("is missing")
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, errors.New("is not numeric")
	}
	v := int(math.Round(f))
	if v < 0 || v > 100 {
		return 0, fmt.Errorf("must be between 0 and 100, got %s", s)
	}
	return v, nil
}

// firstJSONObject returns the first top-level balanced {...} substring.
// Braces inside JSON strings are ignored so prose like "use {caution}"
// before the payload cannot truncate it.
func firstJSONObject(s string) (string, bool) {
	start := -1
	depth := 0
	inString := false
	escaped := false

	for i := 0; i < len(s); i++ {
		c := s[i]
		if start >= 0 && inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '{':
			if start < 0 {
				start = i
			}
			depth++
		case '}':
			if start >= 0 {
				depth--
				if depth == 0 {
					return s[start : i+1], true
				}
			}
		case '"':
			if start >= 0 {
				inString = true
			}
		}
	}
	return "", false
}
