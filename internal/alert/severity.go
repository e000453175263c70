package alert

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Severity is an alert severity as it appeared on the wire: either a small
// integer (1, 2, 3) or a categorical label ("high"). Numeric severities are
// re-encoded as JSON numbers so chart axes keep their numeric ordering.
type Severity struct {
	Label   string
	Numeric bool
}

// NumericSeverity returns the severity for an integer level.
func NumericSeverity(level int) *Severity {
	return &Severity{Label: strconv.Itoa(level), Numeric: true}
}

// LabelSeverity returns the severity for a categorical label.
func LabelSeverity(label string) *Severity {
	return &Severity{Label: label}
}

func (s Severity) String() string { return s.Label }

// MarshalJSON implements json.Marshaler.
func (s Severity) MarshalJSON() ([]byte, error) {
	if s.Numeric {
		return []byte(s.Label), nil
	}
	return json.Marshal(s.Label)
}

// UnmarshalJSON implements json.Unmarshaler.
func (s *Severity) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 {
		return fmt.Errorf("severity: empty value")
	}
	if b[0] == '"' {
		var label string
		if err := json.Unmarshal(b, &label); err != nil {
			return fmt.Errorf("severity: %w", err)
		}
		*s = Severity{Label: label}
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("severity: want number or string, got %s", b)
	}
	*s = Severity{Label: n.String(), Numeric: true}
	return nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (s *Severity) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("severity: line %d: want scalar", node.Line)
	}
	*s = Severity{Label: node.Value}
	switch node.ShortTag() {
	case "!!int":
		// 0x1F, 1_0 and +1 are stored in decimal form.
		var n int64
		if err := node.Decode(&n); err == nil {
			*s = Severity{Label: strconv.FormatInt(n, 10), Numeric: true}
		}
	case "!!float":
		var f float64
		if err := node.Decode(&f); err == nil && !math.IsNaN(f) && !math.IsInf(f, 0) {
			*s = Severity{Label: strconv.FormatFloat(f, 'g', -1, 64), Numeric: true}
		}
	}
	return nil
}
