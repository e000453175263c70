package alert

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// wireRecord accepts every record shape seen from upstream sensors: flat
// severity/category fields or a nested "alert" object, and several spellings
// of the address fields. It is only used at the decode boundary.
type wireRecord struct {
	ID        string     `json:"id" yaml:"id"`
	Timestamp string     `json:"timestamp" yaml:"timestamp"`
	Severity  *Severity  `json:"severity" yaml:"severity"`
	Category  *string    `json:"category" yaml:"category"`
	AlertType *string    `json:"alert_type" yaml:"alert_type"`
	Type      *string    `json:"type" yaml:"type"`
	Alert     *wireAlert `json:"alert" yaml:"alert"`

	SourceIP      string `json:"source_ip" yaml:"source_ip"`
	SrcIP         string `json:"src_ip" yaml:"src_ip"`
	SourceIPCamel string `json:"sourceIp" yaml:"sourceIp"`

	DestinationIP      string `json:"destination_ip" yaml:"destination_ip"`
	DestIP             string `json:"dest_ip" yaml:"dest_ip"`
	DstIP              string `json:"dst_ip" yaml:"dst_ip"`
	DestinationIPCamel string `json:"destinationIp" yaml:"destinationIp"`

	Action *string `json:"action" yaml:"action"`
}

type wireAlert struct {
	Severity  *Severity `json:"severity" yaml:"severity"`
	Category  *string   `json:"category" yaml:"category"`
	Signature *string   `json:"signature" yaml:"signature"`
	Action    *string   `json:"action" yaml:"action"`
}

func (w *wireRecord) record() Record {
	r := Record{
		ID:            w.ID,
		Timestamp:     w.Timestamp,
		Severity:      w.Severity,
		Category:      firstSet(w.Category, w.AlertType, w.Type),
		SourceIP:      firstNonEmpty(w.SourceIP, w.SrcIP, w.SourceIPCamel),
		DestinationIP: firstNonEmpty(w.DestinationIP, w.DestIP, w.DstIP, w.DestinationIPCamel),
		Action:        w.Action,
	}
	// flat fields win over the nested alert object
	if a := w.Alert; a != nil {
		if r.Severity == nil {
			r.Severity = a.Severity
		}
		if r.Category == nil {
			r.Category = firstSet(a.Category, a.Signature)
		}
		if r.Action == nil {
			r.Action = a.Action
		}
	}
	return r
}

// UnmarshalJSON implements json.Unmarshaler, normalizing input variants.
func (r *Record) UnmarshalJSON(b []byte) error {
	var w wireRecord
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	*r = w.record()
	return nil
}

// UnmarshalYAML implements yaml.Unmarshaler, normalizing input variants.
func (r *Record) UnmarshalYAML(node *yaml.Node) error {
	var w wireRecord
	if err := node.Decode(&w); err != nil {
		return err
	}
	*r = w.record()
	return nil
}

// DecodeRecords reads a JSON array of records. An object envelope of the
// form {"alerts": [...]} is accepted as well.
func DecodeRecords(r io.Reader) ([]Record, error) {
	body, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read records: %w", err)
	}
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return nil, errors.New("decode records: empty body")
	}

	var records []Record
	if body[0] == '{' {
		var env struct {
			Alerts []Record `json:"alerts"`
		}
		if err := json.Unmarshal(body, &env); err != nil {
			return nil, fmt.Errorf("decode records: %w", err)
		}
		records = env.Alerts
	} else if err := json.Unmarshal(body, &records); err != nil {
		return nil, fmt.Errorf("decode records: %w", err)
	}

	if records == nil {
		records = []Record{}
	}
	return records, nil
}

// DecodeYAMLRecords reads a YAML sequence of records.
func DecodeYAMLRecords(r io.Reader) ([]Record, error) {
	var records []Record
	if err := yaml.NewDecoder(r).Decode(&records); err != nil {
		if errors.Is(err, io.EOF) {
			return []Record{}, nil
		}
		return nil, fmt.Errorf("decode yaml records: %w", err)
	}
	if records == nil {
		records = []Record{}
	}
	return records, nil
}

func firstSet(vals ...*string) *string {
	for _, v := range vals {
		if v != nil {
			return v
		}
	}
	return nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
