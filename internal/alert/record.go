// Package alert defines the canonical network-security alert record and the
// decoders that normalize the observed input shapes into it.
package alert

import (
	"errors"
	"strings"
)

// ErrMissingTimestamp is returned for a record without a timestamp.
var ErrMissingTimestamp = errors.New("missing timestamp")

// Record is one logged security event.
//
// Severity, Category and Action are optional. Records missing them are left
// out of the matching summary table only.
type Record struct {
	ID            string    `json:"id,omitempty"`
	Timestamp     string    `json:"timestamp"`
	Severity      *Severity `json:"severity,omitempty"`
	Category      *string   `json:"category,omitempty"`
	SourceIP      string    `json:"source_ip,omitempty"`
	DestinationIP string    `json:"destination_ip,omitempty"`
	Action        *string   `json:"action,omitempty"`
}

// Validate reports whether the record can be aggregated.
func (r *Record) Validate() error {
	if strings.TrimSpace(r.Timestamp) == "" {
		return ErrMissingTimestamp
	}
	return nil
}

// Date returns the date portion of the timestamp, the text before the time
// separator. Both "2024-01-01T10:00:00Z" and "2024-01-01 10:00:00" yield
// "2024-01-01"; a bare date is returned as is.
func (r *Record) Date() (string, error) {
	ts := strings.TrimSpace(r.Timestamp)
	if ts == "" {
		return "", ErrMissingTimestamp
	}
	if d, _, ok := strings.Cut(ts, "T"); ok {
		return d, nil
	}
	if d, _, ok := strings.Cut(ts, " "); ok {
		return d, nil
	}
	return ts, nil
}

// Clone returns a deep copy so stores never share optional fields with callers.
func (r *Record) Clone() Record {
	cp := *r
	if r.Severity != nil {
		s := *r.Severity
		cp.Severity = &s
	}
	cp.Category = cloneString(r.Category)
	cp.Action = cloneString(r.Action)
	return cp
}

// String returns a pointer to s, for building records with optional fields.
func String(s string) *string { return &s }

func cloneString(p *string) *string {
	if p == nil {
		return nil
	}
	s := *p
	return &s
}
