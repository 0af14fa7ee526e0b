// Package advisory serves the static care guidance shown next to a prediction.
package advisory

import (
	_ "embed"
	"errors"
	"fmt"
	"sort"

	"github.com/Brownie44l1/leafcare-api/internal/labels"
	"gopkg.in/yaml.v3"
)

// Unavailable is shown when a label has no record.
const Unavailable = "No additional information available for this disease."

//go:embed advisory.yaml
var embedded []byte

var ErrInvalidTable = errors.New("invalid advisory table")

// Record is the care guidance for one label.
type Record struct {
	Prevention     string `yaml:"prevention" json:"prevention"`
	Chemicals      string `yaml:"chemicals" json:"chemicals"`
	Watering       string `yaml:"watering" json:"watering"`
	AdditionalCare string `yaml:"additional_care" json:"additional_care"`
}

// Table is an immutable label -> Record mapping.
type Table struct {
	records map[labels.ClassLabel]Record
}

// New builds the table from the embedded guidance.
func New() (*Table, error) {
	return Parse(embedded)
}

// Parse builds a table from a YAML document keyed by label.
func Parse(data []byte) (*Table, error) {
	var raw map[string]Record
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidTable, err)
	}

	records := make(map[labels.ClassLabel]Record, len(raw))
	for key, rec := range raw {
		if rec.Prevention == "" || rec.Chemicals == "" || rec.Watering == "" || rec.AdditionalCare == "" {
			return nil, fmt.Errorf("%w: record %q has empty fields", ErrInvalidTable, key)
		}
		records[labels.ClassLabel(key)] = rec
	}

	return &Table{records: records}, nil
}

// Lookup returns the record for label. Matching is exact.
func (t *Table) Lookup(label labels.ClassLabel) (Record, bool) {
	rec, ok := t.records[label]
	return rec, ok
}

// Len is the number of records.
func (t *Table) Len() int {
	return len(t.records)
}

// Missing lists the entries of classes with no record, in input order.
func (t *Table) Missing(classes []labels.ClassLabel) []labels.ClassLabel {
	var missing []labels.ClassLabel
	for _, l := range classes {
		if _, ok := t.records[l]; !ok {
			missing = append(missing, l)
		}
	}
	return missing
}

// Orphans lists record keys that no class in classes will ever produce.
func (t *Table) Orphans(classes []labels.ClassLabel) []labels.ClassLabel {
	known := make(map[labels.ClassLabel]bool, len(classes))
	for _, l := range classes {
		known[l] = true
	}

	var orphans []labels.ClassLabel
	for key := range t.records {
		if !known[key] {
			orphans = append(orphans, key)
		}
	}
	sort.Slice(orphans, func(i, j int) bool { return orphans[i] < orphans[j] })
	return orphans
}
