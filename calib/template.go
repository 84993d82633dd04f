package calib

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
)

var (
	// ErrBadTemplate reports a template file whose structure cannot be
	// interpreted (ragged rows, missing fields, unparsable numbers).
	ErrBadTemplate = errors.New("calib: malformed template")

	// ErrProbeRange reports a probe id outside the template.
	ErrProbeRange = errors.New("calib: probe id out of range")
)

// PhaseTemplate holds one reference phase series per probe. Rows are
// indexed by probe id and subtracted sample-wise from measured phase
// before fitting.
type PhaseTemplate [][]float64

// Row returns the template row for a probe and whether it exists.
// The returned slice is shared, not copied.
func (t PhaseTemplate) Row(probe int) ([]float64, bool) {
	if probe < 0 || probe >= len(t) {
		return nil, false
	}
	return t[probe], true
}

// LoadPhaseTemplate reads a comma-separated phase template where each
// line is one probe row. All rows must have the same length.
func LoadPhaseTemplate(path string) (PhaseTemplate, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("calib: open phase template: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.TrimLeadingSpace = true
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("calib: read phase template %s: %w", path, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("calib: phase template %s is empty: %w", path, ErrBadTemplate)
	}

	rows := make(PhaseTemplate, 0, len(records))
	width := len(records[0])
	for i, rec := range records {
		if len(rec) != width {
			return nil, fmt.Errorf("calib: phase template row %d has %d fields, want %d: %w",
				i, len(rec), width, ErrBadTemplate)
		}
		row := make([]float64, len(rec))
		for j, field := range rec {
			v, err := strconv.ParseFloat(strings.TrimSpace(field), 64)
			if err != nil {
				return nil, fmt.Errorf("calib: phase template row %d field %d: %w", i, j, ErrBadTemplate)
			}
			row[j] = v
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// FitRange bounds a fit window on the time axis, in seconds.
type FitRange struct {
	Begin float64
	End   float64
}

// RangeTemplate maps probe ids to precomputed fit windows.
type RangeTemplate map[int]FitRange

// Range returns the window for a probe and whether one is stored.
func (t RangeTemplate) Range(probe int) (FitRange, bool) {
	r, ok := t[probe]
	return r, ok
}

type rangeRecord struct {
	Probe int     `json:"Probe ID"`
	Begin float64 `json:"Fid Begin"`
	End   float64 `json:"Fid End"`
}

// LoadRangeTemplate reads a JSON array of fit-range records. Records
// with End not after Begin are rejected.
func LoadRangeTemplate(path string) (RangeTemplate, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("calib: open range template: %w", err)
	}

	var records []rangeRecord
	if err := json.Unmarshal(raw, &records); err != nil {
		return nil, fmt.Errorf("calib: parse range template %s: %w", path, err)
	}

	tmpl := make(RangeTemplate, len(records))
	for i, rec := range records {
		if rec.End <= rec.Begin {
			return nil, fmt.Errorf("calib: range template record %d: end %g not after begin %g: %w",
				i, rec.End, rec.Begin, ErrBadTemplate)
		}
		tmpl[rec.Probe] = FitRange{Begin: rec.Begin, End: rec.End}
	}
	return tmpl, nil
}

// FrequencyTemplate holds one reference frequency offset per probe, in
// hertz, added to fitted frequencies to recover absolute values.
type FrequencyTemplate []float64

// Offset returns the frequency offset for a probe and whether it exists.
func (t FrequencyTemplate) Offset(probe int) (float64, bool) {
	if probe < 0 || probe >= len(t) {
		return 0, false
	}
	return t[probe], true
}
