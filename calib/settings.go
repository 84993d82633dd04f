package calib

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"os"
)

const (
	// NumProbes is the number of fixed probes a settings record covers.
	NumProbes = 378

	// TemplateSamples is the phase-template length per probe.
	TemplateSamples = 4096
)

// Settings mirrors the fixed little-endian record layout of the legacy
// station settings blob. Field order and widths match the on-disk
// layout exactly; do not reorder.
type Settings struct {
	ConstBaseline      float64
	ConstBaselineUsed  float64
	EdgeWidth          float64
	EdgeIgnore         float64
	StartAmplitude     float64
	BaselineFreqThresh float64
	FilterLowFreq      float64
	FilterHighFreq     float64
	FilterFreqWidth    float64
	FFTPeakWidth       float64
	CentroidThresh     float64
	HystThresh         float64
	SNRThresh          float64
	LenThresh          float64
	T0Shift            float64
	T0ShiftCorr        float64
	LengthReduction    float64
	LengthReduction1   float64
	LengthReduction2   float64
	LengthReduction3   float64
	SpikeThreshold     float64

	FreqTemplate  [NumProbes]float64
	PhaseTemplate [NumProbes * TemplateSamples]float64

	PhaseTemplateN int32
	FitRangeScheme int32
	PhaseFitScheme int32
	SmoothWidth    int32

	TruncateBeginning     uint32
	TruncateEnd           uint32
	ZeroPadding           uint32
	ConstBaselineStart    uint32
	ConstBaselineEnd      uint32
	BaselineMode          uint32
	BaselineEvent         uint32
	SmoothIteration       uint32
	Poln                  uint32
	AutoFilterWindow      uint32
	HigherOrderCorrection uint32
	HaNPar                uint32
	NSample               uint32
	CompareDistance       uint32
	HalfVetoWindow        uint32

	FitStart [NumProbes]uint32
	FitEnd   [NumProbes]uint32
	NZeros   [NumProbes]uint32

	Filter               [64]byte
	PhaseTemplateFile    [128]byte
	TemplatePath         [128]byte
	FitRangeTemplateFile [128]byte
}

// SettingsSize is the encoded record size in bytes.
var SettingsSize = binary.Size(new(Settings))

// ReadSettings decodes one settings record from r.
func ReadSettings(r io.Reader) (*Settings, error) {
	s := new(Settings)
	if err := binary.Read(r, binary.LittleEndian, s); err != nil {
		return nil, fmt.Errorf("calib: decode settings record: %w", err)
	}
	return s, nil
}

// LoadSettings reads a settings record from a file.
func LoadSettings(path string) (*Settings, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("calib: open settings: %w", err)
	}
	if len(raw) < SettingsSize {
		return nil, fmt.Errorf("calib: settings file %s holds %d bytes, record needs %d: %w",
			path, len(raw), SettingsSize, ErrBadTemplate)
	}
	return ReadSettings(bytes.NewReader(raw))
}

// PhaseRow returns a copy of the phase-template row for a probe.
func (s *Settings) PhaseRow(probe int) ([]float64, error) {
	if probe < 0 || probe >= NumProbes {
		return nil, fmt.Errorf("calib: probe %d: %w", probe, ErrProbeRange)
	}
	row := make([]float64, TemplateSamples)
	copy(row, s.PhaseTemplate[probe*TemplateSamples:(probe+1)*TemplateSamples])
	return row, nil
}

// PhaseRows converts the embedded template into row form.
func (s *Settings) PhaseRows() PhaseTemplate {
	rows := make(PhaseTemplate, NumProbes)
	for p := range rows {
		rows[p], _ = s.PhaseRow(p)
	}
	return rows
}

// FrequencyOffset returns the per-probe frequency offset in hertz.
func (s *Settings) FrequencyOffset(probe int) (float64, error) {
	if probe < 0 || probe >= NumProbes {
		return 0, fmt.Errorf("calib: probe %d: %w", probe, ErrProbeRange)
	}
	return s.FreqTemplate[probe], nil
}

// FrequencyOffsets returns all per-probe frequency offsets.
func (s *Settings) FrequencyOffsets() FrequencyTemplate {
	t := make(FrequencyTemplate, NumProbes)
	copy(t, s.FreqTemplate[:])
	return t
}

// Window returns the stored fit window for a probe as sample indices.
func (s *Settings) Window(probe int) (begin, end int, err error) {
	if probe < 0 || probe >= NumProbes {
		return 0, 0, fmt.Errorf("calib: probe %d: %w", probe, ErrProbeRange)
	}
	return int(s.FitStart[probe]), int(s.FitEnd[probe]), nil
}

// FilterName returns the configured filter identifier.
func (s *Settings) FilterName() string { return cString(s.Filter[:]) }

// PhaseTemplateName returns the phase-template file name.
func (s *Settings) PhaseTemplateName() string { return cString(s.PhaseTemplateFile[:]) }

// TemplateDir returns the template search path.
func (s *Settings) TemplateDir() string { return cString(s.TemplatePath[:]) }

// FitRangeTemplateName returns the fit-range template file name.
func (s *Settings) FitRangeTemplateName() string { return cString(s.FitRangeTemplateFile[:]) }

func cString(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	return string(b)
}
