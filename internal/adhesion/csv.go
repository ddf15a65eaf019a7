package adhesion

import (
	"encoding/csv"
	"fmt"
	"io"
	"log"
	"math"
	"strconv"
	"strings"
)

// metricsHeader is the fixed 15-column output header, in the exact
// order of §6.
var metricsHeader = []string{
	"Layer_Number",
	"Step_Speed_um_s",
	"Peak_Force_N",
	"Work_of_Adhesion_mJ",
	"Time_to_Peak_s",
	"Distance_to_Peak_mm",
	"Propagation_Time_s",
	"Propagation_Distance_mm",
	"Total_Peel_Time_s",
	"Total_Peel_Distance_mm",
	"Peak_Retraction_Force_N",
	"Effective_Stiffness_N_per_mm",
	"Stiffness_R2",
	"SNR",
	"Data_Quality_OK",
}

// timeColumnNames are the accepted header spellings for the elapsed-time
// column, matched case-insensitively. "or equivalent" in §6 is read as
// a short, explicit whitelist rather than a fuzzy match.
var timeColumnNames = []string{"elapsed time (s)", "time (s)", "elapsed_time_s", "time_s"}

func isTimeColumn(name string) bool {
	name = strings.ToLower(strings.TrimSpace(name))
	for _, c := range timeColumnNames {
		if name == c {
			return true
		}
	}
	return false
}

func isPositionColumn(name string) bool {
	return strings.ToLower(strings.TrimSpace(name)) == "position (mm)"
}

func isForceColumn(name string) bool {
	return strings.ToLower(strings.TrimSpace(name)) == "force (n)"
}

func isPhaseColumn(name string) bool {
	return strings.ToLower(strings.TrimSpace(name)) == "phase"
}

// ReadSampleRecord parses the input tabular file of §6: UTF-8,
// comma-separated, header row required, required columns matched
// case-insensitively and in any order, an optional Phase column. Rows
// with a missing or non-numeric required cell are rejected and counted
// in diag rather than failing the read.
func ReadSampleRecord(r io.Reader, diag *Diagnostics) (*SampleRecord, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("adhesion: reading CSV header: %w", err)
	}

	timeIdx, posIdx, forceIdx, phaseIdx := -1, -1, -1, -1
	for i, name := range header {
		switch {
		case isTimeColumn(name):
			timeIdx = i
		case isPositionColumn(name):
			posIdx = i
		case isForceColumn(name):
			forceIdx = i
		case isPhaseColumn(name):
			phaseIdx = i
		}
	}
	if timeIdx == -1 || posIdx == -1 || forceIdx == -1 {
		return nil, fmt.Errorf("adhesion: input CSV missing required column(s): time=%v position=%v force=%v", timeIdx != -1, posIdx != -1, forceIdx != -1)
	}

	var samples []Sample
	lineNo := 1
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		lineNo++
		if err != nil {
			if diag != nil {
				diag.RejectedCSVRows.Add(1)
			}
			log.Printf("adhesion: rejecting malformed CSV row %d: %v", lineNo, err)
			continue
		}

		t, okT := parseRequiredCell(row, timeIdx)
		x, okX := parseRequiredCell(row, posIdx)
		f, okF := parseRequiredCell(row, forceIdx)
		if !okT || !okX || !okF {
			if diag != nil {
				diag.RejectedCSVRows.Add(1)
			}
			log.Printf("adhesion: rejecting CSV row %d: missing or non-numeric required cell", lineNo)
			continue
		}

		s := Sample{TimeS: t, PositionMM: x, ForceN: f}
		if phaseIdx != -1 && phaseIdx < len(row) {
			cell := strings.TrimSpace(row[phaseIdx])
			if cell != "" {
				var p Phase
				if err := p.UnmarshalText([]byte(cell)); err == nil {
					s.Phase = p
					s.HasPhase = true
				}
			}
		}
		samples = append(samples, s)
	}

	return &SampleRecord{Samples: samples}, nil
}

func parseRequiredCell(row []string, idx int) (float64, bool) {
	if idx >= len(row) {
		return 0, false
	}
	cell := strings.TrimSpace(row[idx])
	if cell == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(cell, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// WriteMetricsTable writes the output metrics record of §6: a header row
// followed by one row per layer, in column order, with NaN and
// unavailable optional fields serialized as empty cells rather than the
// literal string "NaN".
func WriteMetricsTable(w io.Writer, layers []LayerMetrics) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(metricsHeader); err != nil {
		return fmt.Errorf("adhesion: writing metrics header: %w", err)
	}
	for _, m := range layers {
		if err := writer.Write(metricsRow(m)); err != nil {
			return fmt.Errorf("adhesion: writing metrics row for layer %d: %w", m.LayerNumber, err)
		}
	}
	writer.Flush()
	return writer.Error()
}

func metricsRow(m LayerMetrics) []string {
	step := ""
	if m.StepSpeedUmPerS != nil {
		step = formatFloat(*m.StepSpeedUmPerS)
	}
	return []string{
		strconv.FormatInt(m.LayerNumber, 10),
		step,
		formatFloat(m.PeakForceN),
		formatFloat(m.WorkOfAdhesionMJ),
		formatFloat(m.PeakTimeS),
		formatFloat(m.DistanceToPeakMM),
		formatFloat(m.PropagationDurationS),
		formatFloat(m.PropagationDistanceMM),
		formatFloat(m.TotalPeelDurationS),
		formatFloat(m.TotalPeelDistanceMM),
		formatFloat(m.PeakRetractionForceN),
		formatFloat(m.EffectiveStiffnessNPerMM),
		formatFloat(m.StiffnessR2),
		formatFloat(m.SignalToNoiseRatio),
		strconv.FormatBool(m.DataQualityOK),
	}
}

// formatFloat serializes a metric value, mapping NaN (and the rarer
// +/-Inf from a degenerate fit) to the empty cell required by §6.
func formatFloat(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return ""
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// ReadMetricsTable parses the output metrics schema written by
// WriteMetricsTable: a header row matching metricsHeader exactly,
// column for column, followed by one row per layer. An empty cell
// becomes NaN for a numeric field and nil for Step_Speed_um_s, the
// inverse of formatFloat's NaN/Inf -> "" rule.
func ReadMetricsTable(r io.Reader) ([]LayerMetrics, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("adhesion: reading metrics header: %w", err)
	}
	if len(header) != len(metricsHeader) {
		return nil, fmt.Errorf("adhesion: metrics header has %d columns, want %d", len(header), len(metricsHeader))
	}
	for i, name := range header {
		if name != metricsHeader[i] {
			return nil, fmt.Errorf("adhesion: metrics header column %d = %q, want %q", i, name, metricsHeader[i])
		}
	}

	var layers []LayerMetrics
	lineNo := 1
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		lineNo++
		if err != nil {
			return nil, fmt.Errorf("adhesion: reading metrics row %d: %w", lineNo, err)
		}
		m, err := metricsRowToLayer(row)
		if err != nil {
			return nil, fmt.Errorf("adhesion: parsing metrics row %d: %w", lineNo, err)
		}
		layers = append(layers, m)
	}
	return layers, nil
}

// metricsRowToLayer is the inverse of metricsRow, column for column.
func metricsRowToLayer(row []string) (LayerMetrics, error) {
	if len(row) != len(metricsHeader) {
		return LayerMetrics{}, fmt.Errorf("row has %d columns, want %d", len(row), len(metricsHeader))
	}

	layerNo, err := strconv.ParseInt(row[0], 10, 64)
	if err != nil {
		return LayerMetrics{}, fmt.Errorf("Layer_Number: %w", err)
	}
	m := LayerMetrics{LayerNumber: layerNo}

	if row[1] != "" {
		v, err := strconv.ParseFloat(row[1], 64)
		if err != nil {
			return LayerMetrics{}, fmt.Errorf("Step_Speed_um_s: %w", err)
		}
		m.StepSpeedUmPerS = &v
	}

	dsts := []*float64{
		&m.PeakForceN,
		&m.WorkOfAdhesionMJ,
		&m.PeakTimeS,
		&m.DistanceToPeakMM,
		&m.PropagationDurationS,
		&m.PropagationDistanceMM,
		&m.TotalPeelDurationS,
		&m.TotalPeelDistanceMM,
		&m.PeakRetractionForceN,
		&m.EffectiveStiffnessNPerMM,
		&m.StiffnessR2,
		&m.SignalToNoiseRatio,
	}
	for i, dst := range dsts {
		col := 2 + i
		v, err := parseMetricCell(row[col])
		if err != nil {
			return LayerMetrics{}, fmt.Errorf("%s: %w", metricsHeader[col], err)
		}
		*dst = v
	}

	ok, err := strconv.ParseBool(row[14])
	if err != nil {
		return LayerMetrics{}, fmt.Errorf("Data_Quality_OK: %w", err)
	}
	m.DataQualityOK = ok

	return m, nil
}

// parseMetricCell parses one formatFloat-produced numeric cell, mapping
// an empty cell back to NaN.
func parseMetricCell(cell string) (float64, error) {
	if cell == "" {
		return math.NaN(), nil
	}
	return strconv.ParseFloat(cell, 64)
}

// WriteAnnotatedSamples writes the input sample schema back out with an
// appended Phase column, one row per sample, using the phase each
// sample was annotated with by a PhaseAnnotator. This is the write side
// implied by §6's optional Phase column: the reader accepts it, so the
// module also supplies a writer that produces it.
func WriteAnnotatedSamples(w io.Writer, record *SampleRecord) error {
	writer := csv.NewWriter(w)
	if err := writer.Write([]string{"Elapsed Time (s)", "Position (mm)", "Force (N)", "Phase"}); err != nil {
		return fmt.Errorf("adhesion: writing annotated-sample header: %w", err)
	}
	for _, s := range record.Samples {
		phase := ""
		if s.HasPhase {
			text, err := s.Phase.MarshalText()
			if err != nil {
				return fmt.Errorf("adhesion: marshalling phase: %w", err)
			}
			phase = string(text)
		}
		row := []string{
			strconv.FormatFloat(s.TimeS, 'g', -1, 64),
			strconv.FormatFloat(s.PositionMM, 'g', -1, 64),
			strconv.FormatFloat(s.ForceN, 'g', -1, 64),
			phase,
		}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("adhesion: writing annotated sample row: %w", err)
		}
	}
	writer.Flush()
	return writer.Error()
}
