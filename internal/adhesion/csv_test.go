package adhesion

import (
	"bytes"
	"math"
	"strings"
	"testing"

	"github.com/chengsunlab/adhesion-metrics/internal/testutil"
)

func TestReadSampleRecordParsesRequiredColumnsCaseInsensitive(t *testing.T) {
	input := "FORCE (N),position (mm),Elapsed Time (s)\n0.1,9.5,0.02\n0.2,9.0,0.04\n"
	diag := &Diagnostics{}

	record, err := ReadSampleRecord(strings.NewReader(input), diag)
	testutil.AssertNoError(t, err)

	if record.Len() != 2 {
		t.Fatalf("record.Len() = %d, want 2", record.Len())
	}
	testutil.AssertFloatClose(t, record.Samples[0].TimeS, 0.02, 1e-9, "sample 0 time")
	testutil.AssertFloatClose(t, record.Samples[0].PositionMM, 9.5, 1e-9, "sample 0 position")
	testutil.AssertFloatClose(t, record.Samples[0].ForceN, 0.1, 1e-9, "sample 0 force")
	if diag.RejectedCSVRows.Load() != 0 {
		t.Errorf("RejectedCSVRows = %d, want 0", diag.RejectedCSVRows.Load())
	}
}

func TestReadSampleRecordRejectsNonNumericRequiredCell(t *testing.T) {
	input := "Elapsed Time (s),Position (mm),Force (N)\n0.02,9.5,0.1\nNOT_A_NUMBER,9.0,0.2\n0.06,8.5,0.3\n"
	diag := &Diagnostics{}

	record, err := ReadSampleRecord(strings.NewReader(input), diag)
	testutil.AssertNoError(t, err)

	if record.Len() != 2 {
		t.Fatalf("record.Len() = %d, want 2 (one row rejected)", record.Len())
	}
	if diag.RejectedCSVRows.Load() != 1 {
		t.Errorf("RejectedCSVRows = %d, want 1", diag.RejectedCSVRows.Load())
	}
}

func TestReadSampleRecordParsesOptionalPhaseColumn(t *testing.T) {
	input := "Elapsed Time (s),Position (mm),Force (N),Phase\n0.02,9.5,0.1,Lift\n0.04,9.0,0.2,\n"
	record, err := ReadSampleRecord(strings.NewReader(input), nil)
	testutil.AssertNoError(t, err)

	if !record.Samples[0].HasPhase || record.Samples[0].Phase != PhaseLift {
		t.Errorf("sample 0 phase = (%v, %v), want (true, Lift)", record.Samples[0].HasPhase, record.Samples[0].Phase)
	}
	if record.Samples[1].HasPhase {
		t.Errorf("sample 1 HasPhase = true, want false for an empty Phase cell")
	}
}

func TestReadSampleRecordMissingRequiredColumnErrors(t *testing.T) {
	input := "Elapsed Time (s),Position (mm)\n0.02,9.5\n"
	_, err := ReadSampleRecord(strings.NewReader(input), nil)
	testutil.AssertError(t, err)
}

func TestWriteMetricsTableOrderAndEmptyCells(t *testing.T) {
	speed := 120.0
	layers := []LayerMetrics{
		{
			LayerNumber:              1,
			StepSpeedUmPerS:          &speed,
			PeakForceN:               0.3,
			WorkOfAdhesionMJ:         0.5625,
			PeakTimeS:                5.0,
			DistanceToPeakMM:         1.25,
			PropagationDurationS:     1.0,
			PropagationDistanceMM:    2.5,
			TotalPeelDurationS:       2.0,
			TotalPeelDistanceMM:      3.75,
			PeakRetractionForceN:     -0.01,
			EffectiveStiffnessNPerMM: math.NaN(),
			StiffnessR2:              math.NaN(),
			SignalToNoiseRatio:       math.NaN(),
			DataQualityOK:            true,
		},
		emptyMetrics(2),
	}

	var buf bytes.Buffer
	err := WriteMetricsTable(&buf, layers)
	testutil.AssertNoError(t, err)

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != 3 {
		t.Fatalf("len(lines) = %d, want 3 (header + 2 rows)", len(lines))
	}
	if lines[0] != strings.Join(metricsHeader, ",") {
		t.Errorf("header = %q, want %q", lines[0], strings.Join(metricsHeader, ","))
	}

	row1 := strings.Split(lines[1], ",")
	if row1[11] != "" || row1[12] != "" || row1[13] != "" {
		t.Errorf("row 1 NaN fields were not serialized as empty cells: %v", row1)
	}
	if row1[14] != "true" {
		t.Errorf("row 1 Data_Quality_OK = %q, want %q", row1[14], "true")
	}

	row2 := strings.Split(lines[2], ",")
	if row2[1] != "" {
		t.Errorf("row 2 Step_Speed_um_s = %q, want empty (no step speed set)", row2[1])
	}
	if row2[14] != "false" {
		t.Errorf("row 2 Data_Quality_OK = %q, want %q", row2[14], "false")
	}
}

func TestMetricsTableRoundTrip(t *testing.T) {
	speed := 150.5
	layers := []LayerMetrics{
		{
			LayerNumber:              1,
			StepSpeedUmPerS:          &speed,
			PeakForceN:               0.30000000000000004,
			WorkOfAdhesionMJ:         0.5625,
			PeakTimeS:                5.0,
			DistanceToPeakMM:         1.25,
			PropagationDurationS:     1.0,
			PropagationDistanceMM:    2.5,
			TotalPeelDurationS:       2.0,
			TotalPeelDistanceMM:      3.75,
			PeakRetractionForceN:     -0.010000000000000002,
			EffectiveStiffnessNPerMM: 0.042,
			StiffnessR2:              0.987654321,
			SignalToNoiseRatio:       12.3456789,
			DataQualityOK:            true,
		},
		emptyMetrics(2),
	}

	var buf bytes.Buffer
	testutil.AssertNoError(t, WriteMetricsTable(&buf, layers))

	reread, err := ReadMetricsTable(&buf)
	testutil.AssertNoError(t, err)

	if len(reread) != 2 {
		t.Fatalf("len(reread) = %d, want 2", len(reread))
	}

	got, want := reread[0], layers[0]
	if got.LayerNumber != want.LayerNumber {
		t.Errorf("LayerNumber = %d, want %d", got.LayerNumber, want.LayerNumber)
	}
	if got.StepSpeedUmPerS == nil || *got.StepSpeedUmPerS != *want.StepSpeedUmPerS {
		t.Errorf("StepSpeedUmPerS = %v, want %v", got.StepSpeedUmPerS, want.StepSpeedUmPerS)
	}
	testutil.AssertFloatClose(t, got.PeakForceN, want.PeakForceN, 0, "Peak_Force_N")
	testutil.AssertFloatClose(t, got.WorkOfAdhesionMJ, want.WorkOfAdhesionMJ, 0, "Work_of_Adhesion_mJ")
	testutil.AssertFloatClose(t, got.PeakTimeS, want.PeakTimeS, 0, "Time_to_Peak_s")
	testutil.AssertFloatClose(t, got.DistanceToPeakMM, want.DistanceToPeakMM, 0, "Distance_to_Peak_mm")
	testutil.AssertFloatClose(t, got.PropagationDurationS, want.PropagationDurationS, 0, "Propagation_Time_s")
	testutil.AssertFloatClose(t, got.PropagationDistanceMM, want.PropagationDistanceMM, 0, "Propagation_Distance_mm")
	testutil.AssertFloatClose(t, got.TotalPeelDurationS, want.TotalPeelDurationS, 0, "Total_Peel_Time_s")
	testutil.AssertFloatClose(t, got.TotalPeelDistanceMM, want.TotalPeelDistanceMM, 0, "Total_Peel_Distance_mm")
	testutil.AssertFloatClose(t, got.PeakRetractionForceN, want.PeakRetractionForceN, 0, "Peak_Retraction_Force_N")
	testutil.AssertFloatClose(t, got.EffectiveStiffnessNPerMM, want.EffectiveStiffnessNPerMM, 0, "Effective_Stiffness_N_per_mm")
	testutil.AssertFloatClose(t, got.StiffnessR2, want.StiffnessR2, 0, "Stiffness_R2")
	testutil.AssertFloatClose(t, got.SignalToNoiseRatio, want.SignalToNoiseRatio, 0, "SNR")
	if got.DataQualityOK != want.DataQualityOK {
		t.Errorf("DataQualityOK = %v, want %v", got.DataQualityOK, want.DataQualityOK)
	}

	emptyGot := reread[1]
	if emptyGot.StepSpeedUmPerS != nil {
		t.Errorf("row 2 StepSpeedUmPerS = %v, want nil", emptyGot.StepSpeedUmPerS)
	}
	if !math.IsNaN(emptyGot.PeakForceN) {
		t.Errorf("row 2 PeakForceN = %v, want NaN", emptyGot.PeakForceN)
	}
	if !math.IsNaN(emptyGot.EffectiveStiffnessNPerMM) {
		t.Errorf("row 2 EffectiveStiffnessNPerMM = %v, want NaN", emptyGot.EffectiveStiffnessNPerMM)
	}
	if emptyGot.DataQualityOK {
		t.Errorf("row 2 DataQualityOK = true, want false")
	}
}

func TestWriteAnnotatedSamplesRoundTripsPhase(t *testing.T) {
	record := &SampleRecord{Samples: []Sample{
		{TimeS: 0, PositionMM: 10.0, ForceN: 0.0, HasPhase: true, Phase: PhaseLift},
		{TimeS: 0.02, PositionMM: 9.9, ForceN: 0.01, HasPhase: false},
	}}

	var buf bytes.Buffer
	testutil.AssertNoError(t, WriteAnnotatedSamples(&buf, record))

	reread, err := ReadSampleRecord(&buf, nil)
	testutil.AssertNoError(t, err)

	if reread.Len() != 2 {
		t.Fatalf("reread.Len() = %d, want 2", reread.Len())
	}
	if !reread.Samples[0].HasPhase || reread.Samples[0].Phase != PhaseLift {
		t.Errorf("reread sample 0 phase = (%v, %v), want (true, Lift)", reread.Samples[0].HasPhase, reread.Samples[0].Phase)
	}
	if reread.Samples[1].HasPhase {
		t.Errorf("reread sample 1 HasPhase = true, want false")
	}
}
