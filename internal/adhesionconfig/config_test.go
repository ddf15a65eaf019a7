package adhesionconfig

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.ExpectedLiftMM != 6.0 {
		t.Errorf("ExpectedLiftMM = %f, want 6.0", cfg.ExpectedLiftMM)
	}
	if cfg.MedianKernel != 5 {
		t.Errorf("MedianKernel = %d, want 5", cfg.MedianKernel)
	}
	if cfg.SavgolWindow != 9 {
		t.Errorf("SavgolWindow = %d, want 9", cfg.SavgolWindow)
	}
	if cfg.SavgolOrder != 2 {
		t.Errorf("SavgolOrder = %d, want 2", cfg.SavgolOrder)
	}
	if cfg.PropagationEndThresholdFraction != 0.10 {
		t.Errorf("PropagationEndThresholdFraction = %f, want 0.10", cfg.PropagationEndThresholdFraction)
	}
	if cfg.PreInitRelativeThreshold != 0.02 {
		t.Errorf("PreInitRelativeThreshold = %f, want 0.02", cfg.PreInitRelativeThreshold)
	}
}

func TestLoadAndMerge(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "overrides.json")

	const doc = `{
  "expected_lift_mm": 8.0,
  "median_kernel": 7
}`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	ov, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	merged := Default().Merge(ov)
	if merged.ExpectedLiftMM != 8.0 {
		t.Errorf("ExpectedLiftMM = %f, want 8.0", merged.ExpectedLiftMM)
	}
	if merged.MedianKernel != 7 {
		t.Errorf("MedianKernel = %d, want 7", merged.MedianKernel)
	}
	// Fields not present in the override document keep their defaults.
	if merged.SavgolWindow != 9 {
		t.Errorf("SavgolWindow = %d, want unchanged default 9", merged.SavgolWindow)
	}
}

func TestLoadRejectsNonJSONExtension(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "overrides.txt")
	if err := os.WriteFile(path, []byte("{}"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	if _, err := Load(path); err == nil {
		t.Fatal("expected error for non-.json extension, got nil")
	}
}

func TestOverridesValidateRejectsEvenKernel(t *testing.T) {
	k := 4
	ov := &Overrides{MedianKernel: &k}
	if err := ov.Validate(); err == nil {
		t.Fatal("expected validation error for even median_kernel, got nil")
	}
}

func TestMergeNilOverridesIsNoop(t *testing.T) {
	cfg := Default()
	merged := cfg.Merge(nil)
	if merged != cfg {
		t.Errorf("Merge(nil) = %+v, want unchanged %+v", merged, cfg)
	}
}
