package adhesion

import (
	"log"

	"github.com/chengsunlab/adhesion-metrics/internal/adhesionconfig"
)

// InstructionIndex maps a layer number to its recorded step speed,
// recovered from a companion instruction record. It supplements the
// spec's "opaque metadata passed in" field (§3) the way the original
// print workflow joins its logged step speed back onto each layer.
type InstructionIndex map[int64]float64

// ConditionTags carries the fluid/gap metadata that is constant for an
// entire acquisition session (one file == one session in the source
// material), stamped onto every layer the Batch Processor assembles.
type ConditionTags struct {
	FluidTag string
	GapTag   string
}

// BatchResult is the assembled output of one Batch Processor run: the
// per-layer metrics table plus the diagnostics accumulated while
// producing it.
type BatchResult struct {
	Layers      []LayerMetrics
	Diagnostics *Diagnostics
}

// ProcessRecord drives the Segmenter over record, invokes the Calculator
// for every resulting layer, and assembles a metrics table (4.D). It is
// thin orchestration with no algorithms of its own: segmentation and
// metric derivation are entirely delegated.
//
// instructions and tags may be nil/zero; when present, they are joined
// onto each layer by layer number (instructions) or applied uniformly
// (tags). Layer numbers are assigned by occurrence order, starting at 1,
// matching one printed slice per emitted LayerBoundaries.
func ProcessRecord(record *SampleRecord, cfg adhesionconfig.Config, instructions InstructionIndex, tags ConditionTags) (BatchResult, error) {
	diag := &Diagnostics{}

	boundaries, err := Segment(record, cfg, diag)
	if err != nil {
		return BatchResult{}, err
	}

	if len(boundaries) == 0 {
		log.Printf("adhesion: batch processor found no layers in record of %d samples", record.Len())
		return BatchResult{Layers: nil, Diagnostics: diag}, nil
	}

	layers := make([]LayerMetrics, 0, len(boundaries))
	for i, b := range boundaries {
		layerNumber := int64(i + 1)
		m, err := CalculateLayerMetrics(record, b, layerNumber, cfg)
		if err != nil {
			// A structural failure here means the Segmenter itself
			// produced an invalid boundary, which is a programmer error
			// upstream of this function — abort the batch rather than
			// silently dropping a layer.
			return BatchResult{}, err
		}
		if speed, ok := instructions[layerNumber]; ok {
			s := speed
			m.StepSpeedUmPerS = &s
		}
		m.FluidTag = tags.FluidTag
		m.GapTag = tags.GapTag
		layers = append(layers, m)
	}

	return BatchResult{Layers: layers, Diagnostics: diag}, nil
}
