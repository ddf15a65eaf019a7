// Package adhesion implements the Adhesion Metrics Analysis Core: the
// four-stage numerical pipeline that turns a (time, stage-position,
// load-cell-force) sample stream into per-layer mechanical adhesion
// metrics for DLP resin 3D printing.
//
// Responsibilities: smoothing (Smoothing Filter), per-layer event
// detection and metric derivation (Metrics Calculator), layer
// segmentation from continuous motion data (Segmenter), batch
// orchestration over a full file (Batch Processor), a real-time
// per-layer buffer with asynchronous analysis handoff (Live Collector),
// and a per-sample motion-phase classifier that keeps a little state
// across calls (Phase Annotator).
//
// This package never talks to stage hardware, a projector, a GUI, or a
// database: it consumes a sample stream and a Config, and produces
// LayerMetrics values. Everything upstream (acquisition) and downstream
// (plotting, reporting, persistent storage) is the caller's concern.
package adhesion
