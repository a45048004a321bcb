package recorder

import "MarketFortress/internal/model"

// Recorder persists scan history and wheel decisions for later analysis.
// Nothing in the scan or wheel path reads it back.
type Recorder interface {
	RecordScan(run *model.ScanRun) error
	RecordSignals(runID string, signals []model.Signal) error
	RecordWheelTransition(d *model.WheelDecision) error
	Close() error
}
