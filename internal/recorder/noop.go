package recorder

import "MarketFortress/internal/model"

// NoopRecorder is used when SQLite is not configured.
type NoopRecorder struct{}

func NewNoopRecorder() *NoopRecorder { return &NoopRecorder{} }

func (n *NoopRecorder) RecordScan(_ *model.ScanRun) error                  { return nil }
func (n *NoopRecorder) RecordSignals(_ string, _ []model.Signal) error     { return nil }
func (n *NoopRecorder) RecordWheelTransition(_ *model.WheelDecision) error { return nil }
func (n *NoopRecorder) Close() error                                       { return nil }
