package port

import "time"

// ScreeningRecorder метрики сценария проверки
type ScreeningRecorder interface {
	RecordIntake(source string, accepted bool)
	RecordAnalysis(outcome string, elapsed time.Duration)
	RecordCapture(event string)
}

// NopRecorder ничего не записывает
type NopRecorder struct{}

func (NopRecorder) RecordIntake(string, bool)            {}
func (NopRecorder) RecordAnalysis(string, time.Duration) {}
func (NopRecorder) RecordCapture(string)                 {}
