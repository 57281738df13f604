package steplog

import (
	"fmt"

	"mailagent/pkg/logg"

	"go.uber.org/zap"
)

// Recorder keeps the ordered step records of one task and mirrors them
// to the structured log. One recorder per task; never shared.
type Recorder struct {
	logger *zap.Logger
	steps  []string
}

func New(logger *zap.Logger, provider string) *Recorder {
	return &Recorder{
		logger: logger.With(
			zap.String(logg.Layer, "StepLog"),
			zap.String(logg.Provider, provider),
		),
	}
}

func (r *Recorder) Step(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	r.logger.Info(msg)
	r.steps = append(r.steps, msg)
}

// Steps returns the ordered records accumulated so far.
func (r *Recorder) Steps() []string {
	out := make([]string, len(r.steps))
	copy(out, r.steps)

	return out
}
