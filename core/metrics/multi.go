package metrics

import "errors"

// MultiSink forwards events to several sinks.
type MultiSink struct {
	Sinks []MetricsSink
}

// NewMultiSink combines sinks.
func NewMultiSink(sinks ...MetricsSink) *MultiSink {
	return &MultiSink{Sinks: sinks}
}

// RecordPrediction forwards to every sink and joins their errors.
func (m *MultiSink) RecordPrediction(ev PredictionEvent) error {
	var errs []error
	for _, s := range m.Sinks {
		if err := s.RecordPrediction(ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// RecordTraining forwards to every sink implementing TrainingRecorder.
func (m *MultiSink) RecordTraining(ev TrainingEvent) error {
	var errs []error
	for _, s := range m.Sinks {
		if tr, ok := s.(TrainingRecorder); ok {
			if err := tr.RecordTraining(ev); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

// Close closes every sink exposing a Close method.
func (m *MultiSink) Close() {
	for _, s := range m.Sinks {
		if c, ok := s.(interface{ Close() }); ok {
			c.Close()
		}
	}
}
