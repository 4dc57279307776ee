package inspect

// Sink receives a run's notifications on the goroutine that drains it.
type Sink interface {
	OnStart(runID string)
	OnUpdate(stage Stage, state State)
	OnComplete(result Result)
}

// SinkFuncs adapts optional functions to Sink.
type SinkFuncs struct {
	Start    func(runID string)
	Update   func(stage Stage, state State)
	Complete func(result Result)
}

func (f SinkFuncs) OnStart(runID string) {
	if f.Start != nil {
		f.Start(runID)
	}
}

func (f SinkFuncs) OnUpdate(stage Stage, state State) {
	if f.Update != nil {
		f.Update(stage, state)
	}
}

func (f SinkFuncs) OnComplete(result Result) {
	if f.Complete != nil {
		f.Complete(result)
	}
}

// MultiSink forwards to every non-nil sink in order.
type MultiSink []Sink

func (m MultiSink) OnStart(runID string) {
	for _, s := range m {
		if s != nil {
			s.OnStart(runID)
		}
	}
}

func (m MultiSink) OnUpdate(stage Stage, state State) {
	for _, s := range m {
		if s != nil {
			s.OnUpdate(stage, state)
		}
	}
}

func (m MultiSink) OnComplete(result Result) {
	for _, s := range m {
		if s != nil {
			s.OnComplete(result)
		}
	}
}
