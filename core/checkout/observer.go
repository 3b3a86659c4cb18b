package checkout

// Observer is told about every transition (metrics).
type Observer interface {
	Transition(from, to State)
}

type noopObserver struct{}

func (noopObserver) Transition(State, State) {}

type nopLogger struct{}

func (nopLogger) Debug(string, ...interface{}) {}
func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Warn(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}
func (nopLogger) Fatal(string, ...interface{}) {}

func (d Deps) withDefaults() *Deps {
	if d.Logger == nil {
		d.Logger = nopLogger{}
	}
	if d.Observer == nil {
		d.Observer = noopObserver{}
	}
	return &d
}
