package featurizer

// Progress reports per-tracker iteration. Implementations must not affect
// the featurization result.
type Progress interface {
	Start(total int)
	Step(postfix string)
	Finish()
}

// Observer is told about every tracker and training example a strategy
// handles.
type Observer interface {
	TrackerProcessed(strategy string)
	ExampleCreated(strategy string)
	DuplicateSkipped(strategy string)
}

// Hooks bundles the optional observational callbacks. The zero value does
// nothing.
type Hooks struct {
	Progress Progress
	Observer Observer
}

func (h Hooks) start(total int) {
	if h.Progress != nil {
		h.Progress.Start(total)
	}
}

func (h Hooks) step(postfix string) {
	if h.Progress != nil {
		h.Progress.Step(postfix)
	}
}

func (h Hooks) finish() {
	if h.Progress != nil {
		h.Progress.Finish()
	}
}

func (h Hooks) tracker(strategy string) {
	if h.Observer != nil {
		h.Observer.TrackerProcessed(strategy)
	}
}

func (h Hooks) example(strategy string) {
	if h.Observer != nil {
		h.Observer.ExampleCreated(strategy)
	}
}

func (h Hooks) duplicate(strategy string) {
	if h.Observer != nil {
		h.Observer.DuplicateSkipped(strategy)
	}
}
