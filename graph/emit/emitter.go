package emit

// Emitter receives observability events from graph execution.
//
// Emit is called synchronously from the run loop, so implementations must be
// cheap, must not panic and must be safe for concurrent use: independent runs
// of the same engine share one Emitter.
type Emitter interface {
	Emit(event Event)
}

// MultiEmitter fans each event out to several emitters in order.
type MultiEmitter []Emitter

// Multi combines emitters, skipping nil entries.
//
// Example:
//
//	emitter := emit.Multi(emit.NewZapEmitter(logger), emit.NewOTelEmitter(tracer))
func Multi(emitters ...Emitter) MultiEmitter {
	out := make(MultiEmitter, 0, len(emitters))
	for _, e := range emitters {
		if e != nil {
			out = append(out, e)
		}
	}
	return out
}

// Emit implements Emitter.
func (m MultiEmitter) Emit(event Event) {
	for _, e := range m {
		e.Emit(event)
	}
}

// EmitterFunc adapts a function to the Emitter interface.
type EmitterFunc func(Event)

// Emit implements Emitter.
func (f EmitterFunc) Emit(event Event) { f(event) }
