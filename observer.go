package ruleforge

import "github.com/ruleforge/ruleforge-go/core"

// Observer receives the ordered progress events and the single terminal
// settlement of one operation. Callbacks run synchronously on the stream
// goroutine: they must return quickly and hand slow rendering work to a
// goroutine of their own. OnSettled is called exactly once, after the last
// event.
type Observer interface {
	OnEvent(core.ProgressEvent)
	OnSettled(core.Outcome)
}

// ObserverFuncs adapts plain functions to Observer. Nil fields are skipped.
type ObserverFuncs struct {
	Event   func(core.ProgressEvent)
	Settled func(core.Outcome)
}

func (o ObserverFuncs) OnEvent(ev core.ProgressEvent) {
	if o.Event != nil {
		o.Event(ev)
	}
}

func (o ObserverFuncs) OnSettled(out core.Outcome) {
	if o.Settled != nil {
		o.Settled(out)
	}
}
