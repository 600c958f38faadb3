package scheduler

import (
	"errors"

	"cadence/internal/behavior"
)

// Proxy schedules other behaviors through a Requester instead of running them
// itself. It finishes once none of its targets is scheduled and cancels them if it
// is interrupted. A Proxy requires no resources unless given some.
type Proxy struct {
	behavior.Base

	r       Requester
	targets []behavior.Behavior
}

// NewProxy returns a Proxy over targets.
func NewProxy(name string, r Requester, targets []behavior.Behavior, opts ...behavior.Option) *Proxy {
	return &Proxy{Base: behavior.NewBase(name, opts...), r: r, targets: append([]behavior.Behavior(nil), targets...)}
}

func (p *Proxy) Setup() {
	var errs []error
	for _, t := range p.targets {
		errs = append(errs, p.r.Request(t))
	}
	if err := errors.Join(errs...); err != nil {
		panic(err)
	}
}

func (p *Proxy) IsFinished() bool {
	for _, t := range p.targets {
		if p.r.IsScheduled(t) {
			return false
		}
	}
	return true
}

func (p *Proxy) OnInterrupt() {
	for _, t := range p.targets {
		p.r.Cancel(t)
	}
}
