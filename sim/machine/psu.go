package machine

import (
	"fmt"
	"math"

	"github.com/inference-sim/flowsim/sim"
	"github.com/inference-sim/flowsim/sim/power"
)

// PSU is the power supply of a machine. It evaluates the power model on the
// machine's aggregate CPU utilization at every settled instant.
//
// With an upstream source the PSU is an unbounded consumer of that context,
// demanding the model's power; the reported draw is then capped by the
// source's capacity.
type PSU struct {
	in     *sim.Interpreter
	model  power.Model
	source *sim.ResourceContext
	feed   *sim.Consumer

	utilization float64
	demand      float64
	draw        float64
	energy      float64 // joules accumulated up to last
	last        int64

	drawSignal *sim.Signal
}

func newPSU(in *sim.Interpreter, driver power.Driver) (*PSU, error) {
	model := driver.Model
	if model == nil {
		model = power.Constant{}
	}
	p := &PSU{
		in:         in,
		model:      model,
		source:     driver.Source,
		last:       in.Now(),
		drawSignal: sim.NewSignal(0),
	}
	if p.source != nil {
		feed, err := p.source.StartConsumer(sim.Demand{Rate: 0, Amount: math.Inf(1)})
		if err != nil {
			return nil, fmt.Errorf("attaching psu to %s: %w", p.source.Name(), err)
		}
		p.feed = feed
	}
	p.update(in.Now(), 0)
	return p, nil
}

// update accounts energy up to now at the previous draw, then re-evaluates
// the model at utilization u.
func (p *PSU) update(now int64, u float64) {
	p.accumulate(now)
	p.utilization = u
	p.demand = p.model.ComputePower(u)
	p.draw = p.demand
	if p.feed != nil {
		if err := p.feed.SetDemand(p.demand); err != nil {
			// the source closed or its consumer was cancelled: nothing flows
			p.draw = 0
		} else {
			p.draw = math.Min(p.demand, p.source.Capacity())
		}
	}
	p.drawSignal.Publish(now, p.draw)
}

func (p *PSU) accumulate(now int64) {
	if now > p.last {
		p.energy += p.draw * float64(now-p.last) / 1000
	}
	p.last = now
}

// detach releases the upstream source and stops drawing power.
func (p *PSU) detach(now int64) {
	p.accumulate(now)
	if p.feed != nil {
		p.feed.Cancel()
		p.feed = nil
	}
	p.demand = 0
	p.draw = 0
	p.drawSignal.Publish(now, 0)
	p.drawSignal.Close()
}

// PowerDraw returns the power drawn in watts, capped by the source capacity.
func (p *PSU) PowerDraw() float64 {
	return p.draw
}

// PowerDemand returns the unconstrained model value in watts.
func (p *PSU) PowerDemand() float64 {
	return p.demand
}

// Utilization returns the utilization the model was last evaluated at.
func (p *PSU) Utilization() float64 {
	return p.utilization
}

// Energy returns the energy drawn in joules up to the current instant.
func (p *PSU) Energy() float64 {
	e := p.energy
	if now := p.in.Now(); now > p.last {
		e += p.draw * float64(now-p.last) / 1000
	}
	return e
}

// Source returns the upstream power source, or nil.
func (p *PSU) Source() *sim.ResourceContext {
	return p.source
}

// SubscribePowerDraw returns the power draw stream, starting with the current draw.
func (p *PSU) SubscribePowerDraw(buffer int) *sim.Stream {
	return p.drawSignal.Subscribe(p.in.Now(), buffer)
}
