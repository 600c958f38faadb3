package behavior

// Controller is the feedback law a Control behavior drives. Its math lives outside
// this package.
type Controller interface {
	Calculate(measurement, setpoint float64) float64
	AtSetpoint() bool
	Reset()
}

// Control feeds a measurement and setpoint through a Controller every tick and
// hands the result to an output sink. The output is zeroed on removal.
type Control struct {
	Base

	ctrl     Controller
	measure  func() float64
	setpoint func() float64
	output   func(float64)

	finishAtSetpoint bool
	last             float64
}

// NewControl returns a Control behavior. It runs until cancelled unless
// UntilAtSetpoint is called.
func NewControl(name string, ctrl Controller, measure, setpoint func() float64, output func(float64), opts ...Option) *Control {
	return &Control{
		Base:     NewBase(name, opts...),
		ctrl:     ctrl,
		measure:  measure,
		setpoint: setpoint,
		output:   output,
	}
}

// UntilAtSetpoint makes the behavior finish once the controller reports it is at
// the setpoint.
func (c *Control) UntilAtSetpoint() *Control {
	c.finishAtSetpoint = true
	return c
}

// Output returns the last value handed to the sink.
func (c *Control) Output() float64 { return c.last }

func (c *Control) Setup() {
	c.ctrl.Reset()
	c.last = 0
}

func (c *Control) Step() {
	c.emit(c.ctrl.Calculate(c.measure(), c.setpoint()))
}

func (c *Control) IsFinished() bool {
	return c.finishAtSetpoint && c.ctrl.AtSetpoint()
}

func (c *Control) Teardown()    { c.emit(0) }
func (c *Control) OnInterrupt() { c.emit(0) }

func (c *Control) emit(v float64) {
	c.last = v
	if c.output != nil {
		c.output(v)
	}
}
