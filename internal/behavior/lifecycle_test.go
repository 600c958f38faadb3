package behavior

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cadence/internal/resource"
)

var t0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

type counting struct {
	Base
	setup, step, finishedCalls, teardown, interrupt int
	finished                                         bool
	panicIn                                          string
}

func (c *counting) Setup() {
	c.setup++
	if c.panicIn == "setup" {
		panic("setup boom")
	}
}

func (c *counting) Step() {
	c.step++
	if c.panicIn == "step" {
		panic("step boom")
	}
}

func (c *counting) IsFinished() bool {
	c.finishedCalls++
	return c.finished
}

func (c *counting) Teardown()    { c.teardown++ }
func (c *counting) OnInterrupt() { c.interrupt++ }

func TestLifecycleFinish(t *testing.T) {
	t.Parallel()
	b := &counting{Base: NewBase("count", Requires(1, 2))}

	MarkPending(b)
	assert.Equal(t, Pending, b.State())

	require.NoError(t, Start(b, t0))
	assert.Equal(t, Running, b.State())
	assert.Equal(t, 1, b.setup)

	out, err := Run(b, t0.Add(time.Second))
	require.NoError(t, err)
	assert.Equal(t, Continue, out)
	assert.Equal(t, time.Second, b.Elapsed())

	b.finished = true
	out, err = Run(b, t0.Add(2*time.Second))
	require.NoError(t, err)
	assert.Equal(t, Finished, out)
	assert.True(t, out.Ends())

	require.NoError(t, Finish(b, t0.Add(2*time.Second)))
	assert.Equal(t, Ended, b.State())
	assert.True(t, b.State().Terminal())
	assert.Equal(t, 2, b.step)
	assert.Equal(t, 2, b.finishedCalls)
	assert.Equal(t, 1, b.teardown)
	assert.Equal(t, 0, b.interrupt)
}

func TestRunTimeoutSkipsStep(t *testing.T) {
	t.Parallel()
	b := &counting{Base: NewBase("timed", Timeout(time.Second))}
	require.NoError(t, Start(b, t0))

	out, err := Run(b, t0.Add(500*time.Millisecond))
	require.NoError(t, err)
	assert.Equal(t, Continue, out)

	out, err = Run(b, t0.Add(time.Second))
	require.NoError(t, err)
	assert.Equal(t, TimedOut, out)
	assert.Equal(t, 1, b.step)
}

func TestCancelOnlyWhileRunning(t *testing.T) {
	t.Parallel()
	b := &counting{Base: NewBase("cancel")}

	assert.False(t, RequestCancel(b))
	require.NoError(t, Start(b, t0))
	assert.True(t, RequestCancel(b))
	assert.True(t, b.Cancelled())

	out, err := Run(b, t0)
	require.NoError(t, err)
	assert.Equal(t, Cancelled, out)
	assert.True(t, out.Interrupts())
	assert.Equal(t, 0, b.step)

	require.NoError(t, Interrupt(b, t0))
	assert.Equal(t, Interrupted, b.State())
	assert.False(t, b.Cancelled())
	assert.Equal(t, 1, b.interrupt)

	// Re-admission after a terminal state starts clean.
	MarkPending(b)
	require.NoError(t, Start(b, t0.Add(time.Minute)))
	assert.Equal(t, 2, b.setup)
	assert.Equal(t, time.Duration(0), b.Elapsed())
}

func TestPanicsBecomeErrors(t *testing.T) {
	t.Parallel()
	b := &counting{Base: NewBase("bad"), panicIn: "step"}
	require.NoError(t, Start(b, t0))

	out, err := Run(b, t0)
	assert.Equal(t, Failed, out)
	var pe *PanicError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, "bad", pe.Behavior)
	assert.Equal(t, "step", pe.Hook)
	assert.NotEmpty(t, pe.Stack)
	assert.Equal(t, 0, b.finishedCalls)

	s := &counting{Base: NewBase("bad-setup"), panicIn: "setup"}
	err = Start(s, t0)
	require.Error(t, err)
	assert.Equal(t, Running, s.State())
}

func TestMarkIdleOnlyFromPending(t *testing.T) {
	t.Parallel()
	b := &counting{Base: NewBase("idle")}
	MarkPending(b)
	MarkIdle(b)
	assert.Equal(t, Idle, b.State())

	require.NoError(t, Start(b, t0))
	MarkPending(b)
	MarkIdle(b)
	assert.Equal(t, Running, b.State())
}

func TestAdopt(t *testing.T) {
	t.Parallel()
	p1 := New("p1", Hooks{})
	p2 := New("p2", Hooks{})
	child := New("child", Hooks{})

	require.NoError(t, Adopt(p1, child))
	require.NoError(t, Adopt(p1, child))
	assert.Equal(t, p1.ID(), child.Owner())
	assert.ErrorIs(t, Adopt(p2, child), ErrComposed)
	assert.ErrorIs(t, Adopt(p1, p1), ErrComposed)

	Release(child)
	require.NoError(t, Adopt(p2, child))
}

func TestCoreDefaults(t *testing.T) {
	t.Parallel()
	var c Base
	assert.True(t, c.Interruptible())
	assert.True(t, c.Requirements().Empty())
	assert.NotEmpty(t, c.ID())
	assert.Equal(t, string(c.ID()), c.Name())
	assert.False(t, c.IsFinished())

	n := NewBase(" arm ", Requires(3), RequiresSet(resource.NewSet(4)), Uninterruptible())
	assert.Equal(t, "arm", n.Name())
	assert.Equal(t, []resource.ID{3, 4}, n.Requirements().IDs())
	assert.False(t, n.Interruptible())
	n.ClearRequirements()
	assert.True(t, n.Requirements().Empty())

	a, b := NewBase("same"), NewBase("same")
	assert.NotEqual(t, a.ID(), b.ID())
}
