package group

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cadence/internal/behavior"
	"cadence/internal/resource"
)

var t0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

type counts struct{ init, exec, isFinished, end, interrupted int }

type countingBehavior struct {
	behavior.Base
	c        counts
	finished bool
	panicIn  string
}

func newCounting(name string, opts ...behavior.Option) *countingBehavior {
	return &countingBehavior{Base: behavior.NewBase(name, opts...)}
}

func (b *countingBehavior) Setup() {
	b.c.init++
	if b.panicIn == "setup" {
		panic("setup failed")
	}
}

func (b *countingBehavior) Step() {
	b.c.exec++
	if b.panicIn == "step" {
		panic("step failed")
	}
}

func (b *countingBehavior) IsFinished() bool {
	b.c.isFinished++
	return b.finished
}

func (b *countingBehavior) Teardown()    { b.c.end++ }
func (b *countingBehavior) OnInterrupt() { b.c.interrupted++ }

// host drives one top-level behavior the way the scheduler does: admission on the
// first tick, then one Run per tick until removal.
type host struct {
	b       behavior.Behavior
	now     time.Time
	started bool
	err     error
}

func (h *host) tick() {
	c := h.b.Core()
	if !h.started {
		h.started = true
		h.err = behavior.Start(h.b, h.now)
		return
	}
	if !c.Running() {
		return
	}
	out, err := behavior.Run(h.b, h.now)
	h.err = err
	switch {
	case out.Ends():
		_ = behavior.Finish(h.b, h.now)
	case out.Interrupts():
		_ = behavior.Interrupt(h.b, h.now)
	}
}

func TestSequenceTimeoutsAdvanceSameTick(t *testing.T) {
	t.Parallel()
	a, b, c := newCounting("a"), newCounting("b"), newCounting("c")
	seq, err := NewSequence("seq", []Entry{
		Timed(a, time.Second),
		Timed(b, 2*time.Second),
		Child(c),
	}, AdvanceSameTick())
	require.NoError(t, err)

	h := &host{b: seq, now: t0}
	zero := counts{}

	h.tick()
	assert.Equal(t, zero, a.c)
	assert.Equal(t, zero, b.c)
	assert.Equal(t, zero, c.c)

	h.tick()
	assert.Equal(t, counts{1, 1, 1, 0, 0}, a.c)
	assert.Equal(t, zero, b.c)

	h.now = h.now.Add(1250 * time.Millisecond)
	h.tick()
	assert.Equal(t, counts{1, 1, 1, 0, 1}, a.c)
	assert.Equal(t, counts{1, 1, 1, 0, 0}, b.c)
	assert.Equal(t, zero, c.c)

	h.tick()
	assert.Equal(t, counts{1, 1, 1, 0, 1}, a.c)
	assert.Equal(t, counts{1, 2, 2, 0, 0}, b.c)

	h.now = h.now.Add(2500 * time.Millisecond)
	h.tick()
	assert.Equal(t, counts{1, 2, 2, 0, 1}, b.c)
	assert.Equal(t, counts{1, 1, 1, 0, 0}, c.c)

	h.tick()
	assert.Equal(t, counts{1, 2, 2, 0, 0}, c.c)
	assert.True(t, seq.Core().Running())

	c.finished = true
	h.tick()
	assert.Equal(t, counts{1, 3, 3, 1, 0}, c.c)
	assert.Equal(t, behavior.Ended, seq.Core().State())

	h.tick()
	assert.Equal(t, counts{1, 1, 1, 0, 1}, a.c)
	assert.Equal(t, counts{1, 2, 2, 0, 1}, b.c)
	assert.Equal(t, counts{1, 3, 3, 1, 0}, c.c)
}

func TestSequenceAdvancesNextTickByDefault(t *testing.T) {
	t.Parallel()
	a, b := newCounting("a"), newCounting("b")
	a.finished = true
	seq, err := NewSequence("seq", Children(a, b))
	require.NoError(t, err)

	h := &host{b: seq, now: t0}
	h.tick()
	h.tick()
	assert.Equal(t, counts{1, 1, 1, 1, 0}, a.c)
	assert.Equal(t, counts{}, b.c)

	h.tick()
	assert.Equal(t, counts{1, 1, 1, 0, 0}, b.c)
}

func TestSequenceInterruptReachesOnlyRunningChild(t *testing.T) {
	t.Parallel()
	a, b, c := newCounting("a"), newCounting("b"), newCounting("c")
	a.finished = true
	seq, err := NewSequence("seq", Children(a, b, c), AdvanceSameTick())
	require.NoError(t, err)

	h := &host{b: seq, now: t0}
	h.tick()
	h.tick()
	assert.Same(t, b, seq.Current())

	require.True(t, behavior.RequestCancel(seq))
	h.tick()
	assert.Equal(t, behavior.Interrupted, seq.Core().State())
	assert.Equal(t, counts{1, 1, 1, 1, 0}, a.c)
	assert.Equal(t, 1, b.c.interrupted)
	assert.Equal(t, counts{}, c.c)
}

func TestSequenceChildFailureFailsGroup(t *testing.T) {
	t.Parallel()
	a := newCounting("a")
	a.panicIn = "step"
	seq, err := NewSequence("seq", Children(a, newCounting("b")))
	require.NoError(t, err)

	h := &host{b: seq, now: t0}
	h.tick()
	h.tick()
	var pe *behavior.PanicError
	require.True(t, errors.As(h.err, &pe))
	assert.Equal(t, "seq", pe.Behavior)
	assert.Equal(t, 1, a.c.interrupted)
	assert.Equal(t, behavior.Interrupted, seq.Core().State())
}

func TestSequenceConstruction(t *testing.T) {
	t.Parallel()
	_, err := NewSequence("empty", nil)
	assert.ErrorIs(t, err, ErrEmpty)

	_, err = NewSequence("nil", []Entry{{}})
	assert.ErrorIs(t, err, ErrNilChild)

	shared := newCounting("shared", behavior.Requires(1))
	first, err := NewSequence("first", Children(shared, newCounting("x", behavior.Requires(2))))
	require.NoError(t, err)
	assert.Equal(t, []resource.ID{1, 2}, first.Requirements().IDs())

	fresh := newCounting("fresh")
	_, err = NewSequence("second", Children(fresh, shared))
	assert.ErrorIs(t, err, ErrComposed)
	assert.Empty(t, fresh.Owner(), "failed construction releases adopted children")
}

func TestSequenceInterruptibility(t *testing.T) {
	t.Parallel()
	free := newCounting("free")
	free.finished = true
	locked := newCounting("locked", behavior.Uninterruptible())
	seq, err := NewSequence("seq", Children(free, locked), AdvanceSameTick())
	require.NoError(t, err)

	h := &host{b: seq, now: t0}
	h.tick()
	assert.True(t, seq.Interruptible())
	h.tick()
	assert.Same(t, locked, seq.Current())
	assert.False(t, seq.Interruptible())

	guarded, err := NewSequence("guarded", Children(newCounting("y")), WithCore(behavior.Uninterruptible()))
	require.NoError(t, err)
	assert.False(t, guarded.Interruptible())
}

func TestParallelModes(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name        string
		mode        Mode
		finishFirst bool
		finishOther bool
		wantDone    bool
		wantFirstIR int
		wantOtherIR int
	}{
		{name: "all waits for every child", mode: All, finishFirst: true, wantDone: false},
		{name: "all done", mode: All, finishFirst: true, finishOther: true, wantDone: true},
		{name: "race stops on any child", mode: Race, finishOther: true, wantDone: true, wantFirstIR: 1},
		{name: "deadline ignores others", mode: Deadline, finishOther: true, wantDone: false},
		{name: "deadline interrupts others", mode: Deadline, finishFirst: true, wantDone: true, wantOtherIR: 1},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			first := newCounting("first", behavior.Requires(0))
			other := newCounting("other", behavior.Requires(1))
			first.finished, other.finished = tt.finishFirst, tt.finishOther

			p, err := NewParallel("par", tt.mode, Children(first, other))
			require.NoError(t, err)
			h := &host{b: p, now: t0}
			h.tick()
			h.tick()

			assert.Equal(t, tt.wantDone, !p.Core().Running())
			assert.Equal(t, 1, first.c.init)
			assert.Equal(t, 1, other.c.init)
			assert.Equal(t, tt.wantOtherIR, other.c.interrupted)
			assert.Equal(t, tt.wantFirstIR, first.c.interrupted)
		})
	}
}

func TestParallelInterruptSkipsEndedChildren(t *testing.T) {
	t.Parallel()
	done := newCounting("done", behavior.Requires(0))
	done.finished = true
	busy := newCounting("busy", behavior.Requires(1))

	p, err := NewParallel("par", All, Children(done, busy))
	require.NoError(t, err)
	h := &host{b: p, now: t0}
	h.tick()
	h.tick()

	require.NoError(t, behavior.Interrupt(p, t0))
	assert.Equal(t, counts{1, 1, 1, 1, 0}, done.c)
	assert.Equal(t, counts{1, 1, 1, 0, 1}, busy.c)
}

func TestParallelRejectsOverlap(t *testing.T) {
	t.Parallel()
	a := newCounting("a", behavior.Requires(1, 2))
	b := newCounting("b", behavior.Requires(2))
	_, err := NewParallel("par", All, Children(a, b))
	assert.ErrorIs(t, err, ErrOverlappingRequirements)
	assert.Empty(t, a.Owner())
}

func TestParallelRejectsRepeatedChild(t *testing.T) {
	t.Parallel()
	c := newCounting("c")
	_, err := NewParallel("par", All, Children(c, newCounting("d"), c))
	assert.ErrorIs(t, err, ErrDuplicateChild)
	assert.Empty(t, c.Owner())

	p, err := NewParallel("par", All, Children(c, newCounting("d")))
	require.NoError(t, err)
	h := &host{b: p, now: t0}
	h.tick()
	h.tick()
	assert.Equal(t, 1, c.c.init)
	assert.Equal(t, 1, c.c.exec)
}

func TestBranch(t *testing.T) {
	t.Parallel()
	yes := newCounting("yes", behavior.Requires(1))
	no := newCounting("no", behavior.Requires(2))
	evals := 0
	flag := true
	br, err := NewBranch("branch", func() bool { evals++; return flag }, yes, no)
	require.NoError(t, err)
	assert.Equal(t, []resource.ID{1, 2}, br.Requirements().IDs())

	h := &host{b: br, now: t0}
	h.tick()
	assert.Same(t, yes, br.Selected())
	assert.Equal(t, 1, yes.c.init, "chosen child starts at branch setup")
	assert.True(t, yes.Requirements().Empty())
	assert.Equal(t, counts{}, no.c)

	flag = false
	h.tick()
	h.tick()
	assert.Equal(t, 1, evals)
	assert.Equal(t, 2, yes.c.exec)

	yes.finished = true
	h.tick()
	assert.Equal(t, 1, yes.c.end)
	assert.Equal(t, behavior.Ended, br.Core().State())
}

func TestBranchMissingChildFinishes(t *testing.T) {
	t.Parallel()
	br, err := NewBranch("empty", func() bool { return true }, nil, newCounting("no"))
	require.NoError(t, err)

	h := &host{b: br, now: t0}
	h.tick()
	assert.Nil(t, br.Selected())
	h.tick()
	assert.Equal(t, behavior.Ended, br.Core().State())
}
