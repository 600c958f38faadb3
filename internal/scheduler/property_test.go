package scheduler

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"cadence/internal/behavior"
	"cadence/internal/resource"
)

// TestRandomRequestsKeepOwnershipExclusive drives random request, cancel and
// finish sequences over behaviors with overlapping requirements and checks the
// ownership and lifecycle balance after every tick.
func TestRandomRequestsKeepOwnershipExclusive(t *testing.T) {
	t.Parallel()
	for seed := int64(1); seed <= 20; seed++ {
		seed := seed
		t.Run("", func(t *testing.T) {
			t.Parallel()
			rng := rand.New(rand.NewSource(seed))
			h := newHarness(t, Config{}, "r0", "r1", "r2", "r3")

			probes := make([]*probe, 0, 10)
			for i := 0; i < 10; i++ {
				var opts []behavior.Option
				for _, id := range h.ids {
					if rng.Intn(3) == 0 {
						opts = append(opts, behavior.Requires(id))
					}
				}
				if rng.Intn(4) == 0 {
					opts = append(opts, behavior.Uninterruptible())
				}
				if rng.Intn(5) == 0 {
					opts = append(opts, behavior.Timeout(time.Duration(1+rng.Intn(5))*time.Second))
				}
				probes = append(probes, newProbe("p", opts...))
			}
			idle := newProbe("idle", behavior.Requires(h.ids[0]))
			require.NoError(t, h.s.SetFallback(h.ids[0], idle))
			all := append(append([]*probe(nil), probes...), idle)

			for step := 0; step < 300; step++ {
				for ops := rng.Intn(4); ops > 0; ops-- {
					p := probes[rng.Intn(len(probes))]
					switch rng.Intn(4) {
					case 0, 1:
						require.NoError(t, h.s.Request(p))
					case 2:
						h.s.Cancel(p)
					default:
						p.finished = !p.finished
					}
				}
				if rng.Intn(10) == 0 {
					h.clock.Advance(time.Second)
				}
				h.s.Tick()
				checkOwnership(t, h, all)
			}
		})
	}
}

func checkOwnership(t *testing.T, h *harness, all []*probe) {
	t.Helper()
	for _, id := range h.ids {
		holder := h.s.Holder(id)
		if holder == nil {
			continue
		}
		require.True(t, h.s.IsRunning(holder), "holder of %d is not running", id)
		require.True(t, holder.Requirements().Has(id))
	}

	var claimed resource.Set
	var setups, removals int
	for _, p := range all {
		setups += p.setups
		removals += p.teardowns + p.interrupts
		running := h.s.IsRunning(p)
		if running {
			require.False(t, claimed.Intersects(p.Requirements()), "two running behaviors share a resource")
			claimed = claimed.Union(p.Requirements())
			for _, id := range p.Requirements().IDs() {
				require.Same(t, p, h.s.Holder(id))
			}
			require.Equal(t, p.setups, p.teardowns+p.interrupts+1)
		} else {
			require.Equal(t, p.setups, p.teardowns+p.interrupts)
		}
	}
	c := h.s.Snapshot().Counters
	require.Equal(t, uint64(setups), c.Admitted)
	require.Equal(t, uint64(removals), c.Ended+c.Interrupted)
}
