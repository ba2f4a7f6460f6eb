package tracking

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestStalenessReaperTicks(t *testing.T) {
	t.Parallel()

	var sweeps atomic.Int64

	reaper := NewStalenessReaper(10*time.Millisecond, func(now time.Time) {
		sweeps.Add(1)
	})

	reaper.Start()
	defer reaper.Stop()

	assert.Eventually(t, func() bool {
		return sweeps.Load() >= 3
	}, 2*time.Second, 5*time.Millisecond)
}

func TestStalenessReaperStop(t *testing.T) {
	t.Parallel()

	var sweeps atomic.Int64

	reaper := NewStalenessReaper(5*time.Millisecond, func(now time.Time) {
		sweeps.Add(1)
	})

	reaper.Start()

	time.Sleep(30 * time.Millisecond)
	reaper.Stop()
	reaper.Stop() // idempotent

	settled := sweeps.Load()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, settled, sweeps.Load(), "no sweeps after stop")
}
