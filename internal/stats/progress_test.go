package stats

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProgressGating(t *testing.T) {
	t0 := time.Unix(1_700_000_000, 0)
	p := NewProgress(0, 10_000, t0)

	// Enough inodes, not enough time.
	_, ok := p.Observe(1000, t0.Add(2*time.Second))
	assert.False(t, ok)

	// Enough time, not enough inodes.
	_, ok = p.Observe(255, t0.Add(10*time.Second))
	assert.False(t, ok)

	// Both thresholds reached.
	r, ok := p.Observe(256, t0.Add(3*time.Second))
	require.True(t, ok)
	assert.Equal(t, uint64(256), r.Current)

	// The reference point moved; the next report needs another 3s and 256 inodes.
	_, ok = p.Observe(600, t0.Add(5*time.Second))
	assert.False(t, ok)
	_, ok = p.Observe(400, t0.Add(7*time.Second))
	assert.False(t, ok)
	_, ok = p.Observe(512, t0.Add(6*time.Second))
	assert.True(t, ok)
}

func TestProgressFormula(t *testing.T) {
	t0 := time.Unix(1_700_000_000, 0)
	p := NewProgress(1000, 11_000, t0)

	r, ok := p.Observe(2000, t0.Add(4*time.Second))
	require.True(t, ok)

	assert.Equal(t, uint64(2000), r.Current)
	assert.Equal(t, uint64(11_000), r.Stop)
	assert.Equal(t, uint64(9000), r.Remaining)
	assert.InDelta(t, 250.0, r.Rate, 1e-9) // (2000-1000)/4s
	assert.Equal(t, 36*time.Second, r.ETA) // 9000/250
	assert.InDelta(t, 2000.0*100/11_000, r.Percent(), 1e-9)
}

func TestProgressRemainingStrictlyDecreases(t *testing.T) {
	t0 := time.Unix(1_700_000_000, 0)
	p := NewProgress(0, 1_000_000, t0)

	var (
		reports []Report
		cur     uint64
		now     = t0
	)
	for step := range 200 {
		cur += uint64(100 + step*37%400)
		now = now.Add(time.Duration(500+step*71%3000) * time.Millisecond)
		if r, ok := p.Observe(cur, now); ok {
			reports = append(reports, r)
		}
	}

	require.Greater(t, len(reports), 2)
	for i := 1; i < len(reports); i++ {
		assert.Less(t, reports[i].Remaining, reports[i-1].Remaining)
	}
}

func TestProgressPastStop(t *testing.T) {
	t0 := time.Unix(1_700_000_000, 0)
	p := NewProgress(0, 100, t0)

	r, ok := p.Observe(400, t0.Add(5*time.Second))
	require.True(t, ok)
	assert.Equal(t, uint64(0), r.Remaining)
	assert.Equal(t, time.Duration(0), r.ETA)
}

func TestReportPercentZeroStop(t *testing.T) {
	assert.Equal(t, 0.0, Report{Current: 10}.Percent())
}
