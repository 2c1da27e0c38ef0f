package countdown

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		in   string
		want time.Duration
	}{
		{"5 Minutes", 5 * time.Minute},
		{"1 Minute", time.Minute},
		{"30 Seconds", 30 * time.Second},
		{"1 second", time.Second},
		{"  10   minutes ", 10 * time.Minute},
		{"none", 0},
		{"", 0},
		{"soon", 0},
		{"5", 0},
		{"-3 Minutes", 0},
		{"5 Hours", 0},
		{"5 Minutes please", 0},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, Parse(tt.in))
		})
	}
}

func TestParseWithDefaultUnit(t *testing.T) {
	assert.Equal(t, 2*time.Minute, ParseWithDefaultUnit("2", time.Minute))
	assert.Equal(t, 2*time.Minute, ParseWithDefaultUnit("2 Minutes", time.Minute))
	assert.Equal(t, 45*time.Second, ParseWithDefaultUnit("45 Seconds", time.Minute))
	assert.Equal(t, time.Duration(0), ParseWithDefaultUnit("x", time.Minute))
}

func TestEngineCountsDownAndExpiresOnce(t *testing.T) {
	e := New()
	require.False(t, e.Start("30 Seconds"))
	assert.Equal(t, Running, e.State())

	fired := 0
	for i := 0; i < 29; i++ {
		if e.Tick() {
			fired++
		}
	}
	assert.Equal(t, 0, fired)
	assert.Equal(t, time.Second, e.Remaining())

	assert.True(t, e.Tick())
	assert.Equal(t, Expired, e.State())
	for i := 0; i < 5; i++ {
		assert.False(t, e.Tick())
	}
}

func TestEngineZeroDurationExpiresImmediately(t *testing.T) {
	e := New()
	assert.True(t, e.Start("whenever"))
	assert.Equal(t, Expired, e.State())
	assert.False(t, e.Tick())
}

func TestEngineStopResetsToFullDuration(t *testing.T) {
	e := New()
	e.Start("2 Minutes")
	for i := 0; i < 50; i++ {
		e.Tick()
	}
	assert.Equal(t, 70*time.Second, e.Remaining())

	e.Stop()
	assert.Equal(t, Idle, e.State())
	assert.Equal(t, 120*time.Second, e.Remaining())

	e.Start("2 Minutes")
	assert.Equal(t, 120*time.Second, e.Remaining())
	e.Tick()
	assert.Equal(t, 119*time.Second, e.Remaining())
}

func TestEngineObserveEdges(t *testing.T) {
	e := New()
	assert.False(t, e.Observe(false, "1 Minute"))
	assert.Equal(t, Idle, e.State())

	assert.False(t, e.Observe(true, "1 Minute"))
	assert.Equal(t, Running, e.State())
	e.Tick()

	// repeated true does not restart
	e.Observe(true, "1 Minute")
	assert.Equal(t, 59*time.Second, e.Remaining())

	e.Observe(false, "1 Minute")
	assert.Equal(t, Idle, e.State())
	assert.Equal(t, time.Minute, e.Remaining())

	assert.True(t, e.Observe(true, "none"))
	assert.Equal(t, Expired, e.State())
}

func TestEngineConcurrentTicksFireOnce(t *testing.T) {
	for run := 0; run < 50; run++ {
		e := New()
		e.Start("1 Second")
		var fired int32
		var wg sync.WaitGroup
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if e.Tick() {
					atomic.AddInt32(&fired, 1)
				}
			}()
		}
		wg.Wait()
		require.Equal(t, int32(1), fired)
	}
}

func TestDisplay(t *testing.T) {
	assert.Equal(t, "2:05", Display(125*time.Second))
	assert.Equal(t, "0:00", Display(-time.Second))
}
