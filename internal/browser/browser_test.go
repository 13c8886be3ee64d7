package browser

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDefaultOptions(t *testing.T) {
	opts := DefaultOptions()

	assert.True(t, opts.Headless)
	assert.Equal(t, 30*time.Second, opts.Timeout)
	assert.Equal(t, 7*time.Second, opts.LoadPause)
	assert.Equal(t, time.Second, opts.ScrollPause)
	assert.Equal(t, "ru-RU", opts.Locale)
}

func TestPause(t *testing.T) {
	start := time.Now()
	assert.NoError(t, Pause(context.Background(), 20*time.Millisecond))
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	start = time.Now()
	assert.ErrorIs(t, Pause(ctx, time.Minute), context.Canceled)
	assert.Less(t, time.Since(start), time.Second)

	assert.NoError(t, Pause(context.Background(), 0))
}

func TestLauncher_StopWithoutDriver(t *testing.T) {
	l := NewLauncher(nil, nil, nil)
	assert.NoError(t, l.Stop())
	assert.Equal(t, DefaultOptions(), l.opts)
}
