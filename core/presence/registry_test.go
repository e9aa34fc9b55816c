package presence

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/kasuku/mwelekeo/core"
)

func mockNow(t *testing.T, at time.Time) *time.Time {
	t.Helper()
	now := at
	core.NowFunc = func() time.Time { return now }
	t.Cleanup(func() { core.NowFunc = time.Now })
	return &now
}

func Test_Registry(t *testing.T) {
	now := mockNow(t, time.Date(2021, 6, 1, 12, 0, 0, 0, time.UTC))

	reg := NewRegistry(time.Minute)
	defer reg.Close()

	assert.Equal(t, 0, reg.Count())
	assert.False(t, reg.IsOnline("u1"))

	reg.Heartbeat("u1")
	reg.Heartbeat("u2")
	assert.True(t, reg.IsOnline("u1"))
	assert.Equal(t, 2, reg.Count())
	assert.ElementsMatch(t, []string{"u1", "u2"}, reg.Online())

	// a repeated heartbeat keeps the user alive
	*now = now.Add(45 * time.Second)
	reg.Heartbeat("u1")
	*now = now.Add(45 * time.Second)
	assert.True(t, reg.IsOnline("u1"))
	assert.False(t, reg.IsOnline("u2")) // silent past the TTL
	assert.Equal(t, 1, reg.Count())
}

func Test_Registry_Disconnect(t *testing.T) {
	mockNow(t, time.Date(2021, 6, 1, 12, 0, 0, 0, time.UTC))

	reg := NewRegistry(time.Minute)
	defer reg.Close()

	reg.Heartbeat("u1")
	reg.Disconnect("u1")
	assert.False(t, reg.IsOnline("u1"))
	assert.Equal(t, 0, reg.Count())
}

func Test_Registry_sweep(t *testing.T) {
	reg := NewRegistry(10 * time.Millisecond)
	defer reg.Close()

	reg.Heartbeat("u1")
	time.Sleep(50 * time.Millisecond)

	reg.mu.RLock()
	_, kept := reg.seen["u1"]
	reg.mu.RUnlock()
	assert.False(t, kept, "expired entry should have been swept")
}
