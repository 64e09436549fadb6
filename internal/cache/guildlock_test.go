package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/roach88/gatewire/internal/ir"
)

func TestGuildLocks_AbsentIsUnlocked(t *testing.T) {
	g := NewGuildLocks()
	assert.False(t, g.IsLocked(30))
	assert.Equal(t, Unlocked, g.state(30))
}

func TestGuildLocks_Cycle(t *testing.T) {
	g := NewGuildLocks()

	assert.True(t, g.Lock(30))
	assert.True(t, g.IsLocked(30))
	assert.Equal(t, "locked", g.state(30).String())
	assert.False(t, g.Lock(30), "lock inside a running cycle is a no-op")
	assert.Equal(t, 1, g.LockedCount())

	assert.True(t, g.Unlock(30))
	assert.False(t, g.IsLocked(30))
	assert.False(t, g.Unlock(30), "unlock of an unlocked guild is a no-op")
	assert.Equal(t, 0, g.LockedCount())

	assert.True(t, g.Lock(30), "a new cycle may start after unlock")
}

func TestGuildLocks_OnUnlock(t *testing.T) {
	g := NewGuildLocks()

	var unlocked []ir.Snowflake
	g.OnUnlock(func(id ir.Snowflake) {
		assert.False(t, g.IsLocked(id), "subscriber sees the guild unlocked")
		unlocked = append(unlocked, id)
	})

	g.Lock(30)
	g.Lock(31)
	g.Unlock(31)
	g.Unlock(30)
	g.Unlock(32)

	assert.Equal(t, []ir.Snowflake{31, 30}, unlocked)
}
