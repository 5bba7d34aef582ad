package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Shivanand-hulikatti/slot-booking/internal/model"
)

func TestProjections_SetGet(t *testing.T) {
	p := New[int]("test", time.Minute, time.Minute)

	_, found := p.Get("missing")
	assert.False(t, found)

	assert.True(t, p.Set(p.Begin(), "a", 42, model.CenterRef("c1")))
	v, found := p.Get("a")
	require.True(t, found)
	assert.Equal(t, 42, v)
}

func TestProjections_InvalidateByTag(t *testing.T) {
	p := New[string]("eligibility", time.Minute, time.Minute)

	tok := p.Begin()
	p.Set(tok, Key("u1", "c1"), "ok", model.UserRef("u1"), model.CenterRef("c1"))
	p.Set(tok, Key("u2", "c1"), "ok", model.UserRef("u2"), model.CenterRef("c1"))
	p.Set(tok, Key("u2", "c2"), "ok", model.UserRef("u2"), model.CenterRef("c2"))
	p.Set(tok, Key("u3", "c3"), "ok", model.UserRef("u3"), model.CenterRef("c3"))

	removed := p.Invalidate(model.CenterRef("c1"), model.UserRef("u2"))
	assert.Equal(t, 3, removed)

	_, found := p.Get(Key("u3", "c3"))
	assert.True(t, found, "untouched entities stay cached")
	assert.Equal(t, 1, p.cache.ItemCount())
}

func TestProjections_InvalidateNothing(t *testing.T) {
	p := New[int]("test", 0, 0)
	p.Set(p.Begin(), "a", 1)
	assert.Zero(t, p.Invalidate())
	assert.Zero(t, p.Invalidate(model.UserRef("nobody")))
	assert.Equal(t, 1, p.cache.ItemCount())
}

func TestProjections_SetRefusesViewOlderThanInvalidation(t *testing.T) {
	p := New[int]("availability", time.Minute, time.Minute)

	// A read starts, a write to c1 commits and invalidates, then the read
	// tries to store what it computed before the write.
	tok := p.Begin()
	p.Invalidate(model.CenterRef("c1"))

	assert.False(t, p.Set(tok, "c1", 2, model.CenterRef("c1")))
	_, found := p.Get("c1")
	assert.False(t, found)

	assert.True(t, p.Set(tok, "c2", 5, model.CenterRef("c2")), "other tags are unaffected")

	assert.True(t, p.Set(p.Begin(), "c1", 1, model.CenterRef("c1")), "a read started after the write is stored")
	v, found := p.Get("c1")
	require.True(t, found)
	assert.Equal(t, 1, v)
}

func TestProjections_Expiry(t *testing.T) {
	p := New[int]("test", 10*time.Millisecond, time.Minute)
	p.Set(p.Begin(), "a", 1)
	time.Sleep(30 * time.Millisecond)

	_, found := p.Get("a")
	assert.False(t, found)
}
