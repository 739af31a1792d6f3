package app

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkeye/Parley/internal/core"
	"github.com/dkeye/Parley/internal/domain"
)

// fakeConn records what would have gone out over the wire.
type fakeConn struct {
	mu     sync.Mutex
	frames []core.Frame
	closed bool
	fail   bool
}

func (c *fakeConn) TrySend(f core.Frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail {
		return errors.New("send failed")
	}
	c.frames = append(c.frames, f)
	return nil
}

func (c *fakeConn) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
}

func (c *fakeConn) decoded(t *testing.T) []map[string]any {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]map[string]any, 0, len(c.frames))
	for _, f := range c.frames {
		var m map[string]any
		require.NoError(t, json.Unmarshal(f, &m))
		out = append(out, m)
	}
	return out
}

func (c *fakeConn) ofType(t *testing.T, kind string) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, m := range c.decoded(t) {
		if m["type"] == kind {
			out = append(out, m)
		}
	}
	return out
}

func TestRegistryAddAssignsUniqueIDs(t *testing.T) {
	r := NewRegistry()
	seen := make(map[domain.ClientID]bool)
	for i := 0; i < 50; i++ {
		id := r.Add(&fakeConn{}, nil)
		require.Len(t, string(id), 8)
		require.False(t, seen[id], "id %s assigned twice", id)
		seen[id] = true
	}
	assert.Equal(t, 0, r.ActiveCount(), "fresh sessions must not count as active")
}

func TestRegistryAdmitCaseInsensitiveUniqueness(t *testing.T) {
	r := NewRegistry()
	a := r.Add(&fakeConn{}, nil)
	b := r.Add(&fakeConn{}, nil)
	c := r.Add(&fakeConn{}, nil)

	_, err := r.Admit(a, "Alice", 25)
	require.NoError(t, err)

	var adm *AdmissionError
	_, err = r.Admit(b, "alice", 25)
	require.ErrorAs(t, err, &adm)
	assert.Equal(t, "Username already in use. Please choose a different name.", adm.Message)

	_, err = r.Admit(c, "ALICE", 25)
	assert.ErrorAs(t, err, &adm)
	assert.Equal(t, 1, r.ActiveCount(), "rejected joins must not mutate the registry")
}

func TestRegistryAdmitCapacity(t *testing.T) {
	r := NewRegistry()
	names := []string{"a1", "b2", "c3"}
	ids := make([]domain.ClientID, 0, 3)
	for range names {
		ids = append(ids, r.Add(&fakeConn{}, nil))
	}

	_, err := r.Admit(ids[0], names[0], 2)
	require.NoError(t, err)
	_, err = r.Admit(ids[1], names[1], 2)
	require.NoError(t, err)

	var adm *AdmissionError
	_, err = r.Admit(ids[2], names[2], 2)
	require.ErrorAs(t, err, &adm)
	assert.Equal(t, "Room is full", adm.Message)
	assert.Equal(t, 2, r.ActiveCount())
}

func TestRegistryAdmitRequiresPending(t *testing.T) {
	r := NewRegistry()
	id := r.Add(&fakeConn{}, nil)

	_, err := r.Admit("missing1", "bob", 25)
	assert.ErrorIs(t, err, ErrNotPending)

	_, err = r.Admit(id, "bob", 25)
	require.NoError(t, err)
	_, err = r.Admit(id, "robert", 25)
	assert.ErrorIs(t, err, ErrNotPending, "a joined session must not rename itself")

	got, ok := r.Get(id)
	require.True(t, ok)
	assert.Equal(t, "bob", got.Username)
}

func TestRegistryRemoveIdempotent(t *testing.T) {
	r := NewRegistry()
	canceled := false
	id := r.Add(&fakeConn{}, func() { canceled = true })
	_, err := r.Admit(id, "bob", 25)
	require.NoError(t, err)

	state, _, ok := r.Remove(id)
	require.True(t, ok)
	assert.True(t, state.Active())
	assert.True(t, canceled, "removal must cancel the connection context")

	_, _, ok = r.Remove(id)
	assert.False(t, ok, "second removal must be a no-op")
	assert.Equal(t, 0, r.ActiveCount())
}

func TestRegistrySessionStartLifecycle(t *testing.T) {
	r := NewRegistry()
	_, ok := r.SessionStart()
	assert.False(t, ok)

	a := r.Add(&fakeConn{}, nil)
	start, err := r.Admit(a, "alice", 25)
	require.NoError(t, err)
	assert.False(t, start.IsZero())

	b := r.Add(&fakeConn{}, nil)
	start2, err := r.Admit(b, "bob", 25)
	require.NoError(t, err)
	assert.Equal(t, start, start2, "later joins share the first join's clock")

	r.Remove(a)
	_, ok = r.SessionStart()
	assert.True(t, ok, "clock stays while anyone is active")

	r.Remove(b)
	_, ok = r.SessionStart()
	assert.False(t, ok, "clock resets when the room empties")

	c := r.Add(&fakeConn{}, nil)
	start3, err := r.Admit(c, "carol", 25)
	require.NoError(t, err)
	assert.False(t, start3.Before(start), "a fresh room gets a fresh clock")
}

func TestRegistryCameraCap(t *testing.T) {
	r := NewRegistry()
	a := r.Add(&fakeConn{}, nil)
	b := r.Add(&fakeConn{}, nil)
	_, err := r.Admit(a, "alice", 25)
	require.NoError(t, err)
	_, err = r.Admit(b, "bob", 25)
	require.NoError(t, err)

	require.NoError(t, r.SetCamera(a, true, 1))
	assert.Equal(t, 1, r.CameraCount())

	err = r.SetCamera(b, true, 1)
	assert.ErrorIs(t, err, ErrCameraCap)
	assert.Equal(t, 1, r.CameraCount(), "rejected enable must not mutate state")

	// The existing holder keeps its slot and may re-send its state.
	require.NoError(t, r.SetCamera(a, true, 1))

	require.NoError(t, r.SetCamera(a, false, 1))
	require.NoError(t, r.SetCamera(b, true, 1), "a freed slot is claimable")
}

func TestRegistryStatusRequiresActive(t *testing.T) {
	r := NewRegistry()
	id := r.Add(&fakeConn{}, nil)

	assert.ErrorIs(t, r.SetCamera(id, true, 10), ErrNotActive)
	assert.ErrorIs(t, r.SetMic(id, false), ErrNotActive)
	assert.ErrorIs(t, r.SetScreen(id, true), ErrNotActive)

	got, ok := r.Get(id)
	require.True(t, ok)
	assert.True(t, got.MicOn, "defaults must survive rejected mutations")
	assert.False(t, got.CamOn)
}

func TestRegistryActiveSnapshot(t *testing.T) {
	r := NewRegistry()
	a := r.Add(&fakeConn{}, nil)
	b := r.Add(&fakeConn{}, nil)
	r.Add(&fakeConn{}, nil) // stays pending

	_, err := r.Admit(a, "alice", 25)
	require.NoError(t, err)
	_, err = r.Admit(b, "bob", 25)
	require.NoError(t, err)
	require.NoError(t, r.SetCamera(b, true, 10))

	snap := r.ActiveSnapshot(a)
	require.Len(t, snap, 1, "snapshot excludes self and pending sessions")
	assert.Equal(t, b, snap[0].ID)
	assert.Equal(t, "bob", snap[0].Username)
	assert.True(t, snap[0].CamOn)
	assert.True(t, snap[0].MicOn)

	assert.Len(t, r.ActiveConns(""), 2)
	assert.Len(t, r.ActiveConns(a), 1)
}

func TestRegistrySnapshotIsACopy(t *testing.T) {
	r := NewRegistry()
	a := r.Add(&fakeConn{}, nil)
	b := r.Add(&fakeConn{}, nil)
	_, err := r.Admit(a, "alice", 25)
	require.NoError(t, err)
	_, err = r.Admit(b, "bob", 25)
	require.NoError(t, err)

	snap := r.ActiveSnapshot(a)
	snap[0].Username = "mallory"
	snap[0].CamOn = true

	got, ok := r.Get(b)
	require.True(t, ok)
	assert.Equal(t, "bob", got.Username, "callers must not be able to mutate registry state")
	assert.False(t, got.CamOn)
}
