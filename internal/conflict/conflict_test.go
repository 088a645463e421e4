package conflict

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/boardwave/boardsync/internal/history"
)

var t0 = time.UnixMilli(1_700_000_000_000)

type fakeLocks map[string]string

func (f fakeLocks) Holder(id string) (string, bool) {
	h, ok := f[id]
	return h, ok
}

func TestDetector_LockCase(t *testing.T) {
	locks := fakeLocks{"card-7": "userA"}
	d := NewDetector(locks, history.New(10), 0)

	typ, with, ok := d.Check(Edit{ElementID: "card-7", UserID: "userB", Timestamp: t0})
	require.True(t, ok)
	assert.Equal(t, TypeLockedElement, typ)
	assert.Equal(t, "userA", with)

	_, _, ok = d.Check(Edit{ElementID: "card-7", UserID: "userA", Timestamp: t0})
	assert.False(t, ok, "the holder's own edit applies cleanly")
}

func TestDetector_TimeWindow(t *testing.T) {
	tests := []struct {
		name   string
		offset time.Duration
		userID string
		want   bool
	}{
		{"4000ms after by other user", 4000 * time.Millisecond, "userC", true},
		{"same instant", 0, "userC", true},
		{"exactly at window", 5000 * time.Millisecond, "userC", false},
		{"6000ms after", 6000 * time.Millisecond, "userC", false},
		{"before the record", -time.Second, "userC", false},
		{"same user", 1000 * time.Millisecond, "userB", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hist := history.New(10)
			hist.Append(history.Record{ElementID: "card-1", UserID: "userB", Timestamp: t0})
			d := NewDetector(fakeLocks{}, hist, DefaultWindow)

			typ, with, ok := d.Check(Edit{ElementID: "card-1", UserID: tt.userID, Timestamp: t0.Add(tt.offset)})
			assert.Equal(t, tt.want, ok)
			if tt.want {
				assert.Equal(t, TypeConcurrentEdit, typ)
				assert.Equal(t, "userB", with)
			}
		})
	}
}

func TestDetector_OtherElementIgnored(t *testing.T) {
	hist := history.New(10)
	hist.Append(history.Record{ElementID: "card-2", UserID: "userB", Timestamp: t0})
	d := NewDetector(fakeLocks{"card-3": "userB"}, hist, DefaultWindow)

	_, _, ok := d.Check(Edit{ElementID: "card-1", UserID: "userC", Timestamp: t0.Add(time.Second)})
	assert.False(t, ok)
}

func TestDetector_DefaultWindow(t *testing.T) {
	d := NewDetector(fakeLocks{}, history.New(1), -1)
	assert.Equal(t, DefaultWindow, d.Window())
}

func TestQueue_PushAssignsID(t *testing.T) {
	q := NewQueue()

	c := q.Push(Conflict{ElementID: "card-1", Changes: map[string]any{"title": "x"}})
	_, err := uuid.Parse(c.ID)
	require.NoError(t, err)

	kept := q.Push(Conflict{ID: "given", ElementID: "card-2"})
	assert.Equal(t, "given", kept.ID)
	assert.Equal(t, 2, q.Len())
}

func TestQueue_FIFOAndRemove(t *testing.T) {
	q := NewQueue()
	a := q.Push(Conflict{ElementID: "a"})
	b := q.Push(Conflict{ElementID: "b"})
	c := q.Push(Conflict{ElementID: "c"})

	all := q.All()
	require.Len(t, all, 3)
	assert.Equal(t, []string{a.ID, b.ID, c.ID}, []string{all[0].ID, all[1].ID, all[2].ID})

	removed, ok := q.Remove(b.ID)
	require.True(t, ok)
	assert.Equal(t, "b", removed.ElementID)

	_, ok = q.Remove(b.ID)
	assert.False(t, ok)

	_, ok = q.Get(b.ID)
	assert.False(t, ok)

	got, ok := q.Get(c.ID)
	require.True(t, ok)
	assert.Equal(t, "c", got.ElementID)

	q.Clear()
	assert.Equal(t, 0, q.Len())
}

func TestQueue_AllReturnsCopies(t *testing.T) {
	q := NewQueue()
	changes := map[string]any{"title": "orig"}
	c := q.Push(Conflict{ElementID: "a", Changes: changes})
	changes["title"] = "caller mutated"

	all := q.All()
	all[0].Changes["title"] = "mutated"

	got, _ := q.Get(c.ID)
	assert.Equal(t, "orig", got.Changes["title"])
}

func TestLastWriterWins(t *testing.T) {
	local := Side{UserID: "u1", Changes: map[string]any{"title": "local", "color": "red"}, Timestamp: t0}
	remote := Side{UserID: "u2", Changes: map[string]any{"title": "remote", "due": "fri"}, Timestamp: t0.Add(time.Second)}

	tests := []struct {
		name          string
		local, remote Side
		want          map[string]any
	}{
		{
			name:   "remote newer",
			local:  local,
			remote: remote,
			want:   map[string]any{"title": "remote", "color": "red", "due": "fri"},
		},
		{
			name:   "local newer",
			local:  Side{Changes: local.Changes, Timestamp: t0.Add(2 * time.Second)},
			remote: remote,
			want:   map[string]any{"title": "local", "color": "red", "due": "fri"},
		},
		{
			name:   "tie goes to remote",
			local:  Side{Changes: local.Changes, Timestamp: t0},
			remote: Side{Changes: remote.Changes, Timestamp: t0},
			want:   map[string]any{"title": "remote", "color": "red", "due": "fri"},
		},
		{
			name:   "no local changes",
			remote: remote,
			want:   map[string]any{"title": "remote", "due": "fri"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := LastWriterWins{}.Merge(tt.local, tt.remote)
			assert.Equal(t, tt.want, got)
		})
	}

	assert.Equal(t, "local", local.Changes["title"], "inputs must not be mutated")
}

func TestStrategyByName(t *testing.T) {
	s, ok := StrategyByName(StrategyLastWriterWins)
	require.True(t, ok)
	assert.Equal(t, StrategyLastWriterWins, s.Name())

	_, ok = StrategyByName("crdt")
	assert.False(t, ok)

	assert.Equal(t, []string{StrategyLastWriterWins}, StrategyNames())
}

func TestMergeFunc(t *testing.T) {
	keepLocal := MergeFunc{
		StrategyName: "keep_local",
		Fn:           func(local, _ Side) map[string]any { return local.Changes },
	}
	assert.Equal(t, "keep_local", keepLocal.Name())
	assert.Equal(t, map[string]any{"a": 1}, keepLocal.Merge(Side{Changes: map[string]any{"a": 1}}, Side{}))
}

func TestResolutionType_IsValid(t *testing.T) {
	assert.True(t, ResolutionAccept.IsValid())
	assert.True(t, ResolutionReject.IsValid())
	assert.True(t, ResolutionMerge.IsValid())
	assert.False(t, ResolutionType("ignore").IsValid())
}
