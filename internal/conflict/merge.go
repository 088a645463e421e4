package conflict

import (
	"maps"
	"sort"
	"time"
)

// Side is one participant of a merge.
type Side struct {
	UserID    string
	Changes   map[string]any
	Timestamp time.Time
}

// MergeStrategy combines the local view of an element with a conflicting
// remote edit. Implementations must not mutate their arguments.
type MergeStrategy interface {
	Name() string
	Merge(local, remote Side) map[string]any
}

// StrategyLastWriterWins is the name of the default strategy.
const StrategyLastWriterWins = "last_writer_wins"

// LastWriterWins overlays the newer side's fields on the older side's.
// On equal timestamps the remote side wins. Fields only one side touched
// are kept.
type LastWriterWins struct{}

func (LastWriterWins) Name() string { return StrategyLastWriterWins }

func (LastWriterWins) Merge(local, remote Side) map[string]any {
	older, newer := local, remote
	if local.Timestamp.After(remote.Timestamp) {
		older, newer = remote, local
	}

	out := make(map[string]any, len(older.Changes)+len(newer.Changes))
	maps.Copy(out, older.Changes)
	maps.Copy(out, newer.Changes)
	return out
}

// MergeFunc adapts a function to MergeStrategy.
type MergeFunc struct {
	StrategyName string
	Fn           func(local, remote Side) map[string]any
}

func (f MergeFunc) Name() string { return f.StrategyName }

func (f MergeFunc) Merge(local, remote Side) map[string]any { return f.Fn(local, remote) }

var strategies = map[string]MergeStrategy{
	StrategyLastWriterWins: LastWriterWins{},
}

// StrategyByName looks up a built-in strategy.
func StrategyByName(name string) (MergeStrategy, bool) {
	s, ok := strategies[name]
	return s, ok
}

// StrategyNames returns the built-in strategy names, sorted.
func StrategyNames() []string {
	names := make([]string, 0, len(strategies))
	for n := range strategies {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
