package history

import (
	"fmt"
	"testing"
	"time"
)

func rec(elementID, userID string, n int) Record {
	return Record{
		EditType:  "card_update",
		ElementID: elementID,
		Changes:   map[string]any{"n": n},
		UserID:    userID,
		Timestamp: time.UnixMilli(int64(n)),
	}
}

func TestLog_DefaultLimit(t *testing.T) {
	tests := []struct {
		limit int
		want  int
	}{
		{0, DefaultLimit},
		{-5, DefaultLimit},
		{10, 10},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.limit), func(t *testing.T) {
			if got := New(tt.limit).Limit(); got != tt.want {
				t.Errorf("Limit() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestLog_BoundDropsOldest(t *testing.T) {
	log := New(100)
	for i := range 150 {
		log.Append(rec("card-1", "u1", i))
	}

	all := log.All()
	if len(all) != 100 {
		t.Fatalf("len(All()) = %d, want 100", len(all))
	}
	if got := all[0].Changes["n"]; got != 50 {
		t.Errorf("oldest kept record n = %v, want 50", got)
	}
	if got := all[99].Changes["n"]; got != 149 {
		t.Errorf("newest record n = %v, want 149", got)
	}
}

func TestLog_ForElement(t *testing.T) {
	log := New(10)
	log.Append(rec("a", "u1", 1))
	log.Append(rec("b", "u2", 2))
	log.Append(rec("a", "u3", 3))

	got := log.ForElement("a")
	if len(got) != 2 {
		t.Fatalf("len(ForElement(a)) = %d, want 2", len(got))
	}
	if got[0].UserID != "u1" || got[1].UserID != "u3" {
		t.Errorf("unexpected order: %+v", got)
	}
	if len(log.ForElement("missing")) != 0 {
		t.Error("ForElement(missing) should be empty")
	}
}

func TestLog_ReturnsCopies(t *testing.T) {
	log := New(10)
	log.Append(rec("a", "u1", 1))

	got := log.All()
	got[0].UserID = "mutated"
	got[0].Changes["n"] = 999

	again := log.All()
	if again[0].UserID != "u1" {
		t.Error("mutating the returned slice changed the log")
	}
	if again[0].Changes["n"] != 1 {
		t.Error("mutating returned changes changed the log")
	}
}

func TestLog_Clear(t *testing.T) {
	log := New(10)
	log.Append(rec("a", "u1", 1))
	log.Clear()

	if log.Len() != 0 {
		t.Errorf("Len() after Clear = %d, want 0", log.Len())
	}
}
