package player

import (
	"testing"
	"time"
)

func TestQueueNavigation(t *testing.T) {
	q := NewQueue([]Track{
		{Title: "Scarlet Begonias", URL: "http://a/1.mp3", Length: 5 * time.Minute},
		{Title: "Fire on the Mountain", URL: "http://a/2.mp3", Length: 13 * time.Minute},
		{Title: "Estimated Prophet", URL: "http://a/3.mp3", Length: 9 * time.Minute},
	})

	if q.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", q.Len())
	}

	cur, ok := q.Current()
	if !ok || cur.Title != "Scarlet Begonias" {
		t.Errorf("Current() = %q, %t", cur.Title, ok)
	}

	next, ok := q.Next()
	if !ok || next.Title != "Fire on the Mountain" {
		t.Errorf("Next() = %q, %t", next.Title, ok)
	}

	next, ok = q.Next()
	if !ok || next.Title != "Estimated Prophet" {
		t.Errorf("Next() = %q, %t", next.Title, ok)
	}

	// Off the end: cursor stays on the last track
	if _, ok := q.Next(); ok {
		t.Error("Next() past the end should report false")
	}
	if q.Index() != 2 {
		t.Errorf("Index() = %d, want 2 after walking off the end", q.Index())
	}

	prev, ok := q.Prev()
	if !ok || prev.Title != "Fire on the Mountain" {
		t.Errorf("Prev() = %q, %t", prev.Title, ok)
	}

	jumped, ok := q.JumpTo(0)
	if !ok || jumped.Title != "Scarlet Begonias" {
		t.Errorf("JumpTo(0) = %q, %t", jumped.Title, ok)
	}
	if _, ok := q.JumpTo(7); ok {
		t.Error("JumpTo(7) out of range should report false")
	}
	if _, ok := q.JumpTo(-1); ok {
		t.Error("JumpTo(-1) should report false")
	}

	// Prev at the front stays put
	if _, ok := q.Prev(); ok {
		t.Error("Prev() at the front should report false")
	}
	if q.Index() != 0 {
		t.Errorf("Index() = %d, want 0", q.Index())
	}
}

func TestQueueEmpty(t *testing.T) {
	q := NewQueue(nil)

	if q.Len() != 0 {
		t.Errorf("Len() = %d, want 0", q.Len())
	}
	if _, ok := q.Current(); ok {
		t.Error("Current() on an empty queue should report false")
	}
	if _, ok := q.Next(); ok {
		t.Error("Next() on an empty queue should report false")
	}
	if _, ok := q.Prev(); ok {
		t.Error("Prev() on an empty queue should report false")
	}
}

func TestStateString(t *testing.T) {
	tests := []struct {
		state State
		want  string
	}{
		{StateStopped, "stopped"},
		{StatePlaying, "playing"},
		{StatePaused, "paused"},
		{StateBuffering, "buffering"},
		{StateError, "error"},
		{State(42), "unknown"},
	}

	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("State(%d).String() = %q, want %q", tt.state, got, tt.want)
		}
	}
}
