package dialog

import (
	"testing"
	"time"
)

func TestResultAutoResets(t *testing.T) {
	c := New(nil)

	c.SetLoading("Installing plugin")
	snap := c.Snapshot()
	if !snap.Show || snap.StatusCode != StatusLoading || snap.Title != "Installing plugin" {
		t.Fatalf("unexpected loading state: %+v", snap)
	}

	c.Result(StatusSuccess, "done", 30)
	snap = c.Snapshot()
	if snap.StatusCode != StatusSuccess || snap.Result != "done" {
		t.Fatalf("unexpected result state: %+v", snap)
	}

	time.Sleep(100 * time.Millisecond)
	if c.Snapshot().Show {
		t.Error("expected dialog to auto-reset after the close timeout")
	}
}

func TestStickyResultStaysOpen(t *testing.T) {
	c := New(nil)

	c.SetLoading("Updating plugin")
	c.Result(StatusError, "backend exploded", Sticky)

	time.Sleep(50 * time.Millisecond)
	snap := c.Snapshot()
	if !snap.Show {
		t.Fatal("sticky results must stay open")
	}
	if snap.StatusCode != StatusError || snap.Result != "backend exploded" {
		t.Fatalf("unexpected state: %+v", snap)
	}

	c.Reset()
	if c.Snapshot().Show {
		t.Error("expected manual reset to close the dialog")
	}
}

func TestNewOperationCancelsPendingReset(t *testing.T) {
	c := New(nil)

	c.SetLoading("first")
	c.Result(StatusSuccess, "ok", 30)
	// A new operation before the timer fires must not be reset by it.
	c.SetLoading("second")

	time.Sleep(100 * time.Millisecond)
	snap := c.Snapshot()
	if !snap.Show || snap.Title != "second" {
		t.Fatalf("stale reset timer clobbered the new operation: %+v", snap)
	}
}

func TestSetTitleKeepsState(t *testing.T) {
	c := New(nil)

	c.SetLoading("Installing plugins (0/3)")
	c.SetTitle("Installing plugins (1/3)")

	snap := c.Snapshot()
	if snap.Title != "Installing plugins (1/3)" || snap.StatusCode != StatusLoading || !snap.Show {
		t.Fatalf("unexpected state after title update: %+v", snap)
	}
}
