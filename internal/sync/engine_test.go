package sync

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/njoerd114/bookmarkrelay/internal/model"
	"github.com/njoerd114/bookmarkrelay/internal/native"
)

func TestEngine_RunDrainsOnEvents(t *testing.T) {
	h := newHarness(t, true, nil)
	h.seed(t)
	engine := NewEngine(h.proc, testLogger)
	h.tree.SetListener(engine.HandleEvent)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- engine.Run(ctx) }()

	if _, err := h.tree.Create(ctx, native.CreateDetails{ParentID: native.OtherID, Title: "A", URL: "http://a"}); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for shape(h.synced(t)) != "Other{A}" {
		if time.Now().After(deadline) {
			t.Fatalf("synced = %s, want Other{A}", shape(h.synced(t)))
		}
		time.Sleep(10 * time.Millisecond)
	}

	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Errorf("Run = %v, want context.Canceled", err)
	}
}

func TestEngine_DrainReportsStats(t *testing.T) {
	h := newHarness(t, true, nil)
	syncer := &mockSyncer{}
	p := NewProcessor(h.norm, syncer, h.res, &mockRestorer{}, 0, testLogger)
	engine := NewEngine(p, testLogger)
	h.tree.SetListener(engine.HandleEvent)

	h.create(t, native.OtherID, -1, "A", "http://a")
	h.create(t, native.OtherID, -1, "B", "http://b")

	stats, err := engine.Drain(context.Background())
	if err != nil {
		t.Fatalf("Drain: %v", err)
	}
	if stats.Events != 2 || stats.Changes != 2 || stats.Syncs != 1 {
		t.Errorf("stats = %+v, want 2 events, 2 changes, 1 sync", stats)
	}
	if calls := syncer.calls(); len(calls) != 1 || calls[0][1].Type() != model.ChangeAdd {
		t.Errorf("sync passes = %v, want one pass of adds", calls)
	}
}
