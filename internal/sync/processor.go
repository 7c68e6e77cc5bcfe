package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/njoerd114/bookmarkrelay/internal/model"
)

// State is the processor's position in its cycle.
type State int

const (
	StateIdle State = iota
	StateDraining
	StateSyncingRemote
	StateReordering
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateDraining:
		return "draining"
	case StateSyncingRemote:
		return "syncing"
	case StateReordering:
		return "reordering"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// CycleStats summarises one Drain call.
type CycleStats struct {
	Events    int  // events taken off the queue
	Changes   int  // changes synced successfully
	Syncs     int  // sync passes run
	Reordered int  // container folders moved
	Restored  bool // native tree restored after a container change
}

// Processor serialises native events into sync passes. Events are normalized
// strictly in arrival order; once the queue is empty the accumulated changes
// go to the Syncer in one pass, followed by container reordering with intake
// suppressed. Only one Drain runs at a time.
type Processor struct {
	normalizer *Normalizer
	syncer     Syncer
	containers Containers
	restorer   TreeRestorer
	delay      time.Duration
	sup        Suppressor
	log        *slog.Logger

	mu    sync.Mutex
	queue []queuedEvent
	state State
	wake  chan struct{}

	// unsynced holds changes whose sync pass was called off by cancellation.
	// The next Drain syncs them ahead of new changes.
	unsynced []model.BookmarkChange
}

// NewProcessor returns an idle Processor. delay is how long to wait between
// draining the queue and starting the sync pass.
func NewProcessor(normalizer *Normalizer, syncer Syncer, containers Containers, restorer TreeRestorer, delay time.Duration, logger *slog.Logger) *Processor {
	return &Processor{
		normalizer: normalizer,
		syncer:     syncer,
		containers: containers,
		restorer:   restorer,
		delay:      delay,
		log:        logger,
		wake:       make(chan struct{}, 1),
	}
}

// Suppressor returns the intake suppression handle.
func (p *Processor) Suppressor() *Suppressor {
	return &p.sup
}

// State returns the current state.
func (p *Processor) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Len returns the number of queued events plus changes still waiting for a
// sync pass.
func (p *Processor) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.queue) + len(p.unsynced)
}

// Wake is signalled whenever an event is queued.
func (p *Processor) Wake() <-chan struct{} {
	return p.wake
}

func (p *Processor) signal() {
	select {
	case p.wake <- struct{}{}:
	default:
	}
}

// Enqueue appends ev to the queue unless intake is suppressed. It returns the
// event's correlation id and whether it was queued.
func (p *Processor) Enqueue(ev model.NativeEvent) (uuid.UUID, bool) {
	if p.sup.Active() {
		p.log.Debug("native event ignored while suppressed", "type", ev.Type, "native_id", ev.NativeID)
		return uuid.Nil, false
	}
	id := uuid.New()
	p.mu.Lock()
	p.queue = append(p.queue, queuedEvent{id: id, event: ev})
	p.mu.Unlock()
	p.log.Debug("native event queued", "event_id", id.String(), "type", ev.Type, "native_id", ev.NativeID)
	p.signal()
	return id, true
}

func (p *Processor) setState(s State) {
	p.mu.Lock()
	p.state = s
	p.mu.Unlock()
}

// Drain runs cycles until the queue is empty. If another Drain is in progress
// it returns immediately; the running one picks up new events.
//
// A normalization failure drops the offending event and ends the cycle after
// the changes gathered before it have been synced; events behind it wait for
// the next Drain. When the sync pass reports [model.ErrContainerChanged] the
// native tree is restored from the synced tree instead of reordered.
func (p *Processor) Drain(ctx context.Context) (CycleStats, error) {
	p.mu.Lock()
	if p.state != StateIdle {
		p.mu.Unlock()
		return CycleStats{}, nil
	}
	p.state = StateDraining
	p.mu.Unlock()

	var stats CycleStats
	var errs []error
	for {
		changes, n, normErr := p.drainQueue(ctx)
		changes = append(p.takeUnsynced(), changes...)
		stats.Events += n
		if normErr != nil {
			errs = append(errs, normErr)
		}

		if len(changes) > 0 {
			if err := p.syncAndReorder(ctx, changes, &stats); err != nil {
				errs = append(errs, err)
			}
		}

		p.mu.Lock()
		if len(p.queue) == 0 || normErr != nil || ctx.Err() != nil {
			p.state = StateIdle
			pending := len(p.queue) > 0
			p.mu.Unlock()
			if pending {
				p.signal()
			} else {
				p.normalizer.forgetAliases()
			}
			break
		}
		p.state = StateDraining
		p.mu.Unlock()
	}
	return stats, errors.Join(errs...)
}

// drainQueue normalizes queued events in order until the queue is empty or an
// event fails.
func (p *Processor) drainQueue(ctx context.Context) ([]model.BookmarkChange, int, error) {
	var changes []model.BookmarkChange
	n := 0
	for {
		p.mu.Lock()
		if len(p.queue) == 0 {
			p.mu.Unlock()
			return changes, n, nil
		}
		item := p.queue[0]
		p.queue = p.queue[1:]
		p.mu.Unlock()
		n++

		change, err := p.normalizer.Normalize(withEventID(ctx, item.id), item.event, &p.sup)
		if err != nil {
			p.log.Error("normalizing native event",
				"event_id", item.id.String(), "type", item.event.Type, "native_id", item.event.NativeID, "error", err)
			return changes, n, fmt.Errorf("normalizing %s of %s: %w", item.event.Type, item.event.NativeID, err)
		}
		changes = append(changes, change)
	}
}

func (p *Processor) takeUnsynced() []model.BookmarkChange {
	p.mu.Lock()
	defer p.mu.Unlock()
	changes := p.unsynced
	p.unsynced = nil
	return changes
}

func (p *Processor) keepUnsynced(changes []model.BookmarkChange) {
	p.mu.Lock()
	p.unsynced = append(changes, p.unsynced...)
	p.mu.Unlock()
	p.log.Warn("sync pass cancelled, keeping changes for the next drain", "changes", len(changes))
}

func (p *Processor) syncAndReorder(ctx context.Context, changes []model.BookmarkChange, stats *CycleStats) error {
	if p.delay > 0 {
		select {
		case <-ctx.Done():
			p.keepUnsynced(changes)
			return ctx.Err()
		case <-time.After(p.delay):
		}
	}

	p.setState(StateSyncingRemote)
	syncErr := p.syncer.ExecuteSync(ctx, changes)
	stats.Syncs++

	p.setState(StateReordering)
	release := p.sup.Hold()
	defer release()

	switch {
	case errors.Is(syncErr, model.ErrContainerChanged):
		p.log.Warn("container changed natively, restoring from synced tree", "error", syncErr)
		if err := p.restorer.Restore(ctx); err != nil {
			return fmt.Errorf("restoring after container change: %w", err)
		}
		stats.Restored = true
		return nil
	case syncErr != nil:
		return fmt.Errorf("sync pass: %w", syncErr)
	}

	stats.Changes += len(changes)
	moved, err := p.containers.ReorderUnsupportedContainers(ctx)
	stats.Reordered += moved
	if err != nil {
		return fmt.Errorf("reordering containers: %w", err)
	}
	return nil
}
