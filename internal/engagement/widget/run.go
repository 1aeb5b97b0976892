package widget

import (
	"context"
	"time"
)

// Visibility is a page visibility change observed at At.
type Visibility struct {
	Visible bool
	At      time.Time
}

// Action is a learner interaction applied on the widget's goroutine.
// It reports whether the widget changed.
type Action func(w Widget) bool

type Events struct {
	Ticks      <-chan time.Time
	Visibility <-chan Visibility
	Actions    <-chan Action
}

// Run owns w until ctx is done, applying events in arrival order and calling
// onChange with a fresh snapshot after each change. onChange also receives
// the initial snapshot. A closed channel is ignored from then on.
func Run(ctx context.Context, w Widget, ev Events, onChange func(Snapshot)) error {
	notify := func() {
		if onChange != nil {
			onChange(w.Snapshot())
		}
	}
	notify()
	for {
		var changed bool
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now, ok := <-ev.Ticks:
			if !ok {
				ev.Ticks = nil
				continue
			}
			changed = w.Tick(now)
		case v, ok := <-ev.Visibility:
			if !ok {
				ev.Visibility = nil
				continue
			}
			changed = w.SetVisible(v.Visible, v.At)
		case act, ok := <-ev.Actions:
			if !ok {
				ev.Actions = nil
				continue
			}
			changed = act(w)
		}
		if changed {
			notify()
		}
	}
}

// Mount runs w on a one-second ticker until ctx is cancelled, then stops the ticker.
func Mount(ctx context.Context, w Widget, visibility <-chan Visibility, actions <-chan Action, onChange func(Snapshot)) error {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	return Run(ctx, w, Events{Ticks: ticker.C, Visibility: visibility, Actions: actions}, onChange)
}
