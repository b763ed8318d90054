package scroll

import (
	"errors"
	"testing"
)

type recordingPoster struct {
	msgs []Message
	err  error
}

func (p *recordingPoster) PostMessage(msg Message) error {
	p.msgs = append(p.msgs, msg)
	return p.err
}

func TestLink_Offset(t *testing.T) {
	l := NewLink(19)
	l.SetTarget(5)

	if got := l.Offset(); got != 95 {
		t.Errorf("Offset() = %d, want 95", got)
	}
	if got := l.OffsetFor(2); got != 38 {
		t.Errorf("OffsetFor(2) = %d, want 38", got)
	}
}

func TestLink_ZeroValue(t *testing.T) {
	var l Link
	if l.Target() != 0 {
		t.Errorf("Target() = %d, want 0", l.Target())
	}
	l.SetTarget(1)
	if got := l.Offset(); got != DefaultLineHeightPx {
		t.Errorf("Offset() = %d, want %d", got, DefaultLineHeightPx)
	}
}

func TestLink_NegativeClamps(t *testing.T) {
	l := NewLink(19)
	l.SetTarget(-3)
	if l.Target() != 0 {
		t.Errorf("Target() = %d, want 0", l.Target())
	}
}

func TestRelay_InboundAppliesOnSync(t *testing.T) {
	link := NewLink(19)
	link.SetTarget(5)
	r := NewRelay(&link, nil)

	if !r.Deliver(Message{Line: 2}) {
		t.Fatal("Deliver() rejected event")
	}

	// Not applied until the composer syncs.
	if link.Target() != 5 {
		t.Errorf("Target() before Sync = %d, want 5", link.Target())
	}

	if !r.Sync() {
		t.Error("Sync() = false, want true")
	}
	if got := link.Offset(); got != 38 {
		t.Errorf("Offset() after Sync = %d, want 38", got)
	}
}

func TestRelay_SyncLatestWins(t *testing.T) {
	link := NewLink(19)
	r := NewRelay(&link, nil)

	r.Deliver(Message{Line: 1})
	r.Deliver(Message{Line: 7})
	r.Deliver(Message{Line: 3})
	r.Sync()

	if link.Target() != 3 {
		t.Errorf("Target() = %d, want 3", link.Target())
	}
	if r.Sync() {
		t.Error("Sync() on empty inbox = true, want false")
	}
}

func TestRelay_SyncNoChange(t *testing.T) {
	link := NewLink(19)
	link.SetTarget(4)
	r := NewRelay(&link, nil)

	r.Deliver(Message{Line: 4})
	if r.Sync() {
		t.Error("Sync() = true for same target, want false")
	}
}

func TestRelay_SetTargetPosts(t *testing.T) {
	link := NewLink(19)
	p := &recordingPoster{}
	r := NewRelay(&link, p)

	if err := r.SetTarget(9); err != nil {
		t.Fatalf("SetTarget() error = %v", err)
	}
	if link.Target() != 9 {
		t.Errorf("Target() = %d, want 9", link.Target())
	}
	if len(p.msgs) != 1 || p.msgs[0].Line != 9 {
		t.Errorf("posted = %v, want [{9}]", p.msgs)
	}
}

func TestRelay_SetTargetError(t *testing.T) {
	link := NewLink(19)
	boom := errors.New("boom")
	r := NewRelay(&link, &recordingPoster{err: boom})

	if err := r.SetTarget(1); !errors.Is(err, boom) {
		t.Errorf("SetTarget() error = %v, want %v", err, boom)
	}
}

func TestRelay_Disposed(t *testing.T) {
	link := NewLink(19)
	p := &recordingPoster{}
	r := NewRelay(&link, p)

	r.Dispose()

	if r.Deliver(Message{Line: 2}) {
		t.Error("Deliver() after Dispose accepted event")
	}
	if err := r.SetTarget(3); err != nil {
		t.Errorf("SetTarget() after Dispose error = %v, want nil", err)
	}
	if len(p.msgs) != 0 {
		t.Errorf("posted after Dispose: %v", p.msgs)
	}
	if link.Target() != 3 {
		t.Errorf("Target() = %d, want 3 (target still recorded)", link.Target())
	}
	if !r.Disposed() {
		t.Error("Disposed() = false")
	}
}

func TestRelay_FullInboxKeepsNewest(t *testing.T) {
	link := NewLink(19)
	r := NewRelay(&link, nil)

	for i := 0; i < defaultInboxSize; i++ {
		r.Deliver(Message{Line: i})
	}
	if !r.Deliver(Message{Line: 999}) {
		t.Fatal("Deliver() on full inbox rejected event")
	}
	r.Sync()

	if link.Target() != 999 {
		t.Errorf("Target() = %d, want 999", link.Target())
	}
}

func TestRelay_SetTargetOverridesQueued(t *testing.T) {
	link := NewLink(19)
	r := NewRelay(&link, nil)

	r.Deliver(Message{Line: 2})
	if err := r.SetTarget(10); err != nil {
		t.Fatalf("SetTarget() error = %v", err)
	}
	if r.Sync() {
		t.Error("Sync() applied an event older than SetTarget")
	}
	if got := link.Target(); got != 10 {
		t.Errorf("Target() = %d, want 10", got)
	}
}
