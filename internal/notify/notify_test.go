package notify

import "testing"

func TestPublishBeforeWatchIsNoOp(t *testing.T) {
	q := NewQueue()
	q.Publish(Event{Kind: KindCueStop})
}

func TestWatchReceivesPublishedEvent(t *testing.T) {
	q := NewQueue()
	ch := q.Watch(4)
	q.Publish(Event{Kind: KindMarkerReached, MarkerID: 7})
	select {
	case ev := <-ch:
		if ev.Kind != KindMarkerReached || ev.MarkerID != 7 {
			t.Fatalf("got %+v", ev)
		}
	default:
		t.Fatalf("expected buffered event to be immediately receivable")
	}
}

func TestPublishDropsWhenChannelFull(t *testing.T) {
	q := NewQueue()
	ch := q.Watch(1)
	q.Publish(Event{Kind: KindCueStop, CueID: 1})
	q.Publish(Event{Kind: KindCueStop, CueID: 2}) // must drop, not block

	ev := <-ch
	if ev.CueID != 1 {
		t.Fatalf("expected first event to survive, got CueID=%d", ev.CueID)
	}
	select {
	case ev := <-ch:
		t.Fatalf("expected no second event, got %+v", ev)
	default:
	}
}

func TestWatchReplacesPreviousListener(t *testing.T) {
	q := NewQueue()
	old := q.Watch(4)
	fresh := q.Watch(4)
	q.Publish(Event{Kind: KindCueDestroyed})

	select {
	case <-old:
		t.Fatalf("old listener should no longer receive events")
	default:
	}
	select {
	case ev := <-fresh:
		if ev.Kind != KindCueDestroyed {
			t.Fatalf("got %+v", ev)
		}
	default:
		t.Fatalf("expected fresh listener to receive the event")
	}
}
