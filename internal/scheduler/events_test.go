package scheduler

import (
	"testing"
)

func TestFeedPublishAssignsSequence(t *testing.T) {
	feed := NewFeed(4, 10)

	first := feed.Publish(Event{TaskID: "t1", Status: StatusQueued})
	second := feed.Publish(Event{TaskID: "t1", Status: StatusProcessing})

	if first.Seq != 1 || second.Seq != 2 {
		t.Errorf("Sequences = %d, %d, want 1, 2", first.Seq, second.Seq)
	}
	if first.Timestamp.IsZero() {
		t.Error("Publish must stamp the event")
	}
}

func TestFeedSubscribeReceivesEvents(t *testing.T) {
	feed := NewFeed(4, 10)
	events, cancel := feed.Subscribe()
	defer cancel()

	feed.Publish(Event{TaskID: "t1", Status: StatusQueued})

	ev := <-events
	if ev.TaskID != "t1" || ev.Status != StatusQueued {
		t.Errorf("Unexpected event %+v", ev)
	}
}

func TestFeedPublishNeverBlocks(t *testing.T) {
	feed := NewFeed(1, 10)
	events, cancel := feed.Subscribe()
	defer cancel()

	// second publish overflows the depth-1 channel and must be dropped
	feed.Publish(Event{TaskID: "t1"})
	feed.Publish(Event{TaskID: "t2"})
	feed.Publish(Event{TaskID: "t3"})

	ev := <-events
	if ev.TaskID != "t1" {
		t.Errorf("Expected first event, got %+v", ev)
	}

	// the dropped events remain reachable through the replay buffer
	if missed := feed.Since(ev.Seq); len(missed) != 2 {
		t.Errorf("Since returned %d events, want 2", len(missed))
	}
}

func TestFeedBoundedReplayBuffer(t *testing.T) {
	feed := NewFeed(4, 3)
	for i := 0; i < 10; i++ {
		feed.Publish(Event{TaskID: "t"})
	}

	all := feed.Since(0)
	if len(all) != 3 {
		t.Fatalf("Buffer holds %d events, want 3", len(all))
	}
	if all[0].Seq != 8 {
		t.Errorf("Oldest retained seq = %d, want 8", all[0].Seq)
	}
}

func TestFeedUnsubscribeClosesChannel(t *testing.T) {
	feed := NewFeed(4, 10)
	events, cancel := feed.Subscribe()
	cancel()

	if _, ok := <-events; ok {
		t.Error("Expected closed channel after unsubscribe")
	}

	// publishing after unsubscribe must not panic
	feed.Publish(Event{TaskID: "t1"})
}

func TestFeedClose(t *testing.T) {
	feed := NewFeed(4, 10)
	events, cancel := feed.Subscribe()
	defer cancel() // second cancel after Close is a no-op

	feed.Close()
	if _, ok := <-events; ok {
		t.Error("Expected closed channel after feed Close")
	}
}
