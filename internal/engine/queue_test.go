package engine

import (
	"sync"
	"testing"
	"time"
)

func TestQueueDrainEmpty(t *testing.T) {
	q := NewQueue()
	if got := q.Drain(); got != nil {
		t.Errorf("Drain() on empty queue = %v, want nil", got)
	}
	if q.Done() {
		t.Error("Done() = true before close")
	}
}

func TestQueueDoneIsLast(t *testing.T) {
	q := NewQueue()
	q.Publish(newEvent(KindInit, "Target Dir", "/usb", "Created/Verified"))
	q.Publish(newEvent(KindCopy, "a.bin", "RECOVERY", "Success"))
	q.Close()
	q.Close()

	if q.Publish(newEvent(KindCopy, "late.bin", "", "Success")) {
		t.Error("Publish after Close should report false")
	}

	events := q.Drain()
	if len(events) != 3 {
		t.Fatalf("got %d events, want 3", len(events))
	}
	last := events[len(events)-1]
	if last.Kind != KindDone || last.Result != "Finished" {
		t.Errorf("last event = %v, want DONE Finished", last)
	}
	if !q.Done() {
		t.Error("Done() = false after draining DONE")
	}
}

func TestQueueWaitSignalsPublish(t *testing.T) {
	q := NewQueue()
	ch := q.Wait()

	go q.Publish(newEvent(KindStatus, "", "", "hello"))

	select {
	case <-ch:
	case <-time.After(2 * time.Second):
		t.Fatal("Wait() channel not closed after Publish")
	}
	if got := q.Drain(); len(got) != 1 || got[0].Result != "hello" {
		t.Errorf("Drain() = %v, want the published event", got)
	}
}

func TestQueueConcurrentPublish(t *testing.T) {
	q := NewQueue()
	const producers, each = 4, 250

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < each; i++ {
				q.Publish(newEvent(KindCopy, "f", "", "Success"))
			}
		}()
	}

	total := 0
	done := make(chan struct{})
	go func() {
		wg.Wait()
		q.Close()
		close(done)
	}()

	for !q.Done() {
		total += len(q.Drain())
		select {
		case <-q.Wait():
		case <-done:
		case <-time.After(10 * time.Millisecond):
		}
	}
	total += len(q.Drain())

	if total != producers*each+1 {
		t.Errorf("drained %d events, want %d", total, producers*each+1)
	}
}
