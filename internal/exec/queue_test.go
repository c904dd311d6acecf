// Copyright (c) The Codify Authors
// SPDX-License-Identifier: MPL-2.0

package exec

import (
	"sync"
	"testing"
	"time"
)

// TestTicketQueue_FIFOOrdering enqueues three commands on the same channel
// in order A, B, C and checks completion happens in that same order
// regardless of each command's runtime.
func TestTicketQueue_FIFOOrdering(t *testing.T) {
	q := newTicketQueue()
	var mu sync.Mutex
	var completionOrder []string

	runtimes := map[string]time.Duration{
		"A": 30 * time.Millisecond,
		"B": 5 * time.Millisecond,
		"C": 15 * time.Millisecond,
	}

	var wg sync.WaitGroup
	for _, name := range []string{"A", "B", "C"} {
		wg.Add(1)
		go func(name string) {
			defer wg.Done()
			ticket := q.enqueue()
			time.Sleep(runtimes[name])
			mu.Lock()
			completionOrder = append(completionOrder, name)
			mu.Unlock()
			q.dequeue(ticket)
		}(name)
		// Stagger goroutine starts slightly so tickets are handed out in
		// the intended A, B, C order even though B and C would finish
		// first if run concurrently.
		time.Sleep(2 * time.Millisecond)
	}
	wg.Wait()

	want := []string{"A", "B", "C"}
	if len(completionOrder) != len(want) {
		t.Fatalf("expected %d completions, got %d", len(want), len(completionOrder))
	}
	for i := range want {
		if completionOrder[i] != want[i] {
			t.Fatalf("completion order = %v, want %v", completionOrder, want)
		}
	}
}

func TestTicketQueue_SecondEnqueueWaitsForFirstDequeue(t *testing.T) {
	q := newTicketQueue()
	first := q.enqueue()

	done := make(chan struct{})
	go func() {
		second := q.enqueue()
		close(done)
		q.dequeue(second)
	}()

	select {
	case <-done:
		t.Fatalf("second enqueue should not have proceeded before first dequeue")
	case <-time.After(20 * time.Millisecond):
	}

	q.dequeue(first)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("second enqueue never proceeded after first dequeue")
	}
}
