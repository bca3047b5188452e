package reactor

import (
	"sync"
	"testing"
	"time"
)

func TestEventLoopPostingOrderAcrossThreads(t *testing.T) {
	loop, err := NewEventLoop(WithEventLoopLogger(NopLogger()))
	if err != nil {
		t.Fatalf("NewEventLoop() error = %v", err)
	}
	done := make(chan struct{})
	go func() {
		loop.Loop()
		close(done)
	}()

	const n = 20
	var mu sync.Mutex
	var order []int
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		i := i
		loop.QueueInLoop(func() {
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
			wg.Done()
		})
	}
	waitOrTimeout(t, &wg, 2*time.Second, "tasks did not all run")

	mu.Lock()
	for idx, v := range order {
		if v != idx {
			t.Fatalf("posting order violated: order[%d] = %d, want %d", idx, v, idx)
		}
	}
	mu.Unlock()

	loop.Quit()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("loop did not quit within bound after cross-thread Quit")
	}
	_ = loop.Close()
}

func TestEventLoopRunInLoopInlineOnOwnThread(t *testing.T) {
	loop, err := NewEventLoop(WithEventLoopLogger(NopLogger()))
	if err != nil {
		t.Fatalf("NewEventLoop() error = %v", err)
	}
	done := make(chan struct{})
	go func() {
		loop.Loop()
		close(done)
	}()

	result := make(chan bool, 1)
	loop.QueueInLoop(func() {
		executedInline := false
		loop.RunInLoop(func() {
			executedInline = true
		})
		result <- executedInline
	})

	select {
	case inline := <-result:
		if !inline {
			t.Fatalf("RunInLoop did not execute inline when called from the loop's own thread")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for RunInLoop result")
	}

	loop.Quit()
	<-done
	_ = loop.Close()
}

func TestEventLoopQueueInLoopFromWithinTaskObservedNextRound(t *testing.T) {
	loop, err := NewEventLoop(WithEventLoopLogger(NopLogger()))
	if err != nil {
		t.Fatalf("NewEventLoop() error = %v", err)
	}
	done := make(chan struct{})
	go func() {
		loop.Loop()
		close(done)
	}()

	secondRan := make(chan struct{})
	loop.QueueInLoop(func() {
		loop.QueueInLoop(func() {
			close(secondRan)
		})
	})

	select {
	case <-secondRan:
	case <-time.After(2 * time.Second):
		t.Fatal("task enqueued during drain never ran")
	}

	loop.Quit()
	<-done
	_ = loop.Close()
}

func waitOrTimeout(t *testing.T, wg *sync.WaitGroup, d time.Duration, msg string) {
	t.Helper()
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(d):
		t.Fatal(msg)
	}
}
