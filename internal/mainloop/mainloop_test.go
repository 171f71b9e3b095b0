package mainloop

import (
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestQueueMainWorkRunsFIFOOnRunGoroutine(t *testing.T) {
	l := New(zap.NewNop(), 16)
	go l.Run(5 * time.Millisecond)
	defer l.Stop()

	var order []int
	done := make(chan struct{})
	for i := 0; i < 5; i++ {
		i := i
		l.QueueMainWork(func() {
			order = append(order, i)
			if i == 4 {
				close(done)
			}
		})
	}
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for queued work")
	}
	for i, v := range order {
		if v != i {
			t.Fatalf("expected FIFO order, got %v", order)
		}
	}
}

func TestWaitForMainWorkDrainBlocksUntilEmpty(t *testing.T) {
	l := New(zap.NewNop(), 16)
	go l.Run(5 * time.Millisecond)
	defer l.Stop()

	var ran int32
	for i := 0; i < 10; i++ {
		l.QueueMainWork(func() { atomic.AddInt32(&ran, 1) })
	}
	l.WaitForMainWorkDrain()
	if atomic.LoadInt32(&ran) != 10 {
		t.Fatalf("expected all 10 items to have run, got %d", ran)
	}
}

func TestClearedTimerDoesNotFireAgain(t *testing.T) {
	l := New(zap.NewNop(), 16)
	go l.Run(2 * time.Millisecond)
	defer l.Stop()

	var fires int32
	l.SetTimer("t", 1, 5, func() {
		n := atomic.AddInt32(&fires, 1)
		if n == 1 {
			l.ClearTimer("t")
		}
	})

	time.Sleep(60 * time.Millisecond)
	if atomic.LoadInt32(&fires) != 1 {
		t.Fatalf("expected exactly one fire, got %d", fires)
	}
}

func TestPanicInWorkItemDoesNotKillLoop(t *testing.T) {
	l := New(zap.NewNop(), 16)
	go l.Run(5 * time.Millisecond)
	defer l.Stop()

	l.QueueMainWork(func() { panic("boom") })

	var ran int32
	done := make(chan struct{})
	l.QueueMainWork(func() {
		atomic.AddInt32(&ran, 1)
		close(done)
	})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("loop did not recover from panic and keep processing")
	}
	if atomic.LoadInt32(&ran) != 1 {
		t.Fatalf("expected second item to run")
	}
}
