package loop

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func runLoop(t *testing.T, l *Loop) <-chan error {
	t.Helper()
	errc := make(chan error, 1)
	go func() { errc <- l.Run(context.Background()) }()
	t.Cleanup(l.Stop)
	return errc
}

func TestLoop_RunsTasksInOrder(t *testing.T) {
	l := New()
	var got []int
	for i := 0; i < 5; i++ {
		i := i
		if err := l.Post(func() error {
			got = append(got, i)
			return nil
		}); err != nil {
			t.Fatalf("Post() error = %v", err)
		}
	}
	runLoop(t, l)

	if err := l.Call(context.Background(), func() error { return nil }); err != nil {
		t.Fatalf("Call() error = %v", err)
	}
	want := []int{0, 1, 2, 3, 4}
	for i := range want {
		if i >= len(got) || got[i] != want[i] {
			t.Fatalf("order = %v, want %v", got, want)
		}
	}
}

func TestLoop_PostFromTask(t *testing.T) {
	l := New()
	runLoop(t, l)

	done := make(chan struct{})
	err := l.Post(func() error {
		return l.Post(func() error {
			close(done)
			return nil
		})
	})
	if err != nil {
		t.Fatalf("Post() error = %v", err)
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("nested task never ran")
	}
}

func TestLoop_TaskErrorStops(t *testing.T) {
	l := New()
	errc := runLoop(t, l)
	boom := errors.New("boom")

	_ = l.Post(func() error { return boom })

	select {
	case err := <-errc:
		if !errors.Is(err, boom) {
			t.Errorf("Run() error = %v, want boom", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("loop did not stop")
	}
	if err := l.Post(func() error { return nil }); !errors.Is(err, ErrStopped) {
		t.Errorf("Post() after stop error = %v, want ErrStopped", err)
	}
}

func TestLoop_Fail(t *testing.T) {
	l := New()
	errc := runLoop(t, l)
	boom := errors.New("fatal push")

	l.Fail(boom)

	select {
	case err := <-errc:
		if !errors.Is(err, boom) {
			t.Errorf("Run() error = %v, want %v", err, boom)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("loop did not stop")
	}
	if !errors.Is(l.Err(), boom) {
		t.Errorf("Err() = %v, want %v", l.Err(), boom)
	}
}

func TestLoop_StopIsClean(t *testing.T) {
	l := New()
	errc := runLoop(t, l)

	l.Stop()
	l.Stop()

	select {
	case err := <-errc:
		if err != nil {
			t.Errorf("Run() error = %v, want nil", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("loop did not stop")
	}
}

func TestLoop_ContextCancel(t *testing.T) {
	l := New()
	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- l.Run(ctx) }()

	cancel()

	select {
	case err := <-errc:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Run() error = %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("loop did not stop")
	}
}

func TestLoop_AfterFuncRunsOnLoop(t *testing.T) {
	l := New()
	runLoop(t, l)

	var mu sync.Mutex
	inTask := false
	fired := make(chan bool, 1)

	_ = l.Post(func() error {
		mu.Lock()
		inTask = true
		mu.Unlock()
		l.AfterFunc(time.Millisecond, func() {
			mu.Lock()
			defer mu.Unlock()
			fired <- !inTask
		})
		mu.Lock()
		inTask = false
		mu.Unlock()
		return nil
	})

	select {
	case ok := <-fired:
		if !ok {
			t.Error("timer callback overlapped a running task")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timer callback never ran")
	}
}

func TestLoop_AfterFuncStop(t *testing.T) {
	l := New()
	runLoop(t, l)

	fired := make(chan struct{}, 1)
	timer := l.AfterFunc(time.Hour, func() { fired <- struct{}{} })
	if !timer.Stop() {
		t.Error("Stop() = false for pending timer")
	}
}
