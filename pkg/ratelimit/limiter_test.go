package ratelimit

import (
	"testing"
	"time"
)

func TestSlidingWindowAllow(t *testing.T) {
	sw := NewSlidingWindow(3, time.Second, 0.8)

	// Test initial requests
	for i := 0; i < 3; i++ {
		if !sw.Allow() {
			t.Errorf("Expected request %d to be allowed", i+1)
		}
	}

	// Test limit reached
	if sw.Allow() {
		t.Error("Expected request to be denied when limit is reached")
	}

	// Test window sliding
	time.Sleep(time.Second + 100*time.Millisecond)
	if !sw.Allow() {
		t.Error("Expected request to be allowed after window slides")
	}

	// Test reset
	sw.Reset()
	if len(sw.requests) != 0 {
		t.Error("Expected requests to be cleared after reset")
	}
}

func TestSlidingWindowWaitComputesDelayFromOldest(t *testing.T) {
	sw := NewSlidingWindow(2, 10*time.Second, 1.0)

	base := time.Unix(1000, 0)
	clock := base
	var slept []time.Duration
	sw.now = func() time.Time { return clock }
	sw.sleep = func(d time.Duration) {
		slept = append(slept, d)
		clock = clock.Add(d)
	}

	// Fill the window at t=0 and t=2s.
	sw.Allow()
	clock = base.Add(2 * time.Second)
	sw.Allow()

	// Third request at t=3s must wait until the oldest (t=0) leaves the
	// window, i.e. 7 more seconds.
	clock = base.Add(3 * time.Second)
	sw.Wait()

	if len(slept) == 0 {
		t.Fatal("Expected Wait to sleep when the window is full")
	}
	if slept[0] != 7*time.Second {
		t.Errorf("Expected first sleep of 7s, got %v", slept[0])
	}
	if got := len(sw.requests); got != 2 {
		t.Errorf("Expected 2 requests in window after wait, got %d", got)
	}
}

func TestSlidingWindowSmoothingDelay(t *testing.T) {
	sw := NewSlidingWindow(10, 10*time.Second, 0.8)

	clock := time.Unix(2000, 0)
	var slept []time.Duration
	sw.now = func() time.Time { return clock }
	sw.sleep = func(d time.Duration) {
		slept = append(slept, d)
	}

	// Below the threshold no smoothing delay is inserted.
	for i := 0; i < 8; i++ {
		sw.Wait()
	}
	if len(slept) != 0 {
		t.Fatalf("Expected no smoothing below threshold, got %v", slept)
	}

	// The 9th request pushes utilization to 90% and must be paced.
	sw.Wait()
	if len(slept) != 1 {
		t.Fatalf("Expected one smoothing delay above threshold, got %d", len(slept))
	}
	if slept[0] != time.Second {
		t.Errorf("Expected window/limit pacing delay of 1s, got %v", slept[0])
	}
}

func TestSlidingWindowConcurrentUse(t *testing.T) {
	sw := NewSlidingWindow(100, time.Second, 1.0)

	done := make(chan struct{})
	for i := 0; i < 10; i++ {
		go func() {
			for j := 0; j < 10; j++ {
				sw.Wait()
			}
			done <- struct{}{}
		}()
	}
	for i := 0; i < 10; i++ {
		<-done
	}

	if got := sw.InWindow(); got != 100 {
		t.Errorf("Expected exactly 100 requests recorded, got %d", got)
	}
}
