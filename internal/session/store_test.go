package session

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestGetCreatesIdleSession(t *testing.T) {
	st := NewStore(time.Minute)
	s := st.Get("u1")
	if s.UserID != "u1" || s.State != StateIdle {
		t.Fatalf("unexpected session: %+v", s)
	}
	if len(s.Data) != 0 {
		t.Fatalf("new session should have empty data")
	}
}

func TestClearDropsDataAndBumpsRev(t *testing.T) {
	st := NewStore(time.Minute)
	st.Update("u1", func(s *Session) {
		s.State = StateAwaitingVoiceTopic
		s.Data = map[string]string{DataVoiceSamplePath: "/tmp/x.mp3"}
	})

	before := st.Get("u1")
	cleared := st.Clear("u1")
	if cleared.State != StateIdle {
		t.Fatalf("State = %q, want %q", cleared.State, StateIdle)
	}
	if len(cleared.Data) != 0 {
		t.Fatalf("Data should be empty after Clear, got %v", cleared.Data)
	}
	if cleared.Rev != before.Rev+1 {
		t.Fatalf("Rev = %d, want %d", cleared.Rev, before.Rev+1)
	}
}

func TestApplyIfDiscardsStaleResults(t *testing.T) {
	st := NewStore(time.Minute)
	rev := st.Get("u1").Rev

	st.Clear("u1") // bumps rev, simulating abandonment mid-flight

	applied := st.ApplyIf("u1", rev, func(s *Session) {
		s.State = StateAwaitingTopic
	})
	if applied {
		t.Fatalf("stale result should not be applied")
	}
	if got := st.Get("u1").State; got != StateIdle {
		t.Fatalf("State = %q, want %q", got, StateIdle)
	}

	fresh := st.Get("u1").Rev
	if !st.ApplyIf("u1", fresh, func(s *Session) { s.State = StateAwaitingTopic }) {
		t.Fatalf("current revision should apply")
	}
}

func TestUserIsolation(t *testing.T) {
	st := NewStore(time.Minute)
	st.Update("a", func(s *Session) {
		s.State = StateAwaitingPhoto
		s.Data = map[string]string{DataPhotoPath: "/tmp/a.jpg"}
	})
	st.Update("b", func(s *Session) {
		s.State = StateAwaitingTopic
	})
	st.Clear("b")

	a := st.Get("a")
	if a.State != StateAwaitingPhoto || a.Data[DataPhotoPath] != "/tmp/a.jpg" {
		t.Fatalf("user a session corrupted by user b: %+v", a)
	}
}

func TestDispatchSerializesPerUser(t *testing.T) {
	st := NewStore(time.Minute)

	var mu sync.Mutex
	var order []int
	var inFlight, maxInFlight int

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		i := i
		go func() {
			defer wg.Done()
			st.Dispatch("u1", func() {
				mu.Lock()
				inFlight++
				if inFlight > maxInFlight {
					maxInFlight = inFlight
				}
				mu.Unlock()

				time.Sleep(2 * time.Millisecond)

				mu.Lock()
				inFlight--
				order = append(order, i)
				mu.Unlock()
			})
		}()
	}
	wg.Wait()

	if maxInFlight != 1 {
		t.Fatalf("max concurrent steps for one user = %d, want 1", maxInFlight)
	}
	if len(order) != 8 {
		t.Fatalf("handled %d events, want 8", len(order))
	}
}

func TestJanitorEvictsStaleWorkflow(t *testing.T) {
	st := NewStore(30 * time.Millisecond)

	var mu sync.Mutex
	var evicted []Session
	st.SetEvictHook(func(s Session) {
		mu.Lock()
		evicted = append(evicted, s)
		mu.Unlock()
	})

	st.Update("u1", func(s *Session) {
		s.State = StateAwaitingPhotoTopic
		s.Data = map[string]string{DataPhotoPath: "/tmp/p.jpg"}
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	st.StartJanitor(ctx, 10*time.Millisecond)

	deadline := time.Now().Add(time.Second)
	for {
		if st.Get("u1").State == StateIdle {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("janitor did not evict stale session")
		}
		time.Sleep(5 * time.Millisecond)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(evicted) != 1 {
		t.Fatalf("evict hook called %d times, want 1", len(evicted))
	}
	if evicted[0].Data[DataPhotoPath] != "/tmp/p.jpg" {
		t.Fatalf("evict hook should receive collected data, got %+v", evicted[0])
	}
}

func TestJanitorIgnoresIdleSessions(t *testing.T) {
	st := NewStore(10 * time.Millisecond)
	st.Get("u1")

	rev := st.Get("u1").Rev
	time.Sleep(20 * time.Millisecond)
	st.evictStale()

	if got := st.Get("u1").Rev; got != rev {
		t.Fatalf("idle session rev changed %d -> %d", rev, got)
	}
}
