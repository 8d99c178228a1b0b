package session

import (
	"sync"
	"testing"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

func newTestRegistry() *Registry {
	return NewRegistry(zap.NewNop())
}

func TestCreateRejectsSecondHost(t *testing.T) {
	r := newTestRegistry()
	if _, err := r.Create("rigel-7", uuid.New(), "conn-host-1", "10.0.0.1:8080", nil); err != nil {
		t.Fatalf("first create failed: %v", err)
	}
	if _, err := r.Create("rigel-7", uuid.New(), "conn-host-2", "10.0.0.1:8080", nil); err != ErrAlreadyHosted {
		t.Fatalf("second create: got %v, want ErrAlreadyHosted", err)
	}
	// A different game is independent.
	if _, err := r.Create("vega-2", uuid.New(), "conn-host-2", "10.0.0.1:8080", nil); err != nil {
		t.Fatalf("create for other game failed: %v", err)
	}
}

func TestMutateUnknownGame(t *testing.T) {
	r := newTestRegistry()
	err := r.Mutate("nope", func(s *Session) error { return nil })
	if err != ErrUnknownGame {
		t.Fatalf("got %v, want ErrUnknownGame", err)
	}
}

func TestAttachMigratesSamePlayer(t *testing.T) {
	r := newTestRegistry()
	if _, err := r.Create("rigel-7", uuid.New(), "conn-host", "addr", nil); err != nil {
		t.Fatal(err)
	}

	var prev string
	_ = r.Mutate("rigel-7", func(s *Session) error {
		prev = s.attach("p1", "Alice", "conn-a")
		return nil
	})
	if prev != "" {
		t.Fatalf("first attach returned prev conn %q", prev)
	}

	_ = r.Mutate("rigel-7", func(s *Session) error {
		prev = s.attach("p1", "Alice", "conn-b")
		return nil
	})
	if prev != "conn-a" {
		t.Fatalf("second attach returned prev conn %q, want conn-a", prev)
	}

	// Exactly one live connection for the player.
	infos := r.Snapshot()
	if len(infos) != 1 || infos[0].Connected != 1 {
		t.Fatalf("snapshot = %+v, want one session with one connection", infos)
	}
}

func TestDetachByConnID(t *testing.T) {
	r := newTestRegistry()
	if _, err := r.Create("rigel-7", uuid.New(), "conn-host", "addr", nil); err != nil {
		t.Fatal(err)
	}
	_ = r.Mutate("rigel-7", func(s *Session) error {
		s.attach("p1", "Alice", "conn-a")
		return nil
	})

	_ = r.Mutate("rigel-7", func(s *Session) error {
		if pc := s.detach("conn-unknown"); pc != nil {
			t.Fatalf("detach of unknown conn returned %+v", pc)
		}
		pc := s.detach("conn-a")
		if pc == nil || pc.PlayerID != "p1" || pc.PlayerName != "Alice" {
			t.Fatalf("detach returned %+v", pc)
		}
		return nil
	})
}

func TestDestroyIsIdempotent(t *testing.T) {
	r := newTestRegistry()
	if _, err := r.Create("rigel-7", uuid.New(), "conn-host", "addr", nil); err != nil {
		t.Fatal(err)
	}
	_ = r.Mutate("rigel-7", func(s *Session) error {
		s.attach("p1", "Alice", "conn-a")
		return nil
	})

	set, ok := r.Destroy("rigel-7")
	if !ok {
		t.Fatal("first destroy reported not ok")
	}
	if set.HostConnID != "conn-host" || len(set.Players) != 1 {
		t.Fatalf("teardown set = %+v", set)
	}

	set, ok = r.Destroy("rigel-7")
	if ok || len(set.Players) != 0 {
		t.Fatalf("second destroy: ok=%v set=%+v, want no-op", ok, set)
	}

	if err := r.Mutate("rigel-7", func(s *Session) error { return nil }); err != ErrUnknownGame {
		t.Fatalf("mutate after destroy: got %v, want ErrUnknownGame", err)
	}
}

// A join racing a teardown resolves to exactly one outcome: either the join
// succeeded and the player is in the teardown set, or the join failed and no
// player record was ever created.
func TestJoinTeardownRace(t *testing.T) {
	for i := 0; i < 200; i++ {
		r := newTestRegistry()
		if _, err := r.Create("rigel-7", uuid.New(), "conn-host", "addr", nil); err != nil {
			t.Fatal(err)
		}

		var (
			wg        sync.WaitGroup
			joinErr   error
			set       TeardownSet
			destroyed bool
		)
		wg.Add(2)
		go func() {
			defer wg.Done()
			joinErr = r.Mutate("rigel-7", func(s *Session) error {
				s.attach("p1", "Alice", "conn-a")
				return nil
			})
		}()
		go func() {
			defer wg.Done()
			set, destroyed = r.Destroy("rigel-7")
		}()
		wg.Wait()

		if !destroyed {
			t.Fatal("destroy reported not ok")
		}
		joined := joinErr == nil
		inSet := len(set.Players) == 1
		if joined != inSet {
			t.Fatalf("iteration %d: joined=%v but teardown set has %d players", i, joined, len(set.Players))
		}
		if joinErr != nil && joinErr != ErrUnknownGame {
			t.Fatalf("losing join got %v, want ErrUnknownGame", joinErr)
		}
	}
}

func TestSnapshotListsSessions(t *testing.T) {
	r := newTestRegistry()
	if _, err := r.Create("rigel-7", uuid.New(), "h1", "10.0.0.1:8080", nil); err != nil {
		t.Fatal(err)
	}
	if _, err := r.Create("vega-2", uuid.New(), "h2", "10.0.0.1:8080", nil); err != nil {
		t.Fatal(err)
	}
	infos := r.Snapshot()
	if len(infos) != 2 {
		t.Fatalf("snapshot has %d sessions, want 2", len(infos))
	}
	for _, info := range infos {
		if info.HostAddr != "10.0.0.1:8080" {
			t.Fatalf("host addr = %q", info.HostAddr)
		}
	}
}
