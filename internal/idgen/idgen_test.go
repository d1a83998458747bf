package idgen

import (
	"regexp"
	"sync"
	"testing"
	"time"
)

func TestRequestID_Length(t *testing.T) {
	id, err := RequestID()
	if err != nil {
		t.Fatalf("RequestID() error: %v", err)
	}
	wantLen := len(RequestPrefix) + Length
	if len(id) != wantLen {
		t.Errorf("RequestID() length = %d, want %d (id=%q)", len(id), wantLen, id)
	}
}

func TestRequestID_Charset(t *testing.T) {
	pattern := regexp.MustCompile(`^` + regexp.QuoteMeta(RequestPrefix) + `[a-zA-Z0-9]+$`)
	for i := 0; i < 100; i++ {
		id, err := RequestID()
		if err != nil {
			t.Fatalf("RequestID() error on iteration %d: %v", i, err)
		}
		if !pattern.MatchString(id) {
			t.Fatalf("RequestID() = %q, does not match expected charset pattern", id)
		}
	}
}

func TestWithPrefix(t *testing.T) {
	prefix := "test-"
	id, err := WithPrefix(prefix)
	if err != nil {
		t.Fatalf("WithPrefix(%q) error: %v", prefix, err)
	}
	if id[:len(prefix)] != prefix {
		t.Errorf("WithPrefix(%q) = %q, want prefix %q", prefix, id, prefix)
	}
}

// fakeClock returns a controllable time source.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

func TestNewGenerator_NodeRange(t *testing.T) {
	for _, tc := range []struct {
		node    int64
		wantErr bool
	}{
		{0, false},
		{MaxNode, false},
		{-1, true},
		{MaxNode + 1, true},
	} {
		_, err := NewGenerator(tc.node)
		if (err != nil) != tc.wantErr {
			t.Errorf("NewGenerator(%d) error = %v, wantErr %v", tc.node, err, tc.wantErr)
		}
	}
}

func TestGenerate_UniqueAndIncreasing(t *testing.T) {
	g, err := NewGenerator(7)
	if err != nil {
		t.Fatal(err)
	}
	const count = 50_000
	prev := int64(-1)
	seen := make(map[int64]struct{}, count)
	for i := 0; i < count; i++ {
		id := g.Generate()
		if id <= prev {
			t.Fatalf("id %d not greater than previous %d at iteration %d", id, prev, i)
		}
		if _, dup := seen[id]; dup {
			t.Fatalf("duplicate id %d at iteration %d", id, i)
		}
		seen[id] = struct{}{}
		prev = id
	}
}

func TestGenerate_ClockBackward(t *testing.T) {
	clock := &fakeClock{now: Epoch.Add(time.Hour)}
	g, err := NewGenerator(1, WithClock(clock.Now))
	if err != nil {
		t.Fatal(err)
	}

	first := g.Generate()
	second := g.Generate()
	if second <= first {
		t.Fatalf("second %d <= first %d", second, first)
	}

	// Move the clock back ten seconds.
	clock.Set(Epoch.Add(time.Hour - 10*time.Second))
	for i := 0; i < 10; i++ {
		id := g.Generate()
		if id <= second {
			t.Fatalf("id %d after clock regression not greater than %d", id, second)
		}
		second = id
	}

	// Clock recovers past the old high-water mark.
	clock.Set(Epoch.Add(time.Hour + time.Second))
	id := g.Generate()
	if id <= second {
		t.Fatalf("id %d after clock recovery not greater than %d", id, second)
	}
	if got := Time(id); !got.Equal(Epoch.Add(time.Hour + time.Second)) {
		t.Errorf("Time(id) = %v, want %v", got, Epoch.Add(time.Hour+time.Second))
	}
}

func TestGenerate_SequenceOverflow(t *testing.T) {
	clock := &fakeClock{now: Epoch.Add(time.Minute)}
	g, err := NewGenerator(3, WithClock(clock.Now))
	if err != nil {
		t.Fatal(err)
	}

	prev := int64(-1)
	for i := 0; i < (maxSequence+1)*3; i++ {
		id := g.Generate()
		if id <= prev {
			t.Fatalf("id %d not greater than %d at %d", id, prev, i)
		}
		prev = id
	}
	// Three full sequences in a frozen millisecond borrow two future milliseconds.
	if got, want := Time(prev), Epoch.Add(time.Minute+2*time.Millisecond); !got.Equal(want) {
		t.Errorf("Time(last) = %v, want %v", got, want)
	}
}

func TestGenerate_Concurrent(t *testing.T) {
	g, err := NewGenerator(5)
	if err != nil {
		t.Fatal(err)
	}
	const workers, perWorker = 8, 2000

	var mu sync.Mutex
	seen := make(map[int64]struct{}, workers*perWorker)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			local := make([]int64, 0, perWorker)
			for i := 0; i < perWorker; i++ {
				local = append(local, g.Generate())
			}
			mu.Lock()
			defer mu.Unlock()
			for _, id := range local {
				if _, dup := seen[id]; dup {
					t.Errorf("duplicate id %d", id)
				}
				seen[id] = struct{}{}
			}
		}()
	}
	wg.Wait()
	if len(seen) != workers*perWorker {
		t.Fatalf("got %d unique ids, want %d", len(seen), workers*perWorker)
	}
}

func TestNodeOf(t *testing.T) {
	g, err := NewGenerator(MaxNode)
	if err != nil {
		t.Fatal(err)
	}
	if got := NodeOf(g.Generate()); got != MaxNode {
		t.Errorf("NodeOf = %d, want %d", got, MaxNode)
	}
	if g.Node() != MaxNode {
		t.Errorf("Node() = %d, want %d", g.Node(), MaxNode)
	}
}
