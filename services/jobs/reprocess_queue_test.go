package jobs

import (
	"context"
	"crm_advocacia_go/services/nlp"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubProcessor records call order and fails the test on overlapping calls
type stubProcessor struct {
	mu       sync.Mutex
	calls    []string
	inFlight int32
	overlaps int32
	fail     map[string]error
	hold     time.Duration
	started  chan string
	release  chan struct{}
}

func (s *stubProcessor) Process(ctx context.Context, text string, _ *string) (*nlp.Result, error) {
	if atomic.AddInt32(&s.inFlight, 1) > 1 {
		atomic.AddInt32(&s.overlaps, 1)
	}
	defer atomic.AddInt32(&s.inFlight, -1)

	s.mu.Lock()
	s.calls = append(s.calls, text)
	err := s.fail[text]
	s.mu.Unlock()

	if s.started != nil {
		s.started <- text
	}
	if s.release != nil {
		select {
		case <-s.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if s.hold > 0 {
		time.Sleep(s.hold)
	}
	if err != nil {
		return nil, err
	}
	return &nlp.Result{Summary: "resumo de " + text}, nil
}

func (s *stubProcessor) Calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.calls...)
}

type stubStore struct {
	mu      sync.Mutex
	applied map[string]string
	errors  map[string]string
}

func newStubStore() *stubStore {
	return &stubStore{applied: map[string]string{}, errors: map[string]string{}}
}

func (s *stubStore) ApplyNLPResult(id string, result *nlp.Result) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.applied[id] = result.Summary
	return nil
}

func (s *stubStore) MarkNLPError(id, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errors[id] = message
	return nil
}

func item(n int) QueueItem {
	return QueueItem{
		IntimacaoID:   fmt.Sprintf("id-%d", n),
		ProcessNumber: fmt.Sprintf("%07d-00.2024.8.06.0001", n),
		Teor:          fmt.Sprintf("teor-%d", n),
	}
}

func TestReprocessQueueFIFOAndNoOverlap(t *testing.T) {
	proc := &stubProcessor{hold: 2 * time.Millisecond}
	store := newStubStore()
	q := NewReprocessQueue(proc, store, time.Millisecond)
	defer q.Stop()

	// Enqueue from several goroutines in a known order per goroutine
	var wg sync.WaitGroup
	for g := 0; g < 4; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 5; i++ {
				q.Enqueue(item(g*100 + i))
			}
		}(g)
	}
	wg.Wait()
	q.Wait()

	calls := proc.Calls()
	assert.Len(t, calls, 20)
	assert.Equal(t, int32(0), atomic.LoadInt32(&proc.overlaps))

	// Per producer the order is preserved
	for g := 0; g < 4; g++ {
		last := -1
		for idx, c := range calls {
			var n int
			fmt.Sscanf(c, "teor-%d", &n)
			if n/100 == g {
				assert.Greater(t, n, last, "call %d", idx)
				last = n
			}
		}
	}
	assert.Len(t, store.applied, 20)
	assert.False(t, q.IsDraining())
}

func TestReprocessQueueStrictOrder(t *testing.T) {
	proc := &stubProcessor{}
	q := NewReprocessQueue(proc, newStubStore(), 0)
	defer q.Stop()

	for i := 1; i <= 10; i++ {
		require.True(t, q.Enqueue(item(i)))
	}
	q.Wait()

	var expected []string
	for i := 1; i <= 10; i++ {
		expected = append(expected, fmt.Sprintf("teor-%d", i))
	}
	assert.Equal(t, expected, proc.Calls())
}

func TestReprocessQueueDeduplicates(t *testing.T) {
	proc := &stubProcessor{started: make(chan string, 10), release: make(chan struct{})}
	q := NewReprocessQueue(proc, newStubStore(), 0)
	defer q.Stop()

	require.True(t, q.Enqueue(item(1)))
	<-proc.started // item 1 in flight

	assert.False(t, q.Enqueue(item(1)), "in-flight id must be rejected")
	assert.True(t, q.Enqueue(item(2)))
	assert.False(t, q.Enqueue(item(2)), "queued id must be rejected")
	assert.Equal(t, 1, q.Depth())
	assert.True(t, q.IsDraining())

	close(proc.release)
	q.Wait()

	assert.Equal(t, []string{"teor-1", "teor-2"}, proc.Calls())
	assert.Equal(t, 0, q.Depth())

	// Once processed, the same id can be queued again
	assert.True(t, q.Enqueue(item(1)))
	q.Wait()
	assert.Len(t, proc.Calls(), 3)
}

func TestReprocessQueueNewerText(t *testing.T) {
	withTeor := func(n int, teor string) QueueItem {
		it := item(n)
		it.Teor = teor
		return it
	}

	t.Run("Queued item takes the newer text", func(t *testing.T) {
		proc := &stubProcessor{started: make(chan string, 10), release: make(chan struct{})}
		store := newStubStore()
		q := NewReprocessQueue(proc, store, 0)
		defer q.Stop()

		require.True(t, q.Enqueue(item(1)))
		<-proc.started

		require.True(t, q.Enqueue(item(2)))
		assert.True(t, q.Enqueue(withTeor(2, "teor-2-novo")))
		assert.Equal(t, 1, q.Depth())

		close(proc.release)
		q.Wait()

		assert.Equal(t, []string{"teor-1", "teor-2-novo"}, proc.Calls())
		assert.Equal(t, "resumo de teor-2-novo", store.applied["id-2"])
	})

	t.Run("In-flight item runs again with the newer text", func(t *testing.T) {
		proc := &stubProcessor{started: make(chan string, 10), release: make(chan struct{})}
		store := newStubStore()
		q := NewReprocessQueue(proc, store, 0)
		defer q.Stop()

		require.True(t, q.Enqueue(item(1)))
		<-proc.started

		assert.True(t, q.Enqueue(withTeor(1, "teor-1-novo")))
		assert.False(t, q.Enqueue(withTeor(1, "teor-1-novo")), "same newer text is not scheduled twice")

		close(proc.release)
		q.Wait()

		assert.Equal(t, []string{"teor-1", "teor-1-novo"}, proc.Calls())
		assert.Equal(t, "resumo de teor-1-novo", store.applied["id-1"])
	})
}

func TestReprocessQueueErrorMarksAndContinues(t *testing.T) {
	proc := &stubProcessor{fail: map[string]error{
		"teor-2": &nlp.ServiceError{StatusCode: 500, Detail: "Modelo indisponível"},
	}}
	store := newStubStore()
	q := NewReprocessQueue(proc, store, 0)
	defer q.Stop()

	for i := 1; i <= 3; i++ {
		q.Enqueue(item(i))
	}
	q.Wait()

	assert.Len(t, proc.Calls(), 3)
	assert.Contains(t, store.applied, "id-1")
	assert.Contains(t, store.applied, "id-3")
	assert.NotContains(t, store.applied, "id-2")
	assert.Equal(t, "Erro no processamento NLP: NLP processing failed: Modelo indisponível", store.errors["id-2"])
}

func TestReprocessQueueRestartsAfterDrain(t *testing.T) {
	proc := &stubProcessor{}
	q := NewReprocessQueue(proc, newStubStore(), 0)
	defer q.Stop()

	q.Enqueue(item(1))
	q.Wait()
	assert.False(t, q.IsDraining())

	q.Enqueue(item(2))
	q.Wait()

	assert.Equal(t, []string{"teor-1", "teor-2"}, proc.Calls())
}

func TestReprocessQueueThrottles(t *testing.T) {
	proc := &stubProcessor{}
	q := NewReprocessQueue(proc, newStubStore(), 30*time.Millisecond)
	defer q.Stop()

	start := time.Now()
	for i := 1; i <= 3; i++ {
		q.Enqueue(item(i))
	}
	q.Wait()

	assert.GreaterOrEqual(t, time.Since(start), 60*time.Millisecond)
}

func TestReprocessQueueStop(t *testing.T) {
	proc := &stubProcessor{started: make(chan string, 10), release: make(chan struct{})}
	store := newStubStore()
	q := NewReprocessQueue(proc, store, time.Hour)

	q.Enqueue(item(1))
	q.Enqueue(item(2))
	<-proc.started

	done := make(chan struct{})
	go func() {
		q.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return")
	}

	// The interrupted item is not marked as an NLP error
	assert.Empty(t, store.errors)
	assert.Equal(t, []string{"teor-1"}, proc.Calls())
	assert.False(t, q.Enqueue(item(3)))
	assert.False(t, q.IsDraining())
}

func TestReprocessQueueEmptyResult(t *testing.T) {
	store := newStubStore()
	q := NewReprocessQueue(nilResultProcessor{}, store, 0)
	defer q.Stop()

	q.Enqueue(item(1))
	q.Wait()

	assert.Contains(t, store.errors["id-1"], "empty NLP result")
}

type nilResultProcessor struct{}

func (nilResultProcessor) Process(context.Context, string, *string) (*nlp.Result, error) {
	return nil, nil
}
