package jobs

import (
	"context"
	"crm_advocacia_go/services/nlp"
	"errors"
	"log"
	"sync"
	"time"
)

// DefaultQueueDelay throttles calls to the NLP service
const DefaultQueueDelay = 2 * time.Second

// QueueItem is one intimação waiting for NLP processing
type QueueItem struct {
	IntimacaoID    string
	ProcessNumber  string
	Teor           string
	PractitionerID string
}

// Processor runs one document through NLP
type Processor interface {
	Process(ctx context.Context, text string, knownType *string) (*nlp.Result, error)
}

// ResultStore persists the outcome of one item
type ResultStore interface {
	ApplyNLPResult(id string, result *nlp.Result) error
	MarkNLPError(id, message string) error
}

var _ Processor = (*nlp.Client)(nil)

// ReprocessQueue is an in-memory FIFO drained by a single worker goroutine.
// All state lives behind mu; the worker is started by Enqueue when idle and
// exits when the queue is empty. An intimação is queued or in flight at most
// once; newer text for it replaces the queued item or reruns the in-flight one.
type ReprocessQueue struct {
	processor Processor
	store     ResultStore
	delay     time.Duration

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	idle     *sync.Cond
	items    []QueueItem
	pending  map[string]struct{} // queued or in flight
	inFlight *QueueItem
	rerun    map[string]QueueItem // newer text seen while in flight
	draining bool
	stopped  bool
}

// NewReprocessQueue creates an idle queue. A negative delay uses DefaultQueueDelay.
func NewReprocessQueue(processor Processor, store ResultStore, delay time.Duration) *ReprocessQueue {
	if delay < 0 {
		delay = DefaultQueueDelay
	}
	ctx, cancel := context.WithCancel(context.Background())
	q := &ReprocessQueue{
		processor: processor,
		store:     store,
		delay:     delay,
		ctx:       ctx,
		cancel:    cancel,
		pending:   make(map[string]struct{}),
		rerun:     make(map[string]QueueItem),
	}
	q.idle = sync.NewCond(&q.mu)
	return q
}

// Enqueue appends an item and starts the worker if it is not running.
// When the intimação is already queued its text is replaced in place; when it is
// in flight the new text is processed again after the current call.
// It returns false when the same text is already queued or in flight, or the queue is stopped.
func (q *ReprocessQueue) Enqueue(item QueueItem) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.stopped {
		return false
	}
	if _, ok := q.pending[item.IntimacaoID]; ok {
		return q.supersede(item)
	}

	q.items = append(q.items, item)
	q.pending[item.IntimacaoID] = struct{}{}

	if !q.draining {
		q.draining = true
		go q.drain()
	}
	return true
}

// supersede handles an id that is already pending. Caller holds mu.
func (q *ReprocessQueue) supersede(item QueueItem) bool {
	for i := range q.items {
		if q.items[i].IntimacaoID != item.IntimacaoID {
			continue
		}
		if q.items[i].Teor == item.Teor {
			log.Printf("[QUEUE] Intimação %s already queued, skipping", item.IntimacaoID)
			return false
		}
		q.items[i] = item
		log.Printf("[QUEUE] Intimação %s text replaced while queued", item.IntimacaoID)
		return true
	}

	if prev, ok := q.rerun[item.IntimacaoID]; ok && prev.Teor == item.Teor {
		return false
	}
	if _, ok := q.rerun[item.IntimacaoID]; !ok && q.inFlight != nil &&
		q.inFlight.IntimacaoID == item.IntimacaoID && q.inFlight.Teor == item.Teor {
		log.Printf("[QUEUE] Intimação %s already in flight, skipping", item.IntimacaoID)
		return false
	}
	q.rerun[item.IntimacaoID] = item
	log.Printf("[QUEUE] Intimação %s changed while in flight, will run again", item.IntimacaoID)
	return true
}

// Depth is the number of items waiting (excluding the one in flight)
func (q *ReprocessQueue) Depth() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// IsDraining reports whether the worker is running
func (q *ReprocessQueue) IsDraining() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.draining
}

// Wait blocks until the worker has emptied the queue
func (q *ReprocessQueue) Wait() {
	q.mu.Lock()
	defer q.mu.Unlock()
	for q.draining {
		q.idle.Wait()
	}
}

// Stop refuses new items, interrupts the worker and waits for it to exit.
// Items still queued are dropped; the daily collection finds them again.
func (q *ReprocessQueue) Stop() {
	q.mu.Lock()
	q.stopped = true
	dropped := len(q.items)
	q.mu.Unlock()

	q.cancel()
	q.Wait()

	if dropped > 0 {
		log.Printf("[QUEUE] Stopped with %d unprocessed items", dropped)
	}
}

func (q *ReprocessQueue) drain() {
	log.Println("[QUEUE] Worker started")

	for {
		q.mu.Lock()
		if len(q.items) == 0 || q.stopped {
			q.items = nil
			q.pending = make(map[string]struct{})
			q.rerun = make(map[string]QueueItem)
			q.inFlight = nil
			q.draining = false
			q.idle.Broadcast()
			q.mu.Unlock()
			log.Println("[QUEUE] Worker idle")
			return
		}
		item := q.items[0]
		q.items = q.items[1:]
		q.inFlight = &item
		q.mu.Unlock()

		result, err := q.call(item)

		q.mu.Lock()
		_, stale := q.rerun[item.IntimacaoID]
		q.mu.Unlock()
		if stale {
			// The row already holds newer text; this result no longer describes it
			log.Printf("[QUEUE] Discarding result for intimação %s, text changed during processing", item.IntimacaoID)
		} else {
			q.record(item, result, err)
		}

		q.mu.Lock()
		q.inFlight = nil
		if next, ok := q.rerun[item.IntimacaoID]; ok {
			delete(q.rerun, item.IntimacaoID)
			q.items = append(q.items, next)
		} else {
			delete(q.pending, item.IntimacaoID)
		}
		q.mu.Unlock()

		// Throttle before the next item
		select {
		case <-q.ctx.Done():
		case <-time.After(q.delay):
		}
	}
}

func (q *ReprocessQueue) call(item QueueItem) (*nlp.Result, error) {
	log.Printf("[QUEUE] Processing intimação %s (processo %s)", item.IntimacaoID, item.ProcessNumber)

	result, err := q.processor.Process(q.ctx, item.Teor, nil)
	if err == nil && result == nil {
		err = errors.New("empty NLP result")
	}
	return result, err
}

func (q *ReprocessQueue) record(item QueueItem, result *nlp.Result, err error) {
	if err != nil {
		if q.ctx.Err() != nil {
			// Shutting down: leave the row pending for the next collection
			log.Printf("[QUEUE] Intimação %s interrupted by shutdown", item.IntimacaoID)
			return
		}
		log.Printf("[QUEUE] Intimação %s failed: %v", item.IntimacaoID, err)
		if markErr := q.store.MarkNLPError(item.IntimacaoID, "Erro no processamento NLP: "+err.Error()); markErr != nil {
			log.Printf("[QUEUE] Failed to mark intimação %s as erro_nlp: %v", item.IntimacaoID, markErr)
		}
		return
	}

	if err := q.store.ApplyNLPResult(item.IntimacaoID, result); err != nil {
		log.Printf("[QUEUE] Failed to store result for intimação %s: %v", item.IntimacaoID, err)
		if markErr := q.store.MarkNLPError(item.IntimacaoID, "Erro no processamento NLP: "+err.Error()); markErr != nil {
			log.Printf("[QUEUE] Failed to mark intimação %s as erro_nlp: %v", item.IntimacaoID, markErr)
		}
		return
	}

	log.Printf("[QUEUE] Intimação %s processed", item.IntimacaoID)
}
