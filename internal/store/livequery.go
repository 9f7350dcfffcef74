package store

import (
	"context"
	"log"
	"sync"

	"github.com/google/uuid"
	"liveclass/pkg/types"
)

// notifier owns the live query registry. A single goroutine consumes change
// notifications, re-runs the affected queries, and hands each subscription
// its new snapshot. Snapshots for one subscription coalesce under load: a
// slow consumer always sees the latest result set, never a stale backlog.
type notifier struct {
	store    *Manager
	mu       sync.RWMutex
	subs     map[string]*subscription
	changeCh chan string
	shutdown chan struct{}
	wg       sync.WaitGroup
	closed   bool
}

// subscription is one open live query.
type subscription struct {
	id         string
	collection string
	filters    []types.Filter
	fn         func([]types.Document)
	snapCh     chan []types.Document
	done       chan struct{}
	closeOnce  sync.Once
}

func newNotifier(store *Manager) *notifier {
	n := &notifier{
		store:    store,
		subs:     make(map[string]*subscription),
		changeCh: make(chan string, 256),
		shutdown: make(chan struct{}),
	}

	n.wg.Add(1)
	go n.run()

	return n
}

// subscribe registers a live query and requests its initial snapshot through
// the normal change path, so first delivery and subsequent deliveries take
// the same route.
func (n *notifier) subscribe(collection string, filters []types.Filter, fn func([]types.Document)) (types.Disposer, error) {
	sub := &subscription{
		id:         uuid.New().String(),
		collection: collection,
		filters:    filters,
		fn:         fn,
		snapCh:     make(chan []types.Document, 1),
		done:       make(chan struct{}),
	}

	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		return nil, ErrNotifierClosed
	}
	n.subs[sub.id] = sub
	n.mu.Unlock()

	n.wg.Add(1)
	go n.deliverLoop(sub)

	n.collectionChanged(collection)

	return func() { n.dispose(sub) }, nil
}

// dispose stops a subscription exactly once. Safe to invoke repeatedly.
func (n *notifier) dispose(sub *subscription) {
	sub.closeOnce.Do(func() {
		close(sub.done)

		n.mu.Lock()
		delete(n.subs, sub.id)
		n.mu.Unlock()
	})
}

// collectionChanged queues a refresh of every live query on the collection.
func (n *notifier) collectionChanged(collection string) {
	select {
	case n.changeCh <- collection:
	case <-n.shutdown:
	}
}

// run is the single goroutine that recomputes snapshots. Query failures are
// logged and the subscription keeps its last delivered state; a live query
// error never crashes the subscriber.
func (n *notifier) run() {
	defer n.wg.Done()

	for {
		select {
		case collection := <-n.changeCh:
			n.refresh(collection)

		case <-n.shutdown:
			return
		}
	}
}

func (n *notifier) refresh(collection string) {
	n.mu.RLock()
	var affected []*subscription
	for _, sub := range n.subs {
		if sub.collection == collection {
			affected = append(affected, sub)
		}
	}
	n.mu.RUnlock()

	if len(affected) == 0 {
		return
	}

	for _, sub := range affected {
		docs, err := n.store.Query(context.Background(), sub.collection, sub.filters)
		if err != nil {
			log.Printf("Live query refresh failed: collection=%s sub=%s: %v", sub.collection, sub.id, err)
			continue
		}
		n.deliver(sub, docs)
	}
}

// deliver hands a snapshot to the subscription, replacing any pending one.
// run is the only sender on snapCh, so the drain-then-send is race-free.
func (n *notifier) deliver(sub *subscription, docs []types.Document) {
	select {
	case sub.snapCh <- docs:
	default:
		select {
		case <-sub.snapCh:
		default:
		}
		select {
		case sub.snapCh <- docs:
		case <-sub.done:
		}
	}
}

// deliverLoop invokes the subscriber callback. The done re-check before each
// invocation guards against a snapshot that was already queued when the
// disposer fired.
func (n *notifier) deliverLoop(sub *subscription) {
	defer n.wg.Done()

	for {
		select {
		case docs := <-sub.snapCh:
			select {
			case <-sub.done:
				return
			default:
			}
			sub.fn(docs)

		case <-sub.done:
			return

		case <-n.shutdown:
			return
		}
	}
}

// close disposes every subscription and stops the notifier goroutines.
func (n *notifier) close() {
	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		return
	}
	n.closed = true
	subs := make([]*subscription, 0, len(n.subs))
	for _, sub := range n.subs {
		subs = append(subs, sub)
	}
	n.mu.Unlock()

	for _, sub := range subs {
		n.dispose(sub)
	}

	close(n.shutdown)
	n.wg.Wait()
}
