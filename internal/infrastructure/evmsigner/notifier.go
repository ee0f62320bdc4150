package evmsigner

import (
	"sync"

	"github.com/btcconnect/connectkit/internal/core/domain"
	"github.com/btcconnect/connectkit/internal/core/ports"
)

// chainNotifier emits chainChanged events from a single goroutine, in the
// order the switches happened, without blocking the switching caller.
type chainNotifier struct {
	events ports.EventBus

	lock    sync.Mutex
	queue   []uint64
	wakeup  chan struct{}
	quit    chan struct{}
	stopped sync.Once
}

func newChainNotifier(events ports.EventBus) *chainNotifier {
	n := &chainNotifier{
		events: events,
		wakeup: make(chan struct{}, 1),
		quit:   make(chan struct{}),
	}
	go n.run()
	return n
}

func (n *chainNotifier) notify(chainID uint64) {
	n.lock.Lock()
	n.queue = append(n.queue, chainID)
	n.lock.Unlock()

	select {
	case n.wakeup <- struct{}{}:
	default:
	}
}

func (n *chainNotifier) stop() {
	n.stopped.Do(func() { close(n.quit) })
}

func (n *chainNotifier) run() {
	for {
		select {
		case <-n.quit:
			return
		case <-n.wakeup:
		}

		n.lock.Lock()
		queue := n.queue
		n.queue = nil
		n.lock.Unlock()

		for _, chainID := range queue {
			select {
			case <-n.quit:
				return
			default:
			}
			n.events.Emit(EventChainChanged, domain.HexChainID(chainID))
		}
	}
}
