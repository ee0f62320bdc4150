// Package walletbridge relays wallet calls to a browser shim connected over
// websocket. The shim announces the wallet globals injected in the page,
// executes the requests it receives and forwards wallet events.
package walletbridge

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/btcconnect/connectkit/internal/core/domain"
	"github.com/btcconnect/connectkit/internal/core/ports"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"
)

const (
	DefaultRequestTimeout = 5 * time.Minute

	writeWait = 10 * time.Second
)

// Bridge is both the environment of the injected connectors and the client
// of the paired one.
type Bridge interface {
	ports.Environment
	ports.PairingClient
	http.Handler
	// Connected returns whether a shim is attached.
	Connected() bool
	Close()
}

type session struct {
	id        string
	conn      *websocket.Conn
	writeLock sync.Mutex
	// requests awaiting a response from this shim, guarded by the bridge lock
	pending map[string]chan Message
}

func newSession(conn *websocket.Conn) *session {
	return &session{
		id:      uuid.NewString(),
		conn:    conn,
		pending: make(map[string]chan Message),
	}
}

func (s *session) write(msg Message) error {
	s.writeLock.Lock()
	defer s.writeLock.Unlock()

	//nolint
	s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return s.conn.WriteJSON(msg)
}

type bridge struct {
	upgrader websocket.Upgrader
	timeout  time.Duration

	lock     sync.RWMutex
	session  *session
	globals  map[string]bool
	handlers map[string]map[string]ports.EventHandler
}

// NewBridge returns a bridge whose requests fail after the given timeout,
// DefaultRequestTimeout if not positive.
func NewBridge(timeout time.Duration) Bridge {
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}
	return &bridge{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
		timeout:  timeout,
		globals:  make(map[string]bool),
		handlers: make(map[string]map[string]ports.EventHandler),
	}
}

// ServeHTTP attaches a shim. A newly attached shim replaces the previous
// one.
func (b *bridge) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := b.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.WithError(err).Warn("wallet bridge: failed to upgrade connection")
		return
	}

	s := newSession(conn)
	b.attach(s)
	log.Debugf("wallet bridge: shim %s attached", s.id)

	b.readLoop(s)

	b.detach(s)
	log.Debugf("wallet bridge: shim %s detached", s.id)
}

func (b *bridge) Connected() bool {
	b.lock.RLock()
	defer b.lock.RUnlock()
	return b.session != nil
}

func (b *bridge) Close() {
	b.lock.Lock()
	s := b.session
	b.lock.Unlock()

	if s != nil {
		s.conn.Close()
	}
}

func (b *bridge) Lookup(path []string) (ports.WalletProvider, bool) {
	target := strings.Join(path, ".")

	b.lock.RLock()
	defer b.lock.RUnlock()

	if !b.globals[target] {
		return nil, false
	}
	return &remoteProvider{b, target}, true
}

// attach makes s the current session. The requests sent to the replaced
// shim are failed right away.
func (b *bridge) attach(s *session) {
	b.lock.Lock()
	defer b.lock.Unlock()

	prev := b.session
	b.session = s
	b.globals = make(map[string]bool)

	if prev != nil {
		prev.conn.Close()
		failPending(prev, "wallet bridge shim replaced")
	}
}

// detach drops the session and fails the requests still waiting for it.
func (b *bridge) detach(s *session) {
	b.lock.Lock()
	defer b.lock.Unlock()

	s.conn.Close()
	failPending(s, "wallet bridge disconnected")
	if b.session != s {
		return
	}
	b.session = nil
	b.globals = make(map[string]bool)
}

// failPending must be called with the bridge lock held.
func failPending(s *session, reason string) {
	for id, ch := range s.pending {
		ch <- Message{
			Type:  TypeResponse,
			ID:    id,
			Error: domain.NewRPCError(domain.CodeUnauthorized, "%s", reason),
		}
		delete(s.pending, id)
	}
}

func (b *bridge) readLoop(s *session) {
	for {
		var msg Message
		if err := s.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(
				err, websocket.CloseGoingAway, websocket.CloseNormalClosure,
			) {
				log.WithError(err).Warn("wallet bridge: connection dropped")
			}
			return
		}

		switch msg.Type {
		case TypeAnnounce:
			b.announce(s, msg.Globals)
		case TypeResponse:
			b.resolve(s, msg)
		case TypeEvent:
			b.dispatch(msg)
		default:
			log.Debugf("wallet bridge: dropping message of type %q", msg.Type)
		}
	}
}

func (b *bridge) announce(s *session, globals []string) {
	b.lock.Lock()
	defer b.lock.Unlock()

	if b.session != s {
		return
	}
	b.globals = make(map[string]bool, len(globals))
	for _, g := range globals {
		b.globals[g] = true
	}
	log.Debugf("wallet bridge: announced globals %v", globals)
}

func (b *bridge) resolve(s *session, msg Message) {
	b.lock.Lock()
	ch, ok := s.pending[msg.ID]
	delete(s.pending, msg.ID)
	b.lock.Unlock()

	if !ok {
		log.Debugf("wallet bridge: dropping response with unknown id %s", msg.ID)
		return
	}
	ch <- msg
}

func (b *bridge) dispatch(msg Message) {
	var payload interface{}
	if len(msg.Payload) > 0 {
		if err := json.Unmarshal(msg.Payload, &payload); err != nil {
			log.WithError(err).Warnf("wallet bridge: invalid %s payload", msg.Event)
			return
		}
	}
	// Relayed accounts are normalized to a string list.
	if list, ok := payload.([]interface{}); ok && msg.Event == domain.EventAccountsChanged {
		accounts := make([]string, 0, len(list))
		for _, a := range list {
			if s, ok := a.(string); ok {
				accounts = append(accounts, s)
			}
		}
		payload = accounts
	}

	for _, handler := range b.handlersFor(msg.Target, msg.Event) {
		handler(payload)
	}
}

func (b *bridge) on(target, event string, handler ports.EventHandler) string {
	b.lock.Lock()
	defer b.lock.Unlock()

	key := handlerKey(target, event)
	if b.handlers[key] == nil {
		b.handlers[key] = make(map[string]ports.EventHandler)
	}
	id := uuid.NewString()
	b.handlers[key][id] = handler
	return id
}

func (b *bridge) off(target, event, id string) {
	b.lock.Lock()
	defer b.lock.Unlock()

	key := handlerKey(target, event)
	delete(b.handlers[key], id)
	if len(b.handlers[key]) <= 0 {
		delete(b.handlers, key)
	}
}

func (b *bridge) handlersFor(target, event string) []ports.EventHandler {
	b.lock.RLock()
	defer b.lock.RUnlock()

	handlers := make([]ports.EventHandler, 0, len(b.handlers[handlerKey(target, event)]))
	for _, h := range b.handlers[handlerKey(target, event)] {
		handlers = append(handlers, h)
	}
	return handlers
}

// call sends a request to the shim and waits for its response.
func (b *bridge) call(
	ctx context.Context, target, method string, params ...interface{},
) (json.RawMessage, error) {
	id := uuid.NewString()
	ch := make(chan Message, 1)

	b.lock.Lock()
	s := b.session
	if s == nil {
		b.lock.Unlock()
		return nil, fmt.Errorf("%w: wallet bridge not attached", domain.ErrNotInstalled)
	}
	s.pending[id] = ch
	b.lock.Unlock()

	if err := s.write(Message{
		Type: TypeRequest, ID: id, Target: target, Method: method, Params: params,
	}); err != nil {
		b.forget(s, id)
		return nil, fmt.Errorf("failed to send %s request: %w", method, err)
	}

	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	select {
	case res := <-ch:
		if res.Error != nil {
			return nil, res.Error
		}
		return res.Result, nil
	case <-ctx.Done():
		b.forget(s, id)
		return nil, ctx.Err()
	}
}

func (b *bridge) forget(s *session, id string) {
	b.lock.Lock()
	defer b.lock.Unlock()
	delete(s.pending, id)
}

func handlerKey(target, event string) string {
	return target + "/" + event
}
