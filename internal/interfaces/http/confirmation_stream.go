package httpinterface

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/btcconnect/connectkit/internal/core/application"
	"github.com/btcconnect/connectkit/internal/core/domain"
	"github.com/btcconnect/connectkit/internal/core/ports"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"
)

// Commands accepted from the confirmation UI.
const (
	CommandSelectFeeQuote = "select_fee_quote"
	CommandNotRemind      = "not_remind"
	CommandConfirm        = "confirm"
	CommandReject         = "reject"
)

// Messages pushed to the confirmation UI.
const (
	MessageSession = "session"
	MessageClose   = "close"
	MessageAck     = "ack"
	MessageError   = "error"
)

const (
	streamBufferSize = 64
	commandTimeout   = 2 * time.Minute
)

type StreamCommand struct {
	Command   string `json:"command"`
	SessionID string `json:"sessionId"`
	Index     int    `json:"index,omitempty"`
	NotRemind bool   `json:"notRemind,omitempty"`
}

type StreamMessage struct {
	Type      string                           `json:"type"`
	SessionID string                           `json:"sessionId,omitempty"`
	Session   *application.ConfirmationSession `json:"session,omitempty"`
	Error     *domain.RPCError                 `json:"error,omitempty"`
}

type streamClient struct {
	id   string
	conn *websocket.Conn
	send chan StreamMessage
	done chan struct{}
}

func (c *streamClient) enqueue(msg StreamMessage) {
	select {
	case c.send <- msg:
	case <-c.done:
	default:
		log.Warnf("confirmation stream %s: client too slow, dropping message", c.id)
	}
}

// confirmationStream pushes confirmation sessions to the attached UIs and
// forwards their commands to the sign service.
type confirmationStream struct {
	signSvc  application.SignService
	bus      ports.EventBus
	upgrader websocket.Upgrader

	lock    sync.Mutex
	clients map[string]*streamClient
}

func newConfirmationStream(
	signSvc application.SignService, bus ports.EventBus,
) *confirmationStream {
	return &confirmationStream{
		signSvc: signSvc,
		bus:     bus,
		upgrader: websocket.Upgrader{
			CheckOrigin:     func(*http.Request) bool { return true },
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		clients: make(map[string]*streamClient),
	}
}

func (s *confirmationStream) serve(c *gin.Context) {
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.WithError(err).Warn("confirmation stream: failed to upgrade connection")
		return
	}

	client := &streamClient{
		id:   uuid.NewString(),
		conn: conn,
		send: make(chan StreamMessage, streamBufferSize),
		done: make(chan struct{}),
	}
	s.addClient(client)
	defer s.removeClient(client)

	sessionListener := s.bus.On(
		domain.TopicConfirmationSession, func(_ string, payload interface{}) {
			session, ok := payload.(application.ConfirmationSession)
			if !ok {
				return
			}
			client.enqueue(StreamMessage{
				Type: MessageSession, SessionID: session.ID, Session: &session,
			})
		},
	)
	closeListener := s.bus.On(
		domain.TopicCloseConfirmation, func(string, interface{}) {
			client.enqueue(StreamMessage{Type: MessageClose})
		},
	)
	defer func() {
		s.bus.Off(domain.TopicConfirmationSession, sessionListener)
		s.bus.Off(domain.TopicCloseConfirmation, closeListener)
	}()

	for _, session := range s.signSvc.Sessions() {
		session := session
		client.enqueue(StreamMessage{
			Type: MessageSession, SessionID: session.ID, Session: &session,
		})
	}

	go s.writeLoop(client)
	s.readLoop(client)
}

func (s *confirmationStream) readLoop(client *streamClient) {
	log.Debugf("confirmation stream: client %s attached", client.id)
	defer log.Debugf("confirmation stream: client %s detached", client.id)

	for {
		var cmd StreamCommand
		if err := client.conn.ReadJSON(&cmd); err != nil {
			if websocket.IsUnexpectedCloseError(
				err, websocket.CloseGoingAway, websocket.CloseNormalClosure,
			) {
				log.WithError(err).Warn("confirmation stream: connection dropped")
			}
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
		err := s.execute(ctx, cmd)
		cancel()

		if err != nil {
			client.enqueue(StreamMessage{
				Type: MessageError, SessionID: cmd.SessionID, Error: domain.ToRPCError(err),
			})
			continue
		}
		client.enqueue(StreamMessage{Type: MessageAck, SessionID: cmd.SessionID})
	}
}

func (s *confirmationStream) execute(ctx context.Context, cmd StreamCommand) error {
	var err error
	switch cmd.Command {
	case CommandSelectFeeQuote:
		_, err = s.signSvc.SelectFeeQuote(ctx, cmd.SessionID, cmd.Index)
	case CommandNotRemind:
		_, err = s.signSvc.SetNotRemind(ctx, cmd.SessionID, cmd.NotRemind)
	case CommandConfirm:
		_, err = s.signSvc.Confirm(ctx, cmd.SessionID)
	case CommandReject:
		err = s.signSvc.Reject(ctx, cmd.SessionID)
	default:
		err = fmt.Errorf("%w: unknown command %q", domain.ErrInvalidParams, cmd.Command)
	}
	return err
}

func (s *confirmationStream) writeLoop(client *streamClient) {
	for {
		select {
		case msg := <-client.send:
			//nolint
			client.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := client.conn.WriteJSON(msg); err != nil {
				log.WithError(err).Debugf(
					"confirmation stream: failed to write to client %s", client.id,
				)
				client.conn.Close()
				return
			}
		case <-client.done:
			return
		}
	}
}

func (s *confirmationStream) addClient(client *streamClient) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.clients[client.id] = client
}

func (s *confirmationStream) removeClient(client *streamClient) {
	s.lock.Lock()
	defer s.lock.Unlock()

	if _, ok := s.clients[client.id]; !ok {
		return
	}
	delete(s.clients, client.id)
	close(client.done)
	client.conn.Close()
}

func (s *confirmationStream) close() {
	s.lock.Lock()
	clients := make([]*streamClient, 0, len(s.clients))
	for _, c := range s.clients {
		clients = append(clients, c)
	}
	s.lock.Unlock()

	for _, c := range clients {
		s.removeClient(c)
	}
}
