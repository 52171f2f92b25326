package room

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

var (
	// ErrNotConnected is returned when a request is made while the session
	// has no live transport. Callers surface it and leave state unchanged.
	ErrNotConnected = errors.New("session is not connected")

	// ErrAckTimeout is returned when the server does not acknowledge a
	// request within the configured window.
	ErrAckTimeout = errors.New("acknowledgement timed out")
)

// SessionStatus describes the lifecycle state of the event channel.
type SessionStatus int

const (
	StatusDisconnected SessionStatus = iota
	StatusConnected
	StatusReconnecting
	// StatusGone means reconnection attempts are exhausted. The session
	// stays down and is not retried further.
	StatusGone
)

func (s SessionStatus) String() string {
	switch s {
	case StatusDisconnected:
		return "disconnected"
	case StatusConnected:
		return "connected"
	case StatusReconnecting:
		return "reconnecting"
	case StatusGone:
		return "gone"
	default:
		return "unknown"
	}
}

// EventHandler receives inbound events in transport delivery order.
type EventHandler func(*Event)

// StatusHandler is notified on session lifecycle changes. attempt is the
// reconnection attempt number, zero outside of reconnection.
type StatusHandler func(status SessionStatus, attempt int)

// SessionConfig holds configuration for the room event channel.
type SessionConfig struct {
	URL                  string
	HandshakeTimeout     time.Duration
	WriteTimeout         time.Duration
	ReadTimeout          time.Duration
	PingInterval         time.Duration
	AckTimeout           time.Duration
	ReconnectDelay       time.Duration
	MaxReconnectAttempts int
	MaxMessageSize       int64
}

// DefaultSessionConfig returns the default session configuration for a
// server websocket URL.
func DefaultSessionConfig(url string) SessionConfig {
	return SessionConfig{
		URL:                  url,
		HandshakeTimeout:     10 * time.Second,
		WriteTimeout:         10 * time.Second,
		ReadTimeout:          60 * time.Second,
		PingInterval:         30 * time.Second,
		AckTimeout:           10 * time.Second,
		ReconnectDelay:       2 * time.Second,
		MaxReconnectAttempts: 5,
		MaxMessageSize:       64 * 1024,
	}
}

// wsConn bundles one websocket connection with its outbound queue.
type wsConn struct {
	conn *websocket.Conn
	send chan []byte
	done chan struct{}
	once sync.Once
}

func (c *wsConn) stop() {
	c.once.Do(func() { close(c.done) })
}

// Session owns the lifecycle of the event channel bound to one
// (userID, roomID) pair. It is an explicit object passed down by the owner
// of the room view; there is no shared global instance.
type Session struct {
	config SessionConfig
	clock  clockwork.Clock

	mu           sync.Mutex
	cur          *wsConn
	connected    bool
	closing      bool
	reconnecting bool
	userID       string
	roomID       string

	ackMu   sync.Mutex
	nextAck uint64
	pending map[uint64]chan AckPayload

	subMu   sync.RWMutex
	nextSub uint64
	subs    map[EventType]map[uint64]EventHandler

	cbMu     sync.RWMutex
	onStatus StatusHandler
	onJoined []func()
}

// NewSession creates a session that is not yet connected.
func NewSession(config SessionConfig) *Session {
	return NewSessionWithClock(config, clockwork.NewRealClock())
}

// NewSessionWithClock creates a session with an injected clock.
// In production, use clockwork.NewRealClock(). In tests, a FakeClock.
func NewSessionWithClock(config SessionConfig, clock clockwork.Clock) *Session {
	return &Session{
		config:  config,
		clock:   clock,
		pending: make(map[uint64]chan AckPayload),
		subs:    make(map[EventType]map[uint64]EventHandler),
	}
}

// Connect opens the event channel for (userID, roomID) and runs the join
// handshake. A second call while connected is a no-op.
func (s *Session) Connect(ctx context.Context, userID, roomID string) error {
	s.mu.Lock()
	if s.connected {
		s.mu.Unlock()
		return nil
	}
	s.userID = userID
	s.roomID = roomID
	s.closing = false
	s.mu.Unlock()

	return s.dial(ctx)
}

// dial establishes the websocket connection and re-runs the full join
// handshake. Used for both the initial connect and every reconnect; there is
// no resumable session or cursor.
func (s *Session) dial(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: s.config.HandshakeTimeout}
	conn, _, err := dialer.DialContext(ctx, s.config.URL, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", s.config.URL, err)
	}

	c := &wsConn{
		conn: conn,
		send: make(chan []byte, 256),
		done: make(chan struct{}),
	}

	s.mu.Lock()
	userID, roomID := s.userID, s.roomID
	s.mu.Unlock()

	// Queue the join frame before the session becomes visible as connected,
	// so a failed handshake never leaves a connected-but-unjoined session.
	joinEvt, err := s.newEvent(EventTypeJoinRoom, JoinRoomPayload{UserID: userID, RoomID: roomID})
	var frame []byte
	if err == nil {
		frame, err = json.Marshal(joinEvt)
	}
	if err != nil {
		conn.Close()
		return fmt.Errorf("join handshake: %w", err)
	}
	c.send <- frame

	s.mu.Lock()
	s.cur = c
	s.connected = true
	s.mu.Unlock()

	go s.writePump(c)
	go s.readPump(c)

	log.Info().
		Str("user_id", userID).
		Str("room_id", roomID).
		Msg("room session connected")

	s.notifyStatus(StatusConnected, 0)
	s.notifyJoined()
	return nil
}

// Disconnect emits a leave notification, flushes the outbound queue and
// tears down the transport. No reconnection is attempted afterwards.
func (s *Session) Disconnect() {
	s.mu.Lock()
	s.closing = true
	c := s.cur
	userID, roomID := s.userID, s.roomID
	connected := s.connected
	s.mu.Unlock()

	if !connected || c == nil {
		return
	}

	if err := s.Emit(EventTypeLeaveRoom, LeaveRoomPayload{UserID: userID, RoomID: roomID}); err != nil {
		log.Warn().Err(err).Msg("could not send leave notification")
	}
	c.stop()
}

// Connected reports whether the event channel is currently up.
func (s *Session) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}

// OnStatus registers the session status callback.
func (s *Session) OnStatus(fn StatusHandler) {
	s.cbMu.Lock()
	s.onStatus = fn
	s.cbMu.Unlock()
}

// OnJoined registers a callback invoked after every successful join
// handshake, including the one re-run on each reconnect. The room view uses
// it to re-request authoritative state.
func (s *Session) OnJoined(fn func()) {
	s.cbMu.Lock()
	s.onJoined = append(s.onJoined, fn)
	s.cbMu.Unlock()
}

// Subscribe registers a handler for one inbound event type and returns its
// disposer. Handlers run on the read loop goroutine, in delivery order.
func (s *Session) Subscribe(t EventType, h EventHandler) func() {
	s.subMu.Lock()
	s.nextSub++
	id := s.nextSub
	if s.subs[t] == nil {
		s.subs[t] = make(map[uint64]EventHandler)
	}
	s.subs[t][id] = h
	s.subMu.Unlock()

	return func() {
		s.subMu.Lock()
		if handlers, ok := s.subs[t]; ok {
			delete(handlers, id)
			if len(handlers) == 0 {
				delete(s.subs, t)
			}
		}
		s.subMu.Unlock()
	}
}

// Emit sends a fire-and-forget event.
func (s *Session) Emit(t EventType, payload interface{}) error {
	evt, err := s.newEvent(t, payload)
	if err != nil {
		return err
	}
	return s.sendEvent(evt)
}

// EmitWithAck sends an event and waits for the server's acknowledgement. An
// ack carrying an error field is surfaced as an error; the action is not
// retried.
func (s *Session) EmitWithAck(ctx context.Context, t EventType, payload interface{}) error {
	evt, err := s.newEvent(t, payload)
	if err != nil {
		return err
	}

	ch := make(chan AckPayload, 1)
	s.ackMu.Lock()
	s.nextAck++
	ackID := s.nextAck
	s.pending[ackID] = ch
	s.ackMu.Unlock()
	evt.AckID = ackID

	if err := s.sendEvent(evt); err != nil {
		s.dropAck(ackID)
		return err
	}

	select {
	case ack := <-ch:
		if ack.Error != "" {
			return fmt.Errorf("%s rejected: %s", t, ack.Error)
		}
		return nil
	case <-s.clock.After(s.config.AckTimeout):
		s.dropAck(ackID)
		return fmt.Errorf("%s: %w", t, ErrAckTimeout)
	case <-ctx.Done():
		s.dropAck(ackID)
		return ctx.Err()
	}
}

func (s *Session) newEvent(t EventType, payload interface{}) (*Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", t, err)
	}
	s.mu.Lock()
	roomID := s.roomID
	s.mu.Unlock()
	return &Event{
		ID:        uuid.New().String(),
		RoomID:    roomID,
		Type:      t,
		Timestamp: s.clock.Now(),
		Data:      data,
	}, nil
}

func (s *Session) sendEvent(evt *Event) error {
	s.mu.Lock()
	c := s.cur
	connected := s.connected
	s.mu.Unlock()

	if !connected || c == nil {
		return ErrNotConnected
	}

	frame, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	select {
	case c.send <- frame:
		return nil
	case <-c.done:
		return ErrNotConnected
	}
}

func (s *Session) dropAck(ackID uint64) {
	s.ackMu.Lock()
	delete(s.pending, ackID)
	s.ackMu.Unlock()
}

func (s *Session) deliverAck(evt *Event) {
	var ack AckPayload
	if len(evt.Data) > 0 {
		if err := json.Unmarshal(evt.Data, &ack); err != nil {
			log.Warn().Err(err).Uint64("ack_id", evt.AckID).Msg("malformed ack payload")
			return
		}
	}

	s.ackMu.Lock()
	ch, ok := s.pending[evt.AckID]
	delete(s.pending, evt.AckID)
	s.ackMu.Unlock()

	if ok {
		ch <- ack
	}
}

// dispatch fans one inbound event out to its subscribers, synchronously, so
// events are applied in the order the transport delivered them. Subscribers
// run in registration order; a later subscriber reading shared state sees the
// effects of every earlier one.
func (s *Session) dispatch(evt *Event) {
	s.subMu.RLock()
	registered := s.subs[evt.Type]
	ids := make([]uint64, 0, len(registered))
	for id := range registered {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	handlers := make([]EventHandler, 0, len(ids))
	for _, id := range ids {
		handlers = append(handlers, registered[id])
	}
	s.subMu.RUnlock()

	if len(handlers) == 0 {
		log.Debug().Str("event_type", string(evt.Type)).Msg("no subscriber for event")
		return
	}
	for _, h := range handlers {
		h(evt)
	}
}

func (s *Session) detach(c *wsConn) {
	s.mu.Lock()
	if s.cur == c {
		s.cur = nil
		s.connected = false
	}
	s.mu.Unlock()
}

// writePump owns all writes on one connection. On shutdown it drains the
// outbound queue so a queued leave notification still reaches the server.
func (s *Session) writePump(c *wsConn) {
	ticker := s.clock.NewTicker(s.config.PingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(s.config.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Error().Err(err).Msg("failed to write event frame")
				c.stop()
				return
			}

		case <-ticker.Chan():
			c.conn.SetWriteDeadline(time.Now().Add(s.config.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Error().Err(err).Msg("failed to send ping")
				c.stop()
				return
			}

		case <-c.done:
			for {
				select {
				case message := <-c.send:
					c.conn.SetWriteDeadline(time.Now().Add(s.config.WriteTimeout))
					if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
						return
					}
				default:
					c.conn.SetWriteDeadline(time.Now().Add(s.config.WriteTimeout))
					c.conn.WriteMessage(websocket.CloseMessage,
						websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
					return
				}
			}
		}
	}
}

// readPump reads inbound frames, validates them at the boundary and hands
// them to subscribers. A transport-level failure triggers bounded
// reconnection unless the session is closing.
func (s *Session) readPump(c *wsConn) {
	defer func() {
		c.conn.Close()
		s.detach(c)
	}()

	c.conn.SetReadLimit(s.config.MaxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(s.config.ReadTimeout))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(s.config.ReadTimeout))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				log.Error().Err(err).Msg("unexpected websocket close")
			}
			break
		}
		c.conn.SetReadDeadline(time.Now().Add(s.config.ReadTimeout))

		var evt Event
		if err := json.Unmarshal(message, &evt); err != nil {
			log.Warn().Err(err).Msg("dropping malformed event frame")
			continue
		}
		if evt.Type == EventTypeAck {
			s.deliverAck(&evt)
			continue
		}
		s.dispatch(&evt)
	}

	c.stop()
	s.detach(c)

	s.mu.Lock()
	closing := s.closing
	s.mu.Unlock()

	if closing {
		log.Info().Msg("room session disconnected")
		s.notifyStatus(StatusDisconnected, 0)
		return
	}
	s.startReconnect()
}

func (s *Session) startReconnect() {
	s.mu.Lock()
	if s.reconnecting {
		s.mu.Unlock()
		return
	}
	s.reconnecting = true
	s.mu.Unlock()

	go func() {
		s.reconnect()
		s.mu.Lock()
		s.reconnecting = false
		s.mu.Unlock()
	}()
}

// reconnect retries the transport with a fixed delay up to the configured
// attempt limit. No exponential backoff, no jitter. When attempts are
// exhausted the session stays down and is only reported.
func (s *Session) reconnect() {
	for attempt := 1; attempt <= s.config.MaxReconnectAttempts; attempt++ {
		s.notifyStatus(StatusReconnecting, attempt)
		log.Info().Int("attempt", attempt).Msg("reconnection attempt")

		<-s.clock.After(s.config.ReconnectDelay)

		s.mu.Lock()
		if s.closing {
			s.mu.Unlock()
			return
		}
		s.mu.Unlock()

		ctx, cancel := context.WithTimeout(context.Background(), s.config.HandshakeTimeout)
		err := s.dial(ctx)
		cancel()
		if err == nil {
			return
		}
		log.Warn().Err(err).Int("attempt", attempt).Msg("reconnection attempt failed")
	}

	log.Error().
		Int("attempts", s.config.MaxReconnectAttempts).
		Msg("max reconnect attempts reached, session remains down")
	s.notifyStatus(StatusGone, s.config.MaxReconnectAttempts)
}

func (s *Session) notifyStatus(status SessionStatus, attempt int) {
	s.cbMu.RLock()
	fn := s.onStatus
	s.cbMu.RUnlock()
	if fn != nil {
		fn(status, attempt)
	}
}

func (s *Session) notifyJoined() {
	s.cbMu.RLock()
	joined := make([]func(), len(s.onJoined))
	copy(joined, s.onJoined)
	s.cbMu.RUnlock()
	for _, fn := range joined {
		fn()
	}
}
