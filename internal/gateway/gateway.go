package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/sawdustofmind/matchcenter/internal/hub"
	"github.com/sawdustofmind/matchcenter/internal/log"
	"github.com/sawdustofmind/matchcenter/internal/metrics"
)

const (
	EventSubscribe    = "subscribe:match"
	EventUnsubscribe  = "unsubscribe:match"
	EventPing         = "ping"
	EventSubscribed   = "subscribed:match"
	EventUnsubscribed = "unsubscribed:match"
	EventPong         = "pong"
	EventError        = "error"

	CodeValidation    = "VALIDATION_ERROR"
	CodeSubscribe     = "SUBSCRIPTION_ERROR"
	CodeUnsubscribe   = "UNSUBSCRIPTION_ERROR"
	matchIDValidation = "matchId is required and must be a string"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendBuffer     = 256
	opTimeout      = 5 * time.Second
)

// Presence records which connections joined which matches.
type Presence interface {
	Track(ctx context.Context, connID string) error
	Touch(ctx context.Context, connID string) error
	Join(ctx context.Context, connID, matchID string) error
	Leave(ctx context.Context, connID, matchID string) error
	Disconnect(ctx context.Context, connID string) error
}

// Envelope is every frame exchanged over the socket.
type Envelope struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

type inbound struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type matchRequest struct {
	MatchID string `json:"matchId" validate:"required"`
}

type RoomReply struct {
	MatchID string `json:"matchId"`
	Room    string `json:"room"`
}

type Pong struct {
	TS   int64 `json:"ts"`
	Echo any   `json:"echo"`
}

type ErrorReply struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// RoomName is the room a match's updates are delivered to.
func RoomName(matchID string) string {
	return fmt.Sprintf("match:%s", matchID)
}

// Client is one WebSocket connection.
type Client struct {
	id    string
	conn  *websocket.Conn
	send  chan []byte
	done  chan struct{}
	once  sync.Once
	rooms map[string]struct{} // guarded by Gateway.mu
}

func newClient(conn *websocket.Conn) *Client {
	return &Client{
		id:    uuid.NewString(),
		conn:  conn,
		send:  make(chan []byte, sendBuffer),
		done:  make(chan struct{}),
		rooms: make(map[string]struct{}),
	}
}

func (c *Client) ID() string {
	return c.id
}

// enqueue never blocks; a client that cannot keep up loses the frame.
func (c *Client) enqueue(msg []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

func (c *Client) emit(event string, data any) {
	msg, err := json.Marshal(Envelope{Event: event, Data: data})
	if err != nil {
		log.Error("Failed to marshal frame", zap.String("event", event), zap.Error(err))
		return
	}
	if !c.enqueue(msg) {
		log.Warn("Dropped frame for slow connection",
			zap.String("conn_id", c.id),
			zap.String("event", event),
		)
	}
}

// Gateway is the room-based push channel. It is a hub.Sink named "rooms".
type Gateway struct {
	mu       sync.RWMutex
	rooms    map[string]map[*Client]struct{}
	presence Presence
	upgrader websocket.Upgrader
	validate *validator.Validate
	now      func() time.Time
}

var _ hub.Sink = (*Gateway)(nil)

// New creates a gateway. An empty origin list or "*" accepts any origin.
func New(presence Presence, allowedOrigins []string) *Gateway {
	g := &Gateway{
		rooms:    make(map[string]map[*Client]struct{}),
		presence: presence,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		now:      time.Now,
	}
	g.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" || len(allowedOrigins) == 0 || lo.Contains(allowedOrigins, "*") {
				return true
			}
			return lo.Contains(allowedOrigins, origin)
		},
	}
	return g
}

func (g *Gateway) Name() string {
	return "rooms"
}

// Publish delivers the record to every connection in the match room.
func (g *Gateway) Publish(_ context.Context, matchID string, rec hub.Record) error {
	msg, err := json.Marshal(Envelope{Event: hub.EventName(rec.Kind), Data: rec.Data})
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", rec.Kind, err)
	}

	g.mu.RLock()
	defer g.mu.RUnlock()

	dropped := 0
	for c := range g.rooms[RoomName(matchID)] {
		if !c.enqueue(msg) {
			dropped++
		}
	}
	if dropped > 0 {
		log.Warn("Dropped record for slow connections",
			log.MatchID(matchID),
			zap.String("record_id", rec.ID),
			zap.Int("dropped", dropped),
		)
	}
	return nil
}

// Subscribers is the number of local connections in the match room.
func (g *Gateway) Subscribers(matchID string) int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.rooms[RoomName(matchID)])
}

func (g *Gateway) joinRoom(c *Client, room string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	members, ok := g.rooms[room]
	if !ok {
		members = make(map[*Client]struct{})
		g.rooms[room] = members
	}
	members[c] = struct{}{}
	c.rooms[room] = struct{}{}
}

func (g *Gateway) leaveRoom(c *Client, room string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.leaveRoomLocked(c, room)
}

// leaveRoomLocked must be called with g.mu held.
func (g *Gateway) leaveRoomLocked(c *Client, room string) {
	delete(c.rooms, room)
	members, ok := g.rooms[room]
	if !ok {
		return
	}
	delete(members, c)
	if len(members) == 0 {
		delete(g.rooms, room)
	}
}

func opContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), opTimeout)
}

func (g *Gateway) connect(c *Client) {
	metrics.Connections.Inc()
	log.Info("Client connected", zap.String("conn_id", c.id))

	ctx, cancel := opContext()
	defer cancel()
	if err := g.presence.Track(ctx, c.id); err != nil {
		log.Error("Failed to track connection", zap.String("conn_id", c.id), zap.Error(err))
	}
}

// disconnect leaves every room before the presence entry is removed.
func (g *Gateway) disconnect(c *Client) {
	c.once.Do(func() {
		close(c.done)

		g.mu.Lock()
		for room := range c.rooms {
			g.leaveRoomLocked(c, room)
		}
		g.mu.Unlock()

		ctx, cancel := opContext()
		defer cancel()
		if err := g.presence.Disconnect(ctx, c.id); err != nil {
			log.Error("Failed to clean up connection", zap.String("conn_id", c.id), zap.Error(err))
		}

		metrics.Connections.Dec()
		log.Info("Client disconnected", zap.String("conn_id", c.id))
	})
}

func (g *Gateway) handle(c *Client, raw []byte) {
	var msg inbound
	if err := json.Unmarshal(raw, &msg); err != nil {
		c.emit(EventError, ErrorReply{Code: CodeValidation, Message: "malformed message"})
		return
	}

	switch msg.Event {
	case EventSubscribe:
		g.subscribe(c, msg.Data)
	case EventUnsubscribe:
		g.unsubscribe(c, msg.Data)
	case EventPing:
		g.ping(c, msg.Data)
	default:
		log.Debug("Ignoring unknown event",
			zap.String("conn_id", c.id),
			zap.String("event", msg.Event),
		)
	}
}

func (g *Gateway) parseMatchRequest(data json.RawMessage) (string, bool) {
	var req matchRequest
	if len(data) == 0 || json.Unmarshal(data, &req) != nil {
		return "", false
	}
	if err := g.validate.Struct(req); err != nil {
		return "", false
	}
	return req.MatchID, true
}

func (g *Gateway) subscribe(c *Client, data json.RawMessage) {
	matchID, ok := g.parseMatchRequest(data)
	if !ok {
		c.emit(EventError, ErrorReply{Code: CodeValidation, Message: matchIDValidation})
		return
	}

	ctx, cancel := opContext()
	defer cancel()

	if err := g.presence.Join(ctx, c.id, matchID); err != nil {
		log.Error("Failed to subscribe connection",
			zap.String("conn_id", c.id),
			log.MatchID(matchID),
			zap.Error(err),
		)
		c.emit(EventError, ErrorReply{Code: CodeSubscribe, Message: "Failed to subscribe to match"})
		return
	}
	room := RoomName(matchID)
	g.joinRoom(c, room)

	if err := g.presence.Touch(ctx, c.id); err != nil {
		log.Warn("Failed to refresh connection", zap.String("conn_id", c.id), zap.Error(err))
	}

	c.emit(EventSubscribed, RoomReply{MatchID: matchID, Room: room})
	log.Debug("Client subscribed", zap.String("conn_id", c.id), log.MatchID(matchID))
}

func (g *Gateway) unsubscribe(c *Client, data json.RawMessage) {
	matchID, ok := g.parseMatchRequest(data)
	if !ok {
		c.emit(EventError, ErrorReply{Code: CodeValidation, Message: matchIDValidation})
		return
	}

	room := RoomName(matchID)
	g.leaveRoom(c, room)

	ctx, cancel := opContext()
	defer cancel()

	if err := g.presence.Leave(ctx, c.id, matchID); err != nil {
		log.Error("Failed to unsubscribe connection",
			zap.String("conn_id", c.id),
			log.MatchID(matchID),
			zap.Error(err),
		)
		c.emit(EventError, ErrorReply{Code: CodeUnsubscribe, Message: "Failed to unsubscribe from match"})
		return
	}

	c.emit(EventUnsubscribed, RoomReply{MatchID: matchID, Room: room})
	log.Debug("Client unsubscribed", zap.String("conn_id", c.id), log.MatchID(matchID))
}

// ping answers even when the heartbeat could not be recorded.
func (g *Gateway) ping(c *Client, data json.RawMessage) {
	ctx, cancel := opContext()
	defer cancel()

	if err := g.presence.Touch(ctx, c.id); err != nil {
		log.Warn("Failed to update ping", zap.String("conn_id", c.id), zap.Error(err))
	}

	var echo any
	if len(data) > 0 && string(data) != "null" {
		echo = data
	}
	c.emit(EventPong, Pong{TS: g.now().UnixMilli(), Echo: echo})
}

// ServeHTTP upgrades the request and serves the connection until it closes.
func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn("WebSocket upgrade failed", zap.Error(err))
		return
	}

	c := newClient(conn)
	g.connect(c)

	go g.writePump(c)
	g.readPump(c)
}

func (g *Gateway) readPump(c *Client) {
	defer func() {
		g.disconnect(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Warn("WebSocket read failed", zap.String("conn_id", c.id), zap.Error(err))
			}
			return
		}
		g.handle(c, message)
	}
}

func (g *Gateway) writePump(c *Client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case <-c.done:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		case msg := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
