package v1

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/levishimwe/Hadathub/internal/api/handler/v1/response"
	"github.com/levishimwe/Hadathub/internal/domain"
)

const (
	feedWriteWait  = 10 * time.Second
	feedPongWait   = 60 * time.Second
	feedPingPeriod = (feedPongWait * 9) / 10
	feedSendBuffer = 64
)

type EventReader interface {
	GetEvent(ctx context.Context, eventID string) (domain.Event, error)
}

type feedClient struct {
	conn    *websocket.Conn
	eventID string
	send    chan []byte
}

// CheckInFeed fans committed check-ins out to the dashboards watching the
// event. Slow subscribers are dropped rather than allowed to block the hub.
type CheckInFeed struct {
	events   EventReader
	upgrader websocket.Upgrader

	mu          sync.RWMutex
	subscribers map[string]map[*feedClient]struct{}

	broadcast  chan domain.CheckIn
	register   chan *feedClient
	unregister chan *feedClient
	done       chan struct{}
}

func NewCheckInFeed(events EventReader, allowedOrigins []string) *CheckInFeed {
	origins := make(map[string]struct{}, len(allowedOrigins))
	for _, o := range allowedOrigins {
		origins[o] = struct{}{}
	}

	return &CheckInFeed{
		events: events,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				if origin == "" {
					return true
				}
				_, ok := origins[origin]
				return ok
			},
		},
		subscribers: make(map[string]map[*feedClient]struct{}),
		broadcast:   make(chan domain.CheckIn, 256),
		register:    make(chan *feedClient),
		unregister:  make(chan *feedClient),
		done:        make(chan struct{}),
	}
}

// Publish never blocks the scanner that committed the check-in.
func (f *CheckInFeed) Publish(checkIn domain.CheckIn) {
	select {
	case f.broadcast <- checkIn:
	default:
		zap.L().Warn("check-in feed saturated, dropping update", zap.String("ticket_id", checkIn.TicketID))
	}
}

// Run owns the subscriber set until ctx is done.
func (f *CheckInFeed) Run(ctx context.Context) {
	defer close(f.done)
	for {
		select {
		case <-ctx.Done():
			f.mu.Lock()
			for _, clients := range f.subscribers {
				for c := range clients {
					close(c.send)
				}
			}
			f.subscribers = make(map[string]map[*feedClient]struct{})
			f.mu.Unlock()
			return
		case c := <-f.register:
			f.mu.Lock()
			if f.subscribers[c.eventID] == nil {
				f.subscribers[c.eventID] = make(map[*feedClient]struct{})
			}
			f.subscribers[c.eventID][c] = struct{}{}
			f.mu.Unlock()
		case c := <-f.unregister:
			f.mu.Lock()
			f.drop(c)
			f.mu.Unlock()
		case checkIn := <-f.broadcast:
			message, err := json.Marshal(checkIn)
			if err != nil {
				zap.L().Error("json.Marshal check-in", zap.Error(err))
				continue
			}
			f.mu.Lock()
			for c := range f.subscribers[checkIn.EventID] {
				select {
				case c.send <- message:
				default:
					f.drop(c)
				}
			}
			f.mu.Unlock()
		}
	}
}

// Subscribers returns the number of open connections for an event.
func (f *CheckInFeed) Subscribers(eventID string) int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.subscribers[eventID])
}

// drop expects f.mu to be held.
func (f *CheckInFeed) drop(c *feedClient) {
	clients, ok := f.subscribers[c.eventID]
	if !ok {
		return
	}
	if _, ok := clients[c]; !ok {
		return
	}
	delete(clients, c)
	close(c.send)
	if len(clients) == 0 {
		delete(f.subscribers, c.eventID)
	}
}

// HandleLiveCheckIns godoc
// @Summary      Live check-in stream of an event
// @Description  Upgrades to a WebSocket that receives every check-in of the event as JSON. Staff, and the organizer of the event, may subscribe.
// @Tags         checkins
// @Produce      json
// @Param        eventID path string true "Event ID"
// @Success      101  {string}  string "Switching Protocols"
// @Failure      401  {object}  response.Err
// @Failure      403  {object}  response.Err
// @Failure      404  {object}  response.Err
// @Router       /events/{eventID}/checkins/live [get]
// @Security BearerAuth
func (f *CheckInFeed) HandleLiveCheckIns(ctx *gin.Context) {
	actor, respErr := actorFrom(ctx)
	if respErr != nil {
		response.RenderErr(ctx, respErr)
		return
	}
	if err := actor.Require(domain.RoleStaff, domain.RoleOrganizer); err != nil {
		response.RenderErr(ctx, response.ErrPermissionDenied(err))
		return
	}

	event, err := f.events.GetEvent(ctx.Request.Context(), ctx.Param("eventID"))
	if err != nil {
		response.RenderErr(ctx, response.FromDomain(err))
		return
	}
	if actor.Role == domain.RoleOrganizer && event.OrganizerID != actor.UserID {
		err := fmt.Errorf("event %s: %w", event.ID, domain.ErrForbidden)
		response.RenderErr(ctx, response.ErrPermissionDenied(err))
		return
	}

	conn, err := f.upgrader.Upgrade(ctx.Writer, ctx.Request, nil)
	if err != nil {
		zap.L().Debug("websocket upgrade failed", zap.Error(err))
		return
	}

	c := &feedClient{
		conn:    conn,
		eventID: event.ID,
		send:    make(chan []byte, feedSendBuffer),
	}
	select {
	case f.register <- c:
	case <-f.done:
		conn.Close()
		return
	}

	go c.writePump()
	go c.readPump(f)
}

func (c *feedClient) writePump() {
	ticker := time.NewTicker(feedPingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(feedWriteWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(feedWriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump only drains control frames; the feed is server to client.
func (c *feedClient) readPump(f *CheckInFeed) {
	defer func() {
		select {
		case f.unregister <- c:
		case <-f.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(512)
	_ = c.conn.SetReadDeadline(time.Now().Add(feedPongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(feedPongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				zap.L().Debug("check-in feed closed", zap.String("event_id", c.eventID), zap.Error(err))
			}
			return
		}
	}
}
