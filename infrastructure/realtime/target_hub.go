package realtime

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"crosspost/domain/model"
)

// TargetStatusEvent is the SSE payload pushed whenever a target changes
// state, so dashboards see transitions without polling.
type TargetStatusEvent struct {
	Type            string  `json:"type"`
	TargetID        int64   `json:"target_id"`
	VideoID         string  `json:"video_id"`
	Platform        string  `json:"platform"`
	Status          string  `json:"status"`
	PlatformVideoID *string `json:"platform_video_id,omitempty"`
	PlatformURL     *string `json:"platform_url,omitempty"`
	Error           *string `json:"error,omitempty"`
}

// Hub maintains per-user subscribers listening for target status events.
type Hub struct {
	mu    sync.RWMutex
	users map[string]map[chan TargetStatusEvent]struct{}
}

func NewTargetHub() *Hub {
	return &Hub{users: make(map[string]map[chan TargetStatusEvent]struct{})}
}

// Serve registers an SSE stream for the authenticated user (user_id set by middleware).
func (h *Hub) Serve(c *gin.Context) {
	userID := c.GetString("user_id")
	if userID == "" {
		c.Status(http.StatusUnauthorized)
		return
	}
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no") // disable nginx buffering

	ch := make(chan TargetStatusEvent, 8)
	h.addSubscriber(userID, ch)
	defer h.removeSubscriber(userID, ch)

	// Initial comment to keep connection open
	c.Writer.Write([]byte(":ok\n\n"))
	c.Writer.Flush()

	for {
		select {
		case evt := <-ch:
			data, _ := json.Marshal(evt)
			_, _ = c.Writer.Write([]byte("event: target_status\n"))
			_, _ = c.Writer.Write([]byte("data: "))
			_, _ = c.Writer.Write(data)
			_, _ = c.Writer.Write([]byte("\n\n"))
			c.Writer.Flush()
		case <-c.Request.Context().Done():
			return
		}
	}
}

func (h *Hub) addSubscriber(userID string, ch chan TargetStatusEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.users[userID] == nil {
		h.users[userID] = make(map[chan TargetStatusEvent]struct{})
	}
	h.users[userID][ch] = struct{}{}
}

func (h *Hub) removeSubscriber(userID string, ch chan TargetStatusEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if subs := h.users[userID]; subs != nil {
		delete(subs, ch)
		close(ch)
		if len(subs) == 0 {
			delete(h.users, userID)
		}
	}
}

// BroadcastTargetStatus fans the target's current state out to every stream
// owned by its user. Slow subscribers are skipped, never blocked on.
func (h *Hub) BroadcastTargetStatus(t *model.Target) {
	if t == nil {
		return
	}
	evt := TargetStatusEvent{
		Type:            "target_status",
		TargetID:        t.ID,
		VideoID:         t.VideoID,
		Platform:        t.Platform,
		Status:          string(t.Status),
		PlatformVideoID: t.PlatformVideoID,
		PlatformURL:     t.PlatformURL,
		Error:           t.ErrorMessage,
	}
	h.mu.RLock()
	subs := h.users[t.UserID]
	for ch := range subs {
		select { // non-blocking
		case ch <- evt:
		default:
		}
	}
	h.mu.RUnlock()
}
