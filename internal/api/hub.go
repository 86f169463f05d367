package api

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"lrcsync/internal/session"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second
	sendBuffer = 16
)

// MessageType WebSocket 消息类型
type MessageType string

const (
	MsgTypeSnapshot MessageType = "snapshot" // 完整会话状态
	MsgTypeReset    MessageType = "reset"    // 会话被重置
)

// WSMessage WebSocket 消息结构
type WSMessage struct {
	Type      MessageType       `json:"type"`
	Active    int               `json:"active"`
	Position  float64           `json:"position"`
	Snapshot  *session.Snapshot `json:"snapshot,omitempty"`
	Timestamp int64             `json:"timestamp"`
}

// client WebSocket 客户端
type client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
}

// Hub 管理所有 WebSocket 连接并广播会话变化
type Hub struct {
	mu      sync.RWMutex
	clients map[*client]struct{}
}

func NewHub() *Hub {
	return &Hub{clients: make(map[*client]struct{})}
}

// SessionChanged 在事件循环中调用，推送完整快照
func (h *Hub) SessionChanged(s *session.Session, active int, activeChanged bool) {
	if h.Count() == 0 {
		return
	}
	snap := s.Snapshot()
	h.BroadcastMessage(&WSMessage{
		Type:     MsgTypeSnapshot,
		Active:   active,
		Position: snap.Position,
		Snapshot: &snap,
	})
}

// BroadcastMessage 编码后发送给所有客户端
func (h *Hub) BroadcastMessage(msg *WSMessage) {
	msg.Timestamp = time.Now().UnixMilli()
	data, err := json.Marshal(msg)
	if err != nil {
		logger().Error().Err(err).Msg("Failed to encode websocket message")
		return
	}
	h.Broadcast(data)
}

// Broadcast 发送原始数据；发送缓冲区满的客户端会被断开
func (h *Hub) Broadcast(data []byte) {
	h.mu.RLock()
	var slow []*client
	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range slow {
		logger().Warn().Msg("WebSocket client too slow, dropping")
		h.unregister(c)
	}
}

// sendTo 只发给一个客户端；客户端已断开或缓冲区满时丢弃
func (h *Hub) sendTo(c *client, msg *WSMessage) {
	msg.Timestamp = time.Now().UnixMilli()
	data, err := json.Marshal(msg)
	if err != nil {
		logger().Error().Err(err).Msg("Failed to encode websocket message")
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	if _, ok := h.clients[c]; !ok {
		return
	}
	select {
	case c.send <- data:
	default:
	}
}

// Count 当前连接数
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) register(c *client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	logger().Info().Int("clients", h.Count()).Msg("WebSocket client connected")
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
}

// Close 断开所有客户端
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
	}
}

// readPump 只处理控制帧，客户端通过 HTTP 接口发命令
func (c *client) readPump(ctx context.Context) {
	defer func() {
		c.hub.unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if ctx.Err() != nil {
			return
		}
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger().Warn().Err(err).Msg("WebSocket read error")
			}
			return
		}
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Hub 关闭了通道
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
