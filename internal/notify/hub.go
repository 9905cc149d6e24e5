package notify

import (
	"sync"
	"time"

	"kanshi/internal/logging"
	"kanshi/internal/metrics"
)

// EventNewImage は新しい画像が保存されたことを表すイベント名
const EventNewImage = "new_image"

// Message はWebSocketで送信するメッセージ
type Message struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// Event は新しい画像の通知内容
type Event struct {
	URL       string `json:"url"`       // 画像のロケーター
	Timestamp int64  `json:"timestamp"` // エポックミリ秒
}

// Hub は接続中の購読者を管理し、メッセージを配信する
type Hub struct {
	clients map[*Client]struct{}
	closed  bool // Close後は新しい購読者を受け付けない
	mu      sync.RWMutex
	metrics *metrics.Metrics
}

// NewHub は新しいHubを作成する
func NewHub(m *metrics.Metrics) *Hub {
	return &Hub{
		clients: make(map[*Client]struct{}),
		metrics: m,
	}
}

// Subscribe は購読者を登録する
// Close済みのHubには登録せずfalseを返す
func (h *Hub) Subscribe(c *Client) bool {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return false
	}
	h.clients[c] = struct{}{}
	count := len(h.clients)
	h.mu.Unlock()

	h.metrics.SubscriberConnected()
	logging.Info().Str("client_id", c.ID()).Int("total_clients", count).Msg("クライアントが接続しました")
	return true
}

// Unsubscribe は購読者を解除する
// 既に解除済みのクライアントに対しては何もしない
func (h *Hub) Unsubscribe(c *Client) {
	h.remove(c, false)
}

// remove は購読者を削除して送信チャンネルを閉じる
func (h *Hub) remove(c *Client, dropped bool) bool {
	h.mu.Lock()
	if _, ok := h.clients[c]; !ok {
		h.mu.Unlock()
		return false
	}
	delete(h.clients, c)
	close(c.send)
	count := len(h.clients)
	h.mu.Unlock()

	h.metrics.SubscriberDisconnected(dropped)
	logging.Info().
		Str("client_id", c.ID()).
		Bool("dropped", dropped).
		Int("total_clients", count).
		Msg("クライアントが切断しました")
	return true
}

// Broadcast は接続中の全購読者にメッセージを送信キューに積む
// ブロックせず、送信バッファが溢れた購読者は切断する。
// キューに積めた購読者の数を返す
func (h *Hub) Broadcast(msg Message) int {
	var full []*Client
	delivered := 0

	// 送信チャンネルのcloseは書き込みロック中にのみ行われる
	h.mu.RLock()
	for c := range h.clients {
		select {
		case c.send <- msg:
			delivered++
		default:
			full = append(full, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range full {
		if h.remove(c, true) {
			logging.Warn().Str("client_id", c.ID()).Msg("送信バッファが一杯のためクライアントを切断しました")
		}
	}

	h.metrics.ObserveBroadcast()
	return delivered
}

// BroadcastNewImage は新しい画像のイベントを配信する
func (h *Hub) BroadcastNewImage(locator string, at time.Time) int {
	event := Event{URL: locator, Timestamp: at.UnixMilli()}
	n := h.Broadcast(Message{Type: EventNewImage, Data: event})

	logging.Debug().Str("url", locator).Int("clients", n).Msg("new_image を配信しました")
	return n
}

// ClientCount は接続中の購読者数を返す
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close は全ての購読者を切断し、以降の登録を拒否する
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	clients := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	for _, c := range clients {
		h.Unsubscribe(c)
	}
	logging.Info().Int("clients_closed", len(clients)).Msg("全てのクライアントを切断しました")
}
