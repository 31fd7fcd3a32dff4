package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/cleberrangel/freelance-pricing-api/internal/logger"
	"github.com/cleberrangel/freelance-pricing-api/internal/metrics"
	"github.com/cleberrangel/freelance-pricing-api/internal/model"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// Tipos de mensagem trocados com o cliente
const (
	TypeConnection       = "connection"
	TypePing             = "ping"
	TypePong             = "pong"
	TypeAnalyze          = "analyze"
	TypeCancel           = "cancel"
	TypeAnalysisStarted  = "analysis_started"
	TypeAnalysisChunk    = "analysis_chunk"
	TypeAnalysisResult   = "analysis_result"
	TypeAnalysisError    = "analysis_error"
	TypeAnalysisCanceled = "analysis_canceled"
	TypeServerShutdown   = "server_shutdown"
	TypeError            = "error"
)

// Analyzer executa uma análise, repassando cada fragmento a onChunk
type Analyzer interface {
	Analyze(ctx context.Context, analysisID string, estimate model.PriceEstimate, onChunk func(model.StreamChunk)) (*model.AnalysisResult, error)
}

// Hub mantém as conexões ativas
type Hub struct {
	clients map[string]*Client

	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	stopOnce   sync.Once

	analyzer Analyzer

	mutex  sync.RWMutex
	logger *zerolog.Logger
}

// Message é o envelope de toda mensagem enviada ao cliente
type Message struct {
	Type       string      `json:"type"`
	AnalysisID string      `json:"analysis_id,omitempty"`
	Data       interface{} `json:"data,omitempty"`
	Timestamp  time.Time   `json:"timestamp"`
}

// IncomingMessage é a mensagem recebida do cliente
type IncomingMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// ErrorData é o conteúdo de analysis_error e error
type ErrorData struct {
	Error   string   `json:"error"`
	Code    string   `json:"code,omitempty"`
	Details []string `json:"details,omitempty"`
}

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait
	pingPeriod = (pongWait * 9) / 10

	// estimativas com muitas tarefas passam de alguns KB
	maxMessageSize = 64 * 1024

	sendBufferSize = 256
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// NewHub cria o hub. analyzer atende as mensagens "analyze".
func NewHub(analyzer Analyzer) *Hub {
	return &Hub{
		clients:    make(map[string]*Client),
		broadcast:  make(chan []byte),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		analyzer:   analyzer,
		logger:     logger.Global(),
	}
}

// Run processa registros e broadcasts até Stop
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)

		case message := <-h.broadcast:
			h.broadcastMessage(message)

		case <-h.done:
			h.closeAll()
			return
		}
	}
}

// Stop encerra o loop e fecha todas as conexões
func (h *Hub) Stop() {
	h.stopOnce.Do(func() { close(h.done) })
}

// Broadcast envia a mensagem a todos os clientes conectados
func (h *Hub) Broadcast(message Message) {
	if message.Timestamp.IsZero() {
		message.Timestamp = time.Now()
	}
	data, err := json.Marshal(message)
	if err != nil {
		h.logger.Error().Err(err).Str("type", message.Type).Msg("Failed to marshal broadcast message")
		return
	}

	select {
	case h.broadcast <- data:
	case <-h.done:
	}
}

func (h *Hub) registerClient(client *Client) {
	h.mutex.Lock()
	h.clients[client.ID] = client
	count := len(h.clients)
	h.mutex.Unlock()

	metrics.Get().IncrementWSConnection()

	h.logger.Info().
		Str("client_id", client.ID).
		Int("connections", count).
		Msg("WebSocket client registered")

	client.SendMessage(Message{
		Type:      TypeConnection,
		Data:      map[string]string{"status": "connected", "client_id": client.ID},
		Timestamp: time.Now(),
	})
}

func (h *Hub) unregisterClient(client *Client) {
	h.mutex.Lock()
	_, ok := h.clients[client.ID]
	if ok {
		delete(h.clients, client.ID)
	}
	remaining := len(h.clients)
	h.mutex.Unlock()

	if !ok {
		return
	}

	client.close()
	metrics.Get().DecrementWSConnection()

	h.logger.Info().
		Str("client_id", client.ID).
		Int("remaining_connections", remaining).
		Msg("WebSocket client unregistered")
}

func (h *Hub) broadcastMessage(message []byte) {
	h.mutex.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for _, client := range h.clients {
		clients = append(clients, client)
	}
	h.mutex.RUnlock()

	for _, client := range clients {
		client.send(message)
	}
}

func (h *Hub) closeAll() {
	h.mutex.Lock()
	clients := h.clients
	h.clients = make(map[string]*Client)
	h.mutex.Unlock()

	for _, client := range clients {
		client.close()
		metrics.Get().DecrementWSConnection()
	}
}

// GetConnectionCount retorna o número de conexões ativas
func (h *Hub) GetConnectionCount() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.clients)
}

// RegisterClient registra um cliente fora do loop Run
func (h *Hub) RegisterClient(client *Client) {
	h.registerClient(client)
}

// UnregisterClient remove um cliente fora do loop Run
func (h *Hub) UnregisterClient(client *Client) {
	h.unregisterClient(client)
}
