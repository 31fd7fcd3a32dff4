package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/cleberrangel/freelance-pricing-api/internal/logger"
	"github.com/cleberrangel/freelance-pricing-api/internal/metrics"
	"github.com/cleberrangel/freelance-pricing-api/internal/middleware"
	"github.com/cleberrangel/freelance-pricing-api/internal/model"
	"github.com/cleberrangel/freelance-pricing-api/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Client é o intermediário entre a conexão websocket e o hub. Cada cliente
// tem no máximo uma análise em andamento.
type Client struct {
	conn *websocket.Conn

	// Buffered channel of outbound messages
	Send chan []byte

	ID  string
	Hub *Hub

	session *service.AnalysisSession
	ctx     context.Context
	cancel  context.CancelFunc

	mu     sync.Mutex
	closed bool

	ConnectedAt time.Time
	LastPing    time.Time
}

// NewClient cria um cliente. conn pode ser nil em testes.
func NewClient(ctx context.Context, hub *Hub, conn *websocket.Conn) *Client {
	id := uuid.New().String()
	ctx, cancel := context.WithCancel(ctx)
	return &Client{
		conn:        conn,
		Send:        make(chan []byte, sendBufferSize),
		ID:          id,
		Hub:         hub,
		session:     service.NewAnalysisSession(),
		ctx:         ctx,
		cancel:      cancel,
		ConnectedAt: time.Now(),
		LastPing:    time.Now(),
	}
}

// ServeWS faz o upgrade da requisição e inicia as goroutines da conexão
func (h *Hub) ServeWS(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.FromGin(c).Error().
			Err(err).
			Msg("Failed to upgrade WebSocket connection")
		return
	}

	// o contexto da requisição é cancelado quando o handler retorna
	client := NewClient(context.WithoutCancel(c.Request.Context()), h, conn)

	select {
	case h.register <- client:
	case <-h.done:
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}

// readPump lê as mensagens do cliente. Há no máximo um leitor por conexão.
func (c *Client) readPump() {
	defer func() {
		select {
		case c.Hub.unregister <- c:
		case <-c.Hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.mu.Lock()
		c.LastPing = time.Now()
		c.mu.Unlock()
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Get(c.ctx).Error().
					Err(err).
					Str("client_id", c.ID).
					Msg("WebSocket connection closed unexpectedly")
			}
			break
		}

		metrics.Get().IncrementWSMessageIn()
		c.handleMessage(message)
	}
}

// writePump envia as mensagens do canal Send. Há no máximo um escritor por conexão.
// Cada mensagem vai em um frame próprio para o cliente poder fazer JSON.parse direto.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
			metrics.Get().IncrementWSMessageOut()

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleMessage trata uma mensagem recebida do cliente
func (c *Client) handleMessage(data []byte) {
	var msg IncomingMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		logger.Get(c.ctx).Warn().
			Err(err).
			Str("client_id", c.ID).
			Msg("Failed to unmarshal client message")
		c.SendMessage(Message{
			Type: TypeError,
			Data: ErrorData{Error: "mensagem inválida", Code: "INVALID_MESSAGE"},
		})
		return
	}

	switch msg.Type {
	case TypePing:
		c.SendMessage(Message{Type: TypePong})

	case TypeAnalyze:
		c.startAnalysis(msg.Data)

	case TypeCancel:
		current := c.session.Current()
		// a métrica de cancelamento fica com o serviço de análise
		if c.session.Cancel() {
			c.SendMessage(Message{Type: TypeAnalysisCanceled, AnalysisID: current})
		}

	default:
		logger.Get(c.ctx).Debug().
			Str("client_id", c.ID).
			Str("message_type", msg.Type).
			Msg("Unknown message type received from client")
		c.SendMessage(Message{
			Type: TypeError,
			Data: ErrorData{Error: "tipo de mensagem desconhecido: " + msg.Type, Code: "UNKNOWN_TYPE"},
		})
	}
}

// startAnalysis inicia uma análise, cancelando a anterior desta conexão
func (c *Client) startAnalysis(data json.RawMessage) {
	var estimate model.PriceEstimate
	if err := json.Unmarshal(data, &estimate); err != nil {
		c.SendMessage(Message{
			Type: TypeAnalysisError,
			Data: ErrorData{Error: "dados inválidos", Code: "INVALID_REQUEST", Details: []string{err.Error()}},
		})
		return
	}

	middleware.SanitizeEstimate(&estimate)
	if err := estimate.Validate(); err != nil {
		c.SendMessage(Message{Type: TypeAnalysisError, Data: errorData(err)})
		return
	}

	previous := c.session.Current()
	ctx, analysisID := c.session.Begin(c.ctx)
	if previous != "" {
		c.SendMessage(Message{Type: TypeAnalysisCanceled, AnalysisID: previous})
	}

	c.SendMessage(Message{Type: TypeAnalysisStarted, AnalysisID: analysisID})

	go c.runAnalysis(ctx, analysisID, estimate)
}

func (c *Client) runAnalysis(ctx context.Context, analysisID string, estimate model.PriceEstimate) {
	defer c.session.End(analysisID)

	result, err := c.Hub.analyzer.Analyze(ctx, analysisID, estimate, func(chunk model.StreamChunk) {
		if c.session.IsCurrent(analysisID) {
			c.SendMessage(Message{Type: TypeAnalysisChunk, AnalysisID: analysisID, Data: chunk})
		}
	})

	// substituída ou cancelada: o cliente já foi avisado
	if !c.session.IsCurrent(analysisID) || errors.Is(err, model.ErrCanceled) {
		return
	}

	if err != nil {
		c.SendMessage(Message{Type: TypeAnalysisError, AnalysisID: analysisID, Data: errorData(err)})
		return
	}

	c.SendMessage(Message{Type: TypeAnalysisResult, AnalysisID: analysisID, Data: result})
}

// errorData converte o erro no código exibido ao cliente
func errorData(err error) ErrorData {
	var verr *model.ValidationError
	switch {
	case errors.As(err, &verr):
		return ErrorData{Error: "dados inválidos", Code: "VALIDATION_ERROR", Details: verr.Fields}
	case errors.Is(err, model.ErrMissingAPIKey):
		return ErrorData{Error: err.Error(), Code: "MISSING_API_KEY"}
	case errors.Is(err, model.ErrTimeout):
		return ErrorData{Error: err.Error(), Code: "TIMEOUT"}
	case errors.Is(err, model.ErrRateLimited):
		return ErrorData{Error: err.Error(), Code: "RATE_LIMITED"}
	case errors.Is(err, model.ErrInvalidAnalysis):
		return ErrorData{Error: model.ErrInvalidAnalysis.Error(), Code: "INVALID_ANALYSIS", Details: []string{err.Error()}}
	case errors.Is(err, model.ErrEmptyResponse):
		return ErrorData{Error: err.Error(), Code: "EMPTY_RESPONSE"}
	default:
		return ErrorData{Error: model.ErrProviderFailure.Error(), Code: "PROVIDER_FAILURE"}
	}
}

// SendMessage serializa e enfileira a mensagem para este cliente
func (c *Client) SendMessage(message Message) {
	if message.Timestamp.IsZero() {
		message.Timestamp = time.Now()
	}
	data, err := json.Marshal(message)
	if err != nil {
		logger.Get(c.ctx).Error().
			Err(err).
			Str("client_id", c.ID).
			Msg("Failed to marshal message for client")
		return
	}
	c.send(data)
}

// send enfileira sem bloquear; fila cheia encerra a conexão
func (c *Client) send(data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}

	select {
	case c.Send <- data:
	default:
		logger.Get(c.ctx).Warn().
			Str("client_id", c.ID).
			Msg("Client send channel is full, closing connection")
		c.closeLocked()
	}
}

// close cancela a análise em andamento e fecha o canal de saída
func (c *Client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closeLocked()
}

func (c *Client) closeLocked() {
	if c.closed {
		return
	}
	c.closed = true
	c.session.Cancel()
	c.cancel()
	close(c.Send)
}

// GetConnectionInfo retorna os dados da conexão
func (c *Client) GetConnectionInfo() map[string]interface{} {
	c.mu.Lock()
	defer c.mu.Unlock()

	return map[string]interface{}{
		"client_id":        c.ID,
		"connected_at":     c.ConnectedAt,
		"last_ping":        c.LastPing,
		"current_analysis": c.session.Current(),
	}
}
