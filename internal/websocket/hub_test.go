package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/cleberrangel/freelance-pricing-api/internal/client"
	"github.com/cleberrangel/freelance-pricing-api/internal/metrics"
	"github.com/cleberrangel/freelance-pricing-api/internal/model"
	"github.com/cleberrangel/freelance-pricing-api/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// fakeAnalyzer repassa chunks fixos ou bloqueia até o cancelamento
type fakeAnalyzer struct {
	chunks []string
	err    error
	block  bool
}

func (a *fakeAnalyzer) Analyze(ctx context.Context, analysisID string, estimate model.PriceEstimate, onChunk func(model.StreamChunk)) (*model.AnalysisResult, error) {
	if a.block {
		<-ctx.Done()
		return nil, model.ErrCanceled
	}

	var text strings.Builder
	for _, c := range a.chunks {
		text.WriteString(c)
		onChunk(model.StreamChunk{AnalysisID: analysisID, Delta: c, Text: text.String()})
	}
	if a.err != nil {
		return nil, a.err
	}
	return &model.AnalysisResult{
		AnalysisID: analysisID,
		Totals:     model.Totals{TotalHours: 8, BaseTotal: 800},
		Analysis:   &model.AiAnalysis{SuggestedTotal: 800, Explanation: text.String()},
	}, nil
}

type receivedMessage struct {
	Type       string          `json:"type"`
	AnalysisID string          `json:"analysis_id"`
	Data       json.RawMessage `json:"data"`
}

func newTestClient(hub *Hub) *Client {
	return NewClient(context.Background(), hub, nil)
}

// drainWelcomeMessage drains the welcome message sent during client registration
func drainWelcomeMessage(t *testing.T, client *Client) {
	t.Helper()
	if msg := readMessage(t, client); msg.Type != TypeConnection {
		t.Fatalf("expected %q, got %q", TypeConnection, msg.Type)
	}
}

func readMessage(t *testing.T, client *Client) receivedMessage {
	t.Helper()
	select {
	case data, ok := <-client.Send:
		if !ok {
			t.Fatal("send channel closed")
		}
		var msg receivedMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			t.Fatalf("invalid message %s: %v", data, err)
		}
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for message")
	}
	return receivedMessage{}
}

func expectNoMessage(t *testing.T, client *Client) {
	t.Helper()
	select {
	case data := <-client.Send:
		t.Fatalf("unexpected message: %s", data)
	case <-time.After(50 * time.Millisecond):
	}
}

func validEstimate() model.PriceEstimate {
	adjustment := "10"
	return model.PriceEstimate{
		Tasks: []model.Task{
			{Description: "Tela de login", Hours: "5", Difficulty: 2},
			{Description: "Integração com gateway", Hours: "3", Difficulty: 4},
		},
		Config: model.CalculationConfig{
			HourlyRate:      "100",
			SafetyMargin:    "20",
			ValueAdjustment: &adjustment,
		},
		Context: model.ProjectContext{
			ProjectContext: "Aplicativo de delivery para uma rede de restaurantes locais",
		},
	}
}

func analyzeMessage(t *testing.T, estimate model.PriceEstimate) []byte {
	t.Helper()
	data, err := json.Marshal(estimate)
	if err != nil {
		t.Fatal(err)
	}
	msg, err := json.Marshal(IncomingMessage{Type: TypeAnalyze, Data: data})
	if err != nil {
		t.Fatal(err)
	}
	return msg
}

func TestRegisterClientSendsWelcome(t *testing.T) {
	hub := NewHub(&fakeAnalyzer{})
	client := newTestClient(hub)

	hub.RegisterClient(client)

	msg := readMessage(t, client)
	if msg.Type != TypeConnection {
		t.Fatalf("expected connection message, got %q", msg.Type)
	}
	var data map[string]string
	if err := json.Unmarshal(msg.Data, &data); err != nil {
		t.Fatal(err)
	}
	if data["client_id"] != client.ID {
		t.Errorf("client_id = %q, want %q", data["client_id"], client.ID)
	}
	if hub.GetConnectionCount() != 1 {
		t.Errorf("connections = %d, want 1", hub.GetConnectionCount())
	}
}

func TestAnalyzeSendsStartedChunksAndResult(t *testing.T) {
	hub := NewHub(&fakeAnalyzer{chunks: []string{"VALOR_SUGERIDO: ", "R$ 800,00"}})
	client := newTestClient(hub)
	hub.RegisterClient(client)
	drainWelcomeMessage(t, client)

	client.handleMessage(analyzeMessage(t, validEstimate()))

	started := readMessage(t, client)
	if started.Type != TypeAnalysisStarted || started.AnalysisID == "" {
		t.Fatalf("expected analysis_started with id, got %+v", started)
	}

	for _, want := range []string{"VALOR_SUGERIDO: ", "R$ 800,00"} {
		msg := readMessage(t, client)
		if msg.Type != TypeAnalysisChunk {
			t.Fatalf("expected chunk, got %q", msg.Type)
		}
		if msg.AnalysisID != started.AnalysisID {
			t.Errorf("chunk analysis_id = %q, want %q", msg.AnalysisID, started.AnalysisID)
		}
		var chunk model.StreamChunk
		if err := json.Unmarshal(msg.Data, &chunk); err != nil {
			t.Fatal(err)
		}
		if chunk.Delta != want {
			t.Errorf("delta = %q, want %q", chunk.Delta, want)
		}
	}

	result := readMessage(t, client)
	if result.Type != TypeAnalysisResult {
		t.Fatalf("expected analysis_result, got %q", result.Type)
	}
	var res model.AnalysisResult
	if err := json.Unmarshal(result.Data, &res); err != nil {
		t.Fatal(err)
	}
	if res.Analysis == nil || res.Analysis.SuggestedTotal != 800 {
		t.Errorf("unexpected result: %+v", res)
	}
}

func TestAnalyzeInvalidEstimate(t *testing.T) {
	hub := NewHub(&fakeAnalyzer{})
	client := newTestClient(hub)

	estimate := validEstimate()
	estimate.Tasks = nil
	client.handleMessage(analyzeMessage(t, estimate))

	msg := readMessage(t, client)
	if msg.Type != TypeAnalysisError {
		t.Fatalf("expected analysis_error, got %q", msg.Type)
	}
	var data ErrorData
	if err := json.Unmarshal(msg.Data, &data); err != nil {
		t.Fatal(err)
	}
	if data.Code != "VALIDATION_ERROR" || len(data.Details) == 0 {
		t.Errorf("unexpected error data: %+v", data)
	}
}

func TestAnalyzeProviderError(t *testing.T) {
	hub := NewHub(&fakeAnalyzer{err: model.ErrTimeout})
	client := newTestClient(hub)

	client.handleMessage(analyzeMessage(t, validEstimate()))

	started := readMessage(t, client)
	msg := readMessage(t, client)
	if msg.Type != TypeAnalysisError || msg.AnalysisID != started.AnalysisID {
		t.Fatalf("expected analysis_error for %q, got %+v", started.AnalysisID, msg)
	}
	var data ErrorData
	if err := json.Unmarshal(msg.Data, &data); err != nil {
		t.Fatal(err)
	}
	if data.Code != "TIMEOUT" {
		t.Errorf("code = %q, want TIMEOUT", data.Code)
	}
}

func TestNewAnalyzeCancelsPrevious(t *testing.T) {
	hub := NewHub(&fakeAnalyzer{block: true})
	client := newTestClient(hub)

	client.handleMessage(analyzeMessage(t, validEstimate()))
	first := readMessage(t, client)

	client.handleMessage(analyzeMessage(t, validEstimate()))
	canceled := readMessage(t, client)
	if canceled.Type != TypeAnalysisCanceled || canceled.AnalysisID != first.AnalysisID {
		t.Fatalf("expected analysis_canceled for %q, got %+v", first.AnalysisID, canceled)
	}

	second := readMessage(t, client)
	if second.Type != TypeAnalysisStarted || second.AnalysisID == first.AnalysisID {
		t.Fatalf("expected a new analysis_started, got %+v", second)
	}

	// a primeira análise termina cancelada sem enviar nada
	expectNoMessage(t, client)

	client.handleMessage([]byte(`{"type":"cancel"}`))
	msg := readMessage(t, client)
	if msg.Type != TypeAnalysisCanceled || msg.AnalysisID != second.AnalysisID {
		t.Fatalf("expected analysis_canceled for %q, got %+v", second.AnalysisID, msg)
	}
	expectNoMessage(t, client)
}

// blockingGenerator segura o stream até o contexto ser cancelado
type blockingGenerator struct{}

func (blockingGenerator) Name() string { return "fake/blocking" }

func (blockingGenerator) Stream(ctx context.Context, _ string, _ func(string)) (string, error) {
	<-ctx.Done()
	return "", model.ErrCanceled
}

type generatorSource struct {
	generator client.Generator
}

func (s generatorSource) Generator(context.Context) (client.Generator, error) { return s.generator, nil }

func (s generatorSource) Name() string { return "fake" }

func TestCanceledAnalysesCountedOnce(t *testing.T) {
	svc := service.NewAnalysisService(generatorSource{generator: blockingGenerator{}}, service.NewInterpreter(nil), 600, time.Second)
	hub := NewHub(svc)
	client := newTestClient(hub)

	before := metrics.Get().Snapshot().Analyses
	delta := func() (started, canceled int64) {
		now := metrics.Get().Snapshot().Analyses
		return now.Started - before.Started, now.Canceled - before.Canceled
	}
	waitFor := func(cond func() bool) {
		deadline := time.Now().Add(time.Second)
		for !cond() && time.Now().Before(deadline) {
			time.Sleep(5 * time.Millisecond)
		}
	}

	client.handleMessage(analyzeMessage(t, validEstimate()))
	readMessage(t, client) // analysis_started
	waitFor(func() bool { started, _ := delta(); return started == 1 })

	client.handleMessage(analyzeMessage(t, validEstimate()))
	readMessage(t, client) // analysis_canceled da primeira
	readMessage(t, client) // analysis_started da segunda
	waitFor(func() bool { started, _ := delta(); return started == 2 })

	client.handleMessage([]byte(`{"type":"cancel"}`))
	readMessage(t, client) // analysis_canceled da segunda
	waitFor(func() bool { _, canceled := delta(); return canceled >= 2 })
	// margem para um incremento duplicado aparecer
	time.Sleep(20 * time.Millisecond)

	after := metrics.Get().Snapshot().Analyses
	if got := after.Started - before.Started; got != 2 {
		t.Errorf("started delta = %d, want 2", got)
	}
	if got := after.Canceled - before.Canceled; got != 2 {
		t.Errorf("canceled delta = %d, want 2", got)
	}
	if after.InProgress != before.InProgress {
		t.Errorf("in_progress = %d, want %d", after.InProgress, before.InProgress)
	}
}

func TestCancelWithoutAnalysis(t *testing.T) {
	hub := NewHub(&fakeAnalyzer{})
	client := newTestClient(hub)

	client.handleMessage([]byte(`{"type":"cancel"}`))

	expectNoMessage(t, client)
}

func TestPingPong(t *testing.T) {
	hub := NewHub(&fakeAnalyzer{})
	client := newTestClient(hub)

	client.handleMessage([]byte(`{"type":"ping"}`))

	if msg := readMessage(t, client); msg.Type != TypePong {
		t.Fatalf("expected pong, got %q", msg.Type)
	}
}

func TestInvalidMessages(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		wantCode string
	}{
		{"invalid json", `{"type":`, "INVALID_MESSAGE"},
		{"unknown type", `{"type":"subscribe"}`, "UNKNOWN_TYPE"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hub := NewHub(&fakeAnalyzer{})
			client := newTestClient(hub)

			client.handleMessage([]byte(tt.input))

			msg := readMessage(t, client)
			if msg.Type != TypeError {
				t.Fatalf("expected error, got %q", msg.Type)
			}
			var data ErrorData
			if err := json.Unmarshal(msg.Data, &data); err != nil {
				t.Fatal(err)
			}
			if data.Code != tt.wantCode {
				t.Errorf("code = %q, want %q", data.Code, tt.wantCode)
			}
		})
	}
}

func TestUnregisterClosesClient(t *testing.T) {
	hub := NewHub(&fakeAnalyzer{block: true})
	client := newTestClient(hub)
	hub.RegisterClient(client)
	drainWelcomeMessage(t, client)

	client.handleMessage(analyzeMessage(t, validEstimate()))
	readMessage(t, client)

	hub.UnregisterClient(client)

	if hub.GetConnectionCount() != 0 {
		t.Errorf("connections = %d, want 0", hub.GetConnectionCount())
	}
	if _, ok := <-client.Send; ok {
		t.Error("expected send channel to be closed")
	}
	if client.session.Current() != "" {
		t.Error("expected running analysis to be canceled")
	}

	// envio após o fechamento é ignorado
	client.SendMessage(Message{Type: TypePong})
	hub.UnregisterClient(client)
}

func TestBroadcastAndStop(t *testing.T) {
	hub := NewHub(&fakeAnalyzer{})
	go hub.Run()

	a := newTestClient(hub)
	b := newTestClient(hub)
	hub.register <- a
	hub.register <- b
	drainWelcomeMessage(t, a)
	drainWelcomeMessage(t, b)

	hub.Broadcast(Message{Type: TypeServerShutdown})

	for _, client := range []*Client{a, b} {
		if msg := readMessage(t, client); msg.Type != TypeServerShutdown {
			t.Errorf("expected server_shutdown, got %q", msg.Type)
		}
	}

	hub.Stop()
	hub.Stop()

	deadline := time.After(2 * time.Second)
	for _, client := range []*Client{a, b} {
		select {
		case _, ok := <-client.Send:
			if ok {
				t.Error("expected closed channel")
			}
		case <-deadline:
			t.Fatal("timeout waiting for hub to close clients")
		}
	}
}

func TestErrorDataCodes(t *testing.T) {
	tests := []struct {
		err  error
		code string
	}{
		{&model.ValidationError{Fields: []string{"tasks: obrigatório"}}, "VALIDATION_ERROR"},
		{model.ErrMissingAPIKey, "MISSING_API_KEY"},
		{model.ErrTimeout, "TIMEOUT"},
		{model.ErrRateLimited, "RATE_LIMITED"},
		{errors.Join(model.ErrInvalidAnalysis, errors.New("suggestedTotal negativo")), "INVALID_ANALYSIS"},
		{model.ErrEmptyResponse, "EMPTY_RESPONSE"},
		{errors.New("connection reset"), "PROVIDER_FAILURE"},
	}

	for _, tt := range tests {
		if got := errorData(tt.err).Code; got != tt.code {
			t.Errorf("errorData(%v).Code = %q, want %q", tt.err, got, tt.code)
		}
	}
}

// Para qualquer sequência de fragmentos o cliente recebe started, os chunks
// na ordem de chegada e o resultado, todos com o mesmo analysis_id.
func TestAnalysisMessageOrdering(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50
	properties := gopter.NewProperties(parameters)

	properties.Property("chunks keep order and analysis id", prop.ForAll(
		func(chunks []string) bool {
			hub := NewHub(&fakeAnalyzer{chunks: chunks})
			client := newTestClient(hub)

			client.handleMessage(analyzeMessage(t, validEstimate()))

			started := readMessage(t, client)
			if started.Type != TypeAnalysisStarted {
				return false
			}
			for _, want := range chunks {
				msg := readMessage(t, client)
				var chunk model.StreamChunk
				if msg.Type != TypeAnalysisChunk || json.Unmarshal(msg.Data, &chunk) != nil {
					return false
				}
				if chunk.Delta != want || msg.AnalysisID != started.AnalysisID {
					return false
				}
			}
			result := readMessage(t, client)
			return result.Type == TypeAnalysisResult && result.AnalysisID == started.AnalysisID
		},
		gen.SliceOfN(10, gen.AlphaString()),
	))

	properties.TestingRun(t)
}

func TestServeWSEndToEnd(t *testing.T) {
	gin.SetMode(gin.TestMode)

	hub := NewHub(&fakeAnalyzer{chunks: []string{"EXPLICAÇÃO: ok"}})
	go hub.Run()
	defer hub.Stop()

	router := gin.New()
	router.GET("/ws", hub.ServeWS)
	server := httptest.NewServer(router)
	defer server.Close()

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	read := func() receivedMessage {
		t.Helper()
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		var msg receivedMessage
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("read: %v", err)
		}
		return msg
	}

	if msg := read(); msg.Type != TypeConnection {
		t.Fatalf("expected connection, got %q", msg.Type)
	}

	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"ping"}`)); err != nil {
		t.Fatal(err)
	}
	if msg := read(); msg.Type != TypePong {
		t.Fatalf("expected pong, got %q", msg.Type)
	}

	if err := conn.WriteMessage(websocket.TextMessage, analyzeMessage(t, validEstimate())); err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{TypeAnalysisStarted, TypeAnalysisChunk, TypeAnalysisResult} {
		if msg := read(); msg.Type != want {
			t.Fatalf("expected %q, got %q", want, msg.Type)
		}
	}
}
