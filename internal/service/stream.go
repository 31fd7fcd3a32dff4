package service

import (
	"context"
	"strings"
	"sync"

	"github.com/cleberrangel/freelance-pricing-api/internal/model"
	"github.com/google/uuid"
)

// StreamAccumulator concatena os fragmentos de uma análise na ordem de chegada.
// Fragmentos com outro analysis_id, ou recebidos depois de Complete/Discard,
// são ignorados.
type StreamAccumulator struct {
	mu          sync.Mutex
	analysisID  string
	interpreter *Interpreter
	fallback    float64
	text        strings.Builder
	chunks      int
	closed      bool
}

// NewStreamAccumulator cria o acumulador de uma análise
func NewStreamAccumulator(analysisID string, interpreter *Interpreter, fallback float64) *StreamAccumulator {
	return &StreamAccumulator{
		analysisID:  analysisID,
		interpreter: interpreter,
		fallback:    fallback,
	}
}

// Append adiciona um fragmento e devolve a prévia do texto acumulado.
// A prévia é parcial: marcadores ainda não recebidos deixam seções vazias.
func (a *StreamAccumulator) Append(analysisID, delta string) (model.StreamChunk, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed || analysisID != a.analysisID {
		return model.StreamChunk{}, false
	}

	a.text.WriteString(delta)
	a.chunks++

	text := a.text.String()
	preview := a.interpreter.Parse(text, a.fallback)
	preview.RawResponse = ""

	return model.StreamChunk{
		AnalysisID: a.analysisID,
		Delta:      delta,
		Text:       text,
		Preview:    &preview,
	}, true
}

// Complete encerra o stream e produz o resultado definitivo
func (a *StreamAccumulator) Complete(analysisID string) (*model.AiAnalysis, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed || analysisID != a.analysisID {
		return nil, model.ErrCanceled
	}
	a.closed = true

	return a.interpreter.Finalize(a.text.String(), a.fallback)
}

// Discard descarta o texto acumulado; fragmentos posteriores são ignorados
func (a *StreamAccumulator) Discard() {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.closed = true
	a.text.Reset()
}

// Text retorna o texto acumulado até agora
func (a *StreamAccumulator) Text() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.text.String()
}

// Chunks retorna quantos fragmentos foram aceitos
func (a *StreamAccumulator) Chunks() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.chunks
}

// AnalysisSession mantém no máximo uma análise em andamento. Iniciar uma nova
// cancela a anterior, evitando duas respostas disputando o resultado.
type AnalysisSession struct {
	mu        sync.Mutex
	currentID string
	cancel    context.CancelFunc
}

// NewAnalysisSession cria uma sessão vazia
func NewAnalysisSession() *AnalysisSession {
	return &AnalysisSession{}
}

// Begin cancela a análise anterior e inicia uma nova com um id próprio
func (s *AnalysisSession) Begin(parent context.Context) (context.Context, string) {
	ctx, cancel := context.WithCancel(parent)
	id := uuid.New().String()

	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	s.currentID = id
	s.cancel = cancel
	s.mu.Unlock()

	return ctx, id
}

// End finaliza a análise id se ela ainda for a atual
func (s *AnalysisSession) End(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.currentID != id {
		return
	}
	if s.cancel != nil {
		s.cancel()
	}
	s.currentID = ""
	s.cancel = nil
}

// Cancel aborta a análise atual. Retorna false se não havia nenhuma.
func (s *AnalysisSession) Cancel() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel == nil {
		return false
	}
	s.cancel()
	s.currentID = ""
	s.cancel = nil
	return true
}

// IsCurrent informa se id é a análise em andamento
func (s *AnalysisSession) IsCurrent(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return id != "" && s.currentID == id
}

// Current retorna o id da análise em andamento
func (s *AnalysisSession) Current() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentID
}
