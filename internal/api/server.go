// Package api serves generation over HTTP. A single engine backs the
// server; requests are serialized because the engine is not reentrant.
package api

import (
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	json "github.com/goccy/go-json"
	"github.com/labstack/echo/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/samcharles93/loom/internal/engine"
	"github.com/samcharles93/loom/internal/logger"
	"github.com/samcharles93/loom/internal/logits"
	"github.com/samcharles93/loom/internal/session"
	"github.com/samcharles93/loom/internal/version"
)

// Sampling defaults applied when the request leaves a field unset.
const (
	defaultMaxTokens     = 128
	defaultTemperature   = 0.8
	defaultTopK          = 40
	defaultTopP          = 0.95
	defaultRepeatPenalty = 1.1
	defaultRepeatLastN   = 64
)

type Server struct {
	eng   engine.Engine
	store *GenerationStore
	log   logger.Logger
	clock func() time.Time

	// Serializes engine access across requests.
	mu sync.Mutex
}

type ServerConfig struct {
	Engine engine.Engine
	Store  *GenerationStore
	Logger logger.Logger
}

func NewServer(cfg ServerConfig) *Server {
	if cfg.Store == nil {
		cfg.Store = NewGenerationStore()
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.Default()
	}
	return &Server{
		eng:   cfg.Engine,
		store: cfg.Store,
		log:   cfg.Logger,
		clock: time.Now,
	}
}

func (s *Server) Register(e *echo.Echo) {
	e.POST("/v1/generate", s.handleGenerate)
	e.GET("/v1/generations/:id", s.handleGetGeneration)
	e.DELETE("/v1/generations/:id", s.handleDeleteGeneration)
	e.GET("/healthz", s.handleHealth)
	e.GET("/metrics", func(c *echo.Context) error {
		promhttp.Handler().ServeHTTP(c.Response(), c.Request())
		return nil
	})
}

func (s *Server) handleGenerate(c *echo.Context) error {
	req, err := decodeJSON[GenerateRequest](c.Request().Body)
	if err != nil {
		return writeBadRequest(c, err.Error())
	}
	if strings.TrimSpace(req.Prompt) == "" {
		return writeBadRequest(c, "prompt is required")
	}
	if req.MaxTokens < 0 {
		return writeBadRequest(c, "max_tokens must be positive")
	}
	if req.MaxTokens == 0 {
		req.MaxTokens = defaultMaxTokens
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	prompt, err := s.eng.Tokenize(req.Prompt, true)
	if err != nil {
		return writeBadRequest(c, "tokenize prompt: "+err.Error())
	}

	sess, err := session.New(session.Config{
		Engine:  s.eng,
		Sampler: logits.NewSampler(samplerConfig(req)),
		Logger:  s.log,
	})
	if err != nil {
		return writeServerError(c, err.Error())
	}

	id := newGenerationID()
	maxLen := len(prompt) + req.MaxTokens
	ctx := c.Request().Context()
	started := s.clock()

	if req.Stream {
		sse, err := NewSSEWriter(c)
		if err != nil {
			return writeServerError(c, err.Error())
		}
		var text strings.Builder
		res, runErr := sess.Run(ctx, prompt, maxLen, func(fragment string) {
			text.WriteString(fragment)
			_ = sse.Delta(fragment)
		})
		if runErr != nil {
			s.log.Error("generation failed", "id", id, "error", runErr)
			return sse.Failed(runErr)
		}
		resp := s.finishGeneration(id, started, text.String(), len(prompt), res)
		return sse.Done(resp)
	}

	var text strings.Builder
	res, runErr := sess.Run(ctx, prompt, maxLen, func(fragment string) {
		text.WriteString(fragment)
	})
	if runErr != nil {
		s.log.Error("generation failed", "id", id, "error", runErr)
		return writeServerError(c, runErr.Error())
	}
	resp := s.finishGeneration(id, started, text.String(), len(prompt), res)
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) finishGeneration(id string, started time.Time, text string, promptTokens int, res session.Result) GenerateResponse {
	resp := GenerateResponse{
		ID:              id,
		Object:          "generation",
		CreatedAt:       started.Unix(),
		Text:            text,
		StopReason:      res.Reason.String(),
		PromptTokens:    promptTokens,
		TokensGenerated: res.TokensGenerated,
		DurationMs:      res.Duration.Milliseconds(),
		TPS:             res.TPS,
	}
	s.store.Put(resp)
	s.log.Info("generation finished",
		"id", id,
		"stop_reason", resp.StopReason,
		"tokens", resp.TokensGenerated,
		"duration", res.Duration,
	)
	return resp
}

func (s *Server) handleGetGeneration(c *echo.Context) error {
	resp, ok := s.store.Get(c.Param("id"))
	if !ok {
		return writeNotFound(c, "generation not found")
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) handleDeleteGeneration(c *echo.Context) error {
	id := c.Param("id")
	if !s.store.Delete(id) {
		return writeNotFound(c, "generation not found")
	}
	return c.JSON(http.StatusOK, map[string]any{
		"id":      id,
		"object":  "generation",
		"deleted": true,
	})
}

func (s *Server) handleHealth(c *echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"status":  "ok",
		"version": version.String(),
	})
}

func samplerConfig(req GenerateRequest) logits.SamplerConfig {
	cfg := logits.SamplerConfig{
		Seed:          req.Seed,
		Temperature:   defaultTemperature,
		TopK:          defaultTopK,
		TopP:          defaultTopP,
		RepeatPenalty: defaultRepeatPenalty,
		RepeatLastN:   defaultRepeatLastN,
	}
	if cfg.Seed == 0 {
		cfg.Seed = time.Now().UnixNano()
	}
	if req.Temperature != nil {
		cfg.Temperature = float32(*req.Temperature)
	}
	if req.TopK != nil {
		cfg.TopK = *req.TopK
	}
	if req.TopP != nil {
		cfg.TopP = float32(*req.TopP)
	}
	if req.RepeatPenalty != nil {
		cfg.RepeatPenalty = float32(*req.RepeatPenalty)
	}
	return cfg
}

func decodeJSON[T any](r io.Reader) (T, error) {
	var out T
	if err := json.NewDecoder(r).Decode(&out); err != nil {
		return out, err
	}
	return out, nil
}
