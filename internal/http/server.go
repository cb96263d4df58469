package http

import (
	"fmt"

	"github.com/gin-gonic/gin"

	"minutegen/internal/config"
	"minutegen/internal/engine"
	"minutegen/internal/pipeline"
	"minutegen/internal/storage"
)

type Server struct {
	engine      *gin.Engine
	cfg         config.Config
	coordinator *pipeline.Coordinator
}

func NewServer(cfg config.Config) (*Server, error) {
	gin.SetMode(gin.ReleaseMode)

	fm, err := storage.NewFileManager(cfg.DataDir, cfg.MaxUploadBytes)
	if err != nil {
		return nil, fmt.Errorf("init file manager: %w", err)
	}

	store, err := storage.NewStore(cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}

	ai := engine.NewOpenAIEngine(cfg.LLMBaseURL, cfg.LLMAPIKey, cfg.ASRModel, config.ResolveModel(cfg.Model), cfg.EmbedModel)
	decoder := engine.NewFFmpegDecoder()

	coordinator := pipeline.New(cfg, store, fm, decoder, ai, ai, ai)
	coordinator.Resume()

	e := gin.New()
	e.Use(gin.Recovery())
	e.Use(RequestLogger())
	e.Use(MaxBodySize(cfg.MaxUploadBytes))
	e.Use(CORS())

	api := NewAPI(cfg, fm, coordinator)
	api.probe = engine.ProbeDuration
	registerRoutes(e, api)

	return &Server{engine: e, cfg: cfg, coordinator: coordinator}, nil
}

func (s *Server) Run() error {
	addr := fmt.Sprintf(":%s", s.cfg.Port)
	return s.engine.Run(addr)
}

// Coordinator exposes the pipeline driver, e.g. for starting the
// retention sweep alongside the HTTP listener.
func (s *Server) Coordinator() *pipeline.Coordinator {
	return s.coordinator
}
