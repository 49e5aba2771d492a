package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"mango/internal/ai/component"
	"mango/internal/config"
	"mango/internal/handler"
	bookHandler "mango/internal/handler/book"
	"mango/internal/library"
	"mango/internal/pkg/booktools"
	"mango/internal/pkg/booktools/providers"
	"mango/internal/pkg/comfyui"
	"mango/internal/pkg/ffmpeg"
	"mango/internal/pkg/pdf"
	"mango/internal/pkg/storage"
	"mango/internal/pkg/storagefactory"
	"mango/internal/server/middleware"
	booksvc "mango/internal/service/book"
	videosvc "mango/internal/service/video"
)

// Server HTTP 服务器
type Server struct {
	cfg    *config.Config
	engine *gin.Engine
}

// New 创建服务器实例
func New(cfg *config.Config) (*Server, error) {
	switch cfg.Server.Mode {
	case "debug":
		gin.SetMode(gin.DebugMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()

	// 书库（文件系统持久化）
	store, err := library.NewStore(cfg.Library.Dir)
	if err != nil {
		return nil, err
	}

	extractor := pdf.NewExtractor(cfg.PDF.PdftotextPath)

	// LLM Provider (可选)
	var llmProvider booktools.LLMProvider
	if cfg.AI.APIKey != "" {
		chatModel, err := component.NewChatModel(context.Background(), &cfg.AI)
		if err != nil {
			log.Warn().Err(err).Msg("failed to initialize chat model, LLM features disabled")
		} else {
			llmProvider = providers.NewEinoProvider(chatModel)
			log.Info().Str("provider", cfg.AI.Provider).Str("model", cfg.AI.Model).Msg("initialized chat model")
		}
	} else {
		log.Warn().Msg("AI API key not configured, chapter segmentation falls back to title patterns and video generation is unavailable")
	}

	// 渲染工作流模板 (可选)
	var template comfyui.Workflow
	if cfg.ComfyUI.WorkflowJSON != "" {
		template, err = comfyui.LoadWorkflow(cfg.ComfyUI.WorkflowJSON)
		if err != nil {
			log.Warn().Err(err).Str("path", cfg.ComfyUI.WorkflowJSON).Msg("failed to load workflow template, video generation is unavailable")
		}
	}

	renderer := comfyui.NewClient(comfyui.Config{
		Host:            cfg.ComfyUI.Host,
		PromptNodeTitle: cfg.ComfyUI.PromptNodeTitle,
		ConnectTimeout:  cfg.ComfyUI.ConnectTimeout,
		RenderTimeout:   cfg.ComfyUI.RenderTimeout,
		DownloadTimeout: cfg.ComfyUI.DownloadTimeout,
		ClipDir:         cfg.ComfyUI.ClipDir,
	})

	ffmpegClient := ffmpeg.NewClient()
	stitcher := ffmpeg.NewStitcher(ffmpegClient, cfg.Video.OutputDir, cfg.Video.Width, cfg.Video.Height, cfg.Video.FPS)

	// 对象存储 (可选)
	var stor storage.Storage
	if cfg.Storage.Type != "" {
		stor, err = storagefactory.NewStorage(context.Background(), &cfg.Storage)
		if err != nil {
			log.Warn().Err(err).Msg("failed to initialize storage, videos are kept local only")
			stor = nil
		} else {
			log.Info().Str("type", stor.GetStorageType()).Msg("initialized storage")
		}
	}

	pipeline := videosvc.NewPipeline(
		booktools.NewScenePlanner(llmProvider),
		renderer,
		stitcher,
		template,
		cfg.Video.RenderConcurrency,
	)

	bookService := booksvc.NewService(store, extractor,
		booktools.NewBookSegmenter(llmProvider),
		booktools.NewPageAnalyzer(llmProvider),
	)
	videoService := booksvc.NewVideoService(store, pipeline, ffmpegClient, stor)

	srv := &Server{
		cfg:    cfg,
		engine: engine,
	}
	srv.setupRoutes(bookService, videoService)

	return srv, nil
}

// setupRoutes 设置路由
func (s *Server) setupRoutes(bookService bookHandler.BookService, videoService bookHandler.VideoService) {
	// 全局中间件
	s.engine.Use(middleware.Recovery())
	s.engine.Use(middleware.RequestID())
	s.engine.Use(middleware.Logger())
	s.engine.Use(middleware.CORS())

	// 健康检查
	healthHandler := handler.NewHealthHandler()
	s.engine.GET("/health", healthHandler.Health)
	s.engine.GET("/ready", healthHandler.Ready)

	// Swagger 文档
	s.engine.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	bookHdl := bookHandler.NewHandler(bookService, videoService)

	// API v1
	v1 := s.engine.Group("/api/v1")
	{
		v1.POST("/books", bookHdl.UploadBook)
		v1.GET("/books", bookHdl.ListBooks)
		v1.GET("/books/:book_id", bookHdl.GetBook)

		v1.POST("/books/:book_id/analyze", bookHdl.AnalyzePages)
		v1.GET("/books/:book_id/pages", bookHdl.GetPageKnowledge)

		v1.POST("/books/:book_id/chapters", bookHdl.SegmentChapters)
		v1.GET("/books/:book_id/chapters", bookHdl.GetChapters)
		v1.GET("/books/:book_id/chapters/:chapter_id/text", bookHdl.GetChapterText)

		v1.POST("/books/:book_id/chapters/:chapter_id/video", bookHdl.GenerateChapterVideo)
		v1.POST("/books/:book_id/videos", bookHdl.GenerateBookVideos)
	}
}

// Run 启动服务器
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      s.engine,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("shutting down server...")
		return srv.Shutdown(context.Background())
	case err := <-errCh:
		return err
	}
}

// Engine 获取 Gin 引擎 (用于测试)
func (s *Server) Engine() *gin.Engine {
	return s.engine
}
