package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/leauyn/openavatarchat/adapters/asr"
	"github.com/leauyn/openavatarchat/adapters/cache"
	"github.com/leauyn/openavatarchat/adapters/llm"
	"github.com/leauyn/openavatarchat/adapters/retrieval"
	"github.com/leauyn/openavatarchat/adapters/userdata"
	"github.com/leauyn/openavatarchat/domain/repositories"
	"github.com/leauyn/openavatarchat/internal/api"
	"github.com/leauyn/openavatarchat/internal/session"
	"github.com/leauyn/openavatarchat/internal/websocket"
	"github.com/leauyn/openavatarchat/usecase"
)

func main() {
	// Initialize logger
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	if err := godotenv.Load(); err != nil {
		logger.Info("No .env file found, using process environment")
	}

	apiKey := os.Getenv("DASHSCOPE_API_KEY")
	if apiKey == "" {
		logger.Fatal("DASHSCOPE_API_KEY is required")
	}

	// Shared cache, degrading to in-process memory when redis is absent
	var primary repositories.Cache
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		redisCache, err := cache.NewRedis(cache.Config{
			Addr:     addr,
			Password: os.Getenv("REDIS_PASSWORD"),
		}, logger)
		if err != nil {
			logger.Warn("Redis unavailable, falling back to memory cache", zap.Error(err))
		} else {
			primary = redisCache
		}
	}
	sharedCache := cache.NewFallback(primary, logger)

	// User data service backed by the school platform APIs
	userData := userdata.NewClient(userdata.ConfigFromEnv(), sharedCache, logger)

	// Streaming speech recognition
	var recognizer repositories.SpeechRecognizer
	switch os.Getenv("ASR_PROVIDER") {
	case "google":
		recognizer = asr.NewGoogleRecognizer(logger)
	default:
		r, err := asr.NewParaformer(asr.ParaformerConfig{APIKey: apiKey}, logger)
		if err != nil {
			logger.Fatal("Failed to create speech recognizer", zap.Error(err))
		}
		recognizer = r
	}

	// Streaming chat completion
	var completion repositories.ChatCompletion
	switch os.Getenv("LLM_PROVIDER") {
	case "gemini":
		g, err := llm.NewGemini(context.Background(), os.Getenv("GEMINI_API_KEY"), os.Getenv("LLM_MODEL"), logger)
		if err != nil {
			logger.Fatal("Failed to create completion client", zap.Error(err))
		}
		completion = g
	default:
		c, err := llm.NewOpenAICompatible(llm.OpenAIConfig{
			APIKey:  apiKey,
			BaseURL: os.Getenv("LLM_BASE_URL"),
		}, logger)
		if err != nil {
			logger.Fatal("Failed to create completion client", zap.Error(err))
		}
		completion = c
	}

	// Knowledge-base retrieval, optional
	var retriever repositories.KnowledgeRetriever
	if url := os.Getenv("RETRIEVAL_APP_URL"); url != "" {
		r, err := retrieval.NewDashScope(retrieval.Config{APIKey: apiKey, URL: url}, logger)
		if err != nil {
			logger.Fatal("Failed to create retrieval client", zap.Error(err))
		}
		retriever = r
	}

	store := session.NewStore(12 * time.Hour)

	asrConfig := usecase.DefaultASRConfig()
	if model := os.Getenv("ASR_MODEL"); model != "" {
		asrConfig.Model = model
	}

	chatConfig := usecase.DefaultChatConfig()
	if model := os.Getenv("LLM_MODEL"); model != "" {
		chatConfig.Model = model
	}
	chatConfig.EnableRetrieval = retriever != nil && envBool("ENABLE_RETRIEVAL", true)
	chatConfig.EnableTools = envBool("ENABLE_TOOLS", true)
	chatConfig.EnableVideoInput = envBool("ENABLE_VIDEO_INPUT", false)
	chatConfig.DefaultSubjectID = os.Getenv("DEFAULT_USER_ID")
	chatConfig.Templates = usecase.PromptTemplates{
		Opening: os.Getenv("PROMPT_OPENING"),
		Ongoing: os.Getenv("PROMPT_ONGOING"),
	}

	pipeline := usecase.NewPipeline(logger,
		usecase.NewASRHandler(asrConfig, recognizer, logger),
		usecase.NewChatHandler(chatConfig, completion, retriever, userData, store, logger),
	)
	if err := pipeline.Configure(); err != nil {
		logger.Fatal("Pipeline configuration failed", zap.Error(err))
	}

	// Create Echo instance
	e := echo.New()

	// Middleware
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	hub := websocket.NewHub(pipeline, logger)
	go hub.Run()

	api.InitRoutes(e, hub, store, logger)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	// Graceful shutdown
	go func() {
		if err := e.Start(":" + port); err != nil && err != http.ErrServerClosed {
			logger.Fatal("shutting down the server", zap.Error(err))
		}
	}()

	logger.Info("Server started", zap.String("port", port))

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logger.Info("Server is shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(ctx); err != nil {
		logger.Fatal("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited")
}

func envBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}
