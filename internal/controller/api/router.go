package api

import (
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humaecho"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/Ericatici/video-service/internal/controller/api/handlers"
	"github.com/Ericatici/video-service/internal/controller/api/middleware"
	"github.com/Ericatici/video-service/internal/core/service"
	"github.com/Ericatici/video-service/internal/core/user"
)

type RouterConfig struct {
	Users     *user.Store
	JWTSecret string
	JWTExpiry time.Duration
	Submit    *service.SubmissionService
	Status    *service.StatusReader
	Download  *service.DownloadService
}

func SetupRouter(e *echo.Echo, cfg RouterConfig) {
	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{"GET", "POST"},
	}))
	e.Use(echomw.RateLimiter(echomw.NewRateLimiterMemoryStore(20)))

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(200, map[string]string{"status": "ok"})
	})

	v1 := e.Group("/api/v1")
	config := huma.DefaultConfig("Video Conversion API", "1.0.0")
	config.Servers = []*huma.Server{{URL: "/api/v1"}}
	config.Info.Description = "Async video conversion service"
	config.Components.SecuritySchemes = map[string]*huma.SecurityScheme{
		"BearerAuth": {
			Type:         "http",
			Scheme:       "bearer",
			BearerFormat: "JWT",
			Description:  "JWT Bearer token",
		},
	}

	api := humaecho.NewWithGroup(e, v1, config)

	authMw := middleware.Auth(cfg.JWTSecret)

	authHandler := handlers.NewAuthHandler(cfg.Users, cfg.JWTSecret, cfg.JWTExpiry)
	huma.Register(api, huma.Operation{
		OperationID:   "register",
		Method:        http.MethodPost,
		Path:          "/auth/register",
		Summary:       "Register a new user",
		Tags:          []string{"Auth"},
		DefaultStatus: http.StatusCreated,
	}, authHandler.Register)

	huma.Register(api, huma.Operation{
		OperationID: "login",
		Method:      http.MethodPost,
		Path:        "/auth/login",
		Summary:     "Login and get JWT token",
		Tags:        []string{"Auth"},
	}, authHandler.Login)

	videosHandler := handlers.NewVideosHandler(cfg.Submit, cfg.Status, cfg.Download)
	huma.Register(api, huma.Operation{
		OperationID: "videos-status",
		Method:      http.MethodGet,
		Path:        "/videos/status",
		Summary:     "List the caller's conversion jobs",
		Tags:        []string{"Videos"},
		Security:    []map[string][]string{{"BearerAuth": {}}},
		Middlewares: huma.Middlewares{authMw},
	}, videosHandler.Status)

	// Multipart upload and zip download are raw echo routes; huma's body
	// handling only gets in the way of streaming either direction.
	echoAuth := middleware.EchoAuth(cfg.JWTSecret)
	v1.POST("/videos/upload", videosHandler.Upload, echoAuth)
	v1.GET("/videos/download/:id", videosHandler.Download, echoAuth)
}
