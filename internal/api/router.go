package api

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hotosm/tm-extractor/internal/api/handler"
	"github.com/hotosm/tm-extractor/internal/api/middleware"
	"github.com/hotosm/tm-extractor/internal/config"
	"github.com/hotosm/tm-extractor/internal/logger"
	"github.com/hotosm/tm-extractor/internal/service"
	"github.com/hotosm/tm-extractor/internal/storage"
)

// SetupRouter configures the Gin router with all routes
func SetupRouter(
	submit *service.SubmitService,
	tracker *service.TrackerService,
	rawdata *service.RawDataService,
	results storage.ResultStore,
	cfg *config.Config,
	log *logger.Logger,
) *gin.Engine {
	switch cfg.Server.Mode {
	case "release":
		gin.SetMode(gin.ReleaseMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.DebugMode)
	}

	r := gin.New()

	r.Use(gin.Recovery())
	r.Use(middleware.Logger())
	r.Use(middleware.CORS(middleware.CORSConfig{
		AllowedOrigins:  cfg.Server.CORS.AllowedOrigins,
		AllowAllOrigins: cfg.Server.CORS.AllowAllOrigins,
	}))

	healthHandler := handler.NewHealthHandler()
	extractHandler := handler.NewExtractHandler(submit, tracker, rawdata, results, log)

	r.GET("/health", healthHandler.Health)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := r.Group("/api/v1")
	{
		v1.POST("/extract", extractHandler.Extract)
		v1.GET("/tasks/:id", extractHandler.TaskStatus)
	}

	return r
}
