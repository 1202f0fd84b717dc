package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/posfleet/printpool/internal/api/handlers"
	"github.com/posfleet/printpool/internal/api/middleware"
	"github.com/posfleet/printpool/internal/core"
)

// NewRouter wires the HTTP boundary: printer pool CRUD, job submission and
// auth endpoints.
func NewRouter(pool *core.Pool, dispatcher *core.Dispatcher, auth *middleware.AuthMiddleware, log *zap.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestLogger(log))

	printerHandler := handlers.NewPrinterHandler(pool)
	jobHandler := handlers.NewJobHandler(dispatcher)

	r.GET("/api/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	authGroup := r.Group("/api/auth")
	{
		authGroup.POST("/setup", auth.SetupHandler)
		authGroup.POST("/login", auth.LoginHandler)
		authGroup.POST("/logout", auth.LogoutHandler)
		authGroup.GET("/status", auth.StatusHandler)
		authGroup.POST("/password", auth.RequireAuth(), auth.ChangePasswordHandler)
	}

	apiGroup := r.Group("/api", auth.RequireAuth())
	{
		apiGroup.GET("/printers", printerHandler.ListPrinters)
		apiGroup.POST("/printers", printerHandler.CreatePrinter)
		apiGroup.GET("/printers/:id", printerHandler.GetPrinter)
		apiGroup.PUT("/printers/:id", printerHandler.UpdatePrinter)
		apiGroup.DELETE("/printers/:id", printerHandler.DeletePrinter)
		apiGroup.POST("/printers/:id/enabled", printerHandler.SetPrinterEnabled)

		apiGroup.POST("/jobs", jobHandler.SubmitJob)
	}

	return r
}

func requestLogger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Debug("http request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", time.Since(start)))
	}
}
