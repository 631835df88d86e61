package api

import (
	"geousers/pkg/logger"
	"geousers/pkg/middleware"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// NewRouter creates and configures the Gin router.
func NewRouter(h *UserHandler, corsOrigins []string, log *logger.Logger) *gin.Engine {
	r := gin.New()

	// Middleware
	r.Use(gin.Recovery())
	r.Use(middleware.CorrelationID())
	r.Use(middleware.RequestLogger(log))
	r.Use(middleware.CORS(corsOrigins))

	r.GET("/health", h.HealthCheck)

	// Swagger
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// User routes
	r.POST("/users", h.CreateUser)
	r.GET("/users/:id", h.GetUser)
	r.PUT("/users/:id", h.UpdateUser)
	r.DELETE("/users/:id", h.DeleteUser)

	return r
}
