package handlers

import (
	"sousvide_simulator/internal/config"
	"sousvide_simulator/internal/logger"
	"sousvide_simulator/internal/service"

	"github.com/gin-gonic/gin"

	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// Handler wires the HTTP/WebSocket layer to services and logging. The
// simulator exposes three listeners: the device protocol, the identity mock,
// and the test control plane.
type Handler struct {
	services *service.Service
	cfg      *config.Config
	hub      *Hub
	log      *logger.Logger
}

// NewHandler constructs the handler and its session hub. The hub is also
// registered as the scenario service's session dropper so offline mode can
// sever live connections.
func NewHandler(services *service.Service, cfg *config.Config, log *logger.Logger) *Handler {
	h := &Handler{
		services: services,
		cfg:      cfg,
		hub:      NewHub(log),
		log:      log,
	}
	if sc, ok := services.Scenario.(*service.ScenarioService); ok {
		sc.SetSessionDropper(h.hub)
	}
	return h
}

// InitDeviceRoutes builds the router for the device protocol listener.
func (h *Handler) InitDeviceRoutes() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/ws", h.wsConnect)
	router.GET("/health", h.deviceHealth)

	return router
}

// InitIdentityRoutes builds the router for the identity-mock listener.
func (h *Handler) InitIdentityRoutes() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	router.POST("/v1/accounts:signInWithPassword", h.signIn)
	router.POST("/v1/token", h.refreshToken)
	router.GET("/health", h.identityHealth)

	return router
}

// InitControlRoutes builds the router for the control-plane listener.
func (h *Handler) InitControlRoutes() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	router.POST("/reset", h.reset)
	router.POST("/set-state", h.setState)
	router.POST("/set-offline", h.setOffline)
	router.POST("/set-time-scale", h.setTimeScale)
	router.POST("/trigger-error", h.triggerError)
	router.POST("/clear-error", h.clearError)
	router.GET("/state", h.getState)
	router.GET("/messages", h.getMessages)
	router.GET("/errors", h.getErrors)
	router.GET("/health", h.controlHealth)

	return router
}
