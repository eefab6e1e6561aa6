package server

import (
	"fmt"
	"net/http"
	"strings"
	"sync"

	"backtest-engine/src/interfaces"
	"backtest-engine/src/logger"
	"backtest-engine/src/models"

	"github.com/gin-gonic/gin"
)

// -----------------------------------------------------------------------------
// SessionServer exposes the running session over HTTP and websocket: live
// snapshots for subscribers, and the control API used by strategies and
// operators (pause/resume/stop, symbol provisioning).
// -----------------------------------------------------------------------------

type SessionServer struct {
	Config *models.MConfig
	Logger *logger.Logger
	engine *gin.Engine

	// Wired after construction, before Start.
	Control     interfaces.ISessionControl
	Provisioner interfaces.IProvisioner

	// WebSocket clients
	clients    map[*Client]struct{}
	broadcast  chan *models.MSessionSnapshot // strongly typed and buffered queue
	register   chan *Client
	unregister chan *Client

	// Local cache
	latestState *models.MSessionSnapshot
	stateMutex  sync.RWMutex
}

// -----------------------------------------------------------------------------
// Constructor
// -----------------------------------------------------------------------------

func NewSessionServer(cfg *models.MConfig, logger *logger.Logger) *SessionServer {
	// Set Gin mode
	if cfg.LogLevel != "DEBUG" {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &SessionServer{
		Config:  cfg,
		Logger:  logger,
		engine:  gin.Default(),
		clients: make(map[*Client]struct{}),
		// Buffered channel so a slow hub never stalls the pipeline
		broadcast:  make(chan *models.MSessionSnapshot, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		latestState: &models.MSessionSnapshot{
			Type:    "INITIAL",
			State:   "STOPPED",
			Symbols: make(map[string]models.MSymbolStatus),
		},
	}

	// Add CORS Middleware
	s.engine.Use(func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if strings.HasPrefix(origin, "http://127.0.0.1:") {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
		}
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	// setup web routes
	s.setupRoutes()
	return s
}

// -----------------------------------------------------------------------------
// Route Setup
// -----------------------------------------------------------------------------

func (s *SessionServer) setupRoutes() {
	// REST API endpoints
	s.engine.GET("/api/health", s.getHealth)
	s.engine.GET("/api/metrics", s.getMetrics)
	s.engine.GET("/api/session", s.getSession)

	// Session control
	s.engine.POST("/api/session/pause", s.postPause)
	s.engine.POST("/api/session/resume", s.postResume)
	s.engine.DELETE("/api/session", s.deleteSession)

	// Provisioning
	s.engine.POST("/api/symbols", s.postSymbol)
	s.engine.POST("/api/symbols/:symbol/intervals", s.postInterval)
	s.engine.POST("/api/symbols/:symbol/indicators", s.postIndicator)
	s.engine.DELETE("/api/symbols/:symbol", s.deleteSymbol)

	// WebSocket endpoint
	s.engine.GET("/ws", s.handleWebSocket)
}

// -----------------------------------------------------------------------------
// Server Lifecycle
// -----------------------------------------------------------------------------

func (s *SessionServer) Start() error {
	addr := fmt.Sprintf("%s:%d", s.Config.Host, s.Config.Port)
	s.Logger.Info("Starting server on %s", addr)

	go s.handleWebsockets()

	return s.engine.Run(addr)
}

// -----------------------------------------------------------------------------

func (s *SessionServer) Stop() error {
	// Clean shutdown
	close(s.broadcast)
	close(s.register)
	close(s.unregister)
	return nil
}

// -----------------------------------------------------------------------------
// Read Handlers
// -----------------------------------------------------------------------------

func (s *SessionServer) getHealth(c *gin.Context) {
	s.stateMutex.RLock()
	connections := len(s.clients)
	timestamp := s.latestState.Timestamp
	s.stateMutex.RUnlock()

	c.JSON(http.StatusOK, gin.H{
		"status":        "ok",
		"state":         s.sessionState(),
		"connections":   connections,
		"latest_update": timestamp,
	})
}

// -----------------------------------------------------------------------------

func (s *SessionServer) getMetrics(c *gin.Context) {
	s.stateMutex.RLock()
	defer s.stateMutex.RUnlock()

	c.JSON(http.StatusOK, s.latestState.Metrics)
}

// -----------------------------------------------------------------------------

func (s *SessionServer) getSession(c *gin.Context) {
	if s.Control != nil {
		c.JSON(http.StatusOK, s.Control.Snapshot())
		return
	}

	s.stateMutex.RLock()
	defer s.stateMutex.RUnlock()
	c.JSON(http.StatusOK, s.latestState)
}

// -----------------------------------------------------------------------------
// Control Handlers
// -----------------------------------------------------------------------------

func (s *SessionServer) postPause(c *gin.Context) {
	if s.Control == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "no session attached"})
		return
	}
	if !s.Control.Pause() {
		c.JSON(http.StatusConflict, gin.H{"error": "cannot pause", "state": s.Control.State()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"state": s.Control.State()})
}

// -----------------------------------------------------------------------------

func (s *SessionServer) postResume(c *gin.Context) {
	if s.Control == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "no session attached"})
		return
	}
	if !s.Control.Resume() {
		c.JSON(http.StatusConflict, gin.H{"error": "cannot resume", "state": s.Control.State()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"state": s.Control.State()})
}

// -----------------------------------------------------------------------------

func (s *SessionServer) deleteSession(c *gin.Context) {
	if s.Control == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "no session attached"})
		return
	}
	s.Control.Stop()
	c.JSON(http.StatusOK, gin.H{"state": s.Control.State()})
}

// -----------------------------------------------------------------------------
// Provisioning Handlers
// -----------------------------------------------------------------------------

type symbolRequest struct {
	Symbol     string                    `json:"symbol"`
	Intervals  []string                  `json:"intervals"`
	Indicators []models.MIndicatorConfig `json:"indicators"`
	By         string                    `json:"by"`
}

func sourceTagOrDefault(by string) models.SourceTag {
	tag := models.SourceTag(by)
	if models.ValidSourceTag(tag) {
		return tag
	}
	return models.SourceAdhoc
}

// -----------------------------------------------------------------------------

func (s *SessionServer) postSymbol(c *gin.Context) {
	if s.Provisioner == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "no session attached"})
		return
	}

	var req symbolRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	res := s.Provisioner.AddSymbol(req.Symbol, req.Intervals, req.Indicators, sourceTagOrDefault(req.By))
	c.JSON(resultStatus(res), res)
}

// -----------------------------------------------------------------------------

func (s *SessionServer) postInterval(c *gin.Context) {
	if s.Provisioner == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "no session attached"})
		return
	}

	var req struct {
		Interval string `json:"interval"`
		By       string `json:"by"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	res := s.Provisioner.AddBarInterval(c.Param("symbol"), req.Interval, sourceTagOrDefault(req.By))
	c.JSON(resultStatus(res), res)
}

// -----------------------------------------------------------------------------

func (s *SessionServer) postIndicator(c *gin.Context) {
	if s.Provisioner == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "no session attached"})
		return
	}

	var req struct {
		Indicator models.MIndicatorConfig `json:"indicator"`
		By        string                  `json:"by"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	res := s.Provisioner.AddIndicator(c.Param("symbol"), req.Indicator, sourceTagOrDefault(req.By))
	c.JSON(resultStatus(res), res)
}

// -----------------------------------------------------------------------------

func (s *SessionServer) deleteSymbol(c *gin.Context) {
	if s.Provisioner == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "no session attached"})
		return
	}

	res := s.Provisioner.RemoveSymbol(c.Param("symbol"), sourceTagOrDefault(c.Query("by")))
	c.JSON(resultStatus(res), res)
}

// -----------------------------------------------------------------------------

func resultStatus(res models.MOperationResult) int {
	if res.Success {
		return http.StatusOK
	}
	return http.StatusUnprocessableEntity
}

// -----------------------------------------------------------------------------

func (s *SessionServer) sessionState() string {
	if s.Control != nil {
		return s.Control.State()
	}
	s.stateMutex.RLock()
	defer s.stateMutex.RUnlock()
	return s.latestState.State
}
