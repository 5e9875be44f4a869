// Package status serves the daemon's HTTP status API.
package status

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"libdb.so/metarglow/internal/animation"
)

const shutdownTimeout = 5 * time.Second

// Engine is the part of the animation engine the status API reads.
type Engine interface {
	Snapshot() []animation.ChannelStatus
	Err() error
}

// Response wraps every JSON reply.
type Response struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
	Data   any    `json:"data,omitempty"`
}

// Channel is one LED as reported by GET /api/channels.
type Channel struct {
	animation.ChannelStatus
	Station string `json:"station,omitempty"`
}

// Server exposes engine state over HTTP.
type Server struct {
	engine    Engine
	stations  []string
	startTime time.Time
	logger    *slog.Logger
}

// NewServer creates a server for engine. stations[i] names the station shown
// on channel i; channels past the end have no station.
func NewServer(engine Engine, stations []string, logger *slog.Logger) *Server {
	return &Server{
		engine:    engine,
		stations:  append([]string(nil), stations...),
		startTime: time.Now(),
		logger:    logger,
	}
}

// Handler returns the gin engine serving every route.
func (s *Server) Handler() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(cors.New(cors.Config{
		AllowOrigins:  []string{"*"},
		AllowMethods:  []string{"GET", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type"},
		ExposeHeaders: []string{"Content-Length"},
		MaxAge:        12 * time.Hour,
	}))
	s.SetupRoutes(r)
	return r
}

// SetupRoutes registers the status routes on r.
func (s *Server) SetupRoutes(r *gin.Engine) {
	r.GET("/healthz", s.handleHealth)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api")
	{
		api.GET("/channels", s.handleGetChannels)
		api.GET("/channels/:index", s.handleGetChannel)
	}
}

// Run serves on listen until ctx is canceled.
func (s *Server) Run(ctx context.Context, listen string) error {
	l, err := net.Listen("tcp", listen)
	if err != nil {
		return errors.Wrapf(err, "failed to listen on %s", listen)
	}
	return s.Serve(ctx, l)
}

// Serve serves on l until ctx is canceled, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, l net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(l) }()

	s.logger.Info(
		"status server listening",
		"addr", l.Addr().String())

	select {
	case err := <-errCh:
		return errors.Wrap(err, "status server failed")
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, "failed to shut down status server")
	}
	return nil
}

func (s *Server) channels() []Channel {
	snapshot := s.engine.Snapshot()
	channels := make([]Channel, len(snapshot))
	for i, status := range snapshot {
		channels[i] = Channel{ChannelStatus: status}
		if i < len(s.stations) {
			channels[i].Station = s.stations[i]
		}
	}
	return channels
}

func (s *Server) handleHealth(c *gin.Context) {
	if err := s.engine.Err(); err != nil {
		c.JSON(http.StatusServiceUnavailable, Response{
			Status: "error",
			Error:  err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, Response{
		Status: "success",
		Data: gin.H{
			"uptime": time.Since(s.startTime).Round(time.Second).String(),
		},
	})
}

func (s *Server) handleGetChannels(c *gin.Context) {
	c.JSON(http.StatusOK, Response{
		Status: "success",
		Data:   s.channels(),
	})
}

func (s *Server) handleGetChannel(c *gin.Context) {
	var uri struct {
		Index int `uri:"index" binding:"min=0"`
	}
	if err := c.ShouldBindUri(&uri); err != nil {
		c.JSON(http.StatusBadRequest, Response{
			Status: "error",
			Error:  "invalid channel index",
		})
		return
	}

	channels := s.channels()
	if uri.Index >= len(channels) {
		c.JSON(http.StatusNotFound, Response{
			Status: "error",
			Error:  "no such channel",
		})
		return
	}

	c.JSON(http.StatusOK, Response{
		Status: "success",
		Data:   channels[uri.Index],
	})
}
