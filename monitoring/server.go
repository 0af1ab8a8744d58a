package monitoring

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"auxpass/utils"

	"github.com/labstack/echo/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
)

// OpsServer exposes /metrics and /health on a port separate from the API.
type OpsServer struct {
	echo   *echo.Echo
	server *http.Server
	redis  *redis.Client
}

// NewOpsServer builds the ops router. redisClient may be nil when the state
// store runs in memory.
func NewOpsServer(port string, redisClient *redis.Client) *OpsServer {
	s := &OpsServer{echo: echo.New(), redis: redisClient}

	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	s.echo.GET("/health", s.health)

	s.server = &http.Server{
		Addr:              ":" + port,
		Handler:           s.echo,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

func (s *OpsServer) Handler() http.Handler {
	return s.echo
}

func (s *OpsServer) Start() {
	go func() {
		log.Printf("Ops server listening on %s", s.server.Addr)
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("Ops server stopped: %v", err)
		}
	}()
}

func (s *OpsServer) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *OpsServer) health(c echo.Context) error {
	if s.redis == nil {
		return c.JSON(http.StatusOK, map[string]string{"status": "healthy", "store": "memory"})
	}

	if err := utils.RedisHealthCheck(c.Request().Context(), s.redis); err != nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{
			"status": "unhealthy",
			"error":  err.Error(),
		})
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "healthy", "store": "redis"})
}
