package api

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"driftbook/book"
	appconfig "driftbook/config"
	"driftbook/logger"
)

const defaultPort = "8788"

// Server hosts the read-only order book API. It only ever reads the
// snapshot store, so handlers never block on network.
type Server struct {
	addr       string
	store      *book.Store
	log        *logger.Log
	httpServer *http.Server
}

func NewServer(cfg appconfig.ServerConfig, store *book.Store) *Server {
	return &Server{
		addr:  normalizeAddress(cfg.Address),
		store: store,
		log:   logger.GetLogger(),
	}
}

// Run starts the HTTP server and blocks until the provided context is
// cancelled or the underlying server exits with an error.
func (s *Server) Run(ctx context.Context) error {
	router := s.buildRouter()

	s.httpServer = &http.Server{
		Addr:    s.addr,
		Handler: router,
	}

	s.log.WithComponent("api_server").WithFields(logger.Fields{
		"address": s.addr,
	}).Info("starting api server")

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		<-errCh
		return nil
	case err := <-errCh:
		if err == nil {
			return nil
		}
		return err
	}
}

// Address reports the network address the server listens on.
func (s *Server) Address() string {
	return s.addr
}

func (s *Server) buildRouter() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/api/orderbook", func(c *gin.Context) {
		snap := s.store.Snapshot()
		c.JSON(http.StatusOK, snap)
		logger.IncrementAPIRequest(c.Writer.Size())
	})

	router.GET("/api/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, s.store.Health())
		logger.IncrementAPIRequest(c.Writer.Size())
	})

	return router
}

func normalizeAddress(addr string) string {
	addr = strings.TrimSpace(addr)

	if addr == "" {
		return "0.0.0.0:" + defaultPort
	}

	if strings.Contains(addr, "://") {
		if parsed, err := url.Parse(addr); err == nil {
			if host := parsed.Host; host != "" {
				addr = host
			} else if parsed.Opaque != "" {
				addr = parsed.Opaque
			}
		}
	}

	if strings.HasPrefix(addr, ":") {
		if len(addr) > 1 && addr[1] >= '0' && addr[1] <= '9' {
			return "0.0.0.0" + addr
		}
	}

	host, port, err := net.SplitHostPort(addr)
	if err == nil {
		if host == "" || host == "*" {
			host = "0.0.0.0"
		}
		if port == "" {
			port = defaultPort
		}
		return net.JoinHostPort(host, port)
	}

	if ip := net.ParseIP(addr); ip != nil {
		return net.JoinHostPort(addr, defaultPort)
	}

	if !strings.Contains(addr, ":") {
		return net.JoinHostPort(addr, defaultPort)
	}

	return addr
}
