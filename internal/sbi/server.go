// Package sbi is the management facade: subscriber CRUD over the Ledger's
// balance store, plus the Prometheus scrape endpoint.
package sbi

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"runtime/debug"
	"sync"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/free5gc/util/httpwrapper"
	logger_util "github.com/free5gc/util/logger"

	"github.com/RestComm/charging-server/internal/abmf"
	"github.com/RestComm/charging-server/internal/logger"
	"github.com/RestComm/charging-server/internal/metrics"
)

const (
	CorsConfigMaxAge = 86400

	ChargingResUriPrefix = "/charging"
)

type Route struct {
	Method  string
	Pattern string
	APIFunc gin.HandlerFunc
}

func applyRoutes(group *gin.RouterGroup, routes []Route) {
	for _, route := range routes {
		switch route.Method {
		case "GET":
			group.GET(route.Pattern, route.APIFunc)
		case "POST":
			group.POST(route.Pattern, route.APIFunc)
		case "PUT":
			group.PUT(route.Pattern, route.APIFunc)
		case "PATCH":
			group.PATCH(route.Pattern, route.APIFunc)
		case "DELETE":
			group.DELETE(route.Pattern, route.APIFunc)
		}
	}
}

type Config struct {
	BindingAddr string
	Scheme      string
	CertPemPath string
	CertKeyPath string
}

type Server struct {
	cfg   Config
	users abmf.UserAdministration

	httpServer *http.Server
	router     *gin.Engine
}

func NewServer(cfg Config, users abmf.UserAdministration, m *metrics.Metrics) (*Server, error) {
	s := &Server{
		cfg:    cfg,
		users:  users,
		router: logger_util.NewGinWithLogrus(logger.GinLog),
	}

	group := s.router.Group(ChargingResUriPrefix)
	applyRoutes(group, s.getUserEndpoints())

	s.router.GET("/metrics", gin.WrapH(
		promhttp.HandlerFor(m.Registry(), promhttp.HandlerOpts{})))

	s.router.Use(cors.New(cors.Config{
		AllowMethods: []string{"GET", "POST", "OPTIONS", "PUT", "PATCH", "DELETE"},
		AllowHeaders: []string{
			"Origin", "Content-Length", "Content-Type", "User-Agent",
			"Referrer", "Host", "Token", "X-Requested-With",
		},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		AllowAllOrigins:  true,
		MaxAge:           CorsConfigMaxAge,
	}))

	logger.SBILog.Infof("Binding addr: [%s]", cfg.BindingAddr)
	var err error
	if s.httpServer, err = httpwrapper.NewHttp2Server(cfg.BindingAddr, "", s.router); err != nil {
		logger.InitLog.Errorf("Initialize HTTP server failed: %v", err)
		return nil, err
	}
	s.httpServer.ErrorLog = log.New(logger.SBILog.WriterLevel(logrus.ErrorLevel), "HTTP2: ", 0)

	return s, nil
}

// Handler exposes the routing tree for in-process HTTP exchanges.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) Run(wg *sync.WaitGroup) {
	wg.Add(1)
	go s.startServer(wg)
}

func (s *Server) Stop() {
	const defaultShutdownTimeout time.Duration = 2 * time.Second

	if s.httpServer != nil {
		logger.SBILog.Infof("Stop management server (listen on %s)", s.httpServer.Addr)
		toCtx, cancel := context.WithTimeout(context.Background(), defaultShutdownTimeout)
		defer cancel()
		if err := s.httpServer.Shutdown(toCtx); err != nil {
			logger.SBILog.Errorf("Could not close management server: %#v", err)
		}
	}
}

func (s *Server) startServer(wg *sync.WaitGroup) {
	defer func() {
		if p := recover(); p != nil {
			// Print stack for panic to log. Fatalf() will let program exit.
			logger.SBILog.Fatalf("panic: %v\n%s", p, string(debug.Stack()))
		}
		wg.Done()
	}()

	logger.SBILog.Infof("Start management server (listen on %s)", s.httpServer.Addr)

	var err error
	switch s.cfg.Scheme {
	case "http":
		err = s.httpServer.ListenAndServe()
	case "https":
		err = s.httpServer.ListenAndServeTLS(s.cfg.CertPemPath, s.cfg.CertKeyPath)
	default:
		err = fmt.Errorf("no support this scheme[%s]", s.cfg.Scheme)
	}

	if err != nil && err != http.ErrServerClosed {
		logger.SBILog.Errorf("management server error: %v", err)
	}
	logger.SBILog.Warnf("management server (listen on %s) stopped", s.httpServer.Addr)
}
