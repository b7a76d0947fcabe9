/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package webserver

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v5"
	"github.com/labstack/echo/v5/middleware"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
	logf "sigs.k8s.io/controller-runtime/pkg/log"

	"github.com/golgoth31/gateway-autodns/internal/adapter"
	"github.com/golgoth31/gateway-autodns/internal/domain/host"
	"github.com/golgoth31/gateway-autodns/internal/publicip"
	"github.com/golgoth31/gateway-autodns/internal/store"
)

const (
	// APITokenHeader carries the shared secret on the report endpoint.
	APITokenHeader = "X-API-Token"

	defaultOperationLimit = 50
	maxOperationLimit     = 500
)

// Config holds the web server configuration
type Config struct {
	// Address is the address to listen on (e.g., ":8080")
	Address string

	// Rules renders external hosts in read responses
	Rules host.Rules

	// TTL is reported on rendered endpoints
	TTL int64
}

// Reporter accepts public IP reports.
type Reporter interface {
	Authorize(token string) error
	ReportPublicIP(ctx context.Context, token, ipAddress string) error
}

// Server is the HTTP front of the controller: the agent report endpoint and a read API
type Server struct {
	config     Config
	echo       *echo.Echo
	reporter   Reporter
	store      store.Store
	httpServer *http.Server
}

// ReportRequest is the body of a public IP report.
type ReportRequest struct {
	IPAddress string `json:"ipAddress"`
}

// New creates a new web server.
func New(cfg Config, reporter Reporter, st store.Store) *Server {
	e := echo.New()

	// Middleware
	e.Use(middleware.RequestLogger())
	e.Use(middleware.Recover())

	s := &Server{
		config:   cfg,
		echo:     e,
		reporter: reporter,
		store:    st,
	}

	s.setupRoutes()
	return s
}

// setupRoutes configures all routes
func (s *Server) setupRoutes() {
	s.echo.POST("/public-ip", s.reportPublicIPHandler)

	api := s.echo.Group("/api/v1")
	api.POST("/public-ip", s.reportPublicIPHandler)
	api.GET("/public-ip", s.getPublicIPHandler)
	api.GET("/hosts", s.listHostsHandler)
	api.GET("/hosts/:host", s.getHostHandler)
	api.GET("/gateway-operations", s.listOperationsHandler)

	// API health check
	s.echo.GET("/api/health", s.healthHandler)
}

// reportPublicIPHandler checks the token before reading the body, so an
// unauthenticated caller always gets 401.
func (s *Server) reportPublicIPHandler(c *echo.Context) error {
	token := c.Request().Header.Get(APITokenHeader)
	if err := s.reporter.Authorize(token); err != nil {
		return c.JSON(http.StatusUnauthorized, errorBody("invalid api token"))
	}

	var req ReportRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorBody("invalid request body"))
	}

	err := s.reporter.ReportPublicIP(c.Request().Context(), token, req.IPAddress)
	switch {
	case err == nil:
		return c.JSON(http.StatusOK, map[string]string{"status": "ok", "ipAddress": req.IPAddress})
	case errors.Is(err, publicip.ErrUnauthorized):
		return c.JSON(http.StatusUnauthorized, errorBody("invalid api token"))
	case errors.Is(err, publicip.ErrInvalidIP):
		return c.JSON(http.StatusBadRequest, errorBody(err.Error()))
	default:
		logf.FromContext(c.Request().Context()).WithName("webserver").Error(err, "public ip report failed")
		return c.JSON(http.StatusInternalServerError, errorBody("failed to process public ip"))
	}
}

func (s *Server) getPublicIPHandler(c *echo.Context) error {
	ip, err := s.store.GetPublicIP(c.Request().Context())
	if errors.Is(err, store.ErrNotFound) {
		return c.JSON(http.StatusNotFound, errorBody("no public ip reported yet"))
	}
	if err != nil {
		return s.internalError(c, err)
	}
	return c.JSON(http.StatusOK, adapter.ToPublicIPStatus(*ip))
}

func (s *Server) listHostsHandler(c *echo.Context) error {
	recs, err := s.store.ListHosts(c.Request().Context())
	if err != nil {
		return s.internalError(c, err)
	}
	eps := adapter.HostsToEndpoints(recs, s.config.Rules, s.config.TTL)
	return c.JSON(http.StatusOK, adapter.ToEndpointStatus(eps))
}

func (s *Server) getHostHandler(c *echo.Context) error {
	rec, err := s.store.GetHost(c.Request().Context(), c.Param("host"))
	if errors.Is(err, store.ErrNotFound) {
		return c.JSON(http.StatusNotFound, errorBody("host not managed"))
	}
	if err != nil {
		return s.internalError(c, err)
	}
	return c.JSON(http.StatusOK, adapter.ToHostDetails(*rec, s.config.Rules, s.config.TTL))
}

func (s *Server) listOperationsHandler(c *echo.Context) error {
	limit := defaultOperationLimit
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return c.JSON(http.StatusBadRequest, errorBody("limit must be a positive integer"))
		}
		limit = min(n, maxOperationLimit)
	}

	ops, err := s.store.ListOperations(c.Request().Context(), limit)
	if err != nil {
		return s.internalError(c, err)
	}
	return c.JSON(http.StatusOK, adapter.ToOperationStatus(ops))
}

// healthHandler returns the health status
func (s *Server) healthHandler(c *echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status": "healthy",
	})
}

func (s *Server) internalError(c *echo.Context, err error) error {
	logf.FromContext(c.Request().Context()).WithName("webserver").Error(err, "request failed",
		"path", c.Request().URL.Path)
	return c.JSON(http.StatusInternalServerError, errorBody("internal error"))
}

func errorBody(msg string) map[string]string {
	return map[string]string{"error": msg}
}

// Start starts the web server
func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:    s.config.Address,
		Handler: s.Handler(),
	}

	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}

// MountHandler registers an external http.Handler on the given path.
// This is useful for mounting additional services (e.g. MCP) on the same port.
func (s *Server) MountHandler(path string, handler http.Handler) {
	s.echo.Any(path, echo.WrapHandler(handler))
}

// Handler returns the HTTP handler for the server
func (s *Server) Handler() http.Handler {
	h2s := &http2.Server{}
	return h2c.NewHandler(s.echo, h2s)
}
