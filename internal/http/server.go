// README: API gateway; registers gin routes and delegates to the monitor and archive.
package http

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"drivesafe/internal/http/handlers"
	"drivesafe/internal/http/middleware"
	"drivesafe/internal/infra"
)

// ServerDeps wires the server. History, Events and Verifier are optional;
// without a Verifier the control endpoints are unauthenticated.
type ServerDeps struct {
	Monitor  handlers.Monitor
	History  handlers.History
	Events   handlers.EventSource
	Verifier infra.TokenVerifier
}

type Server struct {
	session  *handlers.SessionHandler
	verifier infra.TokenVerifier
}

func NewServer(deps ServerDeps) *Server {
	return &Server{
		session:  handlers.NewSessionHandler(deps.Monitor, deps.History, deps.Events),
		verifier: deps.Verifier,
	}
}

func (s *Server) Routes() http.Handler {
	r := gin.New()
	r.Use(middleware.Recovery(), middleware.Logging())

	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "OK")
	})

	api := r.Group("/api")
	api.GET("/session", s.session.Status)
	api.GET("/session/events", s.session.Events)
	api.GET("/sessions", s.session.List)
	api.GET("/sessions/:id", s.session.Get)

	control := api.Group("/session")
	if s.verifier != nil {
		control.Use(middleware.Auth(s.verifier))
	} else {
		log.Printf("http: no token verifier configured, session control endpoints are open")
	}
	control.POST("/end", s.session.End)
	control.POST("/poll", s.session.Poll)
	return r
}
