// Package httpapi exposes the gateway over HTTP.
//
//	GET|POST /dispatch?version=FIX.4.4&messageType=ExecutionReport&overrides=ClOrdID=X1
//	GET      /send-message?fixVersion=FIX.4.1&messageType=OrderCancelRequest
//	GET      /templates
//	GET      /sessions
//	GET      /health
//	GET      /metrics
//
// A POST body to /dispatch is a JSON object of further overrides, applied
// after the query string ones.
package httpapi

import (
	"errors"
	"io"
	"net/http"
	"time"

	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/bjaus/fixgate"
	"github.com/bjaus/fixgate/logging"
)

// RequestIDHeader carries the request id; one is generated when absent.
const RequestIDHeader = "X-Request-ID"

// MaxBodyBytes bounds the JSON override body of a POST to /dispatch.
const MaxBodyBytes = 64 << 10

// statusOf maps outcomes to HTTP status codes.
var statusOf = map[fixgate.Outcome]int{
	fixgate.Sent:               http.StatusOK,
	fixgate.TemplateNotFound:   http.StatusNotFound,
	fixgate.SessionUnavailable: http.StatusConflict,
	fixgate.TransportRejected:  http.StatusBadGateway,
	fixgate.InvalidRequest:     http.StatusBadRequest,
	fixgate.BuildFailed:        http.StatusInternalServerError,
	fixgate.Cancelled:          http.StatusRequestTimeout,
}

// Server is the HTTP boundary in front of a Gateway.
type Server struct {
	logger  *zap.Logger
	gw      *fixgate.Gateway
	metrics http.Handler
	router  *gin.Engine
}

// Option configures a Server.
type Option func(*Server)

// WithMetricsHandler serves h on /metrics.
func WithMetricsHandler(h http.Handler) Option {
	return func(s *Server) {
		s.metrics = h
	}
}

// NewServer creates the server and its routes.
func NewServer(logger *zap.Logger, gw *fixgate.Gateway, opts ...Option) *Server {
	s := &Server{logger: logger, gw: gw}
	for _, opt := range opts {
		opt(s)
	}

	router := gin.New()
	router.Use(ginzap.Ginzap(logger, time.RFC3339, true))
	router.Use(ginzap.RecoveryWithZap(logger, true))
	router.Use(s.requestLogger)
	s.router = router
	s.registerRoutes()
	return s
}

// Router returns the gin engine.
func (s *Server) Router() *gin.Engine { return s.router }

func (s *Server) registerRoutes() {
	s.router.GET("/dispatch", s.dispatch)
	s.router.POST("/dispatch", s.dispatch)
	s.router.GET("/send-message", s.sendMessage)
	s.router.GET("/templates", s.templates)
	s.router.GET("/sessions", s.sessions)
	s.router.GET("/health", s.health)
	if s.metrics != nil {
		s.router.GET("/metrics", gin.WrapH(s.metrics))
	}
}

// requestLogger scopes the context logger to the request id.
func (s *Server) requestLogger(c *gin.Context) {
	id := c.GetHeader(RequestIDHeader)
	if id == "" {
		id = uuid.NewString()
	}
	c.Header(RequestIDHeader, id)
	ctx := logging.WithLogger(c.Request.Context(), s.logger.With(zap.String("request_id", id)))
	c.Request = c.Request.WithContext(ctx)
	c.Next()
}

type dispatchQuery struct {
	Version     string `form:"version" binding:"required"`
	MessageType string `form:"messageType" binding:"required"`
	Overrides   string `form:"overrides"`
}

type legacyQuery struct {
	FixVersion  string `form:"fixVersion" binding:"required"`
	MessageType string `form:"messageType" binding:"required"`
}

// DispatchResponse is the body of every dispatch reply.
type DispatchResponse struct {
	Outcome fixgate.Outcome `json:"outcome"`
	Session string          `json:"session,omitempty"`
	SeqNum  int             `json:"seqNum,omitempty"`
	Reason  string          `json:"reason,omitempty"`
}

func (s *Server) dispatch(c *gin.Context) {
	var q dispatchQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		s.invalid(c, err)
		return
	}
	overrides, err := fixgate.ParseOverrides(q.Overrides)
	if err != nil {
		s.invalid(c, err)
		return
	}
	if c.Request.Method == http.MethodPost {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, MaxBodyBytes)
		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				c.JSON(http.StatusRequestEntityTooLarge, DispatchResponse{Outcome: fixgate.InvalidRequest, Reason: err.Error()})
				return
			}
			s.invalid(c, err)
			return
		}
		if len(body) > 0 {
			more, err := fixgate.ParseOverridesJSON(body)
			if err != nil {
				s.invalid(c, err)
				return
			}
			overrides = append(overrides, more...)
		}
	}
	s.respond(c, fixgate.Request{Version: q.Version, MessageType: q.MessageType, Overrides: overrides})
}

func (s *Server) sendMessage(c *gin.Context) {
	var q legacyQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		s.invalid(c, err)
		return
	}
	s.respond(c, fixgate.Request{Version: q.FixVersion, MessageType: q.MessageType})
}

func (s *Server) respond(c *gin.Context, req fixgate.Request) {
	res := s.gw.Dispatch(c.Request.Context(), req)
	body := DispatchResponse{Outcome: res.Outcome, SeqNum: res.SeqNum, Reason: res.Reason()}
	if res.Session != (fixgate.SessionID{}) {
		body.Session = res.Session.String()
	}
	status, ok := statusOf[res.Outcome]
	if !ok {
		status = http.StatusInternalServerError
	}
	c.JSON(status, body)
}

func (s *Server) invalid(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, DispatchResponse{Outcome: fixgate.InvalidRequest, Reason: err.Error()})
}

func (s *Server) templates(c *gin.Context) {
	keys := s.gw.Registry().Keys()
	out := make([]gin.H, 0, len(keys))
	for _, k := range keys {
		out = append(out, gin.H{"version": k.Version, "messageType": k.MessageType})
	}
	c.JSON(http.StatusOK, gin.H{"templates": out})
}

func (s *Server) sessions(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"sessions": s.gw.Router().Sessions()})
}

func (s *Server) health(c *gin.Context) {
	active := 0
	for _, info := range s.gw.Router().Sessions() {
		if info.State == fixgate.Active.String() && info.LoggedOn {
			active++
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "activeSessions": active})
}
