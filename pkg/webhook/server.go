// Package webhook receives event reports the gateway POSTs to the bot and
// hands them to the robots bound to the reporting account.
package webhook

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/keepmind9/cqbot/internal/logger"
	"github.com/keepmind9/cqbot/pkg/constants"
	"github.com/keepmind9/cqbot/pkg/event"
	"github.com/keepmind9/cqbot/pkg/robot"
	"github.com/sirupsen/logrus"
)

// Router resolves the robots that should receive an account's events
type Router interface {
	Lookup(accountID int64) []*robot.Robot
}

// Config describes where the webhook listens
type Config struct {
	BindHost string
	Port     int
	Path     string
}

// Addr returns the listen address
func (c Config) Addr() string {
	host := c.BindHost
	if host == "" {
		host = constants.DefaultBindHost
	}
	return net.JoinHostPort(host, fmt.Sprintf("%d", c.Port))
}

// Route returns the path the webhook is mounted on, always with a leading slash
func (c Config) Route() string {
	p := strings.Trim(c.Path, "/")
	if p == "" {
		return "/"
	}
	return "/" + p
}

// Option configures a Server
type Option func(*Server)

// WithMentionAll makes "@all" count as a mention of every robot
func WithMentionAll(enabled bool) Option {
	return func(s *Server) {
		s.normalizeOpts = append(s.normalizeOpts, event.WithMentionAll(enabled))
	}
}

// Server is the inbound HTTP endpoint of the SDK
type Server struct {
	cfg           Config
	router        Router
	normalizeOpts []event.Option
	handler       http.Handler

	// serializes normalization and dispatch across deliveries
	dispatchMu sync.Mutex

	mu       sync.Mutex
	srv      *http.Server
	listener net.Listener
}

// New builds a server; nothing listens until Start
func New(cfg Config, router Router, opts ...Option) *Server {
	s := &Server{cfg: cfg, router: router}
	for _, opt := range opts {
		opt(s)
	}

	// the route is compared literally in handleReport, so braces in the
	// configured path never become mux wildcards
	mux := http.NewServeMux()
	mux.HandleFunc("POST /", s.handleReport)
	s.handler = mux
	return s
}

// Handler exposes the routing handler, mainly for tests and embedding
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start binds the listen address and serves in the background. Bind errors
// are returned to the caller.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.srv != nil {
		return errors.New("webhook server already started")
	}

	ln, err := net.Listen("tcp", s.cfg.Addr())
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.cfg.Addr(), err)
	}

	s.listener = ln
	s.srv = &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: constants.WebhookReadHeaderTimeout,
	}
	srv := s.srv

	logger.WithFields(logrus.Fields{
		"address": ln.Addr().String(),
		"route":   s.cfg.Route(),
	}).Info("webhook-server-listening")

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Errorf("webhook-server-error: %v", err)
		}
		logger.Info("webhook-server-stopped")
	}()
	return nil
}

// Addr returns the bound address, or the configured one before Start
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.cfg.Addr()
}

// Shutdown stops accepting deliveries and waits for in-flight ones
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	srv := s.srv
	s.srv = nil
	s.listener = nil
	s.mu.Unlock()

	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != s.cfg.Route() {
		http.NotFound(w, r)
		return
	}

	// the gateway only needs an acknowledgement, whatever happened
	defer w.WriteHeader(http.StatusOK)

	delivery := uuid.NewString()
	log := logger.WithField("delivery", delivery)

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, constants.MaxWebhookBodySize))
	if err != nil {
		log.WithField("error", err).Warn("failed-to-read-report-body")
		return
	}
	if len(body) == 0 {
		log.Debug("empty-report-body")
		return
	}

	raw := body
	if !isJSON(r.Header.Get("Content-Type"), body) {
		values, err := url.ParseQuery(string(body))
		if err != nil {
			log.WithField("error", err).Warn("failed-to-parse-form-report")
			return
		}
		raw = event.FromForm(values)
	}

	s.dispatch(log, raw)
}

func (s *Server) dispatch(log *logrus.Entry, raw []byte) {
	s.dispatchMu.Lock()
	defer s.dispatchMu.Unlock()

	ev := event.Normalize(raw, s.normalizeOpts...)
	if !ev.Dispatchable() {
		if ev.IsSelfEcho() {
			log.WithField("robot", ev.RobotID).Debug("report-ignored-self-echo")
		} else {
			log.Debug("report-ignored-unsupported-type")
		}
		return
	}

	targets := s.router.Lookup(ev.RobotID)
	if len(targets) == 0 {
		log.WithField("robot", ev.RobotID).Debug("report-ignored-unknown-account")
		return
	}

	log.WithFields(logrus.Fields{
		"robot":   ev.RobotID,
		"kind":    ev.Kind.String(),
		"targets": len(targets),
	}).Debug("dispatching-report")

	for _, target := range targets {
		target.Fire(ev.Kind.String(), ev)
	}
}

func isJSON(contentType string, body []byte) bool {
	if mt, _, err := mime.ParseMediaType(contentType); err == nil && strings.HasSuffix(mt, "json") {
		return true
	}
	return bytes.HasPrefix(bytes.TrimSpace(body), []byte("{"))
}
