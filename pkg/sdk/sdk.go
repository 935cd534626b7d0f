// Package sdk is the entry point applications use: it owns the configuration,
// the robot registry and the webhook server, and creates robots bound to
// gateway accounts.
//
// Typical use:
//
//	s := sdk.New(sdk.DefaultConfig())
//	bot := s.CreateBot(10001, 5700)
//	bot.RegisterPrivateCommand([]string{"ping"}, func(ev event.Event) {
//		bot.Actions().SendPrivateMsg(ev.FromUser, "pong")
//	})
//	if err := s.Start(); err != nil { ... }
package sdk

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/keepmind9/cqbot/internal/logger"
	"github.com/keepmind9/cqbot/pkg/action"
	"github.com/keepmind9/cqbot/pkg/constants"
	"github.com/keepmind9/cqbot/pkg/robot"
	"github.com/keepmind9/cqbot/pkg/webhook"
	"github.com/sirupsen/logrus"
)

// ErrServerDisabled is returned by Start when PostPort is 0
var ErrServerDisabled = errors.New("webhook server disabled: post port is 0")

// Config holds the gateway coordinates shared by every robot
type Config struct {
	// Host is the gateway host robots send actions to
	Host string
	// PostPort is where the local webhook listens; 0 disables it
	PostPort int
	// PostPath is the webhook route, "" for the root
	PostPath string
	// BindHost is the interface the webhook binds
	BindHost      string
	ActionTimeout time.Duration
	AccessToken   string
	MentionAll    bool
}

// DefaultConfig returns 127.0.0.1 as gateway host and 5701 as webhook port
func DefaultConfig() Config {
	return Config{
		Host:          constants.DefaultHost,
		PostPort:      constants.DefaultPostPort,
		PostPath:      constants.DefaultPostPath,
		BindHost:      constants.DefaultBindHost,
		ActionTimeout: constants.DefaultActionTimeout,
	}
}

// Option customizes an SDK
type Option func(*SDK)

// WithRegistry injects the registry robots are added to
func WithRegistry(reg *robot.Registry) Option {
	return func(s *SDK) {
		if reg != nil {
			s.registry = reg
		}
	}
}

// WithHTTPClient makes every robot's action client send through hc
func WithHTTPClient(hc *http.Client) Option {
	return func(s *SDK) {
		s.httpClient = hc
	}
}

// SDK creates robots and feeds them the gateway's events
type SDK struct {
	cfg        Config
	registry   *robot.Registry
	httpClient *http.Client
	server     *webhook.Server
	nextID     atomic.Int64

	mu      sync.Mutex
	started bool
}

// New builds an SDK. The webhook server is only created when PostPort != 0.
func New(cfg Config, opts ...Option) *SDK {
	if cfg.Host == "" {
		cfg.Host = constants.DefaultHost
	}
	if cfg.ActionTimeout <= 0 {
		cfg.ActionTimeout = constants.DefaultActionTimeout
	}

	s := &SDK{cfg: cfg, registry: robot.NewRegistry()}
	for _, opt := range opts {
		opt(s)
	}

	if cfg.PostPort != 0 {
		s.server = webhook.New(webhook.Config{
			BindHost: cfg.BindHost,
			Port:     cfg.PostPort,
			Path:     cfg.PostPath,
		}, s.registry, webhook.WithMentionAll(cfg.MentionAll))
	}
	return s
}

// SetLogger replaces the logger used by the whole SDK
func SetLogger(l *logrus.Logger) {
	logger.SetLogger(l)
}

// Config returns the effective configuration
func (s *SDK) Config() Config {
	return s.cfg
}

// Registry returns the registry robots are added to
func (s *SDK) Registry() *robot.Registry {
	return s.registry
}

// Server returns the webhook server, nil when disabled
func (s *SDK) Server() *webhook.Server {
	return s.server
}

// CreateBot creates a robot for accountID whose actions go to the gateway
// HTTP API on listenPort, and registers it for the account's events.
func (s *SDK) CreateBot(accountID int64, listenPort int) *robot.Robot {
	id := int(s.nextID.Add(1))

	var opts []action.Option
	if s.httpClient != nil {
		opts = append(opts, action.WithHTTPClient(s.httpClient))
	}
	client := action.NewClient(action.Config{
		Host:        s.cfg.Host,
		Port:        listenPort,
		Timeout:     s.cfg.ActionTimeout,
		AccessToken: s.cfg.AccessToken,
	}, opts...)

	r := robot.New(accountID, client, id)
	s.registry.Add(r)

	logger.WithFields(logrus.Fields{
		"robot_id":    id,
		"account_id":  accountID,
		"listen_port": listenPort,
	}).Info("robot-created")
	return r
}

// DestroyBot looks up the robot's account and logs the result. The robot
// stays registered and keeps receiving events.
//
// TODO: remove r from the registry once a Registry.Remove with identity
// semantics exists.
func (s *SDK) DestroyBot(r *robot.Robot) {
	if r == nil {
		return
	}
	fields := logrus.Fields{"robot_id": r.ID(), "account_id": r.AccountID()}
	if !s.registry.Contains(r.AccountID()) {
		logger.WithFields(fields).Warn("destroy-robot-account-not-found")
		return
	}
	logger.WithFields(fields).Info("destroy-robot-requested")
}

// Start binds the webhook server. It returns ErrServerDisabled when PostPort
// is 0.
func (s *SDK) Start() error {
	if s.server == nil {
		return ErrServerDisabled
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return nil
	}
	if err := s.server.Start(); err != nil {
		return err
	}
	s.started = true
	return nil
}

// Shutdown stops the webhook server
func (s *SDK) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return nil
	}
	s.started = false
	return s.server.Shutdown(ctx)
}
