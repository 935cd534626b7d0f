package core

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/keepmind9/cqbot/internal/logger"
	"github.com/keepmind9/cqbot/pkg/constants"
	"github.com/keepmind9/cqbot/pkg/event"
	"github.com/keepmind9/cqbot/pkg/robot"
	"github.com/keepmind9/cqbot/pkg/sdk"
	"github.com/sirupsen/logrus"
)

// Built-in private commands, enabled per bot with builtin_commands
const (
	CommandHelp   = "help"
	CommandWhoami = "whoami"
	CommandStatus = "status"
)

// Engine hosts the configured bots on one SDK instance
type Engine struct {
	config *Config
	sdk    *sdk.SDK
	robots []*robot.Robot // creation order, parallel to config.Bots

	ctx    context.Context
	cancel context.CancelFunc
}

// NewEngine creates the SDK from the gateway section and one robot per
// configured bot
func NewEngine(config *Config, opts ...sdk.Option) *Engine {
	ctx, cancel := context.WithCancel(context.Background())

	s := sdk.New(sdk.Config{
		Host:          config.Gateway.Host,
		PostPort:      config.Gateway.Port(),
		PostPath:      config.Gateway.PostPath,
		BindHost:      config.Gateway.BindHost,
		ActionTimeout: config.ActionTimeout(),
		AccessToken:   config.Gateway.AccessToken,
		MentionAll:    config.Gateway.MentionAll,
	}, opts...)

	e := &Engine{
		config: config,
		sdk:    s,
		ctx:    ctx,
		cancel: cancel,
	}
	for _, bc := range config.Bots {
		e.robots = append(e.robots, e.setupBot(bc))
	}
	return e
}

// SDK returns the SDK the engine runs on
func (e *Engine) SDK() *sdk.SDK {
	return e.sdk
}

// Robots returns the hosted robots in configuration order
func (e *Engine) Robots() []*robot.Robot {
	return append([]*robot.Robot(nil), e.robots...)
}

func (e *Engine) setupBot(bc BotConfig) *robot.Robot {
	r := e.sdk.CreateBot(bc.Account, bc.ListenPort)
	fields := logrus.Fields{"bot": bc.Label(), "robot_id": r.ID(), "account_id": bc.Account}

	r.OnPrivateMsg(func(ev event.Event) { logEvent(bc, ev) })
	r.OnGroupMsg(func(ev event.Event) { logEvent(bc, ev) })
	r.OnEventMsg(func(ev event.Event) { logEvent(bc, ev) })

	for _, trigger := range sortedKeys(bc.PrivateReplies) {
		reply := bc.PrivateReplies[trigger]
		r.RegisterPrivateCommand([]string{trigger}, e.privateReply(r, reply))
	}

	groups := make([]int64, 0, len(bc.GroupReplies))
	for group := range bc.GroupReplies {
		groups = append(groups, group)
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i] < groups[j] })
	for _, group := range groups {
		replies := bc.GroupReplies[group]
		for _, trigger := range sortedKeys(replies) {
			r.RegisterGroupCommand(group, []string{trigger}, e.groupReply(r, replies[trigger]))
		}
	}

	if bc.BuiltinCommands {
		r.RegisterPrivateCommand([]string{CommandHelp}, e.privateAnswer(r, func(event.Event) string {
			return e.helpText(bc)
		}))
		r.RegisterPrivateCommand([]string{CommandWhoami}, e.privateAnswer(r, e.whoamiText))
		r.RegisterPrivateCommand([]string{CommandStatus}, e.privateAnswer(r, func(ev event.Event) string {
			if !e.config.IsAdmin(ev.FromUser) {
				return "status is only available to admins"
			}
			return e.statusText()
		}))
	}

	logger.WithFields(fields).WithFields(logrus.Fields{
		"private_replies": len(bc.PrivateReplies),
		"groups":          len(bc.GroupReplies),
		"builtins":        bc.BuiltinCommands,
	}).Info("bot-configured")
	return r
}

func (e *Engine) authorized(r *robot.Robot, ev event.Event) bool {
	if e.config.IsUserAuthorized(ev.FromUser) {
		return true
	}
	logger.WithFields(logrus.Fields{
		"robot_id": r.ID(),
		"user_id":  ev.FromUser,
	}).Warn("unauthorized-user-ignored")
	return false
}

func (e *Engine) privateReply(r *robot.Robot, reply string) robot.Handler {
	return e.privateAnswer(r, func(event.Event) string { return reply })
}

func (e *Engine) privateAnswer(r *robot.Robot, answer func(event.Event) string) robot.Handler {
	return func(ev event.Event) {
		if !e.authorized(r, ev) {
			return
		}
		r.Actions().SendPrivateMsg(ev.FromUser, answer(ev))
	}
}

func (e *Engine) groupReply(r *robot.Robot, reply string) robot.Handler {
	return func(ev event.Event) {
		if !e.authorized(r, ev) {
			return
		}
		r.Actions().SendGroupMsg(ev.FromGroup, reply, false)
	}
}

func (e *Engine) helpText(bc BotConfig) string {
	var b strings.Builder
	b.WriteString("commands:")
	for _, cmd := range []string{CommandHelp, CommandWhoami, CommandStatus} {
		b.WriteString("\n  " + cmd)
	}
	for _, trigger := range sortedKeys(bc.PrivateReplies) {
		b.WriteString("\n  " + trigger)
	}
	return b.String()
}

func (e *Engine) whoamiText(ev event.Event) string {
	role := "user"
	if e.config.IsAdmin(ev.FromUser) {
		role = "admin"
	}
	name := ev.Sender.Nickname
	if name == "" {
		name = "-"
	}
	return fmt.Sprintf("user_id: %d\nnickname: %s\nrole: %s", ev.FromUser, name, role)
}

func (e *Engine) statusText() string {
	reg := e.sdk.Registry()
	accounts := reg.Accounts()
	parts := make([]string, len(accounts))
	for i, a := range accounts {
		parts[i] = fmt.Sprintf("%d(%d)", a, len(reg.Lookup(a)))
	}

	webhook := "disabled"
	if srv := e.sdk.Server(); srv != nil {
		webhook = srv.Addr()
	}
	return fmt.Sprintf("robots: %d\naccounts: %s\nwebhook: %s",
		reg.Len(), strings.Join(parts, ", "), webhook)
}

func logEvent(bc BotConfig, ev event.Event) {
	fields := logrus.Fields{
		"bot":  bc.Label(),
		"kind": ev.Kind.String(),
	}
	switch ev.Kind {
	case event.PrivateMessage, event.GroupMessage:
		fields["user_id"] = ev.FromUser
		fields["text"] = ev.RawText
		if ev.Kind == event.GroupMessage {
			fields["group_id"] = ev.FromGroup
			fields["mentioned"] = ev.MentionsRobot
		}
	case event.Notice:
		fields["notice_type"] = ev.NoticeType
		fields["sub_type"] = ev.NoticeSubType
	}
	logger.WithFields(fields).Info("event-received")
}

// Run starts the webhook server and blocks until ctx is cancelled or Stop is
// called. A disabled webhook (post_port 0) is not an error; the bots can
// still send actions.
func (e *Engine) Run(ctx context.Context) error {
	logger.WithField("bots", len(e.robots)).Info("starting-cqbot-engine")

	if err := e.sdk.Start(); err != nil {
		if !errors.Is(err, sdk.ErrServerDisabled) {
			return fmt.Errorf("failed to start webhook server: %w", err)
		}
		logger.Warn("webhook-server-disabled-post-port-is-0")
	}

	select {
	case <-ctx.Done():
	case <-e.ctx.Done():
	}
	logger.Info("engine-shutting-down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), constants.DefaultShutdownTimeout)
	defer cancel()
	if err := e.sdk.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to stop webhook server: %w", err)
	}
	logger.Info("engine-stopped")
	return nil
}

// Stop makes Run return
func (e *Engine) Stop() {
	e.cancel()
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
