// Package robot holds the per-account bot handle applications register
// listeners and commands on, plus the registry that maps gateway account ids
// to live robots.
//
// # Dispatch order
//
// For a private message: every OnPrivateMsg listener in registration order,
// then every private command whose tokens contain the message text.
//
// For a group message: every OnGroupMsg listener, then the SetOnGroupMsg
// listener of that group, then every group command registered for that group
// whose tokens contain the message text.
//
// For a notice: every OnEventMsg listener.
//
// Matching commands never short-circuit each other. A panicking listener is
// logged and the remaining listeners still run.
//
// # Thread Safety
//
// Registration methods may be called at any time, including from inside a
// listener. Listeners registered during dispatch take effect from the next
// event.
package robot

import (
	"fmt"
	"sync"

	"github.com/keepmind9/cqbot/internal/logger"
	"github.com/keepmind9/cqbot/pkg/action"
	"github.com/keepmind9/cqbot/pkg/constants"
	"github.com/keepmind9/cqbot/pkg/event"
	"github.com/sirupsen/logrus"
)

type command struct {
	tokens  map[string]struct{}
	group   int64
	action  Handler
	inGroup bool
}

func newCommand(tokens []string, do Handler) command {
	set := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		set[t] = struct{}{}
	}
	return command{tokens: set, action: do}
}

func (c command) matches(text string) bool {
	_, ok := c.tokens[text]
	return ok
}

// Robot is one logical bot bound to a gateway account
type Robot struct {
	accountID int64
	id        int
	actions   *action.Client
	bus       *EventBus

	mu              sync.RWMutex
	privateHandlers []Handler
	groupHandlers   []Handler
	noticeHandlers  []Handler
	groupHandler    map[int64]Handler
	privateCommands []command
	groupCommands   []command
}

// New creates a robot and subscribes its dispatchers on its own event bus
func New(accountID int64, actions *action.Client, id int) *Robot {
	r := &Robot{
		accountID:    accountID,
		id:           id,
		actions:      actions,
		bus:          NewEventBus(),
		groupHandler: make(map[int64]Handler),
	}
	r.bus.On(constants.EventPrivate, r.dispatchPrivate)
	r.bus.On(constants.EventGroup, r.dispatchGroup)
	r.bus.On(constants.EventNotice, r.dispatchNotice)
	return r
}

// AccountID returns the gateway account the robot is bound to
func (r *Robot) AccountID() int64 {
	return r.accountID
}

// ID returns the sequential instance id assigned at creation
func (r *Robot) ID() int {
	return r.id
}

// Actions returns the outbound action client of the robot's account
func (r *Robot) Actions() *action.Client {
	return r.actions
}

// String identifies the robot in logs
func (r *Robot) String() string {
	return fmt.Sprintf("robot#%d(%d)", r.id, r.accountID)
}

// Fire delivers ev to the dispatcher bound to name ("private", "group", "notice")
func (r *Robot) Fire(name string, ev event.Event) {
	r.bus.Fire(name, ev)
}

// OnPrivateMsg adds a listener for every private message
func (r *Robot) OnPrivateMsg(fn Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.privateHandlers = append(r.privateHandlers, fn)
}

// OnGroupMsg adds a listener for messages from any group
func (r *Robot) OnGroupMsg(fn Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.groupHandlers = append(r.groupHandlers, fn)
}

// SetOnGroupMsg sets the single listener of groupID, replacing any previous one
func (r *Robot) SetOnGroupMsg(groupID int64, fn Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.groupHandler[groupID] = fn
}

// GetOnGroupMsg returns the listener set for groupID, or nil
func (r *Robot) GetOnGroupMsg(groupID int64) Handler {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.groupHandler[groupID]
}

// OnEventMsg adds a listener for notices
func (r *Robot) OnEventMsg(fn Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.noticeHandlers = append(r.noticeHandlers, fn)
}

// RegisterPrivateCommand runs do for private messages whose text equals one
// of tokens. Each call adds an independent entry.
func (r *Robot) RegisterPrivateCommand(tokens []string, do Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.privateCommands = append(r.privateCommands, newCommand(tokens, do))
}

// RegisterGroupCommand runs do for messages in groupID whose text equals one
// of tokens. Each call adds an independent entry.
func (r *Robot) RegisterGroupCommand(groupID int64, tokens []string, do Handler) {
	cmd := newCommand(tokens, do)
	cmd.group = groupID
	cmd.inGroup = true

	r.mu.Lock()
	defer r.mu.Unlock()
	r.groupCommands = append(r.groupCommands, cmd)
}

func (r *Robot) dispatchPrivate(ev event.Event) {
	r.mu.RLock()
	handlers := append([]Handler(nil), r.privateHandlers...)
	commands := append([]command(nil), r.privateCommands...)
	r.mu.RUnlock()

	for _, fn := range handlers {
		r.invoke("private-listener", fn, ev)
	}
	for _, cmd := range commands {
		if cmd.matches(ev.RawText) {
			r.invoke("private-command", cmd.action, ev)
		}
	}
}

func (r *Robot) dispatchGroup(ev event.Event) {
	r.mu.RLock()
	handlers := append([]Handler(nil), r.groupHandlers...)
	perGroup := r.groupHandler[ev.FromGroup]
	commands := append([]command(nil), r.groupCommands...)
	r.mu.RUnlock()

	for _, fn := range handlers {
		r.invoke("group-listener", fn, ev)
	}
	r.invoke("group-listener", perGroup, ev)
	for _, cmd := range commands {
		if cmd.inGroup && cmd.group == ev.FromGroup && cmd.matches(ev.RawText) {
			r.invoke("group-command", cmd.action, ev)
		}
	}
}

func (r *Robot) dispatchNotice(ev event.Event) {
	r.mu.RLock()
	handlers := append([]Handler(nil), r.noticeHandlers...)
	r.mu.RUnlock()

	for _, fn := range handlers {
		r.invoke("notice-listener", fn, ev)
	}
}

// invoke runs one application callback; nil callbacks are skipped
func (r *Robot) invoke(where string, fn Handler, ev event.Event) {
	if fn == nil {
		return
	}
	defer logger.Recover(where, logrus.Fields{
		"robot_id":   r.id,
		"account_id": r.accountID,
		"kind":       ev.Kind.String(),
	})
	fn(ev)
}
