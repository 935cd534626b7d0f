package robot

import (
	"testing"

	"github.com/keepmind9/cqbot/pkg/action"
	"github.com/keepmind9/cqbot/pkg/event"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRobot(account int64) *Robot {
	return New(account, action.NewClient(action.Config{Port: 5700}), 1)
}

func privateMsg(text string) event.Event {
	return event.Event{Kind: event.PrivateMessage, Valid: true, RobotID: 10001, FromUser: 42, RawText: text}
}

func groupMsg(group int64, text string) event.Event {
	return event.Event{Kind: event.GroupMessage, Valid: true, RobotID: 10001, FromUser: 42, FromGroup: group, RawText: text}
}

func TestRobot_Identity(t *testing.T) {
	r := New(10001, action.NewClient(action.Config{Host: "gw", Port: 5700}), 3)

	assert.Equal(t, int64(10001), r.AccountID())
	assert.Equal(t, 3, r.ID())
	assert.Equal(t, "http://gw:5700", r.Actions().BaseURL())
	assert.Equal(t, "robot#3(10001)", r.String())
}

func TestRobot_PrivateListenersInOrder(t *testing.T) {
	r := newTestRobot(10001)
	var calls []string
	r.OnPrivateMsg(func(ev event.Event) { calls = append(calls, "first:"+ev.RawText) })
	r.OnPrivateMsg(nil)
	r.OnPrivateMsg(func(ev event.Event) { calls = append(calls, "second:"+ev.RawText) })

	r.Fire("private", privateMsg("hey"))

	assert.Equal(t, []string{"first:hey", "second:hey"}, calls)
}

func TestRobot_PrivateCommandsAllFire(t *testing.T) {
	r := newTestRobot(10001)
	var calls []string
	r.RegisterPrivateCommand([]string{"hi"}, func(event.Event) { calls = append(calls, "a") })
	r.RegisterPrivateCommand([]string{"hi", "hello"}, func(event.Event) { calls = append(calls, "b") })
	r.RegisterPrivateCommand([]string{"bye"}, func(event.Event) { calls = append(calls, "c") })

	r.Fire("private", privateMsg("hi"))
	assert.Equal(t, []string{"a", "b"}, calls)

	calls = nil
	r.Fire("private", privateMsg("hello"))
	assert.Equal(t, []string{"b"}, calls)

	calls = nil
	r.Fire("private", privateMsg("hi there"))
	assert.Empty(t, calls)
}

func TestRobot_DuplicateCommandRegistrations(t *testing.T) {
	r := newTestRobot(10001)
	count := 0
	tokens := []string{"ping"}
	do := func(event.Event) { count++ }
	r.RegisterPrivateCommand(tokens, do)
	r.RegisterPrivateCommand([]string{"ping"}, do)

	r.Fire("private", privateMsg("ping"))

	assert.Equal(t, 2, count)
}

func TestRobot_ListenersBeforeCommands(t *testing.T) {
	r := newTestRobot(10001)
	var calls []string
	r.RegisterPrivateCommand([]string{"x"}, func(event.Event) { calls = append(calls, "command") })
	r.OnPrivateMsg(func(event.Event) { calls = append(calls, "listener") })

	r.Fire("private", privateMsg("x"))

	assert.Equal(t, []string{"listener", "command"}, calls)
}

func TestRobot_GroupDispatch(t *testing.T) {
	r := newTestRobot(10001)
	var calls []string
	r.OnGroupMsg(func(ev event.Event) { calls = append(calls, "global") })
	r.SetOnGroupMsg(100, func(ev event.Event) { calls = append(calls, "group-100") })
	r.SetOnGroupMsg(200, func(ev event.Event) { calls = append(calls, "group-200") })
	r.RegisterGroupCommand(100, []string{"go"}, func(ev event.Event) { calls = append(calls, "cmd-100") })
	r.RegisterGroupCommand(200, []string{"go"}, func(ev event.Event) { calls = append(calls, "cmd-200") })

	r.Fire("group", groupMsg(100, "go"))
	assert.Equal(t, []string{"global", "group-100", "cmd-100"}, calls)

	calls = nil
	r.Fire("group", groupMsg(300, "go"))
	assert.Equal(t, []string{"global"}, calls)
}

func TestRobot_GroupCommandIsolation(t *testing.T) {
	r := newTestRobot(10001)
	fired := 0
	r.RegisterGroupCommand(1, []string{"go"}, func(event.Event) { fired++ })

	r.Fire("group", groupMsg(2, "go"))
	assert.Zero(t, fired)

	r.Fire("group", groupMsg(1, "go"))
	assert.Equal(t, 1, fired)
}

func TestRobot_SharedActionAcrossGroups(t *testing.T) {
	r := newTestRobot(10001)
	var groups []int64
	do := func(ev event.Event) { groups = append(groups, ev.FromGroup) }
	r.RegisterGroupCommand(1, []string{"go"}, do)
	r.RegisterGroupCommand(2, []string{"go"}, do)

	r.Fire("group", groupMsg(1, "go"))
	r.Fire("group", groupMsg(2, "go"))

	assert.Equal(t, []int64{1, 2}, groups)
}

func TestRobot_SetOnGroupMsgLastWriteWins(t *testing.T) {
	r := newTestRobot(10001)
	var calls []string
	r.SetOnGroupMsg(5, func(event.Event) { calls = append(calls, "old") })
	r.SetOnGroupMsg(5, func(event.Event) { calls = append(calls, "new") })

	require.NotNil(t, r.GetOnGroupMsg(5))
	assert.Nil(t, r.GetOnGroupMsg(6))

	r.Fire("group", groupMsg(5, "text"))
	assert.Equal(t, []string{"new"}, calls)
}

func TestRobot_PrivateCommandsIgnoreGroupMessages(t *testing.T) {
	r := newTestRobot(10001)
	fired := false
	r.RegisterPrivateCommand([]string{"go"}, func(event.Event) { fired = true })

	r.Fire("group", groupMsg(1, "go"))

	assert.False(t, fired)
}

func TestRobot_Notice(t *testing.T) {
	r := newTestRobot(10001)
	var got []string
	r.OnEventMsg(func(ev event.Event) { got = append(got, ev.NoticeType) })
	r.OnEventMsg(func(ev event.Event) { got = append(got, "second") })
	r.RegisterPrivateCommand([]string{""}, func(event.Event) { got = append(got, "command") })

	r.Fire("notice", event.Event{Kind: event.Notice, Valid: true, NoticeType: "group_upload"})

	assert.Equal(t, []string{"group_upload", "second"}, got)
}

func TestRobot_PanickingListenerDoesNotStopDispatch(t *testing.T) {
	r := newTestRobot(10001)
	reached := false
	r.OnPrivateMsg(func(event.Event) { panic("listener bug") })
	r.OnPrivateMsg(func(event.Event) { reached = true })

	assert.NotPanics(t, func() { r.Fire("private", privateMsg("x")) })
	assert.True(t, reached)
}

func TestRobot_RegisterDuringDispatch(t *testing.T) {
	r := newTestRobot(10001)
	count := 0
	r.OnPrivateMsg(func(event.Event) {
		r.OnPrivateMsg(func(event.Event) { count++ })
	})

	r.Fire("private", privateMsg("x"))
	assert.Zero(t, count)

	r.Fire("private", privateMsg("x"))
	assert.Equal(t, 1, count)
}

func TestRobot_UnknownEventName(t *testing.T) {
	r := newTestRobot(10001)
	called := false
	r.OnPrivateMsg(func(event.Event) { called = true })

	r.Fire("request", privateMsg("x"))

	assert.False(t, called)
}
