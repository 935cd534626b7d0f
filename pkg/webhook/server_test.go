package webhook

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/keepmind9/cqbot/pkg/event"
	"github.com/keepmind9/cqbot/pkg/robot"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const groupReport = `{"post_type":"message","message_type":"group","self_id":10001,` +
	`"group_id":77,"sender":{"user_id":42},"raw_message":"[CQ:at,qq=10001] hi"}`

type recorder struct {
	reg *robot.Registry

	mu     sync.Mutex
	events map[int][]event.Event
}

func (r *recorder) record(id int) robot.Handler {
	return func(ev event.Event) {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.events[id] = append(r.events[id], ev)
	}
}

func (r *recorder) of(id int) []event.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.events[id]
}

func newRecorder(accounts ...int64) *recorder {
	rec := &recorder{reg: robot.NewRegistry(), events: map[int][]event.Event{}}
	for i, account := range accounts {
		id := i + 1
		r := robot.New(account, nil, id)
		r.OnGroupMsg(rec.record(id))
		r.OnPrivateMsg(rec.record(id))
		r.OnEventMsg(rec.record(id))
		rec.reg.Add(r)
	}
	return rec
}

func (r *recorder) total() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, list := range r.events {
		n += len(list)
	}
	return n
}

func post(t *testing.T, h http.Handler, path, contentType, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestConfig_Route(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"", "/"},
		{"/", "/"},
		{"cq", "/cq"},
		{"/cq/", "/cq"},
		{"/a/b", "/a/b"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, Config{Path: tt.path}.Route())
		})
	}
}

func TestConfig_Addr(t *testing.T) {
	assert.Equal(t, "0.0.0.0:5701", Config{Port: 5701}.Addr())
	assert.Equal(t, "127.0.0.1:8080", Config{BindHost: "127.0.0.1", Port: 8080}.Addr())
}

func TestServer_DispatchesGroupMessage(t *testing.T) {
	rec := newRecorder(10001)
	s := New(Config{Port: 5701}, rec.reg)

	w := post(t, s.Handler(), "/", "application/json", groupReport)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Body.String())
	require.Len(t, rec.of(1), 1)
	ev := rec.of(1)[0]
	assert.Equal(t, event.GroupMessage, ev.Kind)
	assert.Equal(t, int64(77), ev.FromGroup)
	assert.Equal(t, int64(42), ev.FromUser)
	assert.Equal(t, "hi", ev.RawText)
	assert.True(t, ev.MentionsRobot)
}

func TestServer_FansOutToEveryRobotOfAccount(t *testing.T) {
	rec := newRecorder(10001, 10001, 20002)
	s := New(Config{}, rec.reg)

	post(t, s.Handler(), "/", "application/json", groupReport)

	assert.Len(t, rec.of(1), 1)
	assert.Len(t, rec.of(2), 1)
	assert.Empty(t, rec.of(3))
}

func TestServer_DropsWithoutDispatch(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"self echo", `{"post_type":"message","message_type":"private","self_id":10001,"user_id":10001,"raw_message":"x"}`},
		{"group self echo", `{"post_type":"message","message_type":"group","self_id":10001,"group_id":77,"sender":{"user_id":10001},"raw_message":"x"}`},
		{"unknown account", `{"post_type":"message","message_type":"private","self_id":30003,"user_id":1,"raw_message":"x"}`},
		{"meta event", `{"post_type":"meta_event","meta_event_type":"heartbeat","self_id":10001}`},
		{"request", `{"post_type":"request","request_type":"friend","self_id":10001,"user_id":1}`},
		{"not json", `{not json`},
		{"empty", ``},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := newRecorder(10001)
			s := New(Config{}, rec.reg)

			w := post(t, s.Handler(), "/", "application/json", tt.body)

			assert.Equal(t, http.StatusOK, w.Code)
			assert.Zero(t, rec.total())
		})
	}
}

func TestServer_FormBody(t *testing.T) {
	rec := newRecorder(10001)
	s := New(Config{}, rec.reg)

	form := url.Values{
		"post_type":       {"message"},
		"message_type":    {"private"},
		"self_id":         {"10001"},
		"user_id":         {"42"},
		"raw_message":     {"ping"},
		"sender[nickname]": {"Nick"},
	}
	w := post(t, s.Handler(), "/", "application/x-www-form-urlencoded", form.Encode())

	assert.Equal(t, http.StatusOK, w.Code)
	require.Len(t, rec.of(1), 1)
	ev := rec.of(1)[0]
	assert.Equal(t, event.PrivateMessage, ev.Kind)
	assert.Equal(t, int64(42), ev.FromUser)
	assert.Equal(t, "ping", ev.RawText)
	assert.Equal(t, "Nick", ev.Sender.Nickname)
}

func TestServer_JSONWithoutContentType(t *testing.T) {
	rec := newRecorder(10001)
	s := New(Config{}, rec.reg)

	post(t, s.Handler(), "/", "text/plain", groupReport)

	assert.Len(t, rec.of(1), 1)
}

func TestServer_Notice(t *testing.T) {
	rec := newRecorder(10001)
	s := New(Config{}, rec.reg)

	post(t, s.Handler(), "/", "application/json",
		`{"post_type":"notice","notice_type":"group_increase","self_id":10001,"group_id":5,"user_id":6}`)

	require.Len(t, rec.of(1), 1)
	assert.Equal(t, event.Notice, rec.of(1)[0].Kind)
	assert.Equal(t, "group_increase", rec.of(1)[0].NoticeType)
}

func TestServer_NoticeAboutRobotIsNotAnEcho(t *testing.T) {
	rec := newRecorder(10001)
	s := New(Config{}, rec.reg)

	post(t, s.Handler(), "/", "application/json",
		`{"post_type":"notice","notice_type":"group_increase","self_id":10001,"group_id":5,"user_id":10001}`)

	require.Len(t, rec.of(1), 1)
	assert.Equal(t, int64(10001), rec.of(1)[0].TargetUserID)
}

func TestServer_Routing(t *testing.T) {
	rec := newRecorder(10001)
	s := New(Config{Path: "cq"}, rec.reg)

	w := post(t, s.Handler(), "/", "application/json", groupReport)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = post(t, s.Handler(), "/cq", "application/json", groupReport)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, rec.of(1), 1)

	req := httptest.NewRequest(http.MethodGet, "/cq", nil)
	resp := httptest.NewRecorder()
	s.Handler().ServeHTTP(resp, req)
	assert.Equal(t, http.StatusMethodNotAllowed, resp.Code)
}

func TestServer_RootRouteIsExact(t *testing.T) {
	rec := newRecorder(10001)
	s := New(Config{}, rec.reg)

	w := post(t, s.Handler(), "/other", "application/json", groupReport)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Zero(t, rec.total())
}

func TestServer_BracesInPathAreLiteral(t *testing.T) {
	rec := newRecorder(10001)
	var s *Server
	require.NotPanics(t, func() { s = New(Config{Path: "a{b"}, rec.reg) })

	w := post(t, s.Handler(), "/a%7Bb", "application/json", groupReport)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, rec.total())

	rec = newRecorder(10001)
	s = New(Config{Path: "{id}"}, rec.reg)

	w = post(t, s.Handler(), "/anything", "application/json", groupReport)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Zero(t, rec.total())

	w = post(t, s.Handler(), "/%7Bid%7D", "application/json", groupReport)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, rec.total())
}

func TestServer_MentionAll(t *testing.T) {
	body := `{"post_type":"message","message_type":"group","self_id":10001,` +
		`"group_id":77,"sender":{"user_id":42},"raw_message":"[CQ:at,qq=all] hi"}`

	rec := newRecorder(10001)
	post(t, New(Config{}, rec.reg).Handler(), "/", "application/json", body)
	require.Len(t, rec.of(1), 1)
	assert.False(t, rec.of(1)[0].MentionsRobot)

	rec = newRecorder(10001)
	post(t, New(Config{}, rec.reg, WithMentionAll(true)).Handler(), "/", "application/json", body)
	require.Len(t, rec.of(1), 1)
	assert.True(t, rec.of(1)[0].MentionsRobot)
}

func TestServer_StartShutdown(t *testing.T) {
	rec := newRecorder(10001)
	s := New(Config{BindHost: "127.0.0.1", Port: 0}, rec.reg)

	require.NoError(t, s.Start())
	assert.Error(t, s.Start())

	resp, err := http.Post("http://"+s.Addr()+"/", "application/json", strings.NewReader(groupReport))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, rec.of(1), 1)

	require.NoError(t, s.Shutdown(context.Background()))
	require.NoError(t, s.Shutdown(context.Background()))
}

func TestServer_StartBindError(t *testing.T) {
	first := New(Config{BindHost: "127.0.0.1", Port: 0}, newRecorder().reg)
	require.NoError(t, first.Start())
	defer first.Shutdown(context.Background())

	_, port, _ := strings.Cut(first.Addr(), ":")
	second := New(Config{BindHost: "127.0.0.1"}, newRecorder().reg)
	n, err := strconv.Atoi(port)
	require.NoError(t, err)
	second.cfg.Port = n

	assert.Error(t, second.Start())
}
