package robot

import (
	"testing"

	"github.com/keepmind9/cqbot/pkg/event"
	"github.com/stretchr/testify/assert"
)

func TestEventBus(t *testing.T) {
	bus := NewEventBus()
	var got []string

	assert.False(t, bus.Fire("x", event.Event{}))

	bus.On("x", func(ev event.Event) { got = append(got, "first") })
	bus.On("x", func(ev event.Event) { got = append(got, "second:"+ev.RawText) })
	assert.True(t, bus.Fire("x", event.Event{RawText: "payload"}))
	assert.Equal(t, []string{"second:payload"}, got)

	bus.Un("x")
	assert.False(t, bus.Fire("x", event.Event{}))
	assert.Len(t, got, 1)
}
