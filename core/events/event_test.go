package events

import (
	"testing"

	"github.com/stretchr/testify/require"

	"daorewards/core/types"
)

type payload struct{ evt *types.Event }

func (p payload) EventType() string    { return p.evt.Type }
func (p payload) Event() *types.Event { return p.evt }

type bare string

func (b bare) EventType() string { return string(b) }

func TestFanoutAndRecorder(t *testing.T) {
	first, second := &Recorder{}, &Recorder{}
	emitter := Fanout{first, nil, second, NoopEmitter{}}

	emitter.Emit(payload{evt: &types.Event{Type: "a", Attributes: map[string]string{"id": "1"}}})
	emitter.Emit(bare("b"))

	require.Equal(t, []string{"a", "b"}, first.Types())
	require.Equal(t, first.Types(), second.Types())

	require.Equal(t, "1", Unwrap(first.Events[0]).Attr("id"))
	require.Nil(t, Unwrap(first.Events[1]))
}

func TestEventAttributes(t *testing.T) {
	evt := &types.Event{Type: "x", Attributes: map[string]string{"b": "2", "a": "1"}}
	require.Equal(t, []string{"a", "b"}, evt.Keys())
	require.Equal(t, "", evt.Attr("missing"))

	var empty *types.Event
	require.Equal(t, "", empty.Attr("a"))
	require.Nil(t, empty.Keys())
}
