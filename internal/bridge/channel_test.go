package bridge

import (
	"context"
	"encoding/json"
	"io"
	"testing"

	"github.com/pion/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type call struct {
	method string
	args   []int
}

type fakeCommands struct {
	calls []call
	ok    bool
}

func (f *fakeCommands) record(method string, args ...int) bool {
	f.calls = append(f.calls, call{method, args})
	return f.ok
}

func (f *fakeCommands) Initialize() bool { return f.record("initialize") }
func (f *fakeCommands) Start(bpm, beats, play, mute int) bool {
	return f.record("start", bpm, beats, play, mute)
}
func (f *fakeCommands) Stop() bool { return f.record("stop") }
func (f *fakeCommands) SetBpm(bpm int) bool { return f.record("setBpm", bpm) }
func (f *fakeCommands) SetBeatsPerBar(b int) bool { return f.record("setBeatsPerBar", b) }
func (f *fakeCommands) SetBarMute(play, mute int) bool {
	return f.record("setBarMute", play, mute)
}
func (f *fakeCommands) Dispose() bool { return f.record("dispose") }

func quietLogger() logging.LeveledLogger {
	f := logging.NewDefaultLoggerFactory()
	f.Writer = io.Discard
	return f.NewLogger("test")
}

func newTestChannel() (*Channel, *fakeCommands) {
	cmds := &fakeCommands{ok: true}
	return NewChannel(cmds, quietLogger()), cmds
}

func TestInvokeDefaults(t *testing.T) {
	tests := []struct {
		method string
		want   call
	}{
		{MethodStart, call{"start", []int{120, 4, 1, 0}}},
		{MethodSetBpm, call{"setBpm", []int{120}}},
		{MethodSetBeatsPerBar, call{"setBeatsPerBar", []int{4}}},
		{MethodSetBarMute, call{"setBarMute", []int{1, 0}}},
		{MethodInitialize, call{"initialize", nil}},
		{MethodStop, call{"stop", nil}},
		{MethodDispose, call{"dispose", nil}},
	}
	for _, tt := range tests {
		t.Run(tt.method, func(t *testing.T) {
			ch, cmds := newTestChannel()
			res, err := ch.Invoke(context.Background(), tt.method, nil)
			require.NoError(t, err)
			assert.Equal(t, true, res)
			require.Len(t, cmds.calls, 1)
			assert.Equal(t, tt.want, cmds.calls[0])
		})
	}
}

func TestInvokeArgumentTypes(t *testing.T) {
	ch, cmds := newTestChannel()
	_, err := ch.Invoke(context.Background(), MethodStart, map[string]any{
		"bpm":         float64(90),
		"beatsPerBar": json.Number("3"),
		"playBars":    int64(2),
		"muteBars":    1,
	})
	require.NoError(t, err)
	assert.Equal(t, call{"start", []int{90, 3, 2, 1}}, cmds.calls[0])
}

func TestInvokeAcceptsDecimalWholeNumbers(t *testing.T) {
	ch, cmds := newTestChannel()
	_, err := ch.Invoke(context.Background(), MethodSetBarMute, map[string]any{
		"playBars": json.Number("2.0"),
		"muteBars": float64(1),
	})
	require.NoError(t, err)
	_, err = ch.Invoke(context.Background(), MethodSetBpm, map[string]any{"bpm": json.Number("120.0")})
	require.NoError(t, err)
	require.Len(t, cmds.calls, 2)
	assert.Equal(t, []int{2, 1}, cmds.calls[0].args)
	assert.Equal(t, []int{120}, cmds.calls[1].args)
}

func TestInvokeOutOfRangePassesThrough(t *testing.T) {
	ch, cmds := newTestChannel()
	_, err := ch.Invoke(context.Background(), MethodSetBpm, map[string]any{"bpm": 999})
	require.NoError(t, err)
	assert.Equal(t, []int{999}, cmds.calls[0].args, "clamping belongs to the engine")
}

func TestInvokeRejectsNonInteger(t *testing.T) {
	for _, v := range []any{"fast", 120.5, true, json.Number("1e400"), json.Number("120.5"), []any{1}} {
		ch, cmds := newTestChannel()
		_, err := ch.Invoke(context.Background(), MethodSetBpm, map[string]any{"bpm": v})
		assert.ErrorIs(t, err, ErrInvalidArgument, "value %v", v)
		assert.Empty(t, cmds.calls)
	}
}

func TestInvokeUnknownMethod(t *testing.T) {
	ch, cmds := newTestChannel()
	_, err := ch.Invoke(context.Background(), "setSwing", nil)
	assert.ErrorIs(t, err, ErrNotImplemented)
	assert.Empty(t, cmds.calls)
}

func TestInvokeReturnsCommandResult(t *testing.T) {
	ch, cmds := newTestChannel()
	cmds.ok = false
	res, err := ch.Invoke(context.Background(), MethodStart, nil)
	require.NoError(t, err)
	assert.Equal(t, false, res)
}

func TestInvokeCancelledContext(t *testing.T) {
	ch, cmds := newTestChannel()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := ch.Invoke(ctx, MethodStop, nil)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, cmds.calls)
}
