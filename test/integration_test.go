package test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omochice/handstream/internal/link"
	"github.com/omochice/handstream/internal/source"
	"github.com/omochice/handstream/internal/stream"
	"github.com/omochice/handstream/internal/wstest"
	"github.com/omochice/handstream/pkg/wire"
)

// TestIntegration_TickDeliversFrameToServer wires source, streamer, and
// link together against a mock robot-control server and verifies one
// full sample-encode-send cycle.
func TestIntegration_TickDeliversFrameToServer(t *testing.T) {
	srv := wstest.NewServer()
	defer srv.Close()

	mgr := link.NewManager(link.Config{URL: srv.URL, ReconnectDelay: time.Minute}, zerolog.Nop())
	defer mgr.Close()

	require.Equal(t, link.StateDisconnected, mgr.State())
	require.NoError(t, mgr.Connect(context.Background()))
	require.Equal(t, link.StateConnected, mgr.State())

	vector := make([]float64, 17)
	for i := range vector {
		vector[i] = float64(i + 1)
	}
	src := source.Func(func() []float64 { return vector })

	streamer := stream.NewStreamer(src, mgr, stream.Config{Tag: wire.TagRightHand}, zerolog.Nop())
	defer streamer.Close()

	streamer.Tick()

	raw, ok := srv.NextMessage(time.Second)
	require.True(t, ok, "server did not receive a frame")

	var got struct {
		Type     string    `json:"type"`
		HandData []float64 `json:"handData"`
	}
	require.NoError(t, json.Unmarshal([]byte(raw), &got))
	assert.Equal(t, "rightHandData", got.Type)
	assert.Equal(t, vector, got.HandData)
}

// TestIntegration_ServerCloseTriggersReconnect verifies the recovery
// path: a server-initiated close drops the link and a reconnect lands
// within the configured delay tolerance.
func TestIntegration_ServerCloseTriggersReconnect(t *testing.T) {
	srv := wstest.NewServer()
	defer srv.Close()

	const delay = 100 * time.Millisecond
	mgr := link.NewManager(link.Config{URL: srv.URL, ReconnectDelay: delay}, zerolog.Nop())
	defer mgr.Close()

	require.NoError(t, mgr.Connect(context.Background()))
	require.True(t, srv.WaitForConnCount(1, time.Second))

	require.NoError(t, srv.CloseActive())

	require.Eventually(t, func() bool {
		return mgr.State() == link.StateDisconnected || srv.ConnCount() > 1
	}, time.Second, 5*time.Millisecond, "receive loop did not terminate")

	require.True(t, srv.WaitForConnCount(2, time.Second), "no reconnect within delay tolerance")
	require.Eventually(t, func() bool {
		return mgr.IsConnected()
	}, time.Second, 10*time.Millisecond)

	// The restored link still carries frames.
	streamer := stream.NewStreamer(
		source.Func(func() []float64 { return []float64{1} }),
		mgr, stream.Config{Tag: wire.TagRightHand}, zerolog.Nop())
	defer streamer.Close()

	streamer.Tick()
	_, ok := srv.NextMessage(time.Second)
	assert.True(t, ok, "frame not delivered after reconnect")
}

// TestIntegration_InboundFanOut verifies that a message pushed by the
// server reaches every subscriber in registration order.
func TestIntegration_InboundFanOut(t *testing.T) {
	srv := wstest.NewServer()
	defer srv.Close()

	mgr := link.NewManager(link.Config{URL: srv.URL, ReconnectDelay: time.Minute}, zerolog.Nop())
	defer mgr.Close()

	order := make(chan string, 2)
	mgr.Subscribe(func(msg wire.Message) { order <- "diagnostics:" + msg.Text })
	mgr.Subscribe(func(msg wire.Message) { order <- "recorder:" + msg.Text })

	require.NoError(t, mgr.Connect(context.Background()))
	require.True(t, srv.WaitForConnCount(1, time.Second))
	require.NoError(t, srv.SendText("pose accepted"))

	for _, want := range []string{"diagnostics:pose accepted", "recorder:pose accepted"} {
		select {
		case got := <-order:
			assert.Equal(t, want, got)
		case <-time.After(time.Second):
			t.Fatalf("timeout waiting for %q", want)
		}
	}
}
