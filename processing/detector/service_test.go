package detector

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/jpeg"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"coralcam/internal/models"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type wsMessage struct {
	kind int
	data []byte
}

// fakeServer accepts one connection at a time and exposes what it received.
func fakeServer(t *testing.T) (*httptest.Server, <-chan wsMessage, chan<- ServerMessage) {
	t.Helper()

	received := make(chan wsMessage, 16)
	outgoing := make(chan ServerMessage, 16)
	upgrader := websocket.Upgrader{}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/ws" {
			http.NotFound(w, r)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		go func() {
			for msg := range outgoing {
				if err := conn.WriteJSON(msg); err != nil {
					return
				}
			}
		}()

		for {
			kind, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			received <- wsMessage{kind: kind, data: data}
		}
	}))
	t.Cleanup(srv.Close)

	return srv, received, outgoing
}

func waitFor(t *testing.T, ch <-chan wsMessage) wsMessage {
	t.Helper()
	select {
	case m := <-ch:
		return m
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for message")
		return wsMessage{}
	}
}

func TestNewSetEngineMsg(t *testing.T) {
	msg := NewSetEngineMsg(models.EngineConfig{Task: "detection", Model: "SSD MobileNet V2", EdgeTPU: true}, "test_data/ssd.tflite")

	assert.Equal(t, MsgSetEngine, msg.Type)
	assert.Equal(t, "detection", msg.Task)
	assert.Equal(t, "SSD MobileNet V2", msg.Model)
	assert.Equal(t, "test_data/ssd.tflite", msg.ModelPath)
	assert.True(t, msg.EdgeTPU)
	_, err := uuid.Parse(msg.RequestID)
	assert.NoError(t, err)
}

func TestRemoteDetectorURL(t *testing.T) {
	d := NewRemoteDetector("localhost:8080", 0, 0, zap.NewNop())
	assert.Equal(t, "ws://localhost:8080/ws", d.URL())
}

func TestSetEngineKeepsLatestOnly(t *testing.T) {
	d := NewRemoteDetector("localhost:8080", 0, 0, zap.NewNop())

	d.SetEngine(ControlMessage{Type: MsgSetEngine, Model: "a"})
	d.SetEngine(ControlMessage{Type: MsgSetEngine, Model: "b"})

	assert.Equal(t, "b", (<-d.control).Model)
	assert.Equal(t, "b", d.Engine().Model)
}

func TestRemoteDetectorSendsEngineOnConnect(t *testing.T) {
	srv, received, _ := fakeServer(t)

	d := NewRemoteDetector(strings.TrimPrefix(srv.URL, "http://"), 0, 0, zap.NewNop())
	d.SetEngine(NewSetEngineMsg(models.EngineConfig{Task: "classification", Model: "MobileNet V1"}, "m.tflite"))

	d.Start(context.Background())
	defer d.Stop()

	m := waitFor(t, received)
	require.Equal(t, websocket.TextMessage, m.kind)

	var msg ControlMessage
	require.NoError(t, json.Unmarshal(m.data, &msg))
	assert.Equal(t, MsgSetEngine, msg.Type)
	assert.Equal(t, "MobileNet V1", msg.Model)
}

func TestRemoteDetectorResendsEngineAfterReconnect(t *testing.T) {
	type connMessage struct {
		conn int32
		msg  ControlMessage
	}

	var conns atomic.Int32
	received := make(chan connMessage, 8)
	upgrader := websocket.Upgrader{}

	// Each connection is dropped after its first message.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		n := conns.Add(1)

		var msg ControlMessage
		if err := conn.ReadJSON(&msg); err != nil {
			return
		}
		received <- connMessage{conn: n, msg: msg}
	}))
	t.Cleanup(srv.Close)

	d := NewRemoteDetector(strings.TrimPrefix(srv.URL, "http://"), 0, 0, zap.NewNop())
	d.newBackOff = func() backoff.BackOff { return backoff.NewConstantBackOff(10 * time.Millisecond) }
	d.SetEngine(NewSetEngineMsg(models.EngineConfig{Task: "detection", Model: "SSD MobileNet V2"}, "ssd.tflite"))

	d.Start(context.Background())
	defer d.Stop()

	for want := int32(1); want <= 2; want++ {
		select {
		case m := <-received:
			assert.Equal(t, want, m.conn)
			assert.Equal(t, MsgSetEngine, m.msg.Type)
			assert.Equal(t, "SSD MobileNet V2", m.msg.Model)
		case <-time.After(5 * time.Second):
			t.Fatalf("engine not sent on connection %d", want)
		}
	}
}

func TestRemoteDetectorUploadsScaledJPEG(t *testing.T) {
	srv, received, _ := fakeServer(t)

	d := NewRemoteDetector(strings.TrimPrefix(srv.URL, "http://"), 32, 16, zap.NewNop())
	d.Start(context.Background())
	defer d.Stop()

	d.Submit(image.NewRGBA(image.Rect(0, 0, 128, 64)))

	m := waitFor(t, received)
	require.Equal(t, websocket.BinaryMessage, m.kind)

	img, err := jpeg.Decode(bytes.NewReader(m.data))
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 32, 16), img.Bounds())
}

func TestRemoteDetectorDispatchesServerMessages(t *testing.T) {
	srv, _, outgoing := fakeServer(t)

	d := NewRemoteDetector(strings.TrimPrefix(srv.URL, "http://"), 0, 0, zap.NewNop())
	d.Start(context.Background())
	defer d.Stop()

	outgoing <- ServerMessage{Type: MsgResults, Results: []models.DetectionResult{{Label: "cat", Confidence: 0.9}}}
	outgoing <- ServerMessage{Type: MsgEngineReady, InputWidth: 300, InputHeight: 300}

	select {
	case results := <-d.OutputResult:
		require.Len(t, results, 1)
		assert.Equal(t, "cat", results[0].Label)
	case <-time.After(5 * time.Second):
		t.Fatal("no results")
	}

	select {
	case ev := <-d.Events:
		assert.Equal(t, MsgEngineReady, ev.Type)
		assert.Equal(t, 300, ev.InputWidth)
	case <-time.After(5 * time.Second):
		t.Fatal("no event")
	}
}

func TestStopWithoutServer(t *testing.T) {
	d := NewRemoteDetector("127.0.0.1:1", 0, 0, zap.NewNop())
	d.Start(context.Background())

	done := make(chan struct{})
	go func() {
		d.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Stop did not return")
	}
}
