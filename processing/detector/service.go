package detector

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/jpeg"
	"net/url"
	"sync"
	"time"

	"coralcam/internal/models"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"
	"github.com/nfnt/resize"
	"go.uber.org/zap"
)

const jpegQuality = 80

// RemoteDetector streams frames to the inference server and collects results.
type RemoteDetector struct {
	serverURL string
	log       *zap.Logger

	inputWidth  uint
	inputHeight uint

	InputFrames  chan image.Image
	OutputResult chan []models.DetectionResult
	Events       chan ServerMessage

	control chan ControlMessage

	engineMu sync.Mutex
	engine   *ControlMessage

	cancel context.CancelFunc
	done   chan struct{}

	newBackOff func() backoff.BackOff
}

func NewRemoteDetector(host string, inputWidth, inputHeight uint, log *zap.Logger) *RemoteDetector {
	u := url.URL{Scheme: "ws", Host: host, Path: "/ws"}

	return &RemoteDetector{
		serverURL:    u.String(),
		log:          log.Named("detector"),
		inputWidth:   inputWidth,
		inputHeight:  inputHeight,
		InputFrames:  make(chan image.Image, 5),
		OutputResult: make(chan []models.DetectionResult, 5),
		Events:       make(chan ServerMessage, 8),
		control:      make(chan ControlMessage, 1),
		newBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 500 * time.Millisecond
			b.MaxInterval = 10 * time.Second
			b.MaxElapsedTime = 0
			return b
		},
	}
}

func (d *RemoteDetector) URL() string {
	return d.serverURL
}

func (d *RemoteDetector) Start(ctx context.Context) {
	ctx, d.cancel = context.WithCancel(ctx)
	d.done = make(chan struct{})
	go func() {
		defer close(d.done)
		d.runLoop(ctx)
	}()
}

func (d *RemoteDetector) Stop() {
	if d.cancel == nil {
		return
	}
	d.cancel()
	<-d.done
}

// SetEngine queues an engine switch. Only the latest request is kept, and it
// is sent again on every reconnect.
func (d *RemoteDetector) SetEngine(msg ControlMessage) {
	d.engineMu.Lock()
	d.engine = &msg
	d.engineMu.Unlock()

	for {
		select {
		case d.control <- msg:
			return
		default:
		}
		select {
		case <-d.control:
		default:
		}
	}
}

// Engine returns the last requested engine, or nil before the first SetEngine.
func (d *RemoteDetector) Engine() *ControlMessage {
	d.engineMu.Lock()
	defer d.engineMu.Unlock()
	return d.engine
}

// Submit hands a frame to the uploader without blocking. Frames are dropped
// while the previous ones are still in flight.
func (d *RemoteDetector) Submit(img image.Image) {
	select {
	case d.InputFrames <- img:
	default:
	}
}

func (d *RemoteDetector) runLoop(ctx context.Context) {
	for {
		conn, err := d.connect(ctx)
		if err != nil {
			return
		}

		d.log.Info("connected to detection server", zap.String("url", d.serverURL))
		err = d.serve(ctx, conn)
		conn.Close()

		if ctx.Err() != nil {
			return
		}
		d.log.Warn("connection lost", zap.Error(err))
	}
}

func (d *RemoteDetector) connect(ctx context.Context) (*websocket.Conn, error) {
	var conn *websocket.Conn

	op := func() error {
		d.log.Debug("connecting to detector server", zap.String("url", d.serverURL))
		c, _, err := websocket.DefaultDialer.DialContext(ctx, d.serverURL, nil)
		if err != nil {
			return err
		}
		conn = c
		return nil
	}

	notify := func(err error, next time.Duration) {
		d.log.Warn("connection failed, retrying", zap.Error(err), zap.Duration("in", next))
	}

	if err := backoff.RetryNotify(op, backoff.WithContext(d.newBackOff(), ctx), notify); err != nil {
		return nil, err
	}
	return conn, nil
}

func (d *RemoteDetector) serve(ctx context.Context, conn *websocket.Conn) error {
	select {
	case <-d.control:
	default:
	}
	if msg := d.Engine(); msg != nil {
		if err := conn.WriteJSON(msg); err != nil {
			return fmt.Errorf("resend engine: %w", err)
		}
	}

	errChan := make(chan error, 2)
	connDone := make(chan struct{})
	defer close(connDone)

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-connDone:
				return
			case msg := <-d.control:
				if err := conn.WriteJSON(msg); err != nil {
					errChan <- err
					return
				}
			case img := <-d.InputFrames:
				data, err := d.encodeFrame(img)
				if err != nil {
					d.log.Warn("JPEG encode error", zap.Error(err))
					continue
				}
				if err := conn.WriteMessage(websocket.BinaryMessage, data); err != nil {
					errChan <- err
					return
				}
			}
		}
	}()

	go func() {
		for {
			_, message, err := conn.ReadMessage()
			if err != nil {
				errChan <- err
				return
			}
			d.dispatch(message)
		}
	}()

	select {
	case err := <-errChan:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *RemoteDetector) encodeFrame(img image.Image) ([]byte, error) {
	if d.inputWidth > 0 && d.inputHeight > 0 {
		img = resize.Resize(d.inputWidth, d.inputHeight, img, resize.Bilinear)
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (d *RemoteDetector) dispatch(message []byte) {
	var msg ServerMessage
	if err := json.Unmarshal(message, &msg); err != nil {
		d.log.Warn("JSON decode error", zap.Error(err))
		return
	}

	switch msg.Type {
	case MsgResults:
		select {
		case d.OutputResult <- msg.Results:
		default:
		}
	case MsgEngineReady, MsgError:
		select {
		case d.Events <- msg:
		default:
			d.log.Warn("event dropped", zap.String("type", msg.Type))
		}
	default:
		d.log.Debug("ignoring message", zap.String("type", msg.Type))
	}
}
