// Package bridge is the native side of the controller: it owns the capture
// pipeline and the detector connection and reports back through two callbacks.
package bridge

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/jpeg"
	"path/filepath"
	"sync"

	"coralcam/internal/config"
	"coralcam/internal/models"
	"coralcam/processing/capture"
	"coralcam/processing/detector"

	"go.uber.org/zap"
)

const frameQuality = 85

type Bridge struct {
	cfg  *config.Config
	log  *zap.Logger
	det  *detector.RemoteDetector
	proc *detector.Processor

	newStreamer func(*config.Config) (capture.VideoStreamer, error)

	mu       sync.Mutex
	onFrame  func(frame string)
	onLog    func(message string)
	streamer capture.VideoStreamer
	stop     chan struct{}

	closeOnce sync.Once
	done      chan struct{}
	watching  chan struct{}
}

func New(cfg *config.Config, det *detector.RemoteDetector, proc *detector.Processor, log *zap.Logger) *Bridge {
	b := &Bridge{
		cfg:         cfg,
		log:         log.Named("bridge"),
		det:         det,
		proc:        proc,
		newStreamer: capture.NewStreamer,
		done:        make(chan struct{}),
		watching:    make(chan struct{}),
	}
	go b.watchEvents()
	return b
}

// Close stops the video stream and detaches from detector events.
func (b *Bridge) Close() {
	b.closeOnce.Do(func() {
		close(b.done)
		b.StopVideoStream()
		<-b.watching
	})
}

func (b *Bridge) OnFrame(fn func(frame string)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onFrame = fn
}

func (b *Bridge) OnLog(fn func(message string)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onLog = fn
}

func (b *Bridge) emitLog(message string) {
	b.mu.Lock()
	fn := b.onLog
	b.mu.Unlock()
	if fn != nil {
		fn(message)
	}
}

func (b *Bridge) emitFrame(frame string) {
	b.mu.Lock()
	fn := b.onFrame
	b.mu.Unlock()
	if fn != nil {
		fn(frame)
	}
}

// StartVideoStream (re)starts capture. Failures are reported as log lines.
func (b *Bridge) StartVideoStream() {
	b.StopVideoStream()

	streamer, err := b.newStreamer(b.cfg)
	if err != nil {
		b.fail("cannot open video source", err)
		return
	}
	if err := streamer.Start(); err != nil {
		b.fail("cannot start video source", err)
		return
	}

	stop := make(chan struct{})
	b.mu.Lock()
	b.streamer = streamer
	b.stop = stop
	b.mu.Unlock()

	b.proc.Start(streamer)
	go b.pump(stop)

	b.log.Info("video stream started", zap.String("source", string(b.cfg.GetSource())))
	b.emitLog(fmt.Sprintf("Video stream started (%s)", b.cfg.GetSource()))
}

func (b *Bridge) StopVideoStream() {
	b.mu.Lock()
	streamer, stop := b.streamer, b.stop
	b.streamer, b.stop = nil, nil
	b.mu.Unlock()

	if stop == nil {
		return
	}
	close(stop)
	b.proc.Stop()
	streamer.Stop()
}

// SetEngine resolves the model file and forwards the switch to the detector.
func (b *Bridge) SetEngine(cfg models.EngineConfig) {
	path, err := models.ModelPath(b.cfg.Models.Dir, cfg.Model)
	if err != nil {
		b.fail("cannot switch engine", err)
		return
	}

	b.log.Info("switching engine",
		zap.String("task", cfg.Task),
		zap.String("model", cfg.Model),
		zap.String("path", path),
		zap.Bool("edgetpu", cfg.EdgeTPU))
	b.emitLog(fmt.Sprintf("Mode: %s, model: %s, path: %s", cfg.Task, cfg.Model, path))

	b.cfg.SetEngine(config.EngineDefaults{Task: cfg.Task, Model: cfg.Model, EdgeTPU: cfg.EdgeTPU})
	b.proc.SetEngine(models.ParseTask(cfg.Task), filepath.Base(path))
	b.det.SetEngine(detector.NewSetEngineMsg(cfg, path))
}

func (b *Bridge) fail(what string, err error) {
	b.log.Error(what, zap.Error(err))
	b.emitLog(fmt.Sprintf("%s: %v", what, err))
}

func (b *Bridge) pump(stop <-chan struct{}) {
	for {
		select {
		case frame := <-b.proc.OutImageStream:
			encoded, err := EncodeFrame(frame)
			if err != nil {
				b.log.Warn("frame encode failed", zap.Error(err))
				continue
			}
			b.emitFrame(encoded)
		case err := <-b.proc.ErrChan:
			b.fail("video stream stopped", err)
			return
		case <-stop:
			return
		}
	}
}

func (b *Bridge) watchEvents() {
	defer close(b.watching)
	for {
		select {
		case ev := <-b.det.Events:
			switch ev.Type {
			case detector.MsgEngineReady:
				b.proc.SetInputSize(ev.InputWidth, ev.InputHeight)
				b.emitLog(fmt.Sprintf("Engine ready (%dx%d)", ev.InputWidth, ev.InputHeight))
			case detector.MsgError:
				b.log.Warn("detector error", zap.String("message", ev.Message))
				b.emitLog("Detector error: " + ev.Message)
			}
		case <-b.done:
			return
		}
	}
}

// EncodeFrame turns a frame into base64 JPEG text.
func EncodeFrame(img image.Image) (string, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: frameQuality}); err != nil {
		return "", fmt.Errorf("encode frame: %w", err)
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}
