package capture

import (
	"errors"
	"fmt"
	"image"

	"coralcam/internal/config"
)

var ErrUnknownSource = errors.New("unknown video source")

type VideoStreamer interface {
	Start() error
	Stop()
	FrameChan() <-chan image.Image
	ErrorChan() <-chan error
}

func NewStreamer(cfg *config.Config) (VideoStreamer, error) {
	switch src := cfg.GetSource(); src {
	case config.SourceWebcam:
		return NewWebcam(cfg.Webcam.DeviceID, cfg.GetFPS(), cfg.GetWidth(), cfg.GetHeight()), nil
	case config.SourceLocal:
		return NewLocalStreamer(cfg.Local.Path, cfg.GetFPS(), cfg.GetWidth(), cfg.GetHeight())
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownSource, src)
	}
}
