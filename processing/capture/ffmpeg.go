package capture

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"io"
	"os/exec"
	"regexp"
	"runtime"
	"strconv"
	"sync"
	"time"
)

const (
	bytesPerPixel = 4
	standardFPS   = 30
)

// FFmpegStreamer decodes raw RGBA frames from an ffmpeg child process.
type FFmpegStreamer struct {
	stopOnce sync.Once

	args   []string
	width  int
	height int

	// pace > 0 reads one frame per tick (files); 0 reads as fast as the device delivers.
	pace time.Duration
	// dropWhenBusy discards frames nobody is ready for instead of blocking ffmpeg.
	dropWhenBusy bool

	cmd    *exec.Cmd
	stderr bytes.Buffer

	frameChan chan image.Image
	errChan   chan error
	stopChan  chan struct{}
}

func newFFmpegStreamer(args []string, width, height int) *FFmpegStreamer {
	return &FFmpegStreamer{
		args:      args,
		width:     width,
		height:    height,
		frameChan: make(chan image.Image, 10),
		errChan:   make(chan error, 1),
		stopChan:  make(chan struct{}),
	}
}

// NewWebcam captures from a v4l2 device, or a dshow device name on Windows.
func NewWebcam(device string, fps uint, width, height int) *FFmpegStreamer {
	s := newFFmpegStreamer(webcamArgs(runtime.GOOS, device, fps, width, height), width, height)
	s.dropWhenBusy = true
	return s
}

// NewLocalStreamer plays a video file at fps, scaled to width x height.
func NewLocalStreamer(path string, fps uint, width, height int) (*FFmpegStreamer, error) {
	if _, _, err := probeVideoDimensions(path); err != nil {
		return nil, fmt.Errorf("failed to probe video: %w", err)
	}

	if fps == 0 {
		fps = standardFPS
	}
	s := newFFmpegStreamer(localArgs(path, fps, width, height), width, height)
	s.pace = time.Second / time.Duration(fps)
	return s, nil
}

func webcamArgs(goos, device string, fps uint, width, height int) []string {
	input := []string{"-f", "v4l2", "-i", device}
	if goos == "windows" {
		input = []string{"-f", "dshow", "-i", "video=" + device}
	}
	return append(input, rawOutputArgs(fmt.Sprintf("fps=%d,scale=%d:%d", fps, width, height))...)
}

func localArgs(path string, fps uint, width, height int) []string {
	input := []string{"-i", path}
	return append(input, rawOutputArgs(fmt.Sprintf("fps=%d,scale=%d:%d:flags=neighbor", fps, width, height))...)
}

func rawOutputArgs(filter string) []string {
	return []string{
		"-vf", filter,
		"-f", "image2pipe",
		"-pix_fmt", "rgba",
		"-vcodec", "rawvideo",
		"-",
	}
}

func (s *FFmpegStreamer) Start() error {
	s.cmd = exec.Command("ffmpeg", s.args...)
	s.cmd.Stderr = &s.stderr

	stdout, err := s.cmd.StdoutPipe()
	if err != nil {
		return err
	}

	if err := s.cmd.Start(); err != nil {
		return fmt.Errorf("ffmpeg start error: %w. Details: %s", err, s.stderr.String())
	}

	go s.readLoop(stdout)

	return nil
}

func (s *FFmpegStreamer) readLoop(stdout io.Reader) {
	defer close(s.frameChan)
	defer close(s.errChan)
	defer s.reap()
	if c, ok := stdout.(io.Closer); ok {
		defer c.Close()
	}

	frameSize := s.width * s.height * bytesPerPixel
	buffer := make([]byte, frameSize)

	var tick <-chan time.Time
	if s.pace > 0 {
		ticker := time.NewTicker(s.pace)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-s.stopChan:
			return
		default:
		}

		if tick != nil {
			select {
			case <-s.stopChan:
				return
			case <-tick:
			}
		}

		if _, err := io.ReadFull(stdout, buffer); err != nil {
			select {
			case <-s.stopChan:
			default:
				if errors.Is(err, io.EOF) {
					s.errChan <- io.EOF
				} else {
					s.errChan <- fmt.Errorf("read error: %w", err)
				}
			}
			return
		}

		pixelData := make([]byte, len(buffer))
		copy(pixelData, buffer)

		img := &image.RGBA{
			Pix:    pixelData,
			Stride: s.width * bytesPerPixel,
			Rect:   image.Rect(0, 0, s.width, s.height),
		}

		if s.dropWhenBusy {
			select {
			case s.frameChan <- img:
			default:
			}
			continue
		}

		select {
		case s.frameChan <- img:
		case <-s.stopChan:
			return
		}
	}
}

func (s *FFmpegStreamer) kill() {
	if s.cmd != nil && s.cmd.Process != nil {
		s.cmd.Process.Kill()
	}
}

// reap is the only caller of Wait and runs on the readLoop goroutine.
func (s *FFmpegStreamer) reap() {
	s.kill()
	if s.cmd != nil && s.cmd.Process != nil {
		s.cmd.Wait()
	}
}

// Stop kills ffmpeg; readLoop notices the closed pipe and reaps the process.
func (s *FFmpegStreamer) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopChan)
		s.kill()
	})
}

func (s *FFmpegStreamer) FrameChan() <-chan image.Image { return s.frameChan }
func (s *FFmpegStreamer) ErrorChan() <-chan error       { return s.errChan }

type probeData struct {
	Streams []struct {
		Width  int `json:"width"`
		Height int `json:"height"`
	} `json:"streams"`
}

func probeVideoDimensions(path string) (int, int, error) {
	cmd := exec.Command("ffprobe",
		"-v", "error",
		"-select_streams", "v:0",
		"-show_entries", "stream=width,height",
		"-of", "json",
		path,
	)

	output, err := cmd.Output()
	if err != nil {
		return 0, 0, err
	}

	return parseProbe(output)
}

func parseProbe(output []byte) (int, int, error) {
	var data probeData
	if err := json.Unmarshal(output, &data); err != nil {
		return 0, 0, err
	}

	if len(data.Streams) == 0 {
		return 0, 0, errors.New("no video streams found")
	}

	return data.Streams[0].Width, data.Streams[0].Height, nil
}

var dshowDevice = regexp.MustCompile(`"([^"]+)"\s+\(video\)`)

// ListCameras returns the capture devices ffmpeg can open on this platform.
func ListCameras() ([]string, error) {
	if runtime.GOOS != "windows" {
		var cameras []string
		for i := 0; i < 4; i++ {
			cameras = append(cameras, "/dev/video"+strconv.Itoa(i))
		}
		return cameras, nil
	}

	cmd := exec.Command("ffmpeg", "-list_devices", "true", "-f", "dshow", "-i", "dummy")
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	// ffmpeg always exits non-zero here; the device list is on stderr.
	_ = cmd.Run()

	return parseDshowDevices(stderr.String()), nil
}

func parseDshowDevices(output string) []string {
	var cameras []string
	seen := make(map[string]bool)
	for _, m := range dshowDevice.FindAllStringSubmatch(output, -1) {
		name := m[1]
		if name != "dummy" && !seen[name] {
			cameras = append(cameras, name)
			seen[name] = true
		}
	}
	return cameras
}
