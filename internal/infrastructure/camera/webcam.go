//go:build gocv
// +build gocv

package camera

import (
	"context"
	"errors"
	"image"
	"strconv"
	"strings"
	"sync"

	"gocv.io/x/gocv"

	"anemia-screen/internal/domain/entity"
	"anemia-screen/internal/domain/port"
)

// Webcam камера через OpenCV. Поток эксклюзивный: пока он открыт, второй Open получает отказ.
type Webcam struct {
	Device string

	mu   sync.Mutex
	busy bool
}

// NewWebcam создаёт камеру для индекса или пути устройства.
func NewWebcam(device string) *Webcam {
	return &Webcam{Device: device}
}

// Available сообщает, настроено ли устройство.
func (w *Webcam) Available() bool {
	return strings.TrimSpace(w.Device) != ""
}

// Open открывает устройство и запрашивает разрешение c.Width x c.Height.
// Драйвер может выбрать другое разрешение, это допустимо.
func (w *Webcam) Open(ctx context.Context, c port.StreamConstraints) (port.MediaStream, error) {
	if err := ctx.Err(); err != nil {
		return nil, entity.NewCaptureFailure(entity.CauseOther, err)
	}
	if err := checkDevice(w.Device); err != nil {
		return nil, err
	}

	w.mu.Lock()
	if w.busy {
		w.mu.Unlock()
		return nil, entity.NewCaptureFailure(entity.CauseOther, errBusy)
	}
	w.busy = true
	w.mu.Unlock()

	vc, err := gocv.OpenVideoCapture(openArg(w.Device))
	if err != nil || !vc.IsOpened() {
		if vc != nil {
			vc.Close()
		}
		w.release()
		if err == nil {
			err = errors.New("device did not open")
		}
		return nil, entity.NewCaptureFailure(entity.CauseNotFound, err)
	}

	if c.Width > 0 && c.Height > 0 {
		vc.Set(gocv.VideoCaptureFrameWidth, float64(c.Width))
		vc.Set(gocv.VideoCaptureFrameHeight, float64(c.Height))
	}

	track := &webcamTrack{vc: vc, frame: gocv.NewMat(), onStop: w.release}
	return &webcamStream{track: track}, nil
}

func (w *Webcam) release() {
	w.mu.Lock()
	w.busy = false
	w.mu.Unlock()
}

// openArg gocv принимает int для индекса и string для пути или URL.
func openArg(device string) interface{} {
	if n, err := strconv.Atoi(strings.TrimSpace(device)); err == nil {
		return n
	}
	return device
}

type webcamTrack struct {
	mu      sync.Mutex
	vc      *gocv.VideoCapture
	frame   gocv.Mat
	stopped bool
	onStop  func()
}

func (t *webcamTrack) Kind() string { return "video" }

func (t *webcamTrack) Active() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return !t.stopped
}

// Stop закрывает устройство и освобождает кадр. Повторный вызов ничего не делает.
func (t *webcamTrack) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.stopped {
		return
	}
	t.stopped = true
	t.vc.Close()
	t.frame.Close()
	if t.onStop != nil {
		t.onStop()
	}
}

func (t *webcamTrack) read() (image.Image, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.stopped {
		return nil, entity.ErrNoActiveStream
	}
	if ok := t.vc.Read(&t.frame); !ok || t.frame.Empty() {
		return nil, errors.New("failed to read frame")
	}
	return t.frame.ToImage()
}

type webcamStream struct {
	track *webcamTrack
}

func (s *webcamStream) Tracks() []port.MediaTrack {
	return []port.MediaTrack{s.track}
}

func (s *webcamStream) ReadFrame() (image.Image, error) {
	return s.track.read()
}

var _ port.Camera = (*Webcam)(nil)
