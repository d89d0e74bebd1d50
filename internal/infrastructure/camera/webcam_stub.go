//go:build !gocv
// +build !gocv

package camera

import (
	"context"
	"errors"

	"anemia-screen/internal/domain/entity"
	"anemia-screen/internal/domain/port"
)

// Webcam заглушка без OpenCV: живой захват недоступен.
type Webcam struct {
	Device string
}

// NewWebcam создаёт камеру-заглушку.
func NewWebcam(device string) *Webcam {
	return &Webcam{Device: device}
}

// Available всегда false без тега gocv.
func (w *Webcam) Available() bool {
	return false
}

// Open возвращает ошибку, если сборка без тега gocv.
func (w *Webcam) Open(ctx context.Context, c port.StreamConstraints) (port.MediaStream, error) {
	_ = ctx
	_ = c
	return nil, entity.NewCaptureFailure(entity.CauseNotFound, errors.New("gocv build tag is not enabled"))
}

var _ port.Camera = (*Webcam)(nil)
