package camera

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"anemia-screen/internal/domain/entity"
)

var errBusy = errors.New("camera is busy")

// devicePath превращает индекс или путь устройства в путь к файлу устройства.
func devicePath(device string) string {
	device = strings.TrimSpace(device)
	if n, err := strconv.Atoi(device); err == nil {
		return fmt.Sprintf("/dev/video%d", n)
	}
	return device
}

// checkDevice проверяет устройство до открытия, чтобы различить причины отказа.
func checkDevice(device string) error {
	if strings.TrimSpace(device) == "" {
		return entity.NewCaptureFailure(entity.CauseNotFound, errors.New("no camera device configured"))
	}
	path := devicePath(device)
	if !strings.HasPrefix(path, "/") {
		// URL потока или имя устройства вне /dev проверит сам gocv.
		return nil
	}

	f, err := os.Open(path)
	switch {
	case err == nil:
		f.Close()
		return nil
	case errors.Is(err, os.ErrNotExist):
		return entity.NewCaptureFailure(entity.CauseNotFound, err)
	case errors.Is(err, os.ErrPermission):
		return entity.NewCaptureFailure(entity.CausePermissionDenied, err)
	default:
		return entity.NewCaptureFailure(entity.CauseOther, err)
	}
}
