package entity

import (
	"errors"
	"fmt"
)

// ErrorKind класс ошибки сценария проверки.
type ErrorKind string

const (
	KindIntakeRejection ErrorKind = "intake_rejection" // файл не прошёл локальную проверку
	KindCaptureFailure  ErrorKind = "capture_failure"  // камера недоступна
	KindTimeout         ErrorKind = "timeout"          // анализ не уложился в таймаут
	KindTransport       ErrorKind = "transport"        // сетевая ошибка
	KindServer          ErrorKind = "server"           // бэкенд ответил не 2xx
	KindContract        ErrorKind = "contract"         // 2xx без обязательных полей
)

// CaptureCause уточняет причину отказа камеры.
type CaptureCause string

const (
	CausePermissionDenied CaptureCause = "permission_denied"
	CauseNotFound         CaptureCause = "not_found"
	CauseOther            CaptureCause = "other"
)

var (
	// ErrAnalysisInProgress анализ уже выполняется в этой сессии.
	ErrAnalysisInProgress = errors.New("analysis already in progress")
	// ErrNothingStaged нет подготовленного изображения.
	ErrNothingStaged = errors.New("no image staged")
	// ErrNoActiveStream живой захват не открыт.
	ErrNoActiveStream = errors.New("camera is not open")
	// ErrNoSnapshot снимок ещё не сделан.
	ErrNoSnapshot = errors.New("no snapshot captured")
)

const (
	msgTimeout   = "Analysis timed out. Please try again."
	msgTransport = "Could not reach the analysis service. Please try again."
	msgContract  = "Invalid response from the analysis service."

	msgCameraDenied   = "Camera permission denied. Use the file picker instead."
	msgCameraNotFound = "No camera found. Use the file picker instead."
	msgCameraOther    = "Could not start the camera. Use the file picker instead."
)

// ScreeningError ошибка, которую можно показать пользователю.
// Message — единственная строка для UI, Err — внутренняя причина для логов.
type ScreeningError struct {
	Kind    ErrorKind
	Cause   CaptureCause
	Status  int
	Message string
	Err     error
}

func (e *ScreeningError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *ScreeningError) Unwrap() error {
	return e.Err
}

// NewIntakeRejection ошибка локальной проверки файла.
func NewIntakeRejection(reason string) *ScreeningError {
	return &ScreeningError{Kind: KindIntakeRejection, Message: reason}
}

// NewCaptureFailure ошибка доступа к камере с отдельным сообщением на каждую причину.
func NewCaptureFailure(cause CaptureCause, err error) *ScreeningError {
	msg := msgCameraOther
	switch cause {
	case CausePermissionDenied:
		msg = msgCameraDenied
	case CauseNotFound:
		msg = msgCameraNotFound
	default:
		cause = CauseOther
	}
	return &ScreeningError{Kind: KindCaptureFailure, Cause: cause, Message: msg, Err: err}
}

// NewTimeoutError анализ прерван по таймауту.
func NewTimeoutError(err error) *ScreeningError {
	return &ScreeningError{Kind: KindTimeout, Message: msgTimeout, Err: err}
}

// NewTransportError сетевая ошибка.
func NewTransportError(err error) *ScreeningError {
	return &ScreeningError{Kind: KindTransport, Message: msgTransport, Err: err}
}

// NewServerError ответ не 2xx. Если detail пуст, показывается код статуса.
func NewServerError(status int, detail string) *ScreeningError {
	msg := detail
	if msg == "" {
		msg = fmt.Sprintf("Server error %d", status)
	}
	return &ScreeningError{Kind: KindServer, Status: status, Message: msg}
}

// NewContractViolation ответ 2xx без обязательных полей.
func NewContractViolation(err error) *ScreeningError {
	return &ScreeningError{Kind: KindContract, Message: msgContract, Err: err}
}

// UserMessage возвращает текст для пользователя для любой ошибки.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var se *ScreeningError
	if errors.As(err, &se) {
		return se.Message
	}
	switch {
	case errors.Is(err, ErrAnalysisInProgress):
		return "Analysis is already running."
	case errors.Is(err, ErrNothingStaged):
		return "Choose an image first."
	case errors.Is(err, ErrNoActiveStream):
		return "Camera is not open."
	case errors.Is(err, ErrNoSnapshot):
		return "Take a photo first."
	}
	return "Something went wrong. Please try again."
}

// KindOf возвращает класс ошибки или пустую строку.
func KindOf(err error) ErrorKind {
	var se *ScreeningError
	if errors.As(err, &se) {
		return se.Kind
	}
	return ""
}
