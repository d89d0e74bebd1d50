package app

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/draw"
	"image/jpeg"
	"log"
	"regexp"
	"sync"
	"time"

	"anemia-screen/internal/domain/entity"
	"anemia-screen/internal/domain/port"
)

// CaptureMode способ получения снимка.
type CaptureMode string

const (
	CaptureNative CaptureMode = "native" // системный выбор файла / камера телефона
	CaptureLive   CaptureMode = "live"   // живое превью с камеры

	// JPEGQuality качество кодирования снимка с камеры.
	JPEGQuality = 92
)

var mobileUA = regexp.MustCompile(`(?i)android|webos|iphone|ipad|ipod|blackberry|iemobile|opera mini|mobile`)

// IsMobileUserAgent эвристика мобильного устройства по User-Agent.
func IsMobileUserAgent(ua string) bool {
	return mobileUA.MatchString(ua)
}

// CaptureService управляет живым захватом с камеры.
type CaptureService struct {
	camera      port.Camera
	sessions    *SessionService
	recorder    port.ScreeningRecorder
	constraints port.StreamConstraints
	now         func() time.Time
}

// NewCaptureService создаёт сервис. camera может быть nil — тогда доступен только системный выбор файла.
func NewCaptureService(camera port.Camera, sessions *SessionService, recorder port.ScreeningRecorder, width, height int) *CaptureService {
	if recorder == nil {
		recorder = port.NopRecorder{}
	}
	if width <= 0 || height <= 0 {
		width, height = 1280, 720
	}
	return &CaptureService{
		camera:      camera,
		sessions:    sessions,
		recorder:    recorder,
		constraints: port.StreamConstraints{Width: width, Height: height, FrontFacer: true},
		now:         time.Now,
	}
}

// Probe выбирает путь захвата для устройства.
func (s *CaptureService) Probe(userAgent string) CaptureMode {
	if IsMobileUserAgent(userAgent) || s.camera == nil || !s.camera.Available() {
		return CaptureNative
	}
	return CaptureLive
}

// Open запрашивает поток камеры и привязывает его к сессии.
// Повторный Open при открытом потоке ничего не делает.
func (s *CaptureService) Open(ctx context.Context, session *entity.Session) error {
	if session.Stream() != nil {
		return nil
	}
	if s.camera == nil || !s.camera.Available() {
		s.recorder.RecordCapture("unavailable")
		return entity.NewCaptureFailure(entity.CauseNotFound, nil)
	}

	stream, err := s.camera.Open(ctx, s.constraints)
	if err != nil {
		log.Printf("Camera open failed for session %s: %v", session.ID, err)
		var se *entity.ScreeningError
		if !errors.As(err, &se) || se.Kind != entity.KindCaptureFailure {
			se = entity.NewCaptureFailure(entity.CauseOther, err)
		}
		s.recorder.RecordCapture("open_" + string(se.Cause))
		return se
	}

	lc := &liveCapture{stream: stream}
	if !session.AttachStream(lc) {
		// Кто-то успел открыть поток раньше, лишний сразу закрываем.
		lc.Release()
		return nil
	}
	s.recorder.RecordCapture("open")
	return nil
}

// Preview возвращает текущий кадр в зеркальном виде либо замороженный снимок.
func (s *CaptureService) Preview(session *entity.Session) (image.Image, error) {
	img, _, err := s.PreviewFrame(session)
	return img, err
}

// PreviewFrame как Preview, но сообщает, что кадр заморожен снимком и меняться не будет.
func (s *CaptureService) PreviewFrame(session *entity.Session) (image.Image, bool, error) {
	lc, err := liveOf(session)
	if err != nil {
		return nil, false, err
	}
	return lc.preview()
}

// Snapshot замораживает текущий кадр.
func (s *CaptureService) Snapshot(session *entity.Session) error {
	lc, err := liveOf(session)
	if err != nil {
		return err
	}
	if err := lc.snapshot(); err != nil {
		return entity.NewCaptureFailure(entity.CauseOther, err)
	}
	s.recorder.RecordCapture("snapshot")
	return nil
}

// Retake сбрасывает снимок и возвращает живое превью без повторного запроса камеры.
func (s *CaptureService) Retake(session *entity.Session) error {
	lc, err := liveOf(session)
	if err != nil {
		return err
	}
	lc.retake()
	s.recorder.RecordCapture("retake")
	return nil
}

// Use кодирует снимок в JPEG, отдаёт его в общий приём файлов и закрывает камеру.
func (s *CaptureService) Use(ctx context.Context, session *entity.Session) (*entity.CandidateImage, error) {
	lc, err := liveOf(session)
	if err != nil {
		return nil, err
	}

	frame := lc.frozenFrame()
	if frame == nil {
		return nil, entity.ErrNoSnapshot
	}

	data, err := EncodeJPEG(frame, JPEGQuality)
	if err != nil {
		return nil, entity.NewCaptureFailure(entity.CauseOther, err)
	}

	c := entity.NewCandidateImage(data, "image/jpeg", entity.CaptureFilename(s.now()))
	if err := s.sessions.Intake(ctx, session, c, "camera"); err != nil {
		return nil, err
	}
	s.recorder.RecordCapture("use")
	s.Close(session)
	return c, nil
}

// Close останавливает все дорожки и отвязывает поток от сессии.
func (s *CaptureService) Close(session *entity.Session) {
	if h := session.DetachStream(); h != nil {
		h.Release()
		s.recorder.RecordCapture("close")
	}
}

func liveOf(session *entity.Session) (*liveCapture, error) {
	lc, ok := session.Stream().(*liveCapture)
	if !ok || lc == nil {
		return nil, entity.ErrNoActiveStream
	}
	return lc, nil
}

// liveCapture открытый поток и буфер снимка.
type liveCapture struct {
	mu       sync.Mutex
	stream   port.MediaStream
	frozen   image.Image
	released bool
}

func (l *liveCapture) preview() (image.Image, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.released {
		return nil, false, entity.ErrNoActiveStream
	}
	if l.frozen != nil {
		return l.frozen, true, nil
	}
	frame, err := l.stream.ReadFrame()
	if err != nil {
		return nil, false, err
	}
	return Mirror(frame), false, nil
}

func (l *liveCapture) snapshot() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.released {
		return entity.ErrNoActiveStream
	}
	frame, err := l.stream.ReadFrame()
	if err != nil {
		return err
	}
	l.frozen = Mirror(frame)
	return nil
}

func (l *liveCapture) retake() {
	l.mu.Lock()
	l.frozen = nil
	l.mu.Unlock()
}

func (l *liveCapture) frozenFrame() image.Image {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.frozen
}

// Release останавливает все дорожки потока. Повторный вызов безопасен.
func (l *liveCapture) Release() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.released {
		return
	}
	for _, track := range l.stream.Tracks() {
		track.Stop()
	}
	l.frozen = nil
	l.released = true
}

// Mirror отражает кадр по горизонтали, как в зеркале.
func Mirror(src image.Image) image.Image {
	b := src.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Src)

	w := b.Dx()
	for y := 0; y < b.Dy(); y++ {
		row := dst.Pix[y*dst.Stride : y*dst.Stride+w*4]
		for l, r := 0, w-1; l < r; l, r = l+1, r-1 {
			li, ri := l*4, r*4
			for k := 0; k < 4; k++ {
				row[li+k], row[ri+k] = row[ri+k], row[li+k]
			}
		}
	}
	return dst
}

// EncodeJPEG кодирует кадр в JPEG.
func EncodeJPEG(img image.Image, quality int) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
