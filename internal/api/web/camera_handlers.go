package web

import (
	"errors"
	"image"
	"log"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strconv"
	"time"

	app "anemia-screen/internal/application"
	"anemia-screen/internal/domain/entity"
)

func (h *Handlers) CameraOpenHandler(w http.ResponseWriter, r *http.Request) {
	s, err := h.session(w, r)
	if err != nil {
		http.Error(w, "Error loading session", http.StatusInternalServerError)
		return
	}

	if err := h.app.CaptureService.Open(r.Context(), s); err != nil {
		// Камера недоступна: показываем системный выбор файла вместо живого превью.
		p := h.pageWithError(r, s, entity.UserMessage(err))
		p.CaptureMode = app.CaptureNative
		h.render(w, statusFor(err), "workspace", p)
		return
	}
	h.respond(w, r, http.StatusOK, s)
}

func (h *Handlers) CameraSnapshotHandler(w http.ResponseWriter, r *http.Request) {
	h.cameraAction(w, r, h.app.CaptureService.Snapshot)
}

func (h *Handlers) CameraRetakeHandler(w http.ResponseWriter, r *http.Request) {
	h.cameraAction(w, r, h.app.CaptureService.Retake)
}

func (h *Handlers) CameraUseHandler(w http.ResponseWriter, r *http.Request) {
	s, err := h.session(w, r)
	if err != nil {
		http.Error(w, "Error loading session", http.StatusInternalServerError)
		return
	}

	status := http.StatusOK
	if _, err := h.app.CaptureService.Use(r.Context(), s); err != nil {
		status = statusFor(err)
		if entity.KindOf(err) != entity.KindIntakeRejection {
			h.render(w, status, "workspace", h.pageWithError(r, s, entity.UserMessage(err)))
			return
		}
	}
	h.respond(w, r, status, s)
}

func (h *Handlers) CameraCloseHandler(w http.ResponseWriter, r *http.Request) {
	s, err := h.session(w, r)
	if err != nil {
		http.Error(w, "Error loading session", http.StatusInternalServerError)
		return
	}
	h.app.CaptureService.Close(s)
	h.respond(w, r, http.StatusOK, s)
}

// CameraPreviewHandler отдаёт превью MJPEG-потоком (multipart/x-mixed-replace).
// Замороженный снимок уходит одной частью, живой поток идёт до закрытия камеры.
func (h *Handlers) CameraPreviewHandler(w http.ResponseWriter, r *http.Request) {
	s, err := h.session(w, r)
	if err != nil {
		http.Error(w, "Error loading session", http.StatusInternalServerError)
		return
	}

	frame, frozen, err := h.app.CaptureService.PreviewFrame(s)
	if errors.Is(err, entity.ErrNoActiveStream) {
		http.NotFound(w, r)
		return
	}
	if err != nil {
		log.Printf("Error reading camera frame: %v", err)
		http.Error(w, "Error reading camera frame", http.StatusServiceUnavailable)
		return
	}

	mw := multipart.NewWriter(w)
	w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary="+mw.Boundary())
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	defer mw.Close()

	flusher, _ := w.(http.Flusher)
	ticker := time.NewTicker(h.previewInterval)
	defer ticker.Stop()

	for {
		if err := writeFrame(mw, frame); err != nil {
			log.Printf("Error writing preview frame: %v", err)
			return
		}
		if flusher != nil {
			flusher.Flush()
		}
		if frozen {
			return
		}

		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
		}

		frame, frozen, err = h.app.CaptureService.PreviewFrame(s)
		if errors.Is(err, entity.ErrNoActiveStream) {
			return
		}
		if err != nil {
			log.Printf("Error reading camera frame: %v", err)
			return
		}
	}
}

func writeFrame(mw *multipart.Writer, frame image.Image) error {
	data, err := app.EncodeJPEG(frame, app.JPEGQuality)
	if err != nil {
		return err
	}

	hdr := make(textproto.MIMEHeader)
	hdr.Set("Content-Type", "image/jpeg")
	hdr.Set("Content-Length", strconv.Itoa(len(data)))
	part, err := mw.CreatePart(hdr)
	if err != nil {
		return err
	}
	_, err = part.Write(data)
	return err
}

func (h *Handlers) cameraAction(w http.ResponseWriter, r *http.Request, action func(*entity.Session) error) {
	s, err := h.session(w, r)
	if err != nil {
		http.Error(w, "Error loading session", http.StatusInternalServerError)
		return
	}
	if err := action(s); err != nil {
		h.render(w, statusFor(err), "workspace", h.pageWithError(r, s, entity.UserMessage(err)))
		return
	}
	h.respond(w, r, http.StatusOK, s)
}
