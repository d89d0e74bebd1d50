package web

import (
	"bytes"
	"embed"
	"encoding/json"
	"errors"
	"html/template"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	app "anemia-screen/internal/application"
	"anemia-screen/internal/container"
	"anemia-screen/internal/domain/entity"
)

const (
	sessionCookie = "screen_session"

	// запас на заголовки multipart сверх предела файла
	multipartOverhead = 1 << 20

	defaultPreviewInterval = 100 * time.Millisecond
)

//go:embed templates/*.html
var templateFS embed.FS

// Handlers HTTP-обработчики веб-интерфейса.
type Handlers struct {
	app            *container.Container
	tmpl           *template.Template
	maxUploadBytes int64
	backendURL     string

	previewInterval time.Duration
}

// NewHandlers разбирает шаблоны и создаёт обработчики.
func NewHandlers(c *container.Container, maxUploadBytes int64, backendURL string) (*Handlers, error) {
	tmpl, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, err
	}
	if maxUploadBytes <= 0 {
		maxUploadBytes = app.DefaultMaxUploadBytes
	}
	return &Handlers{
		app:             c,
		tmpl:            tmpl,
		maxUploadBytes:  maxUploadBytes,
		backendURL:      backendURL,
		previewInterval: defaultPreviewInterval,
	}, nil
}

// session возвращает сессию по cookie, создаёт новую при необходимости.
func (h *Handlers) session(w http.ResponseWriter, r *http.Request) (*entity.Session, error) {
	id := ""
	if c, err := r.Cookie(sessionCookie); err == nil {
		if _, err := uuid.Parse(c.Value); err == nil {
			id = c.Value
		}
	}
	if id == "" {
		id = uuid.New().String()
		http.SetCookie(w, &http.Cookie{
			Name:     sessionCookie,
			Value:    id,
			Path:     "/",
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
		})
	}
	return h.app.SessionService.Get(r.Context(), id, 0)
}

func (h *Handlers) HomeHandler(w http.ResponseWriter, r *http.Request) {
	s, err := h.session(w, r)
	if err != nil {
		http.Error(w, "Error loading session", http.StatusInternalServerError)
		return
	}
	h.render(w, http.StatusOK, "page", h.page(r, s))
}

func (h *Handlers) IntakeHandler(w http.ResponseWriter, r *http.Request) {
	s, err := h.session(w, r)
	if err != nil {
		http.Error(w, "Error loading session", http.StatusInternalServerError)
		return
	}

	c, err := h.readCandidate(w, r)
	if err != nil {
		log.Printf("Error reading upload: %v", err)
		h.render(w, http.StatusBadRequest, "workspace", h.pageWithError(r, s, "Failed to read file"))
		return
	}

	status := http.StatusOK
	if err := h.app.SessionService.Intake(r.Context(), s, c, "upload"); err != nil {
		status = statusFor(err)
	}
	h.respond(w, r, status, s)
}

// readCandidate достаёт файл из формы. Отсутствие файла — не ошибка, а nil-кандидат.
func (h *Handlers) readCandidate(w http.ResponseWriter, r *http.Request) (*entity.CandidateImage, error) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes+multipartOverhead)

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			// Размер проверяется раньше типа, поэтому достаточно превысить предел.
			return &entity.CandidateImage{Size: h.maxUploadBytes + 1}, nil
		}
		if errors.Is(err, http.ErrNotMultipart) {
			return nil, nil
		}
		return nil, err
	}

	file, header, err := r.FormFile("file")
	if errors.Is(err, http.ErrMissingFile) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, err
	}
	return entity.NewCandidateImage(data, header.Header.Get("Content-Type"), header.Filename), nil
}

func (h *Handlers) AnalyzeHandler(w http.ResponseWriter, r *http.Request) {
	s, err := h.session(w, r)
	if err != nil {
		http.Error(w, "Error loading session", http.StatusInternalServerError)
		return
	}

	status := http.StatusOK
	if _, err := h.app.AnalysisService.Analyze(r.Context(), s); err != nil {
		status = statusFor(err)
		if errors.Is(err, entity.ErrAnalysisInProgress) || errors.Is(err, entity.ErrNothingStaged) {
			h.render(w, status, "workspace", h.pageWithError(r, s, entity.UserMessage(err)))
			return
		}
	}
	h.respond(w, r, status, s)
}

func (h *Handlers) LogHandler(w http.ResponseWriter, r *http.Request) {
	s, err := h.session(w, r)
	if err != nil {
		http.Error(w, "Error loading session", http.StatusInternalServerError)
		return
	}
	h.render(w, http.StatusOK, "log", h.page(r, s))
}

func (h *Handlers) EntryHandler(w http.ResponseWriter, r *http.Request) {
	view, ok := h.entryView(w, r)
	if !ok {
		return
	}
	h.render(w, http.StatusOK, "detail", view)
}

func (h *Handlers) ReportHandler(w http.ResponseWriter, r *http.Request) {
	view, ok := h.entryView(w, r)
	if !ok {
		return
	}
	h.render(w, http.StatusOK, "report", view)
}

func (h *Handlers) entryView(w http.ResponseWriter, r *http.Request) (app.ResultView, bool) {
	s, err := h.session(w, r)
	if err != nil {
		http.Error(w, "Error loading session", http.StatusInternalServerError)
		return app.ResultView{}, false
	}

	entry, ok := s.Entry(chi.URLParam(r, "id"))
	if !ok {
		http.NotFound(w, r)
		return app.ResultView{}, false
	}
	return h.app.Renderer.Result(entry), true
}

func (h *Handlers) HealthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"status":  "ok",
		"backend": h.backendURL,
		"capture": string(h.app.CaptureService.Probe(r.UserAgent())),
	})
}

func (h *Handlers) page(r *http.Request, s *entity.Session) app.PageView {
	return h.app.Renderer.Page(s.View(), h.app.CaptureService.Probe(r.UserAgent()))
}

func (h *Handlers) pageWithError(r *http.Request, s *entity.Session, msg string) app.PageView {
	p := h.page(r, s)
	p.Error = msg
	return p
}

// respond отдаёт фрагмент для htmx или перенаправляет обычную форму на главную.
func (h *Handlers) respond(w http.ResponseWriter, r *http.Request, status int, s *entity.Session) {
	if r.Header.Get("HX-Request") == "" {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	h.render(w, status, "workspace", h.page(r, s))
}

// render исполняет шаблон в буфер, чтобы пользователь не увидел половину страницы.
func (h *Handlers) render(w http.ResponseWriter, status int, name string, data any) {
	var buf bytes.Buffer
	if err := h.tmpl.ExecuteTemplate(&buf, name, data); err != nil {
		log.Printf("Error rendering template %s: %v", name, err)
		http.Error(w, "Error rendering template", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	w.Write(buf.Bytes())
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, entity.ErrAnalysisInProgress):
		return http.StatusConflict
	case errors.Is(err, entity.ErrNothingStaged), errors.Is(err, entity.ErrNoActiveStream), errors.Is(err, entity.ErrNoSnapshot):
		return http.StatusBadRequest
	}
	switch entity.KindOf(err) {
	case entity.KindIntakeRejection:
		return http.StatusUnprocessableEntity
	case entity.KindCaptureFailure:
		return http.StatusServiceUnavailable
	case entity.KindTimeout:
		return http.StatusGatewayTimeout
	case entity.KindTransport, entity.KindServer, entity.KindContract:
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// RenderReport отдаёт тело отчёта без разметки страницы, для других интерфейсов.
func (h *Handlers) RenderReport(view app.ResultView) (string, error) {
	var buf bytes.Buffer
	if err := h.tmpl.ExecuteTemplate(&buf, "report-body", view); err != nil {
		return "", err
	}
	return buf.String(), nil
}
