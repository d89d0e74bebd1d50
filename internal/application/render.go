package app

import (
	"fmt"
	"math"
	"net/url"
	"strconv"
	"time"

	"anemia-screen/internal/domain/entity"
)

// Tone цветовая схема результата.
type Tone string

const (
	ToneAlert Tone = "alert"
	ToneSafe  Tone = "safe"

	HeatmapUnavailable = "Heatmap not available"
	HeatmapLoadFailed  = "Heatmap failed to load"
	ImageUnavailable   = "Image not available"
	ImageLoadFailed    = "Image failed to load"
	LogEmptyText       = "No analyses yet"
)

// ImageView ссылка на изображение с запасным текстом.
// Если Available == false, показывается Placeholder; OnError — если картинка не загрузилась.
type ImageView struct {
	Available   bool
	Src         string
	Placeholder string
	OnError     string
}

// ResultView всё, что нужно для отрисовки одного результата.
type ResultView struct {
	EntryID        string
	Label          string
	Positive       bool
	Tone           Tone
	Confidence     float64
	ConfidenceText string
	Risk           float64
	RiskText       string
	RiskPercent    int
	Note           string
	Annotated      ImageView
	Heatmap        ImageView
	CreatedAt      time.Time
	Timestamp      string
}

// ControlView состояние кнопки анализа.
type ControlView struct {
	Enabled bool
	Label   string
}

// CandidateView подготовленное изображение.
type CandidateView struct {
	Filename  string
	MediaType string
	SizeText  string
}

// LogItemView строка журнала.
type LogItemView struct {
	EntryID   string
	Label     string
	Tone      Tone
	RiskText  string
	Timestamp string
}

// PageView полное состояние страницы.
type PageView struct {
	State       entity.SessionState
	Candidate   *CandidateView
	Result      *ResultView
	Error       string
	Analyze     ControlView
	Log         []LogItemView
	LogEmpty    bool
	EmptyText   string
	CaptureMode CaptureMode
	CameraOpen  bool
	PreviewKey  string // новый URL превью на каждую отрисовку, иначе браузер берёт старый кадр из памяти
}

// Renderer переводит состояние в инструкции отрисовки. Сам ничего не рисует.
type Renderer struct {
	assetURL func(ref string) string
	now      func() time.Time
}

// NewRenderer создаёт рендерер. assetURL превращает ссылку бэкенда в абсолютный URL,
// пустая строка означает, что ссылка непригодна.
func NewRenderer(assetURL func(ref string) string) *Renderer {
	if assetURL == nil {
		assetURL = func(ref string) string { return ref }
	}
	return &Renderer{assetURL: assetURL, now: time.Now}
}

// Result строит вид результата. Риск всегда пересчитывается из метки и уверенности.
func (r *Renderer) Result(e entity.LogEntry) ResultView {
	resp := e.Response
	risk := entity.Risk(resp.Label, resp.Confidence)
	positive := entity.IsPositive(resp.Label)
	at := r.now()

	tone := ToneSafe
	if positive {
		tone = ToneAlert
	}

	v := ResultView{
		EntryID:        e.ID,
		Label:          resp.Label,
		Positive:       positive,
		Tone:           tone,
		Confidence:     resp.Confidence,
		ConfidenceText: fmt.Sprintf("%.2f%%", resp.Confidence),
		Risk:           risk,
		RiskText:       fmt.Sprintf("%.2f", risk),
		RiskPercent:    int(math.Round(risk * 100)),
		Note:           resp.Note,
		CreatedAt:      e.CreatedAt,
		Timestamp:      e.CreatedAt.Format("Jan 2, 2006 15:04:05"),
	}

	v.Annotated = r.image(resp.BoxedImageURL, at, ImageUnavailable, ImageLoadFailed)
	v.Heatmap = r.image(resp.HeatmapURL, at, HeatmapUnavailable, HeatmapLoadFailed)
	return v
}

func (r *Renderer) image(ref string, at time.Time, unavailable, failed string) ImageView {
	if ref == "" {
		return ImageView{Placeholder: unavailable}
	}
	src := CacheBust(r.assetURL(ref), at)
	if src == "" {
		return ImageView{Placeholder: unavailable}
	}
	return ImageView{Available: true, Src: src, Placeholder: unavailable, OnError: failed}
}

// Page строит вид всей страницы из снимка сессии.
func (r *Renderer) Page(s entity.SessionView, mode CaptureMode) PageView {
	p := PageView{
		State:       s.State,
		Error:       s.LastError,
		Analyze:     AnalyzeControl(s),
		LogEmpty:    len(s.Entries) == 0,
		EmptyText:   LogEmptyText,
		CaptureMode: mode,
		CameraOpen:  s.StreamOpen,
		PreviewKey:  strconv.FormatInt(r.now().UnixNano(), 36),
	}

	if s.Candidate != nil {
		p.Candidate = &CandidateView{
			Filename:  s.Candidate.Filename,
			MediaType: s.Candidate.MediaType,
			SizeText:  FormatFileSize(s.Candidate.Size),
		}
	}
	if s.Current != nil {
		res := r.Result(*s.Current)
		p.Result = &res
	}

	p.Log = r.Log(s.Entries)
	return p
}

// Log строит строки журнала в том же порядке, новые первыми.
func (r *Renderer) Log(entries []entity.LogEntry) []LogItemView {
	items := make([]LogItemView, 0, len(entries))
	for _, e := range entries {
		tone := ToneSafe
		if entity.IsPositive(e.Response.Label) {
			tone = ToneAlert
		}
		items = append(items, LogItemView{
			EntryID:   e.ID,
			Label:     e.Response.Label,
			Tone:      tone,
			RiskText:  fmt.Sprintf("%.2f", entity.Risk(e.Response.Label, e.Response.Confidence)),
			Timestamp: e.CreatedAt.Format("15:04:05"),
		})
	}
	return items
}

// AnalyzeControl состояние кнопки: выключена во время запроса, после ошибки — «повторить».
func AnalyzeControl(s entity.SessionView) ControlView {
	switch {
	case s.State == entity.StateAnalyzing:
		return ControlView{Enabled: false, Label: "Analyzing..."}
	case s.Candidate == nil:
		return ControlView{Enabled: false, Label: "Analyze"}
	case s.State == entity.StateFailed:
		return ControlView{Enabled: true, Label: "Retry analysis"}
	default:
		return ControlView{Enabled: true, Label: "Analyze"}
	}
}

// CacheBust добавляет к URL параметр t с текущим временем, чтобы не получить
// из кэша старый файл с тем же именем.
func CacheBust(raw string, at time.Time) string {
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	q := u.Query()
	q.Set("t", strconv.FormatInt(at.UnixMilli(), 10))
	u.RawQuery = q.Encode()
	return u.String()
}

// FormatFileSize человекочитаемый размер.
func FormatFileSize(size int64) string {
	const (
		KB = 1024
		MB = KB * 1024
		GB = MB * 1024
	)

	switch {
	case size >= GB:
		return fmt.Sprintf("%.2f GB", float64(size)/float64(GB))
	case size >= MB:
		return fmt.Sprintf("%.2f MB", float64(size)/float64(MB))
	case size >= KB:
		return fmt.Sprintf("%.2f KB", float64(size)/float64(KB))
	default:
		return fmt.Sprintf("%d B", size)
	}
}
