package entity

import (
	"math"
	"strconv"
	"strings"
	"time"
)

const (
	// LabelAnemic положительный класс классификатора.
	LabelAnemic = "ANEMIC"
	// LabelNonAnemic отрицательный класс, как его присылает бэкенд.
	LabelNonAnemic = "NON-ANEMIC"
)

// AnalysisResponse ответ сервиса инференса на /predict.
type AnalysisResponse struct {
	Label         string  // метка класса, приходит свободным текстом
	Confidence    float64 // уверенность в процентах, 0..100
	BoxedImageURL string  // ссылка на изображение с рамкой детектора
	HeatmapURL    string  // ссылка на Grad-CAM, пусто если не сгенерирован
	Note          string  // необязательное примечание
}

// IsPositive сообщает, относится ли метка к положительному классу.
// Любая нераспознанная метка считается отрицательной.
func IsPositive(label string) bool {
	return strings.TrimSpace(label) == LabelAnemic
}

// Risk считает индекс риска 0..1 по метке и уверенности.
// Значение с сервера никогда не используется.
func Risk(label string, confidence float64) float64 {
	if math.IsNaN(confidence) {
		return 0
	}
	c := math.Min(math.Max(confidence, 0), 100) / 100
	if IsPositive(label) {
		return c
	}
	return 1 - c
}

// Risk индекс риска для ответа.
func (r AnalysisResponse) Risk() float64 {
	return Risk(r.Label, r.Confidence)
}

// HasHeatmap сообщает, прислал ли бэкенд тепловую карту.
func (r AnalysisResponse) HasHeatmap() bool {
	return strings.TrimSpace(r.HeatmapURL) != ""
}

func formatMillis(at time.Time) string {
	return strconv.FormatInt(at.UnixMilli(), 10)
}
