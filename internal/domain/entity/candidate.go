package entity

import "time"

// CandidateImage изображение, выбранное или снятое пользователем и ещё не отправленное на анализ.
type CandidateImage struct {
	Data      []byte // содержимое файла
	MediaType string // заявленный MIME-тип
	Size      int64  // размер в байтах
	Filename  string // исходное имя файла
}

// NewCandidateImage создаёт кандидата из байтов, размер берётся из данных.
func NewCandidateImage(data []byte, mediaType, filename string) *CandidateImage {
	return &CandidateImage{
		Data:      data,
		MediaType: mediaType,
		Size:      int64(len(data)),
		Filename:  filename,
	}
}

// CaptureFilename возвращает синтетическое имя для снимка с камеры.
func CaptureFilename(at time.Time) string {
	return "capture-" + formatMillis(at) + ".jpg"
}
