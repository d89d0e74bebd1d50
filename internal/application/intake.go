package app

import (
	"fmt"
	"strings"

	"anemia-screen/internal/domain/entity"
)

const (
	// DefaultMaxUploadBytes предел размера файла по умолчанию, 10 MiB.
	DefaultMaxUploadBytes int64 = 10 << 20

	reasonMissing   = "No file provided"
	reasonEmpty     = "File is empty"
	reasonType      = "Invalid file type"
	reasonExtension = "Invalid file extension"
)

// DefaultMediaTypes допустимые MIME-типы.
var DefaultMediaTypes = []string{"image/jpeg", "image/jpg", "image/png", "image/webp"}

// DefaultExtensions допустимые расширения.
var DefaultExtensions = []string{".jpg", ".jpeg", ".png", ".webp"}

// FileValidator проверяет кандидата до отправки. Проверка только для UX,
// сервер обязан проверять файл сам: тип и имя приходят от клиента.
type FileValidator struct {
	MaxBytes   int64
	MediaTypes []string
	Extensions []string
}

// NewFileValidator создаёт валидатор с пределом maxBytes и стандартными списками.
func NewFileValidator(maxBytes int64) *FileValidator {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxUploadBytes
	}
	return &FileValidator{
		MaxBytes:   maxBytes,
		MediaTypes: DefaultMediaTypes,
		Extensions: DefaultExtensions,
	}
}

// Validate проверяет кандидата в фиксированном порядке, первая ошибка побеждает.
func (v *FileValidator) Validate(c *entity.CandidateImage) entity.ValidationResult {
	if c == nil {
		return entity.Reject(reasonMissing)
	}
	if c.Size == 0 {
		return entity.Reject(reasonEmpty)
	}
	if c.Size > v.MaxBytes {
		return entity.Reject(fmt.Sprintf("File too large (max %s MB)", formatMB(v.MaxBytes)))
	}
	if !containsFold(v.MediaTypes, mediaType(c.MediaType)) {
		return entity.Reject(reasonType)
	}
	// Расширение проверяется независимо от типа: подменённый MIME с чужим расширением не пройдёт.
	name := strings.ToLower(c.Filename)
	ok := false
	for _, ext := range v.Extensions {
		if strings.HasSuffix(name, strings.ToLower(ext)) {
			ok = true
			break
		}
	}
	if !ok {
		return entity.Reject(reasonExtension)
	}
	return entity.Accept()
}

// mediaType отбрасывает параметры вида "; charset=...".
func mediaType(s string) string {
	if i := strings.IndexByte(s, ';'); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}

func containsFold(list []string, s string) bool {
	for _, item := range list {
		if strings.EqualFold(item, s) {
			return true
		}
	}
	return false
}

func formatMB(n int64) string {
	mb := float64(n) / (1 << 20)
	if mb == float64(int64(mb)) {
		return fmt.Sprintf("%d", int64(mb))
	}
	return fmt.Sprintf("%.1f", mb)
}
