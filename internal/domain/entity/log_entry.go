package entity

import (
	"time"

	"github.com/google/uuid"
)

// LogEntry снимок одного результата анализа в журнале сессии.
// После создания не изменяется.
type LogEntry struct {
	ID        string
	CreatedAt time.Time
	Response  AnalysisResponse
	Risk      float64
}

// NewLogEntry фиксирует ответ и пересчитанный риск на момент at.
func NewLogEntry(resp AnalysisResponse, at time.Time) LogEntry {
	return LogEntry{
		ID:        uuid.New().String(),
		CreatedAt: at,
		Response:  resp,
		Risk:      resp.Risk(),
	}
}
