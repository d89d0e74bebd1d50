package entity

import (
	"sync"
	"time"
)

// SessionState состояние сценария проверки в сессии.
type SessionState string

const (
	StateIdle      SessionState = "idle"      // изображение не выбрано
	StateStaged    SessionState = "staged"    // изображение принято и ждёт анализа
	StateAnalyzing SessionState = "analyzing" // запрос к бэкенду в полёте
	StateDone      SessionState = "done"      // последний анализ успешен
	StateFailed    SessionState = "failed"    // последний анализ завершился ошибкой
)

// MediaHandle активный видеопоток, который сессия обязана освободить.
type MediaHandle interface {
	Release()
}

// Session состояние одного пользователя: подготовленный кандидат,
// открытый поток камеры и журнал результатов.
type Session struct {
	ID     string
	ChatID int64 // Telegram Chat ID, 0 для веб-сессий

	mu        sync.Mutex
	state     SessionState
	candidate *CandidateImage
	stream    MediaHandle
	current   *LogEntry
	lastError string
	entries   []LogEntry // в порядке добавления
	touchedAt time.Time
}

// NewSession создаёт пустую сессию.
func NewSession(id string, chatID int64) *Session {
	return &Session{
		ID:        id,
		ChatID:    chatID,
		state:     StateIdle,
		touchedAt: time.Now(),
	}
}

// SessionView неизменяемый снимок сессии для отрисовки.
type SessionView struct {
	State      SessionState
	Candidate  *CandidateImage
	Current    *LogEntry
	LastError  string
	Entries    []LogEntry // новые первыми
	StreamOpen bool
	TouchedAt  time.Time
}

// View возвращает снимок состояния.
func (s *Session) View() SessionView {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := make([]LogEntry, len(s.entries))
	for i, e := range s.entries {
		entries[len(s.entries)-1-i] = e
	}

	var current *LogEntry
	if s.current != nil {
		c := *s.current
		current = &c
	}

	return SessionView{
		State:      s.state,
		Candidate:  s.candidate,
		Current:    current,
		LastError:  s.lastError,
		Entries:    entries,
		StreamOpen: s.stream != nil,
		TouchedAt:  s.touchedAt,
	}
}

// Stage заменяет подготовленное изображение целиком.
func (s *Session) Stage(c *CandidateImage) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.candidate = c
	s.lastError = ""
	if s.state != StateAnalyzing {
		s.state = StateStaged
	}
	s.touchedAt = time.Now()
}

// Reject фиксирует отказ приёма файла. Прежний кандидат снимается,
// чтобы анализ не ушёл на изображение, которое пользователь уже заменил.
func (s *Session) Reject(message string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.candidate = nil
	if s.state == StateStaged {
		s.state = StateIdle
	}
	s.lastError = message
	s.touchedAt = time.Now()
}

// BeginAnalysis занимает сессию под один запрос анализа.
func (s *Session) BeginAnalysis() (*CandidateImage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateAnalyzing {
		return nil, ErrAnalysisInProgress
	}
	if s.candidate == nil {
		return nil, ErrNothingStaged
	}
	s.state = StateAnalyzing
	s.lastError = ""
	s.touchedAt = time.Now()
	return s.candidate, nil
}

// FinishAnalysis записывает успешный результат в голову журнала.
func (s *Session) FinishAnalysis(entry LogEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = append(s.entries, entry)
	s.current = &entry
	s.state = StateDone
	s.touchedAt = time.Now()
}

// FailAnalysis освобождает сессию после ошибки и запоминает сообщение.
func (s *Session) FailAnalysis(message string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state = StateFailed
	s.lastError = message
	s.touchedAt = time.Now()
}

// Entry ищет запись журнала по ID.
func (s *Session) Entry(id string) (LogEntry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, e := range s.entries {
		if e.ID == id {
			return e, true
		}
	}
	return LogEntry{}, false
}

// Len количество записей журнала.
func (s *Session) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// AttachStream сохраняет открытый поток. Возвращает false, если поток уже есть.
func (s *Session) AttachStream(h MediaHandle) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stream != nil {
		return false
	}
	s.stream = h
	s.touchedAt = time.Now()
	return true
}

// Stream текущий поток или nil.
func (s *Session) Stream() MediaHandle {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stream
}

// DetachStream забирает поток из сессии. Освобождать его должен вызывающий.
func (s *Session) DetachStream() MediaHandle {
	s.mu.Lock()
	defer s.mu.Unlock()

	h := s.stream
	s.stream = nil
	return h
}

// Close освобождает всё, что держит сессия.
func (s *Session) Close() {
	if h := s.DetachStream(); h != nil {
		h.Release()
	}
}
