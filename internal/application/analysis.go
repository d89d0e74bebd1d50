package app

import (
	"context"
	"errors"
	"log"
	"time"

	"anemia-screen/internal/domain/entity"
	"anemia-screen/internal/domain/port"
)

const msgInterrupted = "Analysis was interrupted. Please try again."

// AnalysisService отправляет подготовленное изображение на анализ
// и пишет результат в журнал сессии.
type AnalysisService struct {
	sessions *SessionService
	analyzer port.Analyzer
	recorder port.ScreeningRecorder
	now      func() time.Time
}

// NewAnalysisService создаёт сервис анализа.
func NewAnalysisService(sessions *SessionService, analyzer port.Analyzer, recorder port.ScreeningRecorder) *AnalysisService {
	if recorder == nil {
		recorder = port.NopRecorder{}
	}
	return &AnalysisService{
		sessions: sessions,
		analyzer: analyzer,
		recorder: recorder,
		now:      time.Now,
	}
}

// Analyze выполняет ровно один запрос для сессии. Пока запрос в полёте,
// повторный вызов получает entity.ErrAnalysisInProgress.
func (s *AnalysisService) Analyze(ctx context.Context, session *entity.Session) (*entity.LogEntry, error) {
	if s.analyzer == nil {
		return nil, errors.New("analyzer is not configured")
	}

	img, err := session.BeginAnalysis()
	if err != nil {
		return nil, err
	}

	// Любой выход без результата должен вернуть кнопку анализа пользователю.
	finished := false
	defer func() {
		if !finished {
			session.FailAnalysis(msgInterrupted)
		}
	}()

	started := s.now()
	resp, err := s.analyzer.Analyze(ctx, img)
	elapsed := s.now().Sub(started)
	if err != nil {
		log.Printf("Analysis failed for session %s: %v", session.ID, err)
		s.recorder.RecordAnalysis(outcome(err), elapsed)
		session.FailAnalysis(entity.UserMessage(err))
		finished = true
		return nil, err
	}

	entry := entity.NewLogEntry(*resp, s.now())
	session.FinishAnalysis(entry)
	finished = true

	s.recorder.RecordAnalysis("success", elapsed)
	if s.sessions != nil {
		if err := s.sessions.repo.Save(ctx, session); err != nil {
			log.Printf("Error saving session %s: %v", session.ID, err)
		}
	}

	return &entry, nil
}

// SubmitImage принимает изображение и сразу анализирует его.
// Используется там, где выбор файла и запуск анализа — одно действие (Telegram).
func (s *AnalysisService) SubmitImage(ctx context.Context, session *entity.Session, c *entity.CandidateImage, source string) (*entity.LogEntry, error) {
	if err := s.sessions.Intake(ctx, session, c, source); err != nil {
		return nil, err
	}
	return s.Analyze(ctx, session)
}

func outcome(err error) string {
	if kind := entity.KindOf(err); kind != "" {
		return string(kind)
	}
	return "error"
}
