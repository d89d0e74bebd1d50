package app

import (
	"context"
	"log"

	"anemia-screen/internal/domain/entity"
	"anemia-screen/internal/domain/port"
)

type SessionService struct {
	repo      port.SessionRepository
	validator *FileValidator
	recorder  port.ScreeningRecorder
}

func NewSessionService(repo port.SessionRepository, validator *FileValidator, recorder port.ScreeningRecorder) *SessionService {
	if validator == nil {
		validator = NewFileValidator(0)
	}
	if recorder == nil {
		recorder = port.NopRecorder{}
	}
	return &SessionService{repo: repo, validator: validator, recorder: recorder}
}

func (s *SessionService) Get(ctx context.Context, id string, chatID int64) (*entity.Session, error) {
	return s.repo.Get(ctx, id, chatID)
}

// MaxUploadBytes предел размера, который пропустит приём файла.
func (s *SessionService) MaxUploadBytes() int64 {
	return s.validator.MaxBytes
}

// Intake проверяет кандидата и при успехе делает его текущим изображением сессии.
// Отказ возвращается как ошибка класса IntakeRejection, сеть не трогается.
func (s *SessionService) Intake(ctx context.Context, session *entity.Session, c *entity.CandidateImage, source string) error {
	res := s.validator.Validate(c)
	s.recorder.RecordIntake(source, res.Accepted)

	if !res.Accepted {
		log.Printf("Intake rejected (%s): %s", source, res.Reason)
		session.Reject(res.Reason)
		return res.Err()
	}

	session.Stage(c)
	return s.repo.Save(ctx, session)
}

// End завершает сессию и освобождает камеру.
func (s *SessionService) End(ctx context.Context, id string) error {
	return s.repo.Delete(ctx, id)
}
