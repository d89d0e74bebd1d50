package port

import (
	"context"

	"anemia-screen/internal/domain/entity"
)

// SessionRepository интерфейс хранилища сессий
type SessionRepository interface {
	// Get возвращает сессию по ID, создаёт новую если не найдена
	Get(ctx context.Context, id string, chatID int64) (*entity.Session, error)

	// Save продлевает жизнь сессии
	Save(ctx context.Context, session *entity.Session) error

	// Delete удаляет сессию и освобождает её ресурсы
	Delete(ctx context.Context, id string) error
}
