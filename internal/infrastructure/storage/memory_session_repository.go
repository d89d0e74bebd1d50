package storage

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/patrickmn/go-cache"

	"anemia-screen/internal/domain/entity"
	"anemia-screen/internal/domain/port"
)

// MemorySessionRepository in-memory хранилище сессий с истечением по простою
type MemorySessionRepository struct {
	sessions *cache.Cache
}

// NewMemorySessionRepository создаёт хранилище, сессии живут ttl с последнего обращения
func NewMemorySessionRepository(ttl time.Duration) *MemorySessionRepository {
	c := cache.New(ttl, ttl/2)
	// Сессия может держать открытую камеру, её нужно освободить при вытеснении.
	c.OnEvicted(func(id string, v interface{}) {
		if s, ok := v.(*entity.Session); ok {
			log.Printf("Session %s evicted", id)
			s.Close()
		}
	})
	return &MemorySessionRepository{sessions: c}
}

// Get возвращает сессию по ID, создаёт новую если не найдена
func (r *MemorySessionRepository) Get(ctx context.Context, id string, chatID int64) (*entity.Session, error) {
	if id == "" {
		return nil, errors.New("empty session id")
	}

	if v, ok := r.sessions.Get(id); ok {
		s := v.(*entity.Session)
		r.sessions.SetDefault(id, s)
		return s, nil
	}

	// Просроченная, но ещё не вычищенная сессия должна отдать ресурсы до замены.
	r.sessions.DeleteExpired()

	newSession := entity.NewSession(id, chatID)
	if err := r.sessions.Add(id, newSession, cache.DefaultExpiration); err != nil {
		if v, ok := r.sessions.Get(id); ok {
			return v.(*entity.Session), nil
		}
		return nil, err
	}

	return newSession, nil
}

// Save продлевает жизнь сессии
func (r *MemorySessionRepository) Save(ctx context.Context, session *entity.Session) error {
	if session == nil || session.ID == "" {
		return errors.New("invalid session")
	}
	r.sessions.SetDefault(session.ID, session)
	return nil
}

// Delete удаляет сессию и освобождает её ресурсы
func (r *MemorySessionRepository) Delete(ctx context.Context, id string) error {
	r.sessions.Delete(id)
	return nil
}

// Count количество живых сессий
func (r *MemorySessionRepository) Count() int {
	return r.sessions.ItemCount()
}

// Close освобождает все сессии
func (r *MemorySessionRepository) Close() {
	for id := range r.sessions.Items() {
		r.sessions.Delete(id)
	}
}

// Проверка реализации интерфейса
var _ port.SessionRepository = (*MemorySessionRepository)(nil)
