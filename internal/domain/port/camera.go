package port

import (
	"context"
	"image"
)

// StreamConstraints желаемые параметры видеопотока
type StreamConstraints struct {
	Width      int  // идеальная ширина
	Height     int  // идеальная высота
	FrontFacer bool // фронтальная камера
}

// MediaTrack одна дорожка потока
type MediaTrack interface {
	Kind() string
	Stop()
	Active() bool
}

// MediaStream открытый поток камеры
type MediaStream interface {
	// Tracks возвращает все дорожки потока
	Tracks() []MediaTrack

	// ReadFrame возвращает текущий кадр без зеркалирования
	ReadFrame() (image.Image, error)
}

// Camera источник живого видео
type Camera interface {
	// Available сообщает, есть ли вообще API живого захвата
	Available() bool

	// Open запрашивает эксклюзивный доступ к потоку.
	// Ошибки должны быть entity.ScreeningError с причиной захвата.
	Open(ctx context.Context, c StreamConstraints) (MediaStream, error)
}
