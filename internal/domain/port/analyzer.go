package port

import (
	"context"

	"anemia-screen/internal/domain/entity"
)

// Analyzer клиент сервиса инференса
type Analyzer interface {
	// Analyze отправляет изображение на /predict и возвращает проверенный ответ
	Analyze(ctx context.Context, img *entity.CandidateImage) (*entity.AnalysisResponse, error)

	// FetchAsset скачивает изображение по ссылке из ответа
	FetchAsset(ctx context.Context, ref string) ([]byte, error)

	// AssetURL превращает ссылку из ответа в абсолютный URL
	AssetURL(ref string) string
}
