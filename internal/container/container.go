package container

import (
	app "anemia-screen/internal/application"
	"anemia-screen/internal/domain/port"
)

type Container struct {
	SessionService  *app.SessionService
	AnalysisService *app.AnalysisService
	CaptureService  *app.CaptureService
	Renderer        *app.Renderer
	Analyzer        port.Analyzer
}

// Options параметры сборки сервисов.
type Options struct {
	MaxUploadBytes int64
	CameraWidth    int
	CameraHeight   int
}

func New(sessions port.SessionRepository, analyzer port.Analyzer, camera port.Camera, recorder port.ScreeningRecorder, opts Options) *Container {
	validator := app.NewFileValidator(opts.MaxUploadBytes)
	sessionService := app.NewSessionService(sessions, validator, recorder)
	analysisService := app.NewAnalysisService(sessionService, analyzer, recorder)
	captureService := app.NewCaptureService(camera, sessionService, recorder, opts.CameraWidth, opts.CameraHeight)

	var assetURL func(string) string
	if analyzer != nil {
		assetURL = analyzer.AssetURL
	}

	return &Container{
		SessionService:  sessionService,
		AnalysisService: analysisService,
		CaptureService:  captureService,
		Renderer:        app.NewRenderer(assetURL),
		Analyzer:        analyzer,
	}
}
