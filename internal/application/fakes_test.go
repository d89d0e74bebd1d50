package app

import (
	"context"
	"errors"
	"image"
	"image/color"
	"sync"

	"anemia-screen/internal/domain/entity"
	"anemia-screen/internal/domain/port"
)

type fakeAnalyzer struct {
	mu    sync.Mutex
	resp  *entity.AnalysisResponse
	err   error
	block chan struct{}
	calls int
}

func (f *fakeAnalyzer) Analyze(ctx context.Context, img *entity.CandidateImage) (*entity.AnalysisResponse, error) {
	f.mu.Lock()
	f.calls++
	block := f.block
	f.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, entity.NewTimeoutError(ctx.Err())
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	r := *f.resp
	return &r, nil
}

func (f *fakeAnalyzer) FetchAsset(ctx context.Context, ref string) ([]byte, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeAnalyzer) AssetURL(ref string) string {
	return "http://backend.test" + ref
}

type fakeTrack struct {
	mu      sync.Mutex
	stopped bool
}

func (t *fakeTrack) Kind() string { return "video" }

func (t *fakeTrack) Stop() {
	t.mu.Lock()
	t.stopped = true
	t.mu.Unlock()
}

func (t *fakeTrack) Active() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return !t.stopped
}

type fakeStream struct {
	tracks []*fakeTrack
	frame  image.Image
}

func (s *fakeStream) Tracks() []port.MediaTrack {
	out := make([]port.MediaTrack, len(s.tracks))
	for i, t := range s.tracks {
		out[i] = t
	}
	return out
}

func (s *fakeStream) ReadFrame() (image.Image, error) {
	return s.frame, nil
}

type fakeCamera struct {
	mu        sync.Mutex
	available bool
	openErr   error
	streams   []*fakeStream
	lastReq   port.StreamConstraints
}

func (c *fakeCamera) Available() bool { return c.available }

func (c *fakeCamera) Open(ctx context.Context, req port.StreamConstraints) (port.MediaStream, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.lastReq = req
	if c.openErr != nil {
		return nil, c.openErr
	}
	s := &fakeStream{
		tracks: []*fakeTrack{{}, {}},
		frame:  testFrame(),
	}
	c.streams = append(c.streams, s)
	return s, nil
}

// testFrame кадр 4x2: левая половина красная, правая синяя.
func testFrame() image.Image {
	img := image.NewRGBA(image.Rect(0, 0, 4, 2))
	for y := 0; y < 2; y++ {
		for x := 0; x < 4; x++ {
			c := color.RGBA{R: 255, A: 255}
			if x >= 2 {
				c = color.RGBA{B: 255, A: 255}
			}
			img.Set(x, y, c)
		}
	}
	return img
}

type memRepo struct {
	mu       sync.Mutex
	sessions map[string]*entity.Session
}

func newMemRepo() *memRepo {
	return &memRepo{sessions: make(map[string]*entity.Session)}
}

func (r *memRepo) Get(ctx context.Context, id string, chatID int64) (*entity.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[id]; ok {
		return s, nil
	}
	s := entity.NewSession(id, chatID)
	r.sessions[id] = s
	return s, nil
}

func (r *memRepo) Save(ctx context.Context, s *entity.Session) error { return nil }

func (r *memRepo) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	s := r.sessions[id]
	delete(r.sessions, id)
	r.mu.Unlock()
	if s != nil {
		s.Close()
	}
	return nil
}
