package web

import (
	"context"
	"image"
	"image/jpeg"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"anemia-screen/internal/container"
	"anemia-screen/internal/domain/port"
	"anemia-screen/internal/infrastructure/storage"
)

type stubTrack struct {
	mu      sync.Mutex
	stopped bool
}

func (t *stubTrack) Kind() string { return "video" }

func (t *stubTrack) Stop() {
	t.mu.Lock()
	t.stopped = true
	t.mu.Unlock()
}

func (t *stubTrack) Active() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return !t.stopped
}

type stubStream struct {
	track *stubTrack
}

func (s *stubStream) Tracks() []port.MediaTrack { return []port.MediaTrack{s.track} }

func (s *stubStream) ReadFrame() (image.Image, error) {
	return image.NewRGBA(image.Rect(0, 0, 8, 4)), nil
}

type stubCamera struct {
	mu     sync.Mutex
	tracks []*stubTrack
}

func (c *stubCamera) Available() bool { return true }

func (c *stubCamera) Open(ctx context.Context, req port.StreamConstraints) (port.MediaStream, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	tr := &stubTrack{}
	c.tracks = append(c.tracks, tr)
	return &stubStream{track: tr}, nil
}

func (c *stubCamera) opened() []*stubTrack {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*stubTrack(nil), c.tracks...)
}

// liveServer поднимает настоящий сервер: превью отдаётся потоком, httptest.Recorder его не дочитает.
type liveServer struct {
	t      *testing.T
	url    string
	client *http.Client
	camera *stubCamera
}

func newLiveServer(t *testing.T) *liveServer {
	repo := storage.NewMemorySessionRepository(time.Minute)
	t.Cleanup(repo.Close)

	cam := &stubCamera{}
	c := container.New(repo, &stubAnalyzer{}, cam, nil, container.Options{})
	h, err := NewHandlers(c, 0, "")
	require.NoError(t, err)
	h.previewInterval = 5 * time.Millisecond

	srv := httptest.NewServer(NewRouter(h, nil))
	t.Cleanup(srv.Close)

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)

	return &liveServer{
		t:      t,
		url:    srv.URL,
		client: &http.Client{Jar: jar, Timeout: 5 * time.Second},
		camera: cam,
	}
}

func (s *liveServer) post(path string) int {
	req, err := http.NewRequest(http.MethodPost, s.url+path, nil)
	require.NoError(s.t, err)
	req.Header.Set("HX-Request", "true")

	resp, err := s.client.Do(req)
	require.NoError(s.t, err)
	resp.Body.Close()
	return resp.StatusCode
}

func (s *liveServer) preview() (*multipart.Reader, io.Closer) {
	resp, err := s.client.Get(s.url + "/camera/preview.jpg")
	require.NoError(s.t, err)
	require.Equal(s.t, http.StatusOK, resp.StatusCode)

	mediaType, params, err := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	require.NoError(s.t, err)
	require.Equal(s.t, "multipart/x-mixed-replace", mediaType)
	return multipart.NewReader(resp.Body, params["boundary"]), resp.Body
}

func readJPEGPart(t *testing.T, mr *multipart.Reader) {
	part, err := mr.NextPart()
	require.NoError(t, err)
	require.Equal(t, "image/jpeg", part.Header.Get("Content-Type"))
	img, err := jpeg.Decode(part)
	require.NoError(t, err)
	require.Equal(t, 8, img.Bounds().Dx())
}

func drain(t *testing.T, mr *multipart.Reader) int {
	n := 0
	for {
		_, err := mr.NextPart()
		if err == io.EOF {
			return n
		}
		require.NoError(t, err)
		n++
	}
}

func TestCameraPreview_StreamsUntilClosed(t *testing.T) {
	s := newLiveServer(t)
	require.Equal(t, http.StatusOK, s.post("/camera/open"))

	mr, body := s.preview()
	defer body.Close()

	readJPEGPart(t, mr)
	readJPEGPart(t, mr)

	require.Equal(t, http.StatusOK, s.post("/camera/close"))
	drain(t, mr)

	tracks := s.camera.opened()
	require.Len(t, tracks, 1)
	require.False(t, tracks[0].Active())
}

func TestCameraPreview_SnapshotIsSinglePart(t *testing.T) {
	s := newLiveServer(t)
	require.Equal(t, http.StatusOK, s.post("/camera/open"))
	require.Equal(t, http.StatusOK, s.post("/camera/snapshot"))

	mr, body := s.preview()
	defer body.Close()

	readJPEGPart(t, mr)
	require.Zero(t, drain(t, mr))

	require.Equal(t, http.StatusOK, s.post("/camera/retake"))
	mr, body = s.preview()
	defer body.Close()
	readJPEGPart(t, mr)
	readJPEGPart(t, mr)

	require.Equal(t, http.StatusOK, s.post("/camera/close"))
}
