package telegram

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/k3a/html2text"
	"github.com/stretchr/testify/require"

	"anemia-screen/internal/api/web"
	app "anemia-screen/internal/application"
	"anemia-screen/internal/container"
	"anemia-screen/internal/domain/entity"
)

func TestSessionID(t *testing.T) {
	require.Equal(t, "tg:42", sessionID(42))
}

func TestPhotoCandidate(t *testing.T) {
	at := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	c := photoCandidate([]byte{1, 2, 3}, at)

	require.Equal(t, "photo-1767261600000.jpg", c.Filename)
	require.Equal(t, "image/jpeg", c.MediaType)
	require.EqualValues(t, 3, c.Size)
	require.True(t, app.NewFileValidator(0).Validate(c).Accepted)
}

func TestDocumentCandidate_GoesThroughSameIntake(t *testing.T) {
	doc := &tgbotapi.Document{FileName: "scan.pdf", MimeType: "application/pdf"}
	c := documentCandidate(doc, []byte("%PDF"))

	res := app.NewFileValidator(0).Validate(c)
	require.False(t, res.Accepted)
	require.Equal(t, "Invalid file type", res.Reason)
}

func TestResultText(t *testing.T) {
	r := app.NewRenderer(nil)
	entry := entity.NewLogEntry(entity.AnalysisResponse{Label: "ANEMIC", Confidence: 87, Note: "Pale conjunctiva"}, time.Now())

	text := resultText(r.Result(entry))
	require.Contains(t, text, "🔴 ANEMIC")
	require.Contains(t, text, "Confidence: 87.00%")
	require.Contains(t, text, "Risk index: 0.87 (87%)")
	require.Contains(t, text, "Pale conjunctiva")

	entry = entity.NewLogEntry(entity.AnalysisResponse{Label: "NON-ANEMIC", Confidence: 92}, time.Now())
	text = resultText(r.Result(entry))
	require.Contains(t, text, "🟢 NON-ANEMIC")
	require.Contains(t, text, "Risk index: 0.08")
	require.NotContains(t, text, "📝")
}

func TestHistoryText(t *testing.T) {
	r := app.NewRenderer(nil)
	require.Equal(t, app.LogEmptyText, historyText(r.Log(nil)))

	at := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	entries := []entity.LogEntry{
		entity.NewLogEntry(entity.AnalysisResponse{Label: "NON-ANEMIC", Confidence: 60}, at.Add(time.Minute)),
		entity.NewLogEntry(entity.AnalysisResponse{Label: "ANEMIC", Confidence: 70}, at),
	}
	text := historyText(r.Log(entries))
	require.Contains(t, text, "1. ")
	require.Less(t, strings.Index(text, "NON-ANEMIC"), strings.Index(text, " ANEMIC "))
}

func TestReportAsPlainText(t *testing.T) {
	c := container.New(nil, nil, nil, nil, container.Options{})
	h, err := web.NewHandlers(c, 0, "")
	require.NoError(t, err)

	entry := entity.NewLogEntry(entity.AnalysisResponse{Label: "ANEMIC", Confidence: 87}, time.Now())
	page, err := h.RenderReport(c.Renderer.Result(entry))
	require.NoError(t, err)

	text := html2text.HTML2Text(page)
	require.Contains(t, text, "Result: ANEMIC")
	require.Contains(t, text, "Risk index: 0.87")
	require.Contains(t, text, "not a diagnosis")
}

func TestDispatch_SlowChatDoesNotBlockOthers(t *testing.T) {
	updates := make(chan tgbotapi.Update)
	release := make(chan struct{})
	fastDone := make(chan struct{})

	handle := func(ctx context.Context, msg *tgbotapi.Message) {
		if msg.Chat.ID == 1 {
			<-release
			return
		}
		close(fastDone)
	}

	finished := make(chan struct{})
	go func() {
		dispatch(context.Background(), updates, handle)
		close(finished)
	}()

	updates <- tgbotapi.Update{Message: &tgbotapi.Message{Chat: &tgbotapi.Chat{ID: 1}}}
	updates <- tgbotapi.Update{}
	updates <- tgbotapi.Update{Message: &tgbotapi.Message{Chat: &tgbotapi.Chat{ID: 2}}}

	select {
	case <-fastDone:
	case <-time.After(2 * time.Second):
		t.Fatal("second chat waited for the first one")
	}

	close(updates)
	select {
	case <-finished:
		t.Fatal("dispatch returned before the slow handler finished")
	case <-time.After(20 * time.Millisecond):
	}

	close(release)
	select {
	case <-finished:
	case <-time.After(2 * time.Second):
		t.Fatal("dispatch did not return")
	}
}

// endless бесконечный поток байтов
type endless struct{}

func (endless) Read(p []byte) (int, error) {
	for i := range p {
		p[i] = 0xFF
	}
	return len(p), nil
}

func TestReadLimited_StopsPastMax(t *testing.T) {
	const max = 1024

	data, err := readLimited(endless{}, max)
	require.NoError(t, err)
	require.Len(t, data, max+1)

	c := photoCandidate(data, time.Now())
	res := app.NewFileValidator(max).Validate(c)
	require.False(t, res.Accepted)
	require.Contains(t, res.Reason, "File too large")

	data, err = readLimited(bytes.NewReader(make([]byte, 10)), max)
	require.NoError(t, err)
	require.Len(t, data, 10)
}
