package telegram

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/k3a/html2text"

	app "anemia-screen/internal/application"
	"anemia-screen/internal/container"
	"anemia-screen/internal/domain/entity"
)

const (
	msgStart = `👋 Hi! I screen conjunctiva photos for signs of anemia.

📸 Send me a close-up photo of the lower eyelid and I will estimate the risk.

📋 Commands:
/check — start a new screening
/history — results of this session
/report — printable report of the latest result
/help — how to take a good photo
/cancel — clear this session`

	msgHelp = `ℹ️ How to use the bot:

1️⃣ Gently pull down the lower eyelid
2️⃣ Take a sharp photo in good light
3️⃣ Send it as a photo or as a JPEG/PNG/WebP file

You will get the result, the annotated image and the heatmap.

⚠️ This screening result is not a diagnosis.`

	msgAwaitingPhoto  = "📸 Send a photo of the lower eyelid."
	msgCancelled      = "❌ Session cleared. Send /check to start again."
	msgSendPhoto      = "📸 Please send a photo of the lower eyelid."
	msgUnknownCommand = "❓ Unknown command. Use /help."
	msgProcessing     = "⏳ Analyzing the image..."
	msgDownloadError  = "⚠️ Could not download the image. Please send it again."
	msgNoEntry        = "No such result. Use /history."
)

// ReportRenderer отдаёт HTML печатного отчёта по результату.
type ReportRenderer func(view app.ResultView) (string, error)

// Bot Telegram-интерфейс скрининга
type Bot struct {
	api    *tgbotapi.BotAPI
	app    *container.Container
	report ReportRenderer
	client *http.Client
}

// NewBot создаёт нового бота
func NewBot(token string, c *container.Container, report ReportRenderer) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}

	log.Printf("Authorized on account %s", api.Self.UserName)

	return &Bot{
		api:    api,
		app:    c,
		report: report,
		client: &http.Client{Timeout: time.Minute},
	}, nil
}

// Run обрабатывает сообщения до отмены ctx
func (b *Bot) Run(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)
	defer b.api.StopReceivingUpdates()

	dispatch(ctx, updates, b.handleMessage)
	return nil
}

// dispatch раздаёт сообщения по горутинам: анализ одного чата не должен
// задерживать остальные. Возвращается после завершения всех обработчиков.
func dispatch(ctx context.Context, updates tgbotapi.UpdatesChannel, handle func(context.Context, *tgbotapi.Message)) {
	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		select {
		case <-ctx.Done():
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			if update.Message == nil {
				continue
			}
			wg.Add(1)
			go func(msg *tgbotapi.Message) {
				defer wg.Done()
				handle(ctx, msg)
			}(update.Message)
		}
	}
}

func sessionID(userID int64) string {
	return "tg:" + strconv.FormatInt(userID, 10)
}

// handleMessage обрабатывает входящее сообщение
func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg.From == nil {
		return
	}

	session, err := b.app.SessionService.Get(ctx, sessionID(msg.From.ID), msg.Chat.ID)
	if err != nil {
		log.Printf("Error getting session: %v", err)
		return
	}

	if msg.IsCommand() {
		b.handleCommand(ctx, msg, session)
		return
	}

	if len(msg.Photo) > 0 || msg.Document != nil {
		b.handleImage(ctx, msg, session)
		return
	}

	b.sendMessage(msg.Chat.ID, msgSendPhoto)
}

// handleCommand обрабатывает команды бота
func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message, session *entity.Session) {
	switch msg.Command() {
	case "start":
		b.sendMessage(msg.Chat.ID, msgStart)

	case "help":
		b.sendMessage(msg.Chat.ID, msgHelp)

	case "check":
		b.sendMessage(msg.Chat.ID, msgAwaitingPhoto)

	case "history":
		b.sendMessage(msg.Chat.ID, historyText(b.app.Renderer.Log(session.View().Entries)))

	case "report":
		b.handleReport(msg, session)

	case "cancel":
		if err := b.app.SessionService.End(ctx, session.ID); err != nil {
			log.Printf("Error ending session: %v", err)
		}
		b.sendMessage(msg.Chat.ID, msgCancelled)

	default:
		b.sendMessage(msg.Chat.ID, msgUnknownCommand)
	}
}

// handleImage проводит фото или файл через общий приём и анализ
func (b *Bot) handleImage(ctx context.Context, msg *tgbotapi.Message, session *entity.Session) {
	var (
		fileID string
		build  func(data []byte) *entity.CandidateImage
	)
	if len(msg.Photo) > 0 {
		// Берём файл с максимальным разрешением
		photo := msg.Photo[len(msg.Photo)-1]
		fileID = photo.FileID
		at := msg.Time()
		build = func(data []byte) *entity.CandidateImage { return photoCandidate(data, at) }
	} else {
		doc := msg.Document
		fileID = doc.FileID
		build = func(data []byte) *entity.CandidateImage { return documentCandidate(doc, data) }
	}

	if doc := msg.Document; doc != nil && int64(doc.FileSize) > b.app.SessionService.MaxUploadBytes() {
		// Слишком большой файл не скачиваем: отказ по размеру известен заранее.
		c := &entity.CandidateImage{MediaType: doc.MimeType, Filename: doc.FileName, Size: int64(doc.FileSize)}
		if err := b.app.SessionService.Intake(ctx, session, c, "telegram"); err != nil {
			b.sendMessage(msg.Chat.ID, "⚠️ "+entity.UserMessage(err))
		}
		return
	}

	data, err := b.downloadFile(ctx, fileID)
	if err != nil {
		log.Printf("Error downloading image: %v", err)
		b.sendMessage(msg.Chat.ID, msgDownloadError)
		return
	}

	c := build(data)
	if err := b.app.SessionService.Intake(ctx, session, c, "telegram"); err != nil {
		b.sendMessage(msg.Chat.ID, "⚠️ "+entity.UserMessage(err))
		return
	}

	b.sendMessage(msg.Chat.ID, msgProcessing)

	entry, err := b.app.AnalysisService.Analyze(ctx, session)
	if err != nil {
		b.sendMessage(msg.Chat.ID, "⚠️ "+entity.UserMessage(err)+"\nSend the photo again to retry.")
		return
	}

	view := b.app.Renderer.Result(*entry)
	b.sendMessage(msg.Chat.ID, resultText(view))
	b.sendAsset(ctx, msg.Chat.ID, entry.Response.BoxedImageURL, view.Annotated, "Annotated image")
	b.sendAsset(ctx, msg.Chat.ID, entry.Response.HeatmapURL, view.Heatmap, "Heatmap")
}

// handleReport отправляет отчёт текстом: /report без аргумента — последний результат, /report N — N-й с конца
func (b *Bot) handleReport(msg *tgbotapi.Message, session *entity.Session) {
	entries := session.View().Entries
	n := 1
	if arg := strings.TrimSpace(msg.CommandArguments()); arg != "" {
		v, err := strconv.Atoi(arg)
		if err != nil {
			b.sendMessage(msg.Chat.ID, msgNoEntry)
			return
		}
		n = v
	}
	if n < 1 || n > len(entries) {
		b.sendMessage(msg.Chat.ID, msgNoEntry)
		return
	}

	view := b.app.Renderer.Result(entries[n-1])
	if b.report == nil {
		b.sendMessage(msg.Chat.ID, resultText(view))
		return
	}

	page, err := b.report(view)
	if err != nil {
		log.Printf("Error rendering report: %v", err)
		b.sendMessage(msg.Chat.ID, resultText(view))
		return
	}
	b.sendMessage(msg.Chat.ID, html2text.HTML2Text(page))
}

// sendAsset пересылает картинку бэкенда или её заглушку
func (b *Bot) sendAsset(ctx context.Context, chatID int64, ref string, img app.ImageView, caption string) {
	if !img.Available {
		b.sendMessage(chatID, img.Placeholder)
		return
	}

	data, err := b.app.Analyzer.FetchAsset(ctx, ref)
	if err != nil {
		log.Printf("Error fetching %s: %v", caption, err)
		b.sendMessage(chatID, img.OnError)
		return
	}

	photo := tgbotapi.NewPhoto(chatID, tgbotapi.FileBytes{Name: caption + ".jpg", Bytes: data})
	photo.Caption = caption
	if _, err := b.api.Send(photo); err != nil {
		log.Printf("Error sending photo: %v", err)
	}
}

// downloadFile скачивает файл из Telegram
func (b *Bot) downloadFile(ctx context.Context, fileID string) ([]byte, error) {
	file, err := b.api.GetFile(tgbotapi.FileConfig{FileID: fileID})
	if err != nil {
		return nil, fmt.Errorf("get file: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, file.Link(b.api.Token), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download file: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download file: status %d", resp.StatusCode)
	}

	data, err := readLimited(resp.Body, b.app.SessionService.MaxUploadBytes())
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}

	return data, nil
}

// readLimited читает не больше max+1 байт: этого хватает, чтобы валидатор
// отклонил файл по размеру, не держа его целиком в памяти.
func readLimited(r io.Reader, max int64) ([]byte, error) {
	return io.ReadAll(io.LimitReader(r, max+1))
}

// sendMessage отправляет текстовое сообщение
func (b *Bot) sendMessage(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := b.api.Send(msg); err != nil {
		log.Printf("Error sending message: %v", err)
	}
}

// photoCandidate: Telegram пережимает фото в JPEG и не передаёт имя файла.
func photoCandidate(data []byte, at time.Time) *entity.CandidateImage {
	name := "photo-" + strconv.FormatInt(at.UnixMilli(), 10) + ".jpg"
	return entity.NewCandidateImage(data, "image/jpeg", name)
}

func documentCandidate(doc *tgbotapi.Document, data []byte) *entity.CandidateImage {
	return entity.NewCandidateImage(data, doc.MimeType, doc.FileName)
}

func resultText(v app.ResultView) string {
	mark := "🟢"
	if v.Tone == app.ToneAlert {
		mark = "🔴"
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%s %s\n", mark, v.Label)
	fmt.Fprintf(&sb, "Confidence: %s\n", v.ConfidenceText)
	fmt.Fprintf(&sb, "Risk index: %s (%d%%)", v.RiskText, v.RiskPercent)
	if v.Note != "" {
		fmt.Fprintf(&sb, "\n📝 %s", v.Note)
	}
	return sb.String()
}

func historyText(items []app.LogItemView) string {
	if len(items) == 0 {
		return app.LogEmptyText
	}

	var sb strings.Builder
	sb.WriteString("📋 Session history (newest first):")
	for i, it := range items {
		fmt.Fprintf(&sb, "\n%d. %s  %s  risk %s", i+1, it.Timestamp, it.Label, it.RiskText)
	}
	sb.WriteString("\n\nUse /report N for a printable report.")
	return sb.String()
}
