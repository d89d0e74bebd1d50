package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"time"

	"anemia-screen/internal/domain/entity"
	"anemia-screen/internal/domain/port"
)

const (
	predictPath = "/predict"

	// DefaultTimeout общий предел на один запрос анализа.
	DefaultTimeout = 60 * time.Second

	maxResponseBytes = 1 << 20
	maxAssetBytes    = 20 << 20
)

// Client HTTP-клиент сервиса инференса.
type Client struct {
	baseURL    *url.URL
	timeout    time.Duration
	httpClient *http.Client
}

// NewClient создаёт клиента для baseURL. timeout <= 0 означает DefaultTimeout.
func NewClient(baseURL string, timeout time.Duration) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse backend url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("backend url must be http or https: %q", baseURL)
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		baseURL: u,
		timeout: timeout,
		// Таймаут задаётся контекстом, чтобы отличать его от прочих сетевых ошибок.
		httpClient: &http.Client{},
	}, nil
}

type predictResponse struct {
	Label         *string  `json:"label"`
	Confidence    *float64 `json:"confidence"`
	BoxedImageURL *string  `json:"boxed_image_url"`
	HeatmapURL    *string  `json:"heatmap_url"`
	Note          *string  `json:"note"`
}

type errorResponse struct {
	Detail json.RawMessage `json:"detail"`
}

// Analyze отправляет изображение multipart-запросом на /predict?explain=true.
func (c *Client) Analyze(ctx context.Context, img *entity.CandidateImage) (*entity.AnalysisResponse, error) {
	if img == nil {
		return nil, entity.NewIntakeRejection("No file provided")
	}

	body, contentType, err := multipartBody(img)
	if err != nil {
		return nil, fmt.Errorf("build request body: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.predictURL(), body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, classifyTransport(ctx, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, classifyTransport(ctx, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, entity.NewServerError(resp.StatusCode, parseDetail(data))
	}

	return decodePrediction(data)
}

// FetchAsset скачивает изображение по ссылке из ответа.
func (c *Client) FetchAsset(ctx context.Context, ref string) ([]byte, error) {
	target := c.AssetURL(ref)
	if target == "" {
		return nil, fmt.Errorf("invalid asset reference %q", ref)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, classifyTransport(ctx, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, entity.NewServerError(resp.StatusCode, "")
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxAssetBytes))
	if err != nil {
		return nil, classifyTransport(ctx, err)
	}
	return data, nil
}

// AssetURL превращает ссылку бэкенда в абсолютный URL.
// Для ссылок с чужой схемой (javascript:, data:) возвращает пустую строку.
func (c *Client) AssetURL(ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return ""
	}
	u, err := url.Parse(ref)
	if err != nil {
		return ""
	}
	resolved := c.baseURL.ResolveReference(u)
	if resolved.Scheme != "http" && resolved.Scheme != "https" {
		return ""
	}
	return resolved.String()
}

// BaseURL адрес бэкенда.
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

func (c *Client) predictURL() string {
	u := *c.baseURL
	u.Path = strings.TrimRight(u.Path, "/") + predictPath
	u.RawQuery = url.Values{"explain": {"true"}}.Encode()
	return u.String()
}

func multipartBody(img *entity.CandidateImage) (*bytes.Buffer, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, img.Filename))
	h.Set("Content-Type", img.MediaType)

	part, err := w.CreatePart(h)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(img.Data); err != nil {
		return nil, "", err
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &buf, w.FormDataContentType(), nil
}

// classifyTransport отделяет таймаут от прочих сетевых ошибок.
func classifyTransport(ctx context.Context, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return entity.NewTimeoutError(err)
	}
	return entity.NewTransportError(err)
}

// parseDetail достаёт строку detail. Всё остальное (списки валидации FastAPI, HTML) отбрасывается.
func parseDetail(data []byte) string {
	var er errorResponse
	if err := json.Unmarshal(data, &er); err != nil || len(er.Detail) == 0 {
		return ""
	}
	var detail string
	if err := json.Unmarshal(er.Detail, &detail); err != nil {
		return ""
	}
	return strings.TrimSpace(detail)
}

func decodePrediction(data []byte) (*entity.AnalysisResponse, error) {
	var pr predictResponse
	if err := json.Unmarshal(data, &pr); err != nil {
		return nil, entity.NewContractViolation(fmt.Errorf("decode response: %w", err))
	}
	if pr.Label == nil || strings.TrimSpace(*pr.Label) == "" {
		return nil, entity.NewContractViolation(errors.New("missing label"))
	}
	if pr.Confidence == nil {
		return nil, entity.NewContractViolation(errors.New("missing confidence"))
	}
	conf := *pr.Confidence
	if math.IsNaN(conf) || conf < 0 || conf > 100 {
		return nil, entity.NewContractViolation(fmt.Errorf("confidence out of range: %v", conf))
	}

	return &entity.AnalysisResponse{
		Label:         strings.TrimSpace(*pr.Label),
		Confidence:    conf,
		BoxedImageURL: deref(pr.BoxedImageURL),
		HeatmapURL:    deref(pr.HeatmapURL),
		Note:          deref(pr.Note),
	}, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// Проверка реализации интерфейса
var _ port.Analyzer = (*Client)(nil)
