package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/ent0n29/musebot/internal/protocol"
)

// Client talks to the Bot API: delivering outbound messages, fetching user
// uploads and managing the webhook registration.
type Client struct {
	token   string
	baseURL string
	httpc   *http.Client
	log     zerolog.Logger
}

func NewClient(token, baseURL string, log zerolog.Logger) *Client {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = "https://api.telegram.org"
	}
	return &Client{
		token:   token,
		baseURL: strings.TrimRight(baseURL, "/"),
		httpc:   &http.Client{Timeout: 60 * time.Second},
		log:     log.With().Str("component", "telegram").Logger(),
	}
}

type apiResponse struct {
	OK          bool            `json:"ok"`
	Description string          `json:"description"`
	Result      json.RawMessage `json:"result"`
}

// Send delivers one outbound message to its user.
func (c *Client) Send(ctx context.Context, msg protocol.Outbound) error {
	switch msg.Kind {
	case protocol.OutboundText:
		return c.sendMessage(ctx, msg)
	case protocol.OutboundAudio:
		return c.sendAudio(ctx, msg)
	case protocol.OutboundVideo:
		return c.sendVideo(ctx, msg)
	default:
		return fmt.Errorf("unknown outbound kind %q", msg.Kind)
	}
}

func (c *Client) sendMessage(ctx context.Context, msg protocol.Outbound) error {
	payload := map[string]any{
		"chat_id": msg.UserID,
		"text":    msg.Text,
	}
	if msg.WithMenu {
		payload["reply_markup"] = menuKeyboard()
	}
	_, err := c.callJSON(ctx, "sendMessage", payload)
	return err
}

func (c *Client) sendVideo(ctx context.Context, msg protocol.Outbound) error {
	payload := map[string]any{
		"chat_id": msg.UserID,
		"video":   msg.VideoRef,
	}
	if msg.Text != "" {
		payload["caption"] = msg.Text
	}
	if msg.WithMenu {
		payload["reply_markup"] = menuKeyboard()
	}
	_, err := c.callJSON(ctx, "sendVideo", payload)
	return err
}

func (c *Client) sendAudio(ctx context.Context, msg protocol.Outbound) error {
	f, err := os.Open(msg.AudioPath)
	if err != nil {
		return fmt.Errorf("open audio: %w", err)
	}
	defer f.Close()

	var body bytes.Buffer
	form := multipart.NewWriter(&body)
	if err := form.WriteField("chat_id", msg.UserID); err != nil {
		return err
	}
	if msg.Text != "" {
		if err := form.WriteField("caption", msg.Text); err != nil {
			return err
		}
	}
	part, err := form.CreateFormFile("audio", filepath.Base(msg.AudioPath))
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, f); err != nil {
		return fmt.Errorf("copy audio: %w", err)
	}
	if err := form.Close(); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.methodURL("sendAudio"), &body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", form.FormDataContentType())

	res, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("sendAudio: %w", err)
	}
	defer res.Body.Close()
	return checkAPIResponse("sendAudio", res)
}

// OpenFile resolves a file reference and streams its content. The caller
// owns the returned reader.
func (c *Client) OpenFile(ctx context.Context, fileID string) (io.ReadCloser, error) {
	result, err := c.callJSON(ctx, "getFile", map[string]any{"file_id": fileID})
	if err != nil {
		return nil, err
	}

	var file struct {
		FilePath string `json:"file_path"`
	}
	if err := json.Unmarshal(result, &file); err != nil {
		return nil, fmt.Errorf("decode getFile result: %w", err)
	}
	if file.FilePath == "" {
		return nil, fmt.Errorf("getFile returned no file_path")
	}

	downloadURL := fmt.Sprintf("%s/file/bot%s/%s", c.baseURL, c.token, file.FilePath)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, downloadURL, nil)
	if err != nil {
		return nil, err
	}
	res, err := c.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download file: %w", err)
	}
	if res.StatusCode != http.StatusOK {
		res.Body.Close()
		return nil, fmt.Errorf("download file status %d", res.StatusCode)
	}
	return res.Body, nil
}

// SetWebhook registers the delivery endpoint with the platform.
func (c *Client) SetWebhook(ctx context.Context, webhookURL string) error {
	if _, err := url.Parse(webhookURL); err != nil {
		return fmt.Errorf("invalid webhook url: %w", err)
	}
	_, err := c.callJSON(ctx, "setWebhook", map[string]any{"url": webhookURL})
	return err
}

// DeleteWebhook deregisters the delivery endpoint.
func (c *Client) DeleteWebhook(ctx context.Context) error {
	_, err := c.callJSON(ctx, "deleteWebhook", map[string]any{})
	return err
}

func (c *Client) callJSON(ctx context.Context, method string, payload map[string]any) (json.RawMessage, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.methodURL(method), bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := c.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", method, err)
	}
	defer res.Body.Close()

	var parsed apiResponse
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("%s: decode response: %w", method, err)
	}
	if !parsed.OK {
		return nil, fmt.Errorf("%s: api error: %s", method, parsed.Description)
	}
	return parsed.Result, nil
}

func (c *Client) methodURL(method string) string {
	return fmt.Sprintf("%s/bot%s/%s", c.baseURL, c.token, method)
}

func checkAPIResponse(method string, res *http.Response) error {
	var parsed apiResponse
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return fmt.Errorf("%s: decode response: %w", method, err)
	}
	if !parsed.OK {
		return fmt.Errorf("%s: api error: %s", method, parsed.Description)
	}
	return nil
}

func menuKeyboard() map[string]any {
	rows := make([][]map[string]string, 0, len(protocol.MenuLabels()))
	for _, label := range protocol.MenuLabels() {
		rows = append(rows, []map[string]string{{"text": label}})
	}
	return map[string]any{
		"keyboard":        rows,
		"resize_keyboard": true,
	}
}
