package ocr

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

const mistralEndpoint = "https://api.mistral.ai/v1/ocr"

type mistralPage struct {
	Index    int    `json:"index"`
	Markdown string `json:"markdown"`
}

type mistralResponse struct {
	Pages []mistralPage `json:"pages"`
}

// Mistral sends the rendered page to the hosted OCR API as a data URL.
// The lang argument is ignored; the model detects language itself.
type Mistral struct {
	APIKey   string
	Model    string
	Endpoint string
	Client   *http.Client
}

func (Mistral) Name() string { return "mistral" }

func (m Mistral) Check(context.Context) error {
	if strings.TrimSpace(m.APIKey) == "" {
		return fmt.Errorf("%w: missing MISTRAL_API_KEY", ErrUnavailable)
	}
	return nil
}

func (m Mistral) Recognize(ctx context.Context, imagePath, _ string) (string, error) {
	if err := m.Check(ctx); err != nil {
		return "", err
	}
	raw, err := os.ReadFile(imagePath)
	if err != nil {
		return "", err
	}
	mt := mime.TypeByExtension(strings.ToLower(filepath.Ext(imagePath)))
	if mt == "" {
		mt = "image/png"
	}
	model := m.Model
	if model == "" {
		model = "mistral-ocr-latest"
	}

	body := map[string]any{
		"model": model,
		"document": map[string]any{
			"type":      "image_url",
			"image_url": "data:" + mt + ";base64," + base64.StdEncoding.EncodeToString(raw),
		},
	}
	b, err := json.Marshal(body)
	if err != nil {
		return "", err
	}

	endpoint := m.Endpoint
	if endpoint == "" {
		endpoint = mistralEndpoint
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(b))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+m.APIKey)
	req.Header.Set("Content-Type", "application/json")

	client := m.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return "", fmt.Errorf("%w: mistral: %v", ErrTimeout, err)
		}
		return "", fmt.Errorf("mistral: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		slurp, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		return "", fmt.Errorf("mistral ocr error %d: %s", resp.StatusCode, truncate(string(slurp), 300))
	}

	var parsed mistralResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("mistral decode: %w", err)
	}
	parts := make([]string, 0, len(parsed.Pages))
	for _, p := range parsed.Pages {
		if md := strings.TrimSpace(p.Markdown); md != "" && md != "." {
			parts = append(parts, md)
		}
	}
	return strings.Join(parts, "\n\n"), nil
}
