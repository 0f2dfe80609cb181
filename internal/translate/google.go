package translate

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const DefaultGoogleURL = "https://translate.googleapis.com"

// GoogleProvider calls the public gtx endpoint, one request per text.
type GoogleProvider struct {
	baseURL    string
	httpClient *http.Client
}

func NewGoogleProvider(baseURL string, timeout time.Duration) *GoogleProvider {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = DefaultGoogleURL
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &GoogleProvider{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (p *GoogleProvider) Translate(ctx context.Context, texts []string, source, target string) ([]string, error) {
	if source == "" {
		source = "auto"
	}
	ret := make([]string, 0, len(texts))
	for i, text := range texts {
		if strings.TrimSpace(text) == "" {
			ret = append(ret, text)
			continue
		}
		translated, err := p.translateOne(ctx, text, source, target)
		if err != nil {
			return nil, fmt.Errorf("translate line %d: %w", i+1, err)
		}
		ret = append(ret, translated)
	}
	return ret, nil
}

func (p *GoogleProvider) translateOne(ctx context.Context, text, source, target string) (string, error) {
	query := url.Values{}
	query.Set("client", "gtx")
	query.Set("sl", source)
	query.Set("tl", target)
	query.Set("dt", "t")
	query.Set("q", text)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/translate_a/single?"+query.Encode(), nil)
	if err != nil {
		return "", err
	}
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("translate endpoint returned status %d", resp.StatusCode)
	}
	return parseGoogleResponse(body)
}

// parseGoogleResponse joins the translated chunks of a gtx response,
// whose first element is a list of [translated, original, ...] tuples.
func parseGoogleResponse(body []byte) (string, error) {
	var raw []json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return "", fmt.Errorf("decode translate response: %w", err)
	}
	if len(raw) == 0 {
		return "", fmt.Errorf("empty translate response")
	}
	var chunks [][]any
	if err := json.Unmarshal(raw[0], &chunks); err != nil {
		return "", fmt.Errorf("decode translate chunks: %w", err)
	}
	var sb strings.Builder
	for _, chunk := range chunks {
		if len(chunk) == 0 {
			continue
		}
		if s, ok := chunk[0].(string); ok {
			sb.WriteString(s)
		}
	}
	return sb.String(), nil
}
