package ollama

import (
	"context"
	"encoding/base64"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/jmorganca/ollama/api"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/menta2k/background-remover/pkg/client"
	"github.com/menta2k/background-remover/pkg/types"
)

// DefaultTimeout bounds a request when the caller's context has no deadline
const DefaultTimeout = 5 * time.Minute

// Client wraps the Ollama API client
type Client struct {
	client *api.Client
	log    zerolog.Logger
}

var _ client.VisionClient = (*Client)(nil)

// NewClient creates a new Ollama client. Any path in ollamaURL (such as
// /api/chat) is ignored.
func NewClient(ollamaURL string, log zerolog.Logger) (*Client, error) {
	parsedURL, err := url.Parse(ollamaURL)
	if err != nil {
		return nil, errors.Wrap(err, "invalid URL")
	}
	if parsedURL.Scheme == "" || parsedURL.Host == "" {
		return nil, errors.Errorf("invalid URL %q: need scheme and host", ollamaURL)
	}

	baseURL := &url.URL{
		Scheme: parsedURL.Scheme,
		Host:   parsedURL.Host,
	}
	return &Client{
		client: api.NewClient(baseURL, http.DefaultClient),
		log:    log.With().Str("component", "ollama").Logger(),
	}, nil
}

// AnalyzeImage asks model to locate the primary subject of the image
func (c *Client) AnalyzeImage(ctx context.Context, model, prompt, imgB64 string) (*types.AnalysisResult, error) {
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, DefaultTimeout)
		defer cancel()
	}

	imgBytes, err := base64.StdEncoding.DecodeString(imgB64)
	if err != nil {
		return nil, errors.Wrap(err, "failed to decode base64 image")
	}

	streamFalse := false
	req := &api.ChatRequest{
		Model: model,
		Messages: []api.Message{
			{
				Role:    "user",
				Content: prompt,
				Images:  []api.ImageData{api.ImageData(imgBytes)},
			},
		},
		Stream:  &streamFalse,
		Options: modelOptions(model),
	}

	start := time.Now()
	var reply strings.Builder
	err = c.client.Chat(ctx, req, func(resp api.ChatResponse) error {
		reply.WriteString(resp.Message.Content)
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "ollama chat error")
	}
	c.log.Debug().Str("model", model).Dur("elapsed", time.Since(start)).Int("reply_len", reply.Len()).Msg("subject query answered")

	if reply.Len() == 0 {
		return nil, errors.New("empty response from ollama")
	}
	return client.ParseAnalysisResult(reply.String())
}

// modelOptions returns sampling options tuned for known model families
func modelOptions(model string) map[string]any {
	options := map[string]any{"temperature": 0.1}

	m := strings.ToLower(model)
	if strings.Contains(m, "minicpm-v4") || strings.Contains(m, "minicpm-v-4") || strings.Contains(m, "minicpmv4") {
		options["temperature"] = 0.7
		options["top_p"] = 0.8
		options["num_ctx"] = 4096
	}
	return options
}
