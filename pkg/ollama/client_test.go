package ollama

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewClientRejectsBadURL(t *testing.T) {
	_, err := NewClient("localhost", zerolog.Nop())
	assert.Error(t, err)
}

func TestAnalyzeImage(t *testing.T) {
	var gotModel string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/chat", r.URL.Path)

		var req map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		gotModel, _ = req["model"].(string)

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"model": gotModel,
			"message": map[string]any{
				"role":    "assistant",
				"content": "```json\n{\"primary\":{\"label\":\"cat\",\"confidence\":0.8,\"box\":{\"x\":0.2,\"y\":0.1,\"w\":0.5,\"h\":0.7}}}\n```",
			},
			"done": true,
		})
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL+"/api/chat", zerolog.Nop())
	require.NoError(t, err)

	img := base64.StdEncoding.EncodeToString([]byte("fake-image"))
	res, err := c.AnalyzeImage(context.Background(), "llava", "locate", img)
	require.NoError(t, err)
	assert.Equal(t, "llava", gotModel)
	assert.Equal(t, "cat", res.Primary.Label)
	assert.InDelta(t, 0.7, res.Primary.Box.H, 1e-9)
}

func TestAnalyzeImageBadBase64(t *testing.T) {
	c, err := NewClient("http://127.0.0.1:1", zerolog.Nop())
	require.NoError(t, err)

	_, err = c.AnalyzeImage(context.Background(), "m", "p", "%%%")
	assert.Error(t, err)
}

func TestModelOptions(t *testing.T) {
	assert.Equal(t, 0.1, modelOptions("llava")["temperature"])
	assert.Equal(t, 4096, modelOptions("openbmb/MiniCPM-V4.5")["num_ctx"])
}
