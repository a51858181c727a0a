package detection

import (
	"context"
	"strings"

	"github.com/pkg/errors"

	"github.com/menta2k/background-remover/pkg/client"
	"github.com/menta2k/background-remover/pkg/types"
)

// ErrNoSubject is returned when the model finds nothing to keep
var ErrNoSubject = errors.New("no foreground subject found")

// DefaultPrompt asks for a tight box around the foreground subject
const DefaultPrompt = `You are a foreground subject locator for a background removal tool.

Return JSON only:
{
  "primary": {
    "label": "string",
    "confidence": 0.0,
    "box": {"x": 0.0, "y": 0.0, "w": 0.0, "h": 0.0},
    "cx": 0.0,
    "cy": 0.0
  },
  "description": "short neutral sentence (≤ 20 words)",
  "tags": ["tag1", "tag2", "tag3"]
}

HARD RULES
- All coordinates are normalized to [0,1] (NOT pixels). x,y is the top-left corner.
- The box must include the whole foreground subject (people, animals, products, vehicles) and as little background as possible.
- Tags: lowercase, concise, no punctuation or duplicates.
- If there is no distinct foreground subject, return label "none" with confidence 0.0.
- JSON only. No markdown, no code fences, no comments, no trailing commas.`

// Detector locates the primary subject of an image with a vision model
type Detector struct {
	client client.VisionClient
	prompt string
}

// NewDetector creates a new detector with a vision client
func NewDetector(c client.VisionClient) *Detector {
	return &Detector{client: c, prompt: DefaultPrompt}
}

// DetectSubject returns the subject with its box normalized to [0,1].
// imgW and imgH are the dimensions of the image the model saw and are used
// to convert boxes reported in pixels.
func (d *Detector) DetectSubject(ctx context.Context, model, imageB64 string, imgW, imgH int) (*types.AnalysisResult, error) {
	result, err := d.client.AnalyzeImage(ctx, model, d.prompt, imageB64)
	if err != nil {
		return nil, err
	}

	if strings.EqualFold(result.Primary.Label, "none") {
		return nil, ErrNoSubject
	}
	result.Primary.Box = normalizeBox(result.Primary.Box, imgW, imgH)
	if result.Primary.Box.W <= 0 || result.Primary.Box.H <= 0 {
		return nil, ErrNoSubject
	}
	result.Primary.Cx = result.Primary.Box.X + result.Primary.Box.W/2
	result.Primary.Cy = result.Primary.Box.Y + result.Primary.Box.H/2
	result.Tags = normalizeTags(result.Tags)
	return result, nil
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// normalizeBox converts pixel boxes to [0,1] and clips the box to the image
func normalizeBox(b types.Box, imgW, imgH int) types.Box {
	if imgW > 0 && imgH > 0 && (b.X > 1 || b.Y > 1 || b.W > 1 || b.H > 1) {
		b = types.Box{
			X: b.X / float64(imgW),
			Y: b.Y / float64(imgH),
			W: b.W / float64(imgW),
			H: b.H / float64(imgH),
		}
	}

	x0, y0 := clamp(b.X, 0, 1), clamp(b.Y, 0, 1)
	x1, y1 := clamp(b.X+b.W, 0, 1), clamp(b.Y+b.H, 0, 1)
	return types.Box{X: x0, Y: y0, W: x1 - x0, H: y1 - y0}
}

// normalizeTags ensures tags are cleaned and limited to 5 entries
func normalizeTags(tags []string) []string {
	seen := map[string]struct{}{}
	out := make([]string, 0, 5)
	for _, t := range tags {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
		if len(out) == 5 {
			break
		}
	}
	return out
}
