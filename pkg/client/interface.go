package client

import (
	"context"

	"github.com/menta2k/background-remover/pkg/types"
)

// VisionClient is a vision-language model server that can locate the
// primary subject of an image
type VisionClient interface {
	AnalyzeImage(ctx context.Context, model, prompt, imgB64 string) (*types.AnalysisResult, error)
}
