// Package batch removes the background from a list of files, one after the
// other, writing {basename}_nobg.png for each into an output directory.
package batch

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/ksuid"

	"github.com/menta2k/background-remover/internal/utils"
	"github.com/menta2k/background-remover/pkg/processing"
	"github.com/menta2k/background-remover/pkg/segment"
	"github.com/menta2k/background-remover/pkg/types"
)

// Item reports the outcome of one file
type Item struct {
	RunID  string
	Index  int
	Total  int
	Path   string
	Output string
	Err    error
	// Progress is the share of the run completed so far, 0 to 100
	Progress float64
}

// Summary describes a finished run
type Summary struct {
	RunID     string
	Total     int
	Succeeded int
	Outputs   []string
	Failures  []types.BatchFailure
	Duration  time.Duration
}

// Err returns a *types.BatchError listing every failed file, or nil
func (s *Summary) Err() error {
	if len(s.Failures) == 0 {
		return nil
	}
	return &types.BatchError{Total: s.Total, Failures: s.Failures}
}

// Runner processes files with a shared pipeline
type Runner struct {
	pipeline  *segment.Pipeline
	processor *processing.Processor
	log       zerolog.Logger
}

// NewRunner creates a Runner
func NewRunner(p *segment.Pipeline, log zerolog.Logger) *Runner {
	return &Runner{
		pipeline:  p,
		processor: processing.NewProcessor(),
		log:       log.With().Str("component", "batch").Logger(),
	}
}

// Run processes files strictly in order. A failing file is recorded and the
// run moves on to the next one. onItem, if not nil, is called after every
// file on the calling goroutine.
func (r *Runner) Run(ctx context.Context, files []string, outDir string, onItem func(Item)) *Summary {
	start := time.Now()
	sum := &Summary{
		RunID: ksuid.New().String(),
		Total: len(files),
	}
	log := r.log.With().Str("run_id", sum.RunID).Logger()

	if err := utils.EnsureDir(outDir); err != nil {
		log.Warn().Err(err).Str("dir", outDir).Msg("cannot create output directory")
	}
	log.Info().Int("files", len(files)).Str("out_dir", outDir).Msg("batch started")

	for i, path := range files {
		item := Item{
			RunID:    sum.RunID,
			Index:    i,
			Total:    len(files),
			Path:     path,
			Progress: float64(i+1) / float64(len(files)) * 100,
		}

		out, err := r.processFile(ctx, path, outDir)
		if err != nil {
			item.Err = err
			sum.Failures = append(sum.Failures, types.BatchFailure{Path: path, Err: err})
			log.Warn().Err(err).Str("file", path).Msg("file failed")
		} else {
			item.Output = out
			sum.Succeeded++
			sum.Outputs = append(sum.Outputs, out)
			log.Debug().Str("file", path).Str("output", out).Msg("file done")
		}

		if onItem != nil {
			onItem(item)
		}
	}

	sum.Duration = time.Since(start)
	log.Info().
		Int("succeeded", sum.Succeeded).
		Int("failed", len(sum.Failures)).
		Dur("elapsed", sum.Duration).
		Msg("batch finished")
	return sum
}

// Stream runs the same loop on its own goroutine. The item channel is closed
// after the last file; the summary is sent once the channel is closed.
func (r *Runner) Stream(ctx context.Context, files []string, outDir string) (<-chan Item, <-chan *Summary) {
	items := make(chan Item)
	done := make(chan *Summary, 1)

	go func() {
		sum := r.Run(ctx, files, outDir, func(it Item) { items <- it })
		close(items)
		done <- sum
		close(done)
	}()
	return items, done
}

func (r *Runner) processFile(ctx context.Context, path, outDir string) (string, error) {
	img, err := r.processor.LoadImage(path)
	if err != nil {
		return "", err
	}

	res, err := r.pipeline.RemoveBackground(ctx, img)
	if err != nil {
		return "", err
	}

	out := processing.OutputPath(path, outDir, types.FormatPNG)
	if err := r.processor.SaveImage(res, out, processing.SaveOptions{Format: types.FormatPNG}); err != nil {
		return "", err
	}
	return out, nil
}
