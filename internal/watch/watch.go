// Package watch turns a directory into a hot folder: on a cron schedule,
// every image without a _nobg.png counterpart in the output directory is
// run through the batch runner.
package watch

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/menta2k/background-remover/internal/logger"
	"github.com/menta2k/background-remover/internal/utils"
	"github.com/menta2k/background-remover/pkg/batch"
	"github.com/menta2k/background-remover/pkg/processing"
	"github.com/menta2k/background-remover/pkg/types"
)

// DefaultSchedule scans every 30 seconds
const DefaultSchedule = "@every 30s"

// Watcher scans InputDir on a schedule
type Watcher struct {
	runner   *batch.Runner
	inputDir string
	outDir   string
	schedule string
	log      zerolog.Logger

	mu     sync.Mutex
	failed map[string]struct{}
}

// New creates a Watcher. An empty schedule uses DefaultSchedule.
func New(runner *batch.Runner, inputDir, outDir, schedule string, log zerolog.Logger) *Watcher {
	if schedule == "" {
		schedule = DefaultSchedule
	}
	return &Watcher{
		runner:   runner,
		inputDir: inputDir,
		outDir:   outDir,
		schedule: schedule,
		log:      logger.Component(log, "watch"),
		failed:   map[string]struct{}{},
	}
}

// Pending lists the input images that have no output yet and have not
// failed before
func (w *Watcher) Pending() ([]string, error) {
	files, err := utils.ListImageFiles(w.inputDir, processing.OutputSuffix)
	if err != nil {
		return nil, errors.Wrapf(err, "list %s", w.inputDir)
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	var pending []string
	for _, f := range files {
		if _, bad := w.failed[f]; bad {
			continue
		}
		if utils.FileExists(processing.OutputPath(f, w.outDir, types.FormatPNG)) {
			continue
		}
		pending = append(pending, f)
	}
	return pending, nil
}

// Scan processes every pending file once. Files that fail are remembered
// and skipped by later scans.
func (w *Watcher) Scan(ctx context.Context) (*batch.Summary, error) {
	files, err := w.Pending()
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return &batch.Summary{}, nil
	}

	sum := w.runner.Run(ctx, files, w.outDir, nil)
	w.mu.Lock()
	for _, f := range sum.Failures {
		w.failed[f.Path] = struct{}{}
	}
	w.mu.Unlock()
	return sum, nil
}

// Run scans on the schedule until ctx ends. Overlapping scans are skipped.
func (w *Watcher) Run(ctx context.Context) error {
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	_, err := c.AddFunc(w.schedule, func() {
		if _, err := w.Scan(ctx); err != nil {
			w.log.Error().Err(err).Msg("scan failed")
		}
	})
	if err != nil {
		return errors.Wrapf(err, "invalid schedule %q", w.schedule)
	}

	w.log.Info().Str("input", w.inputDir).Str("output", w.outDir).Str("schedule", w.schedule).Msg("watching")
	c.Start()
	<-ctx.Done()
	<-c.Stop().Done()
	return nil
}
