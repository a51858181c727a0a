// Package app holds the controller that front-ends drive: the image store,
// the processing state machine and the user's preferences.
//
// Every Controller method must be called from one goroutine, the event
// consumer. Background work runs on a worker goroutine and reports back
// through the Poster, so the store is only ever touched by the consumer.
package app

import (
	"context"
	"fmt"
	"image"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/menta2k/background-remover/internal/config"
	"github.com/menta2k/background-remover/internal/logger"
	"github.com/menta2k/background-remover/internal/utils"
	"github.com/menta2k/background-remover/pkg/batch"
	"github.com/menta2k/background-remover/pkg/edit"
	"github.com/menta2k/background-remover/pkg/processing"
	"github.com/menta2k/background-remover/pkg/render"
	"github.com/menta2k/background-remover/pkg/segment"
	"github.com/menta2k/background-remover/pkg/store"
	"github.com/menta2k/background-remover/pkg/types"
)

// State is the processing state
type State int

const (
	Idle State = iota
	Processing
)

func (s State) String() string {
	if s == Processing {
		return "processing"
	}
	return "idle"
}

// compareGap separates the two halves of ComparePreview
const compareGap = 10

// Options configures a Controller
type Options struct {
	Pipeline *segment.Pipeline
	Poster   Poster
	Listener Listener
	// Preferences defaults to config.Default()
	Preferences *config.Preferences
	// PreferencesPath is where Close saves the preferences. Empty skips saving.
	PreferencesPath string
	// MaxUndo caps the undo history. 0 means unbounded.
	MaxUndo int
	Logger  zerolog.Logger
}

// Controller coordinates the store, the pipeline and the batch runner
type Controller struct {
	store     *store.Store
	pipeline  *segment.Pipeline
	runner    *batch.Runner
	processor *processing.Processor
	poster    Poster
	listener  Listener
	prefs     config.Preferences
	prefsPath string
	log       zerolog.Logger

	state     State
	inputPath string
	zoom      float64
	mode      render.Mode

	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a Controller
func New(opts Options) (*Controller, error) {
	if opts.Pipeline == nil {
		return nil, errors.New("app: a pipeline is required")
	}
	if opts.Poster == nil {
		return nil, errors.New("app: a poster is required")
	}
	if opts.Listener == nil {
		opts.Listener = NopListener{}
	}
	prefs := config.Default()
	if opts.Preferences != nil {
		prefs = opts.Preferences
	}
	log := logger.Component(opts.Logger, "controller")

	ctx, cancel := context.WithCancel(context.Background())
	return &Controller{
		store:     store.New(store.WithMaxDepth(opts.MaxUndo)),
		pipeline:  opts.Pipeline,
		runner:    batch.NewRunner(opts.Pipeline, opts.Logger),
		processor: processing.NewProcessor(),
		poster:    opts.Poster,
		listener:  opts.Listener,
		prefs:     *prefs,
		prefsPath: opts.PreferencesPath,
		log:       log,
		zoom:      1,
		mode:      render.Transparent,
		ctx:       ctx,
		cancel:    cancel,
	}, nil
}

// Open loads an image file as the new source
func (c *Controller) Open(path string) error {
	img, err := c.processor.LoadImage(path)
	if err != nil {
		c.fail(err)
		return err
	}
	c.LoadImage(img, path)
	return nil
}

// LoadImage replaces the source with img. name is used to derive export
// file names and may be empty.
func (c *Controller) LoadImage(img image.Image, name string) {
	gen := c.store.Load(img)
	c.inputPath = name
	c.log.Debug().Str("name", name).Uint64("generation", gen).Msg("image loaded")

	c.listener.SourceChanged(c.store.Source())
	c.listener.ResultChanged(nil)
	b := img.Bounds()
	c.listener.Status(fmt.Sprintf("Image loaded: %s (%dx%d)", c.displayName(), b.Dx(), b.Dy()))
}

// Crop keeps the part of the source inside rect
func (c *Controller) Crop(rect image.Rectangle) error {
	return c.edit(edit.Crop(rect), "Image cropped")
}

// Rotate rotates the source counter-clockwise by degrees
func (c *Controller) Rotate(degrees float64) error {
	return c.edit(edit.Rotate(degrees), fmt.Sprintf("Image rotated %g°", degrees))
}

func (c *Controller) FlipHorizontal() error {
	return c.edit(edit.FlipHorizontal(), "Image flipped horizontally")
}

func (c *Controller) FlipVertical() error {
	return c.edit(edit.FlipVertical(), "Image flipped vertically")
}

// Undo restores the source as it was before the last edit
func (c *Controller) Undo() error {
	if err := c.store.Undo(); err != nil {
		if errors.Is(err, types.ErrNothingToUndo) {
			c.listener.Status("Nothing to undo")
		}
		return err
	}
	c.sourceEdited("Undo successful")
	return nil
}

func (c *Controller) edit(t store.Transform, status string) error {
	if err := c.store.ApplyEdit(t); err != nil {
		c.fail(err)
		return err
	}
	c.sourceEdited(status)
	return nil
}

func (c *Controller) sourceEdited(status string) {
	c.log.Debug().Uint64("generation", c.store.Generation()).Int("undo_depth", c.store.UndoDepth()).Msg(status)
	c.listener.SourceChanged(c.store.Source())
	c.listener.ResultChanged(nil)
	c.listener.Status(status)
}

// Process removes the background of the current source on a worker
// goroutine. It returns types.ErrBusy while another job runs.
func (c *Controller) Process() error {
	if c.state == Processing {
		return types.ErrBusy
	}
	snap, gen, err := c.store.Snapshot()
	if err != nil {
		return err
	}

	c.setState(Processing)
	c.listener.Progress(0)
	c.listener.Status("Processing...")

	ctx := c.ctx
	go func() {
		res, err := c.pipeline.RemoveBackground(ctx, snap)
		c.poster.Post(func() { c.finishProcess(gen, res, err) })
	}()
	return nil
}

func (c *Controller) finishProcess(gen uint64, res *image.NRGBA, err error) {
	c.setState(Idle)
	if err != nil {
		c.fail(err)
		c.listener.Status("Processing failed")
		return
	}
	if !c.store.SetResult(gen, res) {
		c.log.Debug().Uint64("generation", gen).Uint64("current", c.store.Generation()).Msg("stale result discarded")
		c.listener.Status("Image changed while processing; result discarded")
		return
	}
	c.listener.Progress(100)
	c.listener.ResultChanged(c.store.Result())
	c.listener.Status("Processing completed")
}

// Batch processes files in order on a worker goroutine, writing PNG results
// into the preferred output directory. It returns types.ErrBusy while
// another job runs.
func (c *Controller) Batch(files []string) error {
	if c.state == Processing {
		return types.ErrBusy
	}
	if len(files) == 0 {
		return errors.New("no files selected")
	}

	c.setState(Processing)
	c.listener.Progress(0)
	c.listener.Status(fmt.Sprintf("Processing %d images...", len(files)))

	ctx, outDir := c.ctx, c.prefs.OutputDirectory
	go func() {
		sum := c.runner.Run(ctx, files, outDir, func(it batch.Item) {
			c.poster.Post(func() {
				c.listener.Progress(it.Progress)
				c.listener.Status(fmt.Sprintf("Processed %d/%d: %s", it.Index+1, it.Total, filepath.Base(it.Path)))
			})
		})
		c.poster.Post(func() { c.finishBatch(sum) })
	}()
	return nil
}

func (c *Controller) finishBatch(sum *batch.Summary) {
	c.setState(Idle)
	if err := sum.Err(); err != nil {
		c.fail(err)
	}
	c.listener.Status(fmt.Sprintf("Batch finished: %d of %d images saved to %s", sum.Succeeded, sum.Total, c.prefs.OutputDirectory))
}

// Export saves the result as {input}_nobg.{ext} in the preferred output
// directory and returns the written path
func (c *Controller) Export() (string, error) {
	path := processing.OutputPath(c.exportBase(), c.prefs.OutputDirectory, c.prefs.Format)
	if err := c.save(path, c.prefs.Format); err != nil {
		return "", err
	}
	return path, nil
}

// ExportAs saves the result to path in the format given by its extension
func (c *Controller) ExportAs(path string) error {
	f, err := types.ParseFormat(filepath.Ext(path))
	if err != nil {
		err = &types.SaveError{Path: path, Err: err}
		c.fail(err)
		return err
	}
	return c.save(path, f)
}

func (c *Controller) save(path string, format types.Format) error {
	res := c.store.Result()
	if res == nil {
		return types.ErrNoResult
	}

	opts := processing.SaveOptions{
		Format:     format,
		Quality:    c.prefs.Quality,
		Background: c.prefs.BgColor,
	}
	if err := c.processor.SaveImage(res, path, opts); err != nil {
		c.fail(err)
		return err
	}
	c.log.Info().Str("path", path).Str("format", string(format)).Msg("image saved")
	c.listener.Status("Image saved: " + filepath.Base(path))
	return nil
}

func (c *Controller) ZoomIn()    { c.setZoom(render.ZoomIn(c.zoom)) }
func (c *Controller) ZoomOut()   { c.setZoom(render.ZoomOut(c.zoom)) }
func (c *Controller) ResetZoom() { c.setZoom(1) }

func (c *Controller) setZoom(z float64) {
	if src := c.store.Source(); src != nil {
		b := src.Bounds()
		z = render.FitZoom(z, b.Dx(), b.Dy())
	}
	c.zoom = z
	c.listener.ViewChanged()
}

// SetBackgroundMode selects the checkerboard or the solid background color
func (c *Controller) SetBackgroundMode(m render.Mode) {
	c.mode = m
	c.listener.ViewChanged()
}

// SetBackgroundColor sets the solid preview color, also used to flatten
// exports without alpha
func (c *Controller) SetBackgroundColor(rgb types.RGB) {
	c.prefs.BgColor = rgb
	c.listener.ViewChanged()
}

// SetFormat sets the export format; only png and jpeg are accepted
func (c *Controller) SetFormat(f types.Format) error {
	if f != types.FormatPNG && f != types.FormatJPEG {
		return errors.Errorf("unsupported export format %q", f)
	}
	c.prefs.Format = f
	return nil
}

// SetQuality sets the JPEG quality, 1 to 100
func (c *Controller) SetQuality(q int) error {
	if q < 1 || q > 100 {
		return errors.Errorf("quality %d out of range 1-100", q)
	}
	c.prefs.Quality = q
	return nil
}

// SetOutputDirectory sets the export directory, which must exist
func (c *Controller) SetOutputDirectory(dir string) error {
	dir = utils.ExpandHome(dir)
	if !utils.DirExists(dir) {
		return errors.Errorf("output directory %s does not exist", dir)
	}
	c.prefs.OutputDirectory = dir
	c.listener.Status("Save location selected: " + dir)
	return nil
}

func (c *Controller) viewOptions() render.Options {
	return render.Options{Zoom: c.zoom, Mode: c.mode, Background: c.prefs.BgColor.NRGBA()}
}

// SourcePreview renders the source at the current zoom, or nil
func (c *Controller) SourcePreview() image.Image {
	src := c.store.Source()
	if src == nil {
		return nil
	}
	return render.Compose(src, render.Options{Zoom: c.zoom, Mode: render.Transparent})
}

// ResultPreview renders the result at the current zoom over the selected
// background, or nil
func (c *Controller) ResultPreview() image.Image {
	res := c.store.Result()
	if res == nil {
		return nil
	}
	return render.Compose(res, c.viewOptions())
}

// ComparePreview renders source and result side by side, or nil
func (c *Controller) ComparePreview() image.Image {
	src, res := c.store.Source(), c.store.Result()
	if src == nil || res == nil {
		return nil
	}
	return render.SideBySide(src, res, c.viewOptions(), compareGap)
}

func (c *Controller) State() State                    { return c.state }
func (c *Controller) Zoom() float64                   { return c.zoom }
func (c *Controller) BackgroundMode() render.Mode     { return c.mode }
func (c *Controller) Preferences() config.Preferences { return c.prefs }
func (c *Controller) HasSource() bool                 { return c.store.HasSource() }
func (c *Controller) HasResult() bool                 { return c.store.HasResult() }
func (c *Controller) UndoDepth() int                  { return c.store.UndoDepth() }

// Close cancels running work and saves the preferences. A failed save is
// logged and otherwise ignored.
func (c *Controller) Close() {
	c.cancel()
	if c.prefsPath == "" {
		return
	}
	if err := c.prefs.Save(c.prefsPath); err != nil {
		c.log.Debug().Err(err).Str("path", c.prefsPath).Msg("failed to save preferences")
	}
}

func (c *Controller) setState(s State) {
	if c.state == s {
		return
	}
	c.state = s
	c.listener.StateChanged(s)
}

func (c *Controller) fail(err error) {
	c.log.Error().Err(err).Msg("operation failed")
	c.listener.Error(err)
}

func (c *Controller) displayName() string {
	if c.inputPath == "" {
		return "untitled"
	}
	return filepath.Base(c.inputPath)
}

func (c *Controller) exportBase() string {
	if c.inputPath == "" {
		return "image.png"
	}
	return c.inputPath
}
