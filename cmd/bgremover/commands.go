package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"

	"github.com/menta2k/background-remover/internal/config"
	"github.com/menta2k/background-remover/internal/server"
	"github.com/menta2k/background-remover/internal/utils"
	"github.com/menta2k/background-remover/internal/watch"
	"github.com/menta2k/background-remover/pkg/batch"
	"github.com/menta2k/background-remover/pkg/cropper"
	"github.com/menta2k/background-remover/pkg/processing"
	"github.com/menta2k/background-remover/pkg/types"
)

func runRemove(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("remove", flag.ExitOnError)
	engine := addEngineFlags(fs)
	var outDir, format, bg, ratio string
	var quality int
	var trim bool
	fs.StringVar(&outDir, "out", "", "output directory (default: saved preference)")
	fs.StringVar(&format, "format", "", "output format: png|jpg|webp|bmp|tiff|gif (default: saved preference)")
	fs.IntVar(&quality, "quality", 0, "JPEG/WebP quality 1-100 (default: saved preference)")
	fs.StringVar(&bg, "bg", "", "background color #rrggbb for formats without alpha")
	fs.BoolVar(&trim, "trim", false, "crop transparent margins around the subject")
	fs.StringVar(&ratio, "ratio", "", "frame the subject in an aspect ratio, W:H or square|portrait|landscape|widescreen|instagram|story")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return errors.New("no input images")
	}
	framing := cropper.Framing{Trim: trim}
	if ratio != "" {
		ar, err := cropper.ParseAspectRatio(ratio)
		if err != nil {
			return err
		}
		framing.Ratio = ar
	}

	log := engine.logger()
	prefs := loadPreferences(log)
	opts := processing.SaveOptions{
		Format:     prefs.Format,
		Quality:    prefs.Quality,
		Background: prefs.BgColor,
	}
	if outDir == "" {
		outDir = prefs.OutputDirectory
	}
	if format != "" {
		f, err := types.ParseFormat(format)
		if err != nil {
			return err
		}
		opts.Format = f
	}
	if quality != 0 {
		if quality < 1 || quality > 100 {
			return errors.Errorf("quality must be between 1 and 100, got %d", quality)
		}
		opts.Quality = quality
	}
	if bg != "" {
		rgb, err := types.ParseHex(bg)
		if err != nil {
			return err
		}
		opts.Background = rgb
	}

	r, err := engine.remover(log)
	if err != nil {
		return err
	}
	defer r.Close()
	r.SetFraming(framing)

	failed := 0
	for _, in := range fs.Args() {
		out, err := r.ProcessFile(ctx, in, utils.ExpandHome(outDir), opts)
		if err != nil {
			log.Error().Err(err).Str("file", in).Msg("remove failed")
			failed++
			continue
		}
		ev := log.Info().Str("file", in).Str("output", out)
		if st, err := os.Stat(out); err == nil {
			ev = ev.Str("size", utils.FormatFileSize(st.Size()))
		}
		ev.Msg("wrote")
	}
	if failed > 0 {
		return errors.Errorf("%d of %d images failed", failed, fs.NArg())
	}
	return nil
}

func runBatch(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("batch", flag.ExitOnError)
	engine := addEngineFlags(fs)
	var outDir string
	fs.StringVar(&outDir, "out", "", "output directory (default: next to the first input)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return errors.New("no input folder or images")
	}

	var files []string
	for _, arg := range fs.Args() {
		if utils.DirExists(arg) {
			found, err := utils.ListImageFiles(arg, processing.OutputSuffix)
			if err != nil {
				return err
			}
			if outDir == "" {
				outDir = arg
			}
			files = append(files, found...)
			continue
		}
		files = append(files, arg)
	}
	if len(files) == 0 {
		return errors.New("no image files found")
	}
	if outDir == "" {
		outDir = filepath.Dir(files[0])
	}

	log := engine.logger()
	r, err := engine.remover(log)
	if err != nil {
		return err
	}
	defer r.Close()

	items, done := batch.NewRunner(r.Pipeline(), log).Stream(ctx, files, outDir)
	for it := range items {
		status := "ok"
		if it.Err != nil {
			status = it.Err.Error()
		}
		fmt.Printf("[%3.0f%%] %d/%d %s: %s\n", it.Progress, it.Index+1, it.Total, it.Path, status)
	}
	sum := <-done
	fmt.Printf("Processed %d of %d images in %s\n", sum.Succeeded, sum.Total, sum.Duration.Round(time.Millisecond))
	return sum.Err()
}

func runServe(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	engine := addEngineFlags(fs)
	var addr string
	var maxUpload int64
	fs.StringVar(&addr, "addr", ":8080", "listen address")
	fs.Int64Var(&maxUpload, "max-upload", server.DefaultMaxUpload, "maximum upload size in bytes")
	if err := fs.Parse(args); err != nil {
		return err
	}

	log := engine.logger()
	prefs := loadPreferences(log)
	r, err := engine.remover(log)
	if err != nil {
		return err
	}
	defer r.Close()

	srv := server.New(r.Pipeline(), server.Options{
		Quality:    prefs.Quality,
		Background: prefs.BgColor,
		MaxUpload:  maxUpload,
		Logger:     log,
	})
	return srv.ListenAndServe(ctx, addr)
}

func runWatch(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("watch", flag.ExitOnError)
	engine := addEngineFlags(fs)
	var inDir, outDir, schedule string
	fs.StringVar(&inDir, "in", "", "hot folder to watch")
	fs.StringVar(&outDir, "out", "", "output directory (default: the hot folder)")
	fs.StringVar(&schedule, "schedule", watch.DefaultSchedule, "cron schedule, e.g. \"@every 1m\" or \"*/5 * * * *\"")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if inDir == "" {
		fs.Usage()
		return errors.New("-in is required")
	}
	if !utils.DirExists(inDir) {
		return errors.Errorf("%s is not a directory", inDir)
	}
	if outDir == "" {
		outDir = inDir
	}

	log := engine.logger()
	r, err := engine.remover(log)
	if err != nil {
		return err
	}
	defer r.Close()

	w := watch.New(batch.NewRunner(r.Pipeline(), log), inDir, outDir, schedule, log)
	return w.Run(ctx)
}

func runPrefs(_ context.Context, args []string) error {
	fs := flag.NewFlagSet("prefs", flag.ExitOnError)
	var outDir, format, bg, file string
	var quality int
	fs.StringVar(&file, "file", config.Path(), "preferences file")
	fs.StringVar(&outDir, "out", "", "set the default output directory")
	fs.StringVar(&format, "format", "", "set the default export format: png|jpg")
	fs.IntVar(&quality, "quality", 0, "set the JPEG quality 1-100")
	fs.StringVar(&bg, "bg", "", "set the background color #rrggbb")
	if err := fs.Parse(args); err != nil {
		return err
	}

	prefs, err := config.Load(file)
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: %v, using defaults\n", err)
	}

	changed := false
	if outDir != "" {
		dir := utils.ExpandHome(outDir)
		if !utils.DirExists(dir) {
			return errors.Errorf("%s is not a directory", dir)
		}
		prefs.OutputDirectory = dir
		changed = true
	}
	if format != "" {
		f, err := types.ParseFormat(format)
		if err != nil {
			return err
		}
		prefs.Format = f
		changed = true
	}
	if quality != 0 {
		prefs.Quality = quality
		changed = true
	}
	if bg != "" {
		rgb, err := types.ParseHex(bg)
		if err != nil {
			return err
		}
		prefs.BgColor = rgb
		changed = true
	}

	if changed {
		if err := prefs.Validate(); err != nil {
			return err
		}
		if err := prefs.Save(file); err != nil {
			return err
		}
	}

	fmt.Printf("file:             %s\n", file)
	fmt.Printf("output_directory: %s\n", prefs.OutputDirectory)
	fmt.Printf("format:           %s\n", prefs.Format.Extension())
	fmt.Printf("quality:          %d\n", prefs.Quality)
	fmt.Printf("bg_color:         %s\n", prefs.BgColor.Hex())
	return nil
}
