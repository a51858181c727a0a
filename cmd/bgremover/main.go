package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/rs/zerolog"

	bgremover "github.com/menta2k/background-remover"
	"github.com/menta2k/background-remover/internal/config"
	"github.com/menta2k/background-remover/internal/logger"
)

type command struct {
	name  string
	usage string
	run   func(ctx context.Context, args []string) error
}

var commands = []command{
	{"remove", "remove [flags] image...   remove the background of single images", runRemove},
	{"batch", "batch [flags] dir|image... process a folder into <name>_nobg.png files", runBatch},
	{"serve", "serve [flags]              serve the HTTP API", runServe},
	{"watch", "watch [flags]              process new images in a hot folder", runWatch},
	{"prefs", "prefs [flags]              show or change saved preferences", runPrefs},
}

func usage() {
	fmt.Fprintf(os.Stderr, "usage: %s <command> [flags]\n\ncommands:\n", filepath.Base(os.Args[0]))
	for _, c := range commands {
		fmt.Fprintf(os.Stderr, "  %s\n", c.usage)
	}
	fmt.Fprintf(os.Stderr, "\nrun '%s <command> -h' for command flags\n", filepath.Base(os.Args[0]))
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}
	if os.Args[1] == "-h" || os.Args[1] == "--help" || os.Args[1] == "help" {
		usage()
		return
	}
	if os.Args[1] == "version" {
		fmt.Println(bgremover.GetVersion())
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	for _, c := range commands {
		if c.name != os.Args[1] {
			continue
		}
		if err := c.run(ctx, os.Args[2:]); err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", c.name, err)
			os.Exit(1)
		}
		return
	}

	fmt.Fprintf(os.Stderr, "unknown command %q\n\n", os.Args[1])
	usage()
	os.Exit(2)
}

// engineFlags binds the backend and logging flags, defaulting to the
// BGREMOVER_* environment
type engineFlags struct {
	settings config.Settings
	backend  string
}

func addEngineFlags(fs *flag.FlagSet) *engineFlags {
	e := &engineFlags{settings: config.SettingsFromEnv()}
	s := &e.settings
	fs.StringVar(&e.backend, "backend", string(s.Backend), "backend to use: onnx, ollama, llamacpp or saliency")
	fs.StringVar(&s.ModelPath, "model", s.ModelPath, "ONNX segmentation model path")
	fs.StringVar(&s.ORTLibrary, "ort-lib", s.ORTLibrary, "onnxruntime shared library path")
	fs.StringVar(&s.ModelURL, "url", s.ModelURL, "vision server URL (ollama or llamacpp)")
	fs.StringVar(&s.VisionModel, "vision-model", s.VisionModel, "vision model name")
	fs.IntVar(&s.Threads, "threads", s.Threads, "ONNX intra-op threads, 0=auto")
	fs.StringVar(&s.LogLevel, "log-level", s.LogLevel, "log level: debug|info|warn|error")
	fs.BoolVar(&s.LogJSON, "log-json", s.LogJSON, "log as JSON")
	return e
}

func (e *engineFlags) logger() zerolog.Logger {
	return logger.New(logger.Options{Level: e.settings.LogLevel, JSON: e.settings.LogJSON})
}

func (e *engineFlags) remover(log zerolog.Logger) (*bgremover.Remover, error) {
	e.settings.Backend = config.Backend(e.backend)
	return bgremover.New(e.settings, log)
}

// loadPreferences returns the saved preferences, falling back to defaults
func loadPreferences(log zerolog.Logger) *config.Preferences {
	prefs, err := config.Load(config.Path())
	if err != nil {
		log.Debug().Err(err).Msg("using default preferences")
	}
	return prefs
}
