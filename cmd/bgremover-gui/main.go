package main

import (
	"flag"
	"os"

	"fyne.io/fyne/v2"
	fyneapp "fyne.io/fyne/v2/app"

	bgremover "github.com/menta2k/background-remover"
	"github.com/menta2k/background-remover/internal/app"
	"github.com/menta2k/background-remover/internal/config"
	"github.com/menta2k/background-remover/internal/logger"
	"github.com/menta2k/background-remover/pkg/segment"
)

const (
	AppName = "Background Remover"
	AppID   = "com.menta2k.background-remover"
)

func main() {
	settings := config.SettingsFromEnv()
	var backend string
	flag.StringVar(&backend, "backend", string(settings.Backend), "backend to use: onnx, ollama, llamacpp or saliency")
	flag.StringVar(&settings.ModelPath, "model", settings.ModelPath, "ONNX segmentation model path")
	flag.StringVar(&settings.ORTLibrary, "ort-lib", settings.ORTLibrary, "onnxruntime shared library path")
	flag.StringVar(&settings.ModelURL, "url", settings.ModelURL, "vision server URL (ollama or llamacpp)")
	flag.StringVar(&settings.VisionModel, "vision-model", settings.VisionModel, "vision model name")
	flag.StringVar(&settings.LogLevel, "log-level", settings.LogLevel, "log level: debug|info|warn|error")
	flag.Parse()
	settings.Backend = config.Backend(backend)

	appLog := logger.New(logger.Options{Level: settings.LogLevel, JSON: settings.LogJSON, Writer: os.Stderr})

	backendImpl, closer, err := bgremover.NewBackend(settings, appLog)
	if err != nil {
		appLog.Fatal().Err(err).Str("backend", string(settings.Backend)).Msg("failed to create backend")
	}
	if closer != nil {
		defer closer.Close()
	}
	pipeline := segment.NewPipeline(backendImpl,
		segment.WithName(string(settings.Backend)),
		segment.WithLogger(appLog))

	prefsPath := config.Path()
	prefs, err := config.Load(prefsPath)
	if err != nil {
		appLog.Debug().Err(err).Msg("using default preferences")
	}

	fyneApp := fyneapp.NewWithID(AppID)
	window := fyneApp.NewWindow(AppName)
	window.Resize(fyne.NewSize(1200, 800))
	window.CenterOnScreen()

	view := newView(window)
	ctrl, err := app.New(app.Options{
		Pipeline:        pipeline,
		Poster:          app.PosterFunc(fyne.Do),
		Listener:        view,
		Preferences:     prefs,
		PreferencesPath: prefsPath,
		Logger:          appLog,
	})
	if err != nil {
		appLog.Fatal().Err(err).Msg("application initialization failed")
	}
	view.bind(ctrl)
	window.SetOnClosed(ctrl.Close)

	appLog.Info().Str("backend", pipeline.Name()).Str("version", bgremover.Version).Msg("starting")
	window.ShowAndRun()
}
