package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Backend names a segmentation backend
type Backend string

const (
	BackendONNX     Backend = "onnx"
	BackendOllama   Backend = "ollama"
	BackendLlamaCpp Backend = "llamacpp"
	// BackendSaliency needs no model; it keys out colors close to the
	// image border
	BackendSaliency Backend = "saliency"
)

// Settings configures the segmentation engine and logging. Values come from
// BGREMOVER_* environment variables; command line flags override them.
type Settings struct {
	Backend     Backend
	ModelPath   string
	ORTLibrary  string
	ModelURL    string
	VisionModel string
	Threads     int
	LogLevel    string
	LogJSON     bool
}

// DefaultSettings returns the engine defaults
func DefaultSettings() Settings {
	return Settings{
		Backend:     BackendONNX,
		ModelPath:   "u2net.onnx",
		ModelURL:    "http://localhost:11434",
		VisionModel: "qwen2.5vl:7b",
		LogLevel:    "info",
	}
}

// SettingsFromEnv returns DefaultSettings overridden by the environment
func SettingsFromEnv() Settings {
	s := DefaultSettings()
	s.Backend = Backend(strings.ToLower(getEnv("BGREMOVER_BACKEND", string(s.Backend))))
	s.ModelPath = getEnv("BGREMOVER_MODEL", s.ModelPath)
	s.ORTLibrary = getEnv("BGREMOVER_ORT_LIB", s.ORTLibrary)
	s.ModelURL = getEnv("BGREMOVER_MODEL_URL", s.ModelURL)
	s.VisionModel = getEnv("BGREMOVER_VISION_MODEL", s.VisionModel)
	s.Threads = getEnvInt("BGREMOVER_THREADS", s.Threads)
	s.LogLevel = getEnv("BGREMOVER_LOG_LEVEL", s.LogLevel)
	s.LogJSON = getEnvBool("BGREMOVER_LOG_JSON", s.LogJSON)
	return s
}

// Validate checks if the settings are usable
func (s Settings) Validate() error {
	switch s.Backend {
	case BackendONNX:
		if s.ModelPath == "" {
			return errors.New("onnx backend needs a model path")
		}
	case BackendOllama, BackendLlamaCpp:
		if s.ModelURL == "" {
			return errors.Errorf("%s backend needs a server url", s.Backend)
		}
	case BackendSaliency:
	default:
		return errors.Errorf("unknown backend %q", s.Backend)
	}
	if s.Threads < 0 {
		return errors.New("threads cannot be negative")
	}
	return nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		return v == "true" || v == "1"
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}
