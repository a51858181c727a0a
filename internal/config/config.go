package config

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/menta2k/background-remover/internal/utils"
	"github.com/menta2k/background-remover/pkg/types"
)

// FileName is the preferences file name inside the user's home directory
const FileName = ".bgremover_config.json"

const (
	DefaultQuality   = 90
	DefaultOutputDir = "~/Pictures"
)

// DefaultBackground is the solid background color used when none is saved
var DefaultBackground = types.RGB{240, 240, 240}

// Preferences holds the user settings that survive between sessions
type Preferences struct {
	OutputDirectory string
	BgColor         types.RGB
	Format          types.Format
	Quality         int
}

// fileFormat is the on-disk shape. bg_color is a list of three ints and the
// format is stored by its export extension (png or jpg).
type fileFormat struct {
	OutputDirectory string `json:"output_directory"`
	BgColor         [3]int `json:"bg_color"`
	Format          string `json:"format"`
	Quality         int    `json:"quality"`
}

// Default returns preferences with default values
func Default() *Preferences {
	return &Preferences{
		OutputDirectory: utils.ExpandHome(DefaultOutputDir),
		BgColor:         DefaultBackground,
		Format:          types.FormatPNG,
		Quality:         DefaultQuality,
	}
}

// Path returns the default preferences file path
func Path() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return FileName
	}
	return filepath.Join(home, FileName)
}

// Load reads preferences from filename. It always returns usable
// preferences: a missing file yields defaults with a nil error, an unreadable
// or malformed file yields defaults and a *types.ConfigError, and a field
// that is missing or out of range keeps its default.
func Load(filename string) (*Preferences, error) {
	prefs := Default()

	data, err := os.ReadFile(filename)
	if os.IsNotExist(err) {
		return prefs, nil
	}
	if err != nil {
		return prefs, &types.ConfigError{Path: filename, Err: errors.Wrap(err, "failed to read preferences")}
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return prefs, &types.ConfigError{Path: filename, Err: errors.Wrap(err, "failed to parse preferences")}
	}

	if v, ok := raw["output_directory"]; ok {
		var dir string
		if json.Unmarshal(v, &dir) == nil && utils.DirExists(dir) {
			prefs.OutputDirectory = dir
		}
	}
	if v, ok := raw["bg_color"]; ok {
		var c []int
		if json.Unmarshal(v, &c) == nil && validColor(c) {
			prefs.BgColor = types.RGB{uint8(c[0]), uint8(c[1]), uint8(c[2])}
		}
	}
	if v, ok := raw["format"]; ok {
		var s string
		if json.Unmarshal(v, &s) == nil {
			if f, err := types.ParseFormat(s); err == nil && (f == types.FormatPNG || f == types.FormatJPEG) {
				prefs.Format = f
			}
		}
	}
	if v, ok := raw["quality"]; ok {
		var q int
		if json.Unmarshal(v, &q) == nil && q >= 1 && q <= 100 {
			prefs.Quality = q
		}
	}

	return prefs, nil
}

// Save writes the preferences to filename as JSON
func (p *Preferences) Save(filename string) error {
	if dir := filepath.Dir(filename); dir != "." {
		if err := utils.EnsureDir(dir); err != nil {
			return errors.Wrap(err, "failed to create preferences directory")
		}
	}

	data, err := json.MarshalIndent(fileFormat{
		OutputDirectory: p.OutputDirectory,
		BgColor:         [3]int{int(p.BgColor[0]), int(p.BgColor[1]), int(p.BgColor[2])},
		Format:          p.Format.Extension(),
		Quality:         p.Quality,
	}, "", "  ")
	if err != nil {
		return errors.Wrap(err, "failed to marshal preferences")
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return errors.Wrap(err, "failed to write preferences")
	}
	return nil
}

// Validate checks if the preferences are valid
func (p *Preferences) Validate() error {
	if p.Quality < 1 || p.Quality > 100 {
		return errors.New("quality must be between 1 and 100")
	}
	if p.Format != types.FormatPNG && p.Format != types.FormatJPEG {
		return errors.Errorf("format must be png or jpeg, got %q", p.Format)
	}
	if p.OutputDirectory == "" {
		return errors.New("output_directory cannot be empty")
	}
	return nil
}

func validColor(c []int) bool {
	if len(c) != 3 {
		return false
	}
	for _, v := range c {
		if v < 0 || v > 255 {
			return false
		}
	}
	return true
}
