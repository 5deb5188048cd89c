// Package settings loads the aura configuration file
// (~/.config/aura/config.yaml, or a .toml file) and merges it under CLI flags.
package settings

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Environment variables consulted for default locations.
const (
	EnvConfig    = "AURA_CONFIG"
	EnvModelsDir = "AURA_MODELS_DIR"
)

// File mirrors the configuration file. Pointer fields distinguish "not set"
// from zero values.
type File struct {
	ModelsDir    string `yaml:"models_dir" toml:"models_dir"`
	Model        string `yaml:"model" toml:"model"`
	Database     string `yaml:"database" toml:"database"`
	OrtLibrary   string `yaml:"ort_library" toml:"ort_library"`
	InputName    string `yaml:"input_name" toml:"input_name"`
	OutputName   string `yaml:"output_name" toml:"output_name"`
	Tokenizer    string `yaml:"tokenizer" toml:"tokenizer"`
	SystemPrompt string `yaml:"system_prompt" toml:"system_prompt"`

	// Generation defaults
	MaxNewTokens *int     `yaml:"max_new_tokens" toml:"max_new_tokens"`
	Temperature  *float64 `yaml:"temperature" toml:"temperature"`
	TopP         *float64 `yaml:"top_p" toml:"top_p"`
	Seed         *int64   `yaml:"seed" toml:"seed"`

	// Engine
	ContextWindow *int  `yaml:"context_window" toml:"context_window"`
	VocabSize     *int  `yaml:"vocab_size" toml:"vocab_size"`
	EOS           *int  `yaml:"eos_token_id" toml:"eos_token_id"`
	Threads       *int  `yaml:"threads" toml:"threads"`
	HistoryTurns  *int  `yaml:"history_turns" toml:"history_turns"`
	EchoPrompt    *bool `yaml:"echo_prompt" toml:"echo_prompt"`

	// Output
	LogLevel  string `yaml:"log_level" toml:"log_level"`
	LogFormat string `yaml:"log_format" toml:"log_format"`
}

// Path returns the configuration file location: $AURA_CONFIG, or
// config.yaml under the user config directory.
func Path() string {
	if p := strings.TrimSpace(os.Getenv(EnvConfig)); p != "" {
		return p
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "aura", "config.yaml")
}

// DefaultModelsDir returns $AURA_MODELS_DIR, or ~/AuraAI/models.
func DefaultModelsDir() string {
	if d := strings.TrimSpace(os.Getenv(EnvModelsDir)); d != "" {
		return d
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join("AuraAI", "models")
	}
	return filepath.Join(home, "AuraAI", "models")
}

// DefaultDatabase returns the conversation database location.
func DefaultDatabase() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "aura_qwen3.db"
	}
	return filepath.Join(dir, "aura", "aura_qwen3.db")
}

// Load reads the configuration file at path. A missing file or empty path
// yields a zero File; the format follows the extension (.toml or YAML).
func Load(path string) (File, error) {
	if path == "" {
		return File{}, nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return File{}, nil
	}
	if err != nil {
		return File{}, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	return Parse(data, filepath.Ext(path))
}

// Parse decodes data as TOML when ext is ".toml" and as YAML otherwise.
func Parse(data []byte, ext string) (File, error) {
	var f File
	if strings.EqualFold(ext, ".toml") {
		if _, err := toml.Decode(string(data), &f); err != nil {
			return File{}, fmt.Errorf("failed to parse TOML config: %w", err)
		}
		return f, nil
	}
	if err := yaml.Unmarshal(data, &f); err != nil {
		return File{}, fmt.Errorf("failed to parse YAML config: %w", err)
	}
	return f, nil
}

// Values are the effective settings after flags and the file are merged.
type Values struct {
	ModelsDir    string
	Model        string
	Database     string
	OrtLibrary   string
	InputName    string
	OutputName   string
	Tokenizer    string
	SystemPrompt string

	MaxNewTokens int
	Temperature  float64
	TopP         float64
	Seed         int64

	ContextWindow int
	VocabSize     int
	EOS           int
	Threads       int
	HistoryTurns  int
	EchoPrompt    bool

	LogLevel  string
	LogFormat string
}

// FlagSet reports whether a command-line flag was given explicitly.
// *cli.Command satisfies it.
type FlagSet interface {
	IsSet(name string) bool
}

// Apply copies every value set in f into v unless one of the named flags
// for that value was given explicitly.
func (f File) Apply(flags FlagSet, v *Values) {
	set := func(names ...string) bool {
		for _, n := range names {
			if flags.IsSet(n) {
				return true
			}
		}
		return false
	}

	if f.ModelsDir != "" && !set("models-path") {
		v.ModelsDir = f.ModelsDir
	}
	if f.Model != "" && !set("model") {
		v.Model = f.Model
	}
	if f.Database != "" && !set("db") {
		v.Database = f.Database
	}
	if f.OrtLibrary != "" && !set("ort-lib") {
		v.OrtLibrary = f.OrtLibrary
	}
	if f.InputName != "" && !set("input-name") {
		v.InputName = f.InputName
	}
	if f.OutputName != "" && !set("output-name") {
		v.OutputName = f.OutputName
	}
	if f.Tokenizer != "" && !set("tokenizer") {
		v.Tokenizer = f.Tokenizer
	}
	if f.SystemPrompt != "" && !set("system") {
		v.SystemPrompt = f.SystemPrompt
	}

	if f.MaxNewTokens != nil && !set("max-tokens", "n") {
		v.MaxNewTokens = *f.MaxNewTokens
	}
	if f.Temperature != nil && !set("temp", "temperature", "t") {
		v.Temperature = *f.Temperature
	}
	if f.TopP != nil && !set("top-p", "top_p") {
		v.TopP = *f.TopP
	}
	if f.Seed != nil && !set("seed") {
		v.Seed = *f.Seed
	}

	if f.ContextWindow != nil && !set("context-window", "ctx") {
		v.ContextWindow = *f.ContextWindow
	}
	if f.VocabSize != nil && !set("vocab-size") {
		v.VocabSize = *f.VocabSize
	}
	if f.EOS != nil && !set("eos") {
		v.EOS = *f.EOS
	}
	if f.Threads != nil && !set("threads") {
		v.Threads = *f.Threads
	}
	if f.HistoryTurns != nil && !set("history") {
		v.HistoryTurns = *f.HistoryTurns
	}
	if f.EchoPrompt != nil && !set("echo") {
		v.EchoPrompt = *f.EchoPrompt
	}

	if f.LogLevel != "" && !set("log-level") {
		v.LogLevel = f.LogLevel
	}
	if f.LogFormat != "" && !set("log-format") {
		v.LogFormat = f.LogFormat
	}
}
