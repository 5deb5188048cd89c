package main

import (
	"github.com/urfave/cli/v3"

	"aura-go/aura"
	"aura-go/backend/onnx"
	"aura-go/internal/settings"
)

// flagValues receives flag destinations. The embedded Values are merged with
// the config file before use.
type flagValues struct {
	configPath string
	progress   bool
	settings.Values
}

func modelFlags(f *flagValues) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "models-path",
			Aliases:     []string{"path"},
			Usage:       "directory containing .onnx models and tokenizer.json",
			Value:       settings.DefaultModelsDir(),
			Destination: &f.ModelsDir,
		},
		&cli.StringFlag{
			Name:        "model",
			Aliases:     []string{"m"},
			Usage:       "model file name in the models directory, or a path",
			Destination: &f.Model,
		},
		&cli.StringFlag{
			Name:        "ort-lib",
			Usage:       "path to the ONNX Runtime shared library",
			Sources:     cli.EnvVars("ONNXRUNTIME_LIB"),
			Destination: &f.OrtLibrary,
		},
		&cli.StringFlag{
			Name:        "input-name",
			Usage:       "name of the model's token id input tensor",
			Value:       onnx.DefaultInputName,
			Destination: &f.InputName,
		},
		&cli.StringFlag{
			Name:        "output-name",
			Usage:       "name of the model's logits output tensor",
			Value:       onnx.DefaultOutputName,
			Destination: &f.OutputName,
		},
		&cli.StringFlag{
			Name:        "tokenizer",
			Usage:       "tokenizer implementation (vocab, hf)",
			Value:       tokenizerVocab,
			Destination: &f.Tokenizer,
		},
		&cli.IntFlag{
			Name:        "context-window",
			Aliases:     []string{"ctx"},
			Usage:       "maximum prompt plus generated tokens",
			Value:       aura.DefaultContextWindow,
			Destination: &f.ContextWindow,
		},
		&cli.IntFlag{
			Name:        "vocab-size",
			Usage:       "scores per position emitted by the model",
			Value:       aura.DefaultVocabSize,
			Destination: &f.VocabSize,
		},
		&cli.IntFlag{
			Name:        "eos",
			Usage:       "end-of-sequence token id",
			Value:       aura.DefaultEOS,
			Destination: &f.EOS,
		},
		&cli.IntFlag{
			Name:        "threads",
			Usage:       "intra-op threads for the inference backend",
			Value:       aura.DefaultNumThreads,
			Destination: &f.Threads,
		},
	}
}

func generationFlags(f *flagValues) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "system",
			Aliases:     []string{"sys"},
			Usage:       "system prompt placed before the conversation",
			Value:       aura.DefaultSystemPrompt,
			Destination: &f.SystemPrompt,
		},
		&cli.IntFlag{
			Name:        "max-tokens",
			Aliases:     []string{"n"},
			Usage:       "maximum number of tokens to generate",
			Value:       aura.DefaultMaxNewTokens,
			Destination: &f.MaxNewTokens,
		},
		&cli.Float64Flag{
			Name:        "temp",
			Aliases:     []string{"temperature", "t"},
			Usage:       "sampling temperature (0 disables scaling)",
			Value:       aura.DefaultTemperature,
			Destination: &f.Temperature,
		},
		&cli.Float64Flag{
			Name:        "top-p",
			Aliases:     []string{"top_p"},
			Usage:       "nucleus sampling probability mass",
			Value:       aura.DefaultTopP,
			Destination: &f.TopP,
		},
		&cli.Int64Flag{
			Name:        "seed",
			Usage:       "sampler seed (0 = time based)",
			Destination: &f.Seed,
		},
		&cli.IntFlag{
			Name:        "history",
			Usage:       "prior turns included in the prompt",
			Value:       aura.DefaultHistoryTurns,
			Destination: &f.HistoryTurns,
		},
		&cli.BoolFlag{
			Name:        "echo",
			Usage:       "print the prompt together with the reply",
			Destination: &f.EchoPrompt,
		},
		&cli.BoolFlag{
			Name:        "progress",
			Usage:       "show a generation progress bar on stderr",
			Destination: &f.progress,
		},
	}
}

func storeFlags(f *flagValues) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "db",
			Usage:       "conversation database file",
			Value:       settings.DefaultDatabase(),
			Destination: &f.Database,
		},
	}
}

func commonFlags(f *flagValues) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "config",
			Usage:       "configuration file (.yaml or .toml)",
			Value:       settings.Path(),
			Destination: &f.configPath,
		},
		&cli.StringFlag{
			Name:        "log-level",
			Usage:       "log level (debug, info, warn, error)",
			Value:       "warn",
			Destination: &f.LogLevel,
		},
		&cli.StringFlag{
			Name:        "log-format",
			Usage:       "log format (text, json)",
			Value:       "text",
			Destination: &f.LogFormat,
		},
	}
}

func flagsOf(f *flagValues, groups ...func(*flagValues) []cli.Flag) []cli.Flag {
	out := commonFlags(f)
	for _, g := range groups {
		out = append(out, g(f)...)
	}
	return out
}
