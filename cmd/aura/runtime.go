package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/urfave/cli/v3"

	"aura-go/aura"
	"aura-go/backend/onnx"
	"aura-go/internal/logger"
	"aura-go/internal/settings"
	"aura-go/models"
	"aura-go/store"
	"aura-go/tokenizer"
)

// resolve merges the config file under explicitly set flags and installs the
// configured logger in ctx.
func resolve(ctx context.Context, cmd *cli.Command, f *flagValues) (context.Context, settings.Values, error) {
	file, err := settings.Load(f.configPath)
	if err != nil {
		return ctx, settings.Values{}, err
	}
	vals := f.Values
	file.Apply(cmd, &vals)

	level := logger.ParseLevel(vals.LogLevel)
	var log logger.Logger
	switch strings.ToLower(vals.LogFormat) {
	case "json":
		log = logger.JSON(os.Stderr, level)
	case "", "text":
		log = logger.Text(os.Stderr, level)
	default:
		return ctx, settings.Values{}, fmt.Errorf("unknown log format %q", vals.LogFormat)
	}
	return logger.WithContext(ctx, log), vals, nil
}

// Tokenizer implementations selectable with --tokenizer.
const (
	tokenizerVocab = "vocab"
	tokenizerHF    = "hf"
)

// openTokenizer loads tokenizer.json from path with the named implementation.
// The closer is nil when the tokenizer holds no native resources.
func openTokenizer(kind, path string, log logger.Logger) (aura.Tokenizer, io.Closer, error) {
	switch strings.ToLower(kind) {
	case "", tokenizerVocab:
		return tokenizer.Load(path, tokenizer.WithLogger(log)), nil, nil
	case tokenizerHF:
		return loadHF(path)
	default:
		return nil, nil, fmt.Errorf("unknown tokenizer %q", kind)
	}
}

func newBackend(vals settings.Values, log logger.Logger) *onnx.Backend {
	return onnx.New(
		onnx.WithSharedLibraryPath(vals.OrtLibrary),
		onnx.WithTensorNames(vals.InputName, vals.OutputName),
		onnx.WithLogger(log),
	)
}

// runtime is the assembled pipeline a command works with.
type runtime struct {
	vals      settings.Values
	log       logger.Logger
	catalog   *models.Catalog
	backend   *onnx.Backend
	tokenizer io.Closer
	assistant *aura.Assistant
	store     *store.Store
}

type runtimeOptions struct {
	withStore bool
	progress  bool
}

// openRuntime builds the assistant from vals and loads the configured model.
// A model that cannot be found or opened is logged, not returned: the
// assistant then answers with a not-loaded message.
func openRuntime(ctx context.Context, vals settings.Values, opts runtimeOptions) (*runtime, error) {
	log := logger.FromContext(ctx)

	cfg, err := aura.NewConfig(
		aura.WithContextWindow(vals.ContextWindow),
		aura.WithVocabSize(vals.VocabSize),
		aura.WithEOS(vals.EOS),
		aura.WithNumThreads(vals.Threads),
		aura.WithHistoryTurns(vals.HistoryTurns),
		aura.WithSystemPrompt(vals.SystemPrompt),
		aura.WithEchoPrompt(vals.EchoPrompt),
		aura.WithSeed(vals.Seed),
	)
	if err != nil {
		return nil, err
	}

	if err := models.EnsureDir(vals.ModelsDir); err != nil {
		return nil, err
	}

	rt := &runtime{
		vals:    vals,
		log:     log,
		catalog: models.NewCatalog(models.WithLogger(log)),
		backend: newBackend(vals, log),
	}

	tok, closer, err := openTokenizer(vals.Tokenizer, models.TokenizerPath(vals.ModelsDir), log)
	if err != nil {
		rt.Close()
		return nil, err
	}
	rt.tokenizer = closer

	assistantOpts := []aura.AssistantOption{aura.WithLogger(log)}
	if opts.withStore {
		st, err := store.Open(vals.Database, store.WithLogger(log))
		if err != nil {
			rt.Close()
			return nil, err
		}
		rt.store = st
		assistantOpts = append(assistantOpts, aura.WithStore(st))
	}
	if opts.progress {
		assistantOpts = append(assistantOpts, aura.WithProgressOutput(os.Stderr))
	}
	rt.assistant = aura.NewAssistant(cfg, rt.backend, tok, assistantOpts...)

	info, err := rt.catalog.Resolve(vals.ModelsDir, vals.Model)
	if err != nil {
		log.Warn("no model to load", "error", err)
		return rt, nil
	}
	if err := rt.assistant.LoadModel(ctx, info.Path); err != nil {
		var loadErr *aura.ModelLoadError
		if !errors.As(err, &loadErr) {
			rt.Close()
			return nil, err
		}
	}
	return rt, nil
}

func (rt *runtime) generationConfig() aura.GenerationConfig {
	return aura.NewGenerationConfig(
		aura.WithMaxNewTokens(rt.vals.MaxNewTokens),
		aura.WithTemperature(rt.vals.Temperature),
		aura.WithTopP(rt.vals.TopP),
	)
}

func (rt *runtime) Close() {
	if rt.assistant != nil {
		rt.assistant.Close()
	}
	if rt.tokenizer != nil {
		if err := rt.tokenizer.Close(); err != nil {
			rt.log.Warn("failed to release tokenizer", "error", err)
		}
	}
	if rt.store != nil {
		if err := rt.store.Close(); err != nil {
			rt.log.Warn("failed to close conversation store", "error", err)
		}
	}
	if rt.backend != nil {
		if err := rt.backend.Close(); err != nil {
			rt.log.Warn("failed to shut down ONNX runtime", "error", err)
		}
	}
	if rt.catalog != nil {
		rt.catalog.Close()
	}
}
