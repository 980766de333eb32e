package cli

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/andywolf/twentyq/internal/action"
	"github.com/andywolf/twentyq/internal/cloud/gcp"
	"github.com/andywolf/twentyq/internal/config"
	"github.com/andywolf/twentyq/internal/decision"
	"github.com/andywolf/twentyq/internal/engine"
	"github.com/andywolf/twentyq/internal/events"
	"github.com/andywolf/twentyq/internal/grader"
	"github.com/andywolf/twentyq/internal/guesser"
	"github.com/andywolf/twentyq/internal/host"
	"github.com/andywolf/twentyq/internal/kb"
	"github.com/andywolf/twentyq/internal/llm"
	"github.com/andywolf/twentyq/internal/observability"
	"github.com/andywolf/twentyq/internal/prompt"
	"github.com/andywolf/twentyq/internal/routing"
	"github.com/andywolf/twentyq/internal/runner"
	"github.com/andywolf/twentyq/internal/store"
)

// app holds the collaborators shared by the play and bench commands and the
// cleanups they need.
type app struct {
	cfg      *config.Config
	logger   *zap.Logger
	scrubber *observability.Scrubber
	tracer   observability.Tracer
	secrets  gcp.SecretFetcher
	prompts  *prompt.Loader

	kb      *kb.KB
	closers []func() error
}

func newApp(cfg *config.Config, logger *zap.Logger) *app {
	return &app{
		cfg:      cfg,
		logger:   logger,
		scrubber: observability.NewScrubber(),
		tracer:   &observability.NoOpTracer{},
		prompts:  prompt.NewLoader(cfg.Prompts.Dir),
	}
}

// Close flushes the tracer and releases sinks and clients, newest first.
func (a *app) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := a.tracer.Stop(ctx); err != nil {
		a.logger.Sugar().Warnf("Failed to flush traces: %v", err)
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Sugar().Warnf("Cleanup failed: %v", err)
		}
	}
	a.closers = nil
}

func (a *app) onClose(fn func() error) {
	a.closers = append(a.closers, fn)
}

// resolveSecret returns value, fetching it from Secret Manager when it is a
// gcp-secret:// reference. The client is created on first use.
func (a *app) resolveSecret(ctx context.Context, value string) (string, error) {
	if !gcp.IsSecretRef(value) {
		return value, nil
	}
	if a.secrets == nil {
		client, err := gcp.NewSecretManagerClient(ctx, "")
		if err != nil {
			return "", err
		}
		a.secrets = client
		a.onClose(client.Close)
	}
	secret, err := gcp.ResolveSecret(ctx, a.secrets, value)
	if err != nil {
		return "", err
	}
	a.scrubber.AddLiteral(secret)
	return secret, nil
}

// startTracer swaps in a Langfuse tracer when keys are configured.
func (a *app) startTracer(ctx context.Context) error {
	lf := a.cfg.Langfuse
	if !lf.Enabled() {
		return nil
	}
	secret, err := a.resolveSecret(ctx, lf.SecretKey)
	if err != nil {
		return fmt.Errorf("failed to resolve langfuse secret key: %w", err)
	}
	lf.SecretKey = secret
	lt := observability.NewLangfuseTracer(lf, a.logger, a.scrubber)
	a.tracer = lt
	a.logger.Sugar().Infof("Tracing to Langfuse at %s", lt.BaseURL())
	return nil
}

func (a *app) knowledgeBase() (*kb.KB, error) {
	if a.kb != nil {
		return a.kb, nil
	}
	if a.cfg.KB.Path == "" {
		a.kb = kb.Seed()
		return a.kb, nil
	}
	k, err := kb.Load(a.cfg.KB.Path)
	if err != nil {
		return nil, err
	}
	a.kb = k
	return k, nil
}

// completer builds the model caller for role, returning it with its
// provider:model label.
func (a *app) completer(ctx context.Context, role, name string) (llm.Completer, string, error) {
	mc := routing.NewRouter(&a.cfg.Routing).ModelForRole(role)

	providers := make(map[string]llm.ProviderConfig, len(a.cfg.Providers))
	for p, pc := range a.cfg.Providers {
		key, err := a.resolveSecret(ctx, pc.APIKey)
		if err != nil {
			return nil, "", fmt.Errorf("failed to resolve %s API key: %w", p, err)
		}
		a.scrubber.AddLiteral(key)
		pc.APIKey = key
		providers[p] = pc
	}

	c, err := llm.New(ctx, mc, providers, llm.Options{
		Retry:  a.cfg.Retry,
		Tracer: a.tracer,
		Logger: a.logger,
		Name:   name,
	})
	if err != nil {
		return nil, "", err
	}
	return c, mc.String(), nil
}

// guesser returns the shared guesser, a per-game factory when the mode needs
// fresh state for every game, and a label for results.
func (a *app) guesser(ctx context.Context) (engine.Guesser, runner.GuesserFactory, string, error) {
	pc := a.cfg.Guesser
	switch pc.Mode {
	case config.ModeKB:
		k, err := a.knowledgeBase()
		if err != nil {
			return nil, nil, "", err
		}
		return guesser.NewEntropy(k), nil, "kb:entropy", nil

	case config.ModeScript:
		script, err := guesser.LoadScript(pc.Script)
		if err != nil {
			return nil, nil, "", err
		}
		factory := func(string, int) (engine.Guesser, error) {
			return guesser.NewScripted(script), nil
		}
		return guesser.NewScripted(script), factory, "script:" + pc.Script, nil

	default:
		c, model, err := a.completer(ctx, routing.RoleGuesser, "guesser")
		if err != nil {
			return nil, nil, "", err
		}
		g := guesser.NewLLM(c, a.prompts, guesser.LLMConfig{
			Temperature:       pc.Temperature,
			MaxTokens:         pc.MaxTokens,
			QuestionWordLimit: a.cfg.Game.QuestionWordLimit,
			GuessWordLimit:    a.cfg.Game.GuessWordLimit,
		})
		return g, nil, model, nil
	}
}

func (a *app) judge(ctx context.Context) (host.Judge, string, error) {
	pc := a.cfg.Host
	switch pc.Mode {
	case config.ModeKB:
		k, err := a.knowledgeBase()
		if err != nil {
			return nil, "", err
		}
		return host.NewKBJudge(k), "kb", nil

	case config.ModeScript:
		j, err := host.LoadScriptedJudge(pc.Script)
		if err != nil {
			return nil, "", err
		}
		return j, "script:" + pc.Script, nil

	default:
		c, model, err := a.completer(ctx, routing.RoleHost, "host.judge")
		if err != nil {
			return nil, "", err
		}
		return host.NewLLMJudge(c, action.NewSchema(a.cfg.ActionConfig()), a.cfg.Budget(), a.prompts), model, nil
	}
}

// sinks assembles every configured result sink.
func (a *app) sinks(ctx context.Context, outDir string) (engine.Sink, error) {
	var multi engine.MultiSink

	if outDir != "" {
		fs, err := events.NewFileSink(outDir)
		if err != nil {
			return nil, err
		}
		multi = append(multi, fs)
	}

	if a.cfg.Store.Path != "" {
		s, err := store.Open(ctx, a.cfg.Store.Path, a.logger)
		if err != nil {
			return nil, err
		}
		a.onClose(s.Close)
		multi = append(multi, s)
	}

	if cl := a.cfg.Output.CloudLogging; cl.Project != "" {
		sink, err := gcp.NewCloudLogSink(ctx, cl.Project, cl.LogID, map[string]string{"version": rootCmd.Version})
		if err != nil {
			return nil, err
		}
		a.onClose(sink.Close)
		multi = append(multi, sink)
	}

	if len(multi) == 0 {
		return nil, nil
	}
	return multi, nil
}

// engine wires a complete Engine. categories extend the gate's broad
// category list (from a topics file).
// gateCategories lists the words the gate treats as category labels rather
// than object names: topic-file categories plus every macro class.
func gateCategories(topicCategories []string, table *grader.MacroTable) []string {
	out := append([]string(nil), topicCategories...)
	return append(out, table.ClassNames()...)
}

func (a *app) engine(ctx context.Context, outDir string, recorder engine.Recorder, categories []string) (*engine.Engine, runner.GuesserFactory, error) {
	if err := a.startTracer(ctx); err != nil {
		return nil, nil, err
	}

	g, factory, guesserModel, err := a.guesser(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build guesser: %w", err)
	}
	j, hostModel, err := a.judge(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build host: %w", err)
	}

	macros := a.cfg.MacroClasses
	if len(macros) == 0 {
		macros = grader.DefaultMacroClasses()
	}
	table, err := grader.NewMacroTable(macros)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid macro_classes: %w", err)
	}

	sink, err := a.sinks(ctx, outDir)
	if err != nil {
		return nil, nil, err
	}

	e, err := engine.New(engine.Config{
		MaxTurns:     a.cfg.Game.MaxTurns,
		Schema:       a.cfg.ActionConfig(),
		Budget:       a.cfg.Budget(),
		Memory:       a.cfg.Memory,
		GuesserModel: guesserModel,
		HostModel:    hostModel,
	}, engine.Options{
		Guesser:  g,
		Judge:    j,
		Gate:     decision.NewGate(a.cfg.GateConfig(), gateCategories(categories, table)...),
		Grader:   grader.New(table),
		Sink:     sink,
		Recorder: recorder,
		Tracer:   a.tracer,
		Logger:   a.logger,
	})
	if err != nil {
		return nil, nil, err
	}
	return e, factory, nil
}
