// Package engine runs one game of 20 Questions: a finite-state machine that
// alternates guesser actions and host answers under a fixed turn budget and
// produces exactly one GameResult.
package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/andywolf/twentyq/internal/action"
	"github.com/andywolf/twentyq/internal/decision"
	"github.com/andywolf/twentyq/internal/grader"
	"github.com/andywolf/twentyq/internal/guesser"
	"github.com/andywolf/twentyq/internal/host"
	"github.com/andywolf/twentyq/internal/memory"
	"github.com/andywolf/twentyq/internal/observability"
)

// DefaultMaxTurns is the standard 20 Questions budget.
const DefaultMaxTurns = 20

// Guesser produces raw model text for the three guesser requests.
type Guesser interface {
	Assess(ctx context.Context, v guesser.View) (string, error)
	Ask(ctx context.Context, v guesser.View) (string, error)
	Guess(ctx context.Context, v guesser.View) (string, error)
}

// Config holds the per-game limits.
type Config struct {
	MaxTurns     int
	Schema       action.Config
	Budget       action.Budget
	Memory       memory.Config
	GuesserModel string
	HostModel    string
}

// Options are the engine's collaborators. Guesser and Judge are required.
type Options struct {
	Guesser  Guesser
	Judge    host.Judge
	Gate     *decision.Gate
	Grader   *grader.Grader
	Sink     Sink
	Recorder Recorder
	Tracer   observability.Tracer
	Logger   *zap.Logger
}

// Game identifies one game to play.
type Game struct {
	ID    string
	Topic string
	// Guesser overrides the engine's guesser for this game only.
	Guesser Guesser
}

// Engine plays games. It holds only stateless or thread-safe collaborators,
// so Play may run concurrently for different games.
type Engine struct {
	cfg      Config
	schema   *action.Schema
	guesser  Guesser
	judge    host.Judge
	gate     *decision.Gate
	grader   *grader.Grader
	sink     Sink
	recorder Recorder
	tracer   observability.Tracer
	logger   *zap.Logger
}

// New creates an Engine.
func New(cfg Config, opts Options) (*Engine, error) {
	if opts.Guesser == nil {
		return nil, fmt.Errorf("engine requires a guesser")
	}
	if opts.Judge == nil {
		return nil, fmt.Errorf("engine requires a host judge")
	}
	if cfg.MaxTurns <= 0 {
		cfg.MaxTurns = DefaultMaxTurns
	}
	if cfg.Budget == (action.Budget{}) {
		cfg.Budget = action.DefaultBudget()
	}
	cfg.Budget = cfg.Budget.WithDefaults()
	if opts.Gate == nil {
		opts.Gate = decision.NewGate(decision.Config{})
	}
	if opts.Grader == nil {
		opts.Grader = grader.New(nil)
	}
	if opts.Tracer == nil {
		opts.Tracer = &observability.NoOpTracer{}
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Engine{
		cfg:      cfg,
		schema:   action.NewSchema(cfg.Schema),
		guesser:  opts.Guesser,
		judge:    opts.Judge,
		gate:     opts.Gate,
		grader:   opts.Grader,
		sink:     opts.Sink,
		recorder: opts.Recorder,
		tracer:   opts.Tracer,
		logger:   opts.Logger,
	}, nil
}

// Config returns the effective configuration.
func (e *Engine) Config() Config { return e.cfg }

// Play runs one game to completion and returns its result. Cancellation of
// ctx takes effect between turns and yields an incomplete result; model
// calls already in flight run to their own timeout.
func (e *Engine) Play(ctx context.Context, g Game) *GameResult {
	if g.ID == "" {
		g.ID = uuid.NewString()
	}
	gs := g.Guesser
	if gs == nil {
		gs = e.guesser
	}
	logger := e.logger.With(zap.String("game_id", g.ID))

	p := &play{
		e:       e,
		game:    g,
		guesser: gs,
		mem:     memory.New(e.cfg.Memory),
		oracle:  host.NewOracle(g.Topic, host.Memo(e.judge), logger),
		fsm:     newMachine(),
		logger:  logger.Sugar(),
		started: time.Now().UTC(),
	}
	p.trace = e.tracer.StartTrace(g.ID, observability.TraceOptions{
		Topic:        g.Topic,
		GuesserModel: e.cfg.GuesserModel,
		HostModel:    e.cfg.HostModel,
	})

	res := p.run(ctx)
	e.finish(ctx, p, res)
	return res
}

func (e *Engine) finish(ctx context.Context, p *play, res *GameResult) {
	p.logInfo("Game finished: topic=%q reason=%s success=%v turns=%d/%d",
		res.Topic, res.Reason, res.Success, res.TurnsUsed, res.MaxTurns)

	if e.sink != nil {
		if err := e.sink.Emit(context.WithoutCancel(ctx), res); err != nil {
			p.logWarning("Failed to persist game result: %v", err)
		}
	}
	if e.recorder != nil {
		e.recorder.Record(res.Outcome())
	}
	e.tracer.CompleteTrace(p.trace, observability.CompleteOptions{
		Status:    string(res.Reason),
		Success:   res.Success,
		TurnsUsed: res.TurnsUsed,
	})
}

// play is the mutable state of one game.
type play struct {
	e       *Engine
	game    Game
	guesser Guesser
	mem     *memory.Memory
	oracle  *host.Oracle
	fsm     *machine
	logger  *zap.SugaredLogger
	trace   observability.TraceContext

	turn        int
	consumed    int
	dupRejected bool
	actions     []ActionRecord
	stats       Stats
	final       *action.Action
	started     time.Time
	result      *GameResult
}

func (p *play) logInfo(format string, args ...interface{}) { p.logger.Infof(format, args...) }
func (p *play) logWarning(format string, args ...interface{}) { p.logger.Warnf(format, args...) }
func (p *play) logError(format string, args ...interface{}) { p.logger.Errorf(format, args...) }

func (p *play) run(ctx context.Context) *GameResult {
	maxTurns := p.e.cfg.MaxTurns
	if err := p.fsm.move(StateAwaitingGuesser, 0); err != nil {
		return p.fail(err)
	}
	p.logInfo("Game started: max_turns=%d", maxTurns)

	for p.turn < maxTurns {
		if err := ctx.Err(); err != nil {
			p.logWarning("Game cancelled before turn %d: %v", p.turn, err)
			return p.end(ReasonCancelled, false, func(r *GameResult) {
				r.Incomplete = true
				r.Error = err.Error()
			})
		}

		span := p.e.tracer.StartTurn(p.trace, p.turn, observability.SpanOptions{MaxTurns: maxTurns})
		tctx := observability.WithSpan(context.WithoutCancel(ctx), span)
		start := time.Now()

		status, res := p.playTurn(tctx, span)
		p.e.tracer.EndTurn(span, status, time.Since(start).Milliseconds())
		if res != nil {
			return res
		}
	}
	return p.end(ReasonExhausted, false, nil)
}

// playTurn runs one turn. A non-nil result ends the game.
func (p *play) playTurn(ctx context.Context, span observability.SpanContext) (string, *GameResult) {
	maxTurns := p.e.cfg.MaxTurns
	lowInfo := decision.LowInformation(p.mem, p.e.gate.Window(), p.dupRejected)
	p.dupRejected = false

	d, preempted := p.e.gate.Preempt(p.mem, p.turn, maxTurns)
	if preempted {
		p.e.tracer.RecordSkipped(span, "guesser.assess", string(d.Reason))
		d.ChangeDimension = d.Kind == action.KindAsk && lowInfo
	} else {
		call := func(ctx context.Context, feedback string) (string, error) {
			return p.guesser.Assess(ctx, p.view(feedback, false))
		}
		a, att, err := action.Obtain(ctx, p.e.cfg.Budget, call, p.e.schema.ParseAssessment)
		if err != nil {
			return "error", p.failTurn(err, att, "assess")
		}
		p.stats.add(att)
		p.mem.AddThought(a.Thought)
		d = p.e.gate.Decide(p.mem, p.turn, maxTurns, decision.Inputs{
			Candidate:          a.Candidate,
			Confidence:         a.Confidence,
			CanonicalShortName: p.e.gate.IsCanonicalShortName(a.Candidate, a.Common),
			Consistent:         a.Consistent,
			LowInformation:     lowInfo,
		})
	}

	if d.Kind == action.KindGuess {
		return p.guessTurn(ctx, d)
	}
	return p.askTurn(ctx, d)
}

func (p *play) view(feedback string, changeDimension bool) guesser.View {
	return guesser.View{
		Memory:          p.mem,
		Turn:            p.turn,
		MaxTurns:        p.e.cfg.MaxTurns,
		ChangeDimension: changeDimension,
		Feedback:        feedback,
	}
}

func (p *play) askTurn(ctx context.Context, d decision.Decision) (string, *GameResult) {
	call := func(ctx context.Context, feedback string) (string, error) {
		return p.guesser.Ask(ctx, p.view(feedback, d.ChangeDimension))
	}
	parse := func(raw string) (action.Action, action.Diagnostics, error) {
		act, diag, err := p.e.schema.ParseAsk(raw)
		if err != nil {
			return act, diag, err
		}
		if p.mem.IsDuplicateQuestion(act.Text()) {
			p.dupRejected = true
			return act, diag, action.Rejectf(action.ShapeAsk, raw, "question %q was already asked", act.Text())
		}
		return act, diag, nil
	}

	act, att, err := action.Obtain(ctx, p.e.cfg.Budget, call, parse)
	if err != nil {
		return "error", p.failTurn(err, att, "ask")
	}
	p.stats.add(att)

	q := act.Text()
	if err := p.commit(ActionRecord{
		Turn:     p.turn,
		Role:     RoleGuesser,
		Kind:     KindAsk,
		Text:     q,
		Thought:  act.Thought(),
		Decision: d.Reason,
		Attempts: att,
	}); err != nil {
		return "error", p.fail(err)
	}
	if err := p.fsm.move(StateAwaitingHost, p.turn); err != nil {
		return "error", p.fail(err)
	}
	p.mem.AddThought(act.Thought())
	p.mem.RecordAsk(q)

	answer, err := p.oracle.Answer(ctx, q)
	if err != nil {
		p.logError("Host failed to answer %q: %v", q, err)
		reason := ReasonModelError
		var ex *action.ExhaustedError
		var se *action.SchemaError
		if errors.As(err, &ex) || errors.As(err, &se) {
			reason = ReasonSchemaExhausted
		}
		return "error", p.end(reason, false, func(r *GameResult) { r.Error = err.Error() })
	}
	p.actions = append(p.actions, ActionRecord{
		Turn:   p.turn,
		Role:   RoleHost,
		Kind:   KindAnswer,
		Answer: answer,
		At:     time.Now().UTC(),
	})
	p.mem.RecordQA(q, answer, "")
	p.logInfo("Turn %d: ask %q -> %s (%s)", p.turn, q, answer, d.Reason)

	p.turn++
	if err := p.fsm.move(StateAwaitingGuesser, p.turn); err != nil {
		return "error", p.fail(err)
	}
	return KindAsk, nil
}

func (p *play) guessTurn(ctx context.Context, d decision.Decision) (string, *GameResult) {
	call := func(ctx context.Context, feedback string) (string, error) {
		return p.guesser.Guess(ctx, p.view(feedback, false))
	}
	parse := func(raw string) (action.Action, action.Diagnostics, error) {
		act, diag, err := p.e.schema.ParseGuess(raw)
		if err != nil {
			return act, diag, err
		}
		if p.mem.IsDuplicateGuess(act.Text()) {
			return act, diag, action.Rejectf(action.ShapeGuess, raw, "guess %q was already tried and is wrong", act.Text())
		}
		return act, diag, nil
	}

	act, att, err := action.Obtain(ctx, p.e.cfg.Budget, call, parse)
	if err != nil {
		return "error", p.failTurn(err, att, "guess")
	}
	p.stats.add(att)

	if p.mem.LastActionWasGuess() && p.turn < p.e.cfg.MaxTurns-1 {
		return "error", p.fail(&ProtocolViolation{
			Code:   ViolationCooldown,
			Turn:   p.turn,
			Detail: "guess immediately after a guess",
		})
	}

	guess := act.Text()
	grade := p.e.grader.Detail(guess, p.game.Topic)
	if err := p.commit(ActionRecord{
		Turn:       p.turn,
		Role:       RoleGuesser,
		Kind:       KindGuess,
		Text:       guess,
		Thought:    act.Thought(),
		Confidence: act.Guess.Confidence,
		Decision:   d.Reason,
		Grade:      &grade,
		Attempts:   att,
	}); err != nil {
		return "error", p.fail(err)
	}
	p.final = &act

	if grade.Correct {
		p.logInfo("Turn %d: guess %q is correct (%s)", p.turn, guess, grade.Rule)
		return KindGuess, p.end(ReasonWin, true, nil)
	}

	p.logInfo("Turn %d: guess %q is wrong (%s)", p.turn, guess, d.Reason)
	p.mem.AddThought(act.Thought())
	p.mem.RecordGuessAttempt(guess)
	p.turn++
	if err := p.fsm.move(StateAwaitingGuesser, p.turn); err != nil {
		return "error", p.fail(err)
	}
	return KindGuess, nil
}

// commit appends the guesser's record for the current turn, enforcing one
// action per turn within the budget.
func (p *play) commit(rec ActionRecord) error {
	if p.turn >= p.e.cfg.MaxTurns {
		return &ProtocolViolation{Code: ViolationTurnOverflow, Turn: p.turn}
	}
	for i := len(p.actions) - 1; i >= 0; i-- {
		if p.actions[i].Role == RoleGuesser {
			if p.actions[i].Turn >= rec.Turn {
				return &ProtocolViolation{
					Code:   ViolationDoubleAction,
					Turn:   p.turn,
					Detail: fmt.Sprintf("turn %d already has a %s", p.actions[i].Turn, p.actions[i].Kind),
				}
			}
			break
		}
	}
	rec.At = time.Now().UTC()
	p.actions = append(p.actions, rec)
	p.consumed++
	return nil
}

// failTurn ends the game after a failed Obtain. A spent retry budget
// forfeits the turn; any other error is a model failure.
func (p *play) failTurn(err error, att action.Attempts, stage string) *GameResult {
	var ex *action.ExhaustedError
	if !errors.As(err, &ex) {
		p.stats.add(att)
		p.logError("Guesser %s call failed: %v", stage, err)
		return p.end(ReasonModelError, false, func(r *GameResult) { r.Error = err.Error() })
	}

	p.stats.add(ex.Attempts)
	p.logWarning("Guesser %s output invalid after %d calls, forfeiting turn %d: %v", stage, ex.Attempts.Calls, p.turn, ex.Err)
	if cerr := p.commit(ActionRecord{
		Turn:     p.turn,
		Role:     RoleGuesser,
		Kind:     KindForfeit,
		Attempts: ex.Attempts,
		Error:    ex.Err.Error(),
	}); cerr != nil {
		return p.fail(cerr)
	}
	return p.end(ReasonSchemaExhausted, false, func(r *GameResult) { r.Error = err.Error() })
}

// fail ends the game on a protocol violation or unexpected error.
func (p *play) fail(err error) *GameResult {
	var pv *ProtocolViolation
	if errors.As(err, &pv) {
		p.logError("Protocol violation: %v", pv)
		return p.end(ReasonProtocolViolation, false, func(r *GameResult) {
			r.Violation = pv
			r.Error = pv.Error()
		})
	}
	p.logError("Game failed: %v", err)
	return p.end(ReasonModelError, false, func(r *GameResult) { r.Error = err.Error() })
}

// end builds the GameResult. It runs once; later calls return the same
// result.
func (p *play) end(reason Reason, success bool, decorate func(*GameResult)) *GameResult {
	if p.result != nil {
		return p.result
	}
	if !p.fsm.state.IsTerminal() {
		if err := p.fsm.move(StateTerminal, p.turn); err != nil {
			p.logError("Cannot terminate cleanly: %v", err)
		}
	}

	turnsUsed := p.consumed
	if reason == ReasonExhausted {
		turnsUsed = p.e.cfg.MaxTurns
	}
	res := &GameResult{
		GameID:       p.game.ID,
		Topic:        p.game.Topic,
		Success:      success,
		TurnsUsed:    turnsUsed,
		MaxTurns:     p.e.cfg.MaxTurns,
		FinalAction:  p.final,
		Reason:       reason,
		Transcript:   Transcript{QA: p.mem.History(), Actions: append([]ActionRecord(nil), p.actions...)},
		Stats:        p.stats,
		StartedAt:    p.started,
		FinishedAt:   time.Now().UTC(),
		GuesserModel: p.e.cfg.GuesserModel,
		HostModel:    p.e.cfg.HostModel,
	}
	if decorate != nil {
		decorate(res)
	}
	p.result = res
	return res
}
