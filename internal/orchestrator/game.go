// Package orchestrator runs the turn loop of a story session: backend
// choice, prompt rendering, backend invocation, history persistence and
// end-marker detection.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/Yates-Labs/odyssey/internal/backend"
	"github.com/Yates-Labs/odyssey/internal/history"
	"github.com/Yates-Labs/odyssey/internal/narrative"
)

// StartSentinel is the hidden first input that makes the backend open the story.
const StartSentinel = "start"

// InputPrompt is shown whenever the operator is asked for the next move.
const InputPrompt = "Your input: "

var (
	ErrInputClosed = errors.New("operator input closed")
	ErrNoBackend   = errors.New("no backend selected")
	ErrNotStarted  = errors.New("session history not opened")
)

// Console is the operator I/O the orchestrator drives.
type Console interface {
	ReadLine(ctx context.Context, prompt string) (string, error)
	Story(text string) error
	Info(msg string) error
	Error(msg string) error
	Farewell() error
}

// Selector resolves a backend token into a profile.
type Selector interface {
	Select(token string) (*backend.Profile, error)
}

// HistoryOpener connects the session history. It is called once, after a
// backend has been selected, so a failed selection leaves the store untouched.
type HistoryOpener func(ctx context.Context) (*history.History, error)

// RuntimeContext carries everything a run needs. It is built once at
// startup and shared by reference.
type RuntimeContext struct {
	OpenHistory HistoryOpener
	Selector    Selector
	Console     Console
	Logger      *slog.Logger

	// Backend optionally pre-selects a token so the menu is skipped.
	Backend string
}

// Orchestrator owns the state of a single story session.
type Orchestrator struct {
	rt        *RuntimeContext
	logger    *slog.Logger
	state     State
	profile   *backend.Profile
	generator *narrative.Generator
	history   *history.History
	turns     int
}

// New creates an orchestrator in the AwaitingBackendChoice state.
func New(rt *RuntimeContext) *Orchestrator {
	logger := rt.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Orchestrator{
		rt:     rt,
		logger: logger,
		state:  AwaitingBackendChoice,
	}
}

// State returns the current phase of the run.
func (o *Orchestrator) State() State { return o.state }

// Profile returns the active backend profile, or nil before selection.
func (o *Orchestrator) Profile() *backend.Profile { return o.profile }

// Turns returns the number of completed turns.
func (o *Orchestrator) Turns() int { return o.turns }

// IsTerminal reports whether a response ends the story. The check is a
// literal, case-sensitive substring match on narrative.EndMarker.
func IsTerminal(response string) bool {
	return strings.Contains(response, narrative.EndMarker)
}

// History returns the session history, or nil before Start.
func (o *Orchestrator) History() *history.History { return o.history }

// Run asks for a backend, clears the session history and plays turns until
// a response contains the end marker. Store, configuration and invocation
// errors abort the run; turns already recorded stay in the store.
func (o *Orchestrator) Run(ctx context.Context) error {
	if err := o.ChooseBackend(ctx); err != nil {
		return err
	}

	if err := o.Start(ctx); err != nil {
		return err
	}

	input := StartSentinel
	for {
		response, err := o.Turn(ctx, input)
		if err != nil {
			return err
		}

		if IsTerminal(response) {
			o.state = Terminated
			o.logger.Info("story finished", "session", o.history.SessionID(), "turns", o.turns)
			return o.rt.Console.Farewell()
		}

		input, err = o.rt.Console.ReadLine(ctx, InputPrompt)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return ErrInputClosed
			}
			return fmt.Errorf("failed to read input: %w", err)
		}
	}
}

// ChooseBackend resolves the pre-selected token or keeps prompting until the
// operator enters a valid one. Unknown tokens are reported and re-prompted;
// any other selection error is returned.
func (o *Orchestrator) ChooseBackend(ctx context.Context) error {
	if o.state != AwaitingBackendChoice {
		return nil
	}

	token := o.rt.Backend
	for {
		if token != "" {
			profile, err := o.rt.Selector.Select(token)
			switch {
			case err == nil:
				return o.activate(profile)
			case errors.Is(err, backend.ErrUnknownBackend):
				o.logger.Debug("rejected backend choice", "token", token)
				if err := o.rt.Console.Error(backend.InvalidChoice()); err != nil {
					return err
				}
			default:
				return err
			}
		}

		if err := ctx.Err(); err != nil {
			return err
		}

		var err error
		token, err = o.rt.Console.ReadLine(ctx, backend.Menu())
		if err != nil {
			if errors.Is(err, io.EOF) {
				return ErrInputClosed
			}
			return fmt.Errorf("failed to read backend choice: %w", err)
		}
		token = strings.TrimSpace(token)
		if token == "" {
			if err := o.rt.Console.Error(backend.InvalidChoice()); err != nil {
				return err
			}
		}
	}
}

func (o *Orchestrator) activate(profile *backend.Profile) error {
	o.profile = profile
	o.generator = narrative.NewGenerator(profile.LLM, profile.Config)
	o.state = Running
	o.logger.Info("backend selected", "backend", profile.ID, "model", profile.Config.Model)
	return o.rt.Console.Info(fmt.Sprintf("Using %s (%s)", profile.Name, profile.Config.Model))
}

// Start opens the session history and clears it. It runs once per
// session; a store failure is returned and the run must not continue.
func (o *Orchestrator) Start(ctx context.Context) error {
	if o.history != nil {
		return nil
	}
	if o.rt.OpenHistory == nil {
		return ErrNotStarted
	}

	h, err := o.rt.OpenHistory(ctx)
	if err != nil {
		return fmt.Errorf("failed to open history: %w", err)
	}
	if err := h.Reset(ctx); err != nil {
		return fmt.Errorf("failed to reset session %s: %w", h.SessionID(), err)
	}
	o.history = h
	return nil
}

// Turn plays one exchange: render the template against the stored history
// and input, invoke the backend, record the exchange and display the
// response. It returns the raw response.
func (o *Orchestrator) Turn(ctx context.Context, input string) (string, error) {
	if o.state != Running || o.generator == nil {
		return "", ErrNoBackend
	}
	if o.history == nil {
		return "", ErrNotStarted
	}

	transcript, err := o.history.Render(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to load history: %w", err)
	}

	prompt := o.profile.Template.Render(transcript, input)
	reply, err := o.generator.Generate(ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("turn %d: %w", o.turns+1, err)
	}

	if err := o.history.Record(ctx, input, reply.Text); err != nil {
		return "", fmt.Errorf("failed to record turn %d: %w", o.turns+1, err)
	}
	o.turns++
	o.logger.Debug("turn completed",
		"backend", o.profile.ID,
		"turn", o.turns,
		"latency", reply.Latency,
		"response_chars", len(reply.Text))

	if err := o.rt.Console.Story(reply.Text); err != nil {
		return "", err
	}
	return reply.Text, nil
}
