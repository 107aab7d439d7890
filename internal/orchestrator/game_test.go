package orchestrator

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/Yates-Labs/odyssey/internal/backend"
	"github.com/Yates-Labs/odyssey/internal/config"
	"github.com/Yates-Labs/odyssey/internal/history"
	"github.com/Yates-Labs/odyssey/internal/narrative"
)

// scriptedConsole replays operator lines and records everything shown.
type scriptedConsole struct {
	inputs  []string
	prompts []string
	stories []string
	errors  []string
	infos   []string
	bye     int
	events  []string

	// When wait is set, an exhausted script blocks until ctx is done
	// instead of reporting EOF; wait runs first.
	wait    func()
	infoErr error
}

func (c *scriptedConsole) ReadLine(ctx context.Context, prompt string) (string, error) {
	c.prompts = append(c.prompts, prompt)
	c.events = append(c.events, "prompt:"+prompt)
	if len(c.inputs) == 0 {
		if c.wait != nil {
			c.wait()
			<-ctx.Done()
			return "", ctx.Err()
		}
		return "", io.EOF
	}
	line := c.inputs[0]
	c.inputs = c.inputs[1:]
	return line, nil
}

func (c *scriptedConsole) Story(text string) error {
	c.stories = append(c.stories, strings.TrimSpace(text))
	c.events = append(c.events, "story")
	return nil
}

func (c *scriptedConsole) Info(msg string) error {
	c.infos = append(c.infos, msg)
	return c.infoErr
}

func (c *scriptedConsole) Error(msg string) error {
	c.errors = append(c.errors, msg)
	c.events = append(c.events, "error")
	return nil
}

func (c *scriptedConsole) Farewell() error {
	c.bye++
	c.events = append(c.events, "farewell")
	return nil
}

// countingStore wraps a store and counts mutations.
type countingStore struct {
	history.Store
	clears  int
	appends int
	failOn  string
}

func (s *countingStore) Clear(ctx context.Context, sessionID string) error {
	if s.failOn == "clear" {
		return history.ErrStoreConnection
	}
	s.clears++
	return s.Store.Clear(ctx, sessionID)
}

func (s *countingStore) Append(ctx context.Context, sessionID string, entries ...history.Entry) error {
	s.appends++
	return s.Store.Append(ctx, sessionID, entries...)
}

type fixture struct {
	console  *scriptedConsole
	store    *countingStore
	history  *history.History
	mock     *narrative.MockLLM
	builds   int
	opens    int
	selector *backend.Selector
	orch     *Orchestrator
}

func newFixture(t *testing.T, inputs []string, responses ...string) *fixture {
	t.Helper()
	cfg, err := config.FromLookup(config.File{}, func(k string) (string, bool) {
		switch k {
		case config.EnvOpenAIKey:
			return "sk-openai", true
		case config.EnvMistralKey:
			return "sk-mistral", true
		}
		return "", false
	})
	if err != nil {
		t.Fatalf("failed to build config: %v", err)
	}

	f := &fixture{
		console: &scriptedConsole{inputs: inputs},
		store:   &countingStore{Store: history.NewMemoryStore()},
		mock:    narrative.NewMockLLM(responses...),
	}
	f.history = history.New(config.DefaultSessionID, f.store)
	f.selector = backend.NewSelector(cfg, func(backend.Definition, narrative.LLMConfig) (narrative.LLM, error) {
		f.builds++
		return f.mock, nil
	})
	f.orch = New(&RuntimeContext{
		OpenHistory: func(context.Context) (*history.History, error) {
			f.opens++
			return f.history, nil
		},
		Selector: f.selector,
		Console:  f.console,
	})
	return f
}

func TestIsTerminal(t *testing.T) {
	tests := []struct {
		response string
		want     bool
	}{
		{response: "...you return home. The End", want: true},
		{response: "The End", want: true},
		{response: "The End.\nThanks for playing.", want: true},
		{response: "At the end of the voyage, you see stars.", want: false},
		{response: "In the end.", want: false},
		{response: "In the end." + " The End", want: true},
		{response: "THE END", want: false},
		{response: "", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.response, func(t *testing.T) {
			if got := IsTerminal(tt.response); got != tt.want {
				t.Errorf("IsTerminal(%q) = %v, want %v", tt.response, got, tt.want)
			}
		})
	}
}

func TestRun_FullStory(t *testing.T) {
	f := newFixture(t, []string{"1", "Alice", "Land on the moon"},
		"Welcome, traveller. What is your name?",
		"Hello Alice. A moon or the planet?",
		"  Humanity thrives on its new moon. The End  ",
	)

	if err := f.orch.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if f.orch.State() != Terminated {
		t.Errorf("expected Terminated, got %s", f.orch.State())
	}
	if f.orch.Turns() != 3 {
		t.Errorf("expected 3 turns, got %d", f.orch.Turns())
	}
	if f.console.bye != 1 {
		t.Errorf("expected one farewell, got %d", f.console.bye)
	}
	if last := f.console.events[len(f.console.events)-1]; last != "farewell" {
		t.Errorf("expected farewell last, got %s", last)
	}
	if f.console.stories[2] != "Humanity thrives on its new moon. The End" {
		t.Errorf("unexpected final story %q", f.console.stories[2])
	}

	entries, _ := f.history.Entries(context.Background())
	if len(entries) != 6 {
		t.Fatalf("expected 6 history entries, got %d", len(entries))
	}
	wantContent := []string{
		StartSentinel, "Welcome, traveller. What is your name?",
		"Alice", "Hello Alice. A moon or the planet?",
		"Land on the moon", "  Humanity thrives on its new moon. The End  ",
	}
	for i, e := range entries {
		if e.Content != wantContent[i] {
			t.Errorf("entry %d: expected %q, got %q", i, wantContent[i], e.Content)
		}
	}
	if f.store.clears != 1 {
		t.Errorf("expected history to be cleared exactly once, got %d", f.store.clears)
	}
	if f.opens != 1 {
		t.Errorf("expected history to be opened exactly once, got %d", f.opens)
	}
}

func TestRun_StopsWithoutReadingAfterEndMarker(t *testing.T) {
	f := newFixture(t, []string{"1", "never read"}, "You drift into the sun. The End")

	if err := f.orch.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	for _, p := range f.console.prompts {
		if p == InputPrompt {
			t.Error("orchestrator asked for input after the end marker")
		}
	}
	if len(f.console.inputs) != 1 {
		t.Errorf("expected the second line to remain unread, %d left", len(f.console.inputs))
	}
}

func TestRun_SentinelTurn(t *testing.T) {
	f := newFixture(t, []string{"1", "Alice"},
		"Welcome, traveller. What is your name?",
		"Farewell, Alice. The End",
	)

	if err := f.orch.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	prompts := f.mock.Prompts()
	if len(prompts) != 2 {
		t.Fatalf("expected 2 backend calls, got %d", len(prompts))
	}
	if !strings.HasSuffix(prompts[0].Text, ": "+StartSentinel) {
		t.Errorf("first prompt should carry the start sentinel, got %q", prompts[0].Text)
	}
	for _, p := range f.console.prompts {
		if strings.Contains(p, StartSentinel) {
			t.Errorf("sentinel leaked into an operator prompt: %q", p)
		}
	}
	for _, s := range f.console.stories {
		if s == StartSentinel {
			t.Error("sentinel was echoed to the operator")
		}
	}
}

func TestRun_ChoiceOneScenario(t *testing.T) {
	f := newFixture(t, []string{"1", "Alice"},
		"Welcome, traveller. What is your name?",
		"Safe travels. The End",
	)

	if err := f.orch.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if f.orch.Profile().ID != "chat" {
		t.Errorf("expected chat profile, got %s", f.orch.Profile().ID)
	}
	if f.orch.Profile().Template.ID() != "chat" {
		t.Errorf("expected chat template, got %s", f.orch.Profile().Template.ID())
	}

	// After the first response the operator is asked for input.
	wantEvents := []string{"prompt:" + backend.Menu(), "story", "prompt:" + InputPrompt, "story", "farewell"}
	if strings.Join(f.console.events, "|") != strings.Join(wantEvents, "|") {
		t.Errorf("unexpected event order:\n%v\nwant:\n%v", f.console.events, wantEvents)
	}

	second := f.mock.Prompts()[1]
	if !strings.Contains(second.Text, "Human: start\nAI: Welcome, traveller. What is your name?") {
		t.Errorf("second prompt missing prior exchange: %q", second.Text)
	}
	if !strings.HasSuffix(second.Text, ": Alice") {
		t.Errorf("second prompt should end with the operator input, got %q", second.Text)
	}
	if second.System == "" {
		t.Error("chat backend should send the system instruction")
	}
}

func TestRun_InvalidChoiceReprompts(t *testing.T) {
	f := newFixture(t, []string{"9", "", "2"}, "The End")

	if err := f.orch.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if len(f.console.errors) != 2 {
		t.Fatalf("expected 2 invalid-choice errors, got %d", len(f.console.errors))
	}
	if f.console.errors[0] != backend.InvalidChoice() {
		t.Errorf("unexpected error message %q", f.console.errors[0])
	}
	if f.builds != 1 {
		t.Errorf("expected exactly one client build, got %d", f.builds)
	}
	if f.orch.Profile().ID != "instruct" {
		t.Errorf("expected instruct profile, got %s", f.orch.Profile().ID)
	}
}

func TestChooseBackend_InvalidDoesNotAdvance(t *testing.T) {
	f := newFixture(t, []string{"9"})

	err := f.orch.ChooseBackend(context.Background())
	if !errors.Is(err, ErrInputClosed) {
		t.Fatalf("expected ErrInputClosed once input runs out, got %v", err)
	}

	if f.orch.State() != AwaitingBackendChoice {
		t.Errorf("expected AwaitingBackendChoice, got %s", f.orch.State())
	}
	if f.builds != 0 {
		t.Errorf("no backend should be constructed, got %d builds", f.builds)
	}
	if f.store.appends != 0 {
		t.Errorf("no history should be written, got %d appends", f.store.appends)
	}
	if len(f.console.errors) != 1 {
		t.Errorf("expected one error message, got %d", len(f.console.errors))
	}
}

func TestChooseBackend_Preselected(t *testing.T) {
	f := newFixture(t, nil)
	f.orch.rt.Backend = "3"

	if err := f.orch.ChooseBackend(context.Background()); err != nil {
		t.Fatalf("ChooseBackend failed: %v", err)
	}
	if f.orch.State() != Running {
		t.Errorf("expected Running, got %s", f.orch.State())
	}
	if f.orch.Profile().ID != "mistral" {
		t.Errorf("expected mistral profile, got %s", f.orch.Profile().ID)
	}
	if len(f.console.prompts) != 0 {
		t.Error("menu should be skipped for a valid pre-selected backend")
	}
}

func TestChooseBackend_InvalidPreselectedFallsBackToMenu(t *testing.T) {
	f := newFixture(t, []string{"1"})
	f.orch.rt.Backend = "7"

	if err := f.orch.ChooseBackend(context.Background()); err != nil {
		t.Fatalf("ChooseBackend failed: %v", err)
	}
	if len(f.console.errors) != 1 || len(f.console.prompts) != 1 {
		t.Errorf("expected one error and one menu prompt, got %d and %d", len(f.console.errors), len(f.console.prompts))
	}
	if f.orch.Profile().ID != "chat" {
		t.Errorf("expected chat profile, got %s", f.orch.Profile().ID)
	}
}

func TestChooseBackend_ConfigurationErrorIsFatal(t *testing.T) {
	cfg, _ := config.FromLookup(config.File{}, func(string) (string, bool) { return "", false })
	console := &scriptedConsole{inputs: []string{"1", "1"}}
	orch := New(&RuntimeContext{
		Selector: backend.NewSelector(cfg, nil),
		Console:  console,
	})

	err := orch.ChooseBackend(context.Background())
	if !errors.Is(err, config.ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration, got %v", err)
	}
	if len(console.prompts) != 1 {
		t.Errorf("configuration errors must not re-prompt, got %d prompts", len(console.prompts))
	}
}

func TestRun_StoreFailureIsFatal(t *testing.T) {
	f := newFixture(t, []string{"1"}, "hello")
	f.store.failOn = "clear"

	err := f.orch.Run(context.Background())
	if !errors.Is(err, history.ErrStoreConnection) {
		t.Fatalf("expected ErrStoreConnection, got %v", err)
	}
	if f.orch.History() != nil {
		t.Error("a history that failed to reset must not be kept")
	}
	if len(f.mock.Prompts()) != 0 {
		t.Error("backend should not be invoked when the store is unavailable")
	}
}

func TestRun_InvocationErrorAbortsAndKeepsRecordedTurns(t *testing.T) {
	f := newFixture(t, []string{"1", "Alice"}, "What is your name?")

	ctx := context.Background()
	if err := f.orch.ChooseBackend(ctx); err != nil {
		t.Fatalf("ChooseBackend failed: %v", err)
	}
	if err := f.orch.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if _, err := f.orch.Turn(ctx, StartSentinel); err != nil {
		t.Fatalf("first turn failed: %v", err)
	}

	f.mock.Error = errors.New("rate limited")
	_, err := f.orch.Turn(ctx, "Alice")
	if !errors.Is(err, narrative.ErrLLMFailed) {
		t.Fatalf("expected ErrLLMFailed, got %v", err)
	}

	entries, _ := f.history.Entries(ctx)
	if len(entries) != 2 {
		t.Errorf("expected the first exchange to survive, got %d entries", len(entries))
	}
	if f.orch.Turns() != 1 {
		t.Errorf("expected 1 completed turn, got %d", f.orch.Turns())
	}
}

func TestRun_BackendTimeout(t *testing.T) {
	f := newFixture(t, []string{"1"})
	f.mock.Block = true

	ctx := context.Background()
	if err := f.orch.ChooseBackend(ctx); err != nil {
		t.Fatalf("ChooseBackend failed: %v", err)
	}
	if err := f.orch.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	f.orch.generator = narrative.NewGenerator(f.mock, narrative.LLMConfig{Model: "m", Timeout: 10 * time.Millisecond})

	_, err := f.orch.Turn(ctx, StartSentinel)
	if !errors.Is(err, narrative.ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
	if f.store.appends != 0 {
		t.Error("a timed-out turn must not be recorded")
	}
}

func TestRun_InputClosedMidStory(t *testing.T) {
	f := newFixture(t, []string{"1"}, "Where to, traveller?")

	err := f.orch.Run(context.Background())
	if !errors.Is(err, ErrInputClosed) {
		t.Fatalf("expected ErrInputClosed, got %v", err)
	}
	if f.orch.State() != Running {
		t.Errorf("expected Running, got %s", f.orch.State())
	}
	if f.console.bye != 0 {
		t.Error("farewell is only printed after the end marker")
	}
}

func TestRun_CancelWhileWaitingForInput(t *testing.T) {
	f := newFixture(t, []string{"1"}, "Where to, traveller?")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f.console.wait = cancel

	err := f.orch.Run(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if f.console.prompts[len(f.console.prompts)-1] != InputPrompt {
		t.Errorf("expected the run to stop at the input prompt, got %q", f.console.prompts[len(f.console.prompts)-1])
	}
	if f.console.bye != 0 {
		t.Error("farewell is only printed after the end marker")
	}

	entries, _ := f.history.Entries(context.Background())
	if len(entries) != 2 {
		t.Errorf("expected the first exchange to be kept, got %d entries", len(entries))
	}
}

func TestRun_ConfigurationErrorKeepsStoredHistory(t *testing.T) {
	ctx := context.Background()
	store := &countingStore{Store: history.NewMemoryStore()}
	stored := history.New(config.DefaultSessionID, store)
	if err := stored.Record(ctx, "Alice", "A moon or the planet?"); err != nil {
		t.Fatalf("Record failed: %v", err)
	}

	cfg, _ := config.FromLookup(config.File{}, func(string) (string, bool) { return "", false })
	opens := 0
	orch := New(&RuntimeContext{
		OpenHistory: func(context.Context) (*history.History, error) {
			opens++
			return stored, nil
		},
		Selector: backend.NewSelector(cfg, nil),
		Console:  &scriptedConsole{inputs: []string{"1"}},
	})

	err := orch.Run(ctx)
	if !errors.Is(err, config.ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration, got %v", err)
	}
	if opens != 0 {
		t.Errorf("history should not be opened before a backend is selected, got %d opens", opens)
	}
	if store.clears != 0 {
		t.Errorf("history should not be cleared, got %d clears", store.clears)
	}

	entries, _ := stored.Entries(ctx)
	if len(entries) != 2 {
		t.Errorf("expected the stored exchange to survive, got %d entries", len(entries))
	}
}

func TestChooseBackend_ConsoleFailureIsReturned(t *testing.T) {
	f := newFixture(t, []string{"2"})
	f.console.infoErr = io.ErrClosedPipe

	err := f.orch.ChooseBackend(context.Background())
	if !errors.Is(err, io.ErrClosedPipe) {
		t.Fatalf("expected io.ErrClosedPipe, got %v", err)
	}
}

func TestTurn_WithoutBackend(t *testing.T) {
	f := newFixture(t, nil)

	if _, err := f.orch.Turn(context.Background(), "hello"); !errors.Is(err, ErrNoBackend) {
		t.Errorf("expected ErrNoBackend, got %v", err)
	}
}

func TestTurn_BeforeStart(t *testing.T) {
	f := newFixture(t, []string{"1"}, "hello")

	ctx := context.Background()
	if err := f.orch.ChooseBackend(ctx); err != nil {
		t.Fatalf("ChooseBackend failed: %v", err)
	}
	if _, err := f.orch.Turn(ctx, StartSentinel); !errors.Is(err, ErrNotStarted) {
		t.Errorf("expected ErrNotStarted, got %v", err)
	}
	if len(f.mock.Prompts()) != 0 {
		t.Error("backend should not be invoked before the history is opened")
	}
}

func TestHistoryOrderingAcrossTurns(t *testing.T) {
	const n = 6
	responses := make([]string, n)
	inputs := []string{"1"}
	for i := 0; i < n; i++ {
		responses[i] = "scene " + string(rune('A'+i))
		if i < n-1 {
			inputs = append(inputs, "move "+string(rune('A'+i)))
		}
	}
	responses[n-1] += " The End"

	f := newFixture(t, inputs, responses...)
	if err := f.orch.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	entries, _ := f.history.Entries(context.Background())
	if len(entries) != 2*n {
		t.Fatalf("expected %d entries, got %d", 2*n, len(entries))
	}
	for i := 0; i < n; i++ {
		if entries[2*i].Role != history.RoleUser || entries[2*i+1].Role != history.RoleAssistant {
			t.Errorf("turn %d has roles %s/%s", i, entries[2*i].Role, entries[2*i+1].Role)
		}
		if entries[2*i+1].Content != responses[i] {
			t.Errorf("turn %d: expected %q, got %q", i, responses[i], entries[2*i+1].Content)
		}
	}

	last := f.mock.LastPrompt().Text
	if !strings.Contains(last, history.Render(entries[:2*(n-1)])) {
		t.Error("final prompt should replay every prior entry verbatim")
	}
}

func TestStateString(t *testing.T) {
	if AwaitingBackendChoice.String() != "awaiting_backend_choice" || Running.String() != "running" || Terminated.String() != "terminated" {
		t.Error("unexpected state names")
	}
	if State(42).String() != "unknown" {
		t.Error("expected unknown for out-of-range state")
	}
}
