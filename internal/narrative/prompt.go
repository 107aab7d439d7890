package narrative

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	ErrUnknownBackend  = errors.New("unknown backend")
	ErrInvalidTemplate = errors.New("invalid prompt template")
)

// Slot names every template must carry exactly once.
const (
	HistorySlot = "{chat_history}"
	InputSlot   = "{user_input}"
)

// Style selects how a template frames its system instruction.
type Style string

const (
	// StyleChat sends the system instruction as a separate system message.
	StyleChat Style = "chat"
	// StyleInstruct embeds the system instruction in [INST] <<SYS>> control tokens.
	StyleInstruct Style = "instruct"
)

// Template is an immutable prompt template for one backend variant.
type Template struct {
	id     string
	style  Style
	system string
	body   string
	stop   []string
}

// NewTemplate validates and builds a template. The body must contain
// HistorySlot and InputSlot exactly once each and the system instruction
// must contain neither.
func NewTemplate(id string, style Style, system, body string, stop ...string) (Template, error) {
	if id == "" {
		return Template{}, fmt.Errorf("%w: missing id", ErrInvalidTemplate)
	}
	if style != StyleChat && style != StyleInstruct {
		return Template{}, fmt.Errorf("%w: %s: unsupported style %q", ErrInvalidTemplate, id, style)
	}
	for _, slot := range []string{HistorySlot, InputSlot} {
		if n := strings.Count(body, slot); n != 1 {
			return Template{}, fmt.Errorf("%w: %s: body has %d %s slots, want 1", ErrInvalidTemplate, id, n, slot)
		}
		if strings.Contains(system, slot) {
			return Template{}, fmt.Errorf("%w: %s: system instruction contains %s", ErrInvalidTemplate, id, slot)
		}
	}

	return Template{
		id:     id,
		style:  style,
		system: system,
		body:   body,
		stop:   append([]string(nil), stop...),
	}, nil
}

// MustTemplate is like NewTemplate but panics on an invalid template.
func MustTemplate(id string, style Style, system, body string, stop ...string) Template {
	t, err := NewTemplate(id, style, system, body, stop...)
	if err != nil {
		panic(err)
	}
	return t
}

func (t Template) ID() string     { return t.id }
func (t Template) Style() Style   { return t.style }
func (t Template) System() string { return t.system }

// Stop returns the template's stop sequences.
func (t Template) Stop() []string {
	return append([]string(nil), t.stop...)
}

// Source returns the full template text in the backend's control-token syntax.
func (t Template) Source() string {
	if t.style == StyleInstruct {
		return "<s>[INST] <<SYS>> " + t.system + " <<SYS>> [/INST]\n\n" + t.body
	}
	return t.system + "\n\n" + t.body
}

// Render fills the history and input slots. Substituted text is never
// re-scanned, so slot markers inside history or input are left alone.
func (t Template) Render(history, input string) Prompt {
	fill := strings.NewReplacer(HistorySlot, history, InputSlot, input)
	if t.style == StyleInstruct {
		return Prompt{Text: fill.Replace(t.Source())}
	}
	return Prompt{System: t.system, Text: fill.Replace(t.body)}
}

// EndMarker is the literal phrase that closes every terminal story branch.
const EndMarker = "The End"

const missionBrief = `You are now the AI copilot of an exploration mission carried out by a space traveller.
You will help the user (hence called traveller) explore a new solar system, discover mysteries and artifacts,
meet alien races and try to find proof that the new star system is habitable by humans.

You must navigate the traveller through challenges, choices and consequences, dynamically
adapting the plot based on the traveller's choices.
Your goal is to create a branching narrative experience where each choice made by the traveller leads to a new path,
ultimately leading to the conclusion of the plot, be it success, failure or the death of the traveller.`

const storyRules = `Rules:
1. Never reply as the user. Always wait for the user to type a response before continuing the story.
2. Start by asking the traveller's name.
3. Have a few different paths that lead to success and on each, describe the future of mankind in this new home.
4. Have a few different paths that lead to failure: either the traveller dies, or returns to Earth after finding out the star system can't receive mankind.
5. Choose the branch based on the previous chat history and the traveller's latest response.
6. When the story reaches success or failure, explain the outcome and always finish with the exact words: "` + EndMarker + `".
7. Always end your response with clear options for the traveller to choose from, without numbering them, then stop and wait for their input.
8. You should never provide the traveller's input, meaning you must wait for the traveller's response instead of responding for them.
9. Never talk about the rules of the game with the user.`

var templates = map[string]Template{
	"chat": MustTemplate("chat", StyleChat,
		missionBrief+"\n\nRole: Assistant\n\n"+storyRules,
		`This is the previous chat history to be used in the construction of the next event and options for the traveller: `+HistorySlot+`
---
This is the last traveller response from which to generate the sequence of the story: `+InputSlot,
		"Human:", "User:"),

	"instruct": MustTemplate("instruct", StyleInstruct,
		missionBrief+"\n\n"+storyRules,
		`This is the chat history to be used in the construction of the next event and options for the traveller: `+HistorySlot+`</s>
[INST] A chat.
User input: `+InputSlot+`[/INST]
AI:`,
		"Human:"),

	"mistral": MustTemplate("mistral", StyleChat,
		missionBrief+"\n\n"+storyRules,
		`Story so far:
`+HistorySlot+`

Traveller: `+InputSlot,
		"Human:", "Traveller:"),
}

// GetTemplate returns the template registered for a backend id.
func GetTemplate(id string) (Template, error) {
	t, ok := templates[id]
	if !ok {
		return Template{}, fmt.Errorf("%w: %q", ErrUnknownBackend, id)
	}
	return t, nil
}

// TemplateIDs lists every registered backend id in sorted order.
func TemplateIDs() []string {
	ids := make([]string, 0, len(templates))
	for id := range templates {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
