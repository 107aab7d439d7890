// Package console is the operator-facing side of the game: it reads single
// lines of input and prints styled story text.
package console

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
)

var (
	promptColor   = lipgloss.Color("#8BE9FD") // Cyan
	storyColor    = lipgloss.Color("#E9E9F4") // Light purple/white
	infoColor     = lipgloss.Color("#6272A4") // Muted purple
	errorColor    = lipgloss.Color("#FF5555") // Red
	farewellColor = lipgloss.Color("#F780FF") // Bright pink
)

type line struct {
	text string
	err  error
}

// Console reads operator input from in and writes to out.
type Console struct {
	scanner *bufio.Scanner
	out     io.Writer

	start sync.Once
	lines chan line

	promptStyle   lipgloss.Style
	storyStyle    lipgloss.Style
	infoStyle     lipgloss.Style
	errorStyle    lipgloss.Style
	farewellStyle lipgloss.Style
}

// New creates a console. Lines of any length are accepted.
func New(in io.Reader, out io.Writer) *Console {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<30)

	renderer := lipgloss.NewRenderer(out)
	return &Console{
		scanner:       scanner,
		out:           out,
		lines:         make(chan line),
		promptStyle:   renderer.NewStyle().Foreground(promptColor).Bold(true),
		storyStyle:    renderer.NewStyle().Foreground(storyColor),
		infoStyle:     renderer.NewStyle().Foreground(infoColor).Italic(true),
		errorStyle:    renderer.NewStyle().Foreground(errorColor).Bold(true),
		farewellStyle: renderer.NewStyle().Foreground(farewellColor).Bold(true),
	}
}

// ReadLine writes prompt and returns the next line without its newline.
// io.EOF is returned once input is exhausted and ctx.Err() if ctx is done
// first. A line that arrives after cancellation is kept for the next call.
func (c *Console) ReadLine(ctx context.Context, prompt string) (string, error) {
	if _, err := fmt.Fprint(c.out, c.promptStyle.Render(prompt)); err != nil {
		return "", err
	}
	c.start.Do(func() { go c.scan() })

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case l, ok := <-c.lines:
		if !ok {
			return "", io.EOF
		}
		return l.text, l.err
	}
}

// scan feeds input lines to ReadLine until the reader is exhausted.
func (c *Console) scan() {
	defer close(c.lines)
	for c.scanner.Scan() {
		c.lines <- line{text: strings.TrimRight(c.scanner.Text(), "\r")}
	}
	if err := c.scanner.Err(); err != nil {
		c.lines <- line{err: err}
	}
}

// Story prints a backend response trimmed of surrounding whitespace.
// Lines are styled one at a time so they are not padded to a common width.
func (c *Console) Story(text string) error {
	lines := strings.Split(strings.TrimSpace(text), "\n")
	for i, line := range lines {
		lines[i] = c.storyStyle.Render(line)
	}
	_, err := fmt.Fprintln(c.out, strings.Join(lines, "\n"))
	return err
}

// Info prints a muted status line.
func (c *Console) Info(msg string) error {
	_, err := fmt.Fprintln(c.out, c.infoStyle.Render(msg))
	return err
}

// Error prints an error message followed by a blank line.
func (c *Console) Error(msg string) error {
	_, err := fmt.Fprintf(c.out, "%s\n\n", c.errorStyle.Render(msg))
	return err
}

// Farewell prints the closing line of a finished story.
func (c *Console) Farewell() error {
	_, err := fmt.Fprintln(c.out, c.farewellStyle.Render("Farewell"))
	return err
}
