package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/Yates-Labs/odyssey/internal/history"
	"github.com/Yates-Labs/odyssey/internal/narrative"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
)

var (
	exportFile   string
	exportFormat string
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show the stored transcript of a session",
	Long: `Show the transcript of a session stored in the history database.

Each row shows:
- Position in the session
- Who wrote it (traveller or copilot)
- When it was recorded
- The text, shortened to one line

Examples:
  odyssey history
  odyssey history --session voyage-7
  odyssey history --export transcript.yaml --format yaml`,
	Args: cobra.NoArgs,
	RunE: runHistory,
}

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().StringVar(&exportFile, "export", "", "Export the transcript to a file: --export <filename>")
	historyCmd.Flags().StringVar(&exportFormat, "format", "json", "Export format (json, yaml)")
}

func runHistory(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	store, err := history.OpenSQLiteStore(ctx, cfg.DBPath)
	if err != nil {
		return err
	}
	defer store.Close()

	entries, err := history.New(cfg.SessionID, store).Entries(ctx)
	if err != nil {
		return fmt.Errorf("failed to load history: %w", err)
	}

	transcript := history.NewTranscript(cfg.SessionID, entries, narrative.EndMarker)

	if exportFile != "" {
		return handleExport(cmd.OutOrStdout(), transcript, exportFile, exportFormat)
	}

	if len(entries) == 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "No history found for session %s\n", cfg.SessionID)
		return nil
	}

	return outputTable(cmd.OutOrStdout(), transcript)
}

func handleExport(w io.Writer, t history.Transcript, filename, format string) error {
	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to create export file: %w", err)
	}
	defer file.Close()

	if err := history.Export(t, format, file); err != nil {
		return fmt.Errorf("export failed: %w", err)
	}

	fmt.Fprintf(w, "✓ Exported %d entries to %s\n", len(t.Entries), filename)
	return nil
}

func outputTable(w io.Writer, t history.Transcript) error {
	var (
		headerColor    = lipgloss.Color("#F780FF") // Bright pink/magenta
		travellerColor = lipgloss.Color("#8BE9FD") // Cyan
		copilotColor   = lipgloss.Color("#BD93F9") // Purple
		numberColor    = lipgloss.Color("#FF79C6") // Pink
		textColor      = lipgloss.Color("#E9E9F4") // Light purple/white
		borderColor    = lipgloss.Color("#6272A4") // Muted purple
		summaryColor   = lipgloss.Color("#50FA7B") // Green
	)

	const (
		numWidth  = 6
		roleWidth = 12
		timeWidth = 16
		textWidth = 60
	)

	headerStyle := lipgloss.NewStyle().
		Foreground(headerColor).
		Bold(true).
		Padding(0, 1)

	borderStyle := lipgloss.NewStyle().Foreground(borderColor)

	headers := []string{
		headerStyle.Width(numWidth).Render("#"),
		headerStyle.Width(roleWidth).Render("ROLE"),
		headerStyle.Width(timeWidth).Render("RECORDED"),
		headerStyle.Width(textWidth).Render("TEXT"),
	}
	fmt.Fprintln(w, strings.Join(headers, borderStyle.Render("│")))

	separatorParts := []string{
		strings.Repeat("─", numWidth),
		strings.Repeat("─", roleWidth),
		strings.Repeat("─", timeWidth),
		strings.Repeat("─", textWidth),
	}
	fmt.Fprintln(w, borderStyle.Render(strings.Join(separatorParts, "┼")))

	numStyle := lipgloss.NewStyle().
		Foreground(numberColor).
		Padding(0, 1).
		Width(numWidth).
		Align(lipgloss.Right)

	timeStyle := lipgloss.NewStyle().
		Foreground(textColor).
		Padding(0, 1).
		Width(timeWidth)

	textStyle := lipgloss.NewStyle().
		Foreground(textColor).
		Padding(0, 1).
		Width(textWidth)

	for i, e := range t.Entries {
		role, color := "traveller", travellerColor
		if e.Role == history.RoleAssistant {
			role, color = "copilot", copilotColor
		}
		roleStyle := lipgloss.NewStyle().
			Foreground(color).
			Padding(0, 1).
			Width(roleWidth)

		cells := []string{
			numStyle.Render(fmt.Sprintf("%d", i+1)),
			roleStyle.Render(role),
			timeStyle.Render(e.CreatedAt.Local().Format("Jan 02, 15:04")),
			textStyle.Render(oneLine(e.Content, textWidth-2)),
		}
		fmt.Fprintln(w, strings.Join(cells, borderStyle.Render("│")))
	}

	fmt.Fprintln(w)
	status := "in progress"
	if t.Finished {
		status = "finished"
	}
	summaryStyle := lipgloss.NewStyle().
		Foreground(summaryColor).
		Italic(true)
	summary := fmt.Sprintf("Session %s: %d turns, %s", t.SessionID, t.Turns, status)
	fmt.Fprintln(w, summaryStyle.Render(summary))

	return nil
}

// oneLine collapses whitespace and shortens s to at most width runes.
func oneLine(s string, width int) string {
	s = strings.Join(strings.Fields(s), " ")
	runes := []rune(s)
	if len(runes) <= width {
		return s
	}
	if width <= 1 {
		return string(runes[:width])
	}
	return string(runes[:width-1]) + "…"
}
