package history

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"
)

// ExportFormat represents supported export formats
type ExportFormat string

const (
	FormatJSON ExportFormat = "json"
	FormatYAML ExportFormat = "yaml"
)

// Transcript is the exported form of a session.
type Transcript struct {
	SessionID string  `json:"session_id" yaml:"session_id"`
	Turns     int     `json:"turns" yaml:"turns"`
	Finished  bool    `json:"finished" yaml:"finished"`
	Entries   []Entry `json:"entries" yaml:"entries"`
}

// NewTranscript summarizes a session's entries. A session is finished when
// its last assistant entry contains endMarker.
func NewTranscript(sessionID string, entries []Entry, endMarker string) Transcript {
	t := Transcript{SessionID: sessionID, Entries: entries}
	for _, e := range entries {
		if e.Role == RoleAssistant {
			t.Turns++
		}
	}
	if n := len(entries); n > 0 && entries[n-1].Role == RoleAssistant {
		t.Finished = strings.Contains(entries[n-1].Content, endMarker)
	}
	return t
}

// Export writes the transcript in the given format.
func Export(t Transcript, format string, writer io.Writer) error {
	switch ExportFormat(strings.ToLower(format)) {
	case FormatJSON:
		encoder := json.NewEncoder(writer)
		encoder.SetIndent("", "  ")
		return encoder.Encode(t)
	case FormatYAML:
		encoder := yaml.NewEncoder(writer)
		encoder.SetIndent(2)
		if err := encoder.Encode(t); err != nil {
			return err
		}
		return encoder.Close()
	default:
		return fmt.Errorf("unsupported export format: %s (supported: json, yaml)", format)
	}
}
