package dispatcher

import (
	"fmt"
	"io"
	"strings"

	"github.com/ndtools/mcp-client/pkg/protocol"
)

// ToolErrorPrefix heads the output of a result whose tool reported failure
const ToolErrorPrefix = "Tool error:"

// Render writes a tool result. Text items are written verbatim, one per
// line; other items are written as a placeholder naming their kind.
func Render(w io.Writer, result *protocol.CallToolResult) error {
	if result == nil {
		return nil
	}
	if result.IsError {
		if _, err := fmt.Fprintln(w, ToolErrorPrefix); err != nil {
			return err
		}
	}
	return RenderContent(w, result.Content)
}

// RenderContent writes a sequence of content items
func RenderContent(w io.Writer, items []protocol.Content) error {
	for _, item := range items {
		if _, err := fmt.Fprintln(w, contentLine(item)); err != nil {
			return err
		}
	}
	return nil
}

func contentLine(item protocol.Content) string {
	if item.IsText() {
		return item.Text
	}
	return fmt.Sprintf("[%s content]", item.Type)
}

// RenderTools writes one "- name: description" line per tool
func RenderTools(w io.Writer, tools []protocol.Tool) error {
	for _, tool := range tools {
		line := "- " + tool.Name
		if tool.Description != "" {
			line += ": " + firstLine(tool.Description)
		}
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}

// RenderPrompt writes an expanded prompt as "role: text" lines
func RenderPrompt(w io.Writer, result *protocol.GetPromptResult) error {
	if result.Description != "" {
		if _, err := fmt.Fprintf(w, "Description: %s\n", result.Description); err != nil {
			return err
		}
	}
	for _, msg := range result.Messages {
		if _, err := fmt.Fprintf(w, "%s: %s\n", msg.Role, contentLine(msg.Content)); err != nil {
			return err
		}
	}
	return nil
}

// Truncate shortens s to limit runes followed by "..."
func Truncate(s string, limit int) string {
	runes := []rune(s)
	if limit <= 0 || len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + "..."
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return strings.TrimSpace(s[:i])
	}
	return s
}
