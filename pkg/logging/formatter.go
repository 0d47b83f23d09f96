package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
)

// sessionFields are rendered in the line header rather than as key=value
// pairs
var sessionFields = []string{"session_id", "state", "method", "target"}

// NewConsoleWriter returns the text output used by the CLIs. Each line
// leads with the session it belongs to and the call it concerns:
//
//	10:04:05 INF <4f1c2a7e READY> tools/call(echo): Request completed duration=3.1
//
// Colors are used only when noColor is false.
func NewConsoleWriter(w io.Writer, noColor bool) zerolog.ConsoleWriter {
	return zerolog.ConsoleWriter{
		Out:           w,
		NoColor:       noColor,
		TimeFormat:    time.TimeOnly,
		FormatPrepare: prepareSessionHeader,
	}
}

// consoleFor picks colors for terminals only
func consoleFor(w io.Writer) zerolog.ConsoleWriter {
	noColor := true
	if f, ok := w.(*os.File); ok {
		noColor = !isatty.IsTerminal(f.Fd()) && !isatty.IsCygwinTerminal(f.Fd())
	}
	return NewConsoleWriter(w, noColor)
}

func prepareSessionHeader(evt map[string]interface{}) error {
	header := sessionHeader(evt)
	for _, k := range sessionFields {
		delete(evt, k)
	}
	if header == "" {
		return nil
	}
	if msg, _ := evt[zerolog.MessageFieldName].(string); msg != "" {
		header = header + ": " + msg
	}
	evt[zerolog.MessageFieldName] = header
	return nil
}

// sessionHeader renders "<shortid STATE> method(target)" from whichever of
// those fields evt carries
func sessionHeader(evt map[string]interface{}) string {
	str := func(k string) string {
		s, _ := evt[k].(string)
		return s
	}

	var parts []string
	if tag := strings.TrimSpace(shortID(str("session_id")) + " " + str("state")); tag != "" {
		parts = append(parts, "<"+tag+">")
	}
	if method := str("method"); method != "" {
		if target := str("target"); target != "" {
			method = fmt.Sprintf("%s(%s)", method, target)
		}
		parts = append(parts, method)
	}
	return strings.Join(parts, " ")
}

// shortID trims a UUID to its first group
func shortID(id string) string {
	if i := strings.IndexByte(id, '-'); i > 0 {
		return id[:i]
	}
	return id
}
