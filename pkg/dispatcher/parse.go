package dispatcher

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"unicode"
)

// Kind is the kind of a parsed command line
type Kind int

const (
	// KindTool invokes a tool by name
	KindTool Kind = iota
	// KindList prints the peer's tools
	KindList
	// KindQuit ends the loop
	KindQuit
)

// String returns the label used in logs and metrics
func (k Kind) String() string {
	switch k {
	case KindList:
		return "list"
	case KindQuit:
		return "quit"
	default:
		return "tool"
	}
}

// Command is one parsed input line
type Command struct {
	Kind Kind
	Tool string
	Args map[string]interface{}
}

// ParseLine parses one line of input. It reports false for a blank line.
//
// The first token is either list, quit or exit (any case) or a tool name.
// Every further token of the form key=value becomes an argument; other
// tokens are ignored. A quoted value may contain spaces.
func ParseLine(line string) (Command, bool) {
	tokens := Tokenize(line)
	if len(tokens) == 0 {
		return Command{}, false
	}

	switch strings.ToLower(tokens[0]) {
	case "list":
		return Command{Kind: KindList}, true
	case "quit", "exit":
		return Command{Kind: KindQuit}, true
	}

	return Command{Kind: KindTool, Tool: tokens[0], Args: ArgsFromTokens(tokens[1:])}, true
}

// Tokenize splits line on whitespace. A quote that starts a token or
// directly follows an = opens a span that runs to the matching quote and
// may contain whitespace; quote characters stay in the token. Quotes
// anywhere else are ordinary characters, and a quote that is never closed
// is too, so the rest of the line still splits on whitespace.
func Tokenize(line string) []string {
	runes := []rune(line)
	var (
		tokens  []string
		current []rune
	)

	flush := func() {
		if len(current) > 0 {
			tokens = append(tokens, string(current))
			current = nil
		}
	}

	for i := 0; i < len(runes); i++ {
		r := runes[i]
		switch {
		case unicode.IsSpace(r):
			flush()
		case (r == '"' || r == '\'') && opensSpan(current):
			end := indexRune(runes[i+1:], r)
			if end < 0 {
				current = append(current, r)
				continue
			}
			current = append(current, runes[i:i+end+2]...)
			i += end + 1
		default:
			current = append(current, r)
		}
	}
	flush()
	return tokens
}

// opensSpan reports whether a quote after current starts a value
func opensSpan(current []rune) bool {
	return len(current) == 0 || current[len(current)-1] == '='
}

func indexRune(runes []rune, r rune) int {
	for i, c := range runes {
		if c == r {
			return i
		}
	}
	return -1
}

// Coerce converts an argument value: an integer if the whole value parses
// as a base 10 int, else a number if it parses as a float, else the string
// with one layer of matching surrounding quotes removed.
//
// A number is a float64 when encoding it reproduces the text. Otherwise,
// as for 2.0, 1e3 or an integer too large for int, it is a json.Number so
// the peer receives the digits as typed.
func Coerce(value string) interface{} {
	if i, err := strconv.Atoi(value); err == nil {
		return i
	}
	if isDecimalFloat(value) {
		if f, err := strconv.ParseFloat(value, 64); err == nil && !math.IsInf(f, 0) && !math.IsNaN(f) {
			return exactNumber(value, f)
		}
	}
	return Unquote(value)
}

func exactNumber(text string, f float64) interface{} {
	if b, err := json.Marshal(f); err == nil && string(b) == text {
		return f
	}
	if json.Valid([]byte(text)) {
		return json.Number(text)
	}
	return f
}

// isDecimalFloat rejects the hexadecimal and underscore forms ParseFloat
// accepts. Infinities and NaN stay strings since JSON cannot carry them.
func isDecimalFloat(value string) bool {
	return value != "" && !strings.ContainsAny(value, "xX_pP")
}

// Unquote strips one layer of matching surrounding " or ' quotes
func Unquote(value string) string {
	if len(value) >= 2 {
		first, last := value[0], value[len(value)-1]
		if first == last && (first == '"' || first == '\'') {
			return value[1 : len(value)-1]
		}
	}
	return value
}
