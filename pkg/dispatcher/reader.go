package dispatcher

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/chzyer/readline"
	"github.com/mattn/go-isatty"
)

// ErrInterrupted is returned by a LineReader when the user interrupts input
var ErrInterrupted = errors.New("input interrupted")

// DefaultPrompt is shown before each interactive line
const DefaultPrompt = "> "

// LineReader yields input lines without their terminator. It returns io.EOF
// at the end of input.
type LineReader interface {
	ReadLine() (string, error)
	Close() error
}

// ScannerReader reads lines from any io.Reader
type ScannerReader struct {
	scanner *bufio.Scanner
	closer  io.Closer
	out     io.Writer
	prompt  string
}

// NewScannerReader reads lines from in. A non-empty prompt is written to out
// before every line.
func NewScannerReader(in io.Reader, out io.Writer, prompt string) *ScannerReader {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	r := &ScannerReader{scanner: scanner, out: out, prompt: prompt}
	if c, ok := in.(io.Closer); ok && in != os.Stdin {
		r.closer = c
	}
	return r
}

// ReadLine implements LineReader
func (r *ScannerReader) ReadLine() (string, error) {
	if r.prompt != "" && r.out != nil {
		fmt.Fprint(r.out, r.prompt)
	}
	if !r.scanner.Scan() {
		if err := r.scanner.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}
	return r.scanner.Text(), nil
}

// Close implements LineReader
func (r *ScannerReader) Close() error {
	if r.closer != nil {
		return r.closer.Close()
	}
	return nil
}

// TerminalReader reads lines with editing and history
type TerminalReader struct {
	rl *readline.Instance
}

// NewTerminalReader creates a line editor. historyFile may be empty.
func NewTerminalReader(prompt, historyFile string) (*TerminalReader, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          prompt,
		HistoryFile:     historyFile,
		InterruptPrompt: "^C",
		EOFPrompt:       "quit",
	})
	if err != nil {
		return nil, fmt.Errorf("line editor: %w", err)
	}
	return &TerminalReader{rl: rl}, nil
}

// ReadLine implements LineReader
func (r *TerminalReader) ReadLine() (string, error) {
	line, err := r.rl.Readline()
	if errors.Is(err, readline.ErrInterrupt) {
		return "", ErrInterrupted
	}
	return line, err
}

// Close implements LineReader
func (r *TerminalReader) Close() error {
	return r.rl.Close()
}

// NewLineReader picks a line editor when in is a terminal and a plain
// scanner otherwise, so piped input carries no prompts.
func NewLineReader(in *os.File, out io.Writer, prompt, historyFile string) (LineReader, error) {
	if isatty.IsTerminal(in.Fd()) || isatty.IsCygwinTerminal(in.Fd()) {
		return NewTerminalReader(prompt, historyFile)
	}
	return NewScannerReader(in, out, ""), nil
}
