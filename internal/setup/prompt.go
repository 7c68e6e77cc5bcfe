// Package setup implements the interactive first-run wizard that writes the
// BookmarkRelay configuration file.
package setup

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
)

// Prompter asks questions on a terminal. In production r and w are os.Stdin
// and os.Stdout; tests inject buffers.
type Prompter struct {
	scanner *bufio.Scanner
	w       io.Writer
}

// NewPrompter creates a Prompter wired to the given reader and writer.
func NewPrompter(r io.Reader, w io.Writer) *Prompter {
	return &Prompter{scanner: bufio.NewScanner(r), w: w}
}

func (p *Prompter) line() (string, bool) {
	if !p.scanner.Scan() {
		return "", false
	}
	return strings.TrimSpace(p.scanner.Text()), true
}

// String prompts for a text value. Enter alone returns defaultVal. An empty
// defaultVal makes the value required; at end of input "" is returned.
func (p *Prompter) String(label, defaultVal string) string {
	for {
		if defaultVal != "" {
			_, _ = fmt.Fprintf(p.w, "  %s [%s]: ", label, defaultVal)
		} else {
			_, _ = fmt.Fprintf(p.w, "  %s: ", label)
		}

		val, ok := p.line()
		if !ok {
			return defaultVal
		}
		if val != "" {
			return val
		}
		if defaultVal != "" {
			return defaultVal
		}
		_, _ = fmt.Fprintf(p.w, "  (required, please enter a value)\n")
	}
}

// Optional prompts for a value that may be left empty.
func (p *Prompter) Optional(label string) string {
	_, _ = fmt.Fprintf(p.w, "  %s (optional): ", label)
	val, _ := p.line()
	return val
}

// Secret prompts for a credential. Input is echoed.
func (p *Prompter) Secret(label string) string {
	return p.String(label+" (input is visible)", "")
}

// Confirm asks a yes/no question. Enter alone returns defaultYes.
func (p *Prompter) Confirm(label string, defaultYes bool) bool {
	hint := "[y/N]"
	if defaultYes {
		hint = "[Y/n]"
	}
	_, _ = fmt.Fprintf(p.w, "  %s %s: ", label, hint)

	answer, ok := p.line()
	if !ok || answer == "" {
		return defaultYes
	}
	answer = strings.ToLower(answer)
	return answer == "y" || answer == "yes"
}

// Duration prompts for a time.ParseDuration value, repeating on bad input.
func (p *Prompter) Duration(label string, defaultVal time.Duration) time.Duration {
	for {
		s := p.String(label, defaultVal.String())
		d, err := time.ParseDuration(s)
		if err == nil {
			return d
		}
		_, _ = fmt.Fprintf(p.w, "  (%q is not a duration, e.g. 100ms or 1s)\n", s)
	}
}

// Select presents a numbered list and returns the zero-based index of the
// chosen option.
func (p *Prompter) Select(label string, options []string) (int, error) {
	if len(options) == 0 {
		return -1, fmt.Errorf("no options to select from")
	}

	_, _ = fmt.Fprintf(p.w, "  %s:\n", label)
	for i, opt := range options {
		_, _ = fmt.Fprintf(p.w, "    %d) %s\n", i+1, opt)
	}

	for {
		_, _ = fmt.Fprintf(p.w, "  Choice [1-%d]: ", len(options))

		val, ok := p.line()
		if !ok {
			return -1, fmt.Errorf("no input")
		}
		n, err := strconv.Atoi(val)
		if err != nil || n < 1 || n > len(options) {
			_, _ = fmt.Fprintf(p.w, "  (enter a number between 1 and %d)\n", len(options))
			continue
		}
		return n - 1, nil
	}
}
