package password

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"golang.org/x/term"
)

// TerminalPrompter reads passwords from the controlling terminal without
// echo. It declines when stdin is not a terminal.
type TerminalPrompter struct {
	In  *os.File
	Out io.Writer
}

func NewTerminalPrompter() *TerminalPrompter {
	return &TerminalPrompter{In: os.Stdin, Out: os.Stderr}
}

func (p *TerminalPrompter) Prompt(archivePath string, attempt, maxAttempts int) (string, bool) {
	fd := int(p.In.Fd())
	if !term.IsTerminal(fd) {
		return "", false
	}
	fmt.Fprintf(p.Out, "Password for %s (attempt %d/%d, empty to skip): ", filepath.Base(archivePath), attempt, maxAttempts)
	pw, err := term.ReadPassword(fd)
	fmt.Fprintln(p.Out)
	if err != nil || len(pw) == 0 {
		return "", false
	}
	return string(pw), true
}

// StaticPrompter offers one fixed password on the first attempt, as given
// on the command line, and declines afterwards.
type StaticPrompter struct {
	Password string
}

func (p StaticPrompter) Prompt(_ string, attempt, _ int) (string, bool) {
	if attempt > 1 || p.Password == "" {
		return "", false
	}
	return p.Password, true
}

// ChainPrompter tries each prompter in turn until one answers.
type ChainPrompter []Prompter

func (c ChainPrompter) Prompt(archivePath string, attempt, maxAttempts int) (string, bool) {
	for _, p := range c {
		if pw, ok := p.Prompt(archivePath, attempt, maxAttempts); ok {
			return pw, true
		}
	}
	return "", false
}

// ReadPassphrase prompts on the terminal for a passphrase, used to unlock
// the backup encryption key.
func ReadPassphrase(prompt string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", fmt.Errorf("stdin is not a terminal")
	}
	fmt.Fprint(os.Stderr, prompt)
	pw, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("reading passphrase: %w", err)
	}
	return string(pw), nil
}
