// Package presenter writes user-facing CLI output. Results go to stdout;
// errors and warnings go to stderr so `--format json` output stays
// machine readable.
package presenter

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"
)

// Presenter is the output surface the commands use.
type Presenter interface {
	Error(err error, context string)
	Success(message string)
	Warning(message string)
	Info(message string)
	Section(title string)
	Confirm(question string) bool
	Table(headers []string, rows [][]string)
	Separator()
	SetQuiet(quiet bool)
	IsQuiet() bool
}

// ColorMode selects whether output is coloured.
type ColorMode int

const (
	ColorAuto ColorMode = iota
	ColorAlways
	ColorNever
)

// TerminalPresenter implements Presenter for a terminal.
type TerminalPresenter struct {
	output      io.Writer
	errorOutput io.Writer
	input       io.Reader
	colorMode   ColorMode
	quiet       bool
}

// New returns a presenter on stdout and stderr, with the colour mode taken
// from NO_COLOR and FORKS_COLOR.
func New() *TerminalPresenter {
	return NewWithOptions(os.Stdout, os.Stderr, detectColorMode())
}

// NewWithOptions returns a presenter on the given writers.
func NewWithOptions(output, errorOutput io.Writer, colorMode ColorMode) *TerminalPresenter {
	switch colorMode {
	case ColorAlways:
		color.NoColor = false
	case ColorNever:
		color.NoColor = true
	}
	return &TerminalPresenter{
		output:      output,
		errorOutput: errorOutput,
		input:       os.Stdin,
		colorMode:   colorMode,
	}
}

// SetInput replaces the reader Confirm reads answers from.
func (p *TerminalPresenter) SetInput(r io.Reader) {
	p.input = r
}

// Output returns the writer results go to.
func (p *TerminalPresenter) Output() io.Writer {
	return p.output
}

func detectColorMode() ColorMode {
	if os.Getenv("NO_COLOR") != "" {
		return ColorNever
	}
	switch os.Getenv("FORKS_COLOR") {
	case "always", "force":
		return ColorAlways
	case "never", "off":
		return ColorNever
	default:
		return ColorAuto
	}
}

// Error writes err to stderr, prefixed with context when given. Quiet mode
// never hides errors.
func (p *TerminalPresenter) Error(err error, context string) {
	if err == nil {
		return
	}
	c := color.New(color.FgRed, color.Bold)
	if context != "" {
		c.Fprintf(p.errorOutput, "✗ %s: %v\n", context, err)
		return
	}
	c.Fprintf(p.errorOutput, "✗ %v\n", err)
}

func (p *TerminalPresenter) Success(message string) {
	if p.quiet {
		return
	}
	color.New(color.FgGreen, color.Bold).Fprintf(p.output, "✓ %s\n", message)
}

// Warning writes to stderr.
func (p *TerminalPresenter) Warning(message string) {
	if p.quiet {
		return
	}
	color.New(color.FgYellow, color.Bold).Fprintf(p.errorOutput, "⚠ %s\n", message)
}

func (p *TerminalPresenter) Info(message string) {
	if p.quiet {
		return
	}
	fmt.Fprintln(p.output, message)
}

// Section writes title underlined to its own width.
func (p *TerminalPresenter) Section(title string) {
	if p.quiet {
		return
	}
	c := color.New(color.Bold)
	c.Fprintln(p.output, title)
	c.Fprintln(p.output, strings.Repeat("-", len([]rune(title))))
}

// Confirm asks a yes/no question on stderr and reads one line of input.
// Anything but y or yes, including end of input, is a no.
func (p *TerminalPresenter) Confirm(question string) bool {
	color.New(color.FgCyan).Fprintf(p.errorOutput, "%s [y/N]: ", question)

	answer, err := bufio.NewReader(p.input).ReadString('\n')
	if err != nil && answer == "" {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return true
	default:
		return false
	}
}

// Table writes rows as aligned columns. Tables are results, so quiet mode
// does not suppress them.
func (p *TerminalPresenter) Table(headers []string, rows [][]string) {
	tw := tabwriter.NewWriter(p.output, 0, 0, 2, ' ', 0)
	if len(headers) > 0 {
		fmt.Fprintln(tw, strings.Join(headers, "\t"))
	}
	for _, row := range rows {
		fmt.Fprintln(tw, strings.Join(row, "\t"))
	}
	tw.Flush()
}

func (p *TerminalPresenter) Separator() {
	if p.quiet {
		return
	}
	color.New(color.Faint).Fprintln(p.output, strings.Repeat("-", 60))
}

func (p *TerminalPresenter) SetQuiet(quiet bool) { p.quiet = quiet }

func (p *TerminalPresenter) IsQuiet() bool { return p.quiet }

// Highlight colours s for emphasis inside Info lines.
func Highlight(s string) string {
	return color.New(color.FgCyan).Sprint(s)
}

// Dim renders s faint.
func Dim(s string) string {
	return color.New(color.Faint).Sprint(s)
}

// Count formats n with word, adding an "s" unless n is 1.
func Count(n int, word string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", word)
	}
	return fmt.Sprintf("%d %ss", n, word)
}

var defaultPresenter = New()

func Error(err error, context string) { defaultPresenter.Error(err, context) }
func Success(message string) { defaultPresenter.Success(message) }
func Warning(message string) { defaultPresenter.Warning(message) }
func Info(message string) { defaultPresenter.Info(message) }
func Section(title string) { defaultPresenter.Section(title) }
func Confirm(question string) bool { return defaultPresenter.Confirm(question) }
func Table(headers []string, rows [][]string) { defaultPresenter.Table(headers, rows) }
func Separator() { defaultPresenter.Separator() }
func SetQuiet(quiet bool) { defaultPresenter.SetQuiet(quiet) }
func IsQuiet() bool { return defaultPresenter.IsQuiet() }

// Stdout returns the writer results of the default presenter go to.
func Stdout() io.Writer { return defaultPresenter.Output() }
