// Package terminal drives a lookup from line-oriented text input.
package terminal

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/rockwerks/weather-forecast-app/internal/domain"
	"github.com/rockwerks/weather-forecast-app/internal/lookup"
)

const loadingText = "Fetching weather data..."

const helpText = `Type a city name and press Enter to look up the current weather.
Commands:
  :clear           clear the search and the result
  :metric          show °C and m/s
  :imperial        show °F and mph
  :units <system>  switch to metric or imperial
  :help            show this help
  :quit            exit
`

// ErrLookupFailed is returned by LookupOnce after the error banner was printed
var ErrLookupFailed = errors.New("weather lookup failed")

// LookupOnce searches for city, prints the outcome and returns
// ErrLookupFailed when the fetch failed.
func LookupOnce(l *lookup.Lookup, city string, out io.Writer) error {
	l.OnInputChange(city)
	if !l.OnSearchSubmit() {
		return fmt.Errorf("terminal: %w: no city given", ErrLookupFailed)
	}
	awaitResult(l, out)
	if l.Snapshot().State == domain.Failed {
		return ErrLookupFailed
	}
	return nil
}

// REPL reads commands from in and renders the lookup to out.
type REPL struct {
	lookup *lookup.Lookup
	in     io.Reader
	out    io.Writer
	prompt string
}

// NewREPL creates a REPL over l
func NewREPL(l *lookup.Lookup, in io.Reader, out io.Writer) *REPL {
	return &REPL{lookup: l, in: in, out: out, prompt: "> "}
}

// Run processes lines until :quit, end of input or ctx is done.
func (r *REPL) Run(ctx context.Context) error {
	lines := make(chan string)
	errc := make(chan error, 1)
	done := make(chan struct{})
	defer close(done)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(r.in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-done:
				return
			}
		}
		errc <- scanner.Err()
	}()

	fmt.Fprintf(r.out, "Current units: %s. Type :help for commands.\n", r.lookup.Snapshot().Units)
	for {
		fmt.Fprint(r.out, r.prompt)

		select {
		case <-ctx.Done():
			fmt.Fprintln(r.out)
			return nil
		case line, ok := <-lines:
			if !ok {
				fmt.Fprintln(r.out)
				select {
				case err := <-errc:
					if err != nil {
						return fmt.Errorf("terminal: failed to read input: %w", err)
					}
				default:
				}
				return nil
			}
			if quit := r.handle(line); quit {
				return nil
			}
		}
	}
}

// handle applies one input line and reports whether the REPL should stop.
func (r *REPL) handle(line string) bool {
	trimmed := strings.TrimSpace(line)
	if !strings.HasPrefix(trimmed, ":") {
		r.lookup.OnInputChange(line)
		if r.lookup.OnConfirmKey(lookup.ConfirmKey) {
			r.awaitResult()
		}
		return false
	}

	cmd, arg, _ := strings.Cut(trimmed[1:], " ")
	switch strings.ToLower(cmd) {
	case "quit", "q", "exit":
		return true
	case "help", "h":
		fmt.Fprint(r.out, helpText)
	case "clear":
		r.lookup.OnClear()
		fmt.Fprintln(r.out, "Cleared.")
	case "metric":
		r.changeUnits(domain.Metric)
	case "imperial":
		r.changeUnits(domain.Imperial)
	case "units":
		unit, err := domain.ParseUnitSystem(arg)
		if err != nil {
			fmt.Fprintf(r.out, "Error: %v\n", err)
			return false
		}
		r.changeUnits(unit)
	default:
		fmt.Fprintf(r.out, "Unknown command %q. Type :help for commands.\n", cmd)
	}
	return false
}

func (r *REPL) changeUnits(unit domain.UnitSystem) {
	if r.lookup.OnUnitChange(unit) {
		r.awaitResult()
		return
	}
	fmt.Fprintf(r.out, "Units set to %s.\n", unit)
}

func (r *REPL) awaitResult() {
	awaitResult(r.lookup, r.out)
}

// awaitResult is called right after a fetch was started
func awaitResult(l *lookup.Lookup, out io.Writer) {
	fmt.Fprintln(out, loadingText)
	l.Wait()
	Render(out, l.Snapshot())
}

// Render writes the results region of snap: the loading line, the error
// banner with its hint, or the result card. Idle renders nothing.
func Render(w io.Writer, snap domain.Snapshot) {
	switch snap.State {
	case domain.Loading:
		fmt.Fprintln(w, loadingText)
	case domain.Failed:
		fmt.Fprintf(w, "Error: %s\n%s\n", snap.Message, domain.ErrorHint)
	case domain.Success:
		if snap.Card != nil {
			fmt.Fprint(w, snap.Card.String())
		}
	}
}
