package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/rgq/edabank-console/app"
	"github.com/rgq/edabank-console/chat"
	"github.com/rgq/edabank-console/ui"
)

const prompt = "edabank> "

var promptColor = color.New(color.FgCyan, color.Bold)

// lineConfirmer asks on the console and takes the next input line as the
// answer.
type lineConfirmer struct {
	lines <-chan string
	out   io.Writer
}

func (c *lineConfirmer) Confirm(ctx context.Context, question string) bool {
	fmt.Fprintf(c.out, "%s [y/N] ", question)
	select {
	case <-ctx.Done():
		return false
	case ans, ok := <-c.lines:
		if !ok {
			return false
		}
		ans = strings.ToLower(strings.TrimSpace(ans))
		return ans == "y" || ans == "yes"
	}
}

func runConsole(cmd *cobra.Command, _ []string) error {
	ctx, stop := signalContext()
	defer stop()

	in := bufio.NewScanner(os.Stdin)
	lines := make(chan string)
	go func() {
		defer close(lines)
		for in.Scan() {
			lines <- in.Text()
		}
	}()

	deps := app.Deps{
		OnMessage: func(m chat.Message) { fmt.Fprintf(os.Stdout, "\n%s\n", m.Line()) },
	}
	if !flagYes {
		deps.Confirmer = &lineConfirmer{lines: lines, out: os.Stdout}
	}
	a, err := newApp(ctx, deps)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.Start(ctx, flagView); err != nil {
		log.Warn().Err(err).Msg("[console] start")
	}
	if err := a.Render(os.Stdout); err != nil {
		return err
	}

	for {
		promptColor.Fprint(os.Stdout, prompt)
		var line string
		select {
		case <-ctx.Done():
			fmt.Fprintln(os.Stdout)
			return nil
		case l, ok := <-lines:
			if !ok {
				return in.Err()
			}
			line = l
		}
		quit, err := runLine(ctx, a, os.Stdout, line)
		if err != nil && !errors.Is(err, context.Canceled) {
			log.Debug().Err(err).Str("line", line).Msg("[console] command")
		}
		if quit {
			return nil
		}
	}
}

// runLine executes one console line. It reports whether the console should
// exit.
func runLine(ctx context.Context, a *app.App, out io.Writer, line string) (bool, error) {
	words, err := ui.SplitLine(line)
	if err != nil {
		ui.Error(a.Notifier(), "%v", err)
		return false, err
	}
	if len(words) == 0 {
		return false, nil
	}
	head := words[0]
	switch {
	case head == "quit" || head == "exit":
		return true, nil
	case head == "help":
		printHelp(out, a)
		return false, nil
	case head == "view":
		return false, a.Render(out)
	case head == "state":
		return false, printJSON(out, a.Snapshot())
	case strings.HasPrefix(head, "#"):
		err := a.Dispatch(ctx, "nav", "go", ui.Fields{"view": ui.ParseFragment(head)})
		if err != nil {
			return false, err
		}
		return false, a.Render(out)
	}

	key, ok := ui.ParseKey(head)
	if !ok {
		ui.Error(a.Notifier(), "unknown command %q (try help)", head)
		return false, fmt.Errorf("unknown command %q", head)
	}
	if err := a.Dispatch(ctx, key.Component, key.Event, ui.ParseArgs(words[1:])); err != nil {
		if errors.Is(err, ui.ErrNoHandler) {
			ui.Error(a.Notifier(), "unknown command %q (try help)", head)
		}
		return false, err
	}
	return false, a.Render(out)
}

func printHelp(w io.Writer, a *app.App) {
	fmt.Fprintln(w, "commands:")
	fmt.Fprintln(w, "  help | view | state | quit")
	fmt.Fprintln(w, "  #home #users #events #chat")
	for _, u := range a.Dispatcher.Usage() {
		fmt.Fprintf(w, "  %s\n", u)
	}
}
