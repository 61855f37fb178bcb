package main

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/alephnan/pcgcp/client"
	"github.com/briandowns/spinner"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// terminalNotifier renders sign-in events: a spinner while the backend
// verifies, then the project table or a warning.
type terminalNotifier struct {
	out     io.Writer
	mu      sync.Mutex
	spinner *spinner.Spinner
}

func newTerminalNotifier(out io.Writer) *terminalNotifier {
	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(out))
	s.Suffix = " Loading projects..."
	return &terminalNotifier{out: out, spinner: s}
}

func (n *terminalNotifier) Notify(e client.Event) {
	n.mu.Lock()
	defer n.mu.Unlock()

	switch e.Kind {
	case client.EventSidebarShown:
		n.spinner.Start()
	case client.EventProjectsReady:
		n.spinner.Stop()
		n.renderProjects(e.Projects)
	case client.EventWarning:
		n.spinner.Stop()
		fmt.Fprintf(n.out, "%s %s\n", text.FgYellow.Sprint("!"), e.Warning)
	}
}

// Stop hides the spinner if a flow ended before the backend answered
func (n *terminalNotifier) Stop() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.spinner.Stop()
}

func (n *terminalNotifier) renderProjects(names []string) {
	if len(names) == 0 {
		fmt.Fprintln(n.out, text.FgYellow.Sprint("No projects found"))
		return
	}

	t := table.NewWriter()
	t.SetOutputMirror(n.out)
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{text.FgHiCyan.Sprint("#"), text.FgHiCyan.Sprint("PROJECT")})
	for i, name := range names {
		t.AppendRow(table.Row{i + 1, name})
	}
	t.Render()
}
