package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"time"

	"charm.land/lipgloss/v2"
	"charm.land/lipgloss/v2/table"

	"github.com/harunnryd/kabu/internal/store"
)

var (
	accentColor = lipgloss.Color("99")
	mutedColor  = lipgloss.Color("245")

	bannerStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(accentColor).
			Padding(0, 2)

	answerStyle = lipgloss.NewStyle().
			Border(lipgloss.NormalBorder()).
			BorderForeground(accentColor).
			Padding(0, 1)

	traceStyle = lipgloss.NewStyle().Foreground(mutedColor)

	warnStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("208"))
)

// REPL is the interactive shell around the agent. One REPL holds one
// conversation; `clear` starts a fresh one.
type REPL struct {
	components *components
	reader     *bufio.Reader
	sessionID  string
	startedAt  time.Time
}

func NewREPL(c *components) *REPL {
	return &REPL{
		components: c,
		reader:     bufio.NewReader(os.Stdin),
		sessionID:  store.NewSessionID(),
		startedAt:  time.Now().UTC(),
	}
}

func (r *REPL) Start() error {
	fmt.Println(bannerStyle.Render("kabu · market analysis agent\nType a question, or 'help' for commands."))

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt)
	defer signal.Stop(sigChan)

	for {
		fmt.Print("> ")
		line, err := r.reader.ReadString('\n')
		if err != nil {
			if err == io.EOF {
				fmt.Println()
				return nil
			}
			return err
		}

		line = strings.TrimSpace(line)
		switch line {
		case "":
			continue
		case "exit", "quit":
			return nil
		case "help":
			r.printHelp()
		case "tools":
			r.printTools()
		case "clear":
			r.components.resetAgent()
			r.sessionID = store.NewSessionID()
			fmt.Println("Conversation cleared.")
		default:
			r.ask(line, sigChan)
		}
	}
}

// ask runs one query. SIGINT cancels the in-flight run; the partial answer
// still renders and the REPL keeps going.
func (r *REPL) ask(query string, sigChan <-chan os.Signal) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		select {
		case <-sigChan:
			fmt.Println("\nInterrupting...")
			cancel()
		case <-done:
		}
	}()

	resp, err := r.components.agent.Run(ctx, query)
	close(done)
	cancel()

	if err != nil && resp == nil {
		fmt.Println(warnStyle.Render("error: " + err.Error()))
		return
	}

	if r.components.cfg.Agent.Verbose {
		for _, line := range resp.Trace {
			fmt.Println(traceStyle.Render(line))
		}
	}

	fmt.Println(answerStyle.Render(resp.FinalAnswer))
	if len(resp.ToolsUsed) > 0 {
		fmt.Println(traceStyle.Render(fmt.Sprintf("tools: %s · iterations: %d", strings.Join(resp.ToolsUsed, ", "), resp.Iterations)))
	}
	if resp.Incomplete {
		fmt.Println(warnStyle.Render("note: the answer above is incomplete"))
	}

	r.persist()
}

func (r *REPL) persist() {
	if r.components.store == nil {
		return
	}
	session := &store.Session{
		ID:        r.sessionID,
		StartedAt: r.startedAt,
		Messages:  r.components.agent.Conversation().Messages(),
	}
	if err := r.components.store.Save(session); err != nil {
		slog.Warn("Persisting session", "session_id", r.sessionID, "error", err)
	}
}

func (r *REPL) printHelp() {
	fmt.Println(`Commands:
  help         show this help
  tools        list available tools
  clear        start a fresh conversation
  exit, quit   leave kabu

Anything else is sent to the agent as a question.`)
}

func (r *REPL) printTools() {
	descriptors := r.components.catalog.Descriptors()
	if len(descriptors) == 0 {
		fmt.Println("No tools registered.")
		return
	}

	headerStyle := lipgloss.NewStyle().Foreground(accentColor).Bold(true).Padding(0, 1)
	cellStyle := lipgloss.NewStyle().Padding(0, 1)

	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(accentColor)).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		}).
		Headers("TOOL", "DESCRIPTION")

	for _, d := range descriptors {
		t.Row(d.Name, truncateLine(d.Description, 80))
	}
	fmt.Println(t.Render())
}

func truncateLine(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit] + "..."
}
