package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/termfx/refactory/core"
)

// prompter asks on the terminal before each edit and on each conflict.
// Answers are serialized so prompts never interleave.
type prompter struct {
	mu  sync.Mutex
	in  *bufio.Reader
	out io.Writer

	acceptAll  bool
	declineAll bool
}

func newPrompter(in io.Reader, out io.Writer) *prompter {
	return &prompter{in: bufio.NewReader(in), out: out}
}

func (p *prompter) Approve(ctx context.Context, proposal core.Proposal) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if p.acceptAll || p.declineAll {
		return p.acceptAll, nil
	}

	point := proposal.Node.StartPoint()
	fmt.Fprintf(p.out, "\n%s %s\n", cyan(fmt.Sprintf("%s:%d:%d", proposal.File, point.Row+1, point.Column+1)), faint(proposal.Rule))
	for line := range strings.Lines(proposal.Node.Content()) {
		fmt.Fprint(p.out, red("- "+strings.TrimRight(line, "\n")), "\n")
	}
	for line := range strings.Lines(proposal.Edit.Replacement) {
		fmt.Fprint(p.out, green("+ "+strings.TrimRight(line, "\n")), "\n")
	}

	switch p.ask("Apply this edit? [y]es, [n]o, [a]ll, [q]uit: ") {
	case "y", "yes":
		return true, nil
	case "a", "all":
		p.acceptAll = true
		return true, nil
	case "q", "quit", "eof":
		p.declineAll = true
		return false, nil
	default:
		return false, nil
	}
}

func (p *prompter) ResolveConflict(ctx context.Context, conflict *core.ConflictError) (core.Edit, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if ctx.Err() != nil || p.declineAll {
		return core.Edit{}, false
	}

	fmt.Fprintf(p.out, "\n%s %s\n", red("conflict in"), conflict.File)
	fmt.Fprintf(p.out, "  1) %s %s\n", conflict.A, faint(conflict.A.Origin))
	fmt.Fprintf(p.out, "  2) %s %s\n", conflict.B, faint(conflict.B.Origin))

	switch p.ask("Drop which edit? [1], [2], [n]either: ") {
	case "1":
		return conflict.A, true
	case "2":
		return conflict.B, true
	default:
		return core.Edit{}, false
	}
}

// ask returns the trimmed, lower-cased answer, or "eof" once input ends.
func (p *prompter) ask(question string) string {
	fmt.Fprint(p.out, question)
	line, err := p.in.ReadString('\n')
	if err != nil && strings.TrimSpace(line) == "" {
		fmt.Fprintln(p.out)
		return "eof"
	}
	return strings.ToLower(strings.TrimSpace(line))
}
