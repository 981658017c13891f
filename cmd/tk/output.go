package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"
	"golang.org/x/term"

	"github.com/zulandar/tracker/internal/errs"
	"github.com/zulandar/tracker/internal/models"
	"github.com/zulandar/tracker/internal/tracker"
)

var (
	green  = color.New(color.FgHiGreen).SprintFunc()
	yellow = color.New(color.FgHiYellow).SprintFunc()
	cyan   = color.New(color.FgHiCyan).SprintFunc()
	red    = color.New(color.FgHiRed).SprintFunc()
	bold   = color.New(color.Bold).SprintFunc()
	faint  = color.New(color.Faint).SprintFunc()
)

// newTable returns a borderless left-aligned table writing to out.
func newTable(out io.Writer, headers ...string) *tablewriter.Table {
	table := tablewriter.NewTable(out,
		tablewriter.WithHeaderAlignment(tw.AlignLeft),
		tablewriter.WithRowAlignment(tw.AlignLeft),
		tablewriter.WithRendition(tw.Rendition{
			Borders: tw.BorderNone,
			Settings: tw.Settings{
				Lines:      tw.LinesNone,
				Separators: tw.SeparatorsNone,
			},
		}),
		tablewriter.WithPadding(tw.Padding{Left: "", Right: "  "}),
	)
	table.Header(headers)
	return table
}

func statusColor(s models.Status) string {
	switch s {
	case models.StatusTodo:
		return string(s)
	case models.StatusInProgress:
		return yellow(string(s))
	case models.StatusInReview:
		return cyan(string(s))
	case models.StatusDone:
		return green(string(s))
	case models.StatusCancelled:
		return faint(string(s))
	default:
		return string(s)
	}
}

func approvalColor(s *models.ApprovalStatus) string {
	if s == nil {
		return "-"
	}
	switch *s {
	case models.ApprovalApproved:
		return green(string(*s))
	case models.ApprovalRejected:
		return red(string(*s))
	case models.ApprovalChangesRequested:
		return yellow(string(*s))
	default:
		return string(*s)
	}
}

func success(out io.Writer, format string, a ...any) {
	fmt.Fprintf(out, "%s %s\n", green("✓"), fmt.Sprintf(format, a...))
}

func warning(out io.Writer, format string, a ...any) {
	fmt.Fprintf(out, "%s %s\n", yellow("⚠"), fmt.Sprintf(format, a...))
}

// printError writes err with its taxonomy rule when it has one.
func printError(out io.Writer, err error) {
	var ve *errs.ValidationError
	if errors.As(err, &ve) {
		fmt.Fprintf(out, "%s %s %s\n", red("✗"), err, faint("("+ve.Rule+")"))
		return
	}
	fmt.Fprintf(out, "%s %s\n", red("✗"), err)
}

func orDash(s *string) string {
	if s == nil || *s == "" {
		return "-"
	}
	return *s
}

func points(p *float64) string {
	if p == nil {
		return "-"
	}
	return fmt.Sprintf("%g", *p)
}

// truncate shortens s to max runes, adding "..." when cut.
func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	if max <= 3 {
		return string(r[:max])
	}
	return string(r[:max-3]) + "..."
}

// stdinIsTerminal is replaced in tests.
var stdinIsTerminal = func() bool { return term.IsTerminal(int(os.Stdin.Fd())) }

// confirm asks a yes/no question on an interactive terminal. Without a
// terminal it refuses, so scripts must pass --yes.
func confirm(in io.Reader, out io.Writer, prompt string) (bool, error) {
	if !stdinIsTerminal() {
		return false, fmt.Errorf("%s: not a terminal, pass --yes to confirm", prompt)
	}
	fmt.Fprintf(out, "%s [y/N] ", prompt)
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && err != io.EOF {
		return false, err
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes", nil
}

// printFailures lists the items a bulk operation could not update and
// returns an error when there were any.
func printFailures(out io.Writer, failed []tracker.ItemFailure) error {
	if len(failed) == 0 {
		return nil
	}
	for _, f := range failed {
		warning(out, "%s: %s", f.IssueID, f.Reason)
	}
	return fmt.Errorf("%d item(s) failed; retry them individually", len(failed))
}
