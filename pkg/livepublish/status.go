package livepublish

import (
	"fmt"
	"io"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/olekukonko/tablewriter"
)

// humans get a table, scripts get "git status --short" -like lines
func printStatus(project *Project, changes []Change, output *os.File) {
	printStatusAs(project, changes, output, isatty.IsTerminal(output.Fd()))
}

func printStatusAs(project *Project, changes []Change, output io.Writer, terminal bool) {
	if terminal {
		printStatusTable(project, changes, output)
	} else {
		printStatusPlain(changes, output)
	}
}

// like "git status --short", for scripts
func printStatusPlain(changes []Change, output io.Writer) {
	for _, change := range changes {
		fmt.Fprintf(output, "%s %s\n", changeKindShort(change.Kind), change.Path)
	}
}

func printStatusTable(project *Project, changes []Change, output io.Writer) {
	fmt.Fprintf(output, "Tracker: %s, functions: %d, region: %s\n\n",
		project.Conf.Tracker,
		len(project.Conf.Functions),
		project.Conf.Region)

	if len(changes) == 0 {
		fmt.Fprintln(output, "No changes compared to deployed version")
		return
	}

	tbl := tablewriter.NewWriter(output)
	tbl.SetAutoFormatHeaders(false)
	tbl.SetBorder(false)
	tbl.SetHeader([]string{"Path", "Change", "Published"})

	for _, change := range changes {
		published := "yes"
		if change.Kind == ChangeDeleted {
			published = "no (deletions can't be live-edited)"
		}

		tbl.Append([]string{change.Path, string(change.Kind), published})
	}

	tbl.Render()
}

func changeKindShort(kind ChangeKind) string {
	switch kind {
	case ChangeCreated:
		return "A"
	case ChangeUpdated:
		return "M"
	case ChangeDeleted:
		return "D"
	default:
		return "?"
	}
}
