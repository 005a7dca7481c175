// internal/cli/status.go
package cli

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/arc-language/refdata"
)

func newStatusCmd(g *globals) *cobra.Command {
	var packages []string

	cmd := &cobra.Command{
		Use:   "status [source]",
		Short: "Show what install would do for each package",
		Long: `Resolve every package of a dependency document without downloading
anything. A package is "preset" when its variable already holds a path,
"installed" when its directory is populated, and "needs-install"
otherwise.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, err := g.manager(cmd)
			if err != nil {
				return err
			}

			doc, err := mgr.Load(cmd.Context(), sourceArg(args))
			if err != nil {
				return err
			}
			doc, err = refdata.Select(doc, packages...)
			if err != nil {
				return err
			}

			decisions, err := mgr.Status(doc)
			if err != nil {
				return err
			}
			return printStatus(cmd.OutOrStdout(), decisions)
		},
	}

	cmd.Flags().StringSliceVarP(&packages, "package", "p", nil, "show only these packages")
	return cmd
}

func printStatus(w io.Writer, decisions []refdata.Decision) error {
	rows := make([][]string, 0, len(decisions))
	for _, d := range decisions {
		rows = append(rows, []string{d.Spec.Package, d.Spec.Variable, d.State.String(), d.Path})
	}

	t := newTable("PACKAGE", "VARIABLE", "STATE", "PATH").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			if col == 2 && decisions[row].State == refdata.StateNeedsInstall {
				return cellStyle.Inherit(WarningStyle)
			}
			return cellStyle
		})

	_, err := fmt.Fprintln(w, t.Render())
	return err
}

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(SubtitleStyle).
		Headers(headers...)
}
