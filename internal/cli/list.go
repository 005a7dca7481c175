// internal/cli/list.go
package cli

import (
	"fmt"
	"io"
	"path"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/arc-language/refdata"
)

func newListCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "list [source]",
		Short: "List the packages of a dependency document",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, err := g.manager(cmd)
			if err != nil {
				return err
			}

			doc, err := mgr.Load(cmd.Context(), sourceArg(args))
			if err != nil {
				return err
			}
			return printList(cmd.OutOrStdout(), doc)
		},
	}
}

func printList(w io.Writer, doc *refdata.Document) error {
	t := newTable("PACKAGE", "VERSION", "VARIABLE", "ARCHIVES", "INSTALL PATH").
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})

	for _, spec := range doc.Specs {
		version := spec.Version.String()
		if version == "" {
			version = "-"
		}
		t.Row(spec.Package, version, spec.Variable, strconv.Itoa(len(spec.URLs)), path.Join(spec.InstallPath, spec.DataPath))
	}

	if _, err := fmt.Fprintln(w, TitleStyle.Render("Source:"), doc.Source); err != nil {
		return err
	}
	_, err := fmt.Fprintln(w, t.Render())
	return err
}
