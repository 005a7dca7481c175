// internal/cli/install.go
package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/arc-language/refdata"
	"github.com/arc-language/refdata/pkg/env"
)

type installOptions struct {
	json        bool
	shell       bool
	keepGoing   bool
	metricsFile string
	envFile     string
	packages    []string
}

func newInstallCmd(g *globals) *cobra.Command {
	o := &installOptions{}

	cmd := &cobra.Command{
		Use:   "install [source]",
		Short: "Install reference data packages",
		Long: `Install every package of a dependency document, or only those named
with --package. The source is a local file, an http(s) URL or
git+<repo>#<ref>:<path>; without one the configured document is used.

Examples:
  refdata install
  refdata install ./refdata_dependencies.yaml --json
  refdata install -p stpsf -p synphot --shell
  eval "$(refdata install --shell)"`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInstall(cmd, g, o, sourceArg(args))
		},
	}

	cmd.Flags().BoolVar(&o.json, "json", false, "print the report as JSON")
	cmd.Flags().BoolVar(&o.shell, "shell", false, "print export statements for the installed paths")
	cmd.Flags().BoolVar(&o.keepGoing, "keep-going", false, "continue with the remaining packages after a failure")
	cmd.Flags().StringVar(&o.metricsFile, "metrics-file", "", "write Prometheus counters to this file")
	cmd.Flags().StringVar(&o.envFile, "env-file", "", "also record installed paths in this JSON file")
	cmd.Flags().StringSliceVarP(&o.packages, "package", "p", nil, "install only these packages")
	cmd.MarkFlagsMutuallyExclusive("json", "shell")

	return cmd
}

func runInstall(cmd *cobra.Command, g *globals, o *installOptions, source string) (err error) {
	if cmd.Flags().Changed("keep-going") {
		g.config.KeepGoing = o.keepGoing
	}
	if o.metricsFile != "" {
		g.config.MetricsFile = o.metricsFile
	}
	if o.envFile != "" {
		g.config.EnvFile = o.envFile
	}

	mgr, err := g.manager(cmd)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := mgr.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	ctx := cmd.Context()
	doc, err := mgr.Load(ctx, source)
	if err != nil {
		return err
	}
	doc, err = refdata.Select(doc, o.packages...)
	if err != nil {
		return err
	}

	report, err := mgr.Install(ctx, doc)
	if report != nil {
		if perr := printReport(cmd.OutOrStdout(), report, o); perr != nil {
			return perr
		}
	}
	return err
}

func printReport(w io.Writer, report *refdata.Report, o *installOptions) error {
	switch {
	case o.json:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	case o.shell:
		_, err := io.WriteString(w, env.ShellExports(report.Exports()))
		return err
	}

	for _, e := range report.Entries() {
		mark, note := SuccessStyle.Render("✓"), "installed"
		if e.PreInstalled {
			mark, note = SubtitleStyle.Render("•"), "already present"
		}
		if _, err := fmt.Fprintf(w, "%s %s=%s %s\n", mark, e.Variable, e.Path, SubtitleStyle.Render("("+note+")")); err != nil {
			return err
		}
	}
	return nil
}
