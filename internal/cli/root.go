// internal/cli/root.go
package cli

import (
	"context"

	"github.com/charmbracelet/fang"
	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/arc-language/refdata"
	"github.com/arc-language/refdata/pkg/core"
)

// Version is the release version (set via -ldflags)
var Version = "0.1.0"

// globals holds the persistent flags and the configuration they produce
type globals struct {
	cfgFile string
	debug   bool
	config  *core.Config
}

func newRootCmd() *cobra.Command {
	g := &globals{}

	cmd := &cobra.Command{
		Use:   "refdata",
		Short: "Reference data installer",
		Long: TitleStyle.Render("refdata") + SubtitleStyle.Render(" - Reference data installer") + `

Downloads the archives listed in a dependency document, extracts them
into each package's install path and records where the data landed in
the package's environment variable. Packages whose variable is already
set, or whose directory is already populated, are left alone.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return g.load()
		},
	}

	cmd.PersistentFlags().StringVar(&g.cfgFile, "config", "", "config file (default is $HOME/.config/refdata/config.yaml)")
	cmd.PersistentFlags().BoolVar(&g.debug, "debug", false, "enable debug logging")

	cmd.AddCommand(newInstallCmd(g))
	cmd.AddCommand(newStatusCmd(g))
	cmd.AddCommand(newListCmd(g))
	cmd.AddCommand(newConfigCmd(g))
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// Execute executes the root command
func Execute() error {
	return fang.Execute(context.Background(), newRootCmd(), fang.WithVersion(Version))
}

func (g *globals) load() error {
	cfg, err := core.LoadConfig(g.cfgFile)
	if err != nil {
		return err
	}
	if g.debug {
		cfg.Debug = true
	}
	g.config = cfg
	return nil
}

func (g *globals) logger(cmd *cobra.Command) *log.Logger {
	level := log.InfoLevel
	if g.config.Debug {
		level = log.DebugLevel
	}
	return log.NewWithOptions(cmd.ErrOrStderr(), log.Options{Prefix: "refdata", Level: level})
}

func (g *globals) manager(cmd *cobra.Command) (*refdata.Manager, error) {
	return refdata.NewManager(g.config, refdata.WithLogger(g.logger(cmd)))
}

func sourceArg(args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	return ""
}

// skipConfig replaces the root hook for commands that work without settings
func skipConfig(*cobra.Command, []string) error {
	return nil
}
