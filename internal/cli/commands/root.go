// Package commands implements the jp2dump command line.
package commands

import (
	"fmt"
	"os"
	"runtime"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	jp2 "github.com/mrjoshuak/go-jp2"
	"github.com/mrjoshuak/go-jp2/internal/cli/config"
	"github.com/mrjoshuak/go-jp2/internal/logging"
	"github.com/mrjoshuak/go-jp2/metadata"
)

var (
	// Version information - set at build time
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// app is the state shared by the subcommands once flags are parsed.
type app struct {
	v   *viper.Viper
	cfg *config.Config
	log *zap.Logger
}

// NewRootCommand creates the root command
func NewRootCommand() *cobra.Command {
	a := &app{v: config.New("."), log: zap.NewNop()}

	rootCmd := &cobra.Command{
		Use:   "jp2dump",
		Short: "Inspect and rewrite the metadata boxes of JP2 files",
		Long: `jp2dump lists the box structure of JPEG 2000 part 1 files, prints their
metadata as native or standard trees, summarizes the codestream header and
rewrites files with merged metadata while keeping the codestream as is.

Settings come from flags, JP2DUMP_* environment variables and an optional
jp2dump.yaml in the working directory.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			_ = a.log.Sync()
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.String("config", "", "Path to a config file (default ./jp2dump.yaml)")
	flags.String("log-level", "warn", "Log level (debug, info, warn, error)")
	flags.Bool("dev", false, "Use the development log format")
	flags.Bool("color", true, "Colorize output")
	flags.Bool("strict", false, "Fail on boxes that cannot be built from a tree instead of keeping them as raw data")
	flags.String("format", config.FormatNative, "Metadata tree format (native or standard)")

	for key, flag := range map[string]string{
		"log.level":       "log-level",
		"log.development": "dev",
		"color":           "color",
		"strict_boxes":    "strict",
		"tree.format":     "format",
	} {
		if err := a.v.BindPFlag(key, flags.Lookup(flag)); err != nil {
			panic(err)
		}
	}

	rootCmd.AddCommand(NewVersionCommand())
	rootCmd.AddCommand(newBoxesCommand(a))
	rootCmd.AddCommand(newTreeCommand(a))
	rootCmd.AddCommand(newInfoCommand(a))
	rootCmd.AddCommand(newRewriteCommand(a))

	return rootCmd
}

func (a *app) setup(cmd *cobra.Command) error {
	if path, _ := cmd.Flags().GetString("config"); path != "" {
		a.v.SetConfigFile(path)
	}
	cfg, err := config.Load(a.v)
	if err != nil {
		return err
	}
	log, err := logging.New(cfg.Log.Level, cfg.Log.Development)
	if err != nil {
		return err
	}
	a.cfg, a.log = cfg, log
	if !cfg.Color {
		color.NoColor = true
	}
	return nil
}

// formatName maps the configured tree format to its metadata format name.
func (a *app) formatName() string {
	if a.cfg.Tree.Format == config.FormatStandard {
		return metadata.StandardFormatName
	}
	return metadata.NativeFormatName
}

// open reads the boxes of the named file. The caller closes the file.
func (a *app) open(name string) (*jp2.Reader, *os.File, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, nil, err
	}
	r, err := jp2.NewReader(f, &jp2.ReadOptions{Logger: a.log, StrictBoxes: a.cfg.StrictBoxes})
	if err != nil {
		f.Close()
		return nil, nil, fmt.Errorf("%s: %w", name, err)
	}
	return r, f, nil
}

// NewVersionCommand creates the version command
func NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			titleColor := color.New(color.FgCyan, color.Bold)
			out := cmd.OutOrStdout()

			titleColor.Fprint(out, "jp2dump version: ")
			fmt.Fprintln(out, Version)
			titleColor.Fprint(out, "Git commit: ")
			fmt.Fprintln(out, GitCommit)
			titleColor.Fprint(out, "Build date: ")
			fmt.Fprintln(out, BuildDate)
			titleColor.Fprint(out, "Go version: ")
			fmt.Fprintln(out, runtime.Version())
		},
	}
}

// Execute runs the root command
func Execute() error {
	rootCmd := NewRootCommand()
	if err := rootCmd.Execute(); err != nil {
		errorColor := color.New(color.FgRed, color.Bold)
		errorColor.Fprintf(rootCmd.ErrOrStderr(), "Error: %v\n", err)
		return err
	}
	return nil
}
