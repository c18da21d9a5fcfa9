package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kingrea/cmec-driver/internal/config"
	"github.com/kingrea/cmec-driver/internal/driver"
	"github.com/kingrea/cmec-driver/internal/logging"
	"github.com/kingrea/cmec-driver/internal/orchestrator"
	"github.com/kingrea/cmec-driver/internal/prompt"
	"github.com/kingrea/cmec-driver/internal/tui"
)

// summaryTailLines is how much of a failed target's log the run summary shows.
const summaryTailLines = 15

type globalFlags struct {
	logLevel   string
	logJSON    bool
	logFile    string
	library    string
	configFile string
}

// app holds what the subcommands share once the root command has loaded the
// configuration.
type app struct {
	flags  globalFlags
	logger *logging.Logger
	driver *driver.Driver
	// homeDir overrides the user's home directory in tests.
	homeDir string
}

func (a *app) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "cmec-driver",
		Short:         "Register and run CMEC diagnostic modules",
		Long:          "cmec-driver keeps a library of diagnostic modules, runs their configurations against model output and collects the results into one HTML index.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init(cmd)
		},
	}
	flags := root.PersistentFlags()
	flags.StringVar(&a.flags.logLevel, "log-level", "", "log level (debug, info, warn, error)")
	flags.BoolVar(&a.flags.logJSON, "log-json", false, "write logs as JSON")
	flags.StringVar(&a.flags.logFile, "log-file", "", "also append logs to this file")
	flags.StringVar(&a.flags.library, "library", "", "path to the module library file")
	flags.StringVar(&a.flags.configFile, "config-file", "", "path to the run configuration file (cmec.json)")

	root.AddCommand(
		a.setupCmd(),
		a.registerCmd(),
		a.unregisterCmd(),
		a.listCmd(),
		a.runCmd(),
	)
	return root
}

func (a *app) init(cmd *cobra.Command) error {
	cfg, err := config.Load(a.homeDir, config.Overrides{
		LibraryPath: a.flags.library,
		ConfigFile:  a.flags.configFile,
		LogLevel:    a.flags.logLevel,
		LogJSON:     a.flags.logJSON,
		LogFile:     a.flags.logFile,
	})
	if err != nil {
		return err
	}
	logger, err := logging.New(cfg.Log, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	a.logger = logger
	a.driver, err = driver.New(driver.Options{
		Config:   cfg,
		Logger:   logger,
		Prompter: prompt.ForStdio(os.Stdin, cmd.ErrOrStderr()),
		Out:      cmd.OutOrStdout(),
	})
	return err
}

func (a *app) close() error {
	if a.logger == nil {
		return nil
	}
	return a.logger.Close()
}

func (a *app) setupCmd() *cobra.Command {
	var opts driver.SetupOptions
	cmd := &cobra.Command{
		Use:   "setup",
		Short: "Record the conda installation used by MDTF PODs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.driver.Setup(cmd.Context(), opts)
		},
	}
	cmd.Flags().StringVar(&opts.CondaSource, "conda_source", "", "path to conda's etc/profile.d/conda.sh")
	cmd.Flags().StringVar(&opts.EnvRoot, "env_root", "", "directory holding the MDTF conda environments")
	cmd.Flags().BoolVar(&opts.Clear, "clear_conda", false, "remove the stored conda settings")
	cmd.Flags().BoolVar(&opts.Print, "print_conda", false, "print the stored conda settings")
	return cmd
}

func (a *app) registerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "register <module_dir>",
		Short: "Add a module directory to the library",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name, err := a.driver.Register(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Registered %s\n", name)
			return nil
		},
	}
}

func (a *app) unregisterCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "unregister <module_name>",
		Short: "Remove a module and its settings",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.driver.Unregister(cmd.Context(), args[0])
		},
	}
}

func (a *app) listCmd() *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List registered modules",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			return a.driver.List(all)
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "list every configuration of each module")
	return cmd
}

func (a *app) runCmd() *cobra.Command {
	var obsDir string
	cmd := &cobra.Command{
		Use:   "run <model_dir> <output_dir> <module>...",
		Short: "Run modules against model data",
		Long:  "Run modules against model data. Modules are named as \"module\" or \"module/configuration\".",
		Args:  cobra.MinimumNArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			outcomes, err := a.driver.Run(cmd.Context(), driver.RunOptions{
				ObsDir:    obsDir,
				ModelDir:  args[0],
				OutputDir: args[1],
				Modules:   args[2:],
			})
			if len(outcomes) > 0 {
				fmt.Fprintln(cmd.OutOrStdout(), tui.RenderSummary(summaryRows(outcomes), summaryTailLines))
			}
			return err
		},
	}
	cmd.Flags().StringVar(&obsDir, "obs", "", "observations directory")
	return cmd
}

func summaryRows(outcomes []orchestrator.Outcome) []tui.TargetRow {
	rows := make([]tui.TargetRow, 0, len(outcomes))
	for _, o := range outcomes {
		row := tui.TargetRow{
			Name:     o.Target.WorkDirName,
			Failed:   o.Failed,
			ExitCode: o.ExitCode,
			LogPath:  o.LogPath,
		}
		if o.Err != nil {
			row.Detail = o.Err.Error()
		} else if o.IndexPage != "" {
			row.Detail = o.IndexPage
		}
		rows = append(rows, row)
	}
	return rows
}
