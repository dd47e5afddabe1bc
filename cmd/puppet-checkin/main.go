// Package main implements the Sal check-in module for Puppet.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"puppetcheckin/internal/checkin"
	"puppetcheckin/internal/config"
	"puppetcheckin/internal/facter"
	"puppetcheckin/internal/logging"
	"puppetcheckin/internal/report"
	"puppetcheckin/internal/results"
	"puppetcheckin/internal/sal"
)

type options struct {
	reportPath      string
	facterBin       string
	facterLib       string
	preferencesPath string
	resultsPath     string
	logLevel        string
	timeout         time.Duration
	print           bool
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:           "puppet-checkin",
		Short:         "Report Puppet managed items and Facter facts to Sal",
		Version:       sal.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCheckin(cmd, opts)
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&opts.resultsPath, "results", results.DefaultPath, "Check-in results file")
	flags.StringVar(&opts.logLevel, "log-level", "info", "Log level (debug, info, warn, error)")

	cmd.Flags().StringVar(&opts.reportPath, "report", report.DefaultPath, "Puppet last run report")
	cmd.Flags().StringVar(&opts.facterBin, "facter", facter.DefaultBin, "Puppet binary used to render facts")
	cmd.Flags().StringVar(&opts.facterLib, "facterlib", facter.DefaultLibDir, "Custom facts directory passed as FACTERLIB")
	cmd.Flags().StringVar(&opts.preferencesPath, "preferences", config.DefaultPreferencesPath, "Sal preferences file")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", facter.DefaultTimeout, "Maximum time to wait for Facter")
	cmd.Flags().BoolVar(&opts.print, "print", false, "Also write the results to stdout")

	cmd.AddCommand(newShowCommand(opts))
	return cmd
}

func runCheckin(cmd *cobra.Command, opts *options) error {
	log := logging.New("checkin", logging.Level(opts.logLevel), logging.Output(cmd.ErrOrStderr()))
	fs := afero.NewOsFs()

	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	prefs, err := config.Load(fs, opts.preferencesPath)
	if err != nil {
		log.WithError(err).Warn("Using default preferences")
		prefs, _ = config.Load(afero.NewMemMapFs(), opts.preferencesPath)
	}

	collector := facter.New(logging.New("facter"))
	collector.Bin = opts.facterBin
	collector.LibDir = opts.facterLib
	collector.Timeout = opts.timeout

	m := &checkin.Module{
		Fs:               fs,
		Facts:            collector,
		Prefs:            prefs,
		Submitter:        results.New(fs, opts.resultsPath, logging.New("results")),
		Log:              log,
		ReportPath:       opts.reportPath,
		ManagedItemsPref: config.ManagedItemsKey,
	}

	result, err := m.Run(ctx)
	if err != nil {
		log.WithError(err).Error("Check-in failed")
		return err
	}

	if opts.print {
		return printResult(cmd, result)
	}
	return nil
}

func newShowCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the stored Puppet check-in results",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			log := logging.New("results", logging.Level(opts.logLevel), logging.Output(cmd.ErrOrStderr()))
			store := results.New(afero.NewOsFs(), opts.resultsPath, log)
			result, ok, err := store.CheckinResults(sal.ModuleName)
			if err != nil {
				log.WithError(err).Error("Failed to read check-in results")
				return err
			}
			if !ok {
				log.WithField("path", opts.resultsPath).Errorf("No %s results", sal.ModuleName)
				return errors.Errorf("no %s results in %s", sal.ModuleName, opts.resultsPath)
			}
			return printResult(cmd, result)
		},
	}
}

func printResult(cmd *cobra.Command, result *sal.CheckinResult) error {
	data, err := jsoniter.ConfigCompatibleWithStandardLibrary.MarshalIndent(result, "", "  ")
	if err != nil {
		return errors.Wrap(err, "marshal results")
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return err
}
