package cli

import (
	"flag"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/castorbuild/castor/internal/app"
)

// ExitError is a custom error type that includes a specific exit code.
type ExitError struct {
	Code    int
	Message string
}

// Error implements the error interface for ExitError.
func (e *ExitError) Error() string {
	return e.Message
}

// Parse processes command-line arguments. It returns a populated Config, a
// boolean indicating if the program should exit cleanly, or an ExitError.
func Parse(args []string, output io.Writer) (*app.Config, bool, error) {
	slog.Debug("CLI parser started.")
	flagSet := flag.NewFlagSet("castor", flag.ContinueOnError)
	flagSet.SetOutput(output)

	// Custom usage/help text function
	flagSet.Usage = func() {
		fmt.Fprint(output, `
Castor - An incremental, digest-driven build tool.

Usage:
  castor [options] TARGET...
  castor -list [options] [PATTERN...]

Arguments:
  TARGET
    Name of an artifact or group to bring up to date.
  PATTERN
    Anchored regular expression selecting artifacts to list. Listing with
    no patterns covers every artifact.

Options:
`)
		flagSet.PrintDefaults()
	}

	fileFlag := flagSet.String("f", app.DefaultBuildPath, "Path to a .hcl build file or a directory containing .hcl files.")
	digestsFlag := flagSet.String("digests", app.DefaultDigestsPath, "Path to the persisted digest cache.")
	settingsFlag := flagSet.String("settings", app.DefaultSettingsPath, "Path to the optional settings file.")
	concurrencyFlag := flagSet.Int64("c", app.DefaultConcurrency, "Maximum number of transforms running at once. 0 removes the bound.")
	dryRunFlag := flagSet.Bool("n", false, "Report stale artifacts without running their transforms.")
	listFlag := flagSet.Bool("list", false, "List artifacts and their staleness instead of building.")
	staleFlag := flagSet.Bool("stale", false, "With -list, show only stale artifacts.")
	allFlag := flagSet.Bool("all", false, "With -list, list every artifact regardless of patterns.")
	logFormatFlag := flagSet.String("log-format", "json", "Log output format. Options: 'text' or 'json'.")
	logLevelFlag := flagSet.String("log-level", "info", "Set the logging level. Options: 'debug', 'info', 'warn', 'error'.")

	if err := flagSet.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return nil, true, nil
		}
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}
	slog.Debug("Arguments parsed successfully.")

	targets := flagSet.Args()
	if len(targets) == 0 && !*listFlag {
		slog.Debug("No targets provided, printing usage and exiting.")
		flagSet.Usage()
		return nil, true, nil
	}

	logFormat := strings.ToLower(*logFormatFlag)
	if logFormat != "text" && logFormat != "json" {
		return nil, false, &ExitError{Code: 2, Message: "invalid log-format: must be 'text' or 'json'"}
	}

	logLevel := strings.ToLower(*logLevelFlag)
	switch logLevel {
	case "debug", "info", "warn", "error":
		// valid
	default:
		return nil, false, &ExitError{Code: 2, Message: "invalid log-level: must be 'debug', 'info', 'warn', or 'error'"}
	}
	slog.Debug("CLI parameter validation complete.")

	config, err := app.NewConfig(app.Config{
		BuildPath:    *fileFlag,
		DigestsPath:  *digestsFlag,
		SettingsPath: *settingsFlag,
		Concurrency:  *concurrencyFlag,
		DryRun:       *dryRunFlag,
		List:         *listFlag,
		StaleOnly:    *staleFlag,
		MatchAll:     *allFlag,
		LogFormat:    logFormat,
		LogLevel:     logLevel,
		Targets:      targets,
	})

	if err != nil {
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}

	slog.Debug("CLI parser finished successfully.", "config", config)
	return config, false, nil
}
