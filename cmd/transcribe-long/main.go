package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/alnah/transcribe-long/internal/apierr"
	"github.com/alnah/transcribe-long/internal/assemble"
	"github.com/alnah/transcribe-long/internal/audio"
	"github.com/alnah/transcribe-long/internal/cli"
	"github.com/alnah/transcribe-long/internal/config"
	"github.com/alnah/transcribe-long/internal/diarize"
	"github.com/alnah/transcribe-long/internal/ffmpeg"
	"github.com/alnah/transcribe-long/internal/interrupt"
	"github.com/alnah/transcribe-long/internal/reformat"
	"github.com/alnah/transcribe-long/internal/silence"
	"github.com/alnah/transcribe-long/internal/speaker"
	"github.com/alnah/transcribe-long/internal/transcribe"
	"github.com/alnah/transcribe-long/internal/workdir"
)

// Injected at build time via ldflags.
var (
	version = "dev"
	commit  = "unknown"
)

// Exit codes.
const (
	ExitOK            = 0
	ExitGeneral       = 1
	ExitUsage         = 2
	ExitSetup         = 3
	ExitValidation    = 4
	ExitTranscription = 5
	ExitReformat      = 6
	ExitInterrupt     = interrupt.ExitInterrupt
)

func main() {
	// Load .env file if present (ignore error if missing).
	_ = godotenv.Load()

	// First Ctrl+C cancels ctx, the second exits.
	handler, ctx := interrupt.NewHandler(context.Background())
	defer handler.Stop()

	rootCmd := newRootCmd(cli.DefaultEnv())
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		handler.Stop()
		os.Exit(exitCode(err))
	}
}

func newRootCmd(env *cli.Env) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:     "transcribe-long",
		Short:   "Transcribe long recordings, chunked at silences",
		Version: fmt.Sprintf("%s (commit: %s)", version, commit),
		// Silence Cobra's default error/usage printing; we handle it ourselves.
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	rootCmd.AddCommand(cli.TranscribeCmd(env))
	rootCmd.AddCommand(cli.WatchCmd(env))
	rootCmd.AddCommand(cli.CutsCmd(env))
	rootCmd.AddCommand(cli.LabelCmd(env))
	rootCmd.AddCommand(cli.ConfigCmd(env))
	return rootCmd
}

// exitCode maps errors to process exit codes.
func exitCode(err error) int {
	if err == nil {
		return ExitOK
	}

	// Check for context cancellation (interrupt).
	if errors.Is(err, context.Canceled) {
		return ExitInterrupt
	}

	// Cobra doesn't expose typed errors, so we check for known error message patterns.
	if isCobraUsageError(err) {
		return ExitUsage
	}

	switch {
	case isAny(err, setupErrors):
		return ExitSetup
	case isAny(err, validationErrors):
		return ExitValidation
	case isAny(err, transcriptionErrors):
		return ExitTranscription
	case isAny(err, reformatErrors):
		return ExitReformat
	}
	return ExitGeneral
}

var (
	setupErrors = []error{
		ffmpeg.ErrNotFound,
		cli.ErrAPIKeyMissing,
		transcribe.ErrAPIKeyMissing,
		reformat.ErrEmptyAPIKey,
		reformat.ErrUnknownProvider,
	}
	validationErrors = []error{
		cli.ErrFileNotFound,
		cli.ErrUnsupportedFormat,
		cli.ErrOutputExists,
		cli.ErrNoSilences,
		cli.ErrNoCuts,
		cli.ErrIncompatibleFlags,
		cli.ErrInvalidFlag,
		config.ErrInvalidConfig,
		config.ErrConfigNotFound,
		transcribe.ErrUnknownMode,
		silence.ErrInvalidEvery,
		silence.ErrUnknownFormat,
		speaker.ErrInvalidMapping,
		speaker.ErrConflictingLabel,
		workdir.ErrInputNotFound,
		audio.ErrFileNotFound,
		diarize.ErrMalformedRTTM,
		diarize.ErrNoCommand,
	}
	transcriptionErrors = []error{
		transcribe.ErrChunksFailed,
		apierr.ErrRateLimit,
		apierr.ErrQuotaExceeded,
		apierr.ErrTimeout,
		apierr.ErrAuthFailed,
		apierr.ErrBadRequest,
		diarize.ErrCommandFailed,
		assemble.ErrNoTextFound,
	}
	reformatErrors = []error{
		reformat.ErrTextTooLong,
		reformat.ErrContractViolation,
		reformat.ErrEmptyResponse,
	}
)

func isAny(err error, targets []error) bool {
	for _, target := range targets {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// cobraUsageErrorPatterns contains error message substrings that indicate Cobra usage errors.
// These patterns are stable across Cobra versions (tested with v1.8+).
var cobraUsageErrorPatterns = []string{
	"required flag",             // Missing required flag
	"unknown flag",              // Flag doesn't exist
	"unknown shorthand",         // Short flag doesn't exist
	"unknown command",           // Subcommand doesn't exist
	"flag needs an argument",    // Flag provided without value
	"invalid argument",          // Invalid flag value type
	"if any flags in the group", // Mutually exclusive flag violation
	"accepts ",                  // Wrong number of arguments (e.g., "accepts 1 arg(s)")
	"requires at least",         // Too few arguments
	"requires at most",          // Too many arguments
}

// isCobraUsageError checks if an error is a Cobra usage/parsing error.
func isCobraUsageError(err error) bool {
	if err == nil {
		return false
	}
	errMsg := err.Error()
	for _, pattern := range cobraUsageErrorPatterns {
		if strings.Contains(errMsg, pattern) {
			return true
		}
	}
	return false
}
