package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/viper"

	"github.com/josephgoksu/taskforge/internal/app"
	"github.com/josephgoksu/taskforge/internal/ui"
)

func isJSON() bool {
	return viper.GetBool("json")
}

func isQuiet() bool {
	return viper.GetBool("quiet")
}

func isVerbose() bool {
	return viper.GetBool("verbose")
}

// scopeFlag returns the --scope value. Empty means the configured default.
func scopeFlag() string {
	return strings.TrimSpace(viper.GetString("scope"))
}

func printJSON(v any) error {
	output, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(output))
	return nil
}

// newLogger writes text logs to stderr. --verbose means debug, otherwise
// log.level applies.
func newLogger(w io.Writer) *slog.Logger {
	level := slog.LevelWarn
	if isVerbose() {
		level = slog.LevelDebug
	} else {
		_ = level.UnmarshalText([]byte(viper.GetString("log.level")))
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// header prints a page header unless output is JSON or quiet.
func header(title, subtitle string) {
	if !isJSON() && !isQuiet() {
		ui.RenderPageHeader(os.Stdout, title, subtitle)
	}
}

// progress writes a status line to stderr so stdout stays clean for data.
func progress(format string, args ...any) {
	if !isQuiet() && !isJSON() {
		fmt.Fprintf(os.Stderr, format, args...)
	}
}

// emit prints the outcome of an operation: the envelope with --json,
// otherwise render() or a styled error. The returned error only drives the
// exit code.
func emit(data any, err error, render func() string) error {
	if isJSON() {
		if perr := printJSON(app.Respond(data, err)); perr != nil {
			return perr
		}
		if err != nil {
			return errReported
		}
		return nil
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, ui.RenderError(app.NewErrorInfo(err)))
		return errReported
	}
	fmt.Print(render())
	return nil
}
