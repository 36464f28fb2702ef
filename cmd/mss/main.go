package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/1broseidon/mss/internal/inject"
	"github.com/1broseidon/mss/internal/install"
)

// loaderName is the name the injector image carries inside the bundle.
// Invoked under that name the binary behaves as "mss inject".
const loaderName = "mss-loader"

func main() {
	os.Exit(run(os.Args, os.Stdout, os.Stderr))
}

func run(argv []string, stdout, stderr io.Writer) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	args := argv[1:]
	if filepath.Base(argv[0]) == loaderName {
		args = append([]string{"inject"}, args...)
	}

	a := &app{stdout: stdout, stderr: stderr}
	root := newRootCmd(a)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.ExecuteContext(ctx)
	if err == nil {
		return 0
	}
	reportError(stderr, err)
	return 1
}

// silentError carries an exit status for a failure the command has already
// reported.
type silentError struct{ msg string }

func (e *silentError) Error() string { return e.msg }

// reportError prints err and, when one is known, what the user can do.
func reportError(w io.Writer, err error) {
	var silent *silentError
	if errors.As(err, &silent) {
		return
	}
	fmt.Fprintf(w, "Error: %v\n", err)
	if fix := remediation(err); fix != "" {
		fmt.Fprintf(w, "  To fix: %s\n", fix)
	}
}

func remediation(err error) string {
	var pe *install.PreconditionError
	if errors.As(err, &pe) {
		return pe.Remediation
	}
	var f *inject.Failure
	if errors.As(err, &f) {
		return f.Remediation
	}
	return ""
}
