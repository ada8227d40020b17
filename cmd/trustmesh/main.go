package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/Bilalbaddi/Veriyield-Neural-chain--2/pkg/config"
)

func main() {
	os.Exit(Run(os.Args, os.Stdout, os.Stderr))
}

// startServer is a variable to allow mocking in tests
var startServer = runServer

// Run is the entrypoint for testing
func Run(args []string, stdout, stderr io.Writer) int {
	cfg := config.Load()
	slog.SetDefault(newLogger(cfg.LogLevel, stderr))
	ctx := context.Background()

	if len(args) < 2 {
		return startServer(ctx, cfg, stdout, stderr)
	}

	switch args[1] {
	case "serve", "server":
		return startServer(ctx, cfg, stdout, stderr)
	case "issue":
		return runIssueCmd(ctx, cfg, args[2:], stdout, stderr)
	case "latest":
		return runLatestCmd(ctx, cfg, args[2:], stdout, stderr)
	case "history":
		return runHistoryCmd(ctx, cfg, args[2:], stdout, stderr)
	case "attest":
		return runAttestCmd(ctx, cfg, args[2:], stdout, stderr)
	case "verify":
		return runVerifyCmd(ctx, cfg, args[2:], stdout, stderr)
	case "help", "--help", "-h":
		printUsage(stdout)
		return 0
	default:
		_, _ = fmt.Fprintf(stderr, "Unknown command: %s\n", args[1])
		printUsage(stderr)
		return 2
	}
}

func newLogger(level string, w io.Writer) *slog.Logger {
	var lvl slog.Level
	switch strings.ToUpper(level) {
	case "DEBUG":
		lvl = slog.LevelDebug
	case "WARN", "WARNING":
		lvl = slog.LevelWarn
	case "ERROR":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: lvl}))
}

// ANSI Colors
const (
	ColorReset  = "\033[0m"
	ColorBold   = "\033[1m"
	ColorRed    = "\033[31m"
	ColorGreen  = "\033[32m"
	ColorYellow = "\033[33m"
	ColorBlue   = "\033[34m"
	ColorCyan   = "\033[36m"
	ColorGray   = "\033[37m"
)

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "")
	fmt.Fprintf(w, "%sTrustMesh Certification Engine%s\n", ColorBold+ColorBlue, ColorReset)
	fmt.Fprintf(w, "%sSensor history in, provenance certificates out.%s\n", ColorGray, ColorReset)
	fmt.Fprintln(w, "")
	fmt.Fprintf(w, "%sUSAGE:%s\n", ColorBold, ColorReset)
	fmt.Fprintln(w, "  trustmesh <command> [flags]")
	fmt.Fprintln(w, "")

	printSection(w, "SERVER")
	printCommand(w, "serve", "Run the HTTP API (default)")

	printSection(w, "CERTIFICATES")
	printCommand(w, "issue", "Certify a harvest (--farm, --crop, --json)")
	printCommand(w, "latest", "Show the most recent certificate (--json)")
	printCommand(w, "history", "List certificates, optionally for one farm (--farm, --json)")

	printSection(w, "SCAN VERIFICATION")
	printCommand(w, "attest", "Sign an attestation for the latest certificate")
	printCommand(w, "verify", "Verify an attestation token (--token)")

	printSection(w, "UTILITIES")
	printCommand(w, "help", "Show this help")
	fmt.Fprintln(w, "")
}

func printSection(w io.Writer, title string) {
	fmt.Fprintf(w, "%s%s:%s\n", ColorBold+ColorCyan, title, ColorReset)
}

func printCommand(w io.Writer, name, desc string) {
	fmt.Fprintf(w, "  %s%-12s%s %s\n", ColorGreen, name, ColorReset, desc)
}
