package main

import (
	"fmt"
	"io"
	"os"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "0.1.0"

func main() {
	os.Exit(Run(os.Args, os.Stdin, os.Stdout, os.Stderr))
}

// Run is the entrypoint for testing.
//
// Exit codes:
//
//	0 = success
//	1 = the gate rejected the input (invalid, needs review, broken chain)
//	2 = usage or runtime error
func Run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	if len(args) < 2 {
		printUsage(stderr)
		return 2
	}

	cmdArgs := args[2:]
	switch args[1] {
	case "validate":
		return runValidateCmd(cmdArgs, stdin, stdout, stderr)
	case "score":
		return runScoreCmd(cmdArgs, stdin, stdout, stderr)
	case "evaluate":
		return runEvaluateCmd(cmdArgs, stdin, stdout, stderr)
	case "batch":
		return runBatchCmd(cmdArgs, stdin, stdout, stderr)
	case "phases":
		return runPhasesCmd(cmdArgs, stdout, stderr)
	case "admit":
		return runAdmitCmd(cmdArgs, stdin, stdout, stderr)
	case "cancel-run":
		return runCancelRunCmd(cmdArgs, stdout, stderr)
	case "queue":
		return runQueueCmd(cmdArgs, stdout, stderr)
	case "stats":
		return runStatsCmd(cmdArgs, stdout, stderr)
	case "audit-verify":
		return runAuditVerifyCmd(cmdArgs, stdout, stderr)
	case "audit-export":
		return runAuditExportCmd(cmdArgs, stdout, stderr)
	case "version":
		_, _ = fmt.Fprintf(stdout, "plangate %s\n", version)
		return 0
	case "help", "--help", "-h":
		printUsage(stdout)
		return 0
	default:
		_, _ = fmt.Fprintf(stderr, "Unknown command: %s\n", args[1])
		printUsage(stderr)
		return 2
	}
}

// ANSI Colors
const (
	ColorReset = "\033[0m"
	ColorBold  = "\033[1m"
	ColorRed   = "\033[31m"
	ColorGreen = "\033[32m"
	ColorBlue  = "\033[34m"
	ColorCyan  = "\033[36m"
	ColorGray  = "\033[37m"
)

func printUsage(w io.Writer) {
	_, _ = fmt.Fprintln(w, "")
	_, _ = fmt.Fprintf(w, "%sPlanGate %s%s\n", ColorBold+ColorBlue, version, ColorReset)
	_, _ = fmt.Fprintf(w, "%sQuality gate for generated plan artifacts.%s\n", ColorGray, ColorReset)
	_, _ = fmt.Fprintln(w, "")
	_, _ = fmt.Fprintf(w, "%sUSAGE:%s\n", ColorBold, ColorReset)
	_, _ = fmt.Fprintln(w, "  plangate <command> [flags]")
	_, _ = fmt.Fprintln(w, "")

	printSection(w, "GATE")
	printCommand(w, "validate", "Check an artifact against its phase contract (--phase, --file)")
	printCommand(w, "score", "Compute the quality score of an artifact (--phase, --file, --json)")
	printCommand(w, "evaluate", "Decide the review action for an artifact (--report, --json)")
	printCommand(w, "batch", "Evaluate a JSON array of submissions (--file, --json)")
	printCommand(w, "phases", "List phase contracts in pipeline order (--json)")

	printSection(w, "REVIEW")
	printCommand(w, "admit", "Run an artifact through the full gate (--run, --phase, --file)")
	printCommand(w, "cancel-run", "Orphan the open escalations and unknowns of a run (--run)")
	printCommand(w, "queue", "List pending escalations in review order (--json)")
	printCommand(w, "stats", "Summarize escalations in a window (--window, --json)")

	printSection(w, "AUDIT")
	printCommand(w, "audit-verify", "Verify the tenant's audit hash chain (--json)")
	printCommand(w, "audit-export", "Write a verified evidence pack zip (--out)")

	printSection(w, "UTILITIES")
	printCommand(w, "version", "Show version information")
	printCommand(w, "help", "Show this help")
	_, _ = fmt.Fprintln(w, "")
}

func printSection(w io.Writer, title string) {
	_, _ = fmt.Fprintf(w, "%s%s:%s\n", ColorBold+ColorCyan, title, ColorReset)
}

func printCommand(w io.Writer, name, desc string) {
	_, _ = fmt.Fprintf(w, "  %s%-13s%s %s\n", ColorGreen, name, ColorReset, desc)
}
