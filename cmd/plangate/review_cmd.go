package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"time"

	"github.com/Mindburn-Labs/plangate/pkg/admission"
	"github.com/Mindburn-Labs/plangate/pkg/contracts"
	"github.com/Mindburn-Labs/plangate/pkg/schema"
)

// withServices opens the stateful services for the duration of fn.
func withServices(stderr io.Writer, fn func(ctx context.Context, svc *Services) int) int {
	ctx := context.Background()
	svc, err := openServices(ctx, stderr)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	code := fn(ctx, svc)
	if err := svc.Close(ctx); err != nil {
		svc.Logger.Warn("shutdown", "error", err)
	}
	return code
}

func tenantOr(flagValue string, svc *Services) string {
	if flagValue != "" {
		return flagValue
	}
	return svc.Config.TenantID
}

// runAdmitCmd implements `plangate admit`.
//
// Exit codes:
//
//	0 = advance
//	1 = pause or halt
//	2 = usage or runtime error
func runAdmitCmd(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	var runID, operator, tenant string
	f, ok := parseArtifactCmd("admit", args, stderr, func(cmd *flag.FlagSet) {
		cmd.StringVar(&runID, "run", "", "Pipeline run id (REQUIRED)")
		cmd.StringVar(&operator, "operator", "", "Operator submitting the artifact")
		cmd.StringVar(&tenant, "tenant", "", "Tenant id (default GATE_TENANT_ID)")
	})
	if !ok {
		return 2
	}
	if runID == "" {
		_, _ = fmt.Fprintln(stderr, "Error: --run is required")
		return 2
	}
	ectx, err := f.context(stdin)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	// Snapshot decodable output in canonical JSON form.
	artifact := ectx.Artifact
	if decoded, err := schema.Decode(artifact); err == nil && decoded != nil {
		artifact = decoded
	}

	return withServices(stderr, func(ctx context.Context, svc *Services) int {
		dec, err := svc.Admission.Admit(ctx, admission.Submission{
			TenantID:      tenantOr(tenant, svc),
			RunID:         runID,
			Phase:         f.phase,
			OperatorID:    operator,
			Artifact:      artifact,
			Orchestration: ectx.Orchestration,
			Citations:     ectx.Citations,
		})
		if err != nil {
			_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
			return 2
		}
		if f.jsonOut {
			writeJSON(stdout, dec)
		} else {
			_, _ = fmt.Fprintf(stdout, "Decision %s: %s\n", dec.ID, dec.Outcome)
			_, _ = fmt.Fprintf(stdout, "  phase:    %s\n", dec.Phase)
			_, _ = fmt.Fprintf(stdout, "  action:   %s (score %d)\n", dec.Result.ReviewAction, dec.Result.Score.Overall)
			_, _ = fmt.Fprintf(stdout, "  snapshot: %s\n", dec.SnapshotDigest)
			if dec.Escalation != nil {
				_, _ = fmt.Fprintf(stdout, "  escalation: %s (%s)\n", dec.Escalation.ID, dec.Escalation.Priority)
			}
			for _, u := range dec.Unknowns {
				_, _ = fmt.Fprintf(stdout, "  unknown: %s [%s] %s\n", u.ID, u.Priority, u.Question)
			}
		}
		if dec.Outcome != admission.OutcomeAdvance {
			return 1
		}
		return 0
	})
}

// runCancelRunCmd implements `plangate cancel-run`.
func runCancelRunCmd(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("cancel-run", flag.ContinueOnError)
	cmd.SetOutput(stderr)
	var runID, operator, tenant string
	cmd.StringVar(&runID, "run", "", "Pipeline run id (REQUIRED)")
	cmd.StringVar(&operator, "operator", "", "Operator cancelling the run")
	cmd.StringVar(&tenant, "tenant", "", "Tenant id (default GATE_TENANT_ID)")
	if err := cmd.Parse(args); err != nil {
		return 2
	}
	if runID == "" {
		_, _ = fmt.Fprintln(stderr, "Error: --run is required")
		return 2
	}
	return withServices(stderr, func(ctx context.Context, svc *Services) int {
		escs, unks, err := svc.Admission.CancelRun(ctx, tenantOr(tenant, svc), runID, operator)
		if err != nil {
			_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
			return 2
		}
		_, _ = fmt.Fprintf(stdout, "Run %s cancelled: %d escalation(s), %d unknown(s) orphaned\n", runID, escs, unks)
		return 0
	})
}

// runQueueCmd implements `plangate queue`.
func runQueueCmd(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("queue", flag.ContinueOnError)
	cmd.SetOutput(stderr)
	var (
		tenant     string
		supervisor string
		rebuild    bool
		jsonOut    bool
	)
	cmd.StringVar(&tenant, "tenant", "", "Tenant id (default GATE_TENANT_ID)")
	cmd.StringVar(&supervisor, "supervisor", "", "Show the in-review queue of this supervisor instead")
	cmd.BoolVar(&rebuild, "rebuild", false, "Rebuild the Redis queue index from the database first")
	cmd.BoolVar(&jsonOut, "json", false, "Output escalations as JSON")
	if err := cmd.Parse(args); err != nil {
		return 2
	}
	return withServices(stderr, func(ctx context.Context, svc *Services) int {
		tenantID := tenantOr(tenant, svc)
		if rebuild {
			if svc.Queue == nil {
				_, _ = fmt.Fprintln(stderr, "Error: --rebuild needs REDIS_ADDR")
				return 2
			}
			n, err := svc.Queue.Rebuild(ctx, tenantID)
			if err != nil {
				_, _ = fmt.Fprintf(stderr, "Error: rebuild queue: %v\n", err)
				return 2
			}
			svc.Logger.Info("queue index rebuilt", "tenant_id", tenantID, "count", n)
		}

		var (
			list []*contracts.Escalation
			err  error
		)
		if supervisor != "" {
			list, err = svc.Escalations.ReviewQueue(ctx, supervisor)
		} else {
			list, err = svc.Escalations.Pending(ctx, tenantID)
		}
		if err != nil {
			_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
			return 2
		}
		if jsonOut {
			if list == nil {
				list = []*contracts.Escalation{}
			}
			writeJSON(stdout, list)
			return 0
		}
		if len(list) == 0 {
			_, _ = fmt.Fprintln(stdout, "No escalations waiting.")
			return 0
		}
		for _, e := range list {
			orphan := ""
			if e.Orphaned {
				orphan = " (orphaned)"
			}
			_, _ = fmt.Fprintf(stdout, "%-7s %s  %-18s %s  %s%s\n",
				e.Priority, e.ID, e.Phase, e.CreatedAt.Format(time.RFC3339), e.Reason, orphan)
		}
		return 0
	})
}

// runStatsCmd implements `plangate stats`.
func runStatsCmd(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("stats", flag.ContinueOnError)
	cmd.SetOutput(stderr)
	var (
		tenant  string
		window  time.Duration
		jsonOut bool
	)
	cmd.StringVar(&tenant, "tenant", "", "Tenant id (default GATE_TENANT_ID)")
	cmd.DurationVar(&window, "window", 0, "Trailing window (default ESCALATION_STATS_WINDOW); negative for all time")
	cmd.BoolVar(&jsonOut, "json", false, "Output statistics as JSON")
	if err := cmd.Parse(args); err != nil {
		return 2
	}
	return withServices(stderr, func(ctx context.Context, svc *Services) int {
		if window == 0 {
			window = svc.Config.EscalationStatsWindow
		}
		stats, err := svc.Escalations.Stats(ctx, tenantOr(tenant, svc), window)
		if err != nil {
			_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
			return 2
		}
		if jsonOut {
			writeJSON(stdout, stats)
			return 0
		}
		_, _ = fmt.Fprintf(stdout, "Escalations: %d total, %d resolved\n", stats.Total, stats.Resolved)
		for _, s := range []contracts.EscalationStatus{
			contracts.EscalationStatusPending, contracts.EscalationStatusInReview,
			contracts.EscalationStatusResolved, contracts.EscalationStatusRejected,
		} {
			_, _ = fmt.Fprintf(stdout, "  %-10s %d\n", s, stats.ByStatus[s])
		}
		for _, p := range []contracts.EscalationPriority{
			contracts.EscalationPriorityUrgent, contracts.EscalationPriorityHigh,
			contracts.EscalationPriorityMedium, contracts.EscalationPriorityLow,
		} {
			_, _ = fmt.Fprintf(stdout, "  %-10s %d\n", p, stats.ByPriority[p])
		}
		_, _ = fmt.Fprintf(stdout, "Average resolution: %.1fh\n", stats.AverageResolutionHours)
		return 0
	})
}
