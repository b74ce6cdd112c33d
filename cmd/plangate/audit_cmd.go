package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/Mindburn-Labs/plangate/pkg/audit"
)

// runAuditVerifyCmd implements `plangate audit-verify`.
//
// Exit codes:
//
//	0 = chain intact
//	1 = chain broken
//	2 = usage or runtime error
func runAuditVerifyCmd(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("audit-verify", flag.ContinueOnError)
	cmd.SetOutput(stderr)
	var (
		tenant  string
		jsonOut bool
	)
	cmd.StringVar(&tenant, "tenant", "", "Tenant id (default GATE_TENANT_ID)")
	cmd.BoolVar(&jsonOut, "json", false, "Output result as JSON")
	if err := cmd.Parse(args); err != nil {
		return 2
	}
	return withServices(stderr, func(ctx context.Context, svc *Services) int {
		tenantID := tenantOr(tenant, svc)
		n, err := svc.Chain.Verify(ctx, tenantID)
		broken := errors.Is(err, audit.ErrChainBroken)
		if err != nil && !broken {
			_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
			return 2
		}

		if jsonOut {
			out := map[string]any{"tenant_id": tenantID, "verified": !broken, "entries": n}
			if broken {
				out["error"] = err.Error()
			}
			writeJSON(stdout, out)
		} else if broken {
			_, _ = fmt.Fprintf(stdout, "❌ Audit chain verification FAILED\n")
			_, _ = fmt.Fprintf(stdout, "Tenant: %s\n", tenantID)
			_, _ = fmt.Fprintf(stdout, "  - %v\n", err)
		} else {
			_, _ = fmt.Fprintf(stdout, "✅ Audit chain verification PASSED\n")
			_, _ = fmt.Fprintf(stdout, "Tenant: %s\n", tenantID)
			_, _ = fmt.Fprintf(stdout, "Entries: %d\n", n)
		}
		if broken {
			return 1
		}
		return 0
	})
}

// runAuditExportCmd implements `plangate audit-export`.
//
// Exit codes:
//
//	0 = pack written
//	1 = chain broken, nothing written
//	2 = usage or runtime error
func runAuditExportCmd(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("audit-export", flag.ContinueOnError)
	cmd.SetOutput(stderr)
	var (
		tenant   string
		outPath  string
		since    string
		until    string
		jsonOut  bool
		parseErr error
	)
	cmd.StringVar(&tenant, "tenant", "", "Tenant id (default GATE_TENANT_ID)")
	cmd.StringVar(&outPath, "out", "", "Output path for the zip pack (REQUIRED)")
	cmd.StringVar(&since, "since", "", "Only entries at or after this RFC 3339 time")
	cmd.StringVar(&until, "until", "", "Only entries at or before this RFC 3339 time")
	cmd.BoolVar(&jsonOut, "json", false, "Output result as JSON")
	if err := cmd.Parse(args); err != nil {
		return 2
	}
	if outPath == "" {
		_, _ = fmt.Fprintln(stderr, "Error: --out is required")
		return 2
	}
	parse := func(s string) time.Time {
		if s == "" || parseErr != nil {
			return time.Time{}
		}
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			parseErr = err
		}
		return t
	}
	req := audit.ExportRequest{StartTime: parse(since), EndTime: parse(until)}
	if parseErr != nil {
		_, _ = fmt.Fprintf(stderr, "Error: invalid time: %v\n", parseErr)
		return 2
	}

	return withServices(stderr, func(ctx context.Context, svc *Services) int {
		req.TenantID = tenantOr(tenant, svc)
		pack, sum, err := audit.NewExporter(svc.Chain).GeneratePack(ctx, req)
		if errors.Is(err, audit.ErrChainBroken) {
			_, _ = fmt.Fprintf(stderr, "Error: refusing to export: %v\n", err)
			return 1
		}
		if err != nil {
			_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
			return 2
		}
		if err := os.WriteFile(outPath, pack, 0o600); err != nil {
			_, _ = fmt.Fprintf(stderr, "Error: cannot write pack: %v\n", err)
			return 2
		}
		if jsonOut {
			writeJSON(stdout, map[string]any{"tenant_id": req.TenantID, "path": outPath, "sha256": sum, "bytes": len(pack)})
		} else {
			_, _ = fmt.Fprintf(stdout, "Evidence pack written to %s\n", outPath)
			_, _ = fmt.Fprintf(stdout, "SHA-256: %s\n", sum)
		}
		return 0
	})
}
