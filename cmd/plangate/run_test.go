package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mindburn-Labs/plangate/pkg/store"
)

const validOpportunity = `{
  "opportunities": [
    {"title": "Compliance copilot for clinics", "description": "Automates HIPAA evidence collection for small outpatient clinics.", "score": 8}
  ],
  "primaryOpportunity": {
    "title": "Compliance copilot for clinics",
    "reasoning": "Small clinics face the same audit burden as hospitals but lack compliance staff.",
    "confidence": 0.8
  },
  "marketTiming": "New federal audit rules take effect next year and raise penalties for small providers.",
  "differentiators": ["Zero-config integrations", "Clinic-specific templates"],
  "keyRisks": ["Long sales cycles", "Incumbent EHR bundling"]
}`

const lenientPolicy = `thresholds:
  block_below: 1
  require_below: 2
  optional_below: 3
`

// setupEnv isolates configuration and state in a temp dir.
func setupEnv(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	for k, v := range map[string]string{
		"DATA_DIR":              dir,
		"DATABASE_URL":          "",
		"REDIS_ADDR":            "",
		"GATE_POLICY_FILE":      "",
		"GATE_TENANT_ID":        "acme",
		"SNAPSHOT_STORAGE_TYPE": "",
		"TELEMETRY_ENABLED":     "",
		"LOG_LEVEL":             "ERROR",
	} {
		t.Setenv(k, v)
	}
	return dir
}

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func run(t *testing.T, stdin string, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := Run(append([]string{"plangate"}, args...), strings.NewReader(stdin), &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestRunUsage(t *testing.T) {
	setupEnv(t)

	code, _, stderr := run(t, "")
	assert.Equal(t, 2, code)
	assert.Contains(t, stderr, "USAGE")

	code, _, stderr = run(t, "", "frobnicate")
	assert.Equal(t, 2, code)
	assert.Contains(t, stderr, "Unknown command: frobnicate")

	code, stdout, _ := run(t, "", "help")
	assert.Equal(t, 0, code)
	assert.Contains(t, stdout, "audit-verify")

	code, stdout, _ = run(t, "", "version")
	assert.Equal(t, 0, code)
	assert.Contains(t, stdout, "plangate "+version)
}

func TestValidateCmd(t *testing.T) {
	dir := setupEnv(t)
	valid := writeFile(t, dir, "valid.json", validOpportunity)
	invalid := writeFile(t, dir, "invalid.json", `{"opportunities": []}`)

	code, stdout, _ := run(t, "", "validate", "--phase", "opportunity-discovery", "--file", valid)
	assert.Equal(t, 0, code)
	assert.Contains(t, stdout, "opportunity: artifact is valid")

	code, stdout, _ = run(t, "", "validate", "--phase", "opportunity", "--file", invalid, "--json")
	assert.Equal(t, 1, code)
	var res struct {
		Valid  bool `json:"valid"`
		Issues []struct {
			Kind string `json:"kind"`
			Path string `json:"path"`
		} `json:"issues"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &res))
	assert.False(t, res.Valid)
	assert.NotEmpty(t, res.Issues)

	fenced := "```json\n" + validOpportunity + "\n```"
	code, _, _ = run(t, fenced, "validate", "--phase", "opportunity")
	assert.Equal(t, 0, code)

	code, stdout, _ = run(t, "", "validate", "--phase", "opportunity", "--file", invalid, "--structural")
	assert.Equal(t, 1, code)
	assert.Contains(t, stdout, "primaryOpportunity")

	code, _, stderr := run(t, "", "validate", "--file", valid)
	assert.Equal(t, 2, code)
	assert.Contains(t, stderr, "--phase is required")

	code, _, _ = run(t, "", "validate", "--phase", "opportunity", "--file", filepath.Join(dir, "missing.json"))
	assert.Equal(t, 2, code)
}

func TestScoreCmd(t *testing.T) {
	dir := setupEnv(t)
	invalid := writeFile(t, dir, "invalid.json", `{"opportunities": []}`)

	code, stdout, _ := run(t, "", "score", "--phase", "opportunity", "--file", invalid, "--json")
	assert.Equal(t, 1, code)
	var score struct {
		Overall         int  `json:"overall"`
		ProductionReady bool `json:"production_ready"`
		Dimensions      []struct {
			Name string `json:"name"`
		} `json:"dimensions"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &score))
	assert.Less(t, score.Overall, 50)
	assert.False(t, score.ProductionReady)
	assert.Len(t, score.Dimensions, 5)
}

func TestEvaluateCmd(t *testing.T) {
	dir := setupEnv(t)
	valid := writeFile(t, dir, "valid.json", validOpportunity)
	invalid := writeFile(t, dir, "invalid.json", `{"opportunities": []}`)

	code, stdout, _ := run(t, "", "evaluate", "--phase", "opportunity", "--file", invalid, "--report")
	assert.Equal(t, 1, code)
	assert.Contains(t, stdout, "Quality report: opportunity")
	assert.Contains(t, stdout, "Review action: blocked")

	code, stdout, _ = run(t, "", "evaluate", "--phase", "opportunity", "--file", invalid, "--json")
	assert.Equal(t, 1, code)
	var res struct {
		ReviewAction string `json:"review_action"`
		Valid        bool   `json:"valid"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &res))
	assert.Equal(t, "blocked", res.ReviewAction)
	assert.False(t, res.Valid)

	t.Setenv("GATE_POLICY_FILE", writeFile(t, dir, "policy.yaml", lenientPolicy))
	code, stdout, _ = run(t, "", "evaluate", "--phase", "opportunity", "--file", valid)
	assert.Equal(t, 0, code)
	assert.Contains(t, stdout, "opportunity: none")

	t.Setenv("GATE_POLICY_FILE", writeFile(t, dir, "broken.yaml", "weights: [1, 2]\n"))
	code, _, stderr := run(t, "", "evaluate", "--phase", "opportunity", "--file", valid)
	assert.Equal(t, 2, code)
	assert.Contains(t, stderr, "Error:")
}

func TestBatchCmd(t *testing.T) {
	dir := setupEnv(t)
	t.Setenv("GATE_POLICY_FILE", writeFile(t, dir, "policy.yaml", lenientPolicy))

	batch := `[
		{"phase": "opportunity", "artifact": ` + validOpportunity + `},
		{"phase": "opportunity", "artifact": {"opportunities": []}}
	]`
	code, stdout, _ := run(t, batch, "batch", "--json")
	assert.Equal(t, 1, code)
	var res struct {
		Total        int `json:"total"`
		AutoApproved int `json:"auto_approved"`
		Blocked      int `json:"blocked"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &res))
	assert.Equal(t, 2, res.Total)
	assert.Equal(t, 1, res.AutoApproved)
	assert.Equal(t, 1, res.Blocked)

	code, _, stderr := run(t, `{"phase": "opportunity"}`, "batch")
	assert.Equal(t, 2, code)
	assert.Contains(t, stderr, "JSON array")
}

func TestPhasesCmd(t *testing.T) {
	setupEnv(t)
	code, stdout, _ := run(t, "", "phases", "--json")
	require.Equal(t, 0, code)
	var list []struct {
		ID              string `json:"id"`
		EvidenceBearing bool   `json:"evidence_bearing"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &list))
	require.Len(t, list, 17)
	assert.Equal(t, "intake", list[0].ID)
	assert.Equal(t, "synthesis", list[16].ID)

	code, stdout, _ = run(t, "", "phases")
	assert.Equal(t, 0, code)
	assert.Contains(t, stdout, "market-research")
	assert.Contains(t, stdout, "[evidence]")
}

func TestReviewFlow(t *testing.T) {
	dir := setupEnv(t)
	invalid := writeFile(t, dir, "invalid.json", `{"opportunities": [], "unknowns": [{"question": "Which EHR vendors expose audit APIs?", "priority": "high"}]}`)

	code, stdout, stderr := run(t, "", "admit", "--run", "run-1", "--phase", "opportunity", "--file", invalid, "--operator", "op-1", "--json")
	require.Equal(t, 1, code, stderr)
	var dec struct {
		ID             string `json:"id"`
		Outcome        string `json:"outcome"`
		SnapshotDigest string `json:"snapshot_digest"`
		Escalation     *struct {
			Priority string `json:"priority"`
		} `json:"escalation"`
		Unknowns []struct {
			Priority string `json:"priority"`
		} `json:"unknowns"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &dec))
	assert.Equal(t, "halt", dec.Outcome)
	require.NotNil(t, dec.Escalation)
	assert.Equal(t, "urgent", dec.Escalation.Priority)
	require.Len(t, dec.Unknowns, 1)
	assert.True(t, strings.HasPrefix(dec.SnapshotDigest, "sha256:"))
	assert.FileExists(t, filepath.Join(dir, "plangate.db"))

	code, _, stderr = run(t, "", "admit", "--phase", "opportunity", "--file", invalid)
	assert.Equal(t, 2, code)
	assert.Contains(t, stderr, "--run is required")

	code, stdout, _ = run(t, "", "queue", "--json")
	require.Equal(t, 0, code)
	var queue []struct {
		Priority   string `json:"priority"`
		DecisionID string `json:"decision_id"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &queue))
	require.Len(t, queue, 1)
	assert.Equal(t, dec.ID, queue[0].DecisionID)

	code, stdout, _ = run(t, "", "queue", "--tenant", "other")
	assert.Equal(t, 0, code)
	assert.Contains(t, stdout, "No escalations waiting.")

	code, _, stderr = run(t, "", "queue", "--rebuild")
	assert.Equal(t, 2, code)
	assert.Contains(t, stderr, "REDIS_ADDR")

	code, stdout, _ = run(t, "", "stats", "--json")
	require.Equal(t, 0, code)
	var stats struct {
		Total    int            `json:"total"`
		ByStatus map[string]int `json:"by_status"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &stats))
	assert.Equal(t, 1, stats.Total)
	assert.Equal(t, 1, stats.ByStatus["pending"])

	code, stdout, _ = run(t, "", "cancel-run", "--run", "run-1")
	require.Equal(t, 0, code)
	assert.Contains(t, stdout, "1 escalation(s), 1 unknown(s) orphaned")

	code, stdout, _ = run(t, "", "audit-verify", "--json")
	require.Equal(t, 0, code)
	var verify struct {
		Verified bool `json:"verified"`
		Entries  int  `json:"entries"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &verify))
	assert.True(t, verify.Verified)
	// gate.evaluated, escalation.created, unknown.created, run.orphaned
	assert.Equal(t, 4, verify.Entries)

	pack := filepath.Join(dir, "pack.zip")
	code, stdout, _ = run(t, "", "audit-export", "--out", pack)
	require.Equal(t, 0, code)
	assert.Contains(t, stdout, "SHA-256:")
	assert.FileExists(t, pack)
}

func TestAuditVerifyDetectsTampering(t *testing.T) {
	dir := setupEnv(t)
	invalid := writeFile(t, dir, "invalid.json", `{"opportunities": []}`)
	code, _, stderr := run(t, "", "admit", "--run", "run-1", "--phase", "opportunity", "--file", invalid)
	require.Equal(t, 1, code, stderr)

	ctx := context.Background()
	db, err := store.Open(ctx, "sqlite://"+filepath.Join(dir, "plangate.db"))
	require.NoError(t, err)
	_, err = db.ExecContext(ctx, `UPDATE audit_entries SET event_data = '{"action":"none"}' WHERE sequence = 1`)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	code, stdout, _ := run(t, "", "audit-verify")
	assert.Equal(t, 1, code)
	assert.Contains(t, stdout, "FAILED")

	code, _, stderr = run(t, "", "audit-export", "--out", filepath.Join(dir, "pack.zip"))
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "refusing to export")
	assert.NoFileExists(t, filepath.Join(dir, "pack.zip"))
}
