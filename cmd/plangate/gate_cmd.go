package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/Mindburn-Labs/plangate/pkg/contracts"
	"github.com/Mindburn-Labs/plangate/pkg/evaluator"
)

// artifactFlags are shared by the commands that read a single artifact.
type artifactFlags struct {
	phase     string
	file      string
	citations string
	consensus float64
	jsonOut   bool
}

func (f *artifactFlags) register(cmd *flag.FlagSet) {
	cmd.StringVar(&f.phase, "phase", "", "Phase id or legacy alias (REQUIRED)")
	cmd.StringVar(&f.file, "file", "-", "Artifact JSON file, - for stdin")
	cmd.StringVar(&f.citations, "citations", "", "JSON file with a citation array (default: citations in the artifact)")
	cmd.Float64Var(&f.consensus, "consensus", -1, "Consensus score in [0,1]; negative when only one generator ran")
	cmd.BoolVar(&f.jsonOut, "json", false, "Output result as JSON")
}

// context reads the artifact and citations named by the flags.
func (f *artifactFlags) context(stdin io.Reader) (evaluator.Context, error) {
	ctx := evaluator.Context{Phase: f.phase}
	raw, err := readInput(f.file, stdin)
	if err != nil {
		return ctx, err
	}
	ctx.Artifact = raw
	if f.consensus >= 0 {
		v := f.consensus
		ctx.Orchestration = &contracts.Orchestration{ConsensusScore: &v}
	}
	if f.citations != "" {
		data, err := os.ReadFile(f.citations)
		if err != nil {
			return ctx, fmt.Errorf("read citations: %w", err)
		}
		ctx.Citations = []contracts.Citation{}
		if err := json.Unmarshal(data, &ctx.Citations); err != nil {
			return ctx, fmt.Errorf("parse citations: %w", err)
		}
	}
	return ctx, nil
}

// readInput returns raw bytes; decoding is left to the validator so fenced
// model output is accepted as is.
func readInput(path string, stdin io.Reader) ([]byte, error) {
	if path == "" || path == "-" {
		return io.ReadAll(stdin)
	}
	return os.ReadFile(path)
}

func writeJSON(w io.Writer, v any) {
	data, _ := json.MarshalIndent(v, "", "  ")
	_, _ = fmt.Fprintln(w, string(data))
}

func parseArtifactCmd(name string, args []string, stderr io.Writer, extra func(*flag.FlagSet)) (*artifactFlags, bool) {
	cmd := flag.NewFlagSet(name, flag.ContinueOnError)
	cmd.SetOutput(stderr)
	f := &artifactFlags{}
	f.register(cmd)
	if extra != nil {
		extra(cmd)
	}
	if err := cmd.Parse(args); err != nil {
		return nil, false
	}
	if f.phase == "" {
		_, _ = fmt.Fprintln(stderr, "Error: --phase is required")
		return nil, false
	}
	return f, true
}

// runValidateCmd implements `plangate validate`.
//
// Exit codes:
//
//	0 = artifact satisfies its contract
//	1 = validation or grounding issues
//	2 = usage or runtime error
func runValidateCmd(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	var structural bool
	f, ok := parseArtifactCmd("validate", args, stderr, func(cmd *flag.FlagSet) {
		cmd.BoolVar(&structural, "structural", false, "Only check required top-level fields")
	})
	if !ok {
		return 2
	}
	env, err := loadGate(stderr)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	raw, err := readInput(f.file, stdin)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}

	if structural {
		res := env.Gate.Validator.StructuralCheck(f.phase, raw)
		if f.jsonOut {
			writeJSON(stdout, res)
		} else if res.Valid {
			_, _ = fmt.Fprintf(stdout, "%s✅ %s: required fields present%s\n", ColorGreen, res.Phase, ColorReset)
		} else {
			_, _ = fmt.Fprintf(stdout, "%s❌ %s: missing fields%s\n", ColorRed, f.phase, ColorReset)
			for _, m := range res.MissingFields {
				_, _ = fmt.Fprintf(stdout, "  - %s\n", m)
			}
			for _, i := range res.Issues {
				_, _ = fmt.Fprintf(stdout, "  - %s\n", i)
			}
		}
		if !res.Valid {
			return 1
		}
		return 0
	}

	res := env.Gate.Validator.Validate(f.phase, raw)
	if f.jsonOut {
		res.Data = nil
		writeJSON(stdout, res)
	} else if res.Valid {
		_, _ = fmt.Fprintf(stdout, "%s✅ %s: artifact is valid%s\n", ColorGreen, res.Phase, ColorReset)
	} else {
		_, _ = fmt.Fprintf(stdout, "%s❌ %s: %d issue(s)%s\n", ColorRed, f.phase, len(res.Issues), ColorReset)
		for _, i := range res.Issues {
			_, _ = fmt.Fprintf(stdout, "  - [%s] %s\n", i.Kind, i)
		}
	}
	if !res.Valid {
		return 1
	}
	return 0
}

// runScoreCmd implements `plangate score`.
//
// Exit codes:
//
//	0 = production-ready
//	1 = below the production-ready threshold
//	2 = usage or runtime error
func runScoreCmd(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	f, ok := parseArtifactCmd("score", args, stderr, nil)
	if !ok {
		return 2
	}
	env, err := loadGate(stderr)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	ctx, err := f.context(stdin)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}

	score := env.Gate.Scorer.Score(ctx)
	if f.jsonOut {
		writeJSON(stdout, score)
	} else {
		_, _ = fmt.Fprintf(stdout, "%s: %d/100 (%s)\n", score.Phase, score.Overall, score.Tier)
		for _, d := range score.Dimensions {
			_, _ = fmt.Fprintf(stdout, "  %-18s %5.2f  %s\n", d.Name, d.Score, d.Feedback)
		}
	}
	if !score.ProductionReady {
		return 1
	}
	return 0
}

// runEvaluateCmd implements `plangate evaluate`.
//
// Exit codes:
//
//	0 = no review or optional review
//	1 = review required or blocked
//	2 = usage or runtime error
func runEvaluateCmd(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	var report bool
	f, ok := parseArtifactCmd("evaluate", args, stderr, func(cmd *flag.FlagSet) {
		cmd.BoolVar(&report, "report", false, "Print the reviewer report")
	})
	if !ok {
		return 2
	}
	env, err := loadGate(stderr)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	ctx, err := f.context(stdin)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}

	res := env.Gate.Evaluator.Evaluate(ctx)
	switch {
	case f.jsonOut:
		writeJSON(stdout, res)
	case report:
		_, _ = fmt.Fprint(stdout, evaluator.GenerateReport(res))
	default:
		_, _ = fmt.Fprintf(stdout, "%s: %s (score %d, %s)\n", res.Phase, res.ReviewAction, res.Score.Overall, res.Score.Tier)
		for _, r := range res.Reasons {
			_, _ = fmt.Fprintf(stdout, "  - %s\n", r)
		}
	}
	if res.ReviewAction.AtLeast(contracts.ReviewRequired) {
		return 1
	}
	return 0
}

// batchItem is one entry of a batch file.
type batchItem struct {
	Phase         string                   `json:"phase"`
	Artifact      json.RawMessage          `json:"artifact"`
	Orchestration *contracts.Orchestration `json:"orchestration,omitempty"`
	Citations     []contracts.Citation     `json:"citations,omitempty"`
}

// runBatchCmd implements `plangate batch`.
//
// Exit codes:
//
//	0 = nothing blocked or flagged for required review
//	1 = at least one artifact needs review or is blocked
//	2 = usage or runtime error
func runBatchCmd(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("batch", flag.ContinueOnError)
	cmd.SetOutput(stderr)
	var (
		file    string
		jsonOut bool
	)
	cmd.StringVar(&file, "file", "-", "JSON array of {phase, artifact, orchestration, citations}, - for stdin")
	cmd.BoolVar(&jsonOut, "json", false, "Output results as JSON")
	if err := cmd.Parse(args); err != nil {
		return 2
	}
	env, err := loadGate(stderr)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	data, err := readInput(file, stdin)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	var items []batchItem
	if err := json.Unmarshal(data, &items); err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: batch file must be a JSON array: %v\n", err)
		return 2
	}

	ctxs := make([]evaluator.Context, len(items))
	for i, it := range items {
		ctxs[i] = evaluator.Context{
			Phase:         it.Phase,
			Artifact:      []byte(it.Artifact),
			Orchestration: it.Orchestration,
			Citations:     it.Citations,
		}
	}
	res := env.Gate.Evaluator.EvaluateBatch(ctxs)

	gated := false
	for _, r := range res.Results {
		if r.ReviewAction.AtLeast(contracts.ReviewRequired) {
			gated = true
		}
	}
	if jsonOut {
		writeJSON(stdout, res)
	} else {
		_, _ = fmt.Fprintf(stdout, "Total: %d  auto-approved: %d  blocked: %d  flagged: %d\n",
			res.Total, res.AutoApproved, res.Blocked, res.FlaggedForReview)
		for i, r := range res.Results {
			_, _ = fmt.Fprintf(stdout, "  %3d  %-20s %-9s %3d\n", i, r.Phase, r.ReviewAction, r.Score.Overall)
		}
	}
	if gated {
		return 1
	}
	return 0
}

// runPhasesCmd implements `plangate phases`.
func runPhasesCmd(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("phases", flag.ContinueOnError)
	cmd.SetOutput(stderr)
	var jsonOut bool
	cmd.BoolVar(&jsonOut, "json", false, "Output phases as JSON")
	if err := cmd.Parse(args); err != nil {
		return 2
	}
	env, err := loadGate(stderr)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}

	type phaseInfo struct {
		ID              string   `json:"id"`
		Title           string   `json:"title"`
		Version         string   `json:"version"`
		EvidenceBearing bool     `json:"evidence_bearing"`
		Aliases         []string `json:"aliases,omitempty"`
		Required        []string `json:"required_fields"`
	}
	var out []phaseInfo
	for _, id := range env.Gate.Registry.List() {
		c, err := env.Gate.Registry.Contract(id)
		if err != nil {
			_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
			return 2
		}
		out = append(out, phaseInfo{
			ID:              c.ID,
			Title:           c.Title,
			Version:         c.Version.String(),
			EvidenceBearing: c.EvidenceBearing,
			Aliases:         c.Aliases,
			Required:        c.RequiredFields,
		})
	}

	if jsonOut {
		writeJSON(stdout, out)
		return 0
	}
	for i, p := range out {
		marker := ""
		if p.EvidenceBearing {
			marker = " [evidence]"
		}
		_, _ = fmt.Fprintf(stdout, "%2d. %-18s v%-7s %s%s\n", i+1, p.ID, p.Version, p.Title, marker)
	}
	return 0
}
