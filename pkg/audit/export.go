package audit

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Mindburn-Labs/plangate/pkg/canonicalize"
	"github.com/Mindburn-Labs/plangate/pkg/contracts"
)

var (
	// ErrInvalidTimeRange is returned when start time is after end time.
	ErrInvalidTimeRange = errors.New("audit: start_time must be before end_time")
	// ErrChainNotConfigured is returned when export is invoked without a chain.
	ErrChainNotConfigured = errors.New("audit: chain not configured (fail-closed)")
)

// ExportRequest defines what to export.
type ExportRequest struct {
	TenantID  string    `json:"tenant_id"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
}

// Manifest describes an evidence pack.
type Manifest struct {
	TenantID    string    `json:"tenant_id"`
	GeneratedAt time.Time `json:"generated_at"`
	EntryCount  int       `json:"entry_count"`
	FirstSeq    uint64    `json:"first_sequence,omitempty"`
	LastSeq     uint64    `json:"last_sequence,omitempty"`
	ChainHead   string    `json:"chain_head"`
	Verified    bool      `json:"chain_verified"`
	EntriesHash string    `json:"entries_sha256"`
	Start       time.Time `json:"period_start,omitempty"`
	End         time.Time `json:"period_end,omitempty"`
}

// Exporter builds evidence packs for reviewers and auditors.
type Exporter struct {
	chain *Chain
	clock func() time.Time
}

func NewExporter(c *Chain) *Exporter {
	return &Exporter{chain: c, clock: time.Now}
}

// GeneratePack creates a zip file containing the tenant's chain entries in
// the requested period and a manifest. The full chain is verified first; a
// broken chain fails the export. It returns the zip bytes and their hex
// SHA-256 checksum.
func (e *Exporter) GeneratePack(ctx context.Context, req ExportRequest) ([]byte, string, error) {
	if req.TenantID == "" {
		return nil, "", ErrEmptyTenantID
	}
	if !req.StartTime.IsZero() && !req.EndTime.IsZero() && req.StartTime.After(req.EndTime) {
		return nil, "", ErrInvalidTimeRange
	}
	if e.chain == nil {
		return nil, "", ErrChainNotConfigured
	}

	if _, err := e.chain.Verify(ctx, req.TenantID); err != nil {
		return nil, "", err
	}
	entries, err := e.chain.Entries(ctx, Query{TenantID: req.TenantID, Since: req.StartTime, Until: req.EndTime})
	if err != nil {
		return nil, "", err
	}

	entriesJSON, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return nil, "", err
	}

	generated := e.clock().UTC()
	manifest := Manifest{
		TenantID:    req.TenantID,
		GeneratedAt: generated,
		EntryCount:  len(entries),
		ChainHead:   contracts.GenesisHash,
		Verified:    true,
		EntriesHash: canonicalize.HashBytes(entriesJSON),
		Start:       req.StartTime,
		End:         req.EndTime,
	}
	if n := len(entries); n > 0 {
		manifest.FirstSeq = entries[0].Sequence
		manifest.LastSeq = entries[n-1].Sequence
		manifest.ChainHead = entries[n-1].CurrentHash
	}
	manifestJSON, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return nil, "", fmt.Errorf("audit: failed to marshal manifest: %w", err)
	}

	buf := new(bytes.Buffer)
	w := zip.NewWriter(buf)
	files := []struct {
		name string
		body []byte
	}{
		{"entries.json", entriesJSON},
		{"manifest.json", manifestJSON},
		{"README.txt", []byte(fmt.Sprintf(
			"Evidence pack for tenant %s\nGenerated at %s\nVerify: currentHash = sha256(previousHash + eventData + timestamp + actorId)\n",
			req.TenantID, generated.Format(time.RFC3339)))},
	}
	for _, f := range files {
		fw, err := w.CreateHeader(&zip.FileHeader{Name: f.name, Method: zip.Deflate, Modified: generated})
		if err != nil {
			return nil, "", err
		}
		if _, err := fw.Write(f.body); err != nil {
			return nil, "", err
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}

	zipBytes := buf.Bytes()
	return zipBytes, canonicalize.HashBytes(zipBytes), nil
}
