package leadstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/charlesng35/waitlist/internal/models"
)

const (
	// CSVHeader is the first line of every leads file.
	CSVHeader = "ts,role,useCase,challenge,count,email,company,meta,ua,ip\n"
	// ReferralCSVHeader is the first line of the referral file.
	ReferralCSVHeader = "emailHash,referralSource,updatedAt\n"

	referralFileName = "lead_referrals.csv"
	csvTimeLayout    = "2006-01-02T15:04:05.000Z07:00"
)

// CSVStore appends leads to a local file. It keeps no index, so the cap is not enforced
// and the limit argument of CreateLead is ignored.
type CSVStore struct {
	mu           sync.Mutex
	path         string
	referralPath string
}

// NewCSVStore prepares the directory holding path. Referral updates are written to
// lead_referrals.csv next to it.
func NewCSVStore(path string) (*CSVStore, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("leadstore: csv path is required")
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("leadstore: create csv directory: %w", err)
	}
	return &CSVStore{
		path:         path,
		referralPath: filepath.Join(dir, referralFileName),
	}, nil
}

// Path reports the leads file location.
func (s *CSVStore) Path() string { return s.path }

// CreateLead appends one quoted row, writing the header first when the file is new.
func (s *CSVStore) CreateLead(ctx context.Context, lead *models.Lead, _ int) error {
	if lead == nil {
		return errors.New("leadstore: lead is required")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	defer observe(BackendCSV, "create_lead", time.Now())

	meta := map[string]any(lead.Meta)
	if meta == nil {
		meta = map[string]any{}
	}
	metaJSON, err := encodeMeta(meta)
	if err != nil {
		return fmt.Errorf("leadstore: encode meta: %w", err)
	}

	row := csvRow(
		lead.SubmittedAt.UTC().Format(csvTimeLayout),
		lead.Role,
		lead.UseCase,
		lead.Challenge,
		lead.Count,
		lead.Email,
		lead.Company,
		metaJSON,
		lead.UserAgent,
		lead.IP,
	)

	s.mu.Lock()
	defer s.mu.Unlock()
	return appendRow(s.path, CSVHeader, row)
}

// UpsertReferral appends the latest referral source; readers take the last row per hash.
func (s *CSVStore) UpsertReferral(ctx context.Context, ref *models.LeadReferral) error {
	if ref == nil || ref.EmailHash == "" {
		return errors.New("leadstore: referral email hash is required")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	defer observe(BackendCSV, "upsert_referral", time.Now())

	row := csvRow(ref.EmailHash, ref.ReferralSource, ref.UpdatedAt.UTC().Format(csvTimeLayout))

	s.mu.Lock()
	defer s.mu.Unlock()
	return appendRow(s.referralPath, ReferralCSVHeader, row)
}

func appendRow(path, header, row string) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("leadstore: open %s: %w", filepath.Base(path), err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("leadstore: stat %s: %w", filepath.Base(path), err)
	}
	if info.Size() == 0 {
		row = header + row
	}
	if _, err := f.WriteString(row); err != nil {
		return fmt.Errorf("leadstore: append %s: %w", filepath.Base(path), err)
	}
	return nil
}

func encodeMeta(meta map[string]any) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(meta); err != nil {
		return "", err
	}
	return strings.TrimSuffix(buf.String(), "\n"), nil
}

// csvRow quotes every field unconditionally; encoding/csv only quotes when needed.
func csvRow(fields ...string) string {
	var b strings.Builder
	for i, field := range fields {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteByte('"')
		b.WriteString(strings.ReplaceAll(field, `"`, `""`))
		b.WriteByte('"')
	}
	b.WriteByte('\n')
	return b.String()
}

// Ping verifies the leads directory still exists.
func (s *CSVStore) Ping(context.Context) error {
	info, err := os.Stat(filepath.Dir(s.path))
	if err != nil {
		return fmt.Errorf("leadstore: csv directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("leadstore: %s is not a directory", filepath.Dir(s.path))
	}
	return nil
}
