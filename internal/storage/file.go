package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/jtuchinsky/finance-planner-cli/internal/core/domain"
)

// File permissions for the session file and its directory.
const (
	DirMode  os.FileMode = 0o700
	FileMode os.FileMode = 0o600

	tempSuffix = ".tmp"
)

// legacyTimeLayouts are accepted for expires_at in files written before
// timestamps carried a zone. They are interpreted in local time.
var legacyTimeLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
}

// fileDocument is the on-disk layout of the session file.
type fileDocument struct {
	CurrentUser       *string               `json:"current_user"`
	CurrentTenantID   *int64                `json:"current_tenant_id"`
	Tokens            map[string]fileRecord `json:"tokens"`
	TenantPreferences map[string]int64      `json:"tenant_preferences"`
}

type fileRecord struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresAt    string `json:"expires_at"`
	TenantID     *int64 `json:"tenant_id"`
}

// FileStore persists a SessionFile as a single JSON document.
//
// Writes replace the file atomically. There is no locking; concurrent
// writers from separate processes resolve as last writer wins.
type FileStore struct {
	path string
}

// NewFileStore creates a store backed by the file at path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the location of the session file.
func (s *FileStore) Path() string {
	return s.path
}

// Load reads the session file.
//
// A missing file yields an empty document. Content that cannot be decoded
// is treated the same way; the next Save overwrites it. Other I/O errors
// are returned unchanged.
func (s *FileStore) Load() (*domain.SessionFile, *domain.SchemaGaps, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return domain.NewSessionFile(), &domain.SchemaGaps{}, nil
	}
	if err != nil {
		return nil, nil, err
	}

	file, gaps, err := decodeDocument(data)
	if err != nil {
		return domain.NewSessionFile(), &domain.SchemaGaps{}, nil
	}
	return file, gaps, nil
}

// Save writes f to disk through a temp file and rename.
func (s *FileStore) Save(f *domain.SessionFile) error {
	data, err := encodeDocument(f)
	if err != nil {
		return fmt.Errorf("storage: encode session file: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, DirMode); err != nil {
		return fmt.Errorf("storage: create directory: %w", err)
	}

	// Each writer gets its own temp file so concurrent saves never
	// rename each other's data away; the final rename decides the winner.
	file, err := os.CreateTemp(dir, filepath.Base(s.path)+".*"+tempSuffix)
	if err != nil {
		return fmt.Errorf("storage: create temp file: %w", err)
	}
	tempPath := file.Name()

	if _, err := file.Write(data); err != nil {
		file.Close()
		os.Remove(tempPath)
		return fmt.Errorf("storage: write: %w", err)
	}
	if err := file.Chmod(FileMode); err != nil {
		file.Close()
		os.Remove(tempPath)
		return fmt.Errorf("storage: chmod: %w", err)
	}
	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(tempPath)
		return fmt.Errorf("storage: sync: %w", err)
	}
	if err := file.Close(); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("storage: close: %w", err)
	}

	if err := os.Rename(tempPath, s.path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("storage: rename: %w", err)
	}
	return nil
}

func decodeDocument(data []byte) (*domain.SessionFile, *domain.SchemaGaps, error) {
	var doc fileDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, nil, err
	}

	// Key presence is what distinguishes an old file from a migrated one.
	var top map[string]json.RawMessage
	if err := json.Unmarshal(data, &top); err != nil {
		return nil, nil, err
	}
	gaps := &domain.SchemaGaps{}
	if _, ok := top["tenant_preferences"]; !ok {
		gaps.TenantPreferences = true
	}
	if _, ok := top["current_tenant_id"]; !ok {
		gaps.CurrentTenantID = true
	}

	var rawRecords map[string]map[string]json.RawMessage
	if raw, ok := top["tokens"]; ok {
		if err := json.Unmarshal(raw, &rawRecords); err != nil {
			return nil, nil, err
		}
	}

	file := domain.NewSessionFile()
	if doc.CurrentUser != nil {
		file.CurrentUser = *doc.CurrentUser
	}
	file.CurrentTenantID = doc.CurrentTenantID
	for email, tenantID := range doc.TenantPreferences {
		file.TenantPreferences[email] = tenantID
	}

	for email, rec := range doc.Tokens {
		expiresAt, err := parseExpiresAt(rec.ExpiresAt)
		if err != nil {
			return nil, nil, fmt.Errorf("record %q: %w", email, err)
		}
		file.Credentials[email] = &domain.CredentialRecord{
			AccessToken:  rec.AccessToken,
			RefreshToken: rec.RefreshToken,
			ExpiresAt:    expiresAt,
			TenantID:     rec.TenantID,
		}
		if _, ok := rawRecords[email]["tenant_id"]; !ok {
			gaps.RecordTenantID = append(gaps.RecordTenantID, email)
		}
	}

	return file, gaps, nil
}

func encodeDocument(f *domain.SessionFile) ([]byte, error) {
	doc := fileDocument{
		CurrentTenantID:   f.CurrentTenantID,
		Tokens:            make(map[string]fileRecord, len(f.Credentials)),
		TenantPreferences: make(map[string]int64, len(f.TenantPreferences)),
	}
	if f.CurrentUser != "" {
		user := f.CurrentUser
		doc.CurrentUser = &user
	}
	for email, rec := range f.Credentials {
		doc.Tokens[email] = fileRecord{
			AccessToken:  rec.AccessToken,
			RefreshToken: rec.RefreshToken,
			ExpiresAt:    rec.ExpiresAt.UTC().Format(time.RFC3339Nano),
			TenantID:     rec.TenantID,
		}
	}
	for email, tenantID := range f.TenantPreferences {
		doc.TenantPreferences[email] = tenantID
	}
	return json.MarshalIndent(doc, "", "  ")
}

func parseExpiresAt(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.UTC(), nil
	}
	for _, layout := range legacyTimeLayouts {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid expires_at %q", s)
}
