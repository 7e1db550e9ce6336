package services

import (
	"context"
	"crm_advocacia_go/services/judicial"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"
)

// ErrArchiveUnavailable is returned when no storage backend is configured
var ErrArchiveUnavailable = errors.New("snapshot storage not configured")

// Snapshot is the archived form of one scraped card
type Snapshot struct {
	PractitionerID string                `json:"advogado_id"`
	CollectedAt    time.Time             `json:"coletado_em"`
	Card           judicial.RawIntimacao `json:"intimacao"`
}

// IntimacaoArchive keeps the raw card behind every stored intimação so the
// practitioner can see exactly what the portal published
type IntimacaoArchive struct {
	Storage SnapshotStore
	Now     func() time.Time
}

func NewIntimacaoArchive(storage SnapshotStore) *IntimacaoArchive {
	return &IntimacaoArchive{Storage: storage, Now: time.Now}
}

// Save writes the snapshot and returns its storage key
func (a *IntimacaoArchive) Save(ctx context.Context, practitionerID string, raw judicial.RawIntimacao) (string, error) {
	if a == nil || a.Storage == nil || !a.Storage.IsConfigured() {
		return "", ErrArchiveUnavailable
	}

	now := a.Now()
	body, err := json.MarshalIndent(Snapshot{
		PractitionerID: practitionerID,
		CollectedAt:    now.UTC(),
		Card:           raw,
	}, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode snapshot: %w", err)
	}

	key := GenerateSnapshotKey(practitionerID, raw.ProcessNumber, now)
	if err := a.Storage.Put(ctx, key, body, "application/json"); err != nil {
		return "", fmt.Errorf("failed to archive snapshot: %w", err)
	}
	return key, nil
}

// Load reads an archived snapshot back
func (a *IntimacaoArchive) Load(ctx context.Context, key string) (*Snapshot, error) {
	if a == nil || a.Storage == nil || !a.Storage.IsConfigured() {
		return nil, ErrArchiveUnavailable
	}

	body, err := a.Storage.Get(ctx, key)
	if err != nil {
		return nil, err
	}

	var snap Snapshot
	if err := json.Unmarshal(body, &snap); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot %s: %w", key, err)
	}
	return &snap, nil
}

// History lists the archived versions of one intimação, oldest first.
// A version is the UTC collection timestamp that names the snapshot.
func (a *IntimacaoArchive) History(ctx context.Context, practitionerID, processNumber string) ([]string, error) {
	if a == nil || a.Storage == nil || !a.Storage.IsConfigured() {
		return nil, ErrArchiveUnavailable
	}

	keys, err := a.Storage.List(ctx, SnapshotPrefix(practitionerID, processNumber))
	if err != nil {
		return nil, err
	}

	versions := make([]string, 0, len(keys))
	for _, key := range keys {
		name := path.Base(key)
		if !strings.HasSuffix(name, ".json") {
			continue
		}
		versions = append(versions, strings.TrimSuffix(name, ".json"))
	}
	return versions, nil
}

// LoadVersion reads one archived version returned by History
func (a *IntimacaoArchive) LoadVersion(ctx context.Context, practitionerID, processNumber, version string) (*Snapshot, error) {
	if _, err := time.Parse(snapshotVersionLayout, version); err != nil {
		return nil, ErrSnapshotNotFound
	}
	return a.Load(ctx, SnapshotPrefix(practitionerID, processNumber)+version+".json")
}
