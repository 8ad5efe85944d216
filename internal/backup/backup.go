// Package backup implements spec.md §4.9: point-in-time snapshots of a
// space under _backups/{space}/{ts}/, restorable into a fresh space and
// downloadable as a gzip-tar archive.
package backup

import (
	"archive/tar"
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/segmentio/ksuid"

	"github.com/chrlesur/live-memory/internal/objectstore"
	"github.com/chrlesur/live-memory/pkg/logger"
)

const backupsRoot = "_backups/"

// timestampLayout produces a sortable, filename-safe UTC timestamp (no
// colons), matching the live note filename convention used elsewhere.
const timestampLayout = "20060102T150405"

// Entry is one backup_list() row.
type Entry struct {
	BackupID  string
	SpaceID   string
	Timestamp string
}

// Service implements the backup operations over a Store.
type Service struct {
	store objectstore.Store
}

// NewService builds a Service over store.
func NewService(store objectstore.Store) *Service {
	return &Service{store: store}
}

func backupPrefix(spaceID, ts string) string {
	return backupsRoot + spaceID + "/" + ts + "/"
}

func manifestKey(spaceID, ts string) string {
	return backupPrefix(spaceID, ts) + "_manifest.json"
}

type manifest struct {
	SpaceID     string    `json:"space_id"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
	ObjectCount int       `json:"object_count"`
}

// Create lists every object under {space}/, copies each into
// _backups/{space}/{ts}/{relative}, and writes a small manifest recording
// the description and object count. Returns the backup_id ("{space}/{ts}").
func (s *Service) Create(ctx context.Context, spaceID, description string) (string, error) {
	exists, err := s.store.Exists(ctx, spaceID+"/_meta.json")
	if err != nil {
		return "", err
	}
	if !exists {
		return "", fmt.Errorf("backup: space %q not found", spaceID)
	}

	objs, err := s.store.ListObjects(ctx, spaceID+"/", 0)
	if err != nil {
		return "", err
	}

	// The ksuid suffix disambiguates two backups of the same space taken
	// within the same second, which the timestamp alone cannot.
	ts := time.Now().UTC().Format(timestampLayout) + "-" + ksuid.New().String()
	prefix := backupPrefix(spaceID, ts)
	spacePrefix := spaceID + "/"

	count := 0
	for _, o := range objs {
		relative := strings.TrimPrefix(o.Key, spacePrefix)
		if err := s.store.Copy(ctx, o.Key, prefix+relative); err != nil {
			return "", fmt.Errorf("backup: copy %s: %w", o.Key, err)
		}
		count++
	}

	m := manifest{SpaceID: spaceID, Description: description, CreatedAt: time.Now().UTC(), ObjectCount: count}
	if err := s.store.PutJSON(ctx, manifestKey(spaceID, ts), m); err != nil {
		return "", err
	}

	backupID := spaceID + "/" + ts
	logger.FromContext(ctx).Info("backup created", "backup_id", backupID, "objects", count)
	return backupID, nil
}

// List enumerates backups, optionally scoped to one space.
func (s *Service) List(ctx context.Context, spaceID string) ([]Entry, error) {
	if spaceID != "" {
		return s.listForSpace(ctx, spaceID)
	}

	spacePrefixes, err := s.store.ListPrefixes(ctx, backupsRoot, "/")
	if err != nil {
		return nil, err
	}
	var out []Entry
	for _, sp := range spacePrefixes {
		sid := strings.TrimSuffix(strings.TrimPrefix(sp, backupsRoot), "/")
		entries, err := s.listForSpace(ctx, sid)
		if err != nil {
			return nil, err
		}
		out = append(out, entries...)
	}
	return out, nil
}

func (s *Service) listForSpace(ctx context.Context, spaceID string) ([]Entry, error) {
	prefixes, err := s.store.ListPrefixes(ctx, backupsRoot+spaceID+"/", "/")
	if err != nil {
		return nil, err
	}
	out := make([]Entry, 0, len(prefixes))
	for _, p := range prefixes {
		ts := strings.TrimSuffix(strings.TrimPrefix(p, backupsRoot+spaceID+"/"), "/")
		out = append(out, Entry{BackupID: spaceID + "/" + ts, SpaceID: spaceID, Timestamp: ts})
	}
	return out, nil
}

// splitBackupID splits "{space}/{ts}" into its parts.
func splitBackupID(backupID string) (spaceID, ts string, err error) {
	idx := strings.LastIndex(backupID, "/")
	if idx <= 0 || idx == len(backupID)-1 {
		return "", "", fmt.Errorf("backup: malformed backup id %q", backupID)
	}
	return backupID[:idx], backupID[idx+1:], nil
}

// Restore copies every object from the backup back into a space with the
// same id. Fails if that space already exists; no merge/idempotence is
// attempted, per spec.md §4.9.
func (s *Service) Restore(ctx context.Context, backupID string) error {
	spaceID, ts, err := splitBackupID(backupID)
	if err != nil {
		return err
	}

	exists, err := s.store.Exists(ctx, spaceID+"/_meta.json")
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("backup: target space %q already exists", spaceID)
	}

	prefix := backupPrefix(spaceID, ts)
	objs, err := s.store.ListObjects(ctx, prefix, 0)
	if err != nil {
		return err
	}
	if len(objs) == 0 {
		return fmt.Errorf("backup: %q not found", backupID)
	}

	for _, o := range objs {
		relative := strings.TrimPrefix(o.Key, prefix)
		if relative == "_manifest.json" {
			continue
		}
		if err := s.store.Copy(ctx, o.Key, spaceID+"/"+relative); err != nil {
			return fmt.Errorf("backup: restore copy %s: %w", o.Key, err)
		}
	}

	logger.FromContext(ctx).Info("backup restored", "backup_id", backupID, "objects", len(objs))
	return nil
}

// Download returns a gzip-tar archive of every object in the backup,
// suitable for base64-encoding into an inline tool response.
func (s *Service) Download(ctx context.Context, backupID string) ([]byte, error) {
	spaceID, ts, err := splitBackupID(backupID)
	if err != nil {
		return nil, err
	}
	prefix := backupPrefix(spaceID, ts)

	fetched, err := s.store.ListAndGet(ctx, prefix, false)
	if err != nil {
		return nil, err
	}
	if len(fetched) == 0 {
		return nil, fmt.Errorf("backup: %q not found", backupID)
	}

	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)
	for _, f := range fetched {
		relative := strings.TrimPrefix(f.Key, prefix)
		hdr := &tar.Header{
			Name:    relative,
			Size:    int64(len(f.Content)),
			Mode:    0o644,
			ModTime: f.Modified,
		}
		if err := tw.WriteHeader(hdr); err != nil {
			return nil, fmt.Errorf("backup: tar header %s: %w", f.Key, err)
		}
		if _, err := tw.Write(f.Content); err != nil {
			return nil, fmt.Errorf("backup: tar body %s: %w", f.Key, err)
		}
	}
	if err := tw.Close(); err != nil {
		return nil, fmt.Errorf("backup: close tar: %w", err)
	}
	if err := gz.Close(); err != nil {
		return nil, fmt.Errorf("backup: close gzip: %w", err)
	}
	return buf.Bytes(), nil
}

// Delete removes every object under the backup's prefix.
func (s *Service) Delete(ctx context.Context, backupID string) (int, error) {
	spaceID, ts, err := splitBackupID(backupID)
	if err != nil {
		return 0, err
	}
	prefix := backupPrefix(spaceID, ts)

	objs, err := s.store.ListObjects(ctx, prefix, 0)
	if err != nil {
		return 0, err
	}
	keys := make([]string, 0, len(objs))
	for _, o := range objs {
		keys = append(keys, o.Key)
	}
	n, err := s.store.DeleteMany(ctx, keys)
	if err != nil {
		return n, err
	}
	logger.FromContext(ctx).Info("backup deleted", "backup_id", backupID, "objects_deleted", n)
	return n, nil
}
