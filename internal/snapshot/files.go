package snapshot

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/mmynk/billbook/internal/models"
)

// DefaultKeep is how many backup files a Dir retains by default.
const DefaultKeep = 5

const (
	backupPrefix = "backup-"
	backupSuffix = ".json"
	// Fixed width so lexical order is chronological.
	backupStamp = "2006-01-02T15-04-05.000000000Z"
)

// BackupInfo describes one backup file.
type BackupInfo struct {
	Name      string
	Path      string
	Size      int64
	CreatedAt time.Time
}

// Dir is a directory of backup envelopes.
type Dir struct {
	path   string
	keep   int
	now    func() time.Time
	logger *slog.Logger
}

// DirOption configures a Dir.
type DirOption func(*Dir)

// WithKeep sets how many backups survive pruning.
func WithKeep(n int) DirOption {
	return func(d *Dir) { d.keep = n }
}

// WithDirClock overrides the time source used to name backup files.
func WithDirClock(now func() time.Time) DirOption {
	return func(d *Dir) { d.now = now }
}

// WithDirLogger sets the logger.
func WithDirLogger(logger *slog.Logger) DirOption {
	return func(d *Dir) { d.logger = logger }
}

// NewDir returns a Dir rooted at path. The directory is created on first
// write.
func NewDir(path string, opts ...DirOption) *Dir {
	d := &Dir{
		path:   path,
		keep:   DefaultKeep,
		now:    time.Now,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.keep < 1 {
		d.keep = 1
	}
	return d
}

// Path returns the directory path.
func (d *Dir) Path() string {
	return d.path
}

// WriteBackup stores env as a new backup file and prunes old ones. The
// file is written to a temporary name and renamed into place.
func (d *Dir) WriteBackup(ctx context.Context, env *Envelope) (BackupInfo, error) {
	if err := ctx.Err(); err != nil {
		return BackupInfo{}, err
	}
	if err := os.MkdirAll(d.path, 0o755); err != nil {
		return BackupInfo{}, fmt.Errorf("failed to create backup dir: %w", err)
	}
	data, err := json.MarshalIndent(env, "", "  ")
	if err != nil {
		return BackupInfo{}, fmt.Errorf("failed to encode backup: %w", err)
	}

	created := d.now().UTC()
	name := backupPrefix + created.Format(backupStamp) + backupSuffix
	path := filepath.Join(d.path, name)
	temp := path + ".tmp"
	if err := os.WriteFile(temp, data, 0o600); err != nil {
		return BackupInfo{}, fmt.Errorf("failed to write backup: %w", err)
	}
	if err := os.Rename(temp, path); err != nil {
		_ = os.Remove(temp)
		return BackupInfo{}, fmt.Errorf("failed to move backup into place: %w", err)
	}
	d.logger.Info("Backup written", "path", path, "bytes", len(data))

	if err := d.prune(); err != nil {
		d.logger.Warn("Failed to prune old backups", "error", err)
	}
	return BackupInfo{Name: name, Path: path, Size: int64(len(data)), CreatedAt: created}, nil
}

// ListBackups returns the backups in the directory, newest first. A missing
// directory yields an empty list.
func (d *Dir) ListBackups() ([]BackupInfo, error) {
	entries, err := os.ReadDir(d.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read backup dir: %w", err)
	}

	var out []BackupInfo
	for _, e := range entries {
		created, ok := parseBackupName(e.Name())
		if !ok || e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		out = append(out, BackupInfo{
			Name:      e.Name(),
			Path:      filepath.Join(d.path, e.Name()),
			Size:      info.Size(),
			CreatedAt: created,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name > out[j].Name })
	return out, nil
}

// ReadBackup loads the envelope stored under name, as returned by
// ListBackups.
func (d *Dir) ReadBackup(ctx context.Context, name string) (*Envelope, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if filepath.Base(name) != name {
		return nil, fmt.Errorf("invalid backup name %q", name)
	}
	if _, ok := parseBackupName(name); !ok {
		return nil, fmt.Errorf("invalid backup name %q", name)
	}
	data, err := os.ReadFile(filepath.Join(d.path, name))
	if err != nil {
		return nil, fmt.Errorf("failed to read backup %s: %w", name, err)
	}
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: failed to decode backup %s: %v", models.ErrIntegrity, name, err)
	}
	return &env, nil
}

// prune removes the oldest backups beyond the keep limit.
func (d *Dir) prune() error {
	backups, err := d.ListBackups()
	if err != nil {
		return err
	}
	if len(backups) <= d.keep {
		return nil
	}
	var result *multierror.Error
	for _, b := range backups[d.keep:] {
		if err := os.Remove(b.Path); err != nil {
			result = multierror.Append(result, err)
			continue
		}
		d.logger.Debug("Pruned old backup", "path", b.Path)
	}
	return result.ErrorOrNil()
}

func parseBackupName(name string) (time.Time, bool) {
	if !strings.HasPrefix(name, backupPrefix) || !strings.HasSuffix(name, backupSuffix) {
		return time.Time{}, false
	}
	stamp := strings.TrimSuffix(strings.TrimPrefix(name, backupPrefix), backupSuffix)
	t, err := time.Parse(backupStamp, stamp)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
