package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/mmynk/billbook/internal/models"
	"github.com/mmynk/billbook/internal/snapshot"
)

// ErrBackupsDisabled is returned by the file backup operations when the
// service was built without WithBackupDir.
var ErrBackupsDisabled = errors.New("service: backups are not configured")

// BackupResult describes a written backup.
type BackupResult struct {
	Info     snapshot.BackupInfo
	Metadata snapshot.Metadata
	Dropped  []snapshot.Dropped
}

// OnRestore registers fn to run after every successful snapshot restore.
// Listeners run without the service lock held and may call back into the
// service.
func (s *Service) OnRestore(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// CreateSnapshot exports the active collections.
func (s *Service) CreateSnapshot() (*snapshot.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.createSnapshot()
}

func (s *Service) createSnapshot() (*snapshot.Result, error) {
	res, err := s.snapshots.Create()
	if err != nil {
		s.logger.Error("CreateSnapshot failed", "error", err)
		return nil, err
	}
	s.metrics.Snapshots.WithLabelValues("create").Inc()
	s.metrics.DroppedRecords.Add(float64(len(res.Dropped)))
	return res, nil
}

// RestoreSnapshot verifies snap and replaces every data collection with its
// content. On any failure, including failing to persist the result, the
// previous state is kept. The recycle bin is not part of a snapshot and is
// left as it is.
func (s *Service) RestoreSnapshot(ctx context.Context, snap *snapshot.Snapshot) error {
	s.mu.Lock()
	if err := s.restoreSnapshot(ctx, snap); err != nil {
		s.mu.Unlock()
		return err
	}
	listeners := append([]func(){}, s.listeners...)
	s.mu.Unlock()

	for _, fn := range listeners {
		fn()
	}
	return nil
}

func (s *Service) restoreSnapshot(ctx context.Context, snap *snapshot.Snapshot) error {
	cp := s.checkpoint()
	if err := s.snapshots.Restore(snap); err != nil {
		if errors.Is(err, models.ErrIntegrity) {
			s.metrics.IntegrityFailures.Inc()
		}
		return err
	}
	if err := s.persist(ctx, dataKeys...); err != nil {
		s.rollback(cp)
		s.logger.Error("RestoreSnapshot failed, previous state kept", "error", err)
		return err
	}
	s.metrics.Snapshots.WithLabelValues("restore").Inc()
	return nil
}

// CreateBackup writes a snapshot to the backup directory, encrypted when
// passphrase is not empty. Only the newest backups are kept.
func (s *Service) CreateBackup(ctx context.Context, passphrase string) (*BackupResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.backups == nil {
		return nil, ErrBackupsDisabled
	}
	res, err := s.createSnapshot()
	if err != nil {
		return nil, err
	}
	env, err := snapshot.Seal(ctx, res.Snapshot, passphrase)
	if err != nil {
		s.logger.Error("CreateBackup failed", "error", err)
		return nil, fmt.Errorf("failed to seal backup: %w", err)
	}
	info, err := s.backups.WriteBackup(ctx, env)
	if err != nil {
		s.logger.Error("CreateBackup failed", "error", err)
		return nil, err
	}
	s.logger.Info("Backup created",
		"name", info.Name,
		"encrypted", env.Encrypted(),
		"checksum", res.Metadata.Checksum,
		"dropped", len(res.Dropped))
	return &BackupResult{Info: info, Metadata: res.Metadata, Dropped: res.Dropped}, nil
}

// ListBackups returns the stored backups, newest first.
func (s *Service) ListBackups() ([]snapshot.BackupInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.backups == nil {
		return nil, ErrBackupsDisabled
	}
	return s.backups.ListBackups()
}

// RestoreBackup restores the backup stored under name.
func (s *Service) RestoreBackup(ctx context.Context, name, passphrase string) error {
	s.mu.Lock()
	if s.backups == nil {
		s.mu.Unlock()
		return ErrBackupsDisabled
	}
	env, err := s.backups.ReadBackup(ctx, name)
	if err != nil {
		if errors.Is(err, models.ErrIntegrity) {
			s.metrics.IntegrityFailures.Inc()
		}
		s.mu.Unlock()
		s.logger.Error("RestoreBackup failed", "name", name, "error", err)
		return err
	}
	snap, err := snapshot.Open(ctx, env, passphrase)
	if err != nil {
		if errors.Is(err, models.ErrIntegrity) {
			s.metrics.IntegrityFailures.Inc()
		}
		s.mu.Unlock()
		s.logger.Error("RestoreBackup failed", "name", name, "error", err)
		return err
	}
	s.mu.Unlock()

	if err := s.RestoreSnapshot(ctx, snap); err != nil {
		s.logger.Error("RestoreBackup failed", "name", name, "error", err)
		return err
	}
	s.logger.Info("Backup restored", "name", name, "timestamp", snap.Timestamp)
	return nil
}
