package doctor

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fieldops/fieldsync/internal/core/config"
	"github.com/fieldops/fieldsync/internal/core/queue"
)

// StorageCheck verifies the data directory and reports queue depth.
type StorageCheck struct {
	cfg    *config.Config
	status func(ctx context.Context) queue.SyncStatus
}

// NewStorageCheck creates a new storage check. The status function
// reports the live queue counters.
func NewStorageCheck(cfg *config.Config, status func(ctx context.Context) queue.SyncStatus) *StorageCheck {
	return &StorageCheck{cfg: cfg, status: status}
}

func (c *StorageCheck) Name() string {
	return "Storage"
}

func (c *StorageCheck) Run(ctx context.Context) Result {
	result := Result{Name: c.Name()}

	// Writability matters more than existence; a read-only data dir
	// means mutations cannot be made durable.
	probe := filepath.Join(c.cfg.DataDir, ".doctor-probe")
	if err := os.WriteFile(probe, nil, 0o600); err != nil {
		result.Items = append(result.Items, CheckItem{
			Label:  "data dir",
			Status: StatusFail,
			Detail: fmt.Sprintf("not writable: %s", err),
		})
	} else {
		_ = os.Remove(probe)
		result.Items = append(result.Items, CheckItem{
			Label:  "data dir",
			Status: StatusPass,
			Detail: c.cfg.DataDir,
		})
	}

	dbFile := c.cfg.DatabaseFile()
	if info, err := os.Stat(dbFile); err != nil {
		result.Items = append(result.Items, CheckItem{
			Label:  "database",
			Status: StatusWarn,
			Detail: "not created yet",
		})
	} else {
		result.Items = append(result.Items, CheckItem{
			Label:  "database",
			Status: StatusPass,
			Detail: fmt.Sprintf("%s (%d KiB)", dbFile, info.Size()/1024),
		})
	}

	status := c.status(ctx)
	queueItem := CheckItem{
		Label:  "queue",
		Status: StatusPass,
		Detail: fmt.Sprintf("%d pending", status.PendingCount),
	}
	if status.FailedCount > 0 {
		queueItem.Status = StatusWarn
		queueItem.Detail = fmt.Sprintf("%d pending, %d failed", status.PendingCount, status.FailedCount)
	}
	result.Items = append(result.Items, queueItem)

	return result
}
