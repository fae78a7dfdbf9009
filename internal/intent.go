package internal

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"
)

// archiveIntent is written before an archive move so a crash between the file
// rename and the index update can be resolved on the next open.
type archiveIntent struct {
	Key        string      `json:"key"`
	Source     string      `json:"source"`
	Dest       string      `json:"dest"`
	Record     IndexRecord `json:"record"`
	ArchivedAt time.Time   `json:"archived_at"`
}

func (m *MemoryManager) writeIntent(intent archiveIntent) error {
	data, err := json.MarshalIndent(intent, "", "  ")
	if err != nil {
		return err
	}
	return writeFileAtomic(m.intentPath, data, 0644)
}

func (m *MemoryManager) readIntent() (archiveIntent, bool, error) {
	data, err := os.ReadFile(m.intentPath)
	if os.IsNotExist(err) {
		return archiveIntent{}, false, nil
	}
	if err != nil {
		return archiveIntent{}, false, err
	}

	var intent archiveIntent
	if err := json.Unmarshal(data, &intent); err != nil {
		return archiveIntent{}, false, fmt.Errorf("parse archive intent: %w", err)
	}
	intent.Record.Key = intent.Key
	intent.Record.Tier = TierCore
	return intent, true, nil
}

// Recover resolves an archive interrupted by a crash. A moved file is rolled
// forward into the archive tier; an unmoved one stays in core. A record whose
// file is gone from both places is dropped.
func (m *MemoryManager) Recover(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	intent, ok, err := m.readIntent()
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}

	switch {
	case fileExists(intent.Dest):
		m.logger.Warn("rolling archive forward", zap.String("key", intent.Key), zap.String("path", intent.Dest))
		return m.finishArchive(intent)

	case fileExists(intent.Source):
		m.logger.Warn("rolling archive back", zap.String("key", intent.Key), zap.String("path", intent.Source))
		return os.Remove(m.intentPath)

	default:
		m.logger.Warn("dropping record with missing file", zap.String("key", intent.Key))
		if err := m.index.Delete(intent.Key, TierCore); err != nil {
			return err
		}
		if err := m.index.Persist(); err != nil {
			return err
		}
		return os.Remove(m.intentPath)
	}
}
