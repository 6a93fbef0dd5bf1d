package service

import (
	"context"
	"log"

	"github.com/google/uuid"

	"cloudsyncdrive/internal/storage"
)

// maxVersionDepth — сколько исторических снимков файла хранится.
const maxVersionDepth = 5

// VersionRetentionManager ограничивает глубину истории версий файла.
// Вызывается синхронно после каждой мутации, создающей версию. Чистка
// best-effort: ошибка физического удаления логируется, запись метаданных
// удаляется всё равно, сама операция-триггер не прерывается.
type VersionRetentionManager struct {
	fileStore FileStore
	backend   storage.Backend
}

func NewVersionRetentionManager(fileStore FileStore, backend storage.Backend) *VersionRetentionManager {
	return &VersionRetentionManager{
		fileStore: fileStore,
		backend:   backend,
	}
}

// Cleanup удаляет снимки сверх лимита, начиная с самых старых.
func (m *VersionRetentionManager) Cleanup(ctx context.Context, fileUUID uuid.UUID) {
	versions, err := m.fileStore.GetVersions(ctx, fileUUID)
	if err != nil {
		log.Printf("[Retention] failed to list versions for %s: %v", fileUUID, err)
		return
	}

	if len(versions) <= maxVersionDepth {
		return
	}

	// Список отсортирован по убыванию номера: всё после maxVersionDepth — старьё
	for _, version := range versions[maxVersionDepth:] {
		// Ключ может разделяться с другими записями через дедупликацию;
		// подсчёта ссылок нет, удаление безусловное
		if err := m.backend.Delete(ctx, version.StorageKey); err != nil {
			log.Printf("[Retention] failed to delete payload of version %d of %s: %v",
				version.VersionNumber, fileUUID, err)
		}

		if err := m.fileStore.DeleteVersion(ctx, version.ID); err != nil {
			log.Printf("[Retention] failed to delete version record %d of %s: %v",
				version.VersionNumber, fileUUID, err)
		}
	}
}
