package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cloudsyncdrive/internal/domain"
)

type engineFixture struct {
	service   *FileService
	fileStore *fakeFileStore
	userStore *fakeUserStore
	backend   *memBackend
}

func newEngineFixture(t *testing.T, quotaLimit int64) (*engineFixture, *domain.User) {
	t.Helper()

	fileStore := newFakeFileStore()
	userStore := newFakeUserStore()
	folderStore := newFakeFolderStore()
	backend := newMemBackend()
	activity := NewActivityService(&fakeActivityStore{})
	retention := NewVersionRetentionManager(fileStore, backend)

	svc := NewFileService(fileStore, userStore, folderStore, backend, retention, activity)
	owner := userStore.addUser(quotaLimit)

	return &engineFixture{
		service:   svc,
		fileStore: fileStore,
		userStore: userStore,
		backend:   backend,
	}, owner
}

func uploadBytes(t *testing.T, fx *engineFixture, ownerID int64, name string, content []byte) *domain.File {
	t.Helper()
	file, err := fx.service.UploadFile(context.Background(), domain.FileUpload{
		Name:    name,
		Size:    int64(len(content)),
		OwnerID: ownerID,
		Content: bytes.NewReader(content),
	})
	require.NoError(t, err)
	return file
}

func TestUploadFile(t *testing.T) {
	fx, owner := newEngineFixture(t, 1000)

	file := uploadBytes(t, fx, owner.ID, "report.txt", []byte("hello world"))

	assert.Equal(t, 1, file.VersionNumber)
	assert.Equal(t, domain.FileStateActive, file.State)
	assert.Equal(t, int64(11), file.SizeBytes)
	assert.NotEmpty(t, file.Checksum)
	assert.Equal(t, int64(11), fx.userStore.storageUsed(owner.ID))

	exists, err := fx.backend.Exists(context.Background(), file.StorageKey)
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestUploadFileValidation(t *testing.T) {
	fx, owner := newEngineFixture(t, 1000)

	_, err := fx.service.UploadFile(context.Background(), domain.FileUpload{
		Name:    "",
		OwnerID: owner.ID,
		Content: strings.NewReader("data"),
	})
	assert.ErrorIs(t, err, domain.ErrInvalidOperation)

	_, err = fx.service.UploadFile(context.Background(), domain.FileUpload{
		Name:    "huge.bin",
		Size:    maxFileSize + 1,
		OwnerID: owner.ID,
		Content: strings.NewReader("data"),
	})
	assert.ErrorIs(t, err, domain.ErrInvalidOperation)

	// Отрицательный заявленный размер не должен доходить до аллокации буфера
	_, err = fx.service.UploadFile(context.Background(), domain.FileUpload{
		Name:    "broken.bin",
		Size:    -1,
		OwnerID: owner.ID,
		Content: strings.NewReader("data"),
	})
	assert.ErrorIs(t, err, domain.ErrInvalidOperation)
}

func TestUpdateFileNegativeSizeRejected(t *testing.T) {
	fx, owner := newEngineFixture(t, 1000)
	file := uploadBytes(t, fx, owner.ID, "doc.txt", []byte("v1"))

	_, err := fx.service.UpdateFile(context.Background(), file.UUID, domain.FileUpload{
		Size:    -5,
		OwnerID: owner.ID,
		Content: strings.NewReader("v2"),
	})
	assert.ErrorIs(t, err, domain.ErrInvalidOperation)

	// Файл не тронут
	current, err := fx.service.GetFileInfo(context.Background(), file.UUID, owner.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, current.VersionNumber)
}

func TestUploadDeduplication(t *testing.T) {
	fx, owner := newEngineFixture(t, 1000)
	other := fx.userStore.addUser(1000)

	content := []byte("shared content")
	first := uploadBytes(t, fx, owner.ID, "a.txt", content)
	usedAfterFirst := fx.userStore.storageUsed(owner.ID)

	// Дубликат у другого пользователя: тот же ключ, квота не тронута
	second := uploadBytes(t, fx, other.ID, "b.txt", content)

	assert.Equal(t, first.StorageKey, second.StorageKey)
	assert.Equal(t, first.Checksum, second.Checksum)
	assert.NotEqual(t, first.UUID, second.UUID)
	assert.Equal(t, usedAfterFirst, fx.userStore.storageUsed(owner.ID))
	assert.Zero(t, fx.userStore.storageUsed(other.ID))
	assert.Equal(t, 1, fx.backend.objectCount())
}

func TestUploadQuotaAccounting(t *testing.T) {
	fx, owner := newEngineFixture(t, 1000)

	// 400 уникальных байт списываются
	uploadBytes(t, fx, owner.ID, "first.bin", bytes.Repeat([]byte{1}, 400))
	assert.Equal(t, int64(400), fx.userStore.storageUsed(owner.ID))

	// Дубликат тех же байт бесплатен
	uploadBytes(t, fx, owner.ID, "copy.bin", bytes.Repeat([]byte{1}, 400))
	assert.Equal(t, int64(400), fx.userStore.storageUsed(owner.ID))

	// 700 уникальных байт не влезают в остаток 600
	_, err := fx.service.UploadFile(context.Background(), domain.FileUpload{
		Name:    "big.bin",
		Size:    700,
		OwnerID: owner.ID,
		Content: bytes.NewReader(bytes.Repeat([]byte{2}, 700)),
	})
	assert.ErrorIs(t, err, domain.ErrQuotaExceeded)

	// Отказ не оставил следов: ни списания, ни объекта
	assert.Equal(t, int64(400), fx.userStore.storageUsed(owner.ID))
	assert.Equal(t, 1, fx.backend.objectCount())
}

func TestUploadStorageFailureRefundsQuota(t *testing.T) {
	fx, owner := newEngineFixture(t, 1000)
	fx.backend.storeErr = errors.New("disk on fire")

	_, err := fx.service.UploadFile(context.Background(), domain.FileUpload{
		Name:    "doomed.txt",
		Size:    100,
		OwnerID: owner.ID,
		Content: bytes.NewReader(bytes.Repeat([]byte{3}, 100)),
	})
	assert.ErrorIs(t, err, domain.ErrStorageIO)
	assert.Zero(t, fx.userStore.storageUsed(owner.ID))
}

func TestConcurrentUploadsRespectQuota(t *testing.T) {
	fx, owner := newEngineFixture(t, 1000)

	const workers = 10
	var wg sync.WaitGroup
	errs := make([]error, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			// Уникальное содержимое, чтобы дедупликация не вмешивалась
			content := bytes.Repeat([]byte{byte(i + 1)}, 300)
			_, errs[i] = fx.service.UploadFile(context.Background(), domain.FileUpload{
				Name:    fmt.Sprintf("file%d.bin", i),
				Size:    300,
				OwnerID: owner.ID,
				Content: bytes.NewReader(content),
			})
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
		} else {
			assert.ErrorIs(t, err, domain.ErrQuotaExceeded)
		}
	}

	// В лимит 1000 помещаются ровно три загрузки по 300 байт
	assert.Equal(t, 3, succeeded)
	assert.Equal(t, int64(900), fx.userStore.storageUsed(owner.ID))
}

func TestUpdateFile(t *testing.T) {
	fx, owner := newEngineFixture(t, 1000)
	file := uploadBytes(t, fx, owner.ID, "notes.txt", []byte("version one"))

	updated, err := fx.service.UpdateFile(context.Background(), file.UUID, domain.FileUpload{
		Name:    "notes.txt",
		Size:    15,
		OwnerID: owner.ID,
		Content: strings.NewReader("version two !!!"),
	})
	require.NoError(t, err)

	assert.Equal(t, 2, updated.VersionNumber)
	assert.Equal(t, int64(15), updated.SizeBytes)
	assert.NotEqual(t, file.Checksum, updated.Checksum)
	assert.NotEqual(t, file.StorageKey, updated.StorageKey)

	// Квота скорректирована на дельту, не списана повторно целиком
	assert.Equal(t, int64(15), fx.userStore.storageUsed(owner.ID))

	// Прежнее состояние сохранено как версия 1
	versions, err := fx.fileStore.GetVersions(context.Background(), file.UUID)
	require.NoError(t, err)
	require.Len(t, versions, 1)
	assert.Equal(t, 1, versions[0].VersionNumber)
	assert.Equal(t, file.Checksum, versions[0].Checksum)
	assert.Equal(t, file.StorageKey, versions[0].StorageKey)
}

func TestUpdateFileQuotaDelta(t *testing.T) {
	// Лимит 250: файл в 100 байт есть, рост до 300 должен быть отвергнут
	fx, owner := newEngineFixture(t, 250)
	file := uploadBytes(t, fx, owner.ID, "data.bin", bytes.Repeat([]byte{1}, 100))

	_, err := fx.service.UpdateFile(context.Background(), file.UUID, domain.FileUpload{
		Name:    "data.bin",
		Size:    300,
		OwnerID: owner.ID,
		Content: bytes.NewReader(bytes.Repeat([]byte{2}, 300)),
	})
	assert.ErrorIs(t, err, domain.ErrQuotaExceeded)

	// Файл не изменился
	current, err := fx.service.GetFileInfo(context.Background(), file.UUID, owner.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, current.VersionNumber)
	assert.Equal(t, int64(100), current.SizeBytes)
	assert.Equal(t, int64(100), fx.userStore.storageUsed(owner.ID))

	// Уменьшение размера проходит и возвращает разницу
	updated, err := fx.service.UpdateFile(context.Background(), file.UUID, domain.FileUpload{
		Name:    "data.bin",
		Size:    40,
		OwnerID: owner.ID,
		Content: bytes.NewReader(bytes.Repeat([]byte{3}, 40)),
	})
	require.NoError(t, err)
	assert.Equal(t, int64(40), updated.SizeBytes)
	assert.Equal(t, int64(40), fx.userStore.storageUsed(owner.ID))
}

func TestUpdateFileWrongOwner(t *testing.T) {
	fx, owner := newEngineFixture(t, 1000)
	stranger := fx.userStore.addUser(1000)
	file := uploadBytes(t, fx, owner.ID, "private.txt", []byte("secret"))

	_, err := fx.service.UpdateFile(context.Background(), file.UUID, domain.FileUpload{
		Name:    "private.txt",
		Size:    4,
		OwnerID: stranger.ID,
		Content: strings.NewReader("hack"),
	})
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestVersionRetentionDepth(t *testing.T) {
	fx, owner := newEngineFixture(t, 100000)
	file := uploadBytes(t, fx, owner.ID, "history.txt", []byte("v1"))

	for i := 2; i <= 9; i++ {
		content := fmt.Sprintf("content of version %d", i)
		_, err := fx.service.UpdateFile(context.Background(), file.UUID, domain.FileUpload{
			Name:    "history.txt",
			Size:    int64(len(content)),
			OwnerID: owner.ID,
			Content: strings.NewReader(content),
		})
		require.NoError(t, err)
	}

	versions, err := fx.service.GetFileVersions(context.Background(), file.UUID, owner.ID)
	require.NoError(t, err)
	require.Len(t, versions, maxVersionDepth)

	// Остались пять самых свежих снимков: 8,7,6,5,4
	assert.Equal(t, 8, versions[0].VersionNumber)
	assert.Equal(t, 4, versions[len(versions)-1].VersionNumber)

	// Содержимое вытесненной версии физически удалено
	for _, evicted := range []int{1, 2, 3} {
		_, err := fx.service.DownloadFileVersion(context.Background(), file.UUID, evicted, owner.ID)
		assert.ErrorIs(t, err, domain.ErrNotFound, "version %d must be evicted", evicted)
	}

	// Текущее содержимое и версии в окне доступны
	download, err := fx.service.DownloadFileVersion(context.Background(), file.UUID, 5, owner.ID)
	require.NoError(t, err)
	data, err := io.ReadAll(download.Content)
	require.NoError(t, err)
	download.Content.Close()
	assert.Equal(t, "content of version 5", string(data))
}

func TestDownloadFile(t *testing.T) {
	fx, owner := newEngineFixture(t, 1000)
	file := uploadBytes(t, fx, owner.ID, "doc.txt", []byte("payload"))

	download, err := fx.service.DownloadFile(context.Background(), file.UUID, owner.ID)
	require.NoError(t, err)
	defer download.Content.Close()

	data, err := io.ReadAll(download.Content)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(data))

	stranger := fx.userStore.addUser(1000)
	_, err = fx.service.DownloadFile(context.Background(), file.UUID, stranger.ID)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestDownloadFileVersionMetadata(t *testing.T) {
	fx, owner := newEngineFixture(t, 1000)
	file := uploadBytes(t, fx, owner.ID, "doc.txt", []byte("short"))

	_, err := fx.service.UpdateFile(context.Background(), file.UUID, domain.FileUpload{
		Name:    "doc.txt",
		Size:    19,
		OwnerID: owner.ID,
		Content: strings.NewReader("much longer payload"),
	})
	require.NoError(t, err)

	download, err := fx.service.DownloadFileVersion(context.Background(), file.UUID, 1, owner.ID)
	require.NoError(t, err)
	defer download.Content.Close()

	assert.Equal(t, 1, download.File.VersionNumber)
	assert.Equal(t, int64(5), download.File.SizeBytes)

	data, err := io.ReadAll(download.Content)
	require.NoError(t, err)
	assert.Equal(t, "short", string(data))
}

func TestRestoreFileVersion(t *testing.T) {
	fx, owner := newEngineFixture(t, 1000)
	file := uploadBytes(t, fx, owner.ID, "doc.txt", []byte("original text"))
	originalChecksum := file.Checksum

	_, err := fx.service.UpdateFile(context.Background(), file.UUID, domain.FileUpload{
		Name:    "doc.txt",
		Size:    7,
		OwnerID: owner.ID,
		Content: strings.NewReader("rewrite"),
	})
	require.NoError(t, err)

	restored, err := fx.service.RestoreFileVersion(context.Background(), file.UUID, 1, owner.ID)
	require.NoError(t, err)

	// Откат — это новая версия с содержимым старой
	assert.Equal(t, 3, restored.VersionNumber)
	assert.Equal(t, originalChecksum, restored.Checksum)
	assert.Equal(t, int64(13), restored.SizeBytes)
	assert.Equal(t, int64(13), fx.userStore.storageUsed(owner.ID))

	download, err := fx.service.DownloadFile(context.Background(), file.UUID, owner.ID)
	require.NoError(t, err)
	defer download.Content.Close()
	data, err := io.ReadAll(download.Content)
	require.NoError(t, err)
	assert.Equal(t, "original text", string(data))
}

func TestRestoreCurrentVersionRejected(t *testing.T) {
	fx, owner := newEngineFixture(t, 1000)
	file := uploadBytes(t, fx, owner.ID, "doc.txt", []byte("data"))

	_, err := fx.service.RestoreFileVersion(context.Background(), file.UUID, file.VersionNumber, owner.ID)
	assert.ErrorIs(t, err, domain.ErrInvalidOperation)
}

func TestRestoreMissingVersion(t *testing.T) {
	fx, owner := newEngineFixture(t, 1000)
	file := uploadBytes(t, fx, owner.ID, "doc.txt", []byte("data"))

	_, err := fx.service.RestoreFileVersion(context.Background(), file.UUID, 42, owner.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestDeleteFile(t *testing.T) {
	fx, owner := newEngineFixture(t, 1000)
	file := uploadBytes(t, fx, owner.ID, "old.txt", []byte("obsolete"))
	require.Equal(t, int64(8), fx.userStore.storageUsed(owner.ID))

	err := fx.service.DeleteFile(context.Background(), file.UUID, owner.ID)
	require.NoError(t, err)

	// Квота возвращена, файл недоступен, объект физически на месте
	assert.Zero(t, fx.userStore.storageUsed(owner.ID))
	_, err = fx.service.GetFileInfo(context.Background(), file.UUID, owner.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.Equal(t, 1, fx.backend.objectCount())

	// Повторное удаление — NotFound
	err = fx.service.DeleteFile(context.Background(), file.UUID, owner.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestDeleteFileWrongOwner(t *testing.T) {
	fx, owner := newEngineFixture(t, 1000)
	stranger := fx.userStore.addUser(1000)
	file := uploadBytes(t, fx, owner.ID, "mine.txt", []byte("keep out"))

	err := fx.service.DeleteFile(context.Background(), file.UUID, stranger.ID)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestSearchFiles(t *testing.T) {
	fx, owner := newEngineFixture(t, 1000)
	stranger := fx.userStore.addUser(1000)

	uploadBytes(t, fx, owner.ID, "Quarterly Report.pdf", []byte("q1"))
	uploadBytes(t, fx, owner.ID, "notes.txt", []byte("n"))
	uploadBytes(t, fx, stranger.ID, "report draft.pdf", []byte("q2"))

	// Поиск без учёта регистра, только среди файлов владельца
	found, err := fx.service.SearchFiles(context.Background(), owner.ID, "report")
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "Quarterly Report.pdf", found[0].Name)

	_, err = fx.service.SearchFiles(context.Background(), owner.ID, "   ")
	assert.ErrorIs(t, err, domain.ErrInvalidOperation)
}

func TestSearchFilesSkipsDeleted(t *testing.T) {
	fx, owner := newEngineFixture(t, 1000)
	file := uploadBytes(t, fx, owner.ID, "report.pdf", []byte("q1"))

	require.NoError(t, fx.service.DeleteFile(context.Background(), file.UUID, owner.ID))

	found, err := fx.service.SearchFiles(context.Background(), owner.ID, "report")
	require.NoError(t, err)
	assert.Empty(t, found)
}

func TestFilesByMIMEType(t *testing.T) {
	fx, owner := newEngineFixture(t, 1000)

	pdf, err := fx.service.UploadFile(context.Background(), domain.FileUpload{
		Name:     "doc.pdf",
		MIMEType: "application/pdf",
		Size:     3,
		OwnerID:  owner.ID,
		Content:  strings.NewReader("pdf"),
	})
	require.NoError(t, err)
	uploadBytes(t, fx, owner.ID, "plain.txt", []byte("txt"))

	found, err := fx.service.GetFilesByMIMEType(context.Background(), owner.ID, "application/pdf")
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, pdf.UUID, found[0].UUID)

	_, err = fx.service.GetFilesByMIMEType(context.Background(), owner.ID, "")
	assert.ErrorIs(t, err, domain.ErrInvalidOperation)
}

func TestRecentFiles(t *testing.T) {
	fx, owner := newEngineFixture(t, 100000)

	for i := 1; i <= 15; i++ {
		uploadBytes(t, fx, owner.ID, fmt.Sprintf("file-%02d.txt", i), []byte(fmt.Sprintf("content %d", i)))
	}

	// Последние два, от новых к старым
	recent, err := fx.service.GetRecentFiles(context.Background(), owner.ID, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "file-15.txt", recent[0].Name)
	assert.Equal(t, "file-14.txt", recent[1].Name)

	// Без лимита действует значение по умолчанию
	recent, err = fx.service.GetRecentFiles(context.Background(), owner.ID, 0)
	require.NoError(t, err)
	assert.Len(t, recent, defaultRecentLimit)
}
