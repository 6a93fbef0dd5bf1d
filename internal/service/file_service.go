package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"cloudsyncdrive/internal/domain"
	"cloudsyncdrive/internal/storage"
)

// Ограничения на работу с файлами
const (
	maxFileSize        = 100 * 1024 * 1024 // 100MB максимальный размер файла
	defaultRecentLimit = 10
)

// FileService — движок хранения и версионирования. Все мутации проходят
// через него: он считает отпечаток, решает вопрос дедупликации, атомарно
// списывает квоту, пишет в физический бэкенд и запускает чистку версий.
type FileService struct {
	fileStore   FileStore
	userStore   UserStore
	folderStore FolderStore
	backend     storage.Backend
	checksummer ChecksumComputer
	retention   *VersionRetentionManager
	activity    *ActivityService
	locks       *fileLockTable
}

func NewFileService(
	fileStore FileStore,
	userStore UserStore,
	folderStore FolderStore,
	backend storage.Backend,
	retention *VersionRetentionManager,
	activity *ActivityService,
) *FileService {
	return &FileService{
		fileStore:   fileStore,
		userStore:   userStore,
		folderStore: folderStore,
		backend:     backend,
		retention:   retention,
		activity:    activity,
		locks:       newFileLockTable(),
	}
}

// UploadFile загружает новый файл. Дубликат по отпечатку переиспользует
// чужой storage key: физической записи и списания квоты не происходит.
// При QuotaExceeded в хранилище гарантированно ничего не записано.
func (s *FileService) UploadFile(ctx context.Context, upload domain.FileUpload) (*domain.File, error) {
	if upload.Content == nil || upload.Name == "" || upload.OwnerID == 0 {
		return nil, fmt.Errorf("%w: missing required upload parameters", domain.ErrInvalidOperation)
	}
	if upload.Size < 0 {
		return nil, fmt.Errorf("%w: negative file size", domain.ErrInvalidOperation)
	}
	if upload.Size > maxFileSize {
		return nil, fmt.Errorf("%w: max file size is %d bytes", domain.ErrInvalidOperation, maxFileSize)
	}

	owner, err := s.userStore.GetByID(ctx, upload.OwnerID)
	if err != nil {
		return nil, err
	}

	if upload.FolderID != nil {
		if _, err := s.folderStore.GetByIDAndOwner(ctx, *upload.FolderID, owner.ID); err != nil {
			return nil, err
		}
	}

	// Отпечаток считается за один проход, содержимое попутно буферизуется
	// для физической записи
	buf := bytes.NewBuffer(make([]byte, 0, upload.Size))
	checksum, size, err := s.checksummer.Digest(io.TeeReader(upload.Content, buf))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrStorageIO, err)
	}
	if size > maxFileSize {
		return nil, fmt.Errorf("%w: max file size is %d bytes", domain.ErrInvalidOperation, maxFileSize)
	}

	// Дедупликация: совпадение отпечатка у любого владельца
	existing, err := s.fileStore.FindByChecksum(ctx, checksum)
	if err != nil {
		return nil, err
	}
	isDuplicate := existing != nil

	var storageKey string
	if isDuplicate {
		storageKey = existing.StorageKey
	} else {
		// Квота списывается одним условным UPDATE до физической записи:
		// отказ не оставляет ни объекта, ни метаданных
		if err := s.userStore.ChargeStorage(ctx, owner.ID, size); err != nil {
			return nil, err
		}

		storageKey, err = s.backend.Store(ctx, buf, owner.ID, upload.Name)
		if err != nil {
			s.refundStorage(ctx, owner.ID, size)
			return nil, fmt.Errorf("%w: %v", domain.ErrStorageIO, err)
		}
	}

	contentType := upload.MIMEType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	file := &domain.File{
		UUID:          uuid.New(),
		Name:          filepath.Clean(upload.Name),
		MIMEType:      contentType,
		SizeBytes:     size,
		FolderID:      upload.FolderID,
		OwnerID:       owner.ID,
		StorageKey:    storageKey,
		Checksum:      checksum,
		VersionNumber: 1,
		State:         domain.FileStateActive,
	}

	if err := s.fileStore.Create(ctx, file); err != nil {
		// Компенсируем физическую запись, чтобы не плодить сирот
		if !isDuplicate {
			if deleteErr := s.backend.Delete(ctx, storageKey); deleteErr != nil {
				log.Printf("[FileService] failed to delete object after db error: %v", deleteErr)
			}
			s.refundStorage(ctx, owner.ID, size)
		}
		return nil, fmt.Errorf("failed to persist file metadata: %w", err)
	}

	s.activity.Record(ctx, owner.ID, domain.ActivityUpload, domain.EntityTypeFile, file.UUID.String())

	log.Printf("[FileService] File uploaded: uuid=%s, name=%s, size=%d, duplicate=%t",
		file.UUID, file.Name, file.SizeBytes, isDuplicate)

	return file, nil
}

// UpdateFile заменяет содержимое файла новой версией. Дедупликации здесь
// нет: смысл операции — «заменить содержимое этого файла», а не «найти
// такой же файл в другом месте». Квота корректируется на дельту размеров.
func (s *FileService) UpdateFile(ctx context.Context, fileUUID uuid.UUID, upload domain.FileUpload) (*domain.File, error) {
	if upload.Content == nil || upload.OwnerID == 0 {
		return nil, fmt.Errorf("%w: missing required upload parameters", domain.ErrInvalidOperation)
	}
	if upload.Size < 0 {
		return nil, fmt.Errorf("%w: negative file size", domain.ErrInvalidOperation)
	}

	unlock := s.locks.Lock(fileUUID)
	defer unlock()

	file, err := s.fileStore.GetByUUID(ctx, fileUUID)
	if err != nil {
		return nil, err
	}
	if file.OwnerID != upload.OwnerID {
		return nil, fmt.Errorf("%w: file %s", domain.ErrUnauthorized, fileUUID)
	}

	buf := bytes.NewBuffer(make([]byte, 0, upload.Size))
	checksum, size, err := s.checksummer.Digest(io.TeeReader(upload.Content, buf))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrStorageIO, err)
	}
	if size > maxFileSize {
		return nil, fmt.Errorf("%w: max file size is %d bytes", domain.ErrInvalidOperation, maxFileSize)
	}

	// Дельта, а не полный размер: повторное полное списание дрейфует
	delta := size - file.SizeBytes
	if err := s.userStore.ChargeStorage(ctx, file.OwnerID, delta); err != nil {
		return nil, err
	}

	newKey, err := s.backend.Store(ctx, buf, file.OwnerID, file.Name)
	if err != nil {
		s.refundStorage(ctx, file.OwnerID, delta)
		return nil, fmt.Errorf("%w: %v", domain.ErrStorageIO, err)
	}

	// Снимок состояния до перезаписи, с номером версии до инкремента
	snapshot := &domain.FileVersion{
		FileUUID:      file.UUID,
		VersionNumber: file.VersionNumber,
		StorageKey:    file.StorageKey,
		SizeBytes:     file.SizeBytes,
		Checksum:      file.Checksum,
	}

	file.StorageKey = newKey
	file.SizeBytes = size
	file.Checksum = checksum
	file.VersionNumber++
	if upload.MIMEType != "" {
		file.MIMEType = upload.MIMEType
	}

	if err := s.fileStore.ApplyUpdate(ctx, file, snapshot); err != nil {
		if deleteErr := s.backend.Delete(ctx, newKey); deleteErr != nil {
			log.Printf("[FileService] failed to delete object after db error: %v", deleteErr)
		}
		s.refundStorage(ctx, file.OwnerID, delta)
		return nil, err
	}

	s.retention.Cleanup(ctx, fileUUID)
	s.activity.Record(ctx, file.OwnerID, domain.ActivityUpload, domain.EntityTypeFile, file.UUID.String())

	log.Printf("[FileService] File updated: uuid=%s, version=%d, size=%d",
		file.UUID, file.VersionNumber, file.SizeBytes)

	return file, nil
}

// DownloadFile отдает текущее содержимое файла.
func (s *FileService) DownloadFile(ctx context.Context, fileUUID uuid.UUID, ownerID int64) (*domain.FileDownload, error) {
	file, err := s.fileStore.GetByUUID(ctx, fileUUID)
	if err != nil {
		return nil, err
	}
	if file.OwnerID != ownerID {
		return nil, fmt.Errorf("%w: file %s", domain.ErrUnauthorized, fileUUID)
	}

	content, err := s.fetchObject(ctx, file.StorageKey)
	if err != nil {
		return nil, err
	}

	s.activity.Record(ctx, ownerID, domain.ActivityDownload, domain.EntityTypeFile, file.UUID.String())

	return &domain.FileDownload{File: file, Content: content}, nil
}

// DownloadFileVersion отдает содержимое конкретной версии. Номер текущей
// версии обслуживается по актуальному storage key, остальные — по снимку;
// версия вне окна ретеншена — NotFound.
func (s *FileService) DownloadFileVersion(ctx context.Context, fileUUID uuid.UUID, versionNumber int, ownerID int64) (*domain.FileDownload, error) {
	file, err := s.fileStore.GetByUUID(ctx, fileUUID)
	if err != nil {
		return nil, err
	}
	if file.OwnerID != ownerID {
		return nil, fmt.Errorf("%w: file %s", domain.ErrUnauthorized, fileUUID)
	}

	storageKey := file.StorageKey
	if versionNumber != file.VersionNumber {
		version, err := s.fileStore.GetVersion(ctx, fileUUID, versionNumber)
		if err != nil {
			return nil, err
		}
		storageKey = version.StorageKey

		// Метаданные в ответе должны описывать именно запрошенную версию.
		snapshot := *file
		snapshot.SizeBytes = version.SizeBytes
		snapshot.Checksum = version.Checksum
		snapshot.VersionNumber = version.VersionNumber
		file = &snapshot
	}

	content, err := s.fetchObject(ctx, storageKey)
	if err != nil {
		return nil, err
	}

	s.activity.Record(ctx, ownerID, domain.ActivityDownload, domain.EntityTypeFile, file.UUID.String())

	return &domain.FileDownload{File: file, Content: content}, nil
}

// RestoreFileVersion делает старую версию текущей. Откат оформляется как
// новая версия (номер растёт), а прежнее текущее состояние само попадает
// в снимок — восстановление можно отменить.
func (s *FileService) RestoreFileVersion(ctx context.Context, fileUUID uuid.UUID, versionNumber int, ownerID int64) (*domain.File, error) {
	unlock := s.locks.Lock(fileUUID)
	defer unlock()

	file, err := s.fileStore.GetByUUID(ctx, fileUUID)
	if err != nil {
		return nil, err
	}
	if file.OwnerID != ownerID {
		return nil, fmt.Errorf("%w: file %s", domain.ErrUnauthorized, fileUUID)
	}
	if versionNumber == file.VersionNumber {
		return nil, fmt.Errorf("%w: version %d is already current", domain.ErrInvalidOperation, versionNumber)
	}

	target, err := s.fileStore.GetVersion(ctx, fileUUID, versionNumber)
	if err != nil {
		return nil, err
	}

	delta := target.SizeBytes - file.SizeBytes
	if err := s.userStore.ChargeStorage(ctx, file.OwnerID, delta); err != nil {
		return nil, err
	}

	snapshot := &domain.FileVersion{
		FileUUID:      file.UUID,
		VersionNumber: file.VersionNumber,
		StorageKey:    file.StorageKey,
		SizeBytes:     file.SizeBytes,
		Checksum:      file.Checksum,
	}

	// Физической записи нет: восстанавливаемый объект уже в хранилище
	file.StorageKey = target.StorageKey
	file.SizeBytes = target.SizeBytes
	file.Checksum = target.Checksum
	file.VersionNumber++

	if err := s.fileStore.ApplyUpdate(ctx, file, snapshot); err != nil {
		s.refundStorage(ctx, file.OwnerID, delta)
		return nil, err
	}

	s.retention.Cleanup(ctx, fileUUID)
	s.activity.Record(ctx, ownerID, domain.ActivityRestoreVersion, domain.EntityTypeFile, file.UUID.String())

	log.Printf("[FileService] Version restored: uuid=%s, restored=%d, new current=%d",
		file.UUID, versionNumber, file.VersionNumber)

	return file, nil
}

// DeleteFile помечает файл удалённым и возвращает квоту. Физический объект
// не трогаем: без подсчёта ссылок его может разделять другая запись.
func (s *FileService) DeleteFile(ctx context.Context, fileUUID uuid.UUID, ownerID int64) error {
	unlock := s.locks.Lock(fileUUID)
	defer unlock()

	file, err := s.fileStore.GetByUUID(ctx, fileUUID)
	if err != nil {
		return err
	}
	if file.OwnerID != ownerID {
		return fmt.Errorf("%w: file %s", domain.ErrUnauthorized, fileUUID)
	}

	if err := s.fileStore.SoftDelete(ctx, fileUUID, time.Now()); err != nil {
		return err
	}

	if err := s.userStore.ChargeStorage(ctx, ownerID, -file.SizeBytes); err != nil {
		return fmt.Errorf("failed to release storage quota: %w", err)
	}

	s.activity.Record(ctx, ownerID, domain.ActivityDelete, domain.EntityTypeFile, file.UUID.String())

	log.Printf("[FileService] File deleted (soft): uuid=%s", fileUUID)

	return nil
}

// GetFileInfo возвращает метаданные файла владельцу.
func (s *FileService) GetFileInfo(ctx context.Context, fileUUID uuid.UUID, ownerID int64) (*domain.File, error) {
	file, err := s.fileStore.GetByUUID(ctx, fileUUID)
	if err != nil {
		return nil, err
	}
	if file.OwnerID != ownerID {
		return nil, fmt.Errorf("%w: file %s", domain.ErrUnauthorized, fileUUID)
	}
	return file, nil
}

func (s *FileService) GetUserFiles(ctx context.Context, ownerID int64) ([]domain.File, error) {
	return s.fileStore.ListByOwner(ctx, ownerID)
}

func (s *FileService) GetFilesInFolder(ctx context.Context, folderID, ownerID int64) ([]domain.File, error) {
	if _, err := s.folderStore.GetByIDAndOwner(ctx, folderID, ownerID); err != nil {
		return nil, err
	}
	return s.fileStore.ListByFolder(ctx, ownerID, folderID)
}

// SearchFiles ищет файлы владельца по подстроке имени без учёта регистра.
func (s *FileService) SearchFiles(ctx context.Context, ownerID int64, query string) ([]domain.File, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("%w: empty search query", domain.ErrInvalidOperation)
	}
	return s.fileStore.SearchByName(ctx, ownerID, query)
}

func (s *FileService) GetFilesByMIMEType(ctx context.Context, ownerID int64, mimeType string) ([]domain.File, error) {
	if mimeType == "" {
		return nil, fmt.Errorf("%w: empty mime type", domain.ErrInvalidOperation)
	}
	return s.fileStore.ListByMIMEType(ctx, ownerID, mimeType)
}

// GetRecentFiles возвращает последние загруженные файлы владельца.
func (s *FileService) GetRecentFiles(ctx context.Context, ownerID int64, limit int) ([]domain.File, error) {
	if limit <= 0 {
		limit = defaultRecentLimit
	}
	return s.fileStore.ListRecent(ctx, ownerID, limit)
}

func (s *FileService) GetFileVersions(ctx context.Context, fileUUID uuid.UUID, ownerID int64) ([]domain.FileVersion, error) {
	if _, err := s.GetFileInfo(ctx, fileUUID, ownerID); err != nil {
		return nil, err
	}
	return s.fileStore.GetVersions(ctx, fileUUID)
}

func (s *FileService) fetchObject(ctx context.Context, storageKey string) (io.ReadCloser, error) {
	content, err := s.backend.Fetch(ctx, storageKey)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrStorageIO, err)
	}
	return content, nil
}

// refundStorage возвращает уже списанную квоту после неудачной операции.
func (s *FileService) refundStorage(ctx context.Context, ownerID, deltaBytes int64) {
	if deltaBytes == 0 {
		return
	}
	if err := s.userStore.ChargeStorage(ctx, ownerID, -deltaBytes); err != nil {
		log.Printf("[FileService] failed to refund %d bytes for owner %d: %v", deltaBytes, ownerID, err)
	}
}
