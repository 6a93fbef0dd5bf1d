package service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"cloudsyncdrive/internal/domain"
)

// Фейки персистентности для тестов движка. Семантика повторяет
// реализации из пакета repository, включая условное списание квоты
// и оптимистическую проверку номера версии.

type fakeUserStore struct {
	mu     sync.Mutex
	users  map[int64]*domain.User
	nextID int64
}

func newFakeUserStore() *fakeUserStore {
	return &fakeUserStore{users: make(map[int64]*domain.User), nextID: 1}
}

func (s *fakeUserStore) addUser(limit int64) *domain.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	user := &domain.User{
		ID:           s.nextID,
		Email:        fmt.Sprintf("user%d@example.com", s.nextID),
		StorageLimit: limit,
		CreatedAt:    time.Now(),
	}
	s.users[user.ID] = user
	s.nextID++
	return user
}

func (s *fakeUserStore) Create(_ context.Context, user *domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.users {
		if existing.Email == user.Email {
			return fmt.Errorf("%w: email already registered", domain.ErrConflict)
		}
	}
	user.ID = s.nextID
	user.CreatedAt = time.Now()
	s.nextID++
	s.users[user.ID] = user
	return nil
}

func (s *fakeUserStore) GetByID(_ context.Context, id int64) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[id]
	if !ok {
		return nil, fmt.Errorf("%w: user %d", domain.ErrNotFound, id)
	}
	copied := *user
	return &copied, nil
}

func (s *fakeUserStore) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, user := range s.users {
		if user.Email == email {
			copied := *user
			return &copied, nil
		}
	}
	return nil, fmt.Errorf("%w: user %s", domain.ErrNotFound, email)
}

func (s *fakeUserStore) UpdateLastLogin(_ context.Context, id int64, loginAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if user, ok := s.users[id]; ok {
		user.LastLoginAt = &loginAt
	}
	return nil
}

func (s *fakeUserStore) ChargeStorage(_ context.Context, ownerID int64, deltaBytes int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[ownerID]
	if !ok {
		return fmt.Errorf("%w: user %d", domain.ErrNotFound, ownerID)
	}
	if deltaBytes > 0 && user.StorageUsed+deltaBytes > user.StorageLimit {
		return fmt.Errorf("%w: need %d bytes", domain.ErrQuotaExceeded, deltaBytes)
	}
	user.StorageUsed += deltaBytes
	if user.StorageUsed < 0 {
		user.StorageUsed = 0
	}
	return nil
}

func (s *fakeUserStore) UpdateStorageLimit(_ context.Context, ownerID int64, newLimit int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[ownerID]
	if !ok {
		return fmt.Errorf("%w: user %d", domain.ErrNotFound, ownerID)
	}
	user.StorageLimit = newLimit
	return nil
}

func (s *fakeUserStore) storageUsed(ownerID int64) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.users[ownerID].StorageUsed
}

type fakeFileStore struct {
	mu            sync.Mutex
	files         map[uuid.UUID]*domain.File
	created       []uuid.UUID // порядок создания, для выборки последних
	versions      []*domain.FileVersion
	nextVersionID int64
}

func newFakeFileStore() *fakeFileStore {
	return &fakeFileStore{files: make(map[uuid.UUID]*domain.File), nextVersionID: 1}
}

func (s *fakeFileStore) Create(_ context.Context, file *domain.File) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	file.CreatedAt = time.Now()
	file.UpdatedAt = file.CreatedAt
	copied := *file
	s.files[file.UUID] = &copied
	s.created = append(s.created, file.UUID)
	return nil
}

func (s *fakeFileStore) GetByUUID(_ context.Context, fileUUID uuid.UUID) (*domain.File, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	file, ok := s.files[fileUUID]
	if !ok || file.Deleted() {
		return nil, fmt.Errorf("%w: file %s", domain.ErrNotFound, fileUUID)
	}
	copied := *file
	return &copied, nil
}

func (s *fakeFileStore) FindByChecksum(_ context.Context, checksum string) (*domain.File, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, file := range s.files {
		if !file.Deleted() && file.Checksum == checksum {
			copied := *file
			return &copied, nil
		}
	}
	return nil, nil
}

func (s *fakeFileStore) ListByOwner(_ context.Context, ownerID int64) ([]domain.File, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.File
	for _, file := range s.files {
		if file.OwnerID == ownerID && !file.Deleted() {
			out = append(out, *file)
		}
	}
	return out, nil
}

func (s *fakeFileStore) ListByFolder(_ context.Context, ownerID, folderID int64) ([]domain.File, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.File
	for _, file := range s.files {
		if file.OwnerID == ownerID && !file.Deleted() && file.FolderID != nil && *file.FolderID == folderID {
			out = append(out, *file)
		}
	}
	return out, nil
}

func (s *fakeFileStore) SearchByName(_ context.Context, ownerID int64, name string) ([]domain.File, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	needle := strings.ToLower(name)
	var out []domain.File
	for _, file := range s.files {
		if file.OwnerID == ownerID && !file.Deleted() && strings.Contains(strings.ToLower(file.Name), needle) {
			out = append(out, *file)
		}
	}
	return out, nil
}

func (s *fakeFileStore) ListByMIMEType(_ context.Context, ownerID int64, mimeType string) ([]domain.File, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.File
	for _, file := range s.files {
		if file.OwnerID == ownerID && !file.Deleted() && file.MIMEType == mimeType {
			out = append(out, *file)
		}
	}
	return out, nil
}

func (s *fakeFileStore) ListRecent(_ context.Context, ownerID int64, limit int) ([]domain.File, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.File
	for i := len(s.created) - 1; i >= 0 && len(out) < limit; i-- {
		file, ok := s.files[s.created[i]]
		if ok && file.OwnerID == ownerID && !file.Deleted() {
			out = append(out, *file)
		}
	}
	return out, nil
}

func (s *fakeFileStore) ApplyUpdate(_ context.Context, file *domain.File, snapshot *domain.FileVersion) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.files[file.UUID]
	if !ok || current.Deleted() || current.VersionNumber != snapshot.VersionNumber {
		return fmt.Errorf("%w: file %s was modified concurrently", domain.ErrConflict, file.UUID)
	}

	snapshot.ID = s.nextVersionID
	snapshot.CreatedAt = time.Now()
	s.nextVersionID++
	snapCopy := *snapshot
	s.versions = append(s.versions, &snapCopy)

	current.StorageKey = file.StorageKey
	current.SizeBytes = file.SizeBytes
	current.Checksum = file.Checksum
	current.VersionNumber = file.VersionNumber
	current.UpdatedAt = time.Now()
	return nil
}

func (s *fakeFileStore) SoftDelete(_ context.Context, fileUUID uuid.UUID, deletedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	file, ok := s.files[fileUUID]
	if !ok || file.Deleted() {
		return fmt.Errorf("%w: file %s", domain.ErrNotFound, fileUUID)
	}
	file.State = domain.FileStateDeleted
	file.DeletedAt = &deletedAt
	return nil
}

func (s *fakeFileStore) GetVersions(_ context.Context, fileUUID uuid.UUID) ([]domain.FileVersion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.FileVersion
	for _, version := range s.versions {
		if version.FileUUID == fileUUID {
			out = append(out, *version)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].VersionNumber > out[j].VersionNumber
	})
	return out, nil
}

func (s *fakeFileStore) GetVersion(_ context.Context, fileUUID uuid.UUID, versionNumber int) (*domain.FileVersion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, version := range s.versions {
		if version.FileUUID == fileUUID && version.VersionNumber == versionNumber {
			copied := *version
			return &copied, nil
		}
	}
	return nil, fmt.Errorf("%w: version %d of file %s", domain.ErrNotFound, versionNumber, fileUUID)
}

func (s *fakeFileStore) DeleteVersion(_ context.Context, versionID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, version := range s.versions {
		if version.ID == versionID {
			s.versions = append(s.versions[:i], s.versions[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("%w: version record %d", domain.ErrNotFound, versionID)
}

type fakeFolderStore struct {
	mu      sync.Mutex
	folders map[int64]*domain.Folder
	nextID  int64
}

func newFakeFolderStore() *fakeFolderStore {
	return &fakeFolderStore{folders: make(map[int64]*domain.Folder), nextID: 1}
}

func (s *fakeFolderStore) Create(_ context.Context, folder *domain.Folder) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	folder.ID = s.nextID
	folder.CreatedAt = time.Now()
	folder.UpdatedAt = folder.CreatedAt
	s.nextID++
	copied := *folder
	s.folders[folder.ID] = &copied
	return nil
}

func (s *fakeFolderStore) GetByIDAndOwner(_ context.Context, id, ownerID int64) (*domain.Folder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	folder, ok := s.folders[id]
	if !ok || folder.OwnerID != ownerID {
		return nil, fmt.Errorf("%w: folder %d", domain.ErrNotFound, id)
	}
	copied := *folder
	return &copied, nil
}

func (s *fakeFolderStore) ListRoots(_ context.Context, ownerID int64) ([]domain.Folder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Folder
	for _, folder := range s.folders {
		if folder.OwnerID == ownerID && folder.ParentID == nil {
			out = append(out, *folder)
		}
	}
	return out, nil
}

func (s *fakeFolderStore) ListChildren(_ context.Context, ownerID, parentID int64) ([]domain.Folder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Folder
	for _, folder := range s.folders {
		if folder.OwnerID == ownerID && folder.ParentID != nil && *folder.ParentID == parentID {
			out = append(out, *folder)
		}
	}
	return out, nil
}

func (s *fakeFolderStore) Rename(_ context.Context, id int64, newName, newPath string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	folder, ok := s.folders[id]
	if !ok {
		return fmt.Errorf("%w: folder %d", domain.ErrNotFound, id)
	}
	folder.Name = newName
	folder.Path = newPath
	return nil
}

func (s *fakeFolderStore) Delete(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.folders, id)
	return nil
}

func (s *fakeFolderStore) CountFiles(_ context.Context, _ int64) (int, error) {
	return 0, nil
}

type fakeShareStore struct {
	mu     sync.Mutex
	shares map[int64]*domain.Share
	nextID int64
}

func newFakeShareStore() *fakeShareStore {
	return &fakeShareStore{shares: make(map[int64]*domain.Share), nextID: 1}
}

func (s *fakeShareStore) Create(_ context.Context, share *domain.Share) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	share.ID = s.nextID
	share.CreatedAt = time.Now()
	s.nextID++
	copied := *share
	s.shares[share.ID] = &copied
	return nil
}

func (s *fakeShareStore) GetByID(_ context.Context, id int64) (*domain.Share, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	share, ok := s.shares[id]
	if !ok {
		return nil, fmt.Errorf("%w: share %d", domain.ErrNotFound, id)
	}
	copied := *share
	return &copied, nil
}

func (s *fakeShareStore) GetByToken(_ context.Context, token string) (*domain.Share, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, share := range s.shares {
		if share.ShareToken != nil && *share.ShareToken == token {
			copied := *share
			return &copied, nil
		}
	}
	return nil, fmt.Errorf("%w: share token %s", domain.ErrNotFound, token)
}

func (s *fakeShareStore) ListBySharedBy(_ context.Context, userID int64) ([]domain.Share, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Share
	for _, share := range s.shares {
		if share.SharedByID == userID {
			out = append(out, *share)
		}
	}
	return out, nil
}

func (s *fakeShareStore) ListBySharedWith(_ context.Context, userID int64) ([]domain.Share, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Share
	for _, share := range s.shares {
		if share.SharedWithID != nil && *share.SharedWithID == userID {
			out = append(out, *share)
		}
	}
	return out, nil
}

func (s *fakeShareStore) UpdateExpiry(_ context.Context, id int64, expiresAt *time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	share, ok := s.shares[id]
	if !ok {
		return fmt.Errorf("%w: share %d", domain.ErrNotFound, id)
	}
	share.ExpiresAt = expiresAt
	return nil
}

func (s *fakeShareStore) Delete(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.shares[id]; !ok {
		return fmt.Errorf("%w: share %d", domain.ErrNotFound, id)
	}
	delete(s.shares, id)
	return nil
}

type fakeActivityStore struct {
	mu         sync.Mutex
	activities []domain.Activity
}

func (s *fakeActivityStore) Create(_ context.Context, activity *domain.Activity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	activity.ID = int64(len(s.activities) + 1)
	activity.CreatedAt = time.Now()
	s.activities = append(s.activities, *activity)
	return nil
}

func (s *fakeActivityStore) ListByUser(_ context.Context, userID int64, limit int) ([]domain.Activity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Activity
	for i := len(s.activities) - 1; i >= 0 && len(out) < limit; i-- {
		if s.activities[i].UserID == userID {
			out = append(out, s.activities[i])
		}
	}
	return out, nil
}

// memBackend держит объекты в памяти. storeErr позволяет симулировать
// отказ физической записи.
type memBackend struct {
	mu       sync.Mutex
	objects  map[string][]byte
	storeErr error
}

func newMemBackend() *memBackend {
	return &memBackend{objects: make(map[string][]byte)}
}

func (b *memBackend) Store(_ context.Context, content io.Reader, ownerID int64, filename string) (string, error) {
	if b.storeErr != nil {
		return "", b.storeErr
	}
	data, err := io.ReadAll(content)
	if err != nil {
		return "", err
	}
	key := fmt.Sprintf("%d/%s_%s", ownerID, uuid.New().String(), filename)
	b.mu.Lock()
	defer b.mu.Unlock()
	b.objects[key] = data
	return key, nil
}

func (b *memBackend) Fetch(_ context.Context, storageKey string) (io.ReadCloser, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	data, ok := b.objects[storageKey]
	if !ok {
		return nil, fmt.Errorf("%w: object %s", domain.ErrNotFound, storageKey)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (b *memBackend) Delete(_ context.Context, storageKey string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.objects, storageKey)
	return nil
}

func (b *memBackend) Exists(_ context.Context, storageKey string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.objects[storageKey]
	return ok, nil
}

func (b *memBackend) Size(_ context.Context, storageKey string) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	data, ok := b.objects[storageKey]
	if !ok {
		return 0, fmt.Errorf("%w: object %s", domain.ErrNotFound, storageKey)
	}
	return int64(len(data)), nil
}

func (b *memBackend) objectCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.objects)
}
