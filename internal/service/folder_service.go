package service

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"

	"cloudsyncdrive/internal/domain"
)

type FolderService struct {
	folderStore FolderStore
	activity    *ActivityService
}

func NewFolderService(folderStore FolderStore, activity *ActivityService) *FolderService {
	return &FolderService{
		folderStore: folderStore,
		activity:    activity,
	}
}

// CreateFolder создает папку; путь материализуется от родителя.
func (s *FolderService) CreateFolder(ctx context.Context, name string, parentID *int64, ownerID int64) (*domain.Folder, error) {
	name = strings.TrimSpace(name)
	if name == "" || strings.Contains(name, "/") {
		return nil, fmt.Errorf("%w: invalid folder name", domain.ErrInvalidOperation)
	}

	var path string
	if parentID != nil {
		parent, err := s.folderStore.GetByIDAndOwner(ctx, *parentID, ownerID)
		if err != nil {
			return nil, err
		}
		path = parent.Path + "/" + name
	} else {
		path = "/" + name
	}

	// Проверяем, нет ли папки с таким именем на том же уровне
	var siblings []domain.Folder
	var err error
	if parentID != nil {
		siblings, err = s.folderStore.ListChildren(ctx, ownerID, *parentID)
	} else {
		siblings, err = s.folderStore.ListRoots(ctx, ownerID)
	}
	if err != nil {
		return nil, err
	}
	for _, sibling := range siblings {
		if sibling.Name == name {
			return nil, fmt.Errorf("%w: folder %s already exists in this location", domain.ErrConflict, name)
		}
	}

	folder := &domain.Folder{
		Name:     name,
		OwnerID:  ownerID,
		ParentID: parentID,
		Path:     path,
	}

	if err := s.folderStore.Create(ctx, folder); err != nil {
		return nil, err
	}

	s.activity.Record(ctx, ownerID, domain.ActivityCreateFolder, domain.EntityTypeFolder, strconv.FormatInt(folder.ID, 10))

	log.Printf("[FolderService] Folder created: id=%d, path=%s", folder.ID, folder.Path)

	return folder, nil
}

func (s *FolderService) GetFolder(ctx context.Context, folderID, ownerID int64) (*domain.Folder, error) {
	return s.folderStore.GetByIDAndOwner(ctx, folderID, ownerID)
}

func (s *FolderService) GetRootFolders(ctx context.Context, ownerID int64) ([]domain.Folder, error) {
	return s.folderStore.ListRoots(ctx, ownerID)
}

func (s *FolderService) GetSubfolders(ctx context.Context, folderID, ownerID int64) ([]domain.Folder, error) {
	if _, err := s.folderStore.GetByIDAndOwner(ctx, folderID, ownerID); err != nil {
		return nil, err
	}
	return s.folderStore.ListChildren(ctx, ownerID, folderID)
}

// GetFolderTree строит полное дерево папок под виртуальным корнем.
func (s *FolderService) GetFolderTree(ctx context.Context, ownerID int64) (*domain.FolderNode, error) {
	roots, err := s.folderStore.ListRoots(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	subfolders := make([]domain.FolderNode, 0, len(roots))
	for i := range roots {
		node, err := s.buildTree(ctx, &roots[i], ownerID)
		if err != nil {
			return nil, err
		}
		subfolders = append(subfolders, *node)
	}

	return &domain.FolderNode{
		Name:       "My Drive",
		Path:       "/",
		Subfolders: subfolders,
	}, nil
}

func (s *FolderService) RenameFolder(ctx context.Context, folderID int64, newName string, ownerID int64) (*domain.Folder, error) {
	newName = strings.TrimSpace(newName)
	if newName == "" || strings.Contains(newName, "/") {
		return nil, fmt.Errorf("%w: invalid folder name", domain.ErrInvalidOperation)
	}

	folder, err := s.folderStore.GetByIDAndOwner(ctx, folderID, ownerID)
	if err != nil {
		return nil, err
	}

	var newPath string
	if folder.ParentID != nil {
		parent, err := s.folderStore.GetByIDAndOwner(ctx, *folder.ParentID, ownerID)
		if err != nil {
			return nil, err
		}
		newPath = parent.Path + "/" + newName
	} else {
		newPath = "/" + newName
	}

	if err := s.folderStore.Rename(ctx, folderID, newName, newPath); err != nil {
		return nil, err
	}

	s.activity.Record(ctx, ownerID, domain.ActivityRename, domain.EntityTypeFolder, strconv.FormatInt(folderID, 10))

	log.Printf("[FolderService] Folder renamed: id=%d, path=%s -> %s", folderID, folder.Path, newPath)

	folder.Name = newName
	folder.Path = newPath
	return folder, nil
}

func (s *FolderService) DeleteFolder(ctx context.Context, folderID, ownerID int64) error {
	if _, err := s.folderStore.GetByIDAndOwner(ctx, folderID, ownerID); err != nil {
		return err
	}

	if err := s.folderStore.Delete(ctx, folderID); err != nil {
		return err
	}

	s.activity.Record(ctx, ownerID, domain.ActivityDelete, domain.EntityTypeFolder, strconv.FormatInt(folderID, 10))

	log.Printf("[FolderService] Folder deleted: id=%d", folderID)

	return nil
}

func (s *FolderService) buildTree(ctx context.Context, folder *domain.Folder, ownerID int64) (*domain.FolderNode, error) {
	children, err := s.folderStore.ListChildren(ctx, ownerID, folder.ID)
	if err != nil {
		return nil, err
	}

	childNodes := make([]domain.FolderNode, 0, len(children))
	for i := range children {
		node, err := s.buildTree(ctx, &children[i], ownerID)
		if err != nil {
			return nil, err
		}
		childNodes = append(childNodes, *node)
	}

	filesCount, err := s.folderStore.CountFiles(ctx, folder.ID)
	if err != nil {
		return nil, err
	}

	id := folder.ID
	return &domain.FolderNode{
		ID:         &id,
		Name:       folder.Name,
		Path:       folder.Path,
		ParentID:   folder.ParentID,
		FilesCount: filesCount,
		Subfolders: childNodes,
	}, nil
}
