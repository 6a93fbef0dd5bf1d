package storage

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strconv"

	"github.com/google/uuid"

	"cloudsyncdrive/internal/domain"
)

// LocalBackend хранит объекты на локальном диске, раскладывая их
// по подкаталогам владельцев. Ключ — относительный путь <ownerID>/<uuid>_<имя>.
type LocalBackend struct {
	uploadDir string
}

func NewLocalBackend(conf *LocalConfig) (*LocalBackend, error) {
	if conf == nil || conf.UploadDir == "" {
		return nil, fmt.Errorf("upload directory is required")
	}

	if err := os.MkdirAll(conf.UploadDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create upload directory: %w", err)
	}

	return &LocalBackend{uploadDir: conf.UploadDir}, nil
}

func (b *LocalBackend) Store(ctx context.Context, content io.Reader, ownerID int64, filename string) (string, error) {
	if content == nil {
		return "", fmt.Errorf("content is required")
	}

	ownerDir := filepath.Join(b.uploadDir, strconv.FormatInt(ownerID, 10))
	if err := os.MkdirAll(ownerDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create owner directory: %w", err)
	}

	uniqueName := uuid.New().String() + "_" + filepath.Base(filename)
	fullPath := filepath.Join(ownerDir, uniqueName)

	f, err := os.OpenFile(fullPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("failed to create file: %w", err)
	}

	if _, err := io.Copy(f, content); err != nil {
		f.Close()
		// Не оставляем усечённый объект
		if rmErr := os.Remove(fullPath); rmErr != nil {
			log.Printf("[LocalStorage] failed to remove partial file %s: %v", fullPath, rmErr)
		}
		return "", fmt.Errorf("failed to write file: %w", err)
	}

	if err := f.Close(); err != nil {
		return "", fmt.Errorf("failed to close file: %w", err)
	}

	// Ключ — относительный путь внутри каталога хранилища
	return strconv.FormatInt(ownerID, 10) + "/" + uniqueName, nil
}

func (b *LocalBackend) Fetch(ctx context.Context, storageKey string) (io.ReadCloser, error) {
	f, err := os.Open(b.resolve(storageKey))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: object %s", domain.ErrNotFound, storageKey)
		}
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	return f, nil
}

func (b *LocalBackend) Delete(ctx context.Context, storageKey string) error {
	err := os.Remove(b.resolve(storageKey))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	return nil
}

func (b *LocalBackend) Exists(ctx context.Context, storageKey string) (bool, error) {
	_, err := os.Stat(b.resolve(storageKey))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to stat file: %w", err)
	}
	return true, nil
}

func (b *LocalBackend) Size(ctx context.Context, storageKey string) (int64, error) {
	info, err := os.Stat(b.resolve(storageKey))
	if err != nil {
		if os.IsNotExist(err) {
			return 0, fmt.Errorf("%w: object %s", domain.ErrNotFound, storageKey)
		}
		return 0, fmt.Errorf("failed to stat file: %w", err)
	}
	return info.Size(), nil
}

func (b *LocalBackend) resolve(storageKey string) string {
	return filepath.Join(b.uploadDir, filepath.FromSlash(storageKey))
}
