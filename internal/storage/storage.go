package storage

import (
	"context"
	"io"
)

// Backend определяет интерфейс физического хранилища. Обе реализации
// (локальный диск и S3-совместимое хранилище) обязаны вести себя одинаково:
// Store всегда пишет новый объект, Fetch возвращает ровно те байты, которые
// были сохранены, Delete для отсутствующего ключа не считается ошибкой.
type Backend interface {
	Store(ctx context.Context, content io.Reader, ownerID int64, filename string) (string, error)
	Fetch(ctx context.Context, storageKey string) (io.ReadCloser, error)
	Delete(ctx context.Context, storageKey string) error
	Exists(ctx context.Context, storageKey string) (bool, error)
	Size(ctx context.Context, storageKey string) (int64, error)
}
