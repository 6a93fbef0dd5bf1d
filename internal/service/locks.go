package service

import (
	"sync"

	"github.com/google/uuid"
)

// fileLockTable сериализует мутации одного файла: параллельные update/restore
// не должны гонять за version_number и порядок ретеншена. Записи таблицы
// освобождаются, когда последний держатель отпускает блокировку.
type fileLockTable struct {
	mu    sync.Mutex
	locks map[uuid.UUID]*fileLock
}

type fileLock struct {
	mu   sync.Mutex
	refs int
}

func newFileLockTable() *fileLockTable {
	return &fileLockTable{locks: make(map[uuid.UUID]*fileLock)}
}

// Lock блокирует файл и возвращает функцию освобождения.
func (t *fileLockTable) Lock(fileUUID uuid.UUID) func() {
	t.mu.Lock()
	l, ok := t.locks[fileUUID]
	if !ok {
		l = &fileLock{}
		t.locks[fileUUID] = l
	}
	l.refs++
	t.mu.Unlock()

	l.mu.Lock()

	return func() {
		l.mu.Unlock()

		t.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(t.locks, fileUUID)
		}
		t.mu.Unlock()
	}
}
