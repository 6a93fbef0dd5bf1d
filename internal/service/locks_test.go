package service

import (
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestFileLockSerializesSameFile(t *testing.T) {
	table := newFileLockTable()
	fileUUID := uuid.New()

	const workers = 50
	counter := 0
	var wg sync.WaitGroup

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := table.Lock(fileUUID)
			counter++
			unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, workers, counter)

	// Таблица не копит записи после освобождения
	table.mu.Lock()
	assert.Empty(t, table.locks)
	table.mu.Unlock()
}

func TestFileLockIndependentFiles(t *testing.T) {
	table := newFileLockTable()

	// Блокировка одного файла не мешает другому
	unlockA := table.Lock(uuid.New())
	defer unlockA()

	done := make(chan struct{})
	go func() {
		unlockB := table.Lock(uuid.New())
		unlockB()
		close(done)
	}()

	<-done
}
