package domain

import "errors"

// Базовые ошибки уровня домена. Сервисы оборачивают их через fmt.Errorf("%w"),
// хендлеры сопоставляют с HTTP-статусами через errors.Is.
var (
	ErrNotFound         = errors.New("resource not found")
	ErrUnauthorized     = errors.New("access denied")
	ErrQuotaExceeded    = errors.New("storage quota exceeded")
	ErrInvalidOperation = errors.New("invalid operation")
	ErrStorageIO        = errors.New("storage operation failed")
	ErrConflict         = errors.New("resource already exists")
)
