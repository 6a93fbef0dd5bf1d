package service

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
)

const digestBufferSize = 8192

// ChecksumComputer вычисляет контент-отпечаток SHA-256 за один проход
// по потоку, фиксированными блоками, без буферизации всего файла.
// Одинаковые байты всегда дают одинаковый отпечаток — на этом держится
// и дедупликация, и проверка целостности.
type ChecksumComputer struct{}

// Digest читает поток до конца и возвращает hex-отпечаток и число
// прочитанных байт. Ошибки чтения пробрасываются как есть.
func (ChecksumComputer) Digest(r io.Reader) (string, int64, error) {
	h := sha256.New()
	buf := make([]byte, digestBufferSize)

	n, err := io.CopyBuffer(h, r, buf)
	if err != nil {
		return "", 0, fmt.Errorf("failed to read content: %w", err)
	}

	return hex.EncodeToString(h.Sum(nil)), n, nil
}
