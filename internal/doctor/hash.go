package doctor

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
)

func fileSHA256(path string) (sum string, size int64, err error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", 0, err
	}
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:]), int64(len(data)), nil
}
