package utils

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

const BcryptCost = 12

// GenerateStationKey выдаёт станции непредсказуемый ключ доступа.
// Ключ показывается ровно один раз при регистрации; в БД хранится
// только bcrypt-хеш.
func GenerateStationKey() (string, error) {
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate station key: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

func HashStationKey(key string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(key), BcryptCost)
	return string(bytes), err
}

func CheckStationKey(key, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(key))
	return err == nil
}
