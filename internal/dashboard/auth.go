// Package dashboard — auth.go отвечает за вход администратора.
// Пароль проверяется по Argon2id-хешу из конфигурации, сессии
// живут в памяти процесса (дашборд один, кластеризации нет).
package dashboard

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/crypto/argon2"

	"slack-moderation-bot/internal/common"
)

// sessionTTL — время жизни сессии администратора.
const sessionTTL = 24 * time.Hour

// Auth управляет паролем и сессиями администратора.
type Auth struct {
	passwordHash string

	mu       sync.Mutex
	sessions map[string]time.Time // token → expires_at
}

// NewAuth создаёт менеджер сессий.
func NewAuth(passwordHash string) *Auth {
	return &Auth{
		passwordHash: passwordHash,
		sessions:     make(map[string]time.Time),
	}
}

// Login проверяет пароль и выдаёт токен сессии.
func (a *Auth) Login(password string) (string, error) {
	if !verifyArgon2id(password, a.passwordHash) {
		return "", common.ErrWrongPassword
	}

	token := generateSecureToken()
	a.mu.Lock()
	a.sessions[token] = time.Now().Add(sessionTTL)
	a.mu.Unlock()
	return token, nil
}

// Check проверяет токен сессии. Истёкшие сессии удаляются.
func (a *Auth) Check(token string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	expires, ok := a.sessions[token]
	if !ok {
		return common.ErrSessionExpired
	}
	if time.Now().After(expires) {
		delete(a.sessions, token)
		return common.ErrSessionExpired
	}
	return nil
}

// --- Криптографические утилиты ---

// verifyArgon2id проверяет пароль по хешу Argon2id.
// Формат хеша: $argon2id$v=19$m=65536,t=3,p=2$<salt_base64>$<hash_base64>
func verifyArgon2id(password, encodedHash string) bool {
	parts := strings.Split(encodedHash, "$")
	if len(parts) != 6 {
		log.Error("Некорректный формат хеша Argon2id")
		return false
	}

	var memory uint32
	var iterations uint32
	var parallelism uint8
	_, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &iterations, &parallelism)
	if err != nil {
		log.WithError(err).Error("Ошибка парсинга параметров Argon2id")
		return false
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		log.WithError(err).Error("Ошибка декодирования соли")
		return false
	}

	expectedHash, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		log.WithError(err).Error("Ошибка декодирования хеша")
		return false
	}

	computedHash := argon2.IDKey([]byte(password), salt, iterations, memory, parallelism, uint32(len(expectedHash)))

	// Сравниваем в постоянном времени (защита от timing attack)
	return subtle.ConstantTimeCompare(computedHash, expectedHash) == 1
}

// generateSecureToken генерирует криптографически безопасный токен сессии.
func generateSecureToken() string {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return fmt.Sprintf("fallback-%d", time.Now().UnixNano())
	}
	return base64.URLEncoding.EncodeToString(b)
}
