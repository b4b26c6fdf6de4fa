package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"github.com/portside-labs/portside/internal/domain"
)

const apiKeyPrefix = "pts_"

type OperatorRepository interface {
	Create(ctx context.Context, op *domain.Operator) error
	GetByID(ctx context.Context, id string) (*domain.Operator, error)
	GetByName(ctx context.Context, name string) (*domain.Operator, error)
	List(ctx context.Context) ([]*domain.Operator, error)
	Delete(ctx context.Context, id string) error
}

type APIKeyRepository interface {
	Create(ctx context.Context, key *domain.APIKey) error
	GetByID(ctx context.Context, id string) (*domain.APIKey, error)
	GetByHash(ctx context.Context, hash string) (*domain.APIKey, error)
	GetByOperatorID(ctx context.Context, operatorID string) ([]*domain.APIKey, error)
	Revoke(ctx context.Context, id string) error
	Delete(ctx context.Context, id string) error
}

type AuthService struct {
	operatorRepo OperatorRepository
	keyRepo      APIKeyRepository
	uuidGen      UUIDGenerator
}

func NewAuthService(operatorRepo OperatorRepository, keyRepo APIKeyRepository, uuidGen UUIDGenerator) *AuthService {
	return &AuthService{
		operatorRepo: operatorRepo,
		keyRepo:      keyRepo,
		uuidGen:      uuidGen,
	}
}

func (s *AuthService) CreateOperator(ctx context.Context, name, email string) (*domain.Operator, error) {
	if name == "" {
		return nil, domain.NewDomainError(domain.ErrCodeValidation, "operator name is required")
	}

	op := &domain.Operator{
		ID:        s.uuidGen.NewString(),
		Name:      name,
		Email:     email,
		CreatedAt: time.Now().UTC(),
	}

	if err := domain.ValidateOperator(op); err != nil {
		return nil, err
	}

	if err := s.operatorRepo.Create(ctx, op); err != nil {
		return nil, err
	}

	return op, nil
}

func (s *AuthService) CreateAPIKey(ctx context.Context, operatorID, name string) (string, error) {
	if operatorID == "" {
		return "", domain.NewDomainError(domain.ErrCodeValidation, "operator ID is required")
	}
	if name == "" {
		return "", domain.NewDomainError(domain.ErrCodeValidation, "API key name is required")
	}

	_, err := s.operatorRepo.GetByID(ctx, operatorID)
	if err != nil {
		return "", err
	}

	token, err := generateAPIToken()
	if err != nil {
		return "", domain.NewDomainErrorWithCause(domain.ErrCodeInternalError, "failed to generate API key", err)
	}

	hash := hashToken(token)

	key := &domain.APIKey{
		ID:         s.uuidGen.NewString(),
		OperatorID: operatorID,
		Name:       name,
		KeyHash:    hash,
		CreatedAt:  time.Now().UTC(),
		RevokedAt:  nil,
	}

	if err := domain.ValidateAPIKey(key); err != nil {
		return "", err
	}

	if err := s.keyRepo.Create(ctx, key); err != nil {
		return "", err
	}

	return token, nil
}

func (s *AuthService) CreateAPIKeyWithToken(ctx context.Context, operatorID, name, token string) error {
	if operatorID == "" {
		return domain.NewDomainError(domain.ErrCodeValidation, "operator ID is required")
	}
	if name == "" {
		return domain.NewDomainError(domain.ErrCodeValidation, "API key name is required")
	}
	if !IsValidAPIToken(token) {
		return domain.NewDomainError(domain.ErrCodeValidation, "invalid API key format (expected pts_<64 hex chars>)")
	}

	_, err := s.operatorRepo.GetByID(ctx, operatorID)
	if err != nil {
		return err
	}

	hash := hashToken(token)

	key := &domain.APIKey{
		ID:         s.uuidGen.NewString(),
		OperatorID: operatorID,
		Name:       name,
		KeyHash:    hash,
		CreatedAt:  time.Now().UTC(),
		RevokedAt:  nil,
	}

	if err := domain.ValidateAPIKey(key); err != nil {
		return err
	}

	return s.keyRepo.Create(ctx, key)
}

// ValidateAPIKey resolves a bearer token to the operator name it belongs
// to. The operator name stamps reviewedBy on review actions.
func (s *AuthService) ValidateAPIKey(ctx context.Context, token string) (string, error) {
	if !IsValidAPIToken(token) {
		return "", domain.ErrInvalidAPIKey
	}

	hash := hashToken(token)

	key, err := s.keyRepo.GetByHash(ctx, hash)
	if err != nil {
		if err == domain.ErrAPIKeyNotFound {
			return "", domain.ErrInvalidAPIKey
		}
		return "", err
	}

	if key.IsRevoked() {
		return "", domain.ErrAPIKeyRevoked
	}

	op, err := s.operatorRepo.GetByID(ctx, key.OperatorID)
	if err != nil {
		return "", err
	}

	return op.Name, nil
}

func (s *AuthService) RevokeAPIKey(ctx context.Context, keyID string) error {
	if keyID == "" {
		return domain.NewDomainError(domain.ErrCodeValidation, "API key ID is required")
	}

	return s.keyRepo.Revoke(ctx, keyID)
}

func (s *AuthService) ListAPIKeys(ctx context.Context, operatorID string) ([]*domain.APIKey, error) {
	if operatorID == "" {
		return nil, domain.NewDomainError(domain.ErrCodeValidation, "operator ID is required")
	}

	return s.keyRepo.GetByOperatorID(ctx, operatorID)
}

func (s *AuthService) GetAPIKeyByHash(ctx context.Context, token string) (*domain.APIKey, error) {
	if !IsValidAPIToken(token) {
		return nil, domain.ErrInvalidAPIKey
	}
	hash := hashToken(token)
	return s.keyRepo.GetByHash(ctx, hash)
}

func generateAPIToken() (string, error) {
	bytes := make([]byte, 32)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return apiKeyPrefix + hex.EncodeToString(bytes), nil
}

func hashToken(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:])
}

func IsValidAPIToken(token string) bool {
	if !strings.HasPrefix(token, apiKeyPrefix) {
		return false
	}
	hexPart := token[len(apiKeyPrefix):]
	if len(hexPart) != 64 {
		return false
	}
	for _, c := range hexPart {
		if !((c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')) {
			return false
		}
	}
	return true
}
