package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/portside-labs/portside/internal/domain"
)

type MockOperatorRepo struct {
	mock.Mock
}

func (m *MockOperatorRepo) Create(ctx context.Context, op *domain.Operator) error {
	args := m.Called(ctx, op)
	return args.Error(0)
}

func (m *MockOperatorRepo) GetByID(ctx context.Context, id string) (*domain.Operator, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Operator), args.Error(1)
}

func (m *MockOperatorRepo) GetByName(ctx context.Context, name string) (*domain.Operator, error) {
	args := m.Called(ctx, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Operator), args.Error(1)
}

func (m *MockOperatorRepo) List(ctx context.Context) ([]*domain.Operator, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Operator), args.Error(1)
}

func (m *MockOperatorRepo) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

type MockAPIKeyRepo struct {
	mock.Mock
}

func (m *MockAPIKeyRepo) Create(ctx context.Context, key *domain.APIKey) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

func (m *MockAPIKeyRepo) GetByID(ctx context.Context, id string) (*domain.APIKey, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.APIKey), args.Error(1)
}

func (m *MockAPIKeyRepo) GetByHash(ctx context.Context, hash string) (*domain.APIKey, error) {
	args := m.Called(ctx, hash)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.APIKey), args.Error(1)
}

func (m *MockAPIKeyRepo) GetByOperatorID(ctx context.Context, operatorID string) ([]*domain.APIKey, error) {
	args := m.Called(ctx, operatorID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.APIKey), args.Error(1)
}

func (m *MockAPIKeyRepo) Revoke(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockAPIKeyRepo) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

type fixedUUIDGen struct {
	id string
}

func (g *fixedUUIDGen) NewString() string { return g.id }

const testOperatorID = "7b1c8b4a-9d21-4e6f-8a3e-2f1b0c9d8e7f"

func sha256hex(s string) string {
	h := sha256.Sum256([]byte(s))
	return hex.EncodeToString(h[:])
}

func TestCreateOperator(t *testing.T) {
	operators := new(MockOperatorRepo)
	svc := NewAuthService(operators, new(MockAPIKeyRepo), &fixedUUIDGen{id: testOperatorID})

	operators.On("Create", mock.Anything, mock.MatchedBy(func(op *domain.Operator) bool {
		return op.ID == testOperatorID && op.Name == "maria" && op.Email == "maria@example.com"
	})).Return(nil)

	op, err := svc.CreateOperator(context.Background(), "maria", "maria@example.com")
	require.NoError(t, err)
	assert.Equal(t, "maria", op.Name)
	assert.False(t, op.CreatedAt.IsZero())
	operators.AssertExpectations(t)
}

func TestCreateOperator_MissingName(t *testing.T) {
	svc := NewAuthService(new(MockOperatorRepo), new(MockAPIKeyRepo), &fixedUUIDGen{id: testOperatorID})

	_, err := svc.CreateOperator(context.Background(), "", "maria@example.com")
	require.Error(t, err)

	var domainErr *domain.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, domain.ErrCodeValidation, domainErr.Code)
}

func TestCreateAPIKey(t *testing.T) {
	operators := new(MockOperatorRepo)
	keys := new(MockAPIKeyRepo)
	svc := NewAuthService(operators, keys, &fixedUUIDGen{id: "key-id"})

	operators.On("GetByID", mock.Anything, testOperatorID).
		Return(&domain.Operator{ID: testOperatorID, Name: "maria"}, nil)

	var stored *domain.APIKey
	keys.On("Create", mock.Anything, mock.AnythingOfType("*domain.APIKey")).
		Run(func(args mock.Arguments) {
			stored = args.Get(1).(*domain.APIKey)
		}).Return(nil)

	token, err := svc.CreateAPIKey(context.Background(), testOperatorID, "laptop")
	require.NoError(t, err)

	assert.True(t, IsValidAPIToken(token))
	require.NotNil(t, stored)
	assert.Equal(t, testOperatorID, stored.OperatorID)
	assert.Equal(t, "laptop", stored.Name)
	// Only the hash is stored, never the token itself.
	assert.Equal(t, sha256hex(token), stored.KeyHash)
	assert.NotContains(t, stored.KeyHash, "pts_")
}

func TestCreateAPIKey_UnknownOperator(t *testing.T) {
	operators := new(MockOperatorRepo)
	svc := NewAuthService(operators, new(MockAPIKeyRepo), &fixedUUIDGen{id: "key-id"})

	operators.On("GetByID", mock.Anything, "missing").Return(nil, domain.ErrOperatorNotFound)

	_, err := svc.CreateAPIKey(context.Background(), "missing", "laptop")
	require.ErrorIs(t, err, domain.ErrOperatorNotFound)
}

func TestCreateAPIKeyWithToken(t *testing.T) {
	operators := new(MockOperatorRepo)
	keys := new(MockAPIKeyRepo)
	svc := NewAuthService(operators, keys, &fixedUUIDGen{id: "key-id"})

	token := "pts_" + "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef"

	operators.On("GetByID", mock.Anything, testOperatorID).
		Return(&domain.Operator{ID: testOperatorID, Name: "maria"}, nil)
	keys.On("Create", mock.Anything, mock.MatchedBy(func(k *domain.APIKey) bool {
		return k.KeyHash == sha256hex(token) && k.Name == "bootstrap"
	})).Return(nil)

	err := svc.CreateAPIKeyWithToken(context.Background(), testOperatorID, "bootstrap", token)
	require.NoError(t, err)
	keys.AssertExpectations(t)
}

func TestCreateAPIKeyWithToken_BadFormat(t *testing.T) {
	svc := NewAuthService(new(MockOperatorRepo), new(MockAPIKeyRepo), &fixedUUIDGen{id: "key-id"})

	err := svc.CreateAPIKeyWithToken(context.Background(), testOperatorID, "bootstrap", "pts_tooshort")
	require.Error(t, err)

	var domainErr *domain.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, domain.ErrCodeValidation, domainErr.Code)
}

func TestValidateAPIKey(t *testing.T) {
	operators := new(MockOperatorRepo)
	keys := new(MockAPIKeyRepo)
	svc := NewAuthService(operators, keys, &fixedUUIDGen{id: "key-id"})

	token := "pts_" + "aaaabbbbccccddddeeeeffff0000111122223333444455556666777788889999"

	keys.On("GetByHash", mock.Anything, sha256hex(token)).Return(&domain.APIKey{
		ID:         "key-id",
		OperatorID: testOperatorID,
		KeyHash:    sha256hex(token),
	}, nil)
	operators.On("GetByID", mock.Anything, testOperatorID).
		Return(&domain.Operator{ID: testOperatorID, Name: "maria"}, nil)

	name, err := svc.ValidateAPIKey(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, "maria", name)
}

func TestValidateAPIKey_Revoked(t *testing.T) {
	keys := new(MockAPIKeyRepo)
	svc := NewAuthService(new(MockOperatorRepo), keys, &fixedUUIDGen{id: "key-id"})

	token := "pts_" + "aaaabbbbccccddddeeeeffff0000111122223333444455556666777788889999"
	revokedAt := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)

	keys.On("GetByHash", mock.Anything, sha256hex(token)).Return(&domain.APIKey{
		ID:         "key-id",
		OperatorID: testOperatorID,
		KeyHash:    sha256hex(token),
		RevokedAt:  &revokedAt,
	}, nil)

	_, err := svc.ValidateAPIKey(context.Background(), token)
	require.ErrorIs(t, err, domain.ErrAPIKeyRevoked)
}

func TestValidateAPIKey_UnknownMapsToInvalid(t *testing.T) {
	keys := new(MockAPIKeyRepo)
	svc := NewAuthService(new(MockOperatorRepo), keys, &fixedUUIDGen{id: "key-id"})

	token := "pts_" + "aaaabbbbccccddddeeeeffff0000111122223333444455556666777788889999"
	keys.On("GetByHash", mock.Anything, sha256hex(token)).Return(nil, domain.ErrAPIKeyNotFound)

	_, err := svc.ValidateAPIKey(context.Background(), token)
	require.ErrorIs(t, err, domain.ErrInvalidAPIKey)
}

func TestValidateAPIKey_BadFormatSkipsLookup(t *testing.T) {
	keys := new(MockAPIKeyRepo)
	svc := NewAuthService(new(MockOperatorRepo), keys, &fixedUUIDGen{id: "key-id"})

	for _, token := range []string{"", "pts_", "bearer-token", "tok_0123", "pts_xyz"} {
		_, err := svc.ValidateAPIKey(context.Background(), token)
		require.ErrorIs(t, err, domain.ErrInvalidAPIKey, "token %q", token)
	}
	keys.AssertNotCalled(t, "GetByHash", mock.Anything, mock.Anything)
}

func TestIsValidAPIToken(t *testing.T) {
	valid := "pts_" + "0123456789abcdef0123456789abcdef0123456789abcdef0123456789ABCDEF"
	assert.True(t, IsValidAPIToken(valid))

	assert.False(t, IsValidAPIToken("pts_"+"0123456789abcdef"))
	assert.False(t, IsValidAPIToken("sk_"+"0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef"))
	assert.False(t, IsValidAPIToken("pts_"+"zzzz567890abcdef0123456789abcdef0123456789abcdef0123456789abcdef"))
}

func TestRevokeAPIKey(t *testing.T) {
	keys := new(MockAPIKeyRepo)
	svc := NewAuthService(new(MockOperatorRepo), keys, &fixedUUIDGen{id: "key-id"})

	keys.On("Revoke", mock.Anything, "key-id").Return(nil)
	require.NoError(t, svc.RevokeAPIKey(context.Background(), "key-id"))

	err := svc.RevokeAPIKey(context.Background(), "")
	require.Error(t, err)
}
