package services

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/markjakearzadon/schoolpay-gobackend/internal/db/memstore"
	"github.com/markjakearzadon/schoolpay-gobackend/internal/logging"
)

func newUserService(ttl time.Duration) (*UserService, *memstore.Store) {
	store := memstore.New()
	return NewUserService(logging.Discard(), store, "test-secret", ttl, bcrypt.MinCost), store
}

func TestSignupAndLogin(t *testing.T) {
	svc, store := newUserService(time.Hour)
	ctx := context.Background()

	require.NoError(t, svc.Signup(ctx, Credentials{Username: " admin ", Password: "s3cret!"}))

	user, err := store.FindUserByUsername(ctx, "admin")
	require.NoError(t, err)
	assert.NotEqual(t, "s3cret!", user.HPassword)

	token, err := svc.Login(ctx, Credentials{Username: "admin", Password: "s3cret!"})
	require.NoError(t, err)

	claims, err := svc.VerifyToken(token)
	require.NoError(t, err)
	assert.Equal(t, user.ID.Hex(), claims.UserID)
}

func TestSignup_Rejections(t *testing.T) {
	svc, _ := newUserService(time.Hour)
	ctx := context.Background()

	require.ErrorIs(t, svc.Signup(ctx, Credentials{Username: "", Password: "s3cret!"}), ErrValidation)
	require.ErrorIs(t, svc.Signup(ctx, Credentials{Username: "bob", Password: "123"}), ErrValidation)

	require.NoError(t, svc.Signup(ctx, Credentials{Username: "bob", Password: "s3cret!"}))
	require.ErrorIs(t, svc.Signup(ctx, Credentials{Username: "bob", Password: "other-pass"}), ErrUserExists)
}

func TestLogin_Rejections(t *testing.T) {
	svc, _ := newUserService(time.Hour)
	ctx := context.Background()
	require.NoError(t, svc.Signup(ctx, Credentials{Username: "bob", Password: "s3cret!"}))

	_, err := svc.Login(ctx, Credentials{Username: "bob"})
	require.ErrorIs(t, err, ErrValidation)

	_, err = svc.Login(ctx, Credentials{Username: "bob", Password: "wrong-pass"})
	require.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = svc.Login(ctx, Credentials{Username: "alice", Password: "s3cret!"})
	require.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestVerifyToken_Rejections(t *testing.T) {
	svc, _ := newUserService(-time.Minute)
	ctx := context.Background()
	require.NoError(t, svc.Signup(ctx, Credentials{Username: "bob", Password: "s3cret!"}))

	expired, err := svc.Login(ctx, Credentials{Username: "bob", Password: "s3cret!"})
	require.NoError(t, err)
	_, err = svc.VerifyToken(expired)
	require.ErrorIs(t, err, ErrUnauthorized)

	forged, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{UserID: "x"}).SignedString([]byte("other-secret"))
	require.NoError(t, err)
	_, err = svc.VerifyToken(forged)
	require.ErrorIs(t, err, ErrUnauthorized)

	_, err = svc.VerifyToken("not-a-token")
	require.ErrorIs(t, err, ErrUnauthorized)
}
