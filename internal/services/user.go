package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/crypto/bcrypt"

	"github.com/markjakearzadon/schoolpay-gobackend/internal/models"
)

type UserService struct {
	log        *slog.Logger
	users      UserStore
	jwtSecret  []byte
	tokenTTL   time.Duration
	saltRounds int
}

func NewUserService(log *slog.Logger, users UserStore, jwtSecret string, tokenTTL time.Duration, saltRounds int) *UserService {
	if saltRounds < bcrypt.MinCost {
		saltRounds = bcrypt.DefaultCost
	}
	return &UserService{
		log:        log,
		users:      users,
		jwtSecret:  []byte(jwtSecret),
		tokenTTL:   tokenTTL,
		saltRounds: saltRounds,
	}
}

type Credentials struct {
	Username string `json:"username" validate:"required,max=64"`
	Password string `json:"password" validate:"required,min=6,max=72"`
}

// Claims is the identity carried by an issued token.
type Claims struct {
	UserID string `json:"userId"`
	jwt.RegisteredClaims
}

func (s *UserService) Signup(ctx context.Context, creds Credentials) error {
	creds.Username = strings.TrimSpace(creds.Username)
	if err := validateStruct(creds); err != nil {
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(creds.Password), s.saltRounds)
	if err != nil {
		return fmt.Errorf("%w: failed to hash password: %v", ErrInternal, err)
	}

	user := &models.User{
		ID:        primitive.NewObjectID(),
		Username:  creds.Username,
		HPassword: string(hash),
		CreatedAt: time.Now().UTC(),
	}
	if err := s.users.InsertUser(ctx, user); err != nil {
		if errors.Is(err, models.ErrDuplicateKey) {
			return ErrUserExists
		}
		s.log.Error("failed to create user", "username", creds.Username, "err", err)
		return fmt.Errorf("%w: failed to create user: %v", ErrInternal, err)
	}
	s.log.Info("user created", "user_id", user.ID.Hex())
	return nil
}

// Login checks the password and issues a signed token.
func (s *UserService) Login(ctx context.Context, creds Credentials) (string, error) {
	creds.Username = strings.TrimSpace(creds.Username)
	if creds.Username == "" || creds.Password == "" {
		return "", validationf("Username and password required")
	}

	user, err := s.users.FindUserByUsername(ctx, creds.Username)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return "", ErrInvalidCredentials
		}
		s.log.Error("failed to fetch user", "username", creds.Username, "err", err)
		return "", fmt.Errorf("%w: failed to fetch user: %v", ErrInternal, err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.HPassword), []byte(creds.Password)); err != nil {
		return "", ErrInvalidCredentials
	}

	now := time.Now()
	claims := Claims{
		UserID: user.ID.Hex(),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID.Hex(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenTTL)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.jwtSecret)
	if err != nil {
		return "", fmt.Errorf("%w: failed to sign token: %v", ErrInternal, err)
	}
	return token, nil
}

// VerifyToken returns the identity of a valid, unexpired token.
func (s *UserService) VerifyToken(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.jwtSecret, nil
	})
	if err != nil || !token.Valid {
		return nil, fmt.Errorf("%w: invalid token", ErrUnauthorized)
	}
	return claims, nil
}
