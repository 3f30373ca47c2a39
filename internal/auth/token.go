package auth

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/hitoshi/gymqr/internal/model"
)

const tokenIssuer = "gymqr"

var (
	// ErrInvalidToken はトークンの署名・形式が不正であることを表す。
	ErrInvalidToken = errors.New("invalid token")
	// ErrExpiredToken はトークンの有効期限切れを表す。
	ErrExpiredToken = errors.New("token has expired")
)

// Claims はJWTのカスタムクレーム。
// id / email / rol はモバイルクライアントが参照するため名前を変えない。
type Claims struct {
	UserID int64      `json:"id"`
	Email  string     `json:"email"`
	Role   model.Role `json:"rol"`
	jwt.RegisteredClaims
}

// Principal はクレームから呼び出し元情報を取り出す。
func (c *Claims) Principal() *model.Principal {
	return &model.Principal{UserID: c.UserID, Email: c.Email, Role: c.Role}
}

// TokenService はHS256署名のJWTを発行・検証する。
// トークンはステートレスで、失効リストは持たない。
type TokenService struct {
	secret     []byte
	expiration time.Duration
	now        func() time.Time
}

// NewTokenService はTokenServiceを生成する。
func NewTokenService(secret string, expiration time.Duration) *TokenService {
	return &TokenService{
		secret:     []byte(secret),
		expiration: expiration,
		now:        time.Now,
	}
}

// Expiration はトークンの有効期間を返す。
func (s *TokenService) Expiration() time.Duration {
	return s.expiration
}

// Issue はユーザーのアクセストークンを発行する。
func (s *TokenService) Issue(user *model.User) (string, error) {
	return s.issue(user.ID, user.Email, user.Role)
}

func (s *TokenService) issue(userID int64, email string, role model.Role) (string, error) {
	now := s.now()
	claims := Claims{
		UserID: userID,
		Email:  email,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(s.expiration)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    tokenIssuer,
			Subject:   strconv.FormatInt(userID, 10),
			ID:        uuid.NewString(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Verify はトークンを検証してクレームを返す。
func (s *TokenService) Verify(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	},
		jwt.WithIssuer(tokenIssuer),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.UserID <= 0 {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// Authenticate はトークンを検証して呼び出し元を返す。
// middleware.TokenVerifierを実装する。
func (s *TokenService) Authenticate(tokenString string) (*model.Principal, error) {
	claims, err := s.Verify(tokenString)
	if err != nil {
		return nil, err
	}
	return claims.Principal(), nil
}

// Refresh は有効なトークンのクレームから新しいトークンを発行する。
func (s *TokenService) Refresh(principal *model.Principal) (string, error) {
	return s.issue(principal.UserID, principal.Email, principal.Role)
}
