// Package services contains the server-side business logic: generic record
// mutations with attachments and auditing, authentication, permission maps
// and the cash register auto-close job.
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/varejo/internal/common"
	"github.com/dmitrijs2005/varejo/internal/dbx"
	"github.com/dmitrijs2005/varejo/internal/logging"
	"github.com/dmitrijs2005/varejo/internal/server/auth"
	"github.com/dmitrijs2005/varejo/internal/server/config"
	"github.com/dmitrijs2005/varejo/internal/server/models"
	"github.com/dmitrijs2005/varejo/internal/server/repositories/repomanager"
	"golang.org/x/crypto/bcrypt"
)

// TokenPair bundles a short-lived access token and a long-lived refresh token.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// AuthService is the auth provider: it owns credentials, checks passwords
// and mints token pairs.
type AuthService struct {
	db                           *sql.DB
	repomanager                  repomanager.RepositoryManager
	jwtSecret                    []byte
	accessTokenValidityDuration  time.Duration
	refreshTokenValidityDuration time.Duration
	bcryptCost                   int
	logger                       logging.Logger
}

func NewAuthService(db *sql.DB, m repomanager.RepositoryManager, cfg *config.Config, logger logging.Logger) *AuthService {
	return &AuthService{
		db:                           db,
		repomanager:                  m,
		jwtSecret:                    []byte(cfg.SecretKey),
		accessTokenValidityDuration:  cfg.AccessTokenValidityDuration,
		refreshTokenValidityDuration: cfg.RefreshTokenValidityDuration,
		bcryptCost:                   bcrypt.DefaultCost,
		logger:                       logger.With("module", "auth"),
	}
}

// SignUp stores a new identity and returns its id.
func (s *AuthService) SignUp(ctx context.Context, email, password string) (string, error) {
	if email == "" || password == "" {
		return "", common.ErrMissingCredentials
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	identity, err := s.repomanager.Identities(s.db).Create(ctx, &models.Identity{Email: email, PasswordHash: hash})
	if err != nil {
		return "", fmt.Errorf("error creating identity: %w", err)
	}
	s.logger.Info(ctx, "identity created", "id", identity.ID)
	return identity.ID, nil
}

// Login checks the password and returns a new TokenPair. Unknown emails and
// wrong passwords both yield ErrorUnauthorized.
func (s *AuthService) Login(ctx context.Context, email, password string) (*TokenPair, string, error) {
	if email == "" || password == "" {
		return nil, "", common.ErrMissingCredentials
	}
	identity, err := s.repomanager.Identities(s.db).GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, "", common.ErrorUnauthorized
		}
		return nil, "", common.ErrorInternal
	}
	if bcrypt.CompareHashAndPassword(identity.PasswordHash, []byte(password)) != nil {
		return nil, "", common.ErrorUnauthorized
	}

	if n, err := s.repomanager.RefreshTokens(s.db).DeleteExpired(ctx); err != nil {
		s.logger.Warn(ctx, "expired token cleanup failed", "error", err)
	} else if n > 0 {
		s.logger.Debug(ctx, "expired tokens removed", "count", n)
	}

	pair, err := s.generateTokenPair(ctx, identity.ID, s.db)
	if err != nil {
		return nil, "", err
	}
	return pair, identity.ID, nil
}

// Refresh validates a refresh token, rotates it transactionally, and
// returns a fresh TokenPair. Expired tokens yield ErrRefreshTokenExpired.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	token, err := s.repomanager.RefreshTokens(s.db).Find(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrorUnauthorized
		}
		return nil, fmt.Errorf("error searching refresh token: %w", err)
	}
	if token.Expires.Before(time.Now()) {
		return nil, common.ErrRefreshTokenExpired
	}

	var pair *TokenPair
	if err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := s.repomanager.RefreshTokens(tx).Delete(ctx, refreshToken); err != nil {
			return fmt.Errorf("error deleting refresh token: %w", err)
		}
		var genErr error
		pair, genErr = s.generateTokenPair(ctx, token.UserID, tx)
		return genErr
	}); err != nil {
		return nil, err
	}
	return pair, nil
}

// Authenticate resolves an access token to its actor id.
func (s *AuthService) Authenticate(accessToken string) (string, error) {
	return auth.GetUserIDFromToken(accessToken, s.jwtSecret)
}

func (s *AuthService) generateTokenPair(ctx context.Context, userID string, db dbx.DBTX) (*TokenPair, error) {
	access, err := auth.GenerateToken(userID, s.jwtSecret, s.accessTokenValidityDuration)
	if err != nil {
		return nil, common.ErrorInternal
	}
	refresh, err := common.MakeRandHexString(32)
	if err != nil {
		return nil, common.ErrorInternal
	}
	if err := s.repomanager.RefreshTokens(db).Create(ctx, userID, refresh, s.refreshTokenValidityDuration); err != nil {
		return nil, common.ErrorInternal
	}
	return &TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}
