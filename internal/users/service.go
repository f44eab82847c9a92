// Package users is the local user directory. It answers the create-or-get contract the
// admin order flow relies on and offers a development sign-up that mints tokens.
package users

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/norberto-e-888/pos-app/pkg/auth"
	"github.com/norberto-e-888/pos-app/pkg/config"
	"github.com/norberto-e-888/pos-app/pkg/db"
	"github.com/norberto-e-888/pos-app/pkg/db/models"
	"github.com/norberto-e-888/pos-app/pkg/enums"
	pkgerrors "github.com/norberto-e-888/pos-app/pkg/errors"
	"github.com/norberto-e-888/pos-app/pkg/logger"
	"github.com/norberto-e-888/pos-app/pkg/outbox"
	"github.com/norberto-e-888/pos-app/pkg/outbox/payloads"
)

type eventStager interface {
	Stage(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// SignUpResult is the dev sign-up response.
type SignUpResult struct {
	User  *models.User `json:"user"`
	Token string       `json:"jwt"`
}

// Service implements the directory.
type Service struct {
	tx     txRunner
	repo   *Repository
	outbox eventStager
	jwt    config.JWTConfig
	logg   *logger.Logger
	now    func() time.Time
}

type ServiceParams struct {
	Tx         txRunner
	Repository *Repository
	Outbox     eventStager
	JWT        config.JWTConfig
	Logger     *logger.Logger
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Tx == nil {
		return nil, errors.New("transaction runner required")
	}
	if params.Repository == nil {
		return nil, errors.New("user repository required")
	}
	if params.Outbox == nil {
		return nil, errors.New("outbox required")
	}
	return &Service{
		tx:     params.Tx,
		repo:   params.Repository,
		outbox: params.Outbox,
		jwt:    params.JWT,
		logg:   params.Logger,
		now:    func() time.Time { return time.Now().UTC() },
	}, nil
}

// CreateOrGet returns the user with email, creating a customer when none exists. The
// creation and its auth.sign-up event are written through the caller's tx.
func (s *Service) CreateOrGet(ctx context.Context, tx *gorm.DB, email string) (*models.User, error) {
	if tx == nil {
		return nil, errors.New("transaction required")
	}
	normalized, err := validateEmail(email)
	if err != nil {
		return nil, err
	}
	repo := s.repo.WithTx(tx)
	existing, err := repo.FindByEmail(ctx, normalized)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}
	return s.create(ctx, tx, normalized, enums.RoleCustomer)
}

// SignUp registers a user and returns an access token for it. It exists for local
// testing only; the API mounts it outside production.
func (s *Service) SignUp(ctx context.Context, email string, role enums.Role) (*SignUpResult, error) {
	normalized, err := validateEmail(email)
	if err != nil {
		return nil, err
	}
	if role == "" {
		role = enums.RoleCustomer
	}
	if !role.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown role %q", role))
	}

	var user *models.User
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		existing, err := s.repo.WithTx(tx).FindByEmail(ctx, normalized)
		if err != nil {
			return err
		}
		if existing != nil {
			return pkgerrors.New(pkgerrors.CodeConflict, "user already exists")
		}
		created, err := s.create(ctx, tx, normalized, role)
		if err != nil {
			return err
		}
		user = created
		return nil
	})
	if err != nil {
		if db.IsUniqueViolation(err, "") {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "user already exists")
		}
		return nil, err
	}

	token, err := auth.MintAccessToken(s.jwt, s.now(), auth.AccessTokenPayload{
		UserID: user.ID,
		Roles:  []enums.Role{user.Role},
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mint access token")
	}
	return &SignUpResult{User: user, Token: token}, nil
}

// Get returns one user.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return s.repo.FindByID(ctx, id)
}

func (s *Service) create(ctx context.Context, tx *gorm.DB, email string, role enums.Role) (*models.User, error) {
	user := &models.User{Email: email, Role: role}
	if err := s.repo.WithTx(tx).Create(ctx, user); err != nil {
		return nil, err
	}
	err := s.outbox.Stage(ctx, tx, outbox.DomainEvent{
		EventType:           enums.EventAuthSignUp,
		Exchange:            enums.ExchangeAuth,
		RoutingKey:          string(role),
		AggregateCollection: enums.AggregateUsers,
		AggregateID:         user.ID.String(),
		Data: payloads.UserSignedUpEvent{
			ID:    user.ID,
			Email: user.Email,
			Role:  user.Role,
		},
	})
	if err != nil {
		return nil, err
	}
	if s.logg != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{"user_id": user.ID, "role": role})
		s.logg.Info(logCtx, "user created")
	}
	return user, nil
}

func validateEmail(email string) (string, error) {
	normalized := NormalizeEmail(email)
	if normalized == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "email is required")
	}
	if _, err := mail.ParseAddress(normalized); err != nil {
		return "", pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid email %q", email))
	}
	return normalized, nil
}
