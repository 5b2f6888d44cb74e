package saga

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/google/uuid"

	"github.com/studyhub/study-tracker/internal/domain/shared"
	"github.com/studyhub/study-tracker/internal/domain/user"
	"github.com/studyhub/study-tracker/pkg/clock"
)

// ══════════════════════════════════════════════════════════════════════════════
// REGISTRATION SAGA
// Business process: registration of a new user.
// Flow: Validate → Check Existence → Hash Password → Create User →
//
//	Publish Event
//
// ══════════════════════════════════════════════════════════════════════════════

// MinPasswordLength is the minimum accepted password length.
const MinPasswordLength = 8

// RegistrationInput contains all data required to register a new user.
type RegistrationInput struct {
	// Email - email for authentication (required).
	Email string

	// Password - raw password; hashed before anything is stored (required).
	Password string

	// DisplayName - display name (optional, falls back to the email's
	// local part).
	DisplayName string

	// Timezone - IANA timezone (optional, defaults to UTC).
	Timezone string
}

// Validate checks if the input is valid for registration.
func (i RegistrationInput) Validate() error {
	if i.Email == "" {
		return errors.New("registration: email is required")
	}
	if len(i.Password) < MinPasswordLength {
		return shared.ErrWeakPassword
	}
	return nil
}

// RegistrationResult contains the result of a successful registration.
type RegistrationResult struct {
	// User - the newly created user entity.
	User *user.User

	// RegisteredAt - timestamp of successful registration.
	RegisteredAt time.Time
}

// RegistrationStep represents a step in the registration process.
type RegistrationStep string

const (
	RegStepValidateInput  RegistrationStep = "validate_input"
	RegStepCheckExistence RegistrationStep = "check_existence"
	RegStepHashPassword   RegistrationStep = "hash_password"
	RegStepCreateUser     RegistrationStep = "create_user"
	RegStepPublishEvent   RegistrationStep = "publish_event"
)

// ══════════════════════════════════════════════════════════════════════════════
// SAGA IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// RegistrationSaga orchestrates the user registration process.
type RegistrationSaga struct {
	userRepo user.Repository
	eventBus shared.EventPublisher
	clock    clock.Clock

	// bcryptCost lets tests use the minimum cost.
	bcryptCost int
}

// NewRegistrationSaga creates a new registration saga.
func NewRegistrationSaga(userRepo user.Repository, eventBus shared.EventPublisher, clk clock.Clock) *RegistrationSaga {
	if clk == nil {
		clk = clock.Real{}
	}
	return &RegistrationSaga{
		userRepo:   userRepo,
		eventBus:   eventBus,
		clock:      clk,
		bcryptCost: bcrypt.DefaultCost,
	}
}

// WithBcryptCost overrides the hashing cost.
func (s *RegistrationSaga) WithBcryptCost(cost int) *RegistrationSaga {
	s.bcryptCost = cost
	return s
}

// Execute runs the complete registration process.
func (s *RegistrationSaga) Execute(ctx context.Context, input RegistrationInput) (*RegistrationResult, error) {
	// Step 1: Validate input.
	if err := input.Validate(); err != nil {
		return nil, s.wrapError(RegStepValidateInput, err)
	}

	email, err := shared.NewEmail(input.Email)
	if err != nil {
		return nil, s.wrapError(RegStepValidateInput, err)
	}

	// Step 2: Check the email is free.
	exists, err := s.userRepo.ExistsByEmail(ctx, email.String())
	if err != nil {
		return nil, s.wrapError(RegStepCheckExistence, fmt.Errorf("failed to check email existence: %w", err))
	}
	if exists {
		return nil, s.wrapError(RegStepCheckExistence, shared.ErrUserAlreadyExists)
	}

	// Step 3: Hash the password. The raw password never leaves this scope.
	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), s.bcryptCost)
	if err != nil {
		return nil, s.wrapError(RegStepHashPassword, fmt.Errorf("failed to hash password: %w", err))
	}

	// Step 4: Create and persist the user entity.
	displayName := input.DisplayName
	if displayName == "" {
		displayName = emailLocalPart(email.String())
	}

	now := s.clock.Now()
	u, err := user.NewUser(uuid.NewString(), email.String(), displayName, string(hash), user.Timezone(input.Timezone), now)
	if err != nil {
		return nil, s.wrapError(RegStepCreateUser, err)
	}

	if err := s.userRepo.Create(ctx, u); err != nil {
		return nil, s.wrapError(RegStepCreateUser, fmt.Errorf("failed to persist user: %w", err))
	}

	// Step 5: Publish domain event. Non-critical - the user is created.
	event := shared.NewUserRegisteredEvent(u.ID, u.Email, u.DisplayName, u.Timezone.String())
	_ = s.eventBus.Publish(event)

	return &RegistrationResult{
		User:         u,
		RegisteredAt: now,
	}, nil
}

// Authenticate verifies an email/password pair and returns the user.
func (s *RegistrationSaga) Authenticate(ctx context.Context, email, password string) (*user.User, error) {
	normalized, err := shared.NewEmail(email)
	if err != nil {
		return nil, ErrInvalidCredentials
	}

	u, err := s.userRepo.GetByEmail(ctx, normalized.String())
	if err != nil {
		if shared.IsNotFound(err) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return u, nil
}

// emailLocalPart returns the part before the @.
func emailLocalPart(email string) string {
	for i := 0; i < len(email); i++ {
		if email[i] == '@' {
			return email[:i]
		}
	}
	return email
}

// wrapError wraps an error with saga context.
func (s *RegistrationSaga) wrapError(step RegistrationStep, err error) error {
	return &RegistrationError{
		Step:    step,
		Cause:   err,
		Message: fmt.Sprintf("registration failed at step '%s': %v", step, err),
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// ERRORS
// ══════════════════════════════════════════════════════════════════════════════

// RegistrationError represents an error during the registration process.
type RegistrationError struct {
	Step    RegistrationStep
	Cause   error
	Message string
}

// Error implements the error interface.
func (e *RegistrationError) Error() string {
	return e.Message
}

// Unwrap returns the underlying error.
func (e *RegistrationError) Unwrap() error {
	return e.Cause
}

// ErrInvalidCredentials - invalid email or password.
var ErrInvalidCredentials = errors.New("registration: invalid credentials")
