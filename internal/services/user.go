package services

import (
	"context"
	"errors"
	"regexp"

	"golang.org/x/crypto/bcrypt"

	"github.com/tasktrac/apiserver/internal/store"
	"github.com/tasktrac/apiserver/types"
)

// Service-level error kinds. Handlers map these to HTTP statuses.
var (
	ErrDuplicateUser      = errors.New("user already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// ValidationError reports rejected input. Its message is safe to return
// to clients verbatim.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func validationErr(message string) error {
	return &ValidationError{Message: message}
}

var (
	emailPattern  = regexp.MustCompile(`^\S+@\S+\.\S+$`)
	mobilePattern = regexp.MustCompile(`^\d{10}$`)
)

// UserRepository defines persistence operations for users.
type UserRepository interface {
	Create(ctx context.Context, user types.User) (types.User, error)
	GetOne(ctx context.Context, filter store.UserFilter) (types.User, error)
}

// UserService encapsulates registration and lookup use-cases.
type UserService struct {
	repo UserRepository
}

func NewUserService(repo UserRepository) *UserService {
	return &UserService{repo: repo}
}

// RegisterInput is the payload for a new account.
type RegisterInput struct {
	Name     string
	Email    string
	Mobile   string
	Password string
}

// Register validates the input, rejects duplicate mobile/email
// identities, and creates the account with a bcrypt password hash.
func (s *UserService) Register(ctx context.Context, input RegisterInput) (types.User, error) {
	if input.Name == "" || input.Email == "" || input.Mobile == "" || input.Password == "" {
		return types.User{}, validationErr("All fields are required")
	}
	if !mobilePattern.MatchString(input.Mobile) {
		return types.User{}, validationErr("Please enter a valid 10-digit mobile number")
	}
	if !emailPattern.MatchString(input.Email) {
		return types.User{}, validationErr("Please enter a valid email address")
	}

	if _, err := s.Lookup(ctx, input.Mobile, input.Email); err == nil {
		return types.User{}, ErrDuplicateUser
	} else if !errors.Is(err, store.ErrNotFound) {
		return types.User{}, err
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return types.User{}, err
	}

	user, err := s.repo.Create(ctx, types.User{
		Name:         input.Name,
		Email:        input.Email,
		Mobile:       input.Mobile,
		PasswordHash: string(hashed),
		IsActive:     true,
	})
	if err != nil {
		// A concurrent registration can slip past the lookup gate; the
		// unique constraint reports it as a failed create.
		if errors.Is(err, store.ErrNotCreated) {
			return types.User{}, ErrDuplicateUser
		}
		return types.User{}, err
	}
	return user, nil
}

// Lookup finds a user by mobile or email. At least one identifier is
// required. Mobile takes precedence when both are supplied, matching
// the login contract. Absence is reported as store.ErrNotFound so the
// same primitive backs both the "must not exist" (register) and "must
// exist" (login) gates.
func (s *UserService) Lookup(ctx context.Context, mobile, email string) (types.User, error) {
	filter := store.UserFilter{}
	switch {
	case mobile != "":
		filter.Mobile = mobile
	case email != "":
		filter.Email = email
	default:
		return types.User{}, validationErr("Please provide a mobile number")
	}
	return s.repo.GetOne(ctx, filter)
}

// GetByID fetches a user by identifier.
func (s *UserService) GetByID(ctx context.Context, id string) (types.User, error) {
	if id == "" {
		return types.User{}, store.ErrNotFound
	}
	return s.repo.GetOne(ctx, store.UserFilter{ID: id})
}

// Authenticate verifies a mobile/password pair. A missing user surfaces
// as store.ErrNotFound; a wrong password as ErrInvalidCredentials.
func (s *UserService) Authenticate(ctx context.Context, mobile, password string) (types.User, error) {
	if password == "" {
		return types.User{}, validationErr("Password is required")
	}
	user, err := s.Lookup(ctx, mobile, "")
	if err != nil {
		return types.User{}, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return types.User{}, ErrInvalidCredentials
	}
	return user, nil
}
