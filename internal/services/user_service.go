package services

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/Dias221467/SuperHuman/internal/models"
	"github.com/Dias221467/SuperHuman/internal/repository"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	maxUserNameLength = 100
	minPasswordLength = 6
	defaultUserRole   = "user"
)

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

// Mailer sends plain text mail.
type Mailer interface {
	SendEmail(to, subject, body string) error
}

// UserService encapsulates the business logic for user operations.
type UserService struct {
	users      repository.UserStore
	activities repository.ActivityStore
	progress   repository.ProgressStore
	friends    repository.FriendStore
	cache      LeaderboardCache
	mailer     Mailer
}

// NewUserService creates a new instance of UserService.
func NewUserService(users repository.UserStore, activities repository.ActivityStore, progress repository.ProgressStore, friends repository.FriendStore) *UserService {
	return &UserService{
		users:      users,
		activities: activities,
		progress:   progress,
		friends:    friends,
	}
}

// WithCache lets DeleteUser drop the user from the leaderboard cache.
func (s *UserService) WithCache(cache LeaderboardCache) *UserService {
	s.cache = cache
	return s
}

// WithMailer enables the welcome email on registration.
func (s *UserService) WithMailer(m Mailer) *UserService {
	s.mailer = m
	return s
}

// RegisterUser registers a new user after hashing their password.
func (s *UserService) RegisterUser(ctx context.Context, name, email, password string) (*models.User, error) {
	logrus.Info("Registering new user")

	name = strings.TrimSpace(name)
	email = strings.ToLower(strings.TrimSpace(email))

	if name == "" || len(name) > maxUserNameLength {
		return nil, invalid("name", fmt.Sprintf("must be 1-%d characters", maxUserNameLength))
	}
	if !emailRegex.MatchString(email) {
		logrus.WithField("email", email).Warn("Invalid email format during registration")
		return nil, invalid("email", "invalid email format")
	}
	if len(password) < minPasswordLength {
		return nil, invalid("password", fmt.Sprintf("must be at least %d characters", minPasswordLength))
	}

	hashedPwd, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		logrus.WithError(err).Error("Password hashing failed")
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user, err := s.users.CreateUser(ctx, &models.User{
		Name:           name,
		Email:          email,
		HashedPassword: string(hashedPwd),
		Role:           defaultUserRole,
	})
	if errors.Is(err, repository.ErrDuplicate) {
		logrus.WithField("email", email).Warn("Email already in use")
		return nil, conflict("email already in use")
	}
	if err != nil {
		logrus.WithError(err).Error("User registration failed")
		return nil, fmt.Errorf("failed to register user: %w", err)
	}

	code, err := assignReferralCode(ctx, s.users, user.ID)
	if err != nil {
		// The code is generated lazily on first request if this fails.
		logrus.WithError(err).WithField("userID", user.ID.Hex()).Warn("Failed to assign referral code")
	} else {
		user.ReferralCode = code
	}

	s.sendWelcome(user)

	logrus.WithFields(logrus.Fields{
		"userID": user.ID.Hex(),
		"role":   user.Role,
	}).Info("User registered successfully")
	return user, nil
}

func (s *UserService) sendWelcome(user *models.User) {
	if s.mailer == nil {
		return
	}
	body := fmt.Sprintf("Welcome to SuperHuman, %s!\n\nLog your first activity to start levelling up.", user.Name)
	if user.ReferralCode != "" {
		body += fmt.Sprintf("\n\nInvite friends with your referral code: %s", user.ReferralCode)
	}
	if err := s.mailer.SendEmail(user.Email, "Welcome to SuperHuman", body); err != nil {
		logrus.WithError(err).WithField("userID", user.ID.Hex()).Warn("Failed to send welcome email")
	}
}

// AuthenticateUser verifies the email and password and returns the user if credentials are valid.
func (s *UserService) AuthenticateUser(ctx context.Context, email, password string) (*models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	logrus.WithField("email", email).Info("Authenticating user")

	user, err := s.users.GetUserByEmail(ctx, email)
	if errors.Is(err, repository.ErrNotFound) {
		logrus.WithField("email", email).Warn("User not found")
		return nil, ErrUnauthenticated
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.HashedPassword), []byte(password)); err != nil {
		logrus.WithField("email", email).Warn("Invalid credentials")
		return nil, ErrUnauthenticated
	}

	logrus.WithField("userID", user.ID.Hex()).Info("User authenticated successfully")
	return user, nil
}

// GetUser retrieves a user by their ID.
func (s *UserService) GetUser(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	user, err := s.users.GetUserByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, notFound("user", id)
	}
	if err != nil {
		logrus.WithError(err).Warn("Failed to retrieve user")
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

// DeleteUser removes the account together with its ledger, aggregates and friendships.
func (s *UserService) DeleteUser(ctx context.Context, id primitive.ObjectID) error {
	if err := requireUser(id); err != nil {
		return err
	}
	logrus.WithField("userID", id.Hex()).Info("Deleting user")

	if _, err := s.GetUser(ctx, id); err != nil {
		return err
	}

	removed, err := s.activities.DeleteUserActivities(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to delete activities: %w", err)
	}
	if err := s.progress.DeleteUserProgress(ctx, id); err != nil {
		return fmt.Errorf("failed to delete progress: %w", err)
	}
	if err := s.friends.DeleteUserFriendships(ctx, id); err != nil {
		return fmt.Errorf("failed to delete friendships: %w", err)
	}
	if s.cache != nil {
		if err := s.cache.RemoveUser(ctx, id); err != nil {
			logrus.WithError(err).WithField("userID", id.Hex()).Warn("Failed to remove user from leaderboard cache")
		}
	}
	if err := s.users.DeleteUser(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return notFound("user", id)
		}
		logrus.WithError(err).Error("Failed to delete user")
		return fmt.Errorf("failed to delete user: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"userID":     id.Hex(),
		"activities": removed,
	}).Info("User deleted successfully")
	return nil
}
