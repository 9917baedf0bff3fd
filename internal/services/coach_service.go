package services

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/Dias221467/SuperHuman/internal/coach"
	"github.com/Dias221467/SuperHuman/internal/gamification"
	"github.com/Dias221467/SuperHuman/internal/repository"
	"github.com/Dias221467/SuperHuman/pkg/logger"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const maxCoachMessageLength = 2000

// CoachService answers coach chat messages with the user's progress as context.
type CoachService struct {
	generator coach.Generator
	progress  *ProgressService
	users     repository.UserStore
}

func NewCoachService(generator coach.Generator, progress *ProgressService, users repository.UserStore) *CoachService {
	return &CoachService{generator: generator, progress: progress, users: users}
}

// Chat sends message to the generator on behalf of userID.
func (s *CoachService) Chat(ctx context.Context, userID primitive.ObjectID, message string) (*coach.Response, error) {
	if err := requireUser(userID); err != nil {
		return nil, err
	}
	message = strings.TrimSpace(message)
	if message == "" {
		return nil, invalid("message", "message is required")
	}
	if utf8.RuneCountInString(message) > maxCoachMessageLength {
		return nil, invalid("message", fmt.Sprintf("must be at most %d characters", maxCoachMessageLength))
	}

	c, err := s.buildContext(ctx, userID)
	if err != nil {
		return nil, err
	}

	resp, err := s.generator.Generate(ctx, message, c)
	if err != nil {
		logger.Log.WithError(err).WithField("userID", userID.Hex()).Error("Coach generation failed")
		return nil, fmt.Errorf("failed to generate coach response: %w", err)
	}

	logger.Log.WithFields(logrus.Fields{
		"userID":      userID.Hex(),
		"suggestions": len(resp.Suggestions),
	}).Info("Coach response generated")
	return resp, nil
}

func (s *CoachService) buildContext(ctx context.Context, userID primitive.ObjectID) (coach.Context, error) {
	summary, err := s.progress.GetUserProgress(ctx, userID)
	if err != nil {
		return coach.Context{}, err
	}

	c := coach.Context{
		TotalScore:       summary.TotalScore,
		Level:            summary.OverallLevel,
		RecentActivities: make([]coach.RecentActivity, 0, len(summary.RecentActivities)),
		Now:              s.progress.now().In(s.progress.loc),
	}
	if user, err := s.users.GetUserByID(ctx, userID); err == nil {
		c.UserName = user.Name
	}
	for _, a := range summary.RecentActivities {
		c.RecentActivities = append(c.RecentActivities, coach.RecentActivity{
			Name:       a.Name,
			CategoryID: a.CategoryID,
			Points:     a.Points,
		})
	}
	// Categories with no points yet are the ones worth nudging.
	for _, cp := range summary.Categories {
		if cp.TotalPoints == 0 {
			c.FocusAreas = append(c.FocusAreas, gamification.Info(cp.CategoryID).Name)
		}
	}
	return c, nil
}
