package service

import (
	"fmt"
	"time"

	"github.com/odmhub/odmhub/internal/models"
	"github.com/odmhub/odmhub/internal/repository"
	"github.com/odmhub/odmhub/internal/templatetags"
	"github.com/odmhub/odmhub/pkg/logger"
)

// QuotaService tracks per-user storage quotas and the grace-period deadline
// that starts when a user goes over quota.
type QuotaService struct {
	userRepo    *repository.UserRepository
	gracePeriod time.Duration
	now         func() time.Time
}

func NewQuotaService(userRepo *repository.UserRepository, gracePeriodHours int) *QuotaService {
	return &QuotaService{
		userRepo:    userRepo,
		gracePeriod: time.Duration(gracePeriodHours) * time.Hour,
		now:         time.Now,
	}
}

// Refresh reconciles the stored deadline with the user's usage: an
// over-quota user without a deadline gets now+grace period, a user back
// under quota has the deadline cleared. It returns the updated user.
func (s *QuotaService) Refresh(userID string) (*models.User, error) {
	user, err := s.userRepo.GetByID(userID)
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}

	switch {
	case user.IsOverQuota() && user.QuotaDeadline == nil:
		deadline := s.now().Add(s.gracePeriod)
		set, err := s.userRepo.SetQuotaDeadline(user.ID, deadline)
		if err != nil {
			return nil, fmt.Errorf("set quota deadline: %w", err)
		}
		if set {
			logger.Info().Str("user_id", user.ID).Time("deadline", deadline).
				Msg("User exceeded storage quota, grace period started")
		}
	case !user.IsOverQuota() && user.QuotaDeadline != nil:
		if err := s.userRepo.ClearQuotaDeadline(user.ID); err != nil {
			return nil, fmt.Errorf("clear quota deadline: %w", err)
		}
		logger.Info().Str("user_id", user.ID).Msg("User back under storage quota")
	default:
		return user, nil
	}

	return s.userRepo.GetByID(userID)
}

// RefreshAll runs Refresh for every user with a quota or a stored deadline
// and returns how many of them are over quota.
func (s *QuotaService) RefreshAll() (int, error) {
	ids, err := s.userRepo.ListIDsWithQuota()
	if err != nil {
		return 0, err
	}
	over := 0
	for _, id := range ids {
		user, err := s.Refresh(id)
		if err != nil {
			logger.Error().Err(err).Str("user_id", id).Msg("Failed to refresh quota deadline")
			continue
		}
		if user.IsOverQuota() {
			over++
		}
	}
	return over, nil
}

// SetQuota changes a user's quota. A negative value removes the quota.
func (s *QuotaService) SetQuota(userID string, quotaMB int64) (*models.User, error) {
	if quotaMB < 0 {
		quotaMB = -1
	}
	if err := s.userRepo.SetQuota(userID, quotaMB); err != nil {
		return nil, err
	}
	return s.Refresh(userID)
}

// SetUsage records a user's current usage.
func (s *QuotaService) SetUsage(userID string, usedMB int64) (*models.User, error) {
	if err := s.userRepo.SetUsage(userID, usedMB); err != nil {
		return nil, err
	}
	return s.Refresh(userID)
}

func (s *QuotaService) StorageInfo(user *models.User) *models.StorageInfo {
	info := &models.StorageInfo{
		QuotaMB:       user.QuotaMB,
		UsedMB:        user.UsedMB,
		OverQuota:     user.IsOverQuota(),
		QuotaDeadline: user.QuotaDeadline,
	}
	if user.HasQuota() {
		info.Percentage = templatetags.Percentage(float64(user.UsedMB), float64(user.QuotaMB))
	}
	return info
}
