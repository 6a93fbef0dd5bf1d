package service

import (
	"context"
	"fmt"

	"cloudsyncdrive/internal/domain"
)

type StorageQuotaService struct {
	userStore UserStore
}

func NewStorageQuotaService(userStore UserStore) *StorageQuotaService {
	return &StorageQuotaService{userStore: userStore}
}

func (s *StorageQuotaService) GetQuotaInfo(ctx context.Context, ownerID int64) (*domain.QuotaInfo, error) {
	user, err := s.userStore.GetByID(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to get quota: %w", err)
	}

	availableSpace := user.StorageLimit - user.StorageUsed
	usagePercent := 0.0
	if user.StorageLimit > 0 {
		usagePercent = float64(user.StorageUsed) / float64(user.StorageLimit) * 100
	}

	return &domain.QuotaInfo{
		TotalSpace:     user.StorageLimit,
		UsedSpace:      user.StorageUsed,
		AvailableSpace: availableSpace,
		UsagePercent:   usagePercent,
	}, nil
}

func (s *StorageQuotaService) UpdateQuotaLimit(ctx context.Context, ownerID int64, newLimit int64) error {
	if newLimit < 0 {
		return fmt.Errorf("%w: quota limit cannot be negative", domain.ErrInvalidOperation)
	}
	return s.userStore.UpdateStorageLimit(ctx, ownerID, newLimit)
}
