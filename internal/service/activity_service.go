package service

import (
	"context"
	"log"

	"cloudsyncdrive/internal/domain"
)

// ActivityService пишет журнал действий. Запись fire-and-forget:
// неудача логируется и никогда не роняет породившую её операцию.
type ActivityService struct {
	activityStore ActivityStore
}

func NewActivityService(activityStore ActivityStore) *ActivityService {
	return &ActivityService{activityStore: activityStore}
}

func (s *ActivityService) Record(ctx context.Context, userID int64, action domain.ActivityType, entityType, entityID string) {
	activity := &domain.Activity{
		UserID:     userID,
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
	}

	if err := s.activityStore.Create(ctx, activity); err != nil {
		log.Printf("[Activity] failed to record %s for user %d: %v", action, userID, err)
	}
}

const defaultActivityLimit = 50

func (s *ActivityService) GetRecent(ctx context.Context, userID int64, limit int) ([]domain.Activity, error) {
	if limit <= 0 {
		limit = defaultActivityLimit
	}
	return s.activityStore.ListByUser(ctx, userID, limit)
}
