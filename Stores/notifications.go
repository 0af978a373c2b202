package Stores

import (
	"context"
	"fmt"

	"FalconFreight/Models"
)

func (s *Store) CreateNotification(ctx context.Context, n *Models.Notification) error {
	if err := s.db.WithContext(ctx).Create(n).Error; err != nil {
		return fmt.Errorf("create notification: %w", err)
	}
	return nil
}

func (s *Store) ListNotifications(ctx context.Context, unreadOnly bool, limit int) ([]Models.Notification, error) {
	query := s.db.WithContext(ctx).Model(&Models.Notification{})
	if unreadOnly {
		query = query.Where("is_read = ?", false)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	var out []Models.Notification
	if err := query.Order("id DESC").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	return out, nil
}

func (s *Store) MarkNotificationRead(ctx context.Context, id uint) error {
	found, err := s.exists(ctx, &Models.Notification{}, id)
	if err != nil {
		return err
	}
	if !found {
		return &Models.NotFoundError{Entity: "notification", ID: id}
	}
	if err := s.db.WithContext(ctx).Model(&Models.Notification{}).Where("id = ?", id).Update("is_read", true).Error; err != nil {
		return fmt.Errorf("mark notification %d read: %w", id, err)
	}
	return nil
}
