package Stores

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"FalconFreight/Models"

	"gorm.io/gorm"
)

func (s *Store) TruckExists(ctx context.Context, id uint) (bool, error) {
	return s.exists(ctx, &Models.Truck{}, id)
}

func (s *Store) TrailerExists(ctx context.Context, id uint) (bool, error) {
	return s.exists(ctx, &Models.Trailer{}, id)
}

func (s *Store) ClientExists(ctx context.Context, id uint) (bool, error) {
	return s.exists(ctx, &Models.Client{}, id)
}

func (s *Store) exists(ctx context.Context, model interface{}, id uint) (bool, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(model).Where("id = ?", id).Count(&count).Error; err != nil {
		return false, fmt.Errorf("check reference %d: %w", id, err)
	}
	return count > 0, nil
}

func (s *Store) TruckPlates(ctx context.Context, ids []uint) (map[uint]string, error) {
	plates := make(map[uint]string, len(ids))
	if len(ids) == 0 {
		return plates, nil
	}
	var trucks []Models.Truck
	if err := s.db.WithContext(ctx).Where("id IN ?", ids).Find(&trucks).Error; err != nil {
		return nil, fmt.Errorf("load truck plates: %w", err)
	}
	for _, truck := range trucks {
		plates[truck.ID] = truck.Plate
	}
	return plates, nil
}

func (s *Store) UserByEmail(ctx context.Context, email string) (Models.User, error) {
	var user Models.User
	err := s.db.WithContext(ctx).Where("email = ?", strings.TrimSpace(strings.ToLower(email))).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return user, &Models.NotFoundError{Entity: "user", ID: 0}
	}
	return user, err
}

func (s *Store) UserByID(ctx context.Context, id uint) (Models.User, error) {
	var user Models.User
	err := s.db.WithContext(ctx).First(&user, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return user, &Models.NotFoundError{Entity: "user", ID: id}
	}
	return user, err
}

// CreateUser hashes the password at the boundary and stores the user.
func (s *Store) CreateUser(ctx context.Context, name, email, password string, role Models.Role) (Models.User, error) {
	if !role.Valid() {
		return Models.User{}, Models.Invalid("role", "unknown role")
	}
	hash, err := Models.HashPassword(password)
	if err != nil {
		return Models.User{}, err
	}
	user := Models.User{
		Name:     name,
		Email:    strings.TrimSpace(strings.ToLower(email)),
		Password: hash,
		Role:     role,
	}
	if err := s.db.WithContext(ctx).Create(&user).Error; err != nil {
		return Models.User{}, fmt.Errorf("create user: %w", err)
	}
	return user, nil
}

// EnsureAdminExists creates the bootstrap admin account when it is missing.
// It is a no-op when either credential is empty.
func (s *Store) EnsureAdminExists(ctx context.Context, email, password string) error {
	if strings.TrimSpace(email) == "" || password == "" {
		return nil
	}
	_, err := s.UserByEmail(ctx, email)
	if err == nil {
		return nil
	}
	if !Models.IsNotFound(err) {
		return fmt.Errorf("lookup admin: %w", err)
	}
	if _, err := s.CreateUser(ctx, "Administrator", email, password, Models.RoleAdmin); err != nil {
		return fmt.Errorf("create admin: %w", err)
	}
	slog.Info("admin user created", "email", strings.ToLower(strings.TrimSpace(email)))
	return nil
}
