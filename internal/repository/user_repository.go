package repository

import (
	"context"

	"github.com/pkg/errors"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"taskpilot/internal/errs"
	"taskpilot/internal/model"
)

// UserRepository handles persistence for users and their reminder preferences.
type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

// GetOrCreate looks a user up by Telegram id, creating the row on first sight
// and refreshing profile fields on subsequent ones.
func (r *UserRepository) GetOrCreate(ctx context.Context, telegramID int64, firstName, lastName, username string) (*model.User, error) {
	var user model.User
	err := r.db.WithContext(ctx).Where("telegram_id = ?", telegramID).First(&user).Error
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.Wrap(err, "find user")
		}
		user = model.User{
			TelegramID: telegramID,
			FirstName:  firstName,
			LastName:   lastName,
			Username:   username,
		}
		if err := r.db.WithContext(ctx).Create(&user).Error; err != nil {
			return nil, errors.Wrap(err, "create user")
		}
		return &user, nil
	}

	refreshed := firstName != "" || lastName != "" || username != ""
	if refreshed && (user.FirstName != firstName || user.LastName != lastName || user.Username != username) {
		user.FirstName = firstName
		user.LastName = lastName
		user.Username = username
		if err := r.db.WithContext(ctx).Save(&user).Error; err != nil {
			return nil, errors.Wrap(err, "update user")
		}
	}
	return &user, nil
}

func (r *UserRepository) FindByTelegramID(ctx context.Context, telegramID int64) (*model.User, error) {
	var user model.User
	err := r.db.WithContext(ctx).Where("telegram_id = ?", telegramID).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.ErrNotFound
		}
		return nil, errors.Wrap(err, "find user")
	}
	return &user, nil
}

// MutedOffsets returns the user's muted default-reminder labels, empty when
// the user is unknown.
func (r *UserRepository) MutedOffsets(ctx context.Context, telegramID int64) ([]string, error) {
	user, err := r.FindByTelegramID(ctx, telegramID)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return user.MutedOffsets, nil
}

// SetMutedOffsets replaces the user's muted labels.
func (r *UserRepository) SetMutedOffsets(ctx context.Context, telegramID int64, labels []string) error {
	res := r.db.WithContext(ctx).Model(&model.User{}).
		Where("telegram_id = ?", telegramID).
		Update("muted_offsets", datatypes.NewJSONSlice(labels))
	if res.Error != nil {
		return errors.Wrap(res.Error, "set muted offsets")
	}
	if res.RowsAffected == 0 {
		return errs.ErrNotFound
	}
	return nil
}
