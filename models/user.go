package models

import (
	"context"
	"errors"
	"fmt"
	"time"

	"bitbucket.org/mmdatafocus/fieldserve_backend/config"
	"bitbucket.org/mmdatafocus/fieldserve_backend/utils"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type UserRole string

const (
	UserRoleAdmin      UserRole = "A"
	UserRoleDispatcher UserRole = "D"
	UserRoleTechnician UserRole = "T"
)

func (r UserRole) Label() string {
	switch r {
	case UserRoleAdmin:
		return "Admin"
	case UserRoleDispatcher:
		return "Dispatcher"
	case UserRoleTechnician:
		return "Technician"
	}
	return string(r)
}

// User is a field-service employee. HourlyRate only matters for technicians;
// the payroll run reads it as the worker's rate context.
type User struct {
	ID         int             `gorm:"primary_key" json:"id"`
	Username   string          `gorm:"size:100;not null;unique" json:"username" binding:"required"`
	Name       string          `gorm:"size:100;not null" json:"name" binding:"required"`
	Email      *string         `gorm:"size:100;unique" json:"email"`
	Phone      string          `gorm:"size:20" json:"phone"`
	Password   string          `gorm:"size:255;not null" json:"-"`
	IsActive   *bool           `gorm:"not null" json:"is_active"`
	Role       UserRole        `gorm:"type:enum('A', 'D', 'T');default:T" json:"role"`
	HourlyRate decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"hourly_rate"`
	CreatedAt  time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

/*
caches:
	User:$username
*/

func (user User) RemoveInstanceRedis() error {
	return config.RemoveRedisKey("User:" + user.Username)
}

func GetUserByUsername(ctx context.Context, username string) (User, error) {
	var user User

	key := "User:" + username
	if exists, err := config.GetRedisObject(key, &user); err == nil && exists {
		return user, nil
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Where("username = ?", username).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return user, utils.ErrorRecordNotFound
		}
		return user, err
	}
	_ = config.SetRedisObject(key, &user, 0)
	return user, nil
}

func GetUserById(ctx context.Context, id int) (User, error) {
	var user User
	db := config.GetDB()
	if err := db.WithContext(ctx).First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return user, utils.ErrorRecordNotFound
		}
		return user, err
	}
	return user, nil
}

// Authenticate verifies the credentials and returns the user. It does not
// distinguish unknown-user from wrong-password in its error.
func Authenticate(ctx context.Context, username string, password string) (User, error) {
	user, err := GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, utils.ErrorRecordNotFound) {
			return user, fmt.Errorf("%w: invalid credentials", utils.ErrorUnauthorized)
		}
		return user, err
	}
	if err := utils.ComparePassword(user.Password, password); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return user, fmt.Errorf("%w: invalid credentials", utils.ErrorUnauthorized)
		}
		return user, err
	}
	if user.IsActive == nil || !*user.IsActive {
		return user, fmt.Errorf("%w: account disabled", utils.ErrorUnauthorized)
	}
	return user, nil
}

// ListActiveTechnicians returns the payroll-eligible workforce. An empty
// result is valid: a run over it completes with zero timesheets.
func ListActiveTechnicians(ctx context.Context) ([]User, error) {
	var users []User
	db := config.GetDB()
	if err := db.WithContext(ctx).
		Where("role = ? AND is_active = ?", UserRoleTechnician, true).
		Order("id ASC").
		Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}
