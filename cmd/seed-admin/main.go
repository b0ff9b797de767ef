// seed-admin creates or updates the admin console user (username: fieldserveAdmin).
// Admin users have role 'A'; the backend returns role "Admin" for login.
//
// Usage (from backend directory):
//   DB_USER=... DB_PASSWORD=... DB_HOST=... DB_PORT=... DB_NAME=... go run ./cmd/seed-admin
package main

import (
	"context"
	"fmt"
	"os"

	"bitbucket.org/mmdatafocus/fieldserve_backend/config"
	"bitbucket.org/mmdatafocus/fieldserve_backend/models"
	"bitbucket.org/mmdatafocus/fieldserve_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const (
	adminUsername = "fieldserveAdmin"
	adminName     = "FieldServe Admin"
)

func main() {
	ctx := context.Background()
	config.ConnectDatabaseWithRetry()
	db := config.GetDB()
	if db == nil {
		fmt.Fprintln(os.Stderr, "database not initialized (config.GetDB returned nil). Set DB_* env vars.")
		os.Exit(1)
	}
	models.MigrateTable()

	password := os.Getenv("SEED_ADMIN_PASSWORD")
	if password == "" {
		fmt.Fprintln(os.Stderr, "SEED_ADMIN_PASSWORD is required")
		os.Exit(2)
	}
	hashed, err := utils.HashPassword(password)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to hash password: %v\n", err)
		os.Exit(1)
	}

	active := true
	admin := models.User{
		Username:   adminUsername,
		Name:       adminName,
		Password:   string(hashed),
		IsActive:   &active,
		Role:       models.UserRoleAdmin,
		HourlyRate: decimal.Zero,
	}

	var existing models.User
	err = db.WithContext(ctx).Where("username = ?", adminUsername).First(&existing).Error
	switch err {
	case nil:
		existing.Password = string(hashed)
		existing.Role = models.UserRoleAdmin
		existing.IsActive = &active
		if uerr := db.WithContext(ctx).Save(&existing).Error; uerr != nil {
			fmt.Fprintf(os.Stderr, "failed to update admin user: %v\n", uerr)
			os.Exit(1)
		}
		_ = existing.RemoveInstanceRedis()
		fmt.Printf("updated admin user %q (id=%d)\n", adminUsername, existing.ID)
	case gorm.ErrRecordNotFound:
		if cerr := db.WithContext(ctx).Create(&admin).Error; cerr != nil {
			fmt.Fprintf(os.Stderr, "failed to create admin user: %v\n", cerr)
			os.Exit(1)
		}
		fmt.Printf("created admin user %q (id=%d)\n", adminUsername, admin.ID)
	default:
		fmt.Fprintf(os.Stderr, "failed to lookup admin user: %v\n", err)
		os.Exit(1)
	}
}
