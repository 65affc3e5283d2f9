// Package migrate holds the schema migrations for the ingestion database.
package migrate

import (
	"fmt"
	"time"

	"cidc/dao/model"

	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"
)

func migrations() []*gormigrate.Migration {
	return []*gormigrate.Migration{
		{
			// add users.disabled
			ID: "2019101512000",
			Migrate: func(tx *gorm.DB) error {
				type User struct {
					gorm.Model
					Disabled bool `gorm:"not null;default:false"`
				}
				return tx.Migrator().AddColumn(&User{}, "Disabled")
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropColumn("users", "disabled")
			},
		},
		{
			// add upload_jobs.status_details for merge errors
			ID: "2019102212000",
			Migrate: func(tx *gorm.DB) error {
				type UploadJob struct {
					gorm.Model
					StatusDetails *string `gorm:"type:text"`
				}
				return tx.Migrator().AddColumn(&UploadJob{}, "StatusDetails")
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropColumn("upload_jobs", "status_details")
			},
		},
	}
}

// Run brings the schema up to date. A fresh database gets the current
// schema directly.
func Run(db *gorm.DB) error {
	m := gormigrate.New(db, gormigrate.DefaultOptions, migrations())

	m.InitSchema(func(tx *gorm.DB) error {
		return tx.AutoMigrate(
			&model.User{},
			&model.UploadJob{},
		)
	})

	if err := m.Migrate(); err != nil {
		return fmt.Errorf("could not migrate: %w", err)
	}
	return nil
}

// SeedAdmin creates an approved admin account if email is not registered yet.
func SeedAdmin(db *gorm.DB, email string) error {
	var n int64
	if err := db.Model(&model.User{}).Where("email = ?", email).Count(&n).Error; err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	role := model.RoleAdmin
	now := time.Now()
	return db.Create(&model.User{
		Email:        email,
		Role:         &role,
		ApprovalDate: &now,
		AccessedAt:   now,
	}).Error
}
