// Command fix_member_roles repairs membership data: every project owner
// gets an ACTIVE OWNER membership row, and rows with a missing role are
// normalized to MEMBER. Safe to re-run.
package main

import (
	"log"

	"github.com/joho/godotenv"
	"gorm.io/gorm"

	"projecthub-backend/internal/database"
	"projecthub-backend/internal/model"
)

func main() {
	if err := godotenv.Load(".env"); err != nil {
		log.Println("no .env file, using process environment")
	}

	db, err := database.ConnectDB()
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	defer database.Close()

	log.Println("database connected, starting member role repair...")

	err = db.Transaction(func(tx *gorm.DB) error {
		var projects []model.Project
		if err := tx.Find(&projects).Error; err != nil {
			return err
		}

		repaired := 0
		for _, p := range projects {
			var member model.ProjectMember
			err := tx.Where("project_id = ? AND user_id = ?", p.ID, p.OwnerID).First(&member).Error
			switch {
			case err == gorm.ErrRecordNotFound:
				member = model.ProjectMember{
					ProjectID: p.ID,
					UserID:    p.OwnerID,
					Role:      model.MemberRoleOwner,
					Status:    model.MemberStatusActive,
				}
				if err := tx.Create(&member).Error; err != nil {
					return err
				}
				repaired++
			case err != nil:
				return err
			case member.Role != model.MemberRoleOwner || member.Status != model.MemberStatusActive:
				member.Role = model.MemberRoleOwner
				member.Status = model.MemberStatusActive
				if err := tx.Save(&member).Error; err != nil {
					return err
				}
				repaired++
			}
		}
		log.Printf("owner rows repaired: %d", repaired)

		result := tx.Model(&model.ProjectMember{}).
			Where("role IS NULL OR role = ''").
			Update("role", model.MemberRoleMember.String())
		if result.Error != nil {
			return result.Error
		}
		log.Printf("null roles normalized to MEMBER: %d", result.RowsAffected)

		return nil
	})
	if err != nil {
		log.Fatalf("failed to repair member roles: %v", err)
	}

	log.Println("member roles successfully repaired")
}
