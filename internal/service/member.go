package service

import (
	"projecthub-backend/internal/model"

	"gorm.io/gorm"
)

// MemberService project membership checks shared by the HTTP middleware and
// the websocket handshake guard.
type MemberService struct {
	db *gorm.DB
}

// NewMemberService creates a MemberService
func NewMemberService(db *gorm.DB) *MemberService {
	return &MemberService{db: db}
}

// IsProjectMember reports an ACTIVE membership
func (s *MemberService) IsProjectMember(projectID, userID int64) bool {
	var count int64
	s.db.Model(&model.ProjectMember{}).
		Where("project_id = ? AND user_id = ? AND status = ?", projectID, userID, model.MemberStatusActive.String()).
		Count(&count)
	return count > 0
}

// IsProjectOwner reports ownership
func (s *MemberService) IsProjectOwner(projectID, userID int64) bool {
	var ownerID int64
	s.db.Table("projects").Where("id = ?", projectID).Select("owner_id").Scan(&ownerID)
	return ownerID == userID
}

// IsProjectMemberOrOwner reports membership or ownership
func (s *MemberService) IsProjectMemberOrOwner(projectID, userID int64) bool {
	return s.IsProjectMember(projectID, userID) || s.IsProjectOwner(projectID, userID)
}

// GetMemberRole resolves a member's role. The owner is always OWNER
// regardless of the membership row.
func (s *MemberService) GetMemberRole(projectID, userID int64) (model.MemberRole, error) {
	if s.IsProjectOwner(projectID, userID) {
		return model.MemberRoleOwner, nil
	}

	var member model.ProjectMember
	err := s.db.
		Where("project_id = ? AND user_id = ? AND status = ?", projectID, userID, model.MemberStatusActive.String()).
		First(&member).Error
	if err != nil {
		return "", err
	}
	return member.Role, nil
}
