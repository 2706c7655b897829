package handler

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"projecthub-backend/internal/auth"
	"projecthub-backend/internal/model"
	"projecthub-backend/internal/presence"
)

// ProjectHandler serves project CRUD and membership endpoints.
type ProjectHandler struct {
	db       *gorm.DB
	presence *presence.Manager
}

func NewProjectHandler(db *gorm.DB, pm *presence.Manager) *ProjectHandler {
	return &ProjectHandler{db: db, presence: pm}
}

type CreateProjectRequest struct {
	Name        string  `json:"name"`
	Description *string `json:"description,omitempty"`
	MemberIDs   []int64 `json:"member_ids,omitempty"`
}

type ProjectResponse struct {
	ID          int64            `json:"id"`
	Name        string           `json:"name"`
	Description *string          `json:"description,omitempty"`
	OwnerID     int64            `json:"owner_id"`
	CreatedAt   string           `json:"created_at"`
	Owner       *UserResponse    `json:"owner,omitempty"`
	Members     []MemberResponse `json:"members,omitempty"`
	MemberCount int              `json:"member_count"`
}

type MemberResponse struct {
	UserID   int64           `json:"user_id"`
	Role     string          `json:"role"`
	Status   string          `json:"status"`
	JoinedAt string          `json:"joined_at"`
	User     *UserResponse   `json:"user,omitempty"`
	Presence presence.Status `json:"presence"`
}

// CreateProject creates a project with the caller as owner. A default chat
// room and whiteboard come with it so realtime clients have somewhere to
// join immediately.
func (h *ProjectHandler) CreateProject(c *fiber.Ctx) error {
	claims := c.Locals("claims").(*auth.Claims)

	var req CreateProjectRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid request body",
		})
	}

	req.Name = sanitizeString(req.Name)
	if len(req.Name) < 2 || len(req.Name) > 100 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "project name must be between 2 and 100 characters",
		})
	}

	var project model.Project
	err := h.db.Transaction(func(tx *gorm.DB) error {
		project = model.Project{
			Name:        req.Name,
			Description: req.Description,
			OwnerID:     claims.UserID,
		}
		if err := tx.Create(&project).Error; err != nil {
			return err
		}

		owner := model.ProjectMember{
			ProjectID: project.ID,
			UserID:    claims.UserID,
			Role:      model.MemberRoleOwner,
			Status:    model.MemberStatusActive,
		}
		if err := tx.Create(&owner).Error; err != nil {
			return err
		}

		for _, memberID := range req.MemberIDs {
			if memberID == claims.UserID {
				continue
			}
			var user model.User
			if err := tx.First(&user, memberID).Error; err != nil {
				continue
			}
			member := model.ProjectMember{
				ProjectID: project.ID,
				UserID:    memberID,
				Role:      model.MemberRoleMember,
				Status:    model.MemberStatusActive,
			}
			if err := tx.Create(&member).Error; err != nil {
				continue
			}
		}

		room := model.ChatRoom{
			ProjectID: project.ID,
			Name:      "general",
			CreatedBy: claims.UserID,
		}
		if err := tx.Create(&room).Error; err != nil {
			return err
		}

		board := model.Whiteboard{
			ProjectID: project.ID,
			Name:      "Main Board",
			CreatedBy: claims.UserID,
		}
		return tx.Create(&board).Error
	})
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to create project",
		})
	}

	h.db.
		Preload("Owner").
		Preload("Members", "status = ?", model.MemberStatusActive.String()).
		Preload("Members.User").
		First(&project, project.ID)

	return c.Status(fiber.StatusCreated).JSON(h.toProjectResponse(c.Context(), &project, false))
}

// GetMyProjects lists projects where the caller is an active member.
func (h *ProjectHandler) GetMyProjects(c *fiber.Ctx) error {
	claims := c.Locals("claims").(*auth.Claims)

	var projects []model.Project
	err := h.db.
		Joins("JOIN project_members pm ON pm.project_id = projects.id").
		Where("pm.user_id = ? AND pm.status = ?", claims.UserID, model.MemberStatusActive.String()).
		Preload("Owner").
		Order("projects.created_at DESC").
		Find(&projects).Error
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to load projects",
		})
	}

	resp := make([]ProjectResponse, 0, len(projects))
	for i := range projects {
		resp = append(resp, h.toProjectResponse(c.Context(), &projects[i], false))
	}
	return c.JSON(resp)
}

// GetProject returns one project with its active members and their live
// presence status.
func (h *ProjectHandler) GetProject(c *fiber.Ctx) error {
	projectID, err := c.ParamsInt("projectId")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid project id",
		})
	}

	var project model.Project
	err = h.db.
		Preload("Owner").
		Preload("Members", "status = ?", model.MemberStatusActive.String()).
		Preload("Members.User").
		First(&project, projectID).Error
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "project not found",
		})
	}

	return c.JSON(h.toProjectResponse(c.Context(), &project, true))
}

type AddMembersRequest struct {
	UserIDs []int64 `json:"user_ids"`
}

// AddMembers adds users to a project. Owner only. Users who already left
// are re-activated instead of duplicated.
func (h *ProjectHandler) AddMembers(c *fiber.Ctx) error {
	projectID, err := c.ParamsInt("projectId")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid project id",
		})
	}

	var req AddMembersRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid request body",
		})
	}
	if len(req.UserIDs) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "user_ids is required",
		})
	}

	var added []int64
	for _, userID := range req.UserIDs {
		var user model.User
		if err := h.db.First(&user, userID).Error; err != nil {
			continue
		}

		var member model.ProjectMember
		err := h.db.Where("project_id = ? AND user_id = ?", projectID, userID).First(&member).Error
		switch {
		case err == gorm.ErrRecordNotFound:
			member = model.ProjectMember{
				ProjectID: int64(projectID),
				UserID:    userID,
				Role:      model.MemberRoleMember,
				Status:    model.MemberStatusActive,
			}
			if h.db.Create(&member).Error == nil {
				added = append(added, userID)
			}
		case err == nil && member.Status == model.MemberStatusLeft:
			member.Status = model.MemberStatusActive
			if h.db.Save(&member).Error == nil {
				added = append(added, userID)
			}
		}
	}

	return c.JSON(fiber.Map{
		"added": added,
	})
}

// GetMembers lists active members with live presence.
func (h *ProjectHandler) GetMembers(c *fiber.Ctx) error {
	projectID, err := c.ParamsInt("projectId")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid project id",
		})
	}

	var members []model.ProjectMember
	err = h.db.
		Where("project_id = ? AND status = ?", projectID, model.MemberStatusActive.String()).
		Preload("User").
		Order("joined_at ASC").
		Find(&members).Error
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to load members",
		})
	}

	return c.JSON(h.toMemberResponses(c.Context(), members))
}

// LeaveProject marks the caller's membership LEFT. Owners cannot leave
// their own project.
func (h *ProjectHandler) LeaveProject(c *fiber.Ctx) error {
	claims := c.Locals("claims").(*auth.Claims)
	projectID, err := c.ParamsInt("projectId")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid project id",
		})
	}

	var project model.Project
	if err := h.db.First(&project, projectID).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "project not found",
		})
	}
	if project.OwnerID == claims.UserID {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "owner cannot leave their own project",
		})
	}

	result := h.db.Model(&model.ProjectMember{}).
		Where("project_id = ? AND user_id = ? AND status = ?", projectID, claims.UserID, model.MemberStatusActive.String()).
		Update("status", model.MemberStatusLeft.String())
	if result.Error != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to leave project",
		})
	}
	if result.RowsAffected == 0 {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "you are not a member of this project",
		})
	}

	return c.JSON(fiber.Map{
		"message": "left project",
	})
}

func (h *ProjectHandler) toProjectResponse(ctx context.Context, p *model.Project, withMembers bool) ProjectResponse {
	resp := ProjectResponse{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		OwnerID:     p.OwnerID,
		CreatedAt:   p.CreatedAt.Format(time.RFC3339),
		MemberCount: len(p.Members),
	}
	if p.Owner.ID != 0 {
		owner := toUserResponse(&p.Owner)
		resp.Owner = &owner
	}
	if withMembers {
		resp.Members = h.toMemberResponses(ctx, p.Members)
	}
	return resp
}

func (h *ProjectHandler) toMemberResponses(ctx context.Context, members []model.ProjectMember) []MemberResponse {
	userIDs := make([]int64, 0, len(members))
	for _, m := range members {
		userIDs = append(userIDs, m.UserID)
	}

	// Missing redis or a lookup failure degrades to OFFLINE, not an error.
	presenceMap := map[int64]*presence.Data{}
	if h.presence != nil {
		if pm, err := h.presence.GetMultiPresence(ctx, userIDs); err == nil {
			presenceMap = pm
		}
	}

	resp := make([]MemberResponse, 0, len(members))
	for i := range members {
		m := &members[i]
		mr := MemberResponse{
			UserID:   m.UserID,
			Role:     m.Role.String(),
			Status:   m.Status.String(),
			JoinedAt: m.JoinedAt.Format(time.RFC3339),
			Presence: presence.StatusOffline,
		}
		if m.User.ID != 0 {
			user := toUserResponse(&m.User)
			mr.User = &user
		}
		if data, ok := presenceMap[m.UserID]; ok && data != nil {
			mr.Presence = data.Status
		}
		resp = append(resp, mr)
	}
	return resp
}
