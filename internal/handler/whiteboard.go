package handler

import (
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"projecthub-backend/internal/auth"
	"projecthub-backend/internal/model"
	"projecthub-backend/internal/store"
)

// WhiteboardHandler serves whiteboard CRUD and REST element snapshots for
// reconnecting clients.
type WhiteboardHandler struct {
	db     *gorm.DB
	boards store.WhiteboardStore
}

func NewWhiteboardHandler(db *gorm.DB, boards store.WhiteboardStore) *WhiteboardHandler {
	return &WhiteboardHandler{db: db, boards: boards}
}

type CreateWhiteboardRequest struct {
	Name string `json:"name"`
}

type WhiteboardResponse struct {
	ID        int64  `json:"id"`
	ProjectID int64  `json:"project_id"`
	Name      string `json:"name"`
	CreatedBy int64  `json:"created_by"`
	CreatedAt string `json:"created_at"`
}

// ListWhiteboards lists a project's whiteboards.
func (h *WhiteboardHandler) ListWhiteboards(c *fiber.Ctx) error {
	projectID, err := c.ParamsInt("projectId")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid project id",
		})
	}

	var boards []model.Whiteboard
	if err := h.db.Where("project_id = ?", projectID).Order("created_at ASC").Find(&boards).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to load whiteboards",
		})
	}

	resp := make([]WhiteboardResponse, 0, len(boards))
	for i := range boards {
		resp = append(resp, toWhiteboardResponse(&boards[i]))
	}
	return c.JSON(resp)
}

// CreateWhiteboard creates a whiteboard in a project.
func (h *WhiteboardHandler) CreateWhiteboard(c *fiber.Ctx) error {
	claims := c.Locals("claims").(*auth.Claims)
	projectID, err := c.ParamsInt("projectId")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid project id",
		})
	}

	var req CreateWhiteboardRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid request body",
		})
	}

	req.Name = sanitizeString(req.Name)
	if req.Name == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "whiteboard name is required",
		})
	}

	board := model.Whiteboard{
		ProjectID: int64(projectID),
		Name:      req.Name,
		CreatedBy: claims.UserID,
	}
	if err := h.db.Create(&board).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to create whiteboard",
		})
	}

	return c.Status(fiber.StatusCreated).JSON(toWhiteboardResponse(&board))
}

// GetElements returns the board's full element set, the same snapshot the
// whiteboard-state event carries.
func (h *WhiteboardHandler) GetElements(c *fiber.Ctx) error {
	projectID, err := c.ParamsInt("projectId")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid project id",
		})
	}
	boardID, err := c.ParamsInt("whiteboardId")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid whiteboard id",
		})
	}

	var board model.Whiteboard
	if err := h.db.Where("id = ? AND project_id = ?", boardID, projectID).First(&board).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "whiteboard not found",
		})
	}

	elements, err := h.boards.Elements(c.Context(), int64(boardID))
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to load elements",
		})
	}

	return c.JSON(fiber.Map{
		"whiteboard_id": board.ID,
		"elements":      elements,
	})
}

func toWhiteboardResponse(b *model.Whiteboard) WhiteboardResponse {
	return WhiteboardResponse{
		ID:        b.ID,
		ProjectID: b.ProjectID,
		Name:      b.Name,
		CreatedBy: b.CreatedBy,
		CreatedAt: b.CreatedAt.Format(timeFormat),
	}
}
