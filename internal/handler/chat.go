package handler

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"projecthub-backend/internal/auth"
	"projecthub-backend/internal/model"
	"projecthub-backend/internal/store"
)

const defaultHistoryLimit = 50

// ChatHandler serves chat room CRUD and REST history. The REST history
// endpoint backs the reconnect path: clients re-fetch after a websocket
// drop instead of trusting their local copy.
type ChatHandler struct {
	db    *gorm.DB
	chats store.ChatStore
}

func NewChatHandler(db *gorm.DB, chats store.ChatStore) *ChatHandler {
	return &ChatHandler{db: db, chats: chats}
}

type CreateChatRoomRequest struct {
	Name string `json:"name"`
}

type ChatRoomResponse struct {
	ID        int64  `json:"id"`
	ProjectID int64  `json:"project_id"`
	Name      string `json:"name"`
	CreatedBy int64  `json:"created_by"`
	CreatedAt string `json:"created_at"`
}

// ListChatRooms lists a project's chat rooms.
func (h *ChatHandler) ListChatRooms(c *fiber.Ctx) error {
	projectID, err := c.ParamsInt("projectId")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid project id",
		})
	}

	var rooms []model.ChatRoom
	if err := h.db.Where("project_id = ?", projectID).Order("created_at ASC").Find(&rooms).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to load chat rooms",
		})
	}

	resp := make([]ChatRoomResponse, 0, len(rooms))
	for i := range rooms {
		resp = append(resp, toChatRoomResponse(&rooms[i]))
	}
	return c.JSON(resp)
}

// CreateChatRoom creates a chat room in a project.
func (h *ChatHandler) CreateChatRoom(c *fiber.Ctx) error {
	claims := c.Locals("claims").(*auth.Claims)
	projectID, err := c.ParamsInt("projectId")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid project id",
		})
	}

	var req CreateChatRoomRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid request body",
		})
	}

	req.Name = sanitizeString(req.Name)
	if req.Name == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "room name is required",
		})
	}

	room := model.ChatRoom{
		ProjectID: int64(projectID),
		Name:      req.Name,
		CreatedBy: claims.UserID,
	}
	if err := h.db.Create(&room).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to create chat room",
		})
	}

	return c.Status(fiber.StatusCreated).JSON(toChatRoomResponse(&room))
}

// GetMessages returns recent messages, oldest first. Deleted messages are
// excluded, matching the realtime history event.
func (h *ChatHandler) GetMessages(c *fiber.Ctx) error {
	projectID, err := c.ParamsInt("projectId")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid project id",
		})
	}
	chatID, err := c.ParamsInt("chatId")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid chat room id",
		})
	}

	var room model.ChatRoom
	if err := h.db.Where("id = ? AND project_id = ?", chatID, projectID).First(&room).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "chat room not found",
		})
	}

	limit := defaultHistoryLimit
	if raw := c.Query("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 200 {
			limit = n
		}
	}

	messages, err := h.chats.History(c.Context(), int64(chatID), limit)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to load messages",
		})
	}

	return c.JSON(fiber.Map{
		"chat_id":  room.ID,
		"messages": messages,
	})
}

func toChatRoomResponse(r *model.ChatRoom) ChatRoomResponse {
	return ChatRoomResponse{
		ID:        r.ID,
		ProjectID: r.ProjectID,
		Name:      r.Name,
		CreatedBy: r.CreatedBy,
		CreatedAt: r.CreatedAt.Format(timeFormat),
	}
}
