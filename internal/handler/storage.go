package handler

import (
	"github.com/gofiber/fiber/v2"

	"projecthub-backend/internal/storage"
)

// StorageHandler issues presigned S3 URLs for chat attachments.
type StorageHandler struct {
	s3 *storage.S3Service
}

func NewStorageHandler(s3 *storage.S3Service) *StorageHandler {
	return &StorageHandler{s3: s3}
}

type PresignUploadRequest struct {
	FileName    string `json:"file_name"`
	ContentType string `json:"content_type"`
	FileSize    int64  `json:"file_size"`
}

const maxAttachmentSize = 50 * 1024 * 1024

// PresignUpload returns a short-lived PUT URL. The client uploads directly
// to S3, then references the returned key in a chat-message attachment.
func (h *StorageHandler) PresignUpload(c *fiber.Ctx) error {
	if h.s3 == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "attachment storage is not configured",
		})
	}

	projectID, err := c.ParamsInt("projectId")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid project id",
		})
	}

	var req PresignUploadRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid request body",
		})
	}

	if req.FileName == "" || req.ContentType == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "file_name and content_type are required",
		})
	}
	if req.FileSize > maxAttachmentSize {
		return c.Status(fiber.StatusRequestEntityTooLarge).JSON(fiber.Map{
			"error": "file exceeds the 50MB attachment limit",
		})
	}

	presigned, err := h.s3.GenerateUploadURL(c.Context(), int64(projectID), req.FileName, req.ContentType)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to generate presigned URL",
		})
	}

	return c.JSON(fiber.Map{
		"upload_url": presigned.URL,
		"key":        presigned.Key,
		"expires_at": presigned.ExpiresAt,
	})
}

// PresignDownload returns a short-lived GET URL for an attachment key.
func (h *StorageHandler) PresignDownload(c *fiber.Ctx) error {
	if h.s3 == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "attachment storage is not configured",
		})
	}

	key := c.Query("key")
	if key == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "key is required",
		})
	}

	url, err := h.s3.GenerateDownloadURL(c.Context(), key)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to generate download URL",
		})
	}

	return c.JSON(fiber.Map{
		"download_url": url,
	})
}

// ConfirmUpload acknowledges a finished upload and returns the attachment's
// public URL. The client embeds it in the chat-message attachments payload.
func (h *StorageHandler) ConfirmUpload(c *fiber.Ctx) error {
	if h.s3 == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "attachment storage is not configured",
		})
	}

	var req struct {
		Key string `json:"key"`
	}
	if err := c.BodyParser(&req); err != nil || req.Key == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "key is required",
		})
	}

	return c.JSON(fiber.Map{
		"key": req.Key,
		"url": h.s3.GetPublicURL(req.Key),
	})
}

// DeleteAttachment removes an uploaded object, e.g. after an aborted upload
// or a deleted message.
func (h *StorageHandler) DeleteAttachment(c *fiber.Ctx) error {
	if h.s3 == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "attachment storage is not configured",
		})
	}

	key := c.Query("key")
	if key == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "key is required",
		})
	}

	if err := h.s3.DeleteFile(c.Context(), key); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to delete attachment",
		})
	}
	return c.SendStatus(fiber.StatusNoContent)
}
