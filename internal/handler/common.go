package handler

import (
	"strings"
	"time"

	"projecthub-backend/internal/model"
)

const timeFormat = time.RFC3339

// UserResponse is the public view of a user account.
type UserResponse struct {
	ID         int64   `json:"id"`
	Email      string  `json:"email"`
	Nickname   string  `json:"nickname"`
	ProfileImg *string `json:"profile_img,omitempty"`
}

func toUserResponse(u *model.User) UserResponse {
	return UserResponse{
		ID:         u.ID,
		Email:      u.Email,
		Nickname:   u.Nickname,
		ProfileImg: u.ProfileImg,
	}
}

// sanitizeString strips characters that break file names and naive renderers.
func sanitizeString(s string) string {
	s = strings.TrimSpace(s)
	invalidChars := []string{"<", ">", "\"", "\\", "|", "?", "*"}
	for _, char := range invalidChars {
		s = strings.ReplaceAll(s, char, "")
	}
	return s
}
