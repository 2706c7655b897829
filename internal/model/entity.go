package model

import (
	"time"
)

// User account record
type User struct {
	ID           int64      `gorm:"primaryKey;autoIncrement" json:"id"`
	Email        string     `gorm:"type:varchar(255);uniqueIndex;not null" json:"email"`
	Nickname     string     `gorm:"type:varchar(100);not null" json:"nickname"`
	PasswordHash string     `gorm:"type:varchar(255);not null" json:"-"`
	ProfileImg   *string    `gorm:"type:text" json:"profile_img,omitempty"`
	IsActive     bool       `gorm:"default:true" json:"is_active"`
	LastSeenAt   *time.Time `json:"last_seen_at,omitempty"`
	CreatedAt    time.Time  `gorm:"autoCreateTime" json:"created_at"`

	// Relations
	Projects []ProjectMember `gorm:"foreignKey:UserID" json:"projects,omitempty"`
}

func (User) TableName() string {
	return "users"
}

// Project top-level collaboration space
type Project struct {
	ID          int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Name        string    `gorm:"type:varchar(100);not null" json:"name"`
	Description *string   `gorm:"type:text" json:"description,omitempty"`
	OwnerID     int64     `gorm:"not null" json:"owner_id"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`

	// Relations
	Owner       User            `gorm:"foreignKey:OwnerID" json:"owner,omitempty"`
	Members     []ProjectMember `gorm:"foreignKey:ProjectID" json:"members,omitempty"`
	ChatRooms   []ChatRoom      `gorm:"foreignKey:ProjectID" json:"chat_rooms,omitempty"`
	Whiteboards []Whiteboard    `gorm:"foreignKey:ProjectID" json:"whiteboards,omitempty"`
}

func (Project) TableName() string {
	return "projects"
}

// ProjectMember membership row linking users to projects
type ProjectMember struct {
	ID        int64        `gorm:"primaryKey;autoIncrement" json:"id"`
	ProjectID int64        `gorm:"not null;uniqueIndex:idx_project_user" json:"project_id"`
	UserID    int64        `gorm:"not null;uniqueIndex:idx_project_user" json:"user_id"`
	Role      MemberRole   `gorm:"type:varchar(20);default:'MEMBER'" json:"role"`
	Status    MemberStatus `gorm:"type:varchar(20);default:'ACTIVE'" json:"status"`
	JoinedAt  time.Time    `gorm:"autoCreateTime" json:"joined_at"`

	// Relations
	Project Project `gorm:"foreignKey:ProjectID" json:"project,omitempty"`
	User    User    `gorm:"foreignKey:UserID" json:"user,omitempty"`
}

func (ProjectMember) TableName() string {
	return "project_members"
}

// ChatRoom chat channel inside a project
type ChatRoom struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	ProjectID int64     `gorm:"not null;index" json:"project_id"`
	Name      string    `gorm:"type:varchar(100);not null" json:"name"`
	CreatedBy int64     `gorm:"not null" json:"created_by"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`

	// Relations
	Project  Project       `gorm:"foreignKey:ProjectID" json:"project,omitempty"`
	Messages []ChatMessage `gorm:"foreignKey:ChatRoomID" json:"messages,omitempty"`
}

func (ChatRoom) TableName() string {
	return "chat_rooms"
}

// Whiteboard collaborative drawing board inside a project
type Whiteboard struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	ProjectID int64     `gorm:"not null;index" json:"project_id"`
	Name      string    `gorm:"type:varchar(100);not null" json:"name"`
	CreatedBy int64     `gorm:"not null" json:"created_by"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`

	// Relations
	Project  Project             `gorm:"foreignKey:ProjectID" json:"project,omitempty"`
	Elements []WhiteboardElement `gorm:"foreignKey:WhiteboardID" json:"elements,omitempty"`
}

func (Whiteboard) TableName() string {
	return "whiteboards"
}
