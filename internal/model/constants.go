package model

// MemberStatus lifecycle of a project membership
type MemberStatus string

const (
	MemberStatusActive MemberStatus = "ACTIVE"
	MemberStatusLeft   MemberStatus = "LEFT"
)

func (s MemberStatus) String() string {
	return string(s)
}

// MemberRole role of a project member
type MemberRole string

const (
	MemberRoleOwner  MemberRole = "OWNER"
	MemberRoleAdmin  MemberRole = "ADMIN"
	MemberRoleMember MemberRole = "MEMBER"
)

func (r MemberRole) String() string {
	return string(r)
}

// MessageType chat message content type
type MessageType string

const (
	MessageTypeText   MessageType = "TEXT"
	MessageTypeImage  MessageType = "IMAGE"
	MessageTypeFile   MessageType = "FILE"
	MessageTypeSystem MessageType = "SYSTEM"
)

func (m MessageType) String() string {
	return string(m)
}
