// Command check_db inspects the collaboration schema: table presence,
// membership status distribution and recent activity. Ops diagnostic, not
// part of the serving path.
package main

import (
	"fmt"
	"log"

	"github.com/joho/godotenv"

	"projecthub-backend/internal/database"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file, using process environment")
	}

	db, err := database.ConnectDB()
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	defer database.Close()

	fmt.Println("connected to database")
	fmt.Println()

	tables := []string{
		"users", "projects", "project_members",
		"chat_rooms", "chat_messages",
		"whiteboards", "whiteboard_elements",
	}

	fmt.Println("tables:")
	for _, table := range tables {
		var exists bool
		query := `
			SELECT EXISTS (
				SELECT 1 FROM information_schema.tables WHERE table_name = ?
			)
		`
		if err := db.Raw(query, table).Scan(&exists).Error; err != nil {
			log.Fatalf("failed to check table %s: %v", table, err)
		}
		if !exists {
			fmt.Printf("  - %-20s MISSING (run the server once to migrate)\n", table)
			continue
		}

		var count int64
		if err := db.Table(table).Count(&count).Error; err != nil {
			log.Fatalf("failed to count %s: %v", table, err)
		}
		fmt.Printf("  - %-20s %d rows\n", table, count)
	}
	fmt.Println()

	type statusStats struct {
		Total  int64
		Active int64
		Left   int64
		Null   int64
	}
	var stats statusStats
	query := `
		SELECT
			COUNT(*) as total,
			COUNT(CASE WHEN status = 'ACTIVE' THEN 1 END) as active,
			COUNT(CASE WHEN status = 'LEFT' THEN 1 END) as left,
			COUNT(CASE WHEN status IS NULL THEN 1 END) as null
		FROM project_members
	`
	if err := db.Raw(query).Scan(&stats).Error; err != nil {
		log.Fatalf("failed to get member statistics: %v", err)
	}

	fmt.Println("member status:")
	fmt.Printf("  - total:  %d\n", stats.Total)
	fmt.Printf("  - ACTIVE: %d\n", stats.Active)
	fmt.Printf("  - LEFT:   %d\n", stats.Left)
	fmt.Printf("  - NULL:   %d\n", stats.Null)
	fmt.Println()

	type recentMessage struct {
		ID         int64
		ChatRoomID int64
		SenderID   int64
		IsDeleted  bool
		CreatedAt  string
	}
	var recent []recentMessage
	query = `
		SELECT id, chat_room_id, sender_id, is_deleted, created_at
		FROM chat_messages
		ORDER BY id DESC
		LIMIT 10
	`
	if err := db.Raw(query).Scan(&recent).Error; err != nil {
		log.Fatalf("failed to get recent messages: %v", err)
	}

	fmt.Println("recent messages (last 10):")
	for _, m := range recent {
		fmt.Printf("  - id %d, room %d, sender %d, deleted %v, at %s\n",
			m.ID, m.ChatRoomID, m.SenderID, m.IsDeleted, m.CreatedAt)
	}
}
