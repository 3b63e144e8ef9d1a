package handlers

import (
	"database/sql"
	"log"
	"time"
)

// SaveNotification inserts an in-app notification for a user. Failures are
// logged and swallowed; a missed notification never fails the operation that
// produced it.
func SaveNotification(db *sql.DB, userID int, message, action string) {
	query := `
		INSERT INTO notifications (user_id, message, status, action, created_at, updated_at)
		VALUES ($1, $2, 'unread', $3, $4, $4)`
	if _, err := db.Exec(query, userID, message, action, time.Now()); err != nil {
		log.Printf("Error saving notification for user %d: %v", userID, err)
	}
}

// NotifyProjectMembers inserts a notification for every member of a project.
func NotifyProjectMembers(db *sql.DB, projectID int, message, action string) {
	rows, err := db.Query(`SELECT user_id FROM project_members WHERE project_id = $1`, projectID)
	if err != nil {
		log.Printf("Error fetching project members for notification: %v", err)
		return
	}
	defer rows.Close()

	for rows.Next() {
		var userID int
		if err := rows.Scan(&userID); err != nil {
			log.Printf("Error scanning user ID: %v", err)
			continue
		}
		SaveNotification(db, userID, message, action)
	}
}
