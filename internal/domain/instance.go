package domain

import "time"

// Instance identifies this server installation. Created once on first
// start and persisted in the meta store.
type Instance struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Version   string    `json:"version"`
	CreatedAt time.Time `json:"created_at"`
}
