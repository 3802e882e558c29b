package database

import "circles/internal/models"

// PersistentModels returns the authoritative set of schema-managed GORM models,
// ordered so that referenced tables come first.
func PersistentModels() []interface{} {
	return []interface{}{
		&models.User{},
		&models.UserSession{},
		&models.Circle{},
		&models.CircleMembership{},
		&models.Post{},
	}
}
