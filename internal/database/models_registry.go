package database

import "cozytiny/internal/models"

// PersistentModels returns the authoritative set of schema-managed GORM models.
// Parents come before children so AutoMigrate can create foreign keys.
func PersistentModels() []interface{} {
	return []interface{}{
		&models.Post{},
		&models.Step{},
	}
}
