package database

import "crabber/internal/models"

// PersistentModels returns the authoritative set of schema-managed GORM models.
func PersistentModels() []interface{} {
	return []interface{}{
		&models.Crab{},
		&models.Card{},
		&models.Molt{},
		&models.MoltAncestor{},
		&models.Crabtag{},
		&models.MoltTag{},
		&models.MoltMention{},
		&models.Like{},
		&models.Follow{},
		&models.Block{},
		&models.Bookmark{},
		&models.Notification{},
		&models.DeveloperKey{},
		&models.AccessToken{},
	}
}
