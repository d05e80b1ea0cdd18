package migrations

import (
	"gorm.io/gorm"
)

// Run applies the schema of every record set passed in. Each Postgres adapter
// exposes its records through a Models function.
func Run(db *gorm.DB, sets ...[]any) error {
	if db == nil {
		return nil
	}
	var models []any
	for _, set := range sets {
		models = append(models, set...)
	}
	if len(models) == 0 {
		return nil
	}
	return db.AutoMigrate(models...)
}
