package database

import (
	"fmt"

	"github.com/yeremiapane/restaurant-dispatch/models"
	"github.com/yeremiapane/restaurant-dispatch/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Models lists every table the service owns, in dependency order.
func Models() []interface{} {
	return []interface{}{
		&models.User{},
		&models.Staff{},
		&models.Courier{},
		&models.Branch{},
		&models.MenuItem{},
		&models.CartItem{},
		&models.Counter{},
		&models.Order{},
		&models.OrderItem{},
		&models.Receipt{},
		&models.OrderEvent{},
		&models.Notification{},
		&models.NotificationRead{},
		&models.Chat{},
		&models.ChatMember{},
		&models.ChatMessage{},
	}
}

// Migrate creates the schema and seeds the rows the service expects to exist.
// Safe to run on every start.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(Models()...); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}

	seed := models.Counter{Name: models.TicketCounter, Value: 0}
	if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&seed).Error; err != nil {
		return fmt.Errorf("seed ticket counter: %w", err)
	}

	utils.InfoLogger.Info("AutoMigrate completed.")
	return nil
}
