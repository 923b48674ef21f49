package mysql

import (
	"fmt"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"github.com/krismos64/Staka-livres-sub003/internal/config"
	"github.com/krismos64/Staka-livres-sub003/internal/datamodels/conversation"
	"github.com/krismos64/Staka-livres-sub003/internal/datamodels/file"
	"github.com/krismos64/Staka-livres-sub003/internal/datamodels/invoice"
	"github.com/krismos64/Staka-livres-sub003/internal/datamodels/notification"
	"github.com/krismos64/Staka-livres-sub003/internal/datamodels/order"
	"github.com/krismos64/Staka-livres-sub003/internal/datamodels/outbox"
	"github.com/krismos64/Staka-livres-sub003/internal/datamodels/pendingorder"
	"github.com/krismos64/Staka-livres-sub003/internal/datamodels/servicepack"
	"github.com/krismos64/Staka-livres-sub003/internal/datamodels/user"
)

// New opens the database and migrates the schema. TranslateError is on
// so unique-constraint violations surface as gorm.ErrDuplicatedKey.
func New(cfg *config.MySQLConfig) (*gorm.DB, error) {
	db, err := gorm.Open(mysql.Open(cfg.DSN), &gorm.Config{TranslateError: true})
	if err != nil {
		return nil, fmt.Errorf("connect mysql: %w", err)
	}

	if err := db.AutoMigrate(
		&user.User{},
		&servicepack.ServicePack{},
		&order.Order{},
		&pendingorder.PendingOrder{},
		&invoice.Invoice{},
		&file.File{},
		&conversation.Message{},
		&notification.Notification{},
		&outbox.Task{},
	); err != nil {
		return nil, fmt.Errorf("auto migrate: %w", err)
	}
	return db, nil
}
