package db

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// The row types below exist only to describe DDL for gorm's AutoMigrate.
// Reads and writes go through pgx in repository/postgres; keep the column
// names here in step with the queries there.

type userRow struct {
	ID           string    `gorm:"type:uuid;primaryKey"`
	Subject      string    `gorm:"type:text;not null;uniqueIndex:idx_users_subject"`
	Username     string    `gorm:"type:text;not null"`
	Email        string    `gorm:"type:text;not null;uniqueIndex:idx_users_email"`
	ImageURL     string    `gorm:"type:text;not null;default:''"`
	PasswordHash string    `gorm:"type:text;not null;default:''"`
	CreatedAt    time.Time `gorm:"type:timestamptz;not null"`
}

func (userRow) TableName() string { return "users" }

type conversationRow struct {
	ID         string     `gorm:"type:uuid;primaryKey"`
	IsGroup    bool       `gorm:"not null"`
	Name       *string    `gorm:"type:text"`
	DirectKey  *string    `gorm:"type:text;uniqueIndex:idx_conversations_direct_key"`
	DeletingAt *time.Time `gorm:"type:timestamptz;index:idx_conversations_deleting_at"`
	CreatedAt  time.Time  `gorm:"type:timestamptz;not null"`
}

func (conversationRow) TableName() string { return "conversations" }

type conversationMemberRow struct {
	ConversationID    string    `gorm:"type:uuid;primaryKey"`
	UserID            string    `gorm:"type:uuid;primaryKey;index:idx_conversation_members_user"`
	LastSeenMessageID *int64    `gorm:"type:bigint"`
	JoinedAt          time.Time `gorm:"type:timestamptz;not null"`
}

func (conversationMemberRow) TableName() string { return "conversation_members" }

type messageRow struct {
	ID             int64  `gorm:"primaryKey;autoIncrement"`
	ConversationID string `gorm:"type:uuid;not null;index:idx_messages_conversation_id,priority:1"`
	SenderID       string `gorm:"type:uuid;not null"`
	Type           string `gorm:"type:text;not null"`
	// text[] in Postgres; pgx scans it straight into []string.
	Content   string    `gorm:"type:text[];not null"`
	CreatedAt time.Time `gorm:"type:timestamptz;not null"`
}

func (messageRow) TableName() string { return "messages" }

type friendRequestRow struct {
	ID         string    `gorm:"type:uuid;primaryKey"`
	SenderID   string    `gorm:"type:uuid;not null;uniqueIndex:idx_friend_requests_pair,priority:1"`
	ReceiverID string    `gorm:"type:uuid;not null;uniqueIndex:idx_friend_requests_pair,priority:2;index:idx_friend_requests_receiver"`
	CreatedAt  time.Time `gorm:"type:timestamptz;not null"`
}

func (friendRequestRow) TableName() string { return "friend_requests" }

// Migrate brings the schema up to date. It opens its own short-lived gorm
// connection; the application pool is pgx.
func Migrate(ctx context.Context, databaseURL string, log *zap.Logger) error {
	gdb, err := gorm.Open(postgres.Open(databaseURL), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return fmt.Errorf("open migration connection: %w", err)
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		return fmt.Errorf("get migration sql.DB: %w", err)
	}
	defer sqlDB.Close()

	err = gdb.WithContext(ctx).AutoMigrate(
		&userRow{},
		&conversationRow{},
		&conversationMemberRow{},
		&messageRow{},
		&friendRequestRow{},
	)
	if err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}

	log.Info("schema migrated")
	return nil
}
