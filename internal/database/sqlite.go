package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Ashy-21/TWINK/internal/models"
	"github.com/Ashy-21/TWINK/pkg/logger"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

type userRecord struct {
	ID           int    `gorm:"primaryKey"`
	Username     string `gorm:"size:150;uniqueIndex;not null"`
	Email        string `gorm:"size:254;not null;default:''"`
	PasswordHash string `gorm:"not null"`
	CreatedAt    time.Time
}

func (userRecord) TableName() string { return "users" }

type messageRecord struct {
	ID        int64     `gorm:"primaryKey"`
	SenderID  *int      `gorm:"index"`
	RoomName  string    `gorm:"size:255;not null;index:idx_messages_room_time,priority:1"`
	Content   string    `gorm:"not null;default:''"`
	IsGroup   bool      `gorm:"not null;default:false"`
	CreatedAt time.Time `gorm:"index:idx_messages_room_time,priority:2"`
}

func (messageRecord) TableName() string { return "messages" }

type groupRecord struct {
	ID        int    `gorm:"primaryKey"`
	Name      string `gorm:"size:150;not null"`
	CreatedAt time.Time
}

func (groupRecord) TableName() string { return "chat_groups" }

type groupMemberRecord struct {
	GroupID int `gorm:"primaryKey;autoIncrement:false"`
	UserID  int `gorm:"primaryKey;autoIncrement:false;index"`
}

func (groupMemberRecord) TableName() string { return "group_members" }

// messageRow is a message joined with its sender's username.
type messageRow struct {
	ID        int64
	SenderID  *int
	Sender    string
	Content   string
	RoomName  string
	IsGroup   bool
	CreatedAt time.Time
}

// SQLiteDB is the single-file backend used for local runs and tests.
type SQLiteDB struct {
	db *gorm.DB
}

// NewSQLiteDB opens path (":memory:" for a private in-memory database).
func NewSQLiteDB(path string) (*SQLiteDB, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}
	// Each connection to ":memory:" is a separate database, and sqlite serializes writers anyway.
	sqlDB.SetMaxOpenConns(1)

	logger.Info("Opened sqlite database at %s", path)
	return &SQLiteDB{db: db}, nil
}

func (s *SQLiteDB) Migrate(ctx context.Context) error {
	return s.db.WithContext(ctx).AutoMigrate(&userRecord{}, &messageRecord{}, &groupRecord{}, &groupMemberRecord{})
}

func (s *SQLiteDB) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func gormNotFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

func (r *userRecord) toModel() *models.User {
	return &models.User{
		ID:           r.ID,
		Username:     r.Username,
		Email:        r.Email,
		PasswordHash: r.PasswordHash,
		CreatedAt:    r.CreatedAt,
	}
}

func (s *SQLiteDB) CreateUser(ctx context.Context, req *models.RegisterRequest) (*models.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	rec := &userRecord{
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: string(hash),
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.db.WithContext(ctx).Create(rec).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, fmt.Errorf("username %q: %w", req.Username, ErrConflict)
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return rec.toModel(), nil
}

func (s *SQLiteDB) GetUserByID(ctx context.Context, id int) (*models.User, error) {
	var rec userRecord
	if err := s.db.WithContext(ctx).First(&rec, "id = ?", id).Error; err != nil {
		return nil, gormNotFound(err)
	}
	return rec.toModel(), nil
}

func (s *SQLiteDB) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	var rec userRecord
	if err := s.db.WithContext(ctx).First(&rec, "username = ?", username).Error; err != nil {
		return nil, gormNotFound(err)
	}
	return rec.toModel(), nil
}

func (s *SQLiteDB) UsernameExists(ctx context.Context, username string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&userRecord{}).Where("username = ?", username).Count(&count).Error
	return count > 0, err
}

func (s *SQLiteDB) SearchUsers(ctx context.Context, q string, limit int) ([]*models.UserSummary, error) {
	tx := s.db.WithContext(ctx).Model(&userRecord{}).Select("id, username").Order("username").Limit(limit)
	if q != "" {
		tx = tx.Where(`username LIKE ? ESCAPE '\'`, "%"+escapeLike(q)+"%")
	}

	var users []*models.UserSummary
	if err := tx.Scan(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}

func (s *SQLiteDB) AppendMessage(ctx context.Context, msg *models.Message) (*models.Message, error) {
	rec := &messageRecord{
		SenderID:  msg.SenderID,
		RoomName:  msg.RoomName,
		Content:   msg.Content,
		IsGroup:   models.IsGroupRoom(msg.RoomName),
		CreatedAt: time.Now().UTC(),
	}
	if err := s.db.WithContext(ctx).Create(rec).Error; err != nil {
		return nil, fmt.Errorf("failed to append message: %w", err)
	}

	saved := *msg
	saved.ID = rec.ID
	saved.IsGroup = rec.IsGroup
	saved.Timestamp = rec.CreatedAt
	return &saved, nil
}

func (s *SQLiteDB) QueryMessages(ctx context.Context, room string, limit int) ([]*models.Message, error) {
	var rows []messageRow
	err := s.db.WithContext(ctx).
		Table("messages AS m").
		Select("m.id, m.sender_id, COALESCE(u.username, '') AS sender, m.content, m.room_name, m.is_group, m.created_at").
		Joins("LEFT JOIN users u ON u.id = m.sender_id").
		Where("m.room_name = ?", room).
		Order("m.id DESC").
		Limit(limit).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	messages := make([]*models.Message, 0, len(rows))
	for _, row := range rows {
		messages = append(messages, &models.Message{
			ID:        row.ID,
			SenderID:  row.SenderID,
			Sender:    row.Sender,
			Content:   row.Content,
			RoomName:  row.RoomName,
			IsGroup:   row.IsGroup,
			Timestamp: row.CreatedAt,
		})
	}

	reverseMessages(messages)
	return messages, nil
}

func (s *SQLiteDB) CreateGroup(ctx context.Context, name string, memberIDs []int) (*models.Group, error) {
	rec := &groupRecord{Name: name, CreatedAt: time.Now().UTC()}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(rec).Error; err != nil {
			return fmt.Errorf("failed to create group: %w", err)
		}
		seen := make(map[int]bool, len(memberIDs))
		for _, userID := range memberIDs {
			if seen[userID] {
				continue
			}
			seen[userID] = true
			if err := tx.Create(&groupMemberRecord{GroupID: rec.ID, UserID: userID}).Error; err != nil {
				return fmt.Errorf("failed to add group member: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	members, err := s.groupMembers(ctx, rec.ID)
	if err != nil {
		return nil, err
	}
	return &models.Group{
		ID:        rec.ID,
		Name:      rec.Name,
		Room:      models.GroupRoom(rec.ID),
		Members:   members,
		CreatedAt: rec.CreatedAt,
	}, nil
}

func (s *SQLiteDB) ListUserGroups(ctx context.Context, userID int) ([]*models.Group, error) {
	var recs []groupRecord
	err := s.db.WithContext(ctx).
		Select("chat_groups.*").
		Joins("JOIN group_members gm ON gm.group_id = chat_groups.id").
		Where("gm.user_id = ?", userID).
		Order("chat_groups.name, chat_groups.id").
		Find(&recs).Error
	if err != nil {
		return nil, err
	}

	groups := make([]*models.Group, 0, len(recs))
	for _, rec := range recs {
		members, err := s.groupMembers(ctx, rec.ID)
		if err != nil {
			return nil, err
		}
		groups = append(groups, &models.Group{
			ID:        rec.ID,
			Name:      rec.Name,
			Room:      models.GroupRoom(rec.ID),
			Members:   members,
			CreatedAt: rec.CreatedAt,
		})
	}
	return groups, nil
}

func (s *SQLiteDB) IsGroupMember(ctx context.Context, groupID, userID int) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&groupMemberRecord{}).
		Where("group_id = ? AND user_id = ?", groupID, userID).
		Count(&count).Error
	return count > 0, err
}

func (s *SQLiteDB) groupMembers(ctx context.Context, groupID int) ([]string, error) {
	var names []string
	err := s.db.WithContext(ctx).
		Table("group_members AS gm").
		Joins("JOIN users u ON u.id = gm.user_id").
		Where("gm.group_id = ?", groupID).
		Order("u.username").
		Pluck("u.username", &names).Error
	return names, err
}
