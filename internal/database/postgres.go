package database

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"strings"

	"github.com/Ashy-21/TWINK/internal/models"
	"github.com/Ashy-21/TWINK/pkg/logger"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/crypto/bcrypt"
)

type PostgresDB struct {
	pool *pgxpool.Pool
}

func NewPostgresDB(databaseURL string) (*PostgresDB, error) {
	pool, err := pgxpool.New(context.Background(), databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Test connection
	if err := pool.Ping(context.Background()); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Info("Connected to database successfully")
	return &PostgresDB{pool: pool}, nil
}

func (db *PostgresDB) Close() error {
	db.pool.Close()
	return nil
}

// Migrate applies the embedded schema files in name order. Every statement is idempotent.
func (db *PostgresDB) Migrate(ctx context.Context) error {
	names, err := fs.Glob(migrationFiles, "migrations/*.sql")
	if err != nil {
		return err
	}
	sort.Strings(names)

	for _, name := range names {
		sql, err := migrationFiles.ReadFile(name)
		if err != nil {
			return fmt.Errorf("read %s: %w", name, err)
		}
		if _, err := db.pool.Exec(ctx, string(sql)); err != nil {
			return fmt.Errorf("apply %s: %w", name, err)
		}
		logger.Debug("Applied migration %s", name)
	}
	return nil
}

func notFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

// User Repository Implementation
func (db *PostgresDB) CreateUser(ctx context.Context, req *models.RegisterRequest) (*models.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	query := `
		INSERT INTO users (username, email, password_hash, created_at)
		VALUES ($1, $2, $3, NOW())
		RETURNING id, username, email, created_at`

	user := &models.User{PasswordHash: string(hash)}
	err = db.pool.QueryRow(ctx, query, req.Username, req.Email, string(hash)).Scan(
		&user.ID, &user.Username, &user.Email, &user.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("username %q: %w", req.Username, ErrConflict)
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	return user, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func (db *PostgresDB) GetUserByID(ctx context.Context, id int) (*models.User, error) {
	query := `SELECT id, username, email, password_hash, created_at FROM users WHERE id = $1`

	user := &models.User{}
	err := db.pool.QueryRow(ctx, query, id).Scan(
		&user.ID, &user.Username, &user.Email, &user.PasswordHash, &user.CreatedAt,
	)
	if err != nil {
		return nil, notFound(err)
	}

	return user, nil
}

func (db *PostgresDB) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	query := `SELECT id, username, email, password_hash, created_at FROM users WHERE username = $1`

	user := &models.User{}
	err := db.pool.QueryRow(ctx, query, username).Scan(
		&user.ID, &user.Username, &user.Email, &user.PasswordHash, &user.CreatedAt,
	)
	if err != nil {
		return nil, notFound(err)
	}

	return user, nil
}

func (db *PostgresDB) UsernameExists(ctx context.Context, username string) (bool, error) {
	var exists bool
	err := db.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM users WHERE username = $1)`, username).Scan(&exists)
	return exists, err
}

func (db *PostgresDB) SearchUsers(ctx context.Context, q string, limit int) ([]*models.UserSummary, error) {
	query := `
		SELECT id, username FROM users
		WHERE $1 = '' OR username ILIKE '%' || $1 || '%' ESCAPE '\'
		ORDER BY username
		LIMIT $2`

	rows, err := db.pool.Query(ctx, query, escapeLike(q), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []*models.UserSummary
	for rows.Next() {
		u := &models.UserSummary{}
		if err := rows.Scan(&u.ID, &u.Username); err != nil {
			return nil, err
		}
		users = append(users, u)
	}

	return users, rows.Err()
}

// Message Repository Implementation
func (db *PostgresDB) AppendMessage(ctx context.Context, msg *models.Message) (*models.Message, error) {
	query := `
		INSERT INTO messages (sender_id, room_name, content, is_group, created_at)
		VALUES ($1, $2, $3, $4, NOW())
		RETURNING id, created_at`

	saved := *msg
	saved.IsGroup = models.IsGroupRoom(msg.RoomName)
	err := db.pool.QueryRow(ctx, query, msg.SenderID, msg.RoomName, msg.Content, saved.IsGroup).Scan(
		&saved.ID, &saved.Timestamp,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to append message: %w", err)
	}

	return &saved, nil
}

func (db *PostgresDB) QueryMessages(ctx context.Context, room string, limit int) ([]*models.Message, error) {
	query := `
		SELECT m.id, m.sender_id, COALESCE(u.username, ''), m.content, m.room_name, m.is_group, m.created_at
		FROM messages m
		LEFT JOIN users u ON m.sender_id = u.id
		WHERE m.room_name = $1
		ORDER BY m.id DESC
		LIMIT $2`

	rows, err := db.pool.Query(ctx, query, room, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []*models.Message
	for rows.Next() {
		msg := &models.Message{}
		if err := rows.Scan(&msg.ID, &msg.SenderID, &msg.Sender, &msg.Content, &msg.RoomName, &msg.IsGroup, &msg.Timestamp); err != nil {
			return nil, err
		}
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	reverseMessages(messages)
	return messages, nil
}

// Group Repository Implementation
func (db *PostgresDB) CreateGroup(ctx context.Context, name string, memberIDs []int) (*models.Group, error) {
	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	group := &models.Group{Name: name}
	err = tx.QueryRow(ctx,
		`INSERT INTO chat_groups (name, created_at) VALUES ($1, NOW()) RETURNING id, created_at`, name,
	).Scan(&group.ID, &group.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create group: %w", err)
	}

	for _, userID := range memberIDs {
		if _, err := tx.Exec(ctx,
			`INSERT INTO group_members (group_id, user_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
			group.ID, userID,
		); err != nil {
			return nil, fmt.Errorf("failed to add group member: %w", err)
		}
	}

	err = tx.QueryRow(ctx, `
		SELECT COALESCE(array_agg(u.username ORDER BY u.username), '{}')
		FROM group_members gm JOIN users u ON u.id = gm.user_id
		WHERE gm.group_id = $1`, group.ID,
	).Scan(&group.Members)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	group.Room = models.GroupRoom(group.ID)
	return group, nil
}

func (db *PostgresDB) ListUserGroups(ctx context.Context, userID int) ([]*models.Group, error) {
	query := `
		SELECT g.id, g.name, g.created_at, array_agg(u.username ORDER BY u.username)
		FROM chat_groups g
		JOIN group_members mine ON mine.group_id = g.id AND mine.user_id = $1
		JOIN group_members gm ON gm.group_id = g.id
		JOIN users u ON u.id = gm.user_id
		GROUP BY g.id, g.name, g.created_at
		ORDER BY g.name, g.id`

	rows, err := db.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var groups []*models.Group
	for rows.Next() {
		g := &models.Group{}
		if err := rows.Scan(&g.ID, &g.Name, &g.CreatedAt, &g.Members); err != nil {
			return nil, err
		}
		g.Room = models.GroupRoom(g.ID)
		groups = append(groups, g)
	}

	return groups, rows.Err()
}

func (db *PostgresDB) IsGroupMember(ctx context.Context, groupID, userID int) (bool, error) {
	var member bool
	err := db.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM group_members WHERE group_id = $1 AND user_id = $2)`,
		groupID, userID,
	).Scan(&member)
	return member, err
}

// escapeLike makes s match literally inside a LIKE pattern using ESCAPE '\'.
func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// reverseMessages turns a newest-first page into oldest-first.
func reverseMessages(messages []*models.Message) {
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
}
