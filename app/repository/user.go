package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/vibast-solutions/ms-go-identity/app/entity"

	"github.com/go-sql-driver/mysql"
)

const mysqlDuplicateEntry = 1062

const selectUserColumns = `
		SELECT id, username, email, full_name, password_hash, avatar_url, cover_image_url, role,
		       refresh_token, reset_token, reset_token_expires_at, watch_history_json, created_at, updated_at
		FROM users`

// UserRepository is the MySQL credential store.
type UserRepository struct {
	db DBTX
}

func NewUserRepository(db DBTX) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) Create(ctx context.Context, user *entity.User) error {
	history := user.WatchHistory
	if history == nil {
		history = []string{}
	}
	historyJSON, err := json.Marshal(history)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO users (id, username, email, full_name, password_hash, avatar_url, cover_image_url, role, watch_history_json, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = r.db.ExecContext(ctx, query,
		user.ID,
		user.Username,
		user.Email,
		user.FullName,
		user.PasswordHash,
		user.AvatarURL,
		nullString(user.CoverImageURL),
		user.Role,
		string(historyJSON),
		user.CreatedAt,
		user.UpdatedAt,
	)
	return translateMySQLError(err)
}

func (r *UserRepository) FindByID(ctx context.Context, id string) (*entity.User, error) {
	return r.findOne(ctx, selectUserColumns+` WHERE id = ?`, id)
}

func (r *UserRepository) FindByUsername(ctx context.Context, username string) (*entity.User, error) {
	return r.findOne(ctx, selectUserColumns+` WHERE username = ?`, username)
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*entity.User, error) {
	return r.findOne(ctx, selectUserColumns+` WHERE email = ?`, email)
}

func (r *UserRepository) FindByUsernameOrEmail(ctx context.Context, identifier string) (*entity.User, error) {
	return r.findOne(ctx, selectUserColumns+` WHERE username = ? OR email = ? LIMIT 1`, identifier, identifier)
}

func (r *UserRepository) FindByResetTokenHash(ctx context.Context, tokenHash string, now time.Time) (*entity.User, error) {
	return r.findOne(ctx, selectUserColumns+` WHERE reset_token = ? AND reset_token_expires_at > ?`, tokenHash, now)
}

func (r *UserRepository) SetRefreshToken(ctx context.Context, id, token string) error {
	query := `UPDATE users SET refresh_token = ?, updated_at = ? WHERE id = ?`
	_, err := r.db.ExecContext(ctx, query, token, time.Now(), id)
	return err
}

func (r *UserRepository) SwapRefreshToken(ctx context.Context, id, expected, next string) (bool, error) {
	query := `UPDATE users SET refresh_token = ?, updated_at = ? WHERE id = ? AND refresh_token = ?`
	result, err := r.db.ExecContext(ctx, query, next, time.Now(), id, expected)
	if err != nil {
		return false, err
	}
	return affectedOne(result)
}

func (r *UserRepository) ClearRefreshToken(ctx context.Context, id string) error {
	query := `UPDATE users SET refresh_token = NULL, updated_at = ? WHERE id = ?`
	_, err := r.db.ExecContext(ctx, query, time.Now(), id)
	return err
}

func (r *UserRepository) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	query := `UPDATE users SET password_hash = ?, updated_at = ? WHERE id = ?`
	_, err := r.db.ExecContext(ctx, query, passwordHash, time.Now(), id)
	return err
}

func (r *UserRepository) SetResetToken(ctx context.Context, id, tokenHash string, expiresAt time.Time) error {
	query := `UPDATE users SET reset_token = ?, reset_token_expires_at = ?, updated_at = ? WHERE id = ?`
	_, err := r.db.ExecContext(ctx, query, tokenHash, expiresAt, time.Now(), id)
	return err
}

func (r *UserRepository) ConsumeResetToken(ctx context.Context, id, tokenHash string, now time.Time, passwordHash string) (bool, error) {
	query := `
		UPDATE users SET
			password_hash = ?,
			reset_token = NULL,
			reset_token_expires_at = NULL,
			updated_at = ?
		WHERE id = ? AND reset_token = ? AND reset_token_expires_at > ?
	`
	result, err := r.db.ExecContext(ctx, query, passwordHash, time.Now(), id, tokenHash, now)
	if err != nil {
		return false, err
	}
	return affectedOne(result)
}

func (r *UserRepository) UpdateProfile(ctx context.Context, id, fullName, email string) (*entity.User, error) {
	query := `UPDATE users SET full_name = ?, email = ?, updated_at = ? WHERE id = ?`
	if _, err := r.db.ExecContext(ctx, query, fullName, email, time.Now(), id); err != nil {
		return nil, translateMySQLError(err)
	}
	return r.FindByID(ctx, id)
}

func (r *UserRepository) UpdateAvatar(ctx context.Context, id, url string) (*entity.User, error) {
	query := `UPDATE users SET avatar_url = ?, updated_at = ? WHERE id = ?`
	if _, err := r.db.ExecContext(ctx, query, url, time.Now(), id); err != nil {
		return nil, err
	}
	return r.FindByID(ctx, id)
}

func (r *UserRepository) UpdateCoverImage(ctx context.Context, id, url string) (*entity.User, error) {
	query := `UPDATE users SET cover_image_url = ?, updated_at = ? WHERE id = ?`
	if _, err := r.db.ExecContext(ctx, query, url, time.Now(), id); err != nil {
		return nil, err
	}
	return r.FindByID(ctx, id)
}

func (r *UserRepository) UpdateRole(ctx context.Context, id, role string) (*entity.User, error) {
	query := `UPDATE users SET role = ?, updated_at = ? WHERE id = ?`
	if _, err := r.db.ExecContext(ctx, query, role, time.Now(), id); err != nil {
		return nil, err
	}
	return r.FindByID(ctx, id)
}

func (r *UserRepository) List(ctx context.Context, page, limit int) (*entity.UserPage, error) {
	var total int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&total); err != nil {
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx, selectUserColumns+` ORDER BY created_at DESC LIMIT ? OFFSET ?`, limit, pageOffset(page, limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]*entity.User, 0, limit)
	for rows.Next() {
		user, err := scanUser(rows.Scan)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}

	return &entity.UserPage{Users: users, Total: total, Page: page, Limit: limit}, nil
}

func (r *UserRepository) Delete(ctx context.Context, id string) (bool, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id)
	if err != nil {
		return false, err
	}
	return affectedOne(result)
}

func (r *UserRepository) findOne(ctx context.Context, query string, args ...interface{}) (*entity.User, error) {
	row := r.db.QueryRowContext(ctx, query, args...)
	user, err := scanUser(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return user, nil
}

func scanUser(scan rowScanner) (*entity.User, error) {
	user := &entity.User{}
	var (
		coverImage   sql.NullString
		refreshToken sql.NullString
		resetToken   sql.NullString
		resetExpires sql.NullTime
		historyJSON  string
	)
	if err := scan(
		&user.ID,
		&user.Username,
		&user.Email,
		&user.FullName,
		&user.PasswordHash,
		&user.AvatarURL,
		&coverImage,
		&user.Role,
		&refreshToken,
		&resetToken,
		&resetExpires,
		&historyJSON,
		&user.CreatedAt,
		&user.UpdatedAt,
	); err != nil {
		return nil, err
	}

	user.CoverImageURL = coverImage.String
	user.RefreshToken = refreshToken.String
	user.ResetPasswordToken = resetToken.String
	if resetExpires.Valid {
		expires := resetExpires.Time
		user.ResetPasswordExpiresAt = &expires
	}

	user.WatchHistory = []string{}
	if historyJSON != "" {
		if err := json.Unmarshal([]byte(historyJSON), &user.WatchHistory); err != nil {
			return nil, err
		}
	}

	return user, nil
}

func affectedOne(result sql.Result) (bool, error) {
	n, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func nullString(value string) sql.NullString {
	return sql.NullString{String: value, Valid: value != ""}
}

func translateMySQLError(err error) error {
	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) && mysqlErr.Number == mysqlDuplicateEntry {
		return ErrDuplicate
	}
	return err
}
