package repository

import (
	"database/sql"
	"errors"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/odmhub/odmhub/internal/models"
)

// ErrDuplicateEmail is returned when an insert hits the unique email index.
var ErrDuplicateEmail = errors.New("duplicate email")

type UserRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

const userColumns = `id, email, password_hash, quota_mb, used_mb, quota_deadline, created_at, is_admin`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*models.User, error) {
	user := &models.User{}
	var deadline sql.NullTime
	var isAdmin int
	if err := row.Scan(&user.ID, &user.Email, &user.PasswordHash, &user.QuotaMB, &user.UsedMB,
		&deadline, &user.CreatedAt, &isAdmin); err != nil {
		return nil, err
	}
	if deadline.Valid {
		t := deadline.Time
		user.QuotaDeadline = &t
	}
	user.IsAdmin = isAdmin == 1
	return user, nil
}

func (r *UserRepository) Create(user *models.User) error {
	isAdmin := 0
	if user.IsAdmin {
		isAdmin = 1
	}
	_, err := r.db.Exec(`
		INSERT INTO users (id, email, password_hash, quota_mb, used_mb, created_at, is_admin)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, user.ID, user.Email, user.PasswordHash, user.QuotaMB, user.UsedMB, user.CreatedAt, isAdmin)
	return err
}

// CreateAccount inserts user in a single statement. The account is made an
// administrator when the table was empty. With firstOnly set nothing is
// inserted once any account exists. It reports whether a row was inserted
// and updates user.IsAdmin to what was stored.
func (r *UserRepository) CreateAccount(user *models.User, firstOnly bool) (bool, error) {
	onlyFirst := 0
	if firstOnly {
		onlyFirst = 1
	}
	result, err := r.db.Exec(`
		INSERT INTO users (id, email, password_hash, quota_mb, used_mb, created_at, is_admin)
		SELECT ?, ?, ?, ?, ?, ?, NOT EXISTS (SELECT 1 FROM users)
		WHERE ? = 0 OR NOT EXISTS (SELECT 1 FROM users)
	`, user.ID, user.Email, user.PasswordHash, user.QuotaMB, user.UsedMB, user.CreatedAt, onlyFirst)
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
			return false, ErrDuplicateEmail
		}
		return false, err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	if rows == 0 {
		return false, nil
	}

	var isAdmin int
	if err := r.db.QueryRow(`SELECT is_admin FROM users WHERE id = ?`, user.ID).Scan(&isAdmin); err != nil {
		return true, err
	}
	user.IsAdmin = isAdmin == 1
	return true, nil
}

func (r *UserRepository) GetByID(id string) (*models.User, error) {
	return scanUser(r.db.QueryRow(`SELECT `+userColumns+` FROM users WHERE id = ?`, id))
}

func (r *UserRepository) GetByEmail(email string) (*models.User, error) {
	return scanUser(r.db.QueryRow(`SELECT `+userColumns+` FROM users WHERE email = ? COLLATE NOCASE`, email))
}

func (r *UserRepository) SetQuota(id string, quotaMB int64) error {
	_, err := r.db.Exec(`UPDATE users SET quota_mb = ? WHERE id = ?`, quotaMB, id)
	return err
}

func (r *UserRepository) SetUsage(id string, usedMB int64) error {
	_, err := r.db.Exec(`UPDATE users SET used_mb = MAX(0, ?) WHERE id = ?`, usedMB, id)
	return err
}

// SetQuotaDeadline stores the deadline only when none is set yet and reports
// whether a row was updated.
func (r *UserRepository) SetQuotaDeadline(id string, deadline time.Time) (bool, error) {
	result, err := r.db.Exec(`
		UPDATE users SET quota_deadline = ? WHERE id = ? AND quota_deadline IS NULL
	`, deadline, id)
	if err != nil {
		return false, err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows > 0, nil
}

func (r *UserRepository) ClearQuotaDeadline(id string) error {
	_, err := r.db.Exec(`UPDATE users SET quota_deadline = NULL WHERE id = ?`, id)
	return err
}

func (r *UserRepository) SetAdmin(id string, isAdmin bool) error {
	value := 0
	if isAdmin {
		value = 1
	}
	_, err := r.db.Exec(`UPDATE users SET is_admin = ? WHERE id = ?`, value, id)
	return err
}

func (r *UserRepository) CountAdmins() (int, error) {
	var count int
	err := r.db.QueryRow(`SELECT COUNT(*) FROM users WHERE is_admin = 1`).Scan(&count)
	return count, err
}

func (r *UserRepository) Count() (int, error) {
	var count int
	err := r.db.QueryRow(`SELECT COUNT(*) FROM users`).Scan(&count)
	return count, err
}

// ListIDsWithQuota returns users that have a quota set or a stored deadline.
func (r *UserRepository) ListIDsWithQuota() ([]string, error) {
	rows, err := r.db.Query(`SELECT id FROM users WHERE quota_mb >= 0 OR quota_deadline IS NOT NULL`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *UserRepository) ListAll() ([]*models.AdminUserInfo, error) {
	rows, err := r.db.Query(`SELECT ` + userColumns + ` FROM users ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []*models.AdminUserInfo
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, &models.AdminUserInfo{
			ID:            u.ID,
			Email:         u.Email,
			QuotaMB:       u.QuotaMB,
			UsedMB:        u.UsedMB,
			QuotaDeadline: u.QuotaDeadline,
			IsAdmin:       u.IsAdmin,
			CreatedAt:     u.CreatedAt,
		})
	}
	return users, rows.Err()
}
