package accountstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"golang.org/x/crypto/bcrypt"
)

// Account is the persisted record spec.md §3 describes: "An Account owns a
// set of characters by id."
type Account struct {
	ID           string
	PasswordHash string
	CharacterIDs []string
	CreatedAt    time.Time
	LastLoginAt  *time.Time
}

// Store is the minimal persistence interface spec.md §6 names: getAccount,
// putAccount, findAccount, plus the restricted flag that disables account
// creation.
type Store interface {
	Get(ctx context.Context, id string) (*Account, bool, error)
	Put(ctx context.Context, a *Account) error
	Find(ctx context.Context, id string) (bool, error)
	Restricted() bool
}

// PostgresStore is the default Store, backed by pgx/v5 + bcrypt password
// hashing, grounded on the teacher's AccountRepo.
type PostgresStore struct {
	db         *DB
	restricted bool
}

func NewPostgresStore(db *DB, restricted bool) *PostgresStore {
	return &PostgresStore{db: db, restricted: restricted}
}

func (s *PostgresStore) Restricted() bool { return s.restricted }

func (s *PostgresStore) Get(ctx context.Context, id string) (*Account, bool, error) {
	a := &Account{ID: id}
	err := s.db.Pool.QueryRow(ctx,
		`SELECT password_hash, created_at, last_login_at FROM accounts WHERE id = $1`, id,
	).Scan(&a.PasswordHash, &a.CreatedAt, &a.LastLoginAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get account %s: %w", id, err)
	}

	rows, err := s.db.Pool.Query(ctx, `SELECT character_id FROM account_characters WHERE account_id = $1`, id)
	if err != nil {
		return nil, false, fmt.Errorf("get account characters %s: %w", id, err)
	}
	defer rows.Close()
	for rows.Next() {
		var charID string
		if err := rows.Scan(&charID); err != nil {
			return nil, false, err
		}
		a.CharacterIDs = append(a.CharacterIDs, charID)
	}
	return a, true, nil
}

func (s *PostgresStore) Find(ctx context.Context, id string) (bool, error) {
	var exists bool
	err := s.db.Pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM accounts WHERE id = $1)`, id).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("find account %s: %w", id, err)
	}
	return exists, nil
}

func (s *PostgresStore) Put(ctx context.Context, a *Account) error {
	_, err := s.db.Pool.Exec(ctx,
		`INSERT INTO accounts (id, password_hash, last_login_at) VALUES ($1, $2, $3)
		 ON CONFLICT (id) DO UPDATE SET password_hash = EXCLUDED.password_hash, last_login_at = EXCLUDED.last_login_at`,
		a.ID, a.PasswordHash, a.LastLoginAt,
	)
	if err != nil {
		return fmt.Errorf("put account %s: %w", a.ID, err)
	}
	for _, charID := range a.CharacterIDs {
		if _, err := s.db.Pool.Exec(ctx,
			`INSERT INTO account_characters (account_id, character_id) VALUES ($1, $2)
			 ON CONFLICT DO NOTHING`, a.ID, charID,
		); err != nil {
			return fmt.Errorf("put account character %s/%s: %w", a.ID, charID, err)
		}
	}
	return nil
}

// HashPassword and CheckPassword wrap bcrypt, grounded on the teacher's
// AccountRepo.ValidatePassword / Create (spec.md §7 "Auth failure").
func HashPassword(raw string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(raw), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func CheckPassword(hash, raw string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(raw)) == nil
}
