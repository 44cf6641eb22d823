// Package credstore persists OAuth grants keyed by the timeline
// service's user token and resolves them into authorized timeline
// clients.
package credstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"

	"github.com/jdholdren/spectacle/internal/spectacle"
)

// Credential is one stored grant for a user.
type Credential struct {
	UserToken    string     `db:"user_token"`
	AccessToken  string     `db:"access_token"`
	RefreshToken string     `db:"refresh_token"`
	TokenType    string     `db:"token_type"`
	Expiry       *time.Time `db:"expiry"`
	CreatedAt    time.Time  `db:"created_at"`
}

type Store struct {
	db *sqlx.DB
}

func New(db *sqlx.DB) Store {
	return Store{db: db}
}

func (s Store) Credential(ctx context.Context, userToken string) (Credential, error) {
	const q = `SELECT * FROM credentials WHERE user_token = ?;`

	var cred Credential
	err := s.db.GetContext(ctx, &cred, q, userToken)
	if errors.Is(err, sql.ErrNoRows) {
		return Credential{}, spectacle.ErrNoCredentials
	}
	if err != nil {
		return Credential{}, fmt.Errorf("error fetching credential: %s", err)
	}

	return cred, nil
}

// Put stores a grant, replacing any previous one for the same user.
func (s Store) Put(ctx context.Context, cred Credential) error {
	query, args, err := sq.Insert("credentials").
		Columns("user_token", "access_token", "refresh_token", "token_type", "expiry").
		Values(cred.UserToken, cred.AccessToken, cred.RefreshToken, cred.TokenType, cred.Expiry).
		Suffix(`ON CONFLICT(user_token) DO UPDATE SET
			access_token = excluded.access_token,
			refresh_token = excluded.refresh_token,
			token_type = excluded.token_type,
			expiry = excluded.expiry`).
		ToSql()
	if err != nil {
		return fmt.Errorf("error constructing sql: %s", err)
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("error storing credential: %s", err)
	}

	return nil
}

// Delete drops the stored grant, for when a user revokes access.
func (s Store) Delete(ctx context.Context, userToken string) error {
	query, args, err := sq.Delete("credentials").Where(sq.Eq{"user_token": userToken}).ToSql()
	if err != nil {
		return fmt.Errorf("error constructing sql: %s", err)
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("error deleting credential: %s", err)
	}

	return nil
}
