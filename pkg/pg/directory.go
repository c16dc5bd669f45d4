package pg

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"

	"github.com/mahaj/carmarket-chat/pkg/chat"
	"github.com/mahaj/carmarket-chat/pkg/model"
)

// Directory reads display identities from the users table owned by the
// account service.
type Directory struct {
	pool *pgxpool.Pool
}

var _ chat.Directory = (*Directory)(nil)

func NewDirectory(pool *pgxpool.Pool) *Directory {
	return &Directory{pool: pool}
}

func (d *Directory) Profile(ctx context.Context, userID string) (*model.Profile, error) {
	p := &model.Profile{}
	err := d.pool.QueryRow(ctx, `
		SELECT id, display_name, role, COALESCE(company_name, '')
		FROM users WHERE id = $1
	`, userID).Scan(&p.UserID, &p.DisplayName, &p.Role, &p.CompanyName)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, chat.ErrNotFound
		}
		return nil, errors.Wrap(err, "postgres: profile lookup")
	}
	return p, nil
}
