package repository

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/practicehub/be-workflow-emails/internal/database"
	"github.com/practicehub/be-workflow-emails/internal/errors"
)

// DirectoryRepository reads the client/staff/tenant projections used for
// recipient resolution and variable gathering.
type DirectoryRepository struct {
	db *database.DB
}

// NewDirectoryRepository creates a new DirectoryRepository.
func NewDirectoryRepository(db *database.DB) *DirectoryRepository {
	return &DirectoryRepository{db: db}
}

// GetClient returns a client within a tenant.
func (r *DirectoryRepository) GetClient(ctx context.Context, clientID, tenantID string) (*Client, error) {
	query := `
		SELECT id, name, email, account_manager_id
		FROM clients
		WHERE id = $1 AND tenant_id = $2
	`

	c := &Client{}
	err := r.db.QueryRow(ctx, query, clientID, tenantID).Scan(
		&c.ID,
		&c.Name,
		&c.Email,
		&c.AccountManagerID,
	)
	if err == pgx.ErrNoRows {
		return nil, errors.NotFound("client", clientID)
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to get client")
	}
	return c, nil
}

// GetUser returns a staff member within a tenant.
func (r *DirectoryRepository) GetUser(ctx context.Context, userID, tenantID string) (*User, error) {
	query := `
		SELECT id, first_name, last_name, email
		FROM users
		WHERE id = $1 AND tenant_id = $2
	`

	u := &User{}
	err := r.db.QueryRow(ctx, query, userID, tenantID).Scan(
		&u.ID,
		&u.FirstName,
		&u.LastName,
		&u.Email,
	)
	if err == pgx.ErrNoRows {
		return nil, errors.NotFound("user", userID)
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to get user")
	}
	return u, nil
}

// GetTenant returns a tenant's company record.
func (r *DirectoryRepository) GetTenant(ctx context.Context, tenantID string) (*Tenant, error) {
	query := `
		SELECT id, name
		FROM tenants
		WHERE id = $1
	`

	t := &Tenant{}
	err := r.db.QueryRow(ctx, query, tenantID).Scan(&t.ID, &t.Name)
	if err == pgx.ErrNoRows {
		return nil, errors.NotFound("tenant", tenantID)
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to get tenant")
	}
	return t, nil
}
