package repository

import (
	"context"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mtlprog/taskgate/internal/domain"
	"github.com/mtlprog/taskgate/internal/store"
)

var profileColumns = []string{"id", "email", "full_name", "role", "created_at", "updated_at"}

// ProfileRepository handles database operations for profiles.
type ProfileRepository struct {
	pool *pgxpool.Pool
}

// NewProfileRepository creates a new ProfileRepository.
func NewProfileRepository(pool *pgxpool.Pool) *ProfileRepository {
	return &ProfileRepository{pool: pool}
}

func scanProfile(row pgx.Row) (*domain.Profile, error) {
	var profile domain.Profile
	err := row.Scan(
		&profile.ID,
		&profile.Email,
		&profile.FullName,
		&profile.Role,
		&profile.CreatedAt,
		&profile.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrProfileNotFound
		}
		return nil, store.Failure("scan profile", err)
	}
	return &profile, nil
}

// GetByID retrieves a profile by ID.
func (r *ProfileRepository) GetByID(ctx context.Context, profileID string) (*domain.Profile, error) {
	query, args, err := psql.
		Select(profileColumns...).
		From("profiles").
		Where(sq.Eq{"id": profileID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	return scanProfile(r.pool.QueryRow(ctx, query, args...))
}

// List returns all profiles ordered by name.
func (r *ProfileRepository) List(ctx context.Context) ([]*domain.Profile, error) {
	query, args, err := psql.
		Select(profileColumns...).
		From("profiles").
		OrderBy("full_name ASC", "email ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, store.Failure("query profiles", err)
	}
	defer rows.Close()

	var profiles []*domain.Profile
	for rows.Next() {
		profile, err := scanProfile(rows)
		if err != nil {
			return nil, err
		}
		profiles = append(profiles, profile)
	}
	if err := rows.Err(); err != nil {
		return nil, store.Failure("iterate profile rows", err)
	}

	return profiles, nil
}

// Create inserts a profile and populates its ID and timestamps.
func (r *ProfileRepository) Create(ctx context.Context, profile *domain.Profile) error {
	query, args, err := psql.
		Insert("profiles").
		Columns("email", "full_name", "role").
		Values(profile.Email, profile.FullName, profile.Role).
		Suffix("RETURNING id, created_at, updated_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}

	if err := r.pool.QueryRow(ctx, query, args...).Scan(&profile.ID, &profile.CreatedAt, &profile.UpdatedAt); err != nil {
		return store.Failure("create profile", err)
	}

	return nil
}
