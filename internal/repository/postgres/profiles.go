package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/arklim/practicum-auth/internal/core/domain"
	"github.com/arklim/practicum-auth/internal/core/port"
	"github.com/arklim/practicum-auth/internal/repository"
)

// ProfileRepository reads and updates user_profiles records.
type ProfileRepository struct {
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

// NewProfileRepository constructs a repository backed by any executor that
// satisfies pgExecutor.
func NewProfileRepository(exec pgExecutor) *ProfileRepository {
	return &ProfileRepository{
		exec:    exec,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// GetByID retrieves a profile by user id.
func (r *ProfileRepository) GetByID(ctx context.Context, id string) (*domain.UserProfile, error) {
	stmt, args, err := r.builder.
		Select("id", "email", "full_name", "nim_nip", "phone", "avatar_url", "role_default", "created_at", "updated_at").
		From("user_profiles").
		Where(squirrel.Eq{"id": id}).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select profile sql: %w", err)
	}

	row := r.exec.QueryRow(ctx, stmt, args...)

	var (
		profile     domain.UserProfile
		nimNip      sql.NullString
		phone       sql.NullString
		avatarURL   sql.NullString
		roleDefault sql.NullString
	)

	if err := row.Scan(
		&profile.ID,
		&profile.Email,
		&profile.FullName,
		&nimNip,
		&phone,
		&avatarURL,
		&roleDefault,
		&profile.CreatedAt,
		&profile.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("scan profile: %w", err)
	}

	if nimNip.Valid {
		profile.NIMNIP = &nimNip.String
	}
	if phone.Valid {
		profile.Phone = &phone.String
	}
	if avatarURL.Valid {
		profile.AvatarURL = &avatarURL.String
	}
	if roleDefault.Valid {
		profile.RoleDefault = &roleDefault.String
	}

	return &profile, nil
}

// Update persists mutable profile fields.
func (r *ProfileRepository) Update(ctx context.Context, profile domain.UserProfile) error {
	stmt, args, err := r.builder.
		Update("user_profiles").
		Set("full_name", profile.FullName).
		Set("nim_nip", profile.NIMNIP).
		Set("phone", profile.Phone).
		Set("avatar_url", profile.AvatarURL).
		Set("updated_at", time.Now().UTC()).
		Where(squirrel.Eq{"id": profile.ID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update profile sql: %w", err)
	}

	tag, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("update profile: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}

	return nil
}

var _ port.ProfileRepository = (*ProfileRepository)(nil)
