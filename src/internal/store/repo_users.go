package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/appcraft/showcase-service/src/internal/model"

	"go.uber.org/zap"
)

const userColumns = `id, github_id, username, email, avatar_url, is_admin, created_at`

// UpsertUser creates the user on first sign-in and re-syncs the profile
// attributes on subsequent sign-ins. The is_admin flag is managed out of
// band and never overwritten here.
func (r *Repositories) UpsertUser(ctx context.Context, u model.User) (model.User, error) {
	r.Log.Debug("UpsertUser: start", zap.Int64("github_id", u.GitHubID), zap.String("username", u.Username))

	row := r.DB.QueryRowContext(ctx, `
		INSERT INTO users(id, github_id, username, email, avatar_url, created_at)
		VALUES($1,$2,$3,$4,$5,$6)
		ON CONFLICT (github_id) DO UPDATE
		SET username=EXCLUDED.username, email=EXCLUDED.email, avatar_url=EXCLUDED.avatar_url
		RETURNING `+userColumns,
		u.ID, u.GitHubID, u.Username, u.Email, u.AvatarURL, u.CreatedAt)

	var saved model.User
	if err := row.Scan(&saved.ID, &saved.GitHubID, &saved.Username, &saved.Email,
		&saved.AvatarURL, &saved.IsAdmin, &saved.CreatedAt); err != nil {
		r.Log.Error("UpsertUser: upsert failed", zap.Int64("github_id", u.GitHubID), zap.Error(err))
		return model.User{}, err
	}

	r.Log.Info("UpsertUser: success", zap.String("user", saved.ID), zap.String("username", saved.Username))
	return saved, nil
}

func (r *Repositories) GetUser(ctx context.Context, id string) (model.User, error) {
	r.Log.Debug("GetUser: start", zap.String("user", id))

	var u model.User
	if err := r.DB.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id=$1`, id).
		Scan(&u.ID, &u.GitHubID, &u.Username, &u.Email, &u.AvatarURL, &u.IsAdmin, &u.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			r.Log.Debug("GetUser: not found", zap.String("user", id))
			return model.User{}, model.ErrNotFound
		}
		r.Log.Error("GetUser: query failed", zap.String("user", id), zap.Error(err))
		return model.User{}, err
	}
	return u, nil
}

func (r *Repositories) GetUserByGitHubID(ctx context.Context, githubID int64) (model.User, error) {
	r.Log.Debug("GetUserByGitHubID: start", zap.Int64("github_id", githubID))

	var u model.User
	if err := r.DB.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE github_id=$1`, githubID).
		Scan(&u.ID, &u.GitHubID, &u.Username, &u.Email, &u.AvatarURL, &u.IsAdmin, &u.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			r.Log.Debug("GetUserByGitHubID: not found", zap.Int64("github_id", githubID))
			return model.User{}, model.ErrNotFound
		}
		r.Log.Error("GetUserByGitHubID: query failed", zap.Error(err))
		return model.User{}, err
	}
	return u, nil
}
