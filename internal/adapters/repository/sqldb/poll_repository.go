package sqldb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/vncsmyrnk/timedpolls/internal/core/domain"
)

type pollRepository struct {
	repository
}

const pollColumns = `id, code, question, options_json, created_at, closes_at, status`

func (r *pollRepository) SavePoll(ctx context.Context, poll *domain.Poll) error {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	optionsJSON, err := json.Marshal(poll.Options)
	if err != nil {
		return fmt.Errorf("failed to encode poll options: %w", err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return unavailable("failed to begin transaction", err)
	}
	defer tx.Rollback()

	code := nullableCode(poll.Code)
	codeKey := nullableCode(poll.CodeKey())

	if codeKey.Valid {
		var owner uuid.UUID
		err := tx.QueryRowContext(ctx, r.q(`SELECT id FROM polls WHERE code_key = ? AND id <> ?`), codeKey, poll.ID).Scan(&owner)
		if err == nil {
			return domain.ErrCodeInUse
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return unavailable("failed to check poll code", err)
		}
	}

	res, err := tx.ExecContext(ctx, r.q(`
		UPDATE polls
		SET code = ?, code_key = ?, question = ?, options_json = ?, created_at = ?, closes_at = ?, status = ?
		WHERE id = ?
	`), code, codeKey, poll.Question, string(optionsJSON), poll.CreatedAt.Unix(), poll.ClosesAt.Unix(), string(poll.Status), poll.ID)
	if err != nil {
		return r.writeError("failed to update poll", err)
	}
	updated, err := res.RowsAffected()
	if err != nil {
		return unavailable("failed to update poll", err)
	}

	if updated == 0 {
		_, err = tx.ExecContext(ctx, r.q(`
			INSERT INTO polls (`+pollColumns+`, code_key)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`), poll.ID, code, poll.Question, string(optionsJSON), poll.CreatedAt.Unix(), poll.ClosesAt.Unix(), string(poll.Status), codeKey)
		if err != nil {
			return r.writeError("failed to insert poll", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return r.writeError("failed to commit transaction", err)
	}
	return nil
}

func (r *pollRepository) GetPoll(ctx context.Context, id uuid.UUID) (*domain.Poll, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	row := r.db.QueryRowContext(ctx, r.q(`SELECT `+pollColumns+` FROM polls WHERE id = ?`), id)
	poll, err := scanPoll(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrPollNotFound
		}
		return nil, unavailable("failed to get poll", err)
	}
	return poll, nil
}

func (r *pollRepository) FindByIdentifierOrCode(ctx context.Context, ref string) (*domain.Poll, error) {
	ref = strings.TrimSpace(ref)
	if id, err := uuid.Parse(ref); err == nil {
		poll, err := r.GetPoll(ctx, id)
		if !errors.Is(err, domain.ErrPollNotFound) {
			return poll, err
		}
	}

	key := domain.CodeKey(ref)
	if key == "" {
		return nil, domain.ErrPollNotFound
	}

	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	row := r.db.QueryRowContext(ctx, r.q(`SELECT `+pollColumns+` FROM polls WHERE code_key = ?`), key)
	poll, err := scanPoll(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrPollNotFound
		}
		return nil, unavailable("failed to find poll by code", err)
	}
	return poll, nil
}

func (r *pollRepository) ListPolls(ctx context.Context) ([]*domain.Poll, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `SELECT `+pollColumns+` FROM polls ORDER BY created_at DESC, id`)
	if err != nil {
		return nil, unavailable("failed to list polls", err)
	}
	defer rows.Close()

	polls := []*domain.Poll{}
	for rows.Next() {
		poll, err := scanPoll(rows)
		if err != nil {
			return nil, unavailable("failed to scan poll", err)
		}
		polls = append(polls, poll)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("error iterating polls", err)
	}
	return polls, nil
}

func (r *pollRepository) RemovePoll(ctx context.Context, id uuid.UUID) error {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return unavailable("failed to begin transaction", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, r.q(`DELETE FROM votes WHERE poll_id = ?`), id); err != nil {
		return unavailable("failed to delete votes", err)
	}
	if _, err := tx.ExecContext(ctx, r.q(`DELETE FROM polls WHERE id = ?`), id); err != nil {
		return unavailable("failed to delete poll", err)
	}

	if err := tx.Commit(); err != nil {
		return unavailable("failed to commit transaction", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPoll(row rowScanner) (*domain.Poll, error) {
	var (
		poll        domain.Poll
		code        sql.NullString
		optionsJSON string
		createdAt   int64
		closesAt    int64
		status      string
	)
	if err := row.Scan(&poll.ID, &code, &poll.Question, &optionsJSON, &createdAt, &closesAt, &status); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(optionsJSON), &poll.Options); err != nil {
		return nil, fmt.Errorf("failed to decode poll options: %w", err)
	}
	poll.Code = code.String
	poll.CreatedAt = time.Unix(createdAt, 0).UTC()
	poll.ClosesAt = time.Unix(closesAt, 0).UTC()
	poll.Status = domain.PollStatus(status)
	return &poll, nil
}

func nullableCode(code string) sql.NullString {
	code = strings.TrimSpace(code)
	return sql.NullString{String: code, Valid: code != ""}
}

func (r *pollRepository) writeError(msg string, err error) error {
	if isUniqueViolation(err) {
		return domain.ErrCodeInUse
	}
	return unavailable(msg, err)
}

func unavailable(msg string, err error) error {
	return fmt.Errorf("%s: %w: %w", msg, domain.ErrStorageUnavailable, err)
}
