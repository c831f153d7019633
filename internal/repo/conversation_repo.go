package repo

import (
	"context"
	"database/sql"

	"github.com/renliu0x/askdoc/internal/model"
)

type ConversationRepo struct {
	db *sql.DB
}

func NewConversationRepo(db *sql.DB) *ConversationRepo {
	return &ConversationRepo{db: db}
}

func (r *ConversationRepo) AppendTurn(ctx context.Context, turn *model.Turn) error {
	const query = `
		INSERT INTO conversation_turns (session_id, role, content, ctime)
		VALUES ($1, $2, $3, $4)
	`
	_, err := r.db.ExecContext(ctx, query, turn.SessionID, turn.Role, turn.Content, turn.Ctime)
	return err
}

// RecentTurns returns the last limit turns of a session in
// chronological order.
func (r *ConversationRepo) RecentTurns(ctx context.Context, sessionID string, limit int) ([]*model.Turn, error) {
	const query = `
		SELECT id, session_id, role, content, ctime
		FROM (
			SELECT id, session_id, role, content, ctime
			FROM conversation_turns
			WHERE session_id = $1
			ORDER BY id DESC
			LIMIT $2
		) latest
		ORDER BY id
	`
	rows, err := r.db.QueryContext(ctx, query, sessionID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var turns []*model.Turn
	for rows.Next() {
		var turn model.Turn
		if err := rows.Scan(&turn.ID, &turn.SessionID, &turn.Role, &turn.Content, &turn.Ctime); err != nil {
			return nil, err
		}
		turns = append(turns, &turn)
	}
	return turns, rows.Err()
}

func (r *ConversationRepo) CountBySession(ctx context.Context, sessionID string) (int, error) {
	const query = `SELECT COUNT(*) FROM conversation_turns WHERE session_id = $1`
	var count int
	if err := r.db.QueryRowContext(ctx, query, sessionID).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}
