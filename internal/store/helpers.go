package store

import (
	"database/sql"
	"fmt"

	"github.com/BTreeMap/CareBear/internal/models"
)

// nilIfEmpty returns nil if s is empty, otherwise returns s.
// Used for nullable database columns.
func nilIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// scanTurns reads every row of a turns query. Columns must be selected in turnColumns order.
func scanTurns(rows *sql.Rows) ([]models.TurnRecord, error) {
	var turns []models.TurnRecord
	for rows.Next() {
		var t models.TurnRecord
		var followUp, rationale sql.NullString
		var mood, kind, source string
		err := rows.Scan(
			&t.ID, &t.SessionKey, &t.UserMessage, &mood, &t.Crisis, &t.Reply,
			&followUp, &rationale, &kind, &source, &t.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan turn failed: %w", err)
		}
		t.Mood = models.ParseMoodLabel(mood)
		t.Kind = models.ResponseKind(kind)
		t.Source = models.Source(source)
		t.FollowUp = followUp.String
		t.Rationale = rationale.String
		turns = append(turns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate turn rows: %w", err)
	}
	return turns, nil
}

const turnColumns = "id, session_key, user_message, mood, crisis, reply, follow_up, rationale, kind, source, created_at"
