package timeline

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// ErrTurnNotFound is returned by GetTurn for an unknown turn ID.
var ErrTurnNotFound = errors.New("turn not found")

type TimelineService struct {
	db *sql.DB
}

func NewTimelineService(dbPath string) (*TimelineService, error) {
	db, err := sql.Open("sqlite", "file:"+dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open timeline db: %w", err)
	}

	// Apply schema
	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}
	// Best-effort migrations for columns added after the first release.
	_, _ = db.Exec(`ALTER TABLE turns ADD COLUMN shape TEXT DEFAULT ''`)
	_, _ = db.Exec(`ALTER TABLE turns ADD COLUMN elapsed_ms INTEGER NOT NULL DEFAULT 0`)
	_, _ = db.Exec(`CREATE INDEX IF NOT EXISTS idx_turns_stage ON turns(role, decode_stage)`)

	return &TimelineService{db: db}, nil
}

func (s *TimelineService) Close() error {
	return s.db.Close()
}

// AddTurn records a turn. TurnID and CreatedAt are filled in when empty.
func (s *TimelineService) AddTurn(turn *Turn) error {
	if turn.TurnID == "" {
		turn.TurnID = uuid.NewString()
	}
	if turn.TraceID == "" {
		return fmt.Errorf("add turn %s: trace id is required", turn.TurnID)
	}
	if turn.Role == "" {
		return fmt.Errorf("add turn %s: role is required", turn.TurnID)
	}
	if turn.MessageType == "" {
		turn.MessageType = "text"
	}
	if turn.CreatedAt.IsZero() {
		turn.CreatedAt = time.Now()
	}
	turn.CreatedAt = turn.CreatedAt.UTC()

	query := `
	INSERT INTO turns (turn_id, trace_id, user_id, role, message_type, content, raw_payload, decode_stage, shape, elapsed_ms, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	result, err := s.db.Exec(query,
		turn.TurnID,
		turn.TraceID,
		turn.UserID,
		turn.Role,
		turn.MessageType,
		turn.Content,
		turn.RawPayload,
		turn.DecodeStage,
		turn.Shape,
		turn.ElapsedMs,
		turn.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("add turn: %w", err)
	}
	turn.ID, _ = result.LastInsertId()
	return nil
}

type FilterArgs struct {
	TraceID string
	Role    string
	Limit   int
	Offset  int
}

const turnColumns = `id, turn_id, trace_id, COALESCE(user_id,''), role, message_type,
	COALESCE(content,''), COALESCE(raw_payload,''), COALESCE(decode_stage,''),
	COALESCE(shape,''), elapsed_ms, created_at`

// ListTurns returns turns newest first.
func (s *TimelineService) ListTurns(filter FilterArgs) ([]Turn, error) {
	query := `SELECT ` + turnColumns + ` FROM turns WHERE 1=1`
	args := []any{}

	if filter.TraceID != "" {
		query += " AND trace_id = ?"
		args = append(args, filter.TraceID)
	}
	if filter.Role != "" {
		query += " AND role = ?"
		args = append(args, filter.Role)
	}

	query += " ORDER BY created_at DESC, id DESC"

	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	} else if filter.Offset > 0 {
		query += " LIMIT -1"
	}
	if filter.Offset > 0 {
		query += " OFFSET ?"
		args = append(args, filter.Offset)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list turns: %w", err)
	}
	defer rows.Close()

	var turns []Turn
	for rows.Next() {
		t, err := scanTurn(rows)
		if err != nil {
			return nil, err
		}
		turns = append(turns, *t)
	}
	return turns, rows.Err()
}

// GetTurn returns a turn by turn_id.
func (s *TimelineService) GetTurn(turnID string) (*Turn, error) {
	row := s.db.QueryRow(`SELECT `+turnColumns+` FROM turns WHERE turn_id = ?`, turnID)
	t, err := scanTurn(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrTurnNotFound, turnID)
	}
	if err != nil {
		return nil, fmt.Errorf("get turn: %w", err)
	}
	return t, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTurn(r rowScanner) (*Turn, error) {
	var t Turn
	err := r.Scan(
		&t.ID,
		&t.TurnID,
		&t.TraceID,
		&t.UserID,
		&t.Role,
		&t.MessageType,
		&t.Content,
		&t.RawPayload,
		&t.DecodeStage,
		&t.Shape,
		&t.ElapsedMs,
		&t.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// StageStats counts assistant turns by the decoder stage that produced them,
// most frequent first.
func (s *TimelineService) StageStats() ([]StageCount, error) {
	rows, err := s.db.Query(`
		SELECT COALESCE(decode_stage,''), COUNT(*)
		FROM turns
		WHERE role = ?
		GROUP BY decode_stage
		ORDER BY COUNT(*) DESC, decode_stage ASC`, RoleAssistant)
	if err != nil {
		return nil, fmt.Errorf("stage stats: %w", err)
	}
	defer rows.Close()

	var out []StageCount
	for rows.Next() {
		var sc StageCount
		if err := rows.Scan(&sc.Stage, &sc.Count); err != nil {
			return nil, err
		}
		out = append(out, sc)
	}
	return out, rows.Err()
}

// CountByRole returns the number of turns per role.
func (s *TimelineService) CountByRole() (map[string]int, error) {
	rows, err := s.db.Query(`SELECT role, COUNT(*) FROM turns GROUP BY role`)
	if err != nil {
		return nil, fmt.Errorf("count turns: %w", err)
	}
	defer rows.Close()

	out := map[string]int{}
	for rows.Next() {
		var role string
		var n int
		if err := rows.Scan(&role, &n); err != nil {
			return nil, err
		}
		out[role] = n
	}
	return out, rows.Err()
}

// GetSetting returns a setting value by key, or "" when unset.
func (s *TimelineService) GetSetting(key string) (string, error) {
	var val string
	err := s.db.QueryRow(`SELECT COALESCE(value,'') FROM settings WHERE key = ?`, key).Scan(&val)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return val, err
}

// SetSetting persists a setting value.
func (s *TimelineService) SetSetting(key, value string) error {
	_, err := s.db.Exec(`INSERT INTO settings (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, time.Now().UTC())
	return err
}
