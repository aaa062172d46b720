// Package sqlite provides a Store backed by a single SQLite file.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"haikuslam/internal/domain"
	"haikuslam/internal/storage"
	"haikuslam/internal/storage/sqlite/migrations"
)

// Store persists games and users in SQLite. It holds a single connection so
// every read-change-write runs in its own transaction without interleaving.
type Store struct {
	db      *sql.DB
	reducer storage.Reducer
}

// queryer is satisfied by both *sql.DB and *sql.Tx.
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Open opens the database at path and applies migrations.
func Open(ctx context.Context, path string, settings domain.Settings) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	dsn := filepath.Clean(path) + "?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=5000&_synchronous=NORMAL"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := applyMigrations(ctx, db, migrations.FS); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{db: db, reducer: storage.Reducer{Settings: settings}}, nil
}

// Close releases the database
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Snapshot loads a round
func (s *Store) Snapshot(ctx context.Context, gameID string) (domain.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return domain.Snapshot{}, err
	}
	snap, err := loadSnapshot(ctx, s.db, gameID)
	return snap, storage.Unavailable("load game", err)
}

// CreateGame inserts a new round
func (s *Store) CreateGame(ctx context.Context, snap domain.Snapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		return saveSnapshot(ctx, tx, snap)
	})
	return storage.Unavailable("create game", err)
}

// ApplyWrite records a poem
func (s *Store) ApplyWrite(ctx context.Context, gameID, playerID, poem string, now time.Time) (*domain.Snapshot, error) {
	return s.update(ctx, "write poem", gameID, func(snap domain.Snapshot) (domain.Snapshot, bool, error) {
		return s.reducer.Write(snap, playerID, poem, now)
	})
}

// ApplyVote records a vote
func (s *Store) ApplyVote(ctx context.Context, gameID, voterID, targetID string, now time.Time) (*domain.Snapshot, error) {
	return s.update(ctx, "cast vote", gameID, func(snap domain.Snapshot) (domain.Snapshot, bool, error) {
		return s.reducer.Vote(snap, voterID, targetID, now)
	})
}

// Progress advances a round whose stage is due
func (s *Store) Progress(ctx context.Context, gameID string, now time.Time) (*domain.Snapshot, error) {
	return s.update(ctx, "progress game", gameID, func(snap domain.Snapshot) (domain.Snapshot, bool, error) {
		next, advanced := s.reducer.Progress(snap, now)
		if !advanced {
			return snap, false, errUnchanged
		}
		return next, true, nil
	})
}

// CloneRound starts the next round of a completed one
func (s *Store) CloneRound(ctx context.Context, gameID, pickerID, topic, seedPoem string, now time.Time) (domain.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return domain.Snapshot{}, err
	}
	var next domain.Snapshot
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		snap, err := loadSnapshot(ctx, tx, gameID)
		if err != nil {
			return err
		}
		prev, n, err := s.reducer.Clone(snap, pickerID, topic, seedPoem, now)
		if err != nil {
			return err
		}
		if err := saveSnapshot(ctx, tx, prev); err != nil {
			return err
		}
		next = n
		return saveSnapshot(ctx, tx, n)
	})
	if err != nil {
		return domain.Snapshot{}, storage.Unavailable("clone round", err)
	}
	return next, nil
}

// RemovePlayer drops a player from a round
func (s *Store) RemovePlayer(ctx context.Context, gameID, playerID string, now time.Time) (domain.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return domain.Snapshot{}, err
	}
	var next domain.Snapshot
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		snap, err := loadSnapshot(ctx, tx, gameID)
		if err != nil {
			return err
		}
		next, err = s.reducer.Remove(snap, playerID, now)
		if err != nil {
			return err
		}
		return saveSnapshot(ctx, tx, next)
	})
	if err != nil {
		return domain.Snapshot{}, storage.Unavailable("remove player", err)
	}
	return next, nil
}

// RenameGame sets a round's display name
func (s *Store) RenameGame(ctx context.Context, gameID, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE games SET name = ?, updated_at = ? WHERE id = ?`,
		strings.TrimSpace(name), time.Now().UTC().UnixMilli(), gameID,
	)
	if err != nil {
		return storage.Unavailable("rename game", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return storage.Unavailable("rename game", err)
	}
	if n == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// ListGames returns the player's live rounds and their predecessors
func (s *Store) ListGames(ctx context.Context, playerID string) ([]domain.Snapshot, domain.Entitlements, error) {
	if err := ctx.Err(); err != nil {
		return nil, domain.Entitlements{}, err
	}

	ids, err := s.listGameIDs(ctx, playerID)
	if err != nil {
		return nil, domain.Entitlements{}, storage.Unavailable("list games", err)
	}

	snaps := make([]domain.Snapshot, 0, len(ids))
	for _, id := range ids {
		snap, err := loadSnapshot(ctx, s.db, id)
		if err != nil {
			return nil, domain.Entitlements{}, storage.Unavailable("list games", err)
		}
		snaps = append(snaps, snap)
	}
	sort.Slice(snaps, func(i, j int) bool {
		if !snaps[i].Deadline.Equal(snaps[j].Deadline) {
			return snaps[i].Deadline.Before(snaps[j].Deadline)
		}
		return snaps[i].GameID < snaps[j].GameID
	})

	ent, err := loadEntitlements(ctx, s.db, playerID)
	if errors.Is(err, storage.ErrNotFound) {
		err = nil
	}
	if err != nil {
		return nil, domain.Entitlements{}, storage.Unavailable("list games", err)
	}
	return snaps, ent, nil
}

func (s *Store) listGameIDs(ctx context.Context, playerID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT g.id
FROM games g
JOIN game_players p ON p.game_id = g.id
LEFT JOIN games n ON n.id = g.next_id
WHERE p.player_id = ? AND (g.next_id IS NULL OR n.next_id IS NULL)
`, playerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// CountGames returns the number of stored rounds
func (s *Store) CountGames(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM games`).Scan(&n); err != nil {
		return 0, storage.Unavailable("count games", err)
	}
	return n, nil
}

// UpsertUser creates a user or refreshes the name and email of an existing one,
// matching on external id
func (s *Store) UpsertUser(ctx context.Context, user domain.User) (domain.User, error) {
	if err := ctx.Err(); err != nil {
		return domain.User{}, err
	}
	var out domain.User
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		existing, err := scanUser(tx.QueryRowContext(ctx, userSelect+` WHERE external_id = ?`, user.ExternalID))
		switch {
		case err == nil:
			existing.Name = user.Name
			if user.Email != "" {
				existing.Email = user.Email
			}
			out = existing
			_, err = tx.ExecContext(ctx,
				`UPDATE users SET name = ?, email = ? WHERE id = ?`,
				existing.Name, existing.Email, existing.ID,
			)
			return err
		case errors.Is(err, storage.ErrNotFound):
			if user.ID == "" {
				user.ID = uuid.NewString()
			}
			out = user
			_, err = tx.ExecContext(ctx,
				`INSERT INTO users (id, external_id, name, email, created_at) VALUES (?, ?, ?, ?, ?)`,
				user.ID, user.ExternalID, user.Name, user.Email, time.Now().UTC().UnixMilli(),
			)
			return err
		default:
			return err
		}
	})
	if err != nil {
		return domain.User{}, storage.Unavailable("upsert user", err)
	}
	return out, nil
}

// GetUser returns a user by id
func (s *Store) GetUser(ctx context.Context, id string) (domain.User, error) {
	u, err := scanUser(s.db.QueryRowContext(ctx, userSelect+` WHERE id = ?`, id))
	return u, storage.Unavailable("get user", err)
}

// UserByExternalID returns a user by their identity provider id
func (s *Store) UserByExternalID(ctx context.Context, externalID string) (domain.User, error) {
	u, err := scanUser(s.db.QueryRowContext(ctx, userSelect+` WHERE external_id = ?`, externalID))
	return u, storage.Unavailable("get user", err)
}

// UserByEmail returns a user by email, ignoring case
func (s *Store) UserByEmail(ctx context.Context, email string) (domain.User, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return domain.User{}, storage.ErrNotFound
	}
	u, err := scanUser(s.db.QueryRowContext(ctx,
		userSelect+` WHERE email = ? COLLATE NOCASE ORDER BY created_at LIMIT 1`, email))
	return u, storage.Unavailable("get user", err)
}

// Entitlements returns a user's purchase flags
func (s *Store) Entitlements(ctx context.Context, userID string) (domain.Entitlements, error) {
	ent, err := loadEntitlements(ctx, s.db, userID)
	return ent, storage.Unavailable("get entitlements", err)
}

// SetEntitlements replaces a user's purchase flags
func (s *Store) SetEntitlements(ctx context.Context, userID string, e domain.Entitlements) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE users SET unlocked = ?, poems_left = ? WHERE id = ?`,
		e.Unlocked, e.PoemsLeft, userID,
	)
	if err != nil {
		return storage.Unavailable("set entitlements", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// errUnchanged lets an update skip the write when nothing moved.
var errUnchanged = errors.New("round unchanged")

// update loads a round, applies fn and saves the result in one transaction.
// The returned snapshot is non-nil only when fn reports a stage change.
func (s *Store) update(ctx context.Context, op, gameID string, fn func(domain.Snapshot) (domain.Snapshot, bool, error)) (*domain.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var (
		next     domain.Snapshot
		advanced bool
	)
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		snap, err := loadSnapshot(ctx, tx, gameID)
		if err != nil {
			return err
		}
		next, advanced, err = fn(snap)
		if err != nil {
			return err
		}
		return saveSnapshot(ctx, tx, next)
	})
	if errors.Is(err, errUnchanged) {
		return nil, nil
	}
	if err != nil {
		return nil, storage.Unavailable(op, err)
	}
	if !advanced {
		return nil, nil
	}
	return &next, nil
}

func (s *Store) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func loadSnapshot(ctx context.Context, q queryer, gameID string) (domain.Snapshot, error) {
	var (
		snap                   domain.Snapshot
		stage                  string
		prevID, nextID, winner sql.NullString
		deadline               sql.NullInt64
		createdAt              int64
	)
	err := q.QueryRowContext(ctx, `
SELECT id, name, round, prev_id, next_id, stage, topic_picker_id, topic, seed_poem, winner_id, salt, deadline, created_at
FROM games
WHERE id = ?
`, gameID).Scan(
		&snap.GameID, &snap.Name, &snap.Round, &prevID, &nextID, &stage,
		&snap.TopicPickerID, &snap.Topic, &snap.SeedPoem, &winner, &snap.Salt, &deadline, &createdAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Snapshot{}, storage.ErrNotFound
	}
	if err != nil {
		return domain.Snapshot{}, fmt.Errorf("load game %s: %w", gameID, err)
	}

	snap.Stage = domain.Stage(stage)
	snap.PrevID = prevID.String
	snap.NextID = nextID.String
	snap.WinnerID = winner.String
	snap.Deadline = fromMillis(deadline)
	snap.CreatedAt = time.UnixMilli(createdAt).UTC()
	snap.Poems = make(map[string]domain.Poem)
	snap.Votes = make(map[string]string)

	rows, err := q.QueryContext(ctx, `
SELECT player_id, name, score, poem, poem_missing, poem_at, vote
FROM game_players
WHERE game_id = ?
ORDER BY seat
`, gameID)
	if err != nil {
		return domain.Snapshot{}, fmt.Errorf("load players %s: %w", gameID, err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			p       domain.Player
			poem    sql.NullString
			missing bool
			poemAt  sql.NullInt64
			vote    sql.NullString
		)
		if err := rows.Scan(&p.ID, &p.Name, &p.Score, &poem, &missing, &poemAt, &vote); err != nil {
			return domain.Snapshot{}, fmt.Errorf("scan player: %w", err)
		}
		snap.Players = append(snap.Players, p)
		switch {
		case missing:
			snap.Poems[p.ID] = domain.NoPoem
		case poem.Valid:
			snap.Poems[p.ID] = domain.Poem{Text: poem.String, SubmittedAt: fromNanos(poemAt)}
		}
		if vote.Valid {
			snap.Votes[p.ID] = vote.String
		}
	}
	if err := rows.Err(); err != nil {
		return domain.Snapshot{}, fmt.Errorf("load players %s: %w", gameID, err)
	}
	return snap, nil
}

func saveSnapshot(ctx context.Context, q queryer, snap domain.Snapshot) error {
	_, err := q.ExecContext(ctx, `
INSERT INTO games (
	id, name, round, prev_id, next_id, stage, topic_picker_id, topic, seed_poem,
	winner_id, salt, deadline, created_at, updated_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (id) DO UPDATE SET
	name = excluded.name,
	next_id = excluded.next_id,
	stage = excluded.stage,
	topic_picker_id = excluded.topic_picker_id,
	topic = excluded.topic,
	winner_id = excluded.winner_id,
	deadline = excluded.deadline,
	updated_at = excluded.updated_at
`,
		snap.GameID, snap.Name, snap.Round, nullString(snap.PrevID), nullString(snap.NextID),
		string(snap.Stage), snap.TopicPickerID, snap.Topic, snap.SeedPoem,
		nullString(snap.WinnerID), snap.Salt, toMillis(snap.Deadline),
		snap.CreatedAt.UTC().UnixMilli(), time.Now().UTC().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("save game %s: %w", snap.GameID, err)
	}

	if _, err := q.ExecContext(ctx, `DELETE FROM game_players WHERE game_id = ?`, snap.GameID); err != nil {
		return fmt.Errorf("clear players %s: %w", snap.GameID, err)
	}
	for seat, p := range snap.Players {
		var (
			poem    sql.NullString
			missing bool
			poemAt  sql.NullInt64
		)
		if entry, ok := snap.Poems[p.ID]; ok {
			missing = entry.Missing
			if !entry.Missing {
				poem = sql.NullString{String: entry.Text, Valid: true}
				poemAt = toNanos(entry.SubmittedAt)
			}
		}
		vote, voted := snap.Votes[p.ID]
		_, err := q.ExecContext(ctx, `
INSERT INTO game_players (game_id, player_id, seat, name, score, poem, poem_missing, poem_at, vote)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
`,
			snap.GameID, p.ID, seat, p.Name, p.Score, poem, missing, poemAt,
			sql.NullString{String: vote, Valid: voted},
		)
		if err != nil {
			return fmt.Errorf("save player %s: %w", p.ID, err)
		}
	}
	return nil
}

const userSelect = `SELECT id, external_id, name, email FROM users`

func scanUser(row *sql.Row) (domain.User, error) {
	var u domain.User
	err := row.Scan(&u.ID, &u.ExternalID, &u.Name, &u.Email)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.User{}, storage.ErrNotFound
	}
	if err != nil {
		return domain.User{}, fmt.Errorf("scan user: %w", err)
	}
	return u, nil
}

func loadEntitlements(ctx context.Context, q queryer, userID string) (domain.Entitlements, error) {
	var e domain.Entitlements
	err := q.QueryRowContext(ctx, `SELECT unlocked, poems_left FROM users WHERE id = ?`, userID).
		Scan(&e.Unlocked, &e.PoemsLeft)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Entitlements{}, storage.ErrNotFound
	}
	if err != nil {
		return domain.Entitlements{}, fmt.Errorf("load entitlements: %w", err)
	}
	return e, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func toMillis(t time.Time) sql.NullInt64 {
	if t.IsZero() {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UTC().UnixMilli(), Valid: true}
}

func fromMillis(v sql.NullInt64) time.Time {
	if !v.Valid {
		return time.Time{}
	}
	return time.UnixMilli(v.Int64).UTC()
}

// Poem times are ordered by the tally, so they keep full precision.
func toNanos(t time.Time) sql.NullInt64 {
	if t.IsZero() {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UTC().UnixNano(), Valid: true}
}

func fromNanos(v sql.NullInt64) time.Time {
	if !v.Valid {
		return time.Time{}
	}
	return time.Unix(0, v.Int64).UTC()
}

var _ storage.Store = (*Store)(nil)
