package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"tourneyhost/internal/models"
)

type TournamentStore struct {
	db DB
}

func NewTournamentStore(db DB) *TournamentStore {
	return &TournamentStore{db: db}
}

const tournamentColumns = `id, slug, name, host_id, status, start_date, entry_fee, max_players, filled_spots,
	prize_distribution, winners, ttl, created_at, updated_at`

func (s *TournamentStore) Create(ctx context.Context, tx Execer, t models.Tournament) error {
	prizes := string(t.PrizeDistribution)
	if prizes == "" {
		prizes = "{}"
	}
	_, err := tx.ExecContext(ctx, `
		INSERT INTO tournaments (id, slug, name, host_id, status, start_date, entry_fee, max_players, prize_distribution)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, t.ID, t.Slug, t.Name, t.HostID, t.Status, t.StartDate, t.EntryFee, t.MaxPlayers, prizes)
	return err
}

func (s *TournamentStore) GetByID(ctx context.Context, id string) (models.Tournament, error) {
	var row models.Tournament
	err := s.db.GetContext(ctx, &row, `SELECT `+tournamentColumns+` FROM tournaments WHERE id = $1`, id)
	return row, err
}

func (s *TournamentStore) GetForUpdate(ctx context.Context, tx Getter, id string) (models.Tournament, error) {
	var row models.Tournament
	err := tx.GetContext(ctx, &row, `SELECT `+tournamentColumns+` FROM tournaments WHERE id = $1 FOR UPDATE`, id)
	return row, err
}

func (s *TournamentStore) List(ctx context.Context, status string, limit, offset int) ([]models.Tournament, error) {
	rows := []models.Tournament{}
	query := `SELECT ` + tournamentColumns + ` FROM tournaments`
	args := []any{}
	param := 1
	if status != "" {
		query += " WHERE status = $1"
		args = append(args, status)
		param = 2
	}
	query += " ORDER BY start_date ASC LIMIT $" + itoa(param) + " OFFSET $" + itoa(param+1)
	args = append(args, limit, offset)
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, err
	}
	return rows, nil
}

// UpdateStatus moves the tournament from one status to another and sets its
// ttl. Zero rows means the tournament was not in the expected status.
func (s *TournamentStore) UpdateStatus(ctx context.Context, tx Execer, id, from, to string, ttl *time.Time) (int64, error) {
	res, err := tx.ExecContext(ctx, `
		UPDATE tournaments
		SET status = $3, ttl = $4, updated_at = NOW()
		WHERE id = $1 AND status = $2
	`, id, from, to, ttl)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *TournamentStore) SetWinners(ctx context.Context, tx Execer, id string, winners []byte) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE tournaments
		SET winners = $2, updated_at = NOW()
		WHERE id = $1
	`, id, string(winners))
	return err
}

// IncrementFilled takes one spot. Zero rows means the tournament is full.
func (s *TournamentStore) IncrementFilled(ctx context.Context, tx Execer, id string) (int64, error) {
	res, err := tx.ExecContext(ctx, `
		UPDATE tournaments
		SET filled_spots = filled_spots + 1, updated_at = NOW()
		WHERE id = $1 AND filled_spots < max_players
	`, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *TournamentStore) AddParticipant(ctx context.Context, tx Execer, p models.Participant) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO tournament_participants (tournament_id, user_id, ign, entry_fee)
		VALUES ($1, $2, $3, $4)
	`, p.TournamentID, p.UserID, p.IGN, p.EntryFee)
	return err
}

func (s *TournamentStore) IsParticipant(ctx context.Context, tx Getter, tournamentID, userID string) (bool, error) {
	var exists bool
	err := tx.GetContext(ctx, &exists, `
		SELECT EXISTS (
			SELECT 1 FROM tournament_participants WHERE tournament_id = $1 AND user_id = $2
		)
	`, tournamentID, userID)
	return exists, err
}

// ListParticipants reads through q so callers can use either the pool or an
// open transaction.
func (s *TournamentStore) ListParticipants(ctx context.Context, q Selecter, tournamentID string) ([]models.Participant, error) {
	if q == nil {
		q = s.db
	}
	rows := []models.Participant{}
	err := q.SelectContext(ctx, &rows, `
		SELECT tournament_id, user_id, ign, entry_fee, joined_at
		FROM tournament_participants
		WHERE tournament_id = $1
		ORDER BY joined_at ASC
	`, tournamentID)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// StartDue moves every active tournament whose start date has passed to
// ongoing, with ttl set to start_date + ttlAfterStart.
func (s *TournamentStore) StartDue(ctx context.Context, now time.Time, ttlAfterStart time.Duration) ([]string, error) {
	ids := []string{}
	err := s.db.SelectContext(ctx, &ids, `
		UPDATE tournaments
		SET status = 'ongoing',
		    ttl = start_date + make_interval(secs => $2),
		    updated_at = NOW()
		WHERE status = 'active' AND start_date <= $1
		RETURNING id
	`, now, ttlAfterStart.Seconds())
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// DeleteExpired removes every tournament whose ttl is at or before now.
// Participants cascade.
func (s *TournamentStore) DeleteExpired(ctx context.Context, now time.Time) ([]string, error) {
	ids := []string{}
	err := s.db.SelectContext(ctx, &ids, `
		DELETE FROM tournaments
		WHERE ttl IS NOT NULL AND ttl <= $1
		RETURNING id
	`, now)
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// NextTTL returns the nearest ttl strictly after now, or nil if none is set.
func (s *TournamentStore) NextTTL(ctx context.Context, now time.Time) (*time.Time, error) {
	var next sql.NullTime
	err := s.db.GetContext(ctx, &next, `SELECT MIN(ttl) FROM tournaments WHERE ttl > $1`, now)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	if !next.Valid {
		return nil, nil
	}
	return &next.Time, nil
}
