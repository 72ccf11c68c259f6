package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"tourneyhost/internal/db"
	"tourneyhost/internal/events"
	"tourneyhost/internal/lifecycle"
	"tourneyhost/internal/metrics"
	"tourneyhost/internal/models"
	"tourneyhost/internal/money"
	"tourneyhost/internal/store"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

// HostingCost is the host credits debited to create a tournament.
const HostingCost = 1

type TournamentStore interface {
	Create(ctx context.Context, tx store.Execer, t models.Tournament) error
	GetByID(ctx context.Context, id string) (models.Tournament, error)
	GetForUpdate(ctx context.Context, tx store.Getter, id string) (models.Tournament, error)
	List(ctx context.Context, status string, limit, offset int) ([]models.Tournament, error)
	UpdateStatus(ctx context.Context, tx store.Execer, id, from, to string, ttl *time.Time) (int64, error)
	SetWinners(ctx context.Context, tx store.Execer, id string, winners []byte) error
	IncrementFilled(ctx context.Context, tx store.Execer, id string) (int64, error)
	AddParticipant(ctx context.Context, tx store.Execer, p models.Participant) error
	IsParticipant(ctx context.Context, tx store.Getter, tournamentID, userID string) (bool, error)
	ListParticipants(ctx context.Context, q store.Selecter, tournamentID string) ([]models.Participant, error)
}

type TournamentService struct {
	txRunner    db.TxRunner
	tournaments TournamentStore
	ledger      *Ledger
	audit       AuditStore
	publisher   events.Publisher
	metrics     *metrics.Metrics
	now         func() time.Time
}

func NewTournamentService(txRunner db.TxRunner, tournaments TournamentStore, ledger *Ledger, audit AuditStore, publisher events.Publisher, m *metrics.Metrics) *TournamentService {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &TournamentService{
		txRunner:    txRunner,
		tournaments: tournaments,
		ledger:      ledger,
		audit:       audit,
		publisher:   publisher,
		metrics:     m,
		now:         time.Now,
	}
}

type CreateTournamentRequest struct {
	Name              string
	StartDate         time.Time
	EntryFee          int64
	MaxPlayers        int
	PrizeDistribution map[string]decimal.Decimal
}

// Create debits one host credit and opens the tournament for joining.
func (s *TournamentService) Create(ctx context.Context, hostID string, req CreateTournamentRequest) (models.Tournament, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" || req.MaxPlayers < 2 || req.EntryFee < 0 || req.StartDate.IsZero() {
		return models.Tournament{}, ErrInvalidTournament
	}
	// A past start date would be started and expired by the same sweep.
	if !req.StartDate.After(s.now()) {
		return models.Tournament{}, fmt.Errorf("%w: start date must be in the future", ErrInvalidTournament)
	}
	if err := money.ValidateDistribution(req.PrizeDistribution); err != nil {
		return models.Tournament{}, fmt.Errorf("%w: %v", ErrInvalidPrizeDistribution, err)
	}
	prizes, err := json.Marshal(req.PrizeDistribution)
	if err != nil {
		return models.Tournament{}, err
	}
	if req.PrizeDistribution == nil {
		prizes = []byte("{}")
	}
	id := uuid.NewString()
	tournament := models.Tournament{
		ID:                id,
		Slug:              slug.Make(name) + "-" + id[:8],
		Name:              name,
		HostID:            hostID,
		Status:            models.TournamentActive,
		StartDate:         req.StartDate.UTC(),
		EntryFee:          req.EntryFee,
		MaxPlayers:        req.MaxPlayers,
		PrizeDistribution: prizes,
		Winners:           json.RawMessage("{}"),
	}

	var debit CreditResult
	err = s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		var err error
		debit, err = s.ledger.DebitCreditsTx(ctx, tx, DebitRequest{
			UserID:       hostID,
			Amount:       HostingCost,
			WalletType:   models.WalletHost,
			Type:         models.TxTournamentHosting,
			TournamentID: id,
			Description:  "Hosted " + name,
		})
		if err != nil {
			return err
		}
		if err := s.tournaments.Create(ctx, tx, tournament); err != nil {
			return fmt.Errorf("create tournament: %w", err)
		}
		return s.auditLog(ctx, tx, hostID, "tournament.created", id, map[string]any{
			"name":        name,
			"entry_fee":   req.EntryFee,
			"max_players": req.MaxPlayers,
		})
	})
	if err != nil {
		return models.Tournament{}, err
	}
	s.ledger.Committed(ctx, "tournament_hosting", debit)
	s.publish(ctx, events.SubjectTournamentCreated, map[string]string{"tournament_id": id, "host_id": hostID})
	return tournament, nil
}

// Join debits the entry fee and takes one spot.
func (s *TournamentService) Join(ctx context.Context, userID, tournamentID, ign string) (models.Participant, error) {
	ign = strings.TrimSpace(ign)
	if ign == "" {
		return models.Participant{}, fmt.Errorf("%w: in-game name is required", ErrInvalidTournament)
	}
	var participant models.Participant
	var debit *CreditResult
	err := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		debit = nil
		t, err := s.lock(ctx, tx, tournamentID)
		if err != nil {
			return err
		}
		if t.Status != models.TournamentActive || lifecycle.Due(t, s.now()) {
			return ErrTournamentClosed
		}
		if t.HostID == userID {
			return ErrHostCannotJoin
		}
		joined, err := s.tournaments.IsParticipant(ctx, tx, tournamentID, userID)
		if err != nil {
			return err
		}
		if joined {
			return ErrAlreadyJoined
		}
		if t.FilledSpots >= t.MaxPlayers {
			return ErrTournamentFull
		}
		if t.EntryFee > 0 {
			result, err := s.ledger.DebitCreditsTx(ctx, tx, DebitRequest{
				UserID:       userID,
				Amount:       t.EntryFee,
				WalletType:   models.WalletTournament,
				Type:         models.TxTournamentEntry,
				TournamentID: tournamentID,
				Description:  "Entry fee for " + t.Name,
			})
			if err != nil {
				return err
			}
			debit = &result
		}
		participant = models.Participant{
			TournamentID: tournamentID,
			UserID:       userID,
			IGN:          ign,
			EntryFee:     t.EntryFee,
			JoinedAt:     s.now().UTC(),
		}
		if err := s.tournaments.AddParticipant(ctx, tx, participant); err != nil {
			if db.IsUniqueViolation(err) {
				return ErrAlreadyJoined
			}
			return fmt.Errorf("add participant: %w", err)
		}
		updated, err := s.tournaments.IncrementFilled(ctx, tx, tournamentID)
		if err != nil {
			return fmt.Errorf("increment filled spots: %w", err)
		}
		if updated == 0 {
			return ErrTournamentFull
		}
		return nil
	})
	if err != nil {
		return models.Participant{}, err
	}
	if debit != nil {
		s.ledger.Committed(ctx, "tournament_entry", *debit)
	}
	return participant, nil
}

// Start moves an active tournament to ongoing. The ttl is counted from the
// scheduled start date.
func (s *TournamentService) Start(ctx context.Context, hostID, tournamentID string) (models.Tournament, error) {
	var out models.Tournament
	err := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		t, err := s.lockOwned(ctx, tx, hostID, tournamentID)
		if err != nil {
			return err
		}
		ttl := lifecycle.StartedTTL(t.StartDate)
		if err := s.transition(ctx, tx, &t, models.TournamentOngoing, ttl); err != nil {
			return err
		}
		out = t
		return s.auditLog(ctx, tx, hostID, "tournament.started", tournamentID, map[string]any{"ttl": ttl})
	})
	if err != nil {
		return models.Tournament{}, err
	}
	s.publishStatus(ctx, out)
	return out, nil
}

// End closes an ongoing tournament. With winners it becomes completed and the
// prize pool is paid into the winners' earnings; without it becomes ended.
func (s *TournamentService) End(ctx context.Context, hostID, tournamentID string, winners map[string]models.Winner) (models.Tournament, error) {
	var out models.Tournament
	var payouts []CreditResult
	err := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		payouts = nil
		t, err := s.lockOwned(ctx, tx, hostID, tournamentID)
		if err != nil {
			return err
		}
		next := models.TournamentEnded
		if len(winners) > 0 {
			next = models.TournamentCompleted
		}
		if !lifecycle.CanTransition(t.Status, next) {
			return ErrInvalidTransition
		}
		if len(winners) > 0 {
			payouts, err = s.payWinners(ctx, tx, t, winners)
			if err != nil {
				return err
			}
			encoded, err := json.Marshal(winners)
			if err != nil {
				return err
			}
			if err := s.tournaments.SetWinners(ctx, tx, tournamentID, encoded); err != nil {
				return fmt.Errorf("set winners: %w", err)
			}
			t.Winners = encoded
		}
		ttl := lifecycle.EndedTTL(s.now().UTC())
		if err := s.transition(ctx, tx, &t, next, ttl); err != nil {
			return err
		}
		out = t
		return s.auditLog(ctx, tx, hostID, "tournament."+next, tournamentID, map[string]any{
			"winners": len(winners),
			"payouts": len(payouts),
		})
	})
	if err != nil {
		return models.Tournament{}, err
	}
	if len(payouts) > 0 {
		s.ledger.Committed(ctx, "prize_payout", payouts...)
	}
	s.publishStatus(ctx, out)
	return out, nil
}

func (s *TournamentService) payWinners(ctx context.Context, tx store.Tx, t models.Tournament, winners map[string]models.Winner) ([]CreditResult, error) {
	distribution, err := t.Prizes()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPrizeDistribution, err)
	}
	pool := decimal.NewFromInt(t.EntryFee * int64(t.FilledSpots))
	shares, err := money.SplitPrizePool(pool, distribution)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPrizeDistribution, err)
	}
	results := []CreditResult{}
	paid := make(map[string]string, len(winners))
	for _, position := range money.SortedPositions(winners) {
		winner := winners[position]
		if previous, ok := paid[winner.UserID]; ok {
			return nil, fmt.Errorf("%w: %s already holds position %s", ErrInvalidPrizeDistribution, winner.UserID, previous)
		}
		paid[winner.UserID] = position
		if _, ok := distribution[position]; !ok {
			return nil, fmt.Errorf("%w: no prize for position %s", ErrInvalidPrizeDistribution, position)
		}
		joined, err := s.tournaments.IsParticipant(ctx, tx, t.ID, winner.UserID)
		if err != nil {
			return nil, err
		}
		if !joined {
			return nil, fmt.Errorf("%w: position %s", ErrNotWinner, position)
		}
		share, ok := shares[position]
		if !ok {
			continue
		}
		result, err := s.ledger.CreditEarningsTx(ctx, tx, winner.UserID, share, t.ID,
			fmt.Sprintf("Position %s prize in %s", position, t.Name))
		if err != nil {
			return nil, err
		}
		results = append(results, result)
	}
	return results, nil
}

// Cancel refunds every participant's entry fee. The hosting credit is
// returned only when the tournament never started.
func (s *TournamentService) Cancel(ctx context.Context, hostID, tournamentID string) (models.Tournament, error) {
	var out models.Tournament
	var refunds []CreditResult
	err := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		refunds = nil
		t, err := s.lockOwned(ctx, tx, hostID, tournamentID)
		if err != nil {
			return err
		}
		if !lifecycle.CanTransition(t.Status, models.TournamentCancelled) {
			return ErrInvalidTransition
		}
		participants, err := s.tournaments.ListParticipants(ctx, tx, tournamentID)
		if err != nil {
			return fmt.Errorf("list participants: %w", err)
		}
		for _, p := range participants {
			if p.EntryFee <= 0 {
				continue
			}
			result, err := s.ledger.RefundCreditsTx(ctx, tx, p.UserID, p.EntryFee, models.WalletTournament, tournamentID, "Refund for cancelled "+t.Name)
			if err != nil {
				return err
			}
			refunds = append(refunds, result)
		}
		if t.Status == models.TournamentActive {
			result, err := s.ledger.RefundCreditsTx(ctx, tx, t.HostID, HostingCost, models.WalletHost, tournamentID, "Hosting refund for cancelled "+t.Name)
			if err != nil {
				return err
			}
			refunds = append(refunds, result)
		}
		ttl := lifecycle.CancelledTTL(s.now().UTC())
		if err := s.transition(ctx, tx, &t, models.TournamentCancelled, ttl); err != nil {
			return err
		}
		out = t
		return s.auditLog(ctx, tx, hostID, "tournament.cancelled", tournamentID, map[string]any{"refunds": len(refunds)})
	})
	if err != nil {
		return models.Tournament{}, err
	}
	if len(refunds) > 0 {
		s.ledger.Committed(ctx, "tournament_refund", refunds...)
	}
	s.publishStatus(ctx, out)
	return out, nil
}

func (s *TournamentService) Get(ctx context.Context, tournamentID string) (models.Tournament, error) {
	t, err := s.tournaments.GetByID(ctx, tournamentID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Tournament{}, ErrTournamentNotFound
	}
	return t, err
}

func (s *TournamentService) List(ctx context.Context, status string, limit, offset int) ([]models.Tournament, error) {
	if status != "" && !lifecycle.ValidStatus(status) {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidTournament, status)
	}
	return s.tournaments.List(ctx, status, limit, offset)
}

func (s *TournamentService) Participants(ctx context.Context, tournamentID string) ([]models.Participant, error) {
	if _, err := s.Get(ctx, tournamentID); err != nil {
		return nil, err
	}
	return s.tournaments.ListParticipants(ctx, nil, tournamentID)
}

func (s *TournamentService) lock(ctx context.Context, tx store.Getter, tournamentID string) (models.Tournament, error) {
	t, err := s.tournaments.GetForUpdate(ctx, tx, tournamentID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Tournament{}, ErrTournamentNotFound
	}
	if err != nil {
		return models.Tournament{}, fmt.Errorf("lock tournament: %w", err)
	}
	return t, nil
}

func (s *TournamentService) lockOwned(ctx context.Context, tx store.Getter, hostID, tournamentID string) (models.Tournament, error) {
	t, err := s.lock(ctx, tx, tournamentID)
	if err != nil {
		return models.Tournament{}, err
	}
	if t.HostID != hostID {
		return models.Tournament{}, ErrNotHost
	}
	return t, nil
}

func (s *TournamentService) transition(ctx context.Context, tx store.Execer, t *models.Tournament, to string, ttl time.Time) error {
	if !lifecycle.CanTransition(t.Status, to) {
		return ErrInvalidTransition
	}
	updated, err := s.tournaments.UpdateStatus(ctx, tx, t.ID, t.Status, to, &ttl)
	if err != nil {
		return fmt.Errorf("update tournament status: %w", err)
	}
	if updated == 0 {
		return ErrInvalidTransition
	}
	t.Status = to
	t.TTL = &ttl
	return nil
}

func (s *TournamentService) auditLog(ctx context.Context, tx store.Execer, actorID, action, tournamentID string, data map[string]any) error {
	encoded, _ := json.Marshal(data)
	return s.audit.Log(ctx, tx, actorID, action, "tournament", tournamentID, string(encoded))
}

func (s *TournamentService) publishStatus(ctx context.Context, t models.Tournament) {
	payload := map[string]any{"tournament_id": t.ID, "status": t.Status}
	if t.TTL != nil {
		payload["ttl"] = t.TTL.UTC()
	}
	s.publish(ctx, events.SubjectTournamentStatus, payload)
}

func (s *TournamentService) publish(ctx context.Context, subject string, payload any) {
	if err := s.publisher.Publish(ctx, subject, payload); err != nil {
		s.metrics.SideEffectFailed("event")
		log.WithError(err).WithField("subject", subject).Warn("failed to publish tournament event")
	}
}
