package store

import (
	"context"

	"tourneyhost/internal/models"
)

type WithdrawalStore struct {
	db DB
}

func NewWithdrawalStore(db DB) *WithdrawalStore {
	return &WithdrawalStore{db: db}
}

func (s *WithdrawalStore) Create(ctx context.Context, tx Execer, w models.WithdrawalRequest) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO withdrawal_requests (id, user_id, amount, upi_id, status)
		VALUES ($1, $2, $3, $4, $5)
	`, w.ID, w.UserID, w.Amount, w.UPIID, w.Status)
	return err
}

func (s *WithdrawalStore) ListByUser(ctx context.Context, userID string, limit, offset int) ([]models.WithdrawalRequest, error) {
	rows := []models.WithdrawalRequest{}
	err := s.db.SelectContext(ctx, &rows, `
		SELECT id, user_id, amount, upi_id, status, created_at
		FROM withdrawal_requests
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	return rows, nil
}
