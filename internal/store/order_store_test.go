package store

import (
	"context"
	"database/sql"
	"strings"
	"testing"

	"tourneyhost/internal/models"

	"github.com/shopspring/decimal"
)

func TestOrderStoreCreate(t *testing.T) {
	ctx := context.Background()
	execer := stubExecer{
		execFn: func(_ context.Context, query string, args ...any) (sql.Result, error) {
			if !strings.Contains(query, "INSERT INTO credit_orders") {
				t.Fatalf("unexpected query: %s", query)
			}
			if len(args) != 8 || args[0] != "order-1" || args[3] != "tournament" || args[7] != models.OrderPending {
				t.Fatalf("unexpected args: %#v", args)
			}
			return stubResult{rows: 1}, nil
		},
	}
	err := NewOrderStore(stubDB{}).Create(ctx, execer, models.CreditOrder{
		ID:            "order-1",
		UserID:        "user-1",
		PackageID:     "tc_150",
		PackageType:   models.WalletTournament,
		CreditsAmount: 150,
		Amount:        decimal.NewFromInt(149),
		Currency:      "INR",
		Status:        models.OrderPending,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestOrderStoreGetForUpdate(t *testing.T) {
	ctx := context.Background()
	getter := stubGetter{
		getFn: func(_ context.Context, dest any, query string, args ...any) error {
			if !strings.Contains(query, "FOR UPDATE") {
				t.Fatalf("unexpected query: %s", query)
			}
			*dest.(*models.CreditOrder) = models.CreditOrder{ID: "order-1", Status: models.OrderPending}
			return nil
		},
	}
	order, err := NewOrderStore(stubDB{}).GetForUpdate(ctx, getter, "order-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if order.Status != models.OrderPending {
		t.Fatalf("unexpected order: %#v", order)
	}
}

func TestOrderStoreMarkPaid(t *testing.T) {
	ctx := context.Background()
	execer := stubExecer{
		execFn: func(_ context.Context, query string, args ...any) (sql.Result, error) {
			if !strings.Contains(query, "status = 'PAID'") || !strings.Contains(query, "status <> 'PAID'") {
				t.Fatalf("unexpected query: %s", query)
			}
			if args[2] != `{"type":"PAYMENT_SUCCESS_WEBHOOK"}` {
				t.Fatalf("expected raw payload, got %#v", args[2])
			}
			return stubResult{rows: 1}, nil
		},
	}
	rows, err := NewOrderStore(stubDB{}).MarkPaid(ctx, execer, "order-1", "pay-1", []byte(`{"type":"PAYMENT_SUCCESS_WEBHOOK"}`))
	if err != nil || rows != 1 {
		t.Fatalf("unexpected result: %d %v", rows, err)
	}
}

func TestOrderStoreMarkTerminal(t *testing.T) {
	ctx := context.Background()
	cases := map[string]string{
		models.OrderFailed:      "failed_at = NOW()",
		models.OrderUserDropped: "dropped_at = NOW()",
	}
	for status, stamp := range cases {
		execer := stubExecer{
			execFn: func(_ context.Context, query string, args ...any) (sql.Result, error) {
				if !strings.Contains(query, stamp) || !strings.Contains(query, "status = 'PENDING'") {
					t.Fatalf("unexpected query for %s: %s", status, query)
				}
				if args[1] != status {
					t.Fatalf("unexpected status arg: %#v", args[1])
				}
				return stubResult{rows: 1}, nil
			},
		}
		if _, err := NewOrderStore(stubDB{}).MarkTerminal(ctx, execer, "order-1", status, []byte(`{}`)); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
}

func TestOrderStoreMarkTerminalRejectsPaid(t *testing.T) {
	ctx := context.Background()
	execer := stubExecer{
		execFn: func(context.Context, string, ...any) (sql.Result, error) {
			t.Fatalf("unexpected exec")
			return nil, nil
		},
	}
	if _, err := NewOrderStore(stubDB{}).MarkTerminal(ctx, execer, "order-1", models.OrderPaid, nil); err == nil {
		t.Fatalf("expected error")
	}
}
