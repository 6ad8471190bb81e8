package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/tagdesk/tagdesk/internal/activity"
	"github.com/tagdesk/tagdesk/internal/cache"
	"github.com/tagdesk/tagdesk/internal/model"
	"github.com/tagdesk/tagdesk/internal/repository"
)

// TransactionStore is the persistence used by WalletService.
type TransactionStore interface {
	TopUp(ctx context.Context, txn *model.Transaction) (int64, error)
}

// PasswordVerifier checks a wallet access password.
type PasswordVerifier interface {
	Verify(ctx context.Context, password string) (*model.AccessPassword, error)
}

// WalletConfig configures a WalletService.
type WalletConfig struct {
	Store        TransactionStore
	Passwords    PasswordVerifier
	Transactions *cache.Collection[model.Transaction]
	Users        *cache.Collection[model.User]
	Activity     activity.Recorder
	Logger       *slog.Logger
	Clock        func() time.Time
}

// WalletService handles wallet top-ups and the transaction ledger.
type WalletService struct {
	store        TransactionStore
	passwords    PasswordVerifier
	transactions *cache.Collection[model.Transaction]
	users        *cache.Collection[model.User]
	activity     activity.Recorder
	logger       *slog.Logger
	now          func() time.Time
}

// NewWalletService creates a new WalletService.
func NewWalletService(cfg WalletConfig) *WalletService {
	s := &WalletService{
		store:        cfg.Store,
		passwords:    cfg.Passwords,
		transactions: cfg.Transactions,
		users:        cfg.Users,
		activity:     cfg.Activity,
		logger:       orDiscardLogger(cfg.Logger).With("component", "service.wallet"),
		now:          orNow(cfg.Clock),
	}
	if s.activity == nil {
		s.activity = activity.Discard
	}
	return s
}

// TransactionFilter narrows a transaction listing.
type TransactionFilter struct {
	Query  string // matches reference, performer or user ID
	UserID string
	Type   string
}

// ListTransactions returns cached transactions matching f.
func (s *WalletService) ListTransactions(ctx context.Context, f TransactionFilter) ([]model.Transaction, error) {
	txns, err := s.transactions.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load transactions: %w", err)
	}

	out := make([]model.Transaction, 0, len(txns))
	for _, t := range txns {
		if f.UserID != "" && t.UserID != f.UserID {
			continue
		}
		if f.Type != "" && t.Type != f.Type {
			continue
		}
		if !matchesQuery(f.Query, t.Reference, t.PerformedBy, t.UserID) {
			continue
		}
		out = append(out, t)
	}
	return out, nil
}

// TopUpInput defines input for a wallet top-up.
type TopUpInput struct {
	UserID         string
	Amount         int64
	Reference      string
	AccessPassword string
	Actor          string
}

// TopUpResult is the recorded transaction and the new wallet balance.
type TopUpResult struct {
	Transaction *model.Transaction `json:"transaction"`
	Balance     int64              `json:"balance"`
}

// TopUp credits a user's wallet. The access password must be active and
// unexpired; the transaction insert and balance update are atomic.
func (s *WalletService) TopUp(ctx context.Context, in TopUpInput) (*TopUpResult, error) {
	if in.Amount <= 0 {
		return nil, ErrInvalidAmount
	}
	if _, err := s.passwords.Verify(ctx, in.AccessPassword); err != nil {
		return nil, err
	}

	txn := &model.Transaction{
		ID:          ulid.Make().String(),
		UserID:      in.UserID,
		Type:        model.TransactionTopUp,
		Amount:      in.Amount,
		Reference:   strings.TrimSpace(in.Reference),
		PerformedBy: in.Actor,
		CreatedAt:   s.now().UTC(),
	}

	balance, err := s.store.TopUp(ctx, txn)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to top up wallet: %w", err)
	}

	invalidate(ctx, s.logger, s.transactions, s.users)
	s.activity.Record(ctx, activity.Event{
		Action:  model.ActionWalletTopUp,
		Entity:  model.EntityTransactions,
		Subject: in.UserID,
		Actor:   in.Actor,
		Detail:  fmt.Sprintf("amount=%d", in.Amount),
	})
	s.logger.Info("wallet topped up", "user_id", in.UserID, "amount", in.Amount)

	return &TopUpResult{Transaction: txn, Balance: balance}, nil
}
