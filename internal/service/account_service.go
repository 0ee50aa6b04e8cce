package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"foobar/internal/database"
	"foobar/internal/domain"
	"foobar/internal/metrics"
	"foobar/internal/models"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// ErrRateLimited means a card is being scanned too often.
var ErrRateLimited = errors.New("card scan rate limit exceeded")

// AccountService resolves kiosk card scans to account snapshots and
// handles wallet administration.
type AccountService struct {
	db         *database.DB
	snapshots  domain.SnapshotRepository
	tokens     *TokenIssuer
	currency   string
	scanLimit  int
	scanWindow time.Duration
	logger     *zerolog.Logger
}

func NewAccountService(db *database.DB, snapshots domain.SnapshotRepository, tokens *TokenIssuer, currency string, logger *zerolog.Logger) *AccountService {
	return &AccountService{
		db:         db,
		snapshots:  snapshots,
		tokens:     tokens,
		currency:   currency,
		scanLimit:  models.KioskRateLimitScans,
		scanWindow: models.KioskRateLimitWindow * time.Second,
		logger:     logger,
	}
}

// GetSnapshotByCard resolves a card scan. Snapshots are cached; a cache
// hit still gets a fresh token since tokens outlive their welcome faster
// than balances change.
func (s *AccountService) GetSnapshotByCard(ctx context.Context, cardNumber int64) (*models.AccountSnapshot, error) {
	allowed, err := s.snapshots.CheckRateLimit(ctx, cardNumber, s.scanLimit, s.scanWindow)
	if err != nil {
		s.logger.Warn().Err(err).Msg("Rate limit check failed, allowing scan")
	} else if !allowed {
		return nil, ErrRateLimited
	}

	metrics.IncCardScan()

	if cached, err := s.snapshots.GetSnapshot(ctx, cardNumber); err == nil && cached != nil {
		token, err := s.tokens.Issue(cached.ID)
		if err != nil {
			return nil, err
		}
		cached.Token = token
		return cached, nil
	}

	account, err := s.db.GetAccountByCard(ctx, cardNumber)
	if err != nil {
		return nil, err
	}
	balance, err := s.db.GetBalance(ctx, account.ID)
	if err != nil {
		return nil, err
	}
	token, err := s.tokens.Issue(account.ID)
	if err != nil {
		return nil, err
	}

	snapshot := &models.AccountSnapshot{
		ID:                  account.ID,
		Name:                account.Name,
		Balance:             balance,
		Currency:            s.currency,
		Token:               token,
		IsComplete:          account.IsComplete,
		CanTakeCardPayments: account.CanTakeCardPayments,
	}

	if err := s.snapshots.SetSnapshot(ctx, cardNumber, snapshot); err != nil {
		s.logger.Warn().Err(err).Int64("card", cardNumber).Msg("Failed to cache account snapshot")
	}
	return snapshot, nil
}

// InvalidateCard drops the cached snapshot after a balance change.
func (s *AccountService) InvalidateCard(ctx context.Context, cardNumber int64) {
	if err := s.snapshots.ClearSnapshot(ctx, cardNumber); err != nil {
		s.logger.Warn().Err(err).Int64("card", cardNumber).Msg("Failed to invalidate snapshot")
	}
}

// InvalidateAccount drops the cached snapshots of every card tied to an
// account. Balance mutations arrive by account id, not card number.
func (s *AccountService) InvalidateAccount(ctx context.Context, accountID string) {
	cards, err := s.db.GetCardsByAccount(ctx, accountID)
	if err != nil {
		s.logger.Warn().Err(err).Str("account_id", accountID).Msg("Failed to list cards for invalidation")
		return
	}
	for _, card := range cards {
		s.InvalidateCard(ctx, card.Number)
	}
}

func (s *AccountService) GetAccount(ctx context.Context, id string) (*models.Account, error) {
	return s.db.GetAccount(ctx, id)
}

func (s *AccountService) UpdateAccount(ctx context.Context, id, name, email string) error {
	return s.db.UpdateAccount(ctx, id, name, email)
}

func (s *AccountService) GetBalance(ctx context.Context, ownerID string) (decimal.Decimal, error) {
	return s.db.GetBalance(ctx, ownerID)
}

func (s *AccountService) ListWalletTransactions(ctx context.Context, ownerID string, limit int) ([]models.WalletTransaction, error) {
	return s.db.ListWalletTransactions(ctx, ownerID, limit)
}

// Deposit credits (or, with a negative amount, debits) a wallet.
func (s *AccountService) Deposit(ctx context.Context, ownerID string, amount decimal.Decimal, comment string) (*models.WalletTransaction, error) {
	if amount.IsZero() {
		return nil, errors.New("deposit amount must be non-zero")
	}
	trxType := models.WalletTrxDeposit
	if amount.IsNegative() {
		trxType = models.WalletTrxWithdrawal
	}
	trx := &models.WalletTransaction{
		OwnerID: ownerID,
		TrxType: trxType,
		Amount:  amount,
		Status:  models.StatusFinalized,
		Comment: comment,
	}
	if err := s.db.CreateWalletTransaction(ctx, trx); err != nil {
		return nil, err
	}
	s.logger.Info().Str("owner", ownerID).Str("amount", amount.String()).Msg("Wallet deposit recorded")
	return trx, nil
}

// SetBalance corrects a wallet to an exact balance, recording the delta
// as a correction transaction.
func (s *AccountService) SetBalance(ctx context.Context, ownerID string, target decimal.Decimal, comment string) (*models.WalletTransaction, error) {
	current, err := s.db.GetBalance(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	delta := target.Sub(current)
	if delta.IsZero() {
		return nil, fmt.Errorf("balance already at %s", target)
	}
	trx := &models.WalletTransaction{
		OwnerID: ownerID,
		TrxType: models.WalletTrxCorrection,
		Amount:  delta,
		Status:  models.StatusFinalized,
		Comment: comment,
	}
	if err := s.db.CreateWalletTransaction(ctx, trx); err != nil {
		return nil, err
	}
	s.logger.Info().Str("owner", ownerID).Str("delta", delta.String()).Msg("Wallet correction recorded")
	return trx, nil
}
