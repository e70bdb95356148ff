// Package follower implements the Block Follower: it turns the
// blockchain into a stream of ObservedTransfer events with
// monotonically non-decreasing block numbers. A cursor-driven polling
// loop starts, ticks, and shuts down cooperatively, scanning every
// block in the newly-safe range for native value transfers and ERC-20
// Transfer logs on each pass.
package follower

import (
	"context"
	"errors"
	"log/slog"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	chain_out "github.com/wopay/engine/pkg/domain/chain/ports/out"
	payment_entities "github.com/wopay/engine/pkg/domain/payment/entities"
	payment_out "github.com/wopay/engine/pkg/domain/payment/ports/out"
	payment_vo "github.com/wopay/engine/pkg/domain/payment/value-objects"
)

// Matcher is the subset of payment_services.MatcherService the follower
// needs, kept as an interface here to avoid a domain-package import
// cycle between follower and payment/services.
type Matcher interface {
	MatchTransfer(ctx context.Context, transfer payment_entities.ObservedTransfer) error
}

type Config struct {
	PollInterval        time.Duration
	ReorgDepth          uint64
	USDTContractAddress common.Address
	MaxBackoff          time.Duration
}

type Service struct {
	store   payment_out.PaymentStore
	chain   chain_out.ChainClient
	matcher Matcher
	cfg     Config
	backoff time.Duration
}

func NewService(store payment_out.PaymentStore, chain chain_out.ChainClient, matcher Matcher, cfg Config) *Service {
	if cfg.MaxBackoff == 0 {
		cfg.MaxBackoff = 30 * time.Second
	}
	return &Service{store: store, chain: chain, matcher: matcher, cfg: cfg, backoff: time.Second}
}

// Run polls forever until ctx is cancelled, processing one batch of
// blocks per poll interval. Shutdown is cooperative: on cancellation it
// finishes the in-flight poll, then returns.
func (s *Service) Run(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.pollOnce(ctx); err != nil {
				slog.ErrorContext(ctx, "follower: poll failed, backing off", "err", err, "backoff", s.backoff)
				select {
				case <-time.After(s.backoff):
				case <-ctx.Done():
					return
				}
				s.backoff = minDuration(s.backoff*2, s.cfg.MaxBackoff)
				continue
			}
			s.backoff = time.Second
		}
	}
}

func (s *Service) pollOnce(ctx context.Context) error {
	cursor, err := s.store.BlockCursor(ctx)
	if err != nil {
		return err
	}

	head, err := s.chain.LatestBlockNumber(ctx)
	if err != nil {
		return err
	}

	if head < s.cfg.ReorgDepth {
		return nil
	}
	safeHead := head - s.cfg.ReorgDepth
	if safeHead <= cursor {
		return nil
	}

	knownAddresses, err := s.knownAddresses(ctx)
	if err != nil {
		return err
	}

	for blockNum := cursor + 1; blockNum <= safeHead; blockNum++ {
		if err := s.processBlock(ctx, blockNum, knownAddresses); err != nil {
			return err
		}
		if err := s.store.AdvanceCursor(ctx, blockNum); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) knownAddresses(ctx context.Context) (map[common.Address]struct{}, error) {
	addrs, err := s.store.OpenPaymentAddresses(ctx)
	if err != nil {
		return nil, err
	}
	set := make(map[common.Address]struct{}, len(addrs))
	for _, a := range addrs {
		set[a.Address.Common()] = struct{}{}
	}
	return set, nil
}

func (s *Service) processBlock(ctx context.Context, blockNumber uint64, knownAddresses map[common.Address]struct{}) error {
	transfers, _, err := s.chain.BlockTransfers(ctx, blockNumber, s.cfg.USDTContractAddress, knownAddresses)
	if err != nil {
		return err
	}

	for _, t := range transfers {
		currency := payment_vo.CurrencyETH
		if !t.IsNative {
			currency = payment_vo.CurrencyUSDT
		}

		amount, err := weiToAmount(t.Value, currency.Decimals())
		if err != nil {
			slog.WarnContext(ctx, "follower: could not parse transfer amount, skipping", "tx_hash", t.TxHash.Hex(), "err", err)
			continue
		}

		observed := payment_entities.ObservedTransfer{
			TransactionHash: t.TxHash.Hex(),
			BlockNumber:     t.BlockNumber,
			TxIndex:         t.TxIndex,
			FromAddress:     mustAddress(t.From),
			ToAddress:       mustAddress(t.To),
			Amount:          amount,
			Currency:        currency,
			Confirmations:   1,
			Status:          payment_entities.TransferStatusPending,
			ObservedAt:      time.Now(),
		}

		recorded, err := s.store.RecordObservedTransfer(ctx, observed)
		if err != nil {
			return err
		}

		if err := s.matcher.MatchTransfer(ctx, *recorded); err != nil {
			slog.ErrorContext(ctx, "follower: matcher failed for transfer", "tx_hash", recorded.TransactionHash, "err", err)
		}
	}
	return nil
}

func mustAddress(a common.Address) payment_vo.EVMAddress {
	addr, _ := payment_vo.NewEVMAddress(a.Hex())
	return addr
}

func minDuration(a, b time.Duration) time.Duration {
	if a < b {
		return a
	}
	return b
}

var errNilValue = errors.New("transfer value is nil")

// weiToAmount converts a chain-native big.Int (wei for ETH, base units
// for an ERC-20 token) into an exact decimal.Decimal-backed Amount,
// scaled by the currency's decimal places.
func weiToAmount(value *big.Int, decimals int32) (payment_vo.Amount, error) {
	if value == nil {
		return payment_vo.Amount{}, errNilValue
	}
	d := decimal.NewFromBigInt(value, -decimals)
	return payment_vo.AmountFromDecimal(d), nil
}
