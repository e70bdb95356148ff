// Package sweep implements the Sweeper: periodically moves confirmed
// deposits out of one-time receiving addresses into the master wallet.
// Each pass calls the chain, builds a local record, persists it, and
// warn-logs (never fails) on a secondary write, signing plain-ETH/
// ERC-20 transfers with a derived key.
package sweep

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/shopspring/decimal"

	chain_out "github.com/wopay/engine/pkg/domain/chain/ports/out"
	payment_entities "github.com/wopay/engine/pkg/domain/payment/entities"
	payment_out "github.com/wopay/engine/pkg/domain/payment/ports/out"
	payment_vo "github.com/wopay/engine/pkg/domain/payment/value-objects"
)

type Config struct {
	ChainID             int64
	USDTContractAddress string
}

type Service struct {
	store   payment_out.PaymentStore
	chain   chain_out.ChainClient
	deriver payment_out.KeyDeriver
	cfg     Config

	recordSweep func(currency, outcome string, amount float64)
}

func NewService(store payment_out.PaymentStore, chain chain_out.ChainClient, deriver payment_out.KeyDeriver, cfg Config) *Service {
	return &Service{store: store, chain: chain, deriver: deriver, cfg: cfg}
}

// WithMetrics wires an observer called once per broadcast sweep with its
// currency, outcome ("broadcast", "confirmed", "failed"), and amount.
// Left nil, no metrics are recorded.
func (s *Service) WithMetrics(record func(currency, outcome string, amount float64)) *Service {
	s.recordSweep = record
	return s
}

func (s *Service) record(currency payment_vo.Currency, outcome string, amount payment_vo.Amount) {
	if s.recordSweep != nil {
		f, _ := amount.Decimal().Float64()
		s.recordSweep(string(currency), outcome, f)
	}
}

// Tick runs one sweep pass followed by one recovery pass. A single
// address's failure never aborts the batch — sweeping is best effort
// per address, logged and retried next tick — only a failure that
// prevents listing candidates at all is returned.
func (s *Service) Tick(ctx context.Context) error {
	if err := s.sweepPass(ctx); err != nil {
		return fmt.Errorf("sweep pass: %w", err)
	}
	if err := s.recoveryPass(ctx); err != nil {
		return fmt.Errorf("recovery pass: %w", err)
	}
	return nil
}

func (s *Service) sweepPass(ctx context.Context) error {
	walletCfg, err := s.store.GetWalletConfig(ctx)
	if err != nil {
		return err
	}
	if !walletCfg.AutoSweepEnabled {
		return nil
	}

	candidates, err := s.store.AddressesReadyToSweep(ctx)
	if err != nil {
		return err
	}

	for _, addr := range candidates {
		if err := s.sweepOne(ctx, addr, *walletCfg); err != nil {
			slog.ErrorContext(ctx, "sweeper: failed to sweep address", "payment_id", addr.PaymentID, "err", err)
		}
	}
	return nil
}

func (s *Service) sweepOne(ctx context.Context, addr payment_entities.PaymentAddress, walletCfg payment_entities.WalletConfig) error {
	balance, err := s.balanceOf(ctx, addr)
	if err != nil {
		return err
	}
	if balance.LessThan(walletCfg.SweepThreshold) {
		return nil
	}

	privKeyBytes, err := s.deriver.Decrypt(ctx, addr.EncryptedPrivKey)
	if err != nil {
		return fmt.Errorf("decrypt key: %w", err)
	}
	privKey, err := crypto.ToECDSA(privKeyBytes)
	if err != nil {
		return fmt.Errorf("parse key: %w", err)
	}

	nonce, err := s.chain.NonceAt(ctx, addr.Address.Common())
	if err != nil {
		return fmt.Errorf("nonce: %w", err)
	}
	gasPrice, err := s.chain.GasPrice(ctx)
	if err != nil {
		return fmt.Errorf("gas price: %w", err)
	}

	tx, err := s.buildSweepTx(ctx, addr, walletCfg.MasterAddress, balance, nonce, gasPrice)
	if err != nil {
		return fmt.Errorf("build tx: %w", err)
	}

	signer := types.NewEIP155Signer(big.NewInt(s.cfg.ChainID))
	signedTx, err := types.SignTx(tx, signer, privKey)
	if err != nil {
		return fmt.Errorf("sign tx: %w", err)
	}

	raw, err := rlp.EncodeToBytes(signedTx)
	if err != nil {
		return fmt.Errorf("encode tx: %w", err)
	}
	txHash, err := s.chain.SendRawTransaction(ctx, raw)
	if err != nil {
		return fmt.Errorf("broadcast: %w", err)
	}

	gasPriceAmount, err := weiToAmount(gasPrice, 18)
	if err != nil {
		gasPriceAmount = payment_vo.Zero()
	}

	sweepTx := payment_entities.SweepTransaction{
		TransactionHash: txHash.Hex(),
		FromAddress:     addr.Address,
		ToAddress:       walletCfg.MasterAddress,
		Amount:          balance,
		GasPrice:        gasPriceAmount,
		Status:          payment_entities.SweepStatusPending,
	}
	if err := s.store.RecordSweepTransaction(ctx, sweepTx); err != nil {
		// Secondary write: the sweep itself already broadcast. Losing this
		// record only delays the recovery pass from noticing it, so warn
		// and move on rather than treat it as sweep failure.
		slog.WarnContext(ctx, "sweeper: broadcast succeeded but record failed to persist", "tx_hash", sweepTx.TransactionHash, "err", err)
	}

	if err := s.store.MarkAddressSwept(ctx, addr.PaymentID, true); err != nil {
		slog.WarnContext(ctx, "sweeper: failed to flip swept flag", "payment_id", addr.PaymentID, "err", err)
	}

	s.record(addr.Currency, "broadcast", balance)
	return nil
}

func (s *Service) balanceOf(ctx context.Context, addr payment_entities.PaymentAddress) (payment_vo.Amount, error) {
	if addr.Currency.IsNative() {
		wei, err := s.chain.BalanceAt(ctx, addr.Address.Common())
		if err != nil {
			return payment_vo.Amount{}, err
		}
		return weiToAmount(wei, addr.Currency.Decimals())
	}
	raw, err := s.chain.TokenBalanceAt(ctx, mustAddress(s.cfg.USDTContractAddress), addr.Address.Common())
	if err != nil {
		return payment_vo.Amount{}, err
	}
	return weiToAmount(raw, addr.Currency.Decimals())
}

func (s *Service) buildSweepTx(ctx context.Context, addr payment_entities.PaymentAddress, to payment_vo.EVMAddress, amount payment_vo.Amount, nonce uint64, gasPrice *big.Int) (*types.Transaction, error) {
	value := amountToWei(amount, addr.Currency.Decimals())

	if addr.Currency.IsNative() {
		gasLimit, err := s.chain.EstimateGas(ctx, addr.Address.Common(), to.Common(), value, nil)
		if err != nil {
			gasLimit = 21000
		}
		// The balance itself pays for its own gas: a native sweep can only
		// move balance-minus-fee, never the full balance, or the node
		// rejects the broadcast for insufficient funds.
		gasCost := new(big.Int).Mul(big.NewInt(int64(gasLimit)), gasPrice)
		netValue := new(big.Int).Sub(value, gasCost)
		if netValue.Sign() <= 0 {
			return nil, fmt.Errorf("balance %s insufficient to cover gas cost %s", value, gasCost)
		}
		return types.NewTransaction(nonce, to.Common(), netValue, gasLimit, gasPrice, nil), nil
	}

	data := erc20TransferData(to.Common(), value)
	tokenAddr := mustAddress(s.cfg.USDTContractAddress)
	gasLimit, err := s.chain.EstimateGas(ctx, addr.Address.Common(), tokenAddr, big.NewInt(0), data)
	if err != nil {
		gasLimit = 65000
	}
	return types.NewTransaction(nonce, tokenAddr, big.NewInt(0), gasLimit, gasPrice, data), nil
}

// recoveryPass finds addresses marked swept with no corresponding
// confirmed SweepTransaction (e.g. the process crashed between
// broadcast and record, or the broadcast itself never landed) and
// either confirms or resets them rather than trusting the flag alone.
func (s *Service) recoveryPass(ctx context.Context) error {
	pending, err := s.store.AddressesPendingRecovery(ctx)
	if err != nil {
		return err
	}

	for _, addr := range pending {
		existing, err := s.store.GetSweepTransaction(ctx, addr.Address)
		if err == nil && existing != nil {
			receipt, rerr := s.chain.TransactionReceipt(ctx, common.HexToHash(existing.TransactionHash))
			if rerr == nil && receipt != nil {
				status := payment_entities.SweepStatusConfirmed
				if receipt.Status == 0 {
					status = payment_entities.SweepStatusFailed
				}
				if err := s.store.UpdateSweepTransaction(ctx, existing.TransactionHash, status); err != nil {
					slog.WarnContext(ctx, "sweeper: failed to update sweep tx status", "tx_hash", existing.TransactionHash, "err", err)
				}
				if status == payment_entities.SweepStatusConfirmed {
					s.record(addr.Currency, "confirmed", existing.Amount)
					continue
				}
				s.record(addr.Currency, "failed", existing.Amount)
			} else if rerr == nil {
				// Broadcast but not yet mined; leave swept=true and retry
				// the receipt check next recovery pass.
				continue
			}
		}

		// No sweep transaction landed: clear the flag so the next sweep
		// pass re-evaluates this address as a fresh candidate.
		if err := s.store.MarkAddressSwept(ctx, addr.PaymentID, false); err != nil {
			slog.WarnContext(ctx, "sweeper: recovery pass failed to reset swept flag", "payment_id", addr.PaymentID, "err", err)
		}
	}
	return nil
}

func mustAddress(hexAddr string) common.Address {
	return common.HexToAddress(hexAddr)
}

func weiToAmount(value *big.Int, decimals int32) (payment_vo.Amount, error) {
	if value == nil {
		return payment_vo.Amount{}, fmt.Errorf("nil chain value")
	}
	return payment_vo.AmountFromDecimal(decimal.NewFromBigInt(value, -decimals)), nil
}

func amountToWei(a payment_vo.Amount, decimals int32) *big.Int {
	shifted := a.Decimal().Shift(decimals)
	return shifted.BigInt()
}

// erc20TransferData encodes the calldata for `transfer(address,uint256)`.
func erc20TransferData(to common.Address, amount *big.Int) []byte {
	methodID := crypto.Keccak256([]byte("transfer(address,uint256)"))[:4]
	paddedAddr := common.LeftPadBytes(to.Bytes(), 32)
	paddedAmount := common.LeftPadBytes(amount.Bytes(), 32)

	data := make([]byte, 0, len(methodID)+len(paddedAddr)+len(paddedAmount))
	data = append(data, methodID...)
	data = append(data, paddedAddr...)
	data = append(data, paddedAmount...)
	return data
}
