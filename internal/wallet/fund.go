package wallet

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"golang.org/x/sync/errgroup"
)

// Default funding amounts, in ether.
const (
	DefaultLowThreshold = "0.09"
	DefaultTopUp        = "0.1"
)

// FundingPolicy decides when a destination is topped up and by how much.
type FundingPolicy struct {
	// LowThreshold is the balance, in wei, at or above which nothing is sent.
	LowThreshold *big.Int
	// TopUp is the exact amount, in wei, transferred when funding happens.
	TopUp *big.Int
}

// DefaultFundingPolicy tops up by 0.1 ether whenever the balance is below
// 0.09 ether.
func DefaultFundingPolicy() FundingPolicy {
	return FundingPolicy{
		LowThreshold: MustParseEther(DefaultLowThreshold),
		TopUp:        MustParseEther(DefaultTopUp),
	}
}

// Validate rejects negative or missing amounts.
func (p FundingPolicy) Validate() error {
	if p.LowThreshold == nil || p.TopUp == nil {
		return fmt.Errorf("wallet: funding policy needs both threshold and top-up")
	}
	if p.LowThreshold.Sign() < 0 || p.TopUp.Sign() <= 0 {
		return fmt.Errorf("wallet: funding amounts must be positive")
	}
	return nil
}

// FundResult reports what Fund did.
type FundResult struct {
	Destination common.Address
	// Transferred is false when the destination was already at or above the
	// threshold.
	Transferred bool
	Tx          *types.Transaction
	Receipt     *types.Receipt
	// Balance is the destination balance after Fund returned.
	Balance *big.Int
}

// Fund ensures destination holds at least policy.LowThreshold. The source
// must hold at least policy.TopUp even if no transfer turns out to be needed.
// When the destination is below the threshold exactly policy.TopUp is sent
// and Fund waits for one confirmation.
func Fund(ctx context.Context, source *Wallet, destination common.Address, policy FundingPolicy) (*FundResult, error) {
	if err := policy.Validate(); err != nil {
		return nil, err
	}

	var sourceBalance, destBalance *big.Int
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		sourceBalance, err = source.Balance(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		destBalance, err = source.network.BalanceAt(gctx, destination, nil)
		if err != nil {
			return fmt.Errorf("get balance of %s: %w", destination.Hex(), err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if sourceBalance.Cmp(policy.TopUp) < 0 {
		return nil, &InsufficientFundsError{
			Source:   source.Address(),
			Balance:  sourceBalance,
			Required: new(big.Int).Set(policy.TopUp),
		}
	}

	logger := source.logger.With(
		slog.String("source", source.Address().Hex()),
		slog.String("destination", destination.Hex()),
	)

	if destBalance.Cmp(policy.LowThreshold) >= 0 {
		logger.Info("destination already funded", slog.String("balance_eth", FormatEther(destBalance)))
		return &FundResult{Destination: destination, Balance: destBalance}, nil
	}

	tx, err := source.Transfer(ctx, destination, new(big.Int).Set(policy.TopUp))
	if err != nil {
		return nil, fmt.Errorf("fund %s: %w", destination.Hex(), err)
	}
	receipt, err := WaitConfirmed(ctx, source.network, tx)
	if err != nil {
		return nil, fmt.Errorf("fund %s: %w", destination.Hex(), err)
	}

	balance, err := source.network.BalanceAt(ctx, destination, nil)
	if err != nil {
		return nil, fmt.Errorf("get balance of %s: %w", destination.Hex(), err)
	}
	logger.Info("destination funded",
		slog.String("tx_hash", tx.Hash().Hex()),
		slog.String("balance_eth", FormatEther(balance)),
	)

	return &FundResult{
		Destination: destination,
		Transferred: true,
		Tx:          tx,
		Receipt:     receipt,
		Balance:     balance,
	}, nil
}
