package txn

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/rs/zerolog"
	"github.com/thep2p/go-web3-core/internal/gasprice"
	"github.com/thep2p/go-web3-core/internal/model"
	"github.com/thep2p/go-web3-core/internal/provider"
	"github.com/thep2p/go-web3-core/internal/web3err"
)

// Builder binds the transaction operations to a caller, normally the middleware
// pipeline, and to session settings. A Builder without a caller works offline:
// only fully specified requests can be built and nothing can be sent.
type Builder struct {
	logger         zerolog.Logger
	caller         provider.Provider
	strategy       gasprice.Strategy
	gasBuffer      uint64
	receiptTimeout time.Duration
	receiptOpts    []ReceiptOption
}

// Option configures a Builder.
type Option func(*Builder)

// WithGasPriceStrategy sets the strategy used for absent gas prices.
func WithGasPriceStrategy(strategy gasprice.Strategy) Option {
	return func(b *Builder) {
		b.strategy = strategy
	}
}

// WithGasBuffer sets the buffer EstimateGas adds to estimates.
func WithGasBuffer(buffer uint64) Option {
	return func(b *Builder) {
		b.gasBuffer = buffer
	}
}

// WithReceiptTimeout bounds WaitForReceipt.
func WithReceiptTimeout(timeout time.Duration) Option {
	return func(b *Builder) {
		b.receiptTimeout = timeout
	}
}

// WithReceiptOptions passes options to every receipt wait.
func WithReceiptOptions(opts ...ReceiptOption) Option {
	return func(b *Builder) {
		b.receiptOpts = append(b.receiptOpts, opts...)
	}
}

// NewBuilder creates a builder. caller may be nil for offline use.
func NewBuilder(logger zerolog.Logger, caller provider.Provider, opts ...Option) *Builder {
	b := &Builder{
		logger:         logger.With().Str("component", "txn-builder").Logger(),
		caller:         caller,
		gasBuffer:      DefaultGasBuffer,
		receiptTimeout: DefaultReceiptTimeout,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Online reports whether the builder has a caller.
func (b *Builder) Online() bool {
	return b.caller != nil
}

func (b *Builder) requireOnline(operation string) error {
	if b.caller == nil {
		return web3err.Value("%s requires a provider", operation)
	}
	return nil
}

// Fill resolves the absent fields of req.
func (b *Builder) Fill(ctx context.Context, req Request) (Request, error) {
	return FillDefaults(ctx, b.caller, req, b.strategy)
}

// Build fills, protects and signs req. It returns the encoded transaction and its hash.
func (b *Builder) Build(ctx context.Context, req Request, signer Signer) ([]byte, common.Hash, error) {
	filled, err := b.Fill(ctx, req)
	if err != nil {
		return nil, common.Hash{}, err
	}
	signable, err := ApplyReplayProtection(filled)
	if err != nil {
		return nil, common.Hash{}, err
	}
	raw, hash, err := Sign(signer, signable)
	if err != nil {
		return nil, common.Hash{}, err
	}

	b.logger.Debug().
		Str("hash", hash.Hex()).
		Uint64("nonce", signable.Nonce).
		Str("gas_price", signable.GasPrice.String()).
		Uint64("gas", signable.Gas).
		Msg("transaction signed")
	return raw, hash, nil
}

// SendRaw submits an encoded signed transaction and returns the hash the node reports.
func (b *Builder) SendRaw(ctx context.Context, raw []byte) (common.Hash, error) {
	if err := b.requireOnline(model.EthSendRawTransaction); err != nil {
		return common.Hash{}, err
	}
	var hash common.Hash
	if err := mustCall(ctx, b.caller, &hash, model.EthSendRawTransaction, hexutil.Bytes(raw)); err != nil {
		return common.Hash{}, err
	}
	b.logger.Info().Str("hash", hash.Hex()).Msg("transaction submitted")
	return hash, nil
}

// Send builds req with signer and submits it.
func (b *Builder) Send(ctx context.Context, req Request, signer Signer) (common.Hash, error) {
	if err := b.requireOnline("send"); err != nil {
		return common.Hash{}, err
	}
	raw, _, err := b.Build(ctx, req, signer)
	if err != nil {
		return common.Hash{}, err
	}
	return b.SendRaw(ctx, raw)
}

// WaitForReceipt waits for hash to be mined within the configured timeout.
func (b *Builder) WaitForReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	if err := b.requireOnline("receipt wait"); err != nil {
		return nil, err
	}
	receipt, err := WaitForReceipt(ctx, b.caller, hash, b.receiptTimeout, b.receiptOpts...)
	if err != nil {
		b.logger.Warn().Err(err).Str("hash", hash.Hex()).Msg("receipt wait failed")
		return nil, err
	}
	b.logger.Debug().
		Str("hash", hash.Hex()).
		Str("block", receipt.BlockNumber.String()).
		Uint64("status", receipt.Status).
		Msg("receipt received")
	return receipt, nil
}

// EstimateGas returns the buffered gas estimate of req.
func (b *Builder) EstimateGas(ctx context.Context, req Request) (uint64, error) {
	if err := b.requireOnline("gas estimate"); err != nil {
		return 0, err
	}
	return BufferedGasEstimate(ctx, b.caller, req, b.gasBuffer)
}

// PrepareReplacement fetches the pending transaction hash and amends changes to
// replace it. Fields absent from changes are taken from the pending transaction.
func (b *Builder) PrepareReplacement(ctx context.Context, hash common.Hash, changes Request) (Request, error) {
	if err := b.requireOnline("replacement"); err != nil {
		return Request{}, err
	}
	pending, err := GetTransaction(ctx, b.caller, hash)
	if err != nil {
		return Request{}, err
	}
	return PrepareReplacement(ctx, b.caller, b.strategy, pending, ReplacementBase(pending, changes))
}

// Replace signs and submits a replacement for the pending transaction hash.
func (b *Builder) Replace(ctx context.Context, hash common.Hash, changes Request, signer Signer) (common.Hash, error) {
	replacement, err := b.PrepareReplacement(ctx, hash, changes)
	if err != nil {
		return common.Hash{}, err
	}
	newHash, err := b.Send(ctx, replacement, signer)
	if err != nil {
		return common.Hash{}, err
	}
	b.logger.Info().
		Str("replaced", hash.Hex()).
		Str("hash", newHash.Hex()).
		Str("gas_price", replacement.GasPrice.String()).
		Msg("transaction replaced")
	return newHash, nil
}
