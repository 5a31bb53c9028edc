package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/thep2p/go-web3-core/internal/client"
	"github.com/thep2p/go-web3-core/internal/filter"
	"github.com/thep2p/go-web3-core/internal/txn"
	"github.com/thep2p/go-web3-core/internal/utils"
	"github.com/urfave/cli/v2"
)

const (
	kindFlag        = "kind"
	addressFlag     = "address"
	topicFlag       = "topic"
	metricsAddrFlag = "metrics-addr"

	metricsShutdownTimeout = 5 * time.Second
)

func keyFlagDef() cli.Flag {
	return &cli.StringFlag{
		Name:     keyFlag,
		Usage:    "hex-encoded private key signing the transaction",
		EnvVars:  []string{"WEB3_PRIVATE_KEY"},
		Required: true,
	}
}

func txFlagDef(usage string) cli.Flag {
	return &cli.StringFlag{Name: txFlag, Usage: usage}
}

func hashFlagDef() cli.Flag {
	return &cli.StringFlag{Name: hashFlag, Usage: "transaction hash", Required: true}
}

func parseHash(c *cli.Context) (common.Hash, error) {
	s := c.String(hashFlag)
	b, err := hexutil.Decode(s)
	if err != nil || len(b) != common.HashLength {
		return common.Hash{}, fmt.Errorf("invalid transaction hash %q", s)
	}
	return common.BytesToHash(b), nil
}

func encodeCommand() *cli.Command {
	return &cli.Command{
		Name:  "encode",
		Usage: "sign a fully specified transaction offline and print it",
		Flags: []cli.Flag{keyFlagDef(), txFlagDef("transaction as JSON; every field but from is required")},
		Action: func(c *cli.Context) error {
			logger, err := newLogger(c)
			if err != nil {
				return err
			}
			signer, err := keySigner(c)
			if err != nil {
				return err
			}
			req, err := parseRequest(c)
			if err != nil {
				return err
			}

			raw, hash, err := txn.NewBuilder(logger, nil).Build(c.Context, req, signer)
			if err != nil {
				return err
			}
			return utils.WriteJSONLine(c.App.Writer, map[string]string{
				"raw":  utils.ByteToHex(raw),
				"hash": hash.Hex(),
				"from": signer.Address().Hex(),
			})
		},
	}
}

func estimateCommand() *cli.Command {
	return &cli.Command{
		Name:  "estimate",
		Usage: "print the buffered gas estimate of a transaction",
		Flags: []cli.Flag{txFlagDef("transaction as JSON")},
		Action: func(c *cli.Context) error {
			return withSession(c, func(logger zerolog.Logger, session *client.Client) error {
				req, err := parseRequest(c)
				if err != nil {
					return err
				}
				gas, err := session.Builder().EstimateGas(c.Context, req)
				if err != nil {
					return err
				}
				return utils.WriteJSONLine(c.App.Writer, map[string]uint64{"gas": gas})
			})
		},
	}
}

func receiptCommand() *cli.Command {
	return &cli.Command{
		Name:  "receipt",
		Usage: "wait for a transaction to be mined and print its receipt",
		Flags: []cli.Flag{hashFlagDef()},
		Action: func(c *cli.Context) error {
			return withSession(c, func(logger zerolog.Logger, session *client.Client) error {
				hash, err := parseHash(c)
				if err != nil {
					return err
				}
				receipt, err := session.Builder().WaitForReceipt(c.Context, hash)
				if err != nil {
					return err
				}
				return utils.WriteJSONLine(c.App.Writer, receipt)
			})
		},
	}
}

func replaceCommand() *cli.Command {
	return &cli.Command{
		Name:  "replace",
		Usage: "replace a pending transaction, by default with the minimum gas price bump",
		Flags: []cli.Flag{hashFlagDef(), keyFlagDef(), txFlagDef("fields to change as JSON")},
		Action: func(c *cli.Context) error {
			return withSession(c, func(logger zerolog.Logger, session *client.Client) error {
				hash, err := parseHash(c)
				if err != nil {
					return err
				}
				signer, err := keySigner(c)
				if err != nil {
					return err
				}
				changes, err := parseRequest(c)
				if err != nil {
					return err
				}
				replacement, err := session.Builder().Replace(c.Context, hash, changes, signer)
				if err != nil {
					return err
				}
				return utils.WriteJSONLine(c.App.Writer, map[string]string{
					"replaced": hash.Hex(),
					"hash":     replacement.Hex(),
				})
			})
		},
	}
}

func watchCommand() *cli.Command {
	return &cli.Command{
		Name:  "watch",
		Usage: "print new blocks, pending transactions or logs until interrupted",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: kindFlag, Usage: "block, pending or log", Value: "block"},
			&cli.StringSliceFlag{Name: addressFlag, Usage: "log emitter address (repeatable)"},
			&cli.StringSliceFlag{Name: topicFlag, Usage: "first log topic alternatives (repeatable)"},
			&cli.StringFlag{Name: metricsAddrFlag, Usage: "serve Prometheus metrics on this address"},
		},
		Action: func(c *cli.Context) error {
			if addr := c.String(metricsAddrFlag); addr != "" {
				logger, err := newLogger(c)
				if err != nil {
					return err
				}
				bound, stopMetrics, err := serveMetrics(logger, addr, prometheus.DefaultGatherer)
				if err != nil {
					return err
				}
				defer stopMetrics()
				logger.Info().Stringer("addr", bound).Msg("serving metrics")
			}
			return withSession(c, func(logger zerolog.Logger, session *client.Client) error {
				f, err := installFilter(c, session.Filters())
				if err != nil {
					return err
				}
				return watch(c, logger, f, session.WatchOptions()...)
			})
		},
	}
}

// withSession opens a session for the duration of run.
func withSession(c *cli.Context, run func(zerolog.Logger, *client.Client) error) error {
	logger, err := newLogger(c)
	if err != nil {
		return err
	}
	session, err := openSession(c, logger)
	if err != nil {
		return err
	}
	defer session.Close()
	return run(logger, session)
}

func installFilter(c *cli.Context, engine *filter.Engine) (*filter.Filter, error) {
	switch kind := c.String(kindFlag); kind {
	case "block":
		return engine.NewBlockFilter(c.Context)
	case "pending":
		return engine.NewPendingTransactionFilter(c.Context)
	case "log":
		query := ethereum.FilterQuery{}
		for _, a := range c.StringSlice(addressFlag) {
			if !common.IsHexAddress(a) {
				return nil, fmt.Errorf("invalid address %q", a)
			}
			query.Addresses = append(query.Addresses, common.HexToAddress(a))
		}
		var first []common.Hash
		for _, topic := range c.StringSlice(topicFlag) {
			b, err := hexutil.Decode(topic)
			if err != nil || len(b) != common.HashLength {
				return nil, fmt.Errorf("invalid topic %q", topic)
			}
			first = append(first, common.BytesToHash(b))
		}
		if len(first) > 0 {
			query.Topics = [][]common.Hash{first}
		}
		return engine.NewLogFilter(c.Context, query)
	default:
		return nil, fmt.Errorf("unknown filter kind %q", kind)
	}
}

// watch prints every delivered entry as a JSON line until the command context ends.
func watch(c *cli.Context, logger zerolog.Logger, f *filter.Filter, opts ...filter.WatchOption) error {
	sub, err := f.Watch(c.Context, func(entries []filter.Entry) {
		for _, e := range entries {
			var out any = e.Hash
			if e.Log != nil {
				out = e.Log
			}
			if err := utils.WriteJSONLine(c.App.Writer, out); err != nil {
				logger.Error().Err(err).Msg("could not print entry")
			}
		}
	}, opts...)
	if err != nil {
		return err
	}
	logger.Info().Str("filter_id", f.ID()).Stringer("kind", f.Kind()).Msg("watching; interrupt to stop")

	<-sub.Done()
	return sub.Err()
}

// serveMetrics exposes gatherer on addr under /metrics and returns the bound
// address. The returned function shuts the server down.
func serveMetrics(logger zerolog.Logger, addr string, gatherer prometheus.Gatherer) (net.Addr, func(), error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, nil, fmt.Errorf("listen on %s: %w", addr, err)
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	server := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("metrics server failed")
		}
	}()

	return listener.Addr(), func() {
		ctx, cancel := context.WithTimeout(context.Background(), metricsShutdownTimeout)
		defer cancel()
		_ = server.Shutdown(ctx)
	}, nil
}

