package main

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/gagliardetto/solana-go"
	"github.com/spf13/cobra"

	"github.com/emberlabs/embermine/internal/chain"
	"github.com/emberlabs/embermine/internal/config"
	"github.com/emberlabs/embermine/internal/metrics"
	"github.com/emberlabs/embermine/internal/program"
	"github.com/emberlabs/embermine/internal/state"
	"github.com/emberlabs/embermine/internal/submit"
	"github.com/emberlabs/embermine/internal/txbuild"
	"github.com/emberlabs/embermine/internal/wallet"
	"github.com/emberlabs/embermine/pkg/log"
)

// Global flag names. Each one overrides the corresponding environment
// variable when set.
const (
	flagRPC         = "rpc"
	flagKeypair     = "keypair"
	flagThreads     = "threads"
	flagPriorityFee = "priority-fee"
	flagLogLevel    = "log-level"
)

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "embermine",
		Short: "Proof-of-work miner for the EMBER token on Solana",
		Long: `embermine searches for nonces whose keccak-256 digest meets the current
board difficulty and submits winning solutions to the EMBER program.

Configuration is read from environment variables; the global flags below
override them. Logs go to stderr, command output goes to stdout.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().String(flagRPC, "", "Solana RPC endpoint (overrides RPC_ENDPOINT)")
	cmd.PersistentFlags().String(flagKeypair, "", "path to the signer keypair file (overrides KEYPAIR_PATH)")
	cmd.PersistentFlags().Int(flagThreads, 0, "number of concurrent search workers (overrides WORKER_COUNT)")
	cmd.PersistentFlags().Uint64(flagPriorityFee, 0, "priority fee ceiling in micro-lamports per compute unit (overrides MAX_PRIORITY_FEE)")
	cmd.PersistentFlags().String(flagLogLevel, "", "log level: debug, info, warn or error (overrides LOG_LEVEL)")

	cmd.AddCommand(
		newMineCommand(),
		newClaimCommand(),
		newBalanceCommand(),
		newRewardsCommand(),
		newRegisterCommand(),
	)

	return cmd
}

// runtime bundles the collaborators every subcommand wires together.
type runtime struct {
	cfg      *config.Config
	logger   *log.Logger
	client   chain.Client
	tracker  *state.Tracker
	builder  *txbuild.Builder
	recorder metrics.Recorder
}

// newRuntime loads configuration, opens the RPC connection and constructs
// the shared collaborators. Failures here are the only fatal ones: an
// unreadable keypair, invalid configuration or an unreachable RPC node.
func newRuntime(cmd *cobra.Command) (*runtime, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	if err := applyFlagOverrides(cmd, cfg); err != nil {
		return nil, err
	}

	logger := log.New(cfg.ServiceName, cfg.Version, cfg.LogLevel, cfg.LogFormat)

	signer, err := wallet.LoadKeypair(cfg.KeypairPath)
	if err != nil {
		return nil, err
	}

	client := chain.NewRPCClient(cfg.RPCEndpoint)

	pingCtx, cancel := context.WithTimeout(cmd.Context(), cfg.RPCTimeout)
	defer cancel()
	if err := client.Ping(pingCtx); err != nil {
		_ = client.Close()
		return nil, err
	}

	builder := txbuild.NewBuilder(signer, cfg.MaxPriorityFee)

	tracker, err := state.NewTracker(client, builder.Authority(), cfg.MaxStateStaleness, logger)
	if err != nil {
		_ = client.Close()
		return nil, err
	}

	recorder, err := newRecorder(cfg, builder.Authority())
	if err != nil {
		_ = client.Close()
		return nil, err
	}

	logger.Info("runtime ready",
		"rpc_endpoint", cfg.RPCEndpoint,
		"wallet", builder.Authority().String(),
	)

	return &runtime{
		cfg:      cfg,
		logger:   logger,
		client:   client,
		tracker:  tracker,
		builder:  builder,
		recorder: recorder,
	}, nil
}

// Close flushes metrics and releases the RPC transport.
func (r *runtime) Close() {
	r.recorder.Close()
	if err := r.client.Close(); err != nil {
		r.logger.WithError(err).Warn("failed to close RPC client")
	}
}

// pipelineConfig maps the submission settings out of the configuration.
func (r *runtime) pipelineConfig() *submit.Config {
	return &submit.Config{
		RetryCap:        r.cfg.SubmitRetryCap,
		RetryBaseDelay:  r.cfg.SubmitRetryBaseDelay,
		ConfirmInterval: r.cfg.ConfirmPollInterval,
		ConfirmTimeout:  r.cfg.ConfirmTimeout,
	}
}

// feeHint fetches a priority fee estimate for the given writable accounts.
// Fee selection is best-effort: on failure the transaction rides without a
// priority fee rather than not riding at all.
func (r *runtime) feeHint(ctx context.Context, writable []solana.PublicKey) chain.FeeEstimate {
	estimate, err := r.client.FetchFeeHint(ctx, writable)
	if err != nil {
		r.logger.WithError(err).Warn("fee hint unavailable, submitting without a priority fee")
		return chain.FeeEstimate{}
	}
	return *estimate
}

// applyFlagOverrides copies set global flags over the environment
// configuration and re-validates the result.
func applyFlagOverrides(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()

	if flags.Changed(flagRPC) {
		cfg.RPCEndpoint, _ = flags.GetString(flagRPC)
	}
	if flags.Changed(flagKeypair) {
		cfg.KeypairPath, _ = flags.GetString(flagKeypair)
	}
	if flags.Changed(flagThreads) {
		cfg.WorkerCount, _ = flags.GetInt(flagThreads)
	}
	if flags.Changed(flagPriorityFee) {
		cfg.MaxPriorityFee, _ = flags.GetUint64(flagPriorityFee)
	}
	if flags.Changed(flagLogLevel) {
		cfg.LogLevel, _ = flags.GetString(flagLogLevel)
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("flag overrides produced an invalid configuration: %w", err)
	}
	return nil
}

// newRecorder selects the metrics backend: influx when configured,
// otherwise a no-op.
func newRecorder(cfg *config.Config, authority solana.PublicKey) (metrics.Recorder, error) {
	if cfg.InfluxURL == "" {
		return metrics.NewNoopRecorder(), nil
	}
	return metrics.NewInfluxRecorder(&metrics.InfluxConfig{
		URL:    cfg.InfluxURL,
		Token:  cfg.InfluxToken,
		Org:    cfg.InfluxOrg,
		Bucket: cfg.InfluxBucket,
		Wallet: authority.String(),
	})
}

const (
	emberBaseUnits = uint64(1_000_000_000) // 10^program.TokenDecimals
	solDecimals    = 9

	// lowBalanceLamports is 0.005 SOL. Mining fees drain small wallets fast,
	// so mine warns below this.
	lowBalanceLamports = uint64(5_000_000)
)

// formatTokenAmount renders base units as a decimal EMBER amount.
func formatTokenAmount(base uint64) string {
	return formatUnits(base, program.TokenDecimals)
}

// formatSolAmount renders lamports as a decimal SOL amount.
func formatSolAmount(lamports uint64) string {
	return formatUnits(lamports, solDecimals)
}

func formatUnits(base uint64, decimals int) string {
	scale := uint64(1)
	for i := 0; i < decimals; i++ {
		scale *= 10
	}

	whole := base / scale
	frac := base % scale
	if frac == 0 {
		return strconv.FormatUint(whole, 10)
	}

	digits := strconv.FormatUint(frac, 10)
	padded := strings.Repeat("0", decimals-len(digits)) + digits
	return strconv.FormatUint(whole, 10) + "." + strings.TrimRight(padded, "0")
}

// parseTokenAmount converts a decimal EMBER amount to base units.
func parseTokenAmount(input string) (uint64, error) {
	whole, frac, _ := strings.Cut(strings.TrimSpace(input), ".")
	if whole == "" && frac == "" {
		return 0, fmt.Errorf("empty amount")
	}
	if len(frac) > program.TokenDecimals {
		return 0, fmt.Errorf("amount %q exceeds %d decimal places", input, program.TokenDecimals)
	}

	units := uint64(0)
	if whole != "" {
		parsed, err := strconv.ParseUint(whole, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid amount %q: %w", input, err)
		}
		if parsed > math.MaxUint64/emberBaseUnits {
			return 0, fmt.Errorf("amount %q out of range", input)
		}
		units = parsed * emberBaseUnits
	}

	if frac != "" {
		padded := frac + strings.Repeat("0", program.TokenDecimals-len(frac))
		parsed, err := strconv.ParseUint(padded, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid amount %q: %w", input, err)
		}
		if units > math.MaxUint64-parsed {
			return 0, fmt.Errorf("amount %q out of range", input)
		}
		units += parsed
	}

	return units, nil
}
