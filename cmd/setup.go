package cmd

import (
	"fmt"

	"go.uber.org/zap"

	"bridgectl/config"
	"bridgectl/pkg/bridgeapi"
	"bridgectl/pkg/claim"
	"bridgectl/pkg/flow"
	"bridgectl/pkg/history"
	"bridgectl/pkg/logger"
	"bridgectl/pkg/pricing"
	"bridgectl/pkg/quote"
	"bridgectl/pkg/registry"
	"bridgectl/pkg/screening"
	"bridgectl/pkg/selector"
	"bridgectl/pkg/sequencer"
	"bridgectl/pkg/types"
	"bridgectl/pkg/wallet"
)

// app bundles everything a command needs.
type app struct {
	cfg     *config.Config
	log     *zap.Logger
	reg     *registry.Registry
	orch    *flow.Orchestrator
	emitter *flow.ChannelEmitter
	wallet  *wallet.KeyedSession
}

// buildApp wires the orchestrator and a keyed wallet session from
// configuration.
func buildApp(kind types.WalletKind) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	log := logger.New(cfg.LogLevel, cfg.LogEncoding)

	reg, err := registry.New(cfg)
	if err != nil {
		return nil, err
	}

	bridge := bridgeapi.NewClient(cfg.BridgeAPIUrl, log.Named("bridgeapi"))
	hist := history.NewClient(cfg.HistoryAPIUrl, cfg.HistoryCacheTTL, log.Named("history"))
	screen := screening.NewClient(cfg.ScreeningAPIUrl, cfg.ScreeningFailOpen, log.Named("screening"))

	var pricer pricing.Converter
	if cfg.PricingAPIUrl != "" {
		pricer = pricing.NewClient(cfg.PricingAPIUrl, log.Named("pricing"))
	}

	sel := selector.New(reg, screen, log.Named("selector"))
	est := quote.NewEstimator(bridge, pricer, reg, log.Named("quote"))
	seq := sequencer.New(log.Named("sequencer"))
	resolver := claim.NewResolver(bridge, reg, cfg.WithdrawalDataFailOpen, log.Named("claim"))
	emitter := flow.NewChannelEmitter(16, log.Named("events"))

	orch := flow.NewOrchestrator(reg, sel, est, seq, resolver, hist, emitter,
		cfg.QuoteRefreshInterval, cfg.BalanceRefreshInterval, log.Named("flow"))

	ws, err := wallet.NewKeyedSession(cfg.PrivateKey, kind, reg, log.Named("wallet"))
	if err != nil {
		return nil, fmt.Errorf("wallet setup failed: %w", err)
	}

	return &app{
		cfg:     cfg,
		log:     log,
		reg:     reg,
		orch:    orch,
		emitter: emitter,
		wallet:  ws,
	}, nil
}

// close releases the app's connections.
func (a *app) close() {
	a.wallet.Close()
	_ = a.log.Sync()
}
