package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/btcconnect/connectkit/config"
	"github.com/btcconnect/connectkit/internal/core/application"
	"github.com/btcconnect/connectkit/internal/core/ports"
	"github.com/btcconnect/connectkit/internal/infrastructure/aaservice"
	"github.com/btcconnect/connectkit/internal/infrastructure/chainregistry"
	"github.com/btcconnect/connectkit/internal/infrastructure/chainrpc"
	"github.com/btcconnect/connectkit/internal/infrastructure/connector"
	"github.com/btcconnect/connectkit/internal/infrastructure/evmsigner"
	"github.com/btcconnect/connectkit/internal/infrastructure/pubsub"
	"github.com/btcconnect/connectkit/internal/infrastructure/walletbridge"
	"github.com/btcconnect/connectkit/pkg/stats"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	webhookpubsub "github.com/btcconnect/connectkit/internal/infrastructure/pubsub/webhook"
	dbbadger "github.com/btcconnect/connectkit/internal/infrastructure/storage/db/badger"
	"github.com/btcconnect/connectkit/internal/infrastructure/storage/db/inmemory"
	httpinterface "github.com/btcconnect/connectkit/internal/interfaces/http"
)

func main() {
	if err := config.InitConfig(); err != nil {
		log.WithError(err).Fatal("failed to init config")
	}
	log.SetLevel(log.Level(config.GetInt(config.LogLevelKey)))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	if config.GetBool(config.EnableProfilerKey) {
		dumpPath := filepath.Join(
			config.GetDatadir(), config.ProfilerLocation, "metrics",
		)
		stats.EnableMemoryStatistics(
			ctx, config.GetSeconds(config.StatsIntervalKey), registry, dumpPath,
		)
	}

	store, err := newStateStore()
	if err != nil {
		log.WithError(err).Fatal("failed to open state store")
	}
	defer store.Close()

	chains, err := chainregistry.LoadRegistry(config.GetString(config.ChainsFileKey))
	if err != nil {
		log.WithError(err).Fatal("failed to load chain registry")
	}
	contracts, err := chainregistry.LoadAccountContracts(
		config.GetString(config.AccountContractsFileKey),
	)
	if err != nil {
		log.WithError(err).Fatal("failed to load account contracts")
	}
	if err := chainregistry.ValidateAccountContracts(chains, contracts); err != nil {
		log.WithError(err).Fatal("invalid account contracts")
	}

	dialer, err := chainrpc.NewDialer(chainrpc.DialerOpts{
		Environment: config.GetString(config.EnvironmentKey),
		RPCDomain:   config.GetString(config.RPCURLKey),
		ProjectID:   config.GetString(config.ProjectIDKey),
		ClientKey:   config.GetString(config.ClientKeyKey),
		Timeout:     config.GetSeconds(config.RPCTimeoutKey),
		Registry:    chains,
	})
	if err != nil {
		log.WithError(err).Fatal("failed to init rpc dialer")
	}
	aaSvc, err := aaservice.NewService(
		dialer, config.GetInt(config.RPCRequestsPerSecondKey),
	)
	if err != nil {
		log.WithError(err).Fatal("failed to init aa service")
	}
	if closer, ok := aaSvc.(interface{ Close() }); ok {
		defer closer.Close()
	}

	bridge := walletbridge.NewBridge(config.GetSeconds(config.BridgeTimeoutKey))
	defer bridge.Close()

	connectors, err := connector.NewDefaultConnectors(
		bridge, bridge, store, config.GetString(config.PairedNetworkKey),
	)
	if err != nil {
		log.WithError(err).Fatal("failed to init connectors")
	}

	bus := pubsub.NewService(pubsub.DefaultMaxListeners)
	gate := application.NewConfirmationGate(bus, store)
	accounts := application.NewSmartAccountRegistry(
		evmsigner.NewFactory(store, dialer), aaSvc, store, contracts,
	)
	connectSvc, err := application.NewConnectService(
		connectors, contracts, chains, store, bus, accounts,
	)
	if err != nil {
		log.WithError(err).Fatal("failed to init connect service")
	}
	defer connectSvc.Close()

	if err := connectSvc.Restore(
		ctx, config.GetBool(config.AutoConnectKey),
	); err != nil {
		log.WithError(err).Warn("failed to restore last connection")
	}

	evmProvider := application.NewEVMProvider(connectSvc, gate)
	signSvc := application.NewSignService(bus, gate, connectSvc)
	webhooks, err := webhookpubsub.NewWebhookPubSubService(
		bus, config.GetSeconds(config.WebhookTimeoutKey),
	)
	if err != nil {
		log.WithError(err).Fatal("failed to init webhook service")
	}

	svc, err := httpinterface.NewService(httpinterface.ServiceOpts{
		Address:      config.GetListeningAddress(),
		ConnectSvc:   connectSvc,
		EVMProvider:  evmProvider,
		SignSvc:      signSvc,
		EventBus:     bus,
		WalletBridge: bridge,
		Webhooks:     webhooks,
		Registry:     registry,
	})
	if err != nil {
		log.WithError(err).Fatal("failed to init http interface")
	}

	log.WithFields(log.Fields{
		"project_id":  config.GetString(config.ProjectIDKey),
		"app_id":      config.GetString(config.AppIDKey),
		"environment": config.GetString(config.EnvironmentKey),
		"db_type":     config.GetString(config.DBTypeKey),
	}).Info("starting daemon")

	g, gctx := errgroup.WithContext(ctx)
	g.Go(svc.Start)
	g.Go(func() error {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)
		defer signal.Stop(sigChan)

		select {
		case <-sigChan:
		case <-gctx.Done():
		}
		svc.Stop()
		cancel()
		return nil
	})

	if err := g.Wait(); err != nil {
		log.WithError(err).Error("daemon stopped with error")
	}
	log.Info("shutdown")
}

func newStateStore() (ports.StateStore, error) {
	if config.GetString(config.DBTypeKey) == config.DBInMemory {
		return inmemory.NewStateStore(), nil
	}
	logger := dbbadger.NewLogger(log.WithField("db", "state"))
	return dbbadger.NewStateStore(config.GetDbDir(), logger)
}
