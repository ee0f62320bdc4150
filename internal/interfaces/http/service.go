package httpinterface

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/btcconnect/connectkit/internal/core/application"
	"github.com/btcconnect/connectkit/internal/core/ports"
	webhookpubsub "github.com/btcconnect/connectkit/internal/infrastructure/pubsub/webhook"
	"github.com/btcconnect/connectkit/internal/interfaces"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
)

const shutdownTimeout = 5 * time.Second

type ServiceOpts struct {
	Address string

	ConnectSvc  application.ConnectService
	EVMProvider application.EVMProvider
	SignSvc     application.SignService
	EventBus    ports.EventBus
	// WalletBridge is served at /v1/bridge if given.
	WalletBridge http.Handler
	// Webhooks are managed at /v1/webhooks if given.
	Webhooks webhookpubsub.Service
	// Registry collects the operation metrics served at /metrics.
	Registry *prometheus.Registry
}

func (o ServiceOpts) validate() error {
	if o.Address == "" {
		return fmt.Errorf("missing listening address")
	}
	if o.ConnectSvc == nil {
		return fmt.Errorf("missing connect service")
	}
	if o.EVMProvider == nil {
		return fmt.Errorf("missing evm provider")
	}
	if o.SignSvc == nil {
		return fmt.Errorf("missing sign service")
	}
	if o.EventBus == nil {
		return fmt.Errorf("missing event bus")
	}
	if o.Registry == nil {
		return fmt.Errorf("missing metrics registry")
	}
	return nil
}

type service struct {
	opts     ServiceOpts
	handler  *handler
	webhooks *webhookHandler
	stream   *confirmationStream
	metrics  *operationMetrics
	server   *http.Server
}

func NewService(opts ServiceOpts) (interfaces.Service, error) {
	if err := opts.validate(); err != nil {
		return nil, fmt.Errorf("invalid opts: %s", err)
	}

	metrics, err := newOperationMetrics(opts.Registry)
	if err != nil {
		return nil, err
	}

	svc := &service{
		opts: opts,
		handler: &handler{
			connectSvc:  opts.ConnectSvc,
			evmProvider: opts.EVMProvider,
			signSvc:     opts.SignSvc,
		},
		stream:  newConfirmationStream(opts.SignSvc, opts.EventBus),
		metrics: metrics,
	}
	if opts.Webhooks != nil {
		svc.webhooks = &webhookHandler{opts.Webhooks}
	}
	svc.server = &http.Server{
		Addr:              opts.Address,
		Handler:           svc.router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return svc, nil
}

func (s *service) Start() error {
	listener, err := net.Listen("tcp", s.opts.Address)
	if err != nil {
		return err
	}

	s.metrics.subscribe(s.opts.EventBus)
	s.opts.SignSvc.Start()
	if s.opts.Webhooks != nil {
		s.opts.Webhooks.Start()
	}

	go func() {
		if err := s.server.Serve(listener); err != nil &&
			!errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Error("http interface stopped unexpectedly")
		}
	}()

	log.Infof("http interface is listening on %s", s.opts.Address)
	return nil
}

func (s *service) Stop() {
	s.opts.SignSvc.Stop()
	s.metrics.unsubscribe(s.opts.EventBus)

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.server.Shutdown(ctx); err != nil {
		log.WithError(err).Warn("failed to gracefully stop http interface")
	}
	s.stream.close()
	if s.opts.Webhooks != nil {
		s.opts.Webhooks.Stop()
	}
	log.Debug("http interface stopped")
}

func (s *service) router() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger())

	router.GET("/metrics", gin.WrapH(
		promhttp.HandlerFor(s.opts.Registry, promhttp.HandlerOpts{}),
	))

	v1 := router.Group("/v1")
	{
		v1.GET("/connectors", s.handler.listConnectors)
		v1.POST("/connect", s.handler.connect)
		v1.POST("/disconnect", s.handler.disconnect)
		v1.GET("/accounts", s.handler.getAccounts)
		v1.GET("/account-contracts", s.handler.listAccountContracts)
		v1.PUT("/account-contract", s.handler.selectAccountContract)

		btc := v1.Group("/btc")
		btc.GET("/public-key", s.handler.getPublicKey)
		btc.POST("/sign-message", s.handler.signMessage)
		btc.GET("/network", s.handler.getNetwork)
		btc.PUT("/network", s.handler.switchNetwork)
		btc.POST("/send-bitcoin", s.handler.sendBitcoin)
		btc.POST("/send-inscription", s.handler.sendInscription)

		evm := v1.Group("/evm")
		evm.POST("/rpc", s.handler.rpc)
		evm.GET("/smart-account", s.handler.getSmartAccountInfo)
		evm.POST("/fee-quotes", s.handler.getFeeQuotes)
		evm.POST("/user-ops/build", s.handler.buildUserOp)
		evm.POST("/user-ops", s.handler.sendUserOp)
		evm.PUT("/chain", s.handler.switchChain)

		confirmations := v1.Group("/confirmations")
		confirmations.GET("", s.handler.listSessions)
		confirmations.GET("/stream", s.stream.serve)
		confirmations.GET("/:id", s.handler.getSession)
		confirmations.POST("/:id/fee-quote", s.handler.selectFeeQuote)
		confirmations.POST("/:id/not-remind", s.handler.setNotRemind)
		confirmations.POST("/:id/confirm", s.handler.confirm)
		confirmations.POST("/:id/reject", s.handler.reject)

		if s.opts.WalletBridge != nil {
			v1.GET("/bridge", gin.WrapH(s.opts.WalletBridge))
		}

		if s.webhooks != nil {
			webhooks := v1.Group("/webhooks")
			webhooks.GET("", s.webhooks.listWebhooks)
			webhooks.POST("", s.webhooks.addWebhook)
			webhooks.DELETE("/:id", s.webhooks.removeWebhook)
		}
	}
	return router
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.WithFields(log.Fields{
			"method":  c.Request.Method,
			"path":    c.Request.URL.Path,
			"status":  c.Writer.Status(),
			"elapsed": time.Since(start).String(),
		}).Debug("http request")
	}
}
