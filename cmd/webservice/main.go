package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	_ "time/tzdata"

	"github.com/go-co-op/gocron/v2"
	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	"github.com/nexcommerce/payment-service/config"
	"github.com/nexcommerce/payment-service/internal/controller"
	"github.com/nexcommerce/payment-service/internal/gateway/coinpayments"
	circuitbreaker "github.com/nexcommerce/payment-service/internal/infrastructure/circuit-breaker"
	"github.com/nexcommerce/payment-service/internal/infrastructure/database/postgres"
	"github.com/nexcommerce/payment-service/internal/infrastructure/message-queue/kafka"
	paymentgateway "github.com/nexcommerce/payment-service/internal/infrastructure/payment-gateway"
	"github.com/nexcommerce/payment-service/internal/infrastructure/tracing"
	localmiddleware "github.com/nexcommerce/payment-service/internal/middleware"
	"github.com/nexcommerce/payment-service/internal/repository"
	"github.com/nexcommerce/payment-service/internal/service"
	"github.com/nexcommerce/payment-service/pkg/errs"
	"github.com/nexcommerce/payment-service/pkg/response"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	kafkago "github.com/segmentio/kafka-go"
)

func main() {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	log.Logger = logger

	config := config.CreateNewConfig()

	db, err := postgres.GetDBInstance(config.PostgreSQLConfig)
	if err != nil {
		panic(err)
	}

	traceProvider, err := tracing.InitTracing(config.TracingConfig.CollectorHost, "payment-service")
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize tracing")
	}

	defer func() {
		if err := traceProvider.Shutdown(context.Background()); err != nil {
			fmt.Println(err)
		}
	}()

	tracer := traceProvider.Tracer("payment-service")

	paymentRepo := repository.CreatePaymentRepository(db)

	settingsBlob, err := paymentRepo.GetGatewaySettings(context.Background(), "coinpayments")
	if err != nil && !errors.Is(err, errs.ErrNotFound) {
		log.Fatal().Err(err).Msg("Failed to load gateway settings")
	}

	settings, err := coinpayments.ParseSettings(settingsBlob)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to parse gateway settings")
	}

	cb := circuitbreaker.CreateCircuitBreaker("coinpayments")
	clientFactory := func(publicKey, privateKey string) coinpayments.ProviderClient {
		return paymentgateway.CreateCoinPaymentsClient(publicKey, privateKey, config.CoinPaymentsConfig.APIBaseURL, cb)
	}

	gw := coinpayments.CreateGateway(settings, config.BaseURL, clientFactory)

	var kafkaProducer *kafkago.Conn
	if config.KafkaConfig.BrokerAddress != "" {
		kafkaProducer = kafka.CreateKafkaProducer(config)
		defer kafkaProducer.Close()
	}

	paymentSvc := service.CreatePaymentService(paymentRepo, gw, kafkaProducer, config)

	e := echo.New()
	g := e.Group("/api/v1")

	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx, span := tracer.Start(c.Request().Context(), fmt.Sprintf("[%s] %s", c.Request().Method, c.Path()))
			defer span.End()

			req := c.Request()
			c.SetRequest(req.WithContext(ctx))

			return next(c)
		}
	})

	// Used empty string so that metrics are not prefixed with the service name making it easier to aggregate across services
	e.Use(echoprometheus.NewMiddleware(""))
	go func() {
		metrics := echo.New()
		metrics.GET("/metrics", echoprometheus.NewHandler())
		if err := metrics.Start(fmt.Sprintf(":%s", config.MetricsPort)); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Failed to start metrics server")
		}
	}()

	e.Use(localmiddleware.Logger)

	g.GET("/ping", func(c echo.Context) error {
		return response.WriteSuccessResponse(c, "pong", nil)
	})

	isAdmin := localmiddleware.Admin(config.JWTSecret)
	controller.CreatePaymentController(g, paymentSvc, isAdmin)

	s, err := gocron.NewScheduler()
	if err != nil {
		panic(err)
	}

	_, err = s.NewJob(
		gocron.DurationJob(
			time.Minute,
		),
		gocron.NewTask(
			paymentSvc.ExpirePendingTransactions,
		),
	)
	if err != nil {
		panic(err)
	}

	s.Start()

	e.Logger.Fatal(e.Start(fmt.Sprintf(":%s", config.ServicePort)))
}
