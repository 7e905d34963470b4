package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/inspirehep/inspire-matcher/config"
	"github.com/inspirehep/inspire-matcher/pkg/kafka"
	"github.com/inspirehep/inspire-matcher/pkg/middleware"
	"github.com/inspirehep/inspire-matcher/pkg/processor"
)

func newWorkerCmd(version string) *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Match records consumed from Kafka and publish match events",
		Long: `Consumes {"config": name, "record": {...}} messages, matches each record,
stores the results when the database is enabled, and publishes a
match.found or match.none event. Health and metrics are served on PORT.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			a, err := newApp(cfg)
			if err != nil {
				return err
			}
			defer a.stop(context.Background())

			if err := a.start(ctx); err != nil {
				return err
			}

			producer := kafka.NewProducer(kafka.ProducerConfig{
				Brokers:      cfg.KafkaBrokers,
				Topic:        cfg.KafkaOutputTopic,
				BatchSize:    cfg.KafkaBatchSize,
				BatchTimeout: time.Duration(cfg.KafkaBatchTimeout) * time.Millisecond,
				RequiredAcks: cfg.KafkaRequiredAcks,
				Compression:  cfg.KafkaCompression,
			}, a.logger)
			defer producer.Close()

			var results processor.ResultStore
			if a.results != nil {
				results = a.results
			}
			proc := processor.NewProcessor(a.logger, a.engine, a.configs, results, producer)

			workers := max(cfg.WorkerCount, 1)
			consumers := make([]*kafka.Consumer, 0, workers)
			for range workers {
				consumers = append(consumers, kafka.NewConsumer(kafka.ConsumerConfig{
					Brokers:       cfg.KafkaBrokers,
					Topic:         cfg.KafkaInputTopic,
					ConsumerGroup: cfg.KafkaConsumerGroup,
				}, a.logger, proc.HandleMessage))
			}

			checker := a.healthChecker(version)
			for i, consumer := range consumers {
				checker.AddCheck(fmt.Sprintf("consumer-%d", i), consumer)
			}
			e := echo.New()
			e.HideBanner = true
			e.HidePort = true
			e.HTTPErrorHandler = middleware.Error(a.logger)
			e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
			checker.RegisterRoutes(e)
			server := newHTTPServer(cfg, e)

			g, gctx := errgroup.WithContext(ctx)
			for _, consumer := range consumers {
				if err := consumer.Start(gctx); err != nil {
					return err
				}
			}
			checker.SetReady(true)

			g.Go(func() error {
				return runServer(gctx, server)
			})
			g.Go(func() error {
				<-gctx.Done()
				for _, consumer := range consumers {
					if err := consumer.Stop(); err != nil {
						a.logger.WithError(err).Error("Failed to stop consumer")
					}
				}
				return nil
			})

			a.logger.WithFields(map[string]any{
				"topic":   cfg.KafkaInputTopic,
				"workers": workers,
			}).Info("Matcher worker started")

			return g.Wait()
		},
	}
}
