package main

import (
	"context"
	"flag"
	"log"
	"net"
	"net/http"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"clob/api/grpcserver"
	"clob/api/httpserver"
	"clob/config"
	"clob/domain/orderbook"
	"clob/infra/kafka"
	"clob/infra/memory"
	"clob/infra/metrics"
	entrywal "clob/infra/wal/entry"
	exitwal "clob/infra/wal/exit"
	"clob/infra/wire"
	"clob/jobs/broadcaster"
	"clob/jobs/quotes"
	"clob/service"
)

func main() {
	path := flag.String("config", "clob.yaml", "path to the YAML config")
	flag.Parse()

	cfg, err := config.Load(*path)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// ---------------- Metrics ----------------

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	// ---------------- Exit WAL ----------------

	exitWAL, err := exitwal.Open(cfg.Outbox.Dir)
	if err != nil {
		log.Fatalf("exit WAL init failed: %v", err)
	}
	defer exitWAL.Close()

	// ---------------- Kafka ----------------

	quoteProducer := kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.QuoteTopic)
	defer quoteProducer.Close()
	publisher := quotes.NewPublisher(quoteProducer, cfg.QuoteInterval, m)

	// ---------------- Instruments ----------------

	router := service.NewRouter()
	for _, in := range cfg.Instruments {
		dir := filepath.Join(cfg.Journal.Dir, in.Symbol)
		journal, err := entrywal.Open(entrywal.Config{
			Dir:             dir,
			SegmentSize:     cfg.Journal.SegmentSize,
			SyncEveryAppend: cfg.Journal.Sync,
		})
		if err != nil {
			log.Fatalf("entry WAL init failed for %s: %v", in.Symbol, err)
		}
		defer journal.Close()

		ring, err := memory.NewRing[wire.Quote](uint64(cfg.Engine.QuoteRing))
		if err != nil {
			log.Fatalf("quote ring for %s: %v", in.Symbol, err)
		}
		publisher.Register(in.Symbol, ring)

		svc := service.NewOrderService(service.Options{
			Symbol: in.Symbol,
			Engine: orderbook.Config{
				Capacity:     cfg.Engine.Capacity,
				TradeLogSize: cfg.Engine.TradeLogSize,
			},
			Journal:   journal,
			Outbox:    exitWAL,
			Quotes:    ring,
			Metrics:   m,
			QueueSize: cfg.Engine.QueueSize,
		})

		// ---------------- WAL REPLAY ----------------
		if _, err := service.Replay(svc, dir); err != nil {
			log.Fatalf("WAL replay failed for %s: %v", in.Symbol, err)
		}
		if err := router.Add(svc, in.TickSize); err != nil {
			log.Fatalf("router: %v", err)
		}
	}
	router.Start()
	defer router.Close()

	// ---------------- Background Jobs ----------------

	tradeProducer, err := broadcaster.NewSyncProducer(cfg.Kafka.Brokers)
	if err != nil {
		log.Fatalf("broadcaster init failed: %v", err)
	}
	bc := broadcaster.New(exitWAL, tradeProducer, broadcaster.Options{
		Topic:    cfg.Kafka.TradeTopic,
		Interval: cfg.BroadcastInterval,
		Metrics:  m,
	})
	defer bc.Close()
	bcDone := bc.Start(ctx)
	quotesDone := publisher.Start(ctx)

	if cfg.Kafka.OrderTopic != "" {
		consumer := kafka.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.OrderTopic, cfg.Kafka.GroupID,
			func(ctx context.Context, ev *wire.OrderEvent) error {
				cmd, err := service.CommandFromEvent(ev)
				if err != nil {
					log.Printf("[kafka-consumer] skipping %s seq=%d: %v", ev.Symbol, ev.Seq, err)
					return nil
				}
				_, err = router.Submit(ctx, ev.Symbol, cmd)
				if errors.Is(err, service.ErrUnknownInstrument) {
					log.Printf("[kafka-consumer] skipping %s seq=%d: %v", ev.Symbol, ev.Seq, err)
					return nil
				}
				return err
			})
		defer consumer.Close()
		go func() {
			if err := consumer.Run(ctx); err != nil {
				log.Printf("[kafka-consumer] stopped: %v", err)
			}
		}()
	}

	// ---------------- HTTP ----------------

	httpSrv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           httpserver.NewServer(router, reg),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.Printf("[http] admin on %s", cfg.HTTPAddr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("http server exited: %v", err)
		}
	}()

	// ---------------- gRPC ----------------

	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		log.Fatalf("listen failed: %v", err)
	}
	grpcSrv := grpcserver.NewGRPCServer(router)
	go func() {
		if err := grpcSrv.Serve(lis); err != nil {
			log.Fatalf("gRPC server exited: %v", err)
		}
	}()

	log.Printf("clob engine running: grpc %s, %d instruments", cfg.GRPCAddr, len(cfg.Instruments))

	<-ctx.Done()
	log.Println("shutting down")

	grpcSrv.GracefulStop()
	shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
	defer stop()
	_ = httpSrv.Shutdown(shutdownCtx)
	<-bcDone
	<-quotesDone
}
