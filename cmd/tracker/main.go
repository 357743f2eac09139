package main

import (
	"context"
	"flag"
	"fmt"
	"hash/fnv"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"

	"ordertrack/internal/apisync"
	"ordertrack/internal/backup"
	"ordertrack/internal/fullsync"
	"ordertrack/internal/metrics"
	"ordertrack/internal/notify"
	"ordertrack/internal/reconcile"
	"ordertrack/internal/scrape"
	"ordertrack/internal/stats"
	"ordertrack/internal/store"
	"ordertrack/internal/web"
)

// Config holds CLI flags for the tracker daemon.
type Config struct {
	Listen       string
	StoreBackend string // memory|pebble|badger
	DataDir      string
	BackupDir    string

	PageFile    string
	SnapshotURL string
	ScrollURL   string
	WatchEvery  time.Duration
	Debounce    time.Duration

	KafkaBootstrap string
	GroupID        string
	TopicPayloads  string

	NATSURL     string
	NATSSubject string

	Tick   time.Duration
	Settle time.Duration
}

func main() {
	cfg := readFlags()
	if err := run(cfg); err != nil {
		log.Fatalf("tracker failed: %v", err)
	}
}

func readFlags() Config {
	var cfg Config
	flag.StringVar(&cfg.Listen, "listen", ":8080", "http listen address")
	flag.StringVar(&cfg.StoreBackend, "store-backend", "pebble", "store backend: memory|pebble|badger")
	flag.StringVar(&cfg.DataDir, "data-dir", "./data/tracker", "store data directory")
	flag.StringVar(&cfg.BackupDir, "backup-dir", "./backups", "backup dump directory")
	flag.StringVar(&cfg.PageFile, "page-file", "", "rendered page snapshot file")
	flag.StringVar(&cfg.SnapshotURL, "page-url", "", "rendering agent snapshot url")
	flag.StringVar(&cfg.ScrollURL, "scroll-url", "", "rendering agent scroll url")
	flag.DurationVar(&cfg.WatchEvery, "watch-every", 2*time.Second, "page change poll interval (0 disables)")
	flag.DurationVar(&cfg.Debounce, "debounce", 500*time.Millisecond, "change-trigger debounce delay")
	flag.StringVar(&cfg.KafkaBootstrap, "kafka-bootstrap", "", "kafka bootstrap servers, e.g. localhost:9092")
	flag.StringVar(&cfg.GroupID, "group-id", "tracker", "consumer group id")
	flag.StringVar(&cfg.TopicPayloads, "topic-payloads", "orders.payloads", "kafka topic carrying structured payloads")
	flag.StringVar(&cfg.NATSURL, "nats-url", "", "nats server url for refresh events")
	flag.StringVar(&cfg.NATSSubject, "nats-subject", notify.DefaultSubject, "nats subject for refresh events")
	flag.DurationVar(&cfg.Tick, "sync-tick", fullsync.DefaultTick, "full sync tick interval")
	flag.DurationVar(&cfg.Settle, "sync-settle", fullsync.DefaultSettle, "post-scroll settle delay")
	flag.Parse()
	return cfg
}

func run(cfg Config) error {
	log.Printf("starting tracker backend=%s listen=%s", cfg.StoreBackend, cfg.Listen)

	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	rec := reconcile.New(st)
	mreg := metrics.NewRegistry()
	eng := stats.NewEngine(rec)

	var notifier notify.Notifier = notify.LogNotifier{}
	if cfg.NATSURL != "" {
		nc, err := nats.Connect(cfg.NATSURL)
		if err != nil {
			return fmt.Errorf("nats connect: %w", err)
		}
		defer nc.Close()
		notifier = notify.NewNATSNotifier(nc, cfg.NATSSubject)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var coord *fullsync.Coordinator
	if src := pageSource(cfg); src != nil {
		scraper := scrape.New(src, rec, mreg)
		coord = &fullsync.Coordinator{
			Runner:   scraper,
			Counter:  rec,
			Notifier: notifier,
			Metrics:  mreg,
			Tick:     cfg.Tick,
			Settle:   cfg.Settle,
		}
		deb := fullsync.NewDebouncer(cfg.Debounce, func() {
			if _, err := scraper.RunPass(context.Background()); err != nil {
				log.Printf("change pass failed: %v", err)
			}
		})
		defer deb.Stop()
		if cfg.WatchEvery > 0 {
			go watchPage(ctx, src, deb, cfg.WatchEvery)
		}
	}

	if cfg.KafkaBootstrap != "" {
		consumer, err := apisync.NewConsumer(cfg.KafkaBootstrap, cfg.GroupID, cfg.TopicPayloads)
		if err != nil {
			return fmt.Errorf("init consumer: %w", err)
		}
		consumerDone := make(chan struct{})
		// Close only after the poll loop has returned.
		defer func() {
			<-consumerDone
			_ = consumer.Close()
		}()
		go func() {
			defer close(consumerDone)
			consumer.Run(ctx, func(_ context.Context, p apisync.Payload) {
				for _, raw := range p.Orders {
					if raw.OrderID == "" {
						continue
					}
					if err := rec.SaveAPI(apisync.Normalize(raw)); err != nil {
						log.Printf("api save %s failed: %v", raw.OrderID, err)
						mreg.StoreErrors.Inc()
						continue
					}
					mreg.APISaved.Inc()
				}
			})
		}()
	}

	srv := &http.Server{
		Addr: cfg.Listen,
		Handler: (&web.Server{
			Rec:     rec,
			Stats:   eng,
			Coord:   coord,
			Metrics: mreg,
			Dumper:  backup.NewFilesystemDumper(cfg.BackupDir),
		}).Router(),
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("http server: %v", err)
			stop()
		}
	}()

	<-ctx.Done()
	log.Printf("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func openStore(cfg Config) (store.Store, error) {
	switch cfg.StoreBackend {
	case "pebble":
		return store.NewPebbleStore(cfg.DataDir)
	case "badger":
		return store.NewBadgerStore(cfg.DataDir)
	case "memory", "":
		return store.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
}

func pageSource(cfg Config) scrape.Source {
	if cfg.PageFile != "" {
		return &scrape.FileSource{Path: cfg.PageFile}
	}
	if cfg.SnapshotURL != "" {
		return &scrape.HTTPSource{SnapshotURL: cfg.SnapshotURL, ScrollURL: cfg.ScrollURL}
	}
	return nil
}

// watchPage polls the page source and fires the debounced change trigger when
// the rendered markup differs from the last observation.
func watchPage(ctx context.Context, src scrape.Source, deb *fullsync.Debouncer, every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	var last uint64
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			b, err := src.Snapshot(ctx)
			if err != nil {
				continue
			}
			h := fnv.New64a()
			_, _ = h.Write(b)
			if sum := h.Sum64(); sum != last {
				last = sum
				deb.Trigger()
			}
		}
	}
}
