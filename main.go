package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/loyaltyapp/push-server/config"
	"github.com/loyaltyapp/push-server/controller"
	"github.com/loyaltyapp/push-server/database"
	"github.com/loyaltyapp/push-server/net"
	"github.com/loyaltyapp/push-server/push"
	"github.com/loyaltyapp/push-server/repository"
	"google.golang.org/api/option"
	"k8s.io/klog/v2"
)

var Version = "dev"

func usage() {
	flag.PrintDefaults()
	os.Exit(2)
}

func newGateway(ctx context.Context, cfg *config.Config) (push.Gateway, error) {
	switch cfg.PushProvider {
	case config.ProviderFcm:
		return net.NewFcmClient(cfg.FcmApiKey, cfg.PushChunkSize)
	case config.ProviderFirebase:
		return net.NewFirebaseClient(ctx, cfg.FirebaseCredentials, cfg.PushChunkSize)
	default:
		return net.NewExpoClient(cfg.ExpoApiUrl, cfg.ExpoAccessToken, cfg.PushChunkSize, cfg.ReceiptChunkSize), nil
	}
}

func main() {
	// Server options
	flag.Usage = usage
	klog.InitFlags(nil)
	flag.Set("logtostderr", "true")
	flag.Set("stderrthreshold", "INFO")
	flag.Set("v", "3")
	reconcile := flag.Bool("reconcile", false, "Reconcile pending push receipts once and exit")
	version := flag.Bool("version", false, "Display the version")
	flag.Parse()

	if *version {
		fmt.Printf("Push server version: %s\n", Version)
		os.Exit(0)
	}

	cfg, err := config.Load()
	if err != nil {
		klog.Errorf("Invalid configuration: %v", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Setup database conn
	fmt.Println("🏡 Connecting to database...")
	db, err := database.NewConnection(&cfg.DB)
	if err != nil {
		panic(err)
	}

	fmt.Println("🦋 Running database migrations...")
	if err := database.Migrate(db); err != nil {
		panic(err)
	}

	// Setup push gateway
	gateway, err := newGateway(ctx, cfg)
	if err != nil {
		klog.Errorf("Error initiating %s push gateway: %v", cfg.PushProvider, err)
		os.Exit(1)
	}
	klog.Infof("Using %s push gateway", cfg.PushProvider)

	// Create repositories
	tokenRepo := &repository.PushTokenRepo{DB: db}
	ticketRepo := &repository.PushTicketRepo{DB: db}
	profileRepo := &repository.ProfileRepo{DB: db}

	redisDB := database.GetRedisDB()
	if redisDB.Mock {
		klog.Warning("MOCK_REDIS is set, dispatch claims and the reconcile lock only hold within this process")
	}

	pc := &controller.PushController{
		Dispatcher:    push.NewDispatcher(gateway, tokenRepo, ticketRepo, cfg.PushConcurrency),
		Reconciler:    push.NewReconciler(gateway, tokenRepo, ticketRepo, cfg.PushConcurrency),
		Guard:         redisDB,
		DedupeTTL:     cfg.DispatchDedupeTTL,
		Lock:          redisDB,
		Health:        redisDB,
		LockTTL:       cfg.ReconcileInterval,
		Tokens:        tokenRepo,
		Profiles:      profileRepo,
		Validator:     gateway,
		JWTSecret:     cfg.SupabaseJWTSecret,
		WebhookSecret: cfg.WebhookSecret,
	}

	// Receipt job, run by an external cron
	if *reconcile {
		result, err := pc.RunReconcile(ctx)
		if err != nil {
			klog.Errorf("Error reconciling push receipts: %v", err)
			os.Exit(1)
		}
		klog.Info(result.Message)
		os.Exit(0)
	}

	// Reconcile receipts periodically
	s := gocron.NewScheduler(time.UTC)
	s.SingletonModeAll()
	_, err = s.Every(cfg.ReconcileInterval).Do(func() {
		result, err := pc.RunReconcile(ctx)
		if errors.Is(err, controller.ErrReconcileInProgress) {
			klog.V(3).Infof("Skipping scheduled reconcile: %v", err)
			return
		}
		if err != nil {
			klog.Errorf("Error in scheduled reconcile: %v", err)
			return
		}
		klog.V(3).Infof("Scheduled reconcile: %s", result.Message)
	})
	if err != nil {
		klog.Errorf("Error scheduling reconcile job: %v", err)
		os.Exit(1)
	}
	s.StartAsync()

	// Post events from Pub/Sub
	if cfg.PubsubEnabled() {
		var opts []option.ClientOption
		if cfg.GoogleCredentials != "" {
			opts = append(opts, option.WithCredentialsFile(cfg.GoogleCredentials))
		}
		subscriber, err := net.NewPostEventSubscriber(ctx, cfg.PubsubProjectID, cfg.PubsubSubscription, pc.HandlePostEvent, opts...)
		if err != nil {
			klog.Errorf("Error creating post event subscriber: %v", err)
			os.Exit(1)
		}
		defer subscriber.Close()
		go func() {
			if err := subscriber.Start(ctx); err != nil {
				klog.Errorf("Post event subscriber stopped: %v", err)
			}
		}()
	}

	app := controller.NewApp(pc)
	go func() {
		<-ctx.Done()
		klog.Info("Shutting down")
		s.Stop()
		app.Shutdown()
	}()

	if err := app.Listen(":" + cfg.Port); err != nil {
		klog.Errorf("Server stopped: %v", err)
	}
}
