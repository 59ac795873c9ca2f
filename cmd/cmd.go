package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/anicoll/lifesmart-integration/internal/pkg/command"
	"github.com/anicoll/lifesmart-integration/internal/pkg/config"
	"github.com/anicoll/lifesmart-integration/internal/pkg/contxt"
	"github.com/anicoll/lifesmart-integration/internal/pkg/database"
	"github.com/anicoll/lifesmart-integration/internal/pkg/database/migration"
	"github.com/anicoll/lifesmart-integration/internal/pkg/normalize"
	"github.com/anicoll/lifesmart-integration/internal/pkg/publisher"
	"github.com/anicoll/lifesmart-integration/internal/pkg/push"
	"github.com/anicoll/lifesmart-integration/internal/pkg/registry"
	"github.com/anicoll/lifesmart-integration/internal/pkg/rest"
	paho_mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/jackc/pgx/v5"
	"github.com/robfig/cron/v3"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	mq "github.com/anicoll/lifesmart-integration/internal/pkg/mqtt"
)

func LifesmartCommand(ctx *cli.Context) error {
	cfg := &config.Config{
		LifeSmartCfg: &config.LifeSmartConfig{
			BaseURL:      ctx.String("base-url"),
			PushURL:      ctx.String("push-url"),
			Username:     ctx.String("lifesmart-username"),
			Password:     ctx.String("lifesmart-password"),
			AppKey:       ctx.String("appkey"),
			AppToken:     ctx.String("apptoken"),
			Exclude:      ctx.StringSlice("exclude"),
			PollInterval: ctx.Duration("poll-interval"),
		},
		MqttCfg: &config.MqttConfig{
			Host:     ctx.String("mqtt-host"),
			Username: ctx.String("mqtt-user"),
			Password: ctx.String("mqtt-pass"),
		},
		DatabaseURL:      ctx.String("database-url"),
		MigrationsFolder: ctx.String("migrations-folder"),
		LogLevel:         ctx.String("log-level"),
	}

	return run(ctx.Context, cfg)
}

func run(ctx context.Context, cfg *config.Config) error {
	errorChan := make(chan error, 1000)
	var err error

	eg, ctx := errgroup.WithContext(ctx)
	logCfg := zap.NewProductionConfig()

	logCfg.Level, err = zap.ParseAtomicLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	logCfg.OutputPaths = []string{"stdout"}
	logCfg.ErrorOutputPaths = []string{"stdout"}
	logCfg.Sampling = nil
	logger := zap.Must(logCfg.Build(zap.AddCaller(), zap.AddStacktrace(zap.ErrorLevel)))
	defer func() {
		_ = logger.Sync() // flushes buffer, if any.
	}()
	zap.ReplaceGlobals(logger)

	var db *database.Database
	if cfg.DatabaseURL != "" {
		if cfg.MigrationsFolder != "" {
			if err := migration.Migrate(cfg.DatabaseURL, cfg.MigrationsFolder); err != nil {
				return err
			}
		}
		conn, err := pgx.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		db = database.NewDatabase(conn)
		defer db.Close()

		if err := publisher.RegisterPublisher("postgres", db); err != nil {
			return err
		}
		eg.Go(func() error {
			return cronDbCleanup(ctx, db, errorChan)
		})
	}

	client := rest.New(cfg.LifeSmartCfg)
	if err := login(ctx, client); err != nil {
		return err
	}

	reg := registry.New(cfg.LifeSmartCfg.Exclude)
	encoder := command.New(client)

	if cfg.MqttCfg.Host != "" {
		opts := paho_mqtt.NewClientOptions().
			AddBroker(cfg.MqttCfg.Host).
			SetUsername(cfg.MqttCfg.Username).
			SetPassword(cfg.MqttCfg.Password).
			SetClientID("lifesmart-integration")
		mqttSvc := mq.New(paho_mqtt.NewClient(opts))
		if err := mqttSvc.Connect(); err != nil {
			return err
		}
		if err := publisher.RegisterPublisher("mqtt", mqttSvc); err != nil {
			return err
		}
		if err := mqttSvc.SubscribeCommands(ctx, encoder); err != nil {
			return err
		}
	}

	if err := enumerate(ctx, client, reg); err != nil {
		return err
	}
	if db != nil {
		if err := restoreStates(ctx, db, reg); err != nil {
			return err
		}
	}
	eg.Go(func() error {
		return cronEnumerate(ctx, cfg.LifeSmartCfg.PollInterval, client, reg, errorChan)
	})

	norm := normalize.New(reg, publisher.Broadcaster{})
	pushMgr := push.New(cfg.LifeSmartCfg, client, norm, errorChan)
	eg.Go(func() error {
		return pushMgr.Run(ctx)
	})

	eg.Go(func() error {
		// handle any async errors from services
		for {
			select {
			case err := <-errorChan:
				if errors.Is(err, errCron) {
					logger.Error("cron error", zap.Error(err))
					return err
				}
				logger.Error("async error", zap.Error(err))
			case <-ctx.Done():
				logger.Info("context done")
				return ctx.Err()
			}
		}
	})

	return eg.Wait()
}

// login retries exactly once before declaring setup failed.
func login(ctx context.Context, client *rest.Client) error {
	if err := client.Login(ctx); err != nil {
		zap.L().Warn("login failed, retrying once", zap.Error(err))
		if err := client.Login(ctx); err != nil {
			return err
		}
	}
	return client.Auth(ctx)
}

// enumerate pulls the full device list and seeds the registry plus every
// registered sink. Excluded devices are skipped before they reach either.
func enumerate(ctx context.Context, client *rest.Client, reg *registry.Registry) error {
	devices, err := client.GetAllDevices(ctx)
	if err != nil {
		return err
	}
	for i := range devices {
		dev := devices[i]
		if reg.Excluded(dev.Me) {
			zap.L().Debug("skipping excluded device", zap.String("me", dev.Me))
			continue
		}
		keys := reg.Register(dev)
		zap.L().Info("registered device",
			zap.String("me", dev.Me),
			zap.String("devtype", dev.DevType),
			zap.Int("entities", len(keys)))
		if err := publisher.RegisterDevice(&dev); err != nil {
			return err
		}
	}
	return nil
}

// stateHistory is the slice of the database the startup restore needs.
type stateHistory interface {
	GetLatestStates(ctx context.Context) (database.States, error)
}

// restoreStates backfills the registry cache from the last persisted row
// per entity. Enumeration wins where it produced a state; the history only
// fills entities enumeration left unknown, such as a cover caught between
// endpoints, so decode paths that lean on the previous state do not start
// every run blind.
func restoreStates(ctx context.Context, history stateHistory, reg *registry.Registry) error {
	states, err := history.GetLatestStates(ctx)
	if err != nil {
		return err
	}
	restored := 0
	for _, s := range states {
		cached, known := reg.State(s.EntityKey)
		if !known || cached != nil {
			continue
		}
		reg.SetState(s.EntityKey, s.State)
		restored++
	}
	zap.L().Info("restored entity states",
		zap.Int("restored", restored),
		zap.Int("rows", len(states)))
	return nil
}

var errCron = errors.New("cron error")

func cronDbCleanup(ctx context.Context, db *database.Database, errChan chan error) error {
	if err := db.Cleanup(ctx); err != nil {
		return err
	}

	c := cron.New()
	if _, err := c.AddFunc("0 3 * * *", func() {
		if err := db.Cleanup(contxt.NewContext(time.Minute)); err != nil {
			zap.L().Error("error cleaning up database", zap.Error(err))
			errChan <- errCron
			return
		}
		zap.L().Info("cleaned up state history")
	}); err != nil {
		return err
	}

	go func() {
		<-ctx.Done()
		c.Stop()
	}()
	c.Run()
	return nil
}

// cronEnumerate refreshes the device list so entities added after startup
// are picked up without a restart.
func cronEnumerate(ctx context.Context, interval time.Duration, client *rest.Client, reg *registry.Registry, errChan chan error) error {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	c := cron.New()
	if _, err := c.AddFunc(fmt.Sprintf("@every %s", interval), func() {
		if err := enumerate(contxt.NewContext(time.Minute), client, reg); err != nil {
			zap.L().Error("device re-enumeration failed", zap.Error(err))
			errChan <- err
		}
	}); err != nil {
		return err
	}

	go func() {
		<-ctx.Done()
		c.Stop()
	}()
	c.Run()
	return nil
}
