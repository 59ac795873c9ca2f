package main

import (
	"log"
	"os"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/anicoll/lifesmart-integration/cmd"
)

func main() {
	app := &cli.App{
		Name:   "lifesmart-controller",
		Usage:  "bridges lifesmart cloud devices onto mqtt and postgres",
		Action: cmd.LifesmartCommand,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "appkey",
				EnvVars:  []string{"LIFESMART_APPKEY"},
				Required: true,
			},
			&cli.StringFlag{
				Name:     "apptoken",
				EnvVars:  []string{"LIFESMART_APPTOKEN"},
				Required: true,
			},
			&cli.StringFlag{
				Name:     "lifesmart-username",
				EnvVars:  []string{"LIFESMART_USERNAME"},
				Required: true,
			},
			&cli.StringFlag{
				Name:     "lifesmart-password",
				EnvVars:  []string{"LIFESMART_PASSWORD"},
				Required: true,
			},
			&cli.StringSliceFlag{
				Name:    "exclude",
				EnvVars: []string{"LIFESMART_EXCLUDE"},
			},
			&cli.StringFlag{
				Name:    "base-url",
				EnvVars: []string{"LIFESMART_BASE_URL"},
				Value:   "",
			},
			&cli.StringFlag{
				Name:    "push-url",
				EnvVars: []string{"LIFESMART_PUSH_URL"},
				Value:   "",
			},
			&cli.StringFlag{
				Name:    "mqtt-host",
				EnvVars: []string{"MQTT_HOST"},
				Value:   "",
			},
			&cli.StringFlag{
				Name:    "mqtt-user",
				EnvVars: []string{"MQTT_USER"},
				Value:   "",
			},
			&cli.StringFlag{
				Name:    "mqtt-pass",
				EnvVars: []string{"MQTT_PASS"},
				Value:   "",
			},
			&cli.StringFlag{
				Name:    "database-url",
				EnvVars: []string{"DATABASE_URL"},
				Value:   "",
			},
			&cli.StringFlag{
				Name:    "migrations-folder",
				EnvVars: []string{"MIGRATIONS_FOLDER"},
				Value:   "",
			},
			&cli.DurationFlag{
				Name:    "poll-interval",
				EnvVars: []string{"POLL_INTERVAL"},
				Value:   10 * time.Minute,
			},
			&cli.StringFlag{
				Name:    "log-level",
				EnvVars: []string{"LOG_LEVEL"},
				Value:   "INFO",
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
