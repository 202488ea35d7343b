package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/absmach/fedprox/pkg/mqtt"
	"github.com/absmach/fedprox/pkg/orchestration"
	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func NewWatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch [run-id]",
		Short: "Follow run events published to the MQTT broker",
		Long:  `Subscribes to the events of one run, or of every run when no run ID is given, and prints them until interrupted.`,
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if url, _ := cmd.Flags().GetString("mqtt-url"); url != "" {
				cfg.Events.MQTTURL = url
			}
			if cfg.Events.MQTTURL == "" {
				return fmt.Errorf("events.mqtt_url is not set")
			}
			timeout, err := cfg.Events.TimeoutDuration()
			if err != nil {
				return err
			}

			topic := orchestration.AllRunsTopic(cfg.Events.TopicPrefix)
			if len(args) == 1 {
				topic = orchestration.NewTopicBuilder(cfg.Events.TopicPrefix, args[0]).AllTopics()
			}

			ps, err := mqtt.NewPubSub(mqtt.Config{
				URL:      cfg.Events.MQTTURL,
				ClientID: "fedprox-watch-" + uuid.NewString(),
				Username: cfg.Events.Username,
				Password: cfg.Events.Password,
				QoS:      byte(cfg.Events.QoS),
				Timeout:  timeout,
				CAPath:   cfg.Events.CAPath,
				CertPath: cfg.Events.CertPath,
				KeyPath:  cfg.Events.KeyPath,
			}, newLogger(cfg))
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			err = ps.Subscribe(ctx, topic, func(topic string, msg map[string]any) error {
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s", color.CyanString(time.Now().Format(time.TimeOnly)), topic)
				logJSONCmd(*cmd, msg)

				return nil
			})
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "watching %s\n", topic)
			<-ctx.Done()

			if err := ps.Unsubscribe(context.WithoutCancel(ctx), topic); err != nil {
				cmd.PrintErrf("failed to unsubscribe: %v\n", err)
			}

			return ps.Disconnect(context.WithoutCancel(ctx))
		},
	}

	cmd.Flags().String("mqtt-url", "", "Broker URL; overrides events.mqtt_url")

	return cmd
}
