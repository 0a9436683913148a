package main

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"github.com/1ureka/soegate/internal/config"
	"github.com/1ureka/soegate/internal/dump"
	"github.com/1ureka/soegate/internal/gateway"
	"github.com/1ureka/soegate/internal/protocol/zone"
	"github.com/1ureka/soegate/internal/transport"
	"github.com/1ureka/soegate/internal/util"
	zoneclient "github.com/1ureka/soegate/internal/zone"
)

func zoneCmd(root *rootOptions) *cobra.Command {
	var (
		gatewayURL  string
		characterID uint64
		ticket      string
	)
	cmd := &cobra.Command{
		Use:   "zone",
		Short: "Connect to a zone through a gateway and run the client bootstrap",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.load()
			if err != nil {
				return err
			}
			if gatewayURL != "" {
				cfg.Zone.GatewayURL = gatewayURL
			}
			if characterID != 0 {
				cfg.Zone.CharacterID = characterID
			}
			if ticket != "" {
				cfg.Zone.Ticket = ticket
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			if cfg.Zone.Ticket == "" {
				cfg.Zone.Ticket = askSecret("Zone ticket")
			}
			obs, err := observer(cfg)
			if err != nil {
				return err
			}
			return runZone(cmd.Context(), cfg.Zone, obs)
		},
	}
	cmd.Flags().StringVar(&gatewayURL, "gateway", "", "Gateway WebSocket URL")
	cmd.Flags().Uint64Var(&characterID, "character", 0, "Character id")
	cmd.Flags().StringVar(&ticket, "ticket", "", "Zone ticket from the character login reply")
	return cmd
}

func runZone(ctx context.Context, cfg config.ZoneConfig, obs dump.Observer) error {
	link, err := transport.NewClient(transport.ClientConfig{URL: cfg.GatewayURL, Key: cfg.Key})
	if err != nil {
		return err
	}
	tunnel := gateway.NewClient(link, gateway.WithClientObserver(obs))
	client := zoneclient.New(tunnel, zoneclient.Credentials{
		CharacterID:    cfg.CharacterID,
		Ticket:         cfg.Ticket,
		ClientProtocol: cfg.ClientProtocol,
		ClientBuild:    cfg.ClientBuild,
	}, zoneclient.WithObserver(obs))

	done := make(chan error, 1)
	finish := func(err error) {
		select {
		case done <- err:
		default:
		}
	}

	client.On(zoneclient.EventConnect, func(ev zoneclient.Event) {
		if ev.Err != nil {
			finish(ev.Err)
			return
		}
		util.LogInfo("connected to gateway %s", cfg.GatewayURL)
	})
	client.On(zoneclient.EventLogin, func(ev zoneclient.Event) {
		if ev.Err != nil {
			finish(ev.Err)
			return
		}
		util.LogSuccess("gateway accepted character %d", cfg.CharacterID)
	})
	client.On(zoneclient.EventDisconnect, func(ev zoneclient.Event) {
		if ev.Err != nil {
			finish(ev.Err)
			return
		}
		finish(errors.New("gateway closed the connection"))
	})
	client.On(zoneclient.EventSendZoneDetails, func(ev zoneclient.Event) {
		d := ev.Payload.(zone.SendZoneDetails)
		util.LogInfo("zone %s (type %d)", d.ZoneName, d.ZoneType)
	})
	client.On(zoneclient.EventSelf, func(zoneclient.Event) {
		util.LogSuccess("player entity received, client ready sequence sent")
	})

	if err := client.Connect(ctx); err != nil {
		return err
	}
	defer client.Disconnect()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return nil
	}
}
