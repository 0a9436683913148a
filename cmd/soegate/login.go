package main

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/1ureka/soegate/internal/config"
	"github.com/1ureka/soegate/internal/dump"
	"github.com/1ureka/soegate/internal/loginclient"
	"github.com/1ureka/soegate/internal/protocol/login"
	"github.com/1ureka/soegate/internal/transport"
	"github.com/1ureka/soegate/internal/util"
)

type loginOptions struct {
	serverURL   string
	token       string
	ticket      string
	fingerprint string
	characterID uint64
	serverID    uint32
}

func loginCmd(root *rootOptions) *cobra.Command {
	o := &loginOptions{}
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in, list servers and characters, optionally enter the world",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.load()
			if err != nil {
				return err
			}
			if o.serverURL != "" {
				cfg.Login.ServerURL = o.serverURL
			}
			if o.fingerprint != "" {
				cfg.Login.Fingerprint = o.fingerprint
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			if o.token == "" && o.ticket == "" {
				o.token = askSecret("Launcher token")
			}
			obs, err := observer(cfg)
			if err != nil {
				return err
			}
			return runLogin(cmd.Context(), cfg.Login, o, obs)
		},
	}
	cmd.Flags().StringVar(&o.serverURL, "server", "", "Login server WebSocket URL")
	cmd.Flags().StringVar(&o.token, "token", "", "Launcher token exchanged for a session ticket")
	cmd.Flags().StringVar(&o.ticket, "ticket", "", "Session ticket (skips the token exchange)")
	cmd.Flags().StringVar(&o.fingerprint, "fingerprint", "", "System fingerprint sent with the login")
	cmd.Flags().Uint64Var(&o.characterID, "character", 0, "Character to log in with")
	cmd.Flags().Uint32Var(&o.serverID, "world", 0, "World server id for --character")
	return cmd
}

func runLogin(ctx context.Context, cfg config.LoginConfig, o *loginOptions, obs dump.Observer) error {
	link, err := transport.NewClient(transport.ClientConfig{
		URL:              cfg.ServerURL,
		Key:              cfg.Key,
		HandshakeTimeout: cfg.RequestTimeout,
	})
	if err != nil {
		return err
	}
	fetcher := &loginclient.PlaySessionFetcher{
		BaseURL:     cfg.LaunchpadURL,
		GameID:      cfg.GameID,
		Environment: cfg.Environment,
		Timeout:     cfg.RequestTimeout,
	}
	client := loginclient.New(link, fetcher, loginclient.WithObserver(obs))

	done := make(chan error, 1)
	finish := func(err error) {
		select {
		case done <- err:
		default:
		}
	}

	client.On(loginclient.EventConnect, func(ev loginclient.Event) {
		if ev.Err != nil {
			finish(ev.Err)
			return
		}
		// The token exchange blocks; keep it off the transport goroutine.
		go func() {
			if err := client.Login(ctx, o.token, cfg.Fingerprint, o.ticket); err != nil {
				finish(err)
			}
		}()
	})
	client.On(loginclient.EventDisconnect, func(ev loginclient.Event) {
		if ev.Err != nil {
			finish(ev.Err)
			return
		}
		finish(errors.New("login server closed the connection"))
	})
	client.On(loginclient.EventLogin, func(ev loginclient.Event) {
		if ev.Err != nil {
			finish(ev.Err)
			return
		}
		res := ev.Payload.(loginclient.LoginResult)
		util.LogSuccess("logged in (member: %v, namespace: %q)", res.IsMember, res.Namespace)
		if err := client.RequestServerList(); err != nil {
			finish(err)
		}
	})
	client.On(loginclient.EventServerList, func(ev loginclient.Event) {
		printServers(ev.Payload.([]login.Server))
		if err := client.RequestCharacterInfo(); err != nil {
			finish(err)
		}
	})
	client.On(loginclient.EventServerUpdate, func(ev loginclient.Event) {
		if ev.Err == nil {
			s := ev.Payload.(login.Server)
			util.LogInfo("server %d (%s) is now state %d", s.ID, s.Name, s.State)
		}
	})
	client.On(loginclient.EventCharacterInfo, func(ev loginclient.Event) {
		if ev.Err != nil {
			finish(ev.Err)
			return
		}
		printCharacters(ev.Payload.(login.CharacterSelectInfoReply).Characters)
		if o.characterID == 0 {
			finish(nil)
			return
		}
		if err := client.RequestCharacterLogin(o.characterID, o.serverID, cfg.Locale); err != nil {
			finish(err)
		}
	})
	client.On(loginclient.EventCharacterLogin, func(ev loginclient.Event) {
		if ev.Err != nil {
			finish(ev.Err)
			return
		}
		reply := ev.Payload.(login.CharacterLoginReply)
		util.LogSuccess("character %d may enter world %d", reply.CharacterID, reply.ServerID)
		pterm.DefaultTable.WithHasHeader().WithData(pterm.TableData{
			{"Gateway", "Ticket", "GUID"},
			{reply.ServerAddress, reply.ServerTicket, strconv.FormatUint(reply.GUID, 10)},
		}).Render()
		finish(nil)
	})
	client.On(loginclient.EventTunnelApp, func(ev loginclient.Event) {
		util.LogDebug("tunnel app packet: %d bytes", len(ev.Payload.([]byte)))
	})

	dialCtx, cancel := context.WithTimeout(ctx, cfg.RequestTimeout)
	defer cancel()
	if err := client.Connect(dialCtx); err != nil {
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

func printServers(servers []login.Server) {
	data := pterm.TableData{{"ID", "Name", "State", "Locked", "Population"}}
	for _, s := range servers {
		data = append(data, []string{
			strconv.FormatUint(uint64(s.ID), 10),
			s.Name,
			strconv.FormatUint(uint64(s.State), 10),
			strconv.FormatBool(s.Locked),
			strconv.FormatUint(uint64(s.PopulationLevel), 10),
		})
	}
	pterm.DefaultTable.WithHasHeader().WithData(data).Render()
}

func printCharacters(chars []login.Character) {
	if len(chars) == 0 {
		util.LogInfo("no characters on this account")
		return
	}
	data := pterm.TableData{{"ID", "World", "Name", "Last login"}}
	for _, c := range chars {
		last := "never"
		if c.LastLogin > 0 {
			last = time.Unix(int64(c.LastLogin), 0).Format(time.DateTime)
		}
		data = append(data, []string{
			strconv.FormatUint(c.ID, 10),
			strconv.FormatUint(uint64(c.ServerID), 10),
			c.Name,
			last,
		})
	}
	pterm.DefaultTable.WithHasHeader().WithData(data).Render()
}

// askSecret prompts until a non-empty value is entered.
func askSecret(prompt string) string {
	for {
		raw, _ := pterm.DefaultInteractiveTextInput.
			WithDefaultText(prompt).
			WithMask("*").
			Show()

		if v := strings.TrimSpace(raw); v != "" {
			pterm.Println()
			return v
		}
		util.LogWarning("invalid input: %s must not be empty", strings.ToLower(prompt))
		pterm.Println()
	}
}
