package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kalambet/devsettings/internal/api"
	"github.com/kalambet/devsettings/internal/config"
	"github.com/kalambet/devsettings/internal/mirror"
)

// --- settings ---

var setCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Change a device setting",
	Long: `Change a device setting and propagate it to every store it lives in.
When "devsettings serve" is running the change goes through it.

Examples:
  devsettings set hbm true
  devsettings set vib_strength 7
  devsettings set nr_mode_switcher sa`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]
		return withSettings(cmd.Context(), func(s settingsClient) error {
			st, err := s.Set(cmd.Context(), key, value)
			if err != nil {
				return err
			}
			printSuccess("Set %s = %s", key, st.Value)
			return nil
		})
	},
}

var getCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Show one device setting",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		asJSON, _ := cmd.Flags().GetBool("json")
		return withSettings(cmd.Context(), func(s settingsClient) error {
			st, err := s.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if asJSON {
				return printJSON(cmd, st)
			}
			fmt.Fprintln(cmd.OutOrStdout(), formatState(st))
			return nil
		})
	},
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List every device setting",
	RunE: func(cmd *cobra.Command, args []string) error {
		asJSON, _ := cmd.Flags().GetBool("json")
		return withSettings(cmd.Context(), func(s settingsClient) error {
			states, err := s.List(cmd.Context())
			if err != nil {
				return err
			}
			if asJSON {
				return printJSON(cmd, states)
			}
			for _, st := range states {
				fmt.Fprintln(cmd.OutOrStdout(), formatState(st))
			}
			return nil
		})
	},
}

// settingsClient is what set/get/list act on: the running daemon, or a
// controller opened in this process when no daemon answers.
type settingsClient interface {
	Set(ctx context.Context, key, value string) (mirror.State, error)
	Get(ctx context.Context, key string) (mirror.State, error)
	List(ctx context.Context) ([]mirror.State, error)
}

// withSettings prefers a running daemon so its session stays the single
// owner of the controls.
func withSettings(ctx context.Context, fn func(s settingsClient) error) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if client, err := newAPIClient(cfg); err == nil && client.healthy(ctx) {
		return fn(remoteSettings{client: client})
	}
	return withController(ctx, func(c *mirror.Controller) error {
		return fn(localSettings{ctrl: c})
	})
}

type remoteSettings struct{ client *apiClient }

func (r remoteSettings) Set(ctx context.Context, key, value string) (mirror.State, error) {
	var st mirror.State
	resp, err := r.client.put(ctx, settingPath(key), api.SetRequest{Value: jsonString(value)})
	if err != nil {
		return st, err
	}
	return st, decodeJSON(resp, &st)
}

func (r remoteSettings) Get(ctx context.Context, key string) (mirror.State, error) {
	var st mirror.State
	resp, err := r.client.get(ctx, settingPath(key))
	if err != nil {
		return st, err
	}
	return st, decodeJSON(resp, &st)
}

func (r remoteSettings) List(ctx context.Context) ([]mirror.State, error) {
	var list settingsList
	resp, err := r.client.get(ctx, "/settings")
	if err != nil {
		return nil, err
	}
	if err := decodeJSON(resp, &list); err != nil {
		return nil, err
	}
	return list.Settings, nil
}

func jsonString(s string) json.RawMessage {
	raw, _ := json.Marshal(s)
	return raw
}

type localSettings struct{ ctrl *mirror.Controller }

func (l localSettings) Set(ctx context.Context, key, value string) (mirror.State, error) {
	if err := l.ctrl.SetToggle(ctx, key, value); err != nil {
		return mirror.State{}, err
	}
	return l.ctrl.Get(key)
}

func (l localSettings) Get(_ context.Context, key string) (mirror.State, error) {
	return l.ctrl.Get(key)
}

func (l localSettings) List(context.Context) ([]mirror.State, error) {
	return l.ctrl.List(), nil
}

func init() {
	getCmd.Flags().Bool("json", false, "print as JSON")
	listCmd.Flags().Bool("json", false, "print as JSON")
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// --- selinux ---

var selinuxCmd = &cobra.Command{
	Use:       "selinux <enforcing|permissive>",
	Short:     "Set the SELinux mode restored at boot",
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"enforcing", "permissive"},
	RunE: func(cmd *cobra.Command, args []string) error {
		enforcing, err := parseSELinuxMode(args[0])
		if err != nil {
			return err
		}
		return withController(cmd.Context(), func(c *mirror.Controller) error {
			if err := c.SetSELinuxMode(enforcing); err != nil {
				return err
			}
			printSuccess("SELinux will be %s after the next boot", strings.ToLower(args[0]))
			return nil
		})
	},
}

func parseSELinuxMode(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "enforcing", "1":
		return true, nil
	case "permissive", "0":
		return false, nil
	}
	return false, fmt.Errorf("invalid SELinux mode %q (want enforcing or permissive)", s)
}

// --- token ---

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Print the API bearer token",
	RunE: func(cmd *cobra.Command, args []string) error {
		rotate, _ := cmd.Flags().GetBool("rotate")
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		var tok string
		if rotate {
			tok, err = config.RotateAPIToken(cfg.Storage.DataDir)
		} else {
			tok, err = config.APIToken(cfg.Storage.DataDir)
		}
		if err != nil {
			return err
		}
		if rotate {
			printWarning("Token rotated; restart a running server to pick it up")
		}
		fmt.Fprintln(cmd.OutOrStdout(), tok)
		return nil
	},
}

func init() {
	tokenCmd.Flags().Bool("rotate", false, "generate and store a new token")
}

// --- config ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or update configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		for _, k := range config.ShowAll(cfg) {
			fmt.Fprintf(cmd.OutOrStdout(), "  %s = %s\n", colorize(colorBold, k.Key), k.Value)
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Long:  "Set a configuration value. Valid keys: " + strings.Join(config.ValidKeys(), ", "),
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]
		if err := config.SetKey(key, value); err != nil {
			return err
		}
		printSuccess("Set %s = %s", key, value)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}
