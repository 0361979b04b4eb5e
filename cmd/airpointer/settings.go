package main

import (
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ayusman/airpointer/internal/config"
	"github.com/ayusman/airpointer/internal/store"
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Inspect and change the stored tuning overrides",
}

var settingsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored overrides and the keys that accept one",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(func(_ *config.Config, st *store.Store) error {
			settings, err := st.Settings().List()
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 3, ' ', 0)
			fmt.Fprintln(w, "KEY\tVALUE\tUPDATED")
			fmt.Fprintln(w, "---\t-----\t-------")
			for _, s := range settings {
				fmt.Fprintf(w, "%s\t%s\t%s\n", s.Key, s.Value, s.UpdatedAt.Local().Format("2006-01-02 15:04"))
			}
			w.Flush()

			fmt.Fprintln(cmd.OutOrStdout())
			fmt.Fprintln(cmd.OutOrStdout(), "Keys:")
			for _, k := range config.SettingKeys() {
				fmt.Fprintln(cmd.OutOrStdout(), "  "+k)
			}
			return nil
		})
	},
}

var settingsSetCmd = &cobra.Command{
	Use:   "set KEY VALUE",
	Short: "Store an override; it applies the next time the engine starts",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(func(cfg *config.Config, st *store.Store) error {
			merged, err := st.Settings().All()
			if err != nil {
				return err
			}
			merged[args[0]] = args[1]
			if _, err := cfg.WithOverrides(merged); err != nil {
				return err
			}
			return st.Settings().Set(args[0], args[1])
		})
	},
}

var settingsResetCmd = &cobra.Command{
	Use:   "reset [KEY]",
	Short: "Remove one override, or all of them",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(func(_ *config.Config, st *store.Store) error {
			if len(args) == 1 {
				err := st.Settings().Delete(args[0])
				if errors.Is(err, store.ErrNotFound) {
					return fmt.Errorf("no override stored for %s", args[0])
				}
				return err
			}

			all, err := st.Settings().All()
			if err != nil {
				return err
			}
			for k := range all {
				if err := st.Settings().Delete(k); err != nil {
					return err
				}
			}
			return nil
		})
	},
}

func init() {
	settingsCmd.AddCommand(settingsListCmd, settingsSetCmd, settingsResetCmd)
	rootCmd.AddCommand(settingsCmd)
}

func withStore(fn func(cfg *config.Config, st *store.Store) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := setupLogging(cfg.Log); err != nil {
		return err
	}
	st, err := openStore(cfg.Store.Path)
	if err != nil {
		return err
	}
	defer st.Close()

	return fn(cfg, st)
}
