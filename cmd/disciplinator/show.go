package main

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/disciplinator/disciplinator/internal/crypto"
	"github.com/disciplinator/disciplinator/internal/events"
	"github.com/disciplinator/disciplinator/internal/state"
	"github.com/disciplinator/disciplinator/internal/state/statekey"
)

func showCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print protocol state",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "config",
		Short: "Protocol configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withNode(cmd.Context(), func(n *node) error {
				cfg, err := n.svc.Config(cmd.Context())
				if err != nil {
					return err
				}
				return printJSON(cmd, cfg)
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "challenge <challenge>",
		Short: "A challenge with its sessions and grace periods",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := statekey.ParseKey(args[0])
			if err != nil {
				return err
			}
			return a.withNode(cmd.Context(), func(n *node) error {
				ctx := cmd.Context()
				c, err := n.svc.Challenge(ctx, key)
				if err != nil {
					return err
				}
				sessions, err := n.svc.Sessions(ctx, key)
				if err != nil {
					return err
				}
				grace, err := n.svc.GracePeriods(ctx, key)
				if err != nil {
					return err
				}
				return printJSON(cmd, struct {
					Challenge    state.Challenge
					Status       string
					Type         string
					Sessions     []state.Session
					GracePeriods []state.GracePeriodRecord
				}{c, c.Status.String(), c.Type.String(), sessions, grace})
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "finalization <challenge>",
		Short: "The settlement record of a finalized challenge",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := statekey.ParseKey(args[0])
			if err != nil {
				return err
			}
			return a.withNode(cmd.Context(), func(n *node) error {
				r, err := n.svc.Finalization(cmd.Context(), key)
				if err != nil {
					return err
				}
				return printJSON(cmd, r)
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "stats <identity>",
		Short: "A participant's aggregates",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := crypto.ParseIdentity(args[0])
			if err != nil {
				return err
			}
			return a.withNode(cmd.Context(), func(n *node) error {
				u, err := n.svc.UserStats(cmd.Context(), id)
				if err != nil {
					return err
				}
				return printJSON(cmd, u)
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "rewards",
		Short: "Reward epoch state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withNode(cmd.Context(), func(n *node) error {
				rs, err := n.svc.RewardState(cmd.Context())
				if err != nil {
					return err
				}
				return printJSON(cmd, rs)
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "epoch <epoch>",
		Short: "The summary of a distributed epoch",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			epoch, err := parseUint(args[0], 64)
			if err != nil {
				return fmt.Errorf("epoch: %w", err)
			}
			return a.withNode(cmd.Context(), func(n *node) error {
				s, err := n.svc.EpochSummary(cmd.Context(), epoch)
				if err != nil {
					return err
				}
				return printJSON(cmd, s)
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "balance <identity>",
		Short: "A ledger account balance",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := crypto.ParseIdentity(args[0])
			if err != nil {
				return err
			}
			return a.withNode(cmd.Context(), func(n *node) error {
				b, err := n.ledger.Balance(cmd.Context(), id)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), b)
				return nil
			})
		},
	})

	return cmd
}

func historyCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List audited events, oldest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var f events.HistoryFilter
			f.Kind, _ = cmd.Flags().GetString("kind")
			f.Challenge, _ = cmd.Flags().GetString("challenge")
			f.Limit, _ = cmd.Flags().GetInt("limit")
			return a.withNode(cmd.Context(), func(n *node) error {
				records, err := n.audit.History(cmd.Context(), f)
				if err != nil {
					return err
				}
				for _, r := range records {
					fmt.Fprintf(cmd.OutOrStdout(), "%s %-20s %s\n", r.At, r.Kind, r.Payload)
				}
				return nil
			})
		},
	}
	cmd.Flags().String("kind", "", "only events of this kind")
	cmd.Flags().String("challenge", "", "only events of this challenge")
	cmd.Flags().Int("limit", 0, "at most this many events")
	return cmd
}

func identityFlag(cmd *cobra.Command, name string) (crypto.Identity, error) {
	s, err := cmd.Flags().GetString(name)
	if err != nil {
		return crypto.Identity{}, err
	}
	id, err := crypto.ParseIdentity(s)
	if err != nil {
		return crypto.Identity{}, fmt.Errorf("--%s: %w", name, err)
	}
	return id, nil
}

func parseUint(s string, bits int) (uint64, error) {
	return strconv.ParseUint(s, 10, bits)
}

func printJSON(cmd *cobra.Command, v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(out))
	return nil
}
