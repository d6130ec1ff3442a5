package main

import (
	"crypto/rand"
	"errors"
	"fmt"

	"github.com/mr-tron/base58"
	"github.com/spf13/cobra"

	"github.com/disciplinator/disciplinator/internal/crypto"
	"github.com/disciplinator/disciplinator/internal/ledger"
	"github.com/disciplinator/disciplinator/internal/protocol"
	"github.com/disciplinator/disciplinator/internal/state"
	"github.com/disciplinator/disciplinator/internal/state/statekey"
)

func keygenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "keygen",
		Short: "Generate an ed25519 identity",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			id, prv, err := crypto.GenerateIdentity(rand.Reader)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "identity: %s\nprivate:  %s\n", id, base58.Encode(prv))
			return nil
		},
	}
}

func initCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize the protocol",
		Long:  `Initialize the protocol with the split and deposit bounds from the config file.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			treasury, err := identityFlag(cmd, "treasury")
			if err != nil {
				return err
			}
			p := a.cfg.Protocol
			authority, params, err := authorize(cmd, "init", protocol.InitParams{
				FeePct:     p.FeePct,
				RewardPct:  p.RewardPct,
				CharityPct: p.CharityPct,
				Treasury:   treasury,
				Asset:      assetID(p.Asset),
				MinDeposit: p.MinDeposit,
				MaxDeposit: p.MaxDeposit,
			})
			if err != nil {
				return err
			}
			return a.withNode(cmd.Context(), func(n *node) error {
				ctx := cmd.Context()
				if err := n.ledger.OpenAccount(ctx, treasury, n.asset); err != nil && !errors.Is(err, ledger.ErrAccountExists) {
					return err
				}
				cfg, err := n.svc.Initialize(ctx, authority, params)
				if err != nil {
					return err
				}
				return printJSON(cmd, cfg)
			})
		},
	}
	keyFlag(cmd, "authority")
	cmd.Flags().String("treasury", "", "treasury identity (required)")
	_ = cmd.MarkFlagRequired("treasury")
	return cmd
}

func fundCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "fund <identity> <amount>",
		Short: "Mint test balance into an account, opening it when needed",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			owner, err := crypto.ParseIdentity(args[0])
			if err != nil {
				return err
			}
			amount, err := parseUint(args[1], 64)
			if err != nil {
				return fmt.Errorf("amount: %w", err)
			}
			return a.withNode(cmd.Context(), func(n *node) error {
				ctx := cmd.Context()
				if err := n.ledger.OpenAccount(ctx, owner, n.asset); err != nil && !errors.Is(err, ledger.ErrAccountExists) {
					return err
				}
				if err := n.ledger.Mint(ctx, owner, amount); err != nil {
					return err
				}
				balance, err := n.ledger.Balance(ctx, owner)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s balance %d\n", owner, balance)
				return nil
			})
		},
	}
}

func pauseCmd(a *app, paused bool) *cobra.Command {
	use, short := "unpause", "Allow challenge creation again"
	if paused {
		use, short = "pause", "Stop challenge creation"
	}
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			authority, _, err := authorize(cmd, use, struct{}{})
			if err != nil {
				return err
			}
			return a.withNode(cmd.Context(), func(n *node) error {
				if paused {
					return n.svc.PauseProtocol(cmd.Context(), authority)
				}
				return n.svc.UnpauseProtocol(cmd.Context(), authority)
			})
		},
	}
	keyFlag(cmd, "authority")
	return cmd
}

func createCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Deposit into a new challenge",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			deposit, _ := cmd.Flags().GetUint64("deposit")
			sessions, _ := cmd.Flags().GetUint32("sessions")
			days, _ := cmd.Flags().GetUint32("days")
			kind, _ := cmd.Flags().GetString("type")
			typ, err := state.ParseChallengeType(kind)
			if err != nil {
				return err
			}
			p := protocol.CreateParams{
				Deposit:       deposit,
				TotalSessions: sessions,
				DurationDays:  days,
				Type:          typ,
			}
			if cmd.Flags().Changed("verifier") {
				v, err := identityFlag(cmd, "verifier")
				if err != nil {
					return err
				}
				p.Verifier = &v
			}
			participant, p, err := authorize(cmd, "create", p)
			if err != nil {
				return err
			}
			return a.withNode(cmd.Context(), func(n *node) error {
				key, err := n.svc.CreateChallenge(cmd.Context(), participant, p)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), key)
				return nil
			})
		},
	}
	keyFlag(cmd, "participant")
	cmd.Flags().Uint64("deposit", 0, "deposit in base units (required)")
	cmd.Flags().Uint32("sessions", 0, "number of sessions (required)")
	cmd.Flags().Uint32("days", 0, "duration in days (required)")
	cmd.Flags().String("verifier", "", "identity allowed to mark sessions")
	cmd.Flags().String("type", "custom", "fitness, education, meditation or custom")
	for _, name := range []string{"deposit", "sessions", "days"} {
		_ = cmd.MarkFlagRequired(name)
	}
	return cmd
}

func markCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mark <challenge>",
		Short: "Record a verified session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := statekey.ParseKey(args[0])
			if err != nil {
				return err
			}
			proof, _ := cmd.Flags().GetString("proof")
			var meta state.SessionMetadata
			if cmd.Flags().Changed("minutes") {
				m, _ := cmd.Flags().GetUint16("minutes")
				meta.DurationMinutes = &m
			}
			if cmd.Flags().Changed("location") {
				l, _ := cmd.Flags().GetString("location")
				meta.Location = &l
			}
			if cmd.Flags().Changed("notes") {
				notes, _ := cmd.Flags().GetString("notes")
				meta.Notes = &notes
			}
			signer, req, err := authorize(cmd, "mark", markRequest{Challenge: key, ProofRef: proof, Metadata: meta})
			if err != nil {
				return err
			}
			return a.withNode(cmd.Context(), func(n *node) error {
				if err := n.svc.MarkSessionComplete(cmd.Context(), signer, req.Challenge, req.ProofRef, req.Metadata); err != nil {
					return err
				}
				c, err := n.svc.Challenge(cmd.Context(), key)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "session %d/%d recorded\n", c.CompletedSessions, c.TotalSessions)
				return nil
			})
		},
	}
	keyFlag(cmd, "verifier")
	cmd.Flags().String("proof", "", "content identifier of the proof (required)")
	cmd.Flags().Uint16("minutes", 0, "session length in minutes")
	cmd.Flags().String("location", "", "where the session took place")
	cmd.Flags().String("notes", "", "free-form notes")
	_ = cmd.MarkFlagRequired("proof")
	return cmd
}

func finalizeCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "finalize <challenge>",
		Short: "Settle a finished challenge",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := statekey.ParseKey(args[0])
			if err != nil {
				return err
			}
			signer, key, err := authorize(cmd, "finalize", key)
			if err != nil {
				return err
			}
			return a.withNode(cmd.Context(), func(n *node) error {
				result, err := n.svc.FinalizeChallenge(cmd.Context(), signer, key)
				if err != nil {
					return err
				}
				return printJSON(cmd, struct {
					Outcome          string
					CompletionRateBP uint16
					Refund           uint64
					Penalty          uint64
					Fee              uint64
					RewardPool       uint64
					Charity          uint64
				}{
					Outcome:          result.Outcome.String(),
					CompletionRateBP: result.CompletionRateBP,
					Refund:           result.Refund,
					Penalty:          result.Penalty,
					Fee:              result.Fee,
					RewardPool:       result.RewardPool,
					Charity:          result.Charity,
				})
			})
		},
	}
	keyFlag(cmd, "participant")
	return cmd
}

func graceCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "grace <challenge>",
		Short: "Extend a challenge by three days",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := statekey.ParseKey(args[0])
			if err != nil {
				return err
			}
			reason, _ := cmd.Flags().GetString("reason")
			signer, req, err := authorize(cmd, "grace", graceRequest{Challenge: key, Reason: reason})
			if err != nil {
				return err
			}
			return a.withNode(cmd.Context(), func(n *node) error {
				if err := n.svc.UseGracePeriod(cmd.Context(), signer, req.Challenge, req.Reason); err != nil {
					return err
				}
				c, err := n.svc.Challenge(cmd.Context(), key)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "ends %s, %d grace periods left\n", c.EndTime, c.MaxGracePeriods-c.GracePeriodsUsed)
				return nil
			})
		},
	}
	keyFlag(cmd, "participant")
	cmd.Flags().String("reason", "", "why the extension is needed")
	return cmd
}

func distributeCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "distribute <epoch>",
		Short: "Release a reward epoch",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			epoch, err := parseUint(args[0], 64)
			if err != nil {
				return fmt.Errorf("epoch: %w", err)
			}
			authority, epoch, err := authorize(cmd, "distribute", epoch)
			if err != nil {
				return err
			}
			return a.withNode(cmd.Context(), func(n *node) error {
				d, err := n.svc.DistributeRewards(cmd.Context(), authority, epoch)
				if err != nil {
					return err
				}
				return printJSON(cmd, d.Summary(a.clock().Now()))
			})
		},
	}
	keyFlag(cmd, "authority")
	return cmd
}

func claimCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "claim",
		Short: "Claim the reward share of the last epoch",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			participant, _, err := authorize(cmd, "claim", struct{}{})
			if err != nil {
				return err
			}
			return a.withNode(cmd.Context(), func(n *node) error {
				claim, err := n.svc.ClaimRewards(cmd.Context(), participant)
				if err != nil {
					return err
				}
				return printJSON(cmd, claim)
			})
		},
	}
	keyFlag(cmd, "participant")
	return cmd
}
