// roster/tools.go
package main

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/spf13/cobra"

	rosterapi "github.com/kwanta/matchday/roster/api"
	"github.com/kwanta/matchday/shared/config"
	rosterclient "github.com/kwanta/matchday/shared/service"
)

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create indexes or tables for the configured store backend",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadRosterServiceConfig()
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()

			st, err := openStore(ctx, cfg)
			if err != nil {
				return err
			}
			defer st.Close(context.Background())

			if err := st.EnsureSchema(ctx); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "schema ready for %s backend\n", cfg.StoreBackend)
			return nil
		},
	}
}

func tokenCmd() *cobra.Command {
	var userID, email, role string
	var ttl time.Duration
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint an organizer bearer token signed with JWT_SECRET",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadRosterServiceConfig()
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}
			tok, err := rosterapi.NewAuthenticator(cfg.JWTSecret).IssueToken(userID, email, role, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			return nil
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "Organizer user id")
	cmd.Flags().StringVar(&email, "email", "", "Organizer email")
	cmd.Flags().StringVar(&role, "role", rosterapi.RoleLeagueOwner, "Organizer role (super_admin or league_owner)")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "Token lifetime")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

// contendResult tallies the outcomes of a contention run.
type contendResult struct {
	Won    int
	Taken  int
	Failed int
	Errors []error
}

func contendCmd() *cobra.Command {
	var baseURL, matchID, teamID string
	var slot, n int
	cmd := &cobra.Command{
		Use:   "contend",
		Short: "Fire concurrent claims at one slot of a running server and report who won",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
			defer cancel()

			res := contend(ctx, rosterclient.NewRosterClient(baseURL), matchID, teamID, slot, n)
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "claims: %d  won: %d  slot_taken: %d  failed: %d\n", n, res.Won, res.Taken, res.Failed)
			for _, err := range res.Errors {
				fmt.Fprintf(out, "  error: %v\n", err)
			}
			if res.Won > 1 {
				return fmt.Errorf("slot %d was granted %d times", slot, res.Won)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&baseURL, "url", "http://localhost:8080", "Roster service base URL")
	cmd.Flags().StringVar(&matchID, "match", "", "Match id")
	cmd.Flags().StringVar(&teamID, "team", "", "Team id")
	cmd.Flags().IntVar(&slot, "slot", 1, "Slot number")
	cmd.Flags().IntVarP(&n, "n", "n", 20, "Number of concurrent claims")
	_ = cmd.MarkFlagRequired("match")
	_ = cmd.MarkFlagRequired("team")
	return cmd
}

// slotClaimer is the client call contend exercises.
type slotClaimer interface {
	ClaimSlot(ctx context.Context, req rosterclient.ClaimSlotRequest) (string, error)
}

func contend(ctx context.Context, client slotClaimer, matchID, teamID string, slot, n int) contendResult {
	var (
		mu  sync.Mutex
		res contendResult
		wg  sync.WaitGroup
	)
	start := make(chan struct{})
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			_, err := client.ClaimSlot(ctx, rosterclient.ClaimSlotRequest{
				MatchID:      matchID,
				TeamID:       teamID,
				SlotNumber:   slot,
				Name:         fmt.Sprintf("Contender %d", i+1),
				EmailOrPhone: fmt.Sprintf("contender%d@example.com", i+1),
			})

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				res.Won++
			case errors.Is(err, rosterclient.ErrSlotTaken):
				res.Taken++
			default:
				res.Failed++
				res.Errors = append(res.Errors, err)
			}
		}(i)
	}
	close(start)
	wg.Wait()
	return res
}
