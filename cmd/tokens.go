package cmd

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/habedi/totempark/auth"
	"github.com/habedi/totempark/config"
	"github.com/habedi/totempark/pkg/pool"
	"github.com/habedi/totempark/pkg/validation"
	"github.com/rs/zerolog/log"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

func tokensCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tokens",
		Short: "Inspect and refresh sellers' Mercado Pago tokens",
	}
	cmd.AddCommand(tokensStatusCmd(), tokensWarmCmd())
	return cmd
}

func tokensStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the link state and token age of every seller",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			st, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer st.Close()

			creds, err := st.Credentials.List(cmd.Context())
			if err != nil {
				return err
			}
			if len(creds) == 0 {
				cmd.Println("No sellers found.")
				return nil
			}

			svc := auth.NewService(st.Credentials, nil, lifecycleOptions(cfg))
			table := newTable(cmd, "Seller ID", "Linked", "Refreshed At", "Age", "Stale")
			for i := range creds {
				c := creds[i]
				row := []string{strconv.FormatUint(uint64(c.SellerID), 10), "false", "-", "-", "-"}
				if c.Linked() {
					row[1] = "true"
					row[2] = c.RefreshedAt.Format(time.RFC3339)
					row[3] = formatAge(svc.Age(c))
					row[4] = strconv.FormatBool(svc.Stale(c))
				}
				table.Append(row)
			}
			table.Render()
			cmd.Printf("Staleness threshold: %s\n", formatAge(svc.Threshold()))
			return nil
		},
	}
}

// tokensWarmCmd refreshes stale tokens ahead of device demand. Fresh tokens
// are left alone, exactly as a device request would.
func tokensWarmCmd() *cobra.Command {
	var workers int

	cmd := &cobra.Command{
		Use:   "warm",
		Short: "Refresh the stale tokens of every linked seller",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validation.ValidateWorkerCount(workers); err != nil {
				return err
			}
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if cfg.MPAppID == "" || cfg.MPSecretKey == "" {
				return errors.New("MP_APP_ID and MP_SECRET_KEY are required to refresh tokens")
			}
			st, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer st.Close()

			creds, err := st.Credentials.List(cmd.Context())
			if err != nil {
				return err
			}
			var linked []uint
			for i := range creds {
				if creds[i].Linked() {
					linked = append(linked, creds[i].SellerID)
				}
			}
			if len(linked) == 0 {
				cmd.Println("No linked sellers.")
				return nil
			}

			svc := auth.NewService(st.Credentials, mercadoPago(cfg), lifecycleOptions(cfg))
			summary := warmTokens(cmd, svc, linked, workers)

			cmd.Printf("Fresh: %d, refreshed: %d, kept: %d\n",
				summary.counts[auth.Fresh], summary.counts[auth.Refreshed], summary.counts[auth.Kept])
			for _, id := range summary.failedIDs() {
				cmd.PrintErrf("Seller %d: %v\n", id, summary.failed[id])
			}
			if len(summary.failed) > 0 {
				return fmt.Errorf("%d of %d sellers could not be refreshed", len(summary.failed), len(linked))
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&workers, "workers", "w", 4, "Number of sellers refreshed concurrently [1-20]")
	return cmd
}

type warmSummary struct {
	mu     sync.Mutex
	counts map[auth.Outcome]int
	failed map[uint]error
}

func (s *warmSummary) failedIDs() []uint {
	ids := make([]uint, 0, len(s.failed))
	for id := range s.failed {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func warmTokens(cmd *cobra.Command, svc auth.TokenObtainer, sellerIDs []uint, workers int) *warmSummary {
	summary := &warmSummary{counts: map[auth.Outcome]int{}, failed: map[uint]error{}}

	bar := progressbar.NewOptions(len(sellerIDs),
		progressbar.OptionSetWriter(cmd.ErrOrStderr()),
		progressbar.OptionSetDescription("Warming tokens..."),
		progressbar.OptionSetWidth(20),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
	)

	work := func(ctx context.Context, id uint) error {
		res, err := svc.Obtain(ctx, id)
		summary.mu.Lock()
		defer summary.mu.Unlock()
		switch {
		case err != nil:
			summary.failed[id] = err
		case res.Cause != nil:
			summary.counts[res.Outcome]++
			summary.failed[id] = res.Cause
		default:
			summary.counts[res.Outcome]++
		}
		return err
	}

	errs := pool.Run(cmd.Context(), sellerIDs, workers, work, func(id uint, err error) {
		_ = bar.Add(1)
	})
	_ = bar.Finish()
	if len(errs) > 0 {
		log.Warn().Int("errors", len(errs)).Msg("Some sellers failed to warm")
	}
	return summary
}

func lifecycleOptions(cfg *config.Config) auth.Options {
	return auth.Options{
		StaleThreshold: cfg.TokenStaleThreshold,
		RefreshTimeout: cfg.RefreshTimeout,
	}
}

// formatAge renders d as hours and minutes, e.g. 5h30m.
func formatAge(d time.Duration) string {
	if d < time.Minute {
		return "<1m"
	}
	d = d.Truncate(time.Minute)
	h, m := int(d/time.Hour), int((d%time.Hour)/time.Minute)
	if h == 0 {
		return fmt.Sprintf("%dm", m)
	}
	return fmt.Sprintf("%dh%02dm", h, m)
}
