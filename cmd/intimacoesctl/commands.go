package main

import (
	"context"
	"crm_advocacia_go/config"
	"crm_advocacia_go/db"
	"crm_advocacia_go/models"
	"crm_advocacia_go/services"
	"crm_advocacia_go/services/jobs"
	"crm_advocacia_go/services/judicial"
	"crm_advocacia_go/services/nlp"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
)

// pipeline holds what the one-shot commands need
type pipeline struct {
	cfg           *config.Config
	credentials   *services.CredentialService
	intimacoes    *services.IntimacaoService
	notifications *services.NotificationService
	queue         *jobs.ReprocessQueue
}

func openPipeline(cfg *config.Config, withQueue bool) (*pipeline, error) {
	vault, err := services.NewCredentialVault(cfg.CredentialEncryptionKey)
	if err != nil {
		return nil, err
	}

	if cfg.TursoDatabaseURL != "" {
		err = db.InitializeRemote(cfg.TursoDatabaseURL, cfg.TursoAuthToken, cfg.Environment)
	} else {
		err = db.Initialize(cfg.DBPath, cfg.Environment)
	}
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&models.Practitioner{}, &models.Intimacao{}, &models.SyncHistory{}, &models.Notification{}); err != nil {
		return nil, err
	}

	p := &pipeline{
		cfg:           cfg,
		credentials:   services.NewCredentialService(db.DB, vault),
		intimacoes:    services.NewIntimacaoService(db.DB),
		notifications: services.NewNotificationService(db.DB),
	}
	if withQueue {
		client := nlp.NewClient(cfg.NLPServiceURL, cfg.NLPTimeout)
		p.queue = jobs.NewReprocessQueue(client, p.intimacoes, cfg.QueueDelay)
	}
	return p, nil
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func collectCmd() *cobra.Command {
	var practitionerID, from, to string
	var noWait bool

	cmd := &cobra.Command{
		Use:   "collect",
		Short: "Collect intimações now, for one practitioner or all of them",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			loc := cfg.Location()

			dateFrom, err := parseFlagDate(from, loc)
			if err != nil {
				return fmt.Errorf("--from: %w", err)
			}
			dateTo, err := parseFlagDate(to, loc)
			if err != nil {
				return fmt.Errorf("--to: %w", err)
			}

			p, err := openPipeline(cfg, true)
			if err != nil {
				return err
			}
			defer db.Close()
			defer p.queue.Stop()

			services.InitializeStorage(cfg)
			profile, err := judicial.LoadProfile(cfg.PortalProfilePath)
			if err != nil {
				return err
			}
			provider := judicial.NewComunicaService(profile.WithOverrides(cfg.PortalBaseURL, cfg.ChromePath), nil)

			collector := jobs.NewCollector(p.credentials, p.intimacoes, p.notifications,
				services.NewIntimacaoArchive(services.Storage), p.queue, provider, jobs.CollectorConfig{
					DefaultLookbackDays:   cfg.DefaultLookback,
					NewLawyerLookbackDays: cfg.NewLawyerLookback,
					Location:              loc,
				})

			ctx, cancel := signalContext()
			defer cancel()

			out := cmd.OutOrStdout()
			if practitionerID != "" {
				res := collector.ManualCollect(ctx, practitionerID, dateFrom, dateTo)
				fmt.Fprintln(out, res.Message)
				if !res.Success {
					return fmt.Errorf("collection failed")
				}
			} else {
				if dateFrom != nil || dateTo != nil {
					return fmt.Errorf("--from/--to require --practitioner")
				}
				if err := collector.CollectForAllPractitioners(ctx); err != nil {
					return err
				}
			}

			if noWait {
				return nil
			}
			fmt.Fprintf(out, "Waiting for %d queued intimações...\n", p.queue.Depth())
			waitQueue(ctx, p.queue)
			return nil
		},
	}

	cmd.Flags().StringVarP(&practitionerID, "practitioner", "p", "", "Practitioner (user) id; all active practitioners when empty")
	cmd.Flags().StringVar(&from, "from", "", "Start date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&to, "to", "", "End date (YYYY-MM-DD)")
	cmd.Flags().BoolVar(&noWait, "no-wait", false, "Exit without waiting for NLP processing")

	return cmd
}

// waitQueue blocks until the queue drains or ctx ends
func waitQueue(ctx context.Context, queue *jobs.ReprocessQueue) {
	done := make(chan struct{})
	go func() {
		queue.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
	}
}

func deadlinesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "deadlines",
		Short: "Send today's deadline alerts",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			p, err := openPipeline(cfg, false)
			if err != nil {
				return err
			}
			defer db.Close()

			ctx, cancel := signalContext()
			defer cancel()

			alerter := jobs.NewDeadlineAlerter(p.credentials, p.intimacoes, p.notifications, cfg)
			summary, err := alerter.SendDeadlineAlerts(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d practitioners, %d notifications, %d emails\n",
				summary.Practitioners, summary.Notifications, summary.Emails)
			return nil
		},
	}
}

func reindexCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reindex",
		Short: "Rebuild the full-text search index over intimações",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			if _, err := openPipeline(cfg, false); err != nil {
				return err
			}
			defer db.Close()

			if err := services.InitializeSearchIndex(db.DB); err != nil {
				return fmt.Errorf("search index unavailable: %w", err)
			}
			return services.RebuildSearchIndex(db.DB)
		},
	}
}

func deactivateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "deactivate <practitioner-id>",
		Short: "Stop scheduled collection for a practitioner",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			p, err := openPipeline(cfg, false)
			if err != nil {
				return err
			}
			defer db.Close()

			return deactivate(cmd.OutOrStdout(), p.credentials, args[0])
		},
	}
}

func deactivate(out io.Writer, credentials *services.CredentialService, practitionerID string) error {
	if err := credentials.Deactivate(practitionerID); err != nil {
		return fmt.Errorf("deactivate %s: %w", practitionerID, err)
	}
	fmt.Fprintf(out, "Practitioner %s deactivated\n", practitionerID)
	return nil
}

func genkeyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "genkey",
		Short: "Print a random value for CREDENTIAL_ENCRYPTION_KEY",
		RunE: func(cmd *cobra.Command, args []string) error {
			secret := config.GenerateSecureSecret()
			if secret == "" {
				return fmt.Errorf("failed to generate secret")
			}
			fmt.Fprintln(cmd.OutOrStdout(), secret)
			return nil
		},
	}
}

func encryptCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "encrypt-check",
		Short: "Verify every stored portal password decrypts with the configured key",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			p, err := openPipeline(cfg, false)
			if err != nil {
				return err
			}
			defer db.Close()

			practitioners, err := p.credentials.ListActive()
			if err != nil {
				return err
			}
			failed := checkCredentials(cmd.OutOrStdout(), p.credentials, practitioners)
			if failed > 0 {
				return fmt.Errorf("%d of %d credential sets could not be decrypted", failed, len(practitioners))
			}
			return nil
		},
	}
}

// checkCredentials reports each practitioner without printing any secret
func checkCredentials(out io.Writer, credentials *services.CredentialService, practitioners []models.Practitioner) int {
	failed := 0
	for i := range practitioners {
		pr := &practitioners[i]
		if _, err := credentials.PortalPassword(pr); err != nil {
			failed++
			fmt.Fprintf(out, "FAIL  %s  OAB %s: %v\n", pr.ID, pr.OABNumber, err)
			continue
		}
		fmt.Fprintf(out, "OK    %s  OAB %s\n", pr.ID, pr.OABNumber)
	}
	fmt.Fprintf(out, "%s\n%d checked, %d failed\n", strings.Repeat("-", 40), len(practitioners), failed)
	return failed
}

func parseFlagDate(value string, loc *time.Location) (*time.Time, error) {
	return services.ParseOptionalDate(value, loc)
}
