package main

import (
	"alcyxob/fitflow/internal/domain"
	"alcyxob/fitflow/internal/flow"
	"alcyxob/fitflow/internal/repository"
	"alcyxob/fitflow/internal/secret"
	"alcyxob/fitflow/internal/service"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
)

func runStatus(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	backend, err := openBackend(ctx, cfg, logger.Named("storage"))
	if err != nil {
		return err
	}
	store := repository.NewRecordStore(backend, nil, secret.NewBox(cfg.Security.Passphrase), logger.Named("records"))
	defer store.Close()

	printStatus(cmd.OutOrStdout(), store.Snapshot(ctx))
	return nil
}

func printStatus(w io.Writer, snap repository.Snapshot) {
	fmt.Fprintf(w, "stage: %s\n", flow.Derive(service.FactsFromSnapshot(snap)))
	fmt.Fprintf(w, "  %-22s %s\n", domain.KeyCredential, present(snap.HasCredential))
	fmt.Fprintf(w, "  %-22s %s\n", domain.KeyProfile, present(snap.Profile != nil))
	fmt.Fprintf(w, "  %-22s %s\n", domain.KeyPlan, present(snap.Plan != nil))
	fmt.Fprintf(w, "  %-22s %s\n", domain.KeyProgress, present(snap.Progress != nil))
	if snap.Progress != nil {
		fmt.Fprintf(w, "completed: %d/%d days (%d%%)\n",
			snap.Progress.CompletedDays, domain.DaysPerCycle, snap.Progress.Percentage())
	}
}

func present(ok bool) string {
	if ok {
		return "present"
	}
	return "absent"
}

func runReset(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancel()

	backend, err := openBackend(ctx, cfg, logger.Named("storage"))
	if err != nil {
		return err
	}
	// Other processes only hear about it through shared transports.
	channel := openChannel(ctx, cfg, backend, nil, logger)
	store := repository.NewRecordStore(backend, channel, nil, logger.Named("records"))

	err = store.ClearAll(ctx)
	_ = channel.Close()
	_ = store.Close()
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "all records cleared")
	return nil
}
