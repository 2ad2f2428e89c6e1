package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/forgeqa/forgeqa/internal/app"
	"github.com/forgeqa/forgeqa/internal/audit"
	"github.com/forgeqa/forgeqa/internal/capability"
	"github.com/forgeqa/forgeqa/internal/permission"
	"github.com/forgeqa/forgeqa/internal/preset"
	"github.com/forgeqa/forgeqa/internal/project"
	"github.com/forgeqa/forgeqa/internal/users"
	"github.com/forgeqa/forgeqa/internal/workspace"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	ledgerOpts := []audit.Option{audit.WithLogger(logger)}
	if cfg.PGDSN != "" {
		dbpool, err := pgxpool.New(ctx, cfg.PGDSN)
		if err != nil {
			logger.Error("connect postgres", slog.Any("error", err))
			os.Exit(1)
		}
		if err := dbpool.Ping(ctx); err != nil {
			logger.Error("ping postgres", slog.Any("error", err))
			os.Exit(1)
		}
		defer dbpool.Close()
		ledgerOpts = append(ledgerOpts, audit.WithSink(audit.NewRecorder(dbpool)))
	}

	catalog := capability.Default()
	presets := preset.Default(catalog)
	ledger := audit.NewLedger(ledgerOpts...)
	svc := workspace.NewService(logger, users.NewStore(), project.NewStore(), presets, permission.NewResolver(catalog, presets), ledger)

	if err := runDemo(ctx, logger, svc, catalog); err != nil {
		logger.Error("demo run", slog.Any("error", err))
		os.Exit(1)
	}

	if err := writeExport(cfg, ledger); err != nil {
		logger.Error("write export", slog.Any("error", err))
		os.Exit(1)
	}
}

// runDemo seeds a small team and walks the dashboard's write path once:
// project creation, permission edits, an access request, and a rejected
// mutation surfacing its reason.
func runDemo(ctx context.Context, logger *slog.Logger, svc *workspace.Service, catalog *capability.Catalog) error {
	dana, err := svc.Bootstrap("Dana Reeve", "dana@forgeqa.dev", users.RoleManager)
	if err != nil {
		return err
	}
	priya, err := svc.CreateUser(ctx, dana.ID, workspace.CreateUserInput{Name: "Priya Shah", Email: "priya@forgeqa.dev", Role: users.RoleEmployee})
	if err != nil {
		return err
	}
	miguel, err := svc.CreateUser(ctx, dana.ID, workspace.CreateUserInput{Name: "Miguel Ortiz", Email: "miguel@forgeqa.dev", Role: users.RoleEmployee})
	if err != nil {
		return err
	}
	sofia, err := svc.CreateUser(ctx, dana.ID, workspace.CreateUserInput{Name: "Sofia Lindqvist", Email: "sofia@forgeqa.dev", Role: users.RoleEmployee})
	if err != nil {
		return err
	}

	proj, err := svc.CreateProject(ctx, dana.ID, workspace.CreateProjectInput{
		Name:        "Checkout Regression",
		Description: "End-to-end regression suite for the checkout flow.",
		OwnerID:     priya.ID,
		MemberIDs:   []int64{miguel.ID},
	})
	if err != nil {
		return err
	}

	if _, err := svc.ApplyPreset(ctx, dana.ID, proj.ID, miguel.ID, preset.NameSeniorQA); err != nil {
		return err
	}
	if _, err := svc.SetCapability(ctx, dana.ID, proj.ID, priya.ID, capability.KeyApproveAccessRequests, true); err != nil {
		return err
	}

	req, err := svc.RequestAccess(ctx, sofia.ID, proj.ID)
	if err != nil {
		return err
	}
	if _, err := svc.ApproveAccess(ctx, priya.ID, req.ID); err != nil {
		return err
	}

	// a mutation the resolver rejects: state stays untouched
	if _, err := svc.ApplyPreset(ctx, dana.ID, proj.ID, priya.ID, preset.NameViewer); err != nil {
		logger.Info("mutation rejected", slog.String("reason", err.Error()))
	}

	printMatrix(svc, catalog, proj.ID)
	return nil
}

// printMatrix renders the effective capability matrix the UI would use to
// gate its controls.
func printMatrix(svc *workspace.Service, catalog *capability.Catalog, projectID int64) {
	proj, err := svc.Projects().Get(projectID)
	if err != nil {
		return
	}
	fmt.Printf("\nEffective permissions for %q:\n", proj.Name)
	for _, memberID := range proj.MemberIDs() {
		member, err := svc.Users().Get(memberID)
		if err != nil {
			continue
		}
		effective, err := svc.EffectivePermissions(projectID, memberID)
		if err != nil {
			continue
		}
		fmt.Printf("  %-16s", member.Name)
		for _, def := range catalog.All() {
			mark := "-"
			if effective[def.Key] {
				mark = "x"
			}
			fmt.Printf(" %s", mark)
		}
		fmt.Println()
	}
	fmt.Print("  keys:           ")
	for _, def := range catalog.All() {
		fmt.Printf(" %c", def.Key[0])
	}
	fmt.Println()
}

func writeExport(cfg *app.Config, ledger *audit.Ledger) error {
	data := audit.ExportCSV(ledger.Query(audit.Filter{}))
	if cfg.ExportPath == "-" {
		fmt.Printf("\n%s", data)
		return nil
	}
	return os.WriteFile(cfg.ExportPath, data, 0o644)
}
