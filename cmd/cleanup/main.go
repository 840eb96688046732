package main

import (
	"flag"
	"log"
	"os"
	"time"

	"github.com/qs3c/normqa_go_server/config"
	"github.com/qs3c/normqa_go_server/internal/database"
	"github.com/qs3c/normqa_go_server/internal/model"
	"github.com/qs3c/normqa_go_server/internal/repository"
	"github.com/qs3c/normqa_go_server/internal/service"
)

var (
	dryRun       = flag.Bool("dry-run", true, "Dry run mode, report without changing anything")
	expireStale  = flag.Bool("expire-stale", true, "Release pending reservations past their expiry")
	auditLedger  = flag.Bool("audit", true, "Verify balance == sum of completed and pending transactions per user")
	cleanUsage   = flag.Bool("clean-usage", true, "Delete free-tier counters older than the retention window")
	usageKeepDay = flag.Int("usage-keep-days", 7, "Days of free-tier counters to keep")
)

func main() {
	flag.Parse()

	log.Println("🧹 Starting ledger maintenance...")
	log.Printf("Mode: dry-run=%v", *dryRun)

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	db, err := database.NewMySQL(&cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	userRepo := repository.NewUserRepository(db)
	txnRepo := repository.NewTransactionRepository(db)
	usageRepo := repository.NewUsageRepository(db)
	ledger := service.NewLedgerService(userRepo, txnRepo, cfg)

	// 1. 释放过期预扣
	if *expireStale {
		expire := time.Duration(cfg.Billing.ReservationExpire) * time.Minute
		stale, err := txnRepo.ListStalePending(time.Now().Add(-expire))
		if err != nil {
			log.Fatalf("Failed to list stale reservations: %v", err)
		}
		log.Printf("\n⏳ Stale pending reservations: %d", len(stale))
		if !*dryRun {
			released, err := ledger.ExpireStaleReservations()
			if err != nil {
				log.Printf("Release failed: %v", err)
			} else {
				log.Printf("Released %d reservations", released)
			}
		}
	}

	// 2. 对账：逐用户校验余额与流水之和
	if *auditLedger {
		log.Println("\n🧾 Auditing ledger invariant...")
		var users []model.User
		if err := db.Find(&users).Error; err != nil {
			log.Fatalf("Failed to list users: %v", err)
		}
		broken := 0
		for _, u := range users {
			if err := ledger.Audit(u.ID); err != nil {
				log.Printf("  ❌ %v", err)
				broken++
			}
		}
		if broken == 0 {
			log.Printf("  ✅ %d users, all balanced", len(users))
		} else {
			log.Printf("  ❌ %d of %d users out of balance", broken, len(users))
		}
	}

	// 3. 清理过期额度计数
	if *cleanUsage {
		cutoff := model.UsageDay(time.Now().AddDate(0, 0, -*usageKeepDay))
		log.Printf("\n📅 Cleaning usage counters before %s...", cutoff)
		if *dryRun {
			log.Println("  (dry-run, skipped)")
		} else {
			deleted, err := usageRepo.DeleteBefore(cutoff)
			if err != nil {
				log.Printf("Cleanup failed: %v", err)
			} else {
				log.Printf("  Deleted %d rows", deleted)
			}
		}
	}

	log.Println("\n✅ Maintenance complete")
}
