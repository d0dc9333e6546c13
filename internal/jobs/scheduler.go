package jobs

import (
	"fmt"
	"log"

	"KhataLedger/internal/config"
	"KhataLedger/internal/logger"
	"KhataLedger/internal/serviceiface"

	"github.com/jackc/pgx/v5/pgxpool"
)

type CronService struct {
	config map[string]interface{}
	db     *pgxpool.Pool
}

func NewCronService(cfg map[string]interface{}, db *pgxpool.Pool) serviceiface.Service {
	return &CronService{
		config: cfg,
		db:     db,
	}
}

func (s *CronService) Name() string {
	return "cron"
}

func (s *CronService) Start() error {
	log.Println("Starting cron service...")

	fixCfg := NewDefaultFixConfig()
	if s.config != nil {
		if schedule, ok := s.config["fix_schedule"].(string); ok && schedule != "" {
			fixCfg.Schedule = schedule
		}
		if batchSize, ok := s.config["fix_batch_size"].(int); ok && batchSize > 0 {
			fixCfg.BatchSize = batchSize
		}
		if tz, ok := s.config["time_zone"].(string); ok && tz != "" {
			fixCfg.TimeZone = tz
		}
	}
	if fixCfg.BatchSize == 0 {
		fixCfg.BatchSize = config.FixBatchSize
	}

	if err := RunLedgerIntegrityScheduler(fixCfg, s.db); err != nil {
		return fmt.Errorf("failed to start ledger integrity scheduler: %v", err)
	}

	logger.LogAudit("Cron service started with ledger integrity fix scheduled")
	log.Println("Cron service started — Ledger Integrity Fix scheduled")
	return nil
}

func (s *CronService) Stop() error {
	log.Println("Cron service stopped.")
	return nil
}
