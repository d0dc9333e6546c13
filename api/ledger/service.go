package ledger

import (
	"KhataLedger/internal/serviceiface"

	"github.com/jackc/pgx/v5/pgxpool"
)

type LedgerService struct {
	config map[string]interface{}
	pool   *pgxpool.Pool
}

func NewLedgerService(cfg map[string]interface{}, pool *pgxpool.Pool) serviceiface.Service {
	return &LedgerService{config: cfg, pool: pool}
}

func (s *LedgerService) Name() string {
	return "ledger"
}

func (s *LedgerService) Start() error {
	go StartLedgerService(s.pool)
	return nil
}

func (s *LedgerService) Stop() error {
	return nil
}
