package ledger

import (
	"log"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/jackc/pgx/v5/pgxpool"
)

func StartLedgerService(pool *pgxpool.Pool) {
	r := mux.NewRouter()

	// Loose spreadsheet pipeline: stage, then sync.
	r.HandleFunc("/ledger/import/upload", UploadImport(pool)).Methods(http.MethodPost)
	r.HandleFunc("/ledger/import/{importId}/sync", SyncImport(pool)).Methods(http.MethodPost)

	// Direct Tally imports.
	r.HandleFunc("/ledger/import/tally/party", ImportTallyParty(pool)).Methods(http.MethodPost)
	r.HandleFunc("/ledger/import/tally/sales", ImportTallySales(pool)).Methods(http.MethodPost)

	// Strict three-stage XML pipeline.
	r.HandleFunc("/ledger/upload/status", GetUploadStatus(pool)).Methods(http.MethodGet)
	r.HandleFunc("/ledger/upload/customers", UploadCustomersXML(pool)).Methods(http.MethodPost)
	r.HandleFunc("/ledger/upload/bills", UploadBillsXML(pool)).Methods(http.MethodPost)
	r.HandleFunc("/ledger/upload/payments", UploadPaymentsXML(pool)).Methods(http.MethodPost)
	r.HandleFunc("/ledger/upload/{id}/errors", UploadErrorReport(pool)).Methods(http.MethodGet)

	// Derived ledger reads and manual corrections.
	r.HandleFunc("/ledger/dashboard", Dashboard(pool)).Methods(http.MethodGet)
	r.HandleFunc("/ledger/settlements", RecordSettlement(pool)).Methods(http.MethodPost)
	r.HandleFunc("/ledger/mobile/verify", VerifyMobile(pool)).Methods(http.MethodPost)

	log.Println("Ledger Service started on :6143")
	if err := http.ListenAndServe(":6143", r); err != nil {
		log.Fatalf("Ledger Service failed: %v", err)
	}
}
