package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"KhataLedger/internal/checksum"
	"KhataLedger/internal/config"
	"KhataLedger/internal/logger"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// stagedFile is the jsonb payload of one staging_imports row: everything the
// sync step needs to validate without re-reading the original file.
type stagedFile struct {
	Headers []string    `json:"headers"`
	Records []RawRecord `json:"records"`
}

// readUploadedFile pulls the multipart "file" part, enforcing the size cap
// before buffering. Returns the raw bytes, original name and sha256 hex.
func readUploadedFile(w http.ResponseWriter, r *http.Request) ([]byte, string, string, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, config.MaxUploadBytes)
	if err := r.ParseMultipartForm(config.MaxUploadBytes); err != nil {
		respondError(w, http.StatusBadRequest, "file too large or malformed multipart body")
		return nil, "", "", false
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		respondError(w, http.StatusBadRequest, "no file uploaded")
		return nil, "", "", false
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		respondError(w, http.StatusBadRequest, "failed to read uploaded file")
		return nil, "", "", false
	}
	if len(data) == 0 {
		respondError(w, http.StatusBadRequest, "uploaded file is empty")
		return nil, "", "", false
	}
	return data, header.Filename, checksum.Digest(data), true
}

// priorImport looks for an earlier completed import of the same bytes.
func priorImport(ctx context.Context, pool *pgxpool.Pool, hash string) (id string, importedAt time.Time, found bool, err error) {
	err = pool.QueryRow(ctx, `
		SELECT id, created_at FROM import_logs WHERE file_hash = $1`, hash).
		Scan(&id, &importedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", time.Time{}, false, nil
	}
	if err != nil {
		return "", time.Time{}, false, err
	}
	return id, importedAt, true, nil
}

func saveImportLog(ctx context.Context, pool *pgxpool.Pool, fileName, hash, importType string, total int, res ReconcileResult, rowErrs []RowError) (string, string, error) {
	allErrs := append(append([]RowError{}, rowErrs...), res.Errors...)
	errJSON, _ := json.Marshal(allErrs)
	status := deriveImportStatus(res.Processed, res.Duplicates, len(allErrs))

	var id string
	err := pool.QueryRow(ctx, `
		INSERT INTO import_logs (file_name, file_hash, import_type, total_rows, imported_rows, skipped_rows, failed_rows, error_log, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8::jsonb, $9)
		RETURNING id`,
		fileName, hash, importType, total, res.Processed, res.Duplicates, len(allErrs), string(errJSON), status).
		Scan(&id)
	return id, status, err
}

// UploadImport stages a spreadsheet for later sync: parse, classify, persist
// the raw rows. Nothing touches customers/invoices/payments until sync.
func UploadImport(pool *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		data, fileName, hash, ok := readUploadedFile(w, r)
		if !ok {
			return
		}

		if _, at, found, err := priorImport(ctx, pool, hash); err != nil {
			respondError(w, http.StatusInternalServerError, "duplicate check failed")
			return
		} else if found {
			respondJSON(w, http.StatusConflict, map[string]interface{}{
				"success":    false,
				"error":      "this file has already been imported",
				"importedAt": at.Format(time.RFC3339),
			})
			return
		}

		var stagedID string
		var stagedStatus string
		err := pool.QueryRow(ctx, `
			SELECT id, status FROM staging_imports WHERE file_hash = $1
			ORDER BY created_at DESC LIMIT 1`, hash).Scan(&stagedID, &stagedStatus)
		if err == nil {
			respondJSON(w, http.StatusConflict, map[string]interface{}{
				"success":  false,
				"error":    "this file is already staged",
				"importId": stagedID,
				"status":   stagedStatus,
			})
			return
		}
		if !errors.Is(err, pgx.ErrNoRows) {
			respondError(w, http.StatusInternalServerError, "duplicate check failed")
			return
		}

		headers, rows, err := ParseSpreadsheet(data, fileExt(fileName))
		if err != nil {
			if errors.Is(err, errUnsupportedFile) {
				respondError(w, http.StatusBadRequest, "unsupported file type, expected .csv, .xlsx or .xls")
				return
			}
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}

		detected := DetectFileType(headers)
		if detected == "" {
			respondError(w, http.StatusBadRequest, "could not detect file type from column headers")
			return
		}

		records := RowsToRecords(headers, rows)
		payload, err := json.Marshal(stagedFile{Headers: headers, Records: records})
		if err != nil {
			respondError(w, http.StatusInternalServerError, "failed to stage file")
			return
		}

		var importID string
		err = pool.QueryRow(ctx, `
			INSERT INTO staging_imports (file_name, file_hash, detected_type, status, raw_rows)
			VALUES ($1, $2, $3, 'pending', $4::jsonb)
			RETURNING id`, fileName, hash, detected, string(payload)).Scan(&importID)
		if err != nil {
			// The unique file_hash is the backstop for two racing uploads of
			// the same file; the loser gets the same conflict answer as the
			// pre-check above.
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == "23505" {
				respondJSON(w, http.StatusConflict, map[string]interface{}{
					"success": false,
					"error":   "this file is already staged",
				})
				return
			}
			respondError(w, http.StatusInternalServerError, "failed to stage file")
			return
		}

		logger.LogAudit(fmt.Sprintf("staged import %s file=%s type=%s rows=%d", importID, fileName, detected, len(records)))
		respondJSON(w, http.StatusOK, map[string]interface{}{
			"success":      true,
			"importId":     importID,
			"detectedType": detected,
			"totalRows":    len(records),
		})
	}
}

// SyncImport validates and reconciles a previously staged file. Re-syncing a
// processed import returns the stored outcome instead of reapplying rows.
func SyncImport(pool *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		importID := mux.Vars(r)["importId"]
		if _, err := uuid.Parse(importID); err != nil {
			respondError(w, http.StatusBadRequest, "importId must be a valid UUID")
			return
		}

		var fileName, detected, status string
		var rawRows []byte
		var processed, duplicates int
		var errLog []byte
		err := pool.QueryRow(ctx, `
			SELECT file_name, detected_type, status, raw_rows, processed_count, duplicate_count, COALESCE(error_log, '[]'::jsonb)
			FROM staging_imports WHERE id = $1`, importID).
			Scan(&fileName, &detected, &status, &rawRows, &processed, &duplicates, &errLog)
		if errors.Is(err, pgx.ErrNoRows) {
			respondError(w, http.StatusNotFound, "import not found")
			return
		}
		if err != nil {
			respondError(w, http.StatusInternalServerError, "failed to load staged import")
			return
		}

		if isSynced(status) {
			var prevErrs []RowError
			_ = json.Unmarshal(errLog, &prevErrs)
			respondJSON(w, http.StatusOK, map[string]interface{}{
				"success":        true,
				"alreadySynced":  true,
				"detectedType":   detected,
				"processedCount": processed,
				"duplicateCount": duplicates,
				"errors":         capErrors(prevErrs, config.MaxResponseErrorsSync),
			})
			return
		}

		// Claim the row before reconciling so two concurrent syncs of the
		// same import cannot both apply the batch.
		tag, err := pool.Exec(ctx, `
			UPDATE staging_imports SET status = 'processing'
			WHERE id = $1 AND status IN ('pending', 'failed')`, importID)
		if err != nil {
			respondError(w, http.StatusInternalServerError, "failed to claim staged import")
			return
		}
		if tag.RowsAffected() == 0 {
			respondError(w, http.StatusConflict, "import sync already in progress")
			return
		}

		var staged stagedFile
		if err := json.Unmarshal(rawRows, &staged); err != nil {
			_, _ = pool.Exec(ctx, `
				UPDATE staging_imports SET status = 'failed' WHERE id = $1`, importID)
			respondError(w, http.StatusInternalServerError, "staged rows are unreadable")
			return
		}

		var res ReconcileResult
		var rowErrs []RowError

		switch detected {
		case FileTypeCustomers:
			rows, errs := ValidateCustomerRows(staged.Headers, staged.Records)
			rowErrs = errs
			if len(rows) > 0 {
				res = ReconcileCustomersMerge(ctx, pool, rows, "import")
			}
		case FileTypeLedger:
			rows, errs := ValidateLedgerRows(staged.Headers, staged.Records)
			rowErrs = errs
			if len(rows) > 0 {
				res = ReconcileLedgerRows(ctx, pool, rows, "import")
			}
		case FileTypeInvoices:
			rows, errs := ValidateInvoiceRows(staged.Headers, staged.Records)
			rowErrs = errs
			if len(rows) > 0 {
				res = ReconcileInvoiceRows(ctx, pool, rows, "import", true)
			}
		case FileTypeProducts:
			// Catalog files are recognized but never posted to the ledger.
			if err := markProcessed(ctx, pool, importID, ReconcileResult{}, nil); err != nil {
				respondError(w, http.StatusInternalServerError, "failed to record sync outcome")
				return
			}
			respondJSON(w, http.StatusOK, map[string]interface{}{
				"success":        true,
				"detectedType":   detected,
				"processedCount": 0,
				"duplicateCount": 0,
				"message":        "product catalogs are not posted to the ledger",
			})
			return
		default:
			_, _ = pool.Exec(ctx, `
				UPDATE staging_imports SET status = 'failed' WHERE id = $1`, importID)
			respondError(w, http.StatusBadRequest, fmt.Sprintf("unknown staged type %q", detected))
			return
		}

		if res.Processed == 0 && res.Duplicates == 0 && len(staged.Records) > 0 {
			allErrs := append(append([]RowError{}, rowErrs...), res.Errors...)
			errJSON, _ := json.Marshal(allErrs)
			_, uerr := pool.Exec(ctx, `
				UPDATE staging_imports
				SET status = 'failed', error_log = $1::jsonb
				WHERE id = $2`, string(errJSON), importID)
			if uerr != nil {
				respondError(w, http.StatusInternalServerError, "failed to record sync outcome")
				return
			}
			respondJSON(w, http.StatusUnprocessableEntity, map[string]interface{}{
				"success":      false,
				"error":        "no valid rows found",
				"detectedType": detected,
				"errors":       capErrors(allErrs, config.MaxResponseErrorsSync),
			})
			return
		}

		allErrs := append(append([]RowError{}, rowErrs...), res.Errors...)
		if err := markProcessed(ctx, pool, importID, res, allErrs); err != nil {
			respondError(w, http.StatusInternalServerError, "failed to record sync outcome")
			return
		}

		logger.LogAudit(fmt.Sprintf("synced import %s file=%s type=%s processed=%d duplicates=%d errors=%d",
			importID, fileName, detected, res.Processed, res.Duplicates, len(allErrs)))
		respondJSON(w, http.StatusOK, map[string]interface{}{
			"success":        true,
			"detectedType":   detected,
			"processedCount": res.Processed,
			"duplicateCount": res.Duplicates,
			"errorCount":     len(allErrs),
			"errors":         capErrors(allErrs, config.MaxResponseErrorsSync),
		})
	}
}

// stagingStatus maps a sync outcome onto the staging row's terminal status:
// clean runs are processed, runs with row-level errors are partial.
func stagingStatus(errCount int) string {
	if errCount > 0 {
		return "partial"
	}
	return "processed"
}

// isSynced reports whether a staging row already holds a terminal applied
// state; re-syncing such a row replays the stored outcome.
func isSynced(status string) bool {
	return status == "processed" || status == "partial"
}

func markProcessed(ctx context.Context, pool *pgxpool.Pool, importID string, res ReconcileResult, errs []RowError) error {
	errJSON, _ := json.Marshal(errs)
	_, err := pool.Exec(ctx, `
		UPDATE staging_imports
		SET status = $1, processed_count = $2, duplicate_count = $3, error_log = $4::jsonb
		WHERE id = $5`, stagingStatus(len(errs)), res.Processed, res.Duplicates, string(errJSON), importID)
	return err
}

// ImportTallyParty imports a Tally Party Report in one shot: no staging step,
// party data is authoritative and locks the customer rows it creates.
func ImportTallyParty(pool *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		data, fileName, hash, ok := readUploadedFile(w, r)
		if !ok {
			return
		}
		if id, at, found, err := priorImport(ctx, pool, hash); err != nil {
			respondError(w, http.StatusInternalServerError, "duplicate check failed")
			return
		} else if found {
			respondJSON(w, http.StatusConflict, map[string]interface{}{
				"success":    false,
				"error":      "this file has already been imported",
				"importId":   id,
				"importedAt": at.Format(time.RFC3339),
			})
			return
		}

		headers, rows, err := ParseSpreadsheet(data, fileExt(fileName))
		if err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		records := RowsToRecords(headers, rows)
		partyRows, rowErrs := ValidateTallyPartyRows(headers, records)

		var res ReconcileResult
		if len(partyRows) > 0 {
			res = ReconcileCustomersAuthoritative(ctx, pool, partyRows, "tally")
		}

		logID, status, err := saveImportLog(ctx, pool, fileName, hash, "tally_party", len(records), res, rowErrs)
		if err != nil {
			respondError(w, http.StatusInternalServerError, "failed to record import")
			return
		}

		allErrs := append(append([]RowError{}, rowErrs...), res.Errors...)
		logger.LogAudit(fmt.Sprintf("tally party import %s file=%s imported=%d skipped=%d errors=%d",
			logID, fileName, res.Processed, res.Duplicates, len(allErrs)))
		respondJSON(w, http.StatusOK, map[string]interface{}{
			"success":  status != StatusFailed,
			"status":   status,
			"importId": logID,
			"imported": res.Processed,
			"skipped":  res.Duplicates,
			"failed":   len(allErrs),
			"errors":   capErrors(allErrs, config.MaxResponseErrorsSync),
		})
	}
}

// ImportTallySales imports a Tally Sales Register in one shot. Customers must
// already exist (a party import is expected first); unknown parties fail the
// row, never the batch.
func ImportTallySales(pool *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		data, fileName, hash, ok := readUploadedFile(w, r)
		if !ok {
			return
		}
		if id, at, found, err := priorImport(ctx, pool, hash); err != nil {
			respondError(w, http.StatusInternalServerError, "duplicate check failed")
			return
		} else if found {
			respondJSON(w, http.StatusConflict, map[string]interface{}{
				"success":    false,
				"error":      "this file has already been imported",
				"importId":   id,
				"importedAt": at.Format(time.RFC3339),
			})
			return
		}

		headers, rows, err := ParseSpreadsheet(data, fileExt(fileName))
		if err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		records := RowsToRecords(headers, rows)
		invoiceRows, rowErrs := ValidateTallySalesRows(headers, records)

		var res ReconcileResult
		if len(invoiceRows) > 0 {
			res = ReconcileInvoiceRows(ctx, pool, invoiceRows, "tally", false)
		}

		logID, status, err := saveImportLog(ctx, pool, fileName, hash, "tally_sales", len(records), res, rowErrs)
		if err != nil {
			respondError(w, http.StatusInternalServerError, "failed to record import")
			return
		}

		allErrs := append(append([]RowError{}, rowErrs...), res.Errors...)
		logger.LogAudit(fmt.Sprintf("tally sales import %s file=%s imported=%d skipped=%d errors=%d",
			logID, fileName, res.Processed, res.Duplicates, len(allErrs)))
		respondJSON(w, http.StatusOK, map[string]interface{}{
			"success":  status != StatusFailed,
			"status":   status,
			"importId": logID,
			"imported": res.Processed,
			"skipped":  res.Duplicates,
			"failed":   len(allErrs),
			"errors":   capErrors(allErrs, config.MaxResponseErrorsSync),
		})
	}
}
