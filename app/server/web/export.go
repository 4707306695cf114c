package web

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	log "github.com/go-pkgz/lgr"
	"github.com/xuri/excelize/v2"

	"github.com/arupa444/Connection-That-Grow/app/store"
)

// exportSheet is the worksheet name in exported workbooks, matching the
// layout of the legacy connections.xlsx file.
const exportSheet = "connections"

// exportHeader is the header row, column order is part of the file contract.
var exportHeader = []any{"Name", "Company", "Connection Link", "Email", "Phone No.", "Role"}

// handleDownload streams the full contact list as an xlsx workbook.
func (h *Handler) handleDownload(w http.ResponseWriter, r *http.Request) {
	contacts, err := h.store.List(r.Context())
	if err != nil {
		log.Printf("[ERROR] failed to list contacts for export: %v", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName("Sheet1", exportSheet); err != nil {
		log.Printf("[ERROR] failed to rename sheet: %v", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	header := exportHeader
	if err := f.SetSheetRow(exportSheet, "A1", &header); err != nil {
		log.Printf("[ERROR] failed to write header row: %v", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	for i, c := range contacts {
		cell, cellErr := excelize.CoordinatesToCellName(1, i+2)
		if cellErr != nil {
			log.Printf("[ERROR] failed to compute cell name: %v", cellErr)
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		row := []any{c.Name, c.Company, c.Link, c.Email, c.Phone, c.Role}
		if rowErr := f.SetSheetRow(exportSheet, cell, &row); rowErr != nil {
			log.Printf("[ERROR] failed to write row %d: %v", i+2, rowErr)
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="connections.xlsx"`)
	if err := f.Write(w); err != nil {
		log.Printf("[WARN] failed to stream workbook: %v", err)
	}
}

// ImportFile loads contacts from a legacy xlsx workbook into the store.
// The first row is treated as a header and skipped, rows without a name are
// ignored. Returns the number of imported contacts.
func ImportFile(ctx context.Context, st ContactStore, path string) (int, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return 0, fmt.Errorf("failed to open workbook %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	sheet := f.GetSheetName(0)
	if sheet == "" {
		return 0, fmt.Errorf("workbook %s has no sheets", path)
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return 0, fmt.Errorf("failed to read rows from %s: %w", path, err)
	}
	if len(rows) <= 1 {
		return 0, nil // empty or header-only workbook
	}

	imported := 0
	for i, row := range rows[1:] {
		contact := store.Contact{
			Name:    cellValue(row, 0),
			Company: cellValue(row, 1),
			Link:    cellValue(row, 2),
			Email:   cellValue(row, 3),
			Phone:   cellValue(row, 4),
			Role:    cellValue(row, 5),
		}
		if contact.Name == "" {
			log.Printf("[WARN] skipping row %d: empty name", i+2)
			continue
		}
		if _, err := st.Add(ctx, contact); err != nil {
			return imported, fmt.Errorf("failed to import row %d: %w", i+2, err)
		}
		imported++
	}
	return imported, nil
}

// cellValue returns the trimmed cell at idx, empty string when the row is short.
func cellValue(row []string, idx int) string {
	if idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}
