// Package report exports the order set as a spreadsheet.
package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/roach88/comande/internal/model"
)

// Sheet is the name of the worksheet holding the orders.
const Sheet = "Ordini"

// Header is the first row of the sheet.
var Header = []string{
	"Ordine", "Tavolo", "Piatti", "Bevande", "Stato",
	"Creato", "Dispositivo", "Aggiornato da", "Aggiornato",
}

const timeLayout = time.DateTime

// WriteXLSX writes one row per order, in the given order, to w.
func WriteXLSX(w io.Writer, orders []model.Order) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", Sheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}

	header := make([]any, len(Header))
	for i, h := range Header {
		header[i] = h
	}
	if err := f.SetSheetRow(Sheet, "A1", &header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("header style: %w", err)
	}
	last, _ := excelize.CoordinatesToCellName(len(Header), 1)
	if err := f.SetCellStyle(Sheet, "A1", last, bold); err != nil {
		return fmt.Errorf("header style: %w", err)
	}

	for i, o := range orders {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		row := []any{
			o.ID,
			o.Table,
			strings.Join(o.Dishes, ", "),
			strings.Join(o.Drinks, ", "),
			o.Status.Label(),
			formatTime(o.CreatedAt),
			o.DeviceID,
			o.StatusUpdatedBy,
			formatTime(o.StatusUpdatedAt),
		}
		if err := f.SetSheetRow(Sheet, cell, &row); err != nil {
			return fmt.Errorf("write order %d: %w", o.ID, err)
		}
	}

	if err := f.SetColWidth(Sheet, "B", "D", 28); err != nil {
		return err
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write xlsx: %w", err)
	}
	return nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(timeLayout)
}
