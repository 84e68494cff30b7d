package revenue

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

// ExportExits writes the EXIT events behind a revenue figure as an XLSX
// workbook: one row per exit and a closing total row.
func (s *Service) ExportExits(ctx context.Context, sector string, date time.Time, w io.Writer) error {
	start, end := s.dayBounds(date)
	events, err := s.store.ExitEvents(ctx, sector, start, end)
	if err != nil {
		return fmt.Errorf("export exits: %w", err)
	}

	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	sheet := "Revenue"
	if err := f.SetSheetName(f.GetSheetName(f.GetActiveSheetIndex()), sheet); err != nil {
		return fmt.Errorf("export exits: %w", err)
	}

	header := []interface{}{"event_id", "license_plate", "sector", "spot_id", "entry_time", "exit_time", "rate", "amount", "currency"}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return fmt.Errorf("export exits (header): %w", err)
	}

	total := decimal.Zero
	row := 2
	for _, e := range events {
		var spot interface{}
		if e.SpotID != nil {
			spot = *e.SpotID
		}
		entryTime := s.formatTime(e.EntryTime)
		exitTime := s.formatTime(e.ExitTime)
		amount := e.AmountCharged.Decimal
		total = total.Add(amount)

		excelRow := []interface{}{
			e.ID,
			e.LicensePlate,
			e.SectorID,
			spot,
			entryTime,
			exitTime,
			e.PriceApplied.Decimal.InexactFloat64(),
			amount.InexactFloat64(),
			s.currency,
		}
		cell, err := excelize.CoordinatesToCellName(1, row)
		if err != nil {
			return fmt.Errorf("export exits (cell): %w", err)
		}
		if err := f.SetSheetRow(sheet, cell, &excelRow); err != nil {
			return fmt.Errorf("export exits (row %d): %w", row, err)
		}
		row++
	}

	totalRow := []interface{}{"total", "", "", "", "", "", "", total.Round(2).InexactFloat64(), s.currency}
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return fmt.Errorf("export exits (cell): %w", err)
	}
	if err := f.SetSheetRow(sheet, cell, &totalRow); err != nil {
		return fmt.Errorf("export exits (total): %w", err)
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("export exits (write): %w", err)
	}
	return nil
}

func (s *Service) formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.In(s.loc).Format(time.DateTime)
}
