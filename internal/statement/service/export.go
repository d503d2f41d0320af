package service

import (
	"context"
	"io"

	"github.com/bwmarrin/snowflake"
	"github.com/xuri/excelize/v2"
)

var statementHeader = []interface{}{"Date", "Reference", "Description", "Debit", "Credit", "Balance"}

// ExportXLSX writes the statement of a company as a single-sheet workbook.
func (s *Service) ExportXLSX(ctx context.Context, companyID snowflake.ID, w io.Writer) error {
	stmt, err := s.Build(ctx, companyID)
	if err != nil {
		return err
	}

	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	sheet := f.GetSheetName(f.GetActiveSheetIndex())
	if err := f.SetCellValue(sheet, "A1", stmt.CompanyName); err != nil {
		return err
	}
	header := statementHeader
	if err := f.SetSheetRow(sheet, "A3", &header); err != nil {
		return err
	}

	rowIdx := 4
	for _, row := range stmt.Rows {
		cell, err := excelize.CoordinatesToCellName(1, rowIdx)
		if err != nil {
			return err
		}
		values := []interface{}{
			row.Date.Format("2006-01-02"),
			row.ReferenceNo,
			row.Description,
			row.Debit.InexactFloat64(),
			row.Credit.InexactFloat64(),
			row.RunningBalance.InexactFloat64(),
		}
		if err := f.SetSheetRow(sheet, cell, &values); err != nil {
			return err
		}
		rowIdx++
	}

	cell, err := excelize.CoordinatesToCellName(3, rowIdx)
	if err != nil {
		return err
	}
	totals := []interface{}{
		"Total",
		stmt.TotalDebit.InexactFloat64(),
		stmt.TotalCredit.InexactFloat64(),
		stmt.FinalBalance.InexactFloat64(),
	}
	if err := f.SetSheetRow(sheet, cell, &totals); err != nil {
		return err
	}
	statusCell, err := excelize.CoordinatesToCellName(6, rowIdx+1)
	if err != nil {
		return err
	}
	if err := f.SetCellValue(sheet, statusCell, string(stmt.Status)); err != nil {
		return err
	}

	return f.Write(w)
}
