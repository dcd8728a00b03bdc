package reports

import (
	"bytes"
	"fmt"

	"github.com/rentalops/backoffice-api-go/pkg/database"
	"github.com/xuri/excelize/v2"
)

var dayReportColumns = []string{
	"Booking", "Time", "Contract", "Client", "Vehicle", "Employee", "Confirmed", "Completed",
}

// DayReport renders one day's return bookings as an xlsx workbook.
func DayReport(date string, rows []database.DayReportRow) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	sheet := "Returns " + date
	// Excel caps sheet names at 31 chars
	if len(sheet) > 31 {
		sheet = sheet[:31]
	}
	f.SetSheetName("Sheet1", sheet)

	for i, col := range dayReportColumns {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return nil, err
		}
		if err := f.SetCellValue(sheet, cell, col); err != nil {
			return nil, err
		}
	}

	style, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
	})
	if err == nil {
		startCell, _ := excelize.CoordinatesToCellName(1, 1)
		endCell, _ := excelize.CoordinatesToCellName(len(dayReportColumns), 1)
		_ = f.SetCellStyle(sheet, startCell, endCell, style)
	}

	for i, row := range rows {
		values := []interface{}{
			row.BookingID, row.Time, row.ContractRef, row.ClientName,
			row.VehiclePlate, row.EmployeeName, row.Confirmed, row.Completed,
		}
		for j, val := range values {
			cell, err := excelize.CoordinatesToCellName(j+1, i+2)
			if err != nil {
				return nil, err
			}
			if err := f.SetCellValue(sheet, cell, val); err != nil {
				return nil, err
			}
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}
