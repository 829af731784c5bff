package http

import (
	"bytes"
	"fmt"

	"github.com/jung-kurt/gofpdf"
	"github.com/xuri/excelize/v2"

	analyticsapp "powerplant-cloud/internal/analytics/application"
	registry "powerplant-cloud/internal/registry/domain"
	summaries "powerplant-cloud/internal/summaries/domain"
)

// BuildMachineSummaryXLSX renders a machine's daily summaries as a workbook.
func BuildMachineSummaryXLSX(machine *registry.MachineWithPlant, rows []*summaries.DailySummary) ([]byte, error) {
	f := excelize.NewFile()
	infoSheet := "machine"
	dataSheet := "summaries"
	f.SetSheetName("Sheet1", infoSheet)
	f.NewSheet(dataSheet)

	_ = f.SetCellValue(infoSheet, "A1", "Daily Load Summaries")
	_ = f.SetCellValue(infoSheet, "A3", "Machine")
	_ = f.SetCellValue(infoSheet, "B3", machine.Identifier)
	_ = f.SetCellValue(infoSheet, "A4", "Plant")
	_ = f.SetCellValue(infoSheet, "B4", machine.PlantName)
	_ = f.SetCellValue(infoSheet, "A5", "Plant Type")
	_ = f.SetCellValue(infoSheet, "B5", string(machine.PlantType))
	_ = f.SetCellValue(infoSheet, "A6", "Days")
	_ = f.SetCellValue(infoSheet, "B6", len(rows))

	_ = f.SetCellValue(dataSheet, "A1", "Date")
	_ = f.SetCellValue(dataSheet, "B1", "Max Load")
	_ = f.SetCellValue(dataSheet, "C1", "Min Load")
	_ = f.SetCellValue(dataSheet, "D1", "Avg Day")
	_ = f.SetCellValue(dataSheet, "E1", "Avg Night")
	for i, row := range rows {
		line := i + 2
		_ = f.SetCellValue(dataSheet, fmt.Sprintf("A%d", line), row.Date.Format("2006-01-02"))
		_ = f.SetCellValue(dataSheet, fmt.Sprintf("B%d", line), row.MaxLoad)
		_ = f.SetCellValue(dataSheet, fmt.Sprintf("C%d", line), row.MinLoad)
		if row.DMSiang != nil {
			_ = f.SetCellValue(dataSheet, fmt.Sprintf("D%d", line), *row.DMSiang)
		}
		if row.DMMalam != nil {
			_ = f.SetCellValue(dataSheet, fmt.Sprintf("E%d", line), *row.DMMalam)
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// BuildPlantSummaryPDF renders one day's per-plant summary groups.
func BuildPlantSummaryPDF(date string, groups []analyticsapp.PlantGroup) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetFont("Arial", "", 12)
	pdf.AddPage()

	pdf.Cell(0, 8, "Plant Load Summary")
	pdf.Ln(10)
	pdf.SetFont("Arial", "", 10)
	pdf.Cell(0, 6, fmt.Sprintf("Date: %s", date))
	pdf.Ln(8)

	for _, group := range groups {
		pdf.SetFont("Arial", "B", 10)
		pdf.Cell(0, 6, fmt.Sprintf("%s (%s)", group.PlantName, group.PlantType))
		pdf.Ln(7)

		pdf.CellFormat(50, 6, "Machine", "1", 0, "C", false, 0, "")
		pdf.CellFormat(35, 6, "Max Load", "1", 0, "C", false, 0, "")
		pdf.CellFormat(35, 6, "Min Load", "1", 0, "C", false, 0, "")
		pdf.CellFormat(35, 6, "Avg Day", "1", 0, "C", false, 0, "")
		pdf.CellFormat(35, 6, "Avg Night", "1", 0, "C", false, 0, "")
		pdf.Ln(-1)
		pdf.SetFont("Arial", "", 10)
		for _, machine := range group.Machines {
			pdf.CellFormat(50, 6, machine.Identifier, "1", 0, "L", false, 0, "")
			pdf.CellFormat(35, 6, fmt.Sprintf("%.2f", machine.MaxLoad), "1", 0, "R", false, 0, "")
			pdf.CellFormat(35, 6, fmt.Sprintf("%.2f", machine.MinLoad), "1", 0, "R", false, 0, "")
			pdf.CellFormat(35, 6, formatAvg(machine.DMSiang), "1", 0, "R", false, 0, "")
			pdf.CellFormat(35, 6, formatAvg(machine.DMMalam), "1", 0, "R", false, 0, "")
			pdf.Ln(-1)
		}
		pdf.Ln(4)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func formatAvg(value *float64) string {
	if value == nil {
		return "-"
	}
	return fmt.Sprintf("%.2f", *value)
}
