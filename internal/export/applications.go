// Package export renders data for download.
package export

import (
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/pliu/roomlet/internal/models"
)

const SheetName = "Applications"

// ApplicationHeader is the first row of an applications workbook.
var ApplicationHeader = []string{
	"ID",
	"Full Name",
	"Email",
	"Phone",
	"Course",
	"Sex",
	"Age",
	"Message",
	"Submitted At",
}

var applicationColumnWidths = []float64{8, 25, 30, 18, 25, 6, 6, 50, 22}

// WriteApplications writes one sheet with a header row followed by one row per
// application, in the order given.
func WriteApplications(w io.Writer, room *models.Room, apps []models.Application) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}

	if err := f.SetDocProps(&excelize.DocProperties{
		Title:   fmt.Sprintf("Applications for room %d", room.ID),
		Subject: room.Title,
		Creator: "roomlet",
	}); err != nil {
		return fmt.Errorf("failed to set document properties: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{
			Type:    "pattern",
			Color:   []string{"#E6F3FF"},
			Pattern: 1,
		},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}

	if err := f.SetSheetRow(SheetName, "A1", &ApplicationHeader); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	last, err := excelize.ColumnNumberToName(len(ApplicationHeader))
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(SheetName, "A1", last+"1", headerStyle); err != nil {
		return fmt.Errorf("failed to set header style: %w", err)
	}
	for i, width := range applicationColumnWidths {
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return err
		}
		if err := f.SetColWidth(SheetName, col, col, width); err != nil {
			return fmt.Errorf("failed to set column width: %w", err)
		}
	}

	for i, app := range apps {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		row := []any{
			app.ID,
			app.FullName,
			app.Email,
			deref(app.Phone),
			app.Course,
			app.Sex,
			app.Age,
			deref(app.Message),
			app.CreatedAt.UTC().Format(time.RFC3339),
		}
		if err := f.SetSheetRow(SheetName, cell, &row); err != nil {
			return fmt.Errorf("failed to write row %d: %w", i+2, err)
		}
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
