package services

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"prizedraw/internal/models"
)

var exportHeader = []string{"序號", "姓名", "部門", "獎項", "中獎時間", "中獎日期"}

// WriteWinnersCSV writes records as CSV in the given order, prefixed with a
// UTF-8 BOM so spreadsheet tools detect the encoding.
func WriteWinnersCSV(w io.Writer, records []models.WinnerRecord) error {
	if _, err := w.Write([]byte("\xef\xbb\xbf")); err != nil {
		return fmt.Errorf("write BOM: %w", err)
	}
	cw := csv.NewWriter(w)
	if err := cw.Write(exportHeader); err != nil {
		return fmt.Errorf("write CSV header: %w", err)
	}
	for i, r := range records {
		row := []string{
			strconv.Itoa(i + 1),
			r.Name,
			r.Department,
			r.PrizeName,
			r.WinTimeString(),
			r.WinDateString(),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write CSV row %d: %w", i+1, err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush CSV writer: %w", err)
	}
	return nil
}
