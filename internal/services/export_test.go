package services

import (
	"bytes"
	"encoding/csv"
	"strings"
	"testing"
	"time"

	"prizedraw/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteWinnersCSV(t *testing.T) {
	won := time.Date(2025, 1, 24, 19, 5, 9, 0, time.Local)
	records := []models.WinnerRecord{
		{PersonID: "p1", Name: "王小明", Department: "研發部", PrizeID: 1, PrizeName: "特等獎", WonAt: won},
		{PersonID: "p2", Name: "Smith, John", Department: "Sales", PrizeID: 2, PrizeName: "一等獎", WonAt: won.Add(time.Minute)},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteWinnersCSV(&buf, records))

	out := buf.String()
	require.True(t, strings.HasPrefix(out, "\ufeff"), "export starts with a BOM")

	rows, err := csv.NewReader(strings.NewReader(strings.TrimPrefix(out, "\ufeff"))).ReadAll()
	require.NoError(t, err)
	assert.Equal(t, [][]string{
		{"序號", "姓名", "部門", "獎項", "中獎時間", "中獎日期"},
		{"1", "王小明", "研發部", "特等獎", "19:05:09", "2025/01/24"},
		{"2", "Smith, John", "Sales", "一等獎", "19:06:09", "2025/01/24"},
	}, rows)
}

func TestWriteWinnersCSV_Empty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteWinnersCSV(&buf, nil))
	assert.Equal(t, "\ufeff序號,姓名,部門,獎項,中獎時間,中獎日期\n", buf.String())
}
