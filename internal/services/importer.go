package services

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
	"unicode"
	"unicode/utf8"

	"prizedraw/internal/models"

	"github.com/google/logger"
	"github.com/google/uuid"
)

const defaultDepartment = "未分組"

// Header cells are matched exactly for latin keywords and by substring for CJK ones,
// so names like "David" or "Nora" are not taken for a header.
var (
	headerWords     = []string{"name", "id", "no", "number"}
	headerFragments = []string{"姓名", "名", "序號", "序号", "編號", "编号", "號碼", "号码"}
)

// ParseParticipants reads two-column (name, department) records separated by
// tabs or commas. A header row is skipped when detected, and every person
// gets a fresh id.
func ParseParticipants(r io.Reader) ([]models.Person, error) {
	br := bufio.NewReader(r)
	first, err := br.Peek(4096)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, bufio.ErrBufferFull) {
		return nil, fmt.Errorf("%w: %v", ErrInvalidImport, err)
	}
	firstLine, _, _ := strings.Cut(strings.TrimPrefix(string(first), "\ufeff"), "\n")

	reader := csv.NewReader(br)
	reader.Comma = ','
	if strings.Contains(firstLine, "\t") {
		reader.Comma = '\t'
	}
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true

	var rows [][]string
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidImport, err)
		}
		row := make([]string, len(record))
		nonEmpty := false
		for i, c := range record {
			row[i] = strings.TrimSpace(strings.TrimPrefix(c, "\ufeff"))
			if row[i] != "" {
				nonEmpty = true
			}
		}
		if nonEmpty {
			rows = append(rows, row)
		}
	}
	if len(rows) == 0 {
		return nil, nil
	}

	nameIdx, deptIdx := 0, 1
	start := 0
	if isHeaderRow(rows[0]) {
		nameIdx, deptIdx = findColumnIndices(rows[0])
		start = 1
	}

	result := make([]models.Person, 0, len(rows)-start)
	for _, row := range rows[start:] {
		name := cell(row, nameIdx)
		if name == "" {
			name = cell(row, 0)
		}
		dept := cell(row, deptIdx)
		if dept == "" && deptIdx != 1 {
			dept = cell(row, 1)
		}
		if dept == "" {
			dept = defaultDepartment
		}
		if !validName(name) {
			logger.Infof("Skipping participant row with invalid name: %v", row)
			continue
		}
		result = append(result, models.Person{
			ID:         models.PersonID(uuid.NewString()),
			Name:       name,
			Department: dept,
			Avatar:     avatarURL(name),
		})
	}
	return result, nil
}

func isHeaderRow(row []string) bool {
	if len(row) == 0 {
		return false
	}
	first := strings.ToLower(row[0])
	for _, w := range headerWords {
		if first == w {
			return true
		}
	}
	for _, f := range headerFragments {
		if strings.Contains(first, f) {
			return true
		}
	}
	return false
}

func findColumnIndices(header []string) (nameIdx, deptIdx int) {
	nameIdx, deptIdx = 0, 1
	for i, c := range header {
		c = strings.ToLower(c)
		switch {
		case strings.Contains(c, "名") || strings.Contains(c, "name"):
			nameIdx = i
		case strings.Contains(c, "部") || strings.Contains(c, "dept") || strings.Contains(c, "department"):
			deptIdx = i
		}
	}
	return nameIdx, deptIdx
}

func cell(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return row[i]
}

// validName rejects names shorter than two characters and purely numeric ones.
func validName(name string) bool {
	if utf8.RuneCountInString(name) < 2 {
		return false
	}
	for _, r := range name {
		if !unicode.IsDigit(r) {
			return true
		}
	}
	return false
}

func avatarURL(name string) string {
	return "https://api.dicebear.com/7.x/avataaars/svg?seed=" + url.QueryEscape(name) + "&backgroundColor=b6e3f4"
}
