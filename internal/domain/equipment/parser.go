package equipment

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/PiyushRaj472100/Chemical-Equipment-Analyzer/internal/domain/entity"
)

const (
	ColumnName        = "name"
	ColumnCategory    = "category"
	ColumnFlowrate    = "flowrate"
	ColumnPressure    = "pressure"
	ColumnTemperature = "temperature"
)

// RequiredColumns is the header set every upload must carry, in reporting order.
var RequiredColumns = []string{ColumnName, ColumnCategory, ColumnFlowrate, ColumnPressure, ColumnTemperature}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Table is a parsed upload: the header as it appeared and the typed rows.
type Table struct {
	Columns []string
	Rows    []entity.EquipmentRow
}

// Parse reads comma separated text with a header line into equipment rows.
func Parse(raw []byte) (*Table, error) {
	raw = bytes.TrimPrefix(raw, utf8BOM)
	reader := csv.NewReader(bytes.NewReader(raw))

	header, err := reader.Read()
	if err == io.EOF {
		return nil, &entity.MalformedInputError{Row: -1, Err: errors.New("no header line")}
	}
	if err != nil {
		return nil, &entity.MalformedInputError{Row: -1, Err: err}
	}

	index := make(map[string]int, len(header))
	for i, col := range header {
		if _, dup := index[col]; dup {
			return nil, &entity.MalformedInputError{Row: -1, Column: col, Err: fmt.Errorf("duplicate column %q", col)}
		}
		index[col] = i
	}

	var missing []string
	for _, col := range RequiredColumns {
		if _, ok := index[col]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, &entity.SchemaError{Missing: missing}
	}

	table := &Table{Columns: append([]string(nil), header...)}
	for row := 0; ; row++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, &entity.MalformedInputError{Row: row, Err: err}
		}

		parsed, err := parseRow(row, header, index, record)
		if err != nil {
			return nil, err
		}
		table.Rows = append(table.Rows, parsed)
	}

	if len(table.Rows) == 0 {
		return nil, entity.ErrEmptyInput
	}
	return table, nil
}

func parseRow(row int, header []string, index map[string]int, record []string) (entity.EquipmentRow, error) {
	out := entity.EquipmentRow{
		Name:     record[index[ColumnName]],
		Category: record[index[ColumnCategory]],
	}

	numeric := []struct {
		column string
		dst    *float64
	}{
		{ColumnFlowrate, &out.Flowrate},
		{ColumnPressure, &out.Pressure},
		{ColumnTemperature, &out.Temperature},
	}
	for _, n := range numeric {
		v, err := parseNumber(record[index[n.column]])
		if err != nil {
			return out, &entity.MalformedInputError{Row: row, Column: n.column, Err: err}
		}
		*n.dst = v
	}

	for i, col := range header {
		if isRequired(col) {
			continue
		}
		if out.Extra == nil {
			out.Extra = make(map[string]string, len(header)-len(RequiredColumns))
		}
		out.Extra[col] = record[i]
	}
	return out, nil
}

func parseNumber(cell string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(cell), 64)
	if err != nil {
		return 0, fmt.Errorf("not a number: %q", cell)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("not a finite number: %q", cell)
	}
	return v, nil
}

func isRequired(col string) bool {
	for _, c := range RequiredColumns {
		if c == col {
			return true
		}
	}
	return false
}
