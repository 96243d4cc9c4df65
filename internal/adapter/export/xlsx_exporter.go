package export

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/plastinin/docgateway/internal/domain"
	"github.com/xuri/excelize/v2"
)

const sheetName = "Extraction"

// XLSXExporter строит таблицу "поле / значение" из документа воркера
type XLSXExporter struct{}

// NewXLSXExporter создаёт новый экспортёр
func NewXLSXExporter() *XLSXExporter {
	return &XLSXExporter{}
}

// ExportXLSX возвращает книгу XLSX. Поля отсортированы по имени,
// вложенные объекты и массивы записываются как JSON.
func (e *XLSXExporter) ExportXLSX(doc domain.Document) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	// В новой книге есть только Sheet1, переименовываем его
	if err := f.SetSheetName(f.GetSheetName(0), sheetName); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}

	for col, h := range []string{"Field", "Value"} {
		cell, _ := excelize.CoordinatesToCellName(col+1, 1)
		if err := f.SetCellValue(sheetName, cell, h); err != nil {
			return nil, fmt.Errorf("write header: %w", err)
		}
	}

	keys := make([]string, 0, len(doc))
	for k := range doc {
		if k == domain.DownloadLinkField {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for i, k := range keys {
		row := i + 2
		keyCell, _ := excelize.CoordinatesToCellName(1, row)
		valueCell, _ := excelize.CoordinatesToCellName(2, row)
		if err := f.SetCellValue(sheetName, keyCell, k); err != nil {
			return nil, fmt.Errorf("write field %s: %w", k, err)
		}
		if err := f.SetCellValue(sheetName, valueCell, cellValue(doc[k])); err != nil {
			return nil, fmt.Errorf("write value %s: %w", k, err)
		}
	}

	_ = f.SetColWidth(sheetName, "A", "A", 40)
	_ = f.SetColWidth(sheetName, "B", "B", 60)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}
	return buf.Bytes(), nil
}

// cellValue приводит значение JSON к типу, понятному excelize
func cellValue(v any) any {
	switch val := v.(type) {
	case nil:
		return ""
	case json.Number:
		if i, err := val.Int64(); err == nil {
			return i
		}
		if f, err := val.Float64(); err == nil {
			return f
		}
		return val.String()
	case string, bool, float64:
		return val
	default:
		b, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprint(val)
		}
		return string(b)
	}
}
