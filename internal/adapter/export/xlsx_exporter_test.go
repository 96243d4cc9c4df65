package export

import (
	"bytes"
	"testing"

	"github.com/plastinin/docgateway/internal/domain"
	"github.com/xuri/excelize/v2"
)

func TestExportXLSX(t *testing.T) {
	doc, err := domain.ParseDocument([]byte(`{
		"WA Fixed Rate": 4.25,
		"Closing Date": "2024-01-15",
		"Original Term": 360,
		"Recoverable": true,
		"Tranches": [{"name": "A"}],
		"excelDownload": "/download/excel?file=output.xlsx"
	}`))
	if err != nil {
		t.Fatalf("ParseDocument() error: %v", err)
	}

	data, err := NewXLSXExporter().ExportXLSX(doc)
	if err != nil {
		t.Fatalf("ExportXLSX() error: %v", err)
	}

	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("exported file is not a workbook: %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows(sheetName)
	if err != nil {
		t.Fatalf("GetRows() error: %v", err)
	}

	// Заголовок + 5 полей, ссылка шлюза не экспортируется
	if len(rows) != 6 {
		t.Fatalf("expected 6 rows, got %d: %v", len(rows), rows)
	}
	if rows[0][0] != "Field" || rows[0][1] != "Value" {
		t.Fatalf("unexpected header: %v", rows[0])
	}
	if rows[1][0] != "Closing Date" || rows[1][1] != "2024-01-15" {
		t.Fatalf("fields must be sorted, got %v", rows[1])
	}

	want := map[string]string{
		"Original Term": "360",
		"Tranches":      `[{"name":"A"}]`,
		"WA Fixed Rate": "4.25",
	}
	for _, row := range rows[2:] {
		if exp, ok := want[row[0]]; ok && row[1] != exp {
			t.Fatalf("field %s = %q, want %q", row[0], row[1], exp)
		}
	}
}
