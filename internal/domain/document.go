package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
)

// DownloadLinkField поле, которое шлюз добавляет к документу воркера
const DownloadLinkField = "excelDownload"

// Document результат воркера. Схема не фиксирована, шлюз
// управляет только собственными полями.
type Document map[string]any

// ParseDocument разбирает stdout воркера как один JSON объект
func ParseDocument(raw []byte) (Document, error) {
	trimmed := bytes.TrimSpace(raw)

	var value any
	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()
	if err := dec.Decode(&value); err != nil {
		return nil, &OutputParseError{Raw: string(raw), Err: err}
	}
	// После документа допустим только конец ввода
	if _, err := dec.Token(); err != io.EOF {
		return nil, &OutputParseError{Raw: string(raw), Err: fmt.Errorf("unexpected data after JSON document")}
	}

	obj, ok := value.(map[string]any)
	if !ok {
		return nil, &OutputParseError{Raw: string(raw), Err: fmt.Errorf("worker output must be a JSON object, got %T", value)}
	}

	return Document(obj), nil
}

// Clone возвращает поверхностную копию документа
func (d Document) Clone() Document {
	out := make(Document, len(d)+1)
	for k, v := range d {
		out[k] = v
	}
	return out
}

// WithDownloadLink возвращает копию документа со ссылкой на артефакт.
// Значение воркера с тем же ключом перезаписывается.
func (d Document) WithDownloadLink(link string) Document {
	out := d.Clone()
	if link != "" {
		out[DownloadLinkField] = link
	}
	return out
}
