package handler

import (
	"errors"
	"mime/multipart"
	"net/http"

	"github.com/plastinin/docgateway/internal/domain"
)

// Файлы крупнее остаются во временных файлах multipart
const multipartMemory = 8 << 20

var errFileTooLarge = errors.New("file too large")

// uploadReader достаёт файл из multipart формы
type uploadReader struct {
	fields  []string
	maxSize int64
}

// read возвращает файл из первого найденного поля.
// cleanup закрывает файл и удаляет временные данные формы.
func (u uploadReader) read(w http.ResponseWriter, r *http.Request) (domain.IncomingFile, func(), error) {
	noop := func() {}

	if u.maxSize > 0 {
		if r.ContentLength > u.maxSize {
			return domain.IncomingFile{}, noop, errFileTooLarge
		}
		r.Body = http.MaxBytesReader(w, r.Body, u.maxSize)
	}

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return domain.IncomingFile{}, noop, errFileTooLarge
		}
		// Не multipart или пустое тело: файла нет
		return domain.IncomingFile{}, noop, domain.ErrMissingFile
	}

	form := r.MultipartForm
	var header *multipart.FileHeader
	for _, field := range u.fields {
		if files := form.File[field]; len(files) > 0 {
			header = files[0]
			break
		}
	}
	if header == nil {
		_ = form.RemoveAll()
		return domain.IncomingFile{}, noop, domain.ErrMissingFile
	}

	file, err := header.Open()
	if err != nil {
		_ = form.RemoveAll()
		return domain.IncomingFile{}, noop, err
	}

	cleanup := func() {
		file.Close()
		_ = form.RemoveAll()
	}

	return domain.IncomingFile{
		FileName:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Size:        header.Size,
		Reader:      file,
	}, cleanup, nil
}
