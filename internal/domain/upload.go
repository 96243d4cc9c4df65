package domain

import (
	"io"

	"github.com/google/uuid"
)

// Upload файл, сохранённый в каталоге запуска
type Upload struct {
	ID          uuid.UUID
	FileName    string // Имя, присланное клиентом
	StoredName  string // Очищенное имя на диске
	Path        string // Абсолютный путь к файлу
	RunDir      string // Рабочий каталог воркера
	ContentType string
	Size        int64
}

// IncomingFile файл из multipart формы до сохранения
type IncomingFile struct {
	FileName    string
	ContentType string
	Size        int64
	Reader      io.Reader
}

// Principal владелец запроса по bearer токену
type Principal struct {
	Token   string // Токен как пришёл от клиента
	Subject string // Пусто, если токен не проверялся
}
