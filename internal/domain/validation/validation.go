// Пакет validation — проверки полей заявки.
// Чистые функции без побочных эффектов.
package validation

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

const (
	// MinNameLength — минимальная длина имени (в символах, после trim).
	MinNameLength = 2
	// MinMessageLength — минимальная длина описания проблемы (в символах, после trim).
	MinMessageLength = 10
	// MaxAttachments — максимальное количество вложений в заявке.
	MaxAttachments = 3
)

// phonePattern — международный формат: 10–15 цифр, необязательный ведущий "+".
var phonePattern = regexp.MustCompile(`^\+?\d{10,15}$`)

// phoneSeparators — разделители, удаляемые из номера перед проверкой:
// только пробелы и дефисы, остальное (скобки, точки) делает номер некорректным.
var phoneSeparators = strings.NewReplacer(" ", "", "-", "")

// ValidName проверяет имя: не короче MinNameLength символов после trim.
func ValidName(s string) bool {
	return utf8.RuneCountInString(strings.TrimSpace(s)) >= MinNameLength
}

// NormalizePhone удаляет разделители и проверяет формат номера.
// Возвращает нормализованный номер и признак корректности.
func NormalizePhone(s string) (string, bool) {
	normalized := phoneSeparators.Replace(strings.TrimSpace(s))
	if !phonePattern.MatchString(normalized) {
		return "", false
	}
	return normalized, true
}

// ValidPhone проверяет номер телефона.
func ValidPhone(s string) bool {
	_, ok := NormalizePhone(s)
	return ok
}

// ValidMessage проверяет описание проблемы: не короче MinMessageLength символов после trim.
func ValidMessage(s string) bool {
	return utf8.RuneCountInString(strings.TrimSpace(s)) >= MinMessageLength
}

// AttachmentCountOK проверяет, что количество вложений не превышает лимит.
func AttachmentCountOK(n int) bool {
	return n >= 0 && n <= MaxAttachments
}
