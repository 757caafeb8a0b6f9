// loader.go — загрузка каталогов переводов из embed.FS.
package i18n

import (
	"embed"
	"fmt"
	"log/slog"
)

// localeFS — встроенные JSON-каталоги переводов.
//
//go:embed locales/*.json
var localeFS embed.FS

// Languages — коды языков, для которых есть каталоги.
var Languages = []string{"en", "ru"}

// LoadEmbedded загружает все встроенные каталоги переводов в bundle.
func LoadEmbedded(bundle *Bundle, logger *slog.Logger) error {
	for _, lang := range Languages {
		path := fmt.Sprintf("locales/%s.json", lang)
		data, err := localeFS.ReadFile(path)
		if err != nil {
			return fmt.Errorf("i18n: не удалось прочитать %s: %w", path, err)
		}

		if err := bundle.LoadMessages(lang, data); err != nil {
			return err
		}
	}

	logger.Info("i18n каталоги загружены", slog.Int("languages", len(Languages)))
	return nil
}
