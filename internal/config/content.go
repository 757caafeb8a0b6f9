// content.go — справочные тексты меню бота (контакты, FAQ, ссылка администратора).
// Загружаются из необязательного YAML-файла (LD_CONTENT_FILE) через viper,
// отдельные значения переопределяются переменными LD_CONTENT_<РАЗДЕЛ>_<ЯЗЫК>.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/bigkaa/legaldesk/internal/domain/model"
)

// Content — справочные тексты по языкам.
type Content struct {
	ContactsText  map[string]string `mapstructure:"contacts"`
	FAQText       map[string]string `mapstructure:"faq"`
	AdminLinkText map[string]string `mapstructure:"admin_link"`
}

// contentDefaults — тексты по умолчанию (раздел → язык → текст).
var contentDefaults = map[string]map[string]string{
	"contacts": {
		"ru": "г. Астрахань, ул. Татищева 20\n+7 988 600 56 61",
		"en": "20 Tatishcheva St., Astrakhan\n+7 988 600 56 61",
	},
	"faq": {
		"ru": "Консультация длится около 30 минут. Возьмите с собой документы по делу. " +
			"Заявку можно дополнить файлами: до трёх документов.",
		"en": "A consultation takes about 30 minutes. Bring the documents related to your case. " +
			"You can attach up to three files to a request.",
	},
	"admin_link": {
		"ru": "Страница администратора: %s",
		"en": "Administrator page: %s",
	},
}

// LoadContent загружает справочные тексты.
// path — путь к YAML-файлу (пустой — только значения по умолчанию и переменные окружения).
// publicURL подставляется в текст ссылки администратора.
func LoadContent(path, publicURL string) (*Content, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix("LD_CONTENT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for section, byLang := range contentDefaults {
		for lang, text := range byLang {
			v.SetDefault(section+"."+lang, text)
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("LD_CONTENT_FILE: ошибка чтения %s: %w", path, err)
		}
	}

	c := &Content{}
	if err := v.Unmarshal(c); err != nil {
		return nil, fmt.Errorf("LD_CONTENT_FILE: ошибка разбора: %w", err)
	}

	for lang, text := range c.AdminLinkText {
		if strings.Contains(text, "%s") {
			c.AdminLinkText[lang] = fmt.Sprintf(text, publicURL)
		}
	}
	return c, nil
}

// Contacts возвращает контакты на указанном языке.
func (c *Content) Contacts(lang model.Language) string {
	return pick(c.ContactsText, lang)
}

// FAQ возвращает ответы на частые вопросы.
func (c *Content) FAQ(lang model.Language) string {
	return pick(c.FAQText, lang)
}

// AdminLink возвращает текст со ссылкой на страницу администратора.
func (c *Content) AdminLink(lang model.Language) string {
	return pick(c.AdminLinkText, lang)
}

// pick выбирает текст для языка с fallback на русский.
func pick(texts map[string]string, lang model.Language) string {
	if text, ok := texts[string(lang)]; ok && text != "" {
		return text
	}
	return texts[string(model.LanguageRU)]
}
