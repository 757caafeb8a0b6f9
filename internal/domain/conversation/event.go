package conversation

import "github.com/bigkaa/legaldesk/internal/domain/model"

// Intent — нормализованное намерение входящего события.
// Вычисляется один раз на границе транспорта; автомат не разбирает
// локализованные надписи кнопок.
type Intent int

const (
	// IntentText — произвольный текст (ввод поля формы).
	IntentText Intent = iota
	// IntentFile — пользователь прислал файл.
	IntentFile
	// IntentBack — шаг назад.
	IntentBack
	// IntentHome — возврат в главное меню со сбросом сессии.
	IntentHome
	// IntentDone — явное завершение приёма вложений.
	IntentDone
	// IntentStartRequest — начать оформление заявки.
	IntentStartRequest
	IntentYes
	IntentNo
	IntentContacts
	IntentFAQ
	IntentAdminLink
	// IntentChangeLanguage — запрос выбора языка.
	IntentChangeLanguage
	// IntentChooseLanguage — выбран конкретный язык (Event.Language).
	IntentChooseLanguage
	// IntentRestart — команда /start: сброс сессии и вход в меню.
	IntentRestart
)

var intentNames = map[Intent]string{
	IntentText:           "text",
	IntentFile:           "file",
	IntentBack:           "back",
	IntentHome:           "home",
	IntentDone:           "done",
	IntentStartRequest:   "start_request",
	IntentYes:            "yes",
	IntentNo:             "no",
	IntentContacts:       "contacts",
	IntentFAQ:            "faq",
	IntentAdminLink:      "admin_link",
	IntentChangeLanguage: "change_language",
	IntentChooseLanguage: "choose_language",
	IntentRestart:        "restart",
}

func (i Intent) String() string {
	if name, ok := intentNames[i]; ok {
		return name
	}
	return "unknown"
}

// Event — входящее событие от транспорта.
type Event struct {
	UserID int64
	Intent Intent
	// Text — исходный текст сообщения (для IntentText).
	Text string
	// File — вложение (для IntentFile).
	File model.Attachment
	// Language — выбранный язык (для IntentChooseLanguage).
	Language model.Language
}

// Keyboard — набор кнопок, сопровождающий ответ.
// Чисто презентационный признак: состояние автомата от него не зависит.
type Keyboard int

const (
	KeyboardNone Keyboard = iota
	KeyboardMenu
	KeyboardLanguage
	// KeyboardNavigation — «Назад» и «Главное меню».
	KeyboardNavigation
	KeyboardYesNo
	// KeyboardAttachments — «Готово», «Назад», «Главное меню».
	KeyboardAttachments
)

// Prompt — ответ пользователю.
type Prompt struct {
	// Key — ключ каталога переводов, по которому построен текст.
	Key      string
	Text     string
	Keyboard Keyboard
}

// Result — итог обработки одного события.
type Result struct {
	Prompt   Prompt
	Step     model.Step
	Language model.Language
	// RequestID — идентификатор зафиксированной заявки (0, если фиксации не было).
	RequestID int64
}
