package services

// Notifier — точка публикации "сетка X изменилась". Доставка
// (websocket-хаб, push и т.д.) полностью снаружи ядра.
type Notifier interface {
	BracketChanged(bracketID int)
}

// NopNotifier используется там, где доставка не нужна (тесты, CLI).
type NopNotifier struct{}

func (NopNotifier) BracketChanged(bracketID int) {}
