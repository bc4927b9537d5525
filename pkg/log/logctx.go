// log хранит request-scoped *slog.Logger в context.Context.
// Используется HTTP-мидлварами, исходящими интерсепторами и сервисным слоем.
package log

import (
	"context"
	"log/slog"
	"sync"
)

type ctxKey struct{}

// Into кладёт логгер в контекст.
func Into(ctx context.Context, l *slog.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

// From достаёт логгер из контекста (или возвращает slog.Default()).
func From(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(ctxKey{}).(*slog.Logger); ok && l != nil {
		return l
	}

	return slog.Default()
}

// With обогащает логгер из контекста атрибутами и кладёт результат обратно.
func With(ctx context.Context, attrs ...any) context.Context {
	if len(attrs) == 0 {
		return ctx
	}

	return Into(ctx, From(ctx).With(attrs...))
}

type notesKey struct{}

// notes — атрибуты, которые нижние слои добавляют к итоговой записи запроса.
type notes struct {
	mu    sync.Mutex
	attrs []slog.Attr
}

// WithNotes заводит в контексте набор аннотаций запроса.
func WithNotes(ctx context.Context) context.Context {
	return context.WithValue(ctx, notesKey{}, &notes{})
}

// Note добавляет атрибуты к аннотациям запроса. Без WithNotes ничего не делает.
func Note(ctx context.Context, attrs ...slog.Attr) {
	n, ok := ctx.Value(notesKey{}).(*notes)
	if !ok || len(attrs) == 0 {
		return
	}

	n.mu.Lock()
	n.attrs = append(n.attrs, attrs...)
	n.mu.Unlock()
}

// Notes возвращает копию накопленных аннотаций.
func Notes(ctx context.Context) []slog.Attr {
	n, ok := ctx.Value(notesKey{}).(*notes)
	if !ok {
		return nil
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]slog.Attr(nil), n.attrs...)
}
