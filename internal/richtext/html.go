package richtext

import (
	"html/template"
	"sort"
	"strconv"
	"strings"
	"unicode/utf16"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// HTML рендерит блоки в разметку. Результат помечен как template.HTML:
// шаблоны вставляют его без экранирования.
func HTML(blocks Blocks) template.HTML {
	return HTMLWith(blocks, nil)
}

// HTMLWith — HTML с собственным резолвером ссылок на документы.
func HTMLWith(blocks Blocks, resolve LinkResolver) template.HTML {
	var sb strings.Builder
	for _, n := range Nodes(blocks, resolve) {
		// strings.Builder не возвращает ошибок записи.
		_ = html.Render(&sb, n)
	}

	return template.HTML(sb.String())
}

// Nodes строит дерево узлов верхнего уровня. Соседние list-item/o-list-item
// группируются в один <ul>/<ol>.
func Nodes(blocks Blocks, resolve LinkResolver) []*html.Node {
	out := make([]*html.Node, 0, len(blocks))

	var list *html.Node
	for _, b := range blocks {
		wrap := listWrapper(b.Type)
		if wrap == 0 {
			list = nil
			out = append(out, renderBlock(b, resolve))
			continue
		}

		if list == nil || list.DataAtom != wrap {
			list = element(wrap)
			out = append(out, list)
		}

		list.AppendChild(renderBlock(b, resolve))
	}

	return out
}

func listWrapper(typ string) atom.Atom {
	switch typ {
	case TypeListItem:
		return atom.Ul
	case TypeOListItem:
		return atom.Ol
	default:
		return 0
	}
}

// renderBlock — одна чистая функция на вариант блока.
func renderBlock(b Block, resolve LinkResolver) *html.Node {
	switch b.Type {
	case TypeHeading1:
		return textBlock(atom.H1, b, resolve)
	case TypeHeading2:
		return textBlock(atom.H2, b, resolve)
	case TypeHeading3:
		return textBlock(atom.H3, b, resolve)
	case TypeHeading4:
		return textBlock(atom.H4, b, resolve)
	case TypeHeading5:
		return textBlock(atom.H5, b, resolve)
	case TypeHeading6:
		return textBlock(atom.H6, b, resolve)
	case TypePreformatted:
		return textBlock(atom.Pre, b, resolve)
	case TypeListItem, TypeOListItem:
		return textBlock(atom.Li, b, resolve)
	case TypeImage:
		return imageBlock(b, resolve)
	case TypeEmbed:
		return embedBlock(b)
	default:
		// Неизвестные типы рендерим как абзац, чтобы не терять текст.
		return textBlock(atom.P, b, resolve)
	}
}

func textBlock(a atom.Atom, b Block, resolve LinkResolver) *html.Node {
	n := element(a)
	units := utf16.Encode([]rune(b.Text))

	spans := make([]Span, len(b.Spans))
	copy(spans, b.Spans)
	sortSpans(spans)

	appendInline(n, units, 0, len(units), spans, resolve, a == atom.Pre)
	return n
}

// appendInline раскладывает отрезок [from, to) текста по вложенным спанам.
// spans отсортированы по Start asc, End desc. Дочерний спан, выходящий за конец
// родителя, делится: хвост продолжается отдельным элементом после родителя.
func appendInline(parent *html.Node, units []uint16, from, to int, spans []Span, resolve LinkResolver, pre bool) {
	pos := from
	for len(spans) > 0 {
		s := spans[0]
		start := clamp(s.Start, pos, to)
		end := clamp(s.End, start, to)
		if end <= start {
			spans = spans[1:]
			continue
		}

		if start > pos {
			appendText(parent, units[pos:start], pre)
		}

		j := 1
		for j < len(spans) && spans[j].Start < end {
			j++
		}

		el := spanNode(s, resolve)
		appendInline(el, units, start, end, spans[1:j], resolve, pre)
		parent.AppendChild(el)

		var tails []Span
		for _, c := range spans[1:j] {
			if c.End > end {
				c.Start = end
				tails = append(tails, c)
			}
		}

		spans = spans[j:]
		if len(tails) > 0 {
			spans = sortSpans(append(tails, spans...))
		}

		pos = end
	}

	if pos < to {
		appendText(parent, units[pos:to], pre)
	}
}

// sortSpans упорядочивает спаны: внешние (длиннее) раньше вложенных.
func sortSpans(spans []Span) []Span {
	sort.SliceStable(spans, func(i, j int) bool {
		if spans[i].Start != spans[j].Start {
			return spans[i].Start < spans[j].Start
		}
		return spans[i].End > spans[j].End
	})

	return spans
}

func spanNode(s Span, resolve LinkResolver) *html.Node {
	switch s.Type {
	case SpanStrong:
		return element(atom.Strong)
	case SpanEm:
		return element(atom.Em)
	case SpanHyperlink:
		a := element(atom.A)
		if s.Data == nil {
			return a
		}

		a.Attr = append(a.Attr, html.Attribute{Key: "href", Val: s.Data.href(resolve)})
		if s.Data.Target != "" {
			a.Attr = append(a.Attr,
				html.Attribute{Key: "target", Val: s.Data.Target},
				html.Attribute{Key: "rel", Val: "noopener noreferrer"},
			)
		}
		return a
	default:
		n := element(atom.Span)
		label := s.Type
		if s.Data != nil && s.Data.Label != "" {
			label = s.Data.Label
		}
		n.Attr = append(n.Attr, html.Attribute{Key: "class", Val: label})
		return n
	}
}

// appendText добавляет текст; переводы строк вне <pre> превращаются в <br>.
func appendText(parent *html.Node, units []uint16, pre bool) {
	s := string(utf16.Decode(units))
	if pre {
		parent.AppendChild(&html.Node{Type: html.TextNode, Data: s})
		return
	}

	for i, line := range strings.Split(s, "\n") {
		if i > 0 {
			parent.AppendChild(element(atom.Br))
		}
		if line != "" {
			parent.AppendChild(&html.Node{Type: html.TextNode, Data: line})
		}
	}
}

func imageBlock(b Block, resolve LinkResolver) *html.Node {
	p := element(atom.P)
	p.Attr = []html.Attribute{{Key: "class", Val: "block-img"}}

	img := element(atom.Img)
	img.Attr = []html.Attribute{
		{Key: "src", Val: b.URL},
		{Key: "alt", Val: b.Alt},
	}
	if b.Dimensions != nil {
		img.Attr = append(img.Attr,
			html.Attribute{Key: "width", Val: strconv.Itoa(b.Dimensions.Width)},
			html.Attribute{Key: "height", Val: strconv.Itoa(b.Dimensions.Height)},
		)
	}

	if b.LinkTo == nil {
		p.AppendChild(img)
		return p
	}

	a := element(atom.A)
	a.Attr = []html.Attribute{{Key: "href", Val: b.LinkTo.href(resolve)}}
	a.AppendChild(img)
	p.AppendChild(a)
	return p
}

func embedBlock(b Block) *html.Node {
	div := element(atom.Div)
	if b.Oembed == nil {
		return div
	}

	div.Attr = []html.Attribute{
		{Key: "data-oembed", Val: b.Oembed.EmbedURL},
		{Key: "data-oembed-type", Val: b.Oembed.Type},
		{Key: "data-oembed-provider", Val: b.Oembed.ProviderName},
	}
	// HTML провайдера вставляется как есть.
	div.AppendChild(&html.Node{Type: html.RawNode, Data: b.Oembed.HTML})
	return div
}

func element(a atom.Atom) *html.Node {
	return &html.Node{Type: html.ElementNode, DataAtom: a, Data: a.String()}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
