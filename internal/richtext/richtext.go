// richtext моделирует структурированный rich text Prismic: последовательность
// блоков (paragraph, heading1..6, list-item, image, embed, ...) с inline-спанами.
//
// Рендер в HTML, в plain text и в Markdown разнесены по отдельным чистым функциям.
// HTML не санитизируется: содержимое CMS считается доверенным.
package richtext

// Типы блоков.
const (
	TypeParagraph    = "paragraph"
	TypePreformatted = "preformatted"
	TypeListItem     = "list-item"
	TypeOListItem    = "o-list-item"
	TypeImage        = "image"
	TypeEmbed        = "embed"
	TypeHeading1     = "heading1"
	TypeHeading2     = "heading2"
	TypeHeading3     = "heading3"
	TypeHeading4     = "heading4"
	TypeHeading5     = "heading5"
	TypeHeading6     = "heading6"
)

// Типы спанов.
const (
	SpanStrong    = "strong"
	SpanEm        = "em"
	SpanHyperlink = "hyperlink"
	SpanLabel     = "label"
)

// Block — один блок rich text.
// Text/Spans заполнены у текстовых блоков; URL/Alt/Dimensions/LinkTo — у image;
// Oembed — у embed.
type Block struct {
	Type       string      `json:"type"`
	Text       string      `json:"text,omitempty"`
	Spans      []Span      `json:"spans,omitempty"`
	URL        string      `json:"url,omitempty"`
	Alt        string      `json:"alt,omitempty"`
	Dimensions *Dimensions `json:"dimensions,omitempty"`
	LinkTo     *Link       `json:"linkTo,omitempty"`
	Oembed     *Embed      `json:"oembed,omitempty"`
}

// Blocks — тело секции поста.
type Blocks []Block

// Span — стилевой диапазон [Start, End) в UTF-16 code units.
type Span struct {
	Start int       `json:"start"`
	End   int       `json:"end"`
	Type  string    `json:"type"`
	Data  *SpanData `json:"data,omitempty"`
}

// SpanData — данные hyperlink/label спана.
type SpanData struct {
	Link
	Label string `json:"label,omitempty"`
}

// Link — ссылка Prismic: Web/Media (URL) или Document (ID/UID/Type).
type Link struct {
	LinkType string `json:"link_type,omitempty"`
	URL      string `json:"url,omitempty"`
	Target   string `json:"target,omitempty"`
	ID       string `json:"id,omitempty"`
	UID      string `json:"uid,omitempty"`
	Type     string `json:"type,omitempty"`
}

// Dimensions — размеры изображения.
type Dimensions struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Embed — oEmbed-объект.
type Embed struct {
	Type         string `json:"type,omitempty"`
	EmbedURL     string `json:"embed_url,omitempty"`
	ProviderName string `json:"provider_name,omitempty"`
	Title        string `json:"title,omitempty"`
	HTML         string `json:"html,omitempty"`
}

// LinkResolver строит href для ссылок на документы CMS.
type LinkResolver func(Link) string

// DefaultLinkResolver: документ типа posts -> /post/{uid}, прочие -> "/".
// Web/Media ссылки отдаются как есть.
func DefaultLinkResolver(l Link) string {
	if l.LinkType != "Document" {
		return l.URL
	}

	if l.Type == "posts" && l.UID != "" {
		return "/post/" + l.UID
	}

	return "/"
}

func (l Link) href(resolve LinkResolver) string {
	if resolve == nil {
		resolve = DefaultLinkResolver
	}

	return resolve(l)
}
