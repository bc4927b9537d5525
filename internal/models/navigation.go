package models

// OtherPost — минимальная проекция поста для ссылок «следующий/предыдущий».
type OtherPost struct {
	UID  string        `json:"uid"`
	Data OtherPostData `json:"data"`
}

type OtherPostData struct {
	Title string `json:"title"`
}

// Direction — направление навигации по дате публикации.
type Direction int

const (
	// Next — более новый пост.
	Next Direction = iota
	// Previous — более старый пост.
	Previous
)

func (d Direction) String() string {
	switch d {
	case Next:
		return "next"
	case Previous:
		return "previous"
	default:
		return "unknown"
	}
}

// Navigation — соседние посты; nil-слот отображается пустым.
type Navigation struct {
	Next     *OtherPost `json:"next"`
	Previous *OtherPost `json:"previous"`
}

// PostView — всё, что нужно для отрисовки детальной страницы.
type PostView struct {
	Post        Post       `json:"post"`
	ReadingTime int        `json:"reading_time"`
	Navigation  Navigation `json:"navigation"`
	Preview     bool       `json:"preview"`
}
