package richtext

import (
	"fmt"
	"strings"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"golang.org/x/net/html/atom"
)

// Markdown конвертирует блоки в Markdown через то же дерево узлов, что и HTML.
func Markdown(blocks Blocks, resolve LinkResolver) (string, error) {
	const op = "richtext.Markdown"

	root := element(atom.Div)
	for _, n := range Nodes(blocks, resolve) {
		root.AppendChild(n)
	}

	out, err := htmltomarkdown.ConvertNode(root)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	return strings.TrimSpace(string(out)), nil
}
