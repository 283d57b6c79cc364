package telegram

import (
	"bytes"
	"html"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

// markdown is the shared converter. Raw HTML in model output is
// escaped by goldmark's default (safe) renderer, so a reply cannot
// smuggle tags past Telegram's entity parser.
var markdown = goldmark.New(
	goldmark.WithExtensions(extension.Strikethrough),
)

// tagRewriter maps the HTML goldmark emits onto the small tag set
// Telegram's sendMessage parse_mode=HTML accepts (b, i, s, u, a, code,
// pre, blockquote). Block structure Telegram has no tags for is
// expressed with newlines and bullet characters instead.
var tagRewriter = strings.NewReplacer(
	"<p>", "",
	"</p>", "\n",
	"<ul>", "",
	"</ul>", "",
	"<ol>", "",
	"</ol>", "",
	"<li>", "• ",
	"</li>", "\n",
	"<h1>", "<b>",
	"</h1>", "</b>\n",
	"<h2>", "<b>",
	"</h2>", "</b>\n",
	"<h3>", "<b>",
	"</h3>", "</b>\n",
	"<h4>", "<b>",
	"</h4>", "</b>\n",
	"<h5>", "<b>",
	"</h5>", "</b>\n",
	"<h6>", "<b>",
	"</h6>", "</b>\n",
	"<em>", "<i>",
	"</em>", "</i>",
	"<strong>", "<b>",
	"</strong>", "</b>",
	"<del>", "<s>",
	"</del>", "</s>",
	"<hr>", "\n",
	"<hr />", "\n",
	"<br>", "\n",
	"<br />", "\n",
)

// RenderHTML converts model-produced markdown into Telegram HTML.
// Conversion failures fall back to escaped plain text rather than
// losing the reply.
func RenderHTML(text string) string {
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(text), &buf); err != nil {
		return html.EscapeString(text)
	}

	out := tagRewriter.Replace(buf.String())

	// Collapse the blank-line runs left behind by removed block tags.
	for strings.Contains(out, "\n\n\n") {
		out = strings.ReplaceAll(out, "\n\n\n", "\n\n")
	}
	return strings.TrimSpace(out)
}
