package cards

import (
	"bytes"
	"net/url"
	"strings"

	"crabber/internal/models"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Metadata is what a card shows for a page.
type Metadata struct {
	Title       string
	Description string
	Image       string
}

type pageTags struct {
	ogTitle, ogDescription, ogImage *string
	metaTitle, metaDescription      *string
	title                           *string
	icon                            *string
}

// ParseMetadata extracts card fields from an HTML page. Each field falls back
// in order: OpenGraph tag, generic meta tag, then the page title for the
// title, the first icon link for the image, and finally the default image.
func ParseMetadata(page *Page) (Metadata, error) {
	doc, err := html.Parse(bytes.NewReader(page.Body))
	if err != nil {
		return Metadata{}, err
	}

	var tags pageTags
	walk(doc, &tags)

	meta := Metadata{
		Title:       first(tags.ogTitle, tags.metaTitle, tags.title),
		Description: first(tags.ogDescription, tags.metaDescription),
		Image:       first(tags.ogImage, tags.icon),
	}
	if meta.Title == "" {
		meta.Title = page.URL
	}
	if meta.Image == "" {
		meta.Image = models.DefaultCardImage
	} else {
		meta.Image = absolute(page.URL, meta.Image)
	}
	return meta, nil
}

func walk(n *html.Node, tags *pageTags) {
	if n.Type == html.ElementNode {
		switch n.DataAtom {
		case atom.Meta:
			content, ok := attr(n, "content")
			if !ok {
				break
			}
			property, _ := attr(n, "property")
			name, _ := attr(n, "name")
			switch {
			case property == "og:title":
				setOnce(&tags.ogTitle, content)
			case property == "og:description":
				setOnce(&tags.ogDescription, content)
			case property == "og:image":
				setOnce(&tags.ogImage, content)
			case strings.EqualFold(name, "title"):
				setOnce(&tags.metaTitle, content)
			case strings.EqualFold(name, "description"):
				setOnce(&tags.metaDescription, content)
			}
		case atom.Title:
			if n.FirstChild != nil && n.FirstChild.Type == html.TextNode {
				setOnce(&tags.title, n.FirstChild.Data)
			}
		case atom.Link:
			class, _ := attr(n, "class")
			rel, _ := attr(n, "rel")
			if href, ok := attr(n, "href"); ok && (strings.Contains(class, "icon") || strings.Contains(rel, "icon")) {
				setOnce(&tags.icon, href)
			}
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walk(c, tags)
	}
}

func attr(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

func setOnce(dst **string, v string) {
	if *dst == nil {
		v = strings.TrimSpace(v)
		*dst = &v
	}
}

// first returns the first non-empty candidate.
func first(candidates ...*string) string {
	for _, c := range candidates {
		if c != nil && *c != "" {
			return *c
		}
	}
	return ""
}

func absolute(base, ref string) string {
	b, err := url.Parse(base)
	if err != nil {
		return ref
	}
	r, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return b.ResolveReference(r).String()
}
