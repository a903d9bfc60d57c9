package collector

import (
	"strings"

	"golang.org/x/net/html"
)

// hasClass reports whether n carries every class in classes.
func hasClass(n *html.Node, classes ...string) bool {
	if n == nil || n.Type != html.ElementNode {
		return false
	}
	have := strings.Fields(attr(n, "class"))
	for _, want := range classes {
		found := false
		for _, c := range have {
			if c == want {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

// findAll returns the descendants of n matching match, in document order.
func findAll(n *html.Node, match func(*html.Node) bool) []*html.Node {
	var out []*html.Node
	var walk func(*html.Node)
	walk = func(c *html.Node) {
		for ch := c.FirstChild; ch != nil; ch = ch.NextSibling {
			if match(ch) {
				out = append(out, ch)
			}
			walk(ch)
		}
	}
	if n != nil {
		walk(n)
	}
	return out
}

// findFirst returns the first descendant of n matching match, or nil.
func findFirst(n *html.Node, match func(*html.Node) bool) *html.Node {
	if n == nil {
		return nil
	}
	for ch := n.FirstChild; ch != nil; ch = ch.NextSibling {
		if match(ch) {
			return ch
		}
		if found := findFirst(ch, match); found != nil {
			return found
		}
	}
	return nil
}

func byClass(classes ...string) func(*html.Node) bool {
	return func(n *html.Node) bool { return hasClass(n, classes...) }
}

func byTag(tag string) func(*html.Node) bool {
	return func(n *html.Node) bool { return n.Type == html.ElementNode && n.Data == tag }
}

// within matches an element of tag inside an element carrying class.
func within(class, tag string) func(*html.Node) bool {
	return func(n *html.Node) bool {
		if n.Type != html.ElementNode || n.Data != tag {
			return false
		}
		for p := n.Parent; p != nil; p = p.Parent {
			if hasClass(p, class) {
				return true
			}
		}
		return false
	}
}

// text returns the whitespace-collapsed text content of n.
func text(n *html.Node) string {
	if n == nil {
		return ""
	}
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(c *html.Node) {
		if c.Type == html.TextNode {
			b.WriteString(c.Data)
			b.WriteByte(' ')
		}
		for ch := c.FirstChild; ch != nil; ch = ch.NextSibling {
			walk(ch)
		}
	}
	walk(n)
	return strings.Join(strings.Fields(b.String()), " ")
}

// snippet truncates s to n runes.
func snippet(s string, n int) string {
	r := []rune(strings.TrimSpace(s))
	if len(r) <= n {
		return string(r)
	}
	return string(r[:n])
}
