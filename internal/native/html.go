package native

import (
	"bufio"
	"fmt"
	"html"
	"io"
	"strconv"
	"strings"
	"time"

	xhtml "golang.org/x/net/html"

	"github.com/njoerd114/bookmarkrelay/internal/model"
)

// LoadHTML replaces the tree's contents with the bookmarks in a Netscape
// bookmark file. The folder flagged PERSONAL_TOOLBAR_FOLDER fills the
// bookmarks bar, a top-level "Other bookmarks" folder fills other bookmarks,
// and every other top-level item is placed in other bookmarks. No change
// events are emitted.
func (t *Tree) LoadHTML(r io.Reader) error {
	doc, err := xhtml.Parse(r)
	if err != nil {
		return fmt.Errorf("parsing bookmark html: %w", err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.reset()

	toolbar, other := t.byID[ToolbarID], t.byID[OtherID]

	var stack []*model.NativeNode // folders whose DL is open; empty = top level
	var pending *model.NativeNode // folder whose DL has not started yet

	parent := func() *model.NativeNode {
		if len(stack) == 0 {
			return other
		}
		return stack[len(stack)-1]
	}
	add := func(p *model.NativeNode, n *model.NativeNode, hint string) {
		n.ID = t.claimID(hint)
		n.ParentID = p.ID
		n.Index = len(p.Children)
		p.Children = append(p.Children, n)
		t.byID[n.ID] = n
	}

	var walk func(*xhtml.Node)
	walk = func(n *xhtml.Node) {
		if n.Type == xhtml.ElementNode {
			switch strings.ToLower(n.Data) {
			case "h3":
				title := textContent(n)
				pending = nil
				if len(stack) == 0 {
					switch {
					case strings.EqualFold(attr(n, "personal_toolbar_folder"), "true"):
						pending = toolbar
						return
					case title == OtherTitle:
						pending = other
						return
					}
				}
				folder := &model.NativeNode{Title: title, DateAdded: t.dateAttr(n), Children: []*model.NativeNode{}}
				add(parent(), folder, attr(n, "id"))
				pending = folder
				return

			case "a":
				href := attr(n, "href")
				if href == "" {
					return
				}
				add(parent(), &model.NativeNode{Title: textContent(n), URL: href, DateAdded: t.dateAttr(n)}, attr(n, "id"))
				return

			case "dl":
				pushed := false
				if pending != nil {
					stack = append(stack, pending)
					pending = nil
					pushed = true
				}
				for c := n.FirstChild; c != nil; c = c.NextSibling {
					walk(c)
				}
				if pushed {
					stack = stack[:len(stack)-1]
				}
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return nil
}

// claimID returns the id recorded in the file when it is usable, so ids stay
// stable across a save and load, and the next free id otherwise.
func (t *Tree) claimID(hint string) string {
	if v, err := strconv.Atoi(hint); err == nil && v > 2 {
		if _, taken := t.byID[hint]; !taken && strconv.Itoa(v) == hint {
			t.nextID = max(t.nextID, v+1)
			return hint
		}
	}
	for {
		id := strconv.Itoa(t.nextID)
		t.nextID++
		if _, taken := t.byID[id]; !taken {
			return id
		}
	}
}

// dateAttr reads ADD_DATE (unix seconds), falling back to a fresh stamp.
func (t *Tree) dateAttr(n *xhtml.Node) time.Time {
	if v := attr(n, "add_date"); v != "" {
		if ts, err := strconv.ParseInt(v, 10, 64); err == nil {
			d := time.Unix(ts, 0)
			if d.After(t.lastAdded) {
				t.lastAdded = d
			}
			return d
		}
	}
	return t.stamp()
}

func textContent(n *xhtml.Node) string {
	var b strings.Builder
	var extract func(*xhtml.Node)
	extract = func(n *xhtml.Node) {
		if n.Type == xhtml.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			extract(c)
		}
	}
	extract(n)
	return strings.TrimSpace(b.String())
}

func attr(n *xhtml.Node, key string) string {
	for _, a := range n.Attr {
		if strings.EqualFold(a.Key, key) {
			return a.Val
		}
	}
	return ""
}

// WriteHTML writes the tree as a Netscape bookmark file.
func (t *Tree) WriteHTML(w io.Writer) error {
	t.mu.Lock()
	root := t.root.Clone()
	t.mu.Unlock()

	bw := bufio.NewWriter(w)
	bw.WriteString("<!DOCTYPE NETSCAPE-Bookmark-file-1>\n")
	bw.WriteString("<!-- This is an automatically generated file.\n     It will be read and overwritten.\n     DO NOT EDIT! -->\n")
	bw.WriteString("<META HTTP-EQUIV=\"Content-Type\" CONTENT=\"text/html; charset=UTF-8\">\n")
	bw.WriteString("<TITLE>Bookmarks</TITLE>\n")
	bw.WriteString("<H1>Bookmarks</H1>\n")
	bw.WriteString("<DL><p>\n")
	for _, perm := range root.Children {
		toolbarAttr := ""
		if perm.ID == ToolbarID {
			toolbarAttr = ` PERSONAL_TOOLBAR_FOLDER="true"`
		}
		fmt.Fprintf(bw, "    <DT><H3 ADD_DATE=\"%d\"%s>%s</H3>\n", perm.DateAdded.Unix(), toolbarAttr, html.EscapeString(perm.Title))
		bw.WriteString("    <DL><p>\n")
		writeNodes(bw, perm.Children, 2)
		bw.WriteString("    </DL><p>\n")
	}
	bw.WriteString("</DL><p>\n")
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("writing bookmark html: %w", err)
	}
	return nil
}

func writeNodes(w *bufio.Writer, nodes []*model.NativeNode, indent int) {
	prefix := strings.Repeat("    ", indent)
	for _, n := range nodes {
		if n.IsFolder() {
			fmt.Fprintf(w, "%s<DT><H3 ID=\"%s\" ADD_DATE=\"%d\">%s</H3>\n", prefix, n.ID, n.DateAdded.Unix(), html.EscapeString(n.Title))
			fmt.Fprintf(w, "%s<DL><p>\n", prefix)
			writeNodes(w, n.Children, indent+1)
			fmt.Fprintf(w, "%s</DL><p>\n", prefix)
			continue
		}
		fmt.Fprintf(w, "%s<DT><A ID=\"%s\" HREF=\"%s\" ADD_DATE=\"%d\">%s</A>\n",
			prefix, n.ID, html.EscapeString(n.URL), n.DateAdded.Unix(), html.EscapeString(n.Title))
	}
}
