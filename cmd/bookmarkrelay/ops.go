package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/njoerd114/bookmarkrelay/internal/native"
)

// op is one line of a replay file.
type op struct {
	Op     string  `json:"op"`
	Ref    string  `json:"ref,omitempty"`
	ID     string  `json:"id,omitempty"`
	Parent string  `json:"parent,omitempty"`
	Index  *int    `json:"index,omitempty"`
	Title  *string `json:"title,omitempty"`
	URL    *string `json:"url,omitempty"`
}

// readOps parses a JSON-lines replay file. Blank lines and lines starting
// with # are skipped.
func readOps(r io.Reader) ([]op, error) {
	var ops []op
	scanner := bufio.NewScanner(r)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		var o op
		dec := json.NewDecoder(strings.NewReader(text))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&o); err != nil {
			return nil, fmt.Errorf("ops line %d: %w", line, err)
		}
		switch o.Op {
		case "create", "move", "update", "remove", "visit":
		default:
			return nil, fmt.Errorf("ops line %d: unknown op %q", line, o.Op)
		}
		ops = append(ops, o)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading ops: %w", err)
	}
	return ops, nil
}

// replayer applies ops to a native tree.
type replayer struct {
	api   native.API
	refs  map[string]string
	visit func(url string)
}

func newReplayer(api native.API, visit func(url string)) *replayer {
	return &replayer{api: api, refs: make(map[string]string), visit: visit}
}

// resolve maps an op id to a native id.
func (r *replayer) resolve(id string) (string, error) {
	switch {
	case id == "toolbar":
		return native.ToolbarID, nil
	case id == "other":
		return native.OtherID, nil
	case strings.HasPrefix(id, "@"):
		nativeID, ok := r.refs[id[1:]]
		if !ok {
			return "", fmt.Errorf("unknown ref %q", id)
		}
		return nativeID, nil
	default:
		return id, nil
	}
}

func (r *replayer) apply(ctx context.Context, o op) error {
	switch o.Op {
	case "visit":
		if o.URL == nil {
			return fmt.Errorf("visit needs a url")
		}
		r.visit(*o.URL)
		return nil

	case "create":
		parent := ""
		if o.Parent != "" {
			p, err := r.resolve(o.Parent)
			if err != nil {
				return err
			}
			parent = p
		}
		d := native.CreateDetails{ParentID: parent, Index: o.Index}
		if o.Title != nil {
			d.Title = *o.Title
		}
		if o.URL != nil {
			d.URL = *o.URL
		}
		n, err := r.api.Create(ctx, d)
		if err != nil {
			return err
		}
		if o.Ref != "" {
			r.refs[o.Ref] = n.ID
		}
		return nil
	}

	id, err := r.resolve(o.ID)
	if err != nil {
		return err
	}
	switch o.Op {
	case "move":
		dest := native.Destination{Index: o.Index}
		if o.Parent != "" {
			if dest.ParentID, err = r.resolve(o.Parent); err != nil {
				return err
			}
		}
		_, err = r.api.Move(ctx, id, dest)
	case "update":
		_, err = r.api.Update(ctx, id, native.Changes{Title: o.Title, URL: o.URL})
	case "remove":
		err = r.api.Remove(ctx, id)
	}
	return err
}
