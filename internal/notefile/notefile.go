// Package notefile reads and writes note records as Markdown files with a
// YAML frontmatter block.
package notefile

import (
	"bytes"
	"fmt"
	"path"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/starford/ansuz/internal/models"
)

// Ext is the file extension of note files.
const Ext = ".md"

const delim = "---"

type frontmatter struct {
	Path    string    `yaml:"path,omitempty"`
	Parent  string    `yaml:"parent,omitempty"`
	Created time.Time `yaml:"created,omitempty"`
	Updated time.Time `yaml:"updated,omitempty"`
	Viewed  time.Time `yaml:"viewed,omitempty"`
}

// FileName returns the vault file name of a note id.
func FileName(id string) string { return id + Ext }

// IDOf returns the note id of a vault file name, or false when name is not a
// top-level note file.
func IDOf(name string) (string, bool) {
	name = path.Clean(strings.ReplaceAll(name, "\\", "/"))
	if strings.Contains(name, "/") || !strings.HasSuffix(name, Ext) {
		return "", false
	}
	id := strings.TrimSuffix(name, Ext)
	if id == "" || strings.HasPrefix(id, ".") {
		return "", false
	}
	return id, true
}

// Decode parses a note file. A file without frontmatter is all content;
// frontmatter that is not valid YAML is an error.
func Decode(id string, data []byte) (*models.Note, error) {
	n := &models.Note{ID: id}
	block, body, ok := split(data)
	if !ok {
		n.Content = string(data)
		return n, nil
	}
	var fm frontmatter
	if err := yaml.Unmarshal(block, &fm); err != nil {
		return nil, fmt.Errorf("notefile: %s: frontmatter: %w", id, err)
	}
	n.Path = fm.Path
	n.ParentID = fm.Parent
	n.CreatedAt = fm.Created
	n.UpdatedAt = fm.Updated
	n.ViewedAt = fm.Viewed
	n.Content = body
	return n, nil
}

// Encode renders n as a note file.
func Encode(n *models.Note) ([]byte, error) {
	fm := frontmatter{
		Path:    n.Path,
		Parent:  n.ParentID,
		Created: n.CreatedAt.UTC(),
		Updated: n.UpdatedAt.UTC(),
		Viewed:  n.ViewedAt.UTC(),
	}
	block, err := yaml.Marshal(fm)
	if err != nil {
		return nil, fmt.Errorf("notefile: %s: encode: %w", n.ID, err)
	}
	var buf bytes.Buffer
	buf.WriteString(delim + "\n")
	buf.Write(block)
	buf.WriteString(delim + "\n")
	buf.WriteString(n.Content)
	return buf.Bytes(), nil
}

// split separates the frontmatter block from the body. The body starts on
// the line after the closing delimiter and is otherwise kept byte for byte.
func split(data []byte) (block []byte, body string, ok bool) {
	if !bytes.HasPrefix(data, []byte(delim+"\n")) {
		return nil, "", false
	}
	rest := data[len(delim)+1:]
	if bytes.HasPrefix(rest, []byte(delim+"\n")) || bytes.Equal(rest, []byte(delim)) {
		return nil, strings.TrimPrefix(string(rest[len(delim):]), "\n"), true
	}
	idx := bytes.Index(rest, []byte("\n"+delim))
	if idx < 0 {
		return nil, "", false
	}
	after := rest[idx+1+len(delim):]
	switch {
	case len(after) == 0:
	case after[0] == '\n':
		after = after[1:]
	default:
		return nil, "", false
	}
	return rest[:idx+1], string(after), true
}
