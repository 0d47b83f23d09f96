package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Content kinds. Kinds other than text are carried as opaque payloads.
const (
	ContentTypeText     = "text"
	ContentTypeImage    = "image"
	ContentTypeAudio    = "audio"
	ContentTypeResource = "resource"
	ContentTypeBlob     = "blob"
)

// Content is one unit of returned content, tagged by Type. For text items
// Text holds the body; for every other kind Payload holds the item exactly
// as the peer sent it.
type Content struct {
	Type     string
	Text     string
	MimeType string
	URI      string
	Data     string
	Payload  json.RawMessage
}

// NewTextContent creates a text content item
func NewTextContent(text string) Content {
	return Content{Type: ContentTypeText, Text: text}
}

// IsText reports whether the item is a text item
func (c Content) IsText() bool {
	return c.Type == ContentTypeText
}

type wireContent struct {
	Type     string          `json:"type"`
	Text     *string         `json:"text,omitempty"`
	MimeType string          `json:"mimeType,omitempty"`
	URI      string          `json:"uri,omitempty"`
	Data     string          `json:"data,omitempty"`
	Resource json.RawMessage `json:"resource,omitempty"`
}

// UnmarshalJSON decodes a tagged content item. A bare JSON string is
// accepted as a text item. Unknown fields are ignored.
func (c *Content) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return err
		}
		*c = NewTextContent(s)
		return nil
	}

	var w wireContent
	if err := json.Unmarshal(trimmed, &w); err != nil {
		return err
	}
	if w.Type == "" {
		return fmt.Errorf("content item missing type")
	}

	*c = Content{Type: w.Type, MimeType: w.MimeType, URI: w.URI, Data: w.Data}
	if w.Type == ContentTypeText {
		if w.Text == nil {
			return fmt.Errorf("text content item missing text")
		}
		c.Text = *w.Text
		return nil
	}
	if w.Text != nil {
		c.Text = *w.Text
	}
	c.Payload = append(json.RawMessage(nil), trimmed...)
	return nil
}

// MarshalJSON encodes the item in its tagged wire form
func (c Content) MarshalJSON() ([]byte, error) {
	if c.Type != ContentTypeText && len(c.Payload) > 0 {
		return c.Payload, nil
	}
	w := wireContent{Type: c.Type, MimeType: c.MimeType, URI: c.URI, Data: c.Data}
	if c.Type == ContentTypeText || c.Text != "" {
		text := c.Text
		w.Text = &text
	}
	return json.Marshal(w)
}

// JoinText concatenates the text items of a content sequence with newlines
func JoinText(items []Content) string {
	var buf bytes.Buffer
	for _, item := range items {
		if !item.IsText() {
			continue
		}
		if buf.Len() > 0 {
			buf.WriteByte('\n')
		}
		buf.WriteString(item.Text)
	}
	return buf.String()
}
