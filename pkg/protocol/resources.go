package protocol

// Resource represents a readable piece of content addressed by URI
type Resource struct {
	URI         string `json:"uri"`
	Name        string `json:"name,omitempty"`
	Description string `json:"description,omitempty"`
	MimeType    string `json:"mimeType,omitempty"`
}

// ListResourcesParams defines parameters for listing resources
type ListResourcesParams struct {
	Cursor string `json:"cursor,omitempty"`
}

// ListResourcesResult defines the response for listing resources
type ListResourcesResult struct {
	Resources  []Resource `json:"resources"`
	NextCursor string     `json:"nextCursor,omitempty"`
}

// ReadResourceParams defines parameters for reading a resource
type ReadResourceParams struct {
	URI string `json:"uri"`
}

// ResourceContents is one entry of a resources/read response. Exactly one of
// Text or Blob is set.
type ResourceContents struct {
	URI      string `json:"uri"`
	MimeType string `json:"mimeType,omitempty"`
	Text     string `json:"text,omitempty"`
	Blob     string `json:"blob,omitempty"`
}

// ToContent normalises resource contents into a content item
func (rc ResourceContents) ToContent() Content {
	if rc.Blob != "" {
		return Content{Type: ContentTypeBlob, URI: rc.URI, MimeType: rc.MimeType, Data: rc.Blob}
	}
	return Content{Type: ContentTypeText, URI: rc.URI, MimeType: rc.MimeType, Text: rc.Text}
}

// ReadResourceResult defines the response for reading a resource
type ReadResourceResult struct {
	Contents []ResourceContents `json:"contents"`
}

// Items returns the contents as an ordered sequence of content items
func (r *ReadResourceResult) Items() []Content {
	items := make([]Content, 0, len(r.Contents))
	for _, c := range r.Contents {
		items = append(items, c.ToContent())
	}
	return items
}
