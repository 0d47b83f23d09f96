package protocol

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCallToolResultDecode(t *testing.T) {
	data := []byte(`{
		"content": [
			{"type": "text", "text": "hello world", "annotations": {"audience": ["user"]}},
			{"type": "image", "data": "aGk=", "mimeType": "image/png"},
			{"type": "hologram", "depth": 3}
		],
		"isError": false,
		"_meta": {"progressToken": 1}
	}`)

	var result CallToolResult
	require.NoError(t, json.Unmarshal(data, &result))
	require.Len(t, result.Content, 3)
	assert.False(t, result.IsError)

	assert.True(t, result.Content[0].IsText())
	assert.Equal(t, "hello world", result.Content[0].Text)
	assert.Empty(t, result.Content[0].Payload)

	assert.Equal(t, ContentTypeImage, result.Content[1].Type)
	assert.Equal(t, "image/png", result.Content[1].MimeType)
	assert.JSONEq(t, `{"type": "image", "data": "aGk=", "mimeType": "image/png"}`, string(result.Content[1].Payload))

	assert.Equal(t, "hologram", result.Content[2].Type)
	assert.JSONEq(t, `{"type": "hologram", "depth": 3}`, string(result.Content[2].Payload))
}

func TestContentDecodeErrors(t *testing.T) {
	var c Content
	assert.Error(t, json.Unmarshal([]byte(`{"text":"no type"}`), &c))
	assert.Error(t, json.Unmarshal([]byte(`{"type":"text"}`), &c))
	assert.Error(t, json.Unmarshal([]byte(`[1,2]`), &c))
}

func TestContentBareString(t *testing.T) {
	var msg PromptMessage
	require.NoError(t, json.Unmarshal([]byte(`{"role":"user","content":"plain words"}`), &msg))
	assert.Equal(t, "user", msg.Role)
	assert.Equal(t, NewTextContent("plain words"), msg.Content)
}

func TestContentMarshalPreservesPayload(t *testing.T) {
	in := []byte(`{"type":"resource","resource":{"uri":"file:///x","text":"body"}}`)
	var c Content
	require.NoError(t, json.Unmarshal(in, &c))

	out, err := json.Marshal(c)
	require.NoError(t, err)
	assert.JSONEq(t, string(in), string(out))

	out, err = json.Marshal(NewTextContent(""))
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"text","text":""}`, string(out))
}

func TestReadResourceResultItems(t *testing.T) {
	var result ReadResourceResult
	require.NoError(t, json.Unmarshal([]byte(`{"contents":[
		{"uri":"file:///resources/payloads/vrf.json","mimeType":"application/json","text":"{}"},
		{"uri":"file:///logo.png","mimeType":"image/png","blob":"iVBO"}
	]}`), &result))

	items := result.Items()
	require.Len(t, items, 2)
	assert.Equal(t, ContentTypeText, items[0].Type)
	assert.Equal(t, "{}", items[0].Text)
	assert.Equal(t, "file:///resources/payloads/vrf.json", items[0].URI)
	assert.Equal(t, ContentTypeBlob, items[1].Type)
	assert.Equal(t, "iVBO", items[1].Data)
}

func TestListToolsPreservesOrder(t *testing.T) {
	var result ListToolsResult
	require.NoError(t, json.Unmarshal([]byte(`{"tools":[
		{"name":"zeta","inputSchema":{"type":"object"},"annotations":{"title":"Z"}},
		{"name":"alpha","description":"first letter"},
		{"name":"mid"}
	]}`), &result))

	names := make([]string, 0, len(result.Tools))
	for _, tool := range result.Tools {
		names = append(names, tool.Name)
	}
	assert.Equal(t, []string{"zeta", "alpha", "mid"}, names)
	assert.Equal(t, "first letter", result.Tools[1].Description)
}

func TestToolInputProperties(t *testing.T) {
	tool := Tool{Name: "write_file", InputSchema: json.RawMessage(`{"type":"object","properties":{"path":{"type":"string"}}}`)}
	assert.Equal(t, []string{"path"}, tool.InputProperties())
	assert.Nil(t, Tool{Name: "bare"}.InputProperties())
}

func TestPromptRequiredArguments(t *testing.T) {
	p := Prompt{Name: "p", Arguments: []PromptArgument{{Name: "a", Required: true}, {Name: "b"}, {Name: "c", Required: true}}}
	assert.Equal(t, []string{"a", "c"}, p.RequiredArguments())
}

func TestJoinText(t *testing.T) {
	items := []Content{NewTextContent("one"), {Type: ContentTypeImage}, NewTextContent("two")}
	assert.Equal(t, "one\ntwo", JoinText(items))
	assert.Equal(t, "", JoinText(nil))
}
