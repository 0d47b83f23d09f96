package server

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/ndtools/mcp-client/pkg/content"
	"github.com/ndtools/mcp-client/pkg/ndfc"
	"github.com/ndtools/mcp-client/pkg/protocol"
	"github.com/ndtools/mcp-client/pkg/utils"
)

// Identity of the ND tools peer
const (
	NDToolsName         = "NexusDashboardDeveloperTools"
	NDToolsInstructions = `This server provides information that will be useful for developers
working with the Nexus Dashboard REST API. It includes tools for
example payloads, links to Pydantic documentation, links to
example Ansible playbooks, and more.`
)

// Content paths below the content root
const (
	PathVrfPayload           = "payloads/v3/vrf.json"
	PathVrfPayloadDoc        = "payloads/v3/md/vrf.md"
	PathVrfAttachmentDoc     = "payloads/v3/md/vrf_attachment.md"
	PathVrfAttachmentsSample = "responses/v3/vrf_attachments.json"
	PathAnsibleDeveloperRole = "prompts/ansible_developer_role.md"
)

// Tool, resource and prompt names of the ND tools peer
const (
	ToolVrfPayload          = "nexus_dashboard_version_3_payload_vrf"
	ToolVrfAttachments      = "nexus_dashboard_version_3_response_vrf_attachments"
	ToolValidateAttachments = "validate_vrf_attachments"
	ToolAttachedSwitches    = "vrf_attached_switches"
	ToolEcho                = "echo"

	ResourceVrfPayload = "file:///resources/payloads/vrf.json"
	PromptAnsibleRole  = "ansible_developer_role"
)

// Tool arguments. Input schemas are reflected from these.
type (
	noArgs struct{}

	validateArgs struct {
		Response interface{} `json:"response,omitempty" jsonschema_description:"The response document, as a JSON string or object"`
	}

	attachedSwitchesArgs struct {
		VRF  string `json:"vrf,omitempty" jsonschema_description:"Only switches attached to this VRF"`
		Role string `json:"role,omitempty" jsonschema_description:"Only switches with this role, e.g. leaf or border spine"`
	}

	echoArgs struct {
		Message string `json:"message" jsonschema:"required" jsonschema_description:"Text to echo"`
	}
)

// ResourceURI maps a content path to the URI it is served under
func ResourceURI(rel string) string {
	return "file:///resources/" + strings.TrimPrefix(rel, "/")
}

// NewNDToolsServer builds the Nexus Dashboard developer peer over the
// files in provider. Markdown and JSON files under payloads/ that are not
// registered explicitly are served too, described by their first heading.
func NewNDToolsServer(provider *content.FileProvider, opts ...Option) (*Server, error) {
	opts = append([]Option{WithName(NDToolsName), WithInstructions(NDToolsInstructions)}, opts...)
	s := New(opts...)
	nd := &ndTools{provider: provider}

	s.AddTool(protocol.Tool{
		Name:        ToolVrfPayload,
		Description: "Nexus Dashboard Version 3 VRF Payload",
		InputSchema: utils.InputSchema(noArgs{}),
	}, nd.jsonFile(PathVrfPayload))

	s.AddTool(protocol.Tool{
		Name: ToolVrfAttachments,
		Description: `Nexus Dashboard Version 3 VRF Attachments Response for the following endpoint:

Path: /appcenter/cisco/ndfc/api/v1/lan-fabric/rest/top-down/fabrics/[fabric_name]/vrfs/attachments?vrf-names=[comma_separated_vrf_names]
Verb: GET`,
		InputSchema: utils.InputSchema(noArgs{}),
	}, nd.jsonFile(PathVrfAttachmentsSample))

	s.AddTool(protocol.Tool{
		Name:        ToolValidateAttachments,
		Description: "Validate a Nexus Dashboard VRF attachments response. Validates the bundled sample when no response is given.",
		InputSchema: utils.InputSchema(validateArgs{}),
	}, nd.validateAttachments)

	s.AddTool(protocol.Tool{
		Name:        ToolAttachedSwitches,
		Description: "List the switches in the sample VRF attachments response, optionally filtered by VRF name or switch role",
		InputSchema: utils.InputSchema(attachedSwitchesArgs{}),
	}, nd.attachedSwitches)

	s.AddTool(protocol.Tool{
		Name:        ToolEcho,
		Description: "Return the message unchanged",
		InputSchema: utils.InputSchema(echoArgs{}),
	}, echo)

	s.AddResource(protocol.Resource{
		URI:         ResourceVrfPayload,
		Name:        "resource_nexus_dashboard_version_3_payload_vrf",
		Description: "Nexus Dashboard Version 3 VRF Payload Resource",
		MimeType:    content.MimeJSON,
	}, nd.file(PathVrfPayload))

	s.AddResource(protocol.Resource{
		URI:         ResourceURI(PathVrfPayloadDoc),
		Name:        "VRF Payload Markdown",
		Description: "Markdown file that describes the VRF payload.",
		MimeType:    content.MimeMarkdown,
	}, nd.file(PathVrfPayloadDoc))

	s.AddResource(protocol.Resource{
		URI:         ResourceURI(PathVrfAttachmentDoc),
		Name:        "VRF Attachment Payload Markdown",
		Description: "Markdown file that describes the VRF attachment payload.",
		MimeType:    content.MimeMarkdown,
	}, nd.file(PathVrfAttachmentDoc))

	if err := nd.addDiscovered(s, "payloads"); err != nil {
		return nil, err
	}

	s.AddPrompt(protocol.Prompt{
		Name:        PromptAnsibleRole,
		Description: "Loads and returns the Ansible developer role prompt from a specified file.",
		Arguments: []protocol.PromptArgument{{
			Name:        "file_path",
			Description: "Path to the prompt template file, relative to the content root",
		}},
	}, nd.ansibleRole)

	return s, nil
}

type ndTools struct {
	provider *content.FileProvider
}

// jsonFile serves a JSON document as indented text
func (nd *ndTools) jsonFile(rel string) ToolHandler {
	return func(ctx context.Context, args map[string]interface{}) (*protocol.CallToolResult, error) {
		doc, err := content.LoadJSON(nd.provider, rel)
		if err != nil {
			return nil, err
		}
		data, err := json.MarshalIndent(doc, "", "  ")
		if err != nil {
			return nil, err
		}
		return protocol.TextResult(string(data)), nil
	}
}

func (nd *ndTools) file(rel string) ResourceReader {
	return func(ctx context.Context, uri string) ([]protocol.ResourceContents, error) {
		text, err := nd.provider.Text(rel)
		if err != nil {
			return nil, err
		}
		return []protocol.ResourceContents{{URI: uri, MimeType: content.MimeType(rel), Text: text}}, nil
	}
}

func (nd *ndTools) addDiscovered(s *Server, dir string) error {
	files, err := nd.provider.Walk(dir)
	if err != nil {
		return err
	}
	for _, rel := range files {
		mimeType := content.MimeType(rel)
		if mimeType != content.MimeMarkdown && mimeType != content.MimeJSON {
			continue
		}
		uri := ResourceURI(rel)
		if _, ok := s.resources.get(uri); ok || rel == PathVrfPayload {
			continue
		}

		res := protocol.Resource{URI: uri, Name: rel, MimeType: mimeType}
		if mimeType == content.MimeMarkdown {
			data, err := nd.provider.Bytes(rel)
			if err != nil {
				return err
			}
			res.Description = content.MarkdownTitle(data)
		}
		s.AddResource(res, nd.file(rel))
	}
	return nil
}

func (nd *ndTools) validateAttachments(ctx context.Context, args map[string]interface{}) (*protocol.CallToolResult, error) {
	var a validateArgs
	if err := utils.BindArguments(args, &a); err != nil {
		return nil, err
	}
	data, err := nd.attachmentsDocument(a.Response)
	if err != nil {
		return nil, err
	}
	_, report := ndfc.ValidateResponse(data)
	if !report.OK() {
		return protocol.ErrorResult(report.String()), nil
	}
	return protocol.TextResult(report.String()), nil
}

// attachmentsDocument returns the raw document given as a tool argument,
// or the bundled sample
func (nd *ndTools) attachmentsDocument(arg interface{}) ([]byte, error) {
	switch v := arg.(type) {
	case nil:
		return nd.provider.Bytes(PathVrfAttachmentsSample)
	case string:
		return []byte(v), nil
	default:
		return json.Marshal(v)
	}
}

func (nd *ndTools) attachedSwitches(ctx context.Context, args map[string]interface{}) (*protocol.CallToolResult, error) {
	var a attachedSwitchesArgs
	if err := utils.BindArguments(args, &a); err != nil {
		return nil, err
	}
	data, err := nd.provider.Bytes(PathVrfAttachmentsSample)
	if err != nil {
		return nil, err
	}
	resp, err := ndfc.Decode(data)
	if err != nil {
		return nil, err
	}

	switches := resp.AttachedSwitches(a.VRF)
	if a.Role != "" {
		var filtered []ndfc.LanAttachment
		for _, s := range switches {
			if s.SwitchRole == a.Role {
				filtered = append(filtered, s)
			}
		}
		switches = filtered
	}
	if len(switches) == 0 {
		return protocol.TextResult("No attached switches"), nil
	}

	sort.SliceStable(switches, func(i, j int) bool { return switches[i].SwitchName < switches[j].SwitchName })
	lines := make([]string, 0, len(switches))
	for _, s := range switches {
		lines = append(lines, fmt.Sprintf("%s (%s) %s %s vrf=%s", s.SwitchName, s.SwitchRole, s.IPAddress, s.LanAttachState, s.VrfName))
	}
	return protocol.TextResult(strings.Join(lines, "\n")), nil
}

func (nd *ndTools) ansibleRole(ctx context.Context, args map[string]interface{}) (*protocol.GetPromptResult, error) {
	rel := PathAnsibleDeveloperRole
	if v, ok := args["file_path"].(string); ok && v != "" {
		rel = v
	}
	text, err := nd.provider.Text(rel)
	if err != nil {
		return nil, err
	}
	return &protocol.GetPromptResult{
		Description: "Ansible developer role",
		Messages: []protocol.PromptMessage{{
			Role:    "user",
			Content: protocol.NewTextContent(text),
		}},
	}, nil
}

func echo(ctx context.Context, args map[string]interface{}) (*protocol.CallToolResult, error) {
	message, ok := args["message"]
	if !ok {
		return nil, fmt.Errorf("missing argument: message")
	}
	return protocol.TextResult(fmt.Sprint(message)), nil
}
