package dispatcher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Demo names accepted by RunDemo
const (
	DemoAll       = "all"
	DemoTools     = "tools"
	DemoResources = "resources"
	DemoPrompts   = "prompts"
	DemoFiles     = "files"
	DemoSearch    = "search"
)

// demoOrder is the sequence DemoAll runs
var demoOrder = []string{DemoTools, DemoResources, DemoPrompts, DemoFiles, DemoSearch}

// ResourcePreviewLimit bounds how much of a resource the demo prints
const ResourcePreviewLimit = 200

// DemoNames returns the accepted demo names
func DemoNames() []string {
	return append([]string{DemoAll}, demoOrder...)
}

// RunDemo runs the named scripted sequence. A failing demo is reported and
// the next one in an "all" run still starts; only an unknown name or a
// cancelled ctx is returned as an error.
func (d *Dispatcher) RunDemo(ctx context.Context, name string) error {
	names := []string{name}
	if name == DemoAll {
		names = demoOrder
	}

	for _, n := range names {
		demo, ok := d.demos()[n]
		if !ok {
			return fmt.Errorf("unknown demo %q, want one of %s", name, strings.Join(DemoNames(), ", "))
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		fmt.Fprintf(d.out, "\n=== %s ===\n", demoTitle(n))
		if err := demo(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			d.metrics.RecordCommand(ctx, "demo_"+n, OutcomeError)
			fmt.Fprintf(d.out, "%s demo failed: %s\n", demoTitle(n), err)
			continue
		}
		d.metrics.RecordCommand(ctx, "demo_"+n, OutcomeOK)
	}
	return nil
}

func (d *Dispatcher) demos() map[string]func(context.Context) error {
	return map[string]func(context.Context) error{
		DemoTools:     d.demoTools,
		DemoResources: d.demoResources,
		DemoPrompts:   d.demoPrompts,
		DemoFiles:     d.demoFiles,
		DemoSearch:    d.demoSearch,
	}
}

func demoTitle(name string) string {
	switch name {
	case DemoTools:
		return "Available Tools"
	case DemoResources:
		return "Resources Demo"
	case DemoPrompts:
		return "Prompts Demo"
	case DemoFiles:
		return "File Operations Demo"
	case DemoSearch:
		return "Web Search Demo"
	}
	return name
}

func (d *Dispatcher) demoTools(ctx context.Context) error {
	tools, err := d.client.ListTools(ctx)
	if err != nil {
		return err
	}
	for _, tool := range tools {
		fmt.Fprintf(d.out, "Tool: %s\n", tool.Name)
		if tool.Description != "" {
			fmt.Fprintf(d.out, "  Description: %s\n", firstLine(tool.Description))
		}
		if props := tool.InputProperties(); len(props) > 0 {
			sort.Strings(props)
			fmt.Fprintf(d.out, "  Arguments: %s\n", strings.Join(props, ", "))
		}
	}
	return nil
}

func (d *Dispatcher) demoResources(ctx context.Context) error {
	resources, err := d.client.ListResources(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintln(d.out, "Available resources:")
	for _, res := range resources {
		name := res.Name
		if name == "" {
			name = "Unknown"
		}
		fmt.Fprintf(d.out, "  - %s: %s\n", name, res.URI)
		if res.Description != "" {
			fmt.Fprintf(d.out, "    Description: %s\n", res.Description)
		}
	}
	if len(resources) == 0 {
		return nil
	}

	uri := resources[0].URI
	content, err := d.client.ReadResource(ctx, uri)
	if err != nil {
		return err
	}
	fmt.Fprintf(d.out, "\nContent of resource '%s':\n", uri)
	for _, item := range content.Items() {
		if item.IsText() {
			fmt.Fprintln(d.out, Truncate(item.Text, ResourcePreviewLimit))
		}
	}
	return nil
}

func (d *Dispatcher) demoPrompts(ctx context.Context) error {
	prompts, err := d.client.ListPrompts(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintln(d.out, "Available prompts:")
	for _, prompt := range prompts {
		fmt.Fprintf(d.out, "  - %s\n", prompt.Name)
		if prompt.Description != "" {
			fmt.Fprintf(d.out, "    Description: %s\n", prompt.Description)
		}
	}
	if len(prompts) == 0 {
		return nil
	}

	name := prompts[0].Name
	result, err := d.client.GetPrompt(ctx, name, nil)
	if err != nil {
		return err
	}
	fmt.Fprintf(d.out, "\nPrompt '%s':\n", name)
	return RenderPrompt(d.out, result)
}

// DemoFileName is the scratch file written by the file operations demo
const DemoFileName = "mcp_test.txt"

func (d *Dispatcher) demoFiles(ctx context.Context) error {
	ok, err := d.hasTools(ctx, "list_files", "write_file", "read_file")
	if err != nil || !ok {
		return err
	}

	steps := []struct {
		title string
		tool  string
		args  map[string]interface{}
	}{
		{"Files in current directory:", "list_files", map[string]interface{}{"path": "."}},
		{"\nCreated test file:", "write_file", map[string]interface{}{
			"path":    DemoFileName,
			"content": "Hello from MCP client!\nThis is a test file.",
		}},
		{"\nRead test file content:", "read_file", map[string]interface{}{"path": DemoFileName}},
	}
	for _, step := range steps {
		result, err := d.client.CallTool(ctx, step.tool, step.args)
		if err != nil {
			return err
		}
		fmt.Fprintln(d.out, step.title)
		if err := Render(d.out, result); err != nil {
			return err
		}
	}
	return nil
}

func (d *Dispatcher) demoSearch(ctx context.Context) error {
	ok, err := d.hasTools(ctx, "web_search")
	if err != nil || !ok {
		return err
	}

	result, err := d.client.CallTool(ctx, "web_search", map[string]interface{}{
		"query":       "MCP Model Context Protocol",
		"max_results": 3,
	})
	if err != nil {
		return err
	}
	fmt.Fprintln(d.out, "Web search results:")
	return Render(d.out, result)
}

// hasTools reports whether the peer advertises every named tool, printing
// a skip line when it does not
func (d *Dispatcher) hasTools(ctx context.Context, names ...string) (bool, error) {
	tools, err := d.client.ListTools(ctx)
	if err != nil {
		return false, err
	}
	have := make(map[string]bool, len(tools))
	for _, tool := range tools {
		have[tool.Name] = true
	}

	var missing []string
	for _, name := range names {
		if !have[name] {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		fmt.Fprintf(d.out, "Skipped: peer does not provide %s\n", strings.Join(missing, ", "))
		return false, nil
	}
	return true, nil
}

// ErrToolFailed is returned by Call when the tool ran and reported failure
var ErrToolFailed = errors.New("tool reported an error")

// Call invokes one tool outside the loop and renders its result. Unlike
// Execute it returns failures so a one-shot caller can set an exit status.
func (d *Dispatcher) Call(ctx context.Context, tool string, args map[string]interface{}) error {
	toolFailed, err := d.call(ctx, Command{Kind: KindTool, Tool: tool, Args: args})
	switch {
	case err != nil:
		d.metrics.RecordCommand(ctx, KindTool.String(), OutcomeError)
		return err
	case toolFailed:
		d.metrics.RecordCommand(ctx, KindTool.String(), OutcomeToolError)
		return ErrToolFailed
	}
	d.metrics.RecordCommand(ctx, KindTool.String(), OutcomeOK)
	return nil
}

// ArgsFromTokens builds tool arguments from key=value tokens the shell has
// already split, coercing each value like an interactive line
func ArgsFromTokens(tokens []string) map[string]interface{} {
	args := map[string]interface{}{}
	for _, token := range tokens {
		key, value, ok := strings.Cut(token, "=")
		if !ok || key == "" {
			continue
		}
		args[key] = Coerce(value)
	}
	return args
}

// ArgsFromJSON decodes tool arguments given as a JSON object
func ArgsFromJSON(data string) (map[string]interface{}, error) {
	args := map[string]interface{}{}
	if strings.TrimSpace(data) == "" {
		return args, nil
	}
	if err := json.Unmarshal([]byte(data), &args); err != nil {
		return nil, fmt.Errorf("arguments must be a JSON object: %w", err)
	}
	if args == nil {
		args = map[string]interface{}{}
	}
	return args, nil
}
