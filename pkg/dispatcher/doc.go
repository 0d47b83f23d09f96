// Package dispatcher turns lines of text into tool calls on an MCP client.
//
// A line is a tool name followed by key=value arguments:
//
//	echo msg="hello world" count=3 ratio=1.5
//
// Values become integers, then floats, then strings with one layer of
// matching quotes removed. The words list, quit and exit are commands of
// their own in any case. A failing command prints "Error: ..." and the loop
// reads the next line.
package dispatcher
