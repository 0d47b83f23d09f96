package benchmarks

import (
	"os"
	"strconv"
	"testing"

	"github.com/ndtools/mcp-client/pkg/dispatcher"
	"github.com/ndtools/mcp-client/pkg/ndfc"
)

func itoa(n int) string {
	return strconv.Itoa(n)
}

func BenchmarkParseLine(b *testing.B) {
	lines := map[string]string{
		"Simple": "echo message=hello",
		"Quoted": `write_file path="notes/a b.txt" content='Hello from MCP client!' mode=0644 ratio=0.5`,
		"Many":   "tool a=1 b=2 c=3 d=4 e=5 f=6 g=7 h=8 i=9 j=10 k=eleven l=twelve",
	}
	for name, line := range lines {
		b.Run(name, func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				if _, ok := dispatcher.ParseLine(line); !ok {
					b.Fatal("blank")
				}
			}
		})
	}
}

func BenchmarkValidateResponse(b *testing.B) {
	data, err := os.ReadFile("../resources/responses/v3/vrf_attachments.json")
	if err != nil {
		b.Fatal(err)
	}
	b.SetBytes(int64(len(data)))
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, report := ndfc.ValidateResponse(data); !report.OK() {
			b.Fatal(report.String())
		}
	}
}
