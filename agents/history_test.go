package agents

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/teamgraph/graph"
	"github.com/dshills/teamgraph/graph/model"
)

func TestHistory(t *testing.T) {
	s := graph.State{Messages: []graph.Message{
		graph.HumanMessage("build it"),
		graph.AIMessage("Coder", "done"),
		{Content: "anonymous", Role: graph.RoleAI},
	}}
	assert.Equal(t, []model.Message{
		model.User("build it"),
		model.Assistant("Coder: done"),
		model.Assistant("anonymous"),
	}, History(s))
}

func TestExtractCode(t *testing.T) {
	text := "Here:\n```Python\nprint('a')\n```\nand\n```\necho b\n```"
	blocks := ExtractCode(text)
	require.Len(t, blocks, 2)
	assert.Equal(t, CodeBlock{Lang: "python", Code: "print('a')\n"}, blocks[0])
	assert.Equal(t, CodeBlock{Lang: "", Code: "echo b\n"}, blocks[1])

	assert.Empty(t, ExtractCode("no code here"))
}

func TestLatestCode(t *testing.T) {
	s := graph.State{Messages: []graph.Message{
		graph.AIMessage("Coder", "```go\npackage a\n```"),
		graph.AIMessage("Coder", "```go\npackage b\n```\n```py\nx = 1\n```"),
		graph.AIMessage("FileManager", "saved"),
	}}
	code, ok := LatestCode(s)
	require.True(t, ok)
	assert.Equal(t, "py", code.Lang)
	assert.Equal(t, "x = 1\n", code.Code)

	_, ok = LatestCode(graph.NewState("hello"))
	assert.False(t, ok)
}

func TestFileNames(t *testing.T) {
	name, ok := FileNameIn("please save it as scripts/hello.py now")
	assert.True(t, ok)
	assert.Equal(t, "scripts/hello.py", name)

	_, ok = FileNameIn("save it")
	assert.False(t, ok)

	assert.Equal(t, "main.go", DefaultFileName("go"))
	assert.Equal(t, "main.ts", DefaultFileName("typescript"))
	assert.Equal(t, "main.sh", DefaultFileName("bash"))
	assert.Equal(t, "main.py", DefaultFileName(""))
}

func TestFenced(t *testing.T) {
	assert.Equal(t, "```sh\necho hi\n```", CodeBlock{Lang: "sh", Code: "echo hi"}.Fenced())
	block := CodeBlock{Lang: "py", Code: "x = 1\n"}
	assert.Equal(t, []CodeBlock{block}, ExtractCode(block.Fenced()))
}
