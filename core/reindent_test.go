package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestReindent(t *testing.T) {
	tests := []struct {
		name   string
		text   string
		indent string
		want   string
	}{
		{
			name:   "single line is trimmed",
			text:   "   bar()",
			indent: "    ",
			want:   "bar()",
		},
		{
			name:   "body follows construct indentation",
			text:   "def bar():\n    return 2",
			indent: "    ",
			want:   "def bar():\n        return 2",
		},
		{
			name:   "common indentation removed first",
			text:   "    def bar():\n        return 2\n",
			indent: "\t",
			want:   "def bar():\n\t    return 2\n",
		},
		{
			name:   "blank lines stay blank",
			text:   "func a() {\n\n\treturn\n}",
			indent: "\t",
			want:   "func a() {\n\n\t\treturn\n\t}",
		},
		{
			name:   "top level",
			text:   "fn main() {\n    run();\n}",
			indent: "",
			want:   "fn main() {\n    run();\n}",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Reindent(tt.text, tt.indent))
		})
	}
}
