package query

import (
	"fmt"
	"strings"
)

// ItemCapture names the construct node in queries built by ForConstruct.
const ItemCapture = "item"

// NameCapture names the construct's name node in queries built by ForConstruct.
const NameCapture = "name"

// ForConstruct builds the query for "constructs of kind named like pattern".
// kind may be an alias such as "function" or a raw node type. An empty
// pattern or "*" matches every construct of that kind; otherwise the pattern
// is a glob over the construct's name field.
func ForConstruct(kind, pattern string) (*Query, error) {
	if kind == "" {
		return nil, &InvalidQueryError{0, "construct kind is empty"}
	}
	for i := 0; i < len(kind); i++ {
		if !isIdentChar(kind[i]) {
			return nil, &InvalidQueryError{i, fmt.Sprintf("construct kind %q is not a node type", kind)}
		}
	}

	if pattern == "" || pattern == "*" {
		return Parse(fmt.Sprintf("(%s) @%s", kind, ItemCapture))
	}
	return Parse(fmt.Sprintf(`(%s name: (_) @%s (#glob? @%s "%s")) @%s`,
		kind, NameCapture, NameCapture, escape(pattern), ItemCapture))
}

func escape(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\n`, "\t", `\t`, "\r", `\r`)
	return r.Replace(s)
}
