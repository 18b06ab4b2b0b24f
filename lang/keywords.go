package lang

// Keywords are the reserved words offered during identifier completion.
var Keywords = []string{
	"add", "addr", "alarm", "any", "bool", "break", "case", "const",
	"continue", "copy", "count", "delete", "double", "else", "enum", "event",
	"export", "fallthrough", "file", "for", "function", "global", "hook",
	"if", "in", "int", "interval", "local", "module", "next", "of", "opaque",
	"option", "pattern", "port", "print", "record", "redef", "return",
	"schedule", "set", "string", "subnet", "switch", "table", "time",
	"timeout", "type", "vector", "when", "while",
}
