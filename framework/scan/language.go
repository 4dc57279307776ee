package scan

import "strings"

var languages = map[string]string{
	".go":      "Go",
	".py":      "Python",
	".js":      "JavaScript",
	".jsx":     "JavaScript",
	".mjs":     "JavaScript",
	".ts":      "TypeScript",
	".tsx":     "TypeScript",
	".java":    "Java",
	".kt":      "Kotlin",
	".c":       "C",
	".h":       "C",
	".cpp":     "C++",
	".cc":      "C++",
	".hpp":     "C++",
	".cs":      "C#",
	".rs":      "Rust",
	".rb":      "Ruby",
	".php":     "PHP",
	".swift":   "Swift",
	".lua":     "Lua",
	".sh":      "Shell",
	".ps1":     "PowerShell",
	".sql":     "SQL",
	".proto":   "Protobuf",
	".graphql": "GraphQL",
	".html":    "HTML",
	".css":     "CSS",
	".scss":    "SCSS",
	".xaml":    "XAML",
	".xml":     "XML",
	".json":    "JSON",
	".yaml":    "YAML",
	".yml":     "YAML",
	".toml":    "TOML",
	".ini":     "INI",
	".tf":      "Terraform",
	".md":      "Markdown",
	".rst":     "reStructuredText",
	".txt":     "Text",
}

// LanguageOf returns a display label for an extension key. Unknown
// extensions are shown without their dot; the empty key is "(none)".
func LanguageOf(ext string) string {
	if ext == "" {
		return "(none)"
	}
	if lang, ok := languages[strings.ToLower(ext)]; ok {
		return lang
	}
	return strings.TrimPrefix(ext, ".")
}
