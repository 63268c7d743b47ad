// Package prompt provides shared prompt rendering utilities.
package prompt

import (
	"fmt"
	"sort"
	"strings"
)

// Render substitutes {{.key}} placeholders in template with their values.
// Unknown placeholders are left in place so missing variables are visible
// in the rendered output.
func Render(template string, vars map[string]any) string {
	if len(vars) == 0 {
		return template
	}

	result := template
	for key, value := range vars {
		result = strings.ReplaceAll(result, "{{."+key+"}}", fmt.Sprint(value))
	}

	return result
}

// Section formats a titled prompt section with a blank line separator.
func Section(title, body string) string {
	if body == "" {
		return ""
	}

	return "## " + title + "\n\n" + strings.TrimSpace(body) + "\n"
}

// BulletList formats items as a markdown bullet list in sorted order.
func BulletList(items map[string]string) string {
	keys := make([]string, 0, len(items))
	for k := range items {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		b.WriteString("- **")
		b.WriteString(k)
		b.WriteString("**: ")
		b.WriteString(items[k])
		b.WriteString("\n")
	}

	return b.String()
}
