package cli

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/opencode-ai/themesync/internal/models"
)

const tablePadding = 2

func writeTable(out io.Writer, headers []string, rows [][]string) error {
	writer := tabwriter.NewWriter(out, 0, 0, tablePadding, ' ', tabwriter.StripEscape)
	if len(headers) > 0 {
		fmt.Fprintln(writer, strings.Join(headers, "\t"))
	}
	for _, row := range rows {
		fmt.Fprintln(writer, strings.Join(row, "\t"))
	}
	return writer.Flush()
}

func formatYesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}

func formatMode(mode models.Mode) string {
	if mode == "" {
		return "-"
	}
	return string(mode)
}

// themeRows renders themes for `theme list`. active is marked with "*".
func themeRows(themes []*models.Theme, active string) [][]string {
	rows := make([][]string, 0, len(themes))
	for _, t := range themes {
		marker := ""
		if t.ID == active {
			marker = "*"
		}
		rows = append(rows, []string{
			marker,
			t.ID,
			t.Name,
			formatMode(t.Mode),
			fmt.Sprintf("%d", len(t.Colors)),
			fmt.Sprintf("%d", len(t.Assignments)),
			formatYesNo(t.BuiltIn),
		})
	}
	return rows
}
