package services

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	types "github.com/yungbote/chatrelay-backend/internal/domain"
	"github.com/yungbote/chatrelay-backend/internal/realtime"
)

// NormalizeSources maps the citation shapes the generation service has used over
// time onto SourceView. Recognized keys: id|identifier|url, source|title|name,
// page|locator, content|text. Entries with neither identifier nor title are dropped.
func NormalizeSources(items []map[string]any) []realtime.SourceView {
	out := make([]realtime.SourceView, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		v := realtime.SourceView{
			Identifier: firstString(item, "id", "identifier", "url"),
			Title:      firstString(item, "source", "title", "name"),
		}
		if loc := firstString(item, "page", "locator"); loc != "" {
			v.Locator = &loc
		}
		if content := firstString(item, "content", "text"); content != "" {
			v.Content = &content
		}
		if v.Identifier == "" && v.Title == "" {
			continue
		}
		out = append(out, v)
	}
	return out
}

func firstString(item map[string]any, keys ...string) string {
	for _, k := range keys {
		raw, ok := item[k]
		if !ok || raw == nil {
			continue
		}
		if s := stringify(raw); s != "" {
			return s
		}
	}
	return ""
}

func stringify(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case json.Number:
		return t.String()
	case bool:
		return strconv.FormatBool(t)
	default:
		return strings.TrimSpace(fmt.Sprint(t))
	}
}

func sourceRows(views []realtime.SourceView) []*types.Source {
	rows := make([]*types.Source, 0, len(views))
	for _, v := range views {
		rows = append(rows, &types.Source{
			Identifier: v.Identifier,
			Title:      v.Title,
			Locator:    v.Locator,
			Content:    v.Content,
		})
	}
	return rows
}

func sourceViews(rows []*types.Source) []realtime.SourceView {
	out := make([]realtime.SourceView, 0, len(rows))
	for _, r := range rows {
		out = append(out, realtime.SourceView{
			Identifier: r.Identifier,
			Title:      r.Title,
			Locator:    r.Locator,
			Content:    r.Content,
		})
	}
	return out
}
