package crawl

import (
	"context"
	"encoding/json"

	"golang.org/x/sync/errgroup"

	"github.com/apiharvest/apiharvest/internal/extract"
	"github.com/apiharvest/apiharvest/internal/httpx"
	"github.com/apiharvest/apiharvest/internal/template"
)

// expandDetails turns each list record into one or more merged rows by
// issuing the target's detail request per record. Requests run
// concurrently up to DetailWorkers; slot assignment keeps the output
// in list-record order regardless of completion order.
func (r *run) expandDetails(ctx context.Context, page int, items []any, records []extract.Row) ([]extract.Row, error) {
	slots := make([][]extract.Row, len(records))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.engine.opts.DetailWorkers)
	for i := range records {
		g.Go(func() error {
			rows, err := r.fetchDetail(gctx, page, items[i], records[i])
			if err != nil {
				return err
			}
			slots[i] = rows
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	merged := make([]extract.Row, 0, len(records))
	for _, rows := range slots {
		merged = append(merged, rows...)
	}
	return finishPage(merged, r.target.NameField), nil
}

// fetchDetail fetches and maps the detail rows for one list record.
// A record that skips its request, or whose response has no items,
// still yields one placeholder row so the list record is not lost.
func (r *run) fetchDetail(ctx context.Context, page int, item any, record extract.Row) ([]extract.Row, error) {
	tgt := r.target
	raw, _ := item.(map[string]any)

	if tgt.DetailKey != "" {
		v, ok := extract.Resolve(raw, tgt.DetailKey)
		if !ok || extract.Stringify(v) == "" {
			r.engine.opts.Logger.Warn("Record has no detail key, skipping detail request",
				"session", r.sessionID,
				"target", tgt.ID,
				"page", page,
				"detail_key", tgt.DetailKey)
			return []extract.Row{mergeRows(record, placeholderRow(tgt.DetailFieldNames()))}, nil
		}
	}

	body, err := r.engine.fetcher.Send(ctx, r.detailRequest(page, raw))
	if err != nil {
		return nil, err
	}

	items := detailItems(body, tgt.Detail.ItemsPath)
	detailRows, _ := extract.MapRecords(items, tgt.Detail.Fields)
	if len(detailRows) == 0 {
		detailRows = []extract.Row{placeholderRow(tgt.DetailFieldNames())}
	}

	out := make([]extract.Row, 0, len(detailRows))
	for _, detail := range detailRows {
		out = append(out, mergeRows(record, detail))
	}
	return out, nil
}

// detailRequest instantiates the detail template against one raw list
// record.
func (r *run) detailRequest(page int, raw map[string]any) httpx.RequestSpec {
	tgt := r.target

	spec := httpx.RequestSpec{
		Method:  tgt.Detail.Method,
		URL:     template.ExpandRecord(tgt.Detail.URL, raw),
		Headers: tgt.Detail.Headers,
		Target:  tgt.ID,
		Phase:   "detail",
		Page:    page,
	}
	if len(tgt.Detail.Query) > 0 {
		if q, ok := template.ForRecord(tgt.Detail.Query, raw).(map[string]any); ok {
			spec.Query = q
		}
	}
	if tgt.Detail.Body != nil {
		spec.Body = template.ForRecord(tgt.Detail.Body, raw)
	}
	return spec
}

// detailItems extracts detail records from a response. Detail payloads
// are looser than list pages: a single object counts as one item, and
// a string at the items path is decoded as embedded JSON first.
func detailItems(body any, path string) []any {
	value, ok := extract.Resolve(body, path)
	if !ok {
		return nil
	}

	if s, isString := value.(string); isString && s != "" {
		var decoded any
		if err := json.Unmarshal([]byte(s), &decoded); err == nil {
			value = decoded
		}
	}

	switch v := value.(type) {
	case []any:
		return v
	case map[string]any:
		return []any{v}
	default:
		return nil
	}
}

// placeholderRow carries every detail column as an empty string.
func placeholderRow(names []string) extract.Row {
	row := make(extract.Row, len(names))
	for _, name := range names {
		row[name] = ""
	}
	return row
}

// mergeRows overlays detail values onto the basic record. Detail wins
// on shared columns.
func mergeRows(basic, detail extract.Row) extract.Row {
	merged := make(extract.Row, len(basic)+len(detail))
	for k, v := range basic {
		merged[k] = v
	}
	for k, v := range detail {
		merged[k] = v
	}
	return merged
}

// finishPage dedupes a merged page and drops rows that carry nothing
// but the name field. When the filter would empty a non-empty page the
// deduped rows are kept as-is.
func finishPage(rows []extract.Row, nameField string) []extract.Row {
	deduped := extract.Dedupe(rows)

	valid := make([]extract.Row, 0, len(deduped))
	for _, row := range deduped {
		if extract.IsValid(row, nameField) {
			valid = append(valid, row)
		}
	}
	if len(valid) == 0 && len(deduped) > 0 {
		return deduped
	}
	return valid
}
