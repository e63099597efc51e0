package probely

import (
	"context"
	"iter"
	"net/http"
	"net/url"
	"strconv"
)

// ScheduledScans lazily lists every scheduled scan of the account. Pages are
// fetched on demand; ranging again starts over from the first page. The
// sequence stops after the first error.
func (c *Client) ScheduledScans(ctx context.Context) iter.Seq2[ScheduledScan, error] {
	return paginate[ScheduledScan](ctx, c, "scheduledscans/", nil)
}

// Targets lazily lists every target of the account.
func (c *Client) Targets(ctx context.Context) iter.Seq2[TargetRecord, error] {
	return paginate[TargetRecord](ctx, c, "targets/", url.Values{"include": {"compliance"}})
}

func paginate[T any](ctx context.Context, c *Client, path string, base url.Values) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		var zero T
		for page := 1; ; page++ {
			p, err := fetchPage[T](ctx, c, path, base, page)
			if err != nil {
				yield(zero, err)
				return
			}
			for _, item := range p.Results {
				if !yield(item, nil) {
					return
				}
			}
			if lastPage(p, page, c.pageSize) {
				return
			}
		}
	}
}

// lastPage trusts page_total when the API sends it. Without it, a page shorter
// than the requested length is the last one.
func lastPage[T any](p *Page[T], page, length int) bool {
	if len(p.Results) == 0 {
		return true
	}
	if p.PageTotal > 0 {
		return page >= p.PageTotal
	}
	return len(p.Results) < length
}

func fetchPage[T any](ctx context.Context, c *Client, path string, base url.Values, page int) (*Page[T], error) {
	query := url.Values{}
	for k, v := range base {
		query[k] = append([]string(nil), v...)
	}
	query.Set("page", strconv.Itoa(page))
	query.Set("length", strconv.Itoa(c.pageSize))

	resp, target, err := c.do(ctx, http.MethodGet, path, query, nil, c.listTimeout)
	if err != nil {
		return nil, err
	}
	if resp.status != http.StatusOK {
		return nil, newStatusError(http.MethodGet, target, resp)
	}

	var p Page[T]
	if err := decodeJSON(http.MethodGet, target, resp, &p); err != nil {
		return nil, err
	}
	return &p, nil
}
