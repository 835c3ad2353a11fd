package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/nao1215/scanexport/internal/model"
)

// ListParams configures one paginated list call.
// Filter and Mask are passed through verbatim; the client never interprets
// the filter grammar.
type ListParams struct {
	// Filter is the vendor filter expression, e.g.
	// "context.type==CONTEXT_TYPE_MAIN and spec.project_uuid==<id>".
	Filter string

	// Mask is the comma-separated field mask limiting response payloads.
	Mask string

	// PageSize is the requested page size. 0 omits the parameter and
	// accepts the server default.
	PageSize int

	// Traverse asks the server to include child namespaces.
	Traverse bool

	// ServerTimeout hints a server-side deadline, e.g. "240s". Optional.
	ServerTimeout string

	// Timeout bounds each page fetch client-side. 0 means the client
	// default.
	Timeout time.Duration

	// AdaptivePageSize halves the page size (down to MinPageSize) and
	// retries the same page when a fetch fails after exhausting its retry
	// budget. Large findings pages are the usual cause of such failures,
	// so smaller pages often succeed where big ones time out.
	AdaptivePageSize bool

	// MinPageSize is the adaptive floor. Once reached, failures are real.
	MinPageSize int
}

// listEnvelope is the vendor's pagination envelope:
//
//	{"list": {"objects": [...], "response": {"next_page_id": "..."}}}
type listEnvelope struct {
	List struct {
		Objects  []model.Record `json:"objects"`
		Response struct {
			NextPageID string `json:"next_page_id"`
		} `json:"response"`
	} `json:"list"`
}

// ListAll fetches every page of a list endpoint and returns the
// concatenated records in page order.
//
// The loop has no iteration cap: it terminates only when a page returns no
// continuation token. Duplicate handling is the endpoint's own pagination
// contract; nothing is deduplicated here. Any page failure (after retries
// and adaptive shrinking) aborts the whole listing; partially collected
// records are discarded by callers that need all-or-nothing semantics.
func (c *Client) ListAll(ctx context.Context, path string, params ListParams) ([]model.Record, error) {
	var all []model.Record

	pageSize := params.PageSize
	pageID := ""

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		query := params.query(pageSize, pageID)
		body, err := c.get(ctx, path, query, params.Timeout)
		if err != nil {
			if params.AdaptivePageSize && pageSize > params.MinPageSize {
				pageSize = max(params.MinPageSize, pageSize/2)
				c.logger.Debug("page fetch failed, reducing page size",
					"path", path,
					"newPageSize", pageSize,
					"cause", err.Error(),
				)
				continue
			}
			return nil, fmt.Errorf("listing %s: %w", path, err)
		}

		var envelope listEnvelope
		if err := json.Unmarshal(body, &envelope); err != nil {
			return nil, fmt.Errorf("%w: listing %s: %w", ErrDataShape, path, err)
		}

		all = append(all, envelope.List.Objects...)

		pageID = envelope.List.Response.NextPageID
		if pageID == "" {
			return all, nil
		}
	}
}

// query builds the list_parameters query string for one page.
func (p ListParams) query(pageSize int, pageID string) url.Values {
	query := url.Values{}
	if p.Filter != "" {
		query.Set("list_parameters.filter", p.Filter)
	}
	if p.Mask != "" {
		query.Set("list_parameters.mask", p.Mask)
	}
	if pageSize > 0 {
		query.Set("list_parameters.page_size", strconv.Itoa(pageSize))
	}
	if p.Traverse {
		query.Set("list_parameters.traverse", "true")
	}
	if p.ServerTimeout != "" {
		query.Set("list_parameters.timeout", p.ServerTimeout)
	}
	if pageID != "" {
		query.Set("list_parameters.page_id", pageID)
	}
	return query
}
