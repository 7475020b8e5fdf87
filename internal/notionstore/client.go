// Package notionstore wraps notionapi.Client as the convert.BlockStore
// collaborator: page creation, batched child appends, and rich-text
// rewrites, all gated by a shared token-bucket rate limiter, adapted from
// the reference lineage's internal/notion package (its Client, rate
// limiting, and batch-append pattern are the same; only the operation
// set changes, since this store only ever creates one page per document
// and never reads a database or queries existing pages).
package notionstore

import (
	"context"
	"fmt"
	"time"

	"github.com/jomei/notionapi"
	"golang.org/x/time/rate"

	"github.com/sn2notion/sn2notion/internal/convert"
)

const (
	// DefaultRateLimit matches Notion's documented 3 requests/second limit.
	DefaultRateLimit = 3
	// DefaultBatchSize is the max blocks Notion accepts per append call.
	DefaultBatchSize = 100
)

// Client implements convert.BlockStore against the real Notion API.
type Client struct {
	api       *notionapi.Client
	limiter   *rate.Limiter
	batchSize int
	parentID  string
}

// Option configures a Client.
type Option func(*Client)

// WithRateLimit overrides the shared rate limiter.
func WithRateLimit(requestsPerSecond float64) Option {
	return func(c *Client) { c.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), 1) }
}

// WithBatchSize overrides the per-append block batch size.
func WithBatchSize(size int) Option {
	return func(c *Client) { c.batchSize = size }
}

// WithParentPage sets the page id every converted document is created
// under; CreatePage fails with a ConfigError if this is never set.
func WithParentPage(pageID string) Option {
	return func(c *Client) { c.parentID = pageID }
}

// New creates a rate-limited Notion API client.
func New(token string, opts ...Option) *Client {
	c := &Client{
		api:       notionapi.NewClient(notionapi.Token(token)),
		limiter:   rate.NewLimiter(rate.Every(time.Second/DefaultRateLimit), 1),
		batchSize: DefaultBatchSize,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) wait(ctx context.Context) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return &convert.CancelledOrTimeout{Stage: "rate_limit", Cause: err}
	}
	return nil
}

// CreatePage creates a page under the configured parent page and appends
// payload to it in batches of c.batchSize, per §4.8's initial-submission
// step.
func (c *Client) CreatePage(ctx context.Context, payload []notionapi.Block) (string, []notionapi.Block, error) {
	if c.parentID == "" {
		return "", nil, &convert.ConfigError{Field: "parent_page_id", Cause: fmt.Errorf("no parent page configured")}
	}
	if err := c.wait(ctx); err != nil {
		return "", nil, err
	}

	created, err := c.api.Page.Create(ctx, &notionapi.PageCreateRequest{
		Parent: notionapi.Parent{
			Type:   notionapi.ParentTypePageID,
			PageID: notionapi.PageID(c.parentID),
		},
		Properties: notionapi.Properties{
			"title": notionapi.TitleProperty{
				Type:  "title",
				Title: []notionapi.RichText{{Type: notionapi.ObjectTypeText, Text: &notionapi.Text{Content: "Converted document"}}},
			},
		},
	})
	if err != nil {
		return "", nil, wrapError("create_page", err)
	}

	pageID := string(created.ID)
	persisted, err := c.AppendChildren(ctx, pageID, payload)
	return pageID, persisted, err
}

// AppendChildren appends children to parentID in batches of c.batchSize,
// returning the store's echo of every appended block (including any
// nested Children, which still carry the marker tokens a caller needs to
// resolve before orchestration).
func (c *Client) AppendChildren(ctx context.Context, parentID string, children []notionapi.Block) ([]notionapi.Block, error) {
	var persisted []notionapi.Block
	for i := 0; i < len(children); i += c.batchSize {
		end := i + c.batchSize
		if end > len(children) {
			end = len(children)
		}
		batch := children[i:end]

		if err := c.wait(ctx); err != nil {
			return persisted, err
		}

		resp, err := c.api.Block.AppendChildren(ctx, notionapi.BlockID(parentID), &notionapi.AppendBlockChildrenRequest{
			Children: batch,
		})
		if err != nil {
			return persisted, wrapError("append_children", err)
		}
		persisted = append(persisted, resp.Results...)
	}
	return persisted, nil
}

// UpdateRichText rewrites host's rich text to runs, used to strip a
// resolved marker token from its text once every append for that marker
// has succeeded. host supplies the concrete type, so the request carries
// the right block-specific field, and the non-text fields (color, icon,
// toggleability, checked state, code language and caption) that are sent
// unchanged alongside runs; host's own rich text is never re-sent.
func (c *Client) UpdateRichText(ctx context.Context, blockID string, host notionapi.Block, runs []notionapi.RichText) error {
	if err := c.wait(ctx); err != nil {
		return err
	}

	req, err := buildRichTextUpdateRequest(host, runs)
	if err != nil {
		return wrapError("update_rich_text", err)
	}
	if _, err := c.api.Block.Update(ctx, notionapi.BlockID(blockID), req); err != nil {
		return wrapError("update_rich_text", err)
	}
	return nil
}

// GetBlock fetches a block's current value by id, used by an
// orchestrate-retry pass to reconstruct the convert.HostInfo that
// UpdateRichText needs when only a host id survived in internal/diagnostics.
func (c *Client) GetBlock(ctx context.Context, blockID string) (notionapi.Block, error) {
	if err := c.wait(ctx); err != nil {
		return nil, err
	}
	block, err := c.api.Block.Get(ctx, notionapi.BlockID(blockID))
	if err != nil {
		return nil, wrapError("get_block", err)
	}
	return block, nil
}

// buildRichTextUpdateRequest builds a BlockUpdateRequest carrying runs in
// whichever field host's concrete type updates, mirroring the reference
// lineage's buildBlockUpdateRequest type-switch for the block kinds this
// store ever creates as a marker host.
func buildRichTextUpdateRequest(host notionapi.Block, runs []notionapi.RichText) (*notionapi.BlockUpdateRequest, error) {
	req := &notionapi.BlockUpdateRequest{}
	switch b := host.(type) {
	case *notionapi.ParagraphBlock:
		req.Paragraph = &notionapi.Paragraph{RichText: runs, Color: b.Paragraph.Color}
	case *notionapi.Heading1Block:
		req.Heading1 = &notionapi.Heading{RichText: runs, Color: b.Heading1.Color, IsToggleable: b.Heading1.IsToggleable}
	case *notionapi.Heading2Block:
		req.Heading2 = &notionapi.Heading{RichText: runs, Color: b.Heading2.Color, IsToggleable: b.Heading2.IsToggleable}
	case *notionapi.Heading3Block:
		req.Heading3 = &notionapi.Heading{RichText: runs, Color: b.Heading3.Color, IsToggleable: b.Heading3.IsToggleable}
	case *notionapi.BulletedListItemBlock:
		req.BulletedListItem = &notionapi.ListItem{RichText: runs, Color: b.BulletedListItem.Color}
	case *notionapi.NumberedListItemBlock:
		req.NumberedListItem = &notionapi.ListItem{RichText: runs, Color: b.NumberedListItem.Color}
	case *notionapi.ToDoBlock:
		req.ToDo = &notionapi.ToDo{RichText: runs, Checked: b.ToDo.Checked, Color: b.ToDo.Color}
	case *notionapi.ToggleBlock:
		req.Toggle = &notionapi.Toggle{RichText: runs, Color: b.Toggle.Color}
	case *notionapi.CalloutBlock:
		req.Callout = &notionapi.Callout{RichText: runs, Icon: b.Callout.Icon, Color: b.Callout.Color}
	case *notionapi.CodeBlock:
		req.Code = &notionapi.Code{RichText: runs, Caption: b.Code.Caption, Language: b.Code.Language}
	default:
		return nil, fmt.Errorf("unsupported block type for rich text update: %T", host)
	}
	return req, nil
}

// wrapError classifies a notionapi error into the convert package's
// ConvertError taxonomy by HTTP status.
func wrapError(op string, err error) error {
	if apiErr, ok := err.(*notionapi.Error); ok {
		return &convert.ConvertError{Op: op, Category: convert.CategorizeHTTPStatus(apiErr.Status), StatusCode: apiErr.Status, Cause: err}
	}
	return &convert.ConvertError{Op: op, Category: convert.CategoryNetwork, Cause: err}
}
