package notionsync

import (
	"context"
	"fmt"

	"github.com/jomei/notionapi"
)

// queryPageSize is the largest page size the Notion API accepts.
const queryPageSize = 100

// NotionService is the part of the Notion API the closings publisher uses.
type NotionService interface {
	// CreatePage adds a page to a database.
	CreatePage(ctx context.Context, databaseID string, properties notionapi.Properties) (*notionapi.Page, error)

	// UpdatePage overwrites the given properties of a page.
	UpdatePage(ctx context.Context, pageID string, properties notionapi.Properties) (*notionapi.Page, error)

	// ArchivePage moves a page to the trash.
	ArchivePage(ctx context.Context, pageID string) error

	// QueryPages returns one batch of a database's pages starting at cursor.
	// An empty cursor starts from the beginning.
	QueryPages(ctx context.Context, databaseID string, cursor notionapi.Cursor) (*notionapi.DatabaseQueryResponse, error)
}

// NotionClient implements NotionService with the notionapi SDK.
type NotionClient struct {
	client *notionapi.Client
}

// NewNotionClient creates a new NotionClient with the provided API token.
func NewNotionClient(token string) *NotionClient {
	return &NotionClient{
		client: notionapi.NewClient(notionapi.Token(token)),
	}
}

func (n *NotionClient) CreatePage(ctx context.Context, databaseID string, properties notionapi.Properties) (*notionapi.Page, error) {
	page, err := n.client.Page.Create(ctx, &notionapi.PageCreateRequest{
		Parent: notionapi.Parent{
			Type:       notionapi.ParentTypeDatabaseID,
			DatabaseID: notionapi.DatabaseID(databaseID),
		},
		Properties: properties,
	})
	if err != nil {
		return nil, fmt.Errorf("CreatePage: %w", err)
	}
	return page, nil
}

func (n *NotionClient) UpdatePage(ctx context.Context, pageID string, properties notionapi.Properties) (*notionapi.Page, error) {
	page, err := n.client.Page.Update(ctx, notionapi.PageID(pageID), &notionapi.PageUpdateRequest{
		Properties: properties,
	})
	if err != nil {
		return nil, fmt.Errorf("UpdatePage(%s): %w", pageID, err)
	}
	return page, nil
}

func (n *NotionClient) ArchivePage(ctx context.Context, pageID string) error {
	_, err := n.client.Page.Update(ctx, notionapi.PageID(pageID), &notionapi.PageUpdateRequest{
		Archived: true,
	})
	if err != nil {
		return fmt.Errorf("ArchivePage(%s): %w", pageID, err)
	}
	return nil
}

func (n *NotionClient) QueryPages(ctx context.Context, databaseID string, cursor notionapi.Cursor) (*notionapi.DatabaseQueryResponse, error) {
	req := &notionapi.DatabaseQueryRequest{PageSize: queryPageSize}
	if cursor != "" {
		req.StartCursor = cursor
	}

	resp, err := n.client.Database.Query(ctx, notionapi.DatabaseID(databaseID), req)
	if err != nil {
		return nil, fmt.Errorf("QueryPages: %w", err)
	}
	return resp, nil
}

var _ NotionService = (*NotionClient)(nil)
