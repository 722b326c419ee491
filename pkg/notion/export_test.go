package notion

import (
	"context"
	"testing"
	"time"

	"github.com/jomei/notionapi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/policyscout/discovery-cli/internal/model"
)

var exportedAt = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func exportDocs() map[string][]model.PolicyDocument {
	return map[string][]model.PolicyDocument{
		"beta.com": {
			{URL: "https://beta.com/privacy", Title: "Privacy", Type: model.DocTypePrivacy, Confidence: 0.92, Source: "search", DiscoveredAt: exportedAt},
		},
		"acme.com": {
			{URL: "https://acme.com/privacy", Title: "Privacy Policy", Type: model.DocTypePrivacy, Confidence: 0.9, Source: "direct", DiscoveredAt: exportedAt},
			{URL: "https://acme.com/terms", Title: "Terms of Service", Type: model.DocTypeTerms, Confidence: 0.8, Source: "crawl", DiscoveredAt: exportedAt},
		},
	}
}

func emptyDatabase(mc *MockClient, ctx context.Context, dbID string) {
	mc.On("QueryDatabase", ctx, dbID, mock.AnythingOfType("*notionapi.DatabaseQueryRequest")).
		Return(&notionapi.DatabaseQueryResponse{Results: []notionapi.Page{}, HasMore: false}, nil).Once()
}

func TestExportDocuments_CreatesPages(t *testing.T) {
	mc := new(MockClient)
	ctx := context.Background()
	emptyDatabase(mc, ctx, "db-docs")

	var createdURLs []string
	mc.On("CreatePage", ctx, mock.AnythingOfType("*notionapi.PageCreateRequest")).
		Run(func(args mock.Arguments) {
			req := args.Get(1).(*notionapi.PageCreateRequest)
			up := req.Properties["URL"].(notionapi.URLProperty)
			createdURLs = append(createdURLs, up.URL)
		}).
		Return(&notionapi.Page{ID: "p"}, nil).Times(3)

	created, err := ExportDocuments(ctx, mc, "db-docs", exportDocs())
	require.NoError(t, err)
	assert.Equal(t, 3, created)

	// Domains are exported in sorted order, documents in cache order.
	assert.Equal(t, []string{
		"https://acme.com/privacy",
		"https://acme.com/terms",
		"https://beta.com/privacy",
	}, createdURLs)
	mc.AssertExpectations(t)
}

func TestExportDocuments_SkipsExisting(t *testing.T) {
	mc := new(MockClient)
	ctx := context.Background()

	mc.On("QueryDatabase", ctx, "db-docs", mock.AnythingOfType("*notionapi.DatabaseQueryRequest")).
		Return(&notionapi.DatabaseQueryResponse{
			Results: []notionapi.Page{
				{ID: "p1", Properties: notionapi.Properties{
					"URL": &notionapi.URLProperty{Type: notionapi.PropertyTypeURL, URL: "https://acme.com/privacy"},
				}},
			},
			HasMore: false,
		}, nil).Once()

	var createdURLs []string
	mc.On("CreatePage", ctx, mock.AnythingOfType("*notionapi.PageCreateRequest")).
		Run(func(args mock.Arguments) {
			req := args.Get(1).(*notionapi.PageCreateRequest)
			up := req.Properties["URL"].(notionapi.URLProperty)
			createdURLs = append(createdURLs, up.URL)
		}).
		Return(&notionapi.Page{ID: "p"}, nil).Times(2)

	created, err := ExportDocuments(ctx, mc, "db-docs", exportDocs())
	require.NoError(t, err)
	assert.Equal(t, 2, created)
	assert.NotContains(t, createdURLs, "https://acme.com/privacy")
	mc.AssertExpectations(t)
}

func TestExportDocuments_Empty(t *testing.T) {
	mc := new(MockClient)

	created, err := ExportDocuments(context.Background(), mc, "db-docs", nil)
	require.NoError(t, err)
	assert.Zero(t, created)
	mc.AssertExpectations(t)
}

func TestExportDocuments_QueryError(t *testing.T) {
	mc := new(MockClient)
	ctx := context.Background()

	mc.On("QueryDatabase", ctx, "db-docs", mock.AnythingOfType("*notionapi.DatabaseQueryRequest")).
		Return(nil, assert.AnError).Once()

	created, err := ExportDocuments(ctx, mc, "db-docs", exportDocs())
	assert.Error(t, err)
	assert.Zero(t, created)
	assert.Contains(t, err.Error(), "notion: existing urls")
	mc.AssertExpectations(t)
}

func TestExportDocuments_CreateError(t *testing.T) {
	mc := new(MockClient)
	ctx := context.Background()
	emptyDatabase(mc, ctx, "db-docs")

	mc.On("CreatePage", ctx, mock.AnythingOfType("*notionapi.PageCreateRequest")).
		Return(nil, assert.AnError).Once()

	created, err := ExportDocuments(ctx, mc, "db-docs", exportDocs())
	assert.Error(t, err)
	assert.Zero(t, created)
	assert.Contains(t, err.Error(), "notion: export document")
	mc.AssertExpectations(t)
}

func TestExportDocuments_Cancelled(t *testing.T) {
	mc := new(MockClient)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// The mock does not honor ctx, so the existing-URL query succeeds and
	// cancellation is observed before the first create.
	mc.On("QueryDatabase", mock.Anything, "db-docs", mock.AnythingOfType("*notionapi.DatabaseQueryRequest")).
		Return(&notionapi.DatabaseQueryResponse{Results: []notionapi.Page{}, HasMore: false}, nil).Once()

	created, err := ExportDocuments(ctx, mc, "db-docs", exportDocs())
	assert.Error(t, err)
	assert.Zero(t, created)
	assert.Contains(t, err.Error(), "notion: export cancelled")
	mc.AssertExpectations(t)
}

func TestDocumentProperties(t *testing.T) {
	t.Parallel()

	doc := model.PolicyDocument{
		URL:          "https://acme.com/privacy",
		Title:        "Privacy Policy",
		Type:         model.DocTypePrivacy,
		Confidence:   0.9,
		Source:       "direct",
		DiscoveredAt: exportedAt,
	}
	props := documentProperties("acme.com", doc)

	title := props["Domain"].(notionapi.TitleProperty)
	require.Len(t, title.Title, 1)
	assert.Equal(t, "acme.com", title.Title[0].Text.Content)

	assert.Equal(t, "https://acme.com/privacy", props["URL"].(notionapi.URLProperty).URL)
	assert.Equal(t, "privacy", props["Type"].(notionapi.SelectProperty).Select.Name)
	assert.InDelta(t, 0.9, props["Confidence"].(notionapi.NumberProperty).Number, 1e-9)
	assert.Equal(t, "direct", props["Source"].(notionapi.SelectProperty).Select.Name)

	rich := props["Title"].(notionapi.RichTextProperty)
	require.Len(t, rich.RichText, 1)
	assert.Equal(t, "Privacy Policy", rich.RichText[0].Text.Content)

	date := props["Discovered"].(notionapi.DateProperty)
	require.NotNil(t, date.Date.Start)
	assert.True(t, time.Time(*date.Date.Start).Equal(exportedAt))
}

func TestDocumentProperties_OmitsEmptyFields(t *testing.T) {
	t.Parallel()

	doc := model.PolicyDocument{
		URL:        "https://acme.com/terms",
		Type:       model.DocTypeTerms,
		Confidence: 0.7,
	}
	props := documentProperties("acme.com", doc)

	assert.NotContains(t, props, "Title")
	assert.NotContains(t, props, "Source")
	assert.NotContains(t, props, "Discovered")
	assert.Contains(t, props, "Domain")
	assert.Contains(t, props, "URL")
}
