package notion

import (
	"context"
	"sort"

	"github.com/jomei/notionapi"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/policyscout/discovery-cli/internal/model"
)

// ExportDocuments pushes cached policy documents to the Notion document
// database, one page per document. Documents whose URL already has a page
// are skipped, so repeated exports are additive. Pages are created at the
// client's rate limit. Returns the number of pages created.
func ExportDocuments(ctx context.Context, c Client, dbID string, docs map[string][]model.PolicyDocument) (int, error) {
	if len(docs) == 0 {
		return 0, nil
	}

	existing, err := ExistingURLs(ctx, c, dbID)
	if err != nil {
		return 0, err
	}

	domains := make([]string, 0, len(docs))
	for d := range docs {
		domains = append(domains, d)
	}
	sort.Strings(domains)

	created := 0
	for _, domain := range domains {
		for _, doc := range docs[domain] {
			if ctx.Err() != nil {
				return created, eris.Wrap(ctx.Err(), "notion: export cancelled")
			}
			if _, ok := existing[doc.URL]; ok {
				zap.L().Debug("notion: document already exported",
					zap.String("url", doc.URL),
				)
				continue
			}

			req := &notionapi.PageCreateRequest{
				Parent: notionapi.Parent{
					Type:       notionapi.ParentTypeDatabaseID,
					DatabaseID: notionapi.DatabaseID(dbID),
				},
				Properties: documentProperties(domain, doc),
			}
			if _, err := c.CreatePage(ctx, req); err != nil {
				return created, eris.Wrapf(err, "notion: export document %s", doc.URL)
			}
			existing[doc.URL] = struct{}{}
			created++
		}
	}

	zap.L().Info("notion: export finished", zap.Int("created", created))
	return created, nil
}

// documentProperties maps a policy document onto the document database
// schema: Domain (title), URL, Title, Type (select), Confidence (number),
// Source (select), Discovered (date).
func documentProperties(domain string, doc model.PolicyDocument) notionapi.Properties {
	props := notionapi.Properties{
		"Domain": notionapi.TitleProperty{
			Type: notionapi.PropertyTypeTitle,
			Title: []notionapi.RichText{
				{Type: notionapi.ObjectTypeText, Text: &notionapi.Text{Content: domain}},
			},
		},
		"URL": notionapi.URLProperty{
			Type: notionapi.PropertyTypeURL,
			URL:  doc.URL,
		},
		"Type": notionapi.SelectProperty{
			Type:   notionapi.PropertyTypeSelect,
			Select: notionapi.Option{Name: string(doc.Type)},
		},
		"Confidence": notionapi.NumberProperty{
			Number: doc.Confidence,
		},
	}

	if doc.Title != "" {
		props["Title"] = notionapi.RichTextProperty{
			Type: notionapi.PropertyTypeRichText,
			RichText: []notionapi.RichText{
				{Type: notionapi.ObjectTypeText, Text: &notionapi.Text{Content: doc.Title}},
			},
		}
	}
	if doc.Source != "" {
		props["Source"] = notionapi.SelectProperty{
			Type:   notionapi.PropertyTypeSelect,
			Select: notionapi.Option{Name: doc.Source},
		}
	}
	if !doc.DiscoveredAt.IsZero() {
		discovered := notionapi.Date(doc.DiscoveredAt)
		props["Discovered"] = notionapi.DateProperty{
			Date: &notionapi.DateObject{Start: &discovered},
		}
	}

	return props
}
