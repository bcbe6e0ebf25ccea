package preservica

import (
	"context"
	"encoding/xml"
	"fmt"
	"net/url"
	"strconv"

	"github.com/preservica-tools/preservica-upload/internal/constants"
	"github.com/preservica-tools/preservica-upload/internal/remotetree"
)

// Entity type codes used by the entity API.
const (
	typeStructural  = "SO"
	typeInformation = "IO"
)

type childrenResponse struct {
	XMLName  xml.Name `xml:"ChildrenResponse"`
	Children []child `xml:"Children>Child"`
	Next     string  `xml:"Paging>Next"`
	Total    int     `xml:"Paging>TotalResults"`
}

type child struct {
	Ref   string `xml:"ref,attr"`
	Title string `xml:"title,attr"`
	Type  string `xml:"type,attr"`
}

// Descendants lists the direct children of a folder. An empty folderRef
// lists the repository root. Children of types other than folders and
// assets are skipped.
func (c *Client) Descendants(ctx context.Context, folderRef string) ([]remotetree.Entity, error) {
	path := "/api/entity/root/children"
	if folderRef != "" {
		path = "/api/entity/structural-objects/" + url.PathEscape(folderRef) + "/children"
	}
	q := url.Values{}
	q.Set("start", "0")
	q.Set("max", strconv.Itoa(constants.EntityPageSize))
	next := path + "?" + q.Encode()

	var entities []remotetree.Entity
	for page := 0; next != ""; page++ {
		if page >= constants.MaxPaginationPages {
			c.logger.Warn().Str("folder", folderRef).Int("pages", page).Msg("stopping pagination at page limit")
			break
		}

		body, err := c.doRequest(ctx, "GET", next, nil, true)
		if err != nil {
			return nil, fmt.Errorf("failed to list children of %q: %w", folderRef, err)
		}

		var resp childrenResponse
		if err := xml.Unmarshal(body, &resp); err != nil {
			return nil, fmt.Errorf("failed to decode children of %q: %w", folderRef, err)
		}

		for _, ch := range resp.Children {
			switch ch.Type {
			case typeStructural:
				entities = append(entities, remotetree.Entity{Ref: ch.Ref, Title: ch.Title, Type: remotetree.EntityFolder})
			case typeInformation:
				entities = append(entities, remotetree.Entity{Ref: ch.Ref, Title: ch.Title, Type: remotetree.EntityAsset})
			}
		}
		next = resp.Next
	}

	c.logger.Debug().Str("folder", folderRef).Int("children", len(entities)).Msg("listed folder")
	return entities, nil
}

var _ remotetree.EntityService = (*Client)(nil)
