package registry

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/nao1215/bankrotscan/internal/model"
	"github.com/nao1215/bankrotscan/internal/node"
	"github.com/nao1215/bankrotscan/internal/normalize"
)

// EnrichLegal builds a LegalEntityRecord from a company list item.
//
// Case and identity fields come straight from the list item. The company
// card, manager history, publications and biddings are fetched in that
// order; each failure only leaves its own fields empty. An item without a
// guid yields a record without source URL, which the workbook skips.
func (c *Client) EnrichLegal(ctx context.Context, item node.Node) (*model.LegalEntityRecord, []model.StepResult) {
	guid := item.String("guid")
	rec := &model.LegalEntityRecord{
		GUID:              guid,
		PublicationsCount: "0",
		TradesCount:       "0",
	}

	lc := item.Get("lastLegalCase")
	rec.CaseNumber = lc.String("number")
	rec.ArbitrationManagerName = lc.String("arbitrManagerFio")
	rec.Status = lc.String("status", "description")
	rec.ProcedureType = lc.String("status", "code")
	rec.CaseStatus = caseStatus(rec.Status)
	rec.CaseEndDate = normalize.Date(lc.String("status", "date"))

	rec.INN = item.String("inn")
	rec.OGRN = item.String("ogrn")
	rec.Region = item.String("region")
	listName := item.String("name")

	if guid == "" {
		rec.FullName = normalize.QuotedName(listName)
		rec.Normalize()
		return rec, nil
	}
	rec.SourceURL = c.companyURL(guid)

	steps := []model.StepResult{
		c.legalDetail(ctx, rec, listName),
		c.legalManager(ctx, rec),
		c.legalPublications(ctx, rec),
		c.legalBiddings(ctx, rec),
	}

	rec.Normalize()
	return rec, steps
}

// caseStatus classifies a case by its status description. The registry
// has no structured "finished" flag, so this is a substring heuristic.
func caseStatus(description string) string {
	if normalize.ContainsFold(description, "завершено") {
		return model.CaseStatusFinished
	}
	return model.CaseStatusActive
}

func (c *Client) legalDetail(ctx context.Context, rec *model.LegalEntityRecord, listName string) model.StepResult {
	doc, res := c.fetchStep(ctx, StepDetail, rec.GUID, c.detailURL(nil, "companies", rec.GUID), rec.SourceURL)
	if doc.Empty() {
		// Without a card the list name is the best available name.
		rec.FullName = normalize.QuotedName(listName)
		return res
	}

	rec.FullName = normalize.QuotedName(normalize.FirstNonEmpty(doc.String("fullName"), listName))
	rec.KPP = doc.String("kpp")
	rec.Address = doc.String("addressEgrul")
	rec.AuthorizedCapital = doc.String("authorizedCapital")
	rec.LegalForm = doc.String("okopf", "name")
	rec.OKVED = doc.String("okved", "name")
	rec.RegistrationDate = normalize.Date(doc.String("dateReg"))
	return model.Filled(StepDetail)
}

func (c *Client) legalManager(ctx context.Context, rec *model.LegalEntityRecord) model.StepResult {
	doc, res := c.fetchStep(ctx, StepManager, rec.GUID, c.detailURL(nil, "companies", rec.GUID, "ieb"), rec.SourceURL)
	items, ok := doc.Array("pageData")
	if !ok || len(items) == 0 {
		return res
	}

	first := items[0]
	rec.ArbitrationManagerINN = first.String("inn")
	rec.ManagerAppointmentDate = normalize.Date(first.String("egrulDateCreate"))
	return model.Filled(StepManager)
}

func (c *Client) legalPublications(ctx context.Context, rec *model.LegalEntityRecord) model.StepResult {
	q := url.Values{}
	q.Set("limit", "1")
	doc, res := c.fetchStep(ctx, StepPublications, rec.GUID, c.detailURL(q, "companies", rec.GUID, "publications"), rec.SourceURL)
	if doc.Empty() {
		return res
	}

	if found := doc.String("found"); found != "" {
		rec.PublicationsCount = found
	}
	return model.Filled(StepPublications)
}

func (c *Client) legalBiddings(ctx context.Context, rec *model.LegalEntityRecord) model.StepResult {
	n, err := c.CountBiddings(ctx, rec.GUID, rec.SourceURL)
	if err != nil {
		c.logger.Debug("enrichment step failed", "step", StepBiddings, "guid", rec.GUID, "error", err)
		return model.Failed(StepBiddings, err)
	}
	rec.TradesCount = strconv.Itoa(n)
	if n == 0 {
		return model.Empty(StepBiddings)
	}
	return model.Filled(StepBiddings)
}

// CountBiddings counts the biddings of a bankrupt by walking the biddings
// resource page by page. The walk ends at an empty page or a page shorter
// than the page size. Any fetch failure returns 0 and the error: a partial
// sum would understate the count.
func (c *Client) CountBiddings(ctx context.Context, guid, referer string) (int, error) {
	total := 0
	for offset := 0; ; offset += biddingsPageSize {
		q := url.Values{}
		q.Set("limit", strconv.Itoa(biddingsPageSize))
		q.Set("offset", strconv.Itoa(offset))
		q.Set("bankruptGuid", guid)

		doc, err := c.fetcher.JSON(ctx, c.detailURL(q, "biddings"), referer)
		if err != nil {
			return 0, fmt.Errorf("biddings page at offset %d: %w", offset, err)
		}
		items, ok := doc.Array("pageData")
		if !ok || len(items) == 0 {
			return total, nil
		}
		total += len(items)
		if len(items) < biddingsPageSize {
			return total, nil
		}
	}
}
