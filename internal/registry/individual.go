package registry

import (
	"context"
	"net/url"
	"strconv"
	"strings"

	"github.com/nao1215/bankrotscan/internal/model"
	"github.com/nao1215/bankrotscan/internal/node"
	"github.com/nao1215/bankrotscan/internal/normalize"
)

// EnrichIndividual builds an IndividualRecord from a person list item.
// The person card supplies birth data, address and former names; the
// sole-entrepreneur registrations supply the OGRNIP block.
func (c *Client) EnrichIndividual(ctx context.Context, item node.Node) (*model.IndividualRecord, []model.StepResult) {
	guid := item.String("guid")
	rec := &model.IndividualRecord{
		GUID:     guid,
		FullName: item.String("fio"),
		INN:      item.String("inn"),
		SNILS:    item.String("snils"),
		Region:   item.String("region"),
	}

	lc := item.Get("lastLegalCase")
	rec.CaseNumber = lc.String("number")
	rec.ArbitrationManagerName = lc.String("arbitrManagerFio")
	rec.BankruptcyStatus = lc.String("status", "description")
	rec.ProcedureType = lc.String("status", "code")

	if guid == "" {
		rec.Normalize()
		return rec, nil
	}
	rec.SourceURL = c.personURL(guid)

	steps := []model.StepResult{
		c.personDetail(ctx, rec),
		c.personEntrepreneurs(ctx, rec),
	}

	rec.Normalize()
	return rec, steps
}

func (c *Client) personDetail(ctx context.Context, rec *model.IndividualRecord) model.StepResult {
	doc, res := c.fetchStep(ctx, StepDetail, rec.GUID, c.detailURL(nil, "persons", rec.GUID), rec.SourceURL)
	if doc.Empty() {
		return res
	}

	rec.BirthDate = normalize.Date(doc.String("birthdateBankruptcy"))
	rec.BirthPlace = doc.String("birthplaceBankruptcy")
	rec.ResidenceAddress = doc.String("address")
	if history, ok := doc.Array("nameHistories"); ok {
		rec.PreviousFullName = joinNames(history)
	}
	return model.Filled(StepDetail)
}

// joinNames joins the non-empty former names with ", ". Entries are
// either plain strings or objects carrying the name in one of several
// fields.
func joinNames(history []node.Node) string {
	names := make([]string, 0, len(history))
	for _, h := range history {
		var name string
		if h.IsObject() {
			name = normalize.FirstNonEmpty(h.String("fullName"), h.String("fio"), h.String("name"))
		} else {
			name = normalize.Scalar(h.Raw())
		}
		if name != "" {
			names = append(names, name)
		}
	}
	return strings.Join(names, ", ")
}

func (c *Client) personEntrepreneurs(ctx context.Context, rec *model.IndividualRecord) model.StepResult {
	q := url.Values{}
	q.Set("limit", strconv.Itoa(entrepreneursPageSize))
	q.Set("offset", "0")
	doc, res := c.fetchStep(ctx, StepEntrepreneurs, rec.GUID,
		c.detailURL(q, "persons", rec.GUID, "individual-entrepreneurs"), rec.SourceURL)

	items, ok := doc.Array("pageData")
	if !ok || len(items) == 0 {
		return res
	}

	best := latestRegistration(items)
	rec.EntrepreneurOGRNIP = best.String("ogrnip")
	rec.EntrepreneurStatus = best.String("status", "name")
	rec.TerminationDate = normalize.Date(best.String("status", "date"))
	rec.OKVED = best.String("okved", "name")
	rec.RegistrationDate = normalize.Date(best.String("dateReg"))
	return model.Filled(StepEntrepreneurs)
}

// latestRegistration picks the registration with the greatest dateReg.
// Dates are compared as raw strings, which matches chronological order
// only for ISO-prefixed values. A non-empty date beats an empty one and
// ties keep the earlier item. items must not be empty.
func latestRegistration(items []node.Node) node.Node {
	best := items[0]
	bestDate := best.String("dateReg")
	for _, it := range items[1:] {
		d := it.String("dateReg")
		if d != "" && (bestDate == "" || d > bestDate) {
			best, bestDate = it, d
		}
	}
	return best
}
