package model

import (
	"fmt"
	"strings"
)

// Kind identifies one of the two registry subjects.
type Kind string

const (
	// KindLegal is a legal entity (company) under a bankruptcy procedure.
	KindLegal Kind = "legal"

	// KindIndividual is a natural person, possibly a sole entrepreneur.
	KindIndividual Kind = "individual"
)

// Sheet names used in the workbook.
const (
	SheetLegal      = "LegalEntities"
	SheetIndividual = "PhysicalPersons"
)

// AllKinds lists kinds in collection order.
var AllKinds = []Kind{KindLegal, KindIndividual}

// Sheet returns the workbook sheet that stores records of this kind.
func (k Kind) Sheet() string {
	if k == KindIndividual {
		return SheetIndividual
	}
	return SheetLegal
}

// Header returns the fixed header row for this kind.
func (k Kind) Header() []string {
	if k == KindIndividual {
		return IndividualHeader
	}
	return LegalHeader
}

// Label is the short Russian label used in progress logs.
func (k Kind) Label() string {
	if k == KindIndividual {
		return "ФЛ"
	}
	return "ЮЛ"
}

// ParseKind accepts "legal"/"individual" and a few common aliases.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "legal", "company", "companies", "le":
		return KindLegal, nil
	case "individual", "person", "persons", "people", "pp":
		return KindIndividual, nil
	default:
		return "", fmt.Errorf("unknown record kind %q: use legal or individual", s)
	}
}

// ParseKinds parses a list of kind names, dropping duplicates and keeping
// the canonical order (legal before individual).
func ParseKinds(names []string) ([]Kind, error) {
	seen := make(map[Kind]bool, len(AllKinds))
	for _, n := range names {
		for _, part := range strings.Split(n, ",") {
			if strings.TrimSpace(part) == "" {
				continue
			}
			k, err := ParseKind(part)
			if err != nil {
				return nil, err
			}
			seen[k] = true
		}
	}
	kinds := make([]Kind, 0, len(seen))
	for _, k := range AllKinds {
		if seen[k] {
			kinds = append(kinds, k)
		}
	}
	return kinds, nil
}
