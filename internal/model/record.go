package model

import "github.com/nao1215/bankrotscan/internal/normalize"

// Record is a normalized row destined for one workbook sheet.
type Record interface {
	// Kind returns the record kind.
	Kind() Kind
	// Values returns the row in header order. The last value is the key.
	Values() []string
	// Key returns the dedupe key (the source URL).
	Key() string
	// Title is a display name for progress logs.
	Title() string
}

// LegalHeader is the header row of the LegalEntities sheet.
var LegalHeader = []string{
	"Полное наименование",
	"ИНН",
	"ОГРН",
	"КПП",
	"Уставный капитал",
	"Дата регистрации",
	"Адрес",
	"Регион",
	"ОКОПФ",
	"ОКВЭД",
	"Статус банкротства",
	"Тип процедуры",
	"№ дела",
	"Статус дела",
	"Дата завершения",
	"ФИО управляющего",
	"ИНН управляющего",
	"Дата внесения в ЕГРЮЛ",
	"Публикации",
	"Торги",
	"URL",
}

// IndividualHeader is the header row of the PhysicalPersons sheet.
var IndividualHeader = []string{
	"ФИО",
	"Ранее имевшееся ФИО",
	"ИНН",
	"СНИЛС",
	"Дата рожд.",
	"Место рожд.",
	"Адрес проживания",
	"Регион",
	"ОГРНИП",
	"Статус ИП",
	"Вид деятельности",
	"Дата регистрации ИП",
	"Дата прекращения ИП",
	"Статус банкротства",
	"Тип процедуры",
	"№ дела",
	"Управляющий",
	"URL",
}

// Case status values derived from the case status description.
const (
	CaseStatusFinished = "Завершено"
	CaseStatusActive   = "Активно"
)

// LegalEntityRecord is one bankrupt company.
type LegalEntityRecord struct {
	// GUID is the registry identifier. It is not written to the sheet.
	GUID string `json:"guid"`

	FullName               string `json:"full_name"`
	INN                    string `json:"inn"`
	OGRN                   string `json:"ogrn"`
	KPP                    string `json:"kpp"`
	AuthorizedCapital      string `json:"authorized_capital"`
	RegistrationDate       string `json:"registration_date"`
	Address                string `json:"address"`
	Region                 string `json:"region"`
	LegalForm              string `json:"legal_form"`
	OKVED                  string `json:"okved"`
	Status                 string `json:"status"`
	ProcedureType          string `json:"procedure_type"`
	CaseNumber             string `json:"case_number"`
	CaseStatus             string `json:"case_status"`
	CaseEndDate            string `json:"case_end_date"`
	ArbitrationManagerName string `json:"arbitration_manager_name"`
	ArbitrationManagerINN  string `json:"arbitration_manager_inn"`
	ManagerAppointmentDate string `json:"manager_appointment_date"`
	PublicationsCount      string `json:"publications_count"`
	TradesCount            string `json:"trades_count"`
	SourceURL              string `json:"source_url"`
}

// Kind implements Record.
func (r *LegalEntityRecord) Kind() Kind { return KindLegal }

// Key implements Record.
func (r *LegalEntityRecord) Key() string { return normalize.Scalar(r.SourceURL) }

// Title implements Record.
func (r *LegalEntityRecord) Title() string { return r.FullName }

// Values implements Record.
func (r *LegalEntityRecord) Values() []string {
	return []string{
		r.FullName,
		r.INN,
		r.OGRN,
		r.KPP,
		r.AuthorizedCapital,
		r.RegistrationDate,
		r.Address,
		r.Region,
		r.LegalForm,
		r.OKVED,
		r.Status,
		r.ProcedureType,
		r.CaseNumber,
		r.CaseStatus,
		r.CaseEndDate,
		r.ArbitrationManagerName,
		r.ArbitrationManagerINN,
		r.ManagerAppointmentDate,
		r.PublicationsCount,
		r.TradesCount,
		r.SourceURL,
	}
}

// Normalize runs every field through normalize.Scalar.
func (r *LegalEntityRecord) Normalize() {
	for _, f := range []*string{
		&r.GUID,
		&r.FullName, &r.INN, &r.OGRN, &r.KPP, &r.AuthorizedCapital,
		&r.RegistrationDate, &r.Address, &r.Region, &r.LegalForm, &r.OKVED,
		&r.Status, &r.ProcedureType, &r.CaseNumber, &r.CaseStatus, &r.CaseEndDate,
		&r.ArbitrationManagerName, &r.ArbitrationManagerINN, &r.ManagerAppointmentDate,
		&r.PublicationsCount, &r.TradesCount, &r.SourceURL,
	} {
		*f = normalize.Scalar(*f)
	}
}

// IndividualRecord is one bankrupt natural person.
type IndividualRecord struct {
	// GUID is the registry identifier. It is not written to the sheet.
	GUID string `json:"guid"`

	FullName               string `json:"full_name"`
	PreviousFullName       string `json:"previous_full_name"`
	INN                    string `json:"inn"`
	SNILS                  string `json:"snils"`
	BirthDate              string `json:"birth_date"`
	BirthPlace             string `json:"birth_place"`
	ResidenceAddress       string `json:"residence_address"`
	Region                 string `json:"region"`
	EntrepreneurOGRNIP     string `json:"entrepreneur_ogrnip"`
	EntrepreneurStatus     string `json:"entrepreneur_status"`
	OKVED                  string `json:"okved"`
	RegistrationDate       string `json:"registration_date"`
	TerminationDate        string `json:"termination_date"`
	BankruptcyStatus       string `json:"bankruptcy_status"`
	ProcedureType          string `json:"procedure_type"`
	CaseNumber             string `json:"case_number"`
	ArbitrationManagerName string `json:"arbitration_manager_name"`
	SourceURL              string `json:"source_url"`
}

// Kind implements Record.
func (r *IndividualRecord) Kind() Kind { return KindIndividual }

// Key implements Record.
func (r *IndividualRecord) Key() string { return normalize.Scalar(r.SourceURL) }

// Title implements Record.
func (r *IndividualRecord) Title() string { return r.FullName }

// Values implements Record.
func (r *IndividualRecord) Values() []string {
	return []string{
		r.FullName,
		r.PreviousFullName,
		r.INN,
		r.SNILS,
		r.BirthDate,
		r.BirthPlace,
		r.ResidenceAddress,
		r.Region,
		r.EntrepreneurOGRNIP,
		r.EntrepreneurStatus,
		r.OKVED,
		r.RegistrationDate,
		r.TerminationDate,
		r.BankruptcyStatus,
		r.ProcedureType,
		r.CaseNumber,
		r.ArbitrationManagerName,
		r.SourceURL,
	}
}

// Normalize runs every field through normalize.Scalar.
func (r *IndividualRecord) Normalize() {
	for _, f := range []*string{
		&r.GUID,
		&r.FullName, &r.PreviousFullName, &r.INN, &r.SNILS, &r.BirthDate,
		&r.BirthPlace, &r.ResidenceAddress, &r.Region, &r.EntrepreneurOGRNIP,
		&r.EntrepreneurStatus, &r.OKVED, &r.RegistrationDate, &r.TerminationDate,
		&r.BankruptcyStatus, &r.ProcedureType, &r.CaseNumber,
		&r.ArbitrationManagerName, &r.SourceURL,
	} {
		*f = normalize.Scalar(*f)
	}
}

// LegalRecords converts typed records to the Record interface.
func LegalRecords(in []*LegalEntityRecord) []Record {
	out := make([]Record, len(in))
	for i, r := range in {
		out[i] = r
	}
	return out
}

// IndividualRecords converts typed records to the Record interface.
func IndividualRecords(in []*IndividualRecord) []Record {
	out := make([]Record, len(in))
	for i, r := range in {
		out[i] = r
	}
	return out
}
