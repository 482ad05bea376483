package docintel

// Operation statuses reported by the analyze result endpoint.
const (
	StatusNotStarted = "notStarted"
	StatusRunning    = "running"
	StatusSucceeded  = "succeeded"
	StatusFailed     = "failed"
	StatusCanceled   = "canceled"
)

// AnalyzeOperation is the body of GET {Operation-Location}.
type AnalyzeOperation struct {
	Status          string          `json:"status"`
	CreatedDateTime string          `json:"createdDateTime"`
	LastUpdated     string          `json:"lastUpdatedDateTime"`
	Error           *OperationError `json:"error,omitempty"`
	AnalyzeResult   *AnalyzeResult  `json:"analyzeResult,omitempty"`
}

// OperationError describes a failed analyze operation.
type OperationError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// AnalyzeResult is the subset of the analyze result used for routing and
// traditional extraction.
type AnalyzeResult struct {
	APIVersion    string         `json:"apiVersion"`
	ModelID       string         `json:"modelId"`
	Content       string         `json:"content"`
	Pages         []Page         `json:"pages"`
	Tables        []Table        `json:"tables"`
	KeyValuePairs []KeyValuePair `json:"keyValuePairs"`
	Documents     []Document     `json:"documents"`
}

// Page is a single analyzed page.
type Page struct {
	PageNumber int     `json:"pageNumber"`
	Width      float64 `json:"width"`
	Height     float64 `json:"height"`
	Unit       string  `json:"unit"`
	Words      []Word  `json:"words"`
}

// Word is a recognized word with its OCR confidence.
type Word struct {
	Content    string  `json:"content"`
	Confidence float64 `json:"confidence"`
}

// Table is a detected table.
type Table struct {
	RowCount    int         `json:"rowCount"`
	ColumnCount int         `json:"columnCount"`
	Cells       []TableCell `json:"cells"`
}

// TableCell is one cell of a detected table.
type TableCell struct {
	RowIndex    int    `json:"rowIndex"`
	ColumnIndex int    `json:"columnIndex"`
	Content     string `json:"content"`
	Kind        string `json:"kind,omitempty"`
}

// KeyValuePair is a detected key/value candidate.
type KeyValuePair struct {
	Key        *Element `json:"key"`
	Value      *Element `json:"value"`
	Confidence float64  `json:"confidence"`
}

// Element is a span of recognized content.
type Element struct {
	Content string `json:"content"`
}

// Document is a typed document recognized by a prebuilt or custom model.
type Document struct {
	DocType    string           `json:"docType"`
	Fields     map[string]Field `json:"fields"`
	Confidence float64          `json:"confidence"`
}

// Field is a typed field value. Only the member matching Type is set.
type Field struct {
	Type          string           `json:"type"`
	Content       string           `json:"content,omitempty"`
	Confidence    float64          `json:"confidence"`
	ValueString   *string          `json:"valueString,omitempty"`
	ValueNumber   *float64         `json:"valueNumber,omitempty"`
	ValueInteger  *int64           `json:"valueInteger,omitempty"`
	ValueDate     *string          `json:"valueDate,omitempty"`
	ValueCurrency *Currency        `json:"valueCurrency,omitempty"`
	ValueAddress  *Address         `json:"valueAddress,omitempty"`
	ValueArray    []Field          `json:"valueArray,omitempty"`
	ValueObject   map[string]Field `json:"valueObject,omitempty"`
}

// Currency is a monetary amount.
type Currency struct {
	Amount         float64 `json:"amount"`
	CurrencySymbol string  `json:"currencySymbol,omitempty"`
	CurrencyCode   string  `json:"currencyCode,omitempty"`
}

// Address is a parsed postal address.
type Address struct {
	HouseNumber   string `json:"houseNumber,omitempty"`
	Road          string `json:"road,omitempty"`
	City          string `json:"city,omitempty"`
	State         string `json:"state,omitempty"`
	PostalCode    string `json:"postalCode,omitempty"`
	CountryRegion string `json:"countryRegion,omitempty"`
	StreetAddress string `json:"streetAddress,omitempty"`
}

// Value returns the field's typed value as a plain Go value: string,
// float64, int64, map[string]any or []any. Falls back to the raw content
// when the typed member is absent.
func (f Field) Value() any {
	switch {
	case f.ValueString != nil:
		return *f.ValueString
	case f.ValueNumber != nil:
		return *f.ValueNumber
	case f.ValueInteger != nil:
		return *f.ValueInteger
	case f.ValueDate != nil:
		return *f.ValueDate
	case f.ValueCurrency != nil:
		out := map[string]any{"amount": f.ValueCurrency.Amount}
		if f.ValueCurrency.CurrencyCode != "" {
			out["currency_code"] = f.ValueCurrency.CurrencyCode
		}
		return out
	case f.ValueAddress != nil:
		if f.Content != "" {
			return f.Content
		}
		return f.ValueAddress.StreetAddress
	case f.ValueArray != nil:
		out := make([]any, len(f.ValueArray))
		for i, item := range f.ValueArray {
			out[i] = item.Value()
		}
		return out
	case f.ValueObject != nil:
		out := make(map[string]any, len(f.ValueObject))
		for k, v := range f.ValueObject {
			out[k] = v.Value()
		}
		return out
	case f.Content != "":
		return f.Content
	}
	return nil
}

// Confidence returns the mean word confidence across all pages, or the
// first document's confidence when no words were returned. Zero when the
// result carries neither.
func (r *AnalyzeResult) Confidence() float64 {
	var sum float64
	var n int
	for _, p := range r.Pages {
		for _, w := range p.Words {
			sum += w.Confidence
			n++
		}
	}
	if n > 0 {
		return sum / float64(n)
	}
	if len(r.Documents) > 0 {
		return r.Documents[0].Confidence
	}
	return 0
}
