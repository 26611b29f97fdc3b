// Package proposal holds the listing data a proposal is built from and the
// placeholder bindings derived from it for each page type.
package proposal

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"
)

var (
	ErrNoOptions = errors.New("proposal has no options")
	ErrNoID      = errors.New("proposal id is required")
)

// Proposal is one proposal document and the listing options it presents.
type Proposal struct {
	ID           string     `json:"id"`
	DocumentName string     `json:"document_name"`
	CompanyName  string     `json:"company_name"`
	CreatedAt    *time.Time `json:"created_at,omitempty"`
	CreatedBy    Creator    `json:"created_by"`
	Options      []*Option  `json:"options"`

	// OptionOrder lists option IDs in presentation order.
	OptionOrder []string `json:"option_order,omitempty"`
}

// Creator is the sales manager the proposal is issued by.
type Creator struct {
	Name     string `json:"name"`
	Username string `json:"username,omitempty"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
}

// DisplayName falls back to the username when no name is set.
func (c Creator) DisplayName() string {
	if c.Name != "" {
		return c.Name
	}
	return c.Username
}

// Option is one rentable office option at a branch.
type Option struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Category1 string `json:"category1"`
	Category2 string `json:"category2"`
	Capacity  int    `json:"capacity"`
	Floor     Text   `json:"floor"`

	MonthlyFee float64 `json:"monthly_fee"`
	ListPrice  float64 `json:"list_price"`
	Deposit    float64 `json:"deposit"`

	MaintenanceFeeIncluded bool     `json:"maintenance_fee_included"`
	VATIncluded            bool     `json:"vat_included"`
	OneTimeFees            []Fee    `json:"one_time_fees,omitempty"`
	Credits                []Credit `json:"credits,omitempty"`

	ExclusiveArea *Area `json:"exclusive_area,omitempty"`

	HVACType    string `json:"hvac_type"`
	ParkingType string `json:"parking_type"`

	ContractPeriodType  string `json:"contract_period_type"`
	ContractPeriodValue Text   `json:"contract_period_value"`
	MoveInDateType      string `json:"move_in_date_type"`
	MoveInDateValue     Text   `json:"move_in_date_value"`

	Memo         string `json:"memo"`
	OfficeInfo   string `json:"office_info"`
	FloorPlanURL string `json:"floor_plan_url"`

	Branch *Branch `json:"branch,omitempty"`
}

// Branch is the building an option belongs to.
type Branch struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Address string `json:"address"`
	Brand   *Brand `json:"brand,omitempty"`

	NearestSubway   string `json:"nearest_subway"`
	IsTransit       bool   `json:"is_transit"`
	WalkingDistance int    `json:"walking_distance"`
	TransitDistance int    `json:"transit_distance"`

	ApprovalYear Text    `json:"approval_year"`
	FloorsAbove  int     `json:"floors_above"`
	FloorsBelow  int     `json:"floors_below"`
	TotalArea    float64 `json:"total_area"`

	ExteriorImageURL  string   `json:"exterior_image_url"`
	InteriorImageURLs []string `json:"interior_image_urls,omitempty"`

	BasicInfo1 string `json:"basic_info_1"`
	BasicInfo2 string `json:"basic_info_2"`
	BasicInfo3 string `json:"basic_info_3"`

	Latitude  float64 `json:"latitude,omitempty"`
	Longitude float64 `json:"longitude,omitempty"`
}

type Brand struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Area is an exclusive area in either pyeong or square meters.
type Area struct {
	Value float64 `json:"value"`
	Unit  string  `json:"unit"`
}

// Fee is a one-time charge such as a setup or cleaning fee.
type Fee struct {
	Type   string  `json:"type"`
	Amount float64 `json:"amount"`
}

// Credit is a monthly service credit bundled with an option.
type Credit struct {
	Type       string  `json:"type"`
	Amount     float64 `json:"amount"`
	Note       string  `json:"note,omitempty"`
	CustomName string  `json:"customName,omitempty"`
	Unit       string  `json:"unit,omitempty"`
}

// Text is a string field that also accepts JSON numbers. Listing data
// stores floors, years and periods either way.
type Text string

func (t *Text) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*t = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*t = Text(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("text field: %w", err)
	}
	// Whole numbers within float64's exact integer range print without a
	// fraction; anything else keeps its JSON spelling.
	if f, err := strconv.ParseFloat(n.String(), 64); err == nil && math.Abs(f) < 1<<53 && f == math.Trunc(f) {
		*t = Text(strconv.FormatInt(int64(f), 10))
		return nil
	}
	*t = Text(n.String())
	return nil
}

func (t Text) String() string { return string(t) }

// Validate checks what the pipeline cannot work without.
func (p *Proposal) Validate() error {
	if p.ID == "" {
		return ErrNoID
	}
	if len(p.Ordered()) == 0 {
		return ErrNoOptions
	}
	return nil
}

// Ordered returns the options in OptionOrder sequence. IDs without a
// matching option are skipped. With no order given, input order is kept.
func (p *Proposal) Ordered() []*Option {
	if len(p.OptionOrder) == 0 {
		out := make([]*Option, 0, len(p.Options))
		for _, o := range p.Options {
			if o != nil {
				out = append(out, o)
			}
		}
		return out
	}
	byID := make(map[string]*Option, len(p.Options))
	for _, o := range p.Options {
		if o != nil {
			byID[o.ID] = o
		}
	}
	out := make([]*Option, 0, len(p.OptionOrder))
	for _, id := range p.OptionOrder {
		if o, ok := byID[id]; ok {
			out = append(out, o)
		}
	}
	return out
}

// FileName is the suggested name of the merged artifact.
func (p *Proposal) FileName() string {
	return "proposal_" + p.ID + ".pdf"
}

// BrandName returns the option's brand name, or "".
func (o *Option) BrandName() string {
	if o.Branch == nil || o.Branch.Brand == nil {
		return ""
	}
	return o.Branch.Brand.Name
}

func (o *Option) branch() *Branch {
	if o.Branch == nil {
		return &Branch{}
	}
	return o.Branch
}
