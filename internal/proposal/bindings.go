package proposal

import (
	"fmt"
	"strings"
	"time"

	"github.com/kyeongry/fastmatch-admin-sub000/internal/content"
	"github.com/kyeongry/fastmatch-admin-sub000/internal/imagefetch"
	"github.com/kyeongry/fastmatch-admin-sub000/internal/placeholder"
)

// Image slot keys.
const (
	ImageBranch     = "{{IMAGE_BRUNCH}}"
	ImageFloorPlan  = "{{IMAGE_OPTION_PLAN}}"
	ImageMap        = "{{IMAGE_MAP}}"
	interiorSlots   = 4
	maxDetailRemark = 2
)

// ImageInterior returns the key of interior photo slot i (1-based).
func ImageInterior(i int) string {
	return fmt.Sprintf("{{IMAGE_BRUNCH_INTERIOR%d}}", i)
}

// Rendered image sizes in points.
var (
	ComparisonImage = content.Image{Width: 80}
	DetailImage     = content.Image{Width: 400, Height: 300}
)

// Company is the issuing company shown on the service page.
type Company struct {
	Name        string `koanf:"name"`
	ServiceName string `koanf:"service_name"`
	Phone       string `koanf:"phone"`
	Email       string `koanf:"email"`
}

func DefaultCompany() Company {
	return Company{
		Name:        "FASTMATCH",
		ServiceName: "FASTMATCH",
		Phone:       "02-1234-5678",
		Email:       "contact@fastmatch.com",
	}
}

// Slot is an image placeholder's source and rendered size.
type Slot struct {
	URL  string
	Size content.Image
}

// Slots maps image placeholder keys to their sources. A slot with no URL
// renders blank.
type Slots map[string]Slot

// URLs returns the non-empty source URLs.
func (s Slots) URLs() []string {
	urls := make([]string, 0, len(s))
	for _, slot := range s {
		if slot.URL != "" {
			urls = append(urls, slot.URL)
		}
	}
	return urls
}

// Bind turns the slots into image bindings using the fetched assets.
// Slots whose image is missing bind to an empty value.
func (s Slots) Bind(assets map[string]imagefetch.Asset) placeholder.Bindings {
	b := make(placeholder.Bindings, len(s))
	for key, slot := range s {
		a, ok := assets[slot.URL]
		if slot.URL == "" || !ok {
			b[key] = placeholder.Value{}
			continue
		}
		img := slot.Size
		img.Src = a.DataURI()
		b[key] = placeholder.ImageValue(img)
	}
	return b
}

func contact(p *Proposal) placeholder.Bindings {
	return placeholder.Bindings{}.
		Set("{{담당자명}}", p.CreatedBy.DisplayName()).
		Set("{{담당자 연락처}}", p.CreatedBy.Phone).
		Set("{{담당자 이메일}}", p.CreatedBy.Email)
}

// CoverBindings binds the cover page. now dates proposals without a
// creation time.
func CoverBindings(p *Proposal, now time.Time) placeholder.Bindings {
	issued := now
	if p.CreatedAt != nil {
		issued = *p.CreatedAt
	}
	return contact(p).
		Set("{{제안서명}}", p.DocumentName).
		Set("{{고객사명}}", p.CompanyName).
		Set("{{발행일}}", IssueDate(issued)).
		Set("{{YYYYMMDD}}", issued.In(KST).Format("20060102")).
		Set("{{담당자이메일}}", p.CreatedBy.Email).
		Set("{{담당자연락처}}", p.CreatedBy.Phone)
}

// ServiceBindings binds the service introduction page.
func ServiceBindings(c Company) placeholder.Bindings {
	return placeholder.Bindings{}.
		Set("{{회사명}}", c.Name).
		Set("{{서비스명}}", c.ServiceName).
		Set("{{연락처}}", c.Phone).
		Set("{{이메일}}", c.Email)
}

// ComparisonCommon binds the parts of a comparison page outside the item
// columns.
func ComparisonCommon(p *Proposal) placeholder.Bindings {
	return contact(p)
}

// ComparisonColumn binds one comparison column. num is the 1-based
// position of the option in the whole proposal. A nil option is an unused
// column and binds every key to "".
func ComparisonColumn(o *Option, num int) (placeholder.Bindings, Slots) {
	if o == nil {
		b, slots := ComparisonColumn(&Option{}, num)
		return placeholder.Blank(b), slots
	}

	br := o.branch()
	sqm, py := o.ExclusiveArea.SqmPyeong()
	capacity := o.Capacity
	if capacity <= 0 {
		capacity = 1
	}

	var etc []string
	for _, s := range []string{o.HVACType, o.ParkingType} {
		if s != "" {
			etc = append(etc, s)
		}
	}
	totalArea := ""
	if br.TotalArea > 0 {
		totalArea = Number(br.TotalArea) + "㎡"
	}

	b := placeholder.Bindings{}.
		Set("{{브랜드명}}", o.BrandName()).
		Set("{{지점명}}", br.Name).
		Set("{{옵션명}}", strings.TrimSpace(o.BrandName()+" "+br.Name)).
		Set("{{옵션제목}}", optionTitle(num, o.BrandName(), br.Name)).
		Set("{{분류}}", Classification(o)).
		Set("{{인실}}", fmt.Sprintf("%d인실", o.Capacity)).
		Set("{{월사용료}}", Number(o.MonthlyFee)).
		Set("{{보증금}}", Number(o.Deposit)).
		Set("{{정가}}", Number(o.ListPrice)).
		Set("{{면적}}", fmt.Sprintf("%.2f", sqm)).
		Set("{{전용면적(㎡)}}", fmt.Sprintf("%.2f", sqm)).
		Set("{{전용면적(평)}}", fmt.Sprintf("%.1f", py)).
		Set("{{인당 제공 면적}}", AreaPyeong(py/float64(capacity))).
		Set("{{냉난방}}", o.HVACType).
		Set("{{주차}}", o.ParkingType).
		Set("{{주소}}", br.Address).
		Set("{{사용승인일}}", Year(br.ApprovalYear.String())).
		Set("{{규모}}", fmt.Sprintf("지상 %d층 / 지하 %d층", br.FloorsAbove, br.FloorsBelow)).
		Set("{{연면적}}", totalArea).
		Set("{{계약기간}}", ContractPeriod(o.ContractPeriodType, o.ContractPeriodValue.String())).
		Set("{{입주가능일}}", MoveInDate(o.MoveInDateValue.String(), o.MoveInDateType)).
		Set("{{할인율}}", DiscountRate(o.ListPrice, o.MonthlyFee)).
		Set("{{인단가}}", Number(float64(roundDiv(o.MonthlyFee, capacity)))).
		Set("{{기타}}", strings.Join(etc, ", "))

	slots := Slots{ImageBranch: {Size: ComparisonImage}}
	if len(br.InteriorImageURLs) > 0 {
		slots[ImageBranch] = Slot{URL: br.InteriorImageURLs[0], Size: ComparisonImage}
	}
	return b, slots
}

// optionTitle formats "옵션N. X사 지점", leaving out empty parts.
func optionTitle(num int, brand, branch string) string {
	parts := []string{fmt.Sprintf("옵션%d.", num)}
	for _, s := range []string{BrandAbbr(brand), branch} {
		if s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, " ")
}

func roundDiv(v float64, n int) int64 {
	return int64(v/float64(n) + 0.5)
}

// DetailBindings binds the detail page of one option.
func DetailBindings(p *Proposal, o *Option) (placeholder.Bindings, Slots) {
	br := o.branch()
	sqm, py := o.ExclusiveArea.SqmPyeong()
	moveIn := MoveInDate(o.MoveInDateValue.String(), o.MoveInDateType)
	oneTime := OneTimeFees(o.OneTimeFees)

	floor := ""
	if f := o.Floor.String(); f != "" && f != "0" {
		floor = f + "층"
	}

	var remarks []string
	for _, s := range []string{o.Memo, Credits(o.Credits), o.HVACType, o.ParkingType} {
		if s != "" && len(remarks) < maxDetailRemark {
			remarks = append(remarks, s)
		}
	}

	b := contact(p).
		Set("{{브랜드명}}", o.BrandName()).
		Set("{{지점명}}", br.Name).
		Set("{{옵션명}}", o.Name).
		Set("{{주소}}", br.Address).
		Set("{{교통}}", Transit(br)).
		Set("{{전용면적}}", fmt.Sprintf("%.2f㎡ / %.1f평", sqm, py)).
		Set("{{인실}}", Classification(o)).
		Set("{{층수}}", floor).
		Set("{{월사용료}}", Number(o.MonthlyFee)).
		Set("{{정가}}", Number(o.ListPrice)).
		Set("{{보증금}}", Number(o.Deposit)).
		Set("{{할인가}}", Number(o.MonthlyFee)).
		Set("{{관리비}}", included(o.MaintenanceFeeIncluded)).
		Set("{{VAT}}", included(o.VATIncluded)).
		Set("{{일회성비용}}", oneTime).
		Set("{{일회성 비용}}", oneTime).
		Set("{{냉난방}}", o.HVACType).
		Set("{{주차}}", o.ParkingType).
		Set("{{입주가능일}}", moveIn).
		Set("{{입주가능시기}}", moveIn).
		Set("{{입주 가능 시기}}", moveIn).
		Set("{{계약기간}}", ContractPeriod(o.ContractPeriodType, o.ContractPeriodValue.String())).
		Set("{{오피스 정보}}", o.OfficeInfo).
		Set("{{기본 정보1}}", br.BasicInfo1).
		Set("{{기본 정보2}}", br.BasicInfo2).
		Set("{{기본 정보3}}", br.BasicInfo3).
		Set("{{기타}}", strings.Join(remarks, " / "))

	slots := Slots{
		ImageBranch:    {Size: DetailImage},
		ImageFloorPlan: {URL: o.FloorPlanURL, Size: DetailImage},
		ImageMap:       {Size: DetailImage},
	}
	switch {
	case br.ExteriorImageURL != "":
		slots[ImageBranch] = Slot{URL: br.ExteriorImageURL, Size: DetailImage}
	case len(br.InteriorImageURLs) > 0:
		slots[ImageBranch] = Slot{URL: br.InteriorImageURLs[0], Size: DetailImage}
	}
	for i := 1; i <= interiorSlots; i++ {
		slot := Slot{Size: DetailImage}
		if i <= len(br.InteriorImageURLs) {
			slot.URL = br.InteriorImageURLs[i-1]
		}
		slots[ImageInterior(i)] = slot
	}
	return b, slots
}
