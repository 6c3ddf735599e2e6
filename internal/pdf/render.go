// Package pdf renders a quotation as a printable A4 document.
package pdf

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/phpdave11/gofpdf"
	qrcode "github.com/skip2/go-qrcode"

	"github.com/traverseglobe/quotation-backend/internal/pricing"
	"github.com/traverseglobe/quotation-backend/internal/quotation"
	"github.com/traverseglobe/quotation-backend/pkg/format"
)

const (
	pageMargin = 12.0
	lineHeight = 6.0
	qrSize     = 36.0
	qrImage    = "whatsapp-qr"
	fontFamily = "Helvetica"
)

// PaymentPolicy is printed under the cost summary.
var PaymentPolicy = []string{
	"50% at the time of confirmation",
	"Rest 30%, 20 days before travel date",
	"Remaining 20%, 7 days before travel date",
}

// Company identifies the agency on the document header.
type Company struct {
	Name            string
	Website         string
	UAEAddress      string
	IndiaAddress    string
	WhatsAppNumbers []string
}

type Options struct {
	Company Company
	// Breakdown is the cost breakdown to print. When nil it is recomputed at
	// the default GST rate.
	Breakdown *pricing.Breakdown
	// ShareLink is encoded into a QR code next to the totals. Empty skips it.
	ShareLink   string
	GeneratedAt time.Time
}

// Render lays out the quotation and returns the encoded PDF.
func Render(q quotation.Quotation, opts Options) ([]byte, error) {
	b := q.Breakdown(pricing.DefaultGSTRate)
	if opts.Breakdown != nil {
		b = *opts.Breakdown
	}
	if opts.GeneratedAt.IsZero() {
		opts.GeneratedAt = time.Now().UTC()
	}

	var qr []byte
	if opts.ShareLink != "" {
		png, err := qrcode.Encode(opts.ShareLink, qrcode.Medium, 256)
		if err != nil {
			return nil, fmt.Errorf("encode share qr: %w", err)
		}
		qr = png
	}

	doc := gofpdf.New("P", "mm", "A4", "")
	doc.SetMargins(pageMargin, pageMargin, pageMargin)
	doc.SetAutoPageBreak(true, 18)
	doc.AliasNbPages("")
	doc.SetCreationDate(opts.GeneratedAt)
	doc.SetTitle("Travel Quotation", true)
	doc.SetAuthor(opts.Company.Name, true)

	r := &renderer{doc: doc, tr: doc.UnicodeTranslatorFromDescriptor("")}
	doc.SetFooterFunc(r.footer(opts.Company))
	doc.AddPage()

	r.header(opts.Company)
	r.guest(q)
	r.activities(q.SelectedActivities)
	r.itinerary(q.Itinerary)
	r.costs(b, q)
	if qr != nil {
		r.shareCode(qr)
	}
	r.policy()

	if err := doc.Error(); err != nil {
		return nil, fmt.Errorf("render quotation pdf: %w", err)
	}
	var buf bytes.Buffer
	if err := doc.Output(&buf); err != nil {
		return nil, fmt.Errorf("write quotation pdf: %w", err)
	}
	return buf.Bytes(), nil
}

type renderer struct {
	doc *gofpdf.Fpdf
	tr  func(string) string
}

func (r *renderer) text(s string) string {
	// The core fonts are cp1252; the rupee sign has no glyph there.
	return r.tr(strings.ReplaceAll(s, "₹", "INR"))
}

func (r *renderer) contentWidth() float64 {
	w, _ := r.doc.GetPageSize()
	return w - 2*pageMargin
}

func (r *renderer) ensureSpace(h float64) {
	_, pageH := r.doc.GetPageSize()
	if r.doc.GetY()+h > pageH-18 {
		r.doc.AddPage()
	}
}

func (r *renderer) section(title string) {
	r.ensureSpace(20)
	r.doc.Ln(4)
	r.doc.SetFont(fontFamily, "B", 12)
	r.doc.SetFillColor(230, 238, 250)
	r.doc.CellFormat(0, 8, r.text(title), "", 1, "L", true, 0, "")
	r.doc.Ln(1)
	r.doc.SetFont(fontFamily, "", 10)
}

func (r *renderer) header(c Company) {
	r.doc.SetFont(fontFamily, "B", 18)
	r.doc.SetTextColor(20, 60, 120)
	r.doc.CellFormat(0, 9, r.text(c.Name), "", 1, "L", false, 0, "")
	r.doc.SetTextColor(0, 0, 0)
	r.doc.SetFont(fontFamily, "", 8)
	for _, line := range []string{c.UAEAddress, c.IndiaAddress, c.Website} {
		if strings.TrimSpace(line) != "" {
			r.doc.CellFormat(0, 4, r.text(line), "", 1, "L", false, 0, "")
		}
	}
	if len(c.WhatsAppNumbers) > 0 {
		numbers := make([]string, 0, len(c.WhatsAppNumbers))
		for _, n := range c.WhatsAppNumbers {
			numbers = append(numbers, format.FormatPhoneNumber(n))
		}
		r.doc.CellFormat(0, 4, r.text("WhatsApp: "+strings.Join(numbers, " / ")), "", 1, "L", false, 0, "")
	}
	y := r.doc.GetY() + 2
	r.doc.Line(pageMargin, y, pageMargin+r.contentWidth(), y)
	r.doc.SetY(y + 4)

	r.doc.SetFont(fontFamily, "B", 16)
	r.doc.CellFormat(0, 10, "TRAVEL QUOTATION", "", 1, "C", false, 0, "")
}

func (r *renderer) guest(q quotation.Quotation) {
	r.section("Guest Details")
	guest := q.GuestName
	if strings.TrimSpace(guest) == "" {
		guest = "-"
	}
	pax := fmt.Sprintf("%d Adults", q.TotalAdults)
	if q.TotalChildren > 0 {
		pax += fmt.Sprintf(", %d Children", q.TotalChildren)
	}
	dates := "TBD"
	if from, to := format.FormatDate(q.TravelDates.From), format.FormatDate(q.TravelDates.To); from != "" || to != "" {
		dates = fmt.Sprintf("%s - %s", orDash(from), orDash(to))
	}
	rows := [][2]string{
		{"Guest", guest},
		{"Travel Type", string(q.TravelType)},
		{"Pax", pax},
		{"Travel Dates", dates},
	}
	if q.TripDuration.Days > 0 {
		rows = append(rows, [2]string{"Duration", format.FormatDuration(q.TripDuration.Days, q.TripDuration.Nights)})
	}
	for _, row := range rows {
		r.doc.SetFont(fontFamily, "B", 10)
		r.doc.CellFormat(35, lineHeight, r.text(row[0]), "", 0, "L", false, 0, "")
		r.doc.SetFont(fontFamily, "", 10)
		r.doc.CellFormat(0, lineHeight, r.text(row[1]), "", 1, "L", false, 0, "")
	}
}

func (r *renderer) activities(items []quotation.Activity) {
	r.section("Selected Activities")
	if len(items) == 0 {
		r.doc.CellFormat(0, lineHeight, "No activities selected.", "", 1, "L", false, 0, "")
		return
	}
	widths := []float64{8, 28, 58, 44, 26, 22}
	headers := []string{"#", "Location", "Tour", "Option", "Transfer", "AED"}
	r.doc.SetFont(fontFamily, "B", 9)
	r.doc.SetFillColor(245, 245, 245)
	for i, h := range headers {
		align := "L"
		if i == len(headers)-1 {
			align = "R"
		}
		r.doc.CellFormat(widths[i], 7, h, "1", 0, align, true, 0, "")
	}
	r.doc.Ln(-1)
	r.doc.SetFont(fontFamily, "", 9)
	for i, a := range items {
		cells := []string{
			fmt.Sprintf("%d", i+1),
			format.Truncate(a.Location, 16),
			format.Truncate(a.Tour, 34),
			format.Truncate(a.Product, 26),
			format.Truncate(a.Transfer, 15),
			format.FormatNumber(format.Round2(a.CostAED)),
		}
		for j, cell := range cells {
			align := "L"
			if j == len(cells)-1 {
				align = "R"
			}
			r.doc.CellFormat(widths[j], 7, r.text(cell), "1", 0, align, false, 0, "")
		}
		r.doc.Ln(-1)
	}
}

func (r *renderer) itinerary(days []quotation.Day) {
	if len(days) == 0 {
		return
	}
	r.section("Itinerary")
	for _, d := range days {
		r.ensureSpace(18)
		r.doc.SetFont(fontFamily, "B", 10)
		title := strings.TrimSpace(d.Title)
		label := fmt.Sprintf("Day %d", d.Day)
		if title != "" && !strings.EqualFold(title, fmt.Sprintf("DAY %d", d.Day)) {
			label += ": " + title
		}
		r.doc.CellFormat(0, lineHeight, r.text(label), "", 1, "L", false, 0, "")
		r.doc.SetFont(fontFamily, "", 9)
		if desc := strings.TrimSpace(d.Description); desc != "" {
			r.doc.MultiCell(0, 5, r.text(desc), "", "L", false)
		}
		for _, line := range d.Activities {
			r.bullet(line)
		}
		for _, line := range d.Options {
			r.bullet("Optional: " + line)
		}
		meta := "Meals: " + string(d.Meals)
		if acc := strings.TrimSpace(d.Accommodation); acc != "" {
			meta += "    Stay: " + acc
		}
		r.doc.SetFont(fontFamily, "I", 8)
		r.doc.CellFormat(0, 5, r.text(meta), "", 1, "L", false, 0, "")
		r.doc.Ln(2)
	}
}

func (r *renderer) bullet(line string) {
	if strings.TrimSpace(line) == "" {
		return
	}
	r.doc.SetX(pageMargin + 4)
	r.doc.MultiCell(0, 5, r.text("- "+line), "", "L", false)
}

func (r *renderer) costs(b pricing.Breakdown, q quotation.Quotation) {
	r.section("Cost Summary")
	rows := [][2]string{{"Activities", money(b.ActivitiesSubtotal)}}
	if q.Flights.Included {
		rows = append(rows, [2]string{"Flights", money(b.FlightsCost)})
	}
	if q.Visa.Included {
		rows = append(rows, [2]string{"Visa", money(b.VisaCost)})
	}
	rows = append(rows, [2]string{"Subtotal", money(b.Subtotal)})
	if q.IncludeGST {
		rows = append(rows, [2]string{fmt.Sprintf("GST (%s%%)", format.FormatNumber(b.GSTRate)), money(b.GSTAmount)})
	}
	r.ensureSpace(float64(len(rows)+2)*lineHeight + qrSize)
	for _, row := range rows {
		r.doc.CellFormat(60, lineHeight, r.text(row[0]), "", 0, "L", false, 0, "")
		r.doc.CellFormat(50, lineHeight, r.text(row[1]), "", 1, "R", false, 0, "")
	}
	r.doc.SetFont(fontFamily, "B", 11)
	r.doc.CellFormat(60, 8, "Total", "T", 0, "L", false, 0, "")
	r.doc.CellFormat(50, 8, r.text(money(b.FinalTotal)), "T", 1, "R", false, 0, "")
	r.doc.SetFont(fontFamily, "", 10)
	r.doc.CellFormat(60, lineHeight, "Per Person", "", 0, "L", false, 0, "")
	r.doc.CellFormat(50, lineHeight, r.text(money(b.PerPersonCost)), "", 1, "R", false, 0, "")
}

// shareCode places the QR right-aligned below the cost summary.
func (r *renderer) shareCode(png []byte) {
	opts := gofpdf.ImageOptions{ImageType: "PNG"}
	r.doc.RegisterImageOptionsReader(qrImage, opts, bytes.NewReader(png))
	x := pageMargin + r.contentWidth() - qrSize
	y := r.doc.GetY() + 2
	r.doc.ImageOptions(qrImage, x, y, qrSize, qrSize, false, opts, 0, "")
	r.doc.SetFont(fontFamily, "", 7)
	r.doc.Text(x+2, y+qrSize+3, "Scan to chat on WhatsApp")
	r.doc.SetFont(fontFamily, "", 10)
	r.doc.SetY(y + qrSize + 4)
}

func (r *renderer) policy() {
	r.section("Payment Policy")
	for _, line := range PaymentPolicy {
		r.bullet(line)
	}
}

func (r *renderer) footer(c Company) func() {
	return func() {
		r.doc.SetY(-12)
		r.doc.SetFont(fontFamily, "I", 8)
		r.doc.SetTextColor(120, 120, 120)
		left := c.Website
		if left == "" {
			left = c.Name
		}
		r.doc.CellFormat(r.contentWidth()/2, 6, r.text(left), "", 0, "L", false, 0, "")
		r.doc.CellFormat(0, 6, fmt.Sprintf("Page %d/{nb}", r.doc.PageNo()), "", 0, "R", false, 0, "")
		r.doc.SetTextColor(0, 0, 0)
	}
}

func money(v float64) string {
	return format.FormatCurrency(v, format.INR)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
