// Package share renders the plain-text forms of a quotation: the clipboard
// summary, the WhatsApp message and link, and the PDF download filename.
package share

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/traverseglobe/quotation-backend/internal/quotation"
	"github.com/traverseglobe/quotation-backend/pkg/format"
)

const whatsAppBase = "https://wa.me/"

var unsafeFilenameChars = regexp.MustCompile(`[:\\/*"?|<>]`)

// Link is a ready-to-open WhatsApp link for one recipient. An empty Number
// lets the agent pick the contact.
type Link struct {
	Number string `json:"number,omitempty"`
	URL    string `json:"url"`
}

// Bundle is everything the share dialog needs in one response.
type Bundle struct {
	Message  string `json:"message"`
	Summary  string `json:"summary"`
	Filename string `json:"filename"`
	Links    []Link `json:"links"`
}

// Build renders the message, summary and filename, plus one link without a
// recipient followed by one per agency number.
func Build(q quotation.Quotation, numbers []string, now time.Time) Bundle {
	b := Bundle{
		Message:  WhatsAppMessage(q),
		Summary:  Summary(q),
		Filename: PDFFilename(q, now),
		Links:    []Link{{URL: WhatsAppLink(q, "")}},
	}
	for _, n := range numbers {
		n = digitsOnly(n)
		if n == "" {
			continue
		}
		b.Links = append(b.Links, Link{Number: n, URL: WhatsAppLink(q, n)})
	}
	return b
}

func rupees(v float64) string {
	return "₹" + format.FormatNumber(v)
}

// WhatsAppMessage is the pre-filled chat text. The total reads TBD until the
// quotation has a cost.
func WhatsAppMessage(q quotation.Quotation) string {
	var sb strings.Builder
	sb.WriteString("Hi,\n\nI'm sharing a travel quotation for you:\n\n")
	fmt.Fprintf(&sb, "*%s*\n", q.GuestName)
	if d := format.FormatShortDuration(q.TripDuration.Days, q.TripDuration.Nights); d != "" {
		fmt.Fprintf(&sb, "Duration: %s\n", d)
	}
	total := "TBD"
	if q.Costs.FinalTotal > 0 {
		total = rupees(q.Costs.FinalTotal)
	}
	fmt.Fprintf(&sb, "Total Cost: %s\n\n", total)
	sb.WriteString("Please find the detailed PDF attached or visit our website for more details.")
	return sb.String()
}

// WhatsAppLink builds a wa.me link carrying the message. Spaces encode as %20
// so the text survives clients that do not decode '+'.
func WhatsAppLink(q quotation.Quotation, number string) string {
	text := strings.ReplaceAll(url.QueryEscape(WhatsAppMessage(q)), "+", "%20")
	return whatsAppBase + digitsOnly(number) + "?text=" + text
}

// Summary is the clipboard text of the quotation.
func Summary(q quotation.Quotation) string {
	var sb strings.Builder
	sb.WriteString("TRAVEL QUOTATION\n================\n\n")
	fmt.Fprintf(&sb, "Guest: %s\n", q.GuestName)
	fmt.Fprintf(&sb, "Pax: %d Adults", q.TotalAdults)
	if q.TotalChildren > 0 {
		fmt.Fprintf(&sb, ", %d Children", q.TotalChildren)
	}
	sb.WriteString("\n")
	fmt.Fprintf(&sb, "Dates: %s to %s\n", orTBD(q.TravelDates.From), orTBD(q.TravelDates.To))
	duration := format.FormatShortDuration(q.TripDuration.Days, q.TripDuration.Nights)
	if duration == "" {
		duration = "N/A"
	}
	fmt.Fprintf(&sb, "Duration: %s\n\n", duration)
	fmt.Fprintf(&sb, "TOTAL COST: %s\n", rupees(q.Costs.FinalTotal))
	fmt.Fprintf(&sb, "Per Person: %s", rupees(q.Costs.PerPersonCost))
	return sb.String()
}

// PDFFilename returns Quotation_<guest>_<YYYY-MM-DD>.pdf with characters that
// are unsafe on common filesystems replaced by underscores.
func PDFFilename(q quotation.Quotation, now time.Time) string {
	guest := strings.TrimSpace(q.GuestName)
	if guest == "" {
		guest = "Quotation"
	}
	name := fmt.Sprintf("Quotation_%s_%s.pdf", guest, now.Format(format.DateLayout))
	return unsafeFilenameChars.ReplaceAllString(name, "_")
}

func orTBD(v string) string {
	if strings.TrimSpace(v) == "" {
		return "TBD"
	}
	return v
}

func digitsOnly(s string) string {
	var sb strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			sb.WriteRune(r)
		}
	}
	return sb.String()
}
