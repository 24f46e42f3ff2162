// ABOUTME: Turns a query agent response into a deterministic view with placeholders
// ABOUTME: Final answer is converted from markdown to HTML with goldmark

package render

import (
	"bytes"
	"fmt"
	"html/template"
	"strconv"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/2389/query-assistant/internal/queryagent"
)

// Placeholder text for absent fields.
const (
	NoAnswer     = "No answer generated."
	NotAvailable = "N/A"
	None         = "None"
)

// Detail labels, in display order.
const (
	LabelOriginalQuery   = "Original Query"
	LabelGeneratedSearch = "Generated Search"
	LabelSources         = "Sources"
)

// Raw HTML in answers is omitted by goldmark's default renderer.
var markdown = goldmark.New(goldmark.WithExtensions(extension.GFM))

// Detail is one labelled line of the details panel.
type Detail struct {
	Label string
	Value string
}

// String returns the plain "Label: Value" line.
func (d Detail) String() string {
	return d.Label + ": " + d.Value
}

// Markdown returns the line with a bold label.
func (d Detail) Markdown() string {
	return "**" + d.Label + ":** " + d.Value
}

// View is everything the page shows for one response.
type View struct {
	// Answer is the primary block: the final answer or NoAnswer.
	Answer     string
	AnswerHTML template.HTML
	HasAnswer  bool

	OriginalQuery   Detail
	GeneratedSearch Detail
	Sources         Detail

	// Extras holds optional details, only for fields the service reported.
	Extras []Detail
}

// Details returns the disclosure lines in display order.
func (v View) Details() []Detail {
	out := []Detail{v.OriginalQuery, v.GeneratedSearch, v.Sources}
	return append(out, v.Extras...)
}

// Text renders the view as plain text.
func (v View) Text() string {
	var b strings.Builder
	b.WriteString(v.Answer)
	b.WriteString("\n")
	for _, d := range v.Details() {
		b.WriteString("\n")
		b.WriteString(d.String())
	}
	b.WriteString("\n")
	return b.String()
}

// Render builds the view for resp. It does not modify resp, so rendering the
// same response twice yields equal views. A nil response renders as empty.
func Render(resp *queryagent.Response) View {
	if resp == nil {
		resp = &queryagent.Response{}
	}

	v := View{
		OriginalQuery:   Detail{Label: LabelOriginalQuery, Value: originalQuery(resp)},
		GeneratedSearch: Detail{Label: LabelGeneratedSearch, Value: generatedSearch(resp)},
		Sources:         Detail{Label: LabelSources, Value: sources(resp)},
		Extras:          extras(resp),
	}

	if resp.FinalAnswer != nil {
		v.Answer = *resp.FinalAnswer
		v.HasAnswer = true
	} else {
		v.Answer = NoAnswer
	}
	v.AnswerHTML = Markdown(v.Answer)

	return v
}

// Markdown converts text to HTML. Conversion failures fall back to escaped text.
func Markdown(text string) template.HTML {
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(text), &buf); err != nil {
		return template.HTML("<p>" + template.HTMLEscapeString(text) + "</p>")
	}
	return template.HTML(buf.String())
}

func originalQuery(resp *queryagent.Response) string {
	if resp.OriginalQuestion == nil {
		return NotAvailable
	}
	return *resp.OriginalQuestion
}

// generatedSearch looks only at the first search attempt.
func generatedSearch(resp *queryagent.Response) string {
	if len(resp.Searches) == 0 {
		return None
	}
	first := resp.Searches[0]
	if first.Queries == nil {
		return NotAvailable
	}
	return strings.Join(first.Queries, ", ")
}

func sources(resp *queryagent.Response) string {
	if len(resp.Sources) == 0 {
		return None
	}
	ids := make([]string, len(resp.Sources))
	for i, s := range resp.Sources {
		ids[i] = s.ObjectID
	}
	return strings.Join(ids, ", ")
}

func extras(resp *queryagent.Response) []Detail {
	var out []Detail
	if len(resp.CollectionNames) > 0 {
		out = append(out, Detail{Label: "Collections", Value: strings.Join(resp.CollectionNames, ", ")})
	}
	if resp.IsPartialAnswer != nil && *resp.IsPartialAnswer {
		out = append(out, Detail{Label: "Partial Answer", Value: "Yes"})
	}
	if len(resp.MissingInformation) > 0 {
		out = append(out, Detail{Label: "Missing Information", Value: strings.Join(resp.MissingInformation, "; ")})
	}
	if resp.TotalTime != nil {
		out = append(out, Detail{Label: "Total Time", Value: fmt.Sprintf("%.2fs", *resp.TotalTime)})
	}
	if resp.Usage != nil {
		out = append(out, Detail{Label: "Tokens", Value: strconv.Itoa(resp.Usage.TotalTokens)})
	}
	return out
}
