// Package render builds the public page models from resolved content and
// renders them with the embedded html/template views.
package render

import (
	"context"
	"html/template"
	"strconv"

	"github.com/primal-host/primal-site/internal/contact"
	"github.com/primal-host/primal-site/internal/content"
	"github.com/primal-host/primal-site/internal/settings"
)

// Resolver is the read path the pages are built from.
type Resolver interface {
	Resolve(ctx context.Context, key string) []content.Item
	Single(ctx context.Context, key string) content.Item
	Headings(ctx context.Context) map[string]content.Item
}

// Visibility reports which optional sections render.
type Visibility interface {
	VisibleAll(ctx context.Context) map[string]bool
}

// Chrome is the navigation, contact bar and footer shared by every page.
type Chrome struct {
	Title          string
	SiteURL        string
	Nav            []content.Item
	ContactInfo    content.Item
	Footer         content.Item
	FooterSections []FooterSection
	Social         []content.Item
}

// FooterSection is one column of footer links.
type FooterSection struct {
	Name  string
	Links []content.Item
}

// Section is a heading with its items.
type Section struct {
	Heading content.Item
	Items   []content.Item
}

// Stat is a formatted counter.
type Stat struct {
	Label string
	Value string
}

// Member is a team member with the bio rendered from markdown.
type Member struct {
	content.Item
	Bio template.HTML
}

// Home is the landing page.
type Home struct {
	Chrome
	Hero             content.Item
	M365             []content.Item
	WhyChoose        Section
	AboutPreview     content.Item
	Cloud            Section
	Cybersecurity    Section
	Services         Section
	Benefits         []content.Item
	ITSupport        content.Item
	Testimonials     Section
	ShowTestimonials bool
	Form             contact.Snapshot
}

// About is the about page.
type About struct {
	Chrome
	About       content.Item
	Description template.HTML
	Values      []content.Item
	Team        []Member
	ShowTeam    bool
	Stats       []Stat
	ShowStats   bool
}

// Pages assembles page models.
type Pages struct {
	resolver Resolver
	visible  Visibility
	md       *Markdown
	siteURL  string
}

// NewPages creates a page builder.
func NewPages(r Resolver, v Visibility, md *Markdown, siteURL string) *Pages {
	return &Pages{resolver: r, visible: v, md: md, siteURL: siteURL}
}

func (p *Pages) chrome(ctx context.Context, title string) Chrome {
	return Chrome{
		Title:          title,
		SiteURL:        p.siteURL,
		Nav:            p.resolver.Resolve(ctx, content.TypeNavigation),
		ContactInfo:    p.resolver.Single(ctx, content.TypeContactInfo),
		Footer:         p.resolver.Single(ctx, content.TypeFooter),
		FooterSections: groupFooter(p.resolver.Resolve(ctx, content.TypeFooterLinks)),
		Social:         p.resolver.Resolve(ctx, content.TypeSocialLinks),
	}
}

// Home builds the landing page. form is the contact form state to show.
func (p *Pages) Home(ctx context.Context, form contact.Snapshot) Home {
	headings := p.resolver.Headings(ctx)
	visible := p.visible.VisibleAll(ctx)
	section := func(typeKey string) Section {
		return Section{Heading: headings[typeKey], Items: p.resolver.Resolve(ctx, typeKey)}
	}

	h := Home{
		Chrome:        p.chrome(ctx, "M365 IT Services"),
		Hero:          p.resolver.Single(ctx, content.TypeHero),
		M365:          p.resolver.Resolve(ctx, content.TypeM365Features),
		WhyChoose:     section(content.TypeWhyChoose),
		AboutPreview:  headings["about_preview"],
		Cloud:         section(content.TypeCloudSolutions),
		Cybersecurity: section(content.TypeCybersecurity),
		Services:      section(content.TypeServices),
		Benefits:      p.resolver.Resolve(ctx, content.TypeBenefits),
		ITSupport:     headings["it_support"],
		Form:          form,
	}
	if visible[settings.Testimonials] {
		h.ShowTestimonials = true
		h.Testimonials = section(content.TypeTestimonials)
	}
	return h
}

// About builds the about page.
func (p *Pages) About(ctx context.Context) About {
	visible := p.visible.VisibleAll(ctx)
	about := p.resolver.Single(ctx, content.TypeAbout)

	a := About{
		Chrome:      p.chrome(ctx, "About Us | M365 IT Services"),
		About:       about,
		Description: p.md.HTML(about.Get("hero_description")),
		Values:      p.resolver.Resolve(ctx, content.TypeAboutValues),
	}
	if visible[settings.Team] {
		a.ShowTeam = true
		for _, it := range p.resolver.Resolve(ctx, content.TypeTeam) {
			a.Team = append(a.Team, Member{Item: it, Bio: p.md.HTML(it.Get("bio"))})
		}
	}
	if visible[settings.Stats] {
		a.ShowStats = true
		for _, it := range p.resolver.Resolve(ctx, content.TypeStats) {
			a.Stats = append(a.Stats, FormatStat(it))
		}
	}
	return a
}

// FormatStat renders a stat value with its decimals and suffix, so
// {value: 99.9, decimals: 1, suffix: "%"} becomes "99.9%".
func FormatStat(it content.Item) Stat {
	decimals := int(it.Int("decimals"))
	if decimals < 0 {
		decimals = 0
	}
	return Stat{
		Label: it.Get("label"),
		Value: strconv.FormatFloat(it.Float("value"), 'f', decimals, 64) + it.Get("suffix"),
	}
}

// groupFooter splits resolved footer links into columns, keeping the
// order in which each section first appears.
func groupFooter(links []content.Item) []FooterSection {
	var out []FooterSection
	index := map[string]int{}
	for _, l := range links {
		name := l.Get("section")
		i, ok := index[name]
		if !ok {
			i = len(out)
			index[name] = i
			out = append(out, FooterSection{Name: name})
		}
		out[i].Links = append(out[i].Links, l)
	}
	return out
}
