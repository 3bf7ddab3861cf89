package content

import "fmt"

// Content type keys.
const (
	TypeNavigation      = "navigation"
	TypeHero            = "hero"
	TypeM365Features    = "m365_features"
	TypeCloudSolutions  = "cloud_solutions"
	TypeCybersecurity   = "cybersecurity"
	TypeWhyChoose       = "why_choose"
	TypeServices        = "services"
	TypeBenefits        = "benefits"
	TypeTestimonials    = "testimonials"
	TypeTeam            = "team"
	TypeStats           = "stats"
	TypeAboutValues     = "about_values"
	TypeAbout           = "about"
	TypeFooter          = "footer"
	TypeFooterLinks     = "footer_links"
	TypeSocialLinks     = "social_links"
	TypeContactInfo     = "contact_info"
	TypeSectionHeadings = "section_headings"
	TypeSectionSettings = "section_settings"
	TypeFormSubmissions = "form_submissions"
)

// SectionKey is the natural key column of headings and settings.
const SectionKey = "section_key"

// Registry is an ordered, keyed set of content type declarations.
type Registry struct {
	types []*Type
	byKey map[string]*Type
}

// NewRegistry builds a registry, rejecting duplicate keys or tables.
func NewRegistry(types ...*Type) (*Registry, error) {
	r := &Registry{byKey: make(map[string]*Type, len(types))}
	tables := make(map[string]bool, len(types))
	for _, t := range types {
		if t.Key == "" || t.Table == "" {
			return nil, fmt.Errorf("content: type %q: key and table are required", t.Key)
		}
		if _, dup := r.byKey[t.Key]; dup {
			return nil, fmt.Errorf("content: duplicate type %q", t.Key)
		}
		if tables[t.Table] {
			return nil, fmt.Errorf("content: duplicate table %q", t.Table)
		}
		tables[t.Table] = true
		r.byKey[t.Key] = t
		r.types = append(r.types, t)
	}
	return r, nil
}

// Get looks a type up by key.
func (r *Registry) Get(key string) (*Type, bool) {
	t, ok := r.byKey[key]
	return t, ok
}

// MustGet looks a type up by key and panics if it is not registered.
func (r *Registry) MustGet(key string) *Type {
	t, ok := r.byKey[key]
	if !ok {
		panic("content: unknown type " + key)
	}
	return t
}

// All returns every type in declaration order.
func (r *Registry) All() []*Type {
	return append([]*Type(nil), r.types...)
}

// Public returns the resolvable types in declaration order.
func (r *Registry) Public() []*Type {
	var out []*Type
	for _, t := range r.types {
		if t.Public {
			out = append(out, t)
		}
	}
	return out
}

func text(name, label string) Field { return Field{Name: name, Label: label, Kind: KindString} }
func req(name, label string) Field { return Field{Name: name, Label: label, Kind: KindString, Required: true} }
func reqText(name, label string) Field { return Field{Name: name, Label: label, Kind: KindText, Required: true} }

func collection(key, table, label string, fields ...Field) *Type {
	return &Type{
		Key: key, Table: table, Label: label, Fields: fields,
		Ordered: true, Activatable: true, Public: true,
	}
}

func singleton(key, table, label string, fields ...Field) *Type {
	return &Type{Key: key, Table: table, Label: label, Fields: fields, Singleton: true, Public: true}
}

var builtin = mustRegistry(
	collection(TypeNavigation, "navigation_menu", "Navigation Menu",
		req("label", "Label"), req("href", "Link")),
	singleton(TypeHero, "hero_content", "Hero Section",
		req("headline", "Headline"), Field{Name: "subheadline", Label: "Subheadline", Kind: KindText},
		text("video_url", "Video URL"), text("cta_text", "Button Text")),
	collection(TypeM365Features, "m365_features", "M365 Partner Features",
		req("title", "Title"), reqText("description", "Description"),
		text("icon_name", "Icon"), text("image_url", "Image URL")),
	collection(TypeCloudSolutions, "cloud_solutions", "Cloud Solutions",
		req("title", "Title"), reqText("description", "Description"), text("icon_name", "Icon")),
	collection(TypeCybersecurity, "cybersecurity_services", "Cybersecurity",
		req("title", "Title"), reqText("description", "Description"), text("icon_name", "Icon")),
	collection(TypeWhyChoose, "why_choose_features", "Why Choose Us",
		text("number", "Number"), req("title", "Title"), reqText("description", "Description")),
	collection(TypeServices, "services", "M365 Setup & Optimisation",
		req("title", "Title"), reqText("description", "Description"), text("icon_name", "Icon")),
	collection(TypeBenefits, "benefits", "Benefits Cards",
		req("title", "Title"), reqText("description", "Description"), text("image_url", "Image URL")),
	collection(TypeTestimonials, "testimonials", "Testimonials",
		req("author_name", "Name"), text("author_role", "Role"), text("author_company", "Company"),
		reqText("text", "Testimonial")),
	collection(TypeTeam, "team_members", "Meet the Team",
		req("name", "Name"), req("title", "Job Title"),
		Field{Name: "bio", Label: "Bio", Kind: KindText}, text("image_url", "Photo URL")),
	collection(TypeStats, "site_stats", "Stats & Metrics",
		req("label", "Label"), Field{Name: "value", Label: "Value", Kind: KindFloat, Required: true},
		text("suffix", "Suffix"), Field{Name: "decimals", Label: "Decimals", Kind: KindInt}),
	collection(TypeAboutValues, "about_values", "About Values",
		req("title", "Title"), reqText("description", "Description"), text("icon_name", "Icon")),
	singleton(TypeAbout, "about_content", "About Page",
		req("hero_title", "Title"), Field{Name: "hero_subtitle", Label: "Subtitle", Kind: KindText},
		Field{Name: "hero_description", Label: "Description", Kind: KindText}),
	singleton(TypeFooter, "footer_content", "Footer",
		req("company_name", "Company Name"), text("tagline", "Tagline"), text("copyright_text", "Copyright")),
	&Type{
		Key: TypeFooterLinks, Table: "footer_links", Label: "Footer Links",
		Fields:  []Field{req("section", "Column"), req("label", "Label"), req("href", "Link")},
		Ordered: true, Activatable: true, Public: true,
		Order: []Order{{Column: "section"}, {Column: ColPosition}},
	},
	&Type{
		Key: TypeSocialLinks, Table: "social_links", Label: "Social Links",
		Fields:      []Field{req("platform", "Platform"), req("url", "URL")},
		Activatable: true, Public: true,
	},
	singleton(TypeContactInfo, "contact_info", "Contact Information",
		text("phone_number", "Phone"), text("email", "Email"),
		text("address", "Address"), text("business_hours", "Business Hours")),
	&Type{
		Key: TypeSectionHeadings, Table: "section_headings", Label: "Section Headings",
		Fields: []Field{
			req(SectionKey, "Section"), req("title", "Title"),
			Field{Name: "description", Label: "Description", Kind: KindText},
			text("badge_text", "Badge"), text("cta_text", "Button Text"), text("cta_link", "Button Link"),
		},
		KeyField: SectionKey, Fixed: true, Public: true,
		Order: []Order{{Column: SectionKey}},
	},
	&Type{
		Key: TypeSectionSettings, Table: "section_settings", Label: "Section Visibility",
		Fields:   []Field{req(SectionKey, "Section"), {Name: "is_visible", Label: "Visible", Kind: KindBool}},
		KeyField: SectionKey,
		Order:    []Order{{Column: SectionKey}},
	},
	&Type{
		Key: TypeFormSubmissions, Table: "form_submissions", Label: "Form Submissions",
		Fields: []Field{
			req("full_name", "Name"), req("email", "Email"), text("phone", "Phone"),
			text("company", "Company"), reqText("message", "Message"),
			{Name: "is_read", Label: "Read", Kind: KindBool},
		},
		Order: []Order{{Column: ColCreatedAt, Desc: true}},
	},
)

func mustRegistry(types ...*Type) *Registry {
	r, err := NewRegistry(types...)
	if err != nil {
		panic(err)
	}
	return r
}

// Builtin returns the registry of every content type the site ships with.
func Builtin() *Registry {
	return builtin
}
