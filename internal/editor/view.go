package editor

import (
	"errors"
	"sort"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/primal-host/primal-site/internal/content"
)

// NoticeTTL is how long a banner stays up before it expires, unless the
// editor was built WithNoticeTTL.
const NoticeTTL = 3 * time.Second

// NoticeKind classifies a banner.
type NoticeKind string

const (
	NoticeSuccess NoticeKind = "success"
	NoticeError   NoticeKind = "error"
)

// Notice is a dismissible, auto-expiring banner.
type Notice struct {
	Kind      NoticeKind `json:"kind"`
	Text      string     `json:"text"`
	ExpiresAt time.Time  `json:"expiresAt"`
}

// FormMode tells the console which form to keep open.
type FormMode string

const (
	FormCreate FormMode = "create"
	FormEdit   FormMode = "edit"
)

// Form is an open create or edit form. Values are the operator's input
// exactly as submitted so nothing typed is lost on failure.
type Form struct {
	Mode   FormMode          `json:"mode"`
	ID     string            `json:"id,omitempty"`
	Values map[string]any    `json:"values"`
	Errors map[string]string `json:"errors,omitempty"`
}

// Confirmation asks the operator to confirm a destructive action.
type Confirmation struct {
	ID     string `json:"id"`
	Prompt string `json:"prompt"`
}

// View is the editor state after an operation.
type View struct {
	Type      string          `json:"type"`
	Label     string          `json:"label"`
	Fields    []content.Field `json:"fields"`
	Singleton bool            `json:"singleton"`
	Items     []content.Item  `json:"items"`
	Notice    *Notice         `json:"notice,omitempty"`
	Form      *Form           `json:"form,omitempty"`
	Confirm   *Confirmation   `json:"confirm,omitempty"`
}

func (e *Editor) view(items []content.Item) View {
	if items == nil {
		items = []content.Item{}
	}
	return View{
		Type:      e.t.Key,
		Label:     e.t.Label,
		Fields:    e.t.Fields,
		Singleton: e.t.Singleton,
		Items:     items,
	}
}

func (e *Editor) notice(kind NoticeKind, text string) *Notice {
	return &Notice{Kind: kind, Text: text, ExpiresAt: e.now().Add(e.ttl)}
}

// fieldErrors flattens validation errors into field → message.
func fieldErrors(err error) map[string]string {
	var verrs validation.Errors
	if !errors.As(err, &verrs) {
		return nil
	}
	out := make(map[string]string, len(verrs))
	for k, v := range verrs {
		out[k] = v.Error()
	}
	return out
}

// summary joins field messages, sorted by field name, for the banner.
func summary(errs map[string]string) string {
	keys := make([]string, 0, len(errs))
	for k := range errs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	msgs := make([]string, len(keys))
	for i, k := range keys {
		msgs[i] = errs[k]
	}
	return strings.Join(msgs, ". ")
}
