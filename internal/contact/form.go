package contact

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/primal-host/primal-site/internal/content"
)

// ResetAfter is how long the thank-you state lasts before the form clears.
const ResetAfter = 5 * time.Second

// State is the contact form's lifecycle state.
type State string

const (
	StateIdle           State = "idle"
	StateSubmitting     State = "submitting"
	StateSubmitted      State = "submitted"
	StateIdleWithErrors State = "idle_with_errors"
)

// GenericFailure is shown when the lead could not be stored.
const GenericFailure = "There was an error submitting your form. Please try again."

// Submitter is the part of Sink the form drives.
type Submitter interface {
	Submit(ctx context.Context, s Submission) (content.Item, error)
}

// Snapshot is the form as a client renders it.
type Snapshot struct {
	State        State             `json:"state"`
	Values       Submission        `json:"values"`
	Errors       map[string]string `json:"errors,omitempty"`
	ResetAfterMS int64             `json:"reset_after_ms,omitempty"`
}

// Form runs one visitor's form through idle, submitting and then either
// submitted or idle_with_errors. submitted reverts to a cleared idle form
// ResetAfter later.
type Form struct {
	mu          sync.Mutex
	state       State
	values      Submission
	errors      map[string]string
	submittedAt time.Time
	now         func() time.Time
}

// NewForm returns an idle, empty form.
func NewForm() *Form {
	return &Form{state: StateIdle, now: time.Now}
}

// Submit validates values and, when they pass, hands them to sub. A
// validation failure never reaches sub. Submitting while a submission is
// in flight or the thank-you state is showing is ignored.
func (f *Form) Submit(ctx context.Context, sub Submitter, values Submission) Snapshot {
	if snap, ok := f.begin(values); !ok {
		return snap
	}
	_, err := sub.Submit(ctx, values)
	return f.finish(err)
}

func (f *Form) begin(values Submission) (Snapshot, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.expire()
	if f.state == StateSubmitting || f.state == StateSubmitted {
		return f.snapshot(), false
	}
	f.values = values
	if err := Validate(values); err != nil {
		f.fail(err)
		return f.snapshot(), false
	}
	f.state = StateSubmitting
	f.errors = nil
	return f.snapshot(), true
}

func (f *Form) finish(err error) Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err != nil {
		f.fail(err)
		return f.snapshot()
	}
	f.state = StateSubmitted
	f.submittedAt = f.now()
	return f.snapshot()
}

// Snapshot returns the current state, applying the reset timer.
func (f *Form) Snapshot() Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.expire()
	return f.snapshot()
}

// Outcome maps a Submit result to the snapshot a stateless caller shows.
func Outcome(values Submission, err error) Snapshot {
	f := NewForm()
	f.values = values
	if err != nil {
		f.fail(err)
		return f.snapshot()
	}
	f.state = StateSubmitted
	f.submittedAt = f.now()
	return f.snapshot()
}

func (f *Form) fail(err error) {
	f.state = StateIdleWithErrors
	var verr *ValidationError
	if errors.As(err, &verr) {
		f.errors = verr.Fields
		return
	}
	f.errors = map[string]string{"form": GenericFailure}
}

func (f *Form) expire() {
	if f.state == StateSubmitted && !f.now().Before(f.submittedAt.Add(ResetAfter)) {
		f.state = StateIdle
		f.values = Submission{}
		f.errors = nil
		f.submittedAt = time.Time{}
	}
}

func (f *Form) snapshot() Snapshot {
	s := Snapshot{State: f.state, Values: f.values, Errors: f.errors}
	if f.state == StateSubmitted {
		s.ResetAfterMS = f.submittedAt.Add(ResetAfter).Sub(f.now()).Milliseconds()
	}
	return s
}
