package issues

import (
	"context"
	"io"
	"net/url"
	"strconv"

	"github.com/mkline/civicsync/civic"
	"github.com/mkline/civicsync/internal/util"
	"github.com/mkline/civicsync/transport"
)

// CreateInput is the payload for a new issue. Image is optional; when set,
// ImageName carries the filename for the multipart part.
type CreateInput struct {
	Title       string `validate:"required"`
	Description string `validate:"required"`
	Category    string `validate:"required"`
	Location    string `validate:"required"`
	Latitude    float64
	Longitude   float64
	ImageName   string
	Image       io.Reader
}

// Create submits a new issue. The server assigns id, ownership, and the
// initial Pending status. On success the issue is prepended to the user-issue
// set without a refetch.
func (s *Store) Create(ctx context.Context, in CreateInput) (*civic.Issue, error) {
	if err := s.validate.Struct(in); err != nil {
		return nil, util.AsValidationError(err)
	}

	s.mu.Lock()
	s.create.state = OpPending
	s.mu.Unlock()

	form := &transport.Form{}
	form.Set("title", in.Title)
	form.Set("description", in.Description)
	form.Set("category", in.Category)
	form.Set("location", in.Location)
	if in.Latitude != 0 || in.Longitude != 0 {
		form.Set("latitude", strconv.FormatFloat(in.Latitude, 'f', -1, 64))
		form.Set("longitude", strconv.FormatFloat(in.Longitude, 'f', -1, 64))
	}
	if in.Image != nil {
		form.File("image", in.ImageName, in.Image)
	}

	var issue civic.Issue
	err := s.tc.PostForm(ctx, "/api/issues", form, &issue)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.create = opStatus{state: OpFailed, err: err}
		return nil, err
	}
	s.userIssues = append([]civic.Issue{issue}, s.userIssues...)
	s.create = opStatus{state: OpSucceeded}
	s.log.Info("issue created", "id", issue.ID, "title", issue.Title)
	return &issue, nil
}

// UpdateInput is a partial issue edit. Nil fields are omitted from the
// request and the server preserves their current values. RemoveImage is
// distinct from not supplying an image: the flag clears the existing
// attachment, omission keeps it.
type UpdateInput struct {
	Title       *string
	Description *string
	Category    *string
	Location    *string
	RemoveImage bool
	ImageName   string
	Image       io.Reader
}

func (in UpdateInput) validateFields() error {
	for _, f := range []struct {
		name  string
		value *string
	}{
		{"title", in.Title},
		{"description", in.Description},
		{"category", in.Category},
		{"location", in.Location},
	} {
		if f.value != nil && *f.value == "" {
			return &civic.ValidationError{Field: f.name, Reason: "required"}
		}
	}
	return nil
}

// Update edits an issue. On success the result replaces the matching entry
// in the user-issue set, and the detail slot when the ids match.
func (s *Store) Update(ctx context.Context, id string, in UpdateInput) (*civic.Issue, error) {
	if err := in.validateFields(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.update.state = OpPending
	s.mu.Unlock()

	form := &transport.Form{}
	if in.Title != nil {
		form.Set("title", *in.Title)
	}
	if in.Description != nil {
		form.Set("description", *in.Description)
	}
	if in.Category != nil {
		form.Set("category", *in.Category)
	}
	if in.Location != nil {
		form.Set("location", *in.Location)
	}
	if in.RemoveImage {
		form.Set("removeImage", "true")
	}
	if in.Image != nil {
		form.File("image", in.ImageName, in.Image)
	}

	var issue civic.Issue
	err := s.tc.PutForm(ctx, "/api/issues/"+url.PathEscape(id), form, &issue)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.update = opStatus{state: OpFailed, err: err}
		return nil, err
	}
	for i := range s.userIssues {
		if s.userIssues[i].ID == issue.ID {
			s.userIssues[i] = issue
			break
		}
	}
	if s.detail != nil && s.detail.ID == issue.ID {
		d := issue
		s.detail = &d
	}
	s.update = opStatus{state: OpSucceeded}
	s.log.Info("issue updated", "id", issue.ID)
	return &issue, nil
}

// Delete removes an issue. Only the user-issue set is mutated locally; the
// filtered list view catches up on its next fetch, since list membership
// depends on filters this operation doesn't know about.
func (s *Store) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	s.del.state = OpPending
	s.mu.Unlock()

	err := s.tc.Delete(ctx, "/api/issues/"+url.PathEscape(id), nil)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.del = opStatus{state: OpFailed, err: err}
		return err
	}
	kept := s.userIssues[:0:0]
	for _, issue := range s.userIssues {
		if issue.ID != id {
			kept = append(kept, issue)
		}
	}
	s.userIssues = kept
	s.del = opStatus{state: OpSucceeded}
	s.log.Info("issue deleted", "id", id)
	return nil
}
