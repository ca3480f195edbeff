package tryon

import (
	"fmt"
	"time"
)

// Slot - which input an artifact fills
type Slot string

const (
	SlotPerson Slot = "person"
	SlotOutfit Slot = "outfit"
)

// ParseSlot - route value to Slot
func ParseSlot(s string) (Slot, error) {
	switch Slot(s) {
	case SlotPerson, SlotOutfit:
		return Slot(s), nil
	}
	return "", NewValidationError(CodeUnknownSlot, fmt.Sprintf("Unknown image slot %q.", s), nil)
}

// Status - the one exclusive operation state of a session
type Status string

const (
	StatusIdle       Status = "idle"
	StatusGenerating Status = "generating"
	StatusUpscaling  Status = "upscaling"
	StatusSucceeded  Status = "succeeded"
	StatusFailed     Status = "failed"
)

// Busy - an external call is in flight
func (s Status) Busy() bool {
	return s == StatusGenerating || s == StatusUpscaling
}

// Artifact - an input image as handed to the service; replaced, never mutated
type Artifact struct {
	Name     string `json:"name"`
	MIMEType string `json:"mimeType"`
	Data     []byte `json:"data"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
}

// Image - opaque image bytes returned by the service
type Image struct {
	MIMEType string `json:"mimeType"`
	Data     []byte `json:"data"`
}

// Result - the one retained output; Upscaled stays set until a new try-on starts
type Result struct {
	Image    Image `json:"image"`
	Upscaled bool  `json:"upscaled"`
}

// Failure - the persisted, user-facing part of an *Error
type Failure struct {
	Kind      Kind      `json:"kind"`
	Code      string    `json:"code"`
	Message   string    `json:"message"`
	Operation Operation `json:"operation,omitempty"`
}

// State - everything a session holds. Tokens grow monotonically per slot and
// completions carrying an older token are dropped.
type State struct {
	ID           string    `json:"id"`
	Status       Status    `json:"status"`
	Person       *Artifact `json:"person,omitempty"`
	Outfit       *Artifact `json:"outfit,omitempty"`
	Result       *Result   `json:"result,omitempty"`
	Error        *Failure  `json:"error,omitempty"`
	TryOnToken   uint64    `json:"tryOnToken"`
	UpscaleToken uint64    `json:"upscaleToken"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Input - artifact in slot, or nil
func (s *State) Input(slot Slot) *Artifact {
	if slot == SlotPerson {
		return s.Person
	}
	return s.Outfit
}

// CanTryOn - both inputs present and no try-on running
func (s *State) CanTryOn() bool {
	return s.Person != nil && s.Outfit != nil && s.Status != StatusGenerating
}

// CanUpscale - a not-yet-upscaled result exists and nothing is in flight
func (s *State) CanUpscale() bool {
	return s.Result != nil && !s.Result.Upscaled && !s.Status.Busy()
}

// Clone - deep copy; stores hand out clones so callers never share byte slices
func (s *State) Clone() *State {
	if s == nil {
		return nil
	}
	out := *s
	out.Person = s.Person.clone()
	out.Outfit = s.Outfit.clone()
	if s.Result != nil {
		r := *s.Result
		r.Image.Data = append([]byte(nil), s.Result.Image.Data...)
		out.Result = &r
	}
	if s.Error != nil {
		f := *s.Error
		out.Error = &f
	}
	return &out
}

func (a *Artifact) clone() *Artifact {
	if a == nil {
		return nil
	}
	out := *a
	out.Data = append([]byte(nil), a.Data...)
	return &out
}

// ArtifactView - artifact metadata without bytes
type ArtifactView struct {
	Name     string `json:"name"`
	MIMEType string `json:"mimeType"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
	Size     int    `json:"size"`
	URL      string `json:"url"`
}

// ResultView - result metadata without bytes
type ResultView struct {
	MIMEType     string `json:"mimeType"`
	Upscaled     bool   `json:"upscaled"`
	Size         int    `json:"size"`
	URL          string `json:"url"`
	DownloadURL  string `json:"downloadUrl"`
	DownloadName string `json:"downloadName"`
}

// Snapshot - JSON view of a session for the page and websocket subscribers
type Snapshot struct {
	ID           string        `json:"id"`
	Status       Status        `json:"status"`
	Person       *ArtifactView `json:"person,omitempty"`
	Outfit       *ArtifactView `json:"outfit,omitempty"`
	Result       *ResultView   `json:"result,omitempty"`
	Error        *Failure      `json:"error,omitempty"`
	CanTryOn     bool          `json:"canTryOn"`
	CanUpscale   bool          `json:"canUpscale"`
	TryOnToken   uint64        `json:"tryOnToken"`
	UpscaleToken uint64        `json:"upscaleToken"`
	UpdatedAt    time.Time     `json:"updatedAt"`
}

func sessionPath(id string) string {
	return "/api/tryon/sessions/" + id
}

// NewSnapshot - view of s with resource URLs. Image URLs carry the token so browsers refetch.
func NewSnapshot(s *State) Snapshot {
	snap := Snapshot{
		ID:           s.ID,
		Status:       s.Status,
		Error:        s.Error,
		CanTryOn:     s.CanTryOn(),
		CanUpscale:   s.CanUpscale(),
		TryOnToken:   s.TryOnToken,
		UpscaleToken: s.UpscaleToken,
		UpdatedAt:    s.UpdatedAt,
	}

	view := func(slot Slot, a *Artifact) *ArtifactView {
		if a == nil {
			return nil
		}
		return &ArtifactView{
			Name:     a.Name,
			MIMEType: a.MIMEType,
			Width:    a.Width,
			Height:   a.Height,
			Size:     len(a.Data),
			URL:      fmt.Sprintf("%s/inputs/%s?v=%d", sessionPath(s.ID), slot, s.UpdatedAt.UnixNano()),
		}
	}
	snap.Person = view(SlotPerson, s.Person)
	snap.Outfit = view(SlotOutfit, s.Outfit)

	if s.Result != nil {
		url := fmt.Sprintf("%s/result?t=%d.%d", sessionPath(s.ID), s.TryOnToken, s.UpscaleToken)
		snap.Result = &ResultView{
			MIMEType:     s.Result.Image.MIMEType,
			Upscaled:     s.Result.Upscaled,
			Size:         len(s.Result.Image.Data),
			URL:          url,
			DownloadURL:  url + "&download=1",
			DownloadName: DownloadName(s.Result),
		}
	}
	return snap
}
