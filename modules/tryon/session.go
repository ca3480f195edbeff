package tryon

import "time"

// Job - one external call started by a Begin* transition
type Job struct {
	SessionID string
	Op        Operation
	Token     uint64
	Person    Artifact
	Outfit    Artifact
	Source    Image
}

func newState(id string, now time.Time) *State {
	return &State{ID: id, Status: StatusIdle, CreatedAt: now, UpdatedAt: now}
}

// setInput - supersede the artifact in slot
func (s *State) setInput(slot Slot, a *Artifact, now time.Time) {
	if slot == SlotPerson {
		s.Person = a
	} else {
		s.Outfit = a
	}
	s.UpdatedAt = now
}

// beginTryOn - Generating with result and error cleared, or a validation failure.
// A missing input is recorded on the state; a running try-on is rejected without touching it.
func (s *State) beginTryOn(now time.Time) (*Job, *Error) {
	if s.Status == StatusGenerating {
		return nil, ErrBusy
	}
	if s.Person == nil || s.Outfit == nil {
		s.Status = StatusFailed
		s.Error = ErrMissingInputs.Failure()
		s.UpdatedAt = now
		return nil, ErrMissingInputs
	}

	s.Result = nil
	s.Error = nil
	s.Status = StatusGenerating
	s.TryOnToken++
	// an upscale still in flight belongs to the discarded result
	s.UpscaleToken++
	s.UpdatedAt = now

	return &Job{
		SessionID: s.ID,
		Op:        OpGenerate,
		Token:     s.TryOnToken,
		Person:    *s.Person.clone(),
		Outfit:    *s.Outfit.clone(),
	}, nil
}

// completeTryOn - false when token is stale and nothing changed
func (s *State) completeTryOn(token uint64, img *Image, failure *Error, now time.Time) bool {
	if token != s.TryOnToken || s.Status != StatusGenerating {
		return false
	}
	if failure != nil {
		s.Status = StatusFailed
		s.Error = failure.Failure()
	} else {
		s.Status = StatusSucceeded
		s.Result = &Result{Image: *img}
	}
	s.UpdatedAt = now
	return true
}

// beginUpscale - nil job when there is nothing to upscale or a call is in flight
func (s *State) beginUpscale(now time.Time) *Job {
	if !s.CanUpscale() {
		return nil
	}

	s.Error = nil
	s.Status = StatusUpscaling
	s.UpscaleToken++
	s.UpdatedAt = now

	src := s.Result.Image
	src.Data = append([]byte(nil), src.Data...)
	return &Job{SessionID: s.ID, Op: OpUpscale, Token: s.UpscaleToken, Source: src}
}

// completeUpscale - on failure the prior result stays next to the error
func (s *State) completeUpscale(token uint64, img *Image, failure *Error, now time.Time) bool {
	if token != s.UpscaleToken || s.Status != StatusUpscaling || s.Result == nil {
		return false
	}
	if failure != nil {
		s.Status = StatusFailed
		s.Error = failure.Failure()
	} else {
		s.Status = StatusSucceeded
		s.Result = &Result{Image: *img, Upscaled: true}
	}
	s.UpdatedAt = now
	return true
}

// reset - empty idle state; in-flight completions become stale
func (s *State) reset(now time.Time) {
	s.Person = nil
	s.Outfit = nil
	s.Result = nil
	s.Error = nil
	s.Status = StatusIdle
	s.TryOnToken++
	s.UpscaleToken++
	s.UpdatedAt = now
}

// fail - record a validation failure that does not come from an external call
func (s *State) fail(e *Error, now time.Time) {
	s.Status = StatusFailed
	s.Error = e.Failure()
	s.UpdatedAt = now
}
