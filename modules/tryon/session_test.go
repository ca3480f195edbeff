package tryon

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

func readyState() *State {
	s := newState("s1", t0)
	s.setInput(SlotPerson, testPerson.clone(), t0)
	s.setInput(SlotOutfit, testOutfit.clone(), t0)
	return s
}

func TestBeginTryOnRequiresBothInputs(t *testing.T) {
	s := newState("s1", t0)
	s.setInput(SlotPerson, testPerson.clone(), t0)

	job, err := s.beginTryOn(t0)
	assert.Nil(t, job)
	assert.ErrorIs(t, err, ErrMissingInputs)
	assert.Equal(t, StatusFailed, s.Status)
	require.NotNil(t, s.Error)
	assert.Equal(t, MsgMissingInputs, s.Error.Message)
	assert.Zero(t, s.TryOnToken)
}

func TestBeginTryOnClearsPreviousResult(t *testing.T) {
	s := readyState()
	s.Result = &Result{Image: Image{Data: []byte("old")}, Upscaled: true}
	s.Error = &Failure{Message: "old error"}
	s.Status = StatusFailed

	job, err := s.beginTryOn(t0)
	require.Nil(t, err)
	require.NotNil(t, job)
	assert.Equal(t, StatusGenerating, s.Status)
	assert.Nil(t, s.Result)
	assert.Nil(t, s.Error)
	assert.Equal(t, uint64(1), job.Token)
	assert.Equal(t, testPerson.Data, job.Person.Data)

	// the job owns its copy of the inputs
	job.Person.Data[0] = 'X'
	assert.Equal(t, byte('p'), s.Person.Data[0])
}

func TestBeginTryOnWhileGeneratingIsBusy(t *testing.T) {
	s := readyState()
	_, err := s.beginTryOn(t0)
	require.Nil(t, err)
	before := *s

	job, err := s.beginTryOn(t0.Add(time.Second))
	assert.Nil(t, job)
	assert.ErrorIs(t, err, ErrBusy)
	assert.Equal(t, before, *s)
}

func TestCompleteTryOn(t *testing.T) {
	s := readyState()
	job, _ := s.beginTryOn(t0)

	ok := s.completeTryOn(job.Token, &Image{MIMEType: "image/png", Data: []byte("out")}, nil, t0)
	assert.True(t, ok)
	assert.Equal(t, StatusSucceeded, s.Status)
	require.NotNil(t, s.Result)
	assert.False(t, s.Result.Upscaled)
	assert.True(t, s.CanUpscale())

	s2 := readyState()
	job, _ = s2.beginTryOn(t0)
	ok = s2.completeTryOn(job.Token, nil, &Error{Kind: KindService, Code: CodeRateLimited, Message: MsgRateLimited}, t0)
	assert.True(t, ok)
	assert.Equal(t, StatusFailed, s2.Status)
	assert.Nil(t, s2.Result)
	assert.Equal(t, MsgRateLimited, s2.Error.Message)
}

func TestStaleTryOnCompletionIsDropped(t *testing.T) {
	s := readyState()
	first, _ := s.beginTryOn(t0)
	s.reset(t0)
	s.setInput(SlotPerson, testPerson.clone(), t0)
	s.setInput(SlotOutfit, testOutfit.clone(), t0)
	second, _ := s.beginTryOn(t0)
	require.Greater(t, second.Token, first.Token)

	assert.False(t, s.completeTryOn(first.Token, &Image{Data: []byte("stale")}, nil, t0))
	assert.Equal(t, StatusGenerating, s.Status)
	assert.Nil(t, s.Result)

	assert.True(t, s.completeTryOn(second.Token, &Image{Data: []byte("fresh")}, nil, t0))
	assert.Equal(t, []byte("fresh"), s.Result.Image.Data)
}

func TestUpscaleTransitions(t *testing.T) {
	t.Run("no result is a no-op", func(t *testing.T) {
		s := readyState()
		assert.Nil(t, s.beginUpscale(t0))
		assert.Equal(t, StatusIdle, s.Status)
	})

	t.Run("success replaces and marks upscaled", func(t *testing.T) {
		s := readyState()
		job, _ := s.beginTryOn(t0)
		s.completeTryOn(job.Token, &Image{Data: []byte("base")}, nil, t0)

		up := s.beginUpscale(t0)
		require.NotNil(t, up)
		assert.Equal(t, StatusUpscaling, s.Status)
		assert.Equal(t, []byte("base"), up.Source.Data)
		assert.Nil(t, s.beginUpscale(t0), "one upscale at a time")

		assert.True(t, s.completeUpscale(up.Token, &Image{Data: []byte("hd")}, nil, t0))
		assert.Equal(t, StatusSucceeded, s.Status)
		assert.True(t, s.Result.Upscaled)
		assert.Equal(t, []byte("hd"), s.Result.Image.Data)
		assert.False(t, s.CanUpscale())
		assert.Nil(t, s.beginUpscale(t0), "already upscaled")
	})

	t.Run("failure keeps the prior result", func(t *testing.T) {
		s := readyState()
		job, _ := s.beginTryOn(t0)
		s.completeTryOn(job.Token, &Image{Data: []byte("base")}, nil, t0)
		up := s.beginUpscale(t0)

		failure := &Error{Kind: KindService, Code: CodeUnavailable, Message: "down"}
		assert.True(t, s.completeUpscale(up.Token, nil, failure, t0))
		assert.Equal(t, StatusFailed, s.Status)
		assert.Equal(t, []byte("base"), s.Result.Image.Data)
		assert.False(t, s.Result.Upscaled)
		assert.Equal(t, "down", s.Error.Message)
		assert.True(t, s.CanUpscale())
	})

	t.Run("new try-on invalidates a running upscale", func(t *testing.T) {
		s := readyState()
		job, _ := s.beginTryOn(t0)
		s.completeTryOn(job.Token, &Image{Data: []byte("base")}, nil, t0)
		up := s.beginUpscale(t0)

		_, err := s.beginTryOn(t0)
		require.Nil(t, err)
		assert.False(t, s.completeUpscale(up.Token, &Image{Data: []byte("hd")}, nil, t0))
		assert.Equal(t, StatusGenerating, s.Status)
		assert.Nil(t, s.Result)
	})
}

func TestResetFromAnyState(t *testing.T) {
	for _, status := range []Status{StatusIdle, StatusGenerating, StatusUpscaling, StatusSucceeded, StatusFailed} {
		s := readyState()
		s.Status = status
		s.Result = &Result{Image: Image{Data: []byte("r")}, Upscaled: true}
		s.Error = &Failure{Message: "e"}
		tokens := s.TryOnToken + s.UpscaleToken

		s.reset(t0)
		assert.Equal(t, StatusIdle, s.Status, status)
		assert.Nil(t, s.Person)
		assert.Nil(t, s.Outfit)
		assert.Nil(t, s.Result)
		assert.Nil(t, s.Error)
		assert.False(t, s.Status.Busy())
		assert.Equal(t, tokens+2, s.TryOnToken+s.UpscaleToken)
	}
}

func TestCloneIsDeep(t *testing.T) {
	s := readyState()
	s.Result = &Result{Image: Image{Data: []byte("abc")}}
	c := s.Clone()
	c.Person.Data[0] = 'Z'
	c.Result.Image.Data[0] = 'Z'
	assert.Equal(t, byte('p'), s.Person.Data[0])
	assert.Equal(t, byte('a'), s.Result.Image.Data[0])
}

func TestDownloadName(t *testing.T) {
	assert.Equal(t, "virtual-try-on-result.png", DownloadName(&Result{Image: Image{MIMEType: "image/png"}}))
	assert.Equal(t, "virtual-try-on-result-hd.png", DownloadName(&Result{Image: Image{MIMEType: "image/png"}, Upscaled: true}))
	assert.Equal(t, "virtual-try-on-result-hd.jpg", DownloadName(&Result{Image: Image{MIMEType: "image/jpeg"}, Upscaled: true}))
	assert.Empty(t, DownloadName(nil))
}
