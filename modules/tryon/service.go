package tryon

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"fitting-room-server/modules/common/gemini"
	"fitting-room-server/modules/common/utils"
)

// Generator - the two external calls the Manager sequences
type Generator interface {
	GenerateTryOn(ctx context.Context, person, outfit Artifact) (*Image, error)
	Upscale(ctx context.Context, img Image) (*Image, error)
}

// Service - Gemini adapter. Every failure it returns is an *Error; nothing is retried.
type Service struct {
	client gemini.ContentGenerator
	model  string
	log    *zap.Logger
}

func NewService(client gemini.ContentGenerator, model string, log *zap.Logger) *Service {
	if model == "" {
		model = "gemini-2.5-flash-image-preview"
	}
	return &Service{client: client, model: model, log: log}
}

// GenerateTryOn - composite of outfit worn by person
func (s *Service) GenerateTryOn(ctx context.Context, person, outfit Artifact) (*Image, error) {
	s.log.Info("🎨 [TryOn] Generating",
		zap.String("person", person.Name), zap.Int("personBytes", len(person.Data)),
		zap.String("outfit", outfit.Name), zap.Int("outfitBytes", len(outfit.Data)))

	parts := []*genai.Part{
		genai.NewPartFromBytes(person.Data, person.MIMEType),
		genai.NewPartFromBytes(outfit.Data, outfit.MIMEType),
		genai.NewPartFromText(TryOnPrompt),
	}
	return s.generate(ctx, OpGenerate, parts)
}

// Upscale - higher resolution version of img
func (s *Service) Upscale(ctx context.Context, img Image) (*Image, error) {
	mimeType := img.MIMEType
	if mimeType == "" {
		mimeType = utils.MIMEPNG
	}
	s.log.Info("🔍 [TryOn] Upscaling", zap.Int("bytes", len(img.Data)))

	parts := []*genai.Part{
		genai.NewPartFromBytes(img.Data, mimeType),
		genai.NewPartFromText(UpscalePrompt),
	}
	return s.generate(ctx, OpUpscale, parts)
}

func (s *Service) generate(ctx context.Context, op Operation, parts []*genai.Part) (*Image, error) {
	start := time.Now()
	resp, err := s.client.GenerateContent(
		ctx,
		s.model,
		[]*genai.Content{{Parts: parts}},
		&genai.GenerateContentConfig{
			ResponseModalities: []string{string(genai.ModalityImage), string(genai.ModalityText)},
		},
	)
	if err != nil {
		classified := classifyCallError(err, op)
		s.log.Error("❌ [TryOn] Gemini API error",
			zap.String("operation", string(op)),
			zap.String("category", gemini.Classify(err).String()),
			zap.Int("status", gemini.StatusCode(err)),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err))
		return nil, classified
	}

	img, failure := extractImage(resp, op)
	if failure != nil {
		s.log.Warn("⚠️ [TryOn] No usable image",
			zap.String("operation", string(op)),
			zap.String("code", failure.Code),
			zap.Duration("elapsed", time.Since(start)))
		return nil, failure
	}

	s.log.Info("✅ [TryOn] Image received",
		zap.String("operation", string(op)),
		zap.String("mimeType", img.MIMEType),
		zap.Int("bytes", len(img.Data)),
		zap.Duration("elapsed", time.Since(start)))
	return img, nil
}

// classifyCallError - map a failed GenerateContent call to a distinct user message
func classifyCallError(err error, op Operation) *Error {
	e := &Error{Kind: KindService, Operation: op, Err: err}

	switch gemini.Classify(err) {
	case gemini.CategoryNetwork:
		e.Kind, e.Code, e.Message = KindTransport, CodeNetwork, MsgNetwork
	case gemini.CategoryRateLimited:
		e.Code, e.Message = CodeRateLimited, MsgRateLimited
	case gemini.CategoryInvalidArgument:
		e.Code, e.Message = CodeInvalidArgument, MsgInvalidArgument
	case gemini.CategoryAuth:
		e.Code = CodeAuth
		e.Message = fmt.Sprintf("There is a configuration issue with the %s. The operation failed.", op.serviceName())
	case gemini.CategoryUnavailable:
		e.Code = CodeUnavailable
		e.Message = fmt.Sprintf("The %s is temporarily unavailable. Please try again later.", op.serviceName())
	default:
		e.Code, e.Message = CodeUnexpected, unexpectedMessage(op)
	}
	return e
}

// finishReasonError - nil when the candidate stopped normally or reported no reason;
// an explicit FINISH_REASON_UNSPECIFIED is not a normal stop
func finishReasonError(reason genai.FinishReason, op Operation) *Error {
	e := &Error{Kind: KindService, Operation: op}

	switch reason {
	case "", genai.FinishReasonStop:
		return nil
	case genai.FinishReasonSafety, genai.FinishReasonImageSafety,
		genai.FinishReasonProhibitedContent, genai.FinishReasonImageProhibitedContent,
		genai.FinishReasonBlocklist, genai.FinishReasonSPII:
		e.Code = CodeBlockedSafety
		e.Message = fmt.Sprintf("%s was blocked due to content safety policies. Please use different, appropriate images.", op.processName())
	case genai.FinishReasonRecitation:
		e.Code = CodeBlockedRecite
		e.Message = fmt.Sprintf("%s was blocked due to recitation policies. Please try a different request.", op.processName())
	case genai.FinishReasonMaxTokens:
		e.Code, e.Message = CodeTooLarge, MsgTooLarge
	default:
		e.Code = CodeUnexpectedFinish
		e.Message = fmt.Sprintf("%s failed with an unexpected reason: %s. Please try again.", op.processName(), reason)
	}
	e.Err = fmt.Errorf("finish reason %s", reason)
	return e
}

func noImageError(op Operation, cause string) *Error {
	msg := MsgNoImageGenerate
	if op == OpUpscale {
		msg = MsgNoImageUpscale
	}
	return &Error{Kind: KindExtraction, Code: CodeNoImage, Message: msg, Operation: op, Err: errors.New(cause)}
}

// extractImage - first inline image of the first candidate, after the finish reason check
func extractImage(resp *genai.GenerateContentResponse, op Operation) (*Image, *Error) {
	if resp == nil {
		return nil, noImageError(op, "empty response")
	}
	if len(resp.Candidates) == 0 {
		if fb := resp.PromptFeedback; fb != nil && fb.BlockReason != "" && fb.BlockReason != genai.BlockedReasonUnspecified {
			if e := finishReasonError(promptBlockReason(fb.BlockReason), op); e != nil {
				return nil, e
			}
		}
		return nil, noImageError(op, "no candidates")
	}

	candidate := resp.Candidates[0]
	if e := finishReasonError(candidate.FinishReason, op); e != nil {
		return nil, e
	}
	if candidate.Content == nil {
		return nil, noImageError(op, "candidate has no content")
	}

	for _, part := range candidate.Content.Parts {
		if part == nil || part.InlineData == nil || len(part.InlineData.Data) == 0 {
			continue
		}
		mimeType := part.InlineData.MIMEType
		if mimeType == "" {
			mimeType = utils.MIMEPNG
		}
		return &Image{MIMEType: mimeType, Data: part.InlineData.Data}, nil
	}
	return nil, noImageError(op, "no inline image in candidate")
}

// promptBlockReason - prompt-level blocks reported as the matching finish reason
func promptBlockReason(r genai.BlockedReason) genai.FinishReason {
	switch r {
	case genai.BlockedReasonSafety, genai.BlockedReasonImageSafety,
		genai.BlockedReasonProhibitedContent, genai.BlockedReasonBlocklist:
		return genai.FinishReasonSafety
	}
	return genai.FinishReason(r)
}
