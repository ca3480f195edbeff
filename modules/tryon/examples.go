package tryon

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"golang.org/x/sync/errgroup"

	"fitting-room-server/modules/common/utils"
)

//go:embed examples.json
var embeddedExamples []byte

// Example - one bundled person/outfit pair
type Example struct {
	ID          int    `json:"id"`
	Description string `json:"description"`
	PersonURL   string `json:"personUrl"`
	OutfitURL   string `json:"outfitUrl"`
}

// ExampleSummary - list entry for the picker
type ExampleSummary struct {
	ID          int    `json:"id"`
	Description string `json:"description"`
	PersonURL   string `json:"personUrl"`
	OutfitURL   string `json:"outfitUrl"`
}

// Examples - read-only example table keyed by id
type Examples struct {
	byID  map[int]Example
	order []int
}

// LoadExamples - the embedded dataset, or the JSON file at path when set
func LoadExamples(path string) (*Examples, error) {
	raw := embeddedExamples
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read examples file: %w", err)
		}
		raw = data
	}
	return ParseExamples(raw)
}

// ParseExamples - decode a JSON example list. Image payloads are checked lazily on load.
func ParseExamples(raw []byte) (*Examples, error) {
	var list []Example
	if err := json.Unmarshal(raw, &list); err != nil {
		return nil, fmt.Errorf("parse examples: %w", err)
	}

	ex := &Examples{byID: make(map[int]Example, len(list))}
	for _, e := range list {
		if _, dup := ex.byID[e.ID]; dup {
			return nil, fmt.Errorf("duplicate example id %d", e.ID)
		}
		ex.byID[e.ID] = e
		ex.order = append(ex.order, e.ID)
	}
	sort.Ints(ex.order)
	return ex, nil
}

// List - picker entries ordered by id, with thumbnail URLs
func (x *Examples) List() []ExampleSummary {
	out := make([]ExampleSummary, 0, len(x.order))
	for _, id := range x.order {
		e := x.byID[id]
		out = append(out, ExampleSummary{
			ID:          e.ID,
			Description: e.Description,
			PersonURL:   fmt.Sprintf("/api/tryon/examples/%d/%s", e.ID, SlotPerson),
			OutfitURL:   fmt.Sprintf("/api/tryon/examples/%d/%s", e.ID, SlotOutfit),
		})
	}
	return out
}

// Decode - both artifacts of example id, or a validation error and neither
func (x *Examples) Decode(id int) (*Artifact, *Artifact, error) {
	e, ok := x.byID[id]
	if !ok {
		return nil, nil, NewValidationError(CodeUnknownExample, fmt.Sprintf("Example %d does not exist.", id), nil)
	}

	var person, outfit *Artifact
	var g errgroup.Group
	g.Go(func() error {
		a, err := decodeExampleImage(e.PersonURL, fmt.Sprintf("example-person-%d", e.ID))
		person = a
		return err
	})
	g.Go(func() error {
		a, err := decodeExampleImage(e.OutfitURL, fmt.Sprintf("example-outfit-%d", e.ID))
		outfit = a
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, nil, NewValidationError(CodeExampleCorrupted, MsgExampleCorrupted, fmt.Errorf("example %d: %w", e.ID, err))
	}
	return person, outfit, nil
}

// decodeExampleImage - data URI to an artifact named base.<ext>
func decodeExampleImage(uri, base string) (*Artifact, error) {
	mimeType, data, err := utils.ParseDataURI(uri)
	if err != nil {
		return nil, err
	}
	w, h, format, err := utils.DecodeDimensions(data)
	if err != nil {
		return nil, err
	}
	if detected := utils.MIMETypeForFormat(format); detected != "" {
		mimeType = detected
	}
	if !utils.IsSupportedMIME(mimeType) {
		return nil, fmt.Errorf("unsupported example media type %s", mimeType)
	}

	return &Artifact{
		Name:     base + "." + utils.ExtensionForMIME(mimeType),
		MIMEType: mimeType,
		Data:     data,
		Width:    w,
		Height:   h,
	}, nil
}
